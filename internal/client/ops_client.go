package client

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/podforge/api/internal/config"
)

// OpsClient posts operator notifications (worker health flips, terminal
// failures) to a chat webhook. Delivery is best effort: a down ops channel
// must never affect the pipeline.
type OpsClient struct {
	httpClient *http.Client
	webhookURL string
}

// NewOpsClient creates the ops notifier.
func NewOpsClient(cfg *config.OpsConfig) *OpsClient {
	return &OpsClient{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		webhookURL: cfg.WebhookURL,
	}
}

// Notify posts a text message to the ops webhook.
func (c *OpsClient) Notify(ctx context.Context, text string) {
	if c.webhookURL == "" {
		log.Printf("[Ops] %s", text)
		return
	}

	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		log.Printf("[Ops] failed to marshal notification: %v", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(body))
	if err != nil {
		log.Printf("[Ops] failed to create request: %v", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("[Ops] notification failed: %v", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Printf("[Ops] webhook returned status %d", resp.StatusCode)
	}
}

// IsConfigured returns true if the client has valid configuration
func (c *OpsClient) IsConfigured() bool {
	return c.webhookURL != ""
}
