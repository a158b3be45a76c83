package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/podforge/api/internal/config"
)

// WorkerSecretHeader authenticates calls to the worker task surface.
const WorkerSecretHeader = "X-Worker-Secret"

// WorkerClient talks to a remote assembly worker. Task handoffs are
// synchronous: the response only returns after the unit of work completes.
type WorkerClient struct {
	healthClient  *http.Client
	handoffClient *http.Client
	secret        string
}

// NewWorkerClient creates a worker client. The health probe uses a short
// timeout so dispatch decisions stay cheap; handoffs get the long one.
func NewWorkerClient(cfg *config.WorkerConfig) *WorkerClient {
	healthTimeout := time.Duration(cfg.HealthTimeoutMs) * time.Millisecond
	if healthTimeout <= 0 {
		healthTimeout = 1500 * time.Millisecond
	}
	handoffTimeout := time.Duration(cfg.HandoffTimeoutSec) * time.Second
	if handoffTimeout <= 0 {
		handoffTimeout = 15 * time.Minute
	}
	return &WorkerClient{
		healthClient:  &http.Client{Timeout: healthTimeout},
		handoffClient: &http.Client{Timeout: handoffTimeout},
		secret:        cfg.Secret,
	}
}

// Probe checks worker reachability via GET /health.
func (c *WorkerClient) Probe(ctx context.Context, baseURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.healthClient.Do(req)
	if err != nil {
		return fmt.Errorf("worker unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("worker unhealthy (status %d)", resp.StatusCode)
	}
	return nil
}

// Dispatch hands a task to the worker and blocks until it finishes.
// kind selects the endpoint: POST /tasks/<kind>.
func (c *WorkerClient) Dispatch(ctx context.Context, baseURL, kind string, payload []byte) error {
	url := fmt.Sprintf("%s/tasks/%s", baseURL, kind)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(WorkerSecretHeader, c.secret)

	log.Printf("[Worker] → POST %s", url)

	resp, err := c.handoffClient.Do(req)
	if err != nil {
		log.Printf("[Worker] ✗ POST %s — handoff failed: %v", url, err)
		return fmt.Errorf("worker handoff failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	log.Printf("[Worker] ← %d POST %s", resp.StatusCode, url)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("worker returned status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
