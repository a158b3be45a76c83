package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/podforge/api/internal/config"
	"github.com/podforge/api/internal/model"
)

// TranscribeClient talks to the external transcription provider.
type TranscribeClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

type submitTranscriptRequest struct {
	AudioURL       string `json:"audio_url"`
	SpeakerLabels  bool   `json:"speaker_labels"`
	ContentSafety  bool   `json:"content_safety"`
	WebhookURL     string `json:"webhook_url,omitempty"`
	WordTimestamps bool   `json:"word_timestamps"`
}

type submitTranscriptResponse struct {
	ID     string                 `json:"id"`
	Status model.TranscriptStatus `json:"status"`
}

// NewTranscribeClient creates a new transcription provider client.
func NewTranscribeClient(cfg *config.TranscriptionConfig) *TranscribeClient {
	return &TranscribeClient{
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
	}
}

// SubmitTranscript registers an audio file for transcription. Content
// safety filtering is always disabled; the coordinator treats labels in
// the response as a contract violation.
func (c *TranscribeClient) SubmitTranscript(ctx context.Context, audioURL, webhookURL string) (string, error) {
	req := submitTranscriptRequest{
		AudioURL:       audioURL,
		SpeakerLabels:  true,
		ContentSafety:  false,
		WebhookURL:     webhookURL,
		WordTimestamps: true,
	}
	var result submitTranscriptResponse
	if err := c.post(ctx, "/transcripts", req, &result); err != nil {
		return "", err
	}
	return result.ID, nil
}

// GetTranscript retrieves the current status and payload of a job.
func (c *TranscribeClient) GetTranscript(ctx context.Context, jobID string) (*model.TranscriptResult, error) {
	endpoint := fmt.Sprintf("/transcripts/%s", jobID)
	var result model.TranscriptResult
	if err := c.get(ctx, endpoint, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// post sends a POST request with JSON body
func (c *TranscribeClient) post(ctx context.Context, endpoint string, body interface{}, result interface{}) error {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	return c.doRequest(req, result)
}

// get sends a GET request and parses JSON response
func (c *TranscribeClient) get(ctx context.Context, endpoint string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	return c.doRequest(req, result)
}

// doRequest executes an HTTP request and parses the response
func (c *TranscribeClient) doRequest(req *http.Request, result interface{}) error {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.apiKey)

	log.Printf("[Transcribe API] → %s %s", req.Method, req.URL.String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("[Transcribe API] ✗ %s %s — request failed: %v", req.Method, req.URL.String(), err)
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	log.Printf("[Transcribe API] ← %d %s %s", resp.StatusCode, req.Method, req.URL.String())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("transcription API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return nil
}

// IsConfigured returns true if the client has valid configuration
func (c *TranscribeClient) IsConfigured() bool {
	return c.apiKey != ""
}
