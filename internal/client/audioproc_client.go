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
)

// AudioProcessor is the opaque audio-engine surface: cleanup/processing of
// the source recording and the final merge into a publishable artifact.
type AudioProcessor interface {
	Process(ctx context.Context, req *ProcessRequest) (*ProcessResponse, error)
	Merge(ctx context.Context, req *MergeRequest) (*MergeResponse, error)
	HealthCheck(ctx context.Context) error
}

// AudioProcClient implements AudioProcessor for the audio microservice.
type AudioProcClient struct {
	httpClient *http.Client
	baseURL    string
}

// ProcessRequest cleans up a source recording. Advanced selects the
// richer, slower enhancement pipeline.
type ProcessRequest struct {
	InputURL  string `json:"input_url"`
	Advanced  bool   `json:"advanced"`
	OutputKey string `json:"output_key"`
}

// ProcessResponse carries the processed artifact.
type ProcessResponse struct {
	OutputURL string  `json:"output_url"`
	Duration  float64 `json:"duration"`
	PeakDb    float64 `json:"peak_db"`
	LUFS      float64 `json:"lufs"`
}

// MergeRequest combines the processed main track with an optional
// synthesized voice track into the final episode audio.
type MergeRequest struct {
	MainURL   string `json:"main_url"`
	VoiceURL  string `json:"voice_url,omitempty"`
	OutputKey string `json:"output_key"`
}

// MergeResponse carries the final artifact.
type MergeResponse struct {
	OutputURL string  `json:"output_url"`
	Duration  float64 `json:"duration"`
	Size      int64   `json:"size"`
}

// NewAudioProcClient creates a new audio processing client.
func NewAudioProcClient(cfg *config.AudioProcConfig) *AudioProcClient {
	return &AudioProcClient{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		baseURL: cfg.ServiceURL,
	}
}

// Process sends the source recording through the enhancement pipeline.
func (c *AudioProcClient) Process(ctx context.Context, req *ProcessRequest) (*ProcessResponse, error) {
	var result ProcessResponse
	if err := c.post(ctx, "/process", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Merge combines tracks into the final episode artifact.
func (c *AudioProcClient) Merge(ctx context.Context, req *MergeRequest) (*MergeResponse, error) {
	var result MergeResponse
	if err := c.post(ctx, "/merge", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// HealthCheck probes the audio service.
func (c *AudioProcClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("audio service unhealthy (status %d)", resp.StatusCode)
	}
	return nil
}

// post sends a POST request with JSON body
func (c *AudioProcClient) post(ctx context.Context, endpoint string, body interface{}, result interface{}) error {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	log.Printf("[Audio API] → POST %s", endpoint)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("[Audio API] ✗ POST %s — request failed: %v", endpoint, err)
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	log.Printf("[Audio API] ← %d POST %s", resp.StatusCode, endpoint)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("audio service error (status %d): %s", resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return nil
}

// IsConfigured returns true if the client has valid configuration
func (c *AudioProcClient) IsConfigured() bool {
	return c.baseURL != ""
}
