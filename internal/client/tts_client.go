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

	"github.com/podforge/api/internal/audio"
	"github.com/podforge/api/internal/config"
)

// TTSError is a failure reported by the synthesis provider itself, as
// opposed to a transport-level failure reaching it.
type TTSError struct {
	StatusCode int
	Message    string
}

func (e *TTSError) Error() string {
	return fmt.Sprintf("tts provider error (status %d): %s", e.StatusCode, e.Message)
}

// TTSClient talks to the external voice-synthesis provider. The provider
// streams raw little-endian PCM16 at the configured sample rate.
type TTSClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	sampleRate int
}

type synthesizeRequest struct {
	Text         string `json:"text"`
	Voice        string `json:"voice"`
	OutputFormat string `json:"output_format"`
	SampleRate   int    `json:"sample_rate"`
}

// NewTTSClient creates a new synthesis client.
func NewTTSClient(cfg *config.TTSConfig) *TTSClient {
	rate := cfg.SampleRate
	if rate <= 0 {
		rate = 24000
	}
	return &TTSClient{
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		sampleRate: rate,
	}
}

// Synthesize renders one chunk of text to audio.
func (c *TTSClient) Synthesize(ctx context.Context, text, voice string) (*audio.Segment, error) {
	reqBody, err := json.Marshal(synthesizeRequest{
		Text:         text,
		Voice:        voice,
		OutputFormat: "pcm_s16le",
		SampleRate:   c.sampleRate,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/synthesize", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	log.Printf("[TTS API] → POST /synthesize (%d chars, voice=%s)", len(text), voice)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("[TTS API] ✗ request failed: %v", err)
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	log.Printf("[TTS API] ← %d POST /synthesize (%d bytes)", resp.StatusCode, len(body))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Provider-side failure, distinguished from transport errors above.
		return nil, &TTSError{StatusCode: resp.StatusCode, Message: string(body)}
	}

	return audio.DecodePCM16(body, c.sampleRate), nil
}

// IsConfigured returns true if the client has valid configuration
func (c *TTSClient) IsConfigured() bool {
	return c.apiKey != ""
}
