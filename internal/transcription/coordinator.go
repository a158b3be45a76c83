package transcription

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/podforge/api/internal/breaker"
	"github.com/podforge/api/internal/model"
)

// Provider is the external transcription service surface the coordinator
// depends on.
type Provider interface {
	SubmitTranscript(ctx context.Context, audioURL, webhookURL string) (string, error)
	GetTranscript(ctx context.Context, jobID string) (*model.TranscriptResult, error)
}

// Config tunes the dual-mode completion wait.
type Config struct {
	// WebhookURL is the callback the provider POSTs to. Empty disables the
	// push path entirely and the coordinator polls from the start.
	WebhookURL string
	// WebhookWait bounds how long to block on the push signal before
	// falling back to polling.
	WebhookWait time.Duration
	// Polling backoff: start interval, multiplier, cap.
	PollInterval    time.Duration
	PollMultiplier  float64
	PollMaxInterval time.Duration
}

func (c *Config) setDefaults() {
	if c.WebhookWait <= 0 {
		c.WebhookWait = 90 * time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}
	if c.PollMultiplier < 1 {
		c.PollMultiplier = 1.5
	}
	if c.PollMaxInterval <= 0 {
		c.PollMaxInterval = 15 * time.Second
	}
}

// Coordinator manages one external transcription job per audio file with
// webhook and polling completion racing safely through PendingJobs.
type Coordinator struct {
	provider Provider
	pending  *PendingJobs
	cb       *breaker.CircuitBreaker
	cfg      Config
}

// NewCoordinator wires the coordinator. pending is shared with the webhook
// handler; cb is the transcription service breaker.
func NewCoordinator(provider Provider, pending *PendingJobs, cb *breaker.CircuitBreaker, cfg Config) *Coordinator {
	cfg.setDefaults()
	return &Coordinator{
		provider: provider,
		pending:  pending,
		cb:       cb,
		cfg:      cfg,
	}
}

// Submit registers the source audio with the provider and returns the
// provider-issued job id.
func (c *Coordinator) Submit(ctx context.Context, audioURL string) (string, error) {
	if err := c.cb.Allow(); err != nil {
		return "", err
	}
	jobID, err := c.provider.SubmitTranscript(ctx, audioURL, c.cfg.WebhookURL)
	if err != nil {
		c.cb.RecordFailure()
		return "", fmt.Errorf("failed to submit transcription: %w", err)
	}
	c.cb.RecordSuccess()
	log.Printf("[Transcription] submitted job %s", jobID)
	return jobID, nil
}

// HandleNotification is called by the webhook handler when the provider
// POSTs a completion. The payload carries only id and status; words are
// fetched by the waiting coordinator.
func (c *Coordinator) HandleNotification(jobID string, status model.TranscriptStatus) {
	log.Printf("[Transcription] webhook notification for job %s: %s", jobID, status)
	c.pending.Notify(jobID, &model.TranscriptResult{ID: jobID, Status: status})
}

// AwaitCompletion blocks until the job reaches a terminal state or timeout
// elapses, returning normalized word-level results. The push path is tried
// first when configured; polling covers the rest of the budget.
func (c *Coordinator) AwaitCompletion(ctx context.Context, jobID string, timeout time.Duration) ([]model.Word, error) {
	started := time.Now()
	deadline := started.Add(timeout)

	if c.cfg.WebhookURL != "" {
		ch := c.pending.Register(jobID)
		defer c.pending.Unregister(jobID)

		wait := c.cfg.WebhookWait
		if remaining := time.Until(deadline); wait > remaining {
			wait = remaining
		}

		select {
		case notified := <-ch:
			words, err := c.resolve(ctx, jobID, notified)
			if !errors.Is(err, errResultNotTerminal) {
				return words, err
			}
			log.Printf("[Transcription] job %s not terminal on re-fetch after webhook, polling", jobID)
		case <-time.After(wait):
			log.Printf("[Transcription] no webhook for job %s after %s, falling back to polling", jobID, wait.Round(time.Second))
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	interval := c.cfg.PollInterval
	for {
		if time.Now().After(deadline) {
			return nil, &TimeoutError{JobID: jobID, Elapsed: time.Since(started)}
		}

		result, err := c.fetch(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if result.Status == model.TranscriptCompleted || result.Status == model.TranscriptError {
			return c.finalize(jobID, result)
		}

		sleep := interval
		if remaining := time.Until(deadline); sleep > remaining {
			sleep = remaining
		}
		select {
		case <-time.After(sleep):
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		interval = time.Duration(float64(interval) * c.cfg.PollMultiplier)
		if interval > c.cfg.PollMaxInterval {
			interval = c.cfg.PollMaxInterval
		}
	}
}

// errResultNotTerminal signals that the provider's read endpoint has not
// caught up with its own webhook; the waiter falls back to polling.
var errResultNotTerminal = errors.New("transcript not yet terminal")

// resolve turns a webhook notification into a full result. The webhook body
// carries only id and status, so any terminal notification still costs one
// status fetch to pick up the words or the provider's error message.
func (c *Coordinator) resolve(ctx context.Context, jobID string, notified *model.TranscriptResult) ([]model.Word, error) {
	result := notified
	if result.Words == nil && result.Error == "" {
		full, err := c.fetch(ctx, jobID)
		if err != nil {
			return nil, err
		}
		result = full
	}
	if result.Status != model.TranscriptCompleted && result.Status != model.TranscriptError {
		return nil, errResultNotTerminal
	}
	return c.finalize(jobID, result)
}

func (c *Coordinator) fetch(ctx context.Context, jobID string) (*model.TranscriptResult, error) {
	if err := c.cb.Allow(); err != nil {
		return nil, err
	}
	result, err := c.provider.GetTranscript(ctx, jobID)
	if err != nil {
		c.cb.RecordFailure()
		return nil, fmt.Errorf("failed to fetch transcript %s: %w", jobID, err)
	}
	c.cb.RecordSuccess()
	return result, nil
}

// finalize validates a terminal result and normalizes its words.
func (c *Coordinator) finalize(jobID string, result *model.TranscriptResult) ([]model.Word, error) {
	if result.Status == model.TranscriptError {
		return nil, &ProviderError{JobID: jobID, Message: result.Error}
	}
	if result.ContentSafetyLabels != nil {
		// Filtering is disabled in every submit request; the provider
		// returning labels anyway is a contract violation, not a soft failure.
		return nil, &ContractError{JobID: jobID, Detail: "content safety labels present despite being disabled"}
	}
	words := BackfillSpeakers(result.Words, result.Utterances)
	return words, nil
}

// BackfillSpeakers copies utterance-level speaker tags onto words that
// lack one, matched by temporal overlap of the word and utterance windows.
func BackfillSpeakers(words []model.Word, utterances []model.Utterance) []model.Word {
	if len(words) == 0 || len(utterances) == 0 {
		return words
	}
	out := make([]model.Word, len(words))
	copy(out, words)
	for i := range out {
		if out[i].Speaker != "" {
			continue
		}
		for _, u := range utterances {
			if out[i].StartMs < u.EndMs && out[i].EndMs > u.StartMs {
				out[i].Speaker = u.Speaker
				break
			}
		}
	}
	return out
}
