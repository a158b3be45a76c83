package dispatch

import (
	"context"
	"log"
	"time"

	"github.com/podforge/api/internal/store"
)

// RetryConfig tunes the queued-task retry schedule: a tight interval while
// the task is young, a relaxed one once it has been queued past the window.
type RetryConfig struct {
	TightInterval   time.Duration
	RelaxedInterval time.Duration
	TightWindow     time.Duration
}

func (c *RetryConfig) setDefaults() {
	if c.TightInterval <= 0 {
		c.TightInterval = 60 * time.Second
	}
	if c.RelaxedInterval <= 0 {
		c.RelaxedInterval = 600 * time.Second
	}
	if c.TightWindow <= 0 {
		c.TightWindow = time.Hour
	}
}

// RetryStats summarizes one retry sweep.
type RetryStats struct {
	Queued  int `json:"queued"`
	Retried int `json:"retried"`
	Failed  int `json:"failed"`
}

// RetryManager drains episodes whose assembly work could not be dispatched
// anywhere. Safe to invoke repeatedly and concurrently: eligibility is
// re-checked against the persisted last_retry_at immediately before each
// attempt is claimed, so two sweeps never double-dispatch one task.
type RetryManager struct {
	episodes      store.EpisodeStore
	worker        WorkerAPI
	workerBaseURL string
	cfg           RetryConfig
}

// NewRetryManager wires the manager.
func NewRetryManager(episodes store.EpisodeStore, worker WorkerAPI, workerBaseURL string, cfg RetryConfig) *RetryManager {
	cfg.setDefaults()
	return &RetryManager{
		episodes:      episodes,
		worker:        worker,
		workerBaseURL: workerBaseURL,
		cfg:           cfg,
	}
}

// RetryQueued scans the queued index and re-dispatches eligible tasks.
func (m *RetryManager) RetryQueued(ctx context.Context, now time.Time) (RetryStats, error) {
	var stats RetryStats

	ids, err := m.episodes.ListQueued(ctx)
	if err != nil {
		return stats, err
	}

	for _, id := range ids {
		outcome := m.retryOne(ctx, id, now)
		switch outcome {
		case retryOutcomeWaiting:
			stats.Queued++
		case retryOutcomeDispatched:
			stats.Retried++
		case retryOutcomeFailed:
			stats.Failed++
		}
	}

	if stats.Retried > 0 || stats.Failed > 0 {
		log.Printf("[QueueRetry] sweep: %d waiting, %d retried, %d failed", stats.Queued, stats.Retried, stats.Failed)
	}
	return stats, nil
}

type retryOutcome int

const (
	retryOutcomeSkipped retryOutcome = iota
	retryOutcomeWaiting
	retryOutcomeDispatched
	retryOutcomeFailed
)

func (m *RetryManager) retryOne(ctx context.Context, episodeID string, now time.Time) retryOutcome {
	// Reload right before claiming so a concurrent sweep's claim is seen.
	ep, err := m.episodes.GetEpisode(ctx, episodeID)
	if err != nil {
		log.Printf("[QueueRetry] failed to load episode %s: %v", episodeID, err)
		return retryOutcomeFailed
	}

	task, err := ep.QueuedTask()
	if err != nil {
		log.Printf("[QueueRetry] corrupt queued task on episode %s: %v", episodeID, err)
		return retryOutcomeFailed
	}
	if task == nil || ep.Status.IsTerminal() {
		// Stale index entry: the task was drained or the episode finished
		// some other way.
		_ = m.episodes.RemoveQueued(ctx, episodeID)
		return retryOutcomeSkipped
	}

	interval := m.cfg.TightInterval
	if now.Sub(task.QueuedAt) >= m.cfg.TightWindow {
		interval = m.cfg.RelaxedInterval
	}
	last := task.QueuedAt
	if task.LastRetryAt != nil {
		last = *task.LastRetryAt
	}
	if now.Sub(last) < interval {
		return retryOutcomeWaiting
	}

	// Claim the attempt before dispatching so concurrent sweeps back off.
	task.LastRetryAt = &now
	task.RetryCount++
	ep.SetQueuedTask(task)
	if err := m.episodes.SaveEpisode(ctx, ep); err != nil {
		log.Printf("[QueueRetry] failed to claim retry for episode %s: %v", episodeID, err)
		return retryOutcomeFailed
	}

	// The originally targeted worker may have recovered; probe it before
	// the currently configured one.
	endpoint := m.pickEndpoint(ctx, task.WorkerEndpoint)
	if endpoint == "" {
		log.Printf("[QueueRetry] no reachable worker for episode %s (attempt %d)", episodeID, task.RetryCount)
		return retryOutcomeFailed
	}

	if err := m.worker.Dispatch(ctx, endpoint, task.Kind, task.Payload); err != nil {
		log.Printf("[QueueRetry] re-dispatch of episode %s to %s failed: %v", episodeID, endpoint, err)
		return retryOutcomeFailed
	}

	// The handoff is synchronous, so the worker has already run the episode
	// through its normal transitions. Drain the marker.
	fresh, err := m.episodes.GetEpisode(ctx, episodeID)
	if err == nil {
		fresh.ClearQueuedTask()
		if err := m.episodes.SaveEpisode(ctx, fresh); err != nil {
			log.Printf("[QueueRetry] failed to clear queued marker on episode %s: %v", episodeID, err)
		}
	}
	_ = m.episodes.RemoveQueued(ctx, episodeID)
	log.Printf("[QueueRetry] episode %s re-dispatched to %s after %d attempts", episodeID, endpoint, task.RetryCount)
	return retryOutcomeDispatched
}

func (m *RetryManager) pickEndpoint(ctx context.Context, original string) string {
	if original != "" && m.worker.Probe(ctx, original) == nil {
		return original
	}
	if m.workerBaseURL != "" && m.workerBaseURL != original && m.worker.Probe(ctx, m.workerBaseURL) == nil {
		return m.workerBaseURL
	}
	return ""
}
