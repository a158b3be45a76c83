package dispatch

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/podforge/api/internal/breaker"
	"github.com/podforge/api/internal/model"
	"github.com/podforge/api/internal/store"
)

// Route reports where a unit of work ended up.
type Route string

const (
	// RouteWorker: handed off to the remote assembly worker.
	RouteWorker Route = "worker"
	// RouteInline: executed in the calling process as a fallback.
	RouteInline Route = "inline"
	// RouteQueued: nowhere to run it; durably queued for scheduled retry.
	RouteQueued Route = "queued"
)

// Task kinds on the worker surface (POST /tasks/<kind>).
const (
	KindAssemble     = "assemble"
	KindProcessChunk = "process-chunk"
)

// Executor runs a unit of assembly work in the current process. The
// orchestrator provides the real implementation; tests provide fakes.
type Executor interface {
	Execute(ctx context.Context, kind string, payload []byte) error
}

// WorkerAPI is the remote worker transport surface.
type WorkerAPI interface {
	Probe(ctx context.Context, baseURL string) error
	Dispatch(ctx context.Context, baseURL, kind string, payload []byte) error
}

// Notifier receives operator notifications. Health transitions are
// reported exactly once per flip, not once per call.
type Notifier interface {
	Notify(ctx context.Context, text string)
}

// Config tunes the dispatcher.
type Config struct {
	// WorkerBaseURL is the preferred remote worker. Empty disables remote
	// dispatch entirely.
	WorkerBaseURL string
	// HealthCacheTTL caches the probe result so dispatch does not probe on
	// every call.
	HealthCacheTTL time.Duration
	// AllowInline permits in-process fallback execution.
	AllowInline bool
}

// Dispatcher routes assembly work to the remote worker when it is healthy,
// falls back to inline execution, and as a last resort records a durable
// queued task the retry manager will drain.
type Dispatcher struct {
	worker   WorkerAPI
	inline   Executor
	episodes store.EpisodeStore
	cb       *breaker.CircuitBreaker
	notifier Notifier
	cfg      Config

	mu          sync.Mutex
	healthy     bool
	healthKnown bool
	lastProbe   time.Time

	now func() time.Time
}

// NewDispatcher wires the dispatcher. inline may be nil when the process
// cannot execute assembly work itself. cb is the worker service breaker.
func NewDispatcher(worker WorkerAPI, inline Executor, episodes store.EpisodeStore, cb *breaker.CircuitBreaker, notifier Notifier, cfg Config) *Dispatcher {
	if cfg.HealthCacheTTL <= 0 {
		cfg.HealthCacheTTL = 30 * time.Second
	}
	return &Dispatcher{
		worker:   worker,
		inline:   inline,
		episodes: episodes,
		cb:       cb,
		notifier: notifier,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Dispatch routes one unit of work and returns which path was used so
// callers can decide on SLA handling. The error is non-nil only when the
// work itself ran and failed; a queued outcome is not an error.
func (d *Dispatcher) Dispatch(ctx context.Context, episodeID, kind string, payload []byte) (Route, error) {
	if d.cfg.WorkerBaseURL != "" && d.workerHealthy(ctx) {
		err := d.worker.Dispatch(ctx, d.cfg.WorkerBaseURL, kind, payload)
		if err == nil {
			d.cb.RecordSuccess()
			return RouteWorker, nil
		}
		// Handoff failure flips health so the next dispatch skips the probe.
		d.cb.RecordFailure()
		d.setHealth(ctx, false)
		log.Printf("[Dispatch] worker handoff failed for episode %s, falling back: %v", episodeID, err)
	}

	if d.cfg.AllowInline && d.inline != nil {
		log.Printf("[Dispatch] executing %s inline for episode %s", kind, episodeID)
		return RouteInline, d.inline.Execute(ctx, kind, payload)
	}

	if err := d.queueTask(ctx, episodeID, kind, payload); err != nil {
		return RouteQueued, fmt.Errorf("failed to queue assembly task: %w", err)
	}
	log.Printf("[Dispatch] no execution path for episode %s, queued for retry", episodeID)
	return RouteQueued, nil
}

// workerHealthy probes the remote worker, caching the result so repeated
// dispatches within the TTL stay cheap. Probes run behind the worker
// circuit breaker.
func (d *Dispatcher) workerHealthy(ctx context.Context) bool {
	d.mu.Lock()
	if d.healthKnown && d.now().Sub(d.lastProbe) < d.cfg.HealthCacheTTL {
		healthy := d.healthy
		d.mu.Unlock()
		return healthy
	}
	d.mu.Unlock()

	healthy := false
	if err := d.cb.Allow(); err != nil {
		log.Printf("[Dispatch] worker probe skipped: %v", err)
	} else if err := d.worker.Probe(ctx, d.cfg.WorkerBaseURL); err != nil {
		d.cb.RecordFailure()
		log.Printf("[Dispatch] worker probe failed: %v", err)
	} else {
		d.cb.RecordSuccess()
		healthy = true
	}

	d.setHealth(ctx, healthy)
	return healthy
}

// setHealth records the probe outcome and notifies the operator channel
// only when the state actually flips.
func (d *Dispatcher) setHealth(ctx context.Context, healthy bool) {
	d.mu.Lock()
	changed := !d.healthKnown || d.healthy != healthy
	d.healthy = healthy
	d.healthKnown = true
	d.lastProbe = d.now()
	d.mu.Unlock()

	if changed && d.notifier != nil {
		state := "unhealthy"
		if healthy {
			state = "healthy"
		}
		d.notifier.Notify(ctx, fmt.Sprintf("assembly worker %s is now %s", d.cfg.WorkerBaseURL, state))
	}
}

// queueTask records a durable queued marker on the episode and indexes it
// for the retry manager. The episode stays in a non-terminal status while
// the marker exists.
func (d *Dispatcher) queueTask(ctx context.Context, episodeID, kind string, payload []byte) error {
	ep, err := d.episodes.GetEpisode(ctx, episodeID)
	if err != nil {
		return err
	}
	ep.SetQueuedTask(&model.QueuedAssemblyTask{
		Kind:           kind,
		Payload:        payload,
		WorkerEndpoint: d.cfg.WorkerBaseURL,
		QueuedAt:       d.now(),
	})
	if err := d.episodes.SaveEpisode(ctx, ep); err != nil {
		return err
	}
	return d.episodes.AddQueued(ctx, episodeID)
}
