package worker

import (
	"context"
	"time"

	"github.com/hibiken/asynq"

	"github.com/podforge/api/internal/dispatch"
)

// RetryWorker runs the scheduled sweep over queued assembly tasks.
type RetryWorker struct {
	manager *dispatch.RetryManager
}

// NewRetryWorker creates a new retry worker.
func NewRetryWorker(manager *dispatch.RetryManager) *RetryWorker {
	return &RetryWorker{manager: manager}
}

// ProcessTask handles one scheduled retry sweep. Sweep errors are
// returned so asynq surfaces them, but individual task failures are
// absorbed by the manager and picked up on the next sweep.
func (w *RetryWorker) ProcessTask(ctx context.Context, _ *asynq.Task) error {
	_, err := w.manager.RetryQueued(ctx, time.Now())
	return err
}
