package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/hibiken/asynq"

	"github.com/podforge/api/internal/dispatch"
	"github.com/podforge/api/internal/model"
	"github.com/podforge/api/internal/orchestrator"
)

// AssembleWorker consumes assembly tasks from the queue and routes them
// through the dispatcher, which decides between remote handoff, inline
// execution, and durable queueing.
type AssembleWorker struct {
	dispatcher *dispatch.Dispatcher
}

// NewAssembleWorker creates a new assembly worker.
func NewAssembleWorker(dispatcher *dispatch.Dispatcher) *AssembleWorker {
	return &AssembleWorker{dispatcher: dispatcher}
}

// ProcessTask handles one assembly task.
func (w *AssembleWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload model.AssembleTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %w", err)
	}
	if payload.EpisodeID == "" {
		return fmt.Errorf("assembly task missing episode id: %w", asynq.SkipRetry)
	}

	log.Printf("Starting assembly for episode: %s", payload.EpisodeID)

	route, err := w.dispatcher.Dispatch(ctx, payload.EpisodeID, dispatch.KindAssemble, t.Payload())
	if err != nil {
		if errors.Is(err, orchestrator.ErrAlreadyProcessing) {
			// Another run owns the episode; re-running would double-process.
			log.Printf("Episode %s already processing, dropping duplicate task", payload.EpisodeID)
			return nil
		}
		return fmt.Errorf("assembly of episode %s via %s failed: %w", payload.EpisodeID, route, err)
	}

	log.Printf("Assembly for episode %s routed to %s", payload.EpisodeID, route)
	return nil
}
