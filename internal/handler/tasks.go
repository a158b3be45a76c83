package handler

import (
	"errors"
	"fmt"
	"log"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/podforge/api/internal/audio"
	"github.com/podforge/api/internal/client"
	"github.com/podforge/api/internal/model"
	"github.com/podforge/api/internal/orchestrator"
	"github.com/podforge/api/internal/ttsengine"
	"github.com/podforge/api/pkg/response"
)

// TaskHandler is the remote worker surface. Peer instances hand assembly
// work off to POST /tasks/<kind> when this instance answers the health
// probe; requests are authenticated by the shared worker secret.
type TaskHandler struct {
	orchestrator *orchestrator.Orchestrator
	pipeline     *ttsengine.Pipeline
	storage      client.StorageClient
	validator    *validator.Validate
}

func NewTaskHandler(orch *orchestrator.Orchestrator, pipeline *ttsengine.Pipeline, storage client.StorageClient, v *validator.Validate) *TaskHandler {
	return &TaskHandler{
		orchestrator: orch,
		pipeline:     pipeline,
		storage:      storage,
		validator:    v,
	}
}

// Assemble handles POST /tasks/assemble. A non-2xx answer tells the
// dispatching instance the handoff failed so it can fall back.
func (h *TaskHandler) Assemble(c *fiber.Ctx) error {
	var payload model.AssembleTaskPayload
	if err := c.BodyParser(&payload); err != nil {
		return response.ValidationError(c, "Invalid task payload", nil)
	}
	if payload.EpisodeID == "" {
		return response.ValidationError(c, "Episode ID is required", nil)
	}

	result, err := h.orchestrator.Run(c.Context(), payload.EpisodeID)
	if err != nil {
		if errors.Is(err, orchestrator.ErrAlreadyProcessing) {
			// Another run owns the episode; the handoff is effectively done.
			return response.Accepted(c, fiber.Map{"episodeId": payload.EpisodeID, "status": model.StatusProcessing})
		}
		log.Printf("[Tasks] assemble failed for episode %s: %v", payload.EpisodeID, err)
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, result)
}

// ProcessChunk handles POST /tasks/process-chunk: synthesize one script
// chunk and store the PCM artifact.
func (h *TaskHandler) ProcessChunk(c *fiber.Ctx) error {
	var req model.ProcessChunkRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	seg, err := h.pipeline.Render(c.Context(), req.ChunkText, req.Voice)
	if err != nil {
		return response.AIError(c, fmt.Sprintf("chunk synthesis failed: %v", err))
	}

	key := fmt.Sprintf("episodes/%s/chunks/%s.pcm", req.EpisodeID, uuid.New().String())
	url, err := h.storage.UploadBytes(c.Context(), key, audio.EncodePCM16(seg), "application/octet-stream")
	if err != nil {
		return response.ServiceError(c, fmt.Sprintf("failed to store chunk: %v", err))
	}

	return response.OK(c, &model.ProcessChunkResponse{
		AudioURL:   url,
		DurationMs: float64(seg.Duration().Milliseconds()),
	})
}
