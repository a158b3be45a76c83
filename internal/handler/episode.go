package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/podforge/api/internal/middleware"
	"github.com/podforge/api/internal/model"
	"github.com/podforge/api/internal/service"
	"github.com/podforge/api/internal/store"
	"github.com/podforge/api/pkg/response"
)

type EpisodeHandler struct {
	service   *service.EpisodeService
	validator *validator.Validate
}

func NewEpisodeHandler(svc *service.EpisodeService, v *validator.Validate) *EpisodeHandler {
	return &EpisodeHandler{
		service:   svc,
		validator: v,
	}
}

// Create handles POST /api/episodes
func (h *EpisodeHandler) Create(c *fiber.Ctx) error {
	var req model.CreateEpisodeRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.CreateEpisode(c.Context(), middleware.GetUserID(c), &req)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.Created(c, result)
}

// Assemble handles POST /api/episodes/:id/assemble
func (h *EpisodeHandler) Assemble(c *fiber.Ctx) error {
	episodeID := c.Params("id")
	if episodeID == "" {
		return response.ValidationError(c, "Episode ID is required", nil)
	}

	result, err := h.service.StartAssembly(c.Context(), middleware.GetUserID(c), episodeID)
	if err != nil {
		return h.mapError(c, err)
	}

	return response.Accepted(c, result)
}

// Status handles GET /api/episodes/:id
func (h *EpisodeHandler) Status(c *fiber.Ctx) error {
	episodeID := c.Params("id")
	if episodeID == "" {
		return response.ValidationError(c, "Episode ID is required", nil)
	}

	result, err := h.service.GetEpisode(c.Context(), middleware.GetUserID(c), episodeID)
	if err != nil {
		return h.mapError(c, err)
	}

	return response.OK(c, result)
}

// Decision handles POST /api/episodes/:id/decision
func (h *EpisodeHandler) Decision(c *fiber.Ctx) error {
	episodeID := c.Params("id")
	if episodeID == "" {
		return response.ValidationError(c, "Episode ID is required", nil)
	}

	var req model.DecisionRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	result, err := h.service.RecordDecision(c.Context(), middleware.GetUserID(c), episodeID, req.UseAdvancedProvider)
	if err != nil {
		return h.mapError(c, err)
	}

	return response.Accepted(c, result)
}

func (h *EpisodeHandler) mapError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return response.NotFound(c, "Episode not found")
	case errors.Is(err, service.ErrForbidden):
		return response.Forbidden(c, "Episode belongs to another user")
	case errors.Is(err, service.ErrNotAssemblable):
		return response.ValidationError(c, "Episode cannot be assembled in its current status", nil)
	case errors.Is(err, service.ErrNotAwaitingDecision):
		return response.ValidationError(c, "Episode is not awaiting an audio decision", nil)
	default:
		return response.ServiceError(c, err.Error())
	}
}

func formatValidationErrors(err error) interface{} {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		errors := make(map[string]string)
		for _, e := range validationErrors {
			errors[e.Field()] = e.Tag()
		}
		return errors
	}
	return nil
}
