package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/podforge/api/internal/breaker"
	"github.com/podforge/api/internal/transcription"
)

// HealthHandler serves GET /health. Peer instances probe it before
// handing assembly work off, so it reports breaker states and the
// configured external surface, not just liveness.
type HealthHandler struct {
	breakers *breaker.Registry
	pending  *transcription.PendingJobs
	services map[string]bool
}

func NewHealthHandler(breakers *breaker.Registry, pending *transcription.PendingJobs, services map[string]bool) *HealthHandler {
	return &HealthHandler{
		breakers: breakers,
		pending:  pending,
		services: services,
	}
}

// Check handles GET /health
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":             "ok",
		"services":           h.services,
		"breakers":           h.breakers.States(),
		"pendingTranscripts": h.pending.Len(),
	})
}
