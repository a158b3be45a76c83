package handler

import (
	"log"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/podforge/api/internal/model"
	"github.com/podforge/api/internal/transcription"
	"github.com/podforge/api/pkg/response"
)

type WebhookHandler struct {
	coordinator *transcription.Coordinator
	validator   *validator.Validate
}

func NewWebhookHandler(coordinator *transcription.Coordinator, v *validator.Validate) *WebhookHandler {
	return &WebhookHandler{
		coordinator: coordinator,
		validator:   v,
	}
}

// Transcription handles POST /webhooks/transcription, the provider's
// completion callback. The body carries only the job id and status; the
// coordinator re-fetches the full transcript. Always returns 204 so the
// provider does not retry callbacks we cannot use.
func (h *WebhookHandler) Transcription(c *fiber.Ctx) error {
	var payload model.TranscriptWebhookPayload
	if err := c.BodyParser(&payload); err != nil {
		log.Printf("[Webhook] unreadable transcription callback: %v", err)
		return response.NoContent(c)
	}
	if err := h.validator.Struct(&payload); err != nil {
		log.Printf("[Webhook] transcription callback missing fields: %v", err)
		return response.NoContent(c)
	}

	h.coordinator.HandleNotification(payload.TranscriptID, payload.Status)
	return response.NoContent(c)
}
