package middleware

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"

	"github.com/podforge/api/internal/client"
	"github.com/podforge/api/pkg/response"
)

// WorkerAuth guards the /tasks/* surface with the shared worker secret.
// Callers are other service instances or the task-queue dispatcher, never
// end users.
func WorkerAuth(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if secret == "" {
			return response.Forbidden(c, "Worker surface disabled: no secret configured")
		}
		got := c.Get(client.WorkerSecretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			return response.Unauthorized(c, "Invalid worker secret")
		}
		return c.Next()
	}
}
