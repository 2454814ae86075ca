package serverutils

import (
	"errors"

	"ai-helpdesk-be/pkg/rag/session"

	"github.com/gofiber/fiber/v2"
)

// StatusFor maps domain errors to HTTP status codes
func StatusFor(err error) int {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, ErrValidation), errors.Is(err, session.ErrInvalidInput):
		return fiber.StatusBadRequest
	case errors.Is(err, session.ErrSessionNotFound):
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}

// ErrorHandlerMiddleware renders any error returned down the chain as the JSON envelope.
// Internal errors are not echoed to the client.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		code := StatusFor(err)
		message := err.Error()
		if code == fiber.StatusInternalServerError {
			message = "Internal server error"
		}
		return ctx.Status(code).JSON(ErrorResponse(code, message))
	}
}
