package serverutils

import (
	"context"
	"errors"

	"marketplace-chat-be/internal/entity"

	"github.com/gofiber/fiber/v2"
)

// StatusFor maps domain errors onto HTTP status codes.
func StatusFor(err error) int {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}

	switch {
	case errors.Is(err, entity.ErrUnauthorized):
		return fiber.StatusUnauthorized
	case errors.Is(err, entity.ErrForbidden):
		return fiber.StatusForbidden
	case errors.Is(err, entity.ErrSelfConversation),
		errors.Is(err, entity.ErrInvalidArgument):
		return fiber.StatusBadRequest
	case errors.Is(err, entity.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, entity.ErrTimeout),
		errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout
	case errors.Is(err, entity.ErrPersistence),
		errors.Is(err, entity.ErrSubscription):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		status := StatusFor(err)
		message := err.Error()
		if status == fiber.StatusInternalServerError {
			message = "Internal server error"
		}

		var verr *ValidationError
		if errors.As(err, &verr) {
			return ctx.Status(status).JSON(ErrorResponse(status, "Validation failed", verr.Fields))
		}
		return ctx.Status(status).JSON(ErrorResponse(status, message, nil))
	}
}
