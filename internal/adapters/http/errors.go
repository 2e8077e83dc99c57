package http

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/cityview/internal/core/domain"
)

// APIError is a structured error response.
type APIError struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`    // Error code: bad_request, unknown_view, service_error, etc.
	Message   string `json:"message"` // Human-readable message
	RequestID string `json:"request_id,omitempty"`
}

// newError builds a JSON error response with a request ID.
func newError(c *fiber.Ctx, status int, code string, message string) error {
	reqID, _ := c.Locals("requestid").(string)
	return c.Status(status).JSON(APIError{
		Status:    status,
		Code:      code,
		Message:   message,
		RequestID: reqID,
	})
}

// errBadRequest returns a 400 error.
func errBadRequest(c *fiber.Ctx, msg string) error {
	return newError(c, 400, "bad_request", msg)
}

// errInternal returns a 500 error.
func errInternal(c *fiber.Ctx, msg string) error {
	return newError(c, 500, "internal_error", msg)
}

// errFromDomain maps domain errors onto API errors.
func errFromDomain(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrUnknownView):
		return newError(c, 404, "unknown_view", err.Error())
	case errors.Is(err, domain.ErrNotFetchable):
		return newError(c, 400, "not_fetchable", err.Error())
	}
	if fe, ok := domain.AsFetchError(err); ok {
		if fe.Kind == domain.KindNetwork && errors.Is(err, context.DeadlineExceeded) {
			return newError(c, 504, string(fe.Kind), err.Error())
		}
		return newError(c, 502, string(fe.Kind), err.Error())
	}
	return errInternal(c, err.Error())
}
