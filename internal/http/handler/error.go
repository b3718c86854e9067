package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"paustdb/internal/http/middleware"
	"paustdb/internal/service"
)

// errorPayload defines the standardized error response body.
type errorPayload struct {
	RequestID string        `json:"request_id"`
	Error     errorEnvelope `json:"error"`
}

type errorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// requestIDFromCtx extracts request_id previously stored by middleware.RequestID.
func requestIDFromCtx(c *fiber.Ctx) string {
	if v := c.Locals(middleware.RequestIDLocalKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// writeError writes a standardized JSON error response. message must be safe to show to clients.
func writeError(c *fiber.Ctx, status int, code, message string) error {
	res := errorPayload{
		RequestID: requestIDFromCtx(c),
		Error: errorEnvelope{
			Code:    code,
			Message: message,
		},
	}
	return c.Status(status).JSON(res)
}

// serviceErrors maps service sentinels to a status and error code. The sentinel text is the message.
var serviceErrors = []struct {
	err    error
	status int
	code   string
}{
	{service.ErrEmptyBatch, fiber.StatusBadRequest, "EMPTY_BATCH"},
	{service.ErrBatchTooLarge, fiber.StatusBadRequest, "BATCH_TOO_LARGE"},
	{service.ErrInvalidOwner, fiber.StatusBadRequest, "INVALID_OWNER"},
	{service.ErrInvalidQualifier, fiber.StatusBadRequest, "INVALID_QUALIFIER"},
	{service.ErrInvalidTimestamp, fiber.StatusBadRequest, "INVALID_TIMESTAMP"},
	{service.ErrInvalidRange, fiber.StatusBadRequest, "INVALID_RANGE"},
	{service.ErrInvalidID, fiber.StatusBadRequest, "INVALID_ID"},
	{service.ErrArchiveDisabled, fiber.StatusServiceUnavailable, "ARCHIVE_DISABLED"},
}

// writeServiceError translates a service error without leaking internal details.
func writeServiceError(c *fiber.Ctx, err error) error {
	for _, se := range serviceErrors {
		if errors.Is(err, se.err) {
			return writeError(c, se.status, se.code, se.err.Error())
		}
	}
	return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
}

// ErrorHandler returns a Fiber global error handler that standardizes error responses.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		}

		switch status {
		case fiber.StatusBadRequest:
			return writeError(c, status, "BAD_REQUEST", "bad request")
		case fiber.StatusNotFound:
			return writeError(c, status, "NOT_FOUND", "resource not found")
		case fiber.StatusMethodNotAllowed:
			return writeError(c, status, "METHOD_NOT_ALLOWED", "method not allowed")
		case fiber.StatusRequestEntityTooLarge:
			return writeError(c, status, "BODY_TOO_LARGE", "request body too large")
		default:
			return writeError(c, status, "INTERNAL_ERROR", "internal server error")
		}
	}
}
