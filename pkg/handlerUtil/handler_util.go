package handlerUtil

import (
	"DriverWatch/internal/api/detection"
	"DriverWatch/pkg/log"
	"DriverWatch/pkg/response"
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	Details   string `json:"details,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	TraceID   string `json:"trace_id,omitempty"`
}

// StatusClientClosedRequest marks work abandoned because the caller went away.
const StatusClientClosedRequest = 499

type ErrorHandler struct {
	logger *logrus.Logger
}

func New(logger *logrus.Logger) *ErrorHandler {
	return &ErrorHandler{
		logger: logger,
	}
}

var errorCodes = []struct {
	err  error
	code string
}{
	{detection.ErrImageDecode, "IMAGE_DECODE_ERROR"},
	{detection.ErrModelInference, "MODEL_INFERENCE_ERROR"},
	{detection.ErrInvalidImage, "INVALID_IMAGE"},
	{detection.ErrImageTooLarge, "IMAGE_TOO_LARGE"},
	{detection.ErrScratchStorage, "SCRATCH_STORAGE_ERROR"},
	{detection.ErrDetectorUnavailable, "DETECTOR_UNAVAILABLE"},
	{detection.ErrBadRequest, "BAD_REQUEST"},
	{detection.ErrInternalServerError, "INTERNAL_SERVER_ERROR"},
}

// ErrorCode returns the machine readable code for a domain error, or an
// empty string when the error is not one.
func ErrorCode(err error) string {
	for _, e := range errorCodes {
		if errors.Is(err, e.err) {
			return e.code
		}
	}
	return ""
}

// Classify resolves an error to its HTTP status, public message and code.
func Classify(err error) (status int, message string, code string) {
	var respErr *response.Error
	var fiberErr *fiber.Error

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusRequestTimeout, utils.StatusMessage(fiber.StatusRequestTimeout), "REQUEST_TIMEOUT"
	case errors.Is(err, context.Canceled):
		return StatusClientClosedRequest, "request canceled by client", "REQUEST_CANCELED"
	case errors.As(err, &respErr):
		code = ErrorCode(err)
		if code == "" {
			code = "ERROR"
		}
		return respErr.Code, respErr.Error(), code
	case errors.As(err, &fiberErr):
		return fiberErr.Code, fiberErr.Message, "HTTP_ERROR"
	default:
		return fiber.StatusInternalServerError, "An unexpected error occurred", "INTERNAL_SERVER_ERROR"
	}
}

func (h *ErrorHandler) Handle(c *fiber.Ctx, requestID string, err error, path string, operation string) error {
	status, message, code := Classify(err)

	fields := log.Fields{
		"request_id": requestID,
		"error":      err.Error(),
		"code":       code,
		"status":     status,
		"path":       path,
		"operation":  operation,
	}

	body := ErrorResponse{
		Error:     message,
		Code:      code,
		RequestID: requestID,
	}

	if status >= fiber.StatusInternalServerError {
		body.TraceID = uuid.NewString()
		fields["trace_id"] = body.TraceID
		h.logger.WithFields(fields).Error("Operation failed")
	} else {
		body.Details = err.Error()
		h.logger.WithFields(fields).Warn("Operation failed with error response")
	}

	return c.Status(status).JSON(body)
}

func (h *ErrorHandler) HandleValidationError(c *fiber.Ctx, requestID string, err error, path string) error {
	h.logger.WithFields(log.Fields{
		"request_id": requestID,
		"error":      err.Error(),
		"path":       path,
	}).Warn("Validation failed")

	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
		Error:     "Validation failed: " + err.Error(),
		Code:      "VALIDATION_ERROR",
		RequestID: requestID,
	})
}

func (h *ErrorHandler) HandleRequestTimeout(c *fiber.Ctx) error {
	return c.Status(fiber.StatusRequestTimeout).JSON(ErrorResponse{
		Error: utils.StatusMessage(fiber.StatusRequestTimeout),
		Code:  "REQUEST_TIMEOUT",
	})
}

func (h *ErrorHandler) HandleUnauthorized(c *fiber.Ctx, requestID string, message string) error {
	h.logger.WithFields(log.Fields{
		"request_id": requestID,
		"path":       c.Path(),
		"message":    message,
	}).Warn("Unauthorized access")

	return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
		Error:     message,
		Code:      "UNAUTHORIZED",
		RequestID: requestID,
	})
}

func (h *ErrorHandler) HandleSuccess(c *fiber.Ctx, statusCode int, data interface{}) error {
	if data == nil {
		return c.SendStatus(statusCode)
	}
	return c.Status(statusCode).JSON(data)
}
