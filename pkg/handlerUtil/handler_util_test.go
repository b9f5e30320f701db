package handlerUtil

import (
	"DriverWatch/internal/api/detection"
	"DriverWatch/pkg/response"
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"decode", response.Wrap(detection.ErrImageDecode, errors.New("png: invalid format")), http.StatusUnprocessableEntity, "IMAGE_DECODE_ERROR"},
		{"inference", fmt.Errorf("analyze: %w", detection.ErrModelInference), http.StatusBadGateway, "MODEL_INFERENCE_ERROR"},
		{"too large", detection.ErrImageTooLarge, http.StatusRequestEntityTooLarge, "IMAGE_TOO_LARGE"},
		{"unlisted response error", response.NewError(http.StatusConflict, "conflict"), http.StatusConflict, "ERROR"},
		{"deadline", fmt.Errorf("landmarks: %w", context.DeadlineExceeded), http.StatusRequestTimeout, "REQUEST_TIMEOUT"},
		{"canceled", fmt.Errorf("analysis aborted: %w", context.Canceled), StatusClientClosedRequest, "REQUEST_CANCELED"},
		{"fiber", fiber.ErrUnauthorized, http.StatusUnauthorized, "HTTP_ERROR"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_SERVER_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _, code := Classify(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, code)
		})
	}
}

func TestClassifyUsesSentinelMessage(t *testing.T) {
	_, msg, _ := Classify(response.Wrap(detection.ErrModelInference, errors.New("socket reset")))
	assert.Equal(t, "model inference error", msg)
}

func TestErrorCodeUnknown(t *testing.T) {
	assert.Empty(t, ErrorCode(errors.New("plain")))
}
