package detectionHandler

import (
	"DriverWatch/internal/api/detection"
	"DriverWatch/internal/entity"
	"DriverWatch/internal/middleware"
	contextPkg "DriverWatch/pkg/context"
	"DriverWatch/pkg/handlerUtil"
	jwtPkg "DriverWatch/pkg/jwt"
	"DriverWatch/pkg/log"
	"DriverWatch/pkg/response"
	"DriverWatch/pkg/utils"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	jsoniter "github.com/json-iterator/go"
)

const streamReadTimeout = 60 * time.Second

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func (h *DetectionHandler) AnalyzeImage(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), h.timeout)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	fields := log.Fields{
		"request_id": requestID,
		"path":       ctx.Path(),
	}
	driver, driverErr := jwtPkg.GetDriver(ctx)
	if driverErr == nil {
		fields["driver_id"] = driver.DriverID
	}
	h.log.WithFields(fields).Debug("Processing attention analysis request")

	input, err := h.readInput(ctx)
	if err != nil {
		var validationErrs validatorErrors
		if errors.As(err, &validationErrs) {
			return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
		}
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "read_image")
	}
	input.Driver = driver

	result, err := h.detectionService.Analyze(c, input)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "analyze_image")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, result)
	}
}

func (h *DetectionHandler) GetMetrics(ctx *fiber.Ctx) error {
	errHandler := handlerUtil.New(h.log)
	return errHandler.HandleSuccess(ctx, fiber.StatusOK, h.detectionService.Metrics())
}

// readInput accepts a multipart upload under "file" or "image", or a JSON
// body carrying a base64 image.
func (h *DetectionHandler) readInput(ctx *fiber.Ctx) (detection.AnalyzeInput, error) {
	if strings.HasPrefix(ctx.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		var req detection.AnalyzeRequest
		if err := ctx.BodyParser(&req); err != nil {
			return detection.AnalyzeInput{}, response.Wrap(detection.ErrBadRequest, err)
		}
		return h.decodeRequest(req)
	}

	for _, field := range []string{"file", "image"} {
		file, err := ctx.FormFile(field)
		if err != nil {
			continue
		}

		if err := h.utils.ValidateImageFile(file); err != nil {
			return detection.AnalyzeInput{}, uploadError(err)
		}

		content, err := file.Open()
		if err != nil {
			return detection.AnalyzeInput{}, response.Wrap(detection.ErrBadRequest, err)
		}
		defer content.Close()

		data, err := h.utils.ReadFile(content)
		if err != nil {
			return detection.AnalyzeInput{}, response.Wrap(detection.ErrBadRequest, err)
		}

		return detection.AnalyzeInput{FileName: file.Filename, Data: data}, nil
	}

	return detection.AnalyzeInput{}, response.Wrap(detection.ErrInvalidImage, utils.ErrNoFile)
}

func (h *DetectionHandler) decodeRequest(req detection.AnalyzeRequest) (detection.AnalyzeInput, error) {
	if err := h.validator.Struct(req); err != nil {
		return detection.AnalyzeInput{}, validatorErrors{err}
	}

	data, err := h.utils.DecodeBase64Image(req.ImageBase64)
	if err != nil {
		return detection.AnalyzeInput{}, response.Wrap(detection.ErrInvalidImage, err)
	}

	name := req.FileName
	if name == "" {
		name = "upload.jpg"
	}
	return detection.AnalyzeInput{FileName: name, Data: data}, nil
}

// handleStream analyzes every frame a client sends and answers each with
// either a result or a StreamError. A failed frame never closes the stream.
func (h *DetectionHandler) handleStream(c *websocket.Conn) {
	connID, _ := c.Locals(middleware.RequestIDKey).(string)
	if connID == "" {
		connID = "stream"
	}
	driver, _ := c.Locals(jwtPkg.DriverLocalsKey).(entity.DriverIdentity)

	h.detectionService.StreamOpened()
	defer h.detectionService.StreamClosed()

	h.log.WithField("request_id", connID).Info("Drowsiness stream client connected")
	defer h.log.WithField("request_id", connID).Info("Drowsiness stream client disconnected")

	c.SetPingHandler(func(data string) error {
		if err := c.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(5*time.Second)); err != nil {
			h.log.Errorf("Error sending pong: %v", err)
		}
		return nil
	})

	var sequence int64
	for {
		if err := c.SetReadDeadline(time.Now().Add(streamReadTimeout)); err != nil {
			h.log.Errorf("Error setting read deadline: %v", err)
			break
		}

		messageType, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Errorf("Drowsiness stream error: %v", err)
			}
			break
		}

		sequence++
		requestID := fmt.Sprintf("%s-%d", connID, sequence)

		var reply interface{}
		result, err := h.analyzeMessage(requestID, driver, messageType, message)
		if err != nil {
			_, msg, code := handlerUtil.Classify(err)
			h.log.WithFields(log.Fields{
				"request_id": requestID,
				"error":      err.Error(),
				"code":       code,
			}).Warn("Stream frame failed")
			reply = detection.StreamError{Error: msg, Code: code, Sequence: sequence, RequestID: requestID}
		} else {
			reply = result
		}

		if err := c.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
			h.log.Errorf("Error setting write deadline: %v", err)
			break
		}

		if err := c.WriteJSON(reply); err != nil {
			h.log.Errorf("Error writing JSON response: %v", err)
			break
		}
	}
}

func (h *DetectionHandler) analyzeMessage(requestID string, driver entity.DriverIdentity, messageType int, message []byte) (interface{}, error) {
	var input detection.AnalyzeInput

	switch messageType {
	case websocket.BinaryMessage:
		input = detection.AnalyzeInput{FileName: "frame.jpg", Data: message}
	case websocket.TextMessage:
		var req detection.AnalyzeRequest
		if err := json.Unmarshal(message, &req); err != nil {
			return nil, response.Wrap(detection.ErrBadRequest, err)
		}
		decoded, err := h.decodeRequest(req)
		var validationErrs validatorErrors
		if errors.As(err, &validationErrs) {
			return nil, response.Wrap(detection.ErrBadRequest, err)
		}
		if err != nil {
			return nil, err
		}
		input = decoded
	default:
		return nil, detection.ErrBadRequest
	}
	input.Driver = driver

	ctx, cancel := context.WithTimeout(contextPkg.WithRequestID(context.Background(), requestID), h.timeout)
	defer cancel()

	return h.detectionService.Analyze(ctx, input)
}

func uploadError(err error) error {
	switch {
	case errors.Is(err, utils.ErrFileTooLarge):
		return response.Wrap(detection.ErrImageTooLarge, err)
	case errors.Is(err, utils.ErrNotImage), errors.Is(err, utils.ErrNoFile):
		return response.Wrap(detection.ErrInvalidImage, err)
	default:
		return response.Wrap(detection.ErrBadRequest, err)
	}
}

type validatorErrors struct {
	err error
}

func (v validatorErrors) Error() string {
	return v.err.Error()
}

func (v validatorErrors) Unwrap() error {
	return v.err
}
