package detectionHandler

import (
	detectionService "DriverWatch/internal/api/detection/service"
	"DriverWatch/internal/middleware"
	"DriverWatch/pkg/utils"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
)

const defaultRequestTimeout = 15 * time.Second

type DetectionHandler struct {
	log              *logrus.Logger
	validator        *validator.Validate
	middleware       middleware.Middleware
	detectionService detectionService.IDetectionService
	utils            utils.IUtils
	timeout          time.Duration
}

func New(
	log *logrus.Logger,
	validator *validator.Validate,
	middleware middleware.Middleware,
	ds detectionService.IDetectionService,
	utils utils.IUtils,
	timeout time.Duration,
) *DetectionHandler {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &DetectionHandler{
		detectionService: ds,
		log:              log,
		validator:        validator,
		middleware:       middleware,
		utils:            utils,
		timeout:          timeout,
	}
}

func (h *DetectionHandler) Start(srv fiber.Router) {
	wsMiddleware := func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}

	srv.Post("/analyze-image", h.middleware.NewRateLimiter, h.middleware.NewTokenMiddleware, h.AnalyzeImage)

	drowsiness := srv.Group("/drowsiness")
	drowsiness.Post("/analyze", h.middleware.NewRateLimiter, h.middleware.NewTokenMiddleware, h.AnalyzeImage)
	drowsiness.Get("/metrics", h.GetMetrics)

	drowsiness.Use("/ws", wsMiddleware, h.middleware.NewTokenMiddleware)
	drowsiness.Get("/ws", websocket.New(h.handleStream))
}
