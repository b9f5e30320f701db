package config

import (
	detectionHandler "DriverWatch/internal/api/detection/handler"
	detectionService "DriverWatch/internal/api/detection/service"
	"DriverWatch/internal/middleware"
	"DriverWatch/pkg/alert"
	"DriverWatch/pkg/gemini"
	"DriverWatch/pkg/metrics"
	mqttPkg "DriverWatch/pkg/mqtt"
	"DriverWatch/pkg/redis"
	"DriverWatch/pkg/scratch"
	"DriverWatch/pkg/utils"
	websocketPkg "DriverWatch/pkg/websocket"
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type ServerOption func(*Server) error

type Server struct {
	engine       *fiber.App
	cfg          *AppConfig
	log          *logrus.Logger
	middleware   middleware.Middleware
	validator    *validator.Validate
	utils        utils.IUtils
	handlers     []handler
	redisServer  redis.IRedis
	aiWebsocket  websocketPkg.IWebsocket
	geminiClient gemini.IGemini
	detector     detectionService.ObjectDetector
	scratchStore scratch.Store
	metrics      *metrics.Metrics
	publisher    mqttPkg.IPublisher
}

type handler interface {
	Start(srv fiber.Router)
}

func NewServer(options ...ServerOption) (*Server, error) {
	server := &Server{metrics: metrics.New()}

	for _, option := range options {
		if err := option(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if server.engine == nil {
		return nil, fmt.Errorf("fiber app is required")
	}
	if server.log == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if server.cfg == nil {
		return nil, fmt.Errorf("app config is required")
	}
	if server.aiWebsocket == nil {
		return nil, fmt.Errorf("face mesh client is required")
	}
	if server.scratchStore == nil {
		return nil, fmt.Errorf("scratch store is required")
	}

	return server, nil
}

func WithFiber(fiberApp *fiber.App) ServerOption {
	return func(s *Server) error {
		s.engine = fiberApp
		return nil
	}
}

func WithLogger(logger *logrus.Logger) ServerOption {
	return func(s *Server) error {
		s.log = logger
		return nil
	}
}

func WithAppConfig(cfg *AppConfig) ServerOption {
	return func(s *Server) error {
		s.cfg = cfg
		return nil
	}
}

func WithValidator(validator *validator.Validate) ServerOption {
	return func(s *Server) error {
		s.validator = validator
		return nil
	}
}

// WithRedisServer enables shared rate limiting. A nil client keeps the
// in-memory limiter.
func WithRedisServer(redisServer redis.IRedis) ServerOption {
	return func(s *Server) error {
		s.redisServer = redisServer
		return nil
	}
}

func WithWebSocket(webSocket websocketPkg.IWebsocket) ServerOption {
	return func(s *Server) error {
		s.aiWebsocket = webSocket
		return nil
	}
}

// WithAlertPublisher forwards fatigue and distraction alerts to MQTT. A nil
// publisher disables it.
func WithAlertPublisher(publisher mqttPkg.IPublisher) ServerOption {
	return func(s *Server) error {
		s.publisher = publisher
		return nil
	}
}

func WithScratch(store scratch.Store) ServerOption {
	return func(s *Server) error {
		s.scratchStore = store
		return nil
	}
}

// WithObjectDetector picks the object detector named by OBJECT_DETECTOR.
// It must run after WithWebSocket and WithScratch.
func WithObjectDetector() ServerOption {
	return func(s *Server) error {
		if s.cfg == nil {
			return fmt.Errorf("app config must be loaded before object detector")
		}

		switch s.cfg.ObjectDetector {
		case "websocket":
			if s.aiWebsocket == nil {
				return fmt.Errorf("websocket client must be set before object detector")
			}
			s.detector = s.aiWebsocket
		case "gemini":
			client, err := gemini.NewGeminiClient(gemini.Config{
				APIKey:    s.cfg.GeminiAPIKey,
				ModelName: s.cfg.GeminiModelName,
				Labels:    append(append([]string{}, s.cfg.FatigueLabels...), s.cfg.DistractionLabels...),
			}, s.scratchStore)
			if err != nil {
				if s.log != nil {
					s.log.Errorf("Failed to create Gemini client: %v", err)
				}
				return fmt.Errorf("failed to create Gemini client: %w", err)
			}
			s.geminiClient = client
			s.detector = client
		default:
			s.detector = nil
		}
		return nil
	}
}

func WithMiddleware() ServerOption {
	return func(s *Server) error {
		if s.log == nil {
			return fmt.Errorf("logger must be initialized before middleware")
		}
		if s.cfg == nil {
			return fmt.Errorf("app config must be loaded before middleware")
		}
		s.middleware = middleware.New(s.log, middleware.Config{
			RateLimitPerSec: s.cfg.RateLimitPerSec,
			RateLimitBurst:  s.cfg.RateLimitBurst,
			Redis:           s.redisServer,
			AuthEnabled:     s.cfg.AuthEnabled,
			JWTSecret:       s.cfg.JWTSecret,
		})
		return nil
	}
}

func WithUtils() ServerOption {
	return func(s *Server) error {
		if s.cfg == nil {
			return fmt.Errorf("app config must be loaded before utils")
		}
		s.utils = utils.New(s.cfg.MaxUploadBytes())
		return nil
	}
}

func (s *Server) RegisterHandler() {
	opts := detectionService.Options{
		Policy: alert.Policy{
			FatigueThreshold:  s.cfg.FatigueThreshold,
			FatigueLabels:     s.cfg.FatigueLabels,
			DistractionLabels: s.cfg.DistractionLabels,
			IgnoreLabelCase:   s.cfg.IgnoreLabelCase,
		},
		TruncateLandmarks: s.cfg.TruncateLandmarks,
		Frame: utils.FrameOptions{
			MaxDimension: s.cfg.MaxImageDimension,
			TargetWidth:  s.cfg.ResizeWidth,
			TargetHeight: s.cfg.ResizeHeight,
			JPEGQuality:  utils.DefaultFrameOptions().JPEGQuality,
		},
	}
	if s.publisher != nil {
		opts.Publisher = s.publisher
	}

	// Detection
	detectionServices := detectionService.NewDetectionService(s.log, s.aiWebsocket, s.detector, s.scratchStore, s.utils, s.metrics, opts)
	detectionHandlers := detectionHandler.New(s.log, s.validator, s.middleware, detectionServices, s.utils, s.cfg.RequestTimeout)

	s.handlers = append(s.handlers, detectionHandlers)
}

// Mount registers middleware, health checks and every handler on the engine.
func (s *Server) Mount() {
	s.engine.Use(s.middleware.NewRequestIDMiddleware())
	s.engine.Use(s.middleware.NewLoggingMiddleware())
	s.setupHealthCheck()
	router := s.engine.Group("/api/v1")

	for _, h := range s.handlers {
		h.Start(router)
	}
}

func (s *Server) Run() error {
	s.Mount()
	return s.engine.Listen(fmt.Sprintf(":%s", s.cfg.Port))
}

// Shutdown stops accepting requests, waits for in-flight ones until ctx
// expires, then releases worker connections.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.engine.ShutdownWithContext(ctx)

	s.aiWebsocket.CloseConnections()
	if s.geminiClient != nil {
		s.geminiClient.Close()
	}
	if s.publisher != nil {
		s.publisher.Close()
	}
	if s.redisServer != nil {
		if cerr := s.redisServer.Close(); cerr != nil {
			s.log.Warnf("Failed to close redis client: %v", cerr)
		}
	}

	return err
}

func (s *Server) setupHealthCheck() {
	health := func(ctx *fiber.Ctx) error {
		workers := fiber.Map{
			"face_mesh": s.aiWebsocket.IsConnected(websocketPkg.FaceMeshWorker),
		}
		if s.cfg.ObjectDetector == "websocket" {
			workers["object_detection"] = s.aiWebsocket.IsConnected(websocketPkg.ObjectDetectionWorker)
		}

		return ctx.JSON(fiber.Map{
			"message":         "Server is Healthy!",
			"object_detector": s.cfg.ObjectDetector,
			"workers":         workers,
		})
	}

	s.engine.Get("/", health)
	s.engine.Get("/health", health)
	s.engine.Get("/api/v1/health", health)
}
