package main

import (
	"DriverWatch/internal/config"
	"DriverWatch/pkg/log"
	mqttPkg "DriverWatch/pkg/mqtt"
	"DriverWatch/pkg/redis"
	websocketPkg "DriverWatch/pkg/websocket"
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
)

const shutdownTimeout = 10 * time.Second

func main() {
	envErr := godotenv.Load()
	logger := log.NewLogger()
	if envErr != nil {
		logger.Warnf("No .env file loaded, using process environment: %v", envErr)
	}

	validator := config.NewValidator()
	cfg, err := config.LoadAppConfig(validator)
	if err != nil {
		logger.Fatal(err)
	}

	fiberApp := config.NewFiber(logger, cfg)

	store, err := config.NewScratchStore(cfg)
	if err != nil {
		logger.Fatal(err)
	}

	aiWebsocket := websocketPkg.NewAIWebSocketClient(websocketPkg.Config{
		FaceMeshURL:        cfg.FaceMeshURL,
		ObjectDetectionURL: cfg.ObjectDetectionURL,
	}, store, logger)

	var redisServer redis.IRedis
	if cfg.RedisAddress != "" {
		redisServer = redis.New(redis.Config{
			Address:  cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
	}

	var publisher mqttPkg.IPublisher
	if cfg.MQTTBrokerURL != "" {
		publisher, err = mqttPkg.New(mqttPkg.Config{
			BrokerURL:      cfg.MQTTBrokerURL,
			ClientID:       cfg.MQTTClientID,
			TopicPrefix:    cfg.MQTTTopicPrefix,
			PublishTimeout: cfg.MQTTPublishTimeout,
		}, logger)
		if err != nil {
			logger.Fatal(err)
		}
	}

	server, err := config.NewServer(
		config.WithFiber(fiberApp),
		config.WithLogger(logger),
		config.WithAppConfig(cfg),
		config.WithValidator(validator),
		config.WithRedisServer(redisServer),
		config.WithAlertPublisher(publisher),
		config.WithScratch(store),
		config.WithWebSocket(aiWebsocket),
		config.WithObjectDetector(),
		config.WithMiddleware(),
		config.WithUtils(),
	)
	if err != nil {
		logger.Fatal(err)
	}

	server.RegisterHandler()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.Run(); err != nil {
			logger.Fatalf("Error starting server: %v", err)
		}
	}()

	logger.Infof("Server started on port %s", cfg.Port)

	<-sigChan
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("Graceful shutdown failed: %v", err)
	}
}
