package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

type AppConfig struct {
	Port           string        `validate:"required,numeric"`
	Env            string
	BodyLimitMB    int           `validate:"gt=0"`
	MaxUploadMB    int           `validate:"gt=0"`
	RequestTimeout time.Duration `validate:"gt=0"`
	CORSOrigins    string

	FatigueThreshold  float64 `validate:"gt=0,lte=1"`
	FatigueLabels     []string
	DistractionLabels []string
	IgnoreLabelCase   bool
	TruncateLandmarks bool
	MaxImageDimension int `validate:"gt=0"`
	ResizeWidth       int `validate:"gt=0"`
	ResizeHeight      int `validate:"gt=0"`

	ScratchBackend     string `validate:"oneof=local s3"`
	ScratchDir         string
	ScratchPrefix      string
	AWSRegion          string `validate:"required_if=ScratchBackend s3"`
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	AWSBucket          string `validate:"required_if=ScratchBackend s3"`

	FaceMeshURL        string `validate:"omitempty,url"`
	ObjectDetector     string `validate:"oneof=websocket gemini none"`
	ObjectDetectionURL string `validate:"required_if=ObjectDetector websocket"`
	GeminiAPIKey       string `validate:"required_if=ObjectDetector gemini"`
	GeminiModelName    string

	RateLimitPerSec float64 `validate:"gt=0"`
	RateLimitBurst  int     `validate:"gt=0"`
	RedisAddress    string
	RedisPassword   string
	RedisDB         int `validate:"gte=0"`

	AuthEnabled bool
	JWTSecret   string `validate:"required_if=AuthEnabled true"`

	MQTTBrokerURL      string
	MQTTClientID       string
	MQTTTopicPrefix    string
	MQTTPublishTimeout time.Duration `validate:"gt=0"`
}

// LoadAppConfig reads the environment, applying defaults for unset keys.
func LoadAppConfig(validate *validator.Validate) (*AppConfig, error) {
	var errs []string

	cfg := &AppConfig{
		Port:        getEnv("APP_PORT", "3000"),
		Env:         getEnv("APP_ENV", "development"),
		CORSOrigins: getEnv("CORS_ORIGINS", "*"),

		FatigueLabels:     getEnvList("FATIGUE_LABELS", []string{"yawn"}),
		DistractionLabels: getEnvList("DISTRACTION_LABELS", []string{"phone"}),

		ScratchBackend:     getEnv("SCRATCH_BACKEND", "local"),
		ScratchDir:         getEnv("SCRATCH_DIR", "temp"),
		ScratchPrefix:      getEnv("SCRATCH_PREFIX", "scratch"),
		AWSRegion:          getEnv("AWS_REGION", ""),
		AWSAccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSBucket:          getEnv("AWS_BUCKET_NAME", ""),

		FaceMeshURL:        getEnv("AI_FACE_MESH_URL", ""),
		ObjectDetector:     getEnv("OBJECT_DETECTOR", "none"),
		ObjectDetectionURL: getEnv("AI_OBJECT_DETECTION_URL", ""),
		GeminiAPIKey:       getEnv("GEMINI_API_KEY", ""),
		GeminiModelName:    getEnv("GEMINI_MODEL_NAME", ""),

		RedisAddress:  getEnv("REDIS_ADDRESS", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		JWTSecret: getEnv("JWT_ACCESS_TOKEN_SECRET", ""),

		MQTTBrokerURL:   getEnv("MQTT_BROKER_URL", ""),
		MQTTClientID:    getEnv("MQTT_CLIENT_ID", ""),
		MQTTTopicPrefix: getEnv("MQTT_TOPIC_PREFIX", "driverwatch"),
	}

	collect := func(err error) {
		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	var err error
	cfg.BodyLimitMB, err = getEnvInt("BODY_LIMIT_MB", 10)
	collect(err)
	cfg.MaxUploadMB, err = getEnvInt("MAX_UPLOAD_MB", 5)
	collect(err)
	cfg.RequestTimeout, err = getEnvDuration("REQUEST_TIMEOUT", 15*time.Second)
	collect(err)
	cfg.FatigueThreshold, err = getEnvFloat("FATIGUE_THRESHOLD", 0.7)
	collect(err)
	cfg.TruncateLandmarks, err = getEnvBool("TRUNCATE_LANDMARKS", true)
	collect(err)
	cfg.IgnoreLabelCase, err = getEnvBool("LABEL_MATCH_IGNORE_CASE", false)
	collect(err)
	cfg.MaxImageDimension, err = getEnvInt("MAX_IMAGE_DIMENSION", 1000)
	collect(err)
	cfg.ResizeWidth, err = getEnvInt("RESIZE_WIDTH", 640)
	collect(err)
	cfg.ResizeHeight, err = getEnvInt("RESIZE_HEIGHT", 480)
	collect(err)
	cfg.RateLimitPerSec, err = getEnvFloat("RATE_LIMIT_PER_SEC", 50)
	collect(err)
	cfg.RateLimitBurst, err = getEnvInt("RATE_LIMIT_BURST", 100)
	collect(err)
	cfg.RedisDB, err = getEnvInt("REDIS_DB", 0)
	collect(err)
	cfg.AuthEnabled, err = getEnvBool("AUTH_ENABLED", false)
	collect(err)
	cfg.MQTTPublishTimeout, err = getEnvDuration("MQTT_PUBLISH_TIMEOUT", 2*time.Second)
	collect(err)

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid environment: %s", strings.Join(errs, "; "))
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *AppConfig) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) * 1024 * 1024
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := getEnv(key, "")
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := getEnv(key, "")
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := getEnv(key, "")
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := getEnv(key, "")
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

// getEnvList splits a comma separated value, dropping empty items.
func getEnvList(key string, fallback []string) []string {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
