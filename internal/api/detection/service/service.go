package detectionService

import (
	"DriverWatch/internal/api/detection"
	"DriverWatch/internal/entity"
	"DriverWatch/pkg/alert"
	"DriverWatch/pkg/metrics"
	"DriverWatch/pkg/scratch"
	"DriverWatch/pkg/utils"
	"context"

	"github.com/sirupsen/logrus"
)

// LandmarkProvider returns normalized face-mesh landmarks for the first
// face in a JPEG frame.
type LandmarkProvider interface {
	ExtractLandmarks(ctx context.Context, frame []byte) (*entity.LandmarkResult, error)
}

// ObjectDetector labels distraction cues in an image held in scratch storage.
type ObjectDetector interface {
	DetectObjects(ctx context.Context, imagePath string) (*entity.ObjectDetectionResult, error)
}

// AlertPublisher forwards alerting results to fleet monitoring.
type AlertPublisher interface {
	PublishAlert(event entity.AlertEvent) error
}

type IDetectionService interface {
	Analyze(ctx context.Context, input detection.AnalyzeInput) (*entity.AttentionResult, error)
	ObjectDetectionEnabled() bool
	Metrics() metrics.Snapshot
	StreamOpened()
	StreamClosed()
}

type Options struct {
	Policy            alert.Policy
	TruncateLandmarks bool
	Frame             utils.FrameOptions
	// Publisher is optional; nil disables alert publishing.
	Publisher AlertPublisher
}

func DefaultOptions() Options {
	return Options{
		Policy:            alert.DefaultPolicy(),
		TruncateLandmarks: true,
		Frame:             utils.DefaultFrameOptions(),
	}
}

type detectionService struct {
	log       *logrus.Logger
	landmarks LandmarkProvider
	detector  ObjectDetector
	store     scratch.Store
	utils     utils.IUtils
	metrics   *metrics.Metrics
	opts      Options
}

// NewDetectionService wires the analysis pipeline. A nil detector runs the
// EAR-only variant.
func NewDetectionService(
	log *logrus.Logger,
	landmarks LandmarkProvider,
	detector ObjectDetector,
	store scratch.Store,
	utils utils.IUtils,
	m *metrics.Metrics,
	opts Options,
) IDetectionService {
	if m == nil {
		m = metrics.New()
	}
	return &detectionService{
		log:       log,
		landmarks: landmarks,
		detector:  detector,
		store:     store,
		utils:     utils,
		metrics:   m,
		opts:      opts,
	}
}

func (s *detectionService) ObjectDetectionEnabled() bool {
	return s.detector != nil
}

func (s *detectionService) Metrics() metrics.Snapshot {
	return s.metrics.Snapshot()
}

func (s *detectionService) StreamOpened() {
	s.metrics.StreamOpened()
}

func (s *detectionService) StreamClosed() {
	s.metrics.StreamClosed()
}
