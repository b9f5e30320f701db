package detectionService

import (
	"DriverWatch/internal/api/detection"
	"DriverWatch/internal/entity"
	"DriverWatch/pkg/alert"
	contextPkg "DriverWatch/pkg/context"
	"DriverWatch/pkg/ear"
	"DriverWatch/pkg/log"
	"DriverWatch/pkg/response"
	"DriverWatch/pkg/utils"
	websocketPkg "DriverWatch/pkg/websocket"
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

const cleanupTimeout = 5 * time.Second

func (s *detectionService) Analyze(ctx context.Context, input detection.AnalyzeInput) (result *entity.AttentionResult, err error) {
	start := time.Now()
	requestID := contextPkg.GetRequestID(ctx)

	defer func() {
		if err != nil {
			s.metrics.IncrementErrors()
		}
	}()

	if err := s.utils.ValidateImageBytes(input.Data); err != nil {
		return nil, classifyUploadError(err)
	}

	path, err := s.store.Save(ctx, input.FileName, input.Data)
	if err != nil {
		return nil, response.Wrap(detection.ErrScratchStorage, err)
	}
	defer s.removeScratch(requestID, path)

	frame, err := s.utils.PrepareFrame(input.Data, s.opts.Frame)
	if err != nil {
		return nil, response.Wrap(detection.ErrImageDecode, err)
	}

	landmarks, objects, err := s.runModels(ctx, frame.JPEG, path)
	if err != nil {
		return nil, err
	}

	scores, err := s.estimate(landmarks, frame)
	if err != nil {
		return nil, response.Wrap(detection.ErrModelInference, err)
	}

	var detections *alert.Detections
	if objects != nil {
		detections, err = alert.NewDetections(objects.Labels, objects.Confidences)
		if err != nil {
			return nil, response.Wrap(detection.ErrModelInference, err)
		}
	}

	status := s.opts.Policy.Decide(detections, scores)
	elapsed := time.Since(start)
	s.metrics.RecordAnalysis(status, elapsed)

	result = &entity.AttentionResult{
		RequestID:        requestID,
		Status:           status,
		Scores:           scores,
		Detections:       detections,
		FaceDetected:     landmarks != nil && landmarks.FaceFound,
		Resized:          frame.Resized,
		ProcessingTimeMs: elapsed.Milliseconds(),
	}

	if s.opts.Publisher != nil && (status == alert.FatigueDetected || status == alert.Distracted) {
		s.publishAlert(input.Driver, result)
	}

	s.log.WithFields(log.Fields{
		"request_id":    requestID,
		"status":        status,
		"face_detected": result.FaceDetected,
		"scores":        scores,
		"latency_ms":    elapsed.Milliseconds(),
	}).Debug("Attention analysis finished")

	return result, nil
}

// runModels runs landmark extraction and, when deployed, object detection
// concurrently. Both only read the image.
func (s *detectionService) runModels(ctx context.Context, jpeg []byte, path string) (*entity.LandmarkResult, *entity.ObjectDetectionResult, error) {
	var (
		landmarks *entity.LandmarkResult
		objects   *entity.ObjectDetectionResult
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		result, err := s.landmarks.ExtractLandmarks(gctx, jpeg)
		if err != nil {
			return fmt.Errorf("landmark extraction: %w", err)
		}
		landmarks = result
		return nil
	})

	if s.detector != nil {
		g.Go(func() error {
			result, err := s.detector.DetectObjects(gctx, path)
			if err != nil {
				return fmt.Errorf("object detection: %w", err)
			}
			if result == nil {
				result = &entity.ObjectDetectionResult{}
			}
			objects = result
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, nil, fmt.Errorf("analysis aborted: %w", ctxErr)
		}
		if errors.Is(err, websocketPkg.ErrWorkerNotConfigured) {
			return nil, nil, response.Wrap(detection.ErrDetectorUnavailable, err)
		}
		return nil, nil, response.Wrap(detection.ErrModelInference, err)
	}

	return landmarks, objects, nil
}

// estimate returns nil scores when no face was found or an eye contour is
// degenerate.
func (s *detectionService) estimate(landmarks *entity.LandmarkResult, frame *utils.Frame) (*ear.Scores, error) {
	if landmarks == nil || !landmarks.FaceFound {
		return nil, nil
	}

	projector := ear.Projector{
		Width:    frame.Width,
		Height:   frame.Height,
		Truncate: s.opts.TruncateLandmarks,
	}

	left, right, err := projector.Eyes(landmarks.Points())
	if err != nil {
		return nil, err
	}

	scores, ok := ear.Estimate(left, right)
	if !ok {
		s.log.Warn("Degenerate eye contour, treating face as unknown")
		return nil, nil
	}
	return scores, nil
}

// publishAlert sends the event in the background; a broker outage never
// delays or fails the analysis.
func (s *detectionService) publishAlert(driver entity.DriverIdentity, result *entity.AttentionResult) {
	event := entity.AlertEvent{
		RequestID: result.RequestID,
		DriverID:  driver.DriverID,
		VehicleID: driver.VehicleID,
		Status:    result.Status,
		Timestamp: time.Now().Unix(),
	}
	if result.Scores != nil {
		drowsiness := result.Scores.Drowsiness
		event.DrowsinessScore = &drowsiness
	}
	if result.Detections != nil {
		event.Detections = append([]string(nil), result.Detections.Labels...)
	}

	go func() {
		if err := s.opts.Publisher.PublishAlert(event); err != nil {
			s.log.WithFields(log.Fields{
				"request_id": event.RequestID,
				"status":     event.Status,
				"error":      err.Error(),
			}).Warn("Failed to publish alert")
		}
	}()
}

func (s *detectionService) removeScratch(requestID, path string) {
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()

	if err := s.store.Remove(ctx, path); err != nil {
		s.log.WithFields(log.Fields{
			"request_id": requestID,
			"path":       path,
			"error":      err.Error(),
		}).Error("Failed to remove scratch image")
	}
}

func classifyUploadError(err error) error {
	switch {
	case errors.Is(err, utils.ErrFileTooLarge):
		return response.Wrap(detection.ErrImageTooLarge, err)
	case errors.Is(err, utils.ErrNoFile), errors.Is(err, utils.ErrNotImage):
		return response.Wrap(detection.ErrInvalidImage, err)
	default:
		return response.Wrap(detection.ErrBadRequest, err)
	}
}
