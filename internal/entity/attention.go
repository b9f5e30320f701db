package entity

import (
	"DriverWatch/pkg/alert"
	"DriverWatch/pkg/ear"

	jsoniter "github.com/json-iterator/go"
)

// LandmarkResult is the face-mesh worker reply. Landmarks are normalized
// [x, y] pairs in [0,1].
type LandmarkResult struct {
	FaceFound bool         `json:"face_found"`
	Landmarks [][2]float64 `json:"landmarks,omitempty"`
	Error     string       `json:"error,omitempty"`
}

func (r *LandmarkResult) Points() []ear.Point {
	points := make([]ear.Point, len(r.Landmarks))
	for i, lm := range r.Landmarks {
		points[i] = ear.Point{X: lm[0], Y: lm[1]}
	}
	return points
}

// ObjectDetectionResult is the object-detector reply, labels and
// confidences paired by position.
type ObjectDetectionResult struct {
	Labels      []string  `json:"labels"`
	Confidences []float64 `json:"confidences"`
	Error       string    `json:"error,omitempty"`
}

type AttentionResult struct {
	RequestID        string
	Status           alert.Status
	Scores           *ear.Scores
	Detections       *alert.Detections
	FaceDetected     bool
	Resized          bool
	ProcessingTimeMs int64
}

type attentionJSON struct {
	RequestID        string       `json:"request_id,omitempty"`
	Status           alert.Status `json:"status"`
	DrowsinessScore  *float64     `json:"drowsiness_score"`
	AttentionScore   *float64     `json:"attention_score"`
	Detections       *[]string    `json:"detections,omitempty"`
	Confidence       *[]float64   `json:"confidence,omitempty"`
	FaceDetected     bool         `json:"face_detected"`
	Resized          bool         `json:"resized"`
	ProcessingTimeMs int64        `json:"processing_time_ms"`
}

// MarshalJSON flattens the score pair so both fields are null together.
// detections and confidence are only emitted when a detector ran.
func (r AttentionResult) MarshalJSON() ([]byte, error) {
	out := attentionJSON{
		RequestID:        r.RequestID,
		Status:           r.Status,
		FaceDetected:     r.FaceDetected,
		Resized:          r.Resized,
		ProcessingTimeMs: r.ProcessingTimeMs,
	}
	if r.Scores != nil {
		drowsiness, attention := r.Scores.Drowsiness, r.Scores.Attention
		out.DrowsinessScore = &drowsiness
		out.AttentionScore = &attention
	}
	if r.Detections != nil {
		labels, confidences := r.Detections.Labels, r.Detections.Confidences
		if labels == nil {
			labels = []string{}
		}
		if confidences == nil {
			confidences = []float64{}
		}
		out.Detections = &labels
		out.Confidence = &confidences
	}
	return jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(out)
}
