package alert

import (
	"DriverWatch/pkg/ear"
	"errors"
	"strings"
)

type Status string

const (
	FatigueDetected Status = "fatigue_detected"
	Distracted      Status = "distracted"
	Attentive       Status = "attentive"
	NoFaceDetected  Status = "no_face_detected"
)

// DefaultFatigueThreshold is the drowsiness score at or above which a
// driver is considered fatigued.
const DefaultFatigueThreshold = 0.7

var ErrMismatchedDetections = errors.New("labels and confidences differ in length")

// Detections is the object-detector output, paired by position.
// A nil *Detections means the detector is not deployed, which is not the
// same as a detector that found nothing.
type Detections struct {
	Labels      []string  `json:"detections"`
	Confidences []float64 `json:"confidence"`
}

func NewDetections(labels []string, confidences []float64) (*Detections, error) {
	if len(labels) != len(confidences) {
		return nil, ErrMismatchedDetections
	}
	if labels == nil {
		labels = []string{}
	}
	if confidences == nil {
		confidences = []float64{}
	}
	return &Detections{Labels: labels, Confidences: confidences}, nil
}

// Has reports whether any detected label equals one of labels exactly.
func (d *Detections) Has(labels ...string) bool {
	return d.match(func(got, want string) bool { return got == want }, labels)
}

// HasFold is Has with case-insensitive comparison.
func (d *Detections) HasFold(labels ...string) bool {
	return d.match(strings.EqualFold, labels)
}

func (d *Detections) match(equal func(got, want string) bool, labels []string) bool {
	if d == nil {
		return false
	}
	for _, got := range d.Labels {
		for _, want := range labels {
			if equal(got, want) {
				return true
			}
		}
	}
	return false
}

type Policy struct {
	FatigueThreshold  float64
	FatigueLabels     []string
	DistractionLabels []string
	// IgnoreLabelCase matches detector labels case-insensitively.
	IgnoreLabelCase bool
}

func DefaultPolicy() Policy {
	return Policy{
		FatigueThreshold:  DefaultFatigueThreshold,
		FatigueLabels:     []string{"yawn"},
		DistractionLabels: []string{"phone"},
	}
}

// Decide applies the rules in order; the first match wins.
func (p Policy) Decide(detections *Detections, scores *ear.Scores) Status {
	has := detections.Has
	if p.IgnoreLabelCase {
		has = detections.HasFold
	}

	switch {
	case has(p.FatigueLabels...) || (scores != nil && scores.Drowsiness >= p.FatigueThreshold):
		return FatigueDetected
	case has(p.DistractionLabels...):
		return Distracted
	case scores != nil:
		return Attentive
	default:
		return NoFaceDetected
	}
}
