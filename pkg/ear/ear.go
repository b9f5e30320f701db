package ear

import (
	"errors"
	"math"
)

// ErrDegenerateContour is returned when the horizontal span of an eye is zero.
var ErrDegenerateContour = errors.New("degenerate eye contour")

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// EyeContour holds six points in a fixed order:
// 0 outer corner, 1 and 5 upper/lower near the outer corner,
// 2 and 4 upper/lower near the inner corner, 3 inner corner.
type EyeContour [6]Point

// Scores is the drowsiness/attention pair. A nil *Scores means unknown.
type Scores struct {
	Drowsiness float64 `json:"drowsiness_score"`
	Attention  float64 `json:"attention_score"`
}

func distance(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// EyeAspectRatio returns (|p1-p5| + |p2-p4|) / (2 * |p0-p3|).
func EyeAspectRatio(eye EyeContour) (float64, error) {
	vertical1 := distance(eye[1], eye[5])
	vertical2 := distance(eye[2], eye[4])
	horizontal := distance(eye[0], eye[3])

	if horizontal == 0 {
		return 0, ErrDegenerateContour
	}

	return (vertical1 + vertical2) / (2.0 * horizontal), nil
}

// Estimate averages both eyes. It reports false when either contour is
// degenerate, in which case the whole result is unknown.
func Estimate(left, right EyeContour) (*Scores, bool) {
	leftEAR, err := EyeAspectRatio(left)
	if err != nil {
		return nil, false
	}
	rightEAR, err := EyeAspectRatio(right)
	if err != nil {
		return nil, false
	}

	avg := Round((leftEAR+rightEAR)/2.0, 2)

	return &Scores{
		Drowsiness: Round(1.0-avg, 2),
		Attention:  avg,
	}, true
}

// Round rounds to the given number of decimal places, ties to even.
func Round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.RoundToEven(v*scale) / scale
}
