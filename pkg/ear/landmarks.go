package ear

import (
	"errors"
	"fmt"
	"math"
)

var ErrMissingLandmark = errors.New("landmark index out of range")

// Face-mesh indices of the six contour points of each eye.
var (
	LeftEyeIndices  = [6]int{33, 160, 158, 133, 153, 144}
	RightEyeIndices = [6]int{362, 385, 387, 263, 373, 380}
)

// Projector scales normalized [0,1] landmarks into pixel space of an image.
// With Truncate set, coordinates are cut to whole pixels before any
// distance is computed.
type Projector struct {
	Width    int
	Height   int
	Truncate bool
}

func (p Projector) Point(n Point) Point {
	x := n.X * float64(p.Width)
	y := n.Y * float64(p.Height)
	if p.Truncate {
		x = math.Trunc(x)
		y = math.Trunc(y)
	}
	return Point{X: x, Y: y}
}

func (p Projector) Contour(landmarks []Point, indices [6]int) (EyeContour, error) {
	var eye EyeContour
	for i, idx := range indices {
		if idx < 0 || idx >= len(landmarks) {
			return eye, fmt.Errorf("%w: index %d, have %d landmarks", ErrMissingLandmark, idx, len(landmarks))
		}
		eye[i] = p.Point(landmarks[idx])
	}
	return eye, nil
}

// Eyes returns the left and right contours for a full face-mesh landmark set.
func (p Projector) Eyes(landmarks []Point) (left, right EyeContour, err error) {
	left, err = p.Contour(landmarks, LeftEyeIndices)
	if err != nil {
		return left, right, err
	}
	right, err = p.Contour(landmarks, RightEyeIndices)
	return left, right, err
}
