package entity

import (
	"DriverWatch/pkg/alert"
	"DriverWatch/pkg/ear"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, r AttentionResult) map[string]any {
	t.Helper()
	raw, err := json.Marshal(r)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestAttentionResultScoresTogether(t *testing.T) {
	out := decode(t, AttentionResult{
		Status: alert.Attentive,
		Scores: &ear.Scores{Drowsiness: 0.7, Attention: 0.3},
	})
	assert.Equal(t, "attentive", out["status"])
	assert.Equal(t, 0.7, out["drowsiness_score"])
	assert.Equal(t, 0.3, out["attention_score"])

	out = decode(t, AttentionResult{Status: alert.NoFaceDetected})
	assert.Contains(t, out, "drowsiness_score")
	assert.Contains(t, out, "attention_score")
	assert.Nil(t, out["drowsiness_score"])
	assert.Nil(t, out["attention_score"])
}

func TestAttentionResultDetectionsChannel(t *testing.T) {
	out := decode(t, AttentionResult{Status: alert.NoFaceDetected})
	assert.NotContains(t, out, "detections")
	assert.NotContains(t, out, "confidence")

	empty, err := alert.NewDetections(nil, nil)
	require.NoError(t, err)
	out = decode(t, AttentionResult{Status: alert.NoFaceDetected, Detections: empty})
	assert.Equal(t, []any{}, out["detections"])
	assert.Equal(t, []any{}, out["confidence"])

	found, err := alert.NewDetections([]string{"phone"}, []float64{0.88})
	require.NoError(t, err)
	out = decode(t, AttentionResult{Status: alert.Distracted, Detections: found})
	assert.Equal(t, []any{"phone"}, out["detections"])
	assert.Equal(t, []any{0.88}, out["confidence"])
}

func TestLandmarkResultPoints(t *testing.T) {
	r := LandmarkResult{FaceFound: true, Landmarks: [][2]float64{{0.1, 0.2}, {0.3, 0.4}}}
	assert.Equal(t, []ear.Point{{X: 0.1, Y: 0.2}, {X: 0.3, Y: 0.4}}, r.Points())
}
