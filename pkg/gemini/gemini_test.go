package gemini

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDetections(t *testing.T) {
	response := "```json\n{\"detections\": [{\"label\": \"Phone\", \"confidence\": 0.93}, {\"label\": \"yawn\", \"confidence\": 1.4}, {\"label\": \" \", \"confidence\": 0.5}]}\n```"

	result, err := parseDetections(response)
	require.NoError(t, err)

	assert.Equal(t, []string{"phone", "yawn"}, result.Labels)
	assert.Equal(t, []float64{0.93, 1}, result.Confidences)
}

func TestParseDetectionsEmpty(t *testing.T) {
	result, err := parseDetections(`{"detections": []}`)
	require.NoError(t, err)

	assert.NotNil(t, result.Labels)
	assert.Empty(t, result.Labels)
	assert.Empty(t, result.Confidences)
}

func TestParseDetectionsInvalid(t *testing.T) {
	_, err := parseDetections("no json here")
	assert.Error(t, err)

	_, err = parseDetections(`{"detections": "nope"}`)
	assert.Error(t, err)
}

func TestDetectionPromptListsLabels(t *testing.T) {
	prompt := detectionPrompt([]string{"yawn", "phone"})
	assert.Contains(t, prompt, "yawn, phone")
}
