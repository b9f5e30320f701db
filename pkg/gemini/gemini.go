package gemini

import (
	"DriverWatch/internal/entity"
	"DriverWatch/pkg/scratch"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

type IGemini interface {
	AnalyzeImage(ctx context.Context, image []byte, prompt string) (string, error)
	DetectObjects(ctx context.Context, imagePath string) (*entity.ObjectDetectionResult, error)
	Close()
}

type Config struct {
	APIKey    string
	ModelName string
	// Labels restricts what the model is asked to look for.
	Labels []string
}

type geminiClient struct {
	modelName string
	labels    []string
	client    *genai.Client
	store     scratch.Store
}

func NewGeminiClient(cfg Config, store scratch.Store) (IGemini, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini API key is required")
	}

	modelName := cfg.ModelName
	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}

	client, err := genai.NewClient(context.Background(), option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, err
	}

	return &geminiClient{
		modelName: modelName,
		labels:    cfg.Labels,
		client:    client,
		store:     store,
	}, nil
}

func (g *geminiClient) AnalyzeImage(ctx context.Context, image []byte, prompt string) (string, error) {
	if len(image) == 0 {
		return "", errors.New("empty image data")
	}

	model := g.client.GenerativeModel(g.modelName)
	model.ResponseMIMEType = "application/json"

	if prompt == "" {
		prompt = "Analyze this image and provide details in JSON format."
	}

	format := strings.TrimPrefix(http.DetectContentType(image), "image/")
	res, err := model.GenerateContent(ctx, genai.Text(prompt), genai.ImageData(format, image))
	if err != nil {
		return "", err
	}

	if len(res.Candidates) == 0 || res.Candidates[0].Content == nil || len(res.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("no response from Gemini API")
	}

	text, ok := res.Candidates[0].Content.Parts[0].(genai.Text)
	if !ok {
		return "", errors.New("unexpected response format from Gemini API")
	}

	return string(text), nil
}

func (g *geminiClient) DetectObjects(ctx context.Context, imagePath string) (*entity.ObjectDetectionResult, error) {
	image, err := g.store.Read(ctx, imagePath)
	if err != nil {
		return nil, fmt.Errorf("error reading scratch image %s: %w", imagePath, err)
	}

	text, err := g.AnalyzeImage(ctx, image, detectionPrompt(g.labels))
	if err != nil {
		return nil, err
	}

	return parseDetections(text)
}

func (g *geminiClient) Close() {
	if g.client != nil {
		g.client.Close()
	}
}

func detectionPrompt(labels []string) string {
	return fmt.Sprintf(`
	You are watching a vehicle driver through a dashboard camera.
	Report which of these cues are visible in the image: %s.
	Use "yawn" when the driver's mouth is wide open in a yawn and "phone" when the driver holds or looks at a phone.

	Expected output format:
	{
		"detections": [
			{"label": "phone", "confidence": 0.92}
		]
	}

	Use only the labels listed above, confidence between 0 and 1.
	Return {"detections": []} when none are visible.
	Give ONLY the JSON response, without any additional text.
	`, strings.Join(labels, ", "))
}

type detectionResponse struct {
	Detections []struct {
		Label      string  `json:"label"`
		Confidence float64 `json:"confidence"`
	} `json:"detections"`
}

func parseDetections(response string) (*entity.ObjectDetectionResult, error) {
	jsonStart := strings.Index(response, "{")
	jsonEnd := strings.LastIndex(response, "}")

	if jsonStart == -1 || jsonEnd == -1 || jsonEnd <= jsonStart {
		return nil, errors.New("cannot find valid JSON in response")
	}

	var parsed detectionResponse
	if err := json.Unmarshal([]byte(response[jsonStart:jsonEnd+1]), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse Gemini response as valid JSON: %w", err)
	}

	result := &entity.ObjectDetectionResult{
		Labels:      make([]string, 0, len(parsed.Detections)),
		Confidences: make([]float64, 0, len(parsed.Detections)),
	}
	for _, d := range parsed.Detections {
		label := strings.ToLower(strings.TrimSpace(d.Label))
		if label == "" {
			continue
		}
		result.Labels = append(result.Labels, label)
		result.Confidences = append(result.Confidences, min(max(d.Confidence, 0), 1))
	}

	return result, nil
}
