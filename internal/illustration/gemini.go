package illustration

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/ashureev/bpb-coach/internal/media"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiGenerator generates exercise illustrations with a Gemini image model.
type GeminiGenerator struct {
	client *genai.Client
	model  string
}

// NewGeminiGenerator creates a generator bound to one API key and model.
func NewGeminiGenerator(ctx context.Context, apiKey, model string) (*GeminiGenerator, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiGenerator{client: client, model: model}, nil
}

// GenerateIllustration requests a single image for prompt.
func (g *GeminiGenerator) GenerateIllustration(ctx context.Context, prompt string) (media.Image, error) {
	model := g.client.GenerativeModel(g.model)
	model.SetTemperature(0.8)

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return media.Image{}, fmt.Errorf("failed to generate image: %w", err)
	}
	return imageFromResponse(resp)
}

// imageFromResponse returns the first image part of resp. Inline blobs must
// carry an image MIME type; text parts count only when they decode to bytes
// that sniff as an image.
func imageFromResponse(resp *genai.GenerateContentResponse) (media.Image, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return media.Image{}, ErrNoImage
	}

	for _, part := range resp.Candidates[0].Content.Parts {
		switch p := part.(type) {
		case genai.Blob:
			if len(p.Data) > 0 && strings.HasPrefix(p.MIMEType, "image/") {
				return media.Image{MIMEType: p.MIMEType, Data: p.Data}, nil
			}
		case genai.Text:
			// Some model versions return the image base64-encoded as text.
			data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(p)))
			if err != nil || len(data) == 0 {
				continue
			}
			if mimeType := http.DetectContentType(data); strings.HasPrefix(mimeType, "image/") {
				return media.Image{MIMEType: mimeType, Data: data}, nil
			}
		}
	}
	return media.Image{}, ErrNoImage
}

// Close releases the underlying client.
func (g *GeminiGenerator) Close() error {
	return g.client.Close()
}
