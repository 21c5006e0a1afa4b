package coach

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ashureev/bpb-coach/internal/media"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiClient is the text+vision collaborator backed by Gemini.
type GeminiClient struct {
	client *genai.Client
	model  string
}

// NewGeminiClient creates a Gemini collaborator. Without an API key it logs
// a warning and returns a client whose calls fail with ErrMissingAPIKey.
func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	if apiKey == "" {
		slog.Warn("GEMINI_API_KEY not set; coach replies will fail until it is configured")
		return &GeminiClient{model: model}, nil
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiClient{client: client, model: model}, nil
}

// Reply sends the prior turns as chat history and the final turn as the new message.
func (g *GeminiClient) Reply(ctx context.Context, req ReplyRequest) (string, error) {
	if g.client == nil {
		return "", ErrMissingAPIKey
	}
	if len(req.Turns) == 0 {
		return "", fmt.Errorf("reply request has no turns")
	}

	model := g.client.GenerativeModel(g.model)
	model.SetTemperature(req.Temperature)
	if req.SystemInstruction != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.SystemInstruction)}}
	}

	cs := model.StartChat()
	last := len(req.Turns) - 1
	for _, t := range req.Turns[:last] {
		cs.History = append(cs.History, &genai.Content{Role: string(t.Role), Parts: turnParts(t)})
	}

	resp, err := cs.SendMessage(ctx, turnParts(req.Turns[last])...)
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}
	return responseText(resp), nil
}

// Close releases the underlying client.
func (g *GeminiClient) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}

func turnParts(t Turn) []genai.Part {
	parts := []genai.Part{genai.Text(t.Text)}
	for _, img := range t.Images {
		mime := img.MIMEType
		if mime == "" {
			mime = media.DefaultMIMEType
		}
		parts = append(parts, genai.Blob{MIMEType: mime, Data: img.Data})
	}
	return parts
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return b.String()
}
