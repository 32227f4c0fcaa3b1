package ai

import (
	"context"
	"fmt"
	"strings"

	genai "github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

type GeminiClient struct {
	client *genai.Client
	model  string
}

func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	if model == "" {
		model = "gemini-1.5-flash"
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini: new client: %w", err)
	}
	return &GeminiClient{client: client, model: model}, nil
}

func (g *GeminiClient) GetReply(ctx context.Context, systemPrompt, userText string) (string, error) {
	model := g.client.GenerativeModel(g.model)
	model.SetTemperature(0.1)
	model.SetMaxOutputTokens(512)
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemPrompt)}}

	resp, err := model.GenerateContent(ctx, genai.Text(userText))
	if err != nil {
		return "", fmt.Errorf("gemini: generate: %w", err)
	}

	text := candidateText(resp)
	if text == "" {
		return "", ErrEmptyReply
	}
	return text, nil
}

func (g *GeminiClient) Close() error {
	return g.client.Close()
}

// candidateText concatenates the text parts of the first candidate.
func candidateText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	c := resp.Candidates[0]
	if c == nil || c.Content == nil {
		return ""
	}

	var sb strings.Builder
	for _, part := range c.Content.Parts {
		if t, ok := part.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	return strings.TrimSpace(sb.String())
}
