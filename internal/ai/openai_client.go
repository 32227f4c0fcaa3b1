package ai

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

var ErrEmptyReply = errors.New("ai: empty reply")

type OpenAIClient struct {
	client *openai.Client
	model  string
}

// NewOpenAIClient builds a chat-completions client. baseURL may be empty.
func NewOpenAIClient(apiKey, model, baseURL string) *OpenAIClient {
	if model == "" {
		model = openai.GPT4oMini
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	return &OpenAIClient{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

func (c *OpenAIClient) GetReply(
	ctx context.Context,
	systemPrompt string,
	userText string,
) (string, error) {

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userText},
		},
		Temperature: 0.1,
		MaxTokens:   512,
	})
	if err != nil {
		return "", fmt.Errorf("openai: %w", err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", ErrEmptyReply
	}

	return resp.Choices[0].Message.Content, nil
}
