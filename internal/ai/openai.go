package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/emilythestrangee/lokniti/backend/internal/config"
	"github.com/emilythestrangee/lokniti/backend/internal/logging"
)

const systemPrompt = "You are LokNiti's civic assistant. You help residents understand " +
	"community posts, events, polls and petitions in their locality. Be factual and concise."

// Generator turns a prompt into free-form text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// OpenAIClient talks to any OpenAI-compatible chat completions endpoint.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

func NewOpenAIClient(cfg config.AIConfig) *OpenAIClient {
	c := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		c.BaseURL = cfg.BaseURL
	}
	c.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	logging.Info().Str("model", cfg.Model).Msg("initializing AI client")
	return &OpenAIClient{client: openai.NewClientWithConfig(c), model: cfg.Model}
}

func (o *OpenAIClient) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", errors.New("chat completion returned empty content")
	}
	return text, nil
}
