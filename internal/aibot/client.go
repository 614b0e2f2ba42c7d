package aibot

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/spKnowTech/plantpal-app/internal/config"
	"github.com/spKnowTech/plantpal-app/internal/middleware"
)

// Completer is the outbound AI surface. The analyzer and chat service
// depend on this interface so tests can stub the remote model.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	CompleteVision(ctx context.Context, prompt string, imageData []byte, mimeType string) (string, error)
}

// Client wraps the OpenAI API behind a circuit breaker.
type Client struct {
	api         *openai.Client
	chatModel   string
	visionModel string
	breaker     *middleware.CircuitBreaker
}

func NewClient(cfg config.AIConfig) *Client {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		clientConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		api:         openai.NewClientWithConfig(clientConfig),
		chatModel:   cfg.Model,
		visionModel: cfg.VisionModel,
		breaker:     middleware.NewCircuitBreaker(5, 30*time.Second),
	}
}

func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	var content string

	err := c.breaker.Call(func() error {
		resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: c.chatModel,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: userPrompt},
			},
		})
		if err != nil {
			return fmt.Errorf("chat completion failed: %w", err)
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("chat completion returned no choices")
		}
		content = resp.Choices[0].Message.Content
		return nil
	})

	return content, err
}

func (c *Client) CompleteVision(ctx context.Context, prompt string, imageData []byte, mimeType string) (string, error) {
	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(imageData))

	var content string
	err := c.breaker.Call(func() error {
		resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: c.visionModel,
			Messages: []openai.ChatCompletionMessage{
				{
					Role: openai.ChatMessageRoleUser,
					MultiContent: []openai.ChatMessagePart{
						{Type: openai.ChatMessagePartTypeText, Text: prompt},
						{
							Type: openai.ChatMessagePartTypeImageURL,
							ImageURL: &openai.ChatMessageImageURL{
								URL:    dataURL,
								Detail: openai.ImageURLDetailAuto,
							},
						},
					},
				},
			},
		})
		if err != nil {
			return fmt.Errorf("vision completion failed: %w", err)
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("vision completion returned no choices")
		}
		content = resp.Choices[0].Message.Content
		return nil
	})

	return content, err
}
