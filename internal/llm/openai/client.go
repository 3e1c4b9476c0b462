package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	goopenai "github.com/meguminnnnnnnnn/go-openai"

	"docqa/internal/errs"
	"docqa/internal/logger"
)

// Config configures the OpenAI-compatible embeddings and chat client.
type Config struct {
	APIKey         string
	BaseURL        string
	EmbeddingModel string
	ChatModel      string
	Temperature    float32
	// Timeout of zero leaves the HTTP client without a deadline.
	Timeout time.Duration
}

// Client implements domain.Embedder and domain.Completer. Calls are not retried.
type Client struct {
	log            *logger.Logger
	api            *goopenai.Client
	embeddingModel string
	chatModel      string
	temperature    float32
}

// NewClient creates a client using the provided configuration.
func NewClient(log *logger.Logger, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errs.Errorf(errs.Configuration, "openai.NewClient", "missing OpenAI API key")
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = "text-embedding-ada-002"
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = "gpt-4o"
	}
	apiCfg := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	apiCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	return &Client{
		log:            log.With("client", "OpenAIClient"),
		api:            goopenai.NewClientWithConfig(apiCfg),
		embeddingModel: cfg.EmbeddingModel,
		chatModel:      cfg.ChatModel,
		temperature:    cfg.Temperature,
	}, nil
}

// Embed returns an embedding vector for the given text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	const op = "openai.Embed"
	resp, err := c.api.CreateEmbeddings(ctx, goopenai.EmbeddingRequest{
		Input: []string{text},
		Model: goopenai.EmbeddingModel(c.embeddingModel),
	})
	if err != nil {
		return nil, c.upstream(op, err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, errs.Errorf(errs.Upstream, op, "no embedding returned by %s", c.embeddingModel)
	}
	return resp.Data[0].Embedding, nil
}

// Complete sends prompt as a single user message and returns the first choice.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	const op = "openai.Complete"
	resp, err := c.api.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model: c.chatModel,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: &c.temperature,
	})
	if err != nil {
		return "", c.upstream(op, err)
	}
	if len(resp.Choices) == 0 {
		return "", errs.Errorf(errs.Upstream, op, "no choices returned by %s", c.chatModel)
	}
	c.log.Debug("completion received",
		"model", resp.Model,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
	)
	return resp.Choices[0].Message.Content, nil
}

func (c *Client) upstream(op string, err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		c.log.Warn("openai request rejected", "op", op, "status", apiErr.HTTPStatusCode, "error", apiErr.Message)
		return errs.E(errs.Upstream, op, fmt.Errorf("http %d: %w", apiErr.HTTPStatusCode, err))
	}
	return errs.E(errs.Upstream, op, err)
}
