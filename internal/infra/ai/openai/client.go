package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sashabaranov/go-openai"

	domain "github.com/payflowhq/invoice-audit/internal/domain/ai"
)

const (
	defaultModel   = "gpt-4o-mini"
	defaultTimeout = 60 * time.Second
)

// Config carries provider settings resolved by the config package.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
}

// Client adapts an OpenAI-compatible chat completions API to the ai.Client
// port. A custom BaseURL points it at any compatible gateway.
type Client struct {
	*openai.Client
	cfg    Config
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	return &Client{Client: openai.NewClientWithConfig(oc), cfg: cfg, logger: logger}
}

// Complete sends one system+user exchange and returns the assistant content.
// Quota errors map to ai.ErrQuotaExceeded, everything else to
// ai.ErrUnavailable.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	reqID := uuid.New().String()
	model := c.cfg.Model

	req := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
	}
	// For reasoning models (o1/o3/o4/gpt-5*) use MaxCompletionTokens instead of MaxTokens
	if strings.HasPrefix(model, "o1") || strings.HasPrefix(model, "o3") || strings.HasPrefix(model, "o4") || strings.HasPrefix(model, "gpt-5") {
		req.MaxCompletionTokens = c.cfg.MaxTokens
	} else {
		req.MaxTokens = c.cfg.MaxTokens
		req.Temperature = c.cfg.Temperature
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	c.logger.Info("llm.complete.start",
		"req_id", reqID,
		"model", model,
		"prompt_chars", len(systemPrompt)+len(userPrompt),
	)
	start := time.Now()

	resp, err := c.CreateChatCompletion(ctx, req)
	if err != nil {
		c.logger.Error("llm.complete.fail",
			"req_id", reqID,
			"model", model,
			"duration_ms", time.Since(start).Milliseconds(),
			"err", err,
		)
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
			return "", fmt.Errorf("%w: %v", domain.ErrQuotaExceeded, err)
		}
		return "", fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		c.logger.Error("llm.complete.fail", "req_id", reqID, "model", model, "err", "no choices in completion")
		return "", fmt.Errorf("%w: no choices in completion", domain.ErrUnavailable)
	}

	content := resp.Choices[0].Message.Content
	c.logger.Info("llm.complete.done",
		"req_id", reqID,
		"model", model,
		"duration_ms", time.Since(start).Milliseconds(),
		"content_chars", len(content),
	)
	return content, nil
}
