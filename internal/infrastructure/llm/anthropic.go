package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"LearningCurator/internal/config"
	"LearningCurator/internal/ports"
)

const defaultAnthropicModel = "claude-3-5-haiku-latest"

// AnthropicClient implements ports.Completer on the Anthropic Messages API.
type AnthropicClient struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

var _ ports.Completer = (*AnthropicClient)(nil)

// NewAnthropicClient builds a client from configuration. SDK-level retries are
// disabled: the curator owns the retry policy.
func NewAnthropicClient(cfg config.JudgeConfig) *AnthropicClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxTokens := int64(cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithRequestTimeout(timeout),
		option.WithMaxRetries(0),
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithBaseURL(cfg.Endpoint))
	}

	model := cfg.Model
	if model == "" {
		model = defaultAnthropicModel
	}

	return &AnthropicClient{
		client:    anthropic.NewClient(opts...),
		model:     model,
		maxTokens: maxTokens,
	}
}

// Complete sends one user turn with the system instruction and joins the
// text blocks of the reply.
func (c *AnthropicClient) Complete(ctx context.Context, req ports.CompletionRequest) (string, error) {
	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens:   c.maxTokens,
		Temperature: anthropic.Float(judgeTemperature),
		System:      []anthropic.TextBlockParam{{Text: req.System}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.User)),
		},
	})
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return "", &StatusError{Code: apiErr.StatusCode, Body: apiErr.Error()}
		}
		return "", fmt.Errorf("send message: %w", err)
	}

	var out strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}
	if out.Len() == 0 {
		return "", errors.New("anthropic returned no text content")
	}
	return out.String(), nil
}
