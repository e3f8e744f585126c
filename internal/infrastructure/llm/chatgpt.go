package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"LearningCurator/internal/config"
	"LearningCurator/internal/ports"
)

const (
	defaultChatGPTEndpoint = "https://api.openai.com/v1/chat/completions"
	defaultChatGPTModel    = "gpt-4o-mini"
	// judgeTemperature keeps the ranking repeatable for the same input.
	judgeTemperature = 0.0
)

// ChatGPTClient implements ports.Completer backed by OpenAI-compatible APIs.
type ChatGPTClient struct {
	endpoint   string
	model      string
	apiKey     string
	maxTokens  int
	httpClient *http.Client
}

var _ ports.Completer = (*ChatGPTClient)(nil)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewChatGPTClient builds a client from configuration.
func NewChatGPTClient(cfg config.JudgeConfig) *ChatGPTClient {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultChatGPTEndpoint
	}
	model := cfg.Model
	if model == "" {
		model = defaultChatGPTModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ChatGPTClient{
		endpoint:  endpoint,
		model:     model,
		apiKey:    cfg.APIKey,
		maxTokens: cfg.MaxTokens,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Complete posts a system + user message pair and returns the first choice.
func (c *ChatGPTClient) Complete(ctx context.Context, req ports.CompletionRequest) (string, error) {
	if c == nil {
		return "", errors.New("chatgpt client is nil")
	}
	if c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return "", errors.New("chatgpt client misconfigured")
	}

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.User},
		},
		MaxTokens:   c.maxTokens,
		Temperature: judgeTemperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chatgpt payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("send completion: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(payload))}
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode completion: %w", err)
	}
	if decoded.Error != nil {
		return "", fmt.Errorf("chatgpt error: %s", decoded.Error.Message)
	}
	if len(decoded.Choices) == 0 {
		return "", errors.New("chatgpt returned no choices")
	}

	return decoded.Choices[0].Message.Content, nil
}

// StatusError is a non-success HTTP answer from a judge provider.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("judge returned %d %s: %s", e.Code, http.StatusText(e.Code), e.Body)
}

// Temporary reports whether retrying the same request may succeed.
func (e *StatusError) Temporary() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= http.StatusInternalServerError
}
