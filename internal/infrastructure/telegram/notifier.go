package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"LearningCurator/internal/config"
	"LearningCurator/internal/ports"
)

const (
	defaultBaseURL = "https://api.telegram.org"
	// Telegram rejects messages longer than this many characters.
	maxMessageLength = 4096
)

var errMisconfigured = errors.New("telegram notifier misconfigured")

// Notifier posts learning digests to a chat through the Bot API.
type Notifier struct {
	endpoint string
	chatID   string
	client   *http.Client
}

var _ ports.Notifier = (*Notifier)(nil)

type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// NewNotifier resolves the sendMessage endpoint once. An incomplete config
// yields a notifier whose every publish fails.
func NewNotifier(cfg config.TelegramConfig) *Notifier {
	n := &Notifier{chatID: cfg.ChatID, client: &http.Client{Timeout: 5 * time.Second}}
	if cfg.BotToken == "" {
		return n
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	n.endpoint = base + "/bot" + cfg.BotToken + "/sendMessage"
	return n
}

// PublishDigest sends digest as plain text, cut to the API's message limit.
func (n *Notifier) PublishDigest(ctx context.Context, digest string) error {
	if n.endpoint == "" || n.chatID == "" {
		return errMisconfigured
	}

	payload, err := json.Marshal(sendMessageRequest{
		ChatID:                n.chatID,
		Text:                  clip(digest, maxMessageLength),
		DisableWebPagePreview: true,
	})
	if err != nil {
		return fmt.Errorf("encode telegram message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	defer resp.Body.Close()

	var out apiResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&out)
	if resp.StatusCode == http.StatusOK && decodeErr == nil && out.OK {
		return nil
	}
	if out.Description != "" {
		return fmt.Errorf("telegram rejected message (%d): %s", resp.StatusCode, out.Description)
	}
	return fmt.Errorf("telegram rejected message: %s", resp.Status)
}

func clip(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}
