// Package sources implements the external content APIs consulted for each topic.
// Every fetcher converts its failures into an empty domain.FetchResult.
package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"LearningCurator/internal/config"
	"LearningCurator/internal/domain"
)

const (
	// DefaultTimeout bounds a fetch when the source config leaves timeout unset.
	DefaultTimeout = 10 * time.Second
	defaultWindow  = 7 * 24 * time.Hour
	defaultLimit   = 10
	userAgent      = "LearningCurator/1.0"
)

// ErrMissingCredential marks a source that was disabled for lack of a credential.
var ErrMissingCredential = errors.New("credential not configured")

// base carries what every HTTP-backed fetcher shares.
type base struct {
	name   string
	cfg    config.SourceConfig
	client *http.Client
	logger *slog.Logger
	now    func() time.Time
}

func newBase(name string, cfg config.SourceConfig, client *http.Client, logger *slog.Logger) base {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Window <= 0 {
		cfg.Window = defaultWindow
	}
	if cfg.Limit <= 0 {
		cfg.Limit = defaultLimit
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = userAgent
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return base{name: name, cfg: cfg, client: client, logger: logger, now: time.Now}
}

// Name identifies the source in logs, metrics and raw items.
func (b base) Name() string {
	return b.name
}

func (b base) since() time.Time {
	return b.now().Add(-b.cfg.Window)
}

// withTimeout bounds a single fetch so one stalled API cannot wedge a run.
func (b base) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, b.cfg.Timeout)
}

func (b base) failed(topic domain.Topic, err error) domain.FetchResult {
	b.logger.Warn("source fetch failed", "source", b.name, "topic", topic.Name, "error", err)
	return domain.Failed(b.name, err)
}

func (b base) succeeded(topic domain.Topic, items []domain.RawContentItem) domain.FetchResult {
	if len(items) > b.cfg.Limit {
		items = items[:b.cfg.Limit]
	}
	b.logger.Debug("source fetched", "source", b.name, "topic", topic.Name, "items", len(items))
	return domain.Succeeded(b.name, items)
}

// getJSON issues a GET and decodes a 2xx JSON body into v.
func (b base) getJSON(ctx context.Context, rawURL string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", b.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s returned %s: %s", b.name, resp.Status, strings.TrimSpace(string(payload)))
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// orJoin builds the keyword OR-query used by search-style APIs.
func orJoin(keywords []string) string {
	cleaned := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if kw = strings.TrimSpace(kw); kw != "" {
			cleaned = append(cleaned, kw)
		}
	}
	return strings.Join(cleaned, " OR ")
}

func joinURL(endpoint, path string) string {
	return strings.TrimSuffix(endpoint, "/") + "/" + strings.TrimPrefix(path, "/")
}

// parseTimestamp accepts the RFC 3339 variants the APIs emit; unknown formats
// yield the zero time rather than failing the whole payload.
func parseTimestamp(value string) time.Time {
	value = strings.TrimSpace(value)
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05 -0700", "2006-01-02T15:04:05"} {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts.UTC()
		}
	}
	return time.Time{}
}
