package sources

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"LearningCurator/internal/config"
	"LearningCurator/internal/domain"
	"LearningCurator/internal/ports"
)

// DevTo reads the tag-based article feed. Tag feeds only take one tag, so
// the topic's primary keyword is used.
type DevTo struct {
	base
}

var _ ports.Fetcher = (*DevTo)(nil)

type devToArticle struct {
	Title                  string  `json:"title"`
	URL                    string  `json:"url"`
	PublishedAt            string  `json:"published_at"`
	PositiveReactionsCount float64 `json:"positive_reactions_count"`
}

// NewDevTo wires the articles endpoint.
func NewDevTo(cfg config.SourceConfig, client *http.Client, logger *slog.Logger) *DevTo {
	return &DevTo{base: newBase("devto", cfg, client, logger)}
}

// Fetch lists top articles for the primary keyword within the recency window.
func (d *DevTo) Fetch(ctx context.Context, topic domain.Topic) domain.FetchResult {
	tag := strings.ToLower(strings.TrimSpace(topic.PrimaryKeyword()))
	if tag == "" {
		return d.succeeded(topic, nil)
	}

	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	endpoint, err := d.buildURL(tag)
	if err != nil {
		return d.failed(topic, err)
	}

	var articles []devToArticle
	if err := d.getJSON(ctx, endpoint, &articles); err != nil {
		return d.failed(topic, err)
	}

	since := d.since()
	items := make([]domain.RawContentItem, 0, len(articles))
	for _, a := range articles {
		published := parseTimestamp(a.PublishedAt)
		if a.Title == "" || a.URL == "" || published.Before(since) {
			continue
		}
		items = append(items, domain.RawContentItem{
			Title:       a.Title,
			URL:         a.URL,
			Source:      d.name,
			PublishedAt: published,
			Score:       domain.Float(a.PositiveReactionsCount),
		})
	}
	return d.succeeded(topic, items)
}

func (d *DevTo) buildURL(tag string) (string, error) {
	parsed, err := url.Parse(d.cfg.Endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint %s: %w", d.cfg.Endpoint, err)
	}

	days := int(d.cfg.Window / (24 * time.Hour))
	if days < 1 {
		days = 1
	}

	q := parsed.Query()
	q.Set("tag", tag)
	q.Set("top", strconv.Itoa(days))
	q.Set("per_page", strconv.Itoa(d.cfg.Limit))
	parsed.RawQuery = q.Encode()
	return parsed.String(), nil
}
