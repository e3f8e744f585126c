package sources

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"LearningCurator/internal/config"
	"LearningCurator/internal/domain"
	"LearningCurator/internal/ports"
)

const hackerNewsItemURL = "https://news.ycombinator.com/item?id="

// HackerNews searches stories through the Algolia full-text API.
type HackerNews struct {
	base
}

var _ ports.Fetcher = (*HackerNews)(nil)

type hnResponse struct {
	Hits []struct {
		Title     string   `json:"title"`
		URL       string   `json:"url"`
		ObjectID  string   `json:"objectID"`
		CreatedAt string   `json:"created_at"`
		Points    *float64 `json:"points"`
	} `json:"hits"`
}

// NewHackerNews wires the Algolia search endpoint.
func NewHackerNews(cfg config.SourceConfig, client *http.Client, logger *slog.Logger) *HackerNews {
	return &HackerNews{base: newBase("hackernews", cfg, client, logger)}
}

// Fetch runs an OR-joined keyword search restricted to recent stories.
func (h *HackerNews) Fetch(ctx context.Context, topic domain.Topic) domain.FetchResult {
	ctx, cancel := h.withTimeout(ctx)
	defer cancel()

	endpoint, err := h.buildURL(topic)
	if err != nil {
		return h.failed(topic, err)
	}

	var payload hnResponse
	if err := h.getJSON(ctx, endpoint, &payload); err != nil {
		return h.failed(topic, err)
	}

	items := make([]domain.RawContentItem, 0, len(payload.Hits))
	for _, hit := range payload.Hits {
		if hit.Title == "" {
			continue
		}
		link := hit.URL
		if link == "" {
			link = hackerNewsItemURL + hit.ObjectID
		}
		items = append(items, domain.RawContentItem{
			Title:       hit.Title,
			URL:         link,
			Source:      h.name,
			PublishedAt: parseTimestamp(hit.CreatedAt),
			Score:       hit.Points,
		})
	}
	return h.succeeded(topic, items)
}

func (h *HackerNews) buildURL(topic domain.Topic) (string, error) {
	parsed, err := url.Parse(h.cfg.Endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint %s: %w", h.cfg.Endpoint, err)
	}

	q := parsed.Query()
	q.Set("query", orJoin(topic.Keywords))
	q.Set("tags", "story")
	q.Set("numericFilters", "created_at_i>"+strconv.FormatInt(h.since().Unix(), 10))
	q.Set("hitsPerPage", strconv.Itoa(h.cfg.Limit))
	parsed.RawQuery = q.Encode()
	return parsed.String(), nil
}
