package sources

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"LearningCurator/internal/config"
	"LearningCurator/internal/domain"
	"LearningCurator/internal/ports"
)

const redditBaseURL = "https://www.reddit.com"

// Reddit searches a single discussion board. The board comes from the topic
// when set, otherwise from the source configuration.
type Reddit struct {
	base
}

var _ ports.Fetcher = (*Reddit)(nil)

type redditListing struct {
	Data struct {
		Children []struct {
			Data struct {
				Title      string  `json:"title"`
				URL        string  `json:"url"`
				Permalink  string  `json:"permalink"`
				CreatedUTC float64 `json:"created_utc"`
				Score      float64 `json:"score"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// NewReddit wires the board search endpoint.
func NewReddit(cfg config.SourceConfig, client *http.Client, logger *slog.Logger) *Reddit {
	return &Reddit{base: newBase("reddit", cfg, client, logger)}
}

// Fetch searches the topic's board for the week's top posts.
func (r *Reddit) Fetch(ctx context.Context, topic domain.Topic) domain.FetchResult {
	board := topic.Board
	if board == "" {
		board = r.cfg.Board
	}
	if board == "" {
		return r.failed(topic, errors.New("no board configured"))
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	endpoint, err := r.buildURL(board, topic)
	if err != nil {
		return r.failed(topic, err)
	}

	var listing redditListing
	if err := r.getJSON(ctx, endpoint, &listing); err != nil {
		return r.failed(topic, err)
	}

	since := r.since()
	items := make([]domain.RawContentItem, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		post := child.Data
		created := time.Unix(int64(post.CreatedUTC), 0).UTC()
		if post.Title == "" || created.Before(since) {
			continue
		}
		link := post.URL
		if link == "" && post.Permalink != "" {
			link = redditBaseURL + post.Permalink
		}
		if link == "" {
			continue
		}
		items = append(items, domain.RawContentItem{
			Title:       post.Title,
			URL:         link,
			Source:      r.name,
			PublishedAt: created,
			Score:       domain.Float(post.Score),
		})
	}
	return r.succeeded(topic, items)
}

func (r *Reddit) buildURL(board string, topic domain.Topic) (string, error) {
	parsed, err := url.Parse(joinURL(r.cfg.Endpoint, "/r/"+url.PathEscape(board)+"/search.json"))
	if err != nil {
		return "", fmt.Errorf("invalid endpoint %s: %w", r.cfg.Endpoint, err)
	}

	q := parsed.Query()
	q.Set("q", orJoin(topic.Keywords))
	q.Set("restrict_sr", "1")
	q.Set("sort", "top")
	q.Set("t", "week")
	q.Set("limit", strconv.Itoa(r.cfg.Limit))
	parsed.RawQuery = q.Encode()
	return parsed.String(), nil
}
