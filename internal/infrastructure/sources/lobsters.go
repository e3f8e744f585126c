package sources

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"LearningCurator/internal/config"
	"LearningCurator/internal/domain"
	"LearningCurator/internal/ports"
)

// Lobsters scrapes the HTML listing of a tag page. Like other tag feeds it
// only uses the topic's primary keyword.
type Lobsters struct {
	base
}

var _ ports.Fetcher = (*Lobsters)(nil)

// NewLobsters wires an HTTP client against the site root.
func NewLobsters(cfg config.SourceConfig, client *http.Client, logger *slog.Logger) *Lobsters {
	return &Lobsters{base: newBase("lobsters", cfg, client, logger)}
}

// Fetch downloads the tag page and extracts stories inside the recency window.
func (l *Lobsters) Fetch(ctx context.Context, topic domain.Topic) domain.FetchResult {
	tag := strings.ToLower(strings.TrimSpace(topic.PrimaryKeyword()))
	if tag == "" {
		return l.succeeded(topic, nil)
	}

	ctx, cancel := l.withTimeout(ctx)
	defer cancel()

	doc, err := l.fetchDocument(ctx, joinURL(l.cfg.Endpoint, "/t/"+url.PathEscape(tag)))
	if err != nil {
		return l.failed(topic, err)
	}

	return l.succeeded(topic, l.extractStories(doc))
}

func (l *Lobsters) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", l.cfg.UserAgent)

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("lobsters returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	return doc, nil
}

func (l *Lobsters) extractStories(doc *goquery.Document) []domain.RawContentItem {
	since := l.since()
	var collected []domain.RawContentItem

	doc.Find("li.story").EachWithBreak(func(_ int, story *goquery.Selection) bool {
		item, ok := parseStory(story, l.cfg.Endpoint)
		if !ok {
			return true
		}
		item.Source = l.name
		if !item.PublishedAt.IsZero() && item.PublishedAt.Before(since) {
			return true
		}
		collected = append(collected, item)
		return len(collected) < l.cfg.Limit
	})

	return collected
}

func parseStory(story *goquery.Selection, siteURL string) (domain.RawContentItem, bool) {
	link := story.Find("a.u-url").First()
	title := strings.TrimSpace(link.Text())
	href, _ := link.Attr("href")
	href = strings.TrimSpace(href)
	if title == "" || href == "" {
		return domain.RawContentItem{}, false
	}
	if !strings.HasPrefix(href, "http") {
		href = joinURL(siteURL, href)
	}

	item := domain.RawContentItem{Title: title, URL: href}

	if stamp, ok := story.Find("time").First().Attr("datetime"); ok {
		item.PublishedAt = parseTimestamp(stamp)
	}

	if score, err := strconv.ParseFloat(strings.TrimSpace(story.Find(".upvoter").First().Text()), 64); err == nil {
		item.Score = domain.Float(score)
	}

	return item, true
}
