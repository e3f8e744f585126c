package sources

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	gh "github.com/google/go-github/v80/github"
	"golang.org/x/oauth2"

	"LearningCurator/internal/config"
	"LearningCurator/internal/domain"
	"LearningCurator/internal/ports"
)

// GitHub searches recently created repositories matching the topic keywords.
type GitHub struct {
	base
	gh *gh.Client
}

var _ ports.Fetcher = (*GitHub)(nil)

// NewGitHub builds the repository search client. When a credential is present
// requests are authenticated through an oauth2 static token source.
func NewGitHub(cfg config.SourceConfig, client *http.Client, logger *slog.Logger) (*GitHub, error) {
	b := newBase("github", cfg, client, logger)

	httpClient := b.client
	if b.cfg.Credential != "" {
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, b.client)
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: b.cfg.Credential})
		httpClient = oauth2.NewClient(ctx, ts)
		httpClient.Timeout = b.cfg.Timeout
	}

	api := gh.NewClient(httpClient)
	if b.cfg.Endpoint != "" {
		endpoint := b.cfg.Endpoint
		if !strings.HasSuffix(endpoint, "/") {
			endpoint += "/"
		}
		baseURL, err := url.Parse(endpoint)
		if err != nil {
			return nil, fmt.Errorf("invalid endpoint %s: %w", b.cfg.Endpoint, err)
		}
		api.BaseURL = baseURL
	}

	return &GitHub{base: b, gh: api}, nil
}

// Fetch runs a star-sorted repository search over the recency window.
func (g *GitHub) Fetch(ctx context.Context, topic domain.Topic) domain.FetchResult {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	opts := &gh.SearchOptions{
		Sort:        "stars",
		Order:       "desc",
		ListOptions: gh.ListOptions{PerPage: g.cfg.Limit},
	}

	result, _, err := g.gh.Search.Repositories(ctx, g.query(topic), opts)
	if err != nil {
		return g.failed(topic, fmt.Errorf("search repositories: %w", err))
	}

	items := make([]domain.RawContentItem, 0, len(result.Repositories))
	for _, repo := range result.Repositories {
		if repo.GetFullName() == "" || repo.GetHTMLURL() == "" {
			continue
		}
		items = append(items, domain.RawContentItem{
			Title:       repo.GetFullName(),
			URL:         repo.GetHTMLURL(),
			Source:      g.name,
			PublishedAt: repo.GetCreatedAt().Time,
			Score:       domain.Float(float64(repo.GetStargazersCount())),
		})
	}
	return g.succeeded(topic, items)
}

func (g *GitHub) query(topic domain.Topic) string {
	return fmt.Sprintf("%s created:>%s", orJoin(topic.Keywords), g.since().UTC().Format("2006-01-02"))
}
