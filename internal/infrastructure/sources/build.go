package sources

import (
	"fmt"
	"log/slog"

	"LearningCurator/internal/config"
	"LearningCurator/internal/ports"
	"LearningCurator/internal/scanner"
)

// Register builds every enabled source in the fixed registration order
// (forum search, code search, article feed, discussion board, tag listing)
// and adds it to the registry. Credential requirements are resolved here,
// once, instead of on each fetch.
func Register(reg *scanner.Registry, cfg config.SourcesConfig, logger *slog.Logger) error {
	type entry struct {
		name  string
		cfg   config.SourceConfig
		build func(config.SourceConfig, *slog.Logger) (ports.Fetcher, error)
	}

	entries := []entry{
		{"hackernews", cfg.HackerNews, func(c config.SourceConfig, l *slog.Logger) (ports.Fetcher, error) {
			return NewHackerNews(c, nil, l), nil
		}},
		{"github", cfg.GitHub, func(c config.SourceConfig, l *slog.Logger) (ports.Fetcher, error) {
			return NewGitHub(c, nil, l)
		}},
		{"devto", cfg.DevTo, func(c config.SourceConfig, l *slog.Logger) (ports.Fetcher, error) {
			return NewDevTo(c, nil, l), nil
		}},
		{"reddit", cfg.Reddit, func(c config.SourceConfig, l *slog.Logger) (ports.Fetcher, error) {
			return NewReddit(c, nil, l), nil
		}},
		{"lobsters", cfg.Lobsters, func(c config.SourceConfig, l *slog.Logger) (ports.Fetcher, error) {
			return NewLobsters(c, nil, l), nil
		}},
	}

	for _, e := range entries {
		if !e.cfg.Enabled {
			continue
		}
		log := logger.With("component", "source."+e.name)

		if e.cfg.RequireCredential && e.cfg.Credential == "" {
			log.Info("source disabled: credential not configured")
			reg.Register(NewDisabled(e.name, log))
			continue
		}

		fetcher, err := e.build(e.cfg, log)
		if err != nil {
			return fmt.Errorf("build source %s: %w", e.name, err)
		}
		reg.Register(fetcher)
	}

	return nil
}
