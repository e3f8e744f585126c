package sources

import (
	"context"
	"log/slog"

	"LearningCurator/internal/domain"
	"LearningCurator/internal/ports"
)

// Disabled stands in for a source whose required credential is absent.
// It never touches the network.
type Disabled struct {
	name   string
	logger *slog.Logger
}

var _ ports.Fetcher = (*Disabled)(nil)

// NewDisabled builds a placeholder for the named source.
func NewDisabled(name string, logger *slog.Logger) *Disabled {
	return &Disabled{name: name, logger: logger}
}

// Name identifies the source.
func (d *Disabled) Name() string {
	return d.name
}

// Fetch logs the skip and returns an empty skipped result.
func (d *Disabled) Fetch(_ context.Context, topic domain.Topic) domain.FetchResult {
	if d.logger != nil {
		d.logger.Info("source skipped: credential not configured", "source", d.name, "topic", topic.Name)
	}
	return domain.Skipped(d.name, ErrMissingCredential)
}
