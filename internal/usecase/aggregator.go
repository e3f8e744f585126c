package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"LearningCurator/internal/domain"
	"LearningCurator/internal/ports"
	"LearningCurator/internal/scanner"
)

// Aggregator fans a topic out to every registered source and joins the
// results with an all-settled policy: no source can fail the topic.
type Aggregator struct {
	registry *scanner.Registry
	recorder ports.Recorder
	logger   *slog.Logger
}

// NewAggregator wires the source registry.
func NewAggregator(reg *scanner.Registry, recorder ports.Recorder, log *slog.Logger) *Aggregator {
	if recorder == nil {
		recorder = ports.NopRecorder{}
	}
	return &Aggregator{
		registry: reg,
		recorder: recorder,
		logger:   log,
	}
}

// Collect runs all sources concurrently and concatenates their items in
// registration order. Items are not deduplicated across sources.
func (a *Aggregator) Collect(ctx context.Context, topic domain.Topic) []domain.RawContentItem {
	if a.registry == nil {
		return nil
	}

	fetchers := a.registry.Fetchers()
	results := make([]domain.FetchResult, len(fetchers))

	var wg sync.WaitGroup
	for i, fetcher := range fetchers {
		wg.Add(1)
		go func(i int, fetcher ports.Fetcher) {
			defer wg.Done()
			results[i] = a.settle(ctx, fetcher, topic)
		}(i, fetcher)
	}
	wg.Wait()

	var aggregated []domain.RawContentItem
	for _, res := range results {
		a.recorder.ObserveFetch(res.Source, res.Status, len(res.Items))
		if res.Status != domain.FetchOK {
			continue
		}
		aggregated = append(aggregated, res.Items...)
	}

	a.debug("topic aggregated", "topic", topic.Name, "sources", len(fetchers), "items", len(aggregated))
	return aggregated
}

// settle shields the join from a misbehaving fetcher.
func (a *Aggregator) settle(ctx context.Context, fetcher ports.Fetcher, topic domain.Topic) (res domain.FetchResult) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("source panicked: %v", r)
			if a.logger != nil {
				a.logger.Error("source fetch panicked", "source", fetcher.Name(), "topic", topic.Name, "error", err)
			}
			res = domain.Failed(fetcher.Name(), err)
		}
	}()

	res = fetcher.Fetch(ctx, topic)
	if res.Source == "" {
		res.Source = fetcher.Name()
	}
	if res.Status == "" {
		res = domain.Succeeded(res.Source, res.Items)
	}
	if res.Status != domain.FetchOK {
		res.Items = nil
	}
	return res
}

func (a *Aggregator) debug(msg string, args ...interface{}) {
	if a.logger != nil {
		a.logger.Debug(msg, args...)
	}
}
