package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"LearningCurator/internal/domain"
	"LearningCurator/internal/ports"
)

// Run outcomes, also used as metric labels.
const (
	OutcomeUpdated   = "updated"
	OutcomeUnchanged = "unchanged"
	OutcomeDryRun    = "dry_run"
	OutcomeBusy      = "busy"
	OutcomeFailed    = "failed"
)

// storeBudget is the slice of the run deadline reserved for the document
// read-modify-write once all topics are processed.
const storeBudget = 30 * time.Second

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Topics     ports.TopicRegistry
	Aggregator *Aggregator
	Curator    *Curator
	Store      ports.DocumentStore
	Lease      ports.RunLease
	Notifier   ports.Notifier
	Recorder   ports.Recorder
	Logger     *slog.Logger
	// TopicBudget is the worst-case time one topic may take; the run deadline
	// is TopicBudget per topic plus the store budget. Zero disables the deadline.
	TopicBudget time.Duration
	Now         func() time.Time
}

// RunOptions alter a single run.
type RunOptions struct {
	// DryRun computes the selection without touching the status document.
	DryRun bool
}

// Pipeline is the selection merger: topics in registry order, each through
// the aggregator and curator, then one conditional write of the document.
type Pipeline struct {
	topics      ports.TopicRegistry
	aggregator  *Aggregator
	curator     *Curator
	store       ports.DocumentStore
	lease       ports.RunLease
	notifier    ports.Notifier
	recorder    ports.Recorder
	logger      *slog.Logger
	topicBudget time.Duration
	now         func() time.Time
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	p := &Pipeline{
		topics:      deps.Topics,
		aggregator:  deps.Aggregator,
		curator:     deps.Curator,
		store:       deps.Store,
		lease:       deps.Lease,
		notifier:    deps.Notifier,
		recorder:    deps.Recorder,
		logger:      deps.Logger,
		topicBudget: deps.TopicBudget,
		now:         deps.Now,
	}
	if p.recorder == nil {
		p.recorder = ports.NopRecorder{}
	}
	if p.now == nil {
		p.now = time.Now
	}
	if p.curator == nil {
		p.curator = NewCurator(nil, p.recorder, deps.Logger)
	}
	return p
}

// Run executes one full discovery and curation pass. Any error means the
// status document was not modified by this run.
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) (summary domain.RunSummary, err error) {
	started := p.now()
	summary = domain.RunSummary{RunID: uuid.NewString(), StartedAt: started}
	log := p.logger
	if log != nil {
		log = log.With("run_id", summary.RunID)
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pipeline panicked: %v", r)
		}
		summary.FinishedAt = p.now()
		outcome := p.outcome(summary, opts, err)
		p.recorder.ObserveRun(outcome, len(summary.Items), summary.FinishedAt.Sub(started))
		if log == nil {
			return
		}
		if err != nil {
			log.Error("pipeline run failed", "outcome", outcome, "error", err)
			return
		}
		log.Info("pipeline run finished", "outcome", outcome, "items", len(summary.Items), "written", summary.Written)
	}()

	if p.lease != nil {
		release, err := p.lease.Acquire(ctx)
		if err != nil {
			return summary, fmt.Errorf("acquire run lease: %w", err)
		}
		defer func() {
			if relErr := release(context.WithoutCancel(ctx)); relErr != nil && log != nil {
				log.Warn("release run lease", "error", relErr)
			}
		}()
	}

	if p.topics == nil {
		return summary, errors.New("topic registry is not configured")
	}
	topics, err := p.topics.Topics(ctx)
	if err != nil {
		return summary, fmt.Errorf("load topics: %w", err)
	}

	if p.topicBudget > 0 {
		deadline := time.Duration(len(topics))*p.topicBudget + storeBudget
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, deadline)
		defer cancel()
	}

	selection := p.collect(ctx, topics, &summary, log)
	if err := ctx.Err(); err != nil {
		return summary, fmt.Errorf("pipeline interrupted before merge: %w", err)
	}
	summary.Items = selection

	if len(selection) == 0 || opts.DryRun {
		return summary, nil
	}

	if err := p.merge(ctx, selection); err != nil {
		return summary, err
	}
	summary.Written = true

	p.notify(ctx, selection, log)
	return summary, nil
}

// collect processes topics strictly one after another; the judge behind the
// curator is rate limited.
func (p *Pipeline) collect(ctx context.Context, topics []domain.Topic, summary *domain.RunSummary, log *slog.Logger) []domain.CuratedItem {
	var global []domain.CuratedItem

	for _, topic := range topics {
		if ctx.Err() != nil {
			break
		}
		if len(topic.Keywords) == 0 {
			continue
		}

		report := domain.TopicReport{Topic: topic.Name, Strategy: domain.StrategySkipped}

		var raw []domain.RawContentItem
		if p.aggregator != nil {
			raw = p.aggregator.Collect(ctx, topic)
		}
		report.Raw = len(raw)

		if len(raw) > 0 {
			result := p.curator.Curate(ctx, topic.Name, raw)
			report.Curated = len(result.Items)
			report.Strategy = result.Strategy
			report.Reason = result.Reason
			global = append(global, result.Items...)
		}

		summary.Topics = append(summary.Topics, report)
		if log != nil {
			log.Debug("topic processed", "topic", topic.Name, "raw", report.Raw, "curated", report.Curated, "strategy", report.Strategy)
		}
	}

	return truncate(global, domain.MaxGlobalSelection)
}

// merge is the read-modify-write of the status document. The store rejects
// the write if the document moved since it was read.
func (p *Pipeline) merge(ctx context.Context, selection []domain.CuratedItem) error {
	if p.store == nil {
		return errors.New("document store is not configured")
	}

	doc, err := p.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("read status document: %w", err)
	}

	doc.ReplaceLearning(selection, p.now())

	if err := p.store.Save(ctx, doc); err != nil {
		return fmt.Errorf("write status document: %w", err)
	}
	return nil
}

func (p *Pipeline) notify(ctx context.Context, selection []domain.CuratedItem, log *slog.Logger) {
	if p.notifier == nil {
		return
	}
	if err := p.notifier.PublishDigest(ctx, buildDigestMessage(selection)); err != nil && log != nil {
		log.Warn("publish learning digest", "error", err)
	}
}

func (p *Pipeline) outcome(summary domain.RunSummary, opts RunOptions, err error) string {
	switch {
	case errors.Is(err, ports.ErrRunInProgress):
		return OutcomeBusy
	case err != nil:
		return OutcomeFailed
	case summary.Written:
		return OutcomeUpdated
	case opts.DryRun && len(summary.Items) > 0:
		return OutcomeDryRun
	default:
		return OutcomeUnchanged
	}
}

func buildDigestMessage(items []domain.CuratedItem) string {
	var b strings.Builder
	b.WriteString("New learning picks:\n\n")
	for _, item := range items {
		fmt.Fprintf(&b, "- [%s] %s\n%s\n\n", item.Topic, item.Title, item.URL)
	}
	return b.String()
}
