package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"LearningCurator/internal/api"
	"LearningCurator/internal/config"
	"LearningCurator/internal/domain"
	"LearningCurator/internal/infrastructure/coordination"
	"LearningCurator/internal/infrastructure/llm"
	"LearningCurator/internal/infrastructure/scheduler"
	"LearningCurator/internal/infrastructure/sources"
	"LearningCurator/internal/infrastructure/storage"
	"LearningCurator/internal/infrastructure/telegram"
	"LearningCurator/internal/logging"
	"LearningCurator/internal/metrics"
	"LearningCurator/internal/ports"
	"LearningCurator/internal/scanner"
	"LearningCurator/internal/topics"
	"LearningCurator/internal/usecase"
)

const (
	judgeRetryDelay = time.Second
	shutdownTimeout = 30 * time.Second
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	metrics  *metrics.Metrics
	store    ports.DocumentStore
	pipeline *usecase.Pipeline
	sources  *scanner.Registry
	budget   time.Duration
	closers  []io.Closer
}

// New builds every adapter named by cfg. Connections to Postgres and Redis
// are opened here, so New fails fast on unreachable backends.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}

	registry := scanner.NewRegistry()
	a := &Application{cfg: cfg, logger: baseLogger, metrics: metrics.New(), sources: registry}

	if err := sources.Register(registry, cfg.Sources, baseLogger); err != nil {
		return nil, err
	}
	aggregator := usecase.NewAggregator(registry, a.metrics, baseLogger.With("component", "aggregator"))

	completer, err := newCompleter(cfg.Judge)
	if err != nil {
		return nil, err
	}
	curator := usecase.NewCurator(newJudge(cfg.Judge, completer), a.metrics, baseLogger.With("component", "curator"))

	topicRegistry, err := topics.New(cfg.Topics)
	if err != nil {
		return nil, err
	}

	store, err := a.openStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.store = store

	lease, err := a.openLease(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	var notifier ports.Notifier
	if cfg.Notifications.Telegram.Enabled() {
		notifier = telegram.NewNotifier(cfg.Notifications.Telegram)
	}

	a.budget = topicBudget(cfg)
	a.pipeline = usecase.NewPipeline(usecase.PipelineDeps{
		Topics:      topicRegistry,
		Aggregator:  aggregator,
		Curator:     curator,
		Store:       store,
		Lease:       lease,
		Notifier:    notifier,
		Recorder:    a.metrics,
		Logger:      baseLogger.With("component", "pipeline"),
		TopicBudget: a.budget,
	})

	baseLogger.Info("application configured",
		"sources", registry.Len(),
		"judge", judgeLabel(cfg.Judge),
		"store", cfg.Store.Driver,
		"lease", cfg.Lease.Driver,
		"notifications", notifier != nil,
	)
	return a, nil
}

// RunOnce performs a single pipeline execution.
func (a *Application) RunOnce(ctx context.Context, dryRun bool) (domain.RunSummary, error) {
	return a.pipeline.Run(ctx, usecase.RunOptions{DryRun: dryRun})
}

// FetchSource runs one registered source for topic, outside any pipeline
// run. Nothing is curated or written.
func (a *Application) FetchSource(ctx context.Context, source string, topic domain.Topic) (domain.FetchResult, error) {
	fetcher, err := a.sources.Resolve(source)
	if err != nil {
		return domain.FetchResult{}, err
	}
	return fetcher.Fetch(ctx, topic), nil
}

// SourceNames lists the registered sources in registration order.
func (a *Application) SourceNames() []string {
	fetchers := a.sources.Fetchers()
	names := make([]string, 0, len(fetchers))
	for _, f := range fetchers {
		names = append(names, f.Name())
	}
	return names
}

// Serve runs the trigger server, plus the in-process scheduler when enabled,
// until ctx is cancelled.
func (a *Application) Serve(ctx context.Context) error {
	if err := a.cfg.ValidateServer(); err != nil {
		return err
	}

	var sched *usecase.Scheduler
	if a.cfg.Scheduler.Enabled {
		driver, err := scheduler.NewCronScheduler(a.cfg.Scheduler.CronExpression, a.cfg.Scheduler.Location(), a.logger.With("component", "scheduler"))
		if err != nil {
			return err
		}
		sched = usecase.NewScheduler(driver, a.pipeline, a.logger.With("component", "scheduler"))
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		a.logger.Info("scheduler started", "cron", a.cfg.Scheduler.CronExpression, "next", driver.Next())
	}

	server := api.NewServer(a.cfg.Server, api.Deps{
		Runner:     a.pipeline,
		Documents:  a.store,
		Metrics:    a.metrics.Handler(),
		Logger:     a.logger.With("component", "http"),
		RunTimeout: a.RunTimeout(),
	})

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	var serveErr error
	select {
	case serveErr = <-errCh:
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if serveErr != nil {
		errs = append(errs, fmt.Errorf("http server: %w", serveErr))
	} else if err := server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown http server: %w", err))
	}
	if sched != nil {
		if err := sched.Stop(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("stop scheduler: %w", err))
		}
	}
	return errors.Join(errs...)
}

// RunTimeout is the worst-case duration of one run for the configured roster
// size; zero when the roster lives in a file and its size is unknown upfront.
func (a *Application) RunTimeout() time.Duration {
	if a.cfg.Topics.Path != "" {
		return 0
	}
	return time.Duration(len(a.cfg.Topics.Items))*a.budget + time.Minute
}

// Close releases database and Redis connections.
func (a *Application) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *Application) openStore(ctx context.Context) (ports.DocumentStore, error) {
	switch a.cfg.Store.Driver {
	case config.StorePostgres:
		db, err := storage.OpenPostgres(ctx, a.cfg.Store.DSN)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db)
		store := storage.NewPostgresStore(db, a.cfg.Store.Table, a.cfg.Store.DocumentID)
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return store, nil
	case config.StoreMemory:
		return storage.NewMemoryStore(nil), nil
	default:
		return storage.NewFileStore(a.cfg.Store.Path), nil
	}
}

func (a *Application) openLease(ctx context.Context) (ports.RunLease, error) {
	if a.cfg.Lease.Driver != config.LeaseRedis {
		return coordination.NewLocalLease(), nil
	}
	client, err := coordination.NewRedisClient(ctx, a.cfg.Lease.RedisAddr)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, client)
	return coordination.NewRedisLease(client, a.cfg.Lease.Key, a.cfg.Lease.TTL), nil
}

func newCompleter(cfg config.JudgeConfig) (ports.Completer, error) {
	if !cfg.Configured() {
		return nil, nil
	}
	switch cfg.Provider {
	case config.ProviderAnthropic:
		return llm.NewAnthropicClient(cfg), nil
	case config.ProviderOpenAI:
		return llm.NewChatGPTClient(cfg), nil
	default:
		return nil, fmt.Errorf("judge provider %q is not supported", cfg.Provider)
	}
}

func newJudge(cfg config.JudgeConfig, completer ports.Completer) usecase.Judge {
	if completer == nil {
		return usecase.UnconfiguredJudge{Reason: "judge api key not set"}
	}
	return usecase.NewConfiguredJudge(completer, usecase.JudgeOptions{
		MinInterval: cfg.MinInterval,
		Retries:     cfg.Retries,
		RetryDelay:  judgeRetryDelay,
		MaxInput:    cfg.MaxInput,
		Timeout:     cfg.Timeout,
	})
}

// topicBudget is the worst case for one topic: the slowest source, then
// every judge attempt with its spacing and retry delay.
func topicBudget(cfg config.Config) time.Duration {
	var fetch time.Duration
	for _, s := range []config.SourceConfig{
		cfg.Sources.HackerNews, cfg.Sources.GitHub, cfg.Sources.DevTo, cfg.Sources.Reddit, cfg.Sources.Lobsters,
	} {
		if !s.Enabled {
			continue
		}
		timeout := s.Timeout
		if timeout <= 0 {
			timeout = sources.DefaultTimeout
		}
		fetch = max(fetch, timeout)
	}

	judgeTimeout := cfg.Judge.Timeout
	if judgeTimeout <= 0 {
		judgeTimeout = usecase.DefaultJudgeTimeout
	}
	retries := max(cfg.Judge.Retries, 0)
	attempts := time.Duration(retries + 1)
	judge := attempts*(judgeTimeout+cfg.Judge.MinInterval) + time.Duration(retries)*judgeRetryDelay
	if !cfg.Judge.Configured() {
		judge = 0
	}
	return fetch + judge
}

func judgeLabel(cfg config.JudgeConfig) string {
	if !cfg.Configured() {
		return "fallback-only"
	}
	return cfg.Provider
}
