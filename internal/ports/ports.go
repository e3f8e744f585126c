package ports

import (
	"context"
	"errors"
	"time"

	"LearningCurator/internal/domain"
	"LearningCurator/internal/statusdoc"
)

var (
	// ErrVersionConflict means the status document changed after it was read.
	ErrVersionConflict = errors.New("status document was modified concurrently")
	// ErrRunInProgress means another pipeline run holds the run lease.
	ErrRunInProgress = errors.New("run already in progress")
)

// Fetcher pulls raw content for one topic from a single external source.
// Implementations never return errors: failures are reported in the result.
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context, topic domain.Topic) domain.FetchResult
}

// TopicRegistry supplies the ordered roster of tracked technologies.
type TopicRegistry interface {
	Topics(ctx context.Context) ([]domain.Topic, error)
}

// CompletionRequest is a single chat-style judge request.
type CompletionRequest struct {
	System string
	User   string
}

// Completer sends a chat completion to an LLM-style service and returns its text.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// DocumentStore reads and conditionally writes the status document.
// Save must fail with ErrVersionConflict when the stored version differs
// from doc.Version.
type DocumentStore interface {
	Load(ctx context.Context) (*statusdoc.Document, error)
	Save(ctx context.Context, doc *statusdoc.Document) error
}

// RunLease serializes pipeline runs.
type RunLease interface {
	Acquire(ctx context.Context) (release func(context.Context) error, err error)
}

// Notifier announces a freshly written selection.
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}

// Recorder observes pipeline activity for metrics.
type Recorder interface {
	ObserveFetch(source string, status domain.FetchStatus, items int)
	ObserveCuration(strategy domain.CurationStrategy, reason string)
	ObserveRun(outcome string, items int, elapsed time.Duration)
}

// NopRecorder discards every observation.
type NopRecorder struct{}

func (NopRecorder) ObserveFetch(string, domain.FetchStatus, int)    {}
func (NopRecorder) ObserveCuration(domain.CurationStrategy, string) {}
func (NopRecorder) ObserveRun(string, int, time.Duration)           {}
