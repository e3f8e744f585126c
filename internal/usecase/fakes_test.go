package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"LearningCurator/internal/domain"
	"LearningCurator/internal/ports"
	"LearningCurator/internal/scanner"
	"LearningCurator/internal/statusdoc"
)

type stubFetcher struct {
	name  string
	count int
	fail  error
	panic bool
	delay time.Duration
}

func (s stubFetcher) Name() string { return s.name }

func (s stubFetcher) Fetch(ctx context.Context, topic domain.Topic) domain.FetchResult {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.panic {
		panic("boom")
	}
	if s.fail != nil {
		return domain.Failed(s.name, s.fail)
	}
	items := make([]domain.RawContentItem, 0, s.count)
	for i := 0; i < s.count; i++ {
		items = append(items, domain.RawContentItem{
			Title:  fmt.Sprintf("%s %s %d", topic.Name, s.name, i),
			URL:    fmt.Sprintf("https://%s.example/%s/%d", s.name, topic.Name, i),
			Source: s.name,
		})
	}
	return domain.Succeeded(s.name, items)
}

func registryOf(fetchers ...ports.Fetcher) *scanner.Registry {
	reg := scanner.NewRegistry()
	for _, f := range fetchers {
		reg.Register(f)
	}
	return reg
}

func rawItems(n int) []domain.RawContentItem {
	items := make([]domain.RawContentItem, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, domain.RawContentItem{
			Title:  fmt.Sprintf("item %d", i),
			URL:    fmt.Sprintf("https://example.com/%d", i),
			Source: "test",
		})
	}
	return items
}

type scriptedCompleter struct {
	mu        sync.Mutex
	responses []string
	errs      []error
	calls     int
	requests  []ports.CompletionRequest
}

func (s *scriptedCompleter) Complete(_ context.Context, req ports.CompletionRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	s.requests = append(s.requests, req)
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	if err != nil {
		return "", err
	}
	if i < len(s.responses) {
		return s.responses[i], nil
	}
	if len(s.responses) > 0 {
		return s.responses[len(s.responses)-1], nil
	}
	return "[]", nil
}

func (s *scriptedCompleter) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type temporaryError struct{}

func (temporaryError) Error() string   { return "service unavailable" }
func (temporaryError) Temporary() bool { return true }

type staticTopics []domain.Topic

func (s staticTopics) Topics(context.Context) ([]domain.Topic, error) {
	return []domain.Topic(s), nil
}

type memoryStore struct {
	mu       sync.Mutex
	raw      []byte
	version  int
	loads    int
	saves    int
	loadErr  error
	saveErr  error
	onLoaded func()
}

func (m *memoryStore) Load(context.Context) (*statusdoc.Document, error) {
	m.mu.Lock()
	m.loads++
	if m.loadErr != nil {
		m.mu.Unlock()
		return nil, m.loadErr
	}
	doc, err := statusdoc.Decode(m.raw)
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	doc.Version = fmt.Sprint(m.version)
	hook := m.onLoaded
	m.mu.Unlock()
	if hook != nil {
		hook()
	}
	return doc, nil
}

func (m *memoryStore) Save(_ context.Context, doc *statusdoc.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	if doc.Version != fmt.Sprint(m.version) {
		return ports.ErrVersionConflict
	}
	raw, err := doc.Encode()
	if err != nil {
		return err
	}
	m.raw = raw
	m.version++
	return nil
}

func (m *memoryStore) bump(raw string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.raw = []byte(raw)
	m.version++
}

type busyLease struct{}

func (busyLease) Acquire(context.Context) (func(context.Context) error, error) {
	return nil, ports.ErrRunInProgress
}

type countingLease struct {
	acquired int
	released int
}

func (c *countingLease) Acquire(context.Context) (func(context.Context) error, error) {
	c.acquired++
	return func(context.Context) error {
		c.released++
		return nil
	}, nil
}

type recordingNotifier struct {
	digests []string
	err     error
}

func (r *recordingNotifier) PublishDigest(_ context.Context, digest string) error {
	r.digests = append(r.digests, digest)
	return r.err
}

type recordingRecorder struct {
	mu        sync.Mutex
	fetches   map[domain.FetchStatus]int
	curations []string
	outcomes  []string
}

func newRecordingRecorder() *recordingRecorder {
	return &recordingRecorder{fetches: map[domain.FetchStatus]int{}}
}

func (r *recordingRecorder) ObserveFetch(_ string, status domain.FetchStatus, _ int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fetches[status]++
}

func (r *recordingRecorder) ObserveCuration(strategy domain.CurationStrategy, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.curations = append(r.curations, string(strategy)+":"+reason)
}

func (r *recordingRecorder) ObserveRun(outcome string, _ int, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}
