package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"LearningCurator/internal/domain"
	"LearningCurator/internal/ports"
)

const (
	defaultJudgeInput = 20
	// DefaultJudgeTimeout bounds one judge attempt when no timeout is set.
	DefaultJudgeTimeout = 30 * time.Second

	judgeSystemPrompt = "You are a senior engineer curating reading lists. " +
		"Output only valid JSON arrays, with no prose and no markdown."
)

// Fallback reasons, also used as metric labels.
const (
	ReasonUnconfigured = "judge_unconfigured"
	ReasonJudgeError   = "judge_error"
	ReasonParseError   = "parse_error"
	ReasonNotArray     = "not_array"
	ReasonEmpty        = "empty_result"
)

// Judge is either a ConfiguredJudge or an UnconfiguredJudge; the choice is
// made once at startup.
type Judge interface {
	judge()
}

// ConfiguredJudge ranks items through an LLM-style completer.
type ConfiguredJudge struct {
	completer  ports.Completer
	limiter    *rate.Limiter
	retries    int
	retryDelay time.Duration
	maxInput   int
	timeout    time.Duration
}

// UnconfiguredJudge marks the absence of a judge credential.
type UnconfiguredJudge struct {
	Reason string
}

func (ConfiguredJudge) judge()   {}
func (UnconfiguredJudge) judge() {}

// JudgeOptions tunes a ConfiguredJudge.
type JudgeOptions struct {
	// MinInterval spaces consecutive judge calls; zero disables spacing.
	MinInterval time.Duration
	// Retries is how many extra attempts a transient failure gets.
	Retries    int
	RetryDelay time.Duration
	MaxInput   int
	Timeout    time.Duration
}

// NewConfiguredJudge builds the judge variant of the curator.
func NewConfiguredJudge(completer ports.Completer, opts JudgeOptions) ConfiguredJudge {
	limit := rate.Inf
	if opts.MinInterval > 0 {
		limit = rate.Every(opts.MinInterval)
	}
	if opts.MaxInput <= 0 {
		opts.MaxInput = defaultJudgeInput
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultJudgeTimeout
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	return ConfiguredJudge{
		completer:  completer,
		limiter:    rate.NewLimiter(limit, 1),
		retries:    opts.Retries,
		retryDelay: opts.RetryDelay,
		maxInput:   opts.MaxInput,
		timeout:    opts.Timeout,
	}
}

// Curator turns one topic's raw items into at most five curated items.
type Curator struct {
	judge    Judge
	recorder ports.Recorder
	logger   *slog.Logger
}

// NewCurator wires the judge choice.
func NewCurator(judge Judge, recorder ports.Recorder, log *slog.Logger) *Curator {
	if judge == nil {
		judge = UnconfiguredJudge{Reason: "no judge supplied"}
	}
	if recorder == nil {
		recorder = ports.NopRecorder{}
	}
	return &Curator{judge: judge, recorder: recorder, logger: log}
}

// Curate picks the topic's selection. Callers skip topics with no raw items;
// an empty input still yields an empty skipped result.
func (c *Curator) Curate(ctx context.Context, topic string, items []domain.RawContentItem) domain.CurationResult {
	if len(items) == 0 {
		return domain.CurationResult{Strategy: domain.StrategySkipped}
	}

	j, ok := c.judge.(ConfiguredJudge)
	if !ok || j.completer == nil {
		return c.fallback(topic, items, ReasonUnconfigured, nil)
	}

	text, err := c.callJudge(ctx, j, topic, items)
	if err != nil {
		return c.fallback(topic, items, ReasonJudgeError, err)
	}

	selected, reason, err := parseJudgeResponse(text, topic)
	if err != nil || len(selected) == 0 {
		return c.fallback(topic, items, reason, err)
	}

	result := domain.CurationResult{
		Items:    truncate(selected, domain.MaxCuratedPerTopic),
		Strategy: domain.StrategyJudge,
	}
	c.recorder.ObserveCuration(result.Strategy, "")
	c.info("topic curated by judge", "topic", topic, "items", len(result.Items))
	return result
}

func (c *Curator) callJudge(ctx context.Context, j ConfiguredJudge, topic string, items []domain.RawContentItem) (string, error) {
	if j.maxInput > 0 && len(items) > j.maxInput {
		items = items[:j.maxInput]
	}

	prompt, err := buildJudgePrompt(topic, items)
	if err != nil {
		return "", err
	}
	req := ports.CompletionRequest{System: judgeSystemPrompt, User: prompt}

	var lastErr error
	for attempt := 0; attempt <= j.retries; attempt++ {
		if attempt > 0 {
			c.warn("retrying judge call", "topic", topic, "attempt", attempt+1, "error", lastErr)
			if err := sleepCtx(ctx, j.retryDelay); err != nil {
				return "", err
			}
		}

		if j.limiter != nil {
			if err := j.limiter.Wait(ctx); err != nil {
				return "", fmt.Errorf("judge rate limit wait: %w", err)
			}
		}

		timeout := j.timeout
		if timeout <= 0 {
			timeout = DefaultJudgeTimeout
		}
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		text, err := j.completer.Complete(callCtx, req)
		cancel()
		if err == nil {
			return text, nil
		}
		lastErr = err
		if ctx.Err() != nil || !isTransient(err) {
			break
		}
	}
	return "", lastErr
}

func (c *Curator) fallback(topic string, items []domain.RawContentItem, reason string, cause error) domain.CurationResult {
	n := domain.FallbackCount
	if len(items) < n {
		n = len(items)
	}

	curated := make([]domain.CuratedItem, 0, n)
	for _, item := range items[:n] {
		curated = append(curated, domain.CuratedItem{
			Title: item.Title,
			URL:   item.URL,
			Topic: topic,
		})
	}

	if reason != ReasonUnconfigured {
		c.warn("judge unusable, using fallback", "topic", topic, "reason", reason, "error", cause)
	} else {
		c.info("judge not configured, using fallback", "topic", topic)
	}
	c.recorder.ObserveCuration(domain.StrategyFallback, reason)

	return domain.CurationResult{
		Items:    truncate(curated, domain.MaxCuratedPerTopic),
		Strategy: domain.StrategyFallback,
		Reason:   reason,
	}
}

type judgeInput struct {
	Title       string   `json:"title"`
	URL         string   `json:"url"`
	Source      string   `json:"source"`
	PublishedAt string   `json:"publishedAt,omitempty"`
	Score       *float64 `json:"score,omitempty"`
}

func buildJudgePrompt(topic string, items []domain.RawContentItem) (string, error) {
	payload := make([]judgeInput, 0, len(items))
	for _, item := range items {
		in := judgeInput{Title: item.Title, URL: item.URL, Source: item.Source, Score: item.Score}
		if !item.PublishedAt.IsZero() {
			in.PublishedAt = item.PublishedAt.UTC().Format(time.RFC3339)
		}
		payload = append(payload, in)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal judge input: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are selecting reading material about %s for experienced engineers, not beginners.\n", topic)
	b.WriteString("Score every candidate from 0 to 10 on three axes:\n")
	b.WriteString("- relevance: how directly it is about the topic\n")
	b.WriteString("- quality: depth, correctness and craft\n")
	b.WriteString("- novelty: new ideas, releases or techniques rather than rehashed basics\n")
	b.WriteString("Keep items scoring 8 or higher on all three axes. Return at least 3 and at most 5 items; ")
	b.WriteString("if fewer than 3 clear the bar, add the closest runners-up.\n")
	fmt.Fprintf(&b, "Respond with only a JSON array of objects {\"title\", \"url\", \"topic\"} where topic is %q.\n", topic)
	b.WriteString("Candidates:\n")
	b.Write(raw)
	return b.String(), nil
}

type judgeItem struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Topic string `json:"topic"`
}

// parseJudgeResponse strips code fences and decodes a JSON array. The returned
// reason names the failure class when the response is unusable.
func parseJudgeResponse(text, topic string) ([]domain.CuratedItem, string, error) {
	cleaned := stripCodeFence(text)

	var value any
	if err := json.Unmarshal([]byte(cleaned), &value); err != nil {
		return nil, ReasonParseError, fmt.Errorf("decode judge response: %w", err)
	}
	if _, ok := value.([]any); !ok {
		return nil, ReasonNotArray, fmt.Errorf("judge response is %T, not an array", value)
	}

	var decoded []judgeItem
	if err := json.Unmarshal([]byte(cleaned), &decoded); err != nil {
		return nil, ReasonParseError, fmt.Errorf("decode judge items: %w", err)
	}

	items := make([]domain.CuratedItem, 0, len(decoded))
	for _, d := range decoded {
		title, link := strings.TrimSpace(d.Title), strings.TrimSpace(d.URL)
		if title == "" || link == "" {
			continue
		}
		items = append(items, domain.CuratedItem{Title: title, URL: link, Topic: topic})
	}
	if len(items) == 0 {
		return nil, ReasonEmpty, nil
	}
	return items, "", nil
}

func stripCodeFence(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// drop the info string, e.g. "json"
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var temp interface{ Temporary() bool }
	if errors.As(err, &temp) {
		return temp.Temporary()
	}
	return false
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func truncate[T any](items []T, limit int) []T {
	if len(items) > limit {
		return items[:limit]
	}
	return items
}

func (c *Curator) info(msg string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Info(msg, args...)
	}
}

func (c *Curator) warn(msg string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}
