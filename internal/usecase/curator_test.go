package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LearningCurator/internal/domain"
)

func judgeWith(c *scriptedCompleter, retries int) ConfiguredJudge {
	return NewConfiguredJudge(c, JudgeOptions{Retries: retries})
}

func TestCurateUnconfiguredFallsBackToFirstThree(t *testing.T) {
	t.Parallel()

	curator := NewCurator(UnconfiguredJudge{Reason: "no key"}, nil, nil)
	items := rawItems(6)

	first := curator.Curate(context.Background(), "Rust", items)
	second := curator.Curate(context.Background(), "Rust", items)

	assert.Equal(t, domain.StrategyFallback, first.Strategy)
	assert.Equal(t, ReasonUnconfigured, first.Reason)
	require.Len(t, first.Items, 3)
	for i, item := range first.Items {
		assert.Equal(t, items[i].Title, item.Title)
		assert.Equal(t, items[i].URL, item.URL)
		assert.Equal(t, "Rust", item.Topic)
	}
	assert.Equal(t, first, second)
}

func TestCurateFallbackWithFewItems(t *testing.T) {
	t.Parallel()

	result := NewCurator(nil, nil, nil).Curate(context.Background(), "Go", rawItems(2))
	assert.Len(t, result.Items, 2)
	assert.Equal(t, domain.StrategyFallback, result.Strategy)
}

func TestCurateEmptyInputSkipsJudge(t *testing.T) {
	t.Parallel()

	completer := &scriptedCompleter{}
	result := NewCurator(judgeWith(completer, 0), nil, nil).Curate(context.Background(), "Go", nil)

	assert.Empty(t, result.Items)
	assert.Equal(t, domain.StrategySkipped, result.Strategy)
	assert.Zero(t, completer.Calls())
}

func TestCurateJudgeSelection(t *testing.T) {
	t.Parallel()

	completer := &scriptedCompleter{responses: []string{
		`[{"title":"Async Rust in depth","url":"https://a.example","topic":"Something else"},
		  {"title":"Pinning explained","url":"https://b.example","topic":"Rust"}]`,
	}}
	recorder := newRecordingRecorder()
	result := NewCurator(judgeWith(completer, 0), recorder, nil).Curate(context.Background(), "Rust", rawItems(8))

	assert.Equal(t, domain.StrategyJudge, result.Strategy)
	require.Len(t, result.Items, 2)
	assert.Equal(t, "Async Rust in depth", result.Items[0].Title)
	assert.Equal(t, "Rust", result.Items[0].Topic)
	assert.Equal(t, []string{"judge:"}, recorder.curations)
}

func TestCurateJudgeResultCappedAtFive(t *testing.T) {
	t.Parallel()

	var picks []map[string]string
	for i := 0; i < 7; i++ {
		picks = append(picks, map[string]string{"title": fmt.Sprintf("t%d", i), "url": fmt.Sprintf("https://x/%d", i), "topic": "Go"})
	}
	raw, err := json.Marshal(picks)
	require.NoError(t, err)

	completer := &scriptedCompleter{responses: []string{string(raw)}}
	result := NewCurator(judgeWith(completer, 0), nil, nil).Curate(context.Background(), "Go", rawItems(10))

	require.Len(t, result.Items, domain.MaxCuratedPerTopic)
	assert.Equal(t, "t4", result.Items[4].Title)
}

func TestCurateFencedEmptyArrayFallsBack(t *testing.T) {
	t.Parallel()

	completer := &scriptedCompleter{responses: []string{"```json\n[]\n```"}}
	items := rawItems(8)
	result := NewCurator(judgeWith(completer, 0), nil, nil).Curate(context.Background(), "Go", items)

	assert.Equal(t, domain.StrategyFallback, result.Strategy)
	assert.Equal(t, ReasonEmpty, result.Reason)
	require.Len(t, result.Items, 3)
	assert.Equal(t, items[0].URL, result.Items[0].URL)
}

func TestCurateUnusableResponses(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		reply  string
		reason string
	}{
		{name: "prose", reply: "Here are my picks: none", reason: ReasonParseError},
		{name: "object", reply: `{"items":[]}`, reason: ReasonNotArray},
		{name: "entries without url", reply: `[{"title":"x"}]`, reason: ReasonEmpty},
		{name: "wrong element type", reply: `[1,2,3]`, reason: ReasonParseError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			completer := &scriptedCompleter{responses: []string{tc.reply}}
			result := NewCurator(judgeWith(completer, 0), nil, nil).Curate(context.Background(), "Go", rawItems(4))

			assert.Equal(t, domain.StrategyFallback, result.Strategy)
			assert.Equal(t, tc.reason, result.Reason)
			assert.Len(t, result.Items, 3)
		})
	}
}

func TestCurateJudgeErrorFallsBack(t *testing.T) {
	t.Parallel()

	completer := &scriptedCompleter{errs: []error{errors.New("invalid api key")}}
	result := NewCurator(judgeWith(completer, 3), nil, nil).Curate(context.Background(), "Go", rawItems(4))

	assert.Equal(t, domain.StrategyFallback, result.Strategy)
	assert.Equal(t, ReasonJudgeError, result.Reason)
	assert.Equal(t, 1, completer.Calls(), "permanent errors are not retried")
}

func TestCurateRetriesTransientError(t *testing.T) {
	t.Parallel()

	completer := &scriptedCompleter{
		errs:      []error{temporaryError{}},
		responses: []string{"", `[{"title":"A","url":"https://a","topic":"Go"}]`},
	}
	result := NewCurator(judgeWith(completer, 1), nil, nil).Curate(context.Background(), "Go", rawItems(4))

	assert.Equal(t, domain.StrategyJudge, result.Strategy)
	assert.Equal(t, 2, completer.Calls())
}

func TestCurateRetryBudgetExhausted(t *testing.T) {
	t.Parallel()

	completer := &scriptedCompleter{errs: []error{temporaryError{}, temporaryError{}, temporaryError{}}}
	result := NewCurator(judgeWith(completer, 1), nil, nil).Curate(context.Background(), "Go", rawItems(4))

	assert.Equal(t, domain.StrategyFallback, result.Strategy)
	assert.Equal(t, 2, completer.Calls())
}

func TestCurateLimitsJudgeInput(t *testing.T) {
	t.Parallel()

	completer := &scriptedCompleter{responses: []string{`[{"title":"A","url":"https://a","topic":"Go"}]`}}
	judge := NewConfiguredJudge(completer, JudgeOptions{MaxInput: 5})
	NewCurator(judge, nil, nil).Curate(context.Background(), "Go", rawItems(12))

	require.Len(t, completer.requests, 1)
	prompt := completer.requests[0].User
	assert.Contains(t, prompt, "https://example.com/4")
	assert.NotContains(t, prompt, "https://example.com/5")
	assert.Contains(t, prompt, `"Go"`)
}

func TestStripCodeFence(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "[]", stripCodeFence("```json\n[]\n```"))
	assert.Equal(t, "[1]", stripCodeFence("```\n[1]\n```"))
	assert.Equal(t, "[]", stripCodeFence("  []  "))
	assert.True(t, strings.HasPrefix(stripCodeFence("```json[2]```"), "[2]"))
}
