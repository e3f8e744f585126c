package domain

import "time"

// FetchStatus tells apart the ways a fetcher can come back with nothing.
type FetchStatus string

const (
	FetchOK      FetchStatus = "ok"
	FetchEmpty   FetchStatus = "empty"
	FetchFailed  FetchStatus = "failed"
	FetchSkipped FetchStatus = "skipped"
)

// FetchResult is what a single source returns for one topic.
// Failed and skipped results always carry zero items.
type FetchResult struct {
	Source string
	Status FetchStatus
	Items  []RawContentItem
	Err    error
}

// Succeeded builds an ok or empty result depending on the item count.
func Succeeded(source string, items []RawContentItem) FetchResult {
	if len(items) == 0 {
		return FetchResult{Source: source, Status: FetchEmpty}
	}
	return FetchResult{Source: source, Status: FetchOK, Items: items}
}

// Failed builds a failed result.
func Failed(source string, err error) FetchResult {
	return FetchResult{Source: source, Status: FetchFailed, Err: err}
}

// Skipped builds a result for a source that did not run.
func Skipped(source string, reason error) FetchResult {
	return FetchResult{Source: source, Status: FetchSkipped, Err: reason}
}

// CurationStrategy records which tier produced a curation result.
type CurationStrategy string

const (
	StrategyJudge    CurationStrategy = "judge"
	StrategyFallback CurationStrategy = "fallback"
	StrategySkipped  CurationStrategy = "skipped"
)

// CurationResult is the ordered selection for one topic.
type CurationResult struct {
	Items    []CuratedItem
	Strategy CurationStrategy
	// Reason explains why the fallback was used; empty on the judge path.
	Reason string
}

// TopicReport summarizes what happened to a topic during a run.
type TopicReport struct {
	Topic    string           `json:"topic"`
	Raw      int              `json:"raw"`
	Curated  int              `json:"curated"`
	Strategy CurationStrategy `json:"strategy"`
	Reason   string           `json:"reason,omitempty"`
}

// RunSummary is the outcome of one pipeline run.
type RunSummary struct {
	RunID      string        `json:"runId"`
	StartedAt  time.Time     `json:"startedAt"`
	FinishedAt time.Time     `json:"finishedAt"`
	Items      []CuratedItem `json:"items"`
	Written    bool          `json:"written"`
	Topics     []TopicReport `json:"topics"`
}
