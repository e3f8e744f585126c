package domain

import "time"

const (
	// MaxCuratedPerTopic caps a single topic's curation result.
	MaxCuratedPerTopic = 5
	// MaxGlobalSelection caps the merged selection written to the status document.
	MaxGlobalSelection = 5
	// FallbackCount is how many raw items the deterministic fallback keeps.
	FallbackCount = 3
)

// Topic is a tracked technology with the keywords used to query sources.
type Topic struct {
	Name     string   `yaml:"name" json:"name"`
	Keywords []string `yaml:"keywords" json:"keywords"`
	// Board overrides the discussion-board source's default board for this topic.
	Board string `yaml:"board,omitempty" json:"board,omitempty"`
}

// PrimaryKeyword returns the first keyword, used by tag-style feeds.
func (t Topic) PrimaryKeyword() string {
	if len(t.Keywords) == 0 {
		return ""
	}
	return t.Keywords[0]
}

// RawContentItem is an article candidate produced by a source fetcher.
type RawContentItem struct {
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Source      string    `json:"source"`
	PublishedAt time.Time `json:"publishedAt"`
	Score       *float64  `json:"score,omitempty"`
}

// CuratedItem is the unit persisted into the status document.
type CuratedItem struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Topic   string `json:"topic"`
	Summary string `json:"summary,omitempty"`
}

// Float returns a pointer to v, handy for optional scores.
func Float(v float64) *float64 {
	return &v
}
