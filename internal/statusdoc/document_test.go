package statusdoc

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LearningCurator/internal/domain"
)

const sample = `{
  "title": "status",
  "currentEntry": {
    "mood": "focused",
    "learning": [{"title": "Old", "url": "https://old.example", "topic": "Go"}],
    "learningUpdatedAt": "2026-01-02T03:04:05Z"
  },
  "history": [1, 2, 3]
}`

func TestDecode(t *testing.T) {
	t.Parallel()

	doc, err := Decode([]byte(sample))
	require.NoError(t, err)

	require.Len(t, doc.Learning, 1)
	assert.Equal(t, "Old", doc.Learning[0].Title)
	require.NotNil(t, doc.LearningUpdatedAt)
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), doc.LearningUpdatedAt.UTC())
}

func TestDecodeEmpty(t *testing.T) {
	t.Parallel()

	doc, err := Decode(nil)
	require.NoError(t, err)
	assert.Empty(t, doc.Learning)
	assert.Nil(t, doc.LearningUpdatedAt)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	t.Parallel()

	_, err := Decode([]byte("not json"))
	require.Error(t, err)
}

func TestReplaceLearningKeepsSiblings(t *testing.T) {
	t.Parallel()

	doc, err := Decode([]byte(sample))
	require.NoError(t, err)

	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	replaced := doc.ReplaceLearning([]domain.CuratedItem{
		{Title: "New", URL: "https://new.example", Topic: "Rust"},
	}, now)
	require.True(t, replaced)

	raw, err := doc.Encode()
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, "status", out["title"])
	assert.Equal(t, []any{1.0, 2.0, 3.0}, out["history"])

	entry := out["currentEntry"].(map[string]any)
	assert.Equal(t, "focused", entry["mood"])
	assert.Equal(t, "2026-10-19T12:00:00Z", entry["learningUpdatedAt"])
	learning := entry["learning"].([]any)
	require.Len(t, learning, 1)
	assert.Equal(t, "New", learning[0].(map[string]any)["title"])
	_, hasSummary := learning[0].(map[string]any)["summary"]
	assert.False(t, hasSummary)
}

func TestReplaceLearningIgnoresEmptySelection(t *testing.T) {
	t.Parallel()

	doc, err := Decode([]byte(sample))
	require.NoError(t, err)
	before := *doc.LearningUpdatedAt

	assert.False(t, doc.ReplaceLearning(nil, time.Now()))
	assert.Equal(t, "Old", doc.Learning[0].Title)
	assert.Equal(t, before, *doc.LearningUpdatedAt)
}

func TestCloneIsIndependent(t *testing.T) {
	t.Parallel()

	doc, err := Decode([]byte(sample))
	require.NoError(t, err)

	clone := doc.Clone()
	clone.ReplaceLearning([]domain.CuratedItem{{Title: "X", URL: "https://x", Topic: "Go"}}, time.Now())

	assert.Equal(t, "Old", doc.Learning[0].Title)
	assert.Equal(t, "X", clone.Learning[0].Title)
}
