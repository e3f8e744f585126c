// Package statusdoc decodes and rewrites the externally owned status document.
// Only currentEntry.learning and currentEntry.learningUpdatedAt are interpreted;
// every other field is carried through untouched.
package statusdoc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"LearningCurator/internal/domain"
)

const (
	entryKey     = "currentEntry"
	learningKey  = "learning"
	updatedAtKey = "learningUpdatedAt"
)

// Document is a decoded status document plus the store's version token.
type Document struct {
	Learning          []domain.CuratedItem
	LearningUpdatedAt *time.Time
	// Version is opaque to everything except the store that produced it.
	Version string

	root  map[string]json.RawMessage
	entry map[string]json.RawMessage
}

// New returns an empty document.
func New() *Document {
	return &Document{
		root:  map[string]json.RawMessage{},
		entry: map[string]json.RawMessage{},
	}
}

// Decode parses raw JSON. Empty input yields an empty document.
func Decode(raw []byte) (*Document, error) {
	doc := New()
	if len(bytes.TrimSpace(raw)) == 0 {
		return doc, nil
	}

	if err := json.Unmarshal(raw, &doc.root); err != nil {
		return nil, fmt.Errorf("decode status document: %w", err)
	}
	if doc.root == nil {
		doc.root = map[string]json.RawMessage{}
	}

	entryRaw, ok := doc.root[entryKey]
	if !ok || isNull(entryRaw) {
		return doc, nil
	}
	if err := json.Unmarshal(entryRaw, &doc.entry); err != nil {
		return nil, fmt.Errorf("decode %s: %w", entryKey, err)
	}
	if doc.entry == nil {
		doc.entry = map[string]json.RawMessage{}
	}

	if raw, ok := doc.entry[learningKey]; ok && !isNull(raw) {
		if err := json.Unmarshal(raw, &doc.Learning); err != nil {
			return nil, fmt.Errorf("decode %s.%s: %w", entryKey, learningKey, err)
		}
	}
	if raw, ok := doc.entry[updatedAtKey]; ok && !isNull(raw) {
		var ts time.Time
		if err := json.Unmarshal(raw, &ts); err != nil {
			return nil, fmt.Errorf("decode %s.%s: %w", entryKey, updatedAtKey, err)
		}
		doc.LearningUpdatedAt = &ts
	}

	return doc, nil
}

// ReplaceLearning swaps the learning selection and advances the timestamp.
// An empty selection is ignored so prior content is never erased.
func (d *Document) ReplaceLearning(items []domain.CuratedItem, now time.Time) bool {
	if len(items) == 0 {
		return false
	}
	d.Learning = append([]domain.CuratedItem(nil), items...)
	ts := now.UTC()
	d.LearningUpdatedAt = &ts
	return true
}

// Encode serializes the document, keeping every sibling field.
func (d *Document) Encode() ([]byte, error) {
	root := make(map[string]json.RawMessage, len(d.root)+1)
	for k, v := range d.root {
		root[k] = v
	}
	entry := make(map[string]json.RawMessage, len(d.entry)+2)
	for k, v := range d.entry {
		entry[k] = v
	}

	if d.Learning != nil {
		raw, err := json.Marshal(d.Learning)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", learningKey, err)
		}
		entry[learningKey] = raw
	}
	if d.LearningUpdatedAt != nil {
		raw, err := json.Marshal(d.LearningUpdatedAt.UTC().Format(time.RFC3339))
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", updatedAtKey, err)
		}
		entry[updatedAtKey] = raw
	}

	if len(entry) > 0 {
		raw, err := json.Marshal(entry)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", entryKey, err)
		}
		root[entryKey] = raw
	}

	out, err := json.MarshalIndent(root, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode status document: %w", err)
	}
	return append(out, '\n'), nil
}

// Clone returns a deep copy, so stores can hand out documents safely.
func (d *Document) Clone() *Document {
	out := &Document{
		Learning: append([]domain.CuratedItem(nil), d.Learning...),
		Version:  d.Version,
		root:     make(map[string]json.RawMessage, len(d.root)),
		entry:    make(map[string]json.RawMessage, len(d.entry)),
	}
	if d.LearningUpdatedAt != nil {
		ts := *d.LearningUpdatedAt
		out.LearningUpdatedAt = &ts
	}
	for k, v := range d.root {
		out.root[k] = append(json.RawMessage(nil), v...)
	}
	for k, v := range d.entry {
		out.entry[k] = append(json.RawMessage(nil), v...)
	}
	return out
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
