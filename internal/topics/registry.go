// Package topics supplies the ordered roster of tracked technologies.
package topics

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"LearningCurator/internal/config"
	"LearningCurator/internal/domain"
	"LearningCurator/internal/ports"
)

// StaticRegistry serves a fixed roster, usually taken from the main config.
type StaticRegistry struct {
	topics []domain.Topic
}

var _ ports.TopicRegistry = (*StaticRegistry)(nil)

// NewStaticRegistry copies the roster so later edits by the caller do not leak in.
func NewStaticRegistry(topics []domain.Topic) *StaticRegistry {
	return &StaticRegistry{topics: cloneTopics(topics)}
}

// Topics returns the roster in configured order.
func (s *StaticRegistry) Topics(context.Context) ([]domain.Topic, error) {
	return cloneTopics(s.topics), nil
}

// FileRegistry reads a YAML roster on every call, so edits apply to the next
// run without a restart.
type FileRegistry struct {
	path string
}

var _ ports.TopicRegistry = (*FileRegistry)(nil)

// NewFileRegistry points the registry at a YAML file.
func NewFileRegistry(path string) *FileRegistry {
	return &FileRegistry{path: path}
}

type rosterFile struct {
	Topics []domain.Topic `yaml:"topics"`
}

// Topics loads and validates the roster file.
func (f *FileRegistry) Topics(ctx context.Context) ([]domain.Topic, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("read topics file: %w", err)
	}

	var roster rosterFile
	if err := yaml.Unmarshal(raw, &roster); err != nil {
		return nil, fmt.Errorf("parse topics file %s: %w", f.path, err)
	}

	if err := validate(roster.Topics); err != nil {
		return nil, fmt.Errorf("topics file %s: %w", f.path, err)
	}
	return normalize(roster.Topics), nil
}

// New picks the registry implied by the configuration.
func New(cfg config.TopicsConfig) (ports.TopicRegistry, error) {
	if cfg.Path != "" {
		return NewFileRegistry(cfg.Path), nil
	}
	if err := validate(cfg.Items); err != nil {
		return nil, fmt.Errorf("topics: %w", err)
	}
	return NewStaticRegistry(normalize(cfg.Items)), nil
}

func validate(topics []domain.Topic) error {
	seen := make(map[string]struct{}, len(topics))
	for i, t := range topics {
		name := strings.TrimSpace(t.Name)
		if name == "" {
			return fmt.Errorf("topic #%d has no name", i+1)
		}
		key := strings.ToLower(name)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("duplicate topic %q", name)
		}
		seen[key] = struct{}{}
	}
	return nil
}

// normalize trims names and drops blank keywords. A topic left without
// keywords stays in the roster; the pipeline skips it.
func normalize(topics []domain.Topic) []domain.Topic {
	out := make([]domain.Topic, 0, len(topics))
	for _, t := range topics {
		keywords := make([]string, 0, len(t.Keywords))
		for _, kw := range t.Keywords {
			if kw = strings.TrimSpace(kw); kw != "" {
				keywords = append(keywords, kw)
			}
		}
		out = append(out, domain.Topic{
			Name:     strings.TrimSpace(t.Name),
			Keywords: keywords,
			Board:    strings.TrimSpace(t.Board),
		})
	}
	return out
}

func cloneTopics(topics []domain.Topic) []domain.Topic {
	out := make([]domain.Topic, len(topics))
	for i, t := range topics {
		t.Keywords = append([]string(nil), t.Keywords...)
		out[i] = t
	}
	return out
}
