package topics

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LearningCurator/internal/config"
	"LearningCurator/internal/domain"
)

func writeRoster(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "topics.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestFileRegistryKeepsOrder(t *testing.T) {
	t.Parallel()

	path := writeRoster(t, `
topics:
  - name: Rust
    keywords: [rust, " async "]
    board: rust
  - name: Go
    keywords: [golang]
  - name: Zig
    keywords: []
`)

	got, err := NewFileRegistry(path).Topics(context.Background())
	require.NoError(t, err)

	require.Len(t, got, 3)
	assert.Equal(t, domain.Topic{Name: "Rust", Keywords: []string{"rust", "async"}, Board: "rust"}, got[0])
	assert.Equal(t, "Go", got[1].Name)
	assert.Empty(t, got[2].Keywords)
}

func TestFileRegistryRereadsFile(t *testing.T) {
	t.Parallel()

	path := writeRoster(t, "topics:\n  - name: Go\n    keywords: [golang]\n")
	reg := NewFileRegistry(path)

	first, err := reg.Topics(context.Background())
	require.NoError(t, err)
	require.Len(t, first, 1)

	require.NoError(t, os.WriteFile(path, []byte("topics:\n  - name: Go\n    keywords: [golang]\n  - name: Rust\n    keywords: [rust]\n"), 0o600))

	second, err := reg.Topics(context.Background())
	require.NoError(t, err)
	assert.Len(t, second, 2)
}

func TestFileRegistryErrors(t *testing.T) {
	t.Parallel()

	_, err := NewFileRegistry(filepath.Join(t.TempDir(), "missing.yaml")).Topics(context.Background())
	assert.Error(t, err)

	_, err = NewFileRegistry(writeRoster(t, "topics: [")).Topics(context.Background())
	assert.Error(t, err)

	_, err = NewFileRegistry(writeRoster(t, "topics:\n  - name: Go\n  - name: go\n")).Topics(context.Background())
	assert.ErrorContains(t, err, "duplicate")
}

func TestStaticRegistryIsolation(t *testing.T) {
	t.Parallel()

	source := []domain.Topic{{Name: "Go", Keywords: []string{"golang"}}}
	reg := NewStaticRegistry(source)
	source[0].Keywords[0] = "mutated"

	got, err := reg.Topics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "golang", got[0].Keywords[0])

	got[0].Keywords[0] = "changed"
	again, _ := reg.Topics(context.Background())
	assert.Equal(t, "golang", again[0].Keywords[0])
}

func TestNewFromConfig(t *testing.T) {
	t.Parallel()

	reg, err := New(config.TopicsConfig{Items: []domain.Topic{{Name: " Go ", Keywords: []string{"golang"}}}})
	require.NoError(t, err)
	got, err := reg.Topics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Go", got[0].Name)

	_, err = New(config.TopicsConfig{Items: []domain.Topic{{Name: ""}}})
	assert.Error(t, err)

	reg, err = New(config.TopicsConfig{Path: "topics.yaml"})
	require.NoError(t, err)
	assert.IsType(t, &FileRegistry{}, reg)
}
