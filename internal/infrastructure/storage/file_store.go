package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"LearningCurator/internal/ports"
	"LearningCurator/internal/statusdoc"
)

// FileStore keeps the status document in a local JSON file. The version
// token is the content hash, so edits made by other writers are detected.
type FileStore struct {
	path string
	mu   sync.Mutex
}

var _ ports.DocumentStore = (*FileStore)(nil)

// NewFileStore points the store at path. The file need not exist yet.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads and decodes the file. A missing file is an empty document.
func (s *FileStore) Load(ctx context.Context) (*statusdoc.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, version, err := s.read()
	if err != nil {
		return nil, err
	}

	doc, err := statusdoc.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.path, err)
	}
	doc.Version = version
	return doc, nil
}

// Save replaces the file atomically when the content still matches the
// version the document was loaded with.
func (s *FileStore) Save(ctx context.Context, doc *statusdoc.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := doc.Encode()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, current, err := s.read()
	if err != nil {
		return err
	}
	if current != doc.Version {
		return ports.ErrVersionConflict
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".status-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(body); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}

func (s *FileStore) read() ([]byte, string, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", s.path, err)
	}
	sum := sha256.Sum256(raw)
	return raw, hex.EncodeToString(sum[:]), nil
}
