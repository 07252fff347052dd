package progress

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/bytedance/sonic"
)

// FileStore keeps one JSON document per learner in a directory
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore creates the directory if needed
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create progress dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(learner string) string {
	return filepath.Join(s.dir, filepath.Base(learner)+".json")
}

func (s *FileStore) Load(_ context.Context, learner string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path(learner))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read progress: %w", err)
	}

	var rec Record
	if err := sonic.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode progress: %w", err)
	}
	if rec.CompletedLessons == nil {
		rec.CompletedLessons = []int{}
	}
	return &rec, nil
}

func (s *FileStore) Save(_ context.Context, rec *Record) error {
	data, err := sonic.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encode progress: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Write then rename so readers never see a partial document
	tmp, err := os.CreateTemp(s.dir, ".progress-*")
	if err != nil {
		return fmt.Errorf("write progress: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write progress: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write progress: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(rec.LearnerID)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write progress: %w", err)
	}
	return nil
}

func (s *FileStore) Delete(_ context.Context, learner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path(learner))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete progress: %w", err)
	}
	return nil
}

func (s *FileStore) Close() error { return nil }
