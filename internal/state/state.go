// Package state persists the collection watermark between runs. The file
// store is the default; the Redis store serves deployments where several
// reporter instances share one watermark.
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// fileState is the on-disk representation.
type fileState struct {
	LastEventTime time.Time `json:"last_event_time"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// FileStore persists the watermark as a small JSON file. Writes go through
// a temp file and rename so a crash mid-write never leaves a torn state.
type FileStore struct {
	path string
}

// NewFileStore creates a file-backed watermark store at the given path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the stored watermark. A missing file returns a zero time and
// no error: a first run simply has no state yet.
func (s *FileStore) Load(_ context.Context) (time.Time, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("failed to read state file: %w", err)
	}

	var st fileState
	if err := json.Unmarshal(data, &st); err != nil {
		return time.Time{}, fmt.Errorf("failed to decode state file: %w", err)
	}
	return st.LastEventTime, nil
}

// Store writes the watermark atomically.
func (s *FileStore) Store(_ context.Context, t time.Time) error {
	data, err := json.MarshalIndent(fileState{
		LastEventTime: t,
		UpdatedAt:     time.Now().UTC(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".state-*")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close state file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}
