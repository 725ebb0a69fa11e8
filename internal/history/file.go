package history

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/Iron-Ham/parley/internal/actor"
)

const historyFileExt = ".json"

// FileStore persists one JSON file per session under a base directory.
// Writes are atomic (temp file + rename) so a crash mid-write never
// leaves a corrupt history behind.
type FileStore struct {
	baseDir string
	mu      sync.RWMutex
}

// NewFileStore creates a file store rooted at baseDir, creating the
// directory if needed.
func NewFileStore(baseDir string) (*FileStore, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("history: base directory is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}
	return &FileStore{baseDir: baseDir}, nil
}

// Append adds turns to the end of a session's history.
func (s *FileStore) Append(_ context.Context, sessionID string, turns []actor.ConversationTurn) error {
	if len(turns) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.read(sessionID)
	if err != nil {
		return err
	}
	existing = append(existing, turns...)

	data, err := json.MarshalIndent(existing, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}
	return atomicWriteFile(s.path(sessionID), data, 0o644)
}

// Load returns a session's full history. A missing file yields a nil
// slice and no error.
func (s *FileStore) Load(_ context.Context, sessionID string) ([]actor.ConversationTurn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read(sessionID)
}

// Clear removes a session's history file. Idempotent.
func (s *FileStore) Clear(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(sessionID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove history file: %w", err)
	}
	return nil
}

// Sessions returns the IDs with recorded history, lexically sorted.
func (s *FileStore) Sessions(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read history directory: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, historyFileExt) {
			continue
		}
		id, err := url.PathUnescape(strings.TrimSuffix(name, historyFileExt))
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Close is a no-op.
func (s *FileStore) Close() error { return nil }

// read loads and decodes one session file. Callers hold the lock.
func (s *FileStore) read(sessionID string) ([]actor.ConversationTurn, error) {
	data, err := os.ReadFile(s.path(sessionID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read history file: %w", err)
	}

	var turns []actor.ConversationTurn
	if err := json.Unmarshal(data, &turns); err != nil {
		return nil, fmt.Errorf("corrupt history file for session %s: %w", sessionID, err)
	}
	return turns, nil
}

// path maps a session ID to its file. IDs are opaque caller-supplied
// strings, so they are path-escaped to keep one flat directory of files.
func (s *FileStore) path(sessionID string) string {
	return filepath.Join(s.baseDir, url.PathEscape(sessionID)+historyFileExt)
}

// atomicWriteFile writes data to a temporary file in the target's
// directory, syncs it, then renames it into place so the target is never
// partially written.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)

	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}
