// Package snapshot persists the widget projection as a small JSON file that
// external renderers poll between refreshes.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/snaka/mioportal/internal/domain"
	"github.com/snaka/mioportal/internal/ports"
)

const (
	snapshotFileMode = 0o600
	snapshotDirMode  = 0o700
	snapshotFileName = "snapshot.json"
	tempFilePattern  = ".snapshot-*.json.tmp"
)

type FileStore struct {
	path string
	mu   sync.RWMutex
}

var _ ports.SnapshotStore = (*FileStore)(nil)

func NewFileStore(root string) *FileStore {
	return &FileStore{path: filepath.Join(filepath.Clean(root), snapshotFileName)}
}

func (s *FileStore) Save(ctx context.Context, snapshot domain.WidgetSnapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked(snapshot)
}

func (s *FileStore) Load(ctx context.Context) (*domain.WidgetSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readLocked()
}

// SetRefreshing flips only the in-progress flag. A missing snapshot gets
// created so the flag is visible before the first successful refresh.
func (s *FileStore) SetRefreshing(ctx context.Context, refreshing bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.readLocked()
	if err != nil {
		return err
	}
	if current == nil {
		current = &domain.WidgetSnapshot{}
	}

	current.IsRefreshing = refreshing
	return s.writeLocked(*current)
}

func (s *FileStore) SetSuccessUntil(ctx context.Context, until *time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.readLocked()
	if err != nil {
		return err
	}
	if current == nil {
		current = &domain.WidgetSnapshot{}
	}

	current.SuccessUntil = until
	return s.writeLocked(*current)
}

func (s *FileStore) readLocked() (*domain.WidgetSnapshot, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read snapshot file: %w", err)
	}

	var snapshot domain.WidgetSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("decode snapshot file: %w", err)
	}

	return &snapshot, nil
}

func (s *FileStore) writeLocked(snapshot domain.WidgetSnapshot) error {
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, snapshotDirMode); err != nil {
		return fmt.Errorf("create snapshot directory: %w", err)
	}

	tempFile, err := os.CreateTemp(dir, tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp snapshot file: %w", err)
	}

	tempName := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempName)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp snapshot file: %w", err)
	}

	if err := tempFile.Chmod(snapshotFileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp snapshot file: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp snapshot file: %w", err)
	}

	if err := os.Rename(tempName, s.path); err != nil {
		return fmt.Errorf("replace snapshot file: %w", err)
	}

	cleanup = false
	return nil
}
