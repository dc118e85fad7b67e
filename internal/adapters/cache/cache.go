// Package cache persists the last successful portal payload so consumers can
// read fresh-enough data without touching the network.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/snaka/mioportal/internal/domain"
	"github.com/snaka/mioportal/internal/ports"
)

const (
	cacheFileMode   = 0o600
	cacheDirMode    = 0o700
	cacheFileName   = "payload.json"
	tempFilePattern = ".payload-*.json.tmp"
)

type FileCache struct {
	path string
	mu   sync.RWMutex
}

var _ ports.PayloadCache = (*FileCache)(nil)

func NewFileCache(root string) *FileCache {
	return &FileCache{path: filepath.Join(filepath.Clean(root), cacheFileName)}
}

func (c *FileCache) Save(ctx context.Context, payload domain.AggregatePayload) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("encode payload cache: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return writeFileAtomic(c.path, data)
}

func (c *FileCache) Load(ctx context.Context) (*domain.AggregatePayload, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	data, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read payload cache: %w", err)
	}

	var payload domain.AggregatePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decode payload cache: %w", err)
	}

	return &payload, nil
}

func (c *FileCache) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.Remove(c.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("clear payload cache: %w", err)
	}
	return nil
}

// writeFileAtomic writes through a temp file and renames it into place so a
// crash mid-write never leaves a truncated cache behind.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, cacheDirMode); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}

	tempFile, err := os.CreateTemp(dir, tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
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
		return fmt.Errorf("write temp cache file: %w", err)
	}

	if err := tempFile.Chmod(cacheFileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp cache file: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp cache file: %w", err)
	}

	if err := os.Rename(tempName, path); err != nil {
		return fmt.Errorf("replace cache file: %w", err)
	}

	cleanup = false
	return nil
}
