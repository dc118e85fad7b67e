// Package history keeps a bounded log of refresh attempts in a TOML file.
package history

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/snaka/mioportal/internal/domain"
	"github.com/snaka/mioportal/internal/ports"
)

const (
	historyFileMode = 0o600
	historyDirMode  = 0o700
	historyFileName = "history.toml"
	tempFilePattern = ".history-*.toml.tmp"

	// maxRecords bounds the file so years of scheduled refreshes cannot
	// grow it without limit.
	maxRecords = 50
)

type fileSchema struct {
	Records []domain.RefreshRecord `toml:"records"`
}

type FileLog struct {
	path string
	mu   sync.RWMutex
}

var _ ports.HistoryLog = (*FileLog)(nil)

func NewFileLog(root string) *FileLog {
	return &FileLog{path: filepath.Join(filepath.Clean(root), historyFileName)}
}

// Append inserts the record at the head and trims the tail past the cap.
func (l *FileLog) Append(ctx context.Context, record domain.RefreshRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	file, err := l.readLocked()
	if err != nil {
		return err
	}

	file.Records = append([]domain.RefreshRecord{record}, file.Records...)
	if len(file.Records) > maxRecords {
		file.Records = file.Records[:maxRecords]
	}

	return l.writeLocked(file)
}

func (l *FileLog) Load(ctx context.Context) ([]domain.RefreshRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	file, err := l.readLocked()
	if err != nil {
		return nil, err
	}

	return file.Records, nil
}

func (l *FileLog) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("clear history file: %w", err)
	}
	return nil
}

func (l *FileLog) readLocked() (fileSchema, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fileSchema{}, nil
		}
		return fileSchema{}, fmt.Errorf("read history file: %w", err)
	}

	var file fileSchema
	if err := toml.Unmarshal(data, &file); err != nil {
		return fileSchema{}, fmt.Errorf("decode history file: %w", err)
	}

	return file, nil
}

func (l *FileLog) writeLocked(file fileSchema) error {
	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, historyDirMode); err != nil {
		return fmt.Errorf("create history directory: %w", err)
	}

	data, err := toml.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode history file: %w", err)
	}

	tempFile, err := os.CreateTemp(dir, tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp history file: %w", err)
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
		return fmt.Errorf("write temp history file: %w", err)
	}

	if err := tempFile.Chmod(historyFileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp history file: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp history file: %w", err)
	}

	if err := os.Rename(tempName, l.path); err != nil {
		return fmt.Errorf("replace history file: %w", err)
	}

	cleanup = false
	return nil
}
