package content

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Source serves the active table and, when backed by a file, reloads it on
// change. A reload that fails validation keeps the previous table.
type Source struct {
	path   string
	logger *slog.Logger

	mu    sync.RWMutex
	table Table
}

func NewStaticSource(table Table) *Source {
	return &Source{table: table.Clone(), logger: slog.Default()}
}

func NewFileSource(path string, logger *slog.Logger) (*Source, error) {
	if logger == nil {
		logger = slog.Default()
	}
	table, err := Load(path)
	if err != nil {
		return nil, err
	}
	return &Source{path: path, logger: logger, table: table}, nil
}

func (s *Source) Table() Table {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.table.Clone()
}

func (s *Source) Reload() error {
	if s.path == "" {
		return nil
	}
	table, err := Load(s.path)
	if err != nil {
		s.logger.Error("content reload failed, keeping previous table", "path", s.path, "error", err)
		return err
	}
	s.mu.Lock()
	s.table = table
	s.mu.Unlock()
	s.logger.Info("content reloaded", "path", s.path, "prompts", len(table.Prompts))
	return nil
}

// Watch reloads the table whenever the file is written or replaced. It
// watches the parent directory so editors that rename over the file are
// picked up. Watch blocks until ctx is done.
func (s *Source) Watch(ctx context.Context) error {
	if s.path == "" {
		<-ctx.Done()
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create content watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		return fmt.Errorf("watch content dir: %w", err)
	}
	target := filepath.Clean(s.path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				_ = s.Reload()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("content watcher error", "error", err)
		}
	}
}
