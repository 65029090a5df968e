package triage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// LoadRules reads and validates a YAML rule table.
func LoadRules(path string) (*RuleTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	return ParseRules(data)
}

func ParseRules(data []byte) (*RuleTable, error) {
	var table RuleTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRules, err)
	}
	if err := table.Validate(); err != nil {
		return nil, err
	}
	return &table, nil
}

// WatchRules reloads the engine's table whenever the file at path is written
// or replaced. A table that fails to load is logged and the previous one is
// kept. WatchRules returns once the watcher is running; it stops with ctx.
func WatchRules(ctx context.Context, path string, engine *Engine, logger *zap.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create rules watcher: %w", err)
	}
	// Watch the directory so editors that rename over the file are seen.
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return fmt.Errorf("failed to watch rules directory: %w", err)
	}

	target := filepath.Clean(path)
	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				table, err := LoadRules(path)
				if err != nil {
					logger.Warn("Rule table reload failed, keeping previous table",
						zap.String("path", path),
						zap.Error(err),
					)
					continue
				}
				if err := engine.SetRules(table); err != nil {
					logger.Warn("Rule table rejected", zap.String("path", path), zap.Error(err))
					continue
				}
				logger.Info("Rule table reloaded",
					zap.String("path", path),
					zap.Int("categories", len(table.Categories)),
				)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Error("Rules watcher error", zap.Error(err))
			}
		}
	}()

	return nil
}
