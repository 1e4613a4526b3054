// Package watch runs the pipeline automatically when new export files land
// in an inbox directory, the local equivalent of a storage-triggered
// workflow.
package watch

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/greenops/esg-reporting/pkg/pipeline"
)

// Options configures a watcher.
type Options struct {
	// Settle is how long a file must stay unchanged before it is considered
	// fully written. Exports are copied in, not atomically renamed.
	Settle time.Duration

	// Poll is the quiescence check interval.
	Poll time.Duration
}

func (o Options) withDefaults() Options {
	if o.Settle <= 0 {
		o.Settle = 2 * time.Second
	}
	if o.Poll <= 0 {
		o.Poll = 500 * time.Millisecond
	}
	return o
}

// ProcessFunc handles one settled file.
type ProcessFunc func(ctx context.Context, path string) error

type pendingFile struct {
	size     int64
	lastSeen time.Time
}

// Run watches dir until ctx is cancelled, invoking process for each new
// tabular file once its size stops changing. Processing errors are logged
// and do not stop the watcher.
func Run(ctx context.Context, dir string, process ProcessFunc, logger *zap.Logger, opts Options) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts = opts.withDefaults()

	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("watch directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("watch path %s is not a directory", dir)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() {
		_ = w.Close()
	}()
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	logger.Info("watching for new export files",
		zap.String("dir", dir),
		zap.Duration("settle", opts.Settle))

	pending := make(map[string]pendingFile)
	ticker := time.NewTicker(opts.Poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !isTabular(ev.Name) {
				continue
			}
			size := int64(-1)
			if fi, err := os.Stat(ev.Name); err == nil && fi.Mode().IsRegular() {
				size = fi.Size()
			}
			pending[ev.Name] = pendingFile{size: size, lastSeen: time.Now()}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error", zap.Error(err))

		case now := <-ticker.C:
			for path, p := range pending {
				fi, err := os.Stat(path)
				if err != nil {
					// Removed or renamed away before settling.
					delete(pending, path)
					continue
				}
				if fi.Size() != p.size {
					pending[path] = pendingFile{size: fi.Size(), lastSeen: now}
					continue
				}
				if now.Sub(p.lastSeen) < opts.Settle {
					continue
				}
				delete(pending, path)

				logger.Info("processing settled file", zap.String("file", path))
				if err := process(ctx, path); err != nil {
					logger.Error("processing failed",
						zap.String("file", path),
						zap.Error(err))
				}
			}
		}
	}
}

func isTabular(path string) bool {
	_, err := pipeline.DetectFormat(path)
	return err == nil
}
