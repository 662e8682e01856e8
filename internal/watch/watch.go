// Package watch runs a handler for documents that appear in a directory.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is how long a file must stay quiet before it is handled.
const DefaultDebounce = 500 * time.Millisecond

// Handler processes one settled file.
type Handler func(ctx context.Context, path string) error

// Watcher calls Handle for files created or written in Dir whose extension
// is in Exts. Writes in quick succession are merged into one call.
type Watcher struct {
	Dir      string
	Exts     []string
	Debounce time.Duration
	Handle   Handler
	Logger   *zap.Logger
}

// Run blocks until ctx is done. Handler errors are logged and do not stop
// the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()
	if err := fw.Add(w.Dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.Dir, err)
	}

	logger := w.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	debounce := w.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	tick := time.NewTicker(debounce / 5)
	defer tick.Stop()

	pending := make(map[string]time.Time)
	logger.Info("watching directory", zap.String("dir", w.Dir))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			if !w.accepts(ev.Name) {
				continue
			}
			pending[ev.Name] = time.Now()

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error", zap.Error(err))

		case now := <-tick.C:
			for _, path := range settled(pending, now, debounce) {
				delete(pending, path)
				logger.Info("new document", zap.String("path", path))
				if err := w.Handle(ctx, path); err != nil {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					logger.Error("document failed", zap.String("path", path), zap.Error(err))
				}
			}
		}
	}
}

func (w *Watcher) accepts(path string) bool {
	if len(w.Exts) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range w.Exts {
		if strings.EqualFold(e, ext) {
			return true
		}
	}
	return false
}

// settled returns, sorted, the paths last touched at least d before now.
func settled(pending map[string]time.Time, now time.Time, d time.Duration) []string {
	var out []string
	for path, at := range pending {
		if now.Sub(at) >= d {
			out = append(out, path)
		}
	}
	sort.Strings(out)
	return out
}
