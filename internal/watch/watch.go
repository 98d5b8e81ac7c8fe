// Package watch triggers recompilation when contract files change.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/hanpama/contractgraph/internal/contract"
)

// DefaultDebounce coalesces bursts of file events into one reload.
const DefaultDebounce = 250 * time.Millisecond

// ReloadFunc rereads the contracts and rebuilds the schema.
type ReloadFunc func(ctx context.Context) error

type Option func(*Watcher)

func WithDebounce(d time.Duration) Option { return func(w *Watcher) { w.debounce = d } }

func WithLogger(l *slog.Logger) Option { return func(w *Watcher) { w.logger = l } }

// Watcher observes one contracts directory.
type Watcher struct {
	dir      string
	reload   ReloadFunc
	debounce time.Duration
	logger   *slog.Logger
	fsw      *fsnotify.Watcher
}

// Open starts watching dir, creating it when missing. Events are delivered
// once Run is called.
func Open(dir string, reload ReloadFunc, opts ...Option) (*Watcher, error) {
	w := &Watcher{dir: dir, reload: reload, debounce: DefaultDebounce, logger: slog.Default()}
	for _, o := range opts {
		o(w)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	w.fsw = fsw
	return w, nil
}

// Run dispatches reloads until ctx is done, then releases the watch.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !relevant(ev) {
				continue
			}
			w.logger.Debug("contract changed", "path", ev.Name, "op", ev.Op.String())
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "dir", w.dir, "error", err)
		case <-fire:
			fire = nil
			w.logger.Info("contracts changed, recompiling", "dir", w.dir)
			if err := w.reload(ctx); err != nil {
				w.logger.Error("recompile failed", "error", err)
			}
		}
	}
}

func relevant(ev fsnotify.Event) bool {
	if !contract.IsContractFile(ev.Name) {
		return false
	}
	return ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Write) ||
		ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename)
}
