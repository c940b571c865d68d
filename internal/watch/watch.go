// Package watch scans map files as they land in an upload directory.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.opentelemetry.io/otel/metric"

	"github.com/WCArena/pudscan/internal/config"
	"github.com/WCArena/pudscan/internal/dispatcher"
	"github.com/WCArena/pudscan/internal/scanner"
)

// FileScanner is the part of scanner.Scanner the watcher needs.
type FileScanner interface {
	ScanFile(ctx context.Context, path string) scanner.Result
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithResultHandler registers fn to receive every scan result. fn runs on the
// queue worker.
func WithResultHandler(fn func(scanner.Result)) Option {
	return func(w *Watcher) {
		w.onResult = fn
	}
}

// Watcher queues .pud files created or rewritten in a directory and scans
// each one once it has stopped changing for the settle period. Files in
// subdirectories are not watched. A Watcher runs once.
type Watcher struct {
	cfg        config.WatchConfig
	scan       FileScanner
	logger     *slog.Logger
	dispatcher *dispatcher.Dispatcher
	onResult   func(scanner.Result)
	ready      chan struct{}
}

// New creates a Watcher for cfg.Dir.
func New(cfg config.WatchConfig, scan FileScanner, logger *slog.Logger, meter metric.Meter, opts ...Option) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	d, err := dispatcher.New(logger, meter)
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		cfg:        cfg,
		scan:       scan,
		logger:     logger,
		dispatcher: d,
		ready:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	d.Register(dispatcher.KindScan, w.handleScan,
		dispatcher.Buffered(cfg.QueueSize), dispatcher.Blocking(), dispatcher.Logged())
	return w, nil
}

// queued scans finish even when Run's context is cancelled
func (w *Watcher) handleScan(e dispatcher.Event) (any, error) {
	res := w.scan.ScanFile(context.Background(), e.Path)
	if w.onResult != nil {
		w.onResult(res)
	}
	switch {
	case res.Accepted():
		w.logger.Info("Scanned map", "path", e.Path, "name", res.Record.Document.Name, "mapType", res.Record.Analysis.MapType)
	case res.Rejection != nil:
		w.logger.Info("Rejected map", "path", e.Path, "kind", res.Rejection.Kind)
	}
	return res, res.Err
}

// Ready is closed once the directory is being watched.
func (w *Watcher) Ready() <-chan struct{} {
	return w.ready
}

// Run watches the directory until ctx is cancelled, then waits for queued
// scans to finish.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.dispatcher.Close()

	if err := os.MkdirAll(w.cfg.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create watch directory: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(w.cfg.Dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.cfg.Dir, err)
	}
	close(w.ready)
	w.logger.Info("Watching for maps", "dir", w.cfg.Dir, "settle", w.cfg.Settle)

	if w.cfg.ScanExisting {
		if err := w.queueExisting(); err != nil {
			return err
		}
	}

	pending := make(map[string]time.Time)
	ticker := time.NewTicker(w.tick())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if len(pending) > 0 {
				w.logger.Info("Dropping unsettled files", "count", len(pending))
			}
			return nil

		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !scanner.IsMapFile(ev.Name) {
				continue
			}
			switch {
			case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
				pending[ev.Name] = time.Now()
			case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
				delete(pending, ev.Name)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("Watcher error", "error", err)

		case now := <-ticker.C:
			for path, last := range pending {
				if now.Sub(last) < w.cfg.Settle {
					continue
				}
				delete(pending, path)
				w.enqueue(path)
			}
		}
	}
}

func (w *Watcher) tick() time.Duration {
	if t := w.cfg.Settle / 2; t > 0 {
		return t
	}
	return time.Millisecond
}

func (w *Watcher) queueExisting() error {
	entries, err := os.ReadDir(w.cfg.Dir)
	if err != nil {
		return fmt.Errorf("failed to list %s: %w", w.cfg.Dir, err)
	}
	for _, e := range entries {
		if e.IsDir() || !scanner.IsMapFile(e.Name()) {
			continue
		}
		w.enqueue(filepath.Join(w.cfg.Dir, e.Name()))
	}
	return nil
}

func (w *Watcher) enqueue(path string) {
	_, err := w.dispatcher.Dispatch(dispatcher.Event{
		Kind:      dispatcher.KindScan,
		Path:      path,
		Timestamp: time.Now(),
	})
	if err != nil {
		w.logger.Error("Failed to queue map", "path", path, "error", err)
	}
}
