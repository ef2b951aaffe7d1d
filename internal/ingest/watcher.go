package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/onodera-10002/aozora/internal/logging"
)

// ErrWatcherFailed indicates the filesystem watcher failed to initialize.
var ErrWatcherFailed = errors.New("failed to initialize filesystem watcher")

// settleDelay gives the writing process time to finish before the dropped
// file is opened for extraction.
const settleDelay = 2 * time.Second

// Watcher ingests PDF files dropped into a directory. Ingestion failures
// are logged and do not stop the watch loop.
type Watcher struct {
	dir     string
	service *Service
	watcher *fsnotify.Watcher
	stop    chan struct{}
	logger  *logging.Logger

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewWatcher creates a watcher over dir, creating it when missing.
func NewWatcher(dir string, service *Service, logger *logging.Logger) (*Watcher, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("%w: creating watch dir: %v", ErrWatcherFailed, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	return &Watcher{
		dir:     dir,
		service: service,
		watcher: watcher,
		stop:    make(chan struct{}),
		logger:  logger.Named("watcher"),
		sleep:   sleepContext,
	}, nil
}

// Start begins watching in a background goroutine. Call Stop to clean up.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(w.dir); err != nil {
		return fmt.Errorf("%w: watching %s: %v", ErrWatcherFailed, w.dir, err)
	}
	w.logger.Info(ctx, "watching drop directory", zap.String("dir", w.dir))
	go w.processEvents(ctx)
	return nil
}

// Stop stops the watcher and releases resources.
func (w *Watcher) Stop() {
	select {
	case <-w.stop:
		return
	default:
		close(w.stop)
		_ = w.watcher.Close()
	}
}

func (w *Watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Create == fsnotify.Create {
				w.handleDrop(ctx, event.Name)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn(ctx, "watch error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleDrop(ctx context.Context, path string) {
	if !strings.HasSuffix(strings.ToLower(path), ".pdf") {
		return
	}
	if err := w.sleep(ctx, settleDelay); err != nil {
		return
	}

	title := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	count, err := w.service.IngestSource(ctx, path, title)
	if err != nil {
		w.logger.Error(ctx, "auto-ingest failed",
			zap.String("path", path), zap.Error(err))
		return
	}
	w.logger.Info(ctx, "auto-ingested dropped file",
		zap.String("path", path), zap.Int("chunks", count))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
