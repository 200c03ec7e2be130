package tasks

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/mlsync/internal/shared"
)

// Watcher keeps the destination store in sync with ongoing source changes.
// It polls the tracking server on an interval and runs an incremental pass
// through the same engine/cache/commit machinery as the backfill.
//
// Start and Stop are its whole surface; callers treat it as opaque.
type Watcher struct {
	engine   *SyncEngine
	selector string
	interval time.Duration
	// Artifact-exclusion globs, accepted per the CLI contract. Artifact
	// conversion is handled outside the sync core, so the watcher only
	// carries them.
	excludeArtifacts []string
	logger           *log.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewWatcher creates a watcher over an engine. A non-positive interval
// defaults to 30 seconds.
func NewWatcher(engine *SyncEngine, selector string, interval time.Duration, excludeArtifacts []string, logger *log.Logger) *Watcher {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Watcher{
		engine:           engine,
		selector:         selector,
		interval:         interval,
		excludeArtifacts: excludeArtifacts,
		logger:           shared.WithLogger(logger, "component", "watcher"),
	}
}

// Start begins polling in a background goroutine. Calling Start on a running
// watcher is a no-op.
func (w *Watcher) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.done = make(chan struct{})
	go w.loop(ctx)
}

// Stop cancels the poll loop and waits for it to exit. In-flight fetches and
// commits of the current pass finish or fail on their own; Stop only
// prevents further passes.
func (w *Watcher) Stop() {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel = nil
	w.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// Metric floor for each pass: the wall clock captured before the
	// previous successful pass, so samples landing mid-pass are not lost.
	var since int64

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		passStart := time.Now().UnixMilli()
		result, err := w.engine.Run(ctx, w.selector, since, nil)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			// Keep watching; the next tick retries from the same floor.
			w.logger.Error("incremental pass failed", "err", err)
			continue
		}

		since = passStart
		if result.TotalRuns > 0 {
			w.logger.Info("incremental pass complete", "runs", result.TotalRuns, "created", result.Created, "reused", result.Reused)
		}
	}
}
