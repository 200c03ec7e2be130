package tasks

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/mlsync/internal/cache"
	"github.com/desertthunder/mlsync/internal/models"
	"github.com/desertthunder/mlsync/internal/repositories"
	"github.com/desertthunder/mlsync/internal/services"
	"github.com/desertthunder/mlsync/internal/shared"
	"golang.org/x/sync/errgroup"
)

const (
	defaultCommitWorkers = 4
	defaultFetchWorkers  = 8
)

// Options contains tuning knobs for the sync pipeline.
type Options struct {
	CommitWorkers int // Concurrent destination-store writers (default: 4)
	FetchWorkers  int // Concurrent run fetches per experiment (default: 8)
}

// ExperimentResult summarizes one experiment's pass.
type ExperimentResult struct {
	Experiment services.Experiment
	Runs       int // Runs fetched
	Created    int // New destination records
	Reused     int // Records reattached via the run cache
}

// SyncResult contains all data from a full sync pass.
type SyncResult struct {
	Experiments []ExperimentResult
	TotalRuns   int
	Created     int
	Reused      int
}

// SyncEngine orchestrates a sync pass from the source tracking store into the
// destination store. Parallelism lives inside an experiment, never across
// experiments, so only one experiment's batch is in memory at a time.
type SyncEngine struct {
	tracking services.TrackingService
	store    *repositories.RecordRepository
	cache    *cache.RunCache
	logger   *log.Logger
	opts     Options
}

// NewSyncEngine creates a new SyncEngine with the provided collaborators.
func NewSyncEngine(tracking services.TrackingService, store *repositories.RecordRepository, runCache *cache.RunCache, logger *log.Logger, opts Options) *SyncEngine {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	if opts.CommitWorkers <= 0 {
		opts.CommitWorkers = defaultCommitWorkers
	}
	if opts.FetchWorkers <= 0 {
		opts.FetchWorkers = defaultFetchWorkers
	}

	return &SyncEngine{
		tracking: tracking,
		store:    store,
		cache:    runCache,
		logger:   logger,
		opts:     opts,
	}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (e *SyncEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
		// Sent successfully
	default:
		// Channel full or closed, skip this update
	}
}

// resolveExperiments maps an experiment selector to the experiments to sync.
// An empty selector means every experiment the source knows. A non-empty
// selector is tried as an id first, then as a name; if neither resolves the
// whole pass aborts.
func (e *SyncEngine) resolveExperiments(ctx context.Context, selector string) ([]services.Experiment, error) {
	if selector == "" {
		experiments, err := e.tracking.SearchExperiments(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to search experiments: %w", err)
		}
		return experiments, nil
	}

	if ex, err := e.tracking.GetExperiment(ctx, selector); err == nil {
		return []services.Experiment{*ex}, nil
	}

	ex, err := e.tracking.GetExperimentByName(ctx, selector)
	if err != nil {
		return nil, fmt.Errorf("%w: no experiment with id or name %q", shared.ErrExperimentNotFound, selector)
	}
	return []services.Experiment{*ex}, nil
}

// Run performs one full sync pass.
//
// sinceTimestamp, when positive, drops metric samples older than the floor;
// a backfill pass uses zero. The pass is idempotent: runs already recorded in
// the cache reattach to their destination records instead of creating new ones.
func (e *SyncEngine) Run(ctx context.Context, selector string, sinceTimestamp int64, progress chan<- ProgressUpdate) (*SyncResult, error) {
	experiments, err := e.resolveExperiments(ctx, selector)
	if err != nil {
		return nil, err
	}
	e.sendProgress(progress, resolveExperimentsUpdate(len(experiments)))
	e.logger.Info("resolved experiments", "count", len(experiments))

	driver := NewCommitDriver(e.store, e.cache, e.opts.CommitWorkers, e.logger)
	result := &SyncResult{}

	for _, ex := range experiments {
		exResult, err := e.syncExperiment(ctx, driver, ex, sinceTimestamp, progress)
		if err != nil {
			return nil, err
		}

		result.Experiments = append(result.Experiments, *exResult)
		result.TotalRuns += exResult.Runs
		result.Created += exResult.Created
		result.Reused += exResult.Reused
		e.logger.Info("experiment synced", "experiment", ex.Name, "runs", exResult.Runs, "created", exResult.Created, "reused", exResult.Reused)
	}

	return result, nil
}

// syncExperiment fetches every run of one experiment in parallel, commits the
// batch through the worker pool, then persists the run cache.
func (e *SyncEngine) syncExperiment(ctx context.Context, driver *CommitDriver, ex services.Experiment, sinceTimestamp int64, progress chan<- ProgressUpdate) (*ExperimentResult, error) {
	runs, err := e.tracking.SearchRuns(ctx, ex.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs of %s: %w", ex.Name, err)
	}
	e.sendProgress(progress, listRunsUpdate(ex.Name, len(runs)))

	// Fan out fetches with a bound independent of experiment size. Collection
	// order is completion order; the commit driver re-partitions by index so
	// ordering only affects progress reporting.
	collected := make(chan models.TransferRecord, len(runs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.FetchWorkers)

	for _, run := range runs {
		g.Go(func() error {
			record, err := e.fetchRun(gctx, run, ex, sinceTimestamp)
			if err != nil {
				return err
			}
			collected <- *record
			e.sendProgress(progress, fetchRunUpdate(ex.Name, run.Name, len(collected), len(runs)))
			return nil
		})
	}

	// One failed fetch aborts the whole experiment's batch (fail-fast; a
	// silent per-run skip would be masked by the cache forever).
	if err := g.Wait(); err != nil {
		return nil, err
	}
	close(collected)

	batch := make([]models.TransferRecord, 0, len(runs))
	for record := range collected {
		batch = append(batch, record)
	}

	exResult := &ExperimentResult{Experiment: ex, Runs: len(batch)}
	for _, record := range batch {
		switch record.Identity.(type) {
		case models.ExistingRecord:
			exResult.Reused++
		default:
			exResult.Created++
		}
	}

	e.sendProgress(progress, commitUpdate(ex.Name, len(batch)))
	if err := driver.Commit(ctx, batch); err != nil {
		return nil, err
	}

	// Refresh once per experiment, not per run, to bound cache I/O.
	if err := e.cache.Refresh(); err != nil {
		return nil, err
	}
	e.sendProgress(progress, refreshCacheUpdate(ex.Name, e.cache.Len()))

	return exResult, nil
}
