package tasks

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/mlsync/internal/cache"
	"github.com/desertthunder/mlsync/internal/models"
	"github.com/desertthunder/mlsync/internal/repositories"
	"github.com/desertthunder/mlsync/internal/shared"
	"golang.org/x/sync/errgroup"
)

// CommitDriver partitions a batch of transfer records across a fixed pool of
// workers and waits for all partitions to finish. Partitions are disjoint by
// run, so workers never write to the same destination record.
type CommitDriver struct {
	store   *repositories.RecordRepository
	cache   *cache.RunCache
	workers int
	logger  *log.Logger
}

// NewCommitDriver creates a driver with the given worker-pool size.
func NewCommitDriver(store *repositories.RecordRepository, runCache *cache.RunCache, workers int, logger *log.Logger) *CommitDriver {
	if workers <= 0 {
		workers = defaultCommitWorkers
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &CommitDriver{store: store, cache: runCache, workers: workers, logger: logger}
}

// partition splits n items into w contiguous index ranges [start, end) whose
// sizes differ by at most one. Ranges may be empty when n < w. Concatenated
// in order, the ranges reconstruct 0..n exactly.
func partition(n, w int) [][2]int {
	ranges := make([][2]int, w)
	base := n / w
	rem := n % w

	start := 0
	for i := 0; i < w; i++ {
		size := base
		if i < rem {
			size++
		}
		ranges[i] = [2]int{start, start + size}
		start += size
	}
	return ranges
}

// Commit dispatches the batch to the worker pool and blocks until every
// worker finishes its partition. A worker failure aborts the remainder of
// that partition and surfaces here; sibling workers may already have
// committed their records, there is no cross-worker rollback.
func (d *CommitDriver) Commit(ctx context.Context, batch []models.TransferRecord) error {
	g, ctx := errgroup.WithContext(ctx)

	for i, rng := range partition(len(batch), d.workers) {
		worker := fmt.Sprintf("wrkr-%d", i)
		part := batch[rng[0]:rng[1]]
		g.Go(func() error {
			return d.commitPartition(ctx, worker, part)
		})
	}

	return g.Wait()
}

// commitPartition commits records strictly in order, updating the run cache
// after each one.
func (d *CommitDriver) commitPartition(ctx context.Context, worker string, records []models.TransferRecord) error {
	logger := shared.WithLogger(d.logger, "worker", worker)

	for _, record := range records {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		destID, err := d.commitRecord(record)
		if err != nil {
			return fmt.Errorf("%w: run %s: %v", shared.ErrCommit, record.SourceRunID, err)
		}
		d.cache.Set(record.SourceRunID, destID)
		logger.Debug("committed record", "run", record.SourceRunID, "record", destID)
	}
	return nil
}

// commitRecord writes one transfer record into the destination store and
// returns the destination record id.
func (d *CommitDriver) commitRecord(record models.TransferRecord) (string, error) {
	var destID string

	switch identity := record.Identity.(type) {
	case models.ExistingRecord:
		if err := d.store.Reopen(identity.DestinationID); err != nil {
			return "", err
		}
		destID = identity.DestinationID
	case models.NewRecord:
		id, err := d.store.Create(record.SourceRunName, record.ExperimentName)
		if err != nil {
			return "", err
		}
		destID = id
	default:
		return "", fmt.Errorf("unhandled run identity %T", record.Identity)
	}

	if err := d.store.SetName(destID, record.SourceRunName); err != nil {
		return "", err
	}

	for key, value := range record.Params {
		if err := d.store.SetParam(destID, key, value); err != nil {
			return "", err
		}
	}
	for key, value := range record.Tags {
		if err := d.store.SetTag(destID, key, value); err != nil {
			return "", err
		}
	}
	for metric, samples := range record.Metrics {
		for _, s := range samples {
			if err := d.store.AppendSample(destID, metric, s); err != nil {
				return "", err
			}
		}
	}

	return destID, nil
}
