package tasks

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/mlsync/internal/models"
	"github.com/desertthunder/mlsync/internal/services"
	"github.com/desertthunder/mlsync/internal/shared"
)

// noteTagKey is the source tag carrying a run's free-text description.
const noteTagKey = models.ReservedTagPrefix + ".note.content"

// fetchRun pulls one source run's metadata and metric history into a
// transfer record. It runs as an independent concurrent task; its only shared
// state is read access to the run cache.
func (e *SyncEngine) fetchRun(ctx context.Context, run services.Run, ex services.Experiment, sinceTimestamp int64) (*models.TransferRecord, error) {
	record := &models.TransferRecord{
		SourceRunID:    run.ID,
		SourceRunName:  run.Name,
		ExperimentName: ex.Name,
		Identity:       models.NewRecord{},
		Params:         map[string]models.Value{},
		Tags:           map[string]string{},
		Metrics:        map[string][]models.MetricSample{},
	}

	if destID, ok := e.cache.Get(run.ID); ok {
		record.Identity = models.ExistingRecord{DestinationID: destID}
	}

	detail, err := e.tracking.GetRun(ctx, run.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: run %s: %v", shared.ErrRunFetch, run.ID, err)
	}

	// The source stringifies every param value; recover native types where
	// the string parses as a literal.
	for key, raw := range detail.Params {
		record.Params[key] = models.ParseValue(raw)
	}
	record.Params[models.ParamSourceRunID] = models.StringValue(run.ID)
	record.Params[models.ParamSourceExperimentID] = models.StringValue(ex.ID)
	if note, ok := detail.Tags[noteTagKey]; ok {
		record.Params[models.ParamDescription] = models.StringValue(note)
	}

	for key, value := range detail.Tags {
		if strings.HasPrefix(key, models.ReservedTagPrefix) {
			continue
		}
		record.Tags[key] = value
	}

	for _, metric := range detail.MetricKeys {
		history, err := e.tracking.GetMetricHistory(ctx, run.ID, metric)
		if err != nil {
			return nil, fmt.Errorf("%w: run %s metric %s: %v", shared.ErrRunFetch, run.ID, metric, err)
		}
		if sinceTimestamp > 0 {
			// The service may hand back a shared slice, so filter into a
			// fresh one instead of compacting in place.
			filtered := make([]models.MetricSample, 0, len(history))
			for _, s := range history {
				if s.Timestamp >= sinceTimestamp {
					filtered = append(filtered, s)
				}
			}
			history = filtered
		}
		record.Metrics[metric] = history
	}

	return record, nil
}
