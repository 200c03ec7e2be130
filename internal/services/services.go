// package services defines interface TrackingService for reading experiment
// data out of a remote tracking server over HTTP.
package services

import (
	"context"

	"github.com/desertthunder/mlsync/internal/models"
)

// TrackingService is the read surface of the source tracking store:
// experiment enumeration, run listing and per-run metadata/metric fetch.
type TrackingService interface {
	// SearchExperiments retrieves all experiments known to the source.
	SearchExperiments(ctx context.Context) ([]Experiment, error)

	// GetExperiment retrieves an experiment by its id.
	GetExperiment(ctx context.Context, id string) (*Experiment, error)

	// GetExperimentByName retrieves an experiment by its display name.
	GetExperimentByName(ctx context.Context, name string) (*Experiment, error)

	// SearchRuns lists every run of an experiment. The source API returns a
	// complete list per call; no pagination cursor is modeled.
	SearchRuns(ctx context.Context, experimentID string) ([]Run, error)

	// GetRun retrieves a run's full metadata: params, tags and the set of
	// metric names reported on it.
	GetRun(ctx context.Context, runID string) (*RunDetail, error)

	// GetMetricHistory retrieves the full, time-ascending sample history of
	// one metric on one run.
	GetMetricHistory(ctx context.Context, runID, metric string) ([]models.MetricSample, error)

	// Name returns the name of the service (e.g., "mlflow")
	Name() string
}

// Experiment describes one source experiment.
type Experiment struct {
	ID   string
	Name string
}

// Run is one entry of an experiment's run listing.
type Run struct {
	ID   string
	Name string
}

// RunDetail is a run's full metadata as reported by the source.
// Param values arrive string-encoded; recovery to native types happens in
// the fetch phase, not here.
type RunDetail struct {
	ID           string
	Name         string
	ExperimentID string
	Params       map[string]string
	Tags         map[string]string
	MetricKeys   []string
}
