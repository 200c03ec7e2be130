package models

// ReservedTagPrefix marks tags that belong to the source tracking system's
// internal namespace. Matching is on the bare prefix, so any key starting
// with "mlflow" is withheld from the destination store.
const ReservedTagPrefix = "mlflow"

// Derived parameter keys attached to every transfer record.
const (
	ParamSourceRunID        = "source_run_id"
	ParamSourceExperimentID = "source_experiment_id"
	ParamDescription        = "description"
)

// MetricSample is one point of a metric time series.
type MetricSample struct {
	Step      int64   `json:"step"`
	Value     float64 `json:"value"`
	Timestamp int64   `json:"timestamp"`
}

// RunIdentity tells a commit worker whether a destination record already
// exists for a source run. It is a closed set: [NewRecord] or
// [ExistingRecord].
type RunIdentity interface {
	isRunIdentity()
}

// NewRecord means no destination record exists yet; the commit worker creates one.
type NewRecord struct{}

// ExistingRecord means a prior sync already created the destination record;
// the commit worker reattaches to it by id.
type ExistingRecord struct {
	DestinationID string
}

func (NewRecord) isRunIdentity()      {}
func (ExistingRecord) isRunIdentity() {}

// TransferRecord carries one source run's data from the fetch phase to the
// commit phase. It is immutable once built and consumed exactly once.
type TransferRecord struct {
	SourceRunID    string
	SourceRunName  string
	ExperimentName string
	Identity       RunIdentity
	Params         map[string]Value
	Tags           map[string]string
	Metrics        map[string][]MetricSample
}
