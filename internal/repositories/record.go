package repositories

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/desertthunder/mlsync/internal/models"
	"github.com/desertthunder/mlsync/internal/shared"
)

// Record is one persisted destination record, the unit a source run maps to.
type Record struct {
	ID         string
	Name       string
	Experiment string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// RecordRepository implements destination-store operations over SQLite.
type RecordRepository struct {
	db *sql.DB
}

// NewRecordRepository creates a new RecordRepository with the given database connection
func NewRecordRepository(db *sql.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

// Create inserts a new record with a generated id and returns the id.
func (r *RecordRepository) Create(name, experiment string) (string, error) {
	id := shared.GenerateID()
	now := time.Now().UTC()

	_, err := r.db.Exec(
		"INSERT INTO records (id, name, experiment, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
		id, name, experiment, now, now,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert record: %w", err)
	}
	return id, nil
}

// Reopen attaches to an existing record by id, verifying it is still present.
// A cache entry pointing at a record that was deleted out from under us is a
// real error, not something to silently re-create.
func (r *RecordRepository) Reopen(id string) error {
	var exists bool
	err := r.db.QueryRow("SELECT EXISTS(SELECT 1 FROM records WHERE id = ?)", id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check record: %w", err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", shared.ErrRecordNotFound, id)
	}
	return nil
}

// Get retrieves a record by id.
func (r *RecordRepository) Get(id string) (*Record, error) {
	var rec Record
	err := r.db.QueryRow(
		"SELECT id, name, experiment, created_at, updated_at FROM records WHERE id = ?", id,
	).Scan(&rec.ID, &rec.Name, &rec.Experiment, &rec.CreatedAt, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", shared.ErrRecordNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return &rec, nil
}

// SetName sets the record's display name.
func (r *RecordRepository) SetName(id, name string) error {
	_, err := r.db.Exec(
		"UPDATE records SET name = ?, updated_at = ? WHERE id = ?",
		name, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to set record name: %w", err)
	}
	return nil
}

// SetParam writes a parameter as a key/value attribute on the record.
// The value is stored as its JSON encoding; setting an existing key replaces it.
func (r *RecordRepository) SetParam(id, key string, value models.Value) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode param %s: %w", key, err)
	}

	_, err = r.db.Exec(
		`INSERT INTO record_params (record_id, key, value) VALUES (?, ?, ?)
		 ON CONFLICT(record_id, key) DO UPDATE SET value = excluded.value`,
		id, key, string(encoded),
	)
	if err != nil {
		return fmt.Errorf("failed to set param %s: %w", key, err)
	}
	return nil
}

// SetTag writes a tag on the record, replacing any existing value.
func (r *RecordRepository) SetTag(id, key, value string) error {
	_, err := r.db.Exec(
		`INSERT INTO record_tags (record_id, key, value) VALUES (?, ?, ?)
		 ON CONFLICT(record_id, key) DO UPDATE SET value = excluded.value`,
		id, key, value,
	)
	if err != nil {
		return fmt.Errorf("failed to set tag %s: %w", key, err)
	}
	return nil
}

// AppendSample appends one sample to the record's named time series.
// Out-of-order or duplicate steps are stored as-is; there is no dedup here.
func (r *RecordRepository) AppendSample(id, metric string, s models.MetricSample) error {
	_, err := r.db.Exec(
		"INSERT INTO metric_samples (record_id, metric, step, value, timestamp) VALUES (?, ?, ?, ?, ?)",
		id, metric, s.Step, s.Value, s.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to append sample: %w", err)
	}
	return nil
}

// Samples returns a record's samples for one metric in append order.
func (r *RecordRepository) Samples(id, metric string) ([]models.MetricSample, error) {
	rows, err := r.db.Query(
		"SELECT step, value, timestamp FROM metric_samples WHERE record_id = ? AND metric = ? ORDER BY seq",
		id, metric,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}
	defer rows.Close()

	var samples []models.MetricSample
	for rows.Next() {
		var s models.MetricSample
		if err := rows.Scan(&s.Step, &s.Value, &s.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}
		samples = append(samples, s)
	}
	return samples, rows.Err()
}

// Params returns a record's parameters as key to JSON-encoded value.
func (r *RecordRepository) Params(id string) (map[string]string, error) {
	rows, err := r.db.Query("SELECT key, value FROM record_params WHERE record_id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("failed to query params: %w", err)
	}
	defer rows.Close()

	params := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("failed to scan param: %w", err)
		}
		params[k] = v
	}
	return params, rows.Err()
}

// Tags returns a record's tags.
func (r *RecordRepository) Tags(id string) (map[string]string, error) {
	rows, err := r.db.Query("SELECT key, value FROM record_tags WHERE record_id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("failed to query tags: %w", err)
	}
	defer rows.Close()

	tags := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		tags[k] = v
	}
	return tags, rows.Err()
}

// Metrics returns the distinct metric names recorded for a record.
func (r *RecordRepository) Metrics(id string) ([]string, error) {
	rows, err := r.db.Query(
		"SELECT DISTINCT metric FROM metric_samples WHERE record_id = ? ORDER BY metric", id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query metrics: %w", err)
	}
	defer rows.Close()

	var metrics []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, fmt.Errorf("failed to scan metric: %w", err)
		}
		metrics = append(metrics, m)
	}
	return metrics, rows.Err()
}

// CountRecords returns the total number of records in the store.
func (r *RecordRepository) CountRecords() (int, error) {
	var count int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM records").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return count, nil
}

// List returns all records for an experiment, newest first. An empty
// experiment name lists everything.
func (r *RecordRepository) List(experiment string) ([]Record, error) {
	query := "SELECT id, name, experiment, created_at, updated_at FROM records"
	args := []any{}
	if experiment != "" {
		query += " WHERE experiment = ?"
		args = append(args, experiment)
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.Experiment, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
