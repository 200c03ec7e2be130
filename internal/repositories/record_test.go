package repositories

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/desertthunder/mlsync/internal/models"
	"github.com/desertthunder/mlsync/internal/shared"
)

func newTestRepo(t *testing.T) *RecordRepository {
	t.Helper()
	db, err := shared.NewDatabase(filepath.Join(t.TempDir(), "store.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	return NewRecordRepository(db)
}

func TestRecordRepository(t *testing.T) {
	t.Run("Create and Get", func(t *testing.T) {
		repo := newTestRepo(t)

		id, err := repo.Create("run one", "exp-a")
		if err != nil {
			t.Fatalf("create failed: %v", err)
		}
		if id == "" {
			t.Fatal("expected a generated id")
		}

		rec, err := repo.Get(id)
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if rec.Name != "run one" || rec.Experiment != "exp-a" {
			t.Errorf("unexpected record: %+v", rec)
		}
	})

	t.Run("Reopen", func(t *testing.T) {
		repo := newTestRepo(t)

		id, err := repo.Create("run", "exp")
		if err != nil {
			t.Fatalf("create failed: %v", err)
		}
		if err := repo.Reopen(id); err != nil {
			t.Errorf("reopen of existing record failed: %v", err)
		}

		err = repo.Reopen("missing-id")
		if !errors.Is(err, shared.ErrRecordNotFound) {
			t.Errorf("expected ErrRecordNotFound, got %v", err)
		}
	})

	t.Run("SetName", func(t *testing.T) {
		repo := newTestRepo(t)

		id, _ := repo.Create("old", "exp")
		if err := repo.SetName(id, "new"); err != nil {
			t.Fatalf("set name failed: %v", err)
		}

		rec, err := repo.Get(id)
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if rec.Name != "new" {
			t.Errorf("expected name new, got %s", rec.Name)
		}
	})

	t.Run("SetParam replaces", func(t *testing.T) {
		repo := newTestRepo(t)

		id, _ := repo.Create("run", "exp")
		if err := repo.SetParam(id, "lr", models.FloatValue(0.1)); err != nil {
			t.Fatalf("set param failed: %v", err)
		}
		if err := repo.SetParam(id, "lr", models.FloatValue(0.01)); err != nil {
			t.Fatalf("replacing param failed: %v", err)
		}

		params, err := repo.Params(id)
		if err != nil {
			t.Fatalf("params failed: %v", err)
		}
		if len(params) != 1 {
			t.Fatalf("expected 1 param, got %d", len(params))
		}
		if params["lr"] != "0.01" {
			t.Errorf("expected 0.01, got %s", params["lr"])
		}
	})

	t.Run("Tags", func(t *testing.T) {
		repo := newTestRepo(t)

		id, _ := repo.Create("run", "exp")
		if err := repo.SetTag(id, "team", "vision"); err != nil {
			t.Fatalf("set tag failed: %v", err)
		}

		tags, err := repo.Tags(id)
		if err != nil {
			t.Fatalf("tags failed: %v", err)
		}
		if tags["team"] != "vision" {
			t.Errorf("unexpected tags: %+v", tags)
		}
	})

	t.Run("AppendSample preserves order and duplicates", func(t *testing.T) {
		repo := newTestRepo(t)

		id, _ := repo.Create("run", "exp")
		series := []models.MetricSample{
			{Step: 0, Value: 1.0, Timestamp: 100},
			{Step: 1, Value: 2.0, Timestamp: 200},
			{Step: 1, Value: 2.5, Timestamp: 300}, // duplicate step passes through
		}
		for _, s := range series {
			if err := repo.AppendSample(id, "loss", s); err != nil {
				t.Fatalf("append failed: %v", err)
			}
		}

		got, err := repo.Samples(id, "loss")
		if err != nil {
			t.Fatalf("samples failed: %v", err)
		}
		if len(got) != 3 {
			t.Fatalf("expected 3 samples, got %d", len(got))
		}
		for i := range series {
			if got[i] != series[i] {
				t.Errorf("sample %d = %+v, want %+v", i, got[i], series[i])
			}
		}
	})

	t.Run("Metrics lists distinct names", func(t *testing.T) {
		repo := newTestRepo(t)

		id, _ := repo.Create("run", "exp")
		repo.AppendSample(id, "loss", models.MetricSample{Step: 0, Value: 1.0, Timestamp: 100})
		repo.AppendSample(id, "loss", models.MetricSample{Step: 1, Value: 0.5, Timestamp: 200})
		repo.AppendSample(id, "accuracy", models.MetricSample{Step: 0, Value: 0.9, Timestamp: 100})

		metrics, err := repo.Metrics(id)
		if err != nil {
			t.Fatalf("metrics failed: %v", err)
		}
		if len(metrics) != 2 || metrics[0] != "accuracy" || metrics[1] != "loss" {
			t.Errorf("unexpected metric names: %v", metrics)
		}
	})

	t.Run("CountRecords and List", func(t *testing.T) {
		repo := newTestRepo(t)

		repo.Create("one", "exp-a")
		repo.Create("two", "exp-a")
		repo.Create("three", "exp-b")

		count, err := repo.CountRecords()
		if err != nil {
			t.Fatalf("count failed: %v", err)
		}
		if count != 3 {
			t.Errorf("expected 3 records, got %d", count)
		}

		records, err := repo.List("exp-a")
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if len(records) != 2 {
			t.Errorf("expected 2 records for exp-a, got %d", len(records))
		}

		all, err := repo.List("")
		if err != nil {
			t.Fatalf("list all failed: %v", err)
		}
		if len(all) != 3 {
			t.Errorf("expected 3 records total, got %d", len(all))
		}
	})
}
