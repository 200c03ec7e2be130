package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/desertthunder/mlsync/internal/shared"
)

func newTestServer(t *testing.T, routes map[string]any) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	for path, payload := range routes {
		payload := payload
		mux.HandleFunc(mlflowAPIPrefix+path, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(payload)
		})
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestMLflowService(t *testing.T) {
	ctx := context.Background()

	t.Run("Name", func(t *testing.T) {
		if svc := NewMLflowService("http://localhost:5000", MLflowOpts{}); svc.Name() != "mlflow" {
			t.Errorf("expected name mlflow, got %s", svc.Name())
		}
	})

	t.Run("trims trailing slash", func(t *testing.T) {
		svc := NewMLflowService("http://localhost:5000/", MLflowOpts{})
		if svc.baseURL != "http://localhost:5000" {
			t.Errorf("expected trimmed base URL, got %s", svc.baseURL)
		}
	})

	t.Run("SearchExperiments", func(t *testing.T) {
		srv := newTestServer(t, map[string]any{
			"/experiments/search": map[string]any{
				"experiments": []map[string]any{
					{"experiment_id": "1", "name": "alpha"},
					{"experiment_id": "2", "name": "beta"},
				},
			},
		})

		svc := NewMLflowService(srv.URL, MLflowOpts{RateLimit: 1000})
		experiments, err := svc.SearchExperiments(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(experiments) != 2 {
			t.Fatalf("expected 2 experiments, got %d", len(experiments))
		}
		if experiments[0].ID != "1" || experiments[0].Name != "alpha" {
			t.Errorf("unexpected first experiment: %+v", experiments[0])
		}
	})

	t.Run("GetExperimentByName", func(t *testing.T) {
		srv := newTestServer(t, map[string]any{
			"/experiments/get-by-name": map[string]any{
				"experiment": map[string]any{"experiment_id": "7", "name": "gamma"},
			},
		})

		svc := NewMLflowService(srv.URL, MLflowOpts{RateLimit: 1000})
		ex, err := svc.GetExperimentByName(ctx, "gamma")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ex.ID != "7" {
			t.Errorf("expected experiment id 7, got %s", ex.ID)
		}
	})

	t.Run("GetExperiment not found", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc(mlflowAPIPrefix+"/experiments/get", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]any{
				"error_code": "RESOURCE_DOES_NOT_EXIST",
				"message":    "no experiment with id 99",
			})
		})
		srv := httptest.NewServer(mux)
		defer srv.Close()

		svc := NewMLflowService(srv.URL, MLflowOpts{RateLimit: 1000})
		_, err := svc.GetExperiment(ctx, "99")
		if !errors.Is(err, shared.ErrExperimentNotFound) {
			t.Errorf("expected ErrExperimentNotFound, got %v", err)
		}
	})

	t.Run("SearchRuns", func(t *testing.T) {
		srv := newTestServer(t, map[string]any{
			"/runs/search": map[string]any{
				"runs": []map[string]any{
					{"info": map[string]any{"run_id": "r1", "run_name": "first", "experiment_id": "1"}},
					{"info": map[string]any{"run_id": "r2", "run_name": "second", "experiment_id": "1"}},
				},
			},
		})

		svc := NewMLflowService(srv.URL, MLflowOpts{RateLimit: 1000})
		runs, err := svc.SearchRuns(ctx, "1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(runs) != 2 {
			t.Fatalf("expected 2 runs, got %d", len(runs))
		}
		if runs[1].ID != "r2" || runs[1].Name != "second" {
			t.Errorf("unexpected second run: %+v", runs[1])
		}
	})

	t.Run("GetRun", func(t *testing.T) {
		srv := newTestServer(t, map[string]any{
			"/runs/get": map[string]any{
				"run": map[string]any{
					"info": map[string]any{"run_id": "r1", "run_name": "first", "experiment_id": "1"},
					"data": map[string]any{
						"params":  []map[string]any{{"key": "lr", "value": "0.01"}},
						"tags":    []map[string]any{{"key": "team", "value": "vision"}},
						"metrics": []map[string]any{{"key": "loss", "value": 0.5, "timestamp": 100, "step": 0}},
					},
				},
			},
		})

		svc := NewMLflowService(srv.URL, MLflowOpts{RateLimit: 1000})
		detail, err := svc.GetRun(ctx, "r1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if detail.Params["lr"] != "0.01" {
			t.Errorf("expected lr param, got %+v", detail.Params)
		}
		if detail.Tags["team"] != "vision" {
			t.Errorf("expected team tag, got %+v", detail.Tags)
		}
		if len(detail.MetricKeys) != 1 || detail.MetricKeys[0] != "loss" {
			t.Errorf("expected metric key loss, got %v", detail.MetricKeys)
		}
	})

	t.Run("GetMetricHistory handles string-encoded int64", func(t *testing.T) {
		srv := newTestServer(t, map[string]any{
			"/metrics/get-history": map[string]any{
				"metrics": []map[string]any{
					{"key": "loss", "value": 1.0, "timestamp": "1660166400000", "step": "0"},
					{"key": "loss", "value": 2.0, "timestamp": "1660166460000", "step": "1"},
				},
			},
		})

		svc := NewMLflowService(srv.URL, MLflowOpts{RateLimit: 1000})
		samples, err := svc.GetMetricHistory(ctx, "r1", "loss")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(samples) != 2 {
			t.Fatalf("expected 2 samples, got %d", len(samples))
		}
		if samples[1].Step != 1 || samples[1].Value != 2.0 || samples[1].Timestamp != 1660166460000 {
			t.Errorf("unexpected second sample: %+v", samples[1])
		}
	})
}
