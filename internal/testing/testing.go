// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"testing"

	"github.com/desertthunder/mlsync/internal/models"
	"github.com/desertthunder/mlsync/internal/services"
)

// MockTrackingService is a configurable test double for [services.TrackingService].
// Safe for concurrent use: the engine fetches runs in parallel.
type MockTrackingService struct {
	mu sync.Mutex

	Experiments []services.Experiment
	Runs        map[string][]services.Run        // experiment id -> runs
	Details     map[string]*services.RunDetail   // run id -> detail
	Histories   map[string][]models.MetricSample // run id|metric -> samples

	SearchExperimentsErr error
	SearchRunsErr        error
	GetRunErr            error
	GetRunErrFor         string // fail only this run id
	GetMetricHistoryErr  error

	SearchRunsCalls       int
	GetRunCalls           int
	GetMetricHistoryCalls int
}

// CallCounts returns a snapshot of the per-endpoint call counters.
func (m *MockTrackingService) CallCounts() (searchRuns, getRun, getMetricHistory int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.SearchRunsCalls, m.GetRunCalls, m.GetMetricHistoryCalls
}

// HistoryKey builds the key for the Histories map.
func HistoryKey(runID, metric string) string {
	return runID + "|" + metric
}

func (m *MockTrackingService) Name() string { return "mock" }

func (m *MockTrackingService) SearchExperiments(ctx context.Context) ([]services.Experiment, error) {
	if m.SearchExperimentsErr != nil {
		return nil, m.SearchExperimentsErr
	}
	return m.Experiments, nil
}

func (m *MockTrackingService) GetExperiment(ctx context.Context, id string) (*services.Experiment, error) {
	for _, ex := range m.Experiments {
		if ex.ID == id {
			return &ex, nil
		}
	}
	return nil, fmt.Errorf("no experiment with id %s", id)
}

func (m *MockTrackingService) GetExperimentByName(ctx context.Context, name string) (*services.Experiment, error) {
	for _, ex := range m.Experiments {
		if ex.Name == name {
			return &ex, nil
		}
	}
	return nil, fmt.Errorf("no experiment with name %s", name)
}

func (m *MockTrackingService) SearchRuns(ctx context.Context, experimentID string) ([]services.Run, error) {
	m.mu.Lock()
	m.SearchRunsCalls++
	m.mu.Unlock()

	if m.SearchRunsErr != nil {
		return nil, m.SearchRunsErr
	}
	return m.Runs[experimentID], nil
}

func (m *MockTrackingService) GetRun(ctx context.Context, runID string) (*services.RunDetail, error) {
	m.mu.Lock()
	m.GetRunCalls++
	m.mu.Unlock()

	if m.GetRunErr != nil && (m.GetRunErrFor == "" || m.GetRunErrFor == runID) {
		return nil, m.GetRunErr
	}
	if detail, ok := m.Details[runID]; ok {
		return detail, nil
	}
	// Runs without configured detail behave as empty runs
	return &services.RunDetail{ID: runID}, nil
}

func (m *MockTrackingService) GetMetricHistory(ctx context.Context, runID, metric string) ([]models.MetricSample, error) {
	m.mu.Lock()
	m.GetMetricHistoryCalls++
	m.mu.Unlock()

	if m.GetMetricHistoryErr != nil {
		return nil, m.GetMetricHistoryErr
	}
	return m.Histories[HistoryKey(runID, metric)], nil
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
