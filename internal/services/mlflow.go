// MLflow REST implementation of [TrackingService]
//
// Endpoint shapes based on https://mlflow.org/docs/latest/rest-api.html
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/desertthunder/mlsync/internal/models"
	"github.com/desertthunder/mlsync/internal/shared"
	"golang.org/x/time/rate"
)

const (
	mlflowAPIPrefix = "/api/2.0/mlflow"

	// The REST API caps page sizes; these are the documented maximums.
	maxExperimentResults = 1000
	maxRunResults        = 1000
)

// mlflowKeyValue is the {key, value} pair shape used for params and tags.
type mlflowKeyValue struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// flexInt64 accepts both JSON numbers and the string-encoded int64 fields
// the tracking server emits for protobuf int64 values.
type flexInt64 int64

func (f *flexInt64) UnmarshalJSON(data []byte) error {
	var n json.Number
	if err := json.Unmarshal(bytes.Trim(data, `"`), &n); err != nil {
		return err
	}
	i, err := n.Int64()
	if err != nil {
		return err
	}
	*f = flexInt64(i)
	return nil
}

// mlflowMetric is a metric sample as returned by runs/get and
// metrics/get-history.
type mlflowMetric struct {
	Key       string    `json:"key"`
	Value     float64   `json:"value"`
	Timestamp flexInt64 `json:"timestamp"`
	Step      flexInt64 `json:"step"`
}

type mlflowExperiment struct {
	ExperimentID   string `json:"experiment_id"`
	Name           string `json:"name"`
	LifecycleStage string `json:"lifecycle_stage"`
}

type mlflowRunInfo struct {
	RunID        string `json:"run_id"`
	RunName      string `json:"run_name"`
	ExperimentID string `json:"experiment_id"`
}

type mlflowRunData struct {
	Params  []mlflowKeyValue `json:"params"`
	Tags    []mlflowKeyValue `json:"tags"`
	Metrics []mlflowMetric   `json:"metrics"`
}

type mlflowRun struct {
	Info mlflowRunInfo `json:"info"`
	Data mlflowRunData `json:"data"`
}

type mlflowErrorResponse struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
}

// MLflowService talks to an MLflow tracking server. All requests share one
// rate limiter so parallel run fetches stay within the configured budget.
type MLflowService struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// MLflowOpts contains configuration options for creating an MLflowService.
type MLflowOpts struct {
	RateLimit float64       // Requests per second (default: 10)
	Timeout   time.Duration // Per-request timeout (default: 30s)
	Client    *http.Client  // Overrides Timeout when set
}

// NewMLflowService creates a tracking client for the given base URI.
func NewMLflowService(trackingURI string, opts MLflowOpts) *MLflowService {
	if opts.RateLimit <= 0 {
		opts.RateLimit = 10.0
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}

	return &MLflowService{
		baseURL:    strings.TrimRight(trackingURI, "/"),
		httpClient: client,
		limiter:    rate.NewLimiter(rate.Limit(opts.RateLimit), 1),
	}
}

func (s *MLflowService) Name() string { return "mlflow" }

// SearchExperiments retrieves all experiments known to the tracking server.
func (s *MLflowService) SearchExperiments(ctx context.Context) ([]Experiment, error) {
	body := map[string]any{"max_results": maxExperimentResults}

	var resp struct {
		Experiments []mlflowExperiment `json:"experiments"`
	}
	if err := s.post(ctx, "/experiments/search", body, &resp); err != nil {
		return nil, err
	}

	experiments := make([]Experiment, 0, len(resp.Experiments))
	for _, ex := range resp.Experiments {
		experiments = append(experiments, Experiment{ID: ex.ExperimentID, Name: ex.Name})
	}
	return experiments, nil
}

// GetExperiment retrieves an experiment by id.
func (s *MLflowService) GetExperiment(ctx context.Context, id string) (*Experiment, error) {
	query := url.Values{"experiment_id": {id}}

	var resp struct {
		Experiment mlflowExperiment `json:"experiment"`
	}
	if err := s.get(ctx, "/experiments/get", query, &resp); err != nil {
		return nil, err
	}
	return &Experiment{ID: resp.Experiment.ExperimentID, Name: resp.Experiment.Name}, nil
}

// GetExperimentByName retrieves an experiment by display name.
func (s *MLflowService) GetExperimentByName(ctx context.Context, name string) (*Experiment, error) {
	query := url.Values{"experiment_name": {name}}

	var resp struct {
		Experiment mlflowExperiment `json:"experiment"`
	}
	if err := s.get(ctx, "/experiments/get-by-name", query, &resp); err != nil {
		return nil, err
	}
	return &Experiment{ID: resp.Experiment.ExperimentID, Name: resp.Experiment.Name}, nil
}

// SearchRuns lists all runs of an experiment.
func (s *MLflowService) SearchRuns(ctx context.Context, experimentID string) ([]Run, error) {
	body := map[string]any{
		"experiment_ids": []string{experimentID},
		"max_results":    maxRunResults,
	}

	var resp struct {
		Runs []mlflowRun `json:"runs"`
	}
	if err := s.post(ctx, "/runs/search", body, &resp); err != nil {
		return nil, err
	}

	runs := make([]Run, 0, len(resp.Runs))
	for _, r := range resp.Runs {
		runs = append(runs, Run{ID: r.Info.RunID, Name: r.Info.RunName})
	}
	return runs, nil
}

// GetRun retrieves a run's params, tags and reported metric names.
func (s *MLflowService) GetRun(ctx context.Context, runID string) (*RunDetail, error) {
	query := url.Values{"run_id": {runID}}

	var resp struct {
		Run mlflowRun `json:"run"`
	}
	if err := s.get(ctx, "/runs/get", query, &resp); err != nil {
		return nil, err
	}

	detail := &RunDetail{
		ID:           resp.Run.Info.RunID,
		Name:         resp.Run.Info.RunName,
		ExperimentID: resp.Run.Info.ExperimentID,
		Params:       make(map[string]string, len(resp.Run.Data.Params)),
		Tags:         make(map[string]string, len(resp.Run.Data.Tags)),
	}
	for _, p := range resp.Run.Data.Params {
		detail.Params[p.Key] = p.Value
	}
	for _, tag := range resp.Run.Data.Tags {
		detail.Tags[tag.Key] = tag.Value
	}
	for _, m := range resp.Run.Data.Metrics {
		detail.MetricKeys = append(detail.MetricKeys, m.Key)
	}
	return detail, nil
}

// GetMetricHistory retrieves the full sample history of one metric.
func (s *MLflowService) GetMetricHistory(ctx context.Context, runID, metric string) ([]models.MetricSample, error) {
	query := url.Values{"run_id": {runID}, "metric_key": {metric}}

	var resp struct {
		Metrics []mlflowMetric `json:"metrics"`
	}
	if err := s.get(ctx, "/metrics/get-history", query, &resp); err != nil {
		return nil, err
	}

	samples := make([]models.MetricSample, 0, len(resp.Metrics))
	for _, m := range resp.Metrics {
		samples = append(samples, models.MetricSample{
			Step:      int64(m.Step),
			Value:     m.Value,
			Timestamp: int64(m.Timestamp),
		})
	}
	return samples, nil
}

func (s *MLflowService) get(ctx context.Context, endpoint string, query url.Values, out any) error {
	fullURL := s.baseURL + mlflowAPIPrefix + endpoint
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return s.do(req, out)
}

func (s *MLflowService) post(ctx context.Context, endpoint string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+mlflowAPIPrefix+endpoint, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return s.do(req, out)
}

func (s *MLflowService) do(req *http.Request, out any) error {
	if err := s.limiter.Wait(req.Context()); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr mlflowErrorResponse
		if json.Unmarshal(body, &apiErr) == nil && apiErr.ErrorCode == "RESOURCE_DOES_NOT_EXIST" {
			return fmt.Errorf("%w: %s", shared.ErrExperimentNotFound, apiErr.Message)
		}
		return fmt.Errorf("%w: %s returned status %d", shared.ErrAPIRequest, req.URL.Path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
