package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/mlsync/internal/models"
	"github.com/desertthunder/mlsync/internal/services"
	"github.com/desertthunder/mlsync/internal/shared"
	tu "github.com/desertthunder/mlsync/internal/testing"
	"github.com/urfave/cli/v3"
)

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			tracking := &tu.MockTrackingService{}

			runner := NewRunner(RunnerOpts{
				Config:   config,
				Logger:   logger,
				Output:   output,
				Tracking: tracking,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.tracking != tracking {
				t.Error("expected tracking to be set")
			}
		})

		t.Run("with nil config uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{
				Config: nil,
			})

			if runner.config == nil {
				t.Error("expected default config to be set")
			}
		})

		t.Run("with nil logger uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{
				Logger: nil,
			})

			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
		})

		t.Run("with nil output uses stdout", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{
				Output: nil,
			})

			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
		})

		t.Run("with configPath sets field", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{
				ConfigPath: "/test/path/config.toml",
			})

			if runner.configPath != "/test/path/config.toml" {
				t.Errorf("expected configPath to be set, got %s", runner.configPath)
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			data := map[string]string{"key": "value"}
			err := runner.writeJSON(data, true)

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			data := map[string]string{"key": "value"}
			err := runner.writeJSON(data, false)

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			expected := `{"key":"value"}` + "\n"
			if result != expected {
				t.Errorf("expected %q, got %q", expected, result)
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			// channels cannot be marshaled to JSON
			data := make(chan int)
			err := runner.writeJSON(data, false)

			if err == nil {
				t.Fatal("expected error for non-serializable data")
			}
			if !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			failing := &tu.FWriter{}
			runner := NewRunner(RunnerOpts{Output: failing})

			data := map[string]string{"key": "value"}
			err := runner.writeJSON(data, false)

			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes plain text successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			err := runner.writePlain("hello %s", "world")

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if result != "hello world" {
				t.Errorf("expected 'hello world', got %q", result)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			failing := &tu.FWriter{}
			runner := NewRunner(RunnerOpts{Output: failing})

			err := runner.writePlain("test")

			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		commands := runner.register()

		if len(commands) == 0 {
			t.Error("expected at least one command to be registered")
		}

		for i, cmd := range commands {
			if cmd == nil {
				t.Errorf("command at index %d is nil", i)
			}
		}
	})

	t.Run("resolveTracking", func(t *testing.T) {
		t.Run("prefers the injected service", func(t *testing.T) {
			tracking := &tu.MockTrackingService{}
			runner := NewRunner(RunnerOpts{Tracking: tracking})

			resolved, err := runner.resolveTracking(&cli.Command{})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if resolved != tracking {
				t.Error("expected injected tracking service")
			}
		})

		t.Run("fails without a URI", func(t *testing.T) {
			t.Setenv(shared.TrackingURIEnvVar, "")
			runner := NewRunner(RunnerOpts{Config: &shared.Config{}})

			_, err := runner.resolveTracking(&cli.Command{})
			if err == nil {
				t.Fatal("expected an error without a tracking URI")
			}
		})
	})
}

// newTestRunner wires a runner around mock tracking and a temp store,
// returning it with its output buffer and store directory.
func newTestRunner(t *testing.T, tracking services.TrackingService) (*Runner, *bytes.Buffer, string) {
	t.Helper()
	output := &bytes.Buffer{}
	storeDir := filepath.Join(t.TempDir(), "store")

	config := shared.DefaultConfig()
	config.Store.Path = storeDir

	runner := NewRunner(RunnerOpts{
		Config:   config,
		Tracking: tracking,
		Logger:   shared.NewLogger(&bytes.Buffer{}),
		Output:   output,
	})
	return runner, output, storeDir
}

// runApp executes one CLI invocation against a fresh command tree.
func runApp(t *testing.T, runner *Runner, args ...string) error {
	t.Helper()
	app := &cli.Command{
		Name:     "mlsync",
		Commands: runner.register(),
	}
	return app.Run(context.Background(), append([]string{"mlsync"}, args...))
}

func newMockSource() *tu.MockTrackingService {
	return &tu.MockTrackingService{
		Experiments: []services.Experiment{{ID: "1", Name: "mnist"}},
		Runs: map[string][]services.Run{
			"1": {{ID: "r1", Name: "baseline"}},
		},
		Details: map[string]*services.RunDetail{
			"r1": {
				ID:           "r1",
				Name:         "baseline",
				ExperimentID: "1",
				Params:       map[string]string{"lr": "0.01"},
				MetricKeys:   []string{"loss"},
			},
		},
		Histories: map[string][]models.MetricSample{
			tu.HistoryKey("r1", "loss"): {{Step: 0, Value: 1.5, Timestamp: 100}},
		},
	}
}

func TestSyncCommand(t *testing.T) {
	t.Run("runs a full pass", func(t *testing.T) {
		runner, output, storeDir := newTestRunner(t, newMockSource())

		if err := runApp(t, runner, "sync"); err != nil {
			t.Fatalf("sync failed: %v", err)
		}

		if !strings.Contains(output.String(), "Sync Complete!") {
			t.Errorf("missing completion banner, got: %s", output.String())
		}
		if !strings.Contains(output.String(), "created 1") {
			t.Errorf("expected 1 created run, got: %s", output.String())
		}

		// Progress output finishes before the summary starts
		lastProgress := strings.LastIndex(output.String(), "💾")
		banner := strings.Index(output.String(), "Sync Complete!")
		if lastProgress < 0 || lastProgress > banner {
			t.Errorf("progress output interleaved with the summary: %s", output.String())
		}

		tu.AssertFileExists(t, filepath.Join(storeDir, "store.db"))
		tu.AssertFileExists(t, filepath.Join(storeDir, "mlsync_run_cache.json"))
	})

	t.Run("json output", func(t *testing.T) {
		runner, output, _ := newTestRunner(t, newMockSource())

		if err := runApp(t, runner, "sync", "--json"); err != nil {
			t.Fatalf("sync failed: %v", err)
		}

		if !strings.Contains(output.String(), `"TotalRuns":1`) {
			t.Errorf("expected JSON result, got: %s", output.String())
		}
	})

	t.Run("unknown experiment fails", func(t *testing.T) {
		runner, _, _ := newTestRunner(t, newMockSource())

		if err := runApp(t, runner, "sync", "-e", "missing"); err == nil {
			t.Fatal("expected an error for an unknown experiment")
		}
	})
}

func TestExperimentsCommand(t *testing.T) {
	runner, output, _ := newTestRunner(t, newMockSource())

	if err := runApp(t, runner, "experiments", "list", "--runs"); err != nil {
		t.Fatalf("experiments list failed: %v", err)
	}

	if !strings.Contains(output.String(), "mnist") {
		t.Errorf("missing experiment name, got: %s", output.String())
	}
	if !strings.Contains(output.String(), "baseline") {
		t.Errorf("missing run name, got: %s", output.String())
	}
}

func TestRecordsCommand(t *testing.T) {
	runner, output, _ := newTestRunner(t, newMockSource())

	if err := runApp(t, runner, "sync"); err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	output.Reset()

	if err := runApp(t, runner, "records", "list"); err != nil {
		t.Fatalf("records list failed: %v", err)
	}

	if !strings.Contains(output.String(), "Found 1 records") {
		t.Errorf("expected one record, got: %s", output.String())
	}
	if !strings.Contains(output.String(), "baseline") {
		t.Errorf("missing record name, got: %s", output.String())
	}

	output.Reset()
	if err := runApp(t, runner, "records", "list", "--json"); err != nil {
		t.Fatalf("records list --json failed: %v", err)
	}

	var records []struct {
		ID string `json:"ID"`
	}
	if err := json.Unmarshal(output.Bytes(), &records); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}

	output.Reset()
	if err := runApp(t, runner, "records", "export", "--id", records[0].ID, "--format", "json"); err != nil {
		t.Fatalf("records export failed: %v", err)
	}
	if !strings.Contains(output.String(), `"loss"`) {
		t.Errorf("expected exported metric series, got: %s", output.String())
	}

	if err := runApp(t, runner, "records", "export", "--id", records[0].ID, "--format", "bogus"); err == nil {
		t.Error("expected an error for an unknown format")
	}
}

func TestCacheCommand(t *testing.T) {
	runner, output, storeDir := newTestRunner(t, newMockSource())

	if err := runApp(t, runner, "sync"); err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	output.Reset()

	if err := runApp(t, runner, "cache", "show"); err != nil {
		t.Fatalf("cache show failed: %v", err)
	}
	if !strings.Contains(output.String(), "Entries: 1") {
		t.Errorf("expected one cache entry, got: %s", output.String())
	}

	output.Reset()
	if err := runApp(t, runner, "cache", "clear"); err != nil {
		t.Fatalf("cache clear failed: %v", err)
	}
	if !strings.Contains(output.String(), "Cleared 1 cache entries") {
		t.Errorf("expected clear summary, got: %s", output.String())
	}

	if _, err := os.Stat(filepath.Join(storeDir, "mlsync_run_cache.json")); !os.IsNotExist(err) {
		t.Error("expected cache file to be removed")
	}
}

func TestSetupCommand(t *testing.T) {
	runner, _, storeDir := newTestRunner(t, newMockSource())
	configPath := filepath.Join(t.TempDir(), "config.toml")

	if err := runApp(t, runner, "setup", "--config", configPath, "--store", storeDir); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	tu.AssertFileExists(t, configPath)
	tu.AssertFileExists(t, filepath.Join(storeDir, "store.db"))
}
