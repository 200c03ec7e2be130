package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/desertthunder/mlsync/internal/tasks"
	"github.com/urfave/cli/v3"
)

// SyncRun performs a full sync pass, optionally followed by continuous polling.
func (r *Runner) SyncRun(ctx context.Context, cmd *cli.Command) error {
	selector := cmd.String("experiment")
	continuous := cmd.Bool("continuous")
	since := cmd.Int("since")
	useJSON := cmd.Bool("json")
	pretty := cmd.Bool("pretty")

	tracking, err := r.resolveTracking(cmd)
	if err != nil {
		return err
	}

	store, closeStore, err := r.openStore(cmd)
	if err != nil {
		return err
	}
	defer closeStore()

	runCache, err := r.openCache(cmd)
	if err != nil {
		return err
	}

	r.logger.Info("starting sync", "source", tracking.Name(), "store", r.storeDir(cmd))
	if !useJSON {
		r.writePlain("Starting sync from %s...\n\n", tracking.Name())
	}

	engine := tasks.NewSyncEngine(tracking, store, runCache, r.logger, tasks.Options{
		CommitWorkers: workersOrConfig(cmd.Int("workers"), r.config.Sync.CommitWorkers),
		FetchWorkers:  workersOrConfig(cmd.Int("fetch-workers"), r.config.Sync.FetchWorkers),
	})

	// Create progress channel and goroutine to handle updates
	var progressCh chan tasks.ProgressUpdate
	drained := make(chan struct{})
	if !useJSON {
		progressCh = make(chan tasks.ProgressUpdate, 50)
		go func() {
			defer close(drained)
			for update := range progressCh {
				switch update.Phase {
				case tasks.ResolveExperiments:
					r.writePlain("🔍 %s\n", update.Message)
				case tasks.ListRuns:
					r.writePlain("\n📋 %s\n", update.Message)
				case tasks.FetchRuns:
					r.writePlain("   %s\n", update.Message)
				case tasks.CommitRecords:
					r.writePlain("📝 %s\n", update.Message)
				case tasks.RefreshCache:
					r.writePlain("💾 %s\n", update.Message)
				}
			}
		}()
	}

	result, err := engine.Run(ctx, selector, int64(since), progressCh)
	if progressCh != nil {
		// The drain goroutine shares r.output with the summary below; wait
		// for it to finish before writing anything else.
		close(progressCh)
		<-drained
	}
	if err != nil {
		return err
	}

	if useJSON {
		if err := r.writeJSON(result, pretty); err != nil {
			return err
		}
	} else {
		r.writePlain("\n")
		r.writePlainHeader("Sync Complete!")
		r.writePlain("Experiments: %d\n", len(result.Experiments))
		r.writePlain("Runs: %d (created %d, reused %d)\n", result.TotalRuns, result.Created, result.Reused)
		r.writePlain("Cache entries: %d\n", runCache.Len())
	}

	if !continuous {
		return nil
	}

	interval := time.Duration(cmd.Int("interval")) * time.Second
	if interval <= 0 {
		interval = time.Duration(r.config.Sync.PollIntervalSeconds) * time.Second
	}

	watcher := tasks.NewWatcher(engine, selector, interval, cmd.StringSlice("exclude-artifacts"), r.logger)
	watcher.Start()
	defer watcher.Stop()

	r.logger.Info("watching source for new data", "interval", interval)
	if !useJSON {
		r.writePlain("\nWatching %s every %v (Ctrl+C to stop)...\n", tracking.Name(), interval)
	}

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-sigCtx.Done()

	r.logger.Info("stopping watcher")
	return nil
}

func workersOrConfig(flagValue int, configValue int) int {
	if flagValue > 0 {
		return flagValue
	}
	return configValue
}

// syncCommand handles backfill and continuous sync operations
func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Sync source runs into the destination store",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "tracking-uri",
				Usage: "Source tracking server URI",
			},
			&cli.StringFlag{
				Name:  "store",
				Usage: "Destination store directory (overrides config)",
			},
			&cli.StringFlag{
				Name:    "experiment",
				Aliases: []string{"e"},
				Usage:   "Experiment id or name to sync (default: all)",
			},
			&cli.StringSliceFlag{
				Name:  "exclude-artifacts",
				Usage: "Artifact glob(s) to skip (repeatable)",
			},
			&cli.BoolFlag{
				Name:  "continuous",
				Usage: "Keep polling the source after the initial pass",
			},
			&cli.IntFlag{
				Name:  "interval",
				Usage: "Poll interval in seconds for --continuous",
			},
			&cli.IntFlag{
				Name:  "since",
				Usage: "Drop metric samples older than this unix millisecond timestamp",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Destination store commit workers",
			},
			&cli.IntFlag{
				Name:  "fetch-workers",
				Usage: "Concurrent run fetches per experiment",
			},
			&cli.BoolFlag{
				Name:  "no-cache",
				Usage: "Discard the run cache before syncing",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output the result as JSON",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print JSON output",
			},
		},
		Action: r.SyncRun,
	}
}
