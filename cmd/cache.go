package main

import (
	"context"

	"github.com/urfave/cli/v3"
)

// CacheShow prints the run cache's mappings.
func (r *Runner) CacheShow(ctx context.Context, cmd *cli.Command) error {
	useJSON := cmd.Bool("json")
	pretty := cmd.Bool("pretty")

	runCache, err := r.openCache(cmd)
	if err != nil {
		return err
	}

	if useJSON {
		return r.writeJSON(map[string]any{
			"path":    runCache.Path(),
			"entries": runCache.Len(),
		}, pretty)
	}

	r.writePlain("Run cache: %s\n", runCache.Path())
	r.writePlain("Entries: %d\n", runCache.Len())

	return nil
}

// CacheClear deletes the run cache file. The next sync recreates every
// destination record from scratch.
func (r *Runner) CacheClear(ctx context.Context, cmd *cli.Command) error {
	runCache, err := r.openCache(cmd)
	if err != nil {
		return err
	}

	entries := runCache.Len()
	if err := runCache.Clear(); err != nil {
		return err
	}

	r.logger.Info("run cache cleared", "path", runCache.Path(), "entries", entries)
	r.writePlain("✓ Cleared %d cache entries\n", entries)

	return nil
}

// cacheCommand handles run cache inspection and maintenance
func cacheCommand(r *Runner) *cli.Command {
	storeFlag := &cli.StringFlag{
		Name:  "store",
		Usage: "Destination store directory (overrides config)",
	}

	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect and maintain the run cache",
		Commands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Show run cache location and size",
				Flags: []cli.Flag{
					storeFlag,
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output as JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print JSON output",
					},
				},
				Action: r.CacheShow,
			},
			{
				Name:  "clear",
				Usage: "Delete the run cache (next sync re-creates all records)",
				Flags: []cli.Flag{
					storeFlag,
				},
				Action: r.CacheClear,
			},
		},
	}
}
