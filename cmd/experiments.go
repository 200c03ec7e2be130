package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/mlsync/internal/shared"
	"github.com/urfave/cli/v3"
)

// ExperimentsList lists experiments known to the source tracking server.
func (r *Runner) ExperimentsList(ctx context.Context, cmd *cli.Command) error {
	useJSON := cmd.Bool("json")
	pretty := cmd.Bool("pretty")
	withRuns := cmd.Bool("runs")

	tracking, err := r.resolveTracking(cmd)
	if err != nil {
		return err
	}

	r.logger.Infof("listing experiments from %v", tracking.Name())

	experiments, err := tracking.SearchExperiments(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	if useJSON && !withRuns {
		return r.writeJSON(experiments, pretty)
	}

	if !useJSON {
		r.writePlain("Found %d experiments:\n\n", len(experiments))
	}

	type experimentListing struct {
		ID   string   `json:"id"`
		Name string   `json:"name"`
		Runs []string `json:"runs,omitempty"`
	}
	listings := make([]experimentListing, 0, len(experiments))

	for i, ex := range experiments {
		listing := experimentListing{ID: ex.ID, Name: ex.Name}

		if withRuns {
			runs, err := tracking.SearchRuns(ctx, ex.ID)
			if err != nil {
				return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
			}
			for _, run := range runs {
				listing.Runs = append(listing.Runs, run.ID)
			}
			listings = append(listings, listing)

			if !useJSON {
				r.writePlain("%d. %s\n", i+1, ex.Name)
				r.writePlain("   ID: %s\n", ex.ID)
				r.writePlain("   Runs: %d\n", len(runs))
				for _, run := range runs {
					r.writePlain("     - %s (%s)\n", run.Name, run.ID)
				}
				r.writePlain("\n")
			}
			continue
		}

		r.writePlain("%d. %s\n", i+1, ex.Name)
		r.writePlain("   ID: %s\n", ex.ID)
		r.writePlain("\n")
	}

	if useJSON {
		return r.writeJSON(listings, pretty)
	}

	return nil
}

// experimentsCommand lists source experiments and their runs
func experimentsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "experiments",
		Usage: "Inspect the source tracking server",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List experiments on the source tracking server",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "tracking-uri",
						Usage: "Source tracking server URI",
					},
					&cli.BoolFlag{
						Name:  "runs",
						Usage: "Include each experiment's runs",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output as JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print JSON output",
					},
				},
				Action: r.ExperimentsList,
			},
		},
	}
}
