package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/mlsync/internal/formatter"
	"github.com/desertthunder/mlsync/internal/shared"
	"github.com/urfave/cli/v3"
)

// RecordsList lists destination records, optionally scoped to an experiment.
func (r *Runner) RecordsList(ctx context.Context, cmd *cli.Command) error {
	experiment := cmd.String("experiment")
	useJSON := cmd.Bool("json")
	pretty := cmd.Bool("pretty")
	limit := cmd.Int("limit")

	store, closeStore, err := r.openStore(cmd)
	if err != nil {
		return err
	}
	defer closeStore()

	records, err := store.List(experiment)
	if err != nil {
		return err
	}

	if limit > 0 && limit < len(records) {
		records = records[:limit]
	}

	if useJSON {
		return r.writeJSON(records, pretty)
	}

	r.writePlain("Found %d records:\n\n", len(records))
	for i, rec := range records {
		r.writePlain("%d. %s\n", i+1, rec.Name)
		r.writePlain("   ID: %s\n", rec.ID)
		r.writePlain("   Experiment: %s\n", rec.Experiment)
		r.writePlain("   Updated: %s\n", rec.UpdatedAt.Format("2006-01-02 15:04:05"))
		r.writePlain("\n")
	}

	return nil
}

// RecordsExport exports one destination record to CSV, Markdown, text or JSON.
func (r *Runner) RecordsExport(ctx context.Context, cmd *cli.Command) error {
	recordID := cmd.String("id")
	format := cmd.String("format")
	output := cmd.String("output")
	pretty := cmd.Bool("pretty")

	if recordID == "" {
		return fmt.Errorf("%w: --id flag is required", shared.ErrMissingArgument)
	}

	store, closeStore, err := r.openStore(cmd)
	if err != nil {
		return err
	}
	defer closeStore()

	export, err := formatter.BuildRecordExport(store, recordID)
	if err != nil {
		return err
	}

	switch format {
	case "csv":
		result, err := formatter.WriteCSVExport(export, output)
		if err != nil {
			return err
		}
		r.writePlain("✓ Samples written to %s\n", result.SamplesFile)
		r.writePlain("✓ Metadata written to %s\n", result.MetadataFile)
	case "markdown", "md":
		mdFile, err := formatter.WriteMarkdownExport(export, output)
		if err != nil {
			return err
		}
		r.writePlain("✓ Markdown written to %s\n", mdFile)
	case "text", "txt":
		textFile, err := formatter.WriteTextExport(export, output)
		if err != nil {
			return err
		}
		r.writePlain("✓ Text written to %s\n", textFile)
	case "json":
		return r.writeJSON(export, pretty)
	default:
		return fmt.Errorf("%w: unknown format %q (must be csv, markdown, text or json)", shared.ErrInvalidFlag, format)
	}

	return nil
}

// recordsCommand handles destination store inspection and export
func recordsCommand(r *Runner) *cli.Command {
	storeFlag := &cli.StringFlag{
		Name:  "store",
		Usage: "Destination store directory (overrides config)",
	}

	return &cli.Command{
		Name:  "records",
		Usage: "Inspect synced records in the destination store",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List destination records",
				Flags: []cli.Flag{
					storeFlag,
					&cli.StringFlag{
						Name:    "experiment",
						Aliases: []string{"e"},
						Usage:   "Only list records from this experiment",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of records to show",
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
				Action: r.RecordsList,
			},
			{
				Name:  "export",
				Usage: "Export a record's params, tags and metric series",
				Flags: []cli.Flag{
					storeFlag,
					&cli.StringFlag{
						Name:     "id",
						Usage:    "Record ID to export",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Export format (csv, markdown, text, json)",
						Value:   "json",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output path (defaults to the record ID)",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print JSON output",
					},
				},
				Action: r.RecordsExport,
			},
		},
	}
}
