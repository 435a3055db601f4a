package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/verdantic/fieldsat/internal/db"
	"github.com/verdantic/fieldsat/internal/export"
	"github.com/verdantic/fieldsat/internal/model"
	"github.com/verdantic/fieldsat/internal/store"
)

var (
	exportRun      string
	exportFormat   string
	exportOutput   string
	exportPostgres string
	exportTable    string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a stored run's match table",
	Long: `Re-exports a completed run from the run store without re-matching.

With --output the match table is written to a CSV or JSON file. With
--postgres the table is bulk-loaded into PostgreSQL; re-exporting the same
run replaces its rows.

Examples:
  fieldsat export --run 2a9f... --output matches.csv
  fieldsat export --run 2a9f... --format json --output report.json
  fieldsat export --run 2a9f... --postgres "postgres://user@db/analysis"`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if exportOutput == "" && exportPostgres == "" && cfg.Export.Postgres.ConnString == "" {
			return eris.New("export: one of --output or --postgres is required")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, exportRun)
		if err != nil {
			return eris.Wrapf(err, "export: run %s", exportRun)
		}
		matches, err := st.GetMatches(ctx, run.ID, store.MatchFilter{})
		if err != nil {
			return eris.Wrapf(err, "export: matches of %s", run.ID)
		}

		if exportOutput != "" {
			switch exportFormat {
			case "csv":
				err = export.WriteCSV(matches, exportOutput)
			case "json":
				report := export.Report{Run: run, Matches: matches}
				if run.Summary != nil {
					report.Summary = *run.Summary
				}
				err = export.WriteJSON(report, exportOutput)
			default:
				return eris.Errorf("export: unknown format %q (want csv or json)", exportFormat)
			}
			if err != nil {
				return err
			}
			fmt.Printf("Wrote %d matches to %s\n", len(matches), exportOutput)
		}

		if exportPostgres != "" || cfg.Export.Postgres.ConnString != "" {
			if err := exportToPostgres(cmd, run.ID, matches); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportRun, "run", "", "run identifier to export (required)")
	exportCmd.Flags().StringVar(&exportFormat, "format", "csv", "file format: csv or json")
	exportCmd.Flags().StringVar(&exportOutput, "output", "", "write the match table to this file")
	exportCmd.Flags().StringVar(&exportPostgres, "postgres", "", "PostgreSQL connection string to bulk-load into")
	exportCmd.Flags().StringVar(&exportTable, "table", "", "PostgreSQL table name (default from config)")
	_ = exportCmd.MarkFlagRequired("run")
	rootCmd.AddCommand(exportCmd)
}

func exportToPostgres(cmd *cobra.Command, runID string, matches []model.Match) error {
	ctx := cmd.Context()

	if cmd.Flags().Changed("postgres") {
		cfg.Export.Postgres.ConnString = exportPostgres
	}
	if cmd.Flags().Changed("table") {
		cfg.Export.Postgres.Table = exportTable
	}
	if err := cfg.Validate("export-postgres"); err != nil {
		return err
	}

	pool, err := db.Connect(ctx, cfg.Export.Postgres.ConnString)
	if err != nil {
		return err
	}
	defer pool.Close()

	table := cfg.Export.Postgres.Table
	if err := export.EnsureSchema(ctx, pool, table); err != nil {
		return err
	}
	n, err := export.ToPostgres(ctx, pool, table, runID, matches)
	if err != nil {
		return err
	}
	fmt.Printf("Loaded %d matches into %s\n", n, table)
	return nil
}
