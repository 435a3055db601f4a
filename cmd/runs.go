package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/verdantic/fieldsat/internal/model"
	"github.com/verdantic/fieldsat/internal/store"
)

var (
	runsListLimit   int
	runsListStatus  string
	runsShowMatches bool
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect stored match runs",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored runs, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		filter := store.RunFilter{Limit: runsListLimit}
		if runsListStatus != "" {
			filter.Status = model.RunStatus(runsListStatus)
		}
		runs, err := st.ListRuns(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "runs: list")
		}
		if len(runs) == 0 {
			fmt.Println("No runs stored.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "RUN\tSTATUS\tPOLICY\tSITES\tMATCHED\tRATE\tCREATED")
		for _, r := range runs {
			matched, rate := "-", "-"
			if r.Summary != nil {
				matched = fmt.Sprintf("%d", r.Summary.Matched)
				rate = fmt.Sprintf("%.1f%%", r.Summary.MatchRate*100)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
				r.ID, r.Status, r.Policy, r.SiteCount, matched, rate,
				r.CreatedAt.Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

var runsShowCmd = &cobra.Command{
	Use:   "show RUN_ID",
	Short: "Show one run's configuration and summary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrapf(err, "runs: show %s", args[0])
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "Run:\t%s\n", run.ID)
		fmt.Fprintf(w, "Status:\t%s\n", run.Status)
		if run.Error != "" {
			fmt.Fprintf(w, "Error:\t%s\n", run.Error)
		}
		fmt.Fprintf(w, "Sites file:\t%s\n", run.SitesFile)
		fmt.Fprintf(w, "Patches file:\t%s\n", run.PatchesFile)
		fmt.Fprintf(w, "Policy:\t%s\n", run.Policy)
		fmt.Fprintf(w, "Radius:\t%g deg\n", run.RadiusDeg)
		fmt.Fprintf(w, "Cloud max:\t%g\n", run.CloudMax)
		if run.Region != "" {
			fmt.Fprintf(w, "Region:\t%s\n", run.Region)
		}
		fmt.Fprintf(w, "Inputs:\t%d sites, %d patches\n", run.SiteCount, run.PatchCount)
		fmt.Fprintf(w, "Created:\t%s\n", run.CreatedAt.Format("2006-01-02 15:04:05"))
		_ = w.Flush()

		if run.Summary != nil {
			fmt.Println()
			formatSummary(os.Stdout, *run.Summary)
		}

		if runsShowMatches {
			matches, err := st.GetMatches(ctx, run.ID, store.MatchFilter{})
			if err != nil {
				return eris.Wrapf(err, "runs: matches of %s", run.ID)
			}
			fmt.Println()
			formatMatches(os.Stdout, matches)
		}
		return nil
	},
}

var runsDeleteCmd = &cobra.Command{
	Use:   "delete RUN_ID",
	Short: "Delete a run and its matches",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.DeleteRun(ctx, args[0]); err != nil {
			return eris.Wrapf(err, "runs: delete %s", args[0])
		}
		fmt.Printf("Run %s deleted.\n", args[0])
		return nil
	},
}

func init() {
	runsListCmd.Flags().IntVar(&runsListLimit, "limit", 20, "maximum runs to list")
	runsListCmd.Flags().StringVar(&runsListStatus, "status", "", "filter by status: running, completed, failed")
	runsShowCmd.Flags().BoolVar(&runsShowMatches, "matches", false, "also print the full match table")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsDeleteCmd)
	rootCmd.AddCommand(runsCmd)
}

// formatMatches renders a match table, one row per site.
func formatMatches(out io.Writer, matches []model.Match) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SITE\tPATCH\tDIST KM\tLAG YR\tLAND USE\tREASON")
	for i := range matches {
		m := &matches[i]
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			m.SiteID, orDash(m.PatchID),
			floatOrDash(m.DistanceKM), floatOrDash(m.LagYears),
			m.LandUse, string(m.Reason))
	}
	_ = w.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func floatOrDash(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *v)
}
