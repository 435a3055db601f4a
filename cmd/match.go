package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/verdantic/fieldsat/internal/export"
	"github.com/verdantic/fieldsat/internal/geo"
	"github.com/verdantic/fieldsat/internal/ingest"
	"github.com/verdantic/fieldsat/internal/matcher"
	"github.com/verdantic/fieldsat/internal/model"
	"github.com/verdantic/fieldsat/internal/store"
)

var (
	matchSites       string
	matchPatches     string
	matchPolicy      string
	matchRadius      float64
	matchCloudMax    float64
	matchConcurrency int
	matchLimit       int
	matchLandUses    []string
	matchAgri        bool
	matchRegion      string
	matchOutput      string
	matchFormat      string
	matchNoStore     bool
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Match every survey site to its best satellite patch",
	Long: `Loads the site and patch tables, matches each site to its single best
patch under the configured priority policy, and prints a summary.

Examples:
  # Default spatial-first matching, results persisted to the run store
  fieldsat match --sites sites.csv --patches patches.csv

  # Agricultural sites only, temporal-first, CSV output
  fieldsat match --sites sites.csv --patches patches.csv.gz \
    --land-use Cropland --land-use Pasture --land-use "Plantation forest" \
    --policy temporal_first --output matches.csv

  # Smoke run: first 100 sites, nothing saved
  fieldsat match --sites sites.xlsx --patches patches.csv --limit 100 --no-store`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		applyMatchFlags(cmd)
		if err := cfg.Validate("match"); err != nil {
			return err
		}
		policy, err := model.ParsePolicy(cfg.Match.PriorityPolicy)
		if err != nil {
			return err
		}

		sites, siteStats, err := ingest.LoadSites(matchSites, cfg.Ingest)
		if err != nil {
			return eris.Wrap(err, "match: load sites")
		}
		patches, patchStats, err := ingest.LoadPatches(matchPatches, cfg.Ingest)
		if err != nil {
			return eris.Wrap(err, "match: load patches")
		}

		landUses := matchLandUses
		if len(landUses) == 0 && matchAgri {
			landUses = model.AgriculturalLandUses
		}
		if len(landUses) == 0 {
			landUses = cfg.Match.LandUses
		}
		sites = filterLandUses(sites, landUses)

		st := openRunStore(ctx)
		if st != nil {
			defer st.Close() //nolint:errcheck
		}
		if matchRegion != "" {
			sites, err = clipToRegion(ctx, st, matchRegion, sites)
			if err != nil {
				return err
			}
		}

		if matchLimit > 0 && matchLimit < len(sites) {
			sites = sites[:matchLimit]
		}

		index := geo.BuildIndex(patches)
		patches = nil // the index holds its own copy

		opts := matcher.Options{
			RadiusDeg:            cfg.Match.SearchRadiusDegrees,
			CloudMax:             cfg.Match.CloudCoverThreshold,
			Policy:               policy,
			DistanceThresholdsKM: cfg.Match.DistanceThresholdsKM,
			LagThresholdsYears:   cfg.Match.LagThresholdsYears,
			Concurrency:          cfg.Match.Concurrency,
			MalformedSites:       siteStats.Malformed,
			MalformedPatches:     patchStats.Malformed,
		}

		var run *model.Run
		if st != nil {
			run, err = st.CreateRun(ctx, model.Run{
				SitesFile:   matchSites,
				PatchesFile: matchPatches,
				Policy:      policy,
				RadiusDeg:   opts.RadiusDeg,
				CloudMax:    opts.CloudMax,
				Region:      matchRegion,
				SiteCount:   len(sites),
				PatchCount:  index.Len(),
			})
			if err != nil {
				return eris.Wrap(err, "match: create run")
			}
			zap.L().Info("run created", zap.String("run_id", run.ID))
		}

		result, runErr := matcher.Run(ctx, sites, index, opts)
		if runErr != nil {
			// Empty input aborts the run but still has a summary to show.
			if result != nil {
				formatSummary(os.Stdout, result.Summary)
			}
			if run != nil {
				if ferr := st.FailRun(ctx, run.ID, runErr.Error()); ferr != nil {
					zap.L().Error("could not mark run failed", zap.Error(ferr))
				}
			}
			return runErr
		}

		if run != nil {
			if err := st.SaveMatches(ctx, run.ID, result.Matches); err != nil {
				return eris.Wrap(err, "match: save matches")
			}
			if err := st.CompleteRun(ctx, run.ID, &result.Summary); err != nil {
				return eris.Wrap(err, "match: complete run")
			}
		}

		if matchOutput != "" {
			if err := writeMatchOutput(run, result, matchFormat, matchOutput); err != nil {
				return err
			}
			zap.L().Info("match table written",
				zap.String("path", matchOutput),
				zap.String("format", matchFormat))
		}

		formatSummary(os.Stdout, result.Summary)
		if run != nil {
			fmt.Fprintf(os.Stdout, "\nRun %s saved.\n", run.ID)
		}
		return nil
	},
}

func init() {
	matchCmd.Flags().StringVar(&matchSites, "sites", "", "path to the site table, csv/csv.gz/xlsx (required)")
	matchCmd.Flags().StringVar(&matchPatches, "patches", "", "path to the patch metadata table, csv/csv.gz (required)")
	matchCmd.Flags().StringVar(&matchPolicy, "policy", "", "priority policy: spatial_first or temporal_first (default from config)")
	matchCmd.Flags().Float64Var(&matchRadius, "radius", 0, "search radius in degrees (default from config)")
	matchCmd.Flags().Float64Var(&matchCloudMax, "cloud-max", -1, "cloud cover threshold, fraction 0-1 (default from config)")
	matchCmd.Flags().IntVar(&matchConcurrency, "concurrency", 0, "parallel match workers (default from config)")
	matchCmd.Flags().IntVar(&matchLimit, "limit", 0, "match only the first N sites (0 = all)")
	matchCmd.Flags().StringArrayVar(&matchLandUses, "land-use", nil, "restrict sites to a land-use category (repeatable)")
	matchCmd.Flags().BoolVar(&matchAgri, "agricultural", false, "shorthand for the agricultural land uses (Cropland, Pasture, Plantation forest)")
	matchCmd.Flags().StringVar(&matchRegion, "region", "", "restrict sites to a stored region")
	matchCmd.Flags().StringVar(&matchOutput, "output", "", "write the match table to this file")
	matchCmd.Flags().StringVar(&matchFormat, "format", "csv", "output format: csv or json")
	matchCmd.Flags().BoolVar(&matchNoStore, "no-store", false, "skip persisting the run")
	_ = matchCmd.MarkFlagRequired("sites")
	_ = matchCmd.MarkFlagRequired("patches")
	rootCmd.AddCommand(matchCmd)
}

// applyMatchFlags copies explicitly-set flags over the loaded configuration,
// so flags beat the config file which beats defaults.
func applyMatchFlags(cmd *cobra.Command) {
	if cmd.Flags().Changed("policy") {
		cfg.Match.PriorityPolicy = matchPolicy
	}
	if cmd.Flags().Changed("radius") {
		cfg.Match.SearchRadiusDegrees = matchRadius
	}
	if cmd.Flags().Changed("cloud-max") {
		cfg.Match.CloudCoverThreshold = matchCloudMax
	}
	if cmd.Flags().Changed("concurrency") {
		cfg.Match.Concurrency = matchConcurrency
	}
}

// openRunStore opens the run store for the match command, or returns nil when
// persistence is off (--no-store or store.disable).
func openRunStore(ctx context.Context) store.Store {
	if matchNoStore || cfg.Store.Disable {
		return nil
	}
	st, err := initStore(ctx)
	if err != nil {
		zap.L().Warn("run store unavailable, continuing without persistence", zap.Error(err))
		return nil
	}
	return st
}

// filterLandUses keeps sites whose land use is in the allow list. An empty
// list keeps everything.
func filterLandUses(sites []model.Site, landUses []string) []model.Site {
	if len(landUses) == 0 {
		return sites
	}
	allowed := make(map[string]bool, len(landUses))
	for _, lu := range landUses {
		allowed[lu] = true
	}
	out := make([]model.Site, 0, len(sites))
	for _, s := range sites {
		if allowed[s.LandUse] {
			out = append(out, s)
		}
	}
	zap.L().Info("land-use filter applied",
		zap.Strings("land_uses", landUses),
		zap.Int("kept", len(out)),
		zap.Int("dropped", len(sites)-len(out)))
	return out
}

// clipToRegion keeps only the sites inside the named stored region. Sites
// outside are out of the run's scope, not unmatched.
func clipToRegion(ctx context.Context, st store.Store, name string, sites []model.Site) ([]model.Site, error) {
	if st == nil {
		return nil, eris.New("match: --region needs the run store (remove --no-store / store.disable)")
	}
	region, err := st.GetRegion(ctx, name)
	if err != nil {
		return nil, eris.Wrapf(err, "match: region %s", name)
	}
	filter, err := geo.NewRegionFilter(region)
	if err != nil {
		return nil, err
	}
	clipped := filter.FilterSites(sites)
	zap.L().Info("region clip applied",
		zap.String("region", name),
		zap.Int("kept", len(clipped)),
		zap.Int("dropped", len(sites)-len(clipped)))
	return clipped, nil
}

// writeMatchOutput writes the match table in the requested format.
func writeMatchOutput(run *model.Run, result *matcher.Result, format, path string) error {
	switch format {
	case "csv":
		return export.WriteCSV(result.Matches, path)
	case "json":
		return export.WriteJSON(export.Report{
			Run:     run,
			Summary: result.Summary,
			Matches: result.Matches,
		}, path)
	default:
		return eris.Errorf("match: unknown output format %q (want csv or json)", format)
	}
}

// formatSummary renders the run summary as an aligned text block.
func formatSummary(out io.Writer, s model.Summary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	fmt.Fprintf(w, "Sites:\t%d\n", s.Sites)
	fmt.Fprintf(w, "Matched:\t%d (%.1f%%)\n", s.Matched, s.MatchRate*100)
	fmt.Fprintf(w, "Unmatched:\t%d\n", s.Unmatched)
	if s.NoCandidateInRadius > 0 {
		fmt.Fprintf(w, "  no candidate in radius:\t%d\n", s.NoCandidateInRadius)
	}
	if s.NonePassedQuality > 0 {
		fmt.Fprintf(w, "  none passed cloud filter:\t%d\n", s.NonePassedQuality)
	}
	if s.MalformedSites > 0 {
		fmt.Fprintf(w, "Malformed site rows dropped:\t%d\n", s.MalformedSites)
	}
	if s.MalformedPatches > 0 {
		fmt.Fprintf(w, "Malformed patch rows dropped:\t%d\n", s.MalformedPatches)
	}

	if s.Matched > 0 {
		fmt.Fprintf(w, "Distance km:\tmean %.2f, median %.2f, std %.2f, min %.2f, max %.2f\n",
			s.Distance.Mean, s.Distance.Median, s.Distance.Std, s.Distance.Min, s.Distance.Max)
		fmt.Fprintf(w, "Lag years:\tmean %.2f, median %.2f, min %.2f, max %.2f\n",
			s.Lag.Mean, s.Lag.Median, s.Lag.Min, s.Lag.Max)
		for _, tc := range s.WithinDistanceKM {
			fmt.Fprintf(w, "  within %g km:\t%d\n", tc.Threshold, tc.Count)
		}
		for _, tc := range s.WithinLagYears {
			fmt.Fprintf(w, "  within %g yr:\t%d\n", tc.Threshold, tc.Count)
		}
	}

	_ = w.Flush()
}
