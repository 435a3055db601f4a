package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/verdantic/fieldsat/internal/explore"
	"github.com/verdantic/fieldsat/internal/ingest"
)

var (
	exploreSites   string
	explorePatches string
	exploreTop     int
	exploreFormat  string
)

var exploreCmd = &cobra.Command{
	Use:   "explore",
	Short: "Profile site and patch tables before matching",
	Long: `Loads one or both input tables and prints their distributions: land-use
and country counts, survey/capture years, coordinate extents, cloud-cover
quantiles, and the densest 10-degree grid cells. Useful for sanity-checking
column mappings and choosing a search radius before a full run.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if exploreSites == "" && explorePatches == "" {
			return eris.New("explore: at least one of --sites or --patches is required")
		}

		var payload struct {
			Sites   *explore.SiteReport  `json:"sites,omitempty"`
			Patches *explore.PatchReport `json:"patches,omitempty"`
		}

		if exploreSites != "" {
			sites, stats, err := ingest.LoadSites(exploreSites, cfg.Ingest)
			if err != nil {
				return eris.Wrap(err, "explore: load sites")
			}
			r := explore.Sites(sites)
			payload.Sites = &r
			if exploreFormat == "text" {
				formatSiteReport(os.Stdout, exploreSites, &r, stats.Malformed, exploreTop)
			}
		}

		if explorePatches != "" {
			patches, stats, err := ingest.LoadPatches(explorePatches, cfg.Ingest)
			if err != nil {
				return eris.Wrap(err, "explore: load patches")
			}
			r := explore.Patches(patches)
			payload.Patches = &r
			if exploreFormat == "text" {
				formatPatchReport(os.Stdout, explorePatches, &r, stats.Malformed, exploreTop)
			}
		}

		switch exploreFormat {
		case "text":
			return nil
		case "json":
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return eris.Wrap(enc.Encode(payload), "explore: encode report")
		default:
			return eris.Errorf("explore: unknown format %q (want text or json)", exploreFormat)
		}
	},
}

func init() {
	exploreCmd.Flags().StringVar(&exploreSites, "sites", "", "path to the site table")
	exploreCmd.Flags().StringVar(&explorePatches, "patches", "", "path to the patch metadata table")
	exploreCmd.Flags().IntVar(&exploreTop, "top", 10, "buckets to show per distribution")
	exploreCmd.Flags().StringVar(&exploreFormat, "format", "text", "output format: text or json")
	rootCmd.AddCommand(exploreCmd)
}

func formatSiteReport(out io.Writer, path string, r *explore.SiteReport, malformed, top int) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	fmt.Fprintf(w, "Sites (%s):\t%d\n", path, r.Sites)
	if malformed > 0 {
		fmt.Fprintf(w, "Malformed rows dropped:\t%d\n", malformed)
	}
	fmt.Fprintf(w, "Extent:\tlat %.4f..%.4f, lng %.4f..%.4f\n",
		r.Extent.MinLat, r.Extent.MaxLat, r.Extent.MinLng, r.Extent.MaxLng)

	formatCategories(w, "Land use", r.LandUses, top)
	formatCategories(w, "Country", r.Countries, top)
	formatYears(w, "Survey year", r.Years, top)
	formatCategories(w, "Densest cells", r.Cells, top)

	_ = w.Flush()
	fmt.Fprintln(out)
}

func formatPatchReport(out io.Writer, path string, r *explore.PatchReport, malformed, top int) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	fmt.Fprintf(w, "Patches (%s):\t%d\n", path, r.Patches)
	if malformed > 0 {
		fmt.Fprintf(w, "Malformed rows dropped:\t%d\n", malformed)
	}
	fmt.Fprintf(w, "Extent:\tlat %.4f..%.4f, lng %.4f..%.4f\n",
		r.Extent.MinLat, r.Extent.MaxLat, r.Extent.MinLng, r.Extent.MaxLng)
	fmt.Fprintf(w, "Cloud cover:\tmean %.3f, median %.3f, min %.3f, max %.3f\n",
		r.Cloud.Mean, r.Cloud.Median, r.Cloud.Min, r.Cloud.Max)

	formatYears(w, "Capture year", r.Years, top)
	formatCategories(w, "Densest cells", r.Cells, top)

	_ = w.Flush()
	fmt.Fprintln(out)
}

func formatCategories(w io.Writer, title string, counts []explore.CategoryCount, top int) {
	if len(counts) == 0 {
		return
	}
	fmt.Fprintf(w, "%s:\t\n", title)
	for i, c := range counts {
		if i >= top {
			fmt.Fprintf(w, "  ... %d more\t\n", len(counts)-top)
			break
		}
		fmt.Fprintf(w, "  %s\t%d\n", c.Name, c.Count)
	}
}

func formatYears(w io.Writer, title string, counts []explore.YearCount, top int) {
	if len(counts) == 0 {
		return
	}
	fmt.Fprintf(w, "%s:\t\n", title)
	for i, c := range counts {
		if i >= top {
			fmt.Fprintf(w, "  ... %d more\t\n", len(counts)-top)
			break
		}
		fmt.Fprintf(w, "  %d\t%d\n", c.Year, c.Count)
	}
}
