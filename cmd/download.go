package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/verdantic/fieldsat/internal/fetcher"
	"github.com/verdantic/fieldsat/internal/resilience"
	"github.com/verdantic/fieldsat/pkg/huggingface"
)

var (
	downloadManifest string
	downloadDir      string
	downloadOnly     []string
)

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Fetch the datasets a manifest names",
	Long: `Reads a YAML dataset manifest and downloads every file it lists into the
data directory. Sources can be direct HTTP or FTP URLs or Hugging Face
dataset repositories (single files or whole directory trees). Files already
present are skipped when their checksum or saved ETag still matches, so the
command is safe to re-run.

Private Hugging Face repositories read the token from the HF_TOKEN
environment variable.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if downloadManifest == "" {
			downloadManifest = cfg.Download.Manifest
		}
		if err := cfg.Validate("download"); err != nil {
			return err
		}

		manifest, err := fetcher.LoadManifest(downloadManifest)
		if err != nil {
			return err
		}
		if downloadDir != "" {
			manifest.Dir = downloadDir
		} else if manifest.Dir == "" {
			manifest.Dir = cfg.Download.Dir
		}
		if len(downloadOnly) > 0 {
			manifest.Datasets, err = selectDatasets(manifest.Datasets, downloadOnly)
			if err != nil {
				return err
			}
		}

		httpF := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
			UserAgent:   cfg.Download.UserAgent,
			Timeout:     time.Duration(cfg.Download.TimeoutSecs) * time.Second,
			MaxRetries:  cfg.Download.MaxRetries,
			RatePerHost: cfg.Download.RatePerHost,
		})
		ftpF := fetcher.NewFTPFetcher(fetcher.FTPOptions{
			Timeout: time.Duration(cfg.Download.TimeoutSecs) * time.Second,
		})
		hub := huggingface.NewClient(os.Getenv("HF_TOKEN"))
		dl := fetcher.NewDownloader(httpF, ftpF, hub, resilience.RetryConfig{
			MaxAttempts: cfg.Download.MaxRetries,
		})

		outcomes := dl.Run(ctx, manifest)
		formatOutcomes(outcomes)

		failed := 0
		for _, o := range outcomes {
			if o.Err != nil {
				failed++
			}
		}
		if failed > 0 {
			return eris.Errorf("download: %d of %d files failed", failed, len(outcomes))
		}
		return ctx.Err()
	},
}

func init() {
	downloadCmd.Flags().StringVar(&downloadManifest, "manifest", "", "dataset manifest path (default from config)")
	downloadCmd.Flags().StringVar(&downloadDir, "dir", "", "data directory, overrides the manifest's dir")
	downloadCmd.Flags().StringArrayVar(&downloadOnly, "only", nil, "fetch only this dataset (repeatable)")
	rootCmd.AddCommand(downloadCmd)
}

// selectDatasets keeps the named manifest entries, erroring on names the
// manifest does not define so typos fail loudly.
func selectDatasets(datasets []fetcher.Dataset, names []string) ([]fetcher.Dataset, error) {
	byName := make(map[string]fetcher.Dataset, len(datasets))
	for _, d := range datasets {
		byName[d.Name] = d
	}
	out := make([]fetcher.Dataset, 0, len(names))
	for _, name := range names {
		d, ok := byName[name]
		if !ok {
			return nil, eris.Errorf("download: manifest has no dataset %q", name)
		}
		out = append(out, d)
	}
	return out, nil
}

func formatOutcomes(outcomes []fetcher.Outcome) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DATASET\tFILE\tSTATUS\tSIZE")
	for _, o := range outcomes {
		status := "downloaded"
		size := formatBytes(o.Bytes)
		switch {
		case o.Err != nil:
			status = "failed: " + o.Err.Error()
			size = "-"
		case o.Skipped:
			status = "skipped (" + o.SkipCause + ")"
			size = "-"
		case len(o.Extracted) > 0:
			status = fmt.Sprintf("downloaded, %d extracted", len(o.Extracted))
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", o.Dataset, o.Path, status, size)
	}
	_ = w.Flush()
}

// formatBytes renders a byte count with a binary unit suffix.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGT"[exp])
}
