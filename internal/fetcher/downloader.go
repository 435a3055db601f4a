package fetcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/verdantic/fieldsat/internal/resilience"
	"github.com/verdantic/fieldsat/pkg/huggingface"
)

// Outcome reports the result of fetching one file named by the manifest.
type Outcome struct {
	Dataset   string
	Path      string
	Bytes     int64
	Skipped   bool
	SkipCause string
	Extracted []string
	Err       error
}

// Downloader walks a manifest and materializes every file it names under
// the manifest directory. Files already present are skipped when their
// checksum or saved ETag still matches.
type Downloader struct {
	http  Fetcher
	ftp   Fetcher
	hub   huggingface.Client
	retry resilience.RetryConfig
}

// NewDownloader creates a Downloader. A zero retry config gets the
// defaults; HTTP requests are additionally retried inside the HTTP fetcher,
// the file-level retry here covers failures mid-copy.
func NewDownloader(httpF, ftpF Fetcher, hub huggingface.Client, retry resilience.RetryConfig) *Downloader {
	return &Downloader{http: httpF, ftp: ftpF, hub: hub, retry: retry}
}

// Run fetches every manifest entry and returns one outcome per file.
// Failures are recorded in the outcome rather than aborting the batch;
// cancellation stops after the file in flight.
func (d *Downloader) Run(ctx context.Context, m *Manifest) []Outcome {
	outcomes := make([]Outcome, 0, len(m.Datasets))
	for i := range m.Datasets {
		if ctx.Err() != nil {
			break
		}
		outcomes = append(outcomes, d.downloadDataset(ctx, m.Dir, &m.Datasets[i])...)
	}
	return outcomes
}

// downloadDataset resolves a single manifest entry to one or more files.
func (d *Downloader) downloadDataset(ctx context.Context, dir string, ds *Dataset) []Outcome {
	if ds.IsTree() {
		return d.downloadTree(ctx, dir, ds)
	}

	url := d.sourceURL(ds)
	dest := destPath(dir, ds.Dest)
	out := d.downloadFile(ctx, ds, url, dest, ds.SHA256)

	if out.Err == nil && !out.Skipped && ds.Extract {
		extracted, err := ExtractZIP(dest, filepath.Dir(dest))
		out.Extracted = extracted
		out.Err = err
	}
	return []Outcome{out}
}

// treeWorkers bounds concurrent fetches within one Hugging Face tree.
const treeWorkers = 4

// downloadTree lists a Hugging Face directory and fetches each file in it,
// mirroring the tree layout under the dataset destination. Files download
// concurrently; outcomes keep the tree listing order.
func (d *Downloader) downloadTree(ctx context.Context, dir string, ds *Dataset) []Outcome {
	hf := ds.HuggingFace
	prefix := strings.TrimSuffix(hf.Path, "/")

	entries, err := d.hub.ListTree(ctx, hf.Repo, hf.Revision, prefix)
	if err != nil {
		return []Outcome{{Dataset: ds.Name, Err: err}}
	}

	var files []huggingface.TreeEntry
	for _, e := range entries {
		if e.IsFile() {
			files = append(files, e)
		}
	}
	if len(files) == 0 {
		return []Outcome{{Dataset: ds.Name, Err: eris.Errorf("no files under %s@%s/%s", hf.Repo, hf.Revision, prefix)}}
	}

	outcomes := make([]Outcome, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(treeWorkers)
	for i, e := range files {
		g.Go(func() error {
			rel := strings.TrimPrefix(strings.TrimPrefix(e.Path, prefix), "/")
			url := d.hub.ResolveURL(hf.Repo, hf.Revision, e.Path)
			dest := destPath(dir, filepath.Join(ds.Dest, filepath.FromSlash(rel)))
			outcomes[i] = d.downloadFile(gctx, ds, url, dest, "")
			return nil
		})
	}
	// Workers never return errors; per-file failures live in outcomes.
	_ = g.Wait()

	return outcomes
}

// downloadFile fetches one file with skip checks, file-level retry, and
// atomic replace of the destination.
func (d *Downloader) downloadFile(ctx context.Context, ds *Dataset, url, dest, wantSHA string) Outcome {
	out := Outcome{Dataset: ds.Name, Path: dest}

	// An existing file with a matching checksum needs no network at all.
	if wantSHA != "" {
		if sum, err := fileSHA256(dest); err == nil && strings.EqualFold(sum, wantSHA) {
			out.Skipped = true
			out.SkipCause = "checksum match"
			zap.L().Info("dataset up to date",
				zap.String("dataset", ds.Name),
				zap.String("path", dest),
			)
			return out
		}
	}

	priorETag := ""
	if _, err := os.Stat(dest); err == nil {
		priorETag = readETag(dest)
	}

	cfg := d.retry
	cfg.OnRetry = resilience.RetryLogger(ds.Name, url)

	var bytes int64
	var changed bool
	err := resilience.Do(ctx, cfg, func(ctx context.Context) error {
		var ferr error
		bytes, changed, ferr = d.fetchOnce(ctx, url, dest, wantSHA, priorETag)
		return ferr
	})
	if err != nil {
		out.Err = err
		zap.L().Warn("dataset download failed",
			zap.String("dataset", ds.Name),
			zap.String("url", url),
			zap.Error(err),
		)
		return out
	}

	if !changed {
		out.Skipped = true
		out.SkipCause = "etag match"
		zap.L().Info("dataset up to date",
			zap.String("dataset", ds.Name),
			zap.String("path", dest),
		)
		return out
	}

	out.Bytes = bytes
	zap.L().Info("dataset downloaded",
		zap.String("dataset", ds.Name),
		zap.String("path", dest),
		zap.Int64("bytes", bytes),
	)
	return out
}

// fetchOnce performs a single conditional fetch into dest. The body streams
// through a hash into a sibling .part file which replaces dest only after
// the checksum (when given) verifies.
func (d *Downloader) fetchOnce(ctx context.Context, url, dest, wantSHA, priorETag string) (int64, bool, error) {
	body, newETag, changed, err := d.fetcherFor(url).DownloadIfChanged(ctx, url, priorETag)
	if err != nil {
		return 0, false, err
	}
	if !changed {
		return 0, false, nil
	}
	defer body.Close() //nolint:errcheck

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, false, eris.Wrap(err, "create dataset directory")
	}

	part := dest + ".part"
	file, err := os.Create(part)
	if err != nil {
		return 0, false, eris.Wrap(err, "create partial file")
	}

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(file, h), body)
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(part)
		return n, false, eris.Wrap(err, "write partial file")
	}

	if wantSHA != "" {
		sum := hex.EncodeToString(h.Sum(nil))
		if !strings.EqualFold(sum, wantSHA) {
			_ = os.Remove(part)
			return n, false, eris.Errorf("checksum mismatch for %s: got %s, want %s", dest, sum, strings.ToLower(wantSHA))
		}
	}

	if err := os.Rename(part, dest); err != nil {
		_ = os.Remove(part)
		return n, false, eris.Wrap(err, "replace destination")
	}

	if newETag != "" {
		if err := writeETag(dest, newETag); err != nil {
			zap.L().Warn("could not save etag", zap.String("path", dest), zap.Error(err))
		}
	}

	return n, true, nil
}

func (d *Downloader) sourceURL(ds *Dataset) string {
	if hf := ds.HuggingFace; hf != nil {
		return d.hub.ResolveURL(hf.Repo, hf.Revision, hf.Path)
	}
	return ds.URL
}

func (d *Downloader) fetcherFor(url string) Fetcher {
	if strings.HasPrefix(url, "ftp://") {
		return d.ftp
	}
	return d.http
}

func destPath(dir, dest string) string {
	if filepath.IsAbs(dest) {
		return dest
	}
	return filepath.Join(dir, dest)
}

// readETag loads the ETag sidecar saved next to a downloaded file.
func readETag(dest string) string {
	data, err := os.ReadFile(dest + ".etag")
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func writeETag(dest, etag string) error {
	return os.WriteFile(dest+".etag", []byte(etag+"\n"), 0o644)
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close() //nolint:errcheck

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", eris.Wrapf(err, "hash %s", path)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
