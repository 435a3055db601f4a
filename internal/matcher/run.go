package matcher

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/verdantic/fieldsat/internal/geo"
	"github.com/verdantic/fieldsat/internal/model"
)

// ErrEmptyInput marks a run given zero sites or zero patches. The run is
// aborted, but the Result returned alongside still carries a summary so the
// caller can report what was dropped.
var ErrEmptyInput = eris.New("matcher: empty input")

// Options configure a batch run.
type Options struct {
	RadiusDeg            float64
	CloudMax             float64
	Policy               model.PriorityPolicy
	DistanceThresholdsKM []float64
	LagThresholdsYears   []float64
	Concurrency          int

	// MalformedSites and MalformedPatches are loader drop counts, echoed
	// into the run summary.
	MalformedSites   int
	MalformedPatches int
}

func (o Options) withDefaults() Options {
	if o.RadiusDeg <= 0 {
		o.RadiusDeg = 1.0
	}
	if o.Policy == "" {
		o.Policy = model.PolicySpatialFirst
	}
	if o.Concurrency < 1 {
		o.Concurrency = 1
	}
	return o
}

// Result is a completed batch: one Match per input site, in input order,
// plus the derived summary.
type Result struct {
	Matches []model.Match
	Summary model.Summary
}

// Run matches every site against the index. With Concurrency > 1 the sites
// are split into contiguous shards, one worker and one private Matcher per
// shard, each writing only its own positions of the shared result slice; the
// output is identical to a sequential run byte for byte.
func Run(ctx context.Context, sites []model.Site, index *geo.PatchIndex, opts Options) (*Result, error) {
	opts = opts.withDefaults()
	log := zap.L().With(zap.String("component", "matcher"))

	patchCount := 0
	if index != nil {
		patchCount = index.Len()
	}

	if len(sites) == 0 {
		res := &Result{Matches: []model.Match{}, Summary: Summarize(nil, opts)}
		return res, eris.Wrap(ErrEmptyInput, "zero sites after loading")
	}
	if patchCount == 0 {
		matches := make([]model.Match, len(sites))
		for i := range sites {
			matches[i] = unmatched(&sites[i], model.ReasonNoCandidateInRadius)
		}
		res := &Result{Matches: matches, Summary: Summarize(matches, opts)}
		return res, eris.Wrap(ErrEmptyInput, "zero patches after loading")
	}

	log.Info("matching started",
		zap.Int("sites", len(sites)),
		zap.Int("patches", patchCount),
		zap.String("policy", string(opts.Policy)),
		zap.Float64("radius_deg", opts.RadiusDeg),
		zap.Float64("cloud_max", opts.CloudMax),
		zap.Int("concurrency", opts.Concurrency))
	start := time.Now()

	matches := make([]model.Match, len(sites))
	if opts.Concurrency == 1 {
		m := New(index, opts)
		for i := range sites {
			if i%1024 == 0 && ctx.Err() != nil {
				return nil, eris.Wrap(ctx.Err(), "matcher: run canceled")
			}
			matches[i] = m.MatchSite(&sites[i])
		}
	} else {
		if err := runParallel(ctx, sites, index, opts, matches); err != nil {
			return nil, err
		}
	}

	summary := Summarize(matches, opts)
	log.Info("matching finished",
		zap.Int("matched", summary.Matched),
		zap.Int("unmatched", summary.Unmatched),
		zap.Float64("match_rate", summary.MatchRate),
		zap.Duration("elapsed", time.Since(start)))
	return &Result{Matches: matches, Summary: summary}, nil
}

// runParallel shards sites into contiguous chunks. Workers share the
// read-only index and write disjoint regions of matches, so no locking is
// needed and the merged order is the input order.
func runParallel(ctx context.Context, sites []model.Site, index *geo.PatchIndex, opts Options, matches []model.Match) error {
	chunk := (len(sites) + opts.Concurrency - 1) / opts.Concurrency
	g, ctx := errgroup.WithContext(ctx)
	for start := 0; start < len(sites); start += chunk {
		end := min(start+chunk, len(sites))
		g.Go(func() error {
			m := New(index, opts)
			for i := start; i < end; i++ {
				if i%1024 == 0 && ctx.Err() != nil {
					return ctx.Err()
				}
				matches[i] = m.MatchSite(&sites[i])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return eris.Wrap(err, "matcher: parallel run")
	}
	return nil
}
