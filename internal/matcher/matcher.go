// Package matcher pairs field-survey sites with their best satellite patch.
//
// Matching is a pure function of the inputs and the run options: a bounding
// box pre-filter narrows the index to nearby patches, a cloud-cover filter
// drops low-quality candidates, and the selector ranks the rest under the
// configured priority policy. Reruns over identical inputs produce identical
// output, byte for byte.
package matcher

import (
	"github.com/verdantic/fieldsat/internal/geo"
	"github.com/verdantic/fieldsat/internal/model"
)

// Matcher resolves single sites against a shared read-only patch index. It
// keeps a private candidate buffer, so each goroutine needs its own Matcher;
// Run hands one to every worker.
type Matcher struct {
	index *geo.PatchIndex
	opts  Options
	buf   []*model.Patch
}

// New returns a Matcher over index with normalized options.
func New(index *geo.PatchIndex, opts Options) *Matcher {
	return &Matcher{index: index, opts: opts.withDefaults()}
}

// MatchSite finds the best patch for one site, or an unmatched record naming
// why none qualified. The cloud filter runs before any distance math; the
// threshold is inclusive, a patch exactly at the limit still qualifies.
func (m *Matcher) MatchSite(site *model.Site) model.Match {
	box := geo.SearchBox(site.Latitude, site.Longitude, m.opts.RadiusDeg)
	m.buf = m.index.Candidates(box, m.buf[:0])
	if len(m.buf) == 0 {
		return unmatched(site, model.ReasonNoCandidateInRadius)
	}

	var best candidate
	found := false
	for _, p := range m.buf {
		if p.CloudCover > m.opts.CloudMax {
			continue
		}
		c := candidate{
			patch:      p,
			distanceKM: geo.HaversineKM(site.Latitude, site.Longitude, p.Latitude, p.Longitude),
			lagYears:   lagYears(site, p),
		}
		if !found || better(c, best, m.opts.Policy) {
			best = c
			found = true
		}
	}
	if !found {
		return unmatched(site, model.ReasonNonePassedQuality)
	}

	dist := best.distanceKM
	lag := best.lagYears
	cloud := best.patch.CloudCover
	return model.Match{
		SiteID:     site.ID,
		PatchID:    best.patch.ID,
		DistanceKM: &dist,
		LagYears:   &lag,
		CloudCover: &cloud,
		LandUse:    site.LandUse,
		Matched:    true,
	}
}

func unmatched(site *model.Site, reason model.UnmatchedReason) model.Match {
	return model.Match{
		SiteID:  site.ID,
		LandUse: site.LandUse,
		Reason:  reason,
	}
}
