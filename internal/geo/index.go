package geo

import (
	"sort"

	"github.com/verdantic/fieldsat/internal/model"
)

// Band height in degrees. One-degree bands line up with the default search
// radius, so a typical query touches three bands.
const bandHeightDeg = 1.0

const numBands = int(180 / bandHeightDeg)

// PatchIndex is a read-only spatial index over the patch collection: patches
// bucketed into fixed-height latitude bands, each band sorted by longitude
// (ties by identifier, so the build is deterministic). Built once before
// matching and immutable afterwards; parallel workers share it without
// locking.
type PatchIndex struct {
	bands [][]model.Patch
	total int
}

// BuildIndex constructs the index from the loaded patch slice. The input is
// copied into band-local storage and is not modified.
func BuildIndex(patches []model.Patch) *PatchIndex {
	ix := &PatchIndex{
		bands: make([][]model.Patch, numBands),
		total: len(patches),
	}

	counts := make([]int, numBands)
	for i := range patches {
		counts[bandOf(patches[i].Latitude)]++
	}
	for b, n := range counts {
		if n > 0 {
			ix.bands[b] = make([]model.Patch, 0, n)
		}
	}
	for i := range patches {
		b := bandOf(patches[i].Latitude)
		ix.bands[b] = append(ix.bands[b], patches[i])
	}

	for b := range ix.bands {
		band := ix.bands[b]
		sort.Slice(band, func(i, j int) bool {
			if band[i].Longitude != band[j].Longitude {
				return band[i].Longitude < band[j].Longitude
			}
			return band[i].ID < band[j].ID
		})
	}

	return ix
}

// Len returns the number of indexed patches.
func (ix *PatchIndex) Len() int {
	return ix.total
}

// Candidates appends every patch inside the box to buf and returns the
// extended slice. Returned pointers reference index-owned storage and stay
// valid for the index lifetime; callers reuse buf across queries to avoid
// per-site allocation.
func (ix *PatchIndex) Candidates(box BBox, buf []*model.Patch) []*model.Patch {
	loBand := bandOf(box.MinLat)
	hiBand := bandOf(box.MaxLat)
	intervals := box.LngIntervals()

	for b := loBand; b <= hiBand; b++ {
		band := ix.bands[b]
		if len(band) == 0 {
			continue
		}
		for _, iv := range intervals {
			start := sort.Search(len(band), func(i int) bool {
				return band[i].Longitude >= iv[0]
			})
			for i := start; i < len(band) && band[i].Longitude <= iv[1]; i++ {
				// Band edges are coarser than the box; check latitude exactly.
				if band[i].Latitude < box.MinLat || band[i].Latitude > box.MaxLat {
					continue
				}
				buf = append(buf, &band[i])
			}
		}
	}

	return buf
}

func bandOf(lat float64) int {
	b := int((lat + 90) / bandHeightDeg)
	if b < 0 {
		b = 0
	}
	if b >= numBands {
		b = numBands - 1
	}
	return b
}
