package geo

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verdantic/fieldsat/internal/model"
)

func randomPatches(rng *rand.Rand, n int) []model.Patch {
	patches := make([]model.Patch, n)
	for i := range patches {
		patches[i] = model.Patch{
			ID:          fmt.Sprintf("p%04d", i),
			Latitude:    rng.Float64()*180 - 90,
			Longitude:   rng.Float64()*360 - 180,
			CaptureYear: 2018 + rng.IntN(5),
			CloudCover:  rng.Float64(),
		}
	}
	return patches
}

func candidateIDs(cands []*model.Patch) []string {
	ids := make([]string, len(cands))
	for i, p := range cands {
		ids[i] = p.ID
	}
	sort.Strings(ids)
	return ids
}

func TestBuildIndex_Empty(t *testing.T) {
	t.Parallel()

	ix := BuildIndex(nil)
	assert.Equal(t, 0, ix.Len())
	assert.Empty(t, ix.Candidates(SearchBox(0, 0, 1.0), nil))
}

func TestCandidates_MatchesBruteForce(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(42, 1))
	patches := randomPatches(rng, 2000)
	ix := BuildIndex(patches)
	require.Equal(t, 2000, ix.Len())

	var buf []*model.Patch
	for trial := 0; trial < 200; trial++ {
		lat := rng.Float64()*180 - 90
		lng := rng.Float64()*360 - 180
		radius := 0.2 + rng.Float64()*3

		box := SearchBox(lat, lng, radius)

		var want []string
		for i := range patches {
			if box.Contains(patches[i].Latitude, patches[i].Longitude) {
				want = append(want, patches[i].ID)
			}
		}
		sort.Strings(want)

		buf = ix.Candidates(box, buf[:0])
		got := candidateIDs(buf)

		require.Equal(t, want, got,
			"index disagrees with brute force for box around (%v, %v) r=%v", lat, lng, radius)
	}
}

func TestCandidates_AcrossAntimeridian(t *testing.T) {
	t.Parallel()

	patches := []model.Patch{
		{ID: "east", Latitude: 5, Longitude: 179.8},
		{ID: "west", Latitude: 5, Longitude: -179.7},
		{ID: "far", Latitude: 5, Longitude: 170.0},
		{ID: "other-side", Latitude: 5, Longitude: 0.0},
	}
	ix := BuildIndex(patches)

	box := SearchBox(5, 179.9, 1.0)
	got := candidateIDs(ix.Candidates(box, nil))
	assert.Equal(t, []string{"east", "west"}, got)
}

func TestCandidates_PolarBand(t *testing.T) {
	t.Parallel()

	patches := []model.Patch{
		{ID: "pole", Latitude: 90, Longitude: 0},
		{ID: "near-pole", Latitude: 89.5, Longitude: -140},
		{ID: "low", Latitude: 80, Longitude: 10},
	}
	ix := BuildIndex(patches)

	box := SearchBox(89.7, 60, 1.0)
	got := candidateIDs(ix.Candidates(box, nil))
	assert.Equal(t, []string{"near-pole", "pole"}, got)
}

func TestCandidates_LatitudeEdgeExcluded(t *testing.T) {
	t.Parallel()

	// Same band as the box but outside its exact latitude range.
	patches := []model.Patch{
		{ID: "in", Latitude: 10.4, Longitude: 0},
		{ID: "out", Latitude: 10.9, Longitude: 0},
	}
	ix := BuildIndex(patches)

	box := SearchBox(10.0, 0, 0.5)
	got := candidateIDs(ix.Candidates(box, nil))
	assert.Equal(t, []string{"in"}, got)
}

func TestCandidates_BufferReuse(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(3, 9))
	patches := randomPatches(rng, 500)
	ix := BuildIndex(patches)

	box := SearchBox(0, 0, 5)
	first := ix.Candidates(box, nil)
	buf := make([]*model.Patch, 0, 64)
	second := ix.Candidates(box, buf[:0])

	assert.Equal(t, candidateIDs(first), candidateIDs(second))
}

func TestBuildIndex_DoesNotMutateInput(t *testing.T) {
	t.Parallel()

	patches := []model.Patch{
		{ID: "b", Latitude: 1, Longitude: 20},
		{ID: "a", Latitude: 1, Longitude: -20},
	}
	BuildIndex(patches)

	assert.Equal(t, "b", patches[0].ID)
	assert.Equal(t, "a", patches[1].ID)
}
