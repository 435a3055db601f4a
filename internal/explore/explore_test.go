package explore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verdantic/fieldsat/internal/model"
)

func TestSites_Report(t *testing.T) {
	t.Parallel()

	sites := []model.Site{
		{ID: "s1", Latitude: 10, Longitude: 20, SurveyYear: 2010, LandUse: "Cropland", Country: "Kenya"},
		{ID: "s2", Latitude: -5, Longitude: 25, SurveyYear: 2012, LandUse: "Pasture", Country: "Kenya"},
		{ID: "s3", Latitude: 12, Longitude: 18, SurveyYear: 2010, LandUse: "Cropland", Country: "Uganda"},
		{ID: "s4", Latitude: 11, Longitude: 21, SurveyYear: 2011, LandUse: "Cropland"},
	}

	r := Sites(sites)

	assert.Equal(t, 4, r.Sites)
	assert.Equal(t, Extent{MinLat: -5, MaxLat: 12, MinLng: 18, MaxLng: 25}, r.Extent)

	require.Len(t, r.LandUses, 2)
	assert.Equal(t, CategoryCount{Name: "Cropland", Count: 3}, r.LandUses[0])
	assert.Equal(t, CategoryCount{Name: "Pasture", Count: 1}, r.LandUses[1])

	// Empty country on s4 is not a bucket.
	require.Len(t, r.Countries, 2)
	assert.Equal(t, CategoryCount{Name: "Kenya", Count: 2}, r.Countries[0])

	require.Len(t, r.Years, 3)
	assert.Equal(t, YearCount{Year: 2010, Count: 2}, r.Years[0])
	assert.Equal(t, YearCount{Year: 2011, Count: 1}, r.Years[1])
	assert.Equal(t, YearCount{Year: 2012, Count: 1}, r.Years[2])

	// s1 and s4 share a bin; s2 and s3 each fall in their own.
	require.Len(t, r.Cells, 3)
	assert.Equal(t, CategoryCount{Name: "lat 10..20 lng 20..30", Count: 2}, r.Cells[0])
}

func TestSites_CategoryTiesSortAlphabetically(t *testing.T) {
	t.Parallel()

	sites := []model.Site{
		{ID: "s1", SurveyYear: 2010, LandUse: "Pasture"},
		{ID: "s2", SurveyYear: 2010, LandUse: "Cropland"},
	}
	r := Sites(sites)
	require.Len(t, r.LandUses, 2)
	assert.Equal(t, "Cropland", r.LandUses[0].Name)
	assert.Equal(t, "Pasture", r.LandUses[1].Name)
}

func TestSites_Empty(t *testing.T) {
	t.Parallel()

	r := Sites(nil)
	assert.Equal(t, 0, r.Sites)
	assert.Empty(t, r.LandUses)
	assert.Empty(t, r.Years)
	assert.Zero(t, r.Extent)
}

func TestPatches_Report(t *testing.T) {
	t.Parallel()

	patches := []model.Patch{
		{ID: "p1", Latitude: 5, Longitude: 22, CaptureYear: 2020, CloudCover: 0.2},
		{ID: "p2", Latitude: 7, Longitude: 28, CaptureYear: 2020, CloudCover: 0.4},
		{ID: "p3", Latitude: 6, Longitude: 24, CaptureYear: 2021, CloudCover: 0.6},
		{ID: "p4", Latitude: -3, Longitude: -12, CaptureYear: 2021, CloudCover: 0.8},
	}

	r := Patches(patches)

	assert.Equal(t, 4, r.Patches)
	assert.Equal(t, Extent{MinLat: -3, MaxLat: 7, MinLng: -12, MaxLng: 28}, r.Extent)

	require.Len(t, r.Years, 2)
	assert.Equal(t, YearCount{Year: 2020, Count: 2}, r.Years[0])

	assert.InDelta(t, 0.5, r.Cloud.Mean, 1e-12)
	assert.InDelta(t, 0.5, r.Cloud.Median, 1e-12)
	assert.InDelta(t, 0.2, r.Cloud.Min, 1e-12)
	assert.InDelta(t, 0.8, r.Cloud.Max, 1e-12)

	// p1-p3 share the lat 0..10 / lng 20..30 bin; p4 bins at negative floors.
	require.Len(t, r.Cells, 2)
	assert.Equal(t, CategoryCount{Name: "lat 0..10 lng 20..30", Count: 3}, r.Cells[0])
	assert.Equal(t, CategoryCount{Name: "lat -10..0 lng -20..-10", Count: 1}, r.Cells[1])
}

func TestCellKey_NegativeFloors(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "lat -10..0 lng -20..-10", cellKey(-0.5, -12.0))
	assert.Equal(t, "lat 0..10 lng 0..10", cellKey(0.0, 0.0))
	assert.Equal(t, "lat -90..-80 lng 170..180", cellKey(-90.0, 179.9))
}

func TestPatches_EmptyCloudSummary(t *testing.T) {
	t.Parallel()

	r := Patches(nil)
	assert.Zero(t, r.Cloud)
	assert.Empty(t, r.Cells)
}
