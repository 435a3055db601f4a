package geo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"

	"github.com/verdantic/fieldsat/internal/model"
)

// squareRegion builds a 10x10 degree region at the origin with a 2x2 hole in
// the middle.
func squareRegion(t *testing.T) *Region {
	t.Helper()

	mp := geom.NewMultiPolygon(geom.XY).SetSRID(4326)

	outer := geom.NewPolygon(geom.XY)
	require.NoError(t, outer.Push(geom.NewLinearRingFlat(geom.XY,
		[]float64{0, 0, 10, 0, 10, 10, 0, 10, 0, 0})))
	require.NoError(t, mp.Push(outer))

	hole := geom.NewPolygon(geom.XY)
	require.NoError(t, hole.Push(geom.NewLinearRingFlat(geom.XY,
		[]float64{4, 4, 6, 4, 6, 6, 4, 6, 4, 4})))
	require.NoError(t, mp.Push(hole))

	data, err := ewkb.Marshal(mp, ewkb.NDR)
	require.NoError(t, err)

	return &Region{
		Name:       "test-square",
		SourceFile: "test.shp",
		Features:   2,
		BBox:       BBox{MinLat: 0, MaxLat: 10, MinLng: 0, MaxLng: 10},
		Geometry:   data,
		CreatedAt:  time.Now().UTC(),
	}
}

func TestRegionFilter_Contains(t *testing.T) {
	t.Parallel()

	f, err := NewRegionFilter(squareRegion(t))
	require.NoError(t, err)

	tests := []struct {
		name     string
		lat, lng float64
		want     bool
	}{
		{"inside", 2.0, 5.0, true},
		{"inside near corner", 9.5, 0.5, true},
		{"inside the hole", 5.0, 5.0, false},
		{"outside bbox", 20.0, 5.0, false},
		{"west of region", 5.0, -3.0, false},
		{"just outside edge", 10.5, 5.0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, f.Contains(tt.lat, tt.lng))
		})
	}
}

func TestRegionFilter_FilterSites(t *testing.T) {
	t.Parallel()

	f, err := NewRegionFilter(squareRegion(t))
	require.NoError(t, err)

	sites := []model.Site{
		{ID: "in-1", Latitude: 1, Longitude: 1},
		{ID: "out-hole", Latitude: 5, Longitude: 5},
		{ID: "in-2", Latitude: 8, Longitude: 8},
		{ID: "out-far", Latitude: -40, Longitude: 100},
	}

	got := f.FilterSites(sites)
	require.Len(t, got, 2)
	assert.Equal(t, "in-1", got[0].ID)
	assert.Equal(t, "in-2", got[1].ID)
}

func TestNewRegionFilter_BadGeometry(t *testing.T) {
	t.Parallel()

	_, err := NewRegionFilter(&Region{Name: "broken", Geometry: []byte{0x00, 0x01, 0x02}})
	assert.Error(t, err)
}

func TestNewRegionFilter_WrongGeometryType(t *testing.T) {
	t.Parallel()

	pt, err := ewkb.Marshal(geom.NewPointFlat(geom.XY, []float64{1, 2}).SetSRID(4326), ewkb.NDR)
	require.NoError(t, err)

	_, err = NewRegionFilter(&Region{Name: "point", Geometry: pt})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "MultiPolygon")
}
