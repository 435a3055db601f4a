package geo

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"

	"github.com/verdantic/fieldsat/internal/model"
)

// Region is a named study area assembled from the polygon features of a
// shapefile. Geometry holds EWKB with SRID 4326.
type Region struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	SourceFile string    `json:"source_file"`
	Features   int       `json:"features"`
	BBox       BBox      `json:"bbox"`
	Geometry   []byte    `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}

// RegionFilter answers point-in-region queries against a decoded region.
// Build one per run; it is read-only afterwards.
type RegionFilter struct {
	bbox  BBox
	rings [][]geom.Coord
}

// NewRegionFilter decodes the region geometry into rings for point tests.
func NewRegionFilter(r *Region) (*RegionFilter, error) {
	g, err := ewkb.Unmarshal(r.Geometry)
	if err != nil {
		return nil, eris.Wrapf(err, "geo: decode region %s", r.Name)
	}
	mp, ok := g.(*geom.MultiPolygon)
	if !ok {
		return nil, eris.Errorf("geo: region %s geometry is %T, want MultiPolygon", r.Name, g)
	}

	f := &RegionFilter{bbox: r.BBox}
	for i := 0; i < mp.NumPolygons(); i++ {
		poly := mp.Polygon(i)
		for j := 0; j < poly.NumLinearRings(); j++ {
			ring := poly.LinearRing(j).Coords()
			if len(ring) >= 3 {
				f.rings = append(f.rings, ring)
			}
		}
	}
	if len(f.rings) == 0 {
		return nil, eris.Errorf("geo: region %s has no usable rings", r.Name)
	}
	return f, nil
}

// Contains reports whether the coordinate falls inside the region under the
// even-odd rule: holes subtract, disjoint parts add.
func (f *RegionFilter) Contains(lat, lng float64) bool {
	if !f.bbox.Contains(lat, lng) {
		return false
	}
	inside := false
	for _, ring := range f.rings {
		if rayCrossesOdd(ring, lat, lng) {
			inside = !inside
		}
	}
	return inside
}

// FilterSites returns the subset of sites inside the region, preserving input
// order.
func (f *RegionFilter) FilterSites(sites []model.Site) []model.Site {
	out := make([]model.Site, 0, len(sites))
	for _, s := range sites {
		if f.Contains(s.Latitude, s.Longitude) {
			out = append(out, s)
		}
	}
	return out
}

// rayCrossesOdd reports whether a ray cast eastward from the point crosses
// the ring an odd number of times. Coords follow shapefile convention:
// x=longitude, y=latitude.
func rayCrossesOdd(ring []geom.Coord, lat, lng float64) bool {
	odd := false
	j := len(ring) - 1
	for i := 0; i < len(ring); i++ {
		xi, yi := ring[i][0], ring[i][1]
		xj, yj := ring[j][0], ring[j][1]
		if (yi > lat) != (yj > lat) &&
			lng < (xj-xi)*(lat-yi)/(yj-yi)+xi {
			odd = !odd
		}
		j = i
	}
	return odd
}
