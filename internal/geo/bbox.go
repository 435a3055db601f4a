package geo

import "math"

// bands poleward of this latitude get a box spanning all longitudes; the
// cosine widening diverges there and a full sweep is cheaper than chasing it.
const polarCutoffDeg = 89.0

// BBox is an axis-aligned latitude/longitude box. When Wrapped is set the box
// crosses the antimeridian and its longitude extent is the union
// [MinLng, 180] and [-180, MaxLng]; in that case MinLng > MaxLng numerically.
type BBox struct {
	MinLat  float64 `json:"min_lat"`
	MaxLat  float64 `json:"max_lat"`
	MinLng  float64 `json:"min_lng"`
	MaxLng  float64 `json:"max_lng"`
	Wrapped bool    `json:"wrapped,omitempty"`
}

// SearchBox returns the candidate box of half-width radiusDeg around a site.
//
// Latitude extent is exactly +-radiusDeg, clamped to the poles. Longitude
// half-width is widened by 1/cos of the band-edge latitude so the box never
// narrows below radiusDeg of ground distance as meridians converge; the box
// is over-inclusive by construction, never under-inclusive. Within
// polarCutoffDeg of a pole, or when widening reaches a full circle, the box
// spans all longitudes.
func SearchBox(lat, lng, radiusDeg float64) BBox {
	box := BBox{
		MinLat: math.Max(lat-radiusDeg, -90),
		MaxLat: math.Min(lat+radiusDeg, 90),
	}

	edgeLat := math.Min(math.Abs(lat)+radiusDeg, 90)
	if edgeLat >= polarCutoffDeg {
		box.MinLng, box.MaxLng = -180, 180
		return box
	}

	halfLng := radiusDeg / math.Cos(edgeLat*degToRad)
	if halfLng >= 180 {
		box.MinLng, box.MaxLng = -180, 180
		return box
	}

	lo := lng - halfLng
	hi := lng + halfLng
	switch {
	case lo < -180:
		box.MinLng = lo + 360
		box.MaxLng = hi
		box.Wrapped = true
	case hi > 180:
		box.MinLng = lo
		box.MaxLng = hi - 360
		box.Wrapped = true
	default:
		box.MinLng = lo
		box.MaxLng = hi
	}
	return box
}

// Contains reports whether the coordinate falls inside the box.
func (b BBox) Contains(lat, lng float64) bool {
	if lat < b.MinLat || lat > b.MaxLat {
		return false
	}
	if b.Wrapped {
		return lng >= b.MinLng || lng <= b.MaxLng
	}
	return lng >= b.MinLng && lng <= b.MaxLng
}

// LngIntervals returns the box's longitude extent as one interval, or two
// when it wraps the antimeridian. Each interval is {lo, hi} with lo <= hi.
func (b BBox) LngIntervals() [][2]float64 {
	if b.Wrapped {
		return [][2]float64{{b.MinLng, 180}, {-180, b.MaxLng}}
	}
	return [][2]float64{{b.MinLng, b.MaxLng}}
}
