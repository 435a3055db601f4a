// Package geo implements the spatial primitives of the matcher: great-circle
// distance, the candidate bounding box, the read-only patch index, and
// study-region polygons.
package geo

import "math"

// EarthRadiusKM is the Earth mean radius used for great-circle distances.
const EarthRadiusKM = 6371.0

const degToRad = math.Pi / 180

// HaversineKM returns the great-circle distance in kilometers between two
// WGS84 coordinates. Pure and symmetric; the haversine intermediate is
// clamped to [0, 1] so floating-point drift on antipodal or coincident pairs
// cannot escape the Asin domain.
func HaversineKM(lat1, lng1, lat2, lng2 float64) float64 {
	lat1Rad := lat1 * degToRad
	lat2Rad := lat2 * degToRad
	dLat := (lat2 - lat1) * degToRad
	dLng := (lng2 - lng1) * degToRad

	sinLat := math.Sin(dLat / 2)
	sinLng := math.Sin(dLng / 2)
	a := sinLat*sinLat + math.Cos(lat1Rad)*math.Cos(lat2Rad)*sinLng*sinLng
	if a < 0 {
		a = 0
	}
	if a > 1 {
		a = 1
	}

	return 2 * EarthRadiusKM * math.Asin(math.Sqrt(a))
}
