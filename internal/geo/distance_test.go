package geo

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHaversineKM_ReferencePairs(t *testing.T) {
	t.Parallel()

	// London (51.5074, -0.1278) to Paris (48.8566, 2.3522) ≈ 343-344km.
	d := HaversineKM(51.5074, -0.1278, 48.8566, 2.3522)
	assert.InDelta(t, 343.5, d, 1.0, "London-Paris should be ~343-344km")

	// Austin (30.2672, -97.7431) to Dallas (32.7767, -96.7970) ≈ 290km.
	d = HaversineKM(30.2672, -97.7431, 32.7767, -96.7970)
	assert.InDelta(t, 290, d, 10, "Austin-Dallas should be ~290km")
}

func TestHaversineKM_SamePoint(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		lat, lng float64
	}{
		{"equator", 0, 0},
		{"mid latitude", 30.0, -97.0},
		{"antimeridian", 12.3, 180.0},
		{"north pole", 90.0, 45.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, 0, HaversineKM(tt.lat, tt.lng, tt.lat, tt.lng), 0.001)
		})
	}
}

func TestHaversineKM_Symmetry(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(7, 7))
	for i := 0; i < 500; i++ {
		lat1 := rng.Float64()*180 - 90
		lng1 := rng.Float64()*360 - 180
		lat2 := rng.Float64()*180 - 90
		lng2 := rng.Float64()*360 - 180

		ab := HaversineKM(lat1, lng1, lat2, lng2)
		ba := HaversineKM(lat2, lng2, lat1, lng1)
		assert.InDelta(t, ab, ba, 1e-6)
		assert.GreaterOrEqual(t, ab, 0.0)
	}
}

func TestHaversineKM_AntipodalStable(t *testing.T) {
	t.Parallel()

	// Exactly antipodal points push the haversine intermediate against 1.0;
	// the result must be finite and close to half the Earth circumference.
	d := HaversineKM(45.0, 30.0, -45.0, -150.0)
	assert.False(t, math.IsNaN(d))
	assert.InDelta(t, math.Pi*EarthRadiusKM, d, 1.0)
}

func TestHaversineKM_AcrossAntimeridian(t *testing.T) {
	t.Parallel()

	// 0.2° of longitude apart across the dateline at the equator: ~22km,
	// nothing like the ~360° apart a naive subtraction suggests.
	d := HaversineKM(0, 179.9, 0, -179.9)
	assert.InDelta(t, 22.2, d, 0.5)
}
