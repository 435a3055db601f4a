// Package explore profiles loaded input tables before a match run: category
// and year distributions, coordinate extents, and coarse spatial density.
// Reports are pure projections with deterministic ordering.
package explore

import (
	"fmt"
	"math"
	"sort"

	"github.com/verdantic/fieldsat/internal/model"
)

// cellSizeDeg is the bin width for the coarse density grid.
const cellSizeDeg = 10.0

// CategoryCount is one bucket of a categorical distribution.
type CategoryCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// YearCount is one bucket of a per-year histogram.
type YearCount struct {
	Year  int `json:"year"`
	Count int `json:"count"`
}

// Extent is the numeric coordinate range of a table, no wrap semantics.
type Extent struct {
	MinLat float64 `json:"min_lat"`
	MaxLat float64 `json:"max_lat"`
	MinLng float64 `json:"min_lng"`
	MaxLng float64 `json:"max_lng"`
}

// CloudSummary aggregates the cloud-cover fractions of a patch table.
type CloudSummary struct {
	Mean    float64   `json:"mean"`
	Median  float64   `json:"median"`
	Min     float64   `json:"min"`
	Max     float64   `json:"max"`
	Deciles []float64 `json:"deciles"` // p0 through p100 in steps of ten
}

// SiteReport summarizes a loaded site table.
type SiteReport struct {
	Sites     int             `json:"sites"`
	Extent    Extent          `json:"extent"`
	LandUses  []CategoryCount `json:"land_uses"`
	Countries []CategoryCount `json:"countries"`
	Years     []YearCount     `json:"years"`
	Cells     []CategoryCount `json:"grid_cells"` // 10-degree bins, densest first
}

// PatchReport summarizes a loaded patch table.
type PatchReport struct {
	Patches int             `json:"patches"`
	Extent  Extent          `json:"extent"`
	Years   []YearCount     `json:"years"`
	Cloud   CloudSummary    `json:"cloud_cover"`
	Cells   []CategoryCount `json:"grid_cells"` // 10-degree bins, densest first
}

// Sites profiles a site table.
func Sites(sites []model.Site) SiteReport {
	r := SiteReport{Sites: len(sites)}
	landUses := make(map[string]int)
	countries := make(map[string]int)
	years := make(map[int]int)
	cells := make(map[string]int)

	for i, s := range sites {
		r.Extent = growExtent(r.Extent, s.Latitude, s.Longitude, i == 0)
		if s.LandUse != "" {
			landUses[s.LandUse]++
		}
		if s.Country != "" {
			countries[s.Country]++
		}
		years[s.SurveyYear]++
		cells[cellKey(s.Latitude, s.Longitude)]++
	}

	r.LandUses = sortedCategories(landUses)
	r.Countries = sortedCategories(countries)
	r.Years = sortedYears(years)
	r.Cells = sortedCategories(cells)
	return r
}

// Patches profiles a patch table.
func Patches(patches []model.Patch) PatchReport {
	r := PatchReport{Patches: len(patches)}
	years := make(map[int]int)
	cells := make(map[string]int)
	clouds := make([]float64, 0, len(patches))

	for i, p := range patches {
		r.Extent = growExtent(r.Extent, p.Latitude, p.Longitude, i == 0)
		years[p.CaptureYear]++
		cells[cellKey(p.Latitude, p.Longitude)]++
		clouds = append(clouds, p.CloudCover)
	}

	r.Years = sortedYears(years)
	r.Cells = sortedCategories(cells)
	r.Cloud = cloudSummary(clouds)
	return r
}

// cellKey labels the 10-degree bin containing a coordinate, e.g.
// "lat -10..0 lng 20..30".
func cellKey(lat, lng float64) string {
	latLo := int(math.Floor(lat/cellSizeDeg) * cellSizeDeg)
	lngLo := int(math.Floor(lng/cellSizeDeg) * cellSizeDeg)
	return fmt.Sprintf("lat %d..%d lng %d..%d", latLo, latLo+int(cellSizeDeg), lngLo, lngLo+int(cellSizeDeg))
}

func growExtent(e Extent, lat, lng float64, first bool) Extent {
	if first {
		return Extent{MinLat: lat, MaxLat: lat, MinLng: lng, MaxLng: lng}
	}
	e.MinLat = math.Min(e.MinLat, lat)
	e.MaxLat = math.Max(e.MaxLat, lat)
	e.MinLng = math.Min(e.MinLng, lng)
	e.MaxLng = math.Max(e.MaxLng, lng)
	return e
}

// sortedCategories orders buckets by count descending, ties alphabetically,
// so repeated reports render identically.
func sortedCategories(counts map[string]int) []CategoryCount {
	out := make([]CategoryCount, 0, len(counts))
	for name, n := range counts {
		out = append(out, CategoryCount{Name: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func sortedYears(counts map[int]int) []YearCount {
	out := make([]YearCount, 0, len(counts))
	for year, n := range counts {
		out = append(out, YearCount{Year: year, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out
}

func cloudSummary(values []float64) CloudSummary {
	if len(values) == 0 {
		return CloudSummary{}
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	sum := 0.0
	for _, v := range sorted {
		sum += v
	}
	deciles := make([]float64, 0, 11)
	for i := 0; i <= 10; i++ {
		deciles = append(deciles, quantile(sorted, float64(i)/10))
	}
	return CloudSummary{
		Mean:    sum / float64(len(sorted)),
		Median:  quantile(sorted, 0.5),
		Min:     sorted[0],
		Max:     sorted[len(sorted)-1],
		Deciles: deciles,
	}
}

// quantile interpolates linearly between the two nearest order statistics.
func quantile(sorted []float64, q float64) float64 {
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (sorted[hi]-sorted[lo])*(pos-float64(lo))
}
