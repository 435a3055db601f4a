//go:build !integration

package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verdantic/fieldsat/internal/matcher"
	"github.com/verdantic/fieldsat/internal/model"
)

func TestFilterLandUses(t *testing.T) {
	sites := []model.Site{
		{ID: "a", LandUse: "Cropland"},
		{ID: "b", LandUse: "Primary vegetation"},
		{ID: "c", LandUse: "Pasture"},
		{ID: "d", LandUse: "Cropland"},
	}

	out := filterLandUses(sites, []string{"Cropland", "Pasture"})
	require.Len(t, out, 3)
	assert.Equal(t, "a", out[0].ID)
	assert.Equal(t, "c", out[1].ID)
	assert.Equal(t, "d", out[2].ID)
}

func TestFilterLandUses_EmptyListKeepsAll(t *testing.T) {
	sites := []model.Site{
		{ID: "a", LandUse: "Cropland"},
		{ID: "b", LandUse: "Urban"},
	}

	out := filterLandUses(sites, nil)
	assert.Len(t, out, 2)
}

func TestFormatSummary(t *testing.T) {
	s := model.Summary{
		Sites:               100,
		Matched:             80,
		Unmatched:           20,
		MatchRate:           0.8,
		NoCandidateInRadius: 15,
		NonePassedQuality:   5,
		MalformedSites:      2,
		Distance: model.DistanceStats{
			Mean: 3.21, Median: 2.5, Std: 1.1, Min: 0.02, Max: 19.7,
		},
		Lag: model.LagStats{
			Mean: 4.5, Median: 4.0, Min: 0.1, Max: 12.3,
		},
		WithinDistanceKM: []model.ThresholdCount{{Threshold: 5, Count: 60}, {Threshold: 10, Count: 75}},
		WithinLagYears:   []model.ThresholdCount{{Threshold: 5, Count: 50}},
	}

	var buf bytes.Buffer
	formatSummary(&buf, s)

	output := buf.String()
	assert.Contains(t, output, "Sites:")
	assert.Contains(t, output, "100")
	assert.Contains(t, output, "80 (80.0%)")
	assert.Contains(t, output, "no candidate in radius:")
	assert.Contains(t, output, "none passed cloud filter:")
	assert.Contains(t, output, "Malformed site rows dropped:")
	assert.Contains(t, output, "mean 3.21")
	assert.Contains(t, output, "median 2.50")
	assert.Contains(t, output, "within 5 km:")
	assert.Contains(t, output, "within 10 km:")
	assert.Contains(t, output, "within 5 yr:")
}

func TestFormatSummary_NothingMatched(t *testing.T) {
	s := model.Summary{Sites: 4, Unmatched: 4, NoCandidateInRadius: 4}

	var buf bytes.Buffer
	formatSummary(&buf, s)

	output := buf.String()
	assert.Contains(t, output, "Unmatched:")
	assert.NotContains(t, output, "Distance km:")
	assert.NotContains(t, output, "Lag years:")
}

func TestWriteMatchOutput_UnknownFormat(t *testing.T) {
	err := writeMatchOutput(nil, &matcher.Result{}, "xml", filepath.Join(t.TempDir(), "out.xml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown output format")
}

func TestWriteMatchOutput_CSV(t *testing.T) {
	d := 1.5
	res := &matcher.Result{
		Matches: []model.Match{
			{SiteID: "s1", PatchID: "p1", DistanceKM: &d, Matched: true, LandUse: "Cropland"},
		},
	}

	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, writeMatchOutput(nil, res, "csv", path))
	assert.FileExists(t, path)
}
