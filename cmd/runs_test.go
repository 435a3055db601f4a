//go:build !integration

package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/verdantic/fieldsat/internal/model"
)

func TestFormatMatches(t *testing.T) {
	d, l := 3.25, 1.5
	matches := []model.Match{
		{SiteID: "src::1", PatchID: "cell::p1", DistanceKM: &d, LagYears: &l, LandUse: "Cropland", Matched: true},
		{SiteID: "src::2", LandUse: "Pasture", Matched: false, Reason: model.ReasonNonePassedQuality},
	}

	var buf bytes.Buffer
	formatMatches(&buf, matches)

	output := buf.String()
	assert.Contains(t, output, "SITE")
	assert.Contains(t, output, "PATCH")
	assert.Contains(t, output, "src::1")
	assert.Contains(t, output, "cell::p1")
	assert.Contains(t, output, "3.25")
	assert.Contains(t, output, "1.50")
	assert.Contains(t, output, "src::2")
	assert.Contains(t, output, string(model.ReasonNonePassedQuality))
}

func TestFloatOrDash(t *testing.T) {
	v := 2.345
	assert.Equal(t, "2.35", floatOrDash(&v))
	assert.Equal(t, "-", floatOrDash(nil))
}

func TestOrDash(t *testing.T) {
	assert.Equal(t, "p1", orDash("p1"))
	assert.Equal(t, "-", orDash(""))
}
