package ingest

import (
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/verdantic/fieldsat/internal/config"
)

func testIngestCfg() config.IngestConfig {
	return config.IngestConfig{
		Sites: config.SiteColumns{
			SourceID:   "Source_ID",
			SiteNumber: "Site_number",
			Latitude:   "Latitude",
			Longitude:  "Longitude",
			Date:       "Sample_midpoint",
			LandUse:    "Predominant_land_use",
			Country:    "Country",
		},
		Patches: config.PatchColumns{
			ID:         "product_id",
			Cell:       "grid_cell",
			Latitude:   "centre_lat",
			Longitude:  "centre_lon",
			Timestamp:  "timestamp",
			CloudCover: "cloud_cover",
		},
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const sitesCSV = `Source_ID,Site_number,Latitude,Longitude,Sample_midpoint,Predominant_land_use,Country
AB1_2009,1,51.5,-0.12,2009-06-15,Cropland,United Kingdom
AB1_2009,1,51.5,-0.12,2009-06-15,Cropland,United Kingdom
AB1_2009,2,95.0,-0.12,2009-06-15,Pasture,United Kingdom
AB1_2009,3,51.6,-0.13,not-a-date,Pasture,United Kingdom
AB1_2009,4,,-0.14,2009-06-15,Pasture,United Kingdom
CD2_2015,7,-33.9,151.2,2015-01-20,Plantation forest,Australia
`

func TestLoadSites_CSV(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "sites.csv", sitesCSV)
	sites, stats, err := LoadSites(path, testIngestCfg())
	require.NoError(t, err)

	assert.Equal(t, 6, stats.Rows)
	assert.Equal(t, 2, stats.Loaded)
	assert.Equal(t, 3, stats.Malformed)
	assert.Equal(t, 1, stats.Duplicates)
	require.Len(t, sites, 2)

	first := sites[0]
	assert.Equal(t, "AB1_2009::1", first.ID)
	assert.InDelta(t, 51.5, first.Latitude, 1e-12)
	assert.InDelta(t, -0.12, first.Longitude, 1e-12)
	assert.Equal(t, 2009, first.SurveyYear)
	require.NotNil(t, first.SurveyDate)
	assert.Equal(t, time.Date(2009, 6, 15, 0, 0, 0, 0, time.UTC), *first.SurveyDate)
	assert.Equal(t, "Cropland", first.LandUse)
	assert.Equal(t, "United Kingdom", first.Country)

	assert.Equal(t, "CD2_2015::7", sites[1].ID)
	assert.Equal(t, "Plantation forest", sites[1].LandUse)
}

func TestLoadSites_ExplicitIDAndYearColumns(t *testing.T) {
	t.Parallel()

	cfg := testIngestCfg()
	cfg.Sites = config.SiteColumns{
		ID:        "SSBS",
		Latitude:  "Lat",
		Longitude: "Lon",
		Year:      "Year",
	}
	path := writeFile(t, "sites.csv", `SSBS,Lat,Lon,Year
site-a,10.5,20.5,2012
site-b,11.5,21.5,1850
`)

	sites, stats, err := LoadSites(path, cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Loaded)
	assert.Equal(t, 1, stats.Malformed)
	require.Len(t, sites, 1)
	assert.Equal(t, "site-a", sites[0].ID)
	assert.Equal(t, 2012, sites[0].SurveyYear)
	assert.Nil(t, sites[0].SurveyDate)
}

func TestLoadSites_MissingRequiredColumn(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "sites.csv", "Source_ID,Site_number,Longitude,Sample_midpoint\nAB,1,2.0,2010-01-01\n")
	_, _, err := LoadSites(path, testIngestCfg())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `missing required column "Latitude"`)
}

func TestLoadSites_NoDateOrYearConfigured(t *testing.T) {
	t.Parallel()

	cfg := testIngestCfg()
	cfg.Sites.Date = ""
	cfg.Sites.Year = ""
	path := writeFile(t, "sites.csv", "Source_ID,Site_number,Latitude,Longitude\nAB,1,2.0,3.0\n")
	_, _, err := LoadSites(path, cfg)
	require.Error(t, err)
}

func TestLoadSites_BOMHeader(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "sites.csv", "﻿"+sitesCSV)
	sites, _, err := LoadSites(path, testIngestCfg())
	require.NoError(t, err)
	require.NotEmpty(t, sites)
	assert.Equal(t, "AB1_2009::1", sites[0].ID)
}

func TestLoadSites_Gzip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "sites.csv.gz")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := gzip.NewWriter(f)
	_, err = zw.Write([]byte(sitesCSV))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	sites, stats, err := LoadSites(path, testIngestCfg())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Loaded)
	require.Len(t, sites, 2)
}

func TestLoadSites_LegacyCharset(t *testing.T) {
	t.Parallel()

	cfg := testIngestCfg()
	cfg.Encoding = "iso-8859-1"
	content := "Source_ID,Site_number,Latitude,Longitude,Sample_midpoint,Country\nCI1,1,5.3,-4.0,2010-03-01,C\xf4te d'Ivoire\n"
	path := writeFile(t, "sites.csv", content)

	sites, _, err := LoadSites(path, cfg)
	require.NoError(t, err)
	require.Len(t, sites, 1)
	assert.Equal(t, "Côte d'Ivoire", sites[0].Country)
}

func TestLoadSites_XLSX(t *testing.T) {
	t.Parallel()

	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Sites")
	require.NoError(t, err)
	for _, rowValues := range [][]string{
		{"Source_ID", "Site_number", "Latitude", "Longitude", "Sample_midpoint", "Predominant_land_use", "Country"},
		{"XY9_2018", "12", "48.85", "2.35", "2018-05-10", "Pasture", "France"},
	} {
		row := sheet.AddRow()
		for _, v := range rowValues {
			row.AddCell().Value = v
		}
	}
	path := filepath.Join(t.TempDir(), "sites.xlsx")
	require.NoError(t, file.Save(path))

	sites, stats, err := LoadSites(path, testIngestCfg())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Loaded)
	require.Len(t, sites, 1)
	assert.Equal(t, "XY9_2018::12", sites[0].ID)
	assert.Equal(t, 2018, sites[0].SurveyYear)
	assert.Equal(t, "France", sites[0].Country)
}

func TestLoadSites_MissingFile(t *testing.T) {
	t.Parallel()

	_, _, err := LoadSites(filepath.Join(t.TempDir(), "nope.csv"), testIngestCfg())
	require.Error(t, err)
}
