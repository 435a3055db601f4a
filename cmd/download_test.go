//go:build !integration

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verdantic/fieldsat/internal/fetcher"
)

func TestSelectDatasets(t *testing.T) {
	datasets := []fetcher.Dataset{
		{Name: "sites", URL: "https://example.org/sites.csv"},
		{Name: "patches", URL: "https://example.org/patches.csv.gz"},
		{Name: "boundaries", URL: "https://example.org/boundaries.zip"},
	}

	out, err := selectDatasets(datasets, []string{"patches", "sites"})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "patches", out[0].Name)
	assert.Equal(t, "sites", out[1].Name)
}

func TestSelectDatasets_UnknownName(t *testing.T) {
	datasets := []fetcher.Dataset{
		{Name: "sites", URL: "https://example.org/sites.csv"},
	}

	_, err := selectDatasets(datasets, []string{"patchez"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "patchez")
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "1.0 KiB", formatBytes(1024))
	assert.Equal(t, "1.5 MiB", formatBytes(1536*1024))
	assert.Equal(t, "2.0 GiB", formatBytes(2*1024*1024*1024))
}
