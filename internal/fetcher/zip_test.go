package fetcher

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestZIP(t *testing.T, files map[string]string) string {
	t.Helper()
	zipPath := filepath.Join(t.TempDir(), "test.zip")
	f, err := os.Create(zipPath)
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck

	w := zip.NewWriter(f)
	for name, content := range files {
		fw, err := w.Create(name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return zipPath
}

func TestExtractZIP_SingleCSV(t *testing.T) {
	zipPath := createTestZIP(t, map[string]string{
		"database.csv": "Source_ID,Latitude,Longitude\nAB1,51.5,-0.1\n",
	})

	destDir := t.TempDir()
	extracted, err := ExtractZIP(zipPath, destDir)
	require.NoError(t, err)
	require.Len(t, extracted, 1)
	assert.Equal(t, filepath.Join(destDir, "database.csv"), extracted[0])

	data, err := os.ReadFile(extracted[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), "Source_ID")
}

func TestExtractZIP_MultiFile(t *testing.T) {
	zipPath := createTestZIP(t, map[string]string{
		"sites.csv":          "id,lat,lng",
		"readme.txt":         "survey release notes",
		"metadata/cols.json": `{"id":"string"}`,
	})

	destDir := t.TempDir()
	extracted, err := ExtractZIP(zipPath, destDir)
	require.NoError(t, err)
	assert.Len(t, extracted, 3)

	for _, path := range extracted {
		_, err := os.Stat(path)
		require.NoError(t, err)
	}

	data, err := os.ReadFile(filepath.Join(destDir, "metadata", "cols.json"))
	require.NoError(t, err)
	assert.Equal(t, `{"id":"string"}`, string(data))
}

func TestExtractZIP_ZipSlipRejected(t *testing.T) {
	zipPath := createTestZIP(t, map[string]string{
		"../escape.txt": "should not land outside",
	})

	destDir := t.TempDir()
	_, err := ExtractZIP(zipPath, destDir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "zip slip")

	_, statErr := os.Stat(filepath.Join(filepath.Dir(destDir), "escape.txt"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestExtractZIP_MissingArchive(t *testing.T) {
	_, err := ExtractZIP(filepath.Join(t.TempDir(), "nope.zip"), t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open archive")
}
