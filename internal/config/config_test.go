package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no fieldsat.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.InDelta(t, 1.0, cfg.Match.SearchRadiusDegrees, 0.001)
	assert.InDelta(t, 0.50, cfg.Match.CloudCoverThreshold, 0.001)
	assert.Equal(t, "spatial_first", cfg.Match.PriorityPolicy)
	assert.Equal(t, []float64{5, 10, 20, 30}, cfg.Match.DistanceThresholdsKM)
	assert.Equal(t, []float64{5, 10, 15, 20}, cfg.Match.LagThresholdsYears)
	assert.Equal(t, 1, cfg.Match.Concurrency)
	assert.Empty(t, cfg.Match.LandUses)
	assert.Equal(t, "Source_ID", cfg.Ingest.Sites.SourceID)
	assert.Equal(t, "Latitude", cfg.Ingest.Sites.Latitude)
	assert.Equal(t, "Predominant_land_use", cfg.Ingest.Sites.LandUse)
	assert.Equal(t, "product_id", cfg.Ingest.Patches.ID)
	assert.Equal(t, "centre_lat", cfg.Ingest.Patches.Latitude)
	assert.Equal(t, "cloud_cover", cfg.Ingest.Patches.CloudCover)
	assert.Equal(t, "fieldsat.db", cfg.Store.Path)
	assert.False(t, cfg.Store.Disable)
	assert.Equal(t, "datasets.yaml", cfg.Download.Manifest)
	assert.Equal(t, "data", cfg.Download.Dir)
	assert.Equal(t, 3, cfg.Download.MaxRetries)
	assert.Equal(t, "site_patch_matches", cfg.Export.Postgres.Table)
	assert.Equal(t, 8710, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
match:
  search_radius_degrees: 0.5
  priority_policy: temporal_first
  concurrency: 8
store:
  path: runs.db
log:
  level: debug
  format: console
server:
  port: 9090
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fieldsat.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.InDelta(t, 0.5, cfg.Match.SearchRadiusDegrees, 0.001)
	assert.Equal(t, "temporal_first", cfg.Match.PriorityPolicy)
	assert.Equal(t, 8, cfg.Match.Concurrency)
	assert.Equal(t, "runs.db", cfg.Store.Path)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	// Defaults still apply for unset values
	assert.InDelta(t, 0.50, cfg.Match.CloudCoverThreshold, 0.001)
	assert.Equal(t, "Source_ID", cfg.Ingest.Sites.SourceID)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
match:
  priority_policy: temporal_first
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fieldsat.yaml"), []byte(yaml), 0644))

	t.Setenv("FIELDSAT_MATCH_PRIORITY_POLICY", "spatial_first")
	t.Setenv("FIELDSAT_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "spatial_first", cfg.Match.PriorityPolicy)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("FIELDSAT_SERVER_PORT", "3000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
}

// validDefaults returns a Config with the bounds-checked fields populated.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Match.SearchRadiusDegrees = 1.0
	cfg.Match.CloudCoverThreshold = 0.50
	cfg.Match.PriorityPolicy = "spatial_first"
	cfg.Match.Concurrency = 1
	cfg.Server.Port = 8710
	cfg.Download.Dir = "data"
	cfg.Download.RatePerHost = 2.0
	return cfg
}

func TestValidateMatch_Valid(t *testing.T) {
	assert.NoError(t, validDefaults().Validate("match"))
}

func TestValidateMatch_Bounds(t *testing.T) {
	cfg := validDefaults()
	cfg.Match.SearchRadiusDegrees = 0
	err := cfg.Validate("match")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "search_radius_degrees")

	cfg = validDefaults()
	cfg.Match.CloudCoverThreshold = 1.5
	err = cfg.Validate("match")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "cloud_cover_threshold")

	cfg = validDefaults()
	cfg.Match.Concurrency = 0
	err = cfg.Validate("match")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "concurrency must be between 1 and 64")

	cfg = validDefaults()
	cfg.Match.PriorityPolicy = "nearest"
	err = cfg.Validate("match")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "priority_policy")

	cfg = validDefaults()
	cfg.Match.DistanceThresholdsKM = []float64{5, -1}
	err = cfg.Validate("match")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "distance_thresholds_km")
}

func TestValidateServe(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("serve"))

	cfg.Server.Port = 0
	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")

	cfg = validDefaults()
	cfg.Store.Disable = true
	err = cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.disable")
}

func TestValidateExportPostgres(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("export-postgres")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "export.postgres.conn_string is required")

	cfg.Export.Postgres.ConnString = "postgres://localhost/research"
	cfg.Export.Postgres.Table = "site_patch_matches"
	assert.NoError(t, cfg.Validate("export-postgres"))
}

func TestValidateUnknownMode(t *testing.T) {
	err := validDefaults().Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}
