package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Match    MatchConfig    `yaml:"match" mapstructure:"match"`
	Ingest   IngestConfig   `yaml:"ingest" mapstructure:"ingest"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Download DownloadConfig `yaml:"download" mapstructure:"download"`
	Export   ExportConfig   `yaml:"export" mapstructure:"export"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// MatchConfig configures the spatial-temporal matcher.
type MatchConfig struct {
	SearchRadiusDegrees  float64   `yaml:"search_radius_degrees" mapstructure:"search_radius_degrees"`
	CloudCoverThreshold  float64   `yaml:"cloud_cover_threshold" mapstructure:"cloud_cover_threshold"`
	PriorityPolicy       string    `yaml:"priority_policy" mapstructure:"priority_policy"`
	DistanceThresholdsKM []float64 `yaml:"distance_thresholds_km" mapstructure:"distance_thresholds_km"`
	LagThresholdsYears   []float64 `yaml:"lag_thresholds_years" mapstructure:"lag_thresholds_years"`
	LandUses             []string  `yaml:"land_uses" mapstructure:"land_uses"`
	Concurrency          int       `yaml:"concurrency" mapstructure:"concurrency"`
}

// IngestConfig configures input table parsing.
type IngestConfig struct {
	Encoding string       `yaml:"encoding" mapstructure:"encoding"` // IANA charset name, empty = UTF-8
	Sites    SiteColumns  `yaml:"sites" mapstructure:"sites"`
	Patches  PatchColumns `yaml:"patches" mapstructure:"patches"`
}

// SiteColumns maps site table columns to record fields. ID empty means the
// identifier is composed from SourceID and SiteNumber.
type SiteColumns struct {
	ID         string `yaml:"id" mapstructure:"id"`
	SourceID   string `yaml:"source_id" mapstructure:"source_id"`
	SiteNumber string `yaml:"site_number" mapstructure:"site_number"`
	Latitude   string `yaml:"latitude" mapstructure:"latitude"`
	Longitude  string `yaml:"longitude" mapstructure:"longitude"`
	Date       string `yaml:"date" mapstructure:"date"`
	Year       string `yaml:"year" mapstructure:"year"`
	LandUse    string `yaml:"land_use" mapstructure:"land_use"`
	Country    string `yaml:"country" mapstructure:"country"`
}

// PatchColumns maps patch table columns to record fields. When Cell is present
// in the header the identifier is composed as cell::id.
type PatchColumns struct {
	ID         string `yaml:"id" mapstructure:"id"`
	Cell       string `yaml:"cell" mapstructure:"cell"`
	Latitude   string `yaml:"latitude" mapstructure:"latitude"`
	Longitude  string `yaml:"longitude" mapstructure:"longitude"`
	Timestamp  string `yaml:"timestamp" mapstructure:"timestamp"`
	Year       string `yaml:"year" mapstructure:"year"`
	CloudCover string `yaml:"cloud_cover" mapstructure:"cloud_cover"`
}

// StoreConfig configures run persistence.
type StoreConfig struct {
	Path    string `yaml:"path" mapstructure:"path"`
	Disable bool   `yaml:"disable" mapstructure:"disable"`
}

// DownloadConfig configures dataset downloads.
type DownloadConfig struct {
	Manifest    string  `yaml:"manifest" mapstructure:"manifest"`
	Dir         string  `yaml:"dir" mapstructure:"dir"`
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int     `yaml:"max_retries" mapstructure:"max_retries"`
	RatePerHost float64 `yaml:"rate_per_host" mapstructure:"rate_per_host"`
}

// ExportConfig configures match-table export targets.
type ExportConfig struct {
	Postgres PostgresExportConfig `yaml:"postgres" mapstructure:"postgres"`
}

// PostgresExportConfig configures the PostgreSQL bulk-load target.
type PostgresExportConfig struct {
	ConnString string `yaml:"conn_string" mapstructure:"conn_string"`
	Table      string `yaml:"table" mapstructure:"table"`
}

// ServerConfig configures the results API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("fieldsat")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("FIELDSAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("match.search_radius_degrees", 1.0)
	v.SetDefault("match.cloud_cover_threshold", 0.50)
	v.SetDefault("match.priority_policy", "spatial_first")
	v.SetDefault("match.distance_thresholds_km", []float64{5, 10, 20, 30})
	v.SetDefault("match.lag_thresholds_years", []float64{5, 10, 15, 20})
	v.SetDefault("match.land_uses", []string{})
	v.SetDefault("match.concurrency", 1)
	v.SetDefault("ingest.encoding", "")
	v.SetDefault("ingest.sites.id", "")
	v.SetDefault("ingest.sites.source_id", "Source_ID")
	v.SetDefault("ingest.sites.site_number", "Site_number")
	v.SetDefault("ingest.sites.latitude", "Latitude")
	v.SetDefault("ingest.sites.longitude", "Longitude")
	v.SetDefault("ingest.sites.date", "Sample_midpoint")
	v.SetDefault("ingest.sites.year", "")
	v.SetDefault("ingest.sites.land_use", "Predominant_land_use")
	v.SetDefault("ingest.sites.country", "Country")
	v.SetDefault("ingest.patches.id", "product_id")
	v.SetDefault("ingest.patches.cell", "grid_cell")
	v.SetDefault("ingest.patches.latitude", "centre_lat")
	v.SetDefault("ingest.patches.longitude", "centre_lon")
	v.SetDefault("ingest.patches.timestamp", "timestamp")
	v.SetDefault("ingest.patches.year", "")
	v.SetDefault("ingest.patches.cloud_cover", "cloud_cover")
	v.SetDefault("store.path", "fieldsat.db")
	v.SetDefault("download.manifest", "datasets.yaml")
	v.SetDefault("download.dir", "data")
	v.SetDefault("download.user_agent", "fieldsat/1.0")
	v.SetDefault("download.timeout_secs", 120)
	v.SetDefault("download.max_retries", 3)
	v.SetDefault("download.rate_per_host", 2.0)
	v.SetDefault("export.postgres.table", "site_patch_matches")
	v.SetDefault("server.port", 8710)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that configuration required for the given mode is present
// and within bounds. Modes: "match", "serve", "export-postgres", "download".
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "match":
		if c.Match.SearchRadiusDegrees <= 0 || c.Match.SearchRadiusDegrees > 90 {
			problems = append(problems, "match.search_radius_degrees must be in (0, 90]")
		}
		if c.Match.CloudCoverThreshold < 0 || c.Match.CloudCoverThreshold > 1 {
			problems = append(problems, "match.cloud_cover_threshold must be between 0 and 1")
		}
		if c.Match.Concurrency < 1 || c.Match.Concurrency > 64 {
			problems = append(problems, "match.concurrency must be between 1 and 64")
		}
		if c.Match.PriorityPolicy != "spatial_first" && c.Match.PriorityPolicy != "temporal_first" {
			problems = append(problems, fmt.Sprintf("match.priority_policy %q is not recognized", c.Match.PriorityPolicy))
		}
		for _, d := range c.Match.DistanceThresholdsKM {
			if d <= 0 {
				problems = append(problems, "match.distance_thresholds_km values must be > 0")
				break
			}
		}
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			problems = append(problems, "server.port must be > 0")
		}
		if c.Store.Disable {
			problems = append(problems, "serve requires the store (store.disable must be false)")
		}
	case "export-postgres":
		if c.Export.Postgres.ConnString == "" {
			problems = append(problems, "export.postgres.conn_string is required")
		}
		if c.Export.Postgres.Table == "" {
			problems = append(problems, "export.postgres.table is required")
		}
	case "download":
		if c.Download.Dir == "" {
			problems = append(problems, "download.dir is required")
		}
		if c.Download.RatePerHost <= 0 {
			problems = append(problems, "download.rate_per_host must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
