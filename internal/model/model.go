package model

import (
	"time"

	"github.com/rotisserie/eris"
)

// PriorityPolicy selects how the matcher ranks candidate patches for a site.
type PriorityPolicy string

const (
	// PolicySpatialFirst minimizes distance, breaking ties by temporal lag,
	// then by cloud cover.
	PolicySpatialFirst PriorityPolicy = "spatial_first"
	// PolicyTemporalFirst minimizes temporal lag, breaking ties by distance,
	// then by cloud cover.
	PolicyTemporalFirst PriorityPolicy = "temporal_first"
)

// ParsePolicy validates a policy name from config or flags.
func ParsePolicy(s string) (PriorityPolicy, error) {
	switch PriorityPolicy(s) {
	case PolicySpatialFirst:
		return PolicySpatialFirst, nil
	case PolicyTemporalFirst:
		return PolicyTemporalFirst, nil
	default:
		return "", eris.Errorf("model: unknown priority policy %q (want %q or %q)",
			s, PolicySpatialFirst, PolicyTemporalFirst)
	}
}

// AgriculturalLandUses are the land-use categories the --agricultural
// shorthand restricts sites to.
var AgriculturalLandUses = []string{"Cropland", "Pasture", "Plantation forest"}

// Site is one biodiversity field-survey location. Immutable once loaded.
type Site struct {
	ID         string     `json:"id"`
	Latitude   float64    `json:"latitude"`
	Longitude  float64    `json:"longitude"`
	SurveyYear int        `json:"survey_year"`
	SurveyDate *time.Time `json:"survey_date,omitempty"` // sample midpoint, when the source records one
	LandUse    string     `json:"land_use"`
	Country    string     `json:"country,omitempty"`
}

// Patch is the metadata of one satellite image patch. Immutable once loaded;
// the full collection runs to millions of rows.
type Patch struct {
	ID          string     `json:"id"`
	Latitude    float64    `json:"latitude"`
	Longitude   float64    `json:"longitude"`
	CaptureYear int        `json:"capture_year"`
	CaptureDate *time.Time `json:"capture_date,omitempty"`
	CloudCover  float64    `json:"cloud_cover"` // fraction, 0.0-1.0
}

// UnmatchedReason explains why a site has no patch assigned.
type UnmatchedReason string

const (
	// ReasonNoCandidateInRadius: the bounding-box pre-filter returned zero patches.
	ReasonNoCandidateInRadius UnmatchedReason = "no_candidate_within_radius"
	// ReasonNonePassedQuality: candidates existed but all exceeded the
	// cloud-cover threshold.
	ReasonNonePassedQuality UnmatchedReason = "no_candidate_within_radius_passing_quality_filter"
)

// Match pairs a site with its single best patch, or records that no patch
// qualified. Exactly one Match exists per input site.
type Match struct {
	SiteID     string          `json:"site_id"`
	PatchID    string          `json:"patch_id,omitempty"`
	DistanceKM *float64        `json:"distance_km"`
	LagYears   *float64        `json:"temporal_lag_years"`
	CloudCover *float64        `json:"cloud_cover,omitempty"`
	LandUse    string          `json:"land_use"`
	Matched    bool            `json:"matched"`
	Reason     UnmatchedReason `json:"reason,omitempty"`
}

// RunStatus represents the current state of a match run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Run records one batch matching execution and its configuration echo.
type Run struct {
	ID          string         `json:"id"`
	Status      RunStatus      `json:"status"`
	SitesFile   string         `json:"sites_file"`
	PatchesFile string         `json:"patches_file"`
	Policy      PriorityPolicy `json:"priority_policy"`
	RadiusDeg   float64        `json:"search_radius_degrees"`
	CloudMax    float64        `json:"cloud_cover_threshold"`
	Region      string         `json:"region,omitempty"`
	SiteCount   int            `json:"site_count"`
	PatchCount  int            `json:"patch_count"`
	Summary     *Summary       `json:"summary,omitempty"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Summary is the read-only statistical projection over a run's matches.
type Summary struct {
	Sites     int     `json:"sites"`
	Matched   int     `json:"matched"`
	Unmatched int     `json:"unmatched"`
	MatchRate float64 `json:"match_rate"`

	NoCandidateInRadius int `json:"no_candidate_within_radius"`
	NonePassedQuality   int `json:"none_passed_quality_filter"`

	MalformedSites   int `json:"malformed_sites_dropped"`
	MalformedPatches int `json:"malformed_patches_dropped"`

	Distance DistanceStats `json:"distance_km"`
	Lag      LagStats      `json:"lag_years"`

	WithinDistanceKM []ThresholdCount `json:"within_distance_km"`
	WithinLagYears   []ThresholdCount `json:"within_lag_years"`
}

// DistanceStats aggregates matched distances in kilometers.
type DistanceStats struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Std    float64 `json:"std"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// LagStats aggregates matched temporal lags in years.
type LagStats struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// ThresholdCount is one histogram bucket: matches with value <= Threshold.
type ThresholdCount struct {
	Threshold float64 `json:"threshold"`
	Count     int     `json:"count"`
}
