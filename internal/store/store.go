// Package store persists match runs, their match tables, and imported
// regions so results can be listed, re-exported, and served after the
// process that computed them has exited.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/verdantic/fieldsat/internal/geo"
	"github.com/verdantic/fieldsat/internal/model"
)

// ErrNotFound reports a run or region identifier with no stored row. Callers
// test for it with errors.Is.
var ErrNotFound = eris.New("not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus      `json:"status,omitempty"`
	Policy model.PriorityPolicy `json:"policy,omitempty"`
	Limit  int                  `json:"limit,omitempty"`
	Offset int                  `json:"offset,omitempty"`
}

// MatchFilter pages through a run's match table. Matched nil returns every
// row; true or false restricts to matched or unmatched sites. A zero Limit
// returns all rows from Offset on.
type MatchFilter struct {
	Matched *bool `json:"matched,omitempty"`
	Limit   int   `json:"limit,omitempty"`
	Offset  int   `json:"offset,omitempty"`
}

// Store defines the persistence interface for match runs and regions.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, run model.Run) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, summary *model.Summary) error
	FailRun(ctx context.Context, runID string, message string) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)
	DeleteRun(ctx context.Context, runID string) error

	// Matches
	SaveMatches(ctx context.Context, runID string, matches []model.Match) error
	GetMatches(ctx context.Context, runID string, filter MatchFilter) ([]model.Match, error)

	// Regions
	SaveRegion(ctx context.Context, region *geo.Region) (int64, error)
	GetRegion(ctx context.Context, name string) (*geo.Region, error)
	ListRegions(ctx context.Context) ([]geo.Region, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
