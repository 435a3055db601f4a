package export

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/verdantic/fieldsat/internal/db"
	"github.com/verdantic/fieldsat/internal/model"
)

// matchTableDDL is the bulk-load target. The (run_id, site_id) key lets a
// re-export of the same run replace its rows instead of duplicating them.
const matchTableDDL = `CREATE TABLE IF NOT EXISTS %s (
	run_id      TEXT NOT NULL,
	site_id     TEXT NOT NULL,
	patch_id    TEXT,
	distance_km DOUBLE PRECISION,
	lag_years   DOUBLE PRECISION,
	cloud_cover DOUBLE PRECISION,
	land_use    TEXT,
	matched     BOOLEAN NOT NULL,
	reason      TEXT,
	PRIMARY KEY (run_id, site_id)
)`

var matchTableColumns = []string{
	"run_id",
	"site_id",
	"patch_id",
	"distance_km",
	"lag_years",
	"cloud_cover",
	"land_use",
	"matched",
	"reason",
}

// EnsureSchema creates the target table when it does not exist.
func EnsureSchema(ctx context.Context, pool db.Pool, table string) error {
	_, err := pool.Exec(ctx, fmt.Sprintf(matchTableDDL, db.SanitizeTable(table)))
	return eris.Wrapf(err, "export: ensure table %s", table)
}

// ToPostgres upserts a run's match table into PostgreSQL via COPY and a temp
// table.
func ToPostgres(ctx context.Context, pool db.Pool, table, runID string, matches []model.Match) (int64, error) {
	rows := make([][]any, 0, len(matches))
	for i := range matches {
		m := &matches[i]
		rows = append(rows, []any{
			runID,
			m.SiteID,
			nullString(m.PatchID),
			m.DistanceKM,
			m.LagYears,
			m.CloudCover,
			m.LandUse,
			m.Matched,
			nullString(string(m.Reason)),
		})
	}

	n, err := db.BulkUpsert(ctx, pool, db.UpsertConfig{
		Table:        table,
		Columns:      matchTableColumns,
		ConflictKeys: []string{"run_id", "site_id"},
	}, rows)
	if err != nil {
		return 0, err
	}

	zap.L().Info("matches exported to postgres",
		zap.String("table", table),
		zap.String("run_id", runID),
		zap.Int64("rows", n))
	return n, nil
}

// nullString maps the empty string to SQL NULL.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
