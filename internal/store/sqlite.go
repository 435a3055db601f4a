package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/verdantic/fieldsat/internal/geo"
	"github.com/verdantic/fieldsat/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	status       TEXT NOT NULL DEFAULT 'running',
	sites_file   TEXT NOT NULL,
	patches_file TEXT NOT NULL,
	policy       TEXT NOT NULL,
	radius_deg   REAL NOT NULL,
	cloud_max    REAL NOT NULL,
	region       TEXT,
	site_count   INTEGER NOT NULL DEFAULT 0,
	patch_count  INTEGER NOT NULL DEFAULT 0,
	summary      TEXT,
	error        TEXT,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS matches (
	run_id      TEXT NOT NULL REFERENCES runs(id),
	site_id     TEXT NOT NULL,
	patch_id    TEXT,
	distance_km REAL,
	lag_years   REAL,
	cloud_cover REAL,
	land_use    TEXT,
	matched     INTEGER NOT NULL,
	reason      TEXT,
	PRIMARY KEY (run_id, site_id)
);

CREATE TABLE IF NOT EXISTS regions (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	name       TEXT NOT NULL UNIQUE,
	source     TEXT NOT NULL,
	features   INTEGER NOT NULL,
	min_lat    REAL NOT NULL,
	max_lat    REAL NOT NULL,
	min_lng    REAL NOT NULL,
	max_lng    REAL NOT NULL,
	geometry   BLOB NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_policy ON runs(policy);
CREATE INDEX IF NOT EXISTS idx_matches_run_id ON matches(run_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateRun assigns the run an identifier and timestamps and records it with
// status running. The passed run carries the configuration echo.
func (s *SQLiteStore) CreateRun(ctx context.Context, run model.Run) (*model.Run, error) {
	run.ID = uuid.New().String()
	run.Status = model.RunStatusRunning
	now := time.Now().UTC()
	run.CreatedAt = now
	run.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, status, sites_file, patches_file, policy, radius_deg, cloud_max, region, site_count, patch_count, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, string(run.Status), run.SitesFile, run.PatchesFile, string(run.Policy),
		run.RadiusDeg, run.CloudMax, run.Region, run.SiteCount, run.PatchCount, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}
	return &run, nil
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, summary *model.Summary) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal summary")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET summary = ?, status = ?, updated_at = ? WHERE id = ?`,
		string(summaryJSON), string(model.RunStatusCompleted), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) FailRun(ctx context.Context, runID string, message string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET error = ?, status = ?, updated_at = ? WHERE id = ?`,
		message, string(model.RunStatusFailed), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, status, sites_file, patches_file, policy, radius_deg, cloud_max, region, site_count, patch_count, summary, error, created_at, updated_at
		 FROM runs WHERE id = ?`,
		runID,
	)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, status, sites_file, patches_file, policy, radius_deg, cloud_max, region, site_count, patch_count, summary, error, created_at, updated_at
		 FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Policy != "" {
		query += ` AND policy = ?`
		args = append(args, string(filter.Policy))
	}
	query += ` ORDER BY created_at DESC, id`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

// SaveMatches stores a run's full match table in one transaction. Insertion
// order is the site input order; GetMatches returns it unchanged.
func (s *SQLiteStore) SaveMatches(ctx context.Context, runID string, matches []model.Match) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save matches")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO matches (run_id, site_id, patch_id, distance_km, lag_years, cloud_cover, land_use, matched, reason)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare save matches")
	}
	defer stmt.Close()

	for i := range matches {
		m := &matches[i]
		var patchID any
		if m.PatchID != "" {
			patchID = m.PatchID
		}
		_, err := stmt.ExecContext(ctx,
			runID, m.SiteID, patchID,
			nullFloat(m.DistanceKM), nullFloat(m.LagYears), nullFloat(m.CloudCover),
			m.LandUse, m.Matched, string(m.Reason),
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert match for site %s", m.SiteID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit save matches")
}

func (s *SQLiteStore) GetMatches(ctx context.Context, runID string, filter MatchFilter) ([]model.Match, error) {
	query := `SELECT site_id, patch_id, distance_km, lag_years, cloud_cover, land_use, matched, reason
		 FROM matches WHERE run_id = ?`
	args := []any{runID}

	if filter.Matched != nil {
		query += ` AND matched = ?`
		args = append(args, *filter.Matched)
	}
	query += ` ORDER BY rowid`

	// SQLite needs a LIMIT clause to accept OFFSET; -1 means unbounded.
	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}
	query += ` LIMIT ?`
	args = append(args, limit)
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get matches for run %s", runID)
	}
	defer rows.Close()

	var matches []model.Match
	for rows.Next() {
		var m model.Match
		var patchID, landUse, reason sql.NullString
		var dist, lag, cloud sql.NullFloat64
		if err := rows.Scan(&m.SiteID, &patchID, &dist, &lag, &cloud, &landUse, &m.Matched, &reason); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan match")
		}
		m.PatchID = patchID.String
		m.LandUse = landUse.String
		m.Reason = model.UnmatchedReason(reason.String)
		if dist.Valid {
			v := dist.Float64
			m.DistanceKM = &v
		}
		if lag.Valid {
			v := lag.Float64
			m.LagYears = &v
		}
		if cloud.Valid {
			v := cloud.Float64
			m.CloudCover = &v
		}
		matches = append(matches, m)
	}
	return matches, eris.Wrap(rows.Err(), "sqlite: get matches iterate")
}

// DeleteRun removes a run and its matches in one transaction.
func (s *SQLiteStore) DeleteRun(ctx context.Context, runID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin delete run")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM matches WHERE run_id = ?`, runID); err != nil {
		return eris.Wrapf(err, "sqlite: delete matches for run %s", runID)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, runID)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete run %s", runID)
	}
	if err := checkRowsAffected(res, "run", runID); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit delete run")
}

// SaveRegion stores an imported region, replacing any previous import under
// the same name.
func (s *SQLiteStore) SaveRegion(ctx context.Context, region *geo.Region) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO regions (name, source, features, min_lat, max_lat, min_lng, max_lng, geometry, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		region.Name, region.SourceFile, region.Features,
		region.BBox.MinLat, region.BBox.MaxLat, region.BBox.MinLng, region.BBox.MaxLng,
		region.Geometry, time.Now().UTC(),
	)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: save region %s", region.Name)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: region id")
	}
	region.ID = id
	return id, nil
}

func (s *SQLiteStore) GetRegion(ctx context.Context, name string) (*geo.Region, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, source, features, min_lat, max_lat, min_lng, max_lng, geometry, created_at
		 FROM regions WHERE name = ?`,
		name,
	)

	var r geo.Region
	err := row.Scan(&r.ID, &r.Name, &r.SourceFile, &r.Features,
		&r.BBox.MinLat, &r.BBox.MaxLat, &r.BBox.MinLng, &r.BBox.MaxLng,
		&r.Geometry, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: region %s", name)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get region %s", name)
	}
	return &r, nil
}

func (s *SQLiteStore) ListRegions(ctx context.Context) ([]geo.Region, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, source, features, min_lat, max_lat, min_lng, max_lng, geometry, created_at
		 FROM regions ORDER BY name`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list regions")
	}
	defer rows.Close()

	var regions []geo.Region
	for rows.Next() {
		var r geo.Region
		err := rows.Scan(&r.ID, &r.Name, &r.SourceFile, &r.Features,
			&r.BBox.MinLat, &r.BBox.MaxLat, &r.BBox.MinLng, &r.BBox.MaxLng,
			&r.Geometry, &r.CreatedAt)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan region")
		}
		regions = append(regions, r)
	}
	return regions, eris.Wrap(rows.Err(), "sqlite: list regions iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var region sql.NullString
	var summaryJSON, errMsg sql.NullString

	err := row.Scan(&r.ID, &r.Status, &r.SitesFile, &r.PatchesFile, &r.Policy,
		&r.RadiusDeg, &r.CloudMax, &region, &r.SiteCount, &r.PatchCount,
		&summaryJSON, &errMsg, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.Wrap(ErrNotFound, "run")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	r.Region = region.String
	r.Error = errMsg.String
	if summaryJSON.Valid && summaryJSON.String != "" {
		r.Summary = &model.Summary{}
		if err := json.Unmarshal([]byte(summaryJSON.String), r.Summary); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal summary")
		}
	}
	return &r, nil
}

func nullFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
