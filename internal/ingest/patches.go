package ingest

import (
	"encoding/csv"
	"errors"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/verdantic/fieldsat/internal/config"
	"github.com/verdantic/fieldsat/internal/model"
)

// captureTimestampLayouts are tried in order against the patch timestamp
// column. Satellite metadata exports use the compact sensing-time form.
var captureTimestampLayouts = []string{
	"20060102T150405",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// LoadPatches reads the patch metadata table at path. Identifiers are the
// grid-cell/product composite when a cell column is configured and present,
// so products re-exported under several cells stay distinct. Cloud cover
// given in percent (any value above 1) is normalized to a fraction.
func LoadPatches(path string, cfg config.IngestConfig) ([]model.Patch, Stats, error) {
	log := zap.L().With(zap.String("component", "ingest"))
	var stats Stats

	rows, closer, err := openRows(path, cfg.Encoding)
	if err != nil {
		return nil, stats, err
	}
	defer closer.Close()

	header, err := rows.Read()
	if err != nil {
		return nil, stats, eris.Wrap(err, "patches: read header")
	}
	colIdx := headerIndex(header)

	required := []string{cfg.Patches.ID, cfg.Patches.Latitude, cfg.Patches.Longitude, cfg.Patches.CloudCover}
	if err := requireColumns(colIdx, "patches", required...); err != nil {
		return nil, stats, err
	}
	if cfg.Patches.Timestamp == "" && cfg.Patches.Year == "" {
		return nil, stats, eris.New("patches: no timestamp or year column configured")
	}

	// The cell column is optional; without it identifiers are the product id
	// alone.
	_, hasCell := colIdx[cfg.Patches.Cell]

	seen := make(map[string]bool)
	var patches []model.Patch

	for {
		row, err := rows.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				stats.Rows++
				stats.Malformed++
				continue
			}
			return nil, stats, eris.Wrap(err, "patches: read row")
		}
		stats.Rows++

		patch, ok := parsePatchRow(row, colIdx, cfg.Patches, hasCell)
		if !ok {
			stats.Malformed++
			continue
		}
		if seen[patch.ID] {
			stats.Duplicates++
			continue
		}
		seen[patch.ID] = true
		patches = append(patches, patch)
		stats.Loaded++
	}

	log.Info("patches loaded",
		zap.String("path", path),
		zap.Int("rows", stats.Rows),
		zap.Int("loaded", stats.Loaded),
		zap.Int("malformed", stats.Malformed),
		zap.Int("duplicates", stats.Duplicates))
	if stats.Malformed > 0 {
		log.Warn("malformed patch rows dropped", zap.Int("count", stats.Malformed))
	}
	return patches, stats, nil
}

func parsePatchRow(row []string, colIdx map[string]int, cols config.PatchColumns, hasCell bool) (model.Patch, bool) {
	var p model.Patch

	id := getCol(row, colIdx, cols.ID)
	if id == "" {
		return p, false
	}
	if hasCell {
		cell := getCol(row, colIdx, cols.Cell)
		if cell == "" {
			return p, false
		}
		id = cell + "::" + id
	}
	p.ID = id

	lat, err := parseCoord(getCol(row, colIdx, cols.Latitude), -90, 90)
	if err != nil {
		return p, false
	}
	lng, err := parseCoord(getCol(row, colIdx, cols.Longitude), -180, 180)
	if err != nil {
		return p, false
	}
	p.Latitude, p.Longitude = lat, lng

	if cols.Timestamp != "" {
		if raw := getCol(row, colIdx, cols.Timestamp); raw != "" {
			ts, err := parseCaptureTimestamp(raw)
			if err != nil {
				return p, false
			}
			p.CaptureDate = &ts
			p.CaptureYear = ts.Year()
		}
	}
	if cols.Year != "" {
		if raw := getCol(row, colIdx, cols.Year); raw != "" {
			year, err := strconv.Atoi(raw)
			if err != nil {
				return p, false
			}
			p.CaptureYear = year
		}
	}
	if p.CaptureYear < minYear || p.CaptureYear > maxYear {
		return p, false
	}

	cloud, err := strconv.ParseFloat(getCol(row, colIdx, cols.CloudCover), 64)
	if err != nil || math.IsNaN(cloud) {
		return p, false
	}
	if cloud > 1 {
		cloud /= 100
	}
	if cloud < 0 || cloud > 1 {
		return p, false
	}
	p.CloudCover = cloud

	return p, true
}

func parseCaptureTimestamp(raw string) (time.Time, error) {
	for _, layout := range captureTimestampLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, eris.Errorf("patches: unparseable timestamp %q", raw)
}
