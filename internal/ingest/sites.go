package ingest

import (
	"encoding/csv"
	"errors"
	"io"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/verdantic/fieldsat/internal/config"
	"github.com/verdantic/fieldsat/internal/model"
)

// surveyDateLayouts are tried in order against the site date column. The
// sample midpoint in survey exports is an ISO date, sometimes with a time.
var surveyDateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

const (
	minYear = 1900
	maxYear = 2100
)

// LoadSites reads the site table at path. Each survey location appears once
// in the result, keyed either by the configured identifier column or by the
// source/site-number composite; later rows with the same identifier (one row
// per measurement in raw survey exports) collapse into the first.
func LoadSites(path string, cfg config.IngestConfig) ([]model.Site, Stats, error) {
	log := zap.L().With(zap.String("component", "ingest"))
	var stats Stats

	rows, closer, err := openRows(path, cfg.Encoding)
	if err != nil {
		return nil, stats, err
	}
	defer closer.Close()

	header, err := rows.Read()
	if err != nil {
		return nil, stats, eris.Wrap(err, "sites: read header")
	}
	colIdx := headerIndex(header)

	required := []string{cfg.Sites.Latitude, cfg.Sites.Longitude}
	if cfg.Sites.ID != "" {
		required = append(required, cfg.Sites.ID)
	} else {
		required = append(required, cfg.Sites.SourceID, cfg.Sites.SiteNumber)
	}
	if err := requireColumns(colIdx, "sites", required...); err != nil {
		return nil, stats, err
	}
	if cfg.Sites.Date == "" && cfg.Sites.Year == "" {
		return nil, stats, eris.New("sites: no date or year column configured")
	}

	seen := make(map[string]bool)
	var sites []model.Site

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
			return nil, stats, eris.Wrap(err, "sites: read row")
		}
		stats.Rows++

		site, ok := parseSiteRow(row, colIdx, cfg.Sites)
		if !ok {
			stats.Malformed++
			continue
		}
		if seen[site.ID] {
			stats.Duplicates++
			continue
		}
		seen[site.ID] = true
		sites = append(sites, site)
		stats.Loaded++
	}

	log.Info("sites loaded",
		zap.String("path", path),
		zap.Int("rows", stats.Rows),
		zap.Int("loaded", stats.Loaded),
		zap.Int("malformed", stats.Malformed),
		zap.Int("duplicates", stats.Duplicates))
	if stats.Malformed > 0 {
		log.Warn("malformed site rows dropped", zap.Int("count", stats.Malformed))
	}
	return sites, stats, nil
}

func parseSiteRow(row []string, colIdx map[string]int, cols config.SiteColumns) (model.Site, bool) {
	var s model.Site

	if cols.ID != "" {
		s.ID = getCol(row, colIdx, cols.ID)
	} else {
		src := getCol(row, colIdx, cols.SourceID)
		num := getCol(row, colIdx, cols.SiteNumber)
		if src == "" || num == "" {
			return s, false
		}
		s.ID = src + "::" + num
	}
	if s.ID == "" {
		return s, false
	}

	lat, err := parseCoord(getCol(row, colIdx, cols.Latitude), -90, 90)
	if err != nil {
		return s, false
	}
	lng, err := parseCoord(getCol(row, colIdx, cols.Longitude), -180, 180)
	if err != nil {
		return s, false
	}
	s.Latitude, s.Longitude = lat, lng

	if cols.Date != "" {
		if raw := getCol(row, colIdx, cols.Date); raw != "" {
			ts, err := parseSurveyDate(raw)
			if err != nil {
				return s, false
			}
			s.SurveyDate = &ts
			s.SurveyYear = ts.Year()
		}
	}
	if cols.Year != "" {
		if raw := getCol(row, colIdx, cols.Year); raw != "" {
			year, err := strconv.Atoi(raw)
			if err != nil {
				return s, false
			}
			s.SurveyYear = year
		}
	}
	if s.SurveyYear < minYear || s.SurveyYear > maxYear {
		return s, false
	}

	s.LandUse = getCol(row, colIdx, cols.LandUse)
	s.Country = getCol(row, colIdx, cols.Country)
	return s, true
}

func parseSurveyDate(raw string) (time.Time, error) {
	for _, layout := range surveyDateLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, eris.Errorf("sites: unparseable date %q", raw)
}
