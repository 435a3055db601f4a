// Package export writes a run's match table to downstream consumers: CSV and
// JSON files for the plotting scripts, and PostgreSQL bulk load for shared
// analysis databases.
package export

import (
	"encoding/csv"
	"os"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/verdantic/fieldsat/internal/model"
)

// matchColumns is the fixed CSV column order downstream tooling expects.
var matchColumns = []string{
	"site_id",
	"patch_id",
	"distance_km",
	"lag_years",
	"land_use",
	"matched",
	"reason",
}

// WriteCSV writes the match table to outputPath, one row per site in run
// order. Unmatched rows leave patch and number cells empty.
func WriteCSV(matches []model.Match, outputPath string) error {
	f, err := os.Create(outputPath)
	if err != nil {
		return eris.Wrap(err, "export: create csv")
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write(matchColumns); err != nil {
		return eris.Wrap(err, "export: write csv header")
	}

	for i := range matches {
		if err := w.Write(buildMatchRow(&matches[i])); err != nil {
			return eris.Wrapf(err, "export: write csv row for site %s", matches[i].SiteID)
		}
	}

	w.Flush()
	return eris.Wrap(w.Error(), "export: flush csv")
}

// buildMatchRow maps a Match to a CSV row in matchColumns order.
func buildMatchRow(m *model.Match) []string {
	return []string{
		m.SiteID,
		m.PatchID,
		floatCell(m.DistanceKM),
		floatCell(m.LagYears),
		m.LandUse,
		strconv.FormatBool(m.Matched),
		string(m.Reason),
	}
}

// floatCell renders a nullable float with the shortest exact representation,
// so re-exports are byte-identical.
func floatCell(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
