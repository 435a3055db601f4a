package export

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"

	"github.com/verdantic/fieldsat/internal/model"
)

// Report bundles what a run produced for the JSON export.
type Report struct {
	Run     *model.Run    `json:"run,omitempty"`
	Summary model.Summary `json:"summary"`
	Matches []model.Match `json:"matches"`
}

// WriteJSON writes the full run report as indented JSON. Unmatched rows keep
// explicit null distance and lag fields.
func WriteJSON(report Report, outputPath string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return eris.Wrap(err, "export: marshal report")
	}
	data = append(data, '\n')
	if err := os.WriteFile(outputPath, data, 0o644); err != nil {
		return eris.Wrap(err, "export: write json")
	}
	return nil
}
