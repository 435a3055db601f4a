package matcher

import (
	"math"

	"github.com/verdantic/fieldsat/internal/model"
)

// candidate couples a patch with the per-site quantities it is ranked on.
type candidate struct {
	patch      *model.Patch
	distanceKM float64
	lagYears   float64
}

// better reports whether a beats b under the policy. The order is total:
// after the policy's keys (distance/lag/cloud in policy order) any remaining
// tie falls through to the lowest patch identifier, so a single deterministic
// winner always exists.
func better(a, b candidate, policy model.PriorityPolicy) bool {
	var ka, kb [3]float64
	switch policy {
	case model.PolicyTemporalFirst:
		ka = [3]float64{a.lagYears, a.distanceKM, a.patch.CloudCover}
		kb = [3]float64{b.lagYears, b.distanceKM, b.patch.CloudCover}
	default:
		ka = [3]float64{a.distanceKM, a.lagYears, a.patch.CloudCover}
		kb = [3]float64{b.distanceKM, b.lagYears, b.patch.CloudCover}
	}

	for i := range ka {
		if ka[i] != kb[i] {
			return ka[i] < kb[i]
		}
	}
	return a.patch.ID < b.patch.ID
}

// lagYears returns the absolute survey-to-capture offset in years. Full dates
// on both sides give day resolution (days / 365.25); otherwise whole calendar
// years.
func lagYears(site *model.Site, patch *model.Patch) float64 {
	if site.SurveyDate != nil && patch.CaptureDate != nil {
		days := math.Abs(patch.CaptureDate.Sub(*site.SurveyDate).Hours() / 24)
		return days / 365.25
	}
	return math.Abs(float64(patch.CaptureYear - site.SurveyYear))
}
