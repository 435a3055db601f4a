package matcher

import (
	"math"
	"sort"

	"github.com/verdantic/fieldsat/internal/model"
)

// Summarize derives the read-only statistics projection over a match slice.
// It never fails: empty or all-unmatched input yields a zeroed summary with
// MatchRate 0.
func Summarize(matches []model.Match, opts Options) model.Summary {
	s := model.Summary{
		Sites:            len(matches),
		MalformedSites:   opts.MalformedSites,
		MalformedPatches: opts.MalformedPatches,
	}

	var distances, lags []float64
	for _, m := range matches {
		if !m.Matched {
			s.Unmatched++
			switch m.Reason {
			case model.ReasonNoCandidateInRadius:
				s.NoCandidateInRadius++
			case model.ReasonNonePassedQuality:
				s.NonePassedQuality++
			}
			continue
		}
		s.Matched++
		if m.DistanceKM != nil {
			distances = append(distances, *m.DistanceKM)
		}
		if m.LagYears != nil {
			lags = append(lags, *m.LagYears)
		}
	}

	if s.Sites > 0 {
		s.MatchRate = float64(s.Matched) / float64(s.Sites)
	}
	s.Distance = distanceStats(distances)
	s.Lag = lagStats(lags)
	s.WithinDistanceKM = thresholdCounts(distances, opts.DistanceThresholdsKM)
	s.WithinLagYears = thresholdCounts(lags, opts.LagThresholdsYears)
	return s
}

func distanceStats(values []float64) model.DistanceStats {
	if len(values) == 0 {
		return model.DistanceStats{}
	}
	return model.DistanceStats{
		Mean:   mean(values),
		Median: median(values),
		Std:    stddev(values),
		Min:    minOf(values),
		Max:    maxOf(values),
	}
}

func lagStats(values []float64) model.LagStats {
	if len(values) == 0 {
		return model.LagStats{}
	}
	return model.LagStats{
		Mean:   mean(values),
		Median: median(values),
		Min:    minOf(values),
		Max:    maxOf(values),
	}
}

// thresholdCounts buckets values by "within t" (inclusive), one count per
// configured threshold, in configured order.
func thresholdCounts(values, thresholds []float64) []model.ThresholdCount {
	if len(thresholds) == 0 {
		return nil
	}
	counts := make([]model.ThresholdCount, len(thresholds))
	for i, t := range thresholds {
		counts[i].Threshold = t
		for _, v := range values {
			if v <= t {
				counts[i].Count++
			}
		}
	}
	return counts
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func median(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// stddev is the sample standard deviation; a single value has no spread.
func stddev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	sum := 0.0
	for _, v := range values {
		d := v - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)-1))
}

func minOf(values []float64) float64 {
	out := values[0]
	for _, v := range values[1:] {
		if v < out {
			out = v
		}
	}
	return out
}

func maxOf(values []float64) float64 {
	out := values[0]
	for _, v := range values[1:] {
		if v > out {
			out = v
		}
	}
	return out
}
