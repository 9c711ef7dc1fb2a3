package acoustic

import (
	"errors"
	"fmt"
	"math"
)

var (
	errMissingStat   = errors.New("missing statistic")
	errZeroReference = errors.New("zero reference statistic")
	errNonFinite     = errors.New("non-finite statistic")
)

// Category describes how one group of statistics contributes to a match.
type Category struct {
	Name      string
	Field     string
	Tolerance float64
	Weight    float64
	stats     func(Bundle) Stats
}

// Categories is the fixed weighting table. Weights sum to 1.
var Categories = []Category{
	{Name: "f0_stats", Field: "mean", Tolerance: 0.30, Weight: 0.35, stats: func(b Bundle) Stats { return b.F0Stats }},
	{Name: "spectral_stats", Field: "centroid_mean", Tolerance: 0.40, Weight: 0.25, stats: func(b Bundle) Stats { return b.SpectralStats }},
	{Name: "mfcc_stats", Field: "mean", Tolerance: 0.40, Weight: 0.25, stats: func(b Bundle) Stats { return b.MFCCStats }},
	{Name: "voice_characteristics", Field: "formant_mean", Tolerance: 0.40, Weight: 0.15, stats: func(b Bundle) Stats { return b.VoiceCharacteristics }},
}

// Score is the per-category breakdown of a match.
type Score struct {
	Total      float64
	Categories map[string]float64
}

// Match compares a live bundle against the enrolled reference and returns the
// weighted score. Any failure (missing statistic, zero reference) degrades the
// whole match to 0.
func Match(live, reference Bundle) float64 {
	s, err := Explain(live, reference)
	if err != nil {
		return 0
	}
	return s.Total
}

// Explain is Match with the per-category breakdown and the reason a match failed.
func Explain(live, reference Bundle) (Score, error) {
	out := Score{Categories: make(map[string]float64, len(Categories))}
	for _, c := range Categories {
		v, err := c.score(live, reference)
		if err != nil {
			return Score{}, fmt.Errorf("%s.%s: %w", c.Name, c.Field, err)
		}
		out.Categories[c.Name] = v
		out.Total += v * c.Weight
	}
	return out, nil
}

// score computes max(0, 1 - |live - ref| / (ref * tolerance)). The reference
// value scales the tolerance, so the error is relative to what was enrolled.
func (c Category) score(live, reference Bundle) (float64, error) {
	v1, ok := c.stats(live)[c.Field]
	if !ok {
		return 0, errMissingStat
	}
	v2, ok := c.stats(reference)[c.Field]
	if !ok {
		return 0, errMissingStat
	}
	if math.IsNaN(v1) || math.IsInf(v1, 0) || math.IsNaN(v2) || math.IsInf(v2, 0) {
		return 0, errNonFinite
	}
	if v2 == 0 {
		return 0, errZeroReference
	}
	return math.Max(0, 1-math.Abs(v1-v2)/(v2*c.Tolerance)), nil
}
