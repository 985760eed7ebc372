package engine

import (
	"math"
	"sort"
	"time"
)

// Missing values travel through the engine as nil *float64. Every primitive
// maps nil (and NaN) input to nil output instead of raising; the weighted
// averages renormalize over whatever survived.

// neutralMidpoint is returned when a percentile baseline is degenerate
// (all window values equal, or a cohort of one).
const neutralMidpoint = 50.0

// Ptr boxes a float for the nullable score fields.
func Ptr(v float64) *float64 { return &v }

// val unwraps a nullable, treating absence as zero. Only for formulas that
// deliberately score a missing side as 0 once its sibling is present.
func val(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

func clip(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// Clamp clips to [0,100]. nil or NaN in, nil out.
func Clamp(v *float64) *float64 {
	return ClampTo(v, 0, 100)
}

// ClampTo clips to [lo,hi]. nil or NaN in, nil out.
func ClampTo(v *float64, lo, hi float64) *float64 {
	if v == nil || math.IsNaN(*v) {
		return nil
	}
	return Ptr(clip(*v, lo, hi))
}

// LogScore compresses a heavy-tailed counter (OpenRank, commit volume) into a
// bounded score with diminishing returns: clamp(18*ln(1+v)). Non-positive
// counters score nil, not zero.
func LogScore(v *float64) *float64 {
	if v == nil || *v <= 0 {
		return nil
	}
	return Clamp(Ptr(18 * math.Log(1+*v)))
}

// GrowthScore maps a period-over-period ratio onto 0-100: ratio -1 scores 0,
// flat scores 33.3, ratio +2 (or beyond) scores 100.
func GrowthScore(current, previous *float64) *float64 {
	if current == nil || previous == nil {
		return nil
	}
	ratio := (*current - *previous) / math.Max(1, *previous)
	ratio = clip(ratio, -1, 2)
	return Clamp(Ptr(100 * (ratio + 1) / 3))
}

// TimeScore scores a latency-like metric where lower is better: 100 at or
// under the good threshold, 0 at or over the bad one, linear in between.
func TimeScore(hours *float64, good, bad float64) *float64 {
	if hours == nil {
		return nil
	}
	if *hours <= good {
		return Ptr(100)
	}
	if *hours >= bad {
		return Ptr(0)
	}
	return Clamp(Ptr(100 * (bad - *hours) / (bad - good)))
}

// WeightedAvg averages the scores, dropping nil entries and renormalizing the
// weights over present data only. All-nil (or zero total weight) yields nil.
// This is the engine's missing-data tolerance mechanism.
func WeightedAvg(scores []*float64, weights []float64) *float64 {
	totalW := 0.0
	for _, w := range weights {
		totalW += w
	}
	if totalW <= 0 {
		return nil
	}
	acc := 0.0
	effW := 0.0
	for i, s := range scores {
		if i >= len(weights) || s == nil {
			continue
		}
		acc += *s * weights[i]
		effW += weights[i]
	}
	if effW == 0 {
		return nil
	}
	return Ptr(acc / effW)
}

// Percentile returns the pct-th percentile of values using linear
// interpolation between closest ranks. NaN entries are discarded; an empty
// sample yields nil.
func Percentile(values []float64, pct float64) *float64 {
	arr := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			arr = append(arr, v)
		}
	}
	if len(arr) == 0 {
		return nil
	}
	sort.Float64s(arr)
	k := float64(len(arr)-1) * pct / 100.0
	f := math.Floor(k)
	c := math.Ceil(k)
	if f == c {
		return Ptr(arr[int(k)])
	}
	return Ptr(arr[int(f)]*(c-k) + arr[int(c)]*(k-f))
}

// PercentileBounds returns the 10th and 90th percentile of a cohort, the
// standard normalization baseline.
func PercentileBounds(values []float64) (lo, hi *float64) {
	return Percentile(values, 10), Percentile(values, 90)
}

// PercentileNormalize maps value onto 0-100 against a [lo,hi] percentile
// baseline. Direction-aware: with higherIsBetter=false the scale flips.
// A degenerate baseline (lo == hi) scores the neutral midpoint rather than
// erroring, so a window of one sample stays usable.
func PercentileNormalize(value, lo, hi *float64, higherIsBetter bool) *float64 {
	if value == nil || lo == nil || hi == nil {
		return nil
	}
	if *hi == *lo {
		return Ptr(neutralMidpoint)
	}
	t := clip((*value-*lo)/(*hi-*lo), 0, 1)
	if !higherIsBetter {
		t = 1 - t
	}
	return Ptr(t * 100)
}

// Freshness decays with the age of the most recent update: exp(-days/30),
// i.e. a half-life of roughly one month. Unknown update times score the 0.6
// floor the readiness blend applies anyway.
func Freshness(now time.Time, updatedAt *time.Time) float64 {
	if updatedAt == nil {
		return 0.6
	}
	days := now.Sub(*updatedAt).Hours() / 24
	if days < 0 {
		days = 0
	}
	return clip(math.Exp(-days/30.0), 0, 1)
}
