package engine

// Rolling composite indices. Each date is normalized against the trailing
// percentile window of its own metric, so the composite tracks how today
// compares with the repo's recent self rather than an absolute scale. The
// baseline is recomputed for every point; nothing is persisted.

// DefaultWindowDays is the trailing window used when a caller passes a
// non-positive window.
const DefaultWindowDays = 180

// VitalityComposite blends the activity-side signals.
var VitalityComposite = CompositeSpec{
	Name: "vitality",
	Metrics: []CompositeMetric{
		{Key: "metric_activity", Weight: 0.45, HigherIsBetter: true},
		{Key: "metric_openrank", Weight: 0.25, HigherIsBetter: true},
		{Key: "metric_participants", Weight: 0.20, HigherIsBetter: true},
		{Key: "metric_attention", Weight: 0.10, HigherIsBetter: true},
	},
}

// ResponsivenessComposite blends the latency signals; lower raw values are
// better for all four.
var ResponsivenessComposite = CompositeSpec{
	Name: "responsiveness",
	Metrics: []CompositeMetric{
		{Key: "metric_issue_response_time_h", Weight: 0.30, HigherIsBetter: false},
		{Key: "metric_pr_response_time_h", Weight: 0.30, HigherIsBetter: false},
		{Key: "metric_issue_resolution_duration_h", Weight: 0.20, HigherIsBetter: false},
		{Key: "metric_pr_resolution_duration_h", Weight: 0.20, HigherIsBetter: false},
	},
}

// ResilienceComposite blends concentration and retention signals with mixed
// directions.
var ResilienceComposite = CompositeSpec{
	Name: "resilience",
	Metrics: []CompositeMetric{
		{Key: "metric_bus_factor", Weight: 0.35, HigherIsBetter: true},
		{Key: "metric_top1_share", Weight: 0.25, HigherIsBetter: false},
		{Key: "metric_hhi", Weight: 0.20, HigherIsBetter: false},
		{Key: "metric_retention_rate", Weight: 0.20, HigherIsBetter: true},
	},
}

// CompositeSpecByName resolves one of the three built-in composites.
func CompositeSpecByName(name string) (CompositeSpec, bool) {
	switch name {
	case VitalityComposite.Name:
		return VitalityComposite, true
	case ResponsivenessComposite.Name:
		return ResponsivenessComposite, true
	case ResilienceComposite.Name:
		return ResilienceComposite, true
	default:
		return CompositeSpec{}, false
	}
}

// trailingWindow collects the present values of one metric over
// [i-windowDays+1, i], clipped at the series start.
func trailingWindow(series []*float64, i, windowDays int) []float64 {
	start := i - windowDays + 1
	if start < 0 {
		start = 0
	}
	out := make([]float64, 0, i-start+1)
	for _, v := range series[start : i+1] {
		if v != nil {
			out = append(out, *v)
		}
	}
	return out
}

// ComputeCompositeSeries computes one composite index over an ordered,
// date-keyed metric series. For every date each component is normalized
// against its own trailing 10th/90th percentile window, then the normalized
// sub-scores are blended with the component weights, renormalized over present
// components. A window of one sample collapses to the neutral midpoint; a
// metric absent across the whole window contributes nil and drops out.
func ComputeCompositeSeries(rows []SeriesRow, windowDays int, spec CompositeSpec) CompositeResult {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}

	weights := make(map[string]float64, len(spec.Metrics))
	for _, cm := range spec.Metrics {
		weights[cm.Key] = cm.Weight
	}

	// Column-major view of the series, one slice per component metric.
	cols := make(map[string][]*float64, len(spec.Metrics))
	for _, cm := range spec.Metrics {
		col := make([]*float64, len(rows))
		for i, row := range rows {
			col[i] = row.Values[cm.Key]
		}
		cols[cm.Key] = col
	}

	normalizeAt := func(cm CompositeMetric, i int) *float64 {
		win := trailingWindow(cols[cm.Key], i, windowDays)
		lo, hi := PercentileBounds(win)
		return PercentileNormalize(cols[cm.Key][i], lo, hi, cm.HigherIsBetter)
	}

	series := make([]CompositePoint, 0, len(rows))
	for i, row := range rows {
		scores := make([]*float64, len(spec.Metrics))
		ws := make([]float64, len(spec.Metrics))
		for j, cm := range spec.Metrics {
			scores[j] = normalizeAt(cm, i)
			ws[j] = cm.Weight
		}
		series = append(series, CompositePoint{Dt: row.Dt, Value: WeightedAvg(scores, ws)})
	}

	latest := make(map[string]ComponentExplain, len(spec.Metrics))
	if len(rows) > 0 {
		last := len(rows) - 1
		for _, cm := range spec.Metrics {
			latest[cm.Key] = ComponentExplain{
				Raw:    cols[cm.Key][last],
				Score:  normalizeAt(cm, last),
				Weight: cm.Weight,
			}
		}
	}

	return CompositeResult{Series: series, Weights: weights, ComponentsLatest: latest}
}
