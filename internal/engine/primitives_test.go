package engine

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClamp(t *testing.T) {
	tests := []struct {
		name     string
		input    *float64
		expected *float64
	}{
		{
			name:     "nil input returns nil",
			input:    nil,
			expected: nil,
		},
		{
			name:     "NaN input returns nil",
			input:    Ptr(math.NaN()),
			expected: nil,
		},
		{
			name:     "value in range is unchanged",
			input:    Ptr(42.5),
			expected: Ptr(42.5),
		},
		{
			name:     "value below range clips to 0",
			input:    Ptr(-3),
			expected: Ptr(0),
		},
		{
			name:     "value above range clips to 100",
			input:    Ptr(250),
			expected: Ptr(100),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Clamp(tt.input)
			if tt.expected == nil {
				assert.Nil(t, result)
				return
			}
			require.NotNil(t, result)
			assert.InDelta(t, *tt.expected, *result, 1e-9)
		})
	}
}

func TestLogScore(t *testing.T) {
	tests := []struct {
		name     string
		input    *float64
		expected *float64
	}{
		{
			name:     "nil input returns nil",
			input:    nil,
			expected: nil,
		},
		{
			name:     "zero returns nil",
			input:    Ptr(0),
			expected: nil,
		},
		{
			name:     "negative returns nil",
			input:    Ptr(-5),
			expected: nil,
		},
		{
			name:     "small counter compresses",
			input:    Ptr(10),
			expected: Ptr(18 * math.Log(11)),
		},
		{
			name:     "huge counter saturates at 100",
			input:    Ptr(1e9),
			expected: Ptr(100),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := LogScore(tt.input)
			if tt.expected == nil {
				assert.Nil(t, result)
				return
			}
			require.NotNil(t, result)
			assert.InDelta(t, *tt.expected, *result, 1e-9)
		})
	}
}

func TestGrowthScore(t *testing.T) {
	tests := []struct {
		name     string
		current  *float64
		previous *float64
		expected *float64
	}{
		{
			name:     "missing current returns nil",
			current:  nil,
			previous: Ptr(100),
			expected: nil,
		},
		{
			name:     "missing previous returns nil",
			current:  Ptr(100),
			previous: nil,
			expected: nil,
		},
		{
			name:     "20 percent growth scores 40",
			current:  Ptr(120),
			previous: Ptr(100),
			expected: Ptr(40),
		},
		{
			name:     "flat period scores one third",
			current:  Ptr(100),
			previous: Ptr(100),
			expected: Ptr(100.0 / 3.0),
		},
		{
			name:     "total collapse floors at 0",
			current:  Ptr(0),
			previous: Ptr(100),
			expected: Ptr(0),
		},
		{
			name:     "explosive growth caps at 100",
			current:  Ptr(1000),
			previous: Ptr(10),
			expected: Ptr(100),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := GrowthScore(tt.current, tt.previous)
			if tt.expected == nil {
				assert.Nil(t, result)
				return
			}
			require.NotNil(t, result)
			assert.InDelta(t, *tt.expected, *result, 1e-6)
		})
	}
}

func TestTimeScore(t *testing.T) {
	tests := []struct {
		name     string
		hours    *float64
		good     float64
		bad      float64
		expected *float64
	}{
		{
			name:     "nil hours returns nil",
			hours:    nil,
			good:     24,
			bad:      168,
			expected: nil,
		},
		{
			name:     "at good threshold scores 100",
			hours:    Ptr(24),
			good:     24,
			bad:      168,
			expected: Ptr(100),
		},
		{
			name:     "at bad threshold scores 0",
			hours:    Ptr(168),
			good:     24,
			bad:      168,
			expected: Ptr(0),
		},
		{
			name:     "exact midpoint scores 50",
			hours:    Ptr(96),
			good:     24,
			bad:      168,
			expected: Ptr(50),
		},
		{
			name:     "under good scores 100",
			hours:    Ptr(1),
			good:     24,
			bad:      168,
			expected: Ptr(100),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := TimeScore(tt.hours, tt.good, tt.bad)
			if tt.expected == nil {
				assert.Nil(t, result)
				return
			}
			require.NotNil(t, result)
			assert.InDelta(t, *tt.expected, *result, 1e-9)
		})
	}
}

func TestWeightedAvg(t *testing.T) {
	tests := []struct {
		name     string
		scores   []*float64
		weights  []float64
		expected *float64
	}{
		{
			name:     "empty inputs return nil",
			scores:   []*float64{},
			weights:  []float64{},
			expected: nil,
		},
		{
			name:     "all nil scores return nil",
			scores:   []*float64{nil, nil},
			weights:  []float64{0.6, 0.4},
			expected: nil,
		},
		{
			name:     "weights renormalize over present data",
			scores:   []*float64{Ptr(80), nil},
			weights:  []float64{0.6, 0.4},
			expected: Ptr(80),
		},
		{
			name:     "security example renormalizes to 71.25",
			scores:   []*float64{Ptr(80), nil, Ptr(10)},
			weights:  []float64{0.7, 0.2, 0.1},
			expected: Ptr(71.25),
		},
		{
			name:     "plain weighted average",
			scores:   []*float64{Ptr(100), Ptr(0)},
			weights:  []float64{0.75, 0.25},
			expected: Ptr(75),
		},
		{
			name:     "zero total weight returns nil",
			scores:   []*float64{Ptr(50), Ptr(60)},
			weights:  []float64{0, 0},
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := WeightedAvg(tt.scores, tt.weights)
			if tt.expected == nil {
				assert.Nil(t, result)
				return
			}
			require.NotNil(t, result)
			assert.InDelta(t, *tt.expected, *result, 1e-9)
		})
	}
}

func TestPercentile(t *testing.T) {
	tests := []struct {
		name     string
		values   []float64
		pct      float64
		expected *float64
	}{
		{
			name:     "empty sample returns nil",
			values:   []float64{},
			pct:      50,
			expected: nil,
		},
		{
			name:     "single value is every percentile",
			values:   []float64{7},
			pct:      90,
			expected: Ptr(7),
		},
		{
			name:     "median of odd sample",
			values:   []float64{3, 1, 2},
			pct:      50,
			expected: Ptr(2),
		},
		{
			name:     "p10 interpolates between ranks",
			values:   []float64{10, 20, 30},
			pct:      10,
			expected: Ptr(12),
		},
		{
			name:     "p90 interpolates between ranks",
			values:   []float64{10, 20, 30},
			pct:      90,
			expected: Ptr(28),
		},
		{
			name:     "NaN entries are discarded",
			values:   []float64{math.NaN(), 5},
			pct:      50,
			expected: Ptr(5),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Percentile(tt.values, tt.pct)
			if tt.expected == nil {
				assert.Nil(t, result)
				return
			}
			require.NotNil(t, result)
			assert.InDelta(t, *tt.expected, *result, 1e-9)
		})
	}
}

func TestPercentileNormalize(t *testing.T) {
	lo, hi := Ptr(10), Ptr(90)

	t.Run("nil value returns nil", func(t *testing.T) {
		assert.Nil(t, PercentileNormalize(nil, lo, hi, true))
	})

	t.Run("nil bounds return nil", func(t *testing.T) {
		assert.Nil(t, PercentileNormalize(Ptr(50), nil, hi, true))
		assert.Nil(t, PercentileNormalize(Ptr(50), lo, nil, true))
	})

	t.Run("degenerate bounds return neutral midpoint in both directions", func(t *testing.T) {
		for _, higher := range []bool{true, false} {
			result := PercentileNormalize(Ptr(42), Ptr(7), Ptr(7), higher)
			require.NotNil(t, result)
			assert.Equal(t, neutralMidpoint, *result)
		}
	})

	t.Run("monotonic non-decreasing when higher is better", func(t *testing.T) {
		prev := -1.0
		for v := 0.0; v <= 100; v += 5 {
			result := PercentileNormalize(Ptr(v), lo, hi, true)
			require.NotNil(t, result)
			assert.GreaterOrEqual(t, *result, prev)
			assert.False(t, math.IsNaN(*result))
			prev = *result
		}
	})

	t.Run("monotonic non-increasing when lower is better", func(t *testing.T) {
		prev := 101.0
		for v := 0.0; v <= 100; v += 5 {
			result := PercentileNormalize(Ptr(v), lo, hi, false)
			require.NotNil(t, result)
			assert.LessOrEqual(t, *result, prev)
			prev = *result
		}
	})

	t.Run("values outside bounds clip to the scale ends", func(t *testing.T) {
		low := PercentileNormalize(Ptr(-100), lo, hi, true)
		high := PercentileNormalize(Ptr(1000), lo, hi, true)
		require.NotNil(t, low)
		require.NotNil(t, high)
		assert.Equal(t, 0.0, *low)
		assert.Equal(t, 100.0, *high)
	})
}

func TestFreshness(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("unknown update time scores the floor", func(t *testing.T) {
		assert.Equal(t, 0.6, Freshness(now, nil))
	})

	t.Run("just updated scores 1", func(t *testing.T) {
		updated := now
		assert.InDelta(t, 1.0, Freshness(now, &updated), 1e-9)
	})

	t.Run("30 days old decays to 1/e", func(t *testing.T) {
		updated := now.AddDate(0, 0, -30)
		assert.InDelta(t, math.Exp(-1), Freshness(now, &updated), 1e-9)
	})

	t.Run("future timestamps do not exceed 1", func(t *testing.T) {
		updated := now.AddDate(0, 0, 7)
		assert.Equal(t, 1.0, Freshness(now, &updated))
	})
}
