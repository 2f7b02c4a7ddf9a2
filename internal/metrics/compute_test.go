package metrics

import (
	"math"
	"testing"
)

const eps = 1e-9

func TestMean(t *testing.T) {
	if got := Mean([]float64{1, 2, 3, 4}); math.Abs(got-2.5) > eps {
		t.Errorf("expected 2.5, got %f", got)
	}
	if got := Mean(nil); got != 0 {
		t.Errorf("expected 0 for empty input, got %f", got)
	}
}

func TestStddev_SampleVsPopulation(t *testing.T) {
	values := []float64{2, 4, 4, 4, 5, 5, 7, 9}

	// Population variance = 4, sample variance = 32/7
	if got := PopulationStddev(values); math.Abs(got-2) > eps {
		t.Errorf("expected population stddev 2, got %f", got)
	}
	want := math.Sqrt(32.0 / 7.0)
	if got := SampleStddev(values); math.Abs(got-want) > eps {
		t.Errorf("expected sample stddev %f, got %f", want, got)
	}
	if got := SampleStddev([]float64{3}); got != 0 {
		t.Errorf("expected 0 for single sample, got %f", got)
	}
}

func TestPercentile_LinearInterpolation(t *testing.T) {
	sorted := []float64{1, 2, 3, 4, 5}

	tests := []struct {
		p    float64
		want float64
	}{
		{0.0, 1},
		{0.10, 1.4},
		{0.50, 3},
		{0.90, 4.6},
		{1.0, 5},
	}
	for _, tt := range tests {
		if got := Percentile(sorted, tt.p); math.Abs(got-tt.want) > eps {
			t.Errorf("p=%.2f: expected %f, got %f", tt.p, tt.want, got)
		}
	}

	if got := Percentile([]float64{7}, 0.9); got != 7 {
		t.Errorf("single value: expected 7, got %f", got)
	}
	if got := Percentile(Sorted([]float64{5, 1, 3}), 0.5); got != 3 {
		t.Errorf("unsorted input: expected 3, got %f", got)
	}
}

func TestCompoundedDrawdown(t *testing.T) {
	// Wealth: 1.10, 0.99, 1.089 -> peak 1.10, trough 0.99 -> -10%
	got := CompoundedDrawdown([]float64{0.10, -0.10, 0.10})
	if math.Abs(got-(-0.10)) > eps {
		t.Errorf("expected -0.10, got %f", got)
	}

	if got := CompoundedDrawdown([]float64{0.01, 0.02, 0.03}); got != 0 {
		t.Errorf("monotonic gains: expected 0, got %f", got)
	}

	if got := CompoundedDrawdown([]float64{-1.0, 0.5}); got != -1 {
		t.Errorf("total loss: expected -1, got %f", got)
	}
}

func TestCompoundedDrawdown_Bounds(t *testing.T) {
	series := [][]float64{
		{-0.5, -0.5, -0.5},
		{0.2, -0.9, 3.0, -0.2},
		{-0.01},
		{},
	}
	for i, s := range series {
		dd := CompoundedDrawdown(s)
		if dd > 0 || dd < -1 {
			t.Errorf("series %d: drawdown %f outside [-1, 0]", i, dd)
		}
	}
}

func TestWinRate(t *testing.T) {
	if got := WinRate([]float64{0.01, -0.02, 0, 0.03}); math.Abs(got-0.5) > eps {
		t.Errorf("expected 0.5 (zero is not a win), got %f", got)
	}
	if got := WinRate(nil); got != 0 {
		t.Errorf("expected 0 for empty input, got %f", got)
	}
}

func TestPearson(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5}
	if got := Pearson(x, []float64{2, 4, 6, 8, 10}); math.Abs(got-1) > eps {
		t.Errorf("expected 1, got %f", got)
	}
	if got := Pearson(x, []float64{5, 4, 3, 2, 1}); math.Abs(got+1) > eps {
		t.Errorf("expected -1, got %f", got)
	}
	if got := Pearson(x, []float64{3, 3, 3, 3, 3}); !math.IsNaN(got) {
		t.Errorf("zero variance: expected NaN, got %f", got)
	}
	if got := Pearson(x, x[:3]); !math.IsNaN(got) {
		t.Errorf("length mismatch: expected NaN, got %f", got)
	}
}

func TestFiniteAndRound(t *testing.T) {
	got := Finite([]float64{1, math.NaN(), 2, math.Inf(1)})
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("unexpected finite values: %v", got)
	}

	if r := Round(1.23456, 2); r != 1.23 {
		t.Errorf("expected 1.23, got %v", r)
	}
	if r := Round(-12.3456, 1); r != -12.3 {
		t.Errorf("expected -12.3, got %v", r)
	}
	if !math.IsNaN(Round(math.NaN(), 2)) {
		t.Error("expected NaN to pass through")
	}
}

func TestMinMax(t *testing.T) {
	lo, hi := MinMax([]float64{3, -1, 7, 2})
	if lo != -1 || hi != 7 {
		t.Errorf("expected (-1, 7), got (%f, %f)", lo, hi)
	}
}
