package chart

import (
	"math"
	"testing"

	"github.com/mrcode/fpu-scheduler/internal/models"
)

const epsilon = 1e-9

func TestFit_RequiresSplitting(t *testing.T) {
	f := Fit([]float64{5, 0, 40, 100}, models.DefaultChartConfig())

	if f.Min != 5 || f.Max != 100 {
		t.Errorf("Min/Max = %v/%v, want 5/100", f.Min, f.Max)
	}
	if math.Abs(f.RegularMultiplier-1.2) > epsilon {
		t.Errorf("RegularMultiplier = %v, want 1.2", f.RegularMultiplier)
	}
	if !f.RequiresSplitting {
		t.Fatal("RequiresSplitting = false, want true (5 * 1.2 = 6 < 20)")
	}
	if math.Abs(f.AppliedMultiplier-4) > epsilon {
		t.Errorf("AppliedMultiplier = %v, want 4", f.AppliedMultiplier)
	}
	if math.Abs(f.TheoreticalMaxBarHeight-120) > epsilon {
		t.Errorf("TheoreticalMaxBarHeight = %v, want 120", f.TheoreticalMaxBarHeight)
	}
	if math.Abs(f.MaxWithoutSplitting-6) > epsilon {
		t.Errorf("MaxWithoutSplitting = %v, want 6", f.MaxWithoutSplitting)
	}
}

func TestFit_NoSplitting(t *testing.T) {
	f := Fit([]float64{30, 60}, models.DefaultChartConfig())

	if f.RequiresSplitting {
		t.Error("RequiresSplitting = true, want false (30 * 2 = 60 >= 20)")
	}
	if math.Abs(f.AppliedMultiplier-2) > epsilon {
		t.Errorf("AppliedMultiplier = %v, want 2", f.AppliedMultiplier)
	}
	if got := f.BarHeight(60); math.Abs(got-120) > epsilon {
		t.Errorf("BarHeight(60) = %v, want 120", got)
	}
	if f.IsSplit(60) {
		t.Error("IsSplit(60) = true without splitting")
	}
}

func TestFit_Empty(t *testing.T) {
	f := Fit([]float64{0, 0}, models.DefaultChartConfig())

	if f.RequiresSplitting || f.AppliedMultiplier != 0 {
		t.Errorf("Fit(zeros) = %+v, want zero multipliers", f)
	}
	if f.BarHeight(0) != 0 {
		t.Error("BarHeight(0) should be 0")
	}
}

func TestFitting_BarHeight(t *testing.T) {
	f := Fit([]float64{5, 100}, models.DefaultChartConfig())

	tests := []struct {
		name      string
		value     float64
		wantH     float64
		wantSplit bool
	}{
		{"Smallest bar raised to min height", 5, 20, true},
		{"Just under min height", 16, 20, true},
		{"Regular scale", 30, 36, false},
		{"Half of max", 50, 60, false},
		{"Largest fills preview", 100, 120, false},
		{"Zero", 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.BarHeight(tt.value); math.Abs(got-tt.wantH) > epsilon {
				t.Errorf("BarHeight(%v) = %v, want %v", tt.value, got, tt.wantH)
			}
			if got := f.IsSplit(tt.value); got != tt.wantSplit {
				t.Errorf("IsSplit(%v) = %v, want %v", tt.value, got, tt.wantSplit)
			}
		})
	}
}

func TestFitting_BarHeightNeverDecreases(t *testing.T) {
	configs := []struct {
		name   string
		values []float64
	}{
		{"Splitting", []float64{5, 100}},
		{"Heavy splitting", []float64{0.5, 250}},
		{"No splitting", []float64{30, 60}},
	}

	for _, tc := range configs {
		t.Run(tc.name, func(t *testing.T) {
			f := Fit(tc.values, models.DefaultChartConfig())
			maxVal := tc.values[len(tc.values)-1]

			prev := 0.0
			for i := 0; i <= 1000; i++ {
				v := maxVal * float64(i) / 1000
				h := f.BarHeight(v)
				if h < prev-epsilon {
					t.Fatalf("BarHeight(%v) = %v, below previous %v", v, h, prev)
				}
				if h > f.PreviewHeight+epsilon {
					t.Fatalf("BarHeight(%v) = %v, exceeds preview %v", v, h, f.PreviewHeight)
				}
				prev = h
			}
		})
	}
}
