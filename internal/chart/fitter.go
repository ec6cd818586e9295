// Package chart scales and renders a carbs regime as a bar chart
package chart

import (
	"math"

	"github.com/samber/lo"

	"github.com/mrcode/fpu-scheduler/internal/models"
	"github.com/mrcode/fpu-scheduler/internal/regime"
)

// Fitting holds the pixel scaling of a regime's bars
type Fitting struct {
	PreviewHeight float64 `json:"previewHeight"`
	MinBarHeight  float64 `json:"minBarHeight"`
	Min           float64 `json:"min"` // Smallest non-zero value
	Max           float64 `json:"max"` // Largest value

	RegularMultiplier float64 `json:"regularMultiplier"` // previewHeight / max
	AppliedMultiplier float64 `json:"appliedMultiplier"`
	RequiresSplitting bool    `json:"requiresSplitting"`

	// Only set when RequiresSplitting
	TheoreticalMaxBarHeight float64 `json:"theoreticalMaxBarHeight"`
	MaxWithoutSplitting     float64 `json:"maxWithoutSplitting"`
}

// FitRegime fits all non-zero entries of the regime
func FitRegime(r *regime.Regime, cfg models.ChartConfig) Fitting {
	return Fit(r.NonZeroValues(), cfg)
}

// Fit computes the multipliers for values. Zero and negative values are ignored;
// with nothing to show the multipliers stay zero.
func Fit(values []float64, cfg models.ChartConfig) Fitting {
	f := Fitting{
		PreviewHeight: cfg.PreviewHeight,
		MinBarHeight:  cfg.MinBarHeight,
	}

	positive := lo.Filter(values, func(v float64, _ int) bool {
		return v > 0
	})
	if len(positive) == 0 {
		return f
	}
	f.Min = lo.Min(positive)
	f.Max = lo.Max(positive)

	f.RegularMultiplier = f.PreviewHeight / f.Max
	if f.Min*f.RegularMultiplier < f.MinBarHeight {
		f.RequiresSplitting = true
		f.AppliedMultiplier = f.MinBarHeight / f.Min
		f.TheoreticalMaxBarHeight = f.RegularMultiplier * f.Max
		f.MaxWithoutSplitting = f.PreviewHeight / f.MinBarHeight
	} else {
		f.AppliedMultiplier = f.RegularMultiplier
	}
	return f
}

// SplitBarHeight is the regular-scale height of a value on a split chart
func (f Fitting) SplitBarHeight(value float64) float64 {
	return f.PreviewHeight - (f.TheoreticalMaxBarHeight - value*f.RegularMultiplier)
}

// IsSplit returns true if the value's regular-scale height falls below the
// minimum bar height, so its bar is raised and drawn with a split marker
func (f Fitting) IsSplit(value float64) bool {
	return f.RequiresSplitting && value > 0 && value*f.RegularMultiplier < f.MinBarHeight
}

// BarHeight returns the drawn height of a value in pixels. Heights never
// decrease with the value: split bars are raised to MinBarHeight, all others
// use the regular scale so the largest value fills the preview.
func (f Fitting) BarHeight(value float64) float64 {
	if value <= 0 {
		return 0
	}
	if !f.RequiresSplitting {
		return value * f.AppliedMultiplier
	}
	if f.IsSplit(value) {
		return math.Max(f.SplitBarHeight(value), f.MinBarHeight)
	}
	return f.SplitBarHeight(value)
}
