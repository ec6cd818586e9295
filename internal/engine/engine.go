// Package engine turns a meal into a time-phased carbs delivery schedule.
// Recalculate is a pure function of its inputs; the host calls it again
// whenever the meal, the configuration or the absorption table changes.
package engine

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/mrcode/fpu-scheduler/internal/absorption"
	"github.com/mrcode/fpu-scheduler/internal/fpu"
	"github.com/mrcode/fpu-scheduler/internal/models"
	"github.com/mrcode/fpu-scheduler/internal/regime"
)

// Inputs describe one calculation request
type Inputs struct {
	Portions []models.Portion
	Now      time.Time // Start of the schedule
}

// Result is the outcome of a calculation
type Result struct {
	Totals fpu.Totals

	// AbsorptionUndetermined is set when the FPU exceeds the absorption table.
	// The e-carbs stream is then left empty and AbsorptionTimeHours is zero.
	AbsorptionTimeHours    float64
	AbsorptionUndetermined bool

	Sugars        models.StreamParameters
	RegularCarbs  models.StreamParameters
	ExtendedCarbs models.StreamParameters

	Regime *regime.Regime
}

// Recalculate runs the whole pipeline: FPU, absorption lookup, stream
// distribution and merge.
func Recalculate(in Inputs, cfg models.EngineConfig, scheme *absorption.Scheme) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("engine config: %w", err)
	}
	if scheme == nil || scheme.Len() == 0 {
		return nil, absorption.ErrEmptyScheme
	}
	if len(in.Portions) == 0 {
		return nil, fmt.Errorf("%w: meal has no portions", fpu.ErrInvalidNutrition)
	}

	totals, err := fpu.CalculateMeal(in.Portions, cfg.ECarbsFactor)
	if err != nil {
		return nil, err
	}

	res := &Result{Totals: totals}

	sugars, regular := 0.0, totals.CarbsGrams
	if cfg.TreatSugarsSeparately {
		sugars = totals.SugarsGrams
		regular = totals.CarbsGrams - totals.SugarsGrams
		if regular < 0 {
			regular = 0 // Float noise when a meal is all sugar
		}
	}
	res.Sugars = cfg.Sugars.Parameters(sugars)
	res.RegularCarbs = cfg.RegularCarbs.Parameters(regular)

	hours, ok := scheme.LookupWithPolicy(totals.Fpu, cfg.AbsorptionOverflow)
	res.ExtendedCarbs = cfg.ExtendedCarbs.Parameters(0)
	if ok {
		res.AbsorptionTimeHours = hours
		res.ExtendedCarbs.TotalGrams = totals.ExtendedCarbsGrams
		res.ExtendedCarbs.WindowDurationMinutes = hours * 60
	} else {
		res.AbsorptionUndetermined = true
		highest, _ := scheme.Highest()
		slog.Warn("absorption time undetermined",
			"fpu", totals.Fpu,
			"maxFpu", highest.MaxFpu)
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}
	res.Regime, err = regime.Build(now, res.Sugars, res.RegularCarbs, res.ExtendedCarbs)
	if err != nil {
		return nil, err
	}

	slog.Debug("schedule recalculated",
		"fpu", totals.Fpu,
		"eCarbs", totals.ExtendedCarbsGrams,
		"absorptionHours", res.AbsorptionTimeHours,
		"slots", len(res.Regime.Slots),
		"interval", res.Regime.IntervalMinutes)

	return res, nil
}

// AbsorptionLabel formats the absorption time for display
func (r *Result) AbsorptionLabel() string {
	if r.AbsorptionUndetermined {
		return "--"
	}
	return fmt.Sprintf("%gh", r.AbsorptionTimeHours)
}
