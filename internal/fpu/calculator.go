// Package fpu derives Fat-Protein-Units and extended carbs from nutrition data
package fpu

import (
	"errors"
	"fmt"
	"math"

	"github.com/mrcode/fpu-scheduler/internal/models"
)

// ErrInvalidNutrition is returned for nutrition input that cannot describe a real food
var ErrInvalidNutrition = errors.New("invalid nutrition input")

// Breakdown contains the intermediate values of an FPU calculation
type Breakdown struct {
	TotalCalories      float64
	CarbCalories       float64
	ProteinFatCalories float64
	models.FpuValue
}

// Validate checks a portion before any FPU arithmetic is done
func Validate(p models.Portion) error {
	fields := []struct {
		name  string
		value float64
	}{
		{"amount", p.AmountGrams},
		{"calories", p.Nutrition.CaloriesPer100g},
		{"carbs", p.Nutrition.CarbsPer100g},
		{"sugars", p.Nutrition.SugarsPer100g},
	}
	for _, f := range fields {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return fmt.Errorf("%w: %s must be a finite number, got %v", ErrInvalidNutrition, f.name, f.value)
		}
	}

	switch {
	case p.AmountGrams <= 0:
		return fmt.Errorf("%w: amount must be positive, got %v", ErrInvalidNutrition, p.AmountGrams)
	case p.Nutrition.CaloriesPer100g < 0:
		return fmt.Errorf("%w: calories must not be negative, got %v", ErrInvalidNutrition, p.Nutrition.CaloriesPer100g)
	case p.Nutrition.CarbsPer100g < 0:
		return fmt.Errorf("%w: carbs must not be negative, got %v", ErrInvalidNutrition, p.Nutrition.CarbsPer100g)
	case p.Nutrition.SugarsPer100g < 0:
		return fmt.Errorf("%w: sugars must not be negative, got %v", ErrInvalidNutrition, p.Nutrition.SugarsPer100g)
	case p.Nutrition.SugarsPer100g > p.Nutrition.CarbsPer100g:
		return fmt.Errorf("%w: sugars (%v) exceed carbs (%v)", ErrInvalidNutrition,
			p.Nutrition.SugarsPer100g, p.Nutrition.CarbsPer100g)
	case p.Nutrition.CarbsPer100g*models.CaloriesPerGramCarbs > p.Nutrition.CaloriesPer100g:
		return fmt.Errorf("%w: %v g carbs need %v kcal but food has only %v kcal per 100g", ErrInvalidNutrition,
			p.Nutrition.CarbsPer100g, p.Nutrition.CarbsPer100g*models.CaloriesPerGramCarbs, p.Nutrition.CaloriesPer100g)
	}
	return nil
}

// Calculate derives the FPU of a portion.
// No rounding is applied; eCarbsFactor is grams of extended carbs per FPU.
func Calculate(p models.Portion, eCarbsFactor float64) (Breakdown, error) {
	if err := Validate(p); err != nil {
		return Breakdown{}, err
	}

	b := Breakdown{
		TotalCalories: p.AmountGrams / 100 * p.Nutrition.CaloriesPer100g,
		CarbCalories:  p.AmountGrams / 100 * p.Nutrition.CarbsPer100g * models.CaloriesPerGramCarbs,
	}
	b.ProteinFatCalories = b.TotalCalories - b.CarbCalories
	if b.ProteinFatCalories < 0 {
		return Breakdown{}, fmt.Errorf("%w: negative protein/fat calories %v", ErrInvalidNutrition, b.ProteinFatCalories)
	}
	b.Fpu = b.ProteinFatCalories / models.CaloriesPerFPU
	b.ExtendedCarbsGrams = b.Fpu * eCarbsFactor

	return b, nil
}

// Totals summarises a meal of several portions
type Totals struct {
	models.FpuValue
	CarbsGrams  float64
	SugarsGrams float64
}

// CalculateMeal sums FPU, carbs and sugars over all portions.
// The first invalid portion aborts the calculation and is named in the error.
func CalculateMeal(portions []models.Portion, eCarbsFactor float64) (Totals, error) {
	var totals Totals
	for i, p := range portions {
		b, err := Calculate(p, eCarbsFactor)
		if err != nil {
			name := p.Name
			if name == "" {
				name = fmt.Sprintf("#%d", i+1)
			}
			return Totals{}, fmt.Errorf("portion %s: %w", name, err)
		}
		totals.FpuValue = totals.Add(b.FpuValue)
		totals.CarbsGrams += p.CarbsGrams()
		totals.SugarsGrams += p.SugarsGrams()
	}
	return totals, nil
}
