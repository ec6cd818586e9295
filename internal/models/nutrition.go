// Package models contains data structures used throughout the application
package models

// CaloriesPerGramCarbs is the energy of one gram of carbohydrate in kcal.
const CaloriesPerGramCarbs = 4.0

// CaloriesPerFPU defines one Fat-Protein-Unit as 100 kcal of non-carbohydrate energy.
const CaloriesPerFPU = 100.0

// Nutrition holds the per-100g nutritional profile of a food
type Nutrition struct {
	CaloriesPer100g float64 `json:"caloriesPer100g"`
	CarbsPer100g    float64 `json:"carbsPer100g"`
	SugarsPer100g   float64 `json:"sugarsPer100g"` // Optional, part of CarbsPer100g
}

// Portion is an amount of a single food eaten as part of a meal
type Portion struct {
	Name        string    `json:"name"`
	AmountGrams float64   `json:"amountGrams"`
	Nutrition   Nutrition `json:"nutrition"`
}

// CarbsGrams returns the grams of carbohydrates in the portion
func (p Portion) CarbsGrams() float64 {
	return p.AmountGrams / 100 * p.Nutrition.CarbsPer100g
}

// SugarsGrams returns the grams of sugars in the portion
func (p Portion) SugarsGrams() float64 {
	return p.AmountGrams / 100 * p.Nutrition.SugarsPer100g
}

// FpuValue is the derived Fat-Protein-Unit score of a portion or meal.
// It is never persisted.
type FpuValue struct {
	Fpu                float64 `json:"fpu"`
	ExtendedCarbsGrams float64 `json:"extendedCarbsGrams"`
}

// Add sums two FPU values
func (f FpuValue) Add(other FpuValue) FpuValue {
	return FpuValue{
		Fpu:                f.Fpu + other.Fpu,
		ExtendedCarbsGrams: f.ExtendedCarbsGrams + other.ExtendedCarbsGrams,
	}
}
