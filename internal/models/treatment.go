package models

import (
	"fmt"
	"strings"
	"time"
)

// Treatment is a Nightscout treatment document carrying a carbs delivery
type Treatment struct {
	ID         string  `json:"_id,omitempty"`
	Identifier string  `json:"identifier,omitempty"`
	EventType  string  `json:"eventType"`
	Date       int64   `json:"date"` // Unix timestamp in milliseconds
	CreatedAt  string  `json:"created_at"`
	Carbs      float64 `json:"carbs"`              // Grams of carbohydrates
	Protein    float64 `json:"protein,omitempty"`  // Grams of protein
	Fat        float64 `json:"fat,omitempty"`      // Grams of fat
	Duration   float64 `json:"duration,omitempty"` // Minutes
	Notes      string  `json:"notes,omitempty"`
	EnteredBy  string  `json:"enteredBy"`
}

// EnteredBy is the author tag written into uploaded treatments
const EnteredBy = "fpu-scheduler"

// NewCarbTreatments converts export records into Nightscout carb corrections.
// Records sharing a timestamp are combined into one treatment, since Nightscout
// keeps a single treatment per created_at and event type. Each treatment gets
// its own identifier derived from batchID.
func NewCarbTreatments(records []ExportRecord, batchID string) []Treatment {
	var treatments []Treatment
	var notes [][]string
	index := make(map[int64]int)

	for _, record := range records {
		start := record.Start.UTC()
		key := start.UnixMilli()
		note := fmt.Sprintf("%s %.1fg", record.Type.Label(), record.ValueGrams)

		if i, ok := index[key]; ok {
			treatments[i].Carbs += record.ValueGrams
			notes[i] = append(notes[i], note)
			continue
		}

		index[key] = len(treatments)
		treatments = append(treatments, Treatment{
			Identifier: fmt.Sprintf("%s-%03d", batchID, len(treatments)),
			EventType:  TreatmentEventTypes.CarbCorrection,
			Date:       key,
			CreatedAt:  start.Format(time.RFC3339),
			Carbs:      record.ValueGrams,
			Duration:   record.End.Sub(record.Start).Minutes(),
			EnteredBy:  EnteredBy,
		})
		notes = append(notes, []string{note})
	}

	for i := range treatments {
		treatments[i].Notes = strings.Join(notes[i], ", ")
	}
	return treatments
}

// Time returns the time of the treatment
func (t *Treatment) Time() time.Time {
	if t.Date > 0 {
		return time.UnixMilli(t.Date)
	}
	// Fallback to created_at
	parsed, err := time.Parse(time.RFC3339, t.CreatedAt)
	if err != nil {
		return time.Time{}
	}
	return parsed
}

// HasCarbs returns true if this treatment includes carbohydrates
func (t *Treatment) HasCarbs() bool {
	return t.Carbs > 0
}

// IsScheduled returns true if the treatment was written by this application
func (t *Treatment) IsScheduled() bool {
	return t.EnteredBy == EnteredBy
}

// TreatmentEventTypes contains the Nightscout event types used for carbs
var TreatmentEventTypes = struct {
	CarbCorrection string
	MealBolus      string
	SnackBolus     string
	Note           string
}{
	CarbCorrection: "Carb Correction",
	MealBolus:      "Meal Bolus",
	SnackBolus:     "Snack Bolus",
	Note:           "Note",
}
