package models

import (
	"fmt"
	"time"
)

// CarbsEntryType identifies one of the three carbohydrate delivery streams
type CarbsEntryType string

// Carbs entry types
const (
	Sugars        CarbsEntryType = "sugars"
	RegularCarbs  CarbsEntryType = "carbs"
	ExtendedCarbs CarbsEntryType = "e-carbs"
)

// CarbsEntryTypes lists all stream types in display order
var CarbsEntryTypes = []CarbsEntryType{Sugars, RegularCarbs, ExtendedCarbs}

// Label returns a human-readable name for the type
func (t CarbsEntryType) Label() string {
	switch t {
	case Sugars:
		return "Sugars"
	case RegularCarbs:
		return "Regular Carbs"
	case ExtendedCarbs:
		return "Extended Carbs"
	default:
		return string(t)
	}
}

// Valid returns true for one of the known types
func (t CarbsEntryType) Valid() bool {
	return t == Sugars || t == RegularCarbs || t == ExtendedCarbs
}

// UnmarshalText rejects unknown stream types
func (t *CarbsEntryType) UnmarshalText(text []byte) error {
	v := CarbsEntryType(text)
	if !v.Valid() {
		return fmt.Errorf("unknown carbs entry type %q", string(text))
	}
	*t = v
	return nil
}

// CarbsEntry is a single scheduled carbohydrate delivery
type CarbsEntry struct {
	Type       CarbsEntryType `json:"type"`
	ValueGrams float64        `json:"valueGrams"`
	Timestamp  time.Time      `json:"timestamp"`
}

// StreamParameters configures how one stream is spread over time
type StreamParameters struct {
	DelayMinutes          int     `json:"delayMinutes"`
	IntervalMinutes       int     `json:"intervalMinutes"`
	TotalGrams            float64 `json:"totalGrams"`
	WindowDurationMinutes float64 `json:"windowDurationMinutes"`
}

// Active returns true if the stream has anything to deliver
func (p StreamParameters) Active() bool {
	return p.TotalGrams > 0
}

// Start returns the time of the first delivery relative to now
func (p StreamParameters) Start(now time.Time) time.Time {
	return now.Add(time.Duration(p.DelayMinutes) * time.Minute)
}

// End returns the end of the stream's delivery window relative to now
func (p StreamParameters) End(now time.Time) time.Time {
	return p.Start(now).Add(time.Duration(p.WindowDurationMinutes * float64(time.Minute)))
}

// ExportRecord is one sample handed to an external health-data sink.
// Start equals End for instantaneous samples.
type ExportRecord struct {
	Type       CarbsEntryType `json:"type"`
	ValueGrams float64        `json:"valueGrams"`
	Start      time.Time      `json:"start"`
	End        time.Time      `json:"end"`
}
