// Package regime spreads carbohydrate streams over time and merges them
// onto a common time grid.
package regime

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/mrcode/fpu-scheduler/internal/models"
)

// ErrInvalidStream is returned for stream parameters that cannot be scheduled
var ErrInvalidStream = errors.New("invalid stream parameters")

// ValidateStream checks the timing and amount of a stream
func ValidateStream(p models.StreamParameters) error {
	switch {
	case p.IntervalMinutes <= 0:
		return fmt.Errorf("%w: interval must be positive, got %d", ErrInvalidStream, p.IntervalMinutes)
	case p.DelayMinutes < 0:
		return fmt.Errorf("%w: delay must not be negative, got %d", ErrInvalidStream, p.DelayMinutes)
	case p.TotalGrams < 0 || math.IsNaN(p.TotalGrams) || math.IsInf(p.TotalGrams, 0):
		return fmt.Errorf("%w: total grams must be a non-negative number, got %v", ErrInvalidStream, p.TotalGrams)
	case p.WindowDurationMinutes < 0 || math.IsNaN(p.WindowDurationMinutes) || math.IsInf(p.WindowDurationMinutes, 0):
		return fmt.Errorf("%w: window must be a non-negative number, got %v", ErrInvalidStream, p.WindowDurationMinutes)
	}
	return nil
}

// BucketCount returns the number of deliveries needed to cover the window, at least one
func BucketCount(p models.StreamParameters) int {
	n := int(math.Ceil(p.WindowDurationMinutes / float64(p.IntervalMinutes)))
	if n < 1 {
		return 1
	}
	return n
}

// Distribute splits p.TotalGrams evenly into entries one interval apart,
// starting delay minutes after now. The last entry takes the exact remainder
// so the entries always sum to TotalGrams.
func Distribute(entryType models.CarbsEntryType, p models.StreamParameters, now time.Time) ([]models.CarbsEntry, error) {
	if err := ValidateStream(p); err != nil {
		return nil, fmt.Errorf("%s: %w", entryType, err)
	}
	if p.TotalGrams == 0 {
		return nil, nil
	}

	n := BucketCount(p)
	perBucket := p.TotalGrams / float64(n)
	start := p.Start(now)
	interval := time.Duration(p.IntervalMinutes) * time.Minute

	entries := make([]models.CarbsEntry, 0, n)
	distributed := 0.0
	for i := 0; i < n-1; i++ {
		entries = append(entries, models.CarbsEntry{
			Type:       entryType,
			ValueGrams: perBucket,
			Timestamp:  start.Add(time.Duration(i) * interval),
		})
		distributed += perBucket
	}

	if remainder := p.TotalGrams - distributed; remainder > 0 {
		entries = append(entries, models.CarbsEntry{
			Type:       entryType,
			ValueGrams: remainder,
			Timestamp:  start.Add(time.Duration(n-1) * interval),
		})
	}

	return entries, nil
}
