package regime

import (
	"fmt"
	"time"

	"github.com/samber/lo"

	"github.com/mrcode/fpu-scheduler/internal/models"
)

// Stream is one carb type's parameters together with its distributed entries
type Stream struct {
	Type       models.CarbsEntryType
	Parameters models.StreamParameters
	Entries    []models.CarbsEntry
}

// NewStream distributes p and wraps the result
func NewStream(entryType models.CarbsEntryType, p models.StreamParameters, now time.Time) (Stream, error) {
	entries, err := Distribute(entryType, p, now)
	if err != nil {
		return Stream{}, err
	}
	return Stream{Type: entryType, Parameters: p, Entries: entries}, nil
}

// Total returns the grams delivered by the stream's entries
func (s Stream) Total() float64 {
	return lo.SumBy(s.Entries, func(e models.CarbsEntry) float64 {
		return e.ValueGrams
	})
}

// Slot holds exactly one entry per carb type at a grid time
type Slot struct {
	Time    time.Time
	Entries [3]models.CarbsEntry // Indexed like models.CarbsEntryTypes
}

// Entry returns the slot's entry of the given type
func (s Slot) Entry(t models.CarbsEntryType) models.CarbsEntry {
	return s.Entries[typeIndex(t)]
}

// Total returns the grams of all types in the slot
func (s Slot) Total() float64 {
	return s.Entries[0].ValueGrams + s.Entries[1].ValueGrams + s.Entries[2].ValueGrams
}

// Regime is the merged schedule of all three streams on one time grid
type Regime struct {
	GlobalStart     time.Time
	GlobalEnd       time.Time
	IntervalMinutes int
	Slots           []Slot // Ordered by time, one per grid step
}

// Interval returns the grid step as a duration
func (r *Regime) Interval() time.Duration {
	return time.Duration(r.IntervalMinutes) * time.Minute
}

// At returns the slot for grid time t
func (r *Regime) At(t time.Time) (Slot, bool) {
	offset := t.Sub(r.GlobalStart)
	if offset < 0 || offset%r.Interval() != 0 {
		return Slot{}, false
	}
	i := int(offset / r.Interval())
	if i >= len(r.Slots) {
		return Slot{}, false
	}
	return r.Slots[i], true
}

// Entries returns the merged entries of one type in time order
func (r *Regime) Entries(t models.CarbsEntryType) []models.CarbsEntry {
	return lo.Map(r.Slots, func(s Slot, _ int) models.CarbsEntry {
		return s.Entry(t)
	})
}

// Total returns the grams of one type across the regime
func (r *Regime) Total(t models.CarbsEntryType) float64 {
	return lo.SumBy(r.Slots, func(s Slot) float64 {
		return s.Entry(t).ValueGrams
	})
}

// NonZeroValues returns every positive entry value across all types
func (r *Regime) NonZeroValues() []float64 {
	var values []float64
	for _, s := range r.Slots {
		for _, e := range s.Entries {
			if e.ValueGrams > 0 {
				values = append(values, e.ValueGrams)
			}
		}
	}
	return values
}

func typeIndex(t models.CarbsEntryType) int {
	switch t {
	case models.Sugars:
		return 0
	case models.RegularCarbs:
		return 1
	default:
		return 2
	}
}

// gcd is the Euclidean greatest common divisor
func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// GridInterval folds gcd over all stream intervals
func GridInterval(intervals ...int) int {
	return lo.Reduce(intervals, func(acc, interval, _ int) int {
		return gcd(acc, interval)
	}, 0)
}

// Merge aligns the streams on a grid of gcd(intervals) minutes from now to the
// last grid time not after the end of the longest active stream. Every grid time gets one entry per type;
// types without a delivery in [t, t+interval) get a zero entry.
func Merge(now time.Time, streams ...Stream) (*Regime, error) {
	if len(streams) == 0 {
		return nil, fmt.Errorf("%w: no streams to merge", ErrInvalidStream)
	}

	intervals := make([]int, 0, len(streams))
	end := now
	for _, s := range streams {
		if !s.Type.Valid() {
			return nil, fmt.Errorf("%w: unknown stream type %q", ErrInvalidStream, s.Type)
		}
		if err := ValidateStream(s.Parameters); err != nil {
			return nil, fmt.Errorf("%s: %w", s.Type, err)
		}
		intervals = append(intervals, s.Parameters.IntervalMinutes)
		if s.Parameters.Active() {
			if streamEnd := s.Parameters.End(now); streamEnd.After(end) {
				end = streamEnd
			}
		}
		// Entries built by hand may lie past the declared window
		for _, e := range s.Entries {
			if e.Timestamp.Before(now) {
				return nil, fmt.Errorf("%w: %s entry at %v precedes regime start", ErrInvalidStream, s.Type, e.Timestamp)
			}
			if e.Timestamp.After(end) {
				end = e.Timestamp
			}
		}
	}

	r := &Regime{
		GlobalStart:     now,
		GlobalEnd:       end,
		IntervalMinutes: GridInterval(intervals...),
	}
	step := r.Interval()
	count := int(end.Sub(now)/step) + 1
	r.GlobalEnd = now.Add(time.Duration(count-1) * step)

	r.Slots = make([]Slot, count)
	for i := range r.Slots {
		t := now.Add(time.Duration(i) * step)
		r.Slots[i].Time = t
		for j, entryType := range models.CarbsEntryTypes {
			r.Slots[i].Entries[j] = models.CarbsEntry{Type: entryType, Timestamp: t}
		}
	}

	for _, s := range streams {
		idx := typeIndex(s.Type)
		for _, e := range s.Entries {
			i := int(e.Timestamp.Sub(now) / step)
			// Stream intervals are multiples of the grid step, so only hand-built
			// entries can share a bucket; their grams are summed.
			r.Slots[i].Entries[idx].ValueGrams += e.ValueGrams
		}
	}

	return r, nil
}

// Build distributes the three streams and merges them into one regime
func Build(now time.Time, sugars, carbs, eCarbs models.StreamParameters) (*Regime, error) {
	params := []struct {
		t models.CarbsEntryType
		p models.StreamParameters
	}{
		{models.Sugars, sugars},
		{models.RegularCarbs, carbs},
		{models.ExtendedCarbs, eCarbs},
	}

	streams := make([]Stream, 0, len(params))
	for _, sp := range params {
		s, err := NewStream(sp.t, sp.p, now)
		if err != nil {
			return nil, err
		}
		streams = append(streams, s)
	}
	return Merge(now, streams...)
}
