package regime

import (
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/mrcode/fpu-scheduler/internal/models"
)

const epsilon = 1e-9

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func sumEntries(entries []models.CarbsEntry) float64 {
	total := 0.0
	for _, e := range entries {
		total += e.ValueGrams
	}
	return total
}

func TestDistribute(t *testing.T) {
	tests := []struct {
		name        string
		params      models.StreamParameters
		wantEntries int
		wantFirst   float64
	}{
		{"Even split", models.StreamParameters{IntervalMinutes: 10, TotalGrams: 30, WindowDurationMinutes: 30}, 3, 10},
		{"Window rounds up", models.StreamParameters{IntervalMinutes: 10, TotalGrams: 30, WindowDurationMinutes: 25}, 3, 10},
		{"Zero window gives one entry", models.StreamParameters{IntervalMinutes: 10, TotalGrams: 12, WindowDurationMinutes: 0}, 1, 12},
		{"Window shorter than interval", models.StreamParameters{IntervalMinutes: 15, TotalGrams: 12, WindowDurationMinutes: 5}, 1, 12},
		{"E-carbs over four hours", models.StreamParameters{DelayMinutes: 90, IntervalMinutes: 10, TotalGrams: 13.032, WindowDurationMinutes: 240}, 24, 0.543},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := Distribute(models.ExtendedCarbs, tt.params, testNow)
			if err != nil {
				t.Fatalf("Distribute() error = %v", err)
			}
			if len(entries) != tt.wantEntries {
				t.Fatalf("len(entries) = %d, want %d", len(entries), tt.wantEntries)
			}
			if math.Abs(entries[0].ValueGrams-tt.wantFirst) > epsilon {
				t.Errorf("first entry = %v, want %v", entries[0].ValueGrams, tt.wantFirst)
			}
			if got := sumEntries(entries); math.Abs(got-tt.params.TotalGrams) > epsilon {
				t.Errorf("sum = %v, want %v", got, tt.params.TotalGrams)
			}

			start := testNow.Add(time.Duration(tt.params.DelayMinutes) * time.Minute)
			for i, e := range entries {
				want := start.Add(time.Duration(i*tt.params.IntervalMinutes) * time.Minute)
				if !e.Timestamp.Equal(want) {
					t.Errorf("entry %d at %v, want %v", i, e.Timestamp, want)
				}
				if e.Type != models.ExtendedCarbs {
					t.Errorf("entry %d type = %s, want %s", i, e.Type, models.ExtendedCarbs)
				}
			}
		})
	}
}

func TestDistribute_ZeroTotal(t *testing.T) {
	entries, err := Distribute(models.Sugars, models.StreamParameters{IntervalMinutes: 5, WindowDurationMinutes: 30}, testNow)
	if err != nil {
		t.Fatalf("Distribute() error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("len(entries) = %d, want 0", len(entries))
	}
}

func TestDistribute_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		params models.StreamParameters
	}{
		{"Zero interval", models.StreamParameters{IntervalMinutes: 0, TotalGrams: 10}},
		{"Negative delay", models.StreamParameters{DelayMinutes: -1, IntervalMinutes: 5, TotalGrams: 10}},
		{"Negative total", models.StreamParameters{IntervalMinutes: 5, TotalGrams: -10}},
		{"Negative window", models.StreamParameters{IntervalMinutes: 5, TotalGrams: 10, WindowDurationMinutes: -1}},
		{"NaN total", models.StreamParameters{IntervalMinutes: 5, TotalGrams: math.NaN()}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Distribute(models.RegularCarbs, tt.params, testNow)
			if !errors.Is(err, ErrInvalidStream) {
				t.Errorf("Distribute() error = %v, want ErrInvalidStream", err)
			}
		})
	}
}

func TestDistribute_ConservesMass(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 5000; i++ {
		params := models.StreamParameters{
			DelayMinutes:          rng.Intn(120),
			IntervalMinutes:       rng.Intn(30) + 1,
			TotalGrams:            rng.Float64() * 200,
			WindowDurationMinutes: rng.Float64() * 600,
		}
		entries, err := Distribute(models.RegularCarbs, params, testNow)
		if err != nil {
			t.Fatalf("Distribute(%+v) error = %v", params, err)
		}
		if got := sumEntries(entries); math.Abs(got-params.TotalGrams) > epsilon {
			t.Fatalf("Distribute(%+v) sum = %v, want %v", params, got, params.TotalGrams)
		}
		for _, e := range entries {
			if e.ValueGrams <= 0 {
				t.Fatalf("Distribute(%+v) emitted non-positive entry %v", params, e.ValueGrams)
			}
		}
	}
}

func TestBucketCount(t *testing.T) {
	tests := []struct {
		window   float64
		interval int
		want     int
	}{
		{0, 10, 1},
		{10, 10, 1},
		{10.5, 10, 2},
		{180, 10, 18},
		{240, 15, 16},
	}

	for _, tt := range tests {
		got := BucketCount(models.StreamParameters{IntervalMinutes: tt.interval, WindowDurationMinutes: tt.window})
		if got != tt.want {
			t.Errorf("BucketCount(window=%v, interval=%d) = %d, want %d", tt.window, tt.interval, got, tt.want)
		}
	}
}
