package engine

import (
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/mrcode/fpu-scheduler/internal/models"
	"github.com/mrcode/fpu-scheduler/internal/regime"
)

// ExportRecords lists every non-zero merged entry as an instantaneous sample,
// ordered by time and then by type.
func ExportRecords(r *regime.Regime) []models.ExportRecord {
	var records []models.ExportRecord
	for _, slot := range r.Slots {
		for _, e := range slot.Entries {
			if e.ValueGrams <= 0 {
				continue
			}
			records = append(records, models.ExportRecord{
				Type:       e.Type,
				ValueGrams: e.ValueGrams,
				Start:      e.Timestamp,
				End:        e.Timestamp,
			})
		}
	}
	return records
}

// ExportBatch groups the records of one export
type ExportBatch struct {
	ID        string                `json:"id"`
	CreatedAt time.Time             `json:"createdAt"`
	Records   []models.ExportRecord `json:"records"`
}

// NewExportBatch wraps records under a fresh batch id
func NewExportBatch(records []models.ExportRecord, createdAt time.Time) ExportBatch {
	return ExportBatch{
		ID:        uuid.NewString(),
		CreatedAt: createdAt,
		Records:   records,
	}
}

// TotalGrams returns the grams of all records in the batch
func (b ExportBatch) TotalGrams() float64 {
	return lo.SumBy(b.Records, func(r models.ExportRecord) float64 {
		return r.ValueGrams
	})
}

// TotalsByType returns the grams per carb type in the batch
func (b ExportBatch) TotalsByType() map[models.CarbsEntryType]float64 {
	totals := make(map[models.CarbsEntryType]float64, len(models.CarbsEntryTypes))
	for _, r := range b.Records {
		totals[r.Type] += r.ValueGrams
	}
	return totals
}
