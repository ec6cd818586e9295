// Package mqtt publishes export batches to an MQTT broker
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/samber/lo"

	"github.com/mrcode/fpu-scheduler/internal/engine"
	"github.com/mrcode/fpu-scheduler/internal/models"
)

// DefaultTopic is used when no topic is configured
const DefaultTopic = "fpu/schedule"

// Publisher publishes export batches
type Publisher interface {
	// PublishSchedule sends one batch as a single message
	PublishSchedule(batch engine.ExportBatch) error

	// Close disconnects from the broker
	Close() error
}

// SchedulePayload is the message body of a published batch
type SchedulePayload struct {
	BatchID    string         `json:"batchId"`
	CreatedAt  string         `json:"createdAt"`
	TotalGrams float64        `json:"totalGrams"`
	Entries    []EntryPayload `json:"entries"`
}

// EntryPayload is one scheduled carbs delivery
type EntryPayload struct {
	Type      string  `json:"type"`
	Grams     float64 `json:"grams"`
	Timestamp string  `json:"timestamp"`
}

// FormatSchedulePayload creates the JSON payload for a batch
func FormatSchedulePayload(batch engine.ExportBatch) ([]byte, error) {
	payload := SchedulePayload{
		BatchID:    batch.ID,
		CreatedAt:  batch.CreatedAt.UTC().Format(time.RFC3339),
		TotalGrams: batch.TotalGrams(),
		Entries: lo.Map(batch.Records, func(r models.ExportRecord, _ int) EntryPayload {
			return EntryPayload{
				Type:      string(r.Type),
				Grams:     r.ValueGrams,
				Timestamp: r.Start.UTC().Format(time.RFC3339),
			}
		}),
	}
	return json.Marshal(payload)
}
