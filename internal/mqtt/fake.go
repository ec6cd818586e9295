package mqtt

import (
	"github.com/mrcode/fpu-scheduler/internal/engine"
)

// FakePublisher records published batches for test assertions
type FakePublisher struct {
	// Batches contains all batches that were published
	Batches []engine.ExportBatch

	// Payloads contains the JSON payloads that were published
	Payloads [][]byte

	// PublishError, if set, will be returned by PublishSchedule
	PublishError error

	Closed bool
}

// NewFakePublisher creates a FakePublisher for testing
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// PublishSchedule records the batch
func (f *FakePublisher) PublishSchedule(batch engine.ExportBatch) error {
	if f.PublishError != nil {
		return f.PublishError
	}

	payload, err := FormatSchedulePayload(batch)
	if err != nil {
		return err
	}
	f.Batches = append(f.Batches, batch)
	f.Payloads = append(f.Payloads, payload)

	return nil
}

// Close marks the publisher as closed
func (f *FakePublisher) Close() error {
	f.Closed = true
	return nil
}
