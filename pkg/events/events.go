// Package events publishes circulation events, a copy being borrowed or
// returned, to a message broker or to the log.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

const (
	TypeInventoryBorrowed = "inventory.borrowed"
	TypeInventoryReturned = "inventory.returned"
)

// Event is one circulation fact.
type Event struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	OccurredAt  time.Time `json:"occurredAt"`
	ReaderID    uint      `json:"readerId"`
	InventoryID uint      `json:"inventoryId"`
	BookID      uint      `json:"bookId"`
	RecordID    uint      `json:"recordId"`
	DueDate     time.Time `json:"dueDate"`
}

// Publisher delivers events. Callers treat delivery as best-effort.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// LogPublisher writes events to a structured logger. It is the fallback when
// no broker is configured.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, e Event) error {
	p.logger.InfoContext(ctx, "circulation_event",
		"event_id", e.ID,
		"type", e.Type,
		"reader_id", e.ReaderID,
		"inventory_id", e.InventoryID,
		"record_id", e.RecordID,
	)
	return nil
}

func encode(e Event) ([]byte, error) {
	return json.Marshal(e)
}
