package audit

import (
	"context"
	"time"
)

// Record is one column-level change captured inside the same transaction
// as the state change it describes. Identity is the caller on whose
// behalf the mutation ran, never a connection-level user.
type Record struct {
	RecordID  string    `json:"record_id"`
	Identity  string    `json:"identity"`
	Operation string    `json:"operation"` // insert, update, delete
	Entity    string    `json:"entity"`
	EntityKey string    `json:"entity_key"`
	Column    string    `json:"column,omitempty"`
	OldValue  string    `json:"old_value,omitempty"`
	NewValue  string    `json:"new_value,omitempty"`
	EventTime time.Time `json:"event_time"`
}

// Log is implemented by every store that captures change records.
// Pending records are those not yet handed to the message bus.
type Log interface {
	ListPendingAudit(ctx context.Context, limit int) ([]Record, error)
	MarkAuditPublished(ctx context.Context, recordID string, publishedAt time.Time) error
}

// Publisher hands an audit record to the message bus.
type Publisher interface {
	PublishAudit(ctx context.Context, topic string, record Record) error
}
