package model

import (
	"encoding/json"
	"time"
)

type EventStatus string

const (
	EventStatusPending   EventStatus = "pending"
	EventStatusProcessed EventStatus = "processed"
	EventStatusFailed    EventStatus = "failed"
)

// Event is a named business occurrence routed through the bus to
// pattern-matching handlers. Immutable after publish except for the
// status fields, which the dispatch loop sets.
type Event struct {
	ID            int64           `json:"id"`
	TenantID      string          `json:"tenant_id"`
	Name          string          `json:"name"`
	Source        string          `json:"source"`
	CorrelationID string          `json:"correlation_id"`
	UserID        *string         `json:"user_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
	Status        EventStatus     `json:"status"`
	Error         *string         `json:"error,omitempty"`
	ProcessedAt   *time.Time      `json:"processed_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Meta returns the publish-time metadata of a stored event, used when
// handlers emit derived events that share the same correlation chain.
func (e *Event) Meta() EventMeta {
	return EventMeta{
		TenantID:      e.TenantID,
		UserID:        e.UserID,
		CorrelationID: e.CorrelationID,
		Source:        e.Source,
	}
}

// EventMeta carries the metadata supplied at publish time.
type EventMeta struct {
	TenantID      string  `json:"tenant_id"`
	UserID        *string `json:"user_id,omitempty"`
	CorrelationID string  `json:"correlation_id,omitempty"`
	Source        string  `json:"source,omitempty"`
}
