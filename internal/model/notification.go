package model

import (
	"encoding/json"
	"time"
)

// Notification is a persisted fire-and-forget notification record.
// Delivery to an actual channel is the surrounding platform's concern.
type Notification struct {
	ID        int64           `json:"id"`
	TenantID  string          `json:"tenant_id"`
	UserID    *string         `json:"user_id,omitempty"`
	Channel   string          `json:"channel"`
	Title     string          `json:"title"`
	Body      string          `json:"body"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}
