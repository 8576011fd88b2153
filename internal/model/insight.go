package model

import (
	"encoding/json"
	"time"
)

type InsightSeverity string

const (
	InsightSeverityInfo     InsightSeverity = "info"
	InsightSeverityWarning  InsightSeverity = "warning"
	InsightSeverityCritical InsightSeverity = "critical"
)

// Insight is a decision-support record produced by handlers and the
// anomaly detector. Confidence is in [0,1] and records exactly what the
// model call returned.
type Insight struct {
	ID            int64           `json:"id"`
	TenantID      string          `json:"tenant_id"`
	Category      string          `json:"category"`
	Severity      InsightSeverity `json:"severity"`
	Title         string          `json:"title"`
	Summary       string          `json:"summary"`
	Confidence    float64         `json:"confidence"`
	SourceEventID *int64          `json:"source_event_id,omitempty"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}
