package logger

import "context"

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields contains structured fields automatically added to all logs within a context.
// Fields flow through context enrichment, enabling zero-touch logging where business
// context (tenant_id, execution_id, etc.) is automatically included in all log statements.
type LogFields struct {
	TenantID    *string // Tenant identifier
	EventID     *int64  // Event that triggered the current work
	EventName   *string // Event name (e.g., "finance.invoice.created")
	ExecutionID *int64  // Workflow execution ID
	Workflow    *string // Workflow definition name
	StepNumber  *int    // 1-indexed step currently executing
	MessageID   *string // Redis stream message ID
	Component   string  // Component name (OTel semantic convention style, e.g., "pulse.workflow.runner")
}

// WithLogFields enriches context with structured log fields.
// Multiple calls merge fields, with newer non-nil/non-empty values taking precedence.
// Context timeouts and cancellation are preserved.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	existing := GetLogFields(ctx)
	merged := mergeFields(existing, fields)
	return context.WithValue(ctx, logFieldsKey, merged)
}

// GetLogFields retrieves log fields from context.
// Returns empty LogFields if none are set.
func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

// mergeFields merges two LogFields, preferring non-nil/non-empty values from 'next'.
func mergeFields(existing, next LogFields) LogFields {
	result := existing

	if next.TenantID != nil {
		result.TenantID = next.TenantID
	}
	if next.EventID != nil {
		result.EventID = next.EventID
	}
	if next.EventName != nil {
		result.EventName = next.EventName
	}
	if next.ExecutionID != nil {
		result.ExecutionID = next.ExecutionID
	}
	if next.Workflow != nil {
		result.Workflow = next.Workflow
	}
	if next.StepNumber != nil {
		result.StepNumber = next.StepNumber
	}
	if next.MessageID != nil {
		result.MessageID = next.MessageID
	}
	if next.Component != "" {
		result.Component = next.Component
	}

	return result
}

// Ptr is a helper to create a pointer from a value.
// Useful for setting LogFields inline: logger.WithLogFields(ctx, logger.LogFields{ExecutionID: logger.Ptr(id)})
func Ptr[T any](v T) *T {
	return &v
}

// Truncate truncates a string to maxLen characters, appending "..." if truncated.
// Useful for logging potentially long strings like prompts or error messages.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
