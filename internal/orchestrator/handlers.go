package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"pulseops.app/pulse/common/id"
	"pulseops.app/pulse/common/llm"
	"pulseops.app/pulse/internal/model"
	"pulseops.app/pulse/internal/store"
)

// Handler priorities. Domain handlers run before the anomaly catch-all.
const (
	PriorityDomain   = 100
	PriorityCatchAll = 0
)

// eventSummary is the structured shape domain handlers request from
// the LLM when classifying an event.
type eventSummary struct {
	Title      string  `json:"title" jsonschema_description:"Short human readable title"`
	Summary    string  `json:"summary" jsonschema_description:"One paragraph summary of the event"`
	Category   string  `json:"category" jsonschema_description:"Business category, e.g. finance or project"`
	Severity   string  `json:"severity" jsonschema:"enum=info,enum=warning,enum=critical"`
	Confidence float64 `json:"confidence" jsonschema_description:"Classification confidence between 0 and 1"`
}

var eventSummarySchema = llm.GenerateSchema[eventSummary]()

// Handlers bundles the domain event handlers and their dependencies.
type Handlers struct {
	workflows     WorkflowStarter
	publisher     EventPublisher
	llmClient     llm.Client // nil when the LLM is not configured
	insights      store.InsightStore
	notifications store.NotificationStore
}

func NewHandlers(
	workflows WorkflowStarter,
	publisher EventPublisher,
	llmClient llm.Client,
	insights store.InsightStore,
	notifications store.NotificationStore,
) *Handlers {
	return &Handlers{
		workflows:     workflows,
		publisher:     publisher,
		llmClient:     llmClient,
		insights:      insights,
		notifications: notifications,
	}
}

// RegisterAll wires the domain handlers into the registry. The anomaly
// detector registers itself separately at pattern "*".
func (h *Handlers) RegisterAll(registry *Registry) {
	registry.Register("finance.*", Registration{
		Name:     "finance",
		Module:   "finance",
		Priority: PriorityDomain,
		Handler:  h.HandleFinanceEvent,
	})
	registry.Register("project.*", Registration{
		Name:     "project",
		Module:   "project",
		Priority: PriorityDomain,
		Handler:  h.HandleProjectEvent,
	})
	registry.Register("analytics.*", Registration{
		Name:     "analytics",
		Module:   "analytics",
		Priority: PriorityDomain,
		Handler:  h.HandleAnalyticsEvent,
	})
	registry.Register("system.*", Registration{
		Name:     "system",
		Module:   "system",
		Priority: PriorityDomain,
		Handler:  h.HandleSystemEvent,
	})
}

func (h *Handlers) HandleFinanceEvent(ctx context.Context, event *model.Event) error {
	switch event.Name {
	case "finance.invoice.created":
		return h.processInvoiceCreated(ctx, event)
	case "finance.payment.received":
		return h.processPaymentReceived(ctx, event)
	default:
		slog.DebugContext(ctx, "unhandled finance event")
		return nil
	}
}

func (h *Handlers) HandleProjectEvent(ctx context.Context, event *model.Event) error {
	switch event.Name {
	case "project.task.completed":
		return h.processTaskCompleted(ctx, event)
	case "project.milestone.reached":
		return h.processMilestoneReached(ctx, event)
	default:
		slog.DebugContext(ctx, "unhandled project event")
		return nil
	}
}

func (h *Handlers) HandleAnalyticsEvent(ctx context.Context, event *model.Event) error {
	switch event.Name {
	case "analytics.report.requested":
		return h.processReportRequested(ctx, event)
	case "analytics.anomaly.detected":
		return h.processAnomalyDetected(ctx, event)
	default:
		slog.DebugContext(ctx, "unhandled analytics event")
		return nil
	}
}

func (h *Handlers) HandleSystemEvent(ctx context.Context, event *model.Event) error {
	switch event.Name {
	case "system.health.degraded":
		return h.processHealthDegraded(ctx, event)
	default:
		slog.DebugContext(ctx, "unhandled system event")
		return nil
	}
}

func (h *Handlers) processInvoiceCreated(ctx context.Context, event *model.Event) error {
	executionID, err := h.workflows.StartWorkflow(ctx, "invoice-processing", event.Payload, event.Meta())
	if err != nil {
		return fmt.Errorf("starting invoice workflow: %w", err)
	}
	slog.InfoContext(ctx, "invoice workflow started", "execution_id", executionID)
	return nil
}

func (h *Handlers) processPaymentReceived(ctx context.Context, event *model.Event) error {
	summary, err := h.summarize(ctx, event, "Classify this received payment for the finance team.")
	if err != nil {
		return err
	}
	if summary == nil {
		return nil
	}

	if err := h.persistInsight(ctx, event, summary); err != nil {
		return err
	}

	payload, _ := json.Marshal(map[string]any{
		"source_event_id": event.ID,
		"category":        summary.Category,
	})
	if _, err := h.publisher.Publish(ctx, "finance.payment.categorized", payload, event.Meta()); err != nil {
		return fmt.Errorf("publishing derived event: %w", err)
	}
	return nil
}

func (h *Handlers) processTaskCompleted(ctx context.Context, event *model.Event) error {
	summary, err := h.summarize(ctx, event, "Summarize this completed task for a project status digest.")
	if err != nil {
		return err
	}
	if summary == nil {
		return nil
	}
	return h.persistInsight(ctx, event, summary)
}

func (h *Handlers) processMilestoneReached(ctx context.Context, event *model.Event) error {
	executionID, err := h.workflows.StartWorkflow(ctx, "milestone-report", event.Payload, event.Meta())
	if err != nil {
		return fmt.Errorf("starting milestone workflow: %w", err)
	}
	slog.InfoContext(ctx, "milestone workflow started", "execution_id", executionID)
	return nil
}

func (h *Handlers) processReportRequested(ctx context.Context, event *model.Event) error {
	executionID, err := h.workflows.StartWorkflow(ctx, "report-generation", event.Payload, event.Meta())
	if err != nil {
		return fmt.Errorf("starting report workflow: %w", err)
	}
	slog.InfoContext(ctx, "report workflow started", "execution_id", executionID)
	return nil
}

func (h *Handlers) processAnomalyDetected(ctx context.Context, event *model.Event) error {
	notification := &model.Notification{
		ID:       id.New(),
		TenantID: event.TenantID,
		UserID:   event.UserID,
		Channel:  "in_app",
		Title:    "Anomaly detected",
		Body:     "An unusual event pattern was detected in your account activity.",
		Metadata: event.Payload,
	}
	if err := h.notifications.Create(ctx, notification); err != nil {
		return fmt.Errorf("persisting anomaly notification: %w", err)
	}
	return nil
}

func (h *Handlers) processHealthDegraded(ctx context.Context, event *model.Event) error {
	notification := &model.Notification{
		ID:       id.New(),
		TenantID: event.TenantID,
		Channel:  "ops",
		Title:    "System health degraded",
		Body:     "A health check reported degraded status.",
		Metadata: event.Payload,
	}
	if err := h.notifications.Create(ctx, notification); err != nil {
		return fmt.Errorf("persisting health notification: %w", err)
	}
	return nil
}

// summarize asks the LLM to classify an event. Returns nil when the
// LLM is not configured.
func (h *Handlers) summarize(ctx context.Context, event *model.Event, instruction string) (*eventSummary, error) {
	if h.llmClient == nil {
		slog.DebugContext(ctx, "llm not configured, skipping summarization")
		return nil, nil
	}

	var summary eventSummary
	_, err := h.llmClient.Predict(ctx, llm.Request{
		SystemPrompt: "You classify business platform events into structured summaries.",
		UserPrompt:   fmt.Sprintf("%s\n\nEvent: %s\nPayload: %s", instruction, event.Name, string(event.Payload)),
		SchemaName:   "event_summary",
		Schema:       eventSummarySchema,
	}, &summary)
	if err != nil {
		return nil, fmt.Errorf("llm summarization: %w", err)
	}
	return &summary, nil
}

func (h *Handlers) persistInsight(ctx context.Context, event *model.Event, summary *eventSummary) error {
	severity := model.InsightSeverity(summary.Severity)
	switch severity {
	case model.InsightSeverityInfo, model.InsightSeverityWarning, model.InsightSeverityCritical:
	default:
		severity = model.InsightSeverityInfo
	}

	insight := &model.Insight{
		ID:            id.New(),
		TenantID:      event.TenantID,
		Category:      summary.Category,
		Severity:      severity,
		Title:         summary.Title,
		Summary:       summary.Summary,
		Confidence:    summary.Confidence,
		SourceEventID: &event.ID,
		Metadata:      json.RawMessage(`{}`),
	}
	if err := h.insights.Create(ctx, insight); err != nil {
		return fmt.Errorf("persisting insight: %w", err)
	}
	return nil
}
