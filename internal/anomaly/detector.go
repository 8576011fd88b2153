package anomaly

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"pulseops.app/pulse/common/id"
	"pulseops.app/pulse/common/llm"
	"pulseops.app/pulse/common/logger"
	"pulseops.app/pulse/internal/model"
	"pulseops.app/pulse/internal/orchestrator"
	"pulseops.app/pulse/internal/store"
)

// derivedEventName is the event the detector publishes on a positive
// result. Incoming events with this name are skipped to avoid a
// feedback loop.
const derivedEventName = "analytics.anomaly.detected"

// Result is the detector's outcome. Failures are downgraded to
// Status "error" rather than propagated; the detector must never block
// normal event processing.
type Result struct {
	Status     string  `json:"status"` // ok, skipped, error
	Anomalous  bool    `json:"anomalous"`
	Confidence float64 `json:"confidence,omitempty"`
	Category   string  `json:"category,omitempty"`
	Reason     string  `json:"reason,omitempty"`
	Error      string  `json:"error,omitempty"`
}

type prediction struct {
	IsAnomaly  bool    `json:"is_anomaly" jsonschema_description:"Whether the current event is anomalous given the recent history"`
	Confidence float64 `json:"confidence" jsonschema_description:"Confidence between 0 and 1"`
	Category   string  `json:"category" jsonschema_description:"Kind of anomaly, e.g. volume, sequence, value"`
	Reason     string  `json:"reason" jsonschema_description:"One sentence explanation"`
}

var predictionSchema = llm.GenerateSchema[prediction]()

type Config struct {
	ConfidenceThreshold float64
	HistoryWindow       time.Duration
	HistoryLimit        int32
	PromptEventLimit    int
}

type Detector struct {
	cfg           Config
	events        store.EventStore
	insights      store.InsightStore
	notifications store.NotificationStore
	publisher     orchestrator.EventPublisher
	llmClient     llm.Client // nil when the LLM is not configured
}

func NewDetector(
	cfg Config,
	events store.EventStore,
	insights store.InsightStore,
	notifications store.NotificationStore,
	publisher orchestrator.EventPublisher,
	llmClient llm.Client,
) *Detector {
	return &Detector{
		cfg:           cfg,
		events:        events,
		insights:      insights,
		notifications: notifications,
		publisher:     publisher,
		llmClient:     llmClient,
	}
}

// Register wires the detector into the registry at the catch-all
// pattern with the lowest priority, so domain handlers run first.
func (d *Detector) Register(registry *orchestrator.Registry) {
	registry.Register("*", orchestrator.Registration{
		Name:     "anomaly-detector",
		Module:   "anomaly",
		Priority: orchestrator.PriorityCatchAll,
		Handler:  d.Handle,
	})
}

// Handle adapts Detect to the orchestrator's handler contract. It
// always returns nil: detector outcomes never fail event dispatch.
func (d *Detector) Handle(ctx context.Context, event *model.Event) error {
	result := d.Detect(ctx, event)
	if result.Status == "error" {
		slog.WarnContext(ctx, "anomaly detection errored", "error", result.Error)
	}
	return nil
}

// Detect evaluates one event against the tenant's recent history.
// Every failure path yields Result{Status: "error"} with no insight,
// notification or derived event created.
func (d *Detector) Detect(ctx context.Context, event *model.Event) Result {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "pulse.anomaly",
	})

	if event == nil || event.Name == "" || event.TenantID == "" {
		return Result{Status: "error", Error: "malformed event"}
	}
	if event.Name == derivedEventName {
		return Result{Status: "skipped"}
	}
	if d.llmClient == nil {
		return Result{Status: "skipped"}
	}

	since := time.Now().UTC().Add(-d.cfg.HistoryWindow)
	history, err := d.events.ListRecent(ctx, event.TenantID, since, d.cfg.HistoryLimit)
	if err != nil {
		return Result{Status: "error", Error: fmt.Sprintf("loading event history: %v", err)}
	}

	var pred prediction
	_, err = d.llmClient.Predict(ctx, llm.Request{
		SystemPrompt: "You detect anomalous events in a business platform's activity stream. Compare the current event against the recent history.",
		UserPrompt:   d.buildPrompt(event, history),
		SchemaName:   "anomaly_prediction",
		Schema:       predictionSchema,
	}, &pred)
	if err != nil {
		return Result{Status: "error", Error: fmt.Sprintf("llm prediction: %v", err)}
	}

	if !pred.IsAnomaly || pred.Confidence < d.cfg.ConfidenceThreshold {
		return Result{
			Status:     "ok",
			Anomalous:  false,
			Confidence: pred.Confidence,
		}
	}

	if err := d.recordAnomaly(ctx, event, pred); err != nil {
		return Result{Status: "error", Error: err.Error()}
	}

	slog.InfoContext(ctx, "anomaly detected",
		"confidence", pred.Confidence,
		"category", pred.Category)
	return Result{
		Status:     "ok",
		Anomalous:  true,
		Confidence: pred.Confidence,
		Category:   pred.Category,
		Reason:     pred.Reason,
	}
}

// buildPrompt shapes the LLM input. History is capped to keep prompt
// cost bounded regardless of the store limit.
func (d *Detector) buildPrompt(event *model.Event, history []model.Event) string {
	capped := history
	if limit := d.cfg.PromptEventLimit; limit > 0 && len(capped) > limit {
		capped = capped[:limit]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Current event: %s\nPayload: %s\n\nRecent events (newest first):\n", event.Name, string(event.Payload))
	for _, past := range capped {
		if past.ID == event.ID {
			continue
		}
		fmt.Fprintf(&b, "- %s at %s\n", past.Name, past.CreatedAt.Format(time.RFC3339))
	}
	return b.String()
}

func (d *Detector) recordAnomaly(ctx context.Context, event *model.Event, pred prediction) error {
	metadata, err := json.Marshal(map[string]any{
		"event_name": event.Name,
		"category":   pred.Category,
	})
	if err != nil {
		return fmt.Errorf("marshaling insight metadata: %w", err)
	}

	insight := &model.Insight{
		ID:            id.New(),
		TenantID:      event.TenantID,
		Category:      "anomaly",
		Severity:      model.InsightSeverityWarning,
		Title:         fmt.Sprintf("Anomalous %s event", event.Name),
		Summary:       pred.Reason,
		Confidence:    pred.Confidence,
		SourceEventID: &event.ID,
		Metadata:      metadata,
	}
	if err := d.insights.Create(ctx, insight); err != nil {
		return fmt.Errorf("persisting insight: %w", err)
	}

	notification := &model.Notification{
		ID:       id.New(),
		TenantID: event.TenantID,
		UserID:   event.UserID,
		Channel:  "in_app",
		Title:    "Unusual activity detected",
		Body:     pred.Reason,
		Metadata: metadata,
	}
	if err := d.notifications.Create(ctx, notification); err != nil {
		return fmt.Errorf("persisting notification: %w", err)
	}

	payload, err := json.Marshal(map[string]any{
		"source_event_id": event.ID,
		"insight_id":      insight.ID,
		"confidence":      pred.Confidence,
		"category":        pred.Category,
	})
	if err != nil {
		return fmt.Errorf("marshaling derived payload: %w", err)
	}
	if _, err := d.publisher.Publish(ctx, derivedEventName, payload, event.Meta()); err != nil {
		return fmt.Errorf("publishing derived event: %w", err)
	}
	return nil
}
