package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"go.opentelemetry.io/otel/trace"

	"pulseops.app/pulse/common/id"
	"pulseops.app/pulse/common/logger"
	"pulseops.app/pulse/internal/model"
	"pulseops.app/pulse/internal/queue"
	"pulseops.app/pulse/internal/store"
)

// Publisher persists incoming events and hands them to the queue for
// routing. Publishing never blocks on handler execution.
type Publisher struct {
	events   store.EventStore
	producer queue.Producer
}

func NewPublisher(events store.EventStore, producer queue.Producer) *Publisher {
	return &Publisher{
		events:   events,
		producer: producer,
	}
}

func (p *Publisher) Publish(ctx context.Context, name string, payload json.RawMessage, meta model.EventMeta) (*model.Event, error) {
	if name == "" {
		return nil, fmt.Errorf("event name is required")
	}
	if meta.TenantID == "" {
		return nil, fmt.Errorf("tenant id is required")
	}
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}

	correlationID := meta.CorrelationID
	if correlationID == "" {
		correlationID = strconv.FormatInt(id.New(), 10)
	}

	event := &model.Event{
		ID:            id.New(),
		TenantID:      meta.TenantID,
		Name:          name,
		Source:        meta.Source,
		CorrelationID: correlationID,
		UserID:        meta.UserID,
		Payload:       payload,
		Status:        model.EventStatusPending,
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "pulse.bus",
		TenantID:  &event.TenantID,
		EventID:   &event.ID,
		EventName: &event.Name,
	})

	if err := p.events.Create(ctx, event); err != nil {
		return nil, fmt.Errorf("persisting event: %w", err)
	}

	task := queue.Task{
		TaskType: queue.TaskTypeEventDispatch,
		TenantID: event.TenantID,
		EventID:  &event.ID,
	}
	if span := trace.SpanContextFromContext(ctx); span.HasTraceID() {
		traceID := span.TraceID().String()
		task.TraceID = &traceID
	}

	if err := p.producer.Enqueue(ctx, task); err != nil {
		// The event row stays pending; the caller can republish or an
		// operator can requeue it from the events table.
		return nil, fmt.Errorf("enqueueing event dispatch: %w", err)
	}

	slog.InfoContext(ctx, "event published",
		"source", event.Source,
		"correlation_id", event.CorrelationID)
	return event, nil
}
