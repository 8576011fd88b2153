package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"pulseops.app/pulse/common/logger"
	"pulseops.app/pulse/internal/model"
	"pulseops.app/pulse/internal/store"
)

// WorkflowStarter starts a workflow execution and returns its ID. The
// execution runs detached; callers only observe the ID.
type WorkflowStarter interface {
	StartWorkflow(ctx context.Context, name string, inputData json.RawMessage, meta model.EventMeta) (int64, error)
}

// EventPublisher is the bus capability handlers use to emit derived
// events. Satisfied by bus.Publisher.
type EventPublisher interface {
	Publish(ctx context.Context, name string, payload json.RawMessage, meta model.EventMeta) (*model.Event, error)
}

type Orchestrator struct {
	registry *Registry
	events   store.EventStore
}

func New(registry *Registry, events store.EventStore) *Orchestrator {
	return &Orchestrator{
		registry: registry,
		events:   events,
	}
}

// Dispatch routes an event to every matching handler. Handlers run in
// priority order and each failure is collected rather than short
// circuiting the rest. Any failure marks the event failed and is
// returned so the queue loop can retry or dead-letter the message.
func (o *Orchestrator) Dispatch(ctx context.Context, event *model.Event) error {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "pulse.orchestrator",
		TenantID:  &event.TenantID,
		EventID:   &event.ID,
		EventName: &event.Name,
	})

	matched := o.registry.Match(event.Name)
	if len(matched) == 0 {
		slog.DebugContext(ctx, "no handlers matched event")
		if err := o.events.MarkProcessed(ctx, event.ID); err != nil {
			return fmt.Errorf("marking event processed: %w", err)
		}
		return nil
	}

	var handlerErrs []error
	for _, reg := range matched {
		if err := reg.Handler(ctx, event); err != nil {
			slog.ErrorContext(ctx, "handler failed",
				"handler", reg.Name,
				"module", reg.Module,
				"error", err)
			handlerErrs = append(handlerErrs, fmt.Errorf("%s: %w", reg.Name, err))
		}
	}

	if len(handlerErrs) > 0 {
		dispatchErr := errors.Join(handlerErrs...)
		if err := o.events.MarkFailed(ctx, event.ID, dispatchErr.Error()); err != nil {
			slog.ErrorContext(ctx, "failed to mark event failed", "error", err)
		}
		return fmt.Errorf("dispatching %s: %w", event.Name, dispatchErr)
	}

	if err := o.events.MarkProcessed(ctx, event.ID); err != nil {
		return fmt.Errorf("marking event processed: %w", err)
	}

	slog.InfoContext(ctx, "event dispatched", "handlers", len(matched))
	return nil
}
