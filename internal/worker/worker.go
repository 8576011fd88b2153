package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"pulseops.app/pulse/common/llm"
	"pulseops.app/pulse/common/logger"
	"pulseops.app/pulse/internal/model"
	"pulseops.app/pulse/internal/queue"
	"pulseops.app/pulse/internal/store"
)

// Dispatcher routes a persisted event to its handlers. Satisfied by
// orchestrator.Orchestrator.
type Dispatcher interface {
	Dispatch(ctx context.Context, event *model.Event) error
}

// StepRunner drives a workflow execution's steps. Satisfied by
// workflow.Runner.
type StepRunner interface {
	ExecuteSteps(ctx context.Context, tenantID string, executionID int64) error
}

// Consumer is the queue surface the worker needs. Satisfied by
// queue.RedisConsumer.
type Consumer interface {
	Read(ctx context.Context) ([]queue.Message, error)
	Ack(ctx context.Context, msg queue.Message) error
	Requeue(ctx context.Context, msg queue.Message, errMsg string) error
	SendDLQ(ctx context.Context, msg queue.Message, errMsg string) error
}

type Config struct {
	MaxAttempts            int
	MaxConcurrentWorkflows int
}

// Worker consumes the task stream and hands each message to the
// orchestrator or the workflow runner. Workflow executions contend on
// a bounded semaphore so at most MaxConcurrentWorkflows run at once.
type Worker struct {
	consumer   Consumer
	events     store.EventStore
	dispatcher Dispatcher
	runner     StepRunner
	cfg        Config

	workflowSlots chan struct{}
	stopCh        chan struct{}
	stoppedCh     chan struct{}
}

func New(consumer Consumer, events store.EventStore, dispatcher Dispatcher, runner StepRunner, cfg Config) *Worker {
	if cfg.MaxConcurrentWorkflows <= 0 {
		cfg.MaxConcurrentWorkflows = 1
	}
	return &Worker{
		consumer:      consumer,
		events:        events,
		dispatcher:    dispatcher,
		runner:        runner,
		cfg:           cfg,
		workflowSlots: make(chan struct{}, cfg.MaxConcurrentWorkflows),
		stopCh:        make(chan struct{}),
		stoppedCh:     make(chan struct{}),
	}
}

func (w *Worker) Run(ctx context.Context) error {
	defer close(w.stoppedCh)

	slog.InfoContext(ctx, "worker started",
		"max_concurrent_workflows", w.cfg.MaxConcurrentWorkflows)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stopCh:
			slog.InfoContext(ctx, "worker stopping")
			return nil
		default:
			if err := w.processOneBatch(ctx); err != nil {
				slog.ErrorContext(ctx, "batch processing error", "error", err)
				// Brief backoff on error
				time.Sleep(time.Second)
			}
		}
	}
}

func (w *Worker) Stop() {
	close(w.stopCh)
	<-w.stoppedCh
}

func (w *Worker) processOneBatch(ctx context.Context) error {
	messages, err := w.consumer.Read(ctx)
	if err != nil {
		return fmt.Errorf("reading from stream: %w", err)
	}

	for _, msg := range messages {
		if err := w.processMessageSafe(ctx, msg); err != nil {
			slog.ErrorContext(ctx, "message processing failed",
				"error", err,
				"message_id", msg.ID,
				"task_type", msg.TaskType)
			w.handleFailedMessage(ctx, msg, err)
		}
	}

	return nil
}

func (w *Worker) processMessageSafe(ctx context.Context, msg queue.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "panic recovered in message processing",
				"panic", r,
				"message_id", msg.ID,
				"task_type", msg.TaskType)
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return w.ProcessMessage(ctx, msg)
}

// ProcessMessage handles one message end to end. Exported so it can
// be reused by the reclaimer.
func (w *Worker) ProcessMessage(ctx context.Context, msg queue.Message) error {
	sc := logger.StartSpanFromTraceID(ctx, msg.TraceID, "worker.process_message",
		trace.WithSpanKind(trace.SpanKindConsumer))
	defer sc.End()
	ctx = sc.Context()

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "pulse.worker",
		TenantID:  &msg.TenantID,
		MessageID: &msg.ID,
	})

	slog.InfoContext(ctx, "processing message",
		"task_type", msg.TaskType,
		"attempt", msg.Attempt)

	var processErr error
	switch msg.TaskType {
	case queue.TaskTypeEventDispatch:
		processErr = w.processEventDispatch(ctx, msg)
	case queue.TaskTypeWorkflowExecute:
		processErr = w.processWorkflowExecute(ctx, msg)
	default:
		// ParseMessage rejects unknown types; ack defensively if one
		// slips through a version skew.
		slog.WarnContext(ctx, "unknown task type, acknowledging", "task_type", msg.TaskType)
	}

	if processErr != nil {
		sc.RecordError(processErr)
		return processErr
	}

	if err := w.consumer.Ack(ctx, msg); err != nil {
		// The message will be reclaimed; processing is idempotent.
		slog.WarnContext(ctx, "failed to ACK message", "error", err)
	}
	return nil
}

func (w *Worker) processEventDispatch(ctx context.Context, msg queue.Message) error {
	event, err := w.events.GetByID(ctx, msg.TenantID, *msg.EventID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// The row is gone; retrying cannot help.
			slog.WarnContext(ctx, "event not found, dropping message", "event_id", *msg.EventID)
			return nil
		}
		return fmt.Errorf("loading event: %w", err)
	}

	if event.Status != model.EventStatusPending {
		slog.InfoContext(ctx, "event already dispatched, skipping", "status", event.Status)
		return nil
	}

	if err := w.dispatcher.Dispatch(ctx, event); err != nil {
		return fmt.Errorf("dispatching event: %w", err)
	}
	return nil
}

func (w *Worker) processWorkflowExecute(ctx context.Context, msg queue.Message) error {
	select {
	case w.workflowSlots <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-w.workflowSlots }()

	if err := w.runner.ExecuteSteps(ctx, msg.TenantID, *msg.ExecutionID); err != nil {
		return fmt.Errorf("executing workflow steps: %w", err)
	}
	return nil
}

// handleFailedMessage requeues a failed message until MaxAttempts.
// Errors not worth retrying (LLM client errors, cancelled contexts)
// skip the requeue cycle and go straight to the DLQ.
func (w *Worker) handleFailedMessage(ctx context.Context, msg queue.Message, err error) {
	if msg.Attempt >= w.cfg.MaxAttempts || !llm.IsRetryable(ctx, err) {
		slog.ErrorContext(ctx, "sending failed message to DLQ",
			"message_id", msg.ID,
			"task_type", msg.TaskType,
			"attempts", msg.Attempt,
			"error", err)
		if dlqErr := w.consumer.SendDLQ(ctx, msg, err.Error()); dlqErr != nil {
			slog.ErrorContext(ctx, "failed to send to DLQ", "error", dlqErr)
		}
		return
	}

	slog.WarnContext(ctx, "requeuing failed message",
		"message_id", msg.ID,
		"task_type", msg.TaskType,
		"attempt", msg.Attempt)
	if requeueErr := w.consumer.Requeue(ctx, msg, err.Error()); requeueErr != nil {
		slog.ErrorContext(ctx, "failed to requeue message", "error", requeueErr)
	}
}
