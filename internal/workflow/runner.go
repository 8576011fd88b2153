package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/trace"

	"pulseops.app/pulse/common/id"
	"pulseops.app/pulse/common/logger"
	"pulseops.app/pulse/internal/model"
	"pulseops.app/pulse/internal/queue"
	"pulseops.app/pulse/internal/store"
)

// ErrDefinitionNotFound is returned when a workflow is started for a
// name with no active definition in the tenant.
var ErrDefinitionNotFound = errors.New("workflow definition not found")

// Runner owns the workflow execution state machine. StartWorkflow
// creates the execution and enqueues it; ExecuteSteps walks the step
// list on the worker side.
type Runner struct {
	definitions store.WorkflowDefinitionStore
	executions  store.WorkflowExecutionStore
	steps       store.WorkflowStepStore
	executors   *StepExecutors
	producer    queue.Producer
}

func NewRunner(
	definitions store.WorkflowDefinitionStore,
	executions store.WorkflowExecutionStore,
	steps store.WorkflowStepStore,
	executors *StepExecutors,
	producer queue.Producer,
) *Runner {
	return &Runner{
		definitions: definitions,
		executions:  executions,
		steps:       steps,
		executors:   executors,
		producer:    producer,
	}
}

// StartWorkflow looks up the active definition, creates a RUNNING
// execution and enqueues it for detached processing. It returns the
// execution ID immediately; callers cannot observe step outcomes
// synchronously. No execution row is created when the definition is
// missing or inactive.
func (r *Runner) StartWorkflow(ctx context.Context, name string, inputData json.RawMessage, meta model.EventMeta) (int64, error) {
	if meta.TenantID == "" {
		return 0, fmt.Errorf("tenant id is required")
	}
	if len(inputData) == 0 {
		inputData = json.RawMessage(`{}`)
	}

	def, err := r.definitions.GetActiveByName(ctx, meta.TenantID, name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, fmt.Errorf("%w: %s", ErrDefinitionNotFound, name)
		}
		return 0, fmt.Errorf("loading definition %s: %w", name, err)
	}
	if len(def.Steps) == 0 {
		return 0, fmt.Errorf("definition %s has no steps", name)
	}

	correlationID := meta.CorrelationID
	if correlationID == "" {
		correlationID = strconv.FormatInt(id.New(), 10)
	}

	exec := &model.WorkflowExecution{
		ID:                   id.New(),
		WorkflowDefinitionID: def.ID,
		TenantID:             meta.TenantID,
		WorkflowName:         def.Name,
		CorrelationID:        correlationID,
		Status:               model.ExecutionStatusRunning,
		CurrentStep:          1,
		TotalSteps:           len(def.Steps),
		InputData:            inputData,
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component:   "pulse.workflow",
		TenantID:    &exec.TenantID,
		ExecutionID: &exec.ID,
		Workflow:    &exec.WorkflowName,
	})

	if err := r.executions.Create(ctx, exec); err != nil {
		return 0, fmt.Errorf("creating execution: %w", err)
	}

	task := queue.Task{
		TaskType:    queue.TaskTypeWorkflowExecute,
		TenantID:    exec.TenantID,
		ExecutionID: &exec.ID,
	}
	if span := trace.SpanContextFromContext(ctx); span.HasTraceID() {
		traceID := span.TraceID().String()
		task.TraceID = &traceID
	}

	if err := r.producer.Enqueue(ctx, task); err != nil {
		// The execution stays RUNNING with no consumer; the reclaimer
		// cannot see it, so surface the error to the caller.
		return 0, fmt.Errorf("enqueueing execution: %w", err)
	}

	slog.InfoContext(ctx, "workflow started", "total_steps", exec.TotalSteps)
	return exec.ID, nil
}

// ExecuteSteps drives an execution from its persisted CurrentStep to
// the end of the step list. A re-delivered message for a terminal
// execution is a no-op; an interrupted execution resumes where the
// marker left off. A step failure fails the whole execution and is
// not returned as an error: the outcome is recorded on the execution
// row and the queue message can be acked. Errors are returned only
// for infrastructure failures worth retrying.
func (r *Runner) ExecuteSteps(ctx context.Context, tenantID string, executionID int64) error {
	exec, err := r.executions.GetByID(ctx, tenantID, executionID)
	if err != nil {
		return fmt.Errorf("loading execution: %w", err)
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component:   "pulse.workflow",
		TenantID:    &exec.TenantID,
		ExecutionID: &exec.ID,
		Workflow:    &exec.WorkflowName,
	})

	if exec.Status.Terminal() {
		slog.InfoContext(ctx, "execution already terminal", "status", exec.Status)
		return nil
	}

	def, err := r.definitions.GetByID(ctx, tenantID, exec.WorkflowDefinitionID)
	if err != nil {
		return fmt.Errorf("loading definition: %w", err)
	}

	for stepNumber := exec.CurrentStep; stepNumber <= exec.TotalSteps; stepNumber++ {
		stepCfg := def.Steps[stepNumber-1]

		if err := r.executeStep(ctx, exec, stepNumber, stepCfg); err != nil {
			failErr := r.executions.Fail(ctx, exec.ID, err.Error(), time.Now().UTC())
			if failErr != nil {
				return fmt.Errorf("failing execution: %w", failErr)
			}
			slog.ErrorContext(ctx, "workflow failed",
				"step_number", stepNumber,
				"step_name", stepCfg.Name,
				"error", err)
			return nil
		}

		if err := r.executions.AdvanceStep(ctx, exec.ID, stepNumber+1); err != nil {
			return fmt.Errorf("advancing step: %w", err)
		}
	}

	if err := r.executions.Complete(ctx, exec.ID, time.Now().UTC()); err != nil {
		return fmt.Errorf("completing execution: %w", err)
	}

	slog.InfoContext(ctx, "workflow completed", "total_steps", exec.TotalSteps)
	return nil
}

// executeStep records the audit row around a single step. The row is
// created EXECUTING before the executor runs and finalized right
// after, success or failure.
func (r *Runner) executeStep(ctx context.Context, exec *model.WorkflowExecution, stepNumber int, stepCfg model.StepConfig) error {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		StepNumber: &stepNumber,
	})

	inputData, err := json.Marshal(map[string]json.RawMessage{
		"config": orEmptyObject(stepCfg.Config),
		"input":  orEmptyObject(exec.InputData),
	})
	if err != nil {
		return fmt.Errorf("marshaling step input: %w", err)
	}

	startedAt := time.Now().UTC()
	step := &model.WorkflowStep{
		ID:                  id.New(),
		WorkflowExecutionID: exec.ID,
		TenantID:            exec.TenantID,
		StepNumber:          stepNumber,
		StepName:            stepCfg.Name,
		StepType:            stepCfg.Type,
		Status:              model.StepStatusExecuting,
		InputData:           inputData,
		StartedAt:           startedAt,
	}
	if err := r.steps.Create(ctx, step); err != nil {
		return fmt.Errorf("creating step record: %w", err)
	}

	output, execErr := r.executors.Execute(ctx, exec, stepCfg)

	finishedAt := time.Now().UTC()
	step.FinishedAt = &finishedAt
	step.DurationMS = finishedAt.Sub(startedAt).Milliseconds()

	if execErr != nil {
		step.Status = model.StepStatusFailed
		step.ErrorMessage = logger.Ptr(execErr.Error())
	} else {
		step.Status = model.StepStatusCompleted
		step.OutputData = output
	}

	if err := r.steps.Finish(ctx, step); err != nil {
		return fmt.Errorf("finalizing step record: %w", err)
	}

	if execErr != nil {
		return fmt.Errorf("step %d (%s): %w", stepNumber, stepCfg.Name, execErr)
	}

	slog.InfoContext(ctx, "step completed",
		"step_name", stepCfg.Name,
		"step_type", stepCfg.Type,
		"duration_ms", step.DurationMS)
	return nil
}

func orEmptyObject(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage(`{}`)
	}
	return raw
}
