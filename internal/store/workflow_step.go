package store

import (
	"context"

	"pulseops.app/pulse/internal/model"
)

type workflowStepStore struct {
	db DBTX
}

func newWorkflowStepStore(db DBTX) WorkflowStepStore {
	return &workflowStepStore{db: db}
}

func (s *workflowStepStore) Create(ctx context.Context, step *model.WorkflowStep) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO workflow_steps
			(id, workflow_execution_id, tenant_id, step_number, step_name, step_type,
			 status, input_data, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		step.ID, step.WorkflowExecutionID, step.TenantID, step.StepNumber,
		step.StepName, step.StepType, step.Status, step.InputData, step.StartedAt,
	)
	return err
}

// Finish finalizes a step record with its terminal status, output and timing.
func (s *workflowStepStore) Finish(ctx context.Context, step *model.WorkflowStep) error {
	_, err := s.db.Exec(ctx, `
		UPDATE workflow_steps
		SET status = $1, output_data = $2, error_message = $3, finished_at = $4, duration_ms = $5
		WHERE id = $6`,
		step.Status, step.OutputData, step.ErrorMessage, step.FinishedAt, step.DurationMS, step.ID,
	)
	return err
}

func (s *workflowStepStore) AverageDurationByType(ctx context.Context, tenantID string) (map[model.StepType]float64, error) {
	rows, err := s.db.Query(ctx, `
		SELECT step_type, avg(duration_ms)
		FROM workflow_steps
		WHERE tenant_id = $1 AND finished_at IS NOT NULL
		GROUP BY step_type`,
		tenantID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	latencies := make(map[model.StepType]float64)
	for rows.Next() {
		var (
			stepType model.StepType
			avg      float64
		)
		if err := rows.Scan(&stepType, &avg); err != nil {
			return nil, err
		}
		latencies[stepType] = avg
	}
	return latencies, rows.Err()
}

func (s *workflowStepStore) ListByExecution(ctx context.Context, executionID int64) ([]model.WorkflowStep, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, workflow_execution_id, tenant_id, step_number, step_name, step_type,
			status, input_data, output_data, error_message, started_at, finished_at, duration_ms
		FROM workflow_steps
		WHERE workflow_execution_id = $1
		ORDER BY step_number`,
		executionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var steps []model.WorkflowStep
	for rows.Next() {
		var step model.WorkflowStep
		if err := rows.Scan(
			&step.ID, &step.WorkflowExecutionID, &step.TenantID, &step.StepNumber,
			&step.StepName, &step.StepType, &step.Status, &step.InputData,
			&step.OutputData, &step.ErrorMessage, &step.StartedAt, &step.FinishedAt,
			&step.DurationMS,
		); err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	return steps, rows.Err()
}
