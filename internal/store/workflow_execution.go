package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"pulseops.app/pulse/internal/model"
)

type workflowExecutionStore struct {
	db DBTX
}

func newWorkflowExecutionStore(db DBTX) WorkflowExecutionStore {
	return &workflowExecutionStore{db: db}
}

const executionColumns = `id, workflow_definition_id, tenant_id, workflow_name, correlation_id,
	status, current_step, total_steps, input_data, error_message, started_at, finished_at`

func (s *workflowExecutionStore) Create(ctx context.Context, exec *model.WorkflowExecution) error {
	row := s.db.QueryRow(ctx, `
		INSERT INTO workflow_executions
			(id, workflow_definition_id, tenant_id, workflow_name, correlation_id,
			 status, current_step, total_steps, input_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING started_at`,
		exec.ID, exec.WorkflowDefinitionID, exec.TenantID, exec.WorkflowName,
		exec.CorrelationID, exec.Status, exec.CurrentStep, exec.TotalSteps, exec.InputData,
	)
	return row.Scan(&exec.StartedAt)
}

func (s *workflowExecutionStore) GetByID(ctx context.Context, tenantID string, id int64) (*model.WorkflowExecution, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+executionColumns+`
		FROM workflow_executions
		WHERE tenant_id = $1 AND id = $2`,
		tenantID, id,
	)
	return scanExecution(row)
}

func (s *workflowExecutionStore) AdvanceStep(ctx context.Context, id int64, currentStep int) error {
	// current_step < $1 keeps the marker monotonic even if a stale
	// worker replays an already-advanced execution.
	_, err := s.db.Exec(ctx, `
		UPDATE workflow_executions
		SET current_step = $1
		WHERE id = $2 AND current_step < $1 AND status = $3`,
		currentStep, id, model.ExecutionStatusRunning,
	)
	return err
}

func (s *workflowExecutionStore) Complete(ctx context.Context, id int64, finishedAt time.Time) error {
	_, err := s.db.Exec(ctx, `
		UPDATE workflow_executions
		SET status = $1, finished_at = $2
		WHERE id = $3 AND status = $4`,
		model.ExecutionStatusCompleted, finishedAt, id, model.ExecutionStatusRunning,
	)
	return err
}

func (s *workflowExecutionStore) Fail(ctx context.Context, id int64, errMsg string, finishedAt time.Time) error {
	_, err := s.db.Exec(ctx, `
		UPDATE workflow_executions
		SET status = $1, error_message = $2, finished_at = $3
		WHERE id = $4 AND status = $5`,
		model.ExecutionStatusFailed, errMsg, finishedAt, id, model.ExecutionStatusRunning,
	)
	return err
}

func (s *workflowExecutionStore) CountByStatus(ctx context.Context, tenantID string) (map[model.ExecutionStatus]int64, error) {
	rows, err := s.db.Query(ctx, `
		SELECT status, count(*)
		FROM workflow_executions
		WHERE tenant_id = $1
		GROUP BY status`,
		tenantID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[model.ExecutionStatus]int64)
	for rows.Next() {
		var (
			status model.ExecutionStatus
			count  int64
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

func (s *workflowExecutionStore) AverageDurationMS(ctx context.Context, tenantID string) (float64, error) {
	var avg *float64
	err := s.db.QueryRow(ctx, `
		SELECT avg(extract(epoch FROM (finished_at - started_at)) * 1000)
		FROM workflow_executions
		WHERE tenant_id = $1 AND finished_at IS NOT NULL`,
		tenantID,
	).Scan(&avg)
	if err != nil {
		return 0, err
	}
	if avg == nil {
		return 0, nil
	}
	return *avg, nil
}

func scanExecution(row pgx.Row) (*model.WorkflowExecution, error) {
	var exec model.WorkflowExecution
	err := row.Scan(
		&exec.ID, &exec.WorkflowDefinitionID, &exec.TenantID, &exec.WorkflowName,
		&exec.CorrelationID, &exec.Status, &exec.CurrentStep, &exec.TotalSteps,
		&exec.InputData, &exec.ErrorMessage, &exec.StartedAt, &exec.FinishedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &exec, nil
}
