package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the subset of pgx operations the stores need. Both
// *pgxpool.Pool and pgx.Tx satisfy it, so the same store code runs
// inside and outside transactions.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Stores struct {
	db DBTX
}

func NewStores(db DBTX) *Stores {
	return &Stores{db: db}
}

func (s *Stores) Events() EventStore {
	return newEventStore(s.db)
}

func (s *Stores) WorkflowDefinitions() WorkflowDefinitionStore {
	return newWorkflowDefinitionStore(s.db)
}

func (s *Stores) WorkflowExecutions() WorkflowExecutionStore {
	return newWorkflowExecutionStore(s.db)
}

func (s *Stores) WorkflowSteps() WorkflowStepStore {
	return newWorkflowStepStore(s.db)
}

func (s *Stores) Insights() InsightStore {
	return newInsightStore(s.db)
}

func (s *Stores) Notifications() NotificationStore {
	return newNotificationStore(s.db)
}
