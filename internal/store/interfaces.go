package store

import (
	"context"
	"errors"
	"time"

	"pulseops.app/pulse/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// EventStore defines the contract for event data access
type EventStore interface {
	Create(ctx context.Context, event *model.Event) error
	GetByID(ctx context.Context, tenantID string, id int64) (*model.Event, error)
	ListRecent(ctx context.Context, tenantID string, since time.Time, limit int32) ([]model.Event, error)
	MarkProcessed(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, errMsg string) error
}

// WorkflowDefinitionStore defines the contract for workflow definition data access
type WorkflowDefinitionStore interface {
	Create(ctx context.Context, def *model.WorkflowDefinition) error
	GetByID(ctx context.Context, tenantID string, id int64) (*model.WorkflowDefinition, error)
	GetActiveByName(ctx context.Context, tenantID string, name string) (*model.WorkflowDefinition, error)
	SetActive(ctx context.Context, tenantID string, name string, active bool) error
	ListByTenant(ctx context.Context, tenantID string) ([]model.WorkflowDefinition, error)
}

// WorkflowExecutionStore defines the contract for workflow execution data access
type WorkflowExecutionStore interface {
	Create(ctx context.Context, exec *model.WorkflowExecution) error
	GetByID(ctx context.Context, tenantID string, id int64) (*model.WorkflowExecution, error)
	// AdvanceStep persists a monotonic step advance; it never moves the
	// marker backwards.
	AdvanceStep(ctx context.Context, id int64, currentStep int) error
	Complete(ctx context.Context, id int64, finishedAt time.Time) error
	Fail(ctx context.Context, id int64, errMsg string, finishedAt time.Time) error
	CountByStatus(ctx context.Context, tenantID string) (map[model.ExecutionStatus]int64, error)
	AverageDurationMS(ctx context.Context, tenantID string) (float64, error)
}

// WorkflowStepStore defines the contract for the append-only step audit trail
type WorkflowStepStore interface {
	Create(ctx context.Context, step *model.WorkflowStep) error
	Finish(ctx context.Context, step *model.WorkflowStep) error
	ListByExecution(ctx context.Context, executionID int64) ([]model.WorkflowStep, error)
	AverageDurationByType(ctx context.Context, tenantID string) (map[model.StepType]float64, error)
}

// InsightStore defines the contract for insight data access
type InsightStore interface {
	Create(ctx context.Context, insight *model.Insight) error
	GetByID(ctx context.Context, tenantID string, id int64) (*model.Insight, error)
	ListRecent(ctx context.Context, tenantID string, limit int32) ([]model.Insight, error)
}

// NotificationStore defines the contract for notification data access
type NotificationStore interface {
	Create(ctx context.Context, notification *model.Notification) error
	ListRecent(ctx context.Context, tenantID string, limit int32) ([]model.Notification, error)
}
