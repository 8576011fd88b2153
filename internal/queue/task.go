package queue

type TaskType string

const (
	// TaskTypeEventDispatch routes a persisted event through the orchestrator.
	TaskTypeEventDispatch TaskType = "event_dispatch"
	// TaskTypeWorkflowExecute runs the steps of a started workflow execution.
	TaskTypeWorkflowExecute TaskType = "workflow_execute"
)

type Task struct {
	TaskType TaskType
	TenantID string
	TraceID  *string
	Attempt  int

	// event_dispatch
	EventID *int64

	// workflow_execute
	ExecutionID *int64
}
