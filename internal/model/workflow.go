package model

import (
	"encoding/json"
	"time"
)

type StepType string

const (
	StepTypeAIAnalysis     StepType = "ai_analysis"
	StepTypeDatabaseUpdate StepType = "database_update"
	StepTypeNotification   StepType = "notification"
)

// StepConfig is one entry in a workflow definition's ordered step list.
type StepConfig struct {
	Name   string          `json:"name"`
	Type   StepType        `json:"type"`
	Config json.RawMessage `json:"config,omitempty"`
}

// WorkflowDefinition is a named, ordered list of step configurations
// describing a repeatable process. Read-only at execution time.
type WorkflowDefinition struct {
	ID        int64        `json:"id"`
	TenantID  string       `json:"tenant_id"`
	Name      string       `json:"name"`
	Steps     []StepConfig `json:"steps"`
	IsActive  bool         `json:"is_active"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

type ExecutionStatus string

const (
	ExecutionStatusRunning   ExecutionStatus = "RUNNING"
	ExecutionStatusCompleted ExecutionStatus = "COMPLETED"
	ExecutionStatusFailed    ExecutionStatus = "FAILED"
)

// Terminal reports whether the status admits no further transitions.
func (s ExecutionStatus) Terminal() bool {
	return s == ExecutionStatusCompleted || s == ExecutionStatusFailed
}

// WorkflowExecution is one running or finished instance of a workflow
// definition. CurrentStep is 1-indexed and only ever advances; a
// completed N-step execution ends with CurrentStep == N+1.
type WorkflowExecution struct {
	ID                   int64           `json:"id"`
	WorkflowDefinitionID int64           `json:"workflow_definition_id"`
	TenantID             string          `json:"tenant_id"`
	WorkflowName         string          `json:"workflow_name"`
	CorrelationID        string          `json:"correlation_id"`
	Status               ExecutionStatus `json:"status"`
	CurrentStep          int             `json:"current_step"`
	TotalSteps           int             `json:"total_steps"`
	InputData            json.RawMessage `json:"input_data,omitempty"`
	ErrorMessage         *string         `json:"error_message,omitempty"`
	StartedAt            time.Time       `json:"started_at"`
	FinishedAt           *time.Time      `json:"finished_at,omitempty"`
}

type StepStatus string

const (
	StepStatusExecuting StepStatus = "EXECUTING"
	StepStatusCompleted StepStatus = "COMPLETED"
	StepStatusFailed    StepStatus = "FAILED"
)

// WorkflowStep is the append-only audit record of one executed step.
// Created immediately before the step runs, finalized immediately after.
type WorkflowStep struct {
	ID                  int64           `json:"id"`
	WorkflowExecutionID int64           `json:"workflow_execution_id"`
	TenantID            string          `json:"tenant_id"`
	StepNumber          int             `json:"step_number"`
	StepName            string          `json:"step_name"`
	StepType            StepType        `json:"step_type"`
	Status              StepStatus      `json:"status"`
	InputData           json.RawMessage `json:"input_data,omitempty"`
	OutputData          json.RawMessage `json:"output_data,omitempty"`
	ErrorMessage        *string         `json:"error_message,omitempty"`
	StartedAt           time.Time       `json:"started_at"`
	FinishedAt          *time.Time      `json:"finished_at,omitempty"`
	DurationMS          int64           `json:"duration_ms"`
}
