package dto

import (
	"encoding/json"

	"pulseops.app/pulse/internal/model"
)

type StartWorkflowRequest struct {
	Input         json.RawMessage `json:"input"`
	CorrelationID string          `json:"correlation_id"`
	UserID        *string         `json:"user_id"`
}

type StartWorkflowResponse struct {
	ExecutionID int64  `json:"execution_id"`
	Status      string `json:"status"`
}

type ExecutionResponse struct {
	Execution *model.WorkflowExecution `json:"execution"`
	Steps     []model.WorkflowStep     `json:"steps"`
}
