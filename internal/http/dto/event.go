package dto

import "encoding/json"

type PublishEventRequest struct {
	Name    string          `json:"name" binding:"required"`
	Source  string          `json:"source"`
	Payload json.RawMessage `json:"payload"`
	UserID  *string         `json:"user_id"`
}

type PublishEventResponse struct {
	EventID       int64  `json:"event_id"`
	CorrelationID string `json:"correlation_id"`
	Status        string `json:"status"`
}
