package workflow

import (
	"context"
	"fmt"

	"pulseops.app/pulse/internal/model"
	"pulseops.app/pulse/internal/store"
)

// TenantStats is the per-tenant workflow reporting summary.
type TenantStats struct {
	TotalExecutions   int64                           `json:"total_executions"`
	ByStatus          map[model.ExecutionStatus]int64 `json:"by_status"`
	FailureRate       float64                         `json:"failure_rate"`
	AverageDurationMS float64                         `json:"average_duration_ms"`
	StepLatencyMS     map[model.StepType]float64      `json:"step_latency_ms"`
}

type Stats struct {
	executions store.WorkflowExecutionStore
	steps      store.WorkflowStepStore
}

func NewStats(executions store.WorkflowExecutionStore, steps store.WorkflowStepStore) *Stats {
	return &Stats{
		executions: executions,
		steps:      steps,
	}
}

// TenantSummary aggregates execution counts, failure rate, average
// duration and per-step-type latency for one tenant.
func (s *Stats) TenantSummary(ctx context.Context, tenantID string) (*TenantStats, error) {
	counts, err := s.executions.CountByStatus(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("counting executions: %w", err)
	}

	var total int64
	for _, count := range counts {
		total += count
	}

	var failureRate float64
	terminal := counts[model.ExecutionStatusCompleted] + counts[model.ExecutionStatusFailed]
	if terminal > 0 {
		failureRate = float64(counts[model.ExecutionStatusFailed]) / float64(terminal)
	}

	avgDuration, err := s.executions.AverageDurationMS(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("averaging durations: %w", err)
	}

	stepLatency, err := s.steps.AverageDurationByType(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("averaging step latency: %w", err)
	}

	return &TenantStats{
		TotalExecutions:   total,
		ByStatus:          counts,
		FailureRate:       failureRate,
		AverageDurationMS: avgDuration,
		StepLatencyMS:     stepLatency,
	}, nil
}
