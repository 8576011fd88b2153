package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"pulseops.app/pulse/internal/http/dto"
	"pulseops.app/pulse/internal/model"
	"pulseops.app/pulse/internal/store"
	"pulseops.app/pulse/internal/workflow"
)

// WorkflowStarter is the runner surface the handler needs. Satisfied
// by workflow.Runner.
type WorkflowStarter interface {
	StartWorkflow(ctx context.Context, name string, inputData json.RawMessage, meta model.EventMeta) (int64, error)
}

// StatsProvider is satisfied by workflow.Stats.
type StatsProvider interface {
	TenantSummary(ctx context.Context, tenantID string) (*workflow.TenantStats, error)
}

type WorkflowHandler struct {
	starter    WorkflowStarter
	stats      StatsProvider
	executions store.WorkflowExecutionStore
	steps      store.WorkflowStepStore
}

func NewWorkflowHandler(starter WorkflowStarter, stats StatsProvider, executions store.WorkflowExecutionStore, steps store.WorkflowStepStore) *WorkflowHandler {
	return &WorkflowHandler{
		starter:    starter,
		stats:      stats,
		executions: executions,
		steps:      steps,
	}
}

func (h *WorkflowHandler) Start(c *gin.Context) {
	ctx := c.Request.Context()

	tenant, ok := tenantID(c)
	if !ok {
		return
	}

	name := c.Param("name")

	var req dto.StartWorkflowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid start request", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	executionID, err := h.starter.StartWorkflow(ctx, name, req.Input, model.EventMeta{
		TenantID:      tenant,
		UserID:        req.UserID,
		CorrelationID: req.CorrelationID,
		Source:        "api",
	})
	if err != nil {
		if errors.Is(err, workflow.ErrDefinitionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "workflow definition not found"})
			return
		}
		slog.ErrorContext(ctx, "failed to start workflow", "error", err, "workflow", name)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start workflow"})
		return
	}

	c.JSON(http.StatusAccepted, dto.StartWorkflowResponse{
		ExecutionID: executionID,
		Status:      string(model.ExecutionStatusRunning),
	})
}

func (h *WorkflowHandler) GetExecution(c *gin.Context) {
	ctx := c.Request.Context()

	tenant, ok := tenantID(c)
	if !ok {
		return
	}

	executionID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid execution id"})
		return
	}

	exec, err := h.executions.GetByID(ctx, tenant, executionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "execution not found"})
			return
		}
		slog.ErrorContext(ctx, "failed to load execution", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load execution"})
		return
	}

	steps, err := h.steps.ListByExecution(ctx, executionID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load steps", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load execution"})
		return
	}

	c.JSON(http.StatusOK, dto.ExecutionResponse{
		Execution: exec,
		Steps:     steps,
	})
}

func (h *WorkflowHandler) Stats(c *gin.Context) {
	ctx := c.Request.Context()

	tenant, ok := tenantID(c)
	if !ok {
		return
	}

	summary, err := h.stats.TenantSummary(ctx, tenant)
	if err != nil {
		slog.ErrorContext(ctx, "failed to aggregate stats", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to aggregate stats"})
		return
	}

	c.JSON(http.StatusOK, summary)
}
