package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"pulseops.app/pulse/common/id"
	"pulseops.app/pulse/common/llm"
	"pulseops.app/pulse/internal/model"
	"pulseops.app/pulse/internal/store"
)

// analysisResult is the structured shape requested from the LLM for
// ai_analysis steps.
type analysisResult struct {
	Summary    string   `json:"summary" jsonschema_description:"Concise analysis of the provided data"`
	Findings   []string `json:"findings" jsonschema_description:"Individual observations, most important first"`
	Confidence float64  `json:"confidence" jsonschema_description:"Confidence between 0 and 1"`
}

var analysisSchema = llm.GenerateSchema[analysisResult]()

type mutationKey struct {
	Entity    string
	Operation string
}

type mutationFunc func(ctx context.Context, tenantID string, data, where json.RawMessage) (json.RawMessage, error)

// StepExecutors dispatches workflow steps by type. The database_update
// step interprets its descriptor against a closed lookup table of
// (entity, operation) pairs built at construction; anything outside
// the table is an error, never a dynamic table lookup.
type StepExecutors struct {
	llmClient     llm.Client // nil when the LLM is not configured
	notifications store.NotificationStore
	insights      store.InsightStore
	definitions   store.WorkflowDefinitionStore
	mutations     map[mutationKey]mutationFunc
}

func NewStepExecutors(
	llmClient llm.Client,
	notifications store.NotificationStore,
	insights store.InsightStore,
	definitions store.WorkflowDefinitionStore,
) *StepExecutors {
	e := &StepExecutors{
		llmClient:     llmClient,
		notifications: notifications,
		insights:      insights,
		definitions:   definitions,
	}
	e.mutations = map[mutationKey]mutationFunc{
		{Entity: "insight", Operation: "create"}:             e.createInsight,
		{Entity: "notification", Operation: "create"}:        e.createNotification,
		{Entity: "workflow_definition", Operation: "update"}: e.updateDefinition,
	}
	return e
}

func (e *StepExecutors) Execute(ctx context.Context, exec *model.WorkflowExecution, stepCfg model.StepConfig) (json.RawMessage, error) {
	switch stepCfg.Type {
	case model.StepTypeAIAnalysis:
		return e.executeAIAnalysis(ctx, exec, stepCfg)
	case model.StepTypeDatabaseUpdate:
		return e.executeDatabaseUpdate(ctx, exec, stepCfg)
	case model.StepTypeNotification:
		return e.executeNotification(ctx, exec, stepCfg)
	default:
		return nil, fmt.Errorf("unsupported step type %q", stepCfg.Type)
	}
}

type aiAnalysisConfig struct {
	Instruction string `json:"instruction"`
}

func (e *StepExecutors) executeAIAnalysis(ctx context.Context, exec *model.WorkflowExecution, stepCfg model.StepConfig) (json.RawMessage, error) {
	if e.llmClient == nil {
		slog.InfoContext(ctx, "llm not configured, skipping analysis step")
		return json.RawMessage(`{"skipped": true}`), nil
	}

	var cfg aiAnalysisConfig
	if len(stepCfg.Config) > 0 {
		if err := json.Unmarshal(stepCfg.Config, &cfg); err != nil {
			return nil, fmt.Errorf("parsing ai_analysis config: %w", err)
		}
	}
	if cfg.Instruction == "" {
		cfg.Instruction = "Analyze the workflow input data and report notable findings."
	}

	var result analysisResult
	_, err := e.llmClient.Predict(ctx, llm.Request{
		SystemPrompt: "You analyze business workflow data and return structured findings.",
		UserPrompt:   fmt.Sprintf("%s\n\nWorkflow: %s\nInput: %s", cfg.Instruction, exec.WorkflowName, string(exec.InputData)),
		SchemaName:   "analysis_result",
		Schema:       analysisSchema,
	}, &result)
	if err != nil {
		return nil, fmt.Errorf("llm analysis: %w", err)
	}

	output, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("marshaling analysis output: %w", err)
	}
	return output, nil
}

type databaseUpdateConfig struct {
	Entity    string          `json:"entity"`
	Operation string          `json:"operation"`
	Data      json.RawMessage `json:"data"`
	Where     json.RawMessage `json:"where"`
}

func (e *StepExecutors) executeDatabaseUpdate(ctx context.Context, exec *model.WorkflowExecution, stepCfg model.StepConfig) (json.RawMessage, error) {
	var cfg databaseUpdateConfig
	if err := json.Unmarshal(stepCfg.Config, &cfg); err != nil {
		return nil, fmt.Errorf("parsing database_update config: %w", err)
	}

	mutation, ok := e.mutations[mutationKey{Entity: cfg.Entity, Operation: cfg.Operation}]
	if !ok {
		return nil, fmt.Errorf("unsupported mutation %s/%s", cfg.Entity, cfg.Operation)
	}
	return mutation(ctx, exec.TenantID, cfg.Data, cfg.Where)
}

type insightData struct {
	Category   string  `json:"category"`
	Severity   string  `json:"severity"`
	Title      string  `json:"title"`
	Summary    string  `json:"summary"`
	Confidence float64 `json:"confidence"`
}

func (e *StepExecutors) createInsight(ctx context.Context, tenantID string, data, _ json.RawMessage) (json.RawMessage, error) {
	var d insightData
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parsing insight data: %w", err)
	}
	if d.Title == "" {
		return nil, fmt.Errorf("insight title is required")
	}

	severity := model.InsightSeverity(d.Severity)
	switch severity {
	case model.InsightSeverityInfo, model.InsightSeverityWarning, model.InsightSeverityCritical:
	default:
		severity = model.InsightSeverityInfo
	}

	insight := &model.Insight{
		ID:         id.New(),
		TenantID:   tenantID,
		Category:   d.Category,
		Severity:   severity,
		Title:      d.Title,
		Summary:    d.Summary,
		Confidence: d.Confidence,
		Metadata:   json.RawMessage(`{}`),
	}
	if err := e.insights.Create(ctx, insight); err != nil {
		return nil, fmt.Errorf("creating insight: %w", err)
	}
	return json.Marshal(map[string]any{"insight_id": insight.ID})
}

type notificationData struct {
	UserID  *string `json:"user_id,omitempty"`
	Channel string  `json:"channel"`
	Title   string  `json:"title"`
	Body    string  `json:"body"`
}

func (e *StepExecutors) createNotification(ctx context.Context, tenantID string, data, _ json.RawMessage) (json.RawMessage, error) {
	var d notificationData
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parsing notification data: %w", err)
	}
	if d.Title == "" {
		return nil, fmt.Errorf("notification title is required")
	}
	if d.Channel == "" {
		d.Channel = "in_app"
	}

	notification := &model.Notification{
		ID:       id.New(),
		TenantID: tenantID,
		UserID:   d.UserID,
		Channel:  d.Channel,
		Title:    d.Title,
		Body:     d.Body,
		Metadata: json.RawMessage(`{}`),
	}
	if err := e.notifications.Create(ctx, notification); err != nil {
		return nil, fmt.Errorf("creating notification: %w", err)
	}
	return json.Marshal(map[string]any{"notification_id": notification.ID})
}

type definitionUpdateData struct {
	IsActive *bool `json:"is_active"`
}

type definitionUpdateWhere struct {
	Name string `json:"name"`
}

func (e *StepExecutors) updateDefinition(ctx context.Context, tenantID string, data, where json.RawMessage) (json.RawMessage, error) {
	var w definitionUpdateWhere
	if err := json.Unmarshal(where, &w); err != nil {
		return nil, fmt.Errorf("parsing definition where: %w", err)
	}
	if w.Name == "" {
		return nil, fmt.Errorf("definition name is required")
	}

	var d definitionUpdateData
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parsing definition data: %w", err)
	}
	if d.IsActive == nil {
		return nil, fmt.Errorf("is_active is required")
	}

	if err := e.definitions.SetActive(ctx, tenantID, w.Name, *d.IsActive); err != nil {
		return nil, fmt.Errorf("updating definition: %w", err)
	}
	return json.Marshal(map[string]any{"name": w.Name, "is_active": *d.IsActive})
}

// executeNotification persists a notification record from the step
// config. Fire-and-forget: no delivery confirmation.
func (e *StepExecutors) executeNotification(ctx context.Context, exec *model.WorkflowExecution, stepCfg model.StepConfig) (json.RawMessage, error) {
	if len(stepCfg.Config) == 0 {
		return nil, fmt.Errorf("notification step requires config")
	}
	return e.createNotification(ctx, exec.TenantID, stepCfg.Config, nil)
}
