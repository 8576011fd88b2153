package workflow_test

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"pulseops.app/pulse/common/llm"
	"pulseops.app/pulse/internal/model"
	"pulseops.app/pulse/internal/queue"
	"pulseops.app/pulse/internal/store"
)

// In-memory store fakes backing the runner tests. They mirror the SQL
// stores' semantics: ErrNotFound sentinels, monotonic step advance,
// terminal-status guards.

type memDefinitions struct {
	mu   sync.Mutex
	defs map[int64]*model.WorkflowDefinition
}

func newMemDefinitions() *memDefinitions {
	return &memDefinitions{defs: map[int64]*model.WorkflowDefinition{}}
}

func (m *memDefinitions) Create(_ context.Context, def *model.WorkflowDefinition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *def
	m.defs[def.ID] = &copied
	return nil
}

func (m *memDefinitions) GetByID(_ context.Context, tenantID string, id int64) (*model.WorkflowDefinition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	def, ok := m.defs[id]
	if !ok || def.TenantID != tenantID {
		return nil, store.ErrNotFound
	}
	copied := *def
	return &copied, nil
}

func (m *memDefinitions) GetActiveByName(_ context.Context, tenantID string, name string) (*model.WorkflowDefinition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, def := range m.defs {
		if def.TenantID == tenantID && def.Name == name && def.IsActive {
			copied := *def
			return &copied, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memDefinitions) SetActive(_ context.Context, tenantID string, name string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	found := false
	for _, def := range m.defs {
		if def.TenantID == tenantID && def.Name == name {
			def.IsActive = active
			found = true
		}
	}
	if !found {
		return store.ErrNotFound
	}
	return nil
}

func (m *memDefinitions) ListByTenant(_ context.Context, tenantID string) ([]model.WorkflowDefinition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var defs []model.WorkflowDefinition
	for _, def := range m.defs {
		if def.TenantID == tenantID {
			defs = append(defs, *def)
		}
	}
	return defs, nil
}

type memExecutions struct {
	mu    sync.Mutex
	execs map[int64]*model.WorkflowExecution
}

func newMemExecutions() *memExecutions {
	return &memExecutions{execs: map[int64]*model.WorkflowExecution{}}
}

func (m *memExecutions) Create(_ context.Context, exec *model.WorkflowExecution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	exec.StartedAt = time.Now().UTC()
	copied := *exec
	m.execs[exec.ID] = &copied
	return nil
}

func (m *memExecutions) GetByID(_ context.Context, tenantID string, id int64) (*model.WorkflowExecution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	exec, ok := m.execs[id]
	if !ok || exec.TenantID != tenantID {
		return nil, store.ErrNotFound
	}
	copied := *exec
	return &copied, nil
}

func (m *memExecutions) AdvanceStep(_ context.Context, id int64, currentStep int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	exec, ok := m.execs[id]
	if !ok {
		return nil
	}
	if exec.Status == model.ExecutionStatusRunning && currentStep > exec.CurrentStep {
		exec.CurrentStep = currentStep
	}
	return nil
}

func (m *memExecutions) Complete(_ context.Context, id int64, finishedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	exec, ok := m.execs[id]
	if !ok || exec.Status != model.ExecutionStatusRunning {
		return nil
	}
	exec.Status = model.ExecutionStatusCompleted
	exec.FinishedAt = &finishedAt
	return nil
}

func (m *memExecutions) Fail(_ context.Context, id int64, errMsg string, finishedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	exec, ok := m.execs[id]
	if !ok || exec.Status != model.ExecutionStatusRunning {
		return nil
	}
	exec.Status = model.ExecutionStatusFailed
	exec.ErrorMessage = &errMsg
	exec.FinishedAt = &finishedAt
	return nil
}

func (m *memExecutions) CountByStatus(_ context.Context, tenantID string) (map[model.ExecutionStatus]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := map[model.ExecutionStatus]int64{}
	for _, exec := range m.execs {
		if exec.TenantID == tenantID {
			counts[exec.Status]++
		}
	}
	return counts, nil
}

func (m *memExecutions) AverageDurationMS(_ context.Context, tenantID string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total float64
	var n int
	for _, exec := range m.execs {
		if exec.TenantID == tenantID && exec.FinishedAt != nil {
			total += float64(exec.FinishedAt.Sub(exec.StartedAt).Milliseconds())
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	return total / float64(n), nil
}

type memSteps struct {
	mu    sync.Mutex
	steps []*model.WorkflowStep
}

func newMemSteps() *memSteps {
	return &memSteps{}
}

func (m *memSteps) Create(_ context.Context, step *model.WorkflowStep) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *step
	m.steps = append(m.steps, &copied)
	return nil
}

func (m *memSteps) Finish(_ context.Context, step *model.WorkflowStep) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.steps {
		if existing.ID == step.ID {
			existing.Status = step.Status
			existing.OutputData = step.OutputData
			existing.ErrorMessage = step.ErrorMessage
			existing.FinishedAt = step.FinishedAt
			existing.DurationMS = step.DurationMS
		}
	}
	return nil
}

func (m *memSteps) ListByExecution(_ context.Context, executionID int64) ([]model.WorkflowStep, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var steps []model.WorkflowStep
	for _, step := range m.steps {
		if step.WorkflowExecutionID == executionID {
			steps = append(steps, *step)
		}
	}
	return steps, nil
}

func (m *memSteps) AverageDurationByType(_ context.Context, tenantID string) (map[model.StepType]float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	totals := map[model.StepType]float64{}
	counts := map[model.StepType]int{}
	for _, step := range m.steps {
		if step.TenantID == tenantID && step.FinishedAt != nil {
			totals[step.StepType] += float64(step.DurationMS)
			counts[step.StepType]++
		}
	}
	latencies := map[model.StepType]float64{}
	for stepType, total := range totals {
		latencies[stepType] = total / float64(counts[stepType])
	}
	return latencies, nil
}

type memNotifications struct {
	mu    sync.Mutex
	items []*model.Notification
}

func newMemNotifications() *memNotifications {
	return &memNotifications{}
}

func (m *memNotifications) Create(_ context.Context, notification *model.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *notification
	m.items = append(m.items, &copied)
	return nil
}

func (m *memNotifications) ListRecent(_ context.Context, tenantID string, limit int32) ([]model.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []model.Notification
	for _, n := range m.items {
		if n.TenantID == tenantID {
			items = append(items, *n)
		}
	}
	return items, nil
}

type memInsights struct {
	mu    sync.Mutex
	items []*model.Insight
}

func newMemInsights() *memInsights {
	return &memInsights{}
}

func (m *memInsights) Create(_ context.Context, insight *model.Insight) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *insight
	m.items = append(m.items, &copied)
	return nil
}

func (m *memInsights) GetByID(_ context.Context, tenantID string, id int64) (*model.Insight, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, insight := range m.items {
		if insight.TenantID == tenantID && insight.ID == id {
			copied := *insight
			return &copied, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memInsights) ListRecent(_ context.Context, tenantID string, limit int32) ([]model.Insight, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []model.Insight
	for _, insight := range m.items {
		if insight.TenantID == tenantID {
			items = append(items, *insight)
		}
	}
	return items, nil
}

type mockProducer struct {
	mu    sync.Mutex
	tasks []queue.Task
	err   error
}

func (m *mockProducer) Enqueue(_ context.Context, task queue.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.tasks = append(m.tasks, task)
	return nil
}

func (m *mockProducer) Close() error { return nil }

func (m *mockProducer) Tasks() []queue.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]queue.Task(nil), m.tasks...)
}

type mockLLM struct {
	PredictFunc func(ctx context.Context, req llm.Request, result any) (*llm.Response, error)
}

func (m *mockLLM) Predict(ctx context.Context, req llm.Request, result any) (*llm.Response, error) {
	return m.PredictFunc(ctx, req, result)
}

func (m *mockLLM) Model() string { return "mock" }

func mustJSON(v any) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return raw
}
