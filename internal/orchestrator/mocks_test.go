package orchestrator_test

import (
	"context"
	"encoding/json"
	"time"

	"pulseops.app/pulse/internal/model"
)

type mockEventStore struct {
	CreateFunc        func(ctx context.Context, event *model.Event) error
	GetByIDFunc       func(ctx context.Context, tenantID string, id int64) (*model.Event, error)
	ListRecentFunc    func(ctx context.Context, tenantID string, since time.Time, limit int32) ([]model.Event, error)
	MarkProcessedFunc func(ctx context.Context, id int64) error
	MarkFailedFunc    func(ctx context.Context, id int64, errMsg string) error
}

func (m *mockEventStore) Create(ctx context.Context, event *model.Event) error {
	return m.CreateFunc(ctx, event)
}

func (m *mockEventStore) GetByID(ctx context.Context, tenantID string, id int64) (*model.Event, error) {
	return m.GetByIDFunc(ctx, tenantID, id)
}

func (m *mockEventStore) ListRecent(ctx context.Context, tenantID string, since time.Time, limit int32) ([]model.Event, error) {
	return m.ListRecentFunc(ctx, tenantID, since, limit)
}

func (m *mockEventStore) MarkProcessed(ctx context.Context, id int64) error {
	return m.MarkProcessedFunc(ctx, id)
}

func (m *mockEventStore) MarkFailed(ctx context.Context, id int64, errMsg string) error {
	return m.MarkFailedFunc(ctx, id, errMsg)
}

type mockWorkflowStarter struct {
	StartWorkflowFunc func(ctx context.Context, name string, inputData json.RawMessage, meta model.EventMeta) (int64, error)
}

func (m *mockWorkflowStarter) StartWorkflow(ctx context.Context, name string, inputData json.RawMessage, meta model.EventMeta) (int64, error) {
	return m.StartWorkflowFunc(ctx, name, inputData, meta)
}

type mockPublisher struct {
	PublishFunc func(ctx context.Context, name string, payload json.RawMessage, meta model.EventMeta) (*model.Event, error)
}

func (m *mockPublisher) Publish(ctx context.Context, name string, payload json.RawMessage, meta model.EventMeta) (*model.Event, error) {
	return m.PublishFunc(ctx, name, payload, meta)
}

type mockInsightStore struct {
	CreateFunc     func(ctx context.Context, insight *model.Insight) error
	GetByIDFunc    func(ctx context.Context, tenantID string, id int64) (*model.Insight, error)
	ListRecentFunc func(ctx context.Context, tenantID string, limit int32) ([]model.Insight, error)
}

func (m *mockInsightStore) Create(ctx context.Context, insight *model.Insight) error {
	return m.CreateFunc(ctx, insight)
}

func (m *mockInsightStore) GetByID(ctx context.Context, tenantID string, id int64) (*model.Insight, error) {
	return m.GetByIDFunc(ctx, tenantID, id)
}

func (m *mockInsightStore) ListRecent(ctx context.Context, tenantID string, limit int32) ([]model.Insight, error) {
	return m.ListRecentFunc(ctx, tenantID, limit)
}

type mockNotificationStore struct {
	CreateFunc     func(ctx context.Context, notification *model.Notification) error
	ListRecentFunc func(ctx context.Context, tenantID string, limit int32) ([]model.Notification, error)
}

func (m *mockNotificationStore) Create(ctx context.Context, notification *model.Notification) error {
	return m.CreateFunc(ctx, notification)
}

func (m *mockNotificationStore) ListRecent(ctx context.Context, tenantID string, limit int32) ([]model.Notification, error) {
	return m.ListRecentFunc(ctx, tenantID, limit)
}
