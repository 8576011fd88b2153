package worker_test

import (
	"context"
	"sync"
	"time"

	"pulseops.app/pulse/internal/model"
	"pulseops.app/pulse/internal/queue"
	"pulseops.app/pulse/internal/store"
)

type mockConsumer struct {
	mu       sync.Mutex
	ReadFunc func(ctx context.Context) ([]queue.Message, error)
	acked    []string
	requeued []string
	dlq      []string
}

func (m *mockConsumer) Read(ctx context.Context) ([]queue.Message, error) {
	if m.ReadFunc != nil {
		return m.ReadFunc(ctx)
	}
	return nil, nil
}

func (m *mockConsumer) Ack(_ context.Context, msg queue.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.acked = append(m.acked, msg.ID)
	return nil
}

func (m *mockConsumer) Requeue(_ context.Context, msg queue.Message, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requeued = append(m.requeued, msg.ID)
	return nil
}

func (m *mockConsumer) SendDLQ(_ context.Context, msg queue.Message, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dlq = append(m.dlq, msg.ID)
	return nil
}

type mockEventStore struct {
	GetByIDFunc       func(ctx context.Context, tenantID string, id int64) (*model.Event, error)
	MarkProcessedFunc func(ctx context.Context, id int64) error
	MarkFailedFunc    func(ctx context.Context, id int64, errMsg string) error
}

func (m *mockEventStore) Create(context.Context, *model.Event) error { return nil }

func (m *mockEventStore) GetByID(ctx context.Context, tenantID string, id int64) (*model.Event, error) {
	return m.GetByIDFunc(ctx, tenantID, id)
}

func (m *mockEventStore) ListRecent(context.Context, string, time.Time, int32) ([]model.Event, error) {
	return nil, nil
}

func (m *mockEventStore) MarkProcessed(ctx context.Context, id int64) error {
	if m.MarkProcessedFunc != nil {
		return m.MarkProcessedFunc(ctx, id)
	}
	return nil
}

func (m *mockEventStore) MarkFailed(ctx context.Context, id int64, errMsg string) error {
	if m.MarkFailedFunc != nil {
		return m.MarkFailedFunc(ctx, id, errMsg)
	}
	return nil
}

var _ store.EventStore = (*mockEventStore)(nil)

type mockDispatcher struct {
	DispatchFunc func(ctx context.Context, event *model.Event) error
}

func (m *mockDispatcher) Dispatch(ctx context.Context, event *model.Event) error {
	return m.DispatchFunc(ctx, event)
}

type mockRunner struct {
	ExecuteStepsFunc func(ctx context.Context, tenantID string, executionID int64) error
}

func (m *mockRunner) ExecuteSteps(ctx context.Context, tenantID string, executionID int64) error {
	return m.ExecuteStepsFunc(ctx, tenantID, executionID)
}
