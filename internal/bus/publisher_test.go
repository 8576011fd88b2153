package bus_test

import (
	"context"
	"encoding/json"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"pulseops.app/pulse/internal/bus"
	"pulseops.app/pulse/internal/model"
	"pulseops.app/pulse/internal/queue"
)

var _ = Describe("Publisher", func() {
	var (
		events    *mockEventStore
		producer  *mockProducer
		publisher *bus.Publisher

		created  []*model.Event
		enqueued []queue.Task
	)

	BeforeEach(func() {
		created = nil
		enqueued = nil
		events = &mockEventStore{
			CreateFunc: func(_ context.Context, event *model.Event) error {
				created = append(created, event)
				return nil
			},
		}
		producer = &mockProducer{
			EnqueueFunc: func(_ context.Context, task queue.Task) error {
				enqueued = append(enqueued, task)
				return nil
			},
		}
		publisher = bus.NewPublisher(events, producer)
	})

	It("persists the event and enqueues a dispatch task", func() {
		event, err := publisher.Publish(context.Background(), "finance.invoice.created",
			json.RawMessage(`{"amount": 125.50}`),
			model.EventMeta{TenantID: "acme", Source: "api"})
		Expect(err).NotTo(HaveOccurred())

		Expect(created).To(HaveLen(1))
		Expect(event.ID).NotTo(BeZero())
		Expect(event.Status).To(Equal(model.EventStatusPending))
		Expect(event.CorrelationID).NotTo(BeEmpty())

		Expect(enqueued).To(HaveLen(1))
		Expect(enqueued[0].TaskType).To(Equal(queue.TaskTypeEventDispatch))
		Expect(enqueued[0].TenantID).To(Equal("acme"))
		Expect(enqueued[0].EventID).To(HaveValue(Equal(event.ID)))
	})

	It("keeps a caller supplied correlation id", func() {
		event, err := publisher.Publish(context.Background(), "project.task.completed",
			nil, model.EventMeta{TenantID: "acme", CorrelationID: "corr-1"})
		Expect(err).NotTo(HaveOccurred())
		Expect(event.CorrelationID).To(Equal("corr-1"))
	})

	It("defaults an empty payload to an empty object", func() {
		event, err := publisher.Publish(context.Background(), "system.health.degraded",
			nil, model.EventMeta{TenantID: "acme"})
		Expect(err).NotTo(HaveOccurred())
		Expect(string(event.Payload)).To(Equal(`{}`))
	})

	It("rejects an empty event name", func() {
		_, err := publisher.Publish(context.Background(), "", nil, model.EventMeta{TenantID: "acme"})
		Expect(err).To(MatchError(ContainSubstring("event name")))
		Expect(created).To(BeEmpty())
	})

	It("rejects a missing tenant", func() {
		_, err := publisher.Publish(context.Background(), "finance.invoice.created", nil, model.EventMeta{})
		Expect(err).To(MatchError(ContainSubstring("tenant")))
	})

	It("returns the store error without enqueueing", func() {
		events.CreateFunc = func(context.Context, *model.Event) error {
			return errors.New("db down")
		}
		_, err := publisher.Publish(context.Background(), "finance.invoice.created",
			nil, model.EventMeta{TenantID: "acme"})
		Expect(err).To(MatchError(ContainSubstring("db down")))
		Expect(enqueued).To(BeEmpty())
	})

	It("surfaces enqueue failures", func() {
		producer.EnqueueFunc = func(context.Context, queue.Task) error {
			return errors.New("redis down")
		}
		_, err := publisher.Publish(context.Background(), "finance.invoice.created",
			nil, model.EventMeta{TenantID: "acme"})
		Expect(err).To(MatchError(ContainSubstring("redis down")))
		Expect(created).To(HaveLen(1))
	})
})
