package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"pulseops.app/pulse/internal/model"
	"pulseops.app/pulse/internal/queue"
	"pulseops.app/pulse/internal/store"
	"pulseops.app/pulse/internal/worker"
)

var _ = Describe("Worker", func() {
	var (
		consumer   *mockConsumer
		events     *mockEventStore
		dispatcher *mockDispatcher
		runner     *mockRunner
		w          *worker.Worker

		ctx context.Context
	)

	eventID := int64(42)
	executionID := int64(99)

	dispatchMsg := queue.Message{
		ID:       "1-0",
		TaskType: queue.TaskTypeEventDispatch,
		TenantID: "acme",
		EventID:  &eventID,
		Attempt:  1,
	}
	executeMsg := queue.Message{
		ID:          "2-0",
		TaskType:    queue.TaskTypeWorkflowExecute,
		TenantID:    "acme",
		ExecutionID: &executionID,
		Attempt:     1,
	}

	BeforeEach(func() {
		ctx = context.Background()
		consumer = &mockConsumer{}
		events = &mockEventStore{
			GetByIDFunc: func(_ context.Context, _ string, id int64) (*model.Event, error) {
				return &model.Event{ID: id, TenantID: "acme", Name: "finance.invoice.created", Status: model.EventStatusPending}, nil
			},
		}
		dispatcher = &mockDispatcher{
			DispatchFunc: func(context.Context, *model.Event) error { return nil },
		}
		runner = &mockRunner{
			ExecuteStepsFunc: func(context.Context, string, int64) error { return nil },
		}
		w = worker.New(consumer, events, dispatcher, runner, worker.Config{
			MaxAttempts:            3,
			MaxConcurrentWorkflows: 2,
		})
	})

	Describe("event dispatch messages", func() {
		It("dispatches the event and acks", func() {
			var dispatched []*model.Event
			dispatcher.DispatchFunc = func(_ context.Context, event *model.Event) error {
				dispatched = append(dispatched, event)
				return nil
			}

			Expect(w.ProcessMessage(ctx, dispatchMsg)).To(Succeed())
			Expect(dispatched).To(HaveLen(1))
			Expect(dispatched[0].ID).To(Equal(eventID))
			Expect(consumer.acked).To(Equal([]string{"1-0"}))
		})

		It("drops a message whose event row is gone", func() {
			events.GetByIDFunc = func(context.Context, string, int64) (*model.Event, error) {
				return nil, store.ErrNotFound
			}

			Expect(w.ProcessMessage(ctx, dispatchMsg)).To(Succeed())
			Expect(consumer.acked).To(Equal([]string{"1-0"}))
		})

		It("skips an already dispatched event", func() {
			events.GetByIDFunc = func(_ context.Context, _ string, id int64) (*model.Event, error) {
				return &model.Event{ID: id, Status: model.EventStatusProcessed}, nil
			}
			var dispatched int
			dispatcher.DispatchFunc = func(context.Context, *model.Event) error {
				dispatched++
				return nil
			}

			Expect(w.ProcessMessage(ctx, dispatchMsg)).To(Succeed())
			Expect(dispatched).To(BeZero())
		})

		It("returns dispatch errors without acking", func() {
			dispatcher.DispatchFunc = func(context.Context, *model.Event) error {
				return errors.New("handler exploded")
			}

			err := w.ProcessMessage(ctx, dispatchMsg)
			Expect(err).To(MatchError(ContainSubstring("handler exploded")))
			Expect(consumer.acked).To(BeEmpty())
		})

		It("recovers a panicking dispatch into an error", func() {
			dispatcher.DispatchFunc = func(context.Context, *model.Event) error {
				panic("boom")
			}

			// processOneBatch goes through processMessageSafe
			consumer.ReadFunc = func(context.Context) ([]queue.Message, error) {
				return []queue.Message{dispatchMsg}, nil
			}
			go func() {
				defer GinkgoRecover()
				time.Sleep(50 * time.Millisecond)
				w.Stop()
			}()
			Expect(w.Run(ctx)).To(Succeed())
			Expect(consumer.requeued).NotTo(BeEmpty())
		})
	})

	Describe("workflow execute messages", func() {
		It("runs the execution and acks", func() {
			var ran []int64
			runner.ExecuteStepsFunc = func(_ context.Context, tenantID string, id int64) error {
				Expect(tenantID).To(Equal("acme"))
				ran = append(ran, id)
				return nil
			}

			Expect(w.ProcessMessage(ctx, executeMsg)).To(Succeed())
			Expect(ran).To(Equal([]int64{executionID}))
			Expect(consumer.acked).To(Equal([]string{"2-0"}))
		})

		It("bounds concurrent executions by the configured limit", func() {
			var running, peak int32
			var mu sync.Mutex
			runner.ExecuteStepsFunc = func(context.Context, string, int64) error {
				n := atomic.AddInt32(&running, 1)
				mu.Lock()
				if n > peak {
					peak = n
				}
				mu.Unlock()
				time.Sleep(30 * time.Millisecond)
				atomic.AddInt32(&running, -1)
				return nil
			}

			var wg sync.WaitGroup
			for i := 0; i < 6; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					defer GinkgoRecover()
					Expect(w.ProcessMessage(ctx, executeMsg)).To(Succeed())
				}()
			}
			wg.Wait()

			mu.Lock()
			defer mu.Unlock()
			Expect(peak).To(BeNumerically("<=", 2))
		})

		It("returns runner errors without acking", func() {
			runner.ExecuteStepsFunc = func(context.Context, string, int64) error {
				return errors.New("db down")
			}

			err := w.ProcessMessage(ctx, executeMsg)
			Expect(err).To(MatchError(ContainSubstring("db down")))
			Expect(consumer.acked).To(BeEmpty())
		})
	})

	Describe("failed message handling", func() {
		It("requeues below the attempt limit and dead-letters at it", func() {
			dispatcher.DispatchFunc = func(context.Context, *model.Event) error {
				return errors.New("still broken")
			}
			firstAttempt := dispatchMsg
			firstAttempt.Attempt = 1
			lastAttempt := dispatchMsg
			lastAttempt.ID = "1-1"
			lastAttempt.Attempt = 3

			consumer.ReadFunc = func() func(context.Context) ([]queue.Message, error) {
				delivered := false
				return func(context.Context) ([]queue.Message, error) {
					if delivered {
						return nil, nil
					}
					delivered = true
					return []queue.Message{firstAttempt, lastAttempt}, nil
				}
			}()

			go func() {
				defer GinkgoRecover()
				time.Sleep(50 * time.Millisecond)
				w.Stop()
			}()
			Expect(w.Run(ctx)).To(Succeed())

			Expect(consumer.requeued).To(Equal([]string{"1-0"}))
			Expect(consumer.dlq).To(Equal([]string{"1-1"}))
		})

		It("dead-letters a non-retryable error on the first attempt", func() {
			dispatcher.DispatchFunc = func(context.Context, *model.Event) error {
				return fmt.Errorf("llm analysis: %w", context.Canceled)
			}

			consumer.ReadFunc = func() func(context.Context) ([]queue.Message, error) {
				delivered := false
				return func(context.Context) ([]queue.Message, error) {
					if delivered {
						return nil, nil
					}
					delivered = true
					return []queue.Message{dispatchMsg}, nil
				}
			}()

			go func() {
				defer GinkgoRecover()
				time.Sleep(50 * time.Millisecond)
				w.Stop()
			}()
			Expect(w.Run(ctx)).To(Succeed())

			Expect(consumer.requeued).To(BeEmpty())
			Expect(consumer.dlq).To(Equal([]string{"1-0"}))
		})
	})
})
