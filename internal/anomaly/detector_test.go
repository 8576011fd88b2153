package anomaly_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"pulseops.app/pulse/common/llm"
	"pulseops.app/pulse/internal/anomaly"
	"pulseops.app/pulse/internal/model"
)

var _ = Describe("Detector", func() {
	var (
		events        *mockEventStore
		insights      *mockInsightStore
		notifications *mockNotificationStore
		publisher     *mockPublisher
		llmClient     *mockLLM
		detector      *anomaly.Detector

		createdInsights  []*model.Insight
		createdNotifs    []*model.Notification
		publishedEvents  []string
		publishedPayload []json.RawMessage
	)

	predict := func(isAnomaly bool, confidence float64) func(context.Context, llm.Request, any) (*llm.Response, error) {
		return func(_ context.Context, _ llm.Request, result any) (*llm.Response, error) {
			raw := fmt.Sprintf(`{"is_anomaly": %t, "confidence": %g, "category": "volume", "reason": "unusual spike"}`, isAnomaly, confidence)
			Expect(json.Unmarshal([]byte(raw), result)).To(Succeed())
			return &llm.Response{}, nil
		}
	}

	newEvent := func(name string) *model.Event {
		return &model.Event{
			ID:       11,
			TenantID: "acme",
			Name:     name,
			Payload:  json.RawMessage(`{"amount": 99999}`),
		}
	}

	BeforeEach(func() {
		createdInsights = nil
		createdNotifs = nil
		publishedEvents = nil
		publishedPayload = nil

		events = &mockEventStore{
			ListRecentFunc: func(context.Context, string, time.Time, int32) ([]model.Event, error) {
				return []model.Event{
					{ID: 1, Name: "finance.invoice.created", CreatedAt: time.Now()},
					{ID: 2, Name: "finance.payment.received", CreatedAt: time.Now()},
				}, nil
			},
		}
		insights = &mockInsightStore{
			CreateFunc: func(_ context.Context, insight *model.Insight) error {
				createdInsights = append(createdInsights, insight)
				return nil
			},
		}
		notifications = &mockNotificationStore{
			CreateFunc: func(_ context.Context, n *model.Notification) error {
				createdNotifs = append(createdNotifs, n)
				return nil
			},
		}
		publisher = &mockPublisher{
			PublishFunc: func(_ context.Context, name string, payload json.RawMessage, _ model.EventMeta) (*model.Event, error) {
				publishedEvents = append(publishedEvents, name)
				publishedPayload = append(publishedPayload, payload)
				return &model.Event{Name: name}, nil
			},
		}
		llmClient = &mockLLM{PredictFunc: predict(true, 0.85)}

		detector = anomaly.NewDetector(anomaly.Config{
			ConfidenceThreshold: 0.8,
			HistoryWindow:       24 * time.Hour,
			HistoryLimit:        100,
			PromptEventLimit:    20,
		}, events, insights, notifications, publisher, llmClient)
	})

	It("records an insight, notification and derived event at or above threshold", func() {
		result := detector.Detect(context.Background(), newEvent("finance.invoice.created"))

		Expect(result.Status).To(Equal("ok"))
		Expect(result.Anomalous).To(BeTrue())
		Expect(result.Confidence).To(Equal(0.85))

		Expect(createdInsights).To(HaveLen(1))
		Expect(createdInsights[0].Confidence).To(Equal(0.85))
		Expect(createdInsights[0].SourceEventID).To(HaveValue(Equal(int64(11))))

		Expect(createdNotifs).To(HaveLen(1))
		Expect(publishedEvents).To(Equal([]string{"analytics.anomaly.detected"}))
	})

	It("creates nothing below the threshold", func() {
		llmClient.PredictFunc = predict(true, 0.5)

		result := detector.Detect(context.Background(), newEvent("finance.invoice.created"))

		Expect(result.Status).To(Equal("ok"))
		Expect(result.Anomalous).To(BeFalse())
		Expect(result.Confidence).To(Equal(0.5))
		Expect(createdInsights).To(BeEmpty())
		Expect(createdNotifs).To(BeEmpty())
		Expect(publishedEvents).To(BeEmpty())
	})

	It("creates nothing when the model reports no anomaly", func() {
		llmClient.PredictFunc = predict(false, 0.95)

		result := detector.Detect(context.Background(), newEvent("finance.invoice.created"))
		Expect(result.Anomalous).To(BeFalse())
		Expect(createdInsights).To(BeEmpty())
	})

	It("skips its own derived events", func() {
		result := detector.Detect(context.Background(), newEvent("analytics.anomaly.detected"))
		Expect(result.Status).To(Equal("skipped"))
		Expect(createdInsights).To(BeEmpty())
		Expect(publishedEvents).To(BeEmpty())
	})

	It("downgrades a malformed event to an error result", func() {
		result := detector.Detect(context.Background(), &model.Event{})
		Expect(result.Status).To(Equal("error"))
		Expect(result.Error).To(ContainSubstring("malformed"))
		Expect(createdInsights).To(BeEmpty())
	})

	It("downgrades an llm failure to an error result", func() {
		llmClient.PredictFunc = func(context.Context, llm.Request, any) (*llm.Response, error) {
			return nil, errors.New("model timeout")
		}

		result := detector.Detect(context.Background(), newEvent("finance.invoice.created"))
		Expect(result.Status).To(Equal("error"))
		Expect(result.Error).To(ContainSubstring("model timeout"))
		Expect(createdInsights).To(BeEmpty())
		Expect(createdNotifs).To(BeEmpty())
		Expect(publishedEvents).To(BeEmpty())
	})

	It("downgrades a history lookup failure to an error result", func() {
		events.ListRecentFunc = func(context.Context, string, time.Time, int32) ([]model.Event, error) {
			return nil, errors.New("db down")
		}

		result := detector.Detect(context.Background(), newEvent("finance.invoice.created"))
		Expect(result.Status).To(Equal("error"))
		Expect(result.Error).To(ContainSubstring("db down"))
	})

	It("never returns an error from the handler adapter", func() {
		llmClient.PredictFunc = func(context.Context, llm.Request, any) (*llm.Response, error) {
			return nil, errors.New("model timeout")
		}
		Expect(detector.Handle(context.Background(), newEvent("finance.invoice.created"))).To(Succeed())
	})

	It("skips detection when the llm is not configured", func() {
		detector = anomaly.NewDetector(anomaly.Config{ConfidenceThreshold: 0.8},
			events, insights, notifications, publisher, nil)

		result := detector.Detect(context.Background(), newEvent("finance.invoice.created"))
		Expect(result.Status).To(Equal("skipped"))
	})
})
