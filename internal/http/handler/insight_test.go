package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"pulseops.app/pulse/internal/http/handler"
	"pulseops.app/pulse/internal/model"
)

var _ = Describe("InsightHandler", func() {
	var (
		router   *gin.Engine
		insights *mockInsightStore
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		router = gin.New()
		insights = &mockInsightStore{}
		h := handler.NewInsightHandler(insights)
		router.GET("/insights", h.ListRecent)
		router.GET("/insights/:id", h.GetByID)
	})

	It("lists recent insights for the tenant", func() {
		insights.listFn = func(_ context.Context, tenantID string, limit int32) ([]model.Insight, error) {
			Expect(tenantID).To(Equal("acme"))
			Expect(limit).To(Equal(int32(50)))
			return []model.Insight{{ID: 1, Title: "Spending spike", Confidence: 0.9}}, nil
		}

		req := httptest.NewRequest(http.MethodGet, "/insights", nil)
		req.Header.Set(handler.TenantHeader, "acme")
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusOK))
		var resp struct {
			Insights []model.Insight `json:"insights"`
		}
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp.Insights).To(HaveLen(1))
		Expect(resp.Insights[0].Title).To(Equal("Spending spike"))
	})

	It("honors an explicit limit", func() {
		insights.listFn = func(_ context.Context, _ string, limit int32) ([]model.Insight, error) {
			Expect(limit).To(Equal(int32(5)))
			return nil, nil
		}

		req := httptest.NewRequest(http.MethodGet, "/insights?limit=5", nil)
		req.Header.Set(handler.TenantHeader, "acme")
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusOK))
	})

	It("rejects a bad limit", func() {
		req := httptest.NewRequest(http.MethodGet, "/insights?limit=-1", nil)
		req.Header.Set(handler.TenantHeader, "acme")
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})

	It("returns an empty list rather than null", func() {
		insights.listFn = func(context.Context, string, int32) ([]model.Insight, error) {
			return nil, nil
		}

		req := httptest.NewRequest(http.MethodGet, "/insights", nil)
		req.Header.Set(handler.TenantHeader, "acme")
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		Expect(w.Body.String()).To(MatchJSON(`{"insights": []}`))
	})

	Describe("GetByID", func() {
		It("returns the insight", func() {
			insights.getFn = func(_ context.Context, tenantID string, id int64) (*model.Insight, error) {
				Expect(tenantID).To(Equal("acme"))
				Expect(id).To(Equal(int64(12)))
				return &model.Insight{ID: 12, Title: "Spending spike"}, nil
			}

			req := httptest.NewRequest(http.MethodGet, "/insights/12", nil)
			req.Header.Set(handler.TenantHeader, "acme")
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusOK))
			var resp struct {
				Insight model.Insight `json:"insight"`
			}
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp.Insight.ID).To(Equal(int64(12)))
		})

		It("returns 404 for a missing insight", func() {
			req := httptest.NewRequest(http.MethodGet, "/insights/12", nil)
			req.Header.Set(handler.TenantHeader, "acme")
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusNotFound))
		})

		It("returns 400 for a non-numeric id", func() {
			req := httptest.NewRequest(http.MethodGet, "/insights/abc", nil)
			req.Header.Set(handler.TenantHeader, "acme")
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})
	})
})
