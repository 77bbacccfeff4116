package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/bid-reconciler/internal/core/domain"
)

func TestMiddlewareLabelsByRoutePattern(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler { return m.Middleware("api", next) })
	router.Get("/v1/tenders/{tenderID}/bids/{bidID}/pricing", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, id := range []string{"b-1", "b-2"} {
		req := httptest.NewRequest(http.MethodGet, "/v1/tenders/t-1/bids/"+id+"/pricing", nil)
		router.ServeHTTP(httptest.NewRecorder(), req)
	}

	got := testutil.ToFloat64(m.requestTotal.WithLabelValues("api", http.MethodGet, "/v1/tenders/{tenderID}/bids/{bidID}/pricing", "404"))
	assert.Equal(t, 2.0, got)
}

func TestReconcileMetricsShareRegistry(t *testing.T) {
	httpMetrics := NewHTTPServerMetrics("api")
	m := NewReconcileMetrics("api", httpMetrics.Registry())

	m.StartRun()
	m.FinishRun(20*time.Millisecond, nil)
	m.StartRun()
	m.FinishRun(5*time.Millisecond, errors.New("boom"))
	m.ObserveSummary(domain.Summary{
		TotalCatalogItems: 10,
		ExactCount:        6,
		FuzzyCount:        2,
		ExtraCount:        1,
		NoBidCount:        2,
		NeedsReviewCount:  2,
		MatchPercentage:   80,
	})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runTotal.WithLabelValues("api", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runTotal.WithLabelValues("api", "error")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.runInFlight))
	assert.Equal(t, 6.0, testutil.ToFloat64(m.outcomeTotal.WithLabelValues("api", "exact")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.reviewTotal.WithLabelValues("api")))

	rec := httptest.NewRecorder()
	httpMetrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "bidrec_reconcile_runs_total"))
}

func TestRecordRejection(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	m.RecordRejection("api", "rate_limited")
	m.RecordRejection("api", "")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.rejectedTotal.WithLabelValues("api", "rate_limited")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rejectedTotal.WithLabelValues("api", "unknown")))
}
