package httpadapter

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kirillkom/bid-reconciler/internal/config"
	"github.com/kirillkom/bid-reconciler/internal/core/domain"
	"github.com/kirillkom/bid-reconciler/internal/core/ports"
	"github.com/kirillkom/bid-reconciler/internal/observability/metrics"
)

const (
	serviceName    = "api"
	maxUploadBytes = 32 << 20
)

type Router struct {
	cfg        config.Config
	catalog    ports.CatalogImporter
	bids       ports.BidImporter
	reconciler ports.BidReconciler
	pricing    ports.PricingReader
	metrics    *metrics.HTTPServerMetrics
	logger     *zap.Logger
}

type RouterOption func(*Router)

func WithHTTPMetrics(m *metrics.HTTPServerMetrics) RouterOption {
	return func(rt *Router) {
		rt.metrics = m
	}
}

func WithLogger(logger *zap.Logger) RouterOption {
	return func(rt *Router) {
		if logger != nil {
			rt.logger = logger
		}
	}
}

func NewRouter(
	cfg config.Config,
	catalog ports.CatalogImporter,
	bids ports.BidImporter,
	reconciler ports.BidReconciler,
	pricing ports.PricingReader,
	opts ...RouterOption,
) *Router {
	rt := &Router{
		cfg:        cfg,
		catalog:    catalog,
		bids:       bids,
		reconciler: reconciler,
		pricing:    pricing,
		logger:     zap.L().With(zap.String("component", "http")),
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()
	if rt.metrics != nil {
		r.Use(func(next http.Handler) http.Handler {
			return rt.metrics.Middleware(serviceName, next)
		})
	}

	r.Get("/healthz", rt.healthz)
	if rt.metrics != nil {
		r.Method(http.MethodGet, "/metrics", rt.metrics.Handler())
	}

	r.Route("/v1/tenders", func(r chi.Router) {
		r.Post("/", rt.createTender)
		r.Route("/{tenderID}", func(r chi.Router) {
			r.Post("/catalog", rt.uploadCatalog)
			r.Post("/bids", rt.uploadBid)
			r.Post("/bids/{bidID}/reconcile", rt.reconcileBid)
			r.Get("/bids/{bidID}/pricing", rt.getPricing)
		})
	})

	var handler http.Handler = r
	handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, rt.cfg.APIBackpressureWait, rt.onReject)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst, rt.onReject)
	handler = accessLogMiddleware(rt.logger, handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) onReject(reason string) {
	if rt.metrics != nil {
		rt.metrics.RecordRejection(serviceName, reason)
	}
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) createTender(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID           string `json:"id"`
		Name         string `json:"name"`
		PricingLevel string `json:"pricing_level"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	tender, err := rt.catalog.CreateTender(r.Context(), domain.Tender{
		ID:           req.ID,
		Name:         req.Name,
		PricingLevel: domain.PricingLevel(req.PricingLevel),
	})
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tender)
}

func (rt *Router) uploadCatalog(w http.ResponseWriter, r *http.Request) {
	tenderID := chi.URLParam(r, "tenderID")
	file, filename, ok := formFile(w, r)
	if !ok {
		return
	}
	defer file.Close()

	count, err := rt.catalog.ImportCatalog(r.Context(), tenderID, filename, file)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tender_id": tenderID, "items": count})
}

func (rt *Router) uploadBid(w http.ResponseWriter, r *http.Request) {
	tenderID := chi.URLParam(r, "tenderID")
	file, filename, ok := formFile(w, r)
	if !ok {
		return
	}
	defer file.Close()

	bid, err := rt.bids.Import(r.Context(), tenderID, r.FormValue("bidder"), filename, file)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, bid)
}

func (rt *Router) reconcileBid(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FuzzyThreshold   *float64 `json:"fuzzy_threshold"`
		AlternativeCount *int     `json:"alternative_count"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	job := domain.ReconcileJob{
		TenderID:         chi.URLParam(r, "tenderID"),
		BidID:            chi.URLParam(r, "bidID"),
		FuzzyThreshold:   req.FuzzyThreshold,
		AlternativeCount: req.AlternativeCount,
	}
	result, err := rt.reconciler.ReconcileBid(r.Context(), job.TenderID, job.BidID, job.Options(rt.cfg.ReconcileDefaults()))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// reconcileLines re-runs matching over corrected copies of stored bid lines.
func (rt *Router) reconcileLines(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Lines            []domain.BidLine `json:"lines"`
		FuzzyThreshold   *float64         `json:"fuzzy_threshold"`
		AlternativeCount *int             `json:"alternative_count"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUploadBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	job := domain.ReconcileJob{FuzzyThreshold: req.FuzzyThreshold, AlternativeCount: req.AlternativeCount}
	result, err := rt.reconciler.Reconcile(r.Context(), domain.ReconcileRequest{
		TenderID: chi.URLParam(r, "tenderID"),
		BidID:    chi.URLParam(r, "bidID"),
		Lines:    req.Lines,
		Options:  job.Options(rt.cfg.ReconcileDefaults()),
	})
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) getPricing(w http.ResponseWriter, r *http.Request) {
	view, err := rt.pricing.GetPricing(r.Context(), chi.URLParam(r, "tenderID"), chi.URLParam(r, "bidID"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func formFile(w http.ResponseWriter, r *http.Request) (io.ReadCloser, string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "upload too large"})
			return nil, "", false
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return nil, "", false
	}
	return file, strings.TrimSpace(header.Filename), true
}

func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		rt.logger.Error("request failed",
			zap.String("request_id", requestIDFromContext(r.Context())),
			zap.Error(err),
		)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
