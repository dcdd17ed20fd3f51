// Package httpapi exposes the aggregator over HTTP, grounded in
// api_gateway/src/gateway/gateway.go's route setup and handler style
// but scoped to a single product-lookup endpoint plus admin
// introspection, rather than a general-purpose reverse-proxying
// gateway.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/iaros/vendor-aggregator/internal/aggregator"
	"github.com/iaros/vendor-aggregator/internal/circuit"
	"github.com/iaros/vendor-aggregator/internal/clock"
	"github.com/iaros/vendor-aggregator/internal/httpapi/middleware"
	"github.com/iaros/vendor-aggregator/internal/metrics"
	"github.com/iaros/vendor-aggregator/internal/ratelimit"
)

var skuPattern = regexp.MustCompile(`^[A-Za-z0-9]{3,20}$`)

// Server wires the router, aggregator, rate limiter, and breaker
// registry together.
type Server struct {
	router    *mux.Router
	agg       *aggregator.Aggregator
	limiter   *ratelimit.Limiter
	breakers  *circuit.Registry
	clock     clock.Clock
	metrics   *metrics.Metrics
	logger    *zap.Logger
	startedAt time.Time
}

// New builds a Server with every route and middleware attached.
func New(agg *aggregator.Aggregator, limiter *ratelimit.Limiter, breakers *circuit.Registry, clk clock.Clock, m *metrics.Metrics, logger *zap.Logger) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		agg:       agg,
		limiter:   limiter,
		breakers:  breakers,
		clock:     clk,
		metrics:   m,
		logger:    logger,
		startedAt: clk.Now(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// Handler returns the root http.Handler for the server.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.PanicRecovery(s.logger))
	s.router.Use(middleware.SecurityHeaders())
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.RequestLogging(s.logger))
	s.router.Use(middleware.Metrics(func(method, path string, status int, d time.Duration) {
		s.metrics.RequestsTotal.WithLabelValues(method, path, http.StatusText(status)).Inc()
		s.metrics.RequestDuration.WithLabelValues(method, path).Observe(d.Seconds())
	}))
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/", s.rootHandler).Methods(http.MethodGet)
	s.router.HandleFunc("/health", s.healthHandler).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	s.router.HandleFunc("/products/{sku}", s.productHandler).Methods(http.MethodGet)

	admin := s.router.PathPrefix("/internal").Subrouter()
	admin.HandleFunc("/circuit-breakers", s.circuitBreakersHandler).Methods(http.MethodGet)
	admin.HandleFunc("/circuit-breakers/{vendor}/reset", s.resetCircuitBreakerHandler).Methods(http.MethodPost)
	admin.HandleFunc("/rate-limits/{api_key}", s.rateLimitHandler).Methods(http.MethodGet)
}

func (s *Server) rootHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":       "vendor-aggregator",
		"version":    "1.0.0",
		"started_at": s.startedAt.UTC(),
	})
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"service": "vendor-aggregator",
	})
}

// productHandler implements GET /products/{sku} exactly: SKU format
// validation, API key presence, rate limit gate, then the aggregator
// lookup.
func (s *Server) productHandler(w http.ResponseWriter, r *http.Request) {
	sku := mux.Vars(r)["sku"]
	if !skuPattern.MatchString(sku) {
		writeJSONError(r.Context(), w, http.StatusBadRequest, "invalid sku format", "sku must match ^[A-Za-z0-9]{3,20}$")
		return
	}

	apiKey := r.Header.Get("x-api-key")
	if apiKey == "" {
		writeJSONError(r.Context(), w, http.StatusUnauthorized, "missing api key", "the x-api-key header is required")
		return
	}

	result := s.limiter.Allow(r.Context(), apiKey)
	if !result.Allowed {
		s.metrics.RateLimitHits.WithLabelValues(apiKey).Inc()
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.Header().Set("X-RateLimit-Reset", s.clock.Now().UTC().Format(time.RFC3339))
		w.Header().Set("Retry-After", "60")
		writeJSON(w, http.StatusTooManyRequests, map[string]interface{}{
			"error":         "rate limit exceeded",
			"detail":        "too many requests for this api key",
			"current_count": result.Count,
			"limit":         result.Limit,
			"retry_after":   60,
			"timestamp":     s.clock.Now().UTC(),
		})
		return
	}

	rec, err := s.agg.GetProduct(r.Context(), sku)
	var oos *aggregator.ErrOutOfStock
	var canceled *aggregator.ErrCanceled
	switch {
	case errors.As(err, &canceled):
		writeJSONError(r.Context(), w, http.StatusServiceUnavailable, "request canceled", "the request was canceled or exceeded its deadline before vendors responded")
		return
	case errors.As(err, &oos):
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"sku":       sku,
			"status":    "OUT_OF_STOCK",
			"timestamp": s.clock.Now().UTC(),
		})
		return
	case err != nil:
		s.logger.Error("aggregator failure", zap.String("sku", sku), zap.Error(err))
		writeJSONError(r.Context(), w, http.StatusInternalServerError, "internal error", "")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sku":       rec.SKU,
		"vendor":    rec.Vendor,
		"price":     rec.Price.String(),
		"stock":     rec.Stock,
		"status":    "AVAILABLE",
		"timestamp": s.clock.Now().UTC(),
	})
}

func (s *Server) circuitBreakersHandler(w http.ResponseWriter, r *http.Request) {
	status := s.breakers.Status()
	for vendorName, state := range status {
		s.metrics.CircuitBreakerState.WithLabelValues(vendorName).Set(metrics.BreakerStateValue(state))
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) resetCircuitBreakerHandler(w http.ResponseWriter, r *http.Request) {
	vendorName := mux.Vars(r)["vendor"]
	if !s.breakers.Reset(vendorName) {
		writeJSONError(r.Context(), w, http.StatusNotFound, "unknown vendor", vendorName)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset", "vendor": vendorName})
}

func (s *Server) rateLimitHandler(w http.ResponseWriter, r *http.Request) {
	apiKey := mux.Vars(r)["api_key"]
	count, err := s.limiter.Usage(r.Context(), apiKey)
	if err != nil {
		writeJSONError(r.Context(), w, http.StatusInternalServerError, "internal error", "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"api_key": apiKey,
		"count":   count,
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeJSONError(ctx context.Context, w http.ResponseWriter, status int, message, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error":      message,
		"detail":     detail,
		"request_id": middleware.GetRequestID(ctx),
	})
}

