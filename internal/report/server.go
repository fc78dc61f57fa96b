package report

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pinniped-data/hospital-etl/internal/logging"
	"github.com/pinniped-data/hospital-etl/internal/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DataSource is what the HTTP layer needs from the query layer. *Queries
// satisfies it; tests substitute a stub.
type DataSource interface {
	Weeks(ctx context.Context) ([]string, error)
	RecordsByWeek(ctx context.Context, week time.Time) ([]WeekCount, error)
	Utilization(ctx context.Context, week time.Time) ([]UtilizationRow, error)
	UsageByRating(ctx context.Context, week time.Time) ([]RatingUsage, error)
}

// Server is the read-only reporting API.
type Server struct {
	data    DataSource
	metrics *observability.Metrics
	router  *chi.Mux
	server  *http.Server
}

// NewServer creates a Server over the given data source.
func NewServer(data DataSource, metrics *observability.Metrics) *Server {
	s := &Server{
		data:    data,
		metrics: metrics,
		router:  chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(30 * time.Second))
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/weeks", s.handleWeeks)
		r.Get("/reports/records-by-week", s.handleRecordsByWeek)
		r.Get("/reports/utilization", s.handleUtilization)
		r.Get("/reports/usage-by-rating", s.handleUsageByRating)
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start(addr string, readTimeout, writeTimeout time.Duration) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, map[string]string{"status": "ok"})
}

func (s *Server) handleWeeks(w http.ResponseWriter, r *http.Request) {
	weeks, err := s.data.Weeks(r.Context())
	if err != nil {
		s.reportError(w, r, "weeks", err)
		return
	}
	s.metrics.ReportRequests.WithLabelValues("weeks", "ok").Inc()
	writeJSON(w, r, weeks)
}

func (s *Server) handleRecordsByWeek(w http.ResponseWriter, r *http.Request) {
	week, ok := weekParam(w, r)
	if !ok {
		return
	}
	counts, err := s.data.RecordsByWeek(r.Context(), week)
	if err != nil {
		s.reportError(w, r, "records_by_week", err)
		return
	}
	s.metrics.ReportRequests.WithLabelValues("records_by_week", "ok").Inc()
	writeJSON(w, r, counts)
}

func (s *Server) handleUtilization(w http.ResponseWriter, r *http.Request) {
	week, ok := weekParam(w, r)
	if !ok {
		return
	}
	summary, err := s.data.Utilization(r.Context(), week)
	if err != nil {
		s.reportError(w, r, "utilization", err)
		return
	}
	s.metrics.ReportRequests.WithLabelValues("utilization", "ok").Inc()
	writeJSON(w, r, summary)
}

func (s *Server) handleUsageByRating(w http.ResponseWriter, r *http.Request) {
	week, ok := weekParam(w, r)
	if !ok {
		return
	}
	usage, err := s.data.UsageByRating(r.Context(), week)
	if err != nil {
		s.reportError(w, r, "usage_by_rating", err)
		return
	}
	s.metrics.ReportRequests.WithLabelValues("usage_by_rating", "ok").Inc()
	writeJSON(w, r, usage)
}

func (s *Server) reportError(w http.ResponseWriter, r *http.Request, report string, err error) {
	s.metrics.ReportRequests.WithLabelValues(report, "error").Inc()
	logging.FromContext(r.Context()).Error("report query failed", "report", report, "error", err)
	writeError(w, http.StatusInternalServerError, "query failed")
}

// weekParam parses the required ?week=YYYY-MM-DD query parameter, writing a
// 400 response when it is missing or malformed.
func weekParam(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	raw := r.URL.Query().Get("week")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "missing week parameter")
		return time.Time{}, false
	}
	week, err := time.Parse(dateFormat, raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid week %q, want YYYY-MM-DD", raw))
		return time.Time{}, false
	}
	return week, true
}

func writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context()).Error("json encode failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"error":%q}`, message)
}

// requestLogger logs one structured entry per request, carrying the chi
// request id via logging.FromContext.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(ww, r)

		logging.FromContext(r.Context()).Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"ip", r.RemoteAddr,
		)
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *responseWriter) WriteHeader(status int) {
	if w.wroteHeader {
		return
	}
	w.status = status
	w.wroteHeader = true
	w.ResponseWriter.WriteHeader(status)
}

func (w *responseWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

func (w *responseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
