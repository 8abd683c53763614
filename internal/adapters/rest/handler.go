package rest

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ewilliams-labs/crossfade/internal/core/ports"
	"github.com/ewilliams-labs/crossfade/internal/core/services"
)

// Handler manages the HTTP interface for our application.
type Handler struct {
	svc      *services.Orchestrator
	sessions *services.SessionStore
	stats    *services.StatsAggregator
	analyses ports.AnalysisRepository

	log    logrus.FieldLogger
	now    func() time.Time
	cors   bool
	router *http.ServeMux
}

// Option configures a Handler.
type Option func(*Handler)

// WithCORS enables permissive cross-origin headers on every response.
func WithCORS(enabled bool) Option {
	return func(h *Handler) { h.cors = enabled }
}

// WithAnalyses enables GET /api/tracks/{id}/analysis.
func WithAnalyses(repo ports.AnalysisRepository) Option {
	return func(h *Handler) { h.analyses = repo }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(h *Handler) {
		if l != nil {
			h.log = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}

// NewHandler initializes the HTTP adapter and sets up routes.
func NewHandler(svc *services.Orchestrator, sessions *services.SessionStore, stats *services.StatsAggregator, opts ...Option) *Handler {
	h := &Handler{
		svc:      svc,
		sessions: sessions,
		stats:    stats,
		log:      logrus.StandardLogger(),
		now:      time.Now,
		router:   http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(h)
	}

	h.routes()

	return h
}

// ServeHTTP satisfies the http.Handler interface.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := h.now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

	if h.cors {
		setCORSHeaders(rec.Header())
		if r.Method == http.MethodOptions {
			rec.WriteHeader(http.StatusNoContent)
			return
		}
	}
	r.Body = http.MaxBytesReader(rec, r.Body, maxBodyBytes)
	h.router.ServeHTTP(rec, r)

	h.log.WithFields(logrus.Fields{
		"method":   r.Method,
		"path":     r.URL.Path,
		"status":   rec.status,
		"duration": h.now().Sub(start).String(),
	}).Debug("rest: request served")
}

// routes defines the mapping between URLs and methods.
func (h *Handler) routes() {
	h.router.HandleFunc("GET /api/health", h.HealthCheck)
	h.router.HandleFunc("POST /api/chat", h.Chat)
	h.router.HandleFunc("POST /api/preferences", h.AddPreference)
	h.router.HandleFunc("POST /api/spotify-token", h.SetSpotifyToken)
	h.router.HandleFunc("GET /api/stats", h.Stats)
	h.router.HandleFunc("GET /api/session/{id}", h.GetSession)
	h.router.HandleFunc("PATCH /api/session/{id}", h.PatchSession)
	h.router.HandleFunc("GET /api/tracks/{id}/analysis", h.TrackAnalysis)
}

type healthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Timestamp string `json:"timestamp"`
}

// HealthCheck is a simple endpoint to verify the API is running.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "healthy",
		Service:   "crossfade",
		Timestamp: h.now().UTC().Format(time.RFC3339),
	})
}

func setCORSHeaders(hdr http.Header) {
	hdr.Set("Access-Control-Allow-Origin", "*")
	hdr.Set("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
	hdr.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}
