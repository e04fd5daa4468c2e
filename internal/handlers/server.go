package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/Naman6019/News-Agent/internal/cache"
	"github.com/Naman6019/News-Agent/internal/config"
	"github.com/Naman6019/News-Agent/internal/digest"
	"github.com/Naman6019/News-Agent/internal/feed"
	"github.com/Naman6019/News-Agent/internal/logging"
	"github.com/Naman6019/News-Agent/internal/ollama"
	"github.com/Naman6019/News-Agent/internal/schedule"
	"github.com/Naman6019/News-Agent/internal/summarize"
	"github.com/Naman6019/News-Agent/internal/whatsapp"
)

const version = "1.0.0"

// Server holds the HTTP server and its dependencies
type Server struct {
	config     *config.Config
	ollama     *ollama.Client
	aggregator *feed.Aggregator
	messenger  *whatsapp.Client
	digest     *digest.Service
	scheduler  *schedule.Scheduler
	logger     *slog.Logger
	startedAt  time.Time
}

// NewServer wires the full pipeline behind the HTTP API: feeds, summarizer,
// messaging, digest service, and the delivery scheduler.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	location, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("resolving delivery timezone: %w", err)
	}

	times, err := schedule.NewTimes(cfg.MorningDeliveryHour, cfg.EveningDeliveryHour, location)
	if err != nil {
		return nil, fmt.Errorf("building delivery schedule: %w", err)
	}

	ollamaClient := ollama.NewClient(cfg, logging.For(logger, "ollama"))
	aggregator := feed.NewAggregator(cfg, logging.For(logger, "feed"))
	summarizer := summarize.New(ollamaClient, cfg, logging.For(logger, "summarize"))
	messenger := whatsapp.NewClient(cfg, logging.For(logger, "whatsapp"))

	var seen *cache.SeenStore
	if cfg.DedupeEnabled {
		seen = cache.NewSeenStore(cfg.DedupeWindow)
	}

	digestService := digest.NewService(cfg, aggregator, summarizer, messenger, seen, logging.For(logger, "digest"))
	scheduler := schedule.NewScheduler(times, schedule.SystemClock(), func(ctx context.Context, slot schedule.Slot) {
		digestService.Run(ctx, slot)
	}, logging.For(logger, "scheduler"))

	return &Server{
		config:     cfg,
		ollama:     ollamaClient,
		aggregator: aggregator,
		messenger:  messenger,
		digest:     digestService,
		scheduler:  scheduler,
		logger:     logging.For(logger, "http"),
		startedAt:  time.Now(),
	}, nil
}

// Scheduler returns the delivery scheduler so the caller can run its loop.
func (s *Server) Scheduler() *schedule.Scheduler {
	return s.scheduler
}

// Digest returns the digest service for one-shot runs.
func (s *Server) Digest() *digest.Service {
	return s.digest
}

// SetupRoutes configures HTTP routes
func (s *Server) SetupRoutes() *mux.Router {
	r := mux.NewRouter()

	// Root health probe for container orchestration
	r.HandleFunc("/health", s.rootHealthHandler).Methods("GET")

	// API routes
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(s.corsMiddleware)
	api.Use(s.loggingMiddleware)

	// Health checks
	api.HandleFunc("/health", s.healthHandler).Methods("GET")
	api.HandleFunc("/health/detailed", s.detailedHealthHandler).Methods("GET")
	api.HandleFunc("/health/liveness", s.livenessHandler).Methods("GET")
	api.HandleFunc("/health/readiness", s.readinessHandler).Methods("GET")

	// News operations
	api.HandleFunc("/news/digest", s.digestPreviewHandler).Methods("GET")
	api.HandleFunc("/news/categories", s.categoriesHandler).Methods("GET")
	api.HandleFunc("/news/sources", s.sourcesHandler).Methods("GET")
	api.HandleFunc("/news/test", s.newsTestHandler).Methods("POST")

	// Scheduler operations
	api.HandleFunc("/scheduler/status", s.schedulerStatusHandler).Methods("GET")
	api.HandleFunc("/scheduler/next-runs", s.nextRunsHandler).Methods("GET")
	api.HandleFunc("/scheduler/trigger/{slot}", s.triggerHandler).Methods("POST")

	// WhatsApp operations
	api.HandleFunc("/whatsapp/test", s.whatsappTestHandler).Methods("POST")
	api.HandleFunc("/whatsapp/send-custom", s.sendCustomHandler).Methods("POST")
	api.HandleFunc("/whatsapp/validate", s.validateNumbersHandler).Methods("GET")

	return r
}

// rootHealthHandler answers the unversioned probe used by container checks
func (s *Server) rootHealthHandler(w http.ResponseWriter, r *http.Request) {
	status := s.scheduler.Status()

	response := map[string]interface{}{
		"status":                "healthy",
		"version":               version,
		"scheduler_running":     status.IsRunning,
		"scheduler_initialized": true,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// healthHandler provides health check endpoint
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "ok",
		"version":   version,
		"timestamp": time.Now().Unix(),
		"uptime":    time.Since(s.startedAt).Round(time.Second).String(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// Middleware functions

// corsMiddleware adds CORS headers
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Wrap the ResponseWriter to capture status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		s.logger.Info("request handled",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.statusCode,
			"duration", time.Since(start).Round(time.Microsecond),
		)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
