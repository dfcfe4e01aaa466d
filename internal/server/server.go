package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/noteflux/ai-router/internal/metrics"
	"github.com/noteflux/ai-router/internal/middleware"
	"github.com/noteflux/ai-router/internal/notify"
	"github.com/noteflux/ai-router/internal/providers"
	"github.com/noteflux/ai-router/internal/routing"
	"github.com/noteflux/ai-router/internal/types"
)

// SettingsStore is the persisted operator settings the server reads and
// updates through /v1/settings.
type SettingsStore interface {
	Get() types.ProcessingModeSettings
	Update(types.ProcessingModeSettings) error
}

// Config holds server configuration.
type Config struct {
	Port           string                     `yaml:"port"`
	ReadTimeout    time.Duration              `yaml:"read_timeout"`
	WriteTimeout   time.Duration              `yaml:"write_timeout"`
	MaxHeaderBytes int                        `yaml:"max_header_bytes"`
	Security       *middleware.SecurityConfig `yaml:"security"`
}

// Deps bundles the pipeline components the server exposes over HTTP.
type Deps struct {
	Processor  *routing.Processor
	Backends   map[types.ProviderID]providers.Provider
	Probe      providers.AvailabilityProbe
	Aggregator *metrics.Aggregator
	Hub        *notify.Hub
	Settings   SettingsStore
}

// Server is the HTTP surface over the routing pipeline.
type Server struct {
	deps               Deps
	httpServer         *http.Server
	logger             *logrus.Logger
	config             *Config
	securityMiddleware *middleware.SecurityMiddleware
}

// NewServer creates a new server instance.
func NewServer(deps Deps, config *Config, logger *logrus.Logger) (*Server, error) {
	server := &Server{
		deps:   deps,
		logger: logger,
		config: config,
	}

	if config.Security != nil {
		securityMiddleware, err := middleware.NewSecurityMiddleware(config.Security, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize security middleware: %w", err)
		}
		server.securityMiddleware = securityMiddleware
	}

	return server, nil
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	r := s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:           ":" + s.config.Port,
		Handler:        r,
		ReadTimeout:    s.config.ReadTimeout,
		WriteTimeout:   s.config.WriteTimeout,
		MaxHeaderBytes: s.config.MaxHeaderBytes,
	}

	s.logger.WithField("port", s.config.Port).Info("Starting AI router server")
	return s.httpServer.ListenAndServe()
}

// Stop stops the HTTP server gracefully.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping AI router server")
	return s.httpServer.Shutdown(ctx)
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() *mux.Router {
	r := mux.NewRouter()

	if s.securityMiddleware != nil {
		r.Use(s.securityMiddleware.Handler())
	}

	r.Use(s.loggingMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.contentTypeMiddleware)

	api := r.PathPrefix("/v1").Subrouter()

	// Pipeline endpoints
	api.HandleFunc("/process", s.handleProcess).Methods("POST")
	api.HandleFunc("/decision", s.handleDecision).Methods("POST")

	// Provider endpoints
	api.HandleFunc("/providers", s.handleListProviders).Methods("GET")
	api.HandleFunc("/health", s.handleHealthCheck).Methods("GET")

	// Metrics and feedback endpoints
	api.HandleFunc("/metrics", s.handleMetrics).Methods("GET")
	api.HandleFunc("/metrics/reset", s.handleMetricsReset).Methods("POST")
	api.HandleFunc("/recommendations", s.handleRecommendations).Methods("GET")
	api.HandleFunc("/events", s.handleEvents).Methods("GET")

	// Settings endpoints
	api.HandleFunc("/settings", s.handleGetSettings).Methods("GET")
	api.HandleFunc("/settings", s.handleUpdateSettings).Methods("PUT")

	// Health check endpoint (no /v1 prefix)
	r.HandleFunc("/health", s.handleHealthCheck).Methods("GET")

	s.setupSwaggerRoutes(r)

	return r
}

// Middleware

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: 200}

		next.ServeHTTP(wrapped, r)

		s.logger.WithFields(logrus.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      wrapped.statusCode,
			"duration_ms": time.Since(start).Milliseconds(),
			"user_agent":  r.UserAgent(),
			"remote_addr": r.RemoteAddr,
		}).Info("HTTP request")
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) contentTypeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == "POST" || r.Method == "PUT" {
			contentType := r.Header.Get("Content-Type")
			if contentType != "application/json" && contentType != "" {
				s.writeErrorResponse(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// Handlers

// handleProcess runs the full pipeline: classify, decide, invoke the selected
// provider, record metrics.
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeRequest(w, r)
	if !ok {
		return
	}

	decision, result, err := s.deps.Processor.Process(r.Context(), req)
	if err != nil {
		s.writeProviderError(w, err)
		return
	}

	response := map[string]interface{}{
		"decision": decision,
		"result":   result,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// handleDecision returns the routing decision without executing the request.
func (s *Server) handleDecision(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeRequest(w, r)
	if !ok {
		return
	}

	decision, err := s.deps.Processor.Decide(r.Context(), req)
	if err != nil {
		s.writeProviderError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(decision)
}

// handleListProviders lists the registered backends with their current
// availability and the sensitivity levels each is allowed to process.
func (s *Server) handleListProviders(w http.ResponseWriter, r *http.Request) {
	list := make([]map[string]interface{}, 0, len(s.deps.Backends))
	for _, id := range types.AllProviders {
		if _, ok := s.deps.Backends[id]; !ok {
			continue
		}
		allowed := []types.SensitivityLevel{}
		for _, level := range types.AllSensitivityLevels {
			if routing.IsCompliant(id, level) {
				allowed = append(allowed, level)
			}
		}
		list = append(list, map[string]interface{}{
			"id":             id,
			"cloud":          id.IsCloud(),
			"available":      s.deps.Probe.IsAvailable(id),
			"allowed_levels": allowed,
		})
	}

	response := map[string]interface{}{
		"providers": list,
		"count":     len(list),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// handleHealthCheck runs a health check against every backend. The overall
// status is healthy only when the local provider responds; cloud outages
// degrade the service but leave it usable.
func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	statuses := map[types.ProviderID]string{}
	localHealthy := false
	for id, backend := range s.deps.Backends {
		if err := backend.HealthCheck(ctx); err != nil {
			statuses[id] = "unhealthy: " + err.Error()
			continue
		}
		statuses[id] = "healthy"
		if id == types.ProviderLocal {
			localHealthy = true
		}
	}

	status := "healthy"
	statusCode := http.StatusOK
	for _, st := range statuses {
		if st != "healthy" {
			status = "degraded"
			break
		}
	}
	if !localHealthy {
		statusCode = http.StatusServiceUnavailable
	}

	response := map[string]interface{}{
		"status":    status,
		"online":    s.deps.Probe.IsOnline(),
		"providers": statuses,
		"timestamp": time.Now().Unix(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(response)
}

// handleMetrics returns the usage metrics snapshot.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.deps.Aggregator.Snapshot())
}

// handleMetricsReset zeroes all counters.
func (s *Server) handleMetricsReset(w http.ResponseWriter, r *http.Request) {
	s.deps.Aggregator.Reset()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    "reset",
		"timestamp": time.Now().Unix(),
	})
}

// handleRecommendations returns usage-derived configuration advice.
func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	recommendations := s.deps.Aggregator.Recommendations()

	response := map[string]interface{}{
		"recommendations": recommendations,
		"count":           len(recommendations),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// handleEvents returns the most recent pipeline events.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	events := s.deps.Hub.Recent()

	response := map[string]interface{}{
		"events": events,
		"count":  len(events),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.deps.Settings.Get())
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var settings types.ProcessingModeSettings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %v", err))
		return
	}

	if err := s.deps.Settings.Update(settings); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(settings)
}

// Helper functions

func (s *Server) decodeRequest(w http.ResponseWriter, r *http.Request) (*types.ProcessingRequest, bool) {
	var req types.ProcessingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %v", err))
		return nil, false
	}

	if req.ID == "" {
		req.ID = fmt.Sprintf("req-%d", time.Now().UnixNano())
	}
	req.Timestamp = time.Now()
	return &req, true
}

// writeProviderError maps the pipeline error taxonomy onto HTTP status codes.
func (s *Server) writeProviderError(w http.ResponseWriter, err error) {
	statusCode := http.StatusInternalServerError

	var perr *types.ProviderError
	if errors.As(err, &perr) {
		switch perr.Kind {
		case types.KindValidation:
			statusCode = http.StatusBadRequest
		case types.KindRateLimited:
			statusCode = http.StatusTooManyRequests
		case types.KindAuth:
			statusCode = http.StatusBadGateway
		case types.KindProviderUnavailable, types.KindNetwork,
			types.KindTransientServer, types.KindRetryExhausted:
			statusCode = http.StatusServiceUnavailable
		}
	}

	s.writeErrorResponse(w, statusCode, err.Error())
}

func (s *Server) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	errorResp := map[string]interface{}{
		"error": map[string]interface{}{
			"message": message,
			"code":    statusCode,
		},
		"timestamp": time.Now().Unix(),
	}

	json.NewEncoder(w).Encode(errorResp)
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
