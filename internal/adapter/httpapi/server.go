// Package httpapi exposes the service's query surface: health, readiness,
// metrics, sensor snapshots, risk fusion, and the live websocket feed.
package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/slopewatch/slope-monitor/internal/config"
	"github.com/slopewatch/slope-monitor/internal/domain"
	"github.com/slopewatch/slope-monitor/internal/hub"
	"github.com/slopewatch/slope-monitor/internal/observability"
)

// SnapshotProvider returns the current sensor state; satisfied by
// state.Coordinator.
type SnapshotProvider interface {
	Snapshot() domain.SensorState
}

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// WeatherSource supplies current weather and trailing rainfall for a site.
type WeatherSource interface {
	Fetch(ctx context.Context, lat, lon float64) (domain.WeatherSummary, float64, error)
}

// SeismicSource supplies a recent-seismicity summary for a site.
type SeismicSource interface {
	Summary(ctx context.Context, lat, lon float64) (domain.SeismicSummary, error)
}

// Server exposes the HTTP and websocket endpoints.
type Server struct {
	httpServer  *http.Server
	coordinator SnapshotProvider
	hub         *hub.Hub
	weather     WeatherSource
	seismic     SeismicSource
	siteLat     float64
	siteLon     float64
	logger      *slog.Logger
	metrics     *observability.Metrics
}

// NewServer wires the routes. The API is CORS-open to any origin; the
// upstream dashboards are served from arbitrary hosts.
func NewServer(
	cfg *config.Config,
	coordinator SnapshotProvider,
	h *hub.Hub,
	weather WeatherSource,
	seismic SeismicSource,
	ready ReadinessChecker,
	logger *slog.Logger,
	metrics *observability.Metrics,
) *Server {
	s := &Server{
		coordinator: coordinator,
		hub:         h,
		weather:     weather,
		seismic:     seismic,
		siteLat:     cfg.SiteLat,
		siteLon:     cfg.SiteLon,
		logger:      logger,
		metrics:     metrics,
	}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", handleReady(ready)).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.handleWS).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/sensors", s.handleSnapshot).Methods(http.MethodGet)
	api.HandleFunc("/risk", s.handleRisk).Methods(http.MethodPost)
	api.HandleFunc("/risk/auto", s.handleRiskAuto).Methods(http.MethodGet)

	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)

	s.httpServer = &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      cors(r),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

// handleSnapshot serves the current sensor state. It always succeeds with
// the best-known state, even when every transport is down.
func (s *Server) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.coordinator.Snapshot())
}

// riskRequest carries externally supplied telemetry for a fusion query.
type riskRequest struct {
	Weather   domain.WeatherSummary `json:"weather"`
	Rain24hMm float64               `json:"rain_24h_mm"`
	Seismic   domain.SeismicSummary `json:"seismic"`
}

func (s *Server) handleRisk(w http.ResponseWriter, r *http.Request) {
	var req riskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	assessment := domain.Fuse(req.Weather, req.Rain24hMm, req.Seismic, s.coordinator.Snapshot())
	s.metrics.RiskAssessments.WithLabelValues(string(assessment.Level)).Inc()
	writeJSON(w, http.StatusOK, assessment)
}

// autoRiskResponse echoes the fetched telemetry alongside the assessment.
type autoRiskResponse struct {
	Latitude  float64               `json:"latitude"`
	Longitude float64               `json:"longitude"`
	Weather   domain.WeatherSummary `json:"weather"`
	Rain24hMm float64               `json:"rain_24h_mm"`
	Seismic   domain.SeismicSummary `json:"seismic"`
	Risk      domain.RiskAssessment `json:"risk"`
}

// handleRiskAuto fetches weather and seismic telemetry for the requested
// (or configured) site and fuses it with the current state. A failed
// provider contributes neutral values; the fusion itself cannot fail.
func (s *Server) handleRiskAuto(w http.ResponseWriter, r *http.Request) {
	lat, lon, err := s.siteCoords(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	var (
		weather domain.WeatherSummary
		rain24h float64
		seismic domain.SeismicSummary
	)
	if s.weather != nil {
		if weather, rain24h, err = s.weather.Fetch(r.Context(), lat, lon); err != nil {
			s.logger.Warn("weather telemetry unavailable, fusing with neutral values", "error", err)
			weather, rain24h = domain.WeatherSummary{}, 0
		}
	}
	if s.seismic != nil {
		if seismic, err = s.seismic.Summary(r.Context(), lat, lon); err != nil {
			s.logger.Warn("seismic telemetry unavailable, fusing with neutral values", "error", err)
			seismic = domain.SeismicSummary{}
		}
	}

	assessment := domain.Fuse(weather, rain24h, seismic, s.coordinator.Snapshot())
	s.metrics.RiskAssessments.WithLabelValues(string(assessment.Level)).Inc()

	writeJSON(w, http.StatusOK, autoRiskResponse{
		Latitude:  lat,
		Longitude: lon,
		Weather:   weather,
		Rain24hMm: rain24h,
		Seismic:   seismic,
		Risk:      assessment,
	})
}

// siteCoords resolves query coordinates, falling back to the configured site.
func (s *Server) siteCoords(r *http.Request) (float64, float64, error) {
	lat, lon := s.siteLat, s.siteLon
	if q := r.URL.Query().Get("lat"); q != "" {
		v, err := strconv.ParseFloat(q, 64)
		if err != nil {
			return 0, 0, errInvalidCoord("lat", q)
		}
		lat = v
	}
	if q := r.URL.Query().Get("lon"); q != "" {
		v, err := strconv.ParseFloat(q, 64)
		if err != nil {
			return 0, 0, errInvalidCoord("lon", q)
		}
		lon = v
	}
	return lat, lon, nil
}

type coordError struct{ msg string }

func (e coordError) Error() string { return e.msg }

func errInvalidCoord(name, value string) error {
	return coordError{msg: "invalid " + name + ": " + value}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
