// Package http exposes the read-only JSON API plus the health, readiness,
// and metrics endpoints. All risk derivation happens behind it; handlers
// only parse parameters, take one snapshot, and serialize results.
package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/paulmach/orb"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/hurricane-risk-service/internal/forecast"
	"github.com/couchcryptid/hurricane-risk-service/internal/places"
	"github.com/couchcryptid/hurricane-risk-service/internal/query"
	"github.com/couchcryptid/hurricane-risk-service/internal/risk"
)

// defaultAreaRadiusKm mirrors the original command-center default of 50
// miles.
const defaultAreaRadiusKm = 80.0

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// Server exposes the JSON API over one snapshot per request.
type Server struct {
	httpServer *http.Server
	holder     *forecast.Holder
	engine     *query.Engine
	service    *places.Service
	weights    risk.Weights
	logger     *slog.Logger
}

// NewServer creates the HTTP server with all routes registered.
func NewServer(addr string, holder *forecast.Holder, engine *query.Engine, service *places.Service, weights risk.Weights, ready ReadinessChecker, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		holder:  holder,
		engine:  engine,
		service: service,
		weights: weights,
		logger:  logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /v1/storm", s.handleStorm)
	mux.HandleFunc("GET /v1/risk", s.handleRisk)
	mux.HandleFunc("GET /v1/impacts", s.handleImpacts)
	mux.HandleFunc("GET /v1/counties", s.handleCounties)
	mux.HandleFunc("GET /v1/area", s.handleArea)

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

// stormResponse describes the active snapshot.
type stormResponse struct {
	StormID    string      `json:"storm_id"`
	Name       string      `json:"name"`
	Source     string      `json:"source"`
	Generation string      `json:"generation"`
	IngestedAt time.Time   `json:"ingested_at"`
	Timeline   []time.Time `json:"timeline"`
}

func (s *Server) handleStorm(w http.ResponseWriter, _ *http.Request) {
	snap := s.holder.Current()
	if snap == nil {
		writeError(w, http.StatusServiceUnavailable, "no forecast snapshot")
		return
	}
	writeJSON(w, http.StatusOK, stormResponse{
		StormID:    snap.Store.StormID(),
		Name:       snap.Store.Name(),
		Source:     snap.Source,
		Generation: snap.Generation,
		IngestedAt: snap.IngestedAt,
		Timeline:   snap.Store.Timeline(),
	})
}

func (s *Server) handleRisk(w http.ResponseWriter, r *http.Request) {
	pt, ok := parsePoint(w, r)
	if !ok {
		return
	}
	coastal := r.URL.Query().Get("coastal") == "true"

	snap := s.holder.Current()
	if snap == nil {
		writeError(w, http.StatusServiceUnavailable, "no forecast snapshot")
		return
	}

	assessment := s.engine.Assess(r.Context(), snap, pt, coastal, s.weights, nil)
	writeJSON(w, http.StatusOK, assessment)
}

// impactsResponse pairs per-place impacts with their category rollups.
type impactsResponse struct {
	StormID string                `json:"storm_id"`
	Impacts []places.Impact       `json:"impacts"`
	Groups  []places.GroupSummary `json:"groups"`
}

func (s *Server) handleImpacts(w http.ResponseWriter, r *http.Request) {
	snap := s.holder.Current()
	if snap == nil {
		writeError(w, http.StatusServiceUnavailable, "no forecast snapshot")
		return
	}

	impacts, _, err := s.service.Impacts(r.Context(), snap)
	if err != nil {
		s.logger.Error("impacts request failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, impactsResponse{
		StormID: snap.Store.StormID(),
		Impacts: impacts,
		Groups:  places.Groups(impacts),
	})
}

func (s *Server) handleCounties(w http.ResponseWriter, r *http.Request) {
	snap := s.holder.Current()
	if snap == nil {
		writeError(w, http.StatusServiceUnavailable, "no forecast snapshot")
		return
	}

	counties, err := s.service.Counties(r.Context(), snap)
	if err != nil {
		s.logger.Error("counties request failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, counties)
}

func (s *Server) handleArea(w http.ResponseWriter, r *http.Request) {
	pt, ok := parsePoint(w, r)
	if !ok {
		return
	}
	radiusKm := defaultAreaRadiusKm
	if raw := r.URL.Query().Get("radius_km"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v <= 0 || v > 500 {
			writeError(w, http.StatusBadRequest, "radius_km must be in (0, 500]")
			return
		}
		radiusKm = v
	}

	snap := s.holder.Current()
	if snap == nil {
		writeError(w, http.StatusServiceUnavailable, "no forecast snapshot")
		return
	}

	summary, err := s.service.Area(r.Context(), snap, pt, radiusKm)
	if err != nil {
		s.logger.Error("area request failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// parsePoint reads lat/lon query parameters, writing a 400 on any problem.
func parsePoint(w http.ResponseWriter, r *http.Request) (orb.Point, bool) {
	lat, err := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	if err != nil || lat < -90 || lat > 90 {
		writeError(w, http.StatusBadRequest, "lat must be a number in [-90, 90]")
		return orb.Point{}, false
	}
	lon, err := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	if err != nil || lon < -180 || lon > 180 {
		writeError(w, http.StatusBadRequest, "lon must be a number in [-180, 180]")
		return orb.Point{}, false
	}
	return orb.Point{lon, lat}, true
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
