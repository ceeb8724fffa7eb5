// Package api provides the HTTP API for observing a running wind field.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token (admin control plane).
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/talgya/windfield/internal/engine"
	"github.com/talgya/windfield/internal/persistence"
)

// SampleStore is the read side of the sample log.
type SampleStore interface {
	RecentSamples(runID string, limit int) ([]persistence.Sample, error)
}

// Server serves the field state over HTTP. Handlers only read published
// snapshots; changes are queued to the engine goroutine.
type Server struct {
	Eng      *engine.Engine
	Store    SampleStore // optional
	RunID    string
	Addr     string
	AdminKey string // Bearer token for POST endpoints. Empty = POST disabled.

	// Origins allowed by CORS in addition to localhost dev servers.
	CORSOrigins []string

	// GustLimit caps forced gusts per client. Nil uses 10 per minute.
	GustLimit *RateLimiter

	// TrustProxy identifies clients by X-Forwarded-For. Set it only when
	// a reverse proxy in front of the API overwrites that header.
	TrustProxy bool
}

// Handler builds the routing table.
func (s *Server) Handler() http.Handler {
	gustLimiter := s.GustLimit
	if gustLimiter == nil {
		gustLimiter = NewRateLimiter(10, time.Minute)
	}

	mux := http.NewServeMux()

	// Public endpoints (GET, read-only).
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/wind", s.handleWind)
	mux.HandleFunc("/api/v1/targets", s.handleTargets)
	mux.HandleFunc("/api/v1/zone", s.handleZone)
	mux.HandleFunc("/api/v1/events", s.handleEvents)
	mux.HandleFunc("/api/v1/samples", s.handleSamples)

	// Admin endpoints (POST, require bearer token).
	mux.HandleFunc("/api/v1/gust", s.adminOnly(RateLimitMiddleware(gustLimiter, s.TrustProxy, s.handleGust)))
	mux.HandleFunc("/api/v1/speed", s.adminOnly(s.handleSpeed))

	return corsMiddleware(s.CORSOrigins, mux)
}

// Serve listens on Addr until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.Addr, err)
	}
	return s.serve(ctx, ln)
}

func (s *Server) serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", ln.Addr().String(), "admin_auth", s.AdminKey != "")

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	<-errc
	slog.Info("HTTP API stopped")
	return nil
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Localhost dev servers are always allowed.
func corsMiddleware(extra []string, next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	for _, origin := range extra {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			allowedOrigins[origin] = true
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	return ok && subtle.ConstantTimeCompare([]byte(token), []byte(s.AdminKey)) == 1
}

// adminOnly wraps a handler to require bearer token auth on POST requests.
// GET requests pass through (for endpoints that support both GET and POST).
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if s.AdminKey == "" {
				http.Error(w, "admin endpoints disabled (no admin key set)", http.StatusForbidden)
				return
			}

			if !s.checkBearerToken(r) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}

		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.Eng.Snapshot()
	status := map[string]any{
		"name":     "windfield",
		"run_id":   s.RunID,
		"step":     snap.Step,
		"sim_time": snap.SimTime,
		"days":     snap.Days,
		"speed":    s.Eng.Speed(),
		"seed":     snap.Seed,
		"mode":     snap.Mode,
		"targets":  len(snap.Targets),
		"gust":     snap.Gust.Phase,
		"applied":  snap.Totals.Applied,
	}
	writeJSON(w, status)
}

func (s *Server) handleWind(w http.ResponseWriter, r *http.Request) {
	snap := s.Eng.Snapshot()
	writeJSON(w, map[string]any{
		"step":  snap.Step,
		"wind":  snap.Wind,
		"force": snap.Force,
		"gust":  snap.Gust,
	})
}

func (s *Server) handleTargets(w http.ResponseWriter, r *http.Request) {
	snap := s.Eng.Snapshot()
	writeJSON(w, map[string]any{
		"step":       snap.Step,
		"mode":       snap.Mode,
		"count":      len(snap.Targets),
		"targets":    snap.Targets,
		"last_apply": snap.Last,
		"totals":     snap.Totals,
	})
}

func (s *Server) handleZone(w http.ResponseWriter, r *http.Request) {
	snap := s.Eng.Snapshot()
	if snap.Zone == nil {
		http.Error(w, "no zone configured", http.StatusNotFound)
		return
	}
	writeJSON(w, snap.Zone)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Eng.Snapshot().Events)
}

func (s *Server) handleSamples(w http.ResponseWriter, r *http.Request) {
	if s.Store == nil {
		http.Error(w, "sample store disabled", http.StatusServiceUnavailable)
		return
	}
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 1000 {
			http.Error(w, "limit must be 1-1000", http.StatusBadRequest)
			return
		}
		limit = n
	}
	samples, err := s.Store.RecentSamples(s.RunID, limit)
	if err != nil {
		slog.Error("failed to load samples", "error", err)
		http.Error(w, "failed to load samples", http.StatusInternalServerError)
		return
	}
	if samples == nil {
		samples = []persistence.Sample{}
	}
	writeJSON(w, samples)
}

func (s *Server) handleGust(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	if err := s.Eng.Do(func(f *engine.Field) { f.Sim.TriggerGust() }); err != nil {
		http.Error(w, "engine busy", http.StatusServiceUnavailable)
		return
	}
	slog.Info("gust forced", "remote", clientIP(r, s.TrustProxy))
	writeJSONStatus(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		var req struct {
			Speed float64 `json:"speed"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if req.Speed < 0 || req.Speed > 1000 {
			http.Error(w, "speed must be 0-1000", http.StatusBadRequest)
			return
		}
		s.Eng.SetSpeed(req.Speed)
		slog.Info("speed changed", "speed", req.Speed)
	}

	writeJSON(w, map[string]float64{"speed": s.Eng.Speed()})
}

func writeJSON(w http.ResponseWriter, data any) {
	writeJSONStatus(w, http.StatusOK, data)
}

func writeJSONStatus(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
