// Package api provides the HTTP API for observing a simulation.
// GET endpoints are public (read-only observation).
// POST and DELETE endpoints require a bearer token (admin control plane).
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/talgya/office-diffusion/internal/agents"
	"github.com/talgya/office-diffusion/internal/engine"
	"github.com/talgya/office-diffusion/internal/metrics"
	"github.com/talgya/office-diffusion/internal/office"
	"github.com/talgya/office-diffusion/internal/persistence"
)

const (
	defaultRunLimit = 20
	maxRunLimit     = 500
)

// Server serves the simulation state over HTTP.
type Server struct {
	Sim      *engine.Simulation
	DB       *persistence.DB // Optional; run history endpoints answer 503 without it
	Port     int
	AdminKey string // Bearer token for POST/DELETE endpoints. Empty = disabled.

	hub *Hub
}

// NewServer creates a server for sim. db may be nil.
func NewServer(sim *engine.Simulation, db *persistence.DB, port int) *Server {
	return &Server{
		Sim:      sim,
		DB:       db,
		Port:     port,
		AdminKey: os.Getenv("OFFICESIM_ADMIN_KEY"),
		hub:      NewHub(),
	}
}

// Handler builds the routed, CORS-wrapped handler.
func (s *Server) Handler() http.Handler {
	// Centrality recomputes shortest paths over the whole interaction graph.
	centralityLimiter := NewRateLimiter(60, time.Minute)

	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/spaces", s.handleSpaces)
	mux.HandleFunc("/api/v1/diffusion", s.handleDiffusion)
	mux.HandleFunc("/api/v1/usage", s.handleUsage)
	mux.HandleFunc("/api/v1/interactions", s.handleInteractions)
	mux.HandleFunc("/api/v1/centrality", RateLimitMiddleware(centralityLimiter, s.handleCentrality))
	mux.HandleFunc("/api/v1/runs", s.handleRuns)
	mux.HandleFunc("/api/v1/runs/", s.adminOnly(s.handleRunDetail))

	// Live tick stream (websocket).
	mux.HandleFunc("/api/v1/stream", s.handleStream)

	mux.HandleFunc("/api/v1/stop", s.adminOnly(s.handleStop))

	return corsMiddleware(mux)
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() *http.Server {
	addr := fmt.Sprintf(":%d", s.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "")

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
	return srv
}

// Publish pushes a tick summary and the latest frame to every stream client.
func (s *Server) Publish(ts engine.TickSummary) {
	s.hub.Broadcast(streamMessage{
		Type:    "tick",
		Summary: &ts,
		Frame:   s.Sim.Recorder.LastFrame(),
	})
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS env var to a comma-separated list of allowed origins.
// Localhost dev servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:4173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
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
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth on mutating requests.
// GET requests pass through.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodDelete {
			if s.AdminKey == "" {
				http.Error(w, "admin endpoints disabled (no OFFICESIM_ADMIN_KEY set)", http.StatusForbidden)
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
	tick := 0
	if f := s.Sim.Recorder.LastFrame(); f != nil {
		tick = f.Tick
	}
	final := s.Sim.Recorder.Snapshot().Final()

	status := map[string]any{
		"state":        s.Sim.State(),
		"mode":         s.Sim.Mode(),
		"seed":         strconv.FormatUint(s.Sim.Seed(), 10),
		"tick":         tick,
		"agents":       len(s.Sim.Agents),
		"teams":        len(s.Sim.Teams),
		"friendships":  s.Sim.FriendGraph.EdgeCount(),
		"spaces":       s.Sim.Floor.Len(),
		"capacity":     s.Sim.Floor.TotalCapacity(),
		"space_types":  typeCounts(s.Sim.Floor),
		"marker":       s.Sim.Recorder.Marker(),
		"informed":     final.Informed,
		"percent":      final.Percent,
		"interactions": s.Sim.Recorder.InteractionCount(),
		"streams":      s.hub.Len(),
	}
	writeJSON(w, status)
}

func typeCounts(f *office.Floor) map[string]int {
	counts := f.TypeCounts()
	out := make(map[string]int, office.NumSpaceTypes)
	for t, n := range counts {
		out[office.SpaceType(t).String()] = n
	}
	return out
}

func (s *Server) handleSpaces(w http.ResponseWriter, r *http.Request) {
	type spaceView struct {
		ID        office.SpaceID   `json:"id"`
		Type      office.SpaceType `json:"type"`
		Capacity  int              `json:"capacity"`
		Position  office.Point     `json:"position"`
		Occupants []uint64         `json:"occupants"`
	}

	// Occupancy comes from the last recorded frame; the live occupant lists
	// belong to the simulation goroutine.
	var occ map[office.SpaceID][]uint64
	if f := s.Sim.Recorder.LastFrame(); f != nil {
		occ = f.Occupants
	}
	out := make([]spaceView, 0, s.Sim.Floor.Len())
	for _, sp := range s.Sim.Floor.Spaces {
		v := spaceView{ID: sp.ID, Type: sp.Type, Capacity: sp.Capacity, Position: sp.Position, Occupants: occ[sp.ID]}
		if v.Occupants == nil {
			v.Occupants = []uint64{}
		}
		out = append(out, v)
	}
	writeJSON(w, out)
}

func (s *Server) handleDiffusion(w http.ResponseWriter, r *http.Request) {
	snap := s.Sim.Recorder.Snapshot()
	writeJSON(w, map[string]any{
		"marker": snap.Marker,
		"series": nonNil(snap.Diffusion),
		"final":  snap.Final(),
	})
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	snap := s.Sim.Recorder.Snapshot()
	totals := snap.TypeTotals()
	byType := make(map[string]int, office.NumSpaceTypes)
	for t, n := range totals {
		byType[office.SpaceType(t).String()] = n
	}
	resp := map[string]any{
		"ticks":   snap.Ticks(),
		"by_type": byType,
	}
	if n := len(snap.Usage); n > 0 {
		resp["latest"] = snap.Usage[n-1]
	}
	writeJSON(w, resp)
}

// handleInteractions returns the interaction log, optionally filtered with
// ?since=<tick> and truncated with ?limit=<n>.
func (s *Server) handleInteractions(w http.ResponseWriter, r *http.Request) {
	since, err := queryInt(r, "since", 0)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	records := s.Sim.Recorder.Snapshot().Interactions
	out := make([]metrics.Interaction, 0, len(records))
	for _, rec := range records {
		if rec.Tick < since {
			continue
		}
		out = append(out, rec)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	writeJSON(w, out)
}

// handleCentrality computes network measures over the interaction log so far.
// ?by=degree|closeness|betweenness|pagerank with ?top=<k> returns the k
// highest-ranked agents; without them the full table is returned.
func (s *Server) handleCentrality(w http.ResponseWriter, r *http.Request) {
	participants := make([]agents.AgentID, len(s.Sim.Agents))
	for i, a := range s.Sim.Agents {
		participants[i] = a.ID
	}
	rows := metrics.Centrality(s.Sim.Recorder.Snapshot().Interactions, participants)

	by := r.URL.Query().Get("by")
	if by == "" {
		writeJSON(w, rows)
		return
	}
	measure, ok := centralityMeasures[by]
	if !ok {
		http.Error(w, "unknown measure (use: degree, closeness, betweenness, pagerank)", http.StatusBadRequest)
		return
	}
	top, err := queryInt(r, "top", 10)
	if err != nil || top < 1 {
		http.Error(w, "top must be a positive integer", http.StatusBadRequest)
		return
	}
	writeJSON(w, metrics.TopBy(rows, top, measure))
}

var centralityMeasures = map[string]func(metrics.CentralityRow) float64{
	"degree":      func(r metrics.CentralityRow) float64 { return r.Degree },
	"closeness":   func(r metrics.CentralityRow) float64 { return r.Closeness },
	"betweenness": func(r metrics.CentralityRow) float64 { return r.Betweenness },
	"pagerank":    func(r metrics.CentralityRow) float64 { return r.PageRank },
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "run history unavailable (no database)", http.StatusServiceUnavailable)
		return
	}
	limit, err := queryInt(r, "limit", defaultRunLimit)
	if err != nil || limit < 1 {
		http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
		return
	}
	if limit > maxRunLimit {
		limit = maxRunLimit
	}
	runs, err := s.DB.ListRuns(limit)
	if err != nil {
		slog.Error("list runs", "error", err)
		http.Error(w, "failed to list runs", http.StatusInternalServerError)
		return
	}
	writeJSON(w, nonNil(runs))
}

// handleRunDetail serves GET and DELETE on /api/v1/runs/:id. GET includes the
// stored interaction log with ?interactions=1.
func (s *Server) handleRunDetail(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "run history unavailable (no database)", http.StatusServiceUnavailable)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/runs/")
	if id == "" || strings.Contains(id, "/") {
		http.Error(w, "invalid run id", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodDelete:
		if err := s.DB.DeleteRun(id); err != nil {
			writeDBError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case http.MethodGet:
		run, err := s.DB.GetRun(id)
		if err != nil {
			writeDBError(w, err)
			return
		}
		diffusion, err := s.DB.LoadDiffusion(id)
		if err != nil {
			writeDBError(w, err)
			return
		}
		usage, err := s.DB.LoadTypeUsage(id)
		if err != nil {
			writeDBError(w, err)
			return
		}
		centrality, err := s.DB.LoadCentrality(id)
		if err != nil {
			writeDBError(w, err)
			return
		}
		resp := map[string]any{
			"run":        run,
			"diffusion":  nonNil(diffusion),
			"usage":      nonNil(usage),
			"centrality": nonNil(centrality),
		}
		if r.URL.Query().Get("interactions") == "1" {
			records, err := s.DB.LoadInteractions(id)
			if err != nil {
				writeDBError(w, err)
				return
			}
			resp["interactions"] = nonNil(records)
		}
		writeJSON(w, resp)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}
	if s.Sim.State() != engine.StateRunning {
		http.Error(w, fmt.Sprintf("simulation is %s", s.Sim.State()), http.StatusConflict)
		return
	}
	s.Sim.Stop()
	slog.Info("stop requested via API", "remote", r.RemoteAddr)
	writeJSON(w, map[string]string{"status": "stopping"})
}

func writeDBError(w http.ResponseWriter, err error) {
	if errors.Is(err, persistence.ErrRunNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	slog.Error("run history query", "error", err)
	http.Error(w, "database error", http.StatusInternalServerError)
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: not an integer: %q", key, v)
	}
	return n, nil
}

// nonNil keeps empty series encoding as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
