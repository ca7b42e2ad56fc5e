// Package api is the operator HTTP surface over a running session.
package api

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/AaronLay10/AdventureEngine/internal/events"
	"github.com/AaronLay10/AdventureEngine/internal/mqtt"
	"github.com/AaronLay10/AdventureEngine/internal/navigator"
	"github.com/AaronLay10/AdventureEngine/internal/scenes"
	"github.com/AaronLay10/AdventureEngine/internal/session"
)

// Probe reports whether an optional dependency is currently reachable.
type Probe func() bool

// Server routes operator requests to one session.
type Server struct {
	sess     *session.Session
	auth     *Auth
	presence *mqtt.Presence
	mqttUp   Probe
	pgUp     Probe
	router   chi.Router
}

type ServerOption func(*Server)

func WithAuth(a *Auth) ServerOption {
	return func(s *Server) { s.auth = a }
}

func WithPresence(p *mqtt.Presence) ServerOption {
	return func(s *Server) { s.presence = p }
}

// WithMQTTProbe makes MQTT connectivity part of readiness.
func WithMQTTProbe(p Probe) ServerOption {
	return func(s *Server) { s.mqttUp = p }
}

// WithPostgresProbe makes Postgres connectivity part of readiness.
func WithPostgresProbe(p Probe) ServerOption {
	return func(s *Server) { s.pgUp = p }
}

func NewServer(sess *session.Session, opts ...ServerOption) *Server {
	s := &Server{sess: sess}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.health)
	r.Get("/ready", s.ready)
	r.Get("/metrics", s.metrics)

	r.Group(func(r chi.Router) {
		r.Use(s.auth.RequireAnyRole())
		r.Get("/events", s.events)
		r.Get("/ws/events", wsEventsHandler)
		r.Get("/scene", s.scene)
		r.Get("/scenes", s.sceneIDs)
		r.Get("/assets", s.assets)
		r.Get("/presence", s.presenceClients)
		r.Post("/commands", s.command)
		r.Post("/scenes/{id}/enter", s.enter)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.auth.RequireAdmin())
		r.Delete("/assets/*", s.evict)
	})

	return r
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is done, then shuts down gracefully.
// tlsCfg may be nil for plain HTTP.
func (s *Server) Run(ctx context.Context, addr string, tlsCfg *tls.Config) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		TLSConfig:         tlsCfg,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("API listening on %s (tls=%v)", addr, tlsCfg != nil)
		var err error
		if tlsCfg != nil {
			err = srv.ListenAndServeTLS("", "")
		} else {
			err = srv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	events.CloseAllSubscribers()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type HealthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Session   string `json:"session"`
	Hostname  string `json:"hostname"`
	Timestamp string `json:"ts"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	host, _ := os.Hostname()
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Service:   "adventure",
		Session:   s.sess.ID(),
		Hostname:  host,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	})
}

type CheckStatus struct {
	Status string `json:"status"`
}

type ReadinessResponse struct {
	Ready       bool                   `json:"ready"`
	Checks      map[string]CheckStatus `json:"checks"`
	NotReadyMsg string                 `json:"message,omitempty"`
}

func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	resp := ReadinessResponse{Ready: true, Checks: make(map[string]CheckStatus)}

	check := func(name string, ok bool) {
		if ok {
			resp.Checks[name] = CheckStatus{Status: "ok"}
			return
		}
		resp.Checks[name] = CheckStatus{Status: "not_ready"}
		if resp.Ready {
			resp.NotReadyMsg = name + " not ready"
		}
		resp.Ready = false
	}

	check("scene_graph", s.sess.Graph().Ready() && !s.sess.TornDown())
	if s.mqttUp != nil {
		check("mqtt", s.mqttUp())
	}
	if s.pgUp != nil {
		check("postgres", s.pgUp())
	}

	status := http.StatusOK
	if !resp.Ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// events returns the in-memory ring buffer, or with ?source=db the most
// recent rows persisted to Postgres.
func (s *Server) events(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("source") != "db" {
		writeJSON(w, http.StatusOK, events.Snapshot())
		return
	}

	pg := events.GetPostgresClient()
	if pg == nil {
		writeJSON(w, http.StatusServiceUnavailable, OperatorResponse{Error: "postgres not configured"})
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	rows, err := pg.Query(limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, OperatorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

type SceneResponse struct {
	navigator.Status
	Commands []scenes.Command `json:"commands"`
}

func (s *Server) scene(w http.ResponseWriter, r *http.Request) {
	nav := s.sess.Navigator()
	resp := SceneResponse{Status: nav.Status(), Commands: []scenes.Command{}}
	if cur := nav.CurrentScene(); cur != nil && cur.Commands != nil {
		resp.Commands = cur.Commands
	}
	writeJSON(w, http.StatusOK, resp)
}

type ScenesResponse struct {
	Ready    bool     `json:"ready"`
	Address  string   `json:"address,omitempty"`
	SceneIDs []string `json:"scene_ids"`
}

func (s *Server) sceneIDs(w http.ResponseWriter, r *http.Request) {
	g := s.sess.Graph()
	ids := g.SceneIDs()
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, ScenesResponse{Ready: g.Ready(), Address: g.Address(), SceneIDs: ids})
}

func (s *Server) assets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sess.Cache().Snapshot())
}

func (s *Server) evict(w http.ResponseWriter, r *http.Request) {
	address := chi.URLParam(r, "*")
	if address == "" {
		writeJSON(w, http.StatusBadRequest, OperatorResponse{Error: "address required"})
		return
	}
	if !s.sess.Cache().Evict(address) {
		writeJSON(w, http.StatusNotFound, OperatorResponse{Error: "address not cached"})
		return
	}
	writeJSON(w, http.StatusOK, OperatorResponse{OK: true})
}

func (s *Server) presenceClients(w http.ResponseWriter, r *http.Request) {
	clients := []string{}
	if s.presence != nil {
		if c := s.presence.Connected(); c != nil {
			clients = c
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"connected": clients})
}

type OperatorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

func (s *Server) command(w http.ResponseWriter, r *http.Request) {
	var cmd scenes.Command
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		writeJSON(w, http.StatusBadRequest, OperatorResponse{Error: "invalid JSON"})
		return
	}
	if cmd.Type == "" {
		writeJSON(w, http.StatusBadRequest, OperatorResponse{Error: "type required"})
		return
	}

	err := s.sess.Navigator().ExecuteCommand(r.Context(), &cmd)
	writeResult(w, err)
}

func (s *Server) enter(w http.ResponseWriter, r *http.Request) {
	err := s.sess.Navigator().EnterScene(r.Context(), chi.URLParam(r, "id"))
	writeResult(w, err)
}

// writeResult maps navigator errors onto HTTP statuses.
func writeResult(w http.ResponseWriter, err error) {
	if err == nil {
		writeJSON(w, http.StatusOK, OperatorResponse{OK: true})
		return
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, navigator.ErrUnknownScene):
		status = http.StatusNotFound
	case errors.Is(err, navigator.ErrTransitionRejected):
		status = http.StatusConflict
	case errors.Is(err, navigator.ErrNotInitialized):
		status = http.StatusServiceUnavailable
	case errors.Is(err, navigator.ErrMalformedParameter):
		status = http.StatusBadRequest
	}
	writeJSON(w, status, OperatorResponse{Error: err.Error()})
}
