package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/cors"

	"repeatcal/internal/config"
	"repeatcal/internal/ics"
	appLog "repeatcal/internal/log"
	"repeatcal/internal/model"
	"repeatcal/internal/recur"
	"repeatcal/internal/repository"
)

// maxBodyBytes bounds request bodies; a capped series fits well within it.
const maxBodyBytes = 8 << 20

// Server is the remote event store: a JSON API over a repository.Repository.
type Server struct {
	cfg  *config.Config
	repo repository.Repository
	loc  *time.Location
	mux  *http.ServeMux
	now  func() time.Time
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, repo repository.Repository) *Server {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	s := &Server{
		cfg:  cfg,
		repo: repo,
		loc:  resolveLocationOrLocal(cfg.Timezone),
		mux:  http.NewServeMux(),
		now:  time.Now,
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server, wrapped with
// basic auth when configured and CORS for the configured origins.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		h = s.basicAuthMiddleware(h)
	}
	if len(s.cfg.CORS.AllowedOrigins) > 0 {
		h = cors.New(cors.Options{
			AllowedOrigins:   s.cfg.CORS.AllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
			AllowedHeaders:   []string{"Content-Type", "Authorization"},
			AllowCredentials: true,
		}).Handler(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty username or password means disabled.
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// /health is always public.
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="repeatcal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// StartServer serves the API on cfg.Listen until ctx is cancelled, then shuts
// down gracefully.
func StartServer(ctx context.Context, cfg *config.Config, repo repository.Repository) error {
	s := NewServer(cfg, repo)
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.mux.HandleFunc("GET /api/events", s.handleListEvents)
	s.mux.HandleFunc("POST /api/events", s.handleCreateEvent)
	s.mux.HandleFunc("PUT /api/events/{id}", s.handleUpdateEvent)
	s.mux.HandleFunc("DELETE /api/events/{id}", s.handleDeleteEvent)

	s.mux.HandleFunc("POST /api/events-list", s.handleCreateEvents)
	s.mux.HandleFunc("PUT /api/events-list", s.handleUpdateEvents)
	s.mux.HandleFunc("DELETE /api/events-list", s.handleDeleteEvents)

	s.mux.HandleFunc("GET /api/events.ics", s.handleExport)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// eventsBody is the request and response shape of the list endpoints.
type eventsBody struct {
	Events []model.Event `json:"events"`
}

// idsBody is the request shape of DELETE /api/events-list.
type idsBody struct {
	EventIDs []string `json:"eventIds"`
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.repo.List(r.Context())
	if err != nil {
		s.storeError(w, "list events", err)
		return
	}
	writeJSON(w, http.StatusOK, eventsBody{Events: events})
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var ev model.Event
	if !decodeBody(w, r, &ev) || !validate(w, ev) {
		return
	}
	created, err := s.repo.Create(r.Context(), ev)
	if err != nil {
		s.storeError(w, "create event", err)
		return
	}
	appLog.Info("api event created", "id", created.ID, "date", created.Date)
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var ev model.Event
	if !decodeBody(w, r, &ev) || !validate(w, ev) {
		return
	}
	updated, err := s.repo.Update(r.Context(), id, ev)
	if err != nil {
		s.storeError(w, "update event", err, "id", id)
		return
	}
	appLog.Info("api event updated", "id", id)
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.repo.Delete(r.Context(), id); err != nil {
		s.storeError(w, "delete event", err, "id", id)
		return
	}
	appLog.Info("api event deleted", "id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateEvents(w http.ResponseWriter, r *http.Request) {
	var body eventsBody
	if !decodeBody(w, r, &body) {
		return
	}
	for _, ev := range body.Events {
		if !validate(w, ev) {
			return
		}
	}
	created, err := s.repo.CreateMany(r.Context(), body.Events)
	if err != nil {
		s.storeError(w, "create events", err)
		return
	}
	appLog.Info("api events created", "count", len(created))
	writeJSON(w, http.StatusCreated, eventsBody{Events: created})
}

func (s *Server) handleUpdateEvents(w http.ResponseWriter, r *http.Request) {
	var body eventsBody
	if !decodeBody(w, r, &body) {
		return
	}
	for _, ev := range body.Events {
		if !validate(w, ev) {
			return
		}
	}
	updated, err := s.repo.UpdateMany(r.Context(), body.Events)
	if err != nil {
		s.storeError(w, "update events", err, "count", len(body.Events))
		return
	}
	appLog.Info("api events updated", "count", len(updated))
	writeJSON(w, http.StatusOK, eventsBody{Events: updated})
}

func (s *Server) handleDeleteEvents(w http.ResponseWriter, r *http.Request) {
	var body idsBody
	if !decodeBody(w, r, &body) {
		return
	}
	if err := s.repo.DeleteMany(r.Context(), body.EventIDs); err != nil {
		s.storeError(w, "delete events", err, "count", len(body.EventIDs))
		return
	}
	appLog.Info("api events deleted", "count", len(body.EventIDs))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	events, err := s.repo.List(r.Context())
	if err != nil {
		s.storeError(w, "export events", err)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="repeatcal.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(ics.Export(events, s.loc, s.now())))
}

// storeError maps repository errors onto status codes.
func (s *Server) storeError(w http.ResponseWriter, op string, err error, kv ...any) {
	if errors.Is(err, repository.ErrNotFound) {
		appLog.Warn("api "+op+": not found", kv...)
		writeError(w, http.StatusNotFound, "event not found")
		return
	}
	appLog.Error("api "+op+" failed", err, kv...)
	writeError(w, http.StatusInternalServerError, "failed to "+op)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func validate(w http.ResponseWriter, ev model.Event) bool {
	if err := ev.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	if err := recur.Validate(ev.Date, ev.Repeat); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func resolveLocationOrLocal(name string) *time.Location {
	if name == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", name)
		return time.Local
	}
	return loc
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
