package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/ocdul/social-listening/internal/dashboard"
	"github.com/ocdul/social-listening/internal/filters"
	"github.com/ocdul/social-listening/internal/gateway"
	"github.com/ocdul/social-listening/internal/session"
	"github.com/ocdul/social-listening/internal/storage"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Pinger checks that the relational store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server exposes the dashboard over HTTP. Identity arrives from the upstream
// auth layer in the session creation body; nothing here authenticates.
type Server struct {
	sessions  *session.Manager
	dashboard *dashboard.Service
	store     Pinger
	validate  *validator.Validate
}

// NewServer creates the HTTP layer. store may be nil, in which case the
// health check does not query the database.
func NewServer(sessions *session.Manager, dash *dashboard.Service, store Pinger) *Server {
	return &Server{
		sessions:  sessions,
		dashboard: dash,
		store:     store,
		validate:  validator.New(),
	}
}

// Router builds the route table
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(metricsMiddleware)

	router.HandleFunc("/health", s.health).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	router.HandleFunc("/stats", s.stats).Methods("GET")

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/sessions", s.createSession).Methods("POST")
	api.HandleFunc("/sessions/{id}", s.discardSession).Methods("DELETE")
	api.HandleFunc("/sessions/{id}/filters", s.withSession(s.getFilters)).Methods("GET")
	api.HandleFunc("/sessions/{id}/filters", s.withSession(s.applyFilters)).Methods("PUT")
	api.HandleFunc("/sessions/{id}/filters/reset", s.withSession(s.resetFilters)).Methods("POST")
	api.HandleFunc("/sessions/{id}/mentions", s.withSession(s.mentions)).Methods("GET")
	api.HandleFunc("/sessions/{id}/count", s.withSession(s.count)).Methods("GET")
	api.HandleFunc("/sessions/{id}/summary", s.withSession(s.summary)).Methods("GET")
	api.HandleFunc("/sessions/{id}/editor/view", s.withSession(s.editorView)).Methods("GET")
	api.HandleFunc("/sessions/{id}/editor/diff", s.withSession(s.diffRelabels)).Methods("POST")
	api.HandleFunc("/sessions/{id}/editor/deletions", s.withSession(s.diffDeletions)).Methods("POST")
	api.HandleFunc("/sessions/{id}/editor/queue", s.withSession(s.queue)).Methods("GET")
	api.HandleFunc("/sessions/{id}/editor/queue", s.withSession(s.clearQueue)).Methods("DELETE")
	api.HandleFunc("/sessions/{id}/editor/apply", s.withSession(s.applyQueue)).Methods("POST")
	api.HandleFunc("/sessions/{id}/export", s.withSession(s.export)).Methods("POST")
	api.HandleFunc("/sessions/{id}/exports", s.withSession(s.listExports)).Methods("GET")
	api.HandleFunc("/sessions/{id}/exports/{name}", s.withSession(s.downloadExport)).Methods("GET")
	api.HandleFunc("/alerts/{alert}/last-updated", s.lastUpdated).Methods("GET")

	return router
}

type sessionHandler func(w http.ResponseWriter, r *http.Request, sess *session.Session) error

// withSession resolves the session of the request and runs h while holding it
func (s *Server) withSession(h sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.sessions.Get(mux.Vars(r)["id"])
		if err != nil {
			writeError(w, err)
			return
		}
		if err := sess.Run(func(sess *session.Session) error { return h(w, r, sess) }); err != nil {
			writeError(w, err)
		}
	}
}

func (s *Server) decode(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return &requestError{message: "invalid request payload"}
	}
	if err := s.validate.Struct(v); err != nil {
		return &requestError{message: validationMessage(err)}
	}
	return nil
}

type requestError struct {
	message string
}

func (e *requestError) Error() string { return e.message }

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.Errorf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var reqErr *requestError
	var valErr *filters.ValidationError

	switch {
	case errors.As(err, &reqErr), errors.As(err, &valErr), errors.Is(err, dashboard.ErrInvalidExportName):
		status = http.StatusBadRequest
	case errors.Is(err, session.ErrNotFound), errors.Is(err, storage.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, filters.ErrScopeNotApplied):
		status = http.StatusConflict
	case errors.Is(err, dashboard.ErrEditorAccessDenied):
		status = http.StatusForbidden
	case errors.Is(err, dashboard.ErrExportUnavailable):
		status = http.StatusNotImplemented
	case gateway.IsDataUnavailable(err):
		status = http.StatusServiceUnavailable
	}

	if status >= http.StatusInternalServerError {
		logrus.Errorf("Request failed: %v", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// errorMessages lists the individual messages of a possibly joined error
func errorMessages(err error) []string {
	if err == nil {
		return []string{}
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []string
		for _, e := range joined.Unwrap() {
			out = append(out, e.Error())
		}
		return out
	}
	return []string{err.Error()}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	body := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	}
	if s.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := s.store.Ping(ctx); err != nil {
			body["status"] = "degraded"
			body["database"] = err.Error()
			writeJSON(w, http.StatusServiceUnavailable, body)
			return
		}
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sessions":  s.sessions.Len(),
		"dashboard": s.dashboard.Snapshot(),
	})
}

// editorErrors splits a diff error into the access error, returned as is,
// and per-row rejections reported to the client
func editorErrors(err error) ([]string, error) {
	if errors.Is(err, dashboard.ErrEditorAccessDenied) {
		return nil, err
	}
	return errorMessages(err), nil
}
