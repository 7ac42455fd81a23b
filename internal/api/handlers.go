package api

import (
	"fmt"
	"net/http"
	"path"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/ocdul/social-listening/internal/filters"
	"github.com/ocdul/social-listening/internal/session"
	"github.com/sirupsen/logrus"
)

type sessionResponse struct {
	ID          string        `json:"id"`
	Actor       string        `json:"actor"`
	AlertID     int64         `json:"alert_id"`
	SuperEditor bool          `json:"super_editor"`
	Filters     filters.State `json:"filters"`
}

type filtersResponse struct {
	filters.State
	Valid   bool   `json:"valid"`
	Message string `json:"message,omitempty"`
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	sess, err := s.sessions.Create(session.Identity{Actor: req.Actor, AlertID: req.AlertID, SuperEditor: req.SuperEditor})
	if err != nil {
		writeError(w, &requestError{message: err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponse{
		ID:          sess.ID,
		Actor:       sess.Identity.Actor,
		AlertID:     sess.Identity.AlertID,
		SuperEditor: sess.Identity.SuperEditor,
		Filters:     sess.Filters.State(),
	})
}

func (s *Server) discardSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Discard(mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func filtersBody(sess *session.Session) filtersResponse {
	valid, message := sess.Filters.Validate()
	return filtersResponse{State: sess.Filters.State(), Valid: valid, Message: message}
}

func (s *Server) getFilters(w http.ResponseWriter, r *http.Request, sess *session.Session) error {
	writeJSON(w, http.StatusOK, filtersBody(sess))
	return nil
}

func (s *Server) applyFilters(w http.ResponseWriter, r *http.Request, sess *session.Session) error {
	var req filtersRequest
	if err := s.decodeFilters(r, &req); err != nil {
		return err
	}
	sel, err := req.selection()
	if err != nil {
		return &requestError{message: err.Error()}
	}
	if err := s.dashboard.ApplyFilters(sess, sel); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, filtersBody(sess))
	return nil
}

func (s *Server) decodeFilters(r *http.Request, req *filtersRequest) error {
	if err := s.decode(r, req); err != nil {
		return err
	}
	req.normalize()
	return nil
}

func (s *Server) resetFilters(w http.ResponseWriter, r *http.Request, sess *session.Session) error {
	s.dashboard.ResetFilters(sess)
	writeJSON(w, http.StatusOK, filtersBody(sess))
	return nil
}

func (s *Server) mentions(w http.ResponseWriter, r *http.Request, sess *session.Session) error {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return &requestError{message: "limit must be an integer"}
		}
		if err := s.validate.Var(n, "gte=0,lte=10000"); err != nil {
			return &requestError{message: "limit must be between 0 and 10000"}
		}
		limit = n
	}

	mentions, err := s.dashboard.LoadMentions(r.Context(), sess, limit)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"mentions": mentions,
		"loaded":   len(mentions),
	})
	return nil
}

func (s *Server) count(w http.ResponseWriter, r *http.Request, sess *session.Session) error {
	n, err := s.dashboard.Count(r.Context(), sess)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]int64{"count": n})
	return nil
}

func (s *Server) summary(w http.ResponseWriter, r *http.Request, sess *session.Session) error {
	summary, err := s.dashboard.Summary(r.Context(), sess)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, summary)
	return nil
}

func (s *Server) lastUpdated(w http.ResponseWriter, r *http.Request) {
	alertID, err := strconv.ParseInt(mux.Vars(r)["alert"], 10, 64)
	if err != nil || s.validate.Var(alertID, "gt=0") != nil {
		writeError(w, &requestError{message: "alert must be a positive integer"})
		return
	}

	ts, err := s.dashboard.LastUpdated(r.Context(), alertID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"alert_id":     alertID,
		"last_updated": ts,
	})
}

func (s *Server) editorView(w http.ResponseWriter, r *http.Request, sess *session.Session) error {
	view, err := viewFromQuery(r.URL.Query(), sess.Filters.Location())
	if err != nil {
		return &requestError{message: err.Error()}
	}
	mentions := s.dashboard.EditorView(sess, view)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"mentions": mentions,
		"shown":    len(mentions),
	})
	return nil
}

func (s *Server) diffRelabels(w http.ResponseWriter, r *http.Request, sess *session.Session) error {
	var req gridRequest
	if err := s.decode(r, &req); err != nil {
		return err
	}
	changed, diffErr := s.dashboard.DiffRelabels(sess, req.rows())
	rejected, err := editorErrors(diffErr)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"changed":  changed,
		"pending":  sess.Queue.Len(),
		"rejected": rejected,
	})
	return nil
}

func (s *Server) diffDeletions(w http.ResponseWriter, r *http.Request, sess *session.Session) error {
	var req gridRequest
	if err := s.decode(r, &req); err != nil {
		return err
	}
	queued, diffErr := s.dashboard.DiffDeletions(sess, req.rows())
	rejected, err := editorErrors(diffErr)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"queued":   queued,
		"pending":  sess.Queue.Len(),
		"rejected": rejected,
	})
	return nil
}

func (s *Server) queue(w http.ResponseWriter, r *http.Request, sess *session.Session) error {
	pending, err := s.dashboard.QueueSnapshot(sess)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"pending": pending})
	return nil
}

func (s *Server) clearQueue(w http.ResponseWriter, r *http.Request, sess *session.Session) error {
	if err := s.dashboard.ClearQueue(sess); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (s *Server) applyQueue(w http.ResponseWriter, r *http.Request, sess *session.Session) error {
	result, err := s.dashboard.ApplyQueue(r.Context(), sess)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success_count": result.SuccessCount,
		"error_count":   result.ErrorCount,
		"outcomes":      result.Outcomes,
		"failed":        result.Failed(),
	})
	return nil
}

func (s *Server) export(w http.ResponseWriter, r *http.Request, sess *session.Session) error {
	name, err := s.dashboard.Export(r.Context(), sess)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"file":     name,
		"download": "/api/sessions/" + sess.ID + "/exports/" + path.Base(name),
	})
	return nil
}

func (s *Server) listExports(w http.ResponseWriter, r *http.Request, sess *session.Session) error {
	exports, err := s.dashboard.ListExports(r.Context(), sess)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"exports": exports})
	return nil
}

func (s *Server) downloadExport(w http.ResponseWriter, r *http.Request, sess *session.Session) error {
	name := mux.Vars(r)["name"]
	data, err := s.dashboard.DownloadExport(r.Context(), sess, name)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		logrus.Warnf("Failed to write export %s: %v", name, err)
	}
	return nil
}
