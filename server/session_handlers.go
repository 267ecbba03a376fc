package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-console-session/intent"
	apperrors "github.com/jrsteele09/go-console-session/internal/errors"
	"github.com/jrsteele09/go-console-session/refresh"
	"github.com/rs/zerolog/log"
)

type signalRequest struct {
	Signal string `json:"signal"`
}

// SignalHandler receives page visibility and activity signals (POST /api/session/signal).
// The body is JSON {"signal": "visible"|"activity"} or the same as a form field.
func (s *Server) SignalHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req signalRequest
		if strings.HasPrefix(r.Header.Get("Content-Type"), contentTypeJSON) {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeJSONError(w, "invalid_request", "Failed to parse signal", http.StatusBadRequest)
				return
			}
		} else {
			if err := r.ParseForm(); err != nil {
				writeJSONError(w, "invalid_request", "Failed to parse form data", http.StatusBadRequest)
				return
			}
			req.Signal = r.FormValue("signal")
		}

		switch req.Signal {
		case "visible":
			s.sessions.Scheduler().Notify(refresh.SignalVisible)
		case "activity":
			s.sessions.Scheduler().Notify(refresh.SignalActivity)
		default:
			writeJSONError(w, "invalid_request", "signal must be visible or activity", http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// SessionSnapshotHandler returns the current session state as JSON (GET /api/session)
func (s *Server) SessionSnapshotHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.sessions.Snapshot())
	}
}

// HealthHandler reports liveness and the start-up phase
func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "ok",
			"phase":  s.sessions.Initializer().Phase().String(),
		})
	}
}

// SwitchWorkspaceHandler changes the active workspace and returns to the page the form
// was posted from (POST /workspaces/switch).
func (s *Server) SwitchWorkspaceHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}

		returnTo := intent.SanitizePath(r.FormValue("return_to"), s.sessions.LandingRoute())
		workspaceID := strings.TrimSpace(r.FormValue("workspace_id"))
		if workspaceID == "" {
			redirectWithError(w, r, returnTo, "Workspace ID is required")
			return
		}

		if _, err := s.sessions.SwitchWorkspace(r.Context(), workspaceID); err != nil {
			msg := "Could not switch workspace"
			if apperrors.Is(err, apperrors.ErrStaleResponse) {
				msg = "Another workspace switch took over"
			}
			log.Warn().Err(err).Str("workspace_id", workspaceID).Msg("Workspace switch failed")
			redirectWithError(w, r, returnTo, msg)
			return
		}
		redirectSuccess(w, r, returnTo)
	}
}
