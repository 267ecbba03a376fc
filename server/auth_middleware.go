package server

import (
	"net/http"

	"github.com/jrsteele09/go-console-session/refresh"
	"github.com/jrsteele09/go-console-session/session"
)

// RequireSession guards console pages. It shows the loading page until start-up has
// finished, follows any navigation the session layer queued (such as the forced
// logout redirect), records the page as the current location and then asks the
// session guard. Every page served counts as operator activity.
func (s *Server) RequireSession() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if !s.sessions.Initializer().IsReady() {
				s.renderLoading(w, r)
				return
			}

			if target, ok := s.navigation.takePending(); ok {
				redirectSuccess(w, r, target)
				return
			}

			path := r.URL.RequestURI()
			s.navigation.visit(path)

			decision := s.sessions.Guard(r.Context(), true, path)
			switch decision.Outcome {
			case session.Pending:
				s.renderLoading(w, r)
				return
			case session.Redirect:
				redirectSuccess(w, r, decision.Location)
				return
			}

			s.sessions.Scheduler().Notify(refresh.SignalActivity)
			next(w, r)
		}
	}
}

// RequireAPISession rejects requests without an authenticated session with a JSON 401.
// Nothing is captured for later: API calls are not places to return to.
func (s *Server) RequireAPISession() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if !s.sessions.Initializer().IsReady() {
				w.Header().Set("Retry-After", "1")
				writeJSONError(w, "not_ready", "session is still initialising", http.StatusServiceUnavailable)
				return
			}
			if !s.sessions.Credentials().IsAuthenticated() {
				writeJSONError(w, "not_authenticated", "login required", http.StatusUnauthorized)
				return
			}
			s.sessions.Scheduler().Notify(refresh.SignalActivity)
			next(w, r)
		}
	}
}
