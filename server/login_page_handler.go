package server

import (
	"net/http"

	apperrors "github.com/jrsteele09/go-console-session/internal/errors"
	"github.com/rs/zerolog/log"
)

// LoginPageData contains data for rendering the login page
type LoginPageData struct {
	AppName string
	Action  string
	Error   string
	Expired bool   // Set when the previous session ended because it could not be refreshed
	Email   string // Preserve email on error
}

// LoginPageHandler displays the login page (GET /login)
func (s *Server) LoginPageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.sessions.Credentials().IsAuthenticated() {
			http.Redirect(w, r, s.sessions.LandingRoute(), http.StatusSeeOther)
			return
		}

		q := r.URL.Query()
		data := LoginPageData{
			AppName: s.config.GetAppName(),
			Action:  s.sessions.LoginRoute(),
			Error:   q.Get("error"),
			Expired: q.Get("expired") == "true",
			Email:   q.Get("email"),
		}

		w.Header().Set("Content-Type", contentTypeHTML)
		if err := s.pages.login.Execute(w, data); err != nil {
			log.Err(err).Msg("Failed to render login template")
			http.Error(w, "Failed to render login page", http.StatusInternalServerError)
		}
	}
}

// LoginSubmissionHandler processes the login form. On success the operator goes back to
// where they were sent away from, in the workspace they were using.
func (s *Server) LoginSubmissionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}

		email := r.FormValue("email")
		password := r.FormValue("password")
		rememberMe := r.FormValue("remember_me") == "true"

		if email == "" || password == "" {
			s.renderLoginError(w, r, "Email and password are required", email)
			return
		}

		if err := s.sessions.Login(r.Context(), email, password, rememberMe); err != nil {
			if apperrors.Is(err, apperrors.ErrInvalidCredentials) {
				s.renderLoginError(w, r, "Invalid email or password", email)
				return
			}
			log.Err(err).Str("email", email).Msg("Login failed")
			s.renderLoginError(w, r, "Sign in is unavailable, please try again", email)
			return
		}

		// A redirect queued by the previous session no longer applies
		s.navigation.takePending()

		target, err := s.sessions.CompleteLogin(r.Context())
		if err != nil {
			log.Err(err).Msg("Failed to complete login")
			target = s.sessions.LandingRoute()
		}
		redirectSuccess(w, r, target)
	}
}

// LogoutHandler ends the session and returns to the login page
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.sessions.Logout(r.Context()); err != nil {
			log.Err(err).Msg("Logout failed")
		}
		s.navigation.takePending()
		redirectSuccess(w, r, s.sessions.LoginRoute())
	}
}

// renderLoginError redirects to login page with an error message
func (s *Server) renderLoginError(w http.ResponseWriter, r *http.Request, errorMsg, email string) {
	redirectURL := withQueryParam(s.sessions.LoginRoute(), "error", errorMsg)
	if email != "" {
		redirectURL = withQueryParam(redirectURL, "email", email)
	}
	redirectSuccess(w, r, redirectURL)
}
