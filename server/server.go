package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-console-session/authapi"
	"github.com/jrsteele09/go-console-session/credentials"
	"github.com/jrsteele09/go-console-session/internal/config"
	"github.com/jrsteele09/go-console-session/session"
	"github.com/rs/zerolog/log"
)

type Server struct {
	env        string // Environment (e.g., "DEV", "PROD")
	mux        *http.ServeMux
	routes     []string
	config     config.Config
	sessions   *session.Manager
	navigation *Navigation
	backend    *http.Client // Sends the operator's token and workspace to the admin API
	apiBaseURL string
	pages      *pageTemplates
}

// New builds the console server. navigation must be the same value handed to the
// session manager as its Navigator and Locator.
func New(config config.Config, sessions *session.Manager, navigation *Navigation) (*Server, error) {
	if sessions == nil || navigation == nil {
		return nil, fmt.Errorf("[Server New] session manager and navigation are required")
	}

	pages, err := parsePageTemplates()
	if err != nil {
		return nil, fmt.Errorf("[Server New] failed to parse templates: %w", err)
	}

	s := &Server{
		env:        config.GetEnv(),
		mux:        http.NewServeMux(),
		config:     config,
		sessions:   sessions,
		navigation: navigation,
		apiBaseURL: config.GetAPIBaseURL(),
		pages:      pages,
	}
	s.backend = authapi.NewAuthorizedClient(
		sessions.Credentials(),
		sessions.Workspace().ID,
		credentials.HeaderWorkspaceID,
	)

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	log.Debug().Msgf("[%-19s] %s", displayMethod, path)
}
