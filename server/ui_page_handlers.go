package server

import (
	"net/http"

	"github.com/jrsteele09/go-console-session/internal/utils"
	"github.com/jrsteele09/go-console-session/session"
	"github.com/jrsteele09/go-console-session/workspace"
	"github.com/rs/zerolog/log"
)

type section struct {
	Title      string
	Permission string // Required in the active workspace, empty for none
}

var (
	sectionDashboard = section{Title: "Dashboard"}
	sectionOrders    = section{Title: "Orders", Permission: workspace.PermOrdersRead}
	sectionProducts  = section{Title: "Products", Permission: workspace.PermCatalogRead}
	sectionDiscounts = section{Title: "Discounts", Permission: workspace.PermDiscountsRead}
	sectionCustomers = section{Title: "Customers", Permission: workspace.PermCustomersRead}
)

// PageData is the template model for console pages
type PageData struct {
	AppName   string
	Title     string
	Path      string
	User      string
	Workspace *session.WorkspaceSnapshot
	Forbidden bool
	Error     string
}

// PageHandler renders a console section for the active workspace
func (s *Server) PageHandler(sec section) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := s.sessions.Snapshot()
		data := PageData{
			AppName:   s.config.GetAppName(),
			Title:     sec.Title,
			Path:      r.URL.RequestURI(),
			User:      utils.Value(snap.User).Email,
			Workspace: snap.Workspace,
			Error:     r.URL.Query().Get("error"),
		}

		status := http.StatusOK
		if ws, ok := s.sessions.Workspace().Current(); ok && sec.Permission != "" && !ws.HasPermission(sec.Permission) {
			data.Forbidden = true
			status = http.StatusForbidden
		}

		w.Header().Set("Content-Type", contentTypeHTML)
		w.WriteHeader(status)
		if err := s.pages.page.Execute(w, data); err != nil {
			log.Err(err).Str("section", sec.Title).Msg("Failed to render page template")
		}
	}
}

func (s *Server) renderLoading(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", contentTypeHTML)
	w.Header().Set("Retry-After", "1")
	w.WriteHeader(http.StatusServiceUnavailable)
	if err := s.pages.loading.Execute(w, map[string]any{"AppName": s.config.GetAppName()}); err != nil {
		log.Err(err).Msg("Failed to render loading template")
	}
}
