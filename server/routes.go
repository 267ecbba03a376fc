package server

import (
	"net/http"
)

func (s *Server) initRoutes() {
	loginRoute := s.sessions.LoginRoute()

	// Public
	s.RegisterRouteHandler("GET "+loginRoute, ChainMiddleware(s.LoginPageHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("POST "+loginRoute, ChainMiddleware(s.LoginSubmissionHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("GET "+RouteHealth, ChainMiddleware(s.HealthHandler(), s.APIMiddleware()...))

	// Session lifecycle
	s.RegisterRouteHandler("POST "+RouteLogout, ChainMiddleware(s.LogoutHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("POST "+RouteSwitchWorkspace, ChainMiddleware(s.SwitchWorkspaceHandler(), s.HTMLMiddleWare(s.RequireAPISession())...))

	// Session API used by the console pages
	s.RegisterRouteHandler("GET "+RouteAPISession, ChainMiddleware(s.SessionSnapshotHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAPISignal, ChainMiddleware(s.SignalHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler(RouteAPIBackend, ChainMiddleware(s.BackendProxyHandler(), s.APIMiddleware(s.RequireAPISession())...))

	// Protected console pages
	s.RegisterRouteHandler("GET "+RouteRoot, ChainMiddleware(s.RootRedirectHandler(), s.HTMLMiddleWare(s.RequireSession())...))
	s.RegisterRouteHandler("GET "+RouteDashboard, ChainMiddleware(s.PageHandler(sectionDashboard), s.HTMLMiddleWare(s.RequireSession())...))
	s.RegisterRouteHandler("GET "+RouteOrders, ChainMiddleware(s.PageHandler(sectionOrders), s.HTMLMiddleWare(s.RequireSession())...))
	s.RegisterRouteHandler("GET "+RouteProducts, ChainMiddleware(s.PageHandler(sectionProducts), s.HTMLMiddleWare(s.RequireSession())...))
	s.RegisterRouteHandler("GET "+RouteDiscounts, ChainMiddleware(s.PageHandler(sectionDiscounts), s.HTMLMiddleWare(s.RequireSession())...))
	s.RegisterRouteHandler("GET "+RouteCustomers, ChainMiddleware(s.PageHandler(sectionCustomers), s.HTMLMiddleWare(s.RequireSession())...))
}

// RootRedirectHandler sends "/" to the landing route
func (s *Server) RootRedirectHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, s.sessions.LandingRoute(), http.StatusSeeOther)
	}
}
