package server

// Route path constants
// The login and landing routes come from the session manager so they follow configuration
const (
	// Session routes
	RouteLogout          = "/logout"
	RouteSwitchWorkspace = "/workspaces/switch"

	// API routes
	RouteAPISession = "/api/session"
	RouteAPISignal  = "/api/session/signal"
	RouteAPIBackend = "/api/backend/{path...}"
	RouteHealth     = "/healthz"

	// Console pages
	RouteRoot      = "/{$}"
	RouteDashboard = "/dashboard"
	RouteOrders    = "/orders/"
	RouteProducts  = "/products/"
	RouteDiscounts = "/discounts/"
	RouteCustomers = "/customers/"
)
