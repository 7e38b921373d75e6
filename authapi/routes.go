package authapi

// Backend route paths
const (
	RouteAuthGoogle  = "/auth/google"
	RouteAuthLogin   = "/auth/login"
	RouteAuthLogout  = "/auth/logout"
	RouteAuthRefresh = "/auth/refresh"
	RouteAuthSession = "/auth/session"
	RouteAuthUser    = "/auth/user"
)
