package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/arklim/api-starter/internal/core/domain"
	"github.com/arklim/api-starter/internal/infra/config"
	"github.com/arklim/api-starter/internal/transport/http/handlers"
	"github.com/arklim/api-starter/internal/transport/http/middleware"
	"github.com/arklim/api-starter/internal/usecase"
)

// Route declares one endpoint: method, path, handler, and the gate
// applied ahead of it. The whole API surface is a single table built at
// startup, so every path and its protections are reviewable in one place.
type Route struct {
	Method      string
	Path        string
	Handler     gin.HandlerFunc
	Public      bool
	Permissions []usecase.Requirement
	RequireAll  bool
	RateLimit   *middleware.RateLimitRule
}

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Auth        *usecase.AuthService
	Access      *usecase.AccessService
	Users       *usecase.UserService
	Roles       *usecase.RoleService
	Permissions *usecase.PermissionService
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config      *config.AppConfig
	Logger      *zap.Logger
	RateLimiter *middleware.RateLimiter
	Services    ServiceSet
	Database    DatabaseChecker
	Cache       CacheChecker
}

// DatabaseChecker exposes readiness behaviour for database connections.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker exposes readiness behaviour for cache backends.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

// Register configures the Gin engine with middleware and the route table.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config != nil && deps.Config.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	if deps.Config != nil && len(deps.Config.App.CORSAllowedOrigins) > 0 {
		r.Use(middleware.CORS(deps.Config.App.CORSAllowedOrigins))
	}
	r.Use(middleware.Logger(deps.Logger))

	if metrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{}); err == nil {
		r.Use(metrics.Handler())
	} else if deps.Logger != nil {
		deps.Logger.Warn("http metrics disabled", zap.Error(err))
	}

	registerHealth(r, deps)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authGate := middleware.RequireAuth(deps.Services.Auth)
	for _, route := range buildTable(deps) {
		r.Handle(route.Method, route.Path, route.chain(deps, authGate)...)
	}

	handlers.RegisterSwagger(r)

	return r
}

// buildTable lays out the entire API surface.
func buildTable(deps Dependencies) []Route {
	auth := handlers.NewAuthHandler(deps.Services.Auth)
	users := handlers.NewUserHandler(deps.Services.Users)
	roles := handlers.NewRoleHandler(deps.Services.Roles)
	permissions := handlers.NewPermissionHandler(deps.Services.Permissions)

	loginLimit := rateRule(deps, "auth_login_ip", func(s config.RateLimitSettings) int { return s.LoginMaxAttempts })
	registerLimit := rateRule(deps, "auth_register_ip", func(s config.RateLimitSettings) int { return s.RegisterMaxAttempts })
	refreshLimit := rateRule(deps, "auth_refresh_ip", func(s config.RateLimitSettings) int { return s.RefreshMaxAttempts })
	userCreateLimit := rateRule(deps, "user_create_ip", func(s config.RateLimitSettings) int { return s.RegisterMaxAttempts })

	return []Route{
		{Method: http.MethodPost, Path: "/api/v1/auth/register", Handler: auth.Register, Public: true, RateLimit: registerLimit},
		{Method: http.MethodPost, Path: "/api/v1/auth/login", Handler: auth.Login, Public: true, RateLimit: loginLimit},
		{Method: http.MethodPost, Path: "/api/v1/auth/refresh", Handler: auth.Refresh, Public: true, RateLimit: refreshLimit},
		{Method: http.MethodPost, Path: "/api/v1/auth/logout", Handler: auth.Logout},
		{Method: http.MethodPost, Path: "/api/v1/auth/me", Handler: auth.Me},
		{Method: http.MethodGet, Path: "/api/v1/auth/sessions", Handler: auth.Sessions},

		{Method: http.MethodGet, Path: "/api/v1/users", Handler: users.List, Permissions: requires(domain.ResourceUser, domain.ActionRead), RequireAll: true},
		{Method: http.MethodGet, Path: "/api/v1/users/:id", Handler: users.Get, Permissions: requires(domain.ResourceUser, domain.ActionRead), RequireAll: true},
		{Method: http.MethodPost, Path: "/api/v1/users", Handler: users.Create, Permissions: requires(domain.ResourceUser, domain.ActionCreate), RequireAll: true, RateLimit: userCreateLimit},
		{Method: http.MethodPut, Path: "/api/v1/users/:id", Handler: users.Update, Permissions: requires(domain.ResourceUser, domain.ActionUpdate), RequireAll: true},
		{Method: http.MethodDelete, Path: "/api/v1/users/:id", Handler: users.Delete, Permissions: requires(domain.ResourceUser, domain.ActionDelete), RequireAll: true},

		{Method: http.MethodGet, Path: "/api/v1/permissions", Handler: permissions.List, Permissions: requires(domain.ResourcePermission, domain.ActionRead), RequireAll: true},
		{Method: http.MethodGet, Path: "/api/v1/permissions/:id", Handler: permissions.Get, Permissions: requires(domain.ResourcePermission, domain.ActionRead), RequireAll: true},
		{Method: http.MethodPost, Path: "/api/v1/permissions", Handler: permissions.Create, Permissions: requires(domain.ResourcePermission, domain.ActionCreate), RequireAll: true},
		{Method: http.MethodPut, Path: "/api/v1/permissions/:id", Handler: permissions.Update, Permissions: requires(domain.ResourcePermission, domain.ActionUpdate), RequireAll: true},
		{Method: http.MethodDelete, Path: "/api/v1/permissions/:id", Handler: permissions.Delete, Permissions: requires(domain.ResourcePermission, domain.ActionDelete), RequireAll: true},

		{Method: http.MethodGet, Path: "/api/v1/roles", Handler: roles.List, Permissions: requires(domain.ResourcePermission, domain.ActionRead), RequireAll: true},
		{Method: http.MethodGet, Path: "/api/v1/roles/:id", Handler: roles.Get, Permissions: requires(domain.ResourcePermission, domain.ActionRead), RequireAll: true},
		{Method: http.MethodPost, Path: "/api/v1/roles", Handler: roles.Create, Permissions: requires(domain.ResourcePermission, domain.ActionCreate), RequireAll: true},
		{Method: http.MethodPut, Path: "/api/v1/roles/:id", Handler: roles.Update, Permissions: requires(domain.ResourcePermission, domain.ActionUpdate), RequireAll: true},
		{Method: http.MethodDelete, Path: "/api/v1/roles/:id", Handler: roles.Delete, Permissions: requires(domain.ResourcePermission, domain.ActionDelete), RequireAll: true},
		{Method: http.MethodPost, Path: "/api/v1/roles/:id/permissions", Handler: roles.Grant, Permissions: requires(domain.ResourcePermission, domain.ActionAssign), RequireAll: true},
		{Method: http.MethodDelete, Path: "/api/v1/roles/:id/permissions/:permissionId", Handler: roles.Revoke, Permissions: requires(domain.ResourcePermission, domain.ActionAssign), RequireAll: true},
	}
}

// chain assembles the middleware stack ahead of the route handler:
// rate limit, then authentication, then the permission gate.
func (rt Route) chain(deps Dependencies, authGate gin.HandlerFunc) []gin.HandlerFunc {
	stack := make([]gin.HandlerFunc, 0, 4)

	if rt.RateLimit != nil && deps.RateLimiter != nil {
		stack = append(stack, deps.RateLimiter.RateLimit(*rt.RateLimit))
	}

	if !rt.Public {
		stack = append(stack, authGate)
		if len(rt.Permissions) > 0 {
			stack = append(stack, middleware.RequirePermissions(deps.Services.Access, rt.RequireAll, rt.Permissions...))
		}
	}

	return append(stack, rt.Handler)
}

func registerHealth(r *gin.Engine, deps Dependencies) {
	options := make([]handlers.HealthOption, 0, 2)

	if deps.Database != nil {
		options = append(options, handlers.WithReadinessCheck("database", deps.Database.Ping))
	}
	if deps.Cache != nil {
		options = append(options, handlers.WithReadinessCheck("redis", deps.Cache.HealthCheck))
	}

	health := handlers.NewHealthHandler(options...)
	r.GET("/healthz", health.Status)
	r.GET("/readyz", health.Readiness)
}

func requires(resource, action string) []usecase.Requirement {
	return []usecase.Requirement{{Resource: resource, Action: action}}
}

// rateRule builds a client-IP window rule, or nil when the configured
// limit disables it.
func rateRule(deps Dependencies, name string, limitOf func(config.RateLimitSettings) int) *middleware.RateLimitRule {
	if deps.RateLimiter == nil || deps.Config == nil {
		return nil
	}

	limit := limitOf(deps.Config.RateLimit)
	if limit <= 0 {
		return nil
	}

	window := deps.Config.RateLimit.WindowDuration
	if window <= 0 {
		window = time.Minute
	}

	return &middleware.RateLimitRule{
		Name:       name,
		Limit:      limit,
		Window:     window,
		Identifier: middleware.ClientIPIdentifier(),
	}
}
