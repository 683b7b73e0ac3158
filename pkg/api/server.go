package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/solarpro/erp/pkg/audit"
	"github.com/solarpro/erp/pkg/auth"
	"github.com/solarpro/erp/pkg/httputil"
	"github.com/solarpro/erp/pkg/middleware"
	"github.com/solarpro/erp/pkg/observability"
	"github.com/solarpro/erp/pkg/rbac"
	"github.com/solarpro/erp/pkg/settings"
	"github.com/solarpro/erp/pkg/sso"
	"github.com/solarpro/erp/pkg/storage"
)

// DefaultMaxBodyBytes caps request bodies on /api routes
const DefaultMaxBodyBytes = 1 << 20

// Dependencies wires the API server. Store, Auth and APIKey are required;
// everything else has a default.
type Dependencies struct {
	Store       storage.Store
	Auth        *auth.Service
	Accessor    *auth.Accessor
	Registry    *settings.Registry
	AuditLogger audit.Logger

	Metrics     *observability.Metrics
	OTelMetrics *observability.OTelMetrics

	// SignInLimiter throttles POST /api/auth per client IP
	SignInLimiter middleware.Limiter
	// ClientIP resolves caller addresses; the default trusts no proxy
	ClientIP *httputil.ClientIPResolver

	// SSO enables /sso/login and /sso/callback; SSORedirect is where the
	// browser lands after a successful callback.
	SSO         sso.Provider
	SSORedirect string

	APIKey       string
	CookieName   string
	MaxBodyBytes int64
	Logger       logrus.FieldLogger
}

// Server is the SolarPro HTTP API
type Server struct {
	deps    Dependencies
	router  *mux.Router
	gate    *rbac.Gate
	handler http.Handler
}

// NewServer validates deps, fills defaults and registers every route
func NewServer(deps Dependencies) (*Server, error) {
	switch {
	case deps.Store == nil:
		return nil, errors.New("api: store is required")
	case deps.Auth == nil:
		return nil, errors.New("api: auth service is required")
	case deps.APIKey == "":
		return nil, errors.New("api: API key is required")
	}

	if deps.Logger == nil {
		deps.Logger = logrus.StandardLogger()
	}
	if deps.AuditLogger == nil {
		deps.AuditLogger = audit.NoOp()
	}
	if deps.Accessor == nil {
		deps.Accessor = auth.NewAccessor(deps.Auth, deps.CookieName)
	}
	if deps.Registry == nil {
		var opts []settings.RegistryOption
		if deps.Metrics != nil {
			opts = append(opts, settings.WithMetrics(deps.Metrics))
		}
		if deps.OTelMetrics != nil {
			opts = append(opts, settings.WithOTelMetrics(deps.OTelMetrics))
		}
		deps.Registry = settings.NewRegistry(deps.Store, deps.Logger, opts...)
	}
	if deps.SignInLimiter == nil {
		deps.SignInLimiter = middleware.NewRateLimiter(middleware.SignInRateLimitConfig())
	}
	if deps.MaxBodyBytes <= 0 {
		deps.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if deps.ClientIP == nil {
		resolver, err := httputil.NewClientIPResolver(nil)
		if err != nil {
			return nil, err
		}
		deps.ClientIP = resolver
	}

	s := &Server{
		deps:   deps,
		router: mux.NewRouter(),
	}
	s.gate = rbac.NewGate(deps.Accessor).OnDeny(s.recordDenial)
	s.setupRoutes()

	s.handler = httputil.Chain(
		httputil.RequestIDMiddleware,
		deps.ClientIP.Middleware,
		httputil.RecoveryMiddleware(deps.Logger),
		httputil.LoggingMiddleware(deps.Logger),
	)(otelhttp.NewHandler(s.router, "solarpro-api"))

	return s, nil
}

func (s *Server) setupRoutes() {
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteNotFoundError(w, "Not found")
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteErrorMessage(w, http.StatusMethodNotAllowed, "Method not allowed")
	})
	if s.deps.Metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(s.deps.Metrics))
	}

	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(
		middleware.APIKey(s.deps.APIKey),
		httputil.ContentTypeMiddleware,
		httputil.MaxBytesMiddleware(s.deps.MaxBodyBytes),
		middleware.NewAuthMiddleware(s.deps.Auth, s.deps.CookieName, true, s.deps.Logger).Handler,
		audit.Middleware(s.deps.AuditLogger),
	)

	NewAuthHandlers(s.deps.Auth, s.deps.CookieName, s.signInLimit(), s.deps.Metrics, s.deps.Logger).RegisterRoutes(api)
	NewProfileHandlers(s.deps.Accessor, s.deps.Logger).RegisterRoutes(api)
	rbac.NewHandlers(s.gate).RegisterRoutes(api)
	settings.NewHandlers(s.deps.Registry, s.deps.Accessor, s.deps.Logger, s.deps.Metrics).RegisterRoutes(api)
	NewCRMHandlers(s.deps.Store, s.gate, s.deps.Logger).RegisterRoutes(api)
	NewProjectHandlers(s.deps.Store, s.gate, s.deps.Logger).RegisterRoutes(api)

	// Provider redirects carry no API key, so SSO lives outside /api.
	if s.deps.SSO != nil {
		ssoRouter := s.router.PathPrefix("/sso").Subrouter()
		ssoRouter.Use(audit.Middleware(s.deps.AuditLogger))
		sso.NewHandlers(s.deps.SSO, s.deps.Auth, s.deps.CookieName, s.deps.SSORedirect, s.deps.Logger).RegisterRoutes(ssoRouter)
	}
}

func (s *Server) signInLimit() func(http.Handler) http.Handler {
	rl := middleware.NewRateLimitMiddleware(s.deps.SignInLimiter, s.deps.Logger).
		OnLimit(func(r *http.Request, key string) {
			s.deps.Logger.WithField("key", key).Warn("Sign-in rate limit exceeded")
			if s.deps.Metrics != nil {
				s.deps.Metrics.RecordAuthEvent("auth", "rate_limited")
			}
		})
	return rl.Handler
}

// recordDenial runs for every request the role gate rejects
func (s *Server) recordDenial(r *http.Request, role rbac.Role, _ []rbac.Role) {
	route := observability.RouteLabel(r)
	if s.deps.Metrics != nil {
		s.deps.Metrics.RecordDenial(route, string(role))
	}
	if s.deps.OTelMetrics != nil {
		s.deps.OTelMetrics.RecordDenial(r.Context(), route, string(role))
	}
	if err := audit.LogDenied(r.Context(), string(role), route, "role not permitted"); err != nil {
		s.deps.Logger.WithError(err).Warn("Failed to write audit event")
	}
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Handler returns the fully wrapped handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Router returns the underlying router
func (s *Server) Router() *mux.Router {
	return s.router
}

// Gate returns the role gate guarding collaborator routes
func (s *Server) Gate() *rbac.Gate {
	return s.gate
}
