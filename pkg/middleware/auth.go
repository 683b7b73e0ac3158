package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/solarpro/erp/pkg/auth"
	"github.com/solarpro/erp/pkg/httputil"
)

// APIKeyHeader carries the store's public API key on every /api request
const APIKeyHeader = "apikey"

// Authenticator validates a session token
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*auth.Identity, error)
}

// AuthMiddleware resolves the caller's identity from the session token
type AuthMiddleware struct {
	authenticator Authenticator
	cookieName    string
	optional      bool // If true, allow requests without a valid session
	logger        logrus.FieldLogger
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(authenticator Authenticator, cookieName string, optional bool, logger logrus.FieldLogger) *AuthMiddleware {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &AuthMiddleware{
		authenticator: authenticator,
		cookieName:    cookieName,
		optional:      optional,
		logger:        logger,
	}
}

// Handler wraps an HTTP handler with authentication
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := auth.TokenFromRequest(r, m.cookieName)
		if !ok {
			if m.optional {
				next.ServeHTTP(w, r)
				return
			}
			httputil.WriteUnauthorized(w, "missing session token")
			return
		}

		ident, err := m.authenticator.Authenticate(r.Context(), token)
		if err != nil {
			m.logger.WithError(err).Debug("Session token rejected")
			if m.optional {
				next.ServeHTTP(w, r)
				return
			}
			httputil.WriteUnauthorized(w, "invalid or expired token")
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), ident)))
	})
}

// RequireAuth rejects requests that carry no identity
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.IdentityFromContext(r.Context()); !ok {
			httputil.WriteUnauthorized(w, auth.ErrNotAuthenticated.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}

// APIKey rejects requests whose apikey header does not match key
func APIKey(key string) func(http.Handler) http.Handler {
	expected := []byte(key)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := []byte(r.Header.Get(APIKeyHeader))
			if len(got) == 0 || subtle.ConstantTimeCompare(got, expected) != 1 {
				httputil.WriteUnauthorized(w, "Invalid API key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
