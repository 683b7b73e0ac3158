package rbac

import (
	"context"
	"net/http"

	"github.com/solarpro/erp/pkg/contextkeys"
	"github.com/solarpro/erp/pkg/httputil"
)

// RoleResolver resolves the caller's role from the request's own credentials.
// It returns ("", false) whenever the role cannot be determined.
type RoleResolver interface {
	RoleFromRequest(r *http.Request) (Role, bool)
}

// RoleResolverFunc adapts a function to RoleResolver.
type RoleResolverFunc func(r *http.Request) (Role, bool)

// RoleFromRequest calls f(r).
func (f RoleResolverFunc) RoleFromRequest(r *http.Request) (Role, bool) {
	return f(r)
}

// DenyFunc is called every time the gate rejects a request.
type DenyFunc func(r *http.Request, role Role, required []Role)

// Gate enforces role sets on HTTP routes.
type Gate struct {
	resolver RoleResolver
	onDeny   []DenyFunc
}

// NewGate creates a gate that resolves roles through resolver.
func NewGate(resolver RoleResolver) *Gate {
	return &Gate{resolver: resolver}
}

// OnDeny registers a callback for rejected requests.
func (g *Gate) OnDeny(fn DenyFunc) *Gate {
	g.onDeny = append(g.onDeny, fn)
	return g
}

// Resolve returns the caller's role, or "" when it cannot be determined.
func (g *Gate) Resolve(r *http.Request) Role {
	role, ok := g.resolver.RoleFromRequest(r)
	if !ok {
		return ""
	}
	return role
}

// Require returns middleware that rejects callers whose role is not in roles
// with 403 {"error":"Forbidden"}. Allowed requests carry the role in their context.
func (g *Gate) Require(roles ...Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := g.Resolve(r)
			if !HasRole(role, roles...) {
				for _, fn := range g.onDeny {
					fn(r, role, roles)
				}
				httputil.WriteForbidden(w, "Forbidden")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithRole(r.Context(), role)))
		})
	}
}

// RequireRoles is shorthand for NewGate(resolver).Require(roles...).
func RequireRoles(resolver RoleResolver, roles ...Role) func(http.Handler) http.Handler {
	return NewGate(resolver).Require(roles...)
}

// WithRole stores role in ctx.
func WithRole(ctx context.Context, role Role) context.Context {
	return context.WithValue(ctx, contextkeys.RoleKey, role)
}

// RoleFromContext returns the role stored by Require, or "" when absent.
func RoleFromContext(ctx context.Context) Role {
	role, _ := ctx.Value(contextkeys.RoleKey).(Role)
	return role
}
