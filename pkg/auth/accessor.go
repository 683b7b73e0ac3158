package auth

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/solarpro/erp/pkg/contextkeys"
	"github.com/solarpro/erp/pkg/httputil"
	"github.com/solarpro/erp/pkg/rbac"
	"github.com/solarpro/erp/pkg/storage"
)

// updatableProfileFields are the profile columns a user may change on their own profile
var updatableProfileFields = map[string]bool{
	"full_name":  true,
	"phone":      true,
	"department": true,
	"language":   true,
}

// Accessor answers who the caller is and what role they hold.
// Every call reads the store afresh; nothing is cached between requests.
type Accessor struct {
	service    *Service
	cookieName string
	now        func() time.Time
}

// NewAccessor creates an accessor. cookieName may be empty to accept bearer tokens only.
func NewAccessor(service *Service, cookieName string) *Accessor {
	return &Accessor{
		service:    service,
		cookieName: cookieName,
		now:        time.Now,
	}
}

// CurrentUser returns the identity established for this request
func (a *Accessor) CurrentUser(ctx context.Context) (*Identity, bool) {
	return IdentityFromContext(ctx)
}

// CurrentUserProfile returns the caller's profile, or nil when there is no identity
func (a *Accessor) CurrentUserProfile(ctx context.Context) (*UserProfile, error) {
	ident, ok := IdentityFromContext(ctx)
	if !ok {
		return nil, nil
	}
	return a.service.lookupProfile(ctx, ident.ID)
}

// RoleFromRequest resolves the role from the request's own credentials.
// Any failure yields ("", false), which callers treat as deny.
func (a *Accessor) RoleFromRequest(r *http.Request) (rbac.Role, bool) {
	token, ok := TokenFromRequest(r, a.cookieName)
	if !ok {
		return "", false
	}
	ident, err := a.service.Authenticate(r.Context(), token)
	if err != nil {
		return "", false
	}
	profile, err := a.service.lookupProfile(r.Context(), ident.ID)
	if err != nil {
		return "", false
	}
	role, err := rbac.ParseRole(string(profile.Role))
	if err != nil {
		return "", false
	}
	return role, true
}

// UpdateUserProfile applies patch to the caller's own profile
func (a *Accessor) UpdateUserProfile(ctx context.Context, patch map[string]any) (*UserProfile, error) {
	ident, ok := IdentityFromContext(ctx)
	if !ok {
		return nil, ErrNotAuthenticated
	}

	update := make(storage.Record, len(patch)+1)
	for field, value := range patch {
		if !updatableProfileFields[field] {
			return nil, &InvalidProfileFieldError{Field: field}
		}
		switch v := value.(type) {
		case string:
			update[field] = v
		case nil:
			if field == "full_name" || field == "language" {
				return nil, &InvalidProfileFieldError{Field: field}
			}
			update[field] = nil
		default:
			return nil, &InvalidProfileFieldError{Field: field}
		}
	}
	update["updated_at"] = a.now().UTC()

	rows, err := a.service.store.Update(ctx, ProfilesCollection, []storage.Filter{storage.Eq("id", ident.ID)}, update)
	if err != nil {
		return nil, &ProfileLookupError{UserID: ident.ID, Err: err}
	}
	if len(rows) == 0 {
		return nil, &ProfileLookupError{UserID: ident.ID, Err: fmt.Errorf("update profile: %w", storage.ErrNotFound)}
	}
	return profileFromRecord(rows[0]), nil
}

// TokenFromRequest extracts a session token from the Authorization header,
// falling back to the session cookie
func TokenFromRequest(r *http.Request, cookieName string) (string, bool) {
	if token, ok := httputil.BearerToken(r); ok {
		return token, true
	}
	if cookieName == "" {
		return "", false
	}
	cookie, err := r.Cookie(cookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

// WithIdentity stores the identity in the context
func WithIdentity(ctx context.Context, ident *Identity) context.Context {
	ctx = context.WithValue(ctx, contextkeys.IdentityKey, ident)
	return contextkeys.WithUserID(ctx, ident.ID)
}

// IdentityFromContext returns the identity set by WithIdentity
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	ident, ok := ctx.Value(contextkeys.IdentityKey).(*Identity)
	return ident, ok && ident != nil
}
