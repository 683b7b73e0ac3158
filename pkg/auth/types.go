package auth

import (
	"time"

	"github.com/solarpro/erp/pkg/rbac"
	"github.com/solarpro/erp/pkg/storage"
)

const (
	// UsersCollection holds login identities
	UsersCollection = "auth_users"
	// ProfilesCollection holds one profile per identity
	ProfilesCollection = "user_profiles"

	// DefaultLanguage is assigned to new profiles
	DefaultLanguage = "en"
	// MinPasswordLength is the shortest password SignUp accepts
	MinPasswordLength = 6
)

// Identity is an authenticated caller, derived from a validated session token
type Identity struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	TokenID   string    `json:"-"`
	ExpiresAt time.Time `json:"-"`
}

// User is the public view of an auth_users row
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// Session is an issued access token
type Session struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// AuthResult is returned by SignUp and SignIn
type AuthResult struct {
	User    User     `json:"user"`
	Session *Session `json:"session"`
}

// SignUpRequest carries the fields accepted on registration. It has no role;
// the role comes from the caller of Register.
type SignUpRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	FullName   string `json:"fullName"`
	Phone      string `json:"phone,omitempty"`
	Department string `json:"department,omitempty"`
}

// ExternalIdentity is a caller verified by an external identity provider
type ExternalIdentity struct {
	Email    string
	FullName string
}

// UserProfile is the user_profiles row linked to an identity
type UserProfile struct {
	ID         string    `json:"id"`
	Role       rbac.Role `json:"role"`
	FullName   string    `json:"full_name"`
	Phone      string    `json:"phone,omitempty"`
	Department string    `json:"department,omitempty"`
	Language   string    `json:"language"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// profileFromRecord maps a stored row. An unknown role is kept as-is so
// callers can tell "no access" from "no profile".
func profileFromRecord(rec storage.Record) *UserProfile {
	p := &UserProfile{
		ID:         rec.String("id"),
		Role:       rbac.Role(rec.String("role")),
		FullName:   rec.String("full_name"),
		Phone:      rec.String("phone"),
		Department: rec.String("department"),
		Language:   rec.String("language"),
	}
	if t, ok := rec["created_at"].(time.Time); ok {
		p.CreatedAt = t
	}
	if t, ok := rec["updated_at"].(time.Time); ok {
		p.UpdatedAt = t
	}
	return p
}

func userFromRecord(rec storage.Record) User {
	u := User{ID: rec.String("id"), Email: rec.String("email")}
	if t, ok := rec["created_at"].(time.Time); ok {
		u.CreatedAt = t
	}
	return u
}
