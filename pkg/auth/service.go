package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/solarpro/erp/pkg/rbac"
	"github.com/solarpro/erp/pkg/storage"
)

// Service is the authentication and session primitive over the store
type Service struct {
	store       storage.Store
	tokens      *TokenIssuer
	revocations RevocationList
	logger      logrus.FieldLogger
	cost        int
}

// ServiceOption configures a Service
type ServiceOption func(*Service)

// WithRevocations sets the revocation list. Defaults to a LocalRevocations.
func WithRevocations(r RevocationList) ServiceOption {
	return func(s *Service) {
		s.revocations = r
	}
}

// WithBcryptCost overrides the password hashing cost
func WithBcryptCost(cost int) ServiceOption {
	return func(s *Service) {
		s.cost = cost
	}
}

// NewService creates an auth service
func NewService(store storage.Store, tokens *TokenIssuer, logger logrus.FieldLogger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	s := &Service{
		store:  store,
		tokens: tokens,
		logger: logger,
		cost:   bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.revocations == nil {
		s.revocations = NewLocalRevocations(0, tokens.ttl)
	}
	return s
}

// SignUp registers a new identity and starts a session. Self-registered
// users are always technicians.
func (s *Service) SignUp(ctx context.Context, req SignUpRequest) (*AuthResult, error) {
	return s.Register(ctx, req, rbac.RoleTechnician)
}

// Register creates an identity with the given role and starts a session.
// It is for trusted callers only and must never be reached from a public route.
func (s *Service) Register(ctx context.Context, req SignUpRequest, role rbac.Role) (*AuthResult, error) {
	email := normalizeEmail(req.Email)
	if !strings.Contains(email, "@") {
		return nil, &AuthError{Op: "signup", Message: "Unable to validate email address: invalid format"}
	}
	if len(req.Password) < MinPasswordLength {
		return nil, &AuthError{Op: "signup", Message: fmt.Sprintf("Password should be at least %d characters", MinPasswordLength)}
	}
	if _, err := rbac.ParseRole(string(role)); err != nil {
		return nil, &AuthError{Op: "signup", Message: err.Error(), Err: err}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return nil, &AuthError{Op: "signup", Message: "Unable to process password", Err: err}
	}

	userRec, err := s.store.Insert(ctx, UsersCollection, storage.Record{
		"email":         email,
		"password_hash": string(hash),
	})
	if err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return nil, &AuthError{Op: "signup", Message: "User already registered", Err: err}
		}
		return nil, &AuthError{Op: "signup", Message: err.Error(), Err: err}
	}
	user := userFromRecord(userRec)

	profile := storage.Record{
		"id":        user.ID,
		"full_name": strings.TrimSpace(req.FullName),
		"role":      string(role),
		"language":  DefaultLanguage,
	}
	if req.Phone != "" {
		profile["phone"] = req.Phone
	}
	if req.Department != "" {
		profile["department"] = req.Department
	}
	if _, err := s.store.Insert(ctx, ProfilesCollection, profile); err != nil {
		return nil, &AuthError{Op: "signup", Message: err.Error(), Err: err}
	}

	session, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return nil, &AuthError{Op: "signup", Message: err.Error(), Err: err}
	}

	s.logger.WithFields(logrus.Fields{
		"user_id": user.ID,
		"role":    role,
	}).Info("User signed up")

	return &AuthResult{User: user, Session: session}, nil
}

// SignIn checks credentials and starts a session
func (s *Service) SignIn(ctx context.Context, email, password string) (*AuthResult, error) {
	invalid := &AuthError{Op: "signin", Message: "Invalid login credentials"}

	rec, err := s.store.SelectOne(ctx, storage.From(UsersCollection).Where("email", normalizeEmail(email)))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, invalid
		}
		return nil, &AuthError{Op: "signin", Message: err.Error(), Err: err}
	}

	if err := bcrypt.CompareHashAndPassword([]byte(rec.String("password_hash")), []byte(password)); err != nil {
		invalid.Err = err
		return nil, invalid
	}

	user := userFromRecord(rec)
	session, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return nil, &AuthError{Op: "signin", Message: err.Error(), Err: err}
	}

	s.logger.WithField("user_id", user.ID).Debug("User signed in")
	return &AuthResult{User: user, Session: session}, nil
}

// SignInExternal starts a session for an identity verified by an external
// provider. Unknown emails are registered on first use with the default role
// and no password, so they can only come back through the same provider.
func (s *Service) SignInExternal(ctx context.Context, ext ExternalIdentity) (*AuthResult, error) {
	email := normalizeEmail(ext.Email)
	if !strings.Contains(email, "@") {
		return nil, &AuthError{Op: "sso", Message: "Unable to validate email address: invalid format"}
	}

	rec, err := s.store.SelectOne(ctx, storage.From(UsersCollection).Where("email", email))
	if errors.Is(err, storage.ErrNotFound) {
		rec, err = s.provisionExternal(ctx, email, ext.FullName)
	}
	if err != nil {
		return nil, &AuthError{Op: "sso", Message: err.Error(), Err: err}
	}

	user := userFromRecord(rec)
	session, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return nil, &AuthError{Op: "sso", Message: err.Error(), Err: err}
	}

	s.logger.WithField("user_id", user.ID).Debug("User signed in through SSO")
	return &AuthResult{User: user, Session: session}, nil
}

func (s *Service) provisionExternal(ctx context.Context, email, fullName string) (storage.Record, error) {
	rec, err := s.store.Insert(ctx, UsersCollection, storage.Record{
		"email":         email,
		"password_hash": "",
	})
	if errors.Is(err, storage.ErrConflict) {
		// Lost a race with a concurrent first sign-in.
		return s.store.SelectOne(ctx, storage.From(UsersCollection).Where("email", email))
	}
	if err != nil {
		return nil, err
	}

	user := userFromRecord(rec)
	if _, err := s.store.Insert(ctx, ProfilesCollection, storage.Record{
		"id":        user.ID,
		"full_name": strings.TrimSpace(fullName),
		"role":      string(rbac.RoleTechnician),
		"language":  DefaultLanguage,
	}); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"user_id": user.ID,
		"role":    rbac.RoleTechnician,
	}).Info("User provisioned through SSO")
	return rec, nil
}

// SignOut revokes the token until it would have expired
func (s *Service) SignOut(ctx context.Context, token string) error {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return err
	}
	if err := s.revocations.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return err
	}
	s.logger.WithField("user_id", claims.Subject).Debug("User signed out")
	return nil
}

// Authenticate validates a session token and returns its identity
func (s *Service) Authenticate(ctx context.Context, token string) (*Identity, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, err
	}

	revoked, err := s.revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, fmt.Errorf("%w: token revoked", ErrInvalidToken)
	}

	return &Identity{
		ID:        claims.Subject,
		Email:     claims.Email,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// lookupProfile reads the profile row for userID
func (s *Service) lookupProfile(ctx context.Context, userID string) (*UserProfile, error) {
	rec, err := s.store.SelectOne(ctx, storage.From(ProfilesCollection).Where("id", userID))
	if err != nil {
		return nil, &ProfileLookupError{UserID: userID, Err: err}
	}
	return profileFromRecord(rec), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
