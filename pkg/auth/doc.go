// Package auth provides sign-up, sign-in and session handling for SolarPro,
// and the identity accessor used by route guards.
//
// # Sessions
//
// Service stores identities in auth_users (bcrypt password hashes) and
// creates the matching user_profiles row on sign-up. Public sign-up always
// creates a technician; Register sets another role for trusted callers such
// as the bootstrap admin. Sessions are HS256 JWTs issued by TokenIssuer:
//
//	issuer, _ := auth.NewTokenIssuer(secret, "solarpro", 24*time.Hour)
//	svc := auth.NewService(store, issuer, logger,
//		auth.WithRevocations(auth.NewRedisRevocations(redisClient)))
//	result, err := svc.SignIn(ctx, "ana@example.com", "secret")
//
// Signing out revokes the token id until the token's expiry, either in
// Redis (shared by every instance) or in a bounded in-process LRU.
//
// # Identity accessor
//
// Accessor resolves the caller per request, never from process-wide state:
//
//	ident, ok := accessor.CurrentUser(ctx)          // set by middleware.AuthMiddleware
//	profile, err := accessor.CurrentUserProfile(ctx) // *ProfileLookupError on store failure
//	role, ok := accessor.RoleFromRequest(r)          // ("", false) means deny
//
// Accessor implements rbac.RoleResolver, so it plugs straight into an
// rbac.Gate.
package auth
