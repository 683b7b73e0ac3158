// Package middleware provides HTTP middleware for session authentication,
// API key checks and rate limiting.
//
// # Middleware Components
//
// AuthMiddleware: session token authentication
//
//	authMW := middleware.NewAuthMiddleware(authService, "solarpro_session", true, logger)
//	router.Use(authMW.Handler)
//	// Reads "Authorization: Bearer <token>" or the session cookie and
//	// stores the auth.Identity in the request context
//
// RequireAuth: rejects requests without an identity (401)
//
// APIKey: every /api request must present the store's public key
//
//	api.Use(middleware.APIKey(cfg.Storage.APIKey))
//
// RateLimitMiddleware: fixed-window limits per client IP, in process or in Redis
//
//	limiter := middleware.NewDistributedRateLimiter(redisClient, middleware.SignInRateLimitConfig(), "signin")
//	authRoute.Use(middleware.NewRateLimitMiddleware(limiter, logger).Handler)
//
// # Rate Limiting
//
// Sign-in default: 10 attempts per minute per IP. Limiter errors fail open
// unless SetFailOpen(false) is called.
package middleware
