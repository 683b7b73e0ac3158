// Package sso signs users in through an OpenID Connect provider.
//
// The login route redirects to the provider with a random state kept in a
// short-lived cookie. The callback checks the state, exchanges the code,
// verifies the ID token and hands the verified email to
// auth.Service.SignInExternal, which registers first-time users with the
// technician role. The role is never taken from token claims; an admin
// raises it afterwards like for any other account.
//
//	provider, err := sso.NewOIDCProvider(ctx, sso.Config{
//		IssuerURL:    "https://accounts.example.com",
//		ClientID:     "solarpro",
//		ClientSecret: secret,
//		RedirectURL:  "https://erp.example.com/api/auth/sso/callback",
//	})
//	sso.NewHandlers(provider, authService, "solarpro_session", "/", logger).RegisterRoutes(apiRouter)
package sso
