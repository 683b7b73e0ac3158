// Package api assembles the SolarPro HTTP API.
//
// Every route lives under /api and requires the store's public key in the
// apikey header. A session token, when present, is resolved into the request
// identity; routes that need a role re-resolve it through the role gate.
//
//	POST  /api/auth               {action: signup|signin, ...}
//	POST  /api/auth/signout
//	GET   /api/me, PATCH /api/me  caller's profile
//	GET   /api/navigation         menu items visible to the caller
//	GET   /api/settings?type=...  settings registry (admin)
//	POST  /api/settings
//	GET   /api/leads, POST /api/leads, POST /api/leads/convert
//	GET   /api/projects, POST /api/projects
//	GET   /api/compliance, POST /api/compliance
//
// When an OIDC provider is configured, /sso/login and /sso/callback sign
// browsers in outside /api, since the provider's redirect carries no key.
//
// Usage:
//
//	srv, err := api.NewServer(api.Dependencies{
//		Store:  store,
//		Auth:   authService,
//		APIKey: cfg.Storage.APIKey,
//	})
//	http.ListenAndServe(":8080", srv.Handler())
package api
