// Package httputil provides HTTP utilities for standardized request/response handling.
//
// # Envelope
//
// Successful responses are wrapped as {"data": ...} and failures as
// {"error": "..."}:
//
//	httputil.WriteData(w, http.StatusOK, rows)
//	httputil.WriteBadRequest(w, "Invalid type")
//	httputil.WriteForbidden(w, "Forbidden")
//
// # Request Parsing
//
//	var req authRequest
//	if err := httputil.ParseJSON(r, &req); err != nil {
//		httputil.WriteBadRequest(w, "Invalid request body")
//		return
//	}
//	token, ok := httputil.BearerToken(r)
//
// # Middleware
//
//	httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.LoggingMiddleware(logger),
//		httputil.RecoveryMiddleware(logger),
//		httputil.MaxBytesMiddleware(1<<20),
//	)
package httputil
