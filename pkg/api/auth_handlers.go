package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/solarpro/erp/pkg/audit"
	"github.com/solarpro/erp/pkg/auth"
	"github.com/solarpro/erp/pkg/httputil"
	"github.com/solarpro/erp/pkg/observability"
)

const (
	actionSignUp = "signup"
	actionSignIn = "signin"
)

// AuthHandlers serves sign-up, sign-in and sign-out
type AuthHandlers struct {
	service    *auth.Service
	cookieName string
	limit      func(http.Handler) http.Handler
	metrics    *observability.Metrics
	logger     logrus.FieldLogger
}

// NewAuthHandlers creates auth handlers. limit wraps POST /auth and may be nil.
func NewAuthHandlers(service *auth.Service, cookieName string, limit func(http.Handler) http.Handler, metrics *observability.Metrics, logger logrus.FieldLogger) *AuthHandlers {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if limit == nil {
		limit = func(next http.Handler) http.Handler { return next }
	}
	return &AuthHandlers{
		service:    service,
		cookieName: cookieName,
		limit:      limit,
		metrics:    metrics,
		logger:     logger,
	}
}

// RegisterRoutes registers authentication routes
func (h *AuthHandlers) RegisterRoutes(router *mux.Router) {
	router.Handle("/auth", h.limit(http.HandlerFunc(h.authenticate))).Methods(http.MethodPost)
	router.HandleFunc("/auth/signout", h.signOut).Methods(http.MethodPost)
}

// authRequest is the POST /auth body; credentials sit beside the action
type authRequest struct {
	Action string `json:"action"`
	auth.SignUpRequest
}

type authResponse struct {
	Success bool             `json:"success"`
	Data    *auth.AuthResult `json:"data,omitempty"`
}

// authenticate handles POST /auth {action: signup|signin, ...}
func (h *AuthHandlers) authenticate(w http.ResponseWriter, r *http.Request) {
	var req authRequest
	if err := httputil.ParseJSON(r, &req); err != nil {
		httputil.WriteBadRequest(w, "Invalid action")
		return
	}

	var (
		result *auth.AuthResult
		err    error
	)
	switch req.Action {
	case actionSignUp:
		result, err = h.service.SignUp(r.Context(), req.SignUpRequest)
	case actionSignIn:
		result, err = h.service.SignIn(r.Context(), req.Email, req.Password)
	default:
		httputil.WriteBadRequest(w, "Invalid action")
		return
	}

	if err != nil {
		h.recordFailure(r, req.Action, err)
		httputil.WriteInternalError(w, err)
		return
	}

	h.recordSuccess(r, req.Action, result)
	h.setSessionCookie(w, result.Session)
	httputil.WriteJSON(w, http.StatusOK, authResponse{Success: true, Data: result})
}

// signOut handles POST /auth/signout. Signing out without a valid session succeeds.
func (h *AuthHandlers) signOut(w http.ResponseWriter, r *http.Request) {
	if token, ok := auth.TokenFromRequest(r, h.cookieName); ok {
		if err := h.service.SignOut(r.Context(), token); err != nil && !errors.Is(err, auth.ErrInvalidToken) {
			h.logger.WithError(err).Error("Failed to revoke session")
			httputil.WriteInternalError(w, err)
			return
		}
	}

	if err := audit.LogSuccess(r.Context(), audit.EventTypeAuthLogout, "session", "", "signed out"); err != nil {
		h.logger.WithError(err).Warn("Failed to write audit event")
	}
	h.observe("signout", "success")
	h.clearSessionCookie(w)
	httputil.WriteJSON(w, http.StatusOK, authResponse{Success: true})
}

func (h *AuthHandlers) recordSuccess(r *http.Request, action string, result *auth.AuthResult) {
	eventType := audit.EventTypeAuthLogin
	if action == actionSignUp {
		eventType = audit.EventTypeAuthSignup
	}
	ctx := auth.WithIdentity(r.Context(), &auth.Identity{ID: result.User.ID, Email: result.User.Email})
	if err := audit.LogSuccess(ctx, eventType, auth.UsersCollection, result.User.ID, action); err != nil {
		h.logger.WithError(err).Warn("Failed to write audit event")
	}
	h.observe(action, "success")
}

func (h *AuthHandlers) recordFailure(r *http.Request, action string, err error) {
	eventType := audit.EventTypeAuthLoginFailed
	if action == actionSignUp {
		eventType = audit.EventTypeAuthSignup
	}
	if logErr := audit.LogFailure(r.Context(), eventType, action+" failed", err); logErr != nil {
		h.logger.WithError(logErr).Warn("Failed to write audit event")
	}
	h.logger.WithError(err).WithField("action", action).Info("Authentication failed")
	h.observe(action, "failure")
}

func (h *AuthHandlers) observe(action, outcome string) {
	if h.metrics != nil {
		h.metrics.RecordAuthEvent(action, outcome)
	}
}

func (h *AuthHandlers) setSessionCookie(w http.ResponseWriter, session *auth.Session) {
	if h.cookieName == "" || session == nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    session.AccessToken,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandlers) clearSessionCookie(w http.ResponseWriter) {
	if h.cookieName == "" {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
