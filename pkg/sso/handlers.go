package sso

import (
	"context"
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/solarpro/erp/pkg/audit"
	"github.com/solarpro/erp/pkg/auth"
	"github.com/solarpro/erp/pkg/httputil"
)

const (
	stateCookie = "solarpro_sso_state"
	stateTTL    = 10 * time.Minute
)

// SessionStarter signs in an identity verified by the provider
type SessionStarter interface {
	SignInExternal(ctx context.Context, ext auth.ExternalIdentity) (*auth.AuthResult, error)
}

// Handlers serves the login redirect and the provider callback
type Handlers struct {
	provider   Provider
	sessions   SessionStarter
	cookieName string
	redirectTo string
	logger     logrus.FieldLogger
}

// NewHandlers creates SSO handlers. After a successful callback the browser
// is sent to redirectTo with the session cookie set.
func NewHandlers(provider Provider, sessions SessionStarter, cookieName, redirectTo string, logger logrus.FieldLogger) *Handlers {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if redirectTo == "" {
		redirectTo = "/"
	}
	return &Handlers{
		provider:   provider,
		sessions:   sessions,
		cookieName: cookieName,
		redirectTo: redirectTo,
		logger:     logger,
	}
}

// RegisterRoutes registers /login and /callback on router
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/login", h.login).Methods(http.MethodGet)
	router.HandleFunc("/callback", h.callback).Methods(http.MethodGet)
}

func (h *Handlers) login(w http.ResponseWriter, r *http.Request) {
	state := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   int(stateTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.provider.AuthCodeURL(state), http.StatusFound)
}

func (h *Handlers) callback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if msg := query.Get("error"); msg != "" {
		h.fail(w, r, http.StatusUnauthorized, "Sign-in was cancelled", nil)
		return
	}

	cookie, err := r.Cookie(stateCookie)
	state := query.Get("state")
	if err != nil || state == "" || subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(state)) != 1 {
		h.fail(w, r, http.StatusBadRequest, "Invalid sign-in state", nil)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Path: "/", MaxAge: -1})

	claims, err := h.provider.Exchange(r.Context(), query.Get("code"))
	if err != nil {
		h.fail(w, r, http.StatusUnauthorized, "Sign-in failed", err)
		return
	}

	result, err := h.sessions.SignInExternal(r.Context(), auth.ExternalIdentity{Email: claims.Email, FullName: claims.Name})
	if err != nil {
		h.fail(w, r, http.StatusInternalServerError, err.Error(), err)
		return
	}

	ctx := auth.WithIdentity(r.Context(), &auth.Identity{ID: result.User.ID, Email: result.User.Email})
	if err := audit.LogSuccess(ctx, audit.EventTypeAuthLogin, auth.UsersCollection, result.User.ID, "sso"); err != nil {
		h.logger.WithError(err).Warn("Failed to write audit event")
	}

	if h.cookieName != "" {
		http.SetCookie(w, &http.Cookie{
			Name:     h.cookieName,
			Value:    result.Session.AccessToken,
			Path:     "/",
			Expires:  result.Session.ExpiresAt,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	http.Redirect(w, r, h.redirectTo, http.StatusFound)
}

func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, status int, message string, err error) {
	if logErr := audit.LogFailure(r.Context(), audit.EventTypeAuthLoginFailed, "sso: "+message, err); logErr != nil {
		h.logger.WithError(logErr).Warn("Failed to write audit event")
	}
	h.logger.WithError(err).WithField("status", status).Info("SSO sign-in failed")
	httputil.WriteErrorMessage(w, status, message)
}
