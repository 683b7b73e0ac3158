package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/solarpro/erp/pkg/audit"
	"github.com/solarpro/erp/pkg/auth"
	"github.com/solarpro/erp/pkg/httputil"
	"github.com/solarpro/erp/pkg/middleware"
)

// ProfileHandlers serves the caller's own profile
type ProfileHandlers struct {
	accessor *auth.Accessor
	logger   logrus.FieldLogger
}

// NewProfileHandlers creates profile handlers
func NewProfileHandlers(accessor *auth.Accessor, logger logrus.FieldLogger) *ProfileHandlers {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ProfileHandlers{accessor: accessor, logger: logger}
}

// RegisterRoutes registers profile routes
func (h *ProfileHandlers) RegisterRoutes(router *mux.Router) {
	router.Handle("/me", middleware.RequireAuth(http.HandlerFunc(h.getProfile))).Methods(http.MethodGet)
	router.Handle("/me", middleware.RequireAuth(http.HandlerFunc(h.updateProfile))).Methods(http.MethodPatch)
}

// getProfile handles GET /me
func (h *ProfileHandlers) getProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.accessor.CurrentUserProfile(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to load profile")
		httputil.WriteInternalError(w, err)
		return
	}
	if profile == nil {
		httputil.WriteUnauthorized(w, auth.ErrNotAuthenticated.Error())
		return
	}
	httputil.WriteData(w, http.StatusOK, profile)
}

// updateProfile handles PATCH /me
func (h *ProfileHandlers) updateProfile(w http.ResponseWriter, r *http.Request) {
	var patch map[string]any
	if err := httputil.ParseJSON(r, &patch); err != nil || patch == nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	profile, err := h.accessor.UpdateUserProfile(r.Context(), patch)
	switch {
	case err == nil:
	case auth.IsInvalidProfileField(err):
		httputil.WriteBadRequest(w, err.Error())
		return
	default:
		h.logger.WithError(err).Error("Failed to update profile")
		httputil.WriteInternalError(w, err)
		return
	}

	if err := audit.LogSuccess(r.Context(), audit.EventTypeDataProfileUpdate, auth.ProfilesCollection, profile.ID, "profile updated"); err != nil {
		h.logger.WithError(err).Warn("Failed to write audit event")
	}
	httputil.WriteData(w, http.StatusOK, profile)
}
