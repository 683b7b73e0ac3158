package settings

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/solarpro/erp/pkg/httputil"
	"github.com/solarpro/erp/pkg/observability"
	"github.com/solarpro/erp/pkg/rbac"
)

// Handlers serves the settings registry over HTTP
type Handlers struct {
	registry *Registry
	resolver rbac.RoleResolver
	logger   logrus.FieldLogger
	metrics  *observability.Metrics
}

// NewHandlers creates settings handlers. The caller's role is re-resolved
// from the request on every call.
func NewHandlers(registry *Registry, resolver rbac.RoleResolver, logger logrus.FieldLogger, metrics *observability.Metrics) *Handlers {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Handlers{
		registry: registry,
		resolver: resolver,
		logger:   logger,
		metrics:  metrics,
	}
}

// RegisterRoutes registers settings routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/settings", h.list).Methods(http.MethodGet)
	router.HandleFunc("/settings", h.create).Methods(http.MethodPost)
}

// list handles GET /settings?type={kind}
func (h *Handlers) list(w http.ResponseWriter, r *http.Request) {
	kind := r.URL.Query().Get("type")
	if _, err := ParseKind(kind); err != nil {
		h.writeError(w, r, err)
		return
	}

	records, err := h.registry.List(r.Context(), h.role(r), kind)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, records)
}

// create handles POST /settings with body {type, ...fields}
func (h *Handlers) create(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body == nil {
		httputil.WriteBadRequest(w, (&InvalidKindError{}).Error())
		return
	}

	kind, _ := body["type"].(string)
	if _, err := ParseKind(kind); err != nil {
		h.writeError(w, r, err)
		return
	}

	created, err := h.registry.Create(r.Context(), h.role(r), kind, body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, created)
}

func (h *Handlers) role(r *http.Request) rbac.Role {
	role, ok := h.resolver.RoleFromRequest(r)
	if !ok {
		return ""
	}
	return role
}

func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var forbidden *ForbiddenError
	switch {
	case IsInvalidKind(err):
		httputil.WriteBadRequest(w, err.Error())
	case errors.As(err, &forbidden):
		if h.metrics != nil {
			h.metrics.RecordDenial(observability.RouteLabel(r), string(forbidden.Role))
		}
		httputil.WriteForbidden(w, err.Error())
	case IsInvalidConfig(err):
		httputil.WriteBadRequest(w, err.Error())
	default:
		h.logger.WithError(err).WithField("path", r.URL.Path).Error("Settings operation failed")
		httputil.WriteInternalError(w, err)
	}
}
