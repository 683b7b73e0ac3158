package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/solarpro/erp/pkg/rbac"
	"github.com/solarpro/erp/pkg/storage"
)

var projectResource = resource{
	collection: "projects",
	filters:    []string{"status", "priority"},
	exact:      []string{"project_manager"},
	embeds: []storage.Embed{
		{Collection: "customers", Columns: []string{"name", "customer_type"}, ForeignKey: "customer_id"},
		{Collection: "project_types", Columns: []string{"name", "category"}, ForeignKey: "project_type_id"},
		{Collection: "user_profiles", Columns: []string{"full_name"}, ForeignKey: "project_manager"},
	},
}

var complianceResource = resource{
	collection: "compliance_records",
}

// ProjectHandlers serves projects and compliance records
type ProjectHandlers struct {
	collectionHandlers
	gate *rbac.Gate
}

// NewProjectHandlers creates project handlers guarded by gate
func NewProjectHandlers(store storage.Store, gate *rbac.Gate, logger logrus.FieldLogger) *ProjectHandlers {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ProjectHandlers{
		collectionHandlers: collectionHandlers{store: store, logger: logger},
		gate:               gate,
	}
}

// RegisterRoutes registers project and compliance routes
func (h *ProjectHandlers) RegisterRoutes(router *mux.Router) {
	field := h.gate.Require(rbac.RoleAdmin, rbac.RoleManager, rbac.RoleTechnician)
	router.Handle("/projects", field(h.list(projectResource))).Methods(http.MethodGet)
	router.Handle("/projects", field(h.create(projectResource))).Methods(http.MethodPost)

	office := h.gate.Require(rbac.RoleAdmin, rbac.RoleManager)
	router.Handle("/compliance", office(h.list(complianceResource))).Methods(http.MethodGet)
	router.Handle("/compliance", office(h.create(complianceResource))).Methods(http.MethodPost)
}
