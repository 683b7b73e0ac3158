package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/solarpro/erp/pkg/audit"
	"github.com/solarpro/erp/pkg/httputil"
	"github.com/solarpro/erp/pkg/rbac"
	"github.com/solarpro/erp/pkg/storage"
)

const (
	leadsCollection     = "leads"
	customersCollection = "customers"

	leadStatusConverted = "converted"
	defaultCustomerType = "residential"
)

var leadResource = resource{
	collection: leadsCollection,
	filters:    []string{"status", "priority"},
	exact:      []string{"assigned_to"},
	embeds: []storage.Embed{
		{Collection: "lead_sources", Columns: []string{"name"}, ForeignKey: "source_id"},
		{Collection: "user_profiles", Columns: []string{"full_name"}, ForeignKey: "assigned_to"},
		{
			Collection: "tags",
			Columns:    []string{"id", "name", "color"},
			Through:    &storage.Through{Collection: "lead_tags", SourceKey: "lead_id", TargetKey: "tag_id"},
		},
	},
}

// customerFields are copied from the lead unless the caller overrides them
var customerFields = []string{"name", "email", "phone", "company", "address"}

// CRMHandlers serves leads and lead conversion
type CRMHandlers struct {
	collectionHandlers
	gate *rbac.Gate
	now  func() time.Time
}

// NewCRMHandlers creates CRM handlers guarded by gate
func NewCRMHandlers(store storage.Store, gate *rbac.Gate, logger logrus.FieldLogger) *CRMHandlers {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &CRMHandlers{
		collectionHandlers: collectionHandlers{store: store, logger: logger},
		gate:               gate,
		now:                time.Now,
	}
}

// RegisterRoutes registers lead routes. Admins, managers and sales reps only.
func (h *CRMHandlers) RegisterRoutes(router *mux.Router) {
	guard := h.gate.Require(rbac.RoleAdmin, rbac.RoleManager, rbac.RoleSalesRep)

	router.Handle("/leads", guard(h.list(leadResource))).Methods(http.MethodGet)
	router.Handle("/leads", guard(h.create(leadResource))).Methods(http.MethodPost)
	router.Handle("/leads/convert", guard(http.HandlerFunc(h.convertLead))).Methods(http.MethodPost)
}

type convertLeadRequest struct {
	LeadID       string         `json:"leadId"`
	CustomerData map[string]any `json:"customerData"`
}

// convertLead handles POST /leads/convert: it creates a customer from the
// lead and marks the lead converted
func (h *CRMHandlers) convertLead(w http.ResponseWriter, r *http.Request) {
	var req convertLeadRequest
	if err := httputil.ParseJSON(r, &req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}
	if req.LeadID == "" {
		httputil.WriteBadRequest(w, "leadId is required")
		return
	}

	lead, err := h.store.SelectOne(r.Context(), storage.From(leadsCollection).Where("id", req.LeadID))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			httputil.WriteNotFoundError(w, "Lead not found")
			return
		}
		h.storeError(w, r, leadsCollection, err)
		return
	}

	customer, err := h.store.Insert(r.Context(), customersCollection, customerFromLead(lead, req.CustomerData))
	if err != nil {
		h.storeError(w, r, customersCollection, err)
		return
	}

	_, err = h.store.Update(r.Context(), leadsCollection,
		[]storage.Filter{storage.Eq("id", req.LeadID)},
		storage.Record{"status": leadStatusConverted, "updated_at": h.now().UTC()},
	)
	if err != nil {
		h.storeError(w, r, leadsCollection, err)
		return
	}

	if err := audit.LogSuccess(r.Context(), audit.EventTypeDataLeadConvert, customersCollection, customer.String("id"), "lead "+req.LeadID+" converted"); err != nil {
		h.logger.WithError(err).Warn("Failed to write audit event")
	}
	httputil.WriteData(w, http.StatusOK, customer)
}

func customerFromLead(lead storage.Record, overrides map[string]any) storage.Record {
	customer := storage.Record{
		"converted_from_lead": lead["id"],
		"assigned_to":         lead["assigned_to"],
		"customer_type":       defaultCustomerType,
	}
	for _, field := range customerFields {
		customer[field] = lead[field]
		if v, ok := overrides[field].(string); ok && v != "" {
			customer[field] = v
		}
	}
	if v, ok := overrides["customer_type"].(string); ok && v != "" {
		customer["customer_type"] = v
	}
	return customer
}
