package api

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/solarpro/erp/pkg/audit"
	"github.com/solarpro/erp/pkg/httputil"
	"github.com/solarpro/erp/pkg/storage"
)

// resource describes a collaborator collection exposed as list and create
type resource struct {
	collection string
	// filters are query parameters matched by equality; the value "all" disables them
	filters []string
	// exact are query parameters matched by equality, with no wildcard value
	exact  []string
	embeds []storage.Embed
}

func (res resource) query(r *http.Request) storage.Query {
	values := r.URL.Query()
	q := storage.From(res.collection)
	for _, col := range res.filters {
		if v := values.Get(col); v != "" && v != "all" {
			q = q.Where(col, v)
		}
	}
	for _, col := range res.exact {
		if v := values.Get(col); v != "" {
			q = q.Where(col, v)
		}
	}
	for _, e := range res.embeds {
		q = q.With(e)
	}
	return q.OrderBy("created_at", true)
}

// collectionHandlers holds the shared list/create behavior
type collectionHandlers struct {
	store  storage.Store
	logger logrus.FieldLogger
}

func (h *collectionHandlers) list(res resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := h.store.Select(r.Context(), res.query(r))
		if err != nil {
			h.storeError(w, r, res.collection, err)
			return
		}
		if rows == nil {
			rows = []storage.Record{}
		}
		httputil.WriteData(w, http.StatusOK, rows)
	}
}

func (h *collectionHandlers) create(res resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body storage.Record
		if err := httputil.ParseJSON(r, &body); err != nil || body == nil {
			httputil.WriteBadRequest(w, "Invalid request body")
			return
		}
		if err := storage.ValidateRecord(body); err != nil {
			httputil.WriteBadRequest(w, err.Error())
			return
		}

		created, err := h.store.Insert(r.Context(), res.collection, body)
		if err != nil {
			h.storeError(w, r, res.collection, err)
			return
		}

		if err := audit.LogSuccess(r.Context(), audit.EventTypeDataCreate, res.collection, created.String("id"), "record created"); err != nil {
			h.logger.WithError(err).Warn("Failed to write audit event")
		}
		httputil.WriteData(w, http.StatusOK, created)
	}
}

func (h *collectionHandlers) storeError(w http.ResponseWriter, r *http.Request, collection string, err error) {
	h.logger.WithError(err).WithFields(logrus.Fields{
		"collection": collection,
		"path":       r.URL.Path,
	}).Error("Store operation failed")
	httputil.WriteInternalError(w, err)
}
