package rbac

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/solarpro/erp/pkg/httputil"
)

// Handlers serves the role-dependent UI metadata.
type Handlers struct {
	gate *Gate
}

// NewHandlers creates handlers that resolve callers through gate.
func NewHandlers(gate *Gate) *Handlers {
	return &Handlers{gate: gate}
}

// RegisterRoutes registers the navigation route relative to router.
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/navigation", h.GetNavigation).Methods(http.MethodGet)
}

// GetNavigation returns the menu entries visible to the caller.
func (h *Handlers) GetNavigation(w http.ResponseWriter, r *http.Request) {
	role := h.gate.Resolve(r)
	httputil.WriteData(w, http.StatusOK, VisibleItems(role))
}
