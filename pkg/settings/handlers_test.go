package settings

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solarpro/erp/pkg/observability"
	"github.com/solarpro/erp/pkg/rbac"
	"github.com/solarpro/erp/pkg/storage/memory"
)

// headerRole resolves the caller's role from X-Test-Role
var headerRole = rbac.RoleResolverFunc(func(r *http.Request) (rbac.Role, bool) {
	role, err := rbac.ParseRole(r.Header.Get("X-Test-Role"))
	if err != nil {
		return "", false
	}
	return role, true
})

func newTestRouter(t *testing.T) (*mux.Router, *memory.Store, *observability.Metrics) {
	t.Helper()
	store := memory.New()
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	h := NewHandlers(NewRegistry(store, quietLogger()), headerRole, quietLogger(), metrics)

	router := mux.NewRouter()
	h.RegisterRoutes(router.PathPrefix("/api").Subrouter())
	return router, store, metrics
}

func do(router http.Handler, method, target, role, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if role != "" {
		req.Header.Set("X-Test-Role", role)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHandlers_InstallerScenario(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := do(router, http.MethodPost, "/api/settings", "admin",
		`{"type":"role","name":"Installer","description":"Field installer"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := decode(t, rec)["data"].(map[string]any)
	assert.Equal(t, "Installer", data["name"])
	assert.NotEmpty(t, data["id"])

	rec = do(router, http.MethodGet, "/api/settings?type=role", "admin", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode(t, rec)["data"].([]any)
	require.Len(t, list, 1)
	assert.Equal(t, data["id"], list[0].(map[string]any)["id"])
}

func TestHandlers_NonAdminForbidden(t *testing.T) {
	for _, role := range []string{"manager", "technician", "sales_rep", ""} {
		t.Run(role, func(t *testing.T) {
			router, store, _ := newTestRouter(t)

			rec := do(router, http.MethodGet, "/api/settings?type=role", role, "")
			assert.Equal(t, http.StatusForbidden, rec.Code)
			assert.JSONEq(t, `{"error":"Forbidden"}`, rec.Body.String())
			assert.Equal(t, 0, store.Calls("roles"))
		})
	}
}

func TestHandlers_TechnicianPermissionsNoQuery(t *testing.T) {
	router, store, metrics := newTestRouter(t)

	rec := do(router, http.MethodGet, "/api/settings?type=permission", "technician", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, 0, store.Calls("permissions"))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.AuthzDenialsTotal.WithLabelValues("/api/settings", "technician")))
}

func TestHandlers_InvalidType(t *testing.T) {
	router, _, _ := newTestRouter(t)

	for _, target := range []string{"/api/settings", "/api/settings?type=", "/api/settings?type=null", "/api/settings?type=users"} {
		rec := do(router, http.MethodGet, target, "admin", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		assert.JSONEq(t, `{"error":"Invalid type"}`, rec.Body.String())
	}

	for _, body := range []string{`{"name":"x"}`, `{"type":null,"name":"x"}`, `{"type":"users"}`, `{"type":7}`, `not json`, `null`} {
		rec := do(router, http.MethodPost, "/api/settings", "admin", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.JSONEq(t, `{"error":"Invalid type"}`, rec.Body.String())
	}
}

func TestHandlers_InvalidTypeBeforeRole(t *testing.T) {
	router, _, _ := newTestRouter(t)
	rec := do(router, http.MethodGet, "/api/settings?type=users", "technician", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlers_InvalidConfigNoInsert(t *testing.T) {
	router, store, _ := newTestRouter(t)

	rec := do(router, http.MethodPost, "/api/settings", "admin", `{"type":"workflow","name":"w","config":"{broken"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "config")
	assert.Equal(t, 0, store.Calls("workflows"))

	rec = do(router, http.MethodPost, "/api/settings", "admin", `{"type":"form","name":"f","config":{"fields":[]}}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandlers_StoreFailure(t *testing.T) {
	router, store, _ := newTestRouter(t)
	store.FailWith("languages", errors.New("connection reset by peer"))

	rec := do(router, http.MethodGet, "/api/settings?type=language", "admin", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"connection reset by peer"}`, rec.Body.String())

	rec = do(router, http.MethodPost, "/api/settings", "admin", `{"type":"language","code":"de","name":"Deutsch"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHandlers_DuplicatePostsCreateTwoRows(t *testing.T) {
	router, _, _ := newTestRouter(t)
	body := `{"type":"language","code":"es","name":"Español"}`

	require.Equal(t, http.StatusOK, do(router, http.MethodPost, "/api/settings", "admin", body).Code)
	require.Equal(t, http.StatusOK, do(router, http.MethodPost, "/api/settings", "admin", body).Code)

	rec := do(router, http.MethodGet, "/api/settings?type=language", "admin", "")
	assert.Len(t, decode(t, rec)["data"], 2)
}

func TestHandlers_MethodNotAllowed(t *testing.T) {
	router, _, _ := newTestRouter(t)
	rec := do(router, http.MethodDelete, "/api/settings?type=role", "admin", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
