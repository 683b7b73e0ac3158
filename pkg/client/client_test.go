package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/solarpro/erp/pkg/api"
	"github.com/solarpro/erp/pkg/auth"
	"github.com/solarpro/erp/pkg/rbac"
	"github.com/solarpro/erp/pkg/settings"
	"github.com/solarpro/erp/pkg/storage/memory"
)

const testKey = "anon-key"

func newTestAPI(t *testing.T) (*httptest.Server, *auth.Service) {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	store := memory.New(memory.WithUnique(auth.UsersCollection, "email"))
	issuer, err := auth.NewTokenIssuer("test-secret", "solarpro", time.Hour)
	require.NoError(t, err)
	service := auth.NewService(store, issuer, logger, auth.WithBcryptCost(bcrypt.MinCost))

	srv, err := api.NewServer(api.Dependencies{
		Store:  store,
		Auth:   service,
		APIKey: testKey,
		Logger: logger,
	})
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, service
}

func register(t *testing.T, service *auth.Service, email string, role rbac.Role) {
	t.Helper()
	_, err := service.Register(context.Background(), auth.SignUpRequest{
		Email: email, Password: "secret123", FullName: "Test",
	}, role)
	require.NoError(t, err)
}

func TestNew_Validation(t *testing.T) {
	_, err := New("", "k")
	assert.Error(t, err)
	_, err = New("http://localhost", "")
	assert.Error(t, err)

	c, err := New("http://localhost/", "k", WithToken("t"))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost", c.baseURL)
	assert.Equal(t, "t", c.Token())
}

func TestClient_AdminSettingsRoundTrip(t *testing.T) {
	ts, service := newTestAPI(t)
	register(t, service, "admin@example.com", rbac.RoleAdmin)
	ctx := context.Background()

	c, err := New(ts.URL, testKey)
	require.NoError(t, err)

	result, err := c.SignIn(ctx, "admin@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, "admin@example.com", result.User.Email)
	assert.NotEmpty(t, c.Token())

	created, err := c.Create(ctx, settings.KindLanguage, map[string]any{"code": "de", "name": "Deutsch"})
	require.NoError(t, err)
	assert.Equal(t, "Deutsch", created["name"])
	assert.NotEmpty(t, created["id"])

	rows, err := c.List(ctx, settings.KindLanguage)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, created["id"], rows[0]["id"])

	nav, err := c.Navigation(ctx)
	require.NoError(t, err)
	assert.Len(t, nav, len(rbac.Navigation))

	require.NoError(t, c.SignOut(ctx))
	assert.Empty(t, c.Token())
}

func TestClient_Errors(t *testing.T) {
	ts, service := newTestAPI(t)
	register(t, service, "tech@example.com", rbac.RoleTechnician)
	ctx := context.Background()

	c, err := New(ts.URL, testKey)
	require.NoError(t, err)

	_, err = c.SignIn(ctx, "tech@example.com", "wrong-password")
	require.Error(t, err)
	assert.Equal(t, "Invalid login credentials", err.Error())

	_, err = c.SignIn(ctx, "tech@example.com", "secret123")
	require.NoError(t, err)

	_, err = c.List(ctx, settings.KindPermission)
	assert.True(t, IsForbidden(err))
	assert.Equal(t, "Forbidden", err.Error())

	_, err = c.List(ctx, settings.Kind("users"))
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "Invalid type", apiErr.Message)

	bad, err := New(ts.URL, "wrong-key")
	require.NoError(t, err)
	_, err = bad.Navigation(ctx)
	assert.True(t, IsUnauthorized(err))
}

func TestClient_NonJSONError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, testKey, r.Header.Get("apikey"))
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer ts.Close()

	c, err := New(ts.URL, testKey)
	require.NoError(t, err)
	_, err = c.List(context.Background(), settings.KindRole)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "request failed with status 502", apiErr.Error())
}
