package cli

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
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

func newTestAPI(t *testing.T) string {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	store := memory.New(memory.WithUnique(auth.UsersCollection, "email"))
	issuer, err := auth.NewTokenIssuer("test-secret", "solarpro", time.Hour)
	require.NoError(t, err)
	service := auth.NewService(store, issuer, logger, auth.WithBcryptCost(bcrypt.MinCost))
	for email, role := range map[string]rbac.Role{"admin@example.com": rbac.RoleAdmin, "tech@example.com": rbac.RoleTechnician} {
		_, err := service.Register(context.Background(), auth.SignUpRequest{Email: email, Password: "secret123"}, role)
		require.NoError(t, err)
	}

	srv, err := api.NewServer(api.Dependencies{Store: store, Auth: service, APIKey: testKey, Logger: logger})
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts.URL
}

func testEnv(vars map[string]string) (Env, *bytes.Buffer) {
	var out bytes.Buffer
	return Env{
		Out:    &out,
		Getenv: func(k string) string { return vars[k] },
	}, &out
}

func run(t *testing.T, vars map[string]string, args ...string) (string, error) {
	t.Helper()
	env, out := testEnv(vars)
	err := NewRootCommand(env).Execute(context.Background(), args)
	return out.String(), err
}

func TestNewRootCommand(t *testing.T) {
	root := NewRootCommand(Env{})

	assert.Equal(t, "solarpro-admin", root.Name)
	for _, name := range []string{"signin", "nav", "list", "create"} {
		assert.Contains(t, root.Subcommands, name)
	}
	assert.Len(t, root.Subcommands, 4)
}

func TestUsage(t *testing.T) {
	out, err := run(t, nil)
	require.NoError(t, err)
	assert.Contains(t, out, "Usage: solarpro-admin <command>")
	assert.Contains(t, out, "create")

	_, err = run(t, nil, "delete")
	assert.EqualError(t, err, "unknown command: delete")
}

func TestAdminFlow(t *testing.T) {
	url := newTestAPI(t)
	vars := map[string]string{EnvAPIURL: url, EnvAPIKey: testKey}

	token, err := run(t, vars, "signin", "--email", "admin@example.com", "--password", "secret123")
	require.NoError(t, err)
	vars[EnvToken] = strings.TrimSpace(token)

	out, err := run(t, vars, "create", "role", "--set", "name=Installer", "--set", "description=Field installer")
	require.NoError(t, err)
	assert.Contains(t, out, "Installer")

	out, err = run(t, vars, "create", "workflow", "--set", "name=Install", "--config", `{"steps":["survey"]}`)
	require.NoError(t, err)
	assert.Contains(t, out, `{"steps":["survey"]}`)

	out, err = run(t, vars, "list", "role")
	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "Field installer")

	out, err = run(t, vars, "nav")
	require.NoError(t, err)
	assert.Contains(t, out, "Settings")
}

func TestCreate_ReportsEditorErrors(t *testing.T) {
	url := newTestAPI(t)
	vars := map[string]string{EnvAPIURL: url, EnvAPIKey: testKey, EnvPassword: "secret123"}

	token, err := run(t, vars, "signin", "--email", "admin@example.com")
	require.NoError(t, err)
	vars[EnvToken] = strings.TrimSpace(token)

	_, err = run(t, vars, "create", "role", "--set", "description=no name")
	assert.EqualError(t, err, "name is required")

	_, err = run(t, vars, "create", "form", "--set", "name=Survey", "--config", "[1,2]")
	assert.EqualError(t, err, "config must be a JSON object")

	_, err = run(t, vars, "create", "role", "--set", "broken")
	assert.Error(t, err)

	_, err = run(t, vars, "list", "users")
	assert.True(t, settings.IsInvalidKind(err))
}

func TestList_ForbiddenForTechnician(t *testing.T) {
	url := newTestAPI(t)
	vars := map[string]string{EnvAPIURL: url, EnvAPIKey: testKey}

	token, err := run(t, vars, "signin", "--email", "tech@example.com", "--password", "secret123")
	require.NoError(t, err)
	vars[EnvToken] = strings.TrimSpace(token)

	_, err = run(t, vars, "list", "permission")
	assert.EqualError(t, err, "Forbidden")
}

func TestConnection_RequiresAPIKey(t *testing.T) {
	_, err := run(t, map[string]string{}, "nav")
	assert.EqualError(t, err, "--api-key or SOLARPRO_STORE_API_KEY is required")

	_, err = run(t, map[string]string{EnvAPIKey: "k"}, "signin")
	assert.EqualError(t, err, "--email and --password are required")
}

func TestCell(t *testing.T) {
	assert.Equal(t, "", cell(nil))
	assert.Equal(t, "x", cell("x"))
	assert.Equal(t, `{"a":1}`, cell(map[string]any{"a": 1}))
	assert.Equal(t, "2.5", cell(2.5))
}
