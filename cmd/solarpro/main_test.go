package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/solarpro/erp/pkg/audit"
	"github.com/solarpro/erp/pkg/auth"
	"github.com/solarpro/erp/pkg/config"
	"github.com/solarpro/erp/pkg/observability"
	"github.com/solarpro/erp/pkg/scheduler"
	"github.com/solarpro/erp/pkg/storage"
	"github.com/solarpro/erp/pkg/storage/memory"
)

func TestBuildAuditLogger_Sync(t *testing.T) {
	logger, _ := test.NewNullLogger()
	store := memory.New()
	sched := scheduler.New(logger, time.Second)

	multi, pool, err := buildAuditLogger(context.Background(), config.AuditConfig{StoreEnabled: true}, store, sched, "@every 1m", logger)
	require.NoError(t, err)
	assert.Nil(t, pool)

	require.NoError(t, multi.Log(context.Background(), &audit.AuditEvent{EventType: audit.EventTypeAuthLogin, UserID: "u1"}))
	rows, err := store.Select(context.Background(), storage.From("audit_logs"))
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestBuildAuditLogger_AsyncReportsFailures(t *testing.T) {
	logger, hook := test.NewNullLogger()
	store := memory.New()
	store.FailWith("audit_logs", assert.AnError)
	sched := scheduler.New(logger, time.Second)

	multi, pool, err := buildAuditLogger(context.Background(), config.AuditConfig{StoreEnabled: true, Async: true, Workers: 2}, store, sched, "@every 1m", logger)
	require.NoError(t, err)
	require.NotNil(t, pool)
	defer pool.Shutdown(time.Second)

	require.NoError(t, multi.Log(context.Background(), &audit.AuditEvent{EventType: audit.EventTypeAuthLogin}))
	multi.Wait()

	hook.Reset()
	require.NoError(t, sched.RunNow("audit-delivery-report"))

	var warned bool
	for _, e := range hook.AllEntries() {
		if e.Message == "Audit delivery failed" && e.Level == logrus.WarnLevel {
			warned = true
		}
	}
	assert.True(t, warned)
}

func TestHealthChecker_MemoryBackend(t *testing.T) {
	be := &backend{store: memory.New(memory.WithUnique(auth.UsersCollection, "email"))}

	report := healthChecker(be, nil).Check(context.Background())
	assert.Equal(t, observability.StatusHealthy, report.Status)
	assert.Contains(t, report.Dependencies, "settings")
	assert.NotContains(t, report.Dependencies, "database")
}

func TestBootstrapAdmin(t *testing.T) {
	logger, _ := test.NewNullLogger()
	store := memory.New(memory.WithUnique(auth.UsersCollection, "email"))
	issuer, err := auth.NewTokenIssuer("secret", "solarpro", time.Hour)
	require.NoError(t, err)
	svc := auth.NewService(store, issuer, logger, auth.WithBcryptCost(bcrypt.MinCost))
	ctx := context.Background()

	require.NoError(t, bootstrapAdmin(ctx, svc, config.AuthConfig{}, logger))
	assert.Equal(t, 0, store.Calls(auth.UsersCollection))

	cfg := config.AuthConfig{BootstrapAdminEmail: "Root@Example.com", BootstrapAdminPassword: "change-me"}
	require.NoError(t, bootstrapAdmin(ctx, svc, cfg, logger))
	require.NoError(t, bootstrapAdmin(ctx, svc, cfg, logger))

	profiles, err := store.Select(ctx, storage.From(auth.ProfilesCollection))
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, "admin", profiles[0]["role"])

	result, err := svc.SignIn(ctx, "root@example.com", "change-me")
	require.NoError(t, err)
	assert.NotEmpty(t, result.Session.AccessToken)

	cfg.BootstrapAdminPassword = "short"
	cfg.BootstrapAdminEmail = "other@example.com"
	assert.ErrorContains(t, bootstrapAdmin(ctx, svc, cfg, logger), "failed to create bootstrap admin")
}

func TestReadSeedFile(t *testing.T) {
	data, err := readSeedFile("")
	require.NoError(t, err)
	assert.Nil(t, data)

	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte("roles: []\n"), 0o600))
	data, err = readSeedFile(path)
	require.NoError(t, err)
	assert.Equal(t, "roles: []\n", string(data))

	_, err = readSeedFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read seed file")
}
