package settings

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solarpro/erp/pkg/storage"
	"github.com/solarpro/erp/pkg/storage/memory"
)

func TestWatchSeed_AppliesChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte("roles: []\n"), 0o600))

	store := memory.New()
	logger, hook := test.NewNullLogger()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- WatchSeed(ctx, store, path, logger) }()

	require.Eventually(t, func() bool {
		for _, e := range hook.AllEntries() {
			if e.Message == "Watching seed file" {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)

	// Unparseable content is skipped and the watcher keeps running.
	require.NoError(t, os.WriteFile(path, []byte("languages: [unterminated"), 0o600))
	require.Eventually(t, func() bool {
		e := hook.LastEntry()
		return e != nil && e.Message == "Failed to apply seed file"
	}, 3*time.Second, 20*time.Millisecond)

	// Unrelated files in the directory are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x"), 0o600))

	seed := "languages:\n  - code: de\n    name: Deutsch\n    is_active: true\n"
	require.NoError(t, os.WriteFile(path, []byte(seed), 0o600))

	require.Eventually(t, func() bool {
		rows, err := store.Select(context.Background(), storage.From("languages"))
		return err == nil && len(rows) == 1
	}, 3*time.Second, 20*time.Millisecond)

	rows, err := store.Select(context.Background(), storage.From("languages"))
	require.NoError(t, err)
	assert.Equal(t, "de", rows[0]["code"])

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatchSeed_MissingDirectory(t *testing.T) {
	logger, _ := test.NewNullLogger()
	err := WatchSeed(context.Background(), memory.New(), filepath.Join(t.TempDir(), "missing", "seed.yaml"), logger)
	assert.ErrorContains(t, err, "failed to watch")
}
