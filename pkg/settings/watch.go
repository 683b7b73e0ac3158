package settings

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/solarpro/erp/pkg/storage"
)

// seedDebounce coalesces the burst of events editors produce on save
const seedDebounce = 250 * time.Millisecond

// WatchSeed applies the seed file at path whenever it is written or replaced,
// until ctx is cancelled. As with Seed, only empty collections are filled.
// A file that fails to parse is logged and skipped.
func WatchSeed(ctx context.Context, store storage.Store, path string, logger logrus.FieldLogger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	target, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	// Watch the directory so replace-on-save (rename) is seen too.
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(target), err)
	}

	log := logger.WithField("seed_file", target)
	log.Info("Watching seed file")

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				pending = time.After(seedDebounce)
			}

		case <-pending:
			pending = nil
			reseed(ctx, store, target, log)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.WithError(err).Warn("Seed watcher error")
		}
	}
}

func reseed(ctx context.Context, store storage.Store, path string, log logrus.FieldLogger) {
	data, err := os.ReadFile(path)
	if err != nil {
		log.WithError(err).Warn("Failed to read seed file")
		return
	}
	n, err := Seed(ctx, store, data, log)
	if err != nil {
		log.WithError(err).Error("Failed to apply seed file")
		return
	}
	log.WithField("inserted", n).Info("Seed file applied")
}
