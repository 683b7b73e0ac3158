package settings

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/solarpro/erp/pkg/storage"
)

//go:embed seed.yaml
var defaultSeed []byte

// SeedDocument lists default rows per kind
type SeedDocument struct {
	Roles       []map[string]any `yaml:"roles"`
	Permissions []map[string]any `yaml:"permissions"`
	Workflows   []map[string]any `yaml:"workflows"`
	Forms       []map[string]any `yaml:"forms"`
	Languages   []map[string]any `yaml:"languages"`
}

func (d *SeedDocument) rows(kind Kind) []map[string]any {
	switch kind {
	case KindRole:
		return d.Roles
	case KindPermission:
		return d.Permissions
	case KindWorkflow:
		return d.Workflows
	case KindForm:
		return d.Forms
	case KindLanguage:
		return d.Languages
	}
	return nil
}

// DefaultSeed returns the built-in seed document
func DefaultSeed() []byte {
	return defaultSeed
}

// ParseSeed decodes a YAML seed document
func ParseSeed(data []byte) (*SeedDocument, error) {
	var doc SeedDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse seed: %w", err)
	}
	return &doc, nil
}

// Seed inserts the rows of seedFile into every empty settings collection and
// returns how many rows were inserted. A nil seedFile uses DefaultSeed.
func Seed(ctx context.Context, store storage.Store, seedFile []byte, logger logrus.FieldLogger) (int, error) {
	if seedFile == nil {
		seedFile = defaultSeed
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	doc, err := ParseSeed(seedFile)
	if err != nil {
		return 0, err
	}

	inserted := 0
	for _, kind := range AllKinds {
		rows := doc.rows(kind)
		if len(rows) == 0 {
			continue
		}
		collection, _ := CollectionFor(kind)

		q := storage.From(collection)
		q.Limit = 1
		existing, err := store.Select(ctx, q)
		if err != nil {
			return inserted, fmt.Errorf("failed to check %s: %w", collection, err)
		}
		if len(existing) > 0 {
			logger.WithField("collection", collection).Debug("Skipping seed, collection not empty")
			continue
		}

		for _, row := range rows {
			rec, err := buildRecord(kind, row)
			if err != nil {
				return inserted, fmt.Errorf("invalid seed row for %s: %w", kind, err)
			}
			if _, err := store.Insert(ctx, collection, rec); err != nil {
				return inserted, fmt.Errorf("failed to seed %s: %w", collection, err)
			}
			inserted++
		}
		logger.WithFields(logrus.Fields{
			"collection": collection,
			"rows":       len(rows),
		}).Info("Seeded settings")
	}
	return inserted, nil
}
