// Package storage defines the data store collaborator used by the SolarPro service.
//
// # Overview
//
// The store exposes collection-style reads and writes over named collections
// (tables). Rows are plain Records keyed by column name, so the settings
// registry can address five different collections through one code path.
//
//	rows, err := st.Select(ctx, storage.From("roles").OrderBy("created_at", true))
//	created, err := st.Insert(ctx, "roles", storage.Record{"name": "Installer"})
//
// Related rows are attached with embeds. A to-one embed follows a foreign key
// on the base row; a many-to-many embed goes through a join collection:
//
//	q := storage.From("leads").
//		With(storage.Embed{Collection: "lead_sources", ForeignKey: "source_id", Columns: []string{"name"}}).
//		With(storage.Embed{Collection: "tags", Through: &storage.Through{
//			Collection: "lead_tags", SourceKey: "lead_id", TargetKey: "tag_id",
//		}})
//
// # Backends
//
//   - postgres: PostgreSQL through lib/pq with a primary and optional read replicas
//   - memory: process-local maps, used for development and tests
//
// Every collection and column name is checked against a strict identifier
// pattern before it reaches SQL.
//
// # Errors
//
// SelectOne returns ErrNotFound when nothing matches. Inserts that violate a
// unique constraint return an error wrapping ErrConflict.
package storage
