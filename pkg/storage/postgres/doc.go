// Package postgres implements storage.Store on PostgreSQL using lib/pq.
//
// Writes go to the primary connection and reads are spread across read
// replicas by ConnectionManager. Queries are built from validated
// identifiers quoted with pq.QuoteIdentifier; values are always bound as
// parameters. JSON columns and embeds are decoded into maps and slices, and
// NUMERIC columns into json.Number.
//
// RunMigrations creates every table the service uses.
package postgres
