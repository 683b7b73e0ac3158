// Package memory is an in-process storage.Store.
//
// It assigns UUID ids and strictly increasing created_at timestamps, supports
// equality filters, ordering, limits and embeds, and can declare unique
// columns. Calls and FailWith exist so tests can assert which collections an
// operation touched and simulate store failures.
package memory
