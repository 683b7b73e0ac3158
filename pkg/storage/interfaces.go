package storage

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"
)

var (
	// ErrNotFound is returned by SelectOne when no row matches.
	ErrNotFound = errors.New("no rows returned")

	// ErrConflict is returned when an insert violates a unique constraint.
	ErrConflict = errors.New("duplicate key value violates unique constraint")

	// ErrMissingURL and ErrMissingAPIKey are returned when a store client is
	// constructed without its connection settings.
	ErrMissingURL    = errors.New("store URL is required")
	ErrMissingAPIKey = errors.New("store API key is required")
)

// Record is a single row keyed by column name.
type Record map[string]any

// String returns the value of key as a string, or "" when absent or not a string.
func (r Record) String(key string) string {
	if v, ok := r[key].(string); ok {
		return v
	}
	return ""
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Filter is an equality predicate on a column.
type Filter struct {
	Column string
	Value  any
}

// Eq builds an equality filter.
func Eq(column string, value any) Filter {
	return Filter{Column: column, Value: value}
}

// Order sorts results by a single column.
type Order struct {
	Column string
	Desc   bool
}

// Embed attaches related rows to each result row under the key As.
//
// With ForeignKey set the relation is to-one: base.ForeignKey references
// Collection.id and the embedded value is an object (or nil). With Through set
// the relation is many-to-many and the embedded value is a list.
type Embed struct {
	Collection string
	As         string
	Columns    []string
	ForeignKey string
	Through    *Through
}

// Through describes a join collection linking base rows to embedded rows.
type Through struct {
	Collection string
	// SourceKey references the base row id.
	SourceKey string
	// TargetKey references the embedded row id.
	TargetKey string
}

// Key returns the result key for the embed.
func (e Embed) Key() string {
	if e.As != "" {
		return e.As
	}
	return e.Collection
}

// Query selects rows from one collection.
type Query struct {
	Collection string
	Filters    []Filter
	Order      *Order
	Limit      int
	Embeds     []Embed
}

// From starts a query on collection.
func From(collection string) Query {
	return Query{Collection: collection}
}

// Where adds an equality filter.
func (q Query) Where(column string, value any) Query {
	q.Filters = append(append([]Filter(nil), q.Filters...), Eq(column, value))
	return q
}

// OrderBy sets the sort column.
func (q Query) OrderBy(column string, desc bool) Query {
	q.Order = &Order{Column: column, Desc: desc}
	return q
}

// With adds an embed.
func (q Query) With(e Embed) Query {
	q.Embeds = append(append([]Embed(nil), q.Embeds...), e)
	return q
}

var identifierPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// ValidIdentifier reports whether name is safe to use as a collection or column name.
func ValidIdentifier(name string) bool {
	return identifierPattern.MatchString(name)
}

// Validate checks every identifier referenced by the query.
func (q Query) Validate() error {
	if !ValidIdentifier(q.Collection) {
		return fmt.Errorf("invalid collection name %q", q.Collection)
	}
	for _, f := range q.Filters {
		if !ValidIdentifier(f.Column) {
			return fmt.Errorf("invalid column name %q", f.Column)
		}
	}
	if q.Order != nil && !ValidIdentifier(q.Order.Column) {
		return fmt.Errorf("invalid order column %q", q.Order.Column)
	}
	if q.Limit < 0 {
		return fmt.Errorf("invalid limit %d", q.Limit)
	}
	for _, e := range q.Embeds {
		if err := e.validate(); err != nil {
			return err
		}
	}
	return nil
}

func (e Embed) validate() error {
	if !ValidIdentifier(e.Collection) || !ValidIdentifier(e.Key()) {
		return fmt.Errorf("invalid embed %q", e.Collection)
	}
	for _, c := range e.Columns {
		if !ValidIdentifier(c) {
			return fmt.Errorf("invalid embed column %q", c)
		}
	}
	switch {
	case e.Through != nil && e.ForeignKey != "":
		return fmt.Errorf("embed %q sets both foreign key and join collection", e.Collection)
	case e.Through != nil:
		t := e.Through
		if !ValidIdentifier(t.Collection) || !ValidIdentifier(t.SourceKey) || !ValidIdentifier(t.TargetKey) {
			return fmt.Errorf("invalid join collection for embed %q", e.Collection)
		}
	case !ValidIdentifier(e.ForeignKey):
		return fmt.Errorf("embed %q needs a foreign key or join collection", e.Collection)
	}
	return nil
}

// ValidateRecord checks the column names of a record.
func ValidateRecord(rec Record) error {
	for k := range rec {
		if !ValidIdentifier(k) {
			return fmt.Errorf("invalid column name %q", k)
		}
	}
	return nil
}

// Reader is the read side of a store.
type Reader interface {
	// Select returns every row matching q.
	Select(ctx context.Context, q Query) ([]Record, error)

	// SelectOne returns exactly one row or ErrNotFound.
	SelectOne(ctx context.Context, q Query) (Record, error)
}

// Writer is the write side of a store.
type Writer interface {
	// Insert stores rec and returns the row as persisted, including
	// server-assigned id and timestamps.
	Insert(ctx context.Context, collection string, rec Record) (Record, error)

	// Update applies patch to every row matching filters and returns the
	// updated rows.
	Update(ctx context.Context, collection string, filters []Filter, patch Record) ([]Record, error)
}

// Store is the data store collaborator: collection-style reads and writes.
type Store interface {
	Reader
	Writer
}

// Config for the store backend
type Config struct {
	Type string // "postgres" or "memory"

	URL         string
	ReplicaURLs string
	APIKey      string
	MaxConns    int
	MinConns    int
	Timeout     time.Duration
	MaxLifetime time.Duration
	MaxIdleTime time.Duration

	// Redis backs the session revocation list when set.
	RedisURL      string
	RedisPassword string
	RedisDB       int
	RedisPoolSize int
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() Config {
	return Config{
		Type:          "postgres",
		MaxConns:      20,
		MinConns:      2,
		Timeout:       10 * time.Second,
		MaxLifetime:   30 * time.Minute,
		MaxIdleTime:   5 * time.Minute,
		RedisDB:       0,
		RedisPoolSize: 10,
	}
}
