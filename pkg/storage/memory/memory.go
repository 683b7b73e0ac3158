package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/solarpro/erp/pkg/storage"
)

// Store keeps collections in process memory.
type Store struct {
	mu          sync.RWMutex
	collections map[string][]storage.Record
	unique      map[string][]string
	failures    map[string]error
	calls       map[string]int
	now         func() time.Time
	lastStamp   time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithUnique declares columns whose values must be unique within collection.
func WithUnique(collection string, columns ...string) Option {
	return func(s *Store) {
		s.unique[collection] = append(s.unique[collection], columns...)
	}
}

// WithClock replaces the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		collections: make(map[string][]storage.Record),
		unique:      make(map[string][]string),
		failures:    make(map[string]error),
		calls:       make(map[string]int),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Calls returns how many operations touched collection.
func (s *Store) Calls(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.calls[collection]
}

// FailWith makes every later operation on collection return err. A nil err clears it.
func (s *Store) FailWith(collection string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, collection)
		return
	}
	s.failures[collection] = err
}

// Select returns every row matching q.
func (s *Store) Select(ctx context.Context, q storage.Query) ([]storage.Record, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls[q.Collection]++
	if err := s.failures[q.Collection]; err != nil {
		return nil, err
	}

	var rows []storage.Record
	for _, row := range s.collections[q.Collection] {
		if matches(row, q.Filters) {
			rows = append(rows, row)
		}
	}

	if q.Order != nil {
		col, desc := q.Order.Column, q.Order.Desc
		sort.SliceStable(rows, func(i, j int) bool {
			c := compare(rows[i][col], rows[j][col])
			if desc {
				return c > 0
			}
			return c < 0
		})
	}
	if q.Limit > 0 && len(rows) > q.Limit {
		rows = rows[:q.Limit]
	}

	out := make([]storage.Record, 0, len(rows))
	for _, row := range rows {
		rec := copyRecord(row)
		for _, e := range q.Embeds {
			rec[e.Key()] = s.embed(row, e)
		}
		out = append(out, rec)
	}
	return out, nil
}

// SelectOne returns the single row matching q.
func (s *Store) SelectOne(ctx context.Context, q storage.Query) (storage.Record, error) {
	rows, err := s.Select(ctx, q)
	if err != nil {
		return nil, err
	}
	switch len(rows) {
	case 0:
		return nil, storage.ErrNotFound
	case 1:
		return rows[0], nil
	default:
		return nil, fmt.Errorf("%s: expected one row, got %d", q.Collection, len(rows))
	}
}

// Insert stores rec, assigning id and created_at when absent.
func (s *Store) Insert(ctx context.Context, collection string, rec storage.Record) (storage.Record, error) {
	if !storage.ValidIdentifier(collection) {
		return nil, fmt.Errorf("invalid collection name %q", collection)
	}
	if err := storage.ValidateRecord(rec); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls[collection]++
	if err := s.failures[collection]; err != nil {
		return nil, err
	}

	row := copyRecord(rec)
	if id, ok := row["id"]; !ok || id == nil || id == "" {
		row["id"] = uuid.NewString()
	}
	if _, ok := row["created_at"]; !ok {
		row["created_at"] = s.stamp()
	}

	for _, col := range s.unique[collection] {
		for _, existing := range s.collections[collection] {
			if row[col] != nil && equal(existing[col], row[col]) {
				return nil, fmt.Errorf("%w: %s.%s", storage.ErrConflict, collection, col)
			}
		}
	}
	for _, existing := range s.collections[collection] {
		if equal(existing["id"], row["id"]) {
			return nil, fmt.Errorf("%w: %s.id", storage.ErrConflict, collection)
		}
	}

	s.collections[collection] = append(s.collections[collection], row)
	return copyRecord(row), nil
}

// Update applies patch to every row matching filters.
func (s *Store) Update(ctx context.Context, collection string, filters []storage.Filter, patch storage.Record) ([]storage.Record, error) {
	q := storage.Query{Collection: collection, Filters: filters}
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if err := storage.ValidateRecord(patch); err != nil {
		return nil, err
	}
	if len(filters) == 0 {
		return nil, fmt.Errorf("update of %s requires at least one filter", collection)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls[collection]++
	if err := s.failures[collection]; err != nil {
		return nil, err
	}

	var updated []storage.Record
	for _, row := range s.collections[collection] {
		if !matches(row, filters) {
			continue
		}
		for k, v := range patch {
			row[k] = copyValue(v)
		}
		updated = append(updated, copyRecord(row))
	}
	return updated, nil
}

// stamp returns a strictly increasing timestamp so created_at orders inserts.
func (s *Store) stamp() time.Time {
	t := s.now().UTC()
	if !t.After(s.lastStamp) {
		t = s.lastStamp.Add(time.Microsecond)
	}
	s.lastStamp = t
	return t
}

func (s *Store) embed(base storage.Record, e storage.Embed) any {
	if e.Through == nil {
		ref := base[e.ForeignKey]
		if ref == nil {
			return nil
		}
		for _, row := range s.collections[e.Collection] {
			if equal(row["id"], ref) {
				return project(row, e.Columns)
			}
		}
		return nil
	}

	out := []storage.Record{}
	for _, link := range s.collections[e.Through.Collection] {
		if !equal(link[e.Through.SourceKey], base["id"]) {
			continue
		}
		for _, row := range s.collections[e.Collection] {
			if equal(row["id"], link[e.Through.TargetKey]) {
				out = append(out, project(row, e.Columns))
			}
		}
	}
	return out
}

func project(row storage.Record, columns []string) storage.Record {
	if len(columns) == 0 {
		return copyRecord(row)
	}
	out := make(storage.Record, len(columns))
	for _, c := range columns {
		out[c] = copyValue(row[c])
	}
	return out
}

func matches(row storage.Record, filters []storage.Filter) bool {
	for _, f := range filters {
		if !equal(row[f.Column], f.Value) {
			return false
		}
	}
	return true
}

func equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func compare(a, b any) int {
	switch av := a.(type) {
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			return av.Compare(bv)
		}
	case float64:
		if bv, ok := b.(float64); ok {
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			}
			return 0
		}
	case int:
		if bv, ok := b.(int); ok {
			return av - bv
		}
	}
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func copyRecord(r storage.Record) storage.Record {
	out := make(storage.Record, len(r))
	for k, v := range r {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch t := v.(type) {
	case storage.Record:
		return copyRecord(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = copyValue(vv)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = copyValue(vv)
		}
		return out
	}
	return v
}
