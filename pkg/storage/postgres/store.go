package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/solarpro/erp/pkg/storage"
)

const uniqueViolation = "23505"

var tracer = otel.Tracer("github.com/solarpro/erp/pkg/storage/postgres")

// DBProvider hands out connections for reads and writes.
type DBProvider interface {
	Primary() *sql.DB
	Replica() *sql.DB
}

// Observer receives one call per store operation.
type Observer interface {
	ObserveStoreOperation(operation, collection string, duration time.Duration, err error)
}

type singleDB struct{ db *sql.DB }

func (s singleDB) Primary() *sql.DB { return s.db }
func (s singleDB) Replica() *sql.DB { return s.db }

// Store implements storage.Store on PostgreSQL.
type Store struct {
	dbs      DBProvider
	observer Observer
}

// NewStore creates a store that reads and writes through db.
func NewStore(db *sql.DB) *Store {
	return &Store{dbs: singleDB{db: db}}
}

// NewStoreWithConnections creates a store that writes to the primary and
// reads from replicas.
func NewStoreWithConnections(dbs DBProvider) *Store {
	return &Store{dbs: dbs}
}

// WithObserver attaches an operation observer.
func (s *Store) WithObserver(o Observer) *Store {
	s.observer = o
	return s
}

// Select returns every row matching q.
func (s *Store) Select(ctx context.Context, q storage.Query) (rows []storage.Record, err error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	ctx, done := s.begin(ctx, "select", q.Collection)
	defer func() { done(err) }()

	query, args := buildSelect(q)
	result, err := s.dbs.Replica().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select from %s: %w", q.Collection, err)
	}
	defer result.Close()

	return scanRecords(result)
}

// SelectOne returns the single row matching q.
func (s *Store) SelectOne(ctx context.Context, q storage.Query) (storage.Record, error) {
	if q.Limit == 0 {
		q.Limit = 2
	}
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

// Insert stores rec and returns the persisted row.
func (s *Store) Insert(ctx context.Context, collection string, rec storage.Record) (out storage.Record, err error) {
	if !storage.ValidIdentifier(collection) {
		return nil, fmt.Errorf("invalid collection name %q", collection)
	}
	if err := storage.ValidateRecord(rec); err != nil {
		return nil, err
	}
	ctx, done := s.begin(ctx, "insert", collection)
	defer func() { done(err) }()

	query, args, err := buildInsert(collection, rec)
	if err != nil {
		return nil, err
	}

	result, err := s.dbs.Primary().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translateError(fmt.Sprintf("failed to insert into %s", collection), err)
	}
	defer result.Close()

	rows, err := scanRecords(result)
	if err != nil {
		return nil, translateError(fmt.Sprintf("failed to insert into %s", collection), err)
	}
	if len(rows) != 1 {
		return nil, fmt.Errorf("insert into %s returned %d rows", collection, len(rows))
	}
	return rows[0], nil
}

// Update applies patch to every row matching filters.
func (s *Store) Update(ctx context.Context, collection string, filters []storage.Filter, patch storage.Record) (rows []storage.Record, err error) {
	if err := (storage.Query{Collection: collection, Filters: filters}).Validate(); err != nil {
		return nil, err
	}
	if err := storage.ValidateRecord(patch); err != nil {
		return nil, err
	}
	if len(filters) == 0 {
		return nil, fmt.Errorf("update of %s requires at least one filter", collection)
	}
	if len(patch) == 0 {
		return nil, fmt.Errorf("update of %s has nothing to set", collection)
	}
	ctx, done := s.begin(ctx, "update", collection)
	defer func() { done(err) }()

	query, args, err := buildUpdate(collection, filters, patch)
	if err != nil {
		return nil, err
	}

	result, err := s.dbs.Primary().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translateError(fmt.Sprintf("failed to update %s", collection), err)
	}
	defer result.Close()

	return scanRecords(result)
}

func (s *Store) begin(ctx context.Context, op, collection string) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "store."+op)
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.collection", collection),
	)
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		if s.observer != nil {
			s.observer.ObserveStoreOperation(op, collection, time.Since(start), err)
		}
	}
}

func translateError(msg string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("%s: %w: %s", msg, storage.ErrConflict, pqErr.Message)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func quote(name string) string {
	return pq.QuoteIdentifier(name)
}

func buildSelect(q storage.Query) (string, []any) {
	var b strings.Builder
	var args []any

	b.WriteString("SELECT base.*")
	for _, e := range q.Embeds {
		b.WriteString(", ")
		b.WriteString(embedSQL(e))
		b.WriteString(" AS ")
		b.WriteString(quote(e.Key()))
	}
	fmt.Fprintf(&b, " FROM %s AS base", quote(q.Collection))

	for i, f := range q.Filters {
		if i == 0 {
			b.WriteString(" WHERE ")
		} else {
			b.WriteString(" AND ")
		}
		args = append(args, param(f.Value))
		fmt.Fprintf(&b, "base.%s = $%d", quote(f.Column), len(args))
	}

	if q.Order != nil {
		dir := "ASC"
		if q.Order.Desc {
			dir = "DESC"
		}
		fmt.Fprintf(&b, " ORDER BY base.%s %s", quote(q.Order.Column), dir)
	}
	if q.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", q.Limit)
	}
	return b.String(), args
}

func columnList(alias string, columns []string) string {
	if len(columns) == 0 {
		return alias + ".*"
	}
	parts := make([]string, len(columns))
	for i, c := range columns {
		parts[i] = alias + "." + quote(c)
	}
	return strings.Join(parts, ", ")
}

func embedSQL(e storage.Embed) string {
	if e.Through == nil {
		return fmt.Sprintf(
			"(SELECT row_to_json(e) FROM (SELECT %s FROM %s AS t WHERE t.\"id\" = base.%s) AS e)",
			columnList("t", e.Columns), quote(e.Collection), quote(e.ForeignKey),
		)
	}
	return fmt.Sprintf(
		"(SELECT COALESCE(json_agg(row_to_json(e)), '[]'::json) FROM (SELECT %s FROM %s AS t JOIN %s AS j ON j.%s = t.\"id\" WHERE j.%s = base.\"id\") AS e)",
		columnList("t", e.Columns), quote(e.Collection), quote(e.Through.Collection),
		quote(e.Through.TargetKey), quote(e.Through.SourceKey),
	)
}

func sortedKeys(rec storage.Record) []string {
	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func buildInsert(collection string, rec storage.Record) (string, []any, error) {
	if len(rec) == 0 {
		return fmt.Sprintf("INSERT INTO %s DEFAULT VALUES RETURNING *", quote(collection)), nil, nil
	}

	keys := sortedKeys(rec)
	cols := make([]string, len(keys))
	placeholders := make([]string, len(keys))
	args := make([]any, len(keys))
	for i, k := range keys {
		v, err := encodeValue(rec[k])
		if err != nil {
			return "", nil, fmt.Errorf("column %s: %w", k, err)
		}
		cols[i] = quote(k)
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = v
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING *",
		quote(collection), strings.Join(cols, ", "), strings.Join(placeholders, ", "))
	return query, args, nil
}

func buildUpdate(collection string, filters []storage.Filter, patch storage.Record) (string, []any, error) {
	keys := sortedKeys(patch)
	sets := make([]string, len(keys))
	args := make([]any, 0, len(keys)+len(filters))
	for i, k := range keys {
		v, err := encodeValue(patch[k])
		if err != nil {
			return "", nil, fmt.Errorf("column %s: %w", k, err)
		}
		args = append(args, v)
		sets[i] = fmt.Sprintf("%s = $%d", quote(k), len(args))
	}

	wheres := make([]string, len(filters))
	for i, f := range filters {
		args = append(args, param(f.Value))
		wheres[i] = fmt.Sprintf("%s = $%d", quote(f.Column), len(args))
	}

	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s RETURNING *",
		quote(collection), strings.Join(sets, ", "), strings.Join(wheres, " AND "))
	return query, args, nil
}

func param(v any) any {
	enc, err := encodeValue(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return enc
}

// encodeValue converts structured values to JSON text for json/jsonb columns.
func encodeValue(v any) (any, error) {
	switch t := v.(type) {
	case nil, string, bool, int, int32, int64, float32, float64, time.Time, []byte:
		return t, nil
	case json.RawMessage:
		return string(t), nil
	case json.Number:
		return t.String(), nil
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	}
}
