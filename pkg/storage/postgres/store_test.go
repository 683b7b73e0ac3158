package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solarpro/erp/pkg/storage"
)

type recordingObserver struct {
	ops []string
	err []error
}

func (o *recordingObserver) ObserveStoreOperation(op, collection string, _ time.Duration, err error) {
	o.ops = append(o.ops, op+":"+collection)
	o.err = append(o.err, err)
}

func TestBuildSelect(t *testing.T) {
	tests := []struct {
		name  string
		query storage.Query
		sql   string
		args  []any
	}{
		{
			name:  "plain",
			query: storage.From("roles"),
			sql:   `SELECT base.* FROM "roles" AS base`,
		},
		{
			name:  "filters order and limit",
			query: storage.Query{Collection: "leads", Filters: []storage.Filter{storage.Eq("status", "new"), storage.Eq("priority", "high")}, Order: &storage.Order{Column: "created_at", Desc: true}, Limit: 10},
			sql:   `SELECT base.* FROM "leads" AS base WHERE base."status" = $1 AND base."priority" = $2 ORDER BY base."created_at" DESC LIMIT 10`,
			args:  []any{"new", "high"},
		},
		{
			name:  "to-one embed",
			query: storage.From("leads").With(storage.Embed{Collection: "lead_sources", ForeignKey: "source_id", Columns: []string{"name"}}),
			sql:   `SELECT base.*, (SELECT row_to_json(e) FROM (SELECT t."name" FROM "lead_sources" AS t WHERE t."id" = base."source_id") AS e) AS "lead_sources" FROM "leads" AS base`,
		},
		{
			name: "many-to-many embed",
			query: storage.From("leads").With(storage.Embed{Collection: "tags", Through: &storage.Through{
				Collection: "lead_tags", SourceKey: "lead_id", TargetKey: "tag_id",
			}}),
			sql: `SELECT base.*, (SELECT COALESCE(json_agg(row_to_json(e)), '[]'::json) FROM (SELECT t.* FROM "tags" AS t JOIN "lead_tags" AS j ON j."tag_id" = t."id" WHERE j."lead_id" = base."id") AS e) AS "tags" FROM "leads" AS base`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args := buildSelect(tt.query)
			assert.Equal(t, tt.sql, sql)
			assert.Equal(t, tt.args, args)
		})
	}
}

func TestBuildInsert(t *testing.T) {
	sql, args, err := buildInsert("workflows", storage.Record{
		"name":   "Install",
		"config": map[string]any{"steps": []any{"survey"}},
	})
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "workflows" ("config", "name") VALUES ($1, $2) RETURNING *`, sql)
	assert.Equal(t, []any{`{"steps":["survey"]}`, "Install"}, args)

	sql, args, err = buildInsert("roles", storage.Record{})
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "roles" DEFAULT VALUES RETURNING *`, sql)
	assert.Empty(t, args)
}

func TestBuildUpdate(t *testing.T) {
	sql, args, err := buildUpdate("leads", []storage.Filter{storage.Eq("id", "l1")}, storage.Record{"status": "converted"})
	require.NoError(t, err)
	assert.Equal(t, `UPDATE "leads" SET "status" = $1 WHERE "id" = $2 RETURNING *`, sql)
	assert.Equal(t, []any{"converted", "l1"}, args)
}

func TestStore_Select(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRowsWithColumnDefinition(
		sqlmock.NewColumn("id").OfType("UUID", []byte{}),
		sqlmock.NewColumn("name").OfType("TEXT", ""),
		sqlmock.NewColumn("config").OfType("JSONB", []byte{}),
		sqlmock.NewColumn("created_at").OfType("TIMESTAMPTZ", time.Time{}),
	).AddRow([]byte("wf-1"), "Install", []byte(`{"steps":["survey","permit"]}`), created)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT base.* FROM "workflows" AS base ORDER BY base."created_at" DESC`)).
		WillReturnRows(rows)

	obs := &recordingObserver{}
	store := NewStore(db).WithObserver(obs)
	got, err := store.Select(context.Background(), storage.From("workflows").OrderBy("created_at", true))
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, "wf-1", got[0]["id"])
	assert.Equal(t, "Install", got[0]["name"])
	assert.Equal(t, map[string]any{"steps": []any{"survey", "permit"}}, got[0]["config"])
	assert.Equal(t, created, got[0]["created_at"])
	assert.Equal(t, []string{"select:workflows"}, obs.ops)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_SelectEmptyReturnsEmptySlice(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT (.+) FROM "roles"`).WillReturnRows(sqlmock.NewRows([]string{"id", "name"}))

	got, err := NewStore(db).Select(context.Background(), storage.From("roles"))
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_SelectRejectsBadIdentifier(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	_, err = NewStore(db).Select(context.Background(), storage.From(`roles"; DROP TABLE roles; --`))
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_SelectOne(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT base.* FROM "user_profiles" AS base WHERE base."id" = $1 LIMIT 2`)).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "role"}).AddRow("u1", "admin"))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT base.* FROM "user_profiles" AS base WHERE base."id" = $1 LIMIT 2`)).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "role"}))

	store := NewStore(db)
	row, err := store.SelectOne(context.Background(), storage.From("user_profiles").Where("id", "u1"))
	require.NoError(t, err)
	assert.Equal(t, "admin", row["role"])

	_, err = store.SelectOne(context.Background(), storage.From("user_profiles").Where("id", "missing"))
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Insert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "roles" ("description", "name") VALUES ($1, $2) RETURNING *`)).
		WithArgs("Field installer", "Installer").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "description", "created_at"}).
			AddRow("r1", "Installer", "Field installer", time.Now()))

	rec, err := NewStore(db).Insert(context.Background(), "roles", storage.Record{
		"name":        "Installer",
		"description": "Field installer",
	})
	require.NoError(t, err)
	assert.Equal(t, "r1", rec["id"])
	assert.Equal(t, "Installer", rec["name"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_InsertUniqueViolation(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`INSERT INTO "auth_users"`).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint \"auth_users_email_key\""})

	obs := &recordingObserver{}
	_, err = NewStore(db).WithObserver(obs).Insert(context.Background(), "auth_users", storage.Record{"email": "a@example.com"})
	assert.True(t, errors.Is(err, storage.ErrConflict))
	require.Len(t, obs.err, 1)
	assert.Error(t, obs.err[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_InsertPropagatesDriverError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`INSERT INTO "roles"`).WillReturnError(errors.New("relation \"roles\" does not exist"))

	_, err = NewStore(db).Insert(context.Background(), "roles", storage.Record{"name": "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `relation "roles" does not exist`)
	assert.False(t, errors.Is(err, storage.ErrConflict))
}

func TestStore_Update(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE "leads" SET "status" = $1 WHERE "id" = $2 RETURNING *`)).
		WithArgs("converted", "l1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "status"}).AddRow("l1", "converted"))

	rows, err := NewStore(db).Update(context.Background(), "leads",
		[]storage.Filter{storage.Eq("id", "l1")}, storage.Record{"status": "converted"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "converted", rows[0]["status"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_UpdateRequiresFilter(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	_, err = NewStore(db).Update(context.Background(), "leads", nil, storage.Record{"status": "lost"})
	assert.Error(t, err)
}

func TestNormalize(t *testing.T) {
	v, err := normalize([]byte("1234.50"), "NUMERIC")
	require.NoError(t, err)
	assert.Equal(t, json.Number("1234.50"), v)

	v, err = normalize([]byte(`[{"id":"t1"}]`), "JSON")
	require.NoError(t, err)
	assert.Equal(t, []any{map[string]any{"id": "t1"}}, v)

	v, err = normalize([]byte("abc"), "UUID")
	require.NoError(t, err)
	assert.Equal(t, "abc", v)

	v, err = normalize(int64(3), "INT8")
	require.NoError(t, err)
	assert.Equal(t, int64(3), v)

	_, err = normalize([]byte("{bad"), "JSONB")
	assert.Error(t, err)
}
