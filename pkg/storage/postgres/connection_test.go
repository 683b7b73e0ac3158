package postgres

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solarpro/erp/pkg/storage"
)

func TestParseReplicaURLs(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{name: "empty string", input: "", expected: nil},
		{name: "single URL", input: "postgres://localhost:5432/db", expected: []string{"postgres://localhost:5432/db"}},
		{
			name:     "whitespace and empty entries",
			input:    " postgres://host1:5432/db ,, postgres://host2:5432/db ,",
			expected: []string{"postgres://host1:5432/db", "postgres://host2:5432/db"},
		},
		{name: "only commas", input: " , , ", expected: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseReplicaURLs(tt.input))
		})
	}
}

func TestConnectionConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  ConnectionConfig
		wantErr error
	}{
		{name: "missing URL", config: ConnectionConfig{APIKey: "k"}, wantErr: storage.ErrMissingURL},
		{name: "missing API key", config: ConnectionConfig{PrimaryURL: "postgres://localhost/db"}, wantErr: storage.ErrMissingAPIKey},
		{name: "complete", config: ConnectionConfig{PrimaryURL: "postgres://localhost/db", APIKey: "k"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestNewConnectionManager_FailsFastWithoutSettings(t *testing.T) {
	_, err := NewConnectionManager(context.Background(), ConnectionConfig{}, nil)
	assert.ErrorIs(t, err, storage.ErrMissingURL)
}

func TestConnectionConfigFrom(t *testing.T) {
	cfg := storage.DefaultConfig()
	cfg.URL = "postgres://primary/db"
	cfg.ReplicaURLs = "postgres://r1/db,postgres://r2/db"
	cfg.APIKey = "anon"

	cc := ConnectionConfigFrom(cfg)
	assert.Equal(t, "postgres://primary/db", cc.PrimaryURL)
	assert.Equal(t, []string{"postgres://r1/db", "postgres://r2/db"}, cc.ReplicaURLs)
	assert.Equal(t, "anon", cc.APIKey)
	assert.Equal(t, 20, cc.MaxConns)
}

func TestConnectionManager_Replica(t *testing.T) {
	t.Run("no replicas - fallback to primary", func(t *testing.T) {
		primaryDB := &sql.DB{}
		cm := &ConnectionManager{primary: primaryDB}
		assert.Same(t, primaryDB, cm.Replica())
	})

	t.Run("round-robin selection", func(t *testing.T) {
		replica1, replica2, replica3 := &sql.DB{}, &sql.DB{}, &sql.DB{}
		cm := &ConnectionManager{
			primary:  &sql.DB{},
			replicas: []*sql.DB{replica1, replica2, replica3},
		}

		selections := make(map[*sql.DB]int)
		for i := 0; i < 30; i++ {
			selections[cm.Replica()]++
		}

		assert.Equal(t, 10, selections[replica1])
		assert.Equal(t, 10, selections[replica2])
		assert.Equal(t, 10, selections[replica3])
	})

	t.Run("concurrent selection", func(t *testing.T) {
		replica1, replica2 := &sql.DB{}, &sql.DB{}
		cm := &ConnectionManager{primary: &sql.DB{}, replicas: []*sql.DB{replica1, replica2}}

		var wg sync.WaitGroup
		results := make(chan *sql.DB, 100)
		for i := 0; i < 100; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results <- cm.Replica()
			}()
		}
		wg.Wait()
		close(results)

		selections := make(map[*sql.DB]int)
		for r := range results {
			selections[r]++
		}
		assert.Equal(t, 50, selections[replica1])
		assert.Equal(t, 50, selections[replica2])
	})
}

func TestConnectionManager_HealthCheck(t *testing.T) {
	t.Run("healthy primary and replica", func(t *testing.T) {
		primaryDB, primaryMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer primaryDB.Close()
		replicaDB, replicaMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer replicaDB.Close()

		primaryMock.ExpectPing()
		replicaMock.ExpectPing()

		cm := &ConnectionManager{primary: primaryDB, replicas: []*sql.DB{replicaDB}}
		assert.NoError(t, cm.HealthCheck(context.Background()))
		assert.NoError(t, primaryMock.ExpectationsWereMet())
		assert.NoError(t, replicaMock.ExpectationsWereMet())
	})

	t.Run("unhealthy primary", func(t *testing.T) {
		primaryDB, primaryMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer primaryDB.Close()

		primaryMock.ExpectPing().WillReturnError(errors.New("connection refused"))

		cm := &ConnectionManager{primary: primaryDB}
		err = cm.HealthCheck(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "primary unhealthy")
	})

	t.Run("all replicas down", func(t *testing.T) {
		primaryDB, primaryMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer primaryDB.Close()
		replicaDB, replicaMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer replicaDB.Close()

		primaryMock.ExpectPing()
		replicaMock.ExpectPing().WillReturnError(errors.New("timeout"))

		cm := &ConnectionManager{primary: primaryDB, replicas: []*sql.DB{replicaDB}}
		err = cm.HealthCheck(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "all replicas unhealthy")
	})
}

func TestConnectionManager_RemoveUnhealthyReplicas(t *testing.T) {
	goodDB, goodMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer goodDB.Close()
	badDB, badMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	goodMock.ExpectPing()
	badMock.ExpectPing().WillReturnError(errors.New("down"))

	cm := &ConnectionManager{primary: &sql.DB{}, replicas: []*sql.DB{goodDB, badDB}}
	removed := cm.RemoveUnhealthyReplicas(context.Background())

	assert.Equal(t, 1, removed)
	assert.Same(t, goodDB, cm.Replica())
	assert.NoError(t, goodMock.ExpectationsWereMet())
}

func TestStore_ReadsFromReplicaWritesToPrimary(t *testing.T) {
	primaryDB, primaryMock, err := sqlmock.New()
	require.NoError(t, err)
	defer primaryDB.Close()
	replicaDB, replicaMock, err := sqlmock.New()
	require.NoError(t, err)
	defer replicaDB.Close()

	replicaMock.ExpectQuery(`SELECT (.+) FROM "languages"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "code"}).AddRow("l1", "en"))
	primaryMock.ExpectQuery(`INSERT INTO "languages"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "code"}).AddRow("l2", "fr"))

	cm := &ConnectionManager{primary: primaryDB, replicas: []*sql.DB{replicaDB}}
	store := NewStoreWithConnections(cm)

	_, err = store.Select(context.Background(), storage.From("languages"))
	require.NoError(t, err)
	_, err = store.Insert(context.Background(), "languages", storage.Record{"code": "fr"})
	require.NoError(t, err)

	assert.NoError(t, primaryMock.ExpectationsWereMet())
	assert.NoError(t, replicaMock.ExpectationsWereMet())
}
