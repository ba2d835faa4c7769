package postgreswrapper

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // driver registration
	"github.com/stretchr/testify/require"

	"github.com/xef5000/UltimateLogger/logstore/sqlengine"
)

const (
	envDSN         = "POSTGRES_TEST_DSN"
	envAdapterType = "ADAPTER_TYPE"
	typePGXPool    = "pgx.pool"
	typeSQLDB      = "sql.db"
	typeSQLXDB     = "sqlx.db"
)

// AdapterType returns the adapter selected by ADAPTER_TYPE.
func AdapterType() string {
	adapterType := strings.ToLower(os.Getenv(envAdapterType))
	if adapterType == "" {
		return typePGXPool
	}

	return adapterType
}

// NewStore opens a Store on a fresh, uniquely named table and creates it. The table is dropped
// and the connection closed on cleanup.
func NewStore(t testing.TB, options ...sqlengine.Option) *sqlengine.Store {
	t.Helper()

	dsn := os.Getenv(envDSN)
	if dsn == "" {
		t.Skipf("%s is not set, skipping postgres test", envDSN)
	}

	ctx := context.Background()
	tableName := "logs_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	options = append(options, sqlengine.WithTableName(tableName))

	var (
		store   *sqlengine.Store
		exec    func(query string) error
		closeDB func()
		err     error
	)

	switch AdapterType() {
	case typePGXPool:
		pool, poolErr := pgxpool.New(ctx, dsn)
		require.NoError(t, poolErr, "error connecting to DB pool in test setup")
		store, err = sqlengine.NewStoreFromPGXPool(pool, options...)
		exec = func(query string) error {
			_, execErr := pool.Exec(ctx, query)
			return execErr
		}
		closeDB = pool.Close

	case typeSQLDB:
		db, openErr := sql.Open("postgres", dsn)
		require.NoError(t, openErr, "error opening DB in test setup")
		store, err = sqlengine.NewStoreFromSQLDB(db, sqlengine.DialectPostgres, options...)
		exec = func(query string) error {
			_, execErr := db.ExecContext(ctx, query)
			return execErr
		}
		closeDB = func() { _ = db.Close() }

	case typeSQLXDB:
		db, openErr := sqlx.Open("postgres", dsn)
		require.NoError(t, openErr, "error opening DB in test setup")
		store, err = sqlengine.NewStoreFromSQLX(db, sqlengine.DialectPostgres, options...)
		exec = func(query string) error {
			_, execErr := db.ExecContext(ctx, query)
			return execErr
		}
		closeDB = func() { _ = db.Close() }

	default:
		t.Fatalf("unsupported adapter type from env: %s", AdapterType())
	}

	require.NoError(t, err, "error in arranging test store")

	t.Cleanup(func() {
		_ = exec(fmt.Sprintf("DROP TABLE IF EXISTS %s", tableName))
		closeDB()
	})

	require.NoError(t, store.CreateTable(ctx), "error in arranging test table")

	return store
}
