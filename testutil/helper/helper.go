package helper

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // driver registration
	"github.com/stretchr/testify/require"

	"github.com/xef5000/UltimateLogger/logstore"
	"github.com/xef5000/UltimateLogger/logstore/sqlengine"
)

const (
	FixtureTypeOrderPlaced = "order_placed"
	FixtureTypeUserLogin   = "user_login"
)

// FakeClock is the fixed point in time fixtures are stamped with.
var FakeClock = time.Date(2024, time.March, 14, 9, 26, 53, 0, time.UTC)

// OpenSQLiteDB opens a file-backed SQLite database in the test's temp dir and closes it on cleanup.
// A file is used instead of :memory: so all pooled connections see the same data.
func OpenSQLiteDB(t testing.TB) *sqlx.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "logs.db") + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sqlx.Open("sqlite3", dsn)
	require.NoError(t, err, "error in arranging test database")

	t.Cleanup(func() { _ = db.Close() })

	return db
}

// NewSQLiteStore returns a Store over a fresh SQLite database with the logs table created.
func NewSQLiteStore(t testing.TB, options ...sqlengine.Option) *sqlengine.Store {
	t.Helper()

	store, err := sqlengine.NewStoreFromSQLX(OpenSQLiteDB(t), sqlengine.DialectSQLite, options...)
	require.NoError(t, err, "error in arranging test store")
	require.NoError(t, store.CreateTable(context.Background()), "error in arranging test table")

	return store
}

// GivenStoredRecords inserts the records and returns them with their assigned ids.
func GivenStoredRecords(t testing.TB, store *sqlengine.Store, records ...logstore.Record) []logstore.Record {
	t.Helper()

	results, err := store.InsertBatch(context.Background(), records)
	require.NoError(t, err, "error in arranging test data")

	stored := make([]logstore.Record, len(records))
	for i, result := range results {
		require.NoError(t, result.Err, "error in arranging test data")
		stored[i] = records[i]
		stored[i].ID = result.ID
	}

	return stored
}

func FixtureOrderPlaced(orderID string, amount float64, country string) logstore.Record {
	record := logstore.NewRecord(FixtureTypeOrderPlaced, logstore.NewPayload(
		logstore.StringField("order_id", orderID),
		logstore.NumberField("amount", amount),
		logstore.StringField("country", country),
		logstore.BoolField("gift", false),
	))
	record.Timestamp = FakeClock

	return record
}

func FixtureUserLogin(username string, attempts int64) logstore.Record {
	record := logstore.NewRecord(FixtureTypeUserLogin, logstore.NewPayload(
		logstore.StringField("username", username),
		logstore.IntField("attempts", attempts),
	))
	record.Timestamp = FakeClock

	return record
}

func FixtureExpiringRecord(recordType string, expiresAt time.Time) logstore.Record {
	record := logstore.NewRecord(recordType, logstore.NewPayload(logstore.StringField("note", "short lived")))
	record.Timestamp = FakeClock
	record.ExpiresAt = &expiresAt

	return record
}
