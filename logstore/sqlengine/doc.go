// Package sqlengine stores log records in a single SQL table, on SQLite (embedded) or PostgreSQL (networked).
//
// Statements are built with goqu for the selected dialect and executed through one of the
// supported adapters (pgx, sql.DB, sqlx). Filters are translated into SQL over the JSON payload
// column, so paging, clearing and counting never load non-matching records.
//
// Key features:
//   - Multiple database adapter support (PGX, SQL, SQLX)
//   - Per-record isolation for batch inserts, generated ids reported per record
//   - AND/OR payload conditions translated to dialect-specific JSON extraction
//   - Configurable table name, optional logger, metrics and tracing collectors
//
// Usage examples:
//
//	db, _ := sqlx.Open("sqlite3", "logs.db")
//	store, _ := sqlengine.NewStoreFromSQLX(db, sqlengine.DialectSQLite, sqlengine.WithLogger(logger))
//	_ = store.CreateTable(ctx)
//
//	results, _ := store.InsertBatch(ctx, records)
//	page, _ := store.QueryPage(ctx, filter, 20, 0)
package sqlengine
