// Package adapters provide database adapter implementations for the SQL log store.
//
// This package implements the adapter pattern to support multiple database libraries:
// pgxpool.Pool, sql.DB, and sqlx.DB. All adapters provide equivalent functionality through
// a common DBAdapter interface. Every unit of work acquires one dedicated connection via
// Acquire and releases it when done, so a batch insert or a page query never spreads over
// several pooled connections.
package adapters
