package adapters

import (
	"context"
	"errors"
)

// ErrLastInsertIDUnsupported is returned by drivers that report generated ids only through RETURNING.
var ErrLastInsertIDUnsupported = errors.New("last insert id is not supported by this driver")

// DBExecutor runs plain (already interpolated) SQL statements.
type DBExecutor interface {
	Query(ctx context.Context, query string) (DBRows, error)
	Exec(ctx context.Context, query string) (DBResult, error)
}

// DBAdapter defines the interface for database operations needed by the log store.
type DBAdapter interface {
	DBExecutor
	Acquire(ctx context.Context) (DBConn, error)
}

// DBConn is one connection taken out of the pool. Release must be called exactly once.
type DBConn interface {
	DBExecutor
	Release() error
}

// DBRows defines the interface for query result rows.
type DBRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// DBResult defines the interface for execution results.
type DBResult interface {
	RowsAffected() (int64, error)
	LastInsertId() (int64, error)
}
