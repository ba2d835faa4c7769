package adapters

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
)

// SQLAdapter implements DBAdapter on a database/sql pool.
type SQLAdapter struct {
	db *sql.DB
}

func NewSQLAdapter(db *sql.DB) *SQLAdapter {
	return &SQLAdapter{db: db}
}

// NewSQLXAdapter runs on the *sql.DB underneath an sqlx pool. The store builds its own SQL,
// so none of sqlx's mapping helpers are involved.
func NewSQLXAdapter(db *sqlx.DB) *SQLAdapter {
	return &SQLAdapter{db: db.DB}
}

func (a *SQLAdapter) Query(ctx context.Context, query string) (DBRows, error) {
	return wrapRows(a.db.QueryContext(ctx, query))
}

func (a *SQLAdapter) Exec(ctx context.Context, query string) (DBResult, error) {
	return wrapResult(a.db.ExecContext(ctx, query))
}

// Acquire pins one pooled connection until Release.
func (a *SQLAdapter) Acquire(ctx context.Context) (DBConn, error) {
	conn, err := a.db.Conn(ctx)
	if err != nil {
		return nil, err
	}

	return &stdConn{conn: conn}, nil
}
