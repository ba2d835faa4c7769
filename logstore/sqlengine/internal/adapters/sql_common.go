package adapters

import (
	"context"
	"database/sql"
)

type stdConn struct {
	conn *sql.Conn
}

func (c *stdConn) Query(ctx context.Context, query string) (DBRows, error) {
	return wrapRows(c.conn.QueryContext(ctx, query))
}

func (c *stdConn) Exec(ctx context.Context, query string) (DBResult, error) {
	return wrapResult(c.conn.ExecContext(ctx, query))
}

func (c *stdConn) Release() error {
	return c.conn.Close()
}

// *sql.Rows and sql.Result already satisfy DBRows and DBResult, only nil errors need care.

func wrapRows(rows *sql.Rows, err error) (DBRows, error) {
	if err != nil {
		return nil, err
	}

	return rows, nil
}

func wrapResult(result sql.Result, err error) (DBResult, error) {
	if err != nil {
		return nil, err
	}

	return result, nil
}
