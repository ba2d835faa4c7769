package adapters

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgxQuerier is satisfied by both *pgxpool.Pool and *pgxpool.Conn.
type pgxQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// pgxExecutor implements DBExecutor on a pgxQuerier.
type pgxExecutor struct {
	querier pgxQuerier
}

func (e pgxExecutor) Query(ctx context.Context, query string) (DBRows, error) {
	rows, err := e.querier.Query(ctx, query)
	if err != nil {
		return nil, err
	}

	return pgxRows{Rows: rows}, nil
}

func (e pgxExecutor) Exec(ctx context.Context, query string) (DBResult, error) {
	tag, err := e.querier.Exec(ctx, query)
	if err != nil {
		return nil, err
	}

	return pgxResult{tag: tag}, nil
}

// PGXAdapter implements DBAdapter for pgxpool.Pool.
type PGXAdapter struct {
	pgxExecutor
	pool *pgxpool.Pool
}

func NewPGXAdapter(pool *pgxpool.Pool) *PGXAdapter {
	return &PGXAdapter{pgxExecutor: pgxExecutor{querier: pool}, pool: pool}
}

func (p *PGXAdapter) Acquire(ctx context.Context) (DBConn, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	return pgxConn{pgxExecutor: pgxExecutor{querier: conn}, conn: conn}, nil
}

type pgxConn struct {
	pgxExecutor
	conn *pgxpool.Conn
}

func (c pgxConn) Release() error {
	c.conn.Release()
	return nil
}

// pgxRows adapts pgx.Rows, whose Close reports nothing.
type pgxRows struct {
	pgx.Rows
}

func (r pgxRows) Close() error {
	r.Rows.Close()
	return nil
}

type pgxResult struct {
	tag pgconn.CommandTag
}

func (r pgxResult) RowsAffected() (int64, error) {
	return r.tag.RowsAffected(), nil
}

// LastInsertId is not available with pgx, ids come back through RETURNING.
func (r pgxResult) LastInsertId() (int64, error) {
	return 0, ErrLastInsertIDUnsupported
}
