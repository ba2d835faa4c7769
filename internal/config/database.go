package config

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"           // postgres driver
	_ "github.com/mattn/go-sqlite3" // sqlite driver

	"github.com/xef5000/UltimateLogger/logstore/sqlengine"
)

const (
	defaultMaxConnLifetime   = time.Hour
	defaultMaxConnIdleTime   = time.Minute * 5
	defaultHealthCheckPeriod = time.Minute
	defaultConnectTimeout    = time.Second * 5
	sqliteBusyTimeoutMS      = 5000
)

var ErrOpeningDatabaseFailed = errors.New("opening the database failed")

// CloseFunc releases the connection pool behind a store.
type CloseFunc func()

// OpenStore opens the configured backend and wraps it in a Store using the configured table.
// The table is not created here, the engine does that.
func OpenStore(ctx context.Context, cfg DatabaseConfig, options ...sqlengine.Option) (*sqlengine.Store, CloseFunc, error) {
	d, err := sqlengine.ParseDialect(cfg.Type)
	if err != nil {
		return nil, nil, err
	}

	options = append([]sqlengine.Option{sqlengine.WithTableName(cfg.Table)}, options...)

	if d == sqlengine.DialectSQLite {
		return openSQLite(ctx, cfg, options...)
	}

	switch cfg.Postgres.Driver {
	case DriverSQLX:
		return openPostgresSQLX(ctx, cfg, options...)
	case DriverDatabaseSQL:
		return openPostgresSQLDB(ctx, cfg, options...)
	default:
		return openPostgresPGXPool(ctx, cfg, options...)
	}
}

// SQLiteDSN enables WAL so readers do not block the persister, and waits on a locked database.
func SQLiteDSN(file string) string {
	return file + "?_journal_mode=WAL&_busy_timeout=" + strconv.Itoa(sqliteBusyTimeoutMS)
}

// PostgresDSN builds a postgres URL with escaped credentials.
func PostgresDSN(cfg PostgresConfig) string {
	dsn := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.Username, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:     "/" + cfg.Database,
		RawQuery: url.Values{"sslmode": []string{cfg.SSLMode}}.Encode(),
	}

	return dsn.String()
}

func openSQLite(ctx context.Context, cfg DatabaseConfig, options ...sqlengine.Option) (*sqlengine.Store, CloseFunc, error) {
	db, err := sqlx.Open("sqlite3", SQLiteDSN(cfg.SQLite.File))
	if err != nil {
		return nil, nil, errors.Join(ErrOpeningDatabaseFailed, err)
	}

	db.SetMaxOpenConns(cfg.Pool.MaximumPoolSize)
	db.SetConnMaxIdleTime(defaultMaxConnIdleTime)

	return finishSQLX(ctx, db, sqlengine.DialectSQLite, options...)
}

func openPostgresSQLX(ctx context.Context, cfg DatabaseConfig, options ...sqlengine.Option) (*sqlengine.Store, CloseFunc, error) {
	db, err := sqlx.Open("postgres", PostgresDSN(cfg.Postgres))
	if err != nil {
		return nil, nil, errors.Join(ErrOpeningDatabaseFailed, err)
	}

	configureSQLPool(db.DB, cfg.Pool)

	return finishSQLX(ctx, db, sqlengine.DialectPostgres, options...)
}

func finishSQLX(
	ctx context.Context,
	db *sqlx.DB,
	d sqlengine.Dialect,
	options ...sqlengine.Option,
) (*sqlengine.Store, CloseFunc, error) {
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, errors.Join(ErrOpeningDatabaseFailed, err)
	}

	store, err := sqlengine.NewStoreFromSQLX(db, d, options...)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	return store, func() { _ = db.Close() }, nil
}

func openPostgresSQLDB(ctx context.Context, cfg DatabaseConfig, options ...sqlengine.Option) (*sqlengine.Store, CloseFunc, error) {
	db, err := sql.Open("postgres", PostgresDSN(cfg.Postgres))
	if err != nil {
		return nil, nil, errors.Join(ErrOpeningDatabaseFailed, err)
	}

	configureSQLPool(db, cfg.Pool)

	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, errors.Join(ErrOpeningDatabaseFailed, err)
	}

	store, err := sqlengine.NewStoreFromSQLDB(db, sqlengine.DialectPostgres, options...)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	return store, func() { _ = db.Close() }, nil
}

func configureSQLPool(db *sql.DB, pool PoolConfig) {
	db.SetMaxOpenConns(pool.MaximumPoolSize)
	db.SetMaxIdleConns(max(1, pool.MaximumPoolSize/2))
	db.SetConnMaxLifetime(defaultMaxConnLifetime)
	db.SetConnMaxIdleTime(defaultMaxConnIdleTime)
}

func openPostgresPGXPool(ctx context.Context, cfg DatabaseConfig, options ...sqlengine.Option) (*sqlengine.Store, CloseFunc, error) {
	poolConfig, err := PGXPoolConfig(cfg)
	if err != nil {
		return nil, nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, nil, errors.Join(ErrOpeningDatabaseFailed, err)
	}

	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, errors.Join(ErrOpeningDatabaseFailed, err)
	}

	store, err := sqlengine.NewStoreFromPGXPool(pool, options...)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}

	return store, pool.Close, nil
}

// PGXPoolConfig builds the pgxpool configuration for the configured postgres server.
func PGXPoolConfig(cfg DatabaseConfig) (*pgxpool.Config, error) {
	poolConfig, err := pgxpool.ParseConfig(PostgresDSN(cfg.Postgres))
	if err != nil {
		return nil, errors.Join(ErrOpeningDatabaseFailed, err)
	}

	poolConfig.MaxConns = int32(cfg.Pool.MaximumPoolSize) //nolint:gosec
	poolConfig.MinConns = 1
	poolConfig.MaxConnLifetime = defaultMaxConnLifetime
	poolConfig.MaxConnIdleTime = defaultMaxConnIdleTime
	poolConfig.HealthCheckPeriod = defaultHealthCheckPeriod
	poolConfig.ConnConfig.ConnectTimeout = defaultConnectTimeout

	return poolConfig, nil
}
