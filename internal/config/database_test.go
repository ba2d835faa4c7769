package config_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xef5000/UltimateLogger/internal/config"
	"github.com/xef5000/UltimateLogger/logstore"
	"github.com/xef5000/UltimateLogger/logstore/sqlengine"
)

func Test_OpenStore_SQLite_ReturnsUsableStore(t *testing.T) {
	// setup
	ctx := context.Background()
	cfg := config.Default().Database
	cfg.SQLite.File = filepath.Join(t.TempDir(), "logs.db")
	cfg.Table = "server_logs"

	// act
	store, closeDB, err := config.OpenStore(ctx, cfg)

	// assert
	require.NoError(t, err)
	defer closeDB()

	assert.Equal(t, sqlengine.DialectSQLite, store.Dialect())
	assert.Equal(t, "server_logs", store.TableName())
	require.NoError(t, store.CreateTable(ctx))

	results, err := store.InsertBatch(ctx, []logstore.Record{
		logstore.NewRecord("player_chat", logstore.NewPayload(logstore.StringField("message", "hi"))),
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.NoError(t, results[0].Err)
}

func Test_OpenStore_WhenTypeIsUnsupported_Fails(t *testing.T) {
	cfg := config.Default().Database
	cfg.Type = "ORACLE"

	_, _, err := config.OpenStore(context.Background(), cfg)

	assert.ErrorIs(t, err, logstore.ErrUnsupportedDialect)
}

func Test_PGXPoolConfig_AppliesPoolSize(t *testing.T) {
	// arrange
	cfg := config.Default().Database
	cfg.Pool.MaximumPoolSize = 25

	// act
	poolConfig, err := config.PGXPoolConfig(cfg)

	// assert
	require.NoError(t, err)
	assert.Equal(t, int32(25), poolConfig.MaxConns)
	assert.Equal(t, "localhost", poolConfig.ConnConfig.Host)
	assert.Equal(t, uint16(5432), poolConfig.ConnConfig.Port)
}
