package oteladapters_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/log/noop"

	"github.com/xef5000/UltimateLogger/logstore/oteladapters"
)

func Test_NewSlogBridgeLogger_Construction(t *testing.T) {
	assert.NotNil(t, oteladapters.NewSlogBridgeLogger("ultimatelogger"))
}

func Test_OTelLogger_AllLevelsAndArgumentShapes(t *testing.T) {
	// setup
	logger := oteladapters.NewOTelLogger(noop.NewLoggerProvider().Logger("test"))

	// act / assert
	assert.NotPanics(t, func() {
		logger.Debug("executed sql for: insert", "duration_ms", 1.5)
		logger.Info("logstore operation: batch inserted", "record_count", 3)
		logger.Warn("failed to publish persisted record", "record_id", int64(7), "error", "closed")
		logger.Error("database operation failed", "operation", "insert", "dangling")
		logger.Info("no attributes")
	})
}
