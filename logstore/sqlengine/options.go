package sqlengine

import (
	"github.com/xef5000/UltimateLogger/logstore"
)

// Option defines a functional option for configuring Store.
type Option func(*Store) error

// WithTableName sets the table name for the Store.
func WithTableName(tableName string) Option {
	return func(s *Store) error {
		if tableName == "" {
			return logstore.ErrEmptyTableName
		}

		s.tableName = tableName

		return nil
	}
}

// WithLogger sets the logger for the Store.
// The logger will receive messages at different levels based on the logger's configured level:
//
// Debug level: SQL queries with execution timing (development use)
// Info level: Record counts, durations (production-safe)
// Warn level: Non-critical issues like undecodable payloads, dropped conditions, release failures
// Error level: Critical failures that cause operation failures.
func WithLogger(logger logstore.Logger) Option {
	return func(s *Store) error {
		s.logger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the Store.
// It receives query/insert durations, inserted and deleted record counts and database errors.
func WithMetrics(collector logstore.MetricsCollector) Option {
	return func(s *Store) error {
		s.metricsCollector = collector
		return nil
	}
}

// WithTracing sets the tracing collector for the Store.
// Every storage operation becomes one span.
func WithTracing(collector logstore.TracingCollector) Option {
	return func(s *Store) error {
		s.tracingCollector = collector
		return nil
	}
}
