// Package oteladapters connects the logstore observability interfaces to OpenTelemetry.
package oteladapters

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel/log"

	"github.com/xef5000/UltimateLogger/logstore"
)

// NewSlogBridgeLogger returns a *slog.Logger that emits through the global OpenTelemetry
// LoggerProvider, correlating records with the active span.
func NewSlogBridgeLogger(name string) *slog.Logger {
	return otelslog.NewLogger(name)
}

// OTelLogger implements logstore.Logger on top of the OpenTelemetry logging API directly.
type OTelLogger struct {
	logger log.Logger
}

func NewOTelLogger(logger log.Logger) *OTelLogger {
	return &OTelLogger{logger: logger}
}

func (l *OTelLogger) Debug(msg string, args ...any) {
	l.emit(log.SeverityDebug, msg, args...)
}

func (l *OTelLogger) Info(msg string, args ...any) {
	l.emit(log.SeverityInfo, msg, args...)
}

func (l *OTelLogger) Warn(msg string, args ...any) {
	l.emit(log.SeverityWarn, msg, args...)
}

func (l *OTelLogger) Error(msg string, args ...any) {
	l.emit(log.SeverityError, msg, args...)
}

// emit converts slog-style key/value args to log attributes. A trailing key without value is dropped.
func (l *OTelLogger) emit(severity log.Severity, msg string, args ...any) {
	record := log.Record{}
	record.SetSeverity(severity)
	record.SetBody(log.StringValue(msg))

	for i := 0; i+1 < len(args); i += 2 {
		if key, ok := args[i].(string); ok {
			record.AddAttributes(log.String(key, stringValue(args[i+1])))
		}
	}

	l.logger.Emit(context.Background(), record)
}

func stringValue(v any) string {
	if s, ok := v.(string); ok {
		return s
	}

	return slog.AnyValue(v).String()
}

var _ logstore.Logger = (*OTelLogger)(nil)
