package helper

import (
	"context"
	"log/slog"
	"os"
	"sync"
)

// LogHandlerSpy is a slog.Handler implementation that captures log records for testing.
type LogHandlerSpy struct {
	records     []slog.Record
	mu          sync.Mutex
	logToStdout bool
}

// NewLogHandlerSpy creates a new LogHandlerSpy.
// Switchable to log to stdout, which can be useful for debugging tests by seeing the actual log output.
func NewLogHandlerSpy(logToStdOut bool) *LogHandlerSpy {
	return &LogHandlerSpy{
		records:     make([]slog.Record, 0),
		logToStdout: logToStdOut,
	}
}

// Handle implements slog.Handler interface.
func (s *LogHandlerSpy) Handle(ctx context.Context, record slog.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record.Clone())

	if s.logToStdout {
		jsonHandler := slog.NewJSONHandler(os.Stdout, nil)
		_ = jsonHandler.Handle(ctx, record)
	}

	return nil
}

// Enabled implements slog.Handler interface.
func (s *LogHandlerSpy) Enabled(_ context.Context, _ slog.Level) bool {
	return true
}

// WithAttrs implements slog.Handler interface.
func (s *LogHandlerSpy) WithAttrs(_ []slog.Attr) slog.Handler {
	return s
}

// WithGroup implements slog.Handler interface.
func (s *LogHandlerSpy) WithGroup(_ string) slog.Handler {
	return s
}

// HasErrorLog checks if there's an error-level log record with the specified message.
func (s *LogHandlerSpy) HasErrorLog(message string) bool {
	return s.HasLogWithMessage(slog.LevelError, message).Assert()
}

// SpyLogRecordMatcher provides a fluent interface for checking log record attributes.
type SpyLogRecordMatcher struct {
	record *slog.Record
	found  bool
}

// HasLogWithMessage starts a fluent chain to check the first log record with the given level and message.
func (s *LogHandlerSpy) HasLogWithMessage(level slog.Level, message string) *SpyLogRecordMatcher {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, record := range s.records {
		if record.Level == level && record.Message == message {
			return &SpyLogRecordMatcher{record: &record, found: true}
		}
	}

	return &SpyLogRecordMatcher{found: false}
}

// HasDebugLogWithMessage starts a fluent chain to check a debug-level log record.
func (s *LogHandlerSpy) HasDebugLogWithMessage(message string) *SpyLogRecordMatcher {
	return s.HasLogWithMessage(slog.LevelDebug, message)
}

// HasInfoLogWithMessage starts a fluent chain to check an info-level log record.
func (s *LogHandlerSpy) HasInfoLogWithMessage(message string) *SpyLogRecordMatcher {
	return s.HasLogWithMessage(slog.LevelInfo, message)
}

// WithDurationMS checks if the log record has a duration_ms attribute with a non-negative value.
func (m *SpyLogRecordMatcher) WithDurationMS() *SpyLogRecordMatcher {
	return m.withNonNegative("duration_ms")
}

// WithRecordCount checks if the log record has a record_count attribute with a non-negative value.
func (m *SpyLogRecordMatcher) WithRecordCount() *SpyLogRecordMatcher {
	return m.withNonNegative("record_count")
}

// WithAttribute checks if the log record has the attribute with the given string representation.
func (m *SpyLogRecordMatcher) WithAttribute(key, value string) *SpyLogRecordMatcher {
	if !m.found {
		return m
	}

	hasAttribute := false
	m.record.Attrs(func(attr slog.Attr) bool {
		if attr.Key == key && attr.Value.String() == value {
			hasAttribute = true
			return false
		}

		return true
	})

	m.found = hasAttribute

	return m
}

func (m *SpyLogRecordMatcher) withNonNegative(key string) *SpyLogRecordMatcher {
	if !m.found {
		return m
	}

	hasValue := false
	m.record.Attrs(func(attr slog.Attr) bool {
		if attr.Key != key {
			return true
		}

		switch attr.Value.Kind() {
		case slog.KindInt64:
			hasValue = attr.Value.Int64() >= 0
		case slog.KindUint64:
			hasValue = true
		case slog.KindFloat64:
			hasValue = attr.Value.Float64() >= 0
		default:
			// other kinds never carry counts or durations
		}

		return false
	})

	m.found = hasValue

	return m
}

// Assert returns true if all conditions in the fluent chain were met.
func (m *SpyLogRecordMatcher) Assert() bool {
	return m.found
}
