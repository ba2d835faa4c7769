package sqlengine

import (
	"context"
	"math"
	"strconv"
	"time"

	"github.com/xef5000/UltimateLogger/logstore"
)

const (
	metricQueryDuration    = "ultimatelogger_query_duration_seconds"
	metricInsertDuration   = "ultimatelogger_insert_duration_seconds"
	metricRecordsInserted  = "ultimatelogger_batch_inserted_records"
	metricRecordsDeleted   = "ultimatelogger_deleted_records"
	metricDatabaseErrors   = "ultimatelogger_database_errors_total"
	spanNamePrefix         = "logstore."
	spanAttrOperation      = "operation"
	spanAttrRecordCount    = "record_count"
	spanAttrErrorType      = "error_type"
	labelStatus            = "status"
	statusSuccess          = "success"
	statusError            = "error"
	errorTypeAcquire       = "acquire"
	errorTypeBuildQuery    = "build_query"
	errorTypeDatabaseQuery = "database_query"
	errorTypeDatabaseExec  = "database_exec"
	errorTypeRowScan       = "row_scan"
)

// logQueryWithDuration logs SQL queries with execution time at debug level if the logger is configured.
func (s *Store) logQueryWithDuration(
	sqlQuery string,
	action string,
	duration time.Duration,
) {
	if s.logger != nil {
		s.logger.Debug(logMsgSQLExecuted+action, logAttrDurationMS, s.toMilliseconds(duration), logAttrQuery, sqlQuery)
	}
}

// logOperation logs operational information at info level if the logger is configured.
func (s *Store) logOperation(action string, args ...any) {
	if s.logger != nil {
		s.logger.Info(logMsgOperation+action, args...)
	}
}

// logError logs error information at the error level if the logger is configured.
func (s *Store) logError(
	message string,
	err error,
	args ...any,
) {
	if s.logger != nil {
		allArgs := []any{logAttrError, err.Error()}
		allArgs = append(allArgs, args...)
		s.logger.Error(message, allArgs...)
	}
}

func (s *Store) logWarn(message string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(message, args...)
	}
}

func (s *Store) logDroppedCondition(c logstore.Condition) {
	s.logWarn(logMsgConditionDropped, logAttrKey, c.Key, logAttrComparator, string(c.Comparator))
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func (s *Store) toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}

// recordErrorMetrics records error metrics if the metrics collector is configured.
func (s *Store) recordErrorMetrics(operation, errorType string) {
	if s.metricsCollector != nil {
		s.metricsCollector.IncrementCounter(metricDatabaseErrors, map[string]string{
			spanAttrOperation: operation,
			labelStatus:       statusError,
			spanAttrErrorType: errorType,
		})
	}
}

func (s *Store) recordDurationMetrics(metric string, duration time.Duration, operation, status string) {
	if s.metricsCollector != nil {
		s.metricsCollector.RecordDuration(metric, duration, map[string]string{
			spanAttrOperation: operation,
			labelStatus:       status,
		})
	}
}

func (s *Store) recordCountMetrics(metric string, count int64, operation string) {
	if s.metricsCollector != nil && count > 0 {
		s.metricsCollector.RecordValue(metric, float64(count), map[string]string{
			spanAttrOperation: operation,
		})
	}
}

// startSpan starts a tracing span if the tracing collector is configured.
func (s *Store) startSpan(ctx context.Context, operation string) (context.Context, logstore.SpanContext) {
	if s.tracingCollector == nil {
		return ctx, nil
	}

	return s.tracingCollector.StartSpan(ctx, spanNamePrefix+operation, map[string]string{
		spanAttrOperation: operation,
	})
}

// finishSpan finishes a tracing span with the outcome of the operation.
func (s *Store) finishSpan(span logstore.SpanContext, err error, recordCount int64) {
	if s.tracingCollector == nil || span == nil {
		return
	}

	status := statusSuccess
	if err != nil {
		status = statusError
	}

	s.tracingCollector.FinishSpan(span, status, map[string]string{
		spanAttrRecordCount: strconv.FormatInt(recordCount, 10),
	})
}
