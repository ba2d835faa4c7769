package sqlengine

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/xef5000/UltimateLogger/logstore"
	"github.com/xef5000/UltimateLogger/logstore/sqlengine/internal/adapters"
)

const (
	defaultTableName         = "ultimate_logs"
	logMsgCreateTableFailed  = "failed to create logs table"
	logMsgAcquireFailed      = "failed to acquire database connection"
	logMsgReleaseFailed      = "failed to release database connection"
	logMsgBuildQueryFailed   = "failed to build query"
	logMsgDBQueryFailed      = "database query execution failed"
	logMsgDBExecFailed       = "database execution failed"
	logMsgCloseRowsFailed    = "failed to close database rows"
	logMsgScanRowFailed      = "failed to scan database row"
	logMsgRowsAffectedFailed = "failed to get rows affected count"
	logMsgUndecodablePayload = "stored payload is not a flat json object, substituting parsing_failed"
	logMsgInsertFailed       = "failed to insert record, continuing with the rest of the batch"
	logMsgConditionDropped   = "dropping filter condition with unknown comparator"
	logMsgTableCreated       = "logs table ready"
	logMsgPageQueried        = "page queried"
	logMsgBatchInserted      = "batch inserted"
	logMsgRecordsDeleted     = "records deleted"
	logMsgRecordUpdated      = "record updated"
	logMsgSQLExecuted        = "executed sql for: "
	logMsgOperation          = "logstore operation: "
	logAttrError             = "error"
	logAttrQuery             = "query"
	logAttrTable             = "table"
	logAttrRecordID          = "record_id"
	logAttrRecordType        = "record_type"
	logAttrRecordCount       = "record_count"
	logAttrFailedCount       = "failed_count"
	logAttrRowsAffected      = "rows_affected"
	logAttrDurationMS        = "duration_ms"
	logAttrKey               = "key"
	logAttrComparator        = "comparator"
	logActionCreateTable     = "create_table"
	logActionQueryPage       = "query_page"
	logActionGetByID         = "get_by_id"
	logActionDistinctTypes   = "distinct_types"
	logActionInsert          = "insert"
	logActionDeleteByID      = "delete_by_id"
	logActionDeleteMatching  = "delete_matching"
	logActionDeleteExpired   = "delete_expired"
	logActionSetArchived     = "set_archived"
	colID                    = "id"
	colLogType               = "log_type"
	colTimestamp             = "timestamp"
	colIsArchived            = "is_archived"
	colExpiresAt             = "expires_at"
	colData                  = "data"
)

type (
	sqlQueryString    = string
	rowsAffectedInt64 = int64
)

// InsertResult reports the outcome of one record of a batch.
// ID is set only when Err is nil.
type InsertResult struct {
	ID  int64
	Err error
}

// Store persists log records in a single SQL table.
// All statements are built with goqu and sent fully interpolated, so the same code runs
// over database/sql, sqlx and pgx.
type Store struct {
	db               adapters.DBAdapter
	dialect          dialect
	tableName        string
	logger           logstore.Logger
	metricsCollector logstore.MetricsCollector
	tracingCollector logstore.TracingCollector
}

type queryResultRow struct {
	id        int64
	logType   string
	timestamp int64
	archived  bool
	expiresAt sql.NullInt64
	data      []byte
}

// NewStoreFromPGXPool creates a Postgres-backed Store using a pgx Pool with optional configuration.
func NewStoreFromPGXPool(db *pgxpool.Pool, options ...Option) (*Store, error) {
	if db == nil {
		return nil, logstore.ErrNilDatabaseConnection
	}

	return newStore(adapters.NewPGXAdapter(db), DialectPostgres, options...)
}

// NewStoreFromSQLDB creates a new Store using a sql.DB with optional configuration.
func NewStoreFromSQLDB(db *sql.DB, d Dialect, options ...Option) (*Store, error) {
	if db == nil {
		return nil, logstore.ErrNilDatabaseConnection
	}

	return newStore(adapters.NewSQLAdapter(db), d, options...)
}

// NewStoreFromSQLX creates a new Store using a sqlx.DB with optional configuration.
func NewStoreFromSQLX(db *sqlx.DB, d Dialect, options ...Option) (*Store, error) {
	if db == nil {
		return nil, logstore.ErrNilDatabaseConnection
	}

	return newStore(adapters.NewSQLXAdapter(db), d, options...)
}

func newStore(db adapters.DBAdapter, d Dialect, options ...Option) (*Store, error) {
	resolved, err := lookupDialect(d)
	if err != nil {
		return nil, err
	}

	s := &Store{
		db:        db,
		dialect:   resolved,
		tableName: defaultTableName,
	}

	for _, option := range options {
		if err := option(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Dialect reports which SQL flavor the store speaks.
func (s *Store) Dialect() Dialect {
	return s.dialect.name
}

// TableName returns the name of the logs table.
func (s *Store) TableName() string {
	return s.tableName
}

// CreateTable creates the logs table and its indexes if they do not exist yet.
func (s *Store) CreateTable(ctx context.Context) error {
	ctx, span := s.startSpan(ctx, logActionCreateTable)

	var err error
	defer func() { s.finishSpan(span, err, 0) }()

	for _, stmt := range s.dialect.schemaStatements(s.tableName) {
		start := time.Now()
		_, err = s.db.Exec(ctx, stmt)
		s.logQueryWithDuration(stmt, logActionCreateTable, time.Since(start))

		if err != nil {
			s.logError(logMsgCreateTableFailed, err, logAttrTable, s.tableName)
			s.recordErrorMetrics(logActionCreateTable, errorTypeDatabaseExec)
			err = errors.Join(logstore.ErrCreatingTableFailed, err)

			return err
		}
	}

	s.logOperation(logMsgTableCreated, logAttrTable, s.tableName)

	return nil
}

// InsertBatch writes the records one by one over a single connection and returns one result per record,
// in input order. A failing record does not abort the others.
// The returned error is set only when no connection could be acquired at all.
func (s *Store) InsertBatch(ctx context.Context, records []logstore.Record) ([]InsertResult, error) {
	if len(records) == 0 {
		return nil, nil
	}

	ctx, span := s.startSpan(ctx, logActionInsert)
	results := make([]InsertResult, len(records))
	start := time.Now()

	err := s.withConn(ctx, logActionInsert, func(conn adapters.DBConn) error {
		for i, record := range records {
			id, insertErr := s.insertOne(ctx, conn, record)
			results[i] = InsertResult{ID: id, Err: insertErr}
		}

		return nil
	})

	duration := time.Since(start)
	if err != nil {
		s.recordDurationMetrics(metricInsertDuration, duration, logActionInsert, statusError)
		s.finishSpan(span, err, 0)

		return nil, err
	}

	inserted := int64(0)
	for _, result := range results {
		if result.Err == nil {
			inserted++
		}
	}

	status := statusSuccess
	if inserted < int64(len(records)) {
		status = statusError
	}

	s.recordDurationMetrics(metricInsertDuration, duration, logActionInsert, status)
	s.recordCountMetrics(metricRecordsInserted, inserted, logActionInsert)
	s.finishSpan(span, nil, inserted)
	s.logOperation(
		logMsgBatchInserted,
		logAttrRecordCount, inserted,
		logAttrFailedCount, int64(len(records))-inserted,
		logAttrDurationMS, s.toMilliseconds(duration),
	)

	return results, nil
}

func (s *Store) insertOne(ctx context.Context, conn adapters.DBConn, record logstore.Record) (int64, error) {
	payloadJSON, marshalErr := record.Payload.MarshalJSON()
	if marshalErr != nil {
		s.logWarn(logMsgInsertFailed, logAttrRecordType, record.Type, logAttrError, marshalErr.Error())
		return logstore.UnsetID, errors.Join(logstore.ErrInsertingRecordFailed, marshalErr)
	}

	sqlQuery, buildErr := s.buildInsertQuery(record, payloadJSON)
	if buildErr != nil {
		s.logError(logMsgBuildQueryFailed, buildErr, logAttrRecordType, record.Type)
		s.recordErrorMetrics(logActionInsert, errorTypeBuildQuery)

		return logstore.UnsetID, buildErr
	}

	var id int64
	var insertErr error

	start := time.Now()
	if s.dialect.returningID {
		id, insertErr = s.insertReturningID(ctx, conn, sqlQuery)
	} else {
		id, insertErr = s.insertLastInsertID(ctx, conn, sqlQuery)
	}
	s.logQueryWithDuration(sqlQuery, logActionInsert, time.Since(start))

	if insertErr != nil {
		s.logWarn(logMsgInsertFailed, logAttrRecordType, record.Type, logAttrError, insertErr.Error())
		s.recordErrorMetrics(logActionInsert, errorTypeDatabaseExec)

		return logstore.UnsetID, errors.Join(logstore.ErrInsertingRecordFailed, insertErr)
	}

	return id, nil
}

func (s *Store) insertReturningID(ctx context.Context, conn adapters.DBConn, sqlQuery string) (int64, error) {
	rows, err := conn.Query(ctx, sqlQuery)
	if err != nil {
		return 0, err
	}
	defer s.closeRows(rows)

	var id int64
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return 0, err
		}

		return 0, sql.ErrNoRows
	}

	if err := rows.Scan(&id); err != nil {
		return 0, err
	}

	return id, rows.Err()
}

func (s *Store) insertLastInsertID(ctx context.Context, conn adapters.DBConn, sqlQuery string) (int64, error) {
	result, err := conn.Exec(ctx, sqlQuery)
	if err != nil {
		return 0, err
	}

	return result.LastInsertId()
}

// QueryPage returns at most limit records matching the filter, newest first, skipping offset records.
func (s *Store) QueryPage(ctx context.Context, filter logstore.Filter, limit, offset uint) ([]logstore.Record, error) {
	sqlQuery, buildErr := s.buildSelectPageQuery(filter, limit, offset)
	if buildErr != nil {
		s.logError(logMsgBuildQueryFailed, buildErr, logAttrQuery, logActionQueryPage)
		s.recordErrorMetrics(logActionQueryPage, errorTypeBuildQuery)

		return nil, buildErr
	}

	records, err := s.queryRecords(ctx, logActionQueryPage, sqlQuery)
	if err != nil {
		return nil, err
	}

	return records, nil
}

// GetByID loads a single record. It returns logstore.ErrRecordNotFound for unknown ids.
func (s *Store) GetByID(ctx context.Context, id int64) (logstore.Record, error) {
	sqlQuery, buildErr := s.buildSelectByIDQuery(id)
	if buildErr != nil {
		s.logError(logMsgBuildQueryFailed, buildErr, logAttrRecordID, id)
		s.recordErrorMetrics(logActionGetByID, errorTypeBuildQuery)

		return logstore.Record{}, buildErr
	}

	records, err := s.queryRecords(ctx, logActionGetByID, sqlQuery)
	if err != nil {
		return logstore.Record{}, err
	}

	if len(records) == 0 {
		return logstore.Record{}, logstore.ErrRecordNotFound
	}

	return records[0], nil
}

// DistinctTypes lists every record type present in the table, sorted.
func (s *Store) DistinctTypes(ctx context.Context) ([]string, error) {
	sqlQuery, buildErr := s.buildSelectDistinctTypesQuery()
	if buildErr != nil {
		s.logError(logMsgBuildQueryFailed, buildErr)
		s.recordErrorMetrics(logActionDistinctTypes, errorTypeBuildQuery)

		return nil, buildErr
	}

	ctx, span := s.startSpan(ctx, logActionDistinctTypes)
	types := make([]string, 0)
	start := time.Now()

	err := s.withConn(ctx, logActionDistinctTypes, func(conn adapters.DBConn) error {
		rows, queryErr := s.executeQuery(ctx, conn, logActionDistinctTypes, sqlQuery)
		if queryErr != nil {
			return queryErr
		}
		defer s.closeRows(rows)

		for rows.Next() {
			var recordType string
			if scanErr := rows.Scan(&recordType); scanErr != nil {
				s.logError(logMsgScanRowFailed, scanErr)
				s.recordErrorMetrics(logActionDistinctTypes, errorTypeRowScan)

				return errors.Join(logstore.ErrScanningDBRowFailed, scanErr)
			}

			types = append(types, recordType)
		}

		if rowsErr := rows.Err(); rowsErr != nil {
			return errors.Join(logstore.ErrQueryingRecordsFailed, rowsErr)
		}

		return nil
	})

	s.finishQuery(span, logActionDistinctTypes, time.Since(start), err, int64(len(types)))
	if err != nil {
		return nil, err
	}

	return types, nil
}

// DeleteByID removes one record and reports whether it existed.
func (s *Store) DeleteByID(ctx context.Context, id int64) (bool, error) {
	sqlQuery, buildErr := s.buildDeleteByIDQuery(id)
	if buildErr != nil {
		s.logError(logMsgBuildQueryFailed, buildErr, logAttrRecordID, id)
		s.recordErrorMetrics(logActionDeleteByID, errorTypeBuildQuery)

		return false, buildErr
	}

	rowsAffected, err := s.executeWrite(ctx, logActionDeleteByID, sqlQuery, logstore.ErrDeletingRecordsFailed)
	if err != nil {
		return false, err
	}

	s.recordCountMetrics(metricRecordsDeleted, rowsAffected, logActionDeleteByID)
	s.logOperation(logMsgRecordsDeleted, logAttrRecordID, id, logAttrRowsAffected, rowsAffected)

	return rowsAffected > 0, nil
}

// SetArchived flips the archived flag of one record and replaces its expiry with expiresAt (nil clears it).
// It reports whether the record existed.
func (s *Store) SetArchived(ctx context.Context, id int64, archived bool, expiresAt *time.Time) (bool, error) {
	var expiresAtMillis *int64
	if expiresAt != nil {
		millis := logstore.ToEpochMillis(*expiresAt)
		expiresAtMillis = &millis
	}

	sqlQuery, buildErr := s.buildSetArchivedQuery(id, archived, expiresAtMillis)
	if buildErr != nil {
		s.logError(logMsgBuildQueryFailed, buildErr, logAttrRecordID, id)
		s.recordErrorMetrics(logActionSetArchived, errorTypeBuildQuery)

		return false, buildErr
	}

	rowsAffected, err := s.executeWrite(ctx, logActionSetArchived, sqlQuery, logstore.ErrUpdatingRecordFailed)
	if err != nil {
		return false, err
	}

	s.logOperation(logMsgRecordUpdated, logAttrRecordID, id, logAttrRowsAffected, rowsAffected)

	return rowsAffected > 0, nil
}

// DeleteMatching removes every record matching the filter and returns how many were removed.
// A filter without a type and without any usable condition is rejected with logstore.ErrEmptyFilter.
// Conditions with an unknown comparator do not count, they are dropped from the query.
func (s *Store) DeleteMatching(ctx context.Context, filter logstore.Filter) (int64, error) {
	if !narrowsSelection(filter) {
		return 0, logstore.ErrEmptyFilter
	}

	sqlQuery, buildErr := s.buildDeleteMatchingQuery(filter)
	if buildErr != nil {
		s.logError(logMsgBuildQueryFailed, buildErr, logAttrQuery, filter.String())
		s.recordErrorMetrics(logActionDeleteMatching, errorTypeBuildQuery)

		return 0, buildErr
	}

	rowsAffected, err := s.executeWrite(ctx, logActionDeleteMatching, sqlQuery, logstore.ErrDeletingRecordsFailed)
	if err != nil {
		return 0, err
	}

	s.recordCountMetrics(metricRecordsDeleted, rowsAffected, logActionDeleteMatching)
	s.logOperation(logMsgRecordsDeleted, logAttrRowsAffected, rowsAffected)

	return rowsAffected, nil
}

// DeleteExpired removes every non-archived record whose expiry lies before now.
func (s *Store) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	sqlQuery, buildErr := s.buildDeleteExpiredQuery(logstore.ToEpochMillis(now))
	if buildErr != nil {
		s.logError(logMsgBuildQueryFailed, buildErr)
		s.recordErrorMetrics(logActionDeleteExpired, errorTypeBuildQuery)

		return 0, buildErr
	}

	rowsAffected, err := s.executeWrite(ctx, logActionDeleteExpired, sqlQuery, logstore.ErrDeletingRecordsFailed)
	if err != nil {
		return 0, err
	}

	s.recordCountMetrics(metricRecordsDeleted, rowsAffected, logActionDeleteExpired)
	s.logOperation(logMsgRecordsDeleted, logAttrRowsAffected, rowsAffected)

	return rowsAffected, nil
}

// withConn runs fn on one dedicated connection and releases it afterward.
func (s *Store) withConn(ctx context.Context, action string, fn func(conn adapters.DBConn) error) error {
	conn, acquireErr := s.db.Acquire(ctx)
	if acquireErr != nil {
		s.logError(logMsgAcquireFailed, acquireErr)
		s.recordErrorMetrics(action, errorTypeAcquire)

		return errors.Join(logstore.ErrAcquiringConnectionFailed, acquireErr)
	}

	defer func() {
		if releaseErr := conn.Release(); releaseErr != nil {
			s.logWarn(logMsgReleaseFailed, logAttrError, releaseErr.Error())
		}
	}()

	return fn(conn)
}

// queryRecords executes a select over the full column set and converts the rows.
func (s *Store) queryRecords(ctx context.Context, action string, sqlQuery string) ([]logstore.Record, error) {
	ctx, span := s.startSpan(ctx, action)
	records := make([]logstore.Record, 0)
	start := time.Now()

	err := s.withConn(ctx, action, func(conn adapters.DBConn) error {
		rows, queryErr := s.executeQuery(ctx, conn, action, sqlQuery)
		if queryErr != nil {
			return queryErr
		}
		defer s.closeRows(rows)

		var processErr error
		records, processErr = s.processQueryResults(action, rows)

		return processErr
	})

	duration := time.Since(start)
	s.finishQuery(span, action, duration, err, int64(len(records)))
	if err != nil {
		return nil, err
	}

	s.logOperation(
		logMsgPageQueried,
		logAttrRecordCount, len(records),
		logAttrDurationMS, s.toMilliseconds(duration),
	)

	return records, nil
}

func (s *Store) finishQuery(span logstore.SpanContext, action string, duration time.Duration, err error, count int64) {
	status := statusSuccess
	if err != nil {
		status = statusError
	}

	s.recordDurationMetrics(metricQueryDuration, duration, action, status)
	s.finishSpan(span, err, count)
}

// executeQuery executes the SQL query on the given connection and logs it with timing information.
func (s *Store) executeQuery(
	ctx context.Context,
	conn adapters.DBConn,
	action string,
	sqlQuery string,
) (adapters.DBRows, error) {

	start := time.Now()
	rows, queryErr := conn.Query(ctx, sqlQuery)
	s.logQueryWithDuration(sqlQuery, action, time.Since(start))

	if queryErr != nil {
		s.logError(logMsgDBQueryFailed, queryErr, logAttrQuery, sqlQuery)
		s.recordErrorMetrics(action, errorTypeDatabaseQuery)

		return nil, errors.Join(logstore.ErrQueryingRecordsFailed, queryErr)
	}

	return rows, nil
}

// executeWrite runs an update or delete statement and returns the affected row count.
func (s *Store) executeWrite(
	ctx context.Context,
	action string,
	sqlQuery string,
	failure error,
) (rowsAffectedInt64, error) {

	ctx, span := s.startSpan(ctx, action)

	var rowsAffected int64
	start := time.Now()

	err := s.withConn(ctx, action, func(conn adapters.DBConn) error {
		result, execErr := conn.Exec(ctx, sqlQuery)
		s.logQueryWithDuration(sqlQuery, action, time.Since(start))

		if execErr != nil {
			s.logError(logMsgDBExecFailed, execErr, logAttrQuery, sqlQuery)
			s.recordErrorMetrics(action, errorTypeDatabaseExec)

			return errors.Join(failure, execErr)
		}

		var rowsAffectedErr error
		rowsAffected, rowsAffectedErr = result.RowsAffected()
		if rowsAffectedErr != nil {
			s.logError(logMsgRowsAffectedFailed, rowsAffectedErr)

			return errors.Join(logstore.ErrGettingRowsAffectedFailed, rowsAffectedErr)
		}

		return nil
	})

	s.finishQuery(span, action, time.Since(start), err, rowsAffected)
	if err != nil {
		return 0, err
	}

	return rowsAffected, nil
}

// closeRows safely closes database rows and logs any errors.
func (s *Store) closeRows(rows adapters.DBRows) {
	if closeErr := rows.Close(); closeErr != nil {
		s.logWarn(logMsgCloseRowsFailed, logAttrError, closeErr.Error())
	}
}

// processQueryResults converts database rows into records.
// A stored payload that cannot be decoded does not fail the query; the record carries the parsing_failed payload instead.
func (s *Store) processQueryResults(action string, rows adapters.DBRows) ([]logstore.Record, error) {
	records := make([]logstore.Record, 0)
	result := queryResultRow{}

	for rows.Next() {
		rowScanErr := rows.Scan(
			&result.id,
			&result.logType,
			&result.timestamp,
			&result.archived,
			&result.expiresAt,
			&result.data,
		)
		if rowScanErr != nil {
			s.logError(logMsgScanRowFailed, rowScanErr)
			s.recordErrorMetrics(action, errorTypeRowScan)

			return nil, errors.Join(logstore.ErrScanningDBRowFailed, rowScanErr)
		}

		records = append(records, s.buildRecord(result))
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		s.logError(logMsgDBQueryFailed, rowsErr)

		return nil, errors.Join(logstore.ErrQueryingRecordsFailed, rowsErr)
	}

	return records, nil
}

func (s *Store) buildRecord(row queryResultRow) logstore.Record {
	payload, decodeErr := logstore.DecodePayload(row.data)
	if decodeErr != nil {
		s.logWarn(logMsgUndecodablePayload, logAttrRecordID, row.id, logAttrError, decodeErr.Error())
		payload = logstore.ParsingFailedPayload()
	}

	record := logstore.Record{
		ID:        row.id,
		Type:      row.logType,
		Timestamp: logstore.FromEpochMillis(row.timestamp),
		Archived:  row.archived,
		Payload:   payload,
	}

	if row.expiresAt.Valid {
		expiresAt := logstore.FromEpochMillis(row.expiresAt.Int64)
		record.ExpiresAt = &expiresAt
	}

	return record
}
