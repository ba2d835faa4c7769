package logstore

import (
	"errors"
)

var ErrNilDatabaseConnection = errors.New("database connection must not be nil")
var ErrEmptyTableName = errors.New("empty table name supplied")
var ErrUnsupportedDialect = errors.New("unsupported sql dialect")
var ErrCreatingTableFailed = errors.New("creating the logs table failed")
var ErrAcquiringConnectionFailed = errors.New("acquiring a database connection failed")
var ErrBuildingQueryFailed = errors.New("building query failed")
var ErrQueryingRecordsFailed = errors.New("querying records failed")
var ErrScanningDBRowFailed = errors.New("scanning db row failed")
var ErrInsertingRecordFailed = errors.New("inserting record failed")
var ErrUpdatingRecordFailed = errors.New("updating record failed")
var ErrDeletingRecordsFailed = errors.New("deleting records failed")
var ErrGettingRowsAffectedFailed = errors.New("getting rows affected failed")

var (
	// ErrRecordNotFound is returned when no record exists for a given id.
	ErrRecordNotFound = errors.New("record not found")

	// ErrInvalidPage is returned for a page number or page size below 1.
	ErrInvalidPage = errors.New("page and page size must be at least 1")

	// ErrEmptyFilter is returned when a bulk delete is requested without any type or condition.
	ErrEmptyFilter = errors.New("refusing to clear records with an empty filter")

	// ErrMalformedFilter is returned when an encoded filter string cannot be parsed.
	ErrMalformedFilter = errors.New("malformed filter string")

	// ErrInvalidPayloadJSON is returned when payload JSON is not a flat object of scalars.
	ErrInvalidPayloadJSON = errors.New("payload json is not a flat object of scalar values")

	// ErrShutdown is returned for records that could not be handed over because the engine stopped.
	ErrShutdown = errors.New("log store is shutting down")
)
