// Package ingest decouples producers from storage.
//
// Producers Enqueue records into a Buffer and get a Receipt back. A single Persister goroutine
// takes up to one batch per interval, stamps timestamp and expiry, writes the batch with
// per-record isolation and resolves each receipt with the assigned id or the error that dropped
// the record. Persisted records are then published on TopicPersistedRecords for the notification
// trigger, and the query cache is invalidated.
//
// When Run's context ends the buffer is closed and drained on a fresh context bounded by the
// shutdown timeout. Records that still cannot be written are logged and dropped, never retried.
package ingest
