// Package notify posts Discord-style webhook messages for persisted records.
//
// The Trigger listens on the persisted-records topic and hands every record to the Dispatcher
// once per configured webhook of the same type. The Dispatcher evaluates the webhook's conditions
// and, when they match, posts the embed on its own goroutine. Delivery is fire-and-forget: failures
// and non-2xx answers are logged, never retried, and never reach the ingestion path.
package notify
