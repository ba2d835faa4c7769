// Package helper provides testing utilities shared by the log store test suites.
//
// It contains spies for the logstore.Logger, MetricsCollector and TracingCollector hooks,
// record fixtures and a throwaway SQLite database per test.
package helper
