package ingest

import (
	"errors"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/xef5000/UltimateLogger/logstore"
)

// ErrInvalidBatchSetting is returned for a non-positive batch size or interval.
var ErrInvalidBatchSetting = errors.New("batch size and interval must be positive")

// Option defines a functional option for configuring Persister.
type Option func(*Persister) error

// WithBatchSize caps how many records one flush writes.
func WithBatchSize(size int) Option {
	return func(p *Persister) error {
		if size <= 0 {
			return ErrInvalidBatchSetting
		}

		p.batchSize = size

		return nil
	}
}

// WithBatchInterval sets the time between two flushes.
func WithBatchInterval(interval time.Duration) Option {
	return func(p *Persister) error {
		if interval <= 0 {
			return ErrInvalidBatchSetting
		}

		p.batchInterval = interval

		return nil
	}
}

// WithRetention sets how long new records live before the sweeper may delete them.
// Zero or negative disables expiry.
func WithRetention(retention time.Duration) Option {
	return func(p *Persister) error {
		p.retention = retention
		return nil
	}
}

// WithShutdownTimeout bounds the final drain performed when Run stops.
func WithShutdownTimeout(timeout time.Duration) Option {
	return func(p *Persister) error {
		p.shutdownTimeout = timeout
		return nil
	}
}

// WithPublisher publishes every persisted record to TopicPersistedRecords.
func WithPublisher(publisher message.Publisher) Option {
	return func(p *Persister) error {
		p.publisher = publisher
		return nil
	}
}

// WithInvalidator registers the cache to drop after every batch that persisted at least one record.
func WithInvalidator(invalidator Invalidator) Option {
	return func(p *Persister) error {
		p.invalidator = invalidator
		return nil
	}
}

// WithClock replaces time.Now for stamping records.
func WithClock(now func() time.Time) Option {
	return func(p *Persister) error {
		p.now = now
		return nil
	}
}

// WithLogger sets the logger for the Persister.
func WithLogger(logger logstore.Logger) Option {
	return func(p *Persister) error {
		p.logger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the Persister. It receives queue depth, flush durations
// and dropped record counts.
func WithMetrics(collector logstore.MetricsCollector) Option {
	return func(p *Persister) error {
		p.metricsCollector = collector
		return nil
	}
}
