package engine

import (
	"errors"
	"net/http"
	"time"

	"github.com/xef5000/UltimateLogger/logstore"
	"github.com/xef5000/UltimateLogger/logstore/notify"
)

// ErrInvalidSetting is returned for a non-positive batch, cache or interval setting.
var ErrInvalidSetting = errors.New("invalid engine setting")

// Option defines a functional option for configuring Engine.
type Option func(*Engine) error

func WithBatchSize(size int) Option {
	return func(e *Engine) error {
		if size <= 0 {
			return errors.Join(ErrInvalidSetting, errors.New("batch size must be positive"))
		}

		e.batchSize = size

		return nil
	}
}

func WithBatchInterval(interval time.Duration) Option {
	return func(e *Engine) error {
		if interval <= 0 {
			return errors.Join(ErrInvalidSetting, errors.New("batch interval must be positive"))
		}

		e.batchInterval = interval

		return nil
	}
}

// WithRetention sets how long new and unarchived records live. Zero or less disables expiry.
func WithRetention(retention time.Duration) Option {
	return func(e *Engine) error {
		e.retention = retention
		return nil
	}
}

func WithCleanupInterval(interval time.Duration) Option {
	return func(e *Engine) error {
		if interval <= 0 {
			return errors.Join(ErrInvalidSetting, errors.New("cleanup interval must be positive"))
		}

		e.cleanupInterval = interval

		return nil
	}
}

// WithCache bounds the page cache to maxPages entries living at most ttl.
func WithCache(maxPages int, ttl time.Duration) Option {
	return func(e *Engine) error {
		if maxPages <= 0 || ttl <= 0 {
			return errors.Join(ErrInvalidSetting, errors.New("cache size and expiry must be positive"))
		}

		e.cacheSize = maxPages
		e.cacheTTL = ttl

		return nil
	}
}

func WithShutdownTimeout(timeout time.Duration) Option {
	return func(e *Engine) error {
		if timeout <= 0 {
			return errors.Join(ErrInvalidSetting, errors.New("shutdown timeout must be positive"))
		}

		e.shutdownTimeout = timeout

		return nil
	}
}

// WithDisabledTypes lists record types whose definitions Register skips.
func WithDisabledTypes(typeIDs ...string) Option {
	return func(e *Engine) error {
		for _, typeID := range typeIDs {
			e.disabledTypes[typeID] = struct{}{}
		}

		return nil
	}
}

// WithWebhooks configures the webhooks notified about persisted records.
func WithWebhooks(webhooks ...notify.WebhookConfig) Option {
	return func(e *Engine) error {
		e.webhooks = append(e.webhooks, webhooks...)
		return nil
	}
}

// WithWebhookClient replaces the HTTP client used for webhook delivery.
func WithWebhookClient(client *http.Client) Option {
	return func(e *Engine) error {
		e.webhookClient = client
		return nil
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) error {
		e.now = now
		return nil
	}
}

// WithLogger sets the logger handed to every component. A *slog.Logger is also used for watermill.
func WithLogger(logger logstore.Logger) Option {
	return func(e *Engine) error {
		e.logger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector handed to every component.
func WithMetrics(collector logstore.MetricsCollector) Option {
	return func(e *Engine) error {
		e.metricsCollector = collector
		return nil
	}
}
