// Package retention deletes expired, non-archived records on a fixed interval.
package retention

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/xef5000/UltimateLogger/logstore"
)

const (
	defaultCleanupInterval = time.Hour
	metricSweepDuration    = "ultimatelogger_retention_sweep_duration_seconds"
	labelStatus            = "status"
	statusSuccess          = "success"
	statusError            = "error"
	logMsgSweepFailed      = "retention sweep failed"
	logMsgSwept            = "expired records removed"
	logMsgDisabled         = "retention disabled, sweeper not started"
	logMsgOperation        = "logstore operation: "
	logAttrError           = "error"
	logAttrRowsAffected    = "rows_affected"
	logAttrDurationMS      = "duration_ms"
)

// ErrMissingDeleter is returned when the sweeper has nothing to delete with.
var ErrMissingDeleter = errors.New("sweeper needs a deleter")

// Deleter removes every non-archived record that expired before now. *sqlengine.Store implements it.
type Deleter interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Invalidator drops cached reads after records were removed.
type Invalidator interface {
	InvalidateAll()
}

// Sweeper runs the retention cleanup.
type Sweeper struct {
	deleter          Deleter
	invalidator      Invalidator
	retention        time.Duration
	interval         time.Duration
	now              func() time.Time
	logger           logstore.Logger
	metricsCollector logstore.MetricsCollector
}

// Option defines a functional option for configuring Sweeper.
type Option func(*Sweeper)

// WithInterval sets the time between two sweeps.
func WithInterval(interval time.Duration) Option {
	return func(s *Sweeper) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

func WithInvalidator(invalidator Invalidator) Option {
	return func(s *Sweeper) { s.invalidator = invalidator }
}

func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) { s.now = now }
}

func WithLogger(logger logstore.Logger) Option {
	return func(s *Sweeper) { s.logger = logger }
}

func WithMetrics(collector logstore.MetricsCollector) Option {
	return func(s *Sweeper) { s.metricsCollector = collector }
}

// NewSweeper creates a sweeper. A retention of zero or less disables the periodic run,
// CleanupExpired stays usable on demand.
func NewSweeper(deleter Deleter, retention time.Duration, options ...Option) (*Sweeper, error) {
	if deleter == nil {
		return nil, ErrMissingDeleter
	}

	s := &Sweeper{
		deleter:   deleter,
		retention: retention,
		interval:  defaultCleanupInterval,
		now:       time.Now,
	}

	for _, option := range options {
		option(s)
	}

	return s, nil
}

// Enabled reports whether Run sweeps at all.
func (s *Sweeper) Enabled() bool {
	return s.retention > 0
}

// Run sweeps once per interval until ctx ends. It returns immediately when retention is disabled.
func (s *Sweeper) Run(ctx context.Context) {
	if !s.Enabled() {
		s.logOperation(logMsgDisabled)
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_, _ = s.CleanupExpired(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// CleanupExpired deletes expired records now and returns how many were removed.
// The cache is invalidated only when something was deleted.
func (s *Sweeper) CleanupExpired(ctx context.Context) (int64, error) {
	start := time.Now()

	deleted, err := s.deleter.DeleteExpired(ctx, s.now())
	duration := time.Since(start)

	if err != nil {
		s.recordDuration(duration, statusError)
		if s.logger != nil {
			s.logger.Error(logMsgSweepFailed, logAttrError, err.Error())
		}

		return 0, err
	}

	if deleted > 0 && s.invalidator != nil {
		s.invalidator.InvalidateAll()
	}

	s.recordDuration(duration, statusSuccess)
	s.logOperation(logMsgSwept, logAttrRowsAffected, deleted, logAttrDurationMS, toMilliseconds(duration))

	return deleted, nil
}

func (s *Sweeper) logOperation(action string, args ...any) {
	if s.logger != nil {
		s.logger.Info(logMsgOperation+action, args...)
	}
}

func (s *Sweeper) recordDuration(duration time.Duration, status string) {
	if s.metricsCollector != nil {
		s.metricsCollector.RecordDuration(metricSweepDuration, duration, map[string]string{labelStatus: status})
	}
}

func toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}
