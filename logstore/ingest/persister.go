package ingest

import (
	"context"
	"errors"
	"math"
	"strconv"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"

	"github.com/xef5000/UltimateLogger/logstore"
	"github.com/xef5000/UltimateLogger/logstore/sqlengine"
)

// TopicPersistedRecords carries every record right after it received its id.
const TopicPersistedRecords = "logstore.records.persisted"

// Message metadata keys set on TopicPersistedRecords messages.
const (
	MetadataRecordID   = "record_id"
	MetadataRecordType = "log_type"
)

const (
	defaultBatchSize       = 100
	defaultBatchInterval   = 5 * time.Second
	defaultShutdownTimeout = 30 * time.Second
	metricQueueDepth       = "ultimatelogger_queue_depth"
	metricFlushDuration    = "ultimatelogger_batch_flush_duration_seconds"
	metricFailedRecords    = "ultimatelogger_batch_failed_records_total"
	labelOperation         = "operation"
	labelStatus            = "status"
	statusSuccess          = "success"
	statusError            = "error"
	logMsgBatchFlushed     = "batch flushed"
	logMsgBatchFailed      = "batch write failed, records dropped"
	logMsgRecordDropped    = "record dropped"
	logMsgPublishFailed    = "failed to publish persisted record"
	logMsgEncodeFailed     = "failed to encode persisted record"
	logMsgDrainStarted     = "draining buffer before shutdown"
	logMsgDrainIncomplete  = "buffer not fully drained before shutdown"
	logMsgOperation        = "logstore operation: "
	logAttrError           = "error"
	logAttrRecordCount     = "record_count"
	logAttrFailedCount     = "failed_count"
	logAttrQueueDepth      = "queue_depth"
	logAttrRecordType      = "record_type"
	logAttrRecordID        = "record_id"
	logAttrDurationMS      = "duration_ms"
	logActionFlush         = "flush"
)

// ErrMissingDependency is returned when the persister is built without a buffer or writer.
var ErrMissingDependency = errors.New("persister needs a buffer and a writer")

// Writer persists a batch with per-record results. *sqlengine.Store implements it.
type Writer interface {
	InsertBatch(ctx context.Context, records []logstore.Record) ([]sqlengine.InsertResult, error)
}

// Invalidator drops cached reads after a write.
type Invalidator interface {
	InvalidateAll()
}

// Persister moves records from the Buffer to storage in batches, one goroutine, on a fixed interval.
type Persister struct {
	buffer           *Buffer
	writer           Writer
	publisher        message.Publisher
	invalidator      Invalidator
	batchSize        int
	batchInterval    time.Duration
	retention        time.Duration
	shutdownTimeout  time.Duration
	now              func() time.Time
	logger           logstore.Logger
	metricsCollector logstore.MetricsCollector
}

// NewPersister creates a Persister draining buffer into writer.
func NewPersister(buffer *Buffer, writer Writer, options ...Option) (*Persister, error) {
	if buffer == nil || writer == nil {
		return nil, ErrMissingDependency
	}

	p := &Persister{
		buffer:          buffer,
		writer:          writer,
		batchSize:       defaultBatchSize,
		batchInterval:   defaultBatchInterval,
		shutdownTimeout: defaultShutdownTimeout,
		now:             time.Now,
	}

	for _, option := range options {
		if err := option(p); err != nil {
			return nil, err
		}
	}

	return p, nil
}

// Run flushes one batch per interval until ctx ends, then drains what is left.
// ctx only ends the loop, batch writes never see its cancellation.
func (p *Persister) Run(ctx context.Context) {
	ticker := time.NewTicker(p.batchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.Flush(context.WithoutCancel(ctx))
		case <-ctx.Done():
			p.drain()
			return
		}
	}
}

// Flush writes up to one batch and returns how many records were persisted.
func (p *Persister) Flush(ctx context.Context) int {
	items := p.buffer.PopN(p.batchSize)
	p.recordQueueDepth()

	if len(items) == 0 {
		return 0
	}

	start := time.Now()
	now := p.now()
	expiresAt := logstore.ExpiryFor(now, p.retention)

	records := make([]logstore.Record, len(items))
	for i, item := range items {
		record := item.Record
		record.ID = logstore.UnsetID
		record.Timestamp = now
		record.Archived = false
		record.ExpiresAt = expiresAt
		records[i] = record
	}

	results, err := p.writer.InsertBatch(ctx, records)
	if err != nil {
		p.failBatch(items, err)
		p.recordFlushDuration(time.Since(start), statusError)

		return 0
	}

	// cached pages go stale before any producer can observe the write
	if p.invalidator != nil && anySucceeded(results, len(items)) {
		p.invalidator.InvalidateAll()
	}

	persisted := 0
	for i, item := range items {
		result := p.resultAt(results, i)
		if result.Err != nil {
			p.logWarn(logMsgRecordDropped, logAttrRecordType, records[i].Type, logAttrError, result.Err.Error())
			p.incrementFailed()
			item.Receipt.resolve(logstore.UnsetID, result.Err)

			continue
		}

		persisted++
		records[i].ID = result.ID
		item.Receipt.resolve(result.ID, nil)
		p.publish(records[i])
	}

	status := statusSuccess
	if persisted < len(items) {
		status = statusError
	}

	duration := time.Since(start)
	p.recordFlushDuration(duration, status)
	p.logOperation(
		logMsgBatchFlushed,
		logAttrRecordCount, persisted,
		logAttrFailedCount, len(items)-persisted,
		logAttrQueueDepth, p.buffer.Len(),
		logAttrDurationMS, toMilliseconds(duration),
	)

	return persisted
}

// drain flushes until the buffer is empty, on a fresh context bounded by the shutdown timeout.
func (p *Persister) drain() {
	p.buffer.Close()

	if p.buffer.Len() == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.shutdownTimeout)
	defer cancel()

	p.logOperation(logMsgDrainStarted, logAttrQueueDepth, p.buffer.Len())

	for p.buffer.Len() > 0 {
		if ctx.Err() != nil {
			leftover := p.buffer.PopN(math.MaxInt)
			p.logWarn(logMsgDrainIncomplete, logAttrRecordCount, len(leftover))
			p.failBatch(leftover, logstore.ErrShutdown)

			return
		}

		p.Flush(ctx)
	}
}

func anySucceeded(results []sqlengine.InsertResult, count int) bool {
	for i := 0; i < count && i < len(results); i++ {
		if results[i].Err == nil {
			return true
		}
	}

	return false
}

func (p *Persister) resultAt(results []sqlengine.InsertResult, i int) sqlengine.InsertResult {
	if i < len(results) {
		return results[i]
	}

	return sqlengine.InsertResult{Err: logstore.ErrInsertingRecordFailed}
}

func (p *Persister) failBatch(items []Item, err error) {
	if len(items) == 0 {
		return
	}

	p.logError(logMsgBatchFailed, err, logAttrRecordCount, len(items))

	for _, item := range items {
		p.incrementFailed()
		item.Receipt.resolve(logstore.UnsetID, err)
	}
}

func (p *Persister) publish(record logstore.Record) {
	if p.publisher == nil {
		return
	}

	payload, err := record.MarshalJSON()
	if err != nil {
		p.logWarn(logMsgEncodeFailed, logAttrRecordID, record.ID, logAttrError, err.Error())
		return
	}

	msg := message.NewMessage(uuid.NewString(), payload)
	msg.Metadata.Set(MetadataRecordID, strconv.FormatInt(record.ID, 10))
	msg.Metadata.Set(MetadataRecordType, record.Type)

	if err := p.publisher.Publish(TopicPersistedRecords, msg); err != nil {
		p.logWarn(logMsgPublishFailed, logAttrRecordID, record.ID, logAttrError, err.Error())
	}
}

func (p *Persister) logOperation(action string, args ...any) {
	if p.logger != nil {
		p.logger.Info(logMsgOperation+action, args...)
	}
}

func (p *Persister) logWarn(message string, args ...any) {
	if p.logger != nil {
		p.logger.Warn(message, args...)
	}
}

func (p *Persister) logError(message string, err error, args ...any) {
	if p.logger != nil {
		allArgs := []any{logAttrError, err.Error()}
		allArgs = append(allArgs, args...)
		p.logger.Error(message, allArgs...)
	}
}

func (p *Persister) recordQueueDepth() {
	if p.metricsCollector != nil {
		p.metricsCollector.RecordValue(metricQueueDepth, float64(p.buffer.Len()), nil)
	}
}

func (p *Persister) recordFlushDuration(duration time.Duration, status string) {
	if p.metricsCollector != nil {
		p.metricsCollector.RecordDuration(metricFlushDuration, duration, map[string]string{
			labelOperation: logActionFlush,
			labelStatus:    status,
		})
	}
}

func (p *Persister) incrementFailed() {
	if p.metricsCollector != nil {
		p.metricsCollector.IncrementCounter(metricFailedRecords, map[string]string{
			labelOperation: logActionFlush,
		})
	}
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}
