package engine

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/xef5000/UltimateLogger/logstore"
	"github.com/xef5000/UltimateLogger/logstore/ingest"
	"github.com/xef5000/UltimateLogger/logstore/notify"
	"github.com/xef5000/UltimateLogger/logstore/querycache"
	"github.com/xef5000/UltimateLogger/logstore/retention"
	"github.com/xef5000/UltimateLogger/logstore/sqlengine"
)

const (
	defaultBatchSize       = 100
	defaultBatchInterval   = 5 * time.Second
	defaultCleanupInterval = time.Hour
	defaultCacheSize       = 100
	defaultCacheTTL        = 5 * time.Minute
	defaultShutdownTimeout = 30 * time.Second
	topicBufferSize        = 1024
)

const (
	metricCacheRequests = "ultimatelogger_cache_requests_total"
	labelResult         = "result"
	resultHit           = "hit"
	resultMiss          = "miss"
)

const (
	logMsgOperation        = "logstore operation: "
	logMsgStarted          = "engine started"
	logMsgStopped          = "engine stopped"
	logMsgTypeDisabled     = "definition skipped, type disabled"
	logMsgTypeRegistered   = "definition registered"
	logMsgShutdownTimeout  = "engine shutdown timed out"
	logMsgTopicCloseFailed = "closing the persisted-records topic failed"
	logAttrError           = "error"
	logAttrType            = "log_type"
	logAttrBatchSize       = "batch_size"
	logAttrRetention       = "retention"
	logAttrWebhooks        = "webhooks"
)

// Storage is what the engine needs from a storage backend. *sqlengine.Store implements it.
type Storage interface {
	CreateTable(ctx context.Context) error
	InsertBatch(ctx context.Context, records []logstore.Record) ([]sqlengine.InsertResult, error)
	QueryPage(ctx context.Context, filter logstore.Filter, limit, offset uint) ([]logstore.Record, error)
	GetByID(ctx context.Context, id int64) (logstore.Record, error)
	DistinctTypes(ctx context.Context) ([]string, error)
	DeleteByID(ctx context.Context, id int64) (bool, error)
	SetArchived(ctx context.Context, id int64, archived bool, expiresAt *time.Time) (bool, error)
	DeleteMatching(ctx context.Context, filter logstore.Filter) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Stats is a point-in-time view of the engine's in-memory state.
type Stats struct {
	QueueDepth int `json:"queue_depth"`
	CacheSize  int `json:"cache_size"`
}

// Engine owns every moving part of the log store and exposes the operator operations.
type Engine struct {
	store      Storage
	buffer     *ingest.Buffer
	persister  *ingest.Persister
	sweeper    *retention.Sweeper
	cache      *querycache.Cache
	pubSub     *gochannel.GoChannel
	dispatcher *notify.Dispatcher
	trigger    *notify.Trigger

	registryMu    sync.RWMutex
	definitions   map[string]logstore.Definition
	disabledTypes map[string]struct{}

	batchSize        int
	batchInterval    time.Duration
	retention        time.Duration
	cleanupInterval  time.Duration
	cacheSize        int
	cacheTTL         time.Duration
	shutdownTimeout  time.Duration
	webhooks         []notify.WebhookConfig
	webhookClient    *http.Client
	now              func() time.Time
	logger           logstore.Logger
	metricsCollector logstore.MetricsCollector

	lifecycleMu    sync.Mutex
	cancelRun      context.CancelFunc
	cancelTrigger  context.CancelFunc
	triggerStopped <-chan struct{}
	running        sync.WaitGroup
	stopped        bool
}

// New builds an engine on store and creates the logs table. A table that cannot be created is fatal.
func New(ctx context.Context, store Storage, options ...Option) (*Engine, error) {
	if store == nil {
		return nil, logstore.ErrNilDatabaseConnection
	}

	e := &Engine{
		store:           store,
		definitions:     make(map[string]logstore.Definition),
		disabledTypes:   make(map[string]struct{}),
		batchSize:       defaultBatchSize,
		batchInterval:   defaultBatchInterval,
		cleanupInterval: defaultCleanupInterval,
		cacheSize:       defaultCacheSize,
		cacheTTL:        defaultCacheTTL,
		shutdownTimeout: defaultShutdownTimeout,
		now:             time.Now,
	}

	for _, option := range options {
		if err := option(e); err != nil {
			return nil, err
		}
	}

	if err := store.CreateTable(ctx); err != nil {
		return nil, err
	}

	if err := e.assemble(); err != nil {
		return nil, err
	}

	return e, nil
}

func (e *Engine) assemble() error {
	cache, err := querycache.New(e.cacheSize, e.cacheTTL)
	if err != nil {
		return err
	}
	e.cache = cache

	e.pubSub = gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer:            topicBufferSize,
			BlockPublishUntilSubscriberAck: true,
		},
		e.watermillLogger(),
	)

	e.buffer = ingest.NewBuffer()

	persisterOptions := []ingest.Option{
		ingest.WithBatchSize(e.batchSize),
		ingest.WithBatchInterval(e.batchInterval),
		ingest.WithRetention(e.retention),
		ingest.WithShutdownTimeout(e.shutdownTimeout),
		ingest.WithPublisher(e.pubSub),
		ingest.WithInvalidator(e.cache),
		ingest.WithClock(e.now),
	}
	if e.logger != nil {
		persisterOptions = append(persisterOptions, ingest.WithLogger(e.logger))
	}
	if e.metricsCollector != nil {
		persisterOptions = append(persisterOptions, ingest.WithMetrics(e.metricsCollector))
	}

	if e.persister, err = ingest.NewPersister(e.buffer, e.store, persisterOptions...); err != nil {
		return err
	}

	e.sweeper, err = retention.NewSweeper(e.store, e.retention,
		retention.WithInterval(e.cleanupInterval),
		retention.WithInvalidator(e.cache),
		retention.WithClock(e.now),
		retention.WithLogger(e.logger),
		retention.WithMetrics(e.metricsCollector),
	)
	if err != nil {
		return err
	}

	dispatcherOptions := []notify.DispatcherOption{
		notify.WithLogger(e.logger),
		notify.WithMetrics(e.metricsCollector),
		notify.WithClock(e.now),
	}
	if e.webhookClient != nil {
		dispatcherOptions = append(dispatcherOptions, notify.WithHTTPClient(e.webhookClient))
	}
	e.dispatcher = notify.NewDispatcher(dispatcherOptions...)

	if len(e.webhooks) > 0 {
		if e.trigger, err = notify.NewTrigger(e.pubSub, e.dispatcher, e.webhooks, e.logger); err != nil {
			return err
		}
	}

	return nil
}

func (e *Engine) watermillLogger() watermill.LoggerAdapter {
	if slogLogger, ok := e.logger.(*slog.Logger); ok && slogLogger != nil {
		return watermill.NewSlogLogger(slogLogger)
	}

	return watermill.NopLogger{}
}

// Start launches the persister, the retention sweeper and the webhook trigger.
// The persister and the sweeper stop when ctx ends or Shutdown is called, whichever comes first.
// The trigger only stops in Shutdown, after the persister drained, so records written while
// shutting down still reach their webhooks.
func (e *Engine) Start(ctx context.Context) error {
	e.lifecycleMu.Lock()
	defer e.lifecycleMu.Unlock()

	if e.stopped {
		return logstore.ErrShutdown
	}

	if e.cancelRun != nil {
		return nil
	}

	if e.trigger != nil {
		triggerCtx, cancelTrigger := context.WithCancel(context.WithoutCancel(ctx))

		triggerStopped, err := e.trigger.Start(triggerCtx)
		if err != nil {
			cancelTrigger()
			return err
		}

		e.cancelTrigger = cancelTrigger
		e.triggerStopped = triggerStopped
	}

	runCtx, cancelRun := context.WithCancel(ctx)
	e.cancelRun = cancelRun

	e.running.Add(2)
	go func() {
		defer e.running.Done()
		e.persister.Run(runCtx)
	}()
	go func() {
		defer e.running.Done()
		e.sweeper.Run(runCtx)
	}()

	e.logOperation(logMsgStarted,
		logAttrBatchSize, e.batchSize,
		logAttrRetention, e.retention.String(),
		logAttrWebhooks, len(e.webhooks),
	)

	return nil
}

// Shutdown stops accepting records, drains the buffer, lets the trigger see every record persisted
// so far, waits for in-flight webhook deliveries and releases the cache and the topic.
// ctx bounds how long Shutdown waits.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.lifecycleMu.Lock()
	defer e.lifecycleMu.Unlock()

	if e.stopped {
		return nil
	}
	e.stopped = true

	done := make(chan struct{})
	go func() {
		defer close(done)
		e.stop()
	}()

	var waitErr error
	select {
	case <-done:
	case <-ctx.Done():
		waitErr = ctx.Err()
		if e.logger != nil {
			e.logger.Warn(logMsgShutdownTimeout, logAttrError, waitErr.Error())
		}
	}

	e.logOperation(logMsgStopped)

	return waitErr
}

func (e *Engine) stop() {
	if e.cancelRun != nil {
		e.cancelRun()
		e.running.Wait()
	} else {
		e.persister.Run(cancelledContext())
	}

	if err := e.pubSub.Close(); err != nil && e.logger != nil {
		e.logger.Warn(logMsgTopicCloseFailed, logAttrError, err.Error())
	}

	if e.triggerStopped != nil {
		<-e.triggerStopped
		e.cancelTrigger()
	}

	e.dispatcher.Wait()
	e.cache.Close()
}

func cancelledContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	return ctx
}

// Enqueue hands a record to the persister. It never blocks on storage.
func (e *Engine) Enqueue(record logstore.Record) *ingest.Receipt {
	return e.buffer.Enqueue(record)
}

// EnqueueFunc is Enqueue with a callback that runs with the id once the record is persisted.
func (e *Engine) EnqueueFunc(record logstore.Record, onPersisted func(int64)) *ingest.Receipt {
	return e.buffer.EnqueueFunc(record, onPersisted)
}

// Flush persists one batch right away, outside the regular interval.
func (e *Engine) Flush(ctx context.Context) int {
	return e.persister.Flush(ctx)
}

// GetPage returns one page of records matching filter, newest first. page and pageSize start at 1.
func (e *Engine) GetPage(ctx context.Context, page, pageSize int, filter logstore.Filter) ([]logstore.Record, error) {
	if page < 1 || pageSize < 1 || page-1 > math.MaxInt/pageSize {
		return nil, logstore.ErrInvalidPage
	}

	key := querycache.NewKey(page-1, pageSize, filter)
	if cached, ok := e.cache.Get(key); ok {
		e.countCacheRequest(resultHit)
		return cached, nil
	}
	e.countCacheRequest(resultMiss)

	generation := e.cache.Generation()

	records, err := e.store.QueryPage(ctx, filter, uint(pageSize), uint((page-1)*pageSize))
	if err != nil {
		return nil, err
	}

	e.cache.SetIfCurrent(generation, key, records)

	return records, nil
}

func (e *Engine) GetByID(ctx context.Context, id int64) (logstore.Record, error) {
	return e.store.GetByID(ctx, id)
}

// DeleteByID removes one record and reports whether it existed.
func (e *Engine) DeleteByID(ctx context.Context, id int64) (bool, error) {
	deleted, err := e.store.DeleteByID(ctx, id)
	if err != nil {
		return false, err
	}

	if deleted {
		e.cache.InvalidateAll()
	}

	return deleted, nil
}

// SetArchived archives a record, which clears its expiry, or unarchives it, which restarts
// its retention period from now.
func (e *Engine) SetArchived(ctx context.Context, id int64, archived bool) (bool, error) {
	var expiresAt *time.Time
	if !archived {
		expiresAt = logstore.ExpiryFor(e.now(), e.retention)
	}

	updated, err := e.store.SetArchived(ctx, id, archived, expiresAt)
	if err != nil {
		return false, err
	}

	if updated {
		e.cache.InvalidateAll()
	}

	return updated, nil
}

// ClearMatching deletes every record matching filter. An empty filter is refused.
func (e *Engine) ClearMatching(ctx context.Context, filter logstore.Filter) (int64, error) {
	if filter.IsEmpty() {
		return 0, logstore.ErrEmptyFilter
	}

	deleted, err := e.store.DeleteMatching(ctx, filter)
	if err != nil {
		return 0, err
	}

	if deleted > 0 {
		e.cache.InvalidateAll()
	}

	return deleted, nil
}

// CleanupExpired runs one retention sweep now.
func (e *Engine) CleanupExpired(ctx context.Context) (int64, error) {
	return e.sweeper.CleanupExpired(ctx)
}

// ListKnownTypes returns the sorted union of registered definition ids and stored record types.
func (e *Engine) ListKnownTypes(ctx context.Context) ([]string, error) {
	stored, err := e.store.DistinctTypes(ctx)
	if err != nil {
		return nil, err
	}

	known := make(map[string]struct{}, len(stored))
	for _, recordType := range stored {
		known[recordType] = struct{}{}
	}

	e.registryMu.RLock()
	for typeID := range e.definitions {
		known[typeID] = struct{}{}
	}
	e.registryMu.RUnlock()

	types := make([]string, 0, len(known))
	for recordType := range known {
		types = append(types, recordType)
	}
	sort.Strings(types)

	return types, nil
}

func (e *Engine) QueueDepth() int {
	return e.buffer.Len()
}

func (e *Engine) CacheSize() int {
	return e.cache.Size()
}

func (e *Engine) Stats() Stats {
	return Stats{QueueDepth: e.QueueDepth(), CacheSize: e.CacheSize()}
}

func (e *Engine) logOperation(action string, args ...any) {
	if e.logger != nil {
		e.logger.Info(logMsgOperation+action, args...)
	}
}

func (e *Engine) countCacheRequest(result string) {
	if e.metricsCollector != nil {
		e.metricsCollector.IncrementCounter(metricCacheRequests, map[string]string{labelResult: result})
	}
}
