package ingest_test

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xef5000/UltimateLogger/logstore"
	"github.com/xef5000/UltimateLogger/logstore/ingest"
	"github.com/xef5000/UltimateLogger/logstore/sqlengine"
	. "github.com/xef5000/UltimateLogger/testutil/helper" //nolint:revive
)

var errWriterDown = errors.New("writer down")

type failingWriter struct{}

func (failingWriter) InsertBatch(context.Context, []logstore.Record) ([]sqlengine.InsertResult, error) {
	return nil, errWriterDown
}

// gatedWriter holds a batch write until release is closed.
type gatedWriter struct {
	writer  ingest.Writer
	entered chan struct{}
	release chan struct{}
}

func (w *gatedWriter) InsertBatch(ctx context.Context, records []logstore.Record) ([]sqlengine.InsertResult, error) {
	close(w.entered)
	<-w.release

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return w.writer.InsertBatch(ctx, records)
}

type invalidationCounter struct {
	count atomic.Int32
}

func (c *invalidationCounter) InvalidateAll() {
	c.count.Add(1)
}

func Test_Persister_Flush_Writes_At_Most_One_Batch_Per_Call(t *testing.T) {
	// setup
	ctx := context.Background()
	store := NewSQLiteStore(t)
	buffer := ingest.NewBuffer()
	persister, err := ingest.NewPersister(buffer, store, ingest.WithBatchSize(100))
	require.NoError(t, err)

	// arrange
	receipts := make([]*ingest.Receipt, 0, 150)
	for i := int64(1); i <= 150; i++ {
		receipts = append(receipts, buffer.Enqueue(FixtureUserLogin("user", i)))
	}

	// act
	firstTick := persister.Flush(ctx)
	depthAfterFirst := buffer.Len()
	secondTick := persister.Flush(ctx)
	thirdTick := persister.Flush(ctx)

	// assert
	assert.Equal(t, 100, firstTick)
	assert.Equal(t, 50, depthAfterFirst)
	assert.Equal(t, 50, secondTick)
	assert.Equal(t, 0, thirdTick)
	assert.Equal(t, 0, buffer.Len())

	seen := make(map[int64]bool, len(receipts))
	previous := logstore.UnsetID
	for _, receipt := range receipts {
		id, waitErr := receipt.Wait(ctx)
		require.NoError(t, waitErr)
		assert.False(t, seen[id], "ids are unique")
		assert.Greater(t, id, previous, "ids follow enqueue order")
		seen[id] = true
		previous = id
	}

	page, queryErr := store.QueryPage(ctx, logstore.Filter{}, 200, 0)
	require.NoError(t, queryErr)
	assert.Len(t, page, 150)
}

func Test_Persister_Flush_Stamps_Timestamp_And_Expiry(t *testing.T) {
	// setup
	ctx := context.Background()
	store := NewSQLiteStore(t)
	buffer := ingest.NewBuffer()
	persister, err := ingest.NewPersister(buffer, store,
		ingest.WithRetention(24*time.Hour),
		ingest.WithClock(func() time.Time { return FakeClock }),
	)
	require.NoError(t, err)

	// arrange
	receipt := buffer.Enqueue(FixtureUserLogin("alice", 1))

	// act
	persister.Flush(ctx)

	// assert
	id, waitErr := receipt.Wait(ctx)
	require.NoError(t, waitErr)

	stored, getErr := store.GetByID(ctx, id)
	require.NoError(t, getErr)
	assert.True(t, FakeClock.Equal(stored.Timestamp))
	require.NotNil(t, stored.ExpiresAt)
	assert.True(t, FakeClock.Add(24*time.Hour).Equal(*stored.ExpiresAt))
	assert.False(t, stored.Archived)
}

func Test_Persister_Flush_Resolves_Callbacks_Publishes_And_Invalidates(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	store := NewSQLiteStore(t)
	buffer := ingest.NewBuffer()
	pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 10}, watermill.NopLogger{})
	defer func() { _ = pubSub.Close() }()

	invalidations := &invalidationCounter{}
	persister, err := ingest.NewPersister(buffer, store,
		ingest.WithPublisher(pubSub),
		ingest.WithInvalidator(invalidations),
	)
	require.NoError(t, err)

	messages, subscribeErr := pubSub.Subscribe(ctx, ingest.TopicPersistedRecords)
	require.NoError(t, subscribeErr)

	// arrange
	callbackID := make(chan int64, 1)
	buffer.EnqueueFunc(FixtureOrderPlaced("A1", 10, "DE"), func(id int64) { callbackID <- id })

	// act
	persisted := persister.Flush(ctx)

	// assert
	assert.Equal(t, 1, persisted)
	assert.Equal(t, int32(1), invalidations.count.Load())

	var id int64
	select {
	case id = <-callbackID:
	case <-ctx.Done():
		t.Fatal("callback was not invoked")
	}

	select {
	case msg := <-messages:
		msg.Ack()

		var published logstore.Record
		require.NoError(t, published.UnmarshalJSON(msg.Payload))
		assert.Equal(t, id, published.ID)
		assert.Equal(t, FixtureTypeOrderPlaced, published.Type)
		assert.Equal(t, FixtureTypeOrderPlaced, msg.Metadata.Get(ingest.MetadataRecordType))
	case <-ctx.Done():
		t.Fatal("persisted record was not published")
	}
}

func Test_Persister_Flush_When_Writer_Fails_Then_Receipts_Resolve_With_Error(t *testing.T) {
	// setup
	ctx := context.Background()
	buffer := ingest.NewBuffer()
	testHandler := NewLogHandlerSpy(false)
	metrics := NewMetricsCollectorSpy()
	invalidations := &invalidationCounter{}
	persister, err := ingest.NewPersister(buffer, failingWriter{},
		ingest.WithLogger(slog.New(testHandler)),
		ingest.WithMetrics(metrics),
		ingest.WithInvalidator(invalidations),
	)
	require.NoError(t, err)

	// arrange
	receipt := buffer.Enqueue(FixtureUserLogin("alice", 1))

	// act
	persisted := persister.Flush(ctx)

	// assert
	assert.Equal(t, 0, persisted)
	_, waitErr := receipt.Wait(ctx)
	assert.ErrorIs(t, waitErr, errWriterDown)
	assert.Equal(t, int32(0), invalidations.count.Load(), "nothing changed, nothing to invalidate")
	assert.True(t, testHandler.HasErrorLog("batch write failed, records dropped"))
	assert.True(t, metrics.HasCounterRecord("ultimatelogger_batch_failed_records_total"))
}

func Test_Persister_Run_Drains_The_Buffer_When_Stopped(t *testing.T) {
	// setup
	store := NewSQLiteStore(t)
	buffer := ingest.NewBuffer()
	persister, err := ingest.NewPersister(buffer, store,
		ingest.WithBatchSize(10),
		ingest.WithBatchInterval(time.Hour),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	// arrange
	receipts := make([]*ingest.Receipt, 0, 25)
	for i := int64(1); i <= 25; i++ {
		receipts = append(receipts, buffer.Enqueue(FixtureUserLogin("user", i)))
	}

	// act
	go func() {
		persister.Run(ctx)
		close(done)
	}()
	cancel()
	<-done

	// assert
	assert.Equal(t, 0, buffer.Len())
	for _, receipt := range receipts {
		_, waitErr := receipt.Wait(context.Background())
		assert.NoError(t, waitErr)
	}

	_, lateErr := buffer.Enqueue(FixtureUserLogin("late", 1)).Wait(context.Background())
	assert.ErrorIs(t, lateErr, logstore.ErrShutdown)
}

func Test_Persister_Flush_Invalidates_Before_Producers_Observe_The_Write(t *testing.T) {
	// setup
	ctx := context.Background()
	store := NewSQLiteStore(t)
	buffer := ingest.NewBuffer()
	invalidations := &invalidationCounter{}
	persister, err := ingest.NewPersister(buffer, store, ingest.WithInvalidator(invalidations))
	require.NoError(t, err)

	// arrange
	invalidationsSeen := make(chan int32, 1)
	receipt := buffer.EnqueueFunc(FixtureUserLogin("alice", 1), func(int64) {
		invalidationsSeen <- invalidations.count.Load()
	})

	// act
	persister.Flush(ctx)

	// assert
	_, waitErr := receipt.Wait(ctx)
	require.NoError(t, waitErr)
	assert.Equal(t, int32(1), <-invalidationsSeen)
}

func Test_Persister_Run_When_Stopped_During_A_Write_Then_The_Batch_Is_Still_Persisted(t *testing.T) {
	// setup
	store := NewSQLiteStore(t)
	buffer := ingest.NewBuffer()
	writer := &gatedWriter{writer: store, entered: make(chan struct{}), release: make(chan struct{})}
	persister, err := ingest.NewPersister(buffer, writer, ingest.WithBatchInterval(10*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	// arrange
	receipt := buffer.Enqueue(FixtureUserLogin("alice", 1))

	go func() {
		persister.Run(ctx)
		close(done)
	}()
	<-writer.entered

	// act
	cancel()
	close(writer.release)
	<-done

	// assert
	id, waitErr := receipt.Wait(context.Background())
	require.NoError(t, waitErr)

	stored, getErr := store.GetByID(context.Background(), id)
	require.NoError(t, getErr)
	assert.Equal(t, FixtureTypeUserLogin, stored.Type)
}

func Test_Persister_Metrics_Report_Queue_Depth(t *testing.T) {
	// setup
	store := NewSQLiteStore(t)
	buffer := ingest.NewBuffer()
	metrics := NewMetricsCollectorSpy()
	persister, err := ingest.NewPersister(buffer, store, ingest.WithBatchSize(2), ingest.WithMetrics(metrics))
	require.NoError(t, err)

	// arrange
	for i := int64(1); i <= 3; i++ {
		buffer.Enqueue(FixtureUserLogin("user", i))
	}

	// act
	persister.Flush(context.Background())

	// assert
	depth, found := metrics.LastValueForMetric("ultimatelogger_queue_depth")
	assert.True(t, found)
	assert.Equal(t, 1.0, depth)
	assert.True(t,
		metrics.HasDurationRecordForMetric("ultimatelogger_batch_flush_duration_seconds").
			WithStatus("success").
			Assert(),
	)
}

func Test_NewPersister_Rejects_Invalid_Settings(t *testing.T) {
	// act
	_, missingErr := ingest.NewPersister(nil, failingWriter{})
	_, sizeErr := ingest.NewPersister(ingest.NewBuffer(), failingWriter{}, ingest.WithBatchSize(0))
	_, intervalErr := ingest.NewPersister(ingest.NewBuffer(), failingWriter{}, ingest.WithBatchInterval(0))

	// assert
	assert.ErrorIs(t, missingErr, ingest.ErrMissingDependency)
	assert.ErrorIs(t, sizeErr, ingest.ErrInvalidBatchSetting)
	assert.ErrorIs(t, intervalErr, ingest.ErrInvalidBatchSetting)
}
