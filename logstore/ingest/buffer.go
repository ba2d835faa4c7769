package ingest

import (
	"context"
	"sync"

	"github.com/gammazero/deque"

	"github.com/xef5000/UltimateLogger/logstore"
)

// Receipt resolves once the record it was issued for has been persisted or dropped.
type Receipt struct {
	done        chan struct{}
	once        sync.Once
	id          int64
	err         error
	onPersisted func(int64)
}

func newReceipt(onPersisted func(int64)) *Receipt {
	return &Receipt{done: make(chan struct{}), onPersisted: onPersisted}
}

// Done is closed when the receipt is resolved.
func (r *Receipt) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the record is persisted or ctx ends and returns the assigned id.
func (r *Receipt) Wait(ctx context.Context) (int64, error) {
	select {
	case <-r.done:
		return r.id, r.err
	case <-ctx.Done():
		return logstore.UnsetID, ctx.Err()
	}
}

// ID returns the assigned id, or logstore.UnsetID while unresolved or when persisting failed.
func (r *Receipt) ID() int64 {
	select {
	case <-r.done:
		return r.id
	default:
		return logstore.UnsetID
	}
}

// Err returns why the record was dropped, nil while unresolved or after success.
func (r *Receipt) Err() error {
	select {
	case <-r.done:
		return r.err
	default:
		return nil
	}
}

func (r *Receipt) resolve(id int64, err error) {
	r.once.Do(func() {
		r.id = id
		r.err = err
		close(r.done)

		if err == nil && r.onPersisted != nil {
			r.onPersisted(id)
		}
	})
}

// Item is a queued record with the receipt handed to its producer.
type Item struct {
	Record  logstore.Record
	Receipt *Receipt
}

// Buffer is the unbounded FIFO between producers and the persister.
// Enqueue never blocks on storage and is safe for concurrent use.
type Buffer struct {
	mu     sync.Mutex
	items  *deque.Deque[Item]
	closed bool
}

func NewBuffer() *Buffer {
	return &Buffer{items: deque.New[Item]()}
}

// Enqueue appends a record and returns its receipt.
// After Close the receipt resolves immediately with logstore.ErrShutdown.
func (b *Buffer) Enqueue(record logstore.Record) *Receipt {
	return b.EnqueueFunc(record, nil)
}

// EnqueueFunc is Enqueue with a callback invoked with the assigned id after a successful write.
// The callback runs on the persister goroutine and must not block.
func (b *Buffer) EnqueueFunc(record logstore.Record, onPersisted func(int64)) *Receipt {
	receipt := newReceipt(onPersisted)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		receipt.resolve(logstore.UnsetID, logstore.ErrShutdown)

		return receipt
	}

	b.items.PushBack(Item{Record: record, Receipt: receipt})
	b.mu.Unlock()

	return receipt
}

// Len reports the current queue depth.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.items.Len()
}

// PopN removes up to n items in FIFO order.
func (b *Buffer) PopN(n int) []Item {
	b.mu.Lock()
	defer b.mu.Unlock()

	count := min(n, b.items.Len())
	if count <= 0 {
		return nil
	}

	popped := make([]Item, 0, count)
	for range count {
		popped = append(popped, b.items.PopFront())
	}

	return popped
}

// Close rejects further records. Items already queued stay available to PopN.
func (b *Buffer) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
}
