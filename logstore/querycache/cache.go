// Package querycache holds recently served result pages so repeated reads skip the storage backend.
package querycache

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/maypok86/otter"

	"github.com/xef5000/UltimateLogger/logstore"
)

// ErrInvalidCapacity is returned for a cache that could not hold a single page.
var ErrInvalidCapacity = errors.New("cache capacity must be positive")

// Key identifies one result page: zero-based page index, page size and the canonical filter text.
type Key struct {
	Page     int
	PageSize int
	Filter   string
}

// NewKey builds the key of a page. Filters that serialize identically share entries.
func NewKey(page0, pageSize int, filter logstore.Filter) Key {
	return Key{Page: page0, PageSize: pageSize, Filter: logstore.Serialize(filter)}
}

func (k Key) String() string {
	return fmt.Sprintf("%d/%d/%s", k.Page, k.PageSize, k.Filter)
}

// Cache is a bounded page cache whose entries expire when they have not been read for a while.
// It is safe for concurrent use.
//
// Every InvalidateAll starts a new generation. A page computed from storage is only stored when
// no invalidation happened since the reader took its generation, so a page read before a
// mutation can never be served after it.
type Cache struct {
	pages otter.Cache[Key, []logstore.Record]

	mu         sync.Mutex
	generation uint64
}

// New creates a cache holding at most maxSize pages, each for at most ttl after it was last stored or read.
func New(maxSize int, ttl time.Duration) (*Cache, error) {
	if maxSize <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCapacity, maxSize)
	}

	pages, err := otter.MustBuilder[Key, []logstore.Record](maxSize).
		WithTTL(ttl).
		Build()
	if err != nil {
		return nil, err
	}

	return &Cache{pages: pages}, nil
}

// Get returns a deep copy of the cached page and restarts its expiry.
func (c *Cache) Get(key Key) ([]logstore.Record, bool) {
	generation := c.Generation()

	page, found := c.pages.Get(key)
	if !found {
		return nil, false
	}

	// storing again restarts the expiry
	c.SetIfCurrent(generation, key, page)

	return clonePage(page), true
}

// Generation returns the current invalidation generation, to be passed to SetIfCurrent.
func (c *Cache) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.generation
}

// SetIfCurrent stores page unless the cache was invalidated after generation was taken.
// It reports whether the page was stored.
func (c *Cache) SetIfCurrent(generation uint64, key Key, page []logstore.Record) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if generation != c.generation {
		return false
	}

	c.pages.Set(key, clonePage(page))

	return true
}

// InvalidateAll drops every page. It runs after every successful mutation of the store.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generation++
	c.pages.Clear()
}

func (c *Cache) Size() int {
	return c.pages.Size()
}

// Close stops the cache's background maintenance.
func (c *Cache) Close() {
	c.pages.Close()
}

func clonePage(page []logstore.Record) []logstore.Record {
	cloned := make([]logstore.Record, len(page))
	for i, record := range page {
		cloned[i] = record.Clone()
	}

	return cloned
}
