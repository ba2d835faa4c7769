package querycache_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xef5000/UltimateLogger/logstore"
	"github.com/xef5000/UltimateLogger/logstore/querycache"
	. "github.com/xef5000/UltimateLogger/testutil/helper" //nolint:revive
)

func Test_NewKey_When_Filters_Are_Structurally_Equal_Then_Keys_Are_Equal(t *testing.T) {
	// arrange
	first := logstore.BuildFilter().OfType("chat").Where("message", logstore.Contains, "hi").Finalize()
	second := logstore.NewFilter("chat", logstore.Cond("message", logstore.Contains, "hi"))
	orVariant := logstore.NewFilter("chat", logstore.OrCond("message", logstore.Contains, "hi"))

	// act & assert
	assert.Equal(t, querycache.NewKey(0, 20, first), querycache.NewKey(0, 20, second))
	assert.NotEqual(t, querycache.NewKey(0, 20, first), querycache.NewKey(0, 20, orVariant))
	assert.NotEqual(t, querycache.NewKey(0, 20, first), querycache.NewKey(1, 20, first))
	assert.NotEqual(t, querycache.NewKey(0, 20, first), querycache.NewKey(0, 10, first), "page size is part of the key")
}

func Test_Cache_Set_Get_And_InvalidateAll(t *testing.T) {
	// setup
	cache, err := querycache.New(10, time.Minute)
	require.NoError(t, err)
	defer cache.Close()

	// arrange
	key := querycache.NewKey(0, 2, logstore.Filter{})
	page := []logstore.Record{FixtureUserLogin("alice", 1), FixtureUserLogin("bob", 2)}

	// act
	_, foundBefore := cache.Get(key)
	cache.SetIfCurrent(cache.Generation(), key, page)
	cached, foundAfter := cache.Get(key)
	cache.InvalidateAll()
	_, foundAfterInvalidation := cache.Get(key)

	// assert
	assert.False(t, foundBefore)
	assert.True(t, foundAfter)
	assert.Len(t, cached, 2)
	assert.False(t, foundAfterInvalidation)
	assert.Equal(t, 0, cache.Size())
}

func Test_Cache_Get_Returns_A_Copy(t *testing.T) {
	// setup
	cache, err := querycache.New(10, time.Minute)
	require.NoError(t, err)
	defer cache.Close()

	key := querycache.NewKey(0, 1, logstore.Filter{})
	cache.SetIfCurrent(cache.Generation(), key, []logstore.Record{FixtureUserLogin("alice", 1)})

	// act
	cached, _ := cache.Get(key)
	cached[0].Type = "tampered"
	cached[0].Payload.Set("username", logstore.StringValue("mallory"))
	again, _ := cache.Get(key)

	// assert
	assert.Equal(t, FixtureTypeUserLogin, again[0].Type)
	username, _ := again[0].Payload.Get("username")
	assert.Equal(t, "alice", username.String())
}

func Test_Cache_SetIfCurrent_When_Invalidated_Meanwhile_Then_The_Page_Is_Not_Stored(t *testing.T) {
	// setup
	cache, err := querycache.New(10, time.Minute)
	require.NoError(t, err)
	defer cache.Close()

	key := querycache.NewKey(0, 1, logstore.Filter{})

	// arrange
	generation := cache.Generation()
	cache.InvalidateAll()

	// act
	stored := cache.SetIfCurrent(generation, key, []logstore.Record{FixtureUserLogin("alice", 1)})
	_, found := cache.Get(key)

	// assert
	assert.False(t, stored)
	assert.False(t, found)
}

func Test_Cache_Get_Restarts_The_Expiry_Of_The_Page(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for entries to expire")
	}

	// setup
	cache, err := querycache.New(10, 4*time.Second)
	require.NoError(t, err)
	defer cache.Close()

	readKey := querycache.NewKey(0, 1, logstore.Filter{})
	idleKey := querycache.NewKey(1, 1, logstore.Filter{})
	page := []logstore.Record{FixtureUserLogin("alice", 1)}

	// arrange
	cache.SetIfCurrent(cache.Generation(), readKey, page)
	cache.SetIfCurrent(cache.Generation(), idleKey, page)
	time.Sleep(3 * time.Second)

	_, readHit := cache.Get(readKey)
	require.True(t, readHit)

	// act
	time.Sleep(3 * time.Second)
	_, readStillCached := cache.Get(readKey)
	_, idleStillCached := cache.Get(idleKey)

	// assert
	assert.True(t, readStillCached, "a page read within the ttl stays cached")
	assert.False(t, idleStillCached, "a page nobody read expires ttl after it was stored")
}

func Test_New_When_Capacity_Is_Not_Positive_Then_It_Fails(t *testing.T) {
	// act
	_, err := querycache.New(0, time.Minute)

	// assert
	assert.ErrorIs(t, err, querycache.ErrInvalidCapacity)
}
