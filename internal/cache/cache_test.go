package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type feedEntry struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

func setupRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	prev := client
	SetClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() {
		_ = client.Close()
		client = prev
	})
	return mr
}

func TestAside_MissThenHit(t *testing.T) {
	mr := setupRedis(t)
	ctx := context.Background()

	calls := 0
	fetch := func(dest *[]feedEntry) func() error {
		return func() error {
			calls++
			*dest = []feedEntry{{ID: 1, Name: "Kilimani bedsitter"}}
			return nil
		}
	}

	var first []feedEntry
	require.NoError(t, Aside(ctx, ListingFeedKey, &first, time.Minute, fetch(&first)))
	assert.Equal(t, 1, calls)
	assert.True(t, mr.Exists(ListingFeedKey))

	var second []feedEntry
	require.NoError(t, Aside(ctx, ListingFeedKey, &second, time.Minute, fetch(&second)))
	assert.Equal(t, 1, calls, "second read should be served from redis")
	assert.Equal(t, first, second)
}

func TestAside_FetchErrorNotCached(t *testing.T) {
	mr := setupRedis(t)

	var dest []feedEntry
	err := Aside(context.Background(), ListingKey(3), &dest, time.Minute, func() error {
		return errors.New("db down")
	})
	assert.EqualError(t, err, "db down")
	assert.False(t, mr.Exists(ListingKey(3)))
}

func TestAside_WithoutRedisFallsThrough(t *testing.T) {
	prev := client
	client = nil
	t.Cleanup(func() { client = prev })

	var dest []feedEntry
	called := false
	require.NoError(t, Aside(context.Background(), ListingFeedKey, &dest, time.Minute, func() error {
		called = true
		return nil
	}))
	assert.True(t, called)
}

func TestInvalidateListing(t *testing.T) {
	mr := setupRedis(t)
	ctx := context.Background()

	require.NoError(t, SetJSON(ctx, ListingKey(9), feedEntry{ID: 9}, time.Minute))
	require.NoError(t, SetJSON(ctx, ListingFeedKey, []feedEntry{{ID: 9}}, time.Minute))

	InvalidateListing(ctx, 9)
	assert.False(t, mr.Exists(ListingKey(9)))
	assert.False(t, mr.Exists(ListingFeedKey))
}

func TestKeyHelpers(t *testing.T) {
	assert.Equal(t, "listing:12", ListingKey(12))
	assert.Equal(t, "ws_ticket:abc", WSTicketKey("abc"))
	assert.Equal(t, "blacklist:j1", TokenBlacklistKey("j1"))
	assert.Equal(t, "pwreset:tok", PasswordResetKey("tok"))
	assert.Equal(t, "listings", keyFamily(ListingFeedKey))
}

func TestParseOptions(t *testing.T) {
	opts, err := ParseOptions("redis://:pw@cache:6380/2")
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, 2, opts.DB)

	opts, err = ParseOptions("localhost:6379")
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", opts.Addr)
}
