package quotes

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jfibra/alien-shippo-sub001/internal/models"
	"github.com/jfibra/alien-shippo-sub001/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleQuote(id, userId string, expiresAt time.Time) models.RateQuote {
	return models.RateQuote{
		QuoteId:   id,
		UserId:    userId,
		Provider:  "shippo",
		Carrier:   "USPS",
		Amount:    decimal.RequireFromString("7.35"),
		Currency:  "USD",
		CreatedAt: expiresAt.Add(-5 * time.Minute),
		ExpiresAt: expiresAt,
	}
}

func exerciseStore(t *testing.T, s Store, setNow func(time.Time)) {
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	setNow(base)

	require.NoError(t, s.Save(ctx, []models.RateQuote{
		sampleQuote("q1", "alice", base.Add(5*time.Minute)),
		sampleQuote("q2", "alice", base.Add(time.Minute)),
	}))

	q, err := s.Get(ctx, "alice", "q1")
	require.NoError(t, err)
	assert.True(t, q.Amount.Equal(decimal.RequireFromString("7.35")))

	_, err = s.Get(ctx, "bob", "q1")
	assert.ErrorIs(t, err, store.ErrNotFound, "quotes are private to their user")

	_, err = s.Get(ctx, "alice", "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	setNow(base.Add(2 * time.Minute))
	_, err = s.Get(ctx, "alice", "q2")
	assert.ErrorIs(t, err, store.ErrQuoteExpired)

	_, err = s.Get(ctx, "alice", "q1")
	assert.NoError(t, err)

	_, err = s.Take(ctx, "alice", "q2")
	assert.ErrorIs(t, err, store.ErrQuoteExpired, "expired quotes are not taken")
	_, err = s.Get(ctx, "alice", "q2")
	assert.ErrorIs(t, err, store.ErrQuoteExpired)

	_, err = s.Take(ctx, "bob", "q1")
	assert.ErrorIs(t, err, store.ErrNotFound)

	q, err = s.Take(ctx, "alice", "q1")
	require.NoError(t, err)
	assert.Equal(t, "q1", q.QuoteId)

	_, err = s.Take(ctx, "alice", "q1")
	assert.ErrorIs(t, err, store.ErrNotFound, "a quote is taken once")
	_, err = s.Get(ctx, "alice", "q1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	exerciseStore(t, s, func(now time.Time) { s.now = func() time.Time { return now } })
}

func TestMemoryStore_ConcurrentTake(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, []models.RateQuote{sampleQuote("q1", "alice", time.Now().Add(time.Minute))}))

	var (
		wg    sync.WaitGroup
		taken atomic.Int32
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Take(ctx, "alice", "q1"); err == nil {
				taken.Add(1)
			} else {
				assert.ErrorIs(t, err, store.ErrNotFound)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), taken.Load())
}

func TestMemoryStore_SweepsOldQuotes(t *testing.T) {
	s := NewMemoryStore()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }
	require.NoError(t, s.Save(context.Background(), []models.RateQuote{sampleQuote("old", "alice", base)}))

	s.now = func() time.Time { return base.Add(2 * expiredGrace) }
	require.NoError(t, s.Save(context.Background(), nil))

	_, err := s.Get(context.Background(), "alice", "old")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	s, err := NewRedisStore(context.Background(), models.QuoteStoreConfig{Backend: BackendRedis, RedisAddr: addr})
	require.NoError(t, err)
	defer s.Close()

	exerciseStore(t, s, func(now time.Time) { s.now = func() time.Time { return now } })
}

func TestNew_UnknownBackend(t *testing.T) {
	_, err := New(context.Background(), models.QuoteStoreConfig{Backend: "memcached"})
	assert.Error(t, err)
}
