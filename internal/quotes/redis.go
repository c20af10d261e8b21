package quotes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jfibra/alien-shippo-sub001/internal/models"
	"github.com/jfibra/alien-shippo-sub001/internal/store"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisStore keeps each quote as a JSON value under quote:<user>:<quote>.
// The key outlives the quote by expiredGrace so expiry can be reported.
type RedisStore struct {
	rdb *goredis.Client
	now func() time.Time
}

func NewRedisStore(ctx context.Context, cfg models.QuoteStoreConfig) (*RedisStore, error) {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		return nil, fmt.Errorf("missing redis address for quote store")
	}
	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DB:          cfg.RedisDB,
		DialTimeout: dialTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	zap.L().Info("Quote store connected to redis", zap.String("addr", addr), zap.Int("db", cfg.RedisDB))
	return NewRedisStoreWithClient(rdb), nil
}

func NewRedisStoreWithClient(rdb *goredis.Client) *RedisStore {
	return &RedisStore{rdb: rdb, now: time.Now}
}

func quoteKey(userId, quoteId string) string {
	return "quote:" + userId + ":" + quoteId
}

func (r *RedisStore) Save(ctx context.Context, quotes []models.RateQuote) error {
	if len(quotes) == 0 {
		return nil
	}
	now := r.now()
	pipe := r.rdb.TxPipeline()
	for _, q := range quotes {
		raw, err := json.Marshal(q)
		if err != nil {
			return fmt.Errorf("encode quote %s: %w", q.QuoteId, err)
		}
		ttl := q.ExpiresAt.Sub(now) + expiredGrace
		pipe.Set(ctx, quoteKey(q.UserId, q.QuoteId), raw, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save quotes: %w", err)
	}
	return nil
}

func (r *RedisStore) Get(ctx context.Context, userId, quoteId string) (*models.RateQuote, error) {
	return r.load(ctx, r.rdb, userId, quoteId)
}

// Take deletes the key in a WATCH transaction, so a concurrent Take of the
// same quote aborts and reports ErrNotFound.
func (r *RedisStore) Take(ctx context.Context, userId, quoteId string) (*models.RateQuote, error) {
	key := quoteKey(userId, quoteId)
	var taken *models.RateQuote

	err := r.rdb.Watch(ctx, func(tx *goredis.Tx) error {
		q, err := r.load(ctx, tx, userId, quoteId)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Del(ctx, key)
			return nil
		})
		if err != nil {
			return err
		}
		taken = q
		return nil
	}, key)
	if errors.Is(err, goredis.TxFailedErr) {
		return nil, fmt.Errorf("quote %s: %w", quoteId, store.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return taken, nil
}

type stringGetter interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
}

func (r *RedisStore) load(ctx context.Context, c stringGetter, userId, quoteId string) (*models.RateQuote, error) {
	raw, err := c.Get(ctx, quoteKey(userId, quoteId)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return checkQuote(nil, userId, quoteId, r.now())
	}
	if err != nil {
		return nil, fmt.Errorf("load quote %s: %w", quoteId, err)
	}

	var q models.RateQuote
	if err := json.Unmarshal(raw, &q); err != nil {
		return nil, fmt.Errorf("decode quote %s: %w", quoteId, err)
	}
	return checkQuote(&q, userId, quoteId, r.now())
}

func (r *RedisStore) Close() error {
	return r.rdb.Close()
}
