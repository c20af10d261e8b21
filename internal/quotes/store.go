package quotes

import (
	"context"
	"fmt"
	"time"

	"github.com/jfibra/alien-shippo-sub001/internal/models"
	"github.com/jfibra/alien-shippo-sub001/internal/store"
)

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Store keeps accepted rate quotes until they expire or are taken. Get and
// Take only return quotes owned by userId.
type Store interface {
	Save(ctx context.Context, quotes []models.RateQuote) error
	Get(ctx context.Context, userId, quoteId string) (*models.RateQuote, error)
	// Take removes a live quote and returns it. Of several concurrent callers
	// exactly one gets the quote; the others see ErrNotFound. Expired quotes
	// are left in place.
	Take(ctx context.Context, userId, quoteId string) (*models.RateQuote, error)
}

// New builds the configured quote store.
func New(ctx context.Context, cfg models.QuoteStoreConfig) (Store, error) {
	switch cfg.Backend {
	case "", BackendMemory:
		return NewMemoryStore(), nil
	case BackendRedis:
		return NewRedisStore(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported quote store backend %q", cfg.Backend)
	}
}

// checkQuote applies the ownership and expiry rules shared by the backends.
func checkQuote(q *models.RateQuote, userId, quoteId string, now time.Time) (*models.RateQuote, error) {
	if q == nil || q.UserId != userId {
		return nil, fmt.Errorf("quote %s: %w", quoteId, store.ErrNotFound)
	}
	if q.Expired(now) {
		return nil, fmt.Errorf("%w: quote %s expired at %s", store.ErrQuoteExpired, quoteId, q.ExpiresAt.Format(time.RFC3339))
	}
	return q, nil
}
