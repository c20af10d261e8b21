package quotes

import (
	"context"
	"sync"
	"time"

	"github.com/jfibra/alien-shippo-sub001/internal/models"
)

// expiredGrace keeps expired quotes around briefly so a late purchase gets
// ErrQuoteExpired instead of ErrNotFound.
const expiredGrace = time.Hour

type MemoryStore struct {
	mu     sync.Mutex
	quotes map[string]models.RateQuote
	now    func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{quotes: make(map[string]models.RateQuote), now: time.Now}
}

func (m *MemoryStore) Save(_ context.Context, quotes []models.RateQuote) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sweepLocked()
	for _, q := range quotes {
		m.quotes[q.QuoteId] = q
	}
	return nil
}

func (m *MemoryStore) Get(_ context.Context, userId, quoteId string) (*models.RateQuote, error) {
	m.mu.Lock()
	q, ok := m.quotes[quoteId]
	m.mu.Unlock()

	if !ok {
		return checkQuote(nil, userId, quoteId, m.now())
	}
	return checkQuote(&q, userId, quoteId, m.now())
}

func (m *MemoryStore) Take(_ context.Context, userId, quoteId string) (*models.RateQuote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var found *models.RateQuote
	if q, ok := m.quotes[quoteId]; ok {
		found = &q
	}
	taken, err := checkQuote(found, userId, quoteId, m.now())
	if err != nil {
		return nil, err
	}
	delete(m.quotes, quoteId)
	return taken, nil
}

func (m *MemoryStore) sweepLocked() {
	cutoff := m.now().Add(-expiredGrace)
	for id, q := range m.quotes {
		if q.ExpiresAt.Before(cutoff) {
			delete(m.quotes, id)
		}
	}
}
