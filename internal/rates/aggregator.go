package rates

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jfibra/alien-shippo-sub001/internal/models"
	"github.com/jfibra/alien-shippo-sub001/internal/quotes"
	"github.com/jfibra/alien-shippo-sub001/internal/store"
	"github.com/jfibra/alien-shippo-sub001/internal/validation"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/jfibra/alien-shippo-sub001/internal/rates"

// Aggregator fans a shipment request out to every provider and merges what
// comes back within the overall deadline.
type Aggregator struct {
	providers      []Provider
	quotes         quotes.Store
	currency       string
	quoteTTL       time.Duration
	overallTimeout time.Duration
	now            func() time.Time
	tracer         trace.Tracer
}

func NewAggregator(providers []Provider, quoteStore quotes.Store, currency string, cfg models.RatesConfig) *Aggregator {
	ttl := cfg.QuoteTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	overall := cfg.AggregateTimeout
	if overall <= 0 {
		overall = 10 * time.Second
	}
	return &Aggregator{
		providers:      providers,
		quotes:         quoteStore,
		currency:       models.NormalizeCurrency(currency),
		quoteTTL:       ttl,
		overallTimeout: overall,
		now:            time.Now,
		tracer:         otel.Tracer(tracerName),
	}
}

// Providers returns the names of the configured providers.
func (a *Aggregator) Providers() []string {
	names := make([]string, len(a.providers))
	for i, p := range a.providers {
		names[i] = p.Name()
	}
	return names
}

type providerResult struct {
	provider string
	quotes   []models.RateQuote
	err      error
	elapsed  time.Duration
}

// GetRates validates req, queries all providers concurrently and stores the
// accepted quotes for userId. It fails only when no provider produced a
// usable quote.
func (a *Aggregator) GetRates(ctx context.Context, userId string, req models.ShipmentRequest) (*models.RateResult, error) {
	if userId == "" {
		return nil, store.NewValidationError("user_id", "is required")
	}
	normalized, err := validation.ShipmentRequest(req)
	if err != nil {
		return nil, err
	}
	if len(a.providers) == 0 {
		return nil, fmt.Errorf("%w: no rate providers configured", store.ErrNoRates)
	}

	ctx, span := a.tracer.Start(ctx, "rates.aggregate", trace.WithAttributes(
		attribute.String("user_id", userId),
		attribute.Int("providers", len(a.providers)),
	))
	defer span.End()

	fanCtx, cancel := context.WithTimeout(ctx, a.overallTimeout)
	defer cancel()

	// Buffered so abandoned providers never block on send.
	results := make(chan providerResult, len(a.providers))
	for _, p := range a.providers {
		go a.fetch(fanCtx, p, normalized, results)
	}

	pending := make(map[string]bool, len(a.providers))
	for _, p := range a.providers {
		pending[p.Name()] = true
	}

	var collected []providerResult
collect:
	for len(pending) > 0 {
		select {
		case r := <-results:
			delete(pending, r.provider)
			collected = append(collected, r)
		case <-fanCtx.Done():
			break collect
		}
	}

	var accepted []models.RateQuote
	var warnings []models.ProviderWarning
	now := a.now()

	for _, r := range collected {
		if r.err != nil {
			msg := providerMessage(r.err)
			zap.L().Warn("Rate provider failed",
				zap.String("provider", r.provider),
				zap.Duration("elapsed", r.elapsed),
				zap.Error(r.err))
			warnings = append(warnings, models.ProviderWarning{Provider: r.provider, Message: msg})
			continue
		}
		kept, dropped := a.normalize(userId, r.provider, r.quotes, now)
		accepted = append(accepted, kept...)
		warnings = append(warnings, dropped...)
		if len(r.quotes) == 0 {
			warnings = append(warnings, models.ProviderWarning{Provider: r.provider, Message: "returned no rates"})
		}
	}
	for name := range pending {
		zap.L().Warn("Rate provider abandoned at aggregate deadline", zap.String("provider", name))
		warnings = append(warnings, models.ProviderWarning{Provider: name, Message: "timed out"})
	}

	sort.SliceStable(warnings, func(i, j int) bool {
		if warnings[i].Provider != warnings[j].Provider {
			return warnings[i].Provider < warnings[j].Provider
		}
		return warnings[i].Message < warnings[j].Message
	})

	if len(accepted) == 0 {
		err := noRatesError(warnings)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		zap.L().Error("No rates available", zap.String("user_id", userId), zap.Error(err))
		return nil, err
	}

	sort.SliceStable(accepted, func(i, j int) bool {
		if !accepted[i].Amount.Equal(accepted[j].Amount) {
			return accepted[i].Amount.LessThan(accepted[j].Amount)
		}
		if accepted[i].Provider != accepted[j].Provider {
			return accepted[i].Provider < accepted[j].Provider
		}
		return accepted[i].ServiceLevelName < accepted[j].ServiceLevelName
	})

	if err := a.quotes.Save(ctx, accepted); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("unable to store quotes: %w", err)
	}

	span.SetAttributes(attribute.Int("quotes", len(accepted)), attribute.Int("warnings", len(warnings)))
	zap.L().Info("Rates aggregated",
		zap.String("user_id", userId),
		zap.Int("quotes", len(accepted)),
		zap.Int("warnings", len(warnings)))

	return &models.RateResult{Quotes: accepted, Warnings: warnings}, nil
}

func (a *Aggregator) fetch(ctx context.Context, p Provider, req models.ShipmentRequest, results chan<- providerResult) {
	start := time.Now()
	ctx, span := a.tracer.Start(ctx, "rates.provider", trace.WithAttributes(attribute.String("provider", p.Name())))
	defer span.End()

	timeout := p.Timeout()
	if timeout <= 0 {
		timeout = a.overallTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var got []models.RateQuote
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("provider panicked: %v", r)
			}
		}()
		got, err = p.FetchRates(ctx, req)
		return err
	}()
	if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		err = fmt.Errorf("timed out after %s: %w", timeout, err)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	results <- providerResult{provider: p.Name(), quotes: got, err: err, elapsed: time.Since(start)}
}

// normalize rounds amounts up to the ledger precision and drops quotes that
// cannot be purchased.
func (a *Aggregator) normalize(userId, provider string, raw []models.RateQuote, now time.Time) ([]models.RateQuote, []models.ProviderWarning) {
	var kept []models.RateQuote
	var warnings []models.ProviderWarning
	foreign := map[string]int{}
	nonPositive := 0

	for _, q := range raw {
		currency := models.NormalizeCurrency(q.Currency)
		if currency != a.currency {
			foreign[currency]++
			continue
		}
		if !q.Amount.IsPositive() {
			nonPositive++
			continue
		}
		q.QuoteId = uuid.New().String()
		q.UserId = userId
		q.Provider = provider
		q.Currency = currency
		q.Amount = models.RoundUp(q.Amount, currency)
		q.CreatedAt = now
		q.ExpiresAt = now.Add(a.quoteTTL)
		kept = append(kept, q)
	}

	currencies := make([]string, 0, len(foreign))
	for c := range foreign {
		currencies = append(currencies, c)
	}
	sort.Strings(currencies)
	for _, c := range currencies {
		warnings = append(warnings, models.ProviderWarning{
			Provider: provider,
			Message:  fmt.Sprintf("dropped %d quote(s) in %s, expected %s", foreign[c], c, a.currency),
		})
	}
	if nonPositive > 0 {
		warnings = append(warnings, models.ProviderWarning{
			Provider: provider,
			Message:  fmt.Sprintf("dropped %d quote(s) with a non-positive amount", nonPositive),
		})
	}
	return kept, warnings
}

func providerMessage(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timed out"
	}
	var pe *store.ProviderError
	if errors.As(err, &pe) {
		return pe.Err.Error()
	}
	return err.Error()
}

func noRatesError(warnings []models.ProviderWarning) error {
	parts := make([]string, 0, len(warnings))
	for _, w := range warnings {
		parts = append(parts, w.Provider+": "+w.Message)
	}
	return fmt.Errorf("%w: %s", store.ErrNoRates, strings.Join(parts, "; "))
}
