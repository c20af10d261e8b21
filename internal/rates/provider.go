package rates

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jfibra/alien-shippo-sub001/internal/models"
)

// Provider fetches quotes for one shipment from a single rate source. The
// returned quotes carry carrier, service, amount, currency and linkage; the
// aggregator fills in ids, ownership and expiry.
type Provider interface {
	Name() string
	Timeout() time.Duration
	FetchRates(ctx context.Context, req models.ShipmentRequest) ([]models.RateQuote, error)
}

// BuildProviders creates the enabled providers from their configuration.
// Providers without an explicit timeout use defaultTimeout.
func BuildProviders(configs []models.ProviderConfig, defaultTimeout time.Duration, client *http.Client) ([]Provider, error) {
	var providers []Provider
	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}
		if cfg.Timeout <= 0 {
			cfg.Timeout = defaultTimeout
		}
		if cfg.Name == "" {
			cfg.Name = cfg.Kind
		}

		if cfg.Mock {
			providers = append(providers, NewMockProvider(cfg))
			continue
		}
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("provider %s: missing API key (set %s or enable mock mode)", cfg.Name, cfg.APIKeyEnv)
		}

		switch cfg.Kind {
		case models.ProviderKindShippo:
			providers = append(providers, NewShippoProvider(cfg, client))
		case models.ProviderKindEasyPost:
			providers = append(providers, NewEasyPostProvider(cfg, client))
		case models.ProviderKindShipEngine:
			providers = append(providers, NewShipEngineProvider(cfg, client))
		default:
			return nil, fmt.Errorf("provider %s: unknown kind %q", cfg.Name, cfg.Kind)
		}
	}
	return providers, nil
}

// postJSON sends body as JSON and decodes a 2xx response into out.
func postJSON(ctx context.Context, client *http.Client, url string, body any, out any, decorate func(*http.Request)) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if decorate != nil {
		decorate(req)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, snippet(raw))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("malformed response: %w", err)
	}
	return nil
}

func snippet(raw []byte) string {
	s := strings.TrimSpace(string(raw))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}

func trimBaseURL(u string) string {
	return strings.TrimRight(u, "/")
}
