// Package paypal is a small client for the PayPal OAuth2 and Orders v2 APIs,
// limited to what account funding needs.
package paypal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/jfibra/alien-shippo-sub001/internal/models"
	"github.com/jfibra/alien-shippo-sub001/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	ProviderName   = "paypal"
	SandboxBaseURL = "https://api-m.sandbox.paypal.com"

	// tokenSkew renews the access token slightly before PayPal expires it.
	tokenSkew = time.Minute
)

// Gateway is the part of PayPal the funding flow depends on.
type Gateway interface {
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error)
	GetOrder(ctx context.Context, orderId string) (*Order, error)
	CaptureOrder(ctx context.Context, orderId string) (*Order, error)
}

type Client struct {
	baseURL      string
	clientID     string
	clientSecret string
	returnURL    string
	cancelURL    string
	brandName    string
	http         *http.Client
	now          func() time.Time

	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
}

var _ Gateway = (*Client)(nil)

func NewClient(cfg models.PayPalConfig, httpClient *http.Client) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = SandboxBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		returnURL:    cfg.ReturnURL,
		cancelURL:    cfg.CancelURL,
		brandName:    cfg.BrandName,
		http:         httpClient,
		now:          time.Now,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// token returns a cached access token, fetching a new one when needed.
func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && c.now().Before(c.expiresAt) {
		return c.accessToken, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.clientID, c.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	var tr tokenResponse
	if err := c.do(req, &tr); err != nil {
		return "", fmt.Errorf("oauth token: %w", err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("oauth token: empty access token")
	}

	c.accessToken = tr.AccessToken
	c.expiresAt = c.now().Add(time.Duration(tr.ExpiresIn)*time.Second - tokenSkew)
	zap.L().Debug("PayPal access token refreshed", zap.Time("expires_at", c.expiresAt))
	return c.accessToken, nil
}

// CreateOrder creates a CAPTURE order tagged with the user id.
func (c *Client) CreateOrder(ctx context.Context, r CreateOrderRequest) (*Order, error) {
	currency := models.NormalizeCurrency(r.Currency)
	body := createOrderBody{
		Intent: "CAPTURE",
		PurchaseUnits: []purchaseUnitRequest{{
			ReferenceId: r.UserId,
			CustomId:    r.UserId,
			Description: r.Description,
			Amount: Money{
				CurrencyCode: currency,
				Value:        r.Amount.StringFixed(models.CurrencyPrecision(currency)),
			},
		}},
		ApplicationContext: &applicationContext{
			ReturnURL: c.returnURL,
			CancelURL: c.cancelURL,
			BrandName: c.brandName,
		},
	}

	var order Order
	err := c.call(ctx, http.MethodPost, "/v2/checkout/orders", body, r.RequestId, &order)
	if err != nil {
		return nil, &store.ProviderError{Provider: ProviderName, Op: "create order", Err: err}
	}
	return &order, nil
}

func (c *Client) GetOrder(ctx context.Context, orderId string) (*Order, error) {
	var order Order
	if err := c.call(ctx, http.MethodGet, "/v2/checkout/orders/"+url.PathEscape(orderId), nil, "", &order); err != nil {
		return nil, &store.ProviderError{Provider: ProviderName, Op: "get order", Err: err}
	}
	return &order, nil
}

// CaptureOrder captures an approved order. The order id doubles as the
// request id so a retried capture is not applied twice.
func (c *Client) CaptureOrder(ctx context.Context, orderId string) (*Order, error) {
	var order Order
	path := "/v2/checkout/orders/" + url.PathEscape(orderId) + "/capture"
	if err := c.call(ctx, http.MethodPost, path, struct{}{}, "capture-"+orderId, &order); err != nil {
		return nil, &store.ProviderError{Provider: ProviderName, Op: "capture order", Err: err}
	}
	return &order, nil
}

func (c *Client) call(ctx context.Context, method, path string, body any, requestId string, out any) error {
	token, err := c.token(ctx)
	if err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if requestId != "" {
		req.Header.Set("PayPal-Request-Id", requestId)
	}

	err = c.do(req, out)
	if err != nil && isUnauthorized(err) {
		c.mu.Lock()
		c.accessToken = ""
		c.mu.Unlock()
	}
	return err
}

type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.status, e.body)
}

func isUnauthorized(err error) bool {
	se, ok := err.(*statusError)
	return ok && se.status == http.StatusUnauthorized
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func(body io.ReadCloser) {
		if err := body.Close(); err != nil {
			zap.L().Warn("Error closing PayPal response body", zap.Error(err))
		}
	}(resp.Body)

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(string(raw))
		if len(msg) > 200 {
			msg = msg[:200] + "..."
		}
		return &statusError{status: resp.StatusCode, body: msg}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("malformed response: %w", err)
	}
	return nil
}

// Amount parses a PayPal money value.
func (m Money) Amount() (decimal.Decimal, error) {
	return decimal.NewFromString(m.Value)
}
