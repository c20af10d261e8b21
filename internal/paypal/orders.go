package paypal

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Order statuses
const (
	OrderStatusCreated             = "CREATED"
	OrderStatusSaved               = "SAVED"
	OrderStatusApproved            = "APPROVED"
	OrderStatusVoided              = "VOIDED"
	OrderStatusCompleted           = "COMPLETED"
	OrderStatusPayerActionRequired = "PAYER_ACTION_REQUIRED"

	CaptureStatusCompleted = "COMPLETED"
)

type CreateOrderRequest struct {
	UserId      string
	Amount      decimal.Decimal
	Currency    string
	Description string
	RequestId   string // PayPal-Request-Id idempotency key
}

type Money struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type Capture struct {
	Id     string `json:"id"`
	Status string `json:"status"`
	Amount Money  `json:"amount"`
}

type PurchaseUnit struct {
	ReferenceId string `json:"reference_id,omitempty"`
	CustomId    string `json:"custom_id,omitempty"`
	Amount      Money  `json:"amount"`
	Payments    struct {
		Captures []Capture `json:"captures"`
	} `json:"payments"`
}

type Link struct {
	Href   string `json:"href"`
	Rel    string `json:"rel"`
	Method string `json:"method,omitempty"`
}

type Order struct {
	Id            string         `json:"id"`
	Status        string         `json:"status"`
	PurchaseUnits []PurchaseUnit `json:"purchase_units"`
	Links         []Link         `json:"links"`
}

type purchaseUnitRequest struct {
	ReferenceId string `json:"reference_id,omitempty"`
	CustomId    string `json:"custom_id"`
	Description string `json:"description,omitempty"`
	Amount      Money  `json:"amount"`
}

type applicationContext struct {
	ReturnURL string `json:"return_url,omitempty"`
	CancelURL string `json:"cancel_url,omitempty"`
	BrandName string `json:"brand_name,omitempty"`
}

type createOrderBody struct {
	Intent             string                `json:"intent"`
	PurchaseUnits      []purchaseUnitRequest `json:"purchase_units"`
	ApplicationContext *applicationContext   `json:"application_context,omitempty"`
}

// ApprovalURL returns the link the payer follows to approve the order.
func (o *Order) ApprovalURL() string {
	for _, l := range o.Links {
		if l.Rel == "approve" || l.Rel == "payer-action" {
			return l.Href
		}
	}
	return ""
}

// CustomId returns the custom id of the first purchase unit.
func (o *Order) CustomId() string {
	if len(o.PurchaseUnits) == 0 {
		return ""
	}
	return o.PurchaseUnits[0].CustomId
}

// CapturedAmount sums the completed captures of the order. All captures must
// share one currency.
func (o *Order) CapturedAmount() (decimal.Decimal, string, error) {
	total := decimal.Zero
	currency := ""
	for _, pu := range o.PurchaseUnits {
		for _, c := range pu.Payments.Captures {
			if c.Status != CaptureStatusCompleted {
				continue
			}
			if currency != "" && c.Amount.CurrencyCode != currency {
				return decimal.Zero, "", fmt.Errorf("order %s has captures in %s and %s", o.Id, currency, c.Amount.CurrencyCode)
			}
			currency = c.Amount.CurrencyCode
			v, err := c.Amount.Amount()
			if err != nil {
				return decimal.Zero, "", fmt.Errorf("order %s capture %s: invalid amount %q", o.Id, c.Id, c.Amount.Value)
			}
			total = total.Add(v)
		}
	}
	if currency == "" {
		return decimal.Zero, "", fmt.Errorf("order %s has no completed capture", o.Id)
	}
	return total, currency, nil
}
