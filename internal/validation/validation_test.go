package validation

import (
	"errors"
	"testing"

	"github.com/jfibra/alien-shippo-sub001/internal/models"
	"github.com/jfibra/alien-shippo-sub001/internal/store"

	"github.com/shopspring/decimal"
)

func validRequest() models.ShipmentRequest {
	return models.ShipmentRequest{
		From: models.Address{Name: "Warehouse", Street1: "1 Main St", City: "Austin", State: "tx", PostalCode: "78701", Country: "us"},
		To:   models.Address{Name: "Jane Doe", Street1: "10 Rue de Rivoli", City: "Paris", Country: "FR"},
		Parcel: models.Parcel{
			Length: decimal.NewFromInt(10), Width: decimal.NewFromInt(8), Height: decimal.NewFromInt(4),
			DistanceUnit: "IN", Weight: decimal.NewFromInt(2), MassUnit: "lb",
		},
	}
}

func TestShipmentRequest_NormalizesValidInput(t *testing.T) {
	req, err := ShipmentRequest(validRequest())
	if err != nil {
		t.Fatalf("Expected valid request, got %v", err)
	}
	if req.From.Country != "US" || req.From.State != "TX" {
		t.Errorf("Expected upper-cased country/state, got %s/%s", req.From.Country, req.From.State)
	}
	if req.Parcel.DistanceUnit != "in" {
		t.Errorf("Expected lower-cased distance unit, got %s", req.Parcel.DistanceUnit)
	}
}

func TestShipmentRequest_FirstErrorWins(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.ShipmentRequest)
		field  string
	}{
		{"missing from name", func(r *models.ShipmentRequest) { r.From.Name = " " }, "from.name"},
		{"bad to country", func(r *models.ShipmentRequest) { r.To.Country = "France" }, "to.country"},
		{"us without state", func(r *models.ShipmentRequest) { r.From.State = "" }, "from.state"},
		{"us bad zip", func(r *models.ShipmentRequest) { r.From.PostalCode = "7870" }, "from.postal_code"},
		{"zero height", func(r *models.ShipmentRequest) { r.Parcel.Height = decimal.Zero }, "parcel.height"},
		{"bad distance unit", func(r *models.ShipmentRequest) { r.Parcel.DistanceUnit = "ft" }, "parcel.distance_unit"},
		{"negative weight", func(r *models.ShipmentRequest) { r.Parcel.Weight = decimal.NewFromInt(-1) }, "parcel.weight"},
		{"bad mass unit", func(r *models.ShipmentRequest) { r.Parcel.MassUnit = "stone" }, "parcel.mass_unit"},
		{"two errors reports the first", func(r *models.ShipmentRequest) {
			r.From.City = ""
			r.Parcel.Weight = decimal.Zero
		}, "from.city"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)

			_, err := ShipmentRequest(req)
			var ve *store.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("Expected ValidationError, got %v", err)
			}
			if ve.Field != tt.field {
				t.Errorf("Expected field %s, got %s", tt.field, ve.Field)
			}
		})
	}
}

func TestStoredAddress_RequiresKnownType(t *testing.T) {
	a := NormalizeAddress(models.Address{Name: "A", Street1: "S", City: "C", Country: "DE", AddressType: "office"})
	if err := StoredAddress(a); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("Expected validation error for unknown type, got %v", err)
	}

	a.AddressType = models.AddressTypeBoth
	if err := StoredAddress(a); err != nil {
		t.Fatalf("Expected both to be accepted, got %v", err)
	}
}

func TestPaymentMethod(t *testing.T) {
	valid := store.PaymentMethodParams{Provider: "paypal", ProviderToken: "tok_abc123", Brand: "visa", Last4: "4242", ExpMonth: 12, ExpYear: 2030}
	if err := PaymentMethod(valid); err != nil {
		t.Fatalf("Expected valid payment method, got %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*store.PaymentMethodParams)
		field  string
	}{
		{"raw card number as token", func(p *store.PaymentMethodParams) { p.ProviderToken = "4242 4242 4242 4242" }, "provider_token"},
		{"missing token", func(p *store.PaymentMethodParams) { p.ProviderToken = "" }, "provider_token"},
		{"five digit last4", func(p *store.PaymentMethodParams) { p.Last4 = "42424" }, "last4"},
		{"bad month", func(p *store.PaymentMethodParams) { p.ExpMonth = 13 }, "exp_month"},
		{"missing brand", func(p *store.PaymentMethodParams) { p.Brand = "" }, "brand"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			tt.mutate(&p)
			var ve *store.ValidationError
			if err := PaymentMethod(p); !errors.As(err, &ve) || ve.Field != tt.field {
				t.Errorf("Expected ValidationError on %s, got %v", tt.field, err)
			}
		})
	}
}

func TestUser(t *testing.T) {
	if err := User("Alice Carter", "alice@example.com"); err != nil {
		t.Fatalf("Expected valid user, got %v", err)
	}

	tests := []struct {
		name  string
		uname string
		email string
		field string
	}{
		{"empty name", " ", "alice@example.com", "name"},
		{"short name", "A", "alice@example.com", "name"},
		{"empty email", "Alice", "", "email"},
		{"no domain", "Alice", "alice@example", "email"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ve *store.ValidationError
			if err := User(tt.uname, tt.email); !errors.As(err, &ve) || ve.Field != tt.field {
				t.Errorf("Expected ValidationError on %s, got %v", tt.field, err)
			}
		})
	}
}
