// Package validation holds the input checks shared by the stores and the rate
// aggregator. Every function returns the first problem it finds as a
// *store.ValidationError.
package validation

import (
	"regexp"
	"strings"

	"github.com/jfibra/alien-shippo-sub001/internal/models"
	"github.com/jfibra/alien-shippo-sub001/internal/store"

	"github.com/shopspring/decimal"
)

var (
	countryPattern = regexp.MustCompile(`^[A-Z]{2}$`)
	usZipPattern   = regexp.MustCompile(`^\d{5}(-\d{4})?$`)
	last4Pattern   = regexp.MustCompile(`^\d{4}$`)
	panPattern     = regexp.MustCompile(`^\d{12,19}$`)
	emailPattern   = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
)

var addressTypes = map[string]bool{
	models.AddressTypeShipping: true,
	models.AddressTypeBilling:  true,
	models.AddressTypeReturn:   true,
	models.AddressTypeBoth:     true,
}

// AddressType checks that t is one of the known address types.
func AddressType(t string) error {
	if !addressTypes[t] {
		return store.NewValidationError("address_type", "must be one of shipping, billing, return, both")
	}
	return nil
}

// NormalizeAddress trims every field and upper-cases country and state.
func NormalizeAddress(a models.Address) models.Address {
	a.Name = strings.TrimSpace(a.Name)
	a.Company = strings.TrimSpace(a.Company)
	a.Street1 = strings.TrimSpace(a.Street1)
	a.Street2 = strings.TrimSpace(a.Street2)
	a.City = strings.TrimSpace(a.City)
	a.State = strings.ToUpper(strings.TrimSpace(a.State))
	a.PostalCode = strings.TrimSpace(a.PostalCode)
	a.Country = strings.ToUpper(strings.TrimSpace(a.Country))
	a.Phone = strings.TrimSpace(a.Phone)
	a.Email = strings.TrimSpace(a.Email)
	a.AddressType = strings.ToLower(strings.TrimSpace(a.AddressType))
	return a
}

// PostalAddress checks the postal fields of an already normalized address.
// prefix is prepended to field names, e.g. "from." or "to.".
func PostalAddress(prefix string, a models.Address) error {
	switch {
	case a.Name == "":
		return store.NewValidationError(prefix+"name", "is required")
	case a.Street1 == "":
		return store.NewValidationError(prefix+"street1", "is required")
	case a.City == "":
		return store.NewValidationError(prefix+"city", "is required")
	case a.Country == "":
		return store.NewValidationError(prefix+"country", "is required")
	case !countryPattern.MatchString(a.Country):
		return store.NewValidationError(prefix+"country", "must be a two-letter ISO code")
	}

	if a.Country == "US" {
		if a.State == "" {
			return store.NewValidationError(prefix+"state", "is required for US addresses")
		}
		if !usZipPattern.MatchString(a.PostalCode) {
			return store.NewValidationError(prefix+"postal_code", "must be a 5 or 9 digit ZIP code")
		}
	}
	if a.Email != "" && !emailPattern.MatchString(a.Email) {
		return store.NewValidationError(prefix+"email", "is not a valid address")
	}
	return nil
}

// User checks the name and email of an account holder.
func User(name, email string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return store.NewValidationError("name", "is required")
	case len(strings.TrimSpace(name)) < 2:
		return store.NewValidationError("name", "must be at least 2 characters")
	case email == "":
		return store.NewValidationError("email", "is required")
	case !emailPattern.MatchString(email):
		return store.NewValidationError("email", "is not a valid address")
	}
	return nil
}

// StoredAddress checks an address before it is persisted.
func StoredAddress(a models.Address) error {
	if err := PostalAddress("", a); err != nil {
		return err
	}
	return AddressType(a.AddressType)
}

var (
	distanceUnits = map[string]bool{models.DistanceUnitInch: true, models.DistanceUnitCentimeter: true}
	massUnits     = map[string]bool{
		models.MassUnitPound:    true,
		models.MassUnitOunce:    true,
		models.MassUnitKilogram: true,
		models.MassUnitGram:     true,
	}
)

// Parcel checks dimensions, weight and their declared units.
func Parcel(p models.Parcel) error {
	dims := []struct {
		field string
		value decimal.Decimal
	}{
		{"parcel.length", p.Length},
		{"parcel.width", p.Width},
		{"parcel.height", p.Height},
	}
	for _, d := range dims {
		if !d.value.IsPositive() {
			return store.NewValidationError(d.field, "must be greater than zero")
		}
	}
	if !distanceUnits[p.DistanceUnit] {
		return store.NewValidationError("parcel.distance_unit", "must be in or cm")
	}
	if !p.Weight.IsPositive() {
		return store.NewValidationError("parcel.weight", "must be greater than zero")
	}
	if !massUnits[p.MassUnit] {
		return store.NewValidationError("parcel.mass_unit", "must be lb, oz, kg or g")
	}
	return nil
}

// ShipmentRequest normalizes and checks a rate request. It stops at the
// first structural error.
func ShipmentRequest(req models.ShipmentRequest) (models.ShipmentRequest, error) {
	req.From = NormalizeAddress(req.From)
	req.To = NormalizeAddress(req.To)
	req.Parcel.DistanceUnit = strings.ToLower(strings.TrimSpace(req.Parcel.DistanceUnit))
	req.Parcel.MassUnit = strings.ToLower(strings.TrimSpace(req.Parcel.MassUnit))

	if err := PostalAddress("from.", req.From); err != nil {
		return req, err
	}
	if err := PostalAddress("to.", req.To); err != nil {
		return req, err
	}
	if err := Parcel(req.Parcel); err != nil {
		return req, err
	}
	return req, nil
}

// PaymentMethod checks a tokenization result. Anything that looks like a raw
// card number is rejected so it can never be persisted.
func PaymentMethod(p store.PaymentMethodParams) error {
	token := strings.TrimSpace(p.ProviderToken)
	compact := strings.NewReplacer(" ", "", "-", "").Replace(token)

	switch {
	case strings.TrimSpace(p.Provider) == "":
		return store.NewValidationError("provider", "is required")
	case token == "":
		return store.NewValidationError("provider_token", "is required")
	case panPattern.MatchString(compact):
		return store.NewValidationError("provider_token", "must be a provider token, not a card number")
	case strings.TrimSpace(p.Brand) == "":
		return store.NewValidationError("brand", "is required")
	case !last4Pattern.MatchString(p.Last4):
		return store.NewValidationError("last4", "must be exactly four digits")
	case p.ExpMonth < 0 || p.ExpMonth > 12:
		return store.NewValidationError("exp_month", "must be between 1 and 12")
	case p.ExpYear != 0 && p.ExpYear < 2000:
		return store.NewValidationError("exp_year", "must be a four digit year")
	}
	return nil
}
