package rates

import (
	"github.com/jfibra/alien-shippo-sub001/internal/models"

	"github.com/shopspring/decimal"
)

var (
	inchesPerCentimeter = decimal.RequireFromString("0.3937007874")
	ouncesPerPound      = decimal.NewFromInt(16)
	ouncesPerKilogram   = decimal.RequireFromString("35.27396195")
	ouncesPerGram       = decimal.RequireFromString("0.03527396195")
)

// toInches converts a length to inches, rounded up to two places.
func toInches(v decimal.Decimal, unit string) decimal.Decimal {
	if unit == models.DistanceUnitCentimeter {
		v = v.Mul(inchesPerCentimeter)
	}
	return v.RoundCeil(2)
}

// toOunces converts a weight to ounces, rounded up to two places.
func toOunces(v decimal.Decimal, unit string) decimal.Decimal {
	switch unit {
	case models.MassUnitPound:
		v = v.Mul(ouncesPerPound)
	case models.MassUnitKilogram:
		v = v.Mul(ouncesPerKilogram)
	case models.MassUnitGram:
		v = v.Mul(ouncesPerGram)
	}
	return v.RoundCeil(2)
}
