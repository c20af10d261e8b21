package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/jfibra/alien-shippo-sub001/internal/common"
	"github.com/jfibra/alien-shippo-sub001/internal/config"
	"github.com/jfibra/alien-shippo-sub001/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func sampleAddresses() (models.Address, models.Address) {
	from := models.Address{Name: "Warehouse", Street1: "500 W 2nd St", City: "Austin", State: "TX", PostalCode: "78701", Country: "US"}
	to := models.Address{Name: "Customer", Street1: "1701 Wynkoop St", City: "Denver", State: "CO", PostalCode: "80202", Country: "US"}
	return from, to
}

func parseDecimal(name, value string) decimal.Decimal {
	d, err := decimal.NewFromString(value)
	if err != nil {
		zap.L().Fatal("Invalid number", zap.String("flag", name), zap.String("value", value))
	}
	return d
}

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	emailFlag := flag.String("email", "", "User email")
	userIdFlag := flag.String("user-id", "", "User id (alternative to --email)")
	fromFlag := flag.String("from-id", "", "Stored sender address id (default: sample address)")
	toFlag := flag.String("to-id", "", "Stored recipient address id (default: sample address)")
	lengthFlag := flag.String("length", "10", "Parcel length")
	widthFlag := flag.String("width", "8", "Parcel width")
	heightFlag := flag.String("height", "4", "Parcel height")
	distanceFlag := flag.String("distance-unit", models.DistanceUnitInch, "in or cm")
	weightFlag := flag.String("weight", "2", "Parcel weight")
	massFlag := flag.String("mass-unit", models.MassUnitPound, "lb, oz, kg or g")
	buyFlag := flag.Int("buy", 0, "Purchase the Nth quote of the list (1 = cheapest)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	user, err := common.ResolveUser(ctx, services.DbService, *userIdFlag, *emailFlag)
	if err != nil {
		zap.L().Fatal("Failed to find user", zap.Error(err))
	}

	parcel := models.Parcel{
		Length:       parseDecimal("length", *lengthFlag),
		Width:        parseDecimal("width", *widthFlag),
		Height:       parseDecimal("height", *heightFlag),
		DistanceUnit: *distanceFlag,
		Weight:       parseDecimal("weight", *weightFlag),
		MassUnit:     *massFlag,
	}

	var result *models.RateResult
	if *fromFlag != "" || *toFlag != "" {
		result, err = services.Api.GetRatesFromAddresses(ctx, user.Id, *fromFlag, *toFlag, parcel)
	} else {
		from, to := sampleAddresses()
		result, err = services.Api.GetRates(ctx, user.Id, models.ShipmentRequest{From: from, To: to, Parcel: parcel})
	}
	if err != nil {
		zap.L().Fatal("Failed to get rates", zap.Error(err))
	}

	common.PrintHeader(fmt.Sprintf("RATES FOR %s (%s)", user.Name, user.Email), common.WideWidth)
	common.PrintQuotes(result.Quotes)
	for _, w := range result.Warnings {
		fmt.Printf("⚠ %s: %s\n", w.Provider, w.Message)
	}
	common.PrintFooter(fmt.Sprintf("SUMMARY: %d quotes from %d providers (%d warnings)",
		len(result.Quotes), len(services.Api.RateProviders()), len(result.Warnings)), common.WideWidth)

	if *buyFlag <= 0 {
		return
	}
	if *buyFlag > len(result.Quotes) {
		zap.L().Fatal("No such quote", zap.Int("buy", *buyFlag), zap.Int("quotes", len(result.Quotes)))
	}

	quote := result.Quotes[*buyFlag-1]
	purchase, err := services.Api.PurchaseShipment(ctx, user.Id, models.PurchaseRequest{
		QuoteId:       quote.QuoteId,
		FromAddressId: *fromFlag,
		ToAddressId:   *toFlag,
	})
	if err != nil {
		zap.L().Fatal("Purchase failed", zap.String("quote_id", quote.QuoteId), zap.Error(err))
	}

	common.PrintHeader("LABEL PURCHASED", common.DefaultWidth)
	fmt.Printf("Shipment:  %s\n", purchase.ShipmentId)
	fmt.Printf("Carrier:   %s %s\n", quote.Carrier, quote.ServiceLevelName)
	fmt.Printf("Charged:   %s %s\n", models.FormatAmount(purchase.Amount, purchase.Currency), purchase.Currency)
	fmt.Printf("Balance:   %s %s\n", models.FormatAmount(purchase.Balance, purchase.Currency), purchase.Currency)
	common.PrintSeparator("=", common.DefaultWidth)
}
