package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/jfibra/alien-shippo-sub001/internal/common"
	"github.com/jfibra/alien-shippo-sub001/internal/config"
	"github.com/jfibra/alien-shippo-sub001/internal/ledger"
	"github.com/jfibra/alien-shippo-sub001/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// creditOpeningBalances gives every user without history a starting balance.
// The reference is per user, so re-running setup never credits twice.
func creditOpeningBalances(ctx context.Context, l *ledger.Service, users []models.User, amount decimal.Decimal) (credited, skipped int) {
	for _, user := range users {
		result, err := l.CreditOpening(ctx, user.Id, amount)
		if err != nil {
			zap.L().Error("Failed to credit opening balance",
				zap.String("user_id", user.Id),
				zap.Error(err))
			continue
		}
		if result.Replayed {
			skipped++
			fmt.Printf("%s %-20s already funded\n", common.BoxPrefix(false), user.Name)
			continue
		}
		credited++
		fmt.Printf("%s %-20s %s %s\n", common.BoxPrefix(false), user.Name,
			models.FormatAmount(result.Balance, l.Currency()), l.Currency())
	}
	return credited, skipped
}

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	openingFlag := flag.String("opening", "", "Opening balance to credit each user (overrides OPENING_BALANCE)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	opening := cfg.Ledger.OpeningBalance
	if *openingFlag != "" {
		opening, err = decimal.NewFromString(*openingFlag)
		if err != nil || opening.IsNegative() {
			zap.L().Fatal("Invalid --opening amount", zap.String("value", *openingFlag))
		}
	}

	zap.L().Info("Initializing database",
		zap.String("driver", cfg.Database.Driver),
		zap.Bool("dummy_users", cfg.Database.CreateDummyUsers))

	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	users, err := dbService.GetUsers(ctx)
	if err != nil {
		zap.L().Fatal("Failed to read users from database", zap.Error(err))
	}

	common.PrintHeader("SETUP", common.DefaultWidth)
	fmt.Printf("Schema:    ready (%s)\n", cfg.Database.Driver)
	fmt.Printf("Users:     %d\n", len(users))
	fmt.Printf("Currency:  %s\n", cfg.Ledger.Currency)

	if !opening.IsPositive() {
		common.PrintFooter("No opening balance configured", common.DefaultWidth)
		return
	}

	fmt.Printf("Opening:   %s %s\n", models.FormatAmount(opening, cfg.Ledger.Currency), cfg.Ledger.Currency)
	common.PrintBoxSeparator(78)

	l := ledger.NewService(dbService, cfg.Ledger)
	credited, skipped := creditOpeningBalances(ctx, l, users, opening)

	common.PrintFooter(fmt.Sprintf("SUMMARY: %d credited, %d already funded", credited, skipped), common.DefaultWidth)
	zap.L().Info("Setup complete",
		zap.Int("credited", credited),
		zap.Int("skipped", skipped))
}
