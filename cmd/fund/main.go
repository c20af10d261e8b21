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

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	emailFlag := flag.String("email", "", "User email")
	userIdFlag := flag.String("user-id", "", "User id (alternative to --email)")
	amountFlag := flag.String("amount", "", "Create a PayPal order for this amount")
	orderFlag := flag.String("capture", "", "Capture this approved PayPal order into the balance")
	flag.Parse()

	if (*amountFlag == "") == (*orderFlag == "") {
		zap.L().Fatal("Exactly one of --amount or --capture is required")
	}

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

	if *amountFlag != "" {
		amount, err := decimal.NewFromString(*amountFlag)
		if err != nil {
			zap.L().Fatal("Invalid amount", zap.String("amount", *amountFlag))
		}
		order, err := services.Api.CreateFundingOrder(ctx, user.Id, amount)
		if err != nil {
			zap.L().Fatal("Failed to create funding order", zap.Error(err))
		}

		common.PrintHeader("FUNDING ORDER CREATED", common.DefaultWidth)
		fmt.Printf("Order:     %s (%s)\n", order.OrderId, order.Status)
		fmt.Printf("Amount:    %s %s\n", models.FormatAmount(order.Amount, order.Currency), order.Currency)
		if order.ApprovalURL != "" {
			fmt.Printf("Approve:   %s\n", order.ApprovalURL)
		}
		common.PrintFooter(fmt.Sprintf("After approval run: fund --user-id %s --capture %s", user.Id, order.OrderId), common.DefaultWidth)
		return
	}

	result, err := services.Api.FundAccount(ctx, user.Id, *orderFlag)
	if err != nil {
		zap.L().Fatal("Failed to fund account", zap.String("order_id", *orderFlag), zap.Error(err))
	}

	title := "ACCOUNT FUNDED"
	if result.Replayed {
		title = "ORDER ALREADY APPLIED"
	}
	common.PrintHeader(title, common.DefaultWidth)
	fmt.Printf("Order:        %s\n", result.OrderId)
	fmt.Printf("Transaction:  %s\n", result.TransactionId)
	fmt.Printf("Credited:     %s %s\n", models.FormatAmount(result.Amount, result.Currency), result.Currency)
	fmt.Printf("Balance:      %s %s\n", models.FormatAmount(result.NewBalance, result.Currency), result.Currency)
	common.PrintSeparator("=", common.DefaultWidth)
}
