/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"

	"github.com/jfibra/alien-shippo-sub001/internal/common"
	"github.com/jfibra/alien-shippo-sub001/internal/config"
	"github.com/jfibra/alien-shippo-sub001/internal/ledger"
	"github.com/jfibra/alien-shippo-sub001/internal/models"
	"github.com/jfibra/alien-shippo-sub001/internal/store"
	"github.com/jfibra/alien-shippo-sub001/internal/validation"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// openingCredit funds a new account when an opening balance is configured and
// returns the balance to report.
func openingCredit(ctx context.Context, l *ledger.Service, cfg models.LedgerConfig, userId string) string {
	if !cfg.OpeningBalance.IsPositive() {
		return models.FormatAmount(cfg.OpeningBalance, cfg.Currency)
	}
	result, err := l.CreditOpening(ctx, userId, cfg.OpeningBalance)
	if err != nil {
		zap.L().Error("Account created without opening balance",
			zap.String("user_id", userId),
			zap.Error(err))
		return "0"
	}
	return models.FormatAmount(result.Balance, l.Currency())
}

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	nameFlag := flag.String("name", "", "Account holder name (required)")
	emailFlag := flag.String("email", "", "Account email, used by the CLIs to look the account up (required)")
	idFlag := flag.String("id", "", "User id issued by the upstream gateway (default: new UUID)")
	flag.Parse()

	name := strings.TrimSpace(*nameFlag)
	email := strings.ToLower(strings.TrimSpace(*emailFlag))
	if err := validation.User(name, email); err != nil {
		flag.Usage()
		zap.L().Fatal("Invalid account details", zap.Error(err))
	}

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	userId := *idFlag
	if userId == "" {
		userId = uuid.New().String()
	}

	user, err := dbService.CreateUser(ctx, userId, name, email)
	switch {
	case errors.Is(err, store.ErrAlreadyExists):
		zap.L().Fatal("An account with this id or email already exists",
			zap.String("id", userId),
			zap.String("email", email))
	case err != nil:
		zap.L().Fatal("Failed to create account", zap.Error(err))
	}

	balance := openingCredit(ctx, ledger.NewService(dbService, cfg.Ledger), cfg.Ledger, user.Id)

	common.PrintHeader("ACCOUNT CREATED", common.DefaultWidth)
	fmt.Printf("ID:       %s\n", user.Id)
	fmt.Printf("Name:     %s\n", user.Name)
	fmt.Printf("Email:    %s\n", user.Email)
	fmt.Printf("Balance:  %s %s\n", balance, cfg.Ledger.Currency)
	common.PrintSeparator("=", common.DefaultWidth)
	fmt.Println("Requests to the HTTP API must carry this id in the X-User-Id header.")
}
