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
	"flag"
	"fmt"

	"github.com/jfibra/alien-shippo-sub001/internal/alert"
	"github.com/jfibra/alien-shippo-sub001/internal/common"
	"github.com/jfibra/alien-shippo-sub001/internal/config"
	"github.com/jfibra/alien-shippo-sub001/internal/formance"
	"github.com/jfibra/alien-shippo-sub001/internal/ledger"
	"github.com/jfibra/alien-shippo-sub001/internal/models"

	"go.uber.org/zap"
)

type balanceStats struct {
	totalUsers     int
	fundedUsers    int
	mismatches     int
	reconcileFails int
}

func formatTransactionId(txId string) string {
	if txId == "" {
		return "none"
	}
	if len(txId) > 8 {
		return txId[:8] + "..."
	}
	return txId
}

func printUserHeader(user common.UserInfo) {
	fmt.Printf("\n┌─ User: %s (%s)\n", user.Name, user.Email)
	fmt.Printf("│  ID: %s\n", user.Id)
	common.PrintBoxSeparator(78)
}

func printBalance(balance models.AccountBalance, isLast bool) {
	fmt.Printf("%s %-8s: %14s (v%d, last_tx: %s, updated: %s)\n",
		common.BoxPrefix(isLast),
		balance.Currency,
		models.FormatAmount(balance.Balance, balance.Currency),
		balance.Version,
		formatTransactionId(balance.LastTransactionId),
		balance.UpdatedAt.Format("2006-01-02 15:04:05"))
}

type reporter struct {
	ledger   *ledger.Service
	mirror   *formance.Mirror
	notifier alert.Notifier
	history  int
	verify   bool
	logger   *zap.Logger
}

func (r *reporter) processUser(ctx context.Context, user common.UserInfo, stats *balanceStats) error {
	balance, err := r.ledger.GetBalance(ctx, user.Id)
	if err != nil {
		return fmt.Errorf("failed to get balance: %w", err)
	}

	printUserHeader(user)
	printBalance(*balance, r.history == 0 && r.mirror == nil)
	if balance.Balance.IsPositive() {
		stats.fundedUsers++
	}

	if r.verify {
		if err := r.ledger.ReconcileBalance(ctx, user.Id); err != nil {
			stats.reconcileFails++
			fmt.Printf("%s   ✗ balance does not match transaction history: %v\n", common.BoxDetailPrefix(false), err)
			r.raise(ctx, user.Id, balance, "local balance does not match transaction history", err)
		}
	}

	if r.mirror != nil {
		mirrored, err := r.mirror.UserBalance(ctx, user.Id, balance.Currency)
		switch {
		case err != nil:
			r.logger.Warn("Failed to read mirrored balance", zap.String("user_id", user.Id), zap.Error(err))
		case !mirrored.Equal(balance.Balance):
			stats.mismatches++
			fmt.Printf("%s   ✗ mirror: %s\n", common.BoxDetailPrefix(r.history == 0),
				models.FormatAmount(mirrored, balance.Currency))
			r.raise(ctx, user.Id, balance, fmt.Sprintf("mirror reports %s", mirrored), nil)
		default:
			fmt.Printf("%s   ✓ mirror matches\n", common.BoxDetailPrefix(r.history == 0))
		}
	}

	if r.history > 0 {
		transactions, err := r.ledger.GetTransactionHistory(ctx, user.Id, r.history, 0)
		if err != nil {
			return fmt.Errorf("failed to get history: %w", err)
		}
		common.PrintTransactions(transactions)
	}
	return nil
}

func (r *reporter) raise(ctx context.Context, userId string, balance *models.AccountBalance, message string, err error) {
	a := alert.New(alert.KindBalanceMismatch, userId, "", balance.Balance, balance.Currency, message, err)
	if nerr := r.notifier.Notify(ctx, a); nerr != nil {
		r.logger.Error("Failed to deliver alert", zap.Error(nerr))
	}
}

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	emailFlag := flag.String("email", "", "Filter by specific user email (optional)")
	historyFlag := flag.Int("history", 0, "Number of recent transactions to print per user")
	verifyFlag := flag.Bool("verify", false, "Check each balance against the transaction history")
	mirrorFlag := flag.Bool("mirror", false, "Compare each balance with the Formance mirror")
	flag.Parse()

	logger.Info("Starting balance query")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	logger.Info("Connecting to database", zap.String("path", cfg.Database.Path))
	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	r := &reporter{
		ledger:   ledger.NewService(dbService, cfg.Ledger),
		notifier: alert.LogNotifier{},
		history:  *historyFlag,
		verify:   *verifyFlag,
		logger:   logger,
	}
	if *mirrorFlag {
		if !cfg.Formance.Enabled() {
			logger.Fatal("--mirror requires FORMANCE_STACK_URL, FORMANCE_CLIENT_ID and FORMANCE_CLIENT_SECRET")
		}
		r.mirror, err = formance.NewMirror(ctx, cfg.Formance)
		if err != nil {
			logger.Fatal("Failed to connect to Formance", zap.Error(err))
		}
	}

	users, err := common.InitializeUsers(ctx, dbService, *emailFlag, logger)
	if err != nil {
		logger.Fatal("Failed to initialize users", zap.Error(err))
	}

	common.PrintHeader("USER BALANCE REPORT", common.DefaultWidth)

	stats := balanceStats{}
	for _, user := range users {
		stats.totalUsers++
		if err := r.processUser(ctx, user, &stats); err != nil {
			logger.Error("Failed to process user",
				zap.String("user_id", user.Id),
				zap.String("user_name", user.Name),
				zap.Error(err))
		}
	}

	summary := fmt.Sprintf("SUMMARY: %d of %d users funded", stats.fundedUsers, stats.totalUsers)
	if *verifyFlag {
		summary += fmt.Sprintf(", %d history mismatches", stats.reconcileFails)
	}
	if *mirrorFlag {
		summary += fmt.Sprintf(", %d mirror mismatches", stats.mismatches)
	}
	common.PrintFooter(summary, common.DefaultWidth)

	logger.Info("Balance query completed",
		zap.Int("users_queried", stats.totalUsers),
		zap.Int("users_funded", stats.fundedUsers),
		zap.Int("history_mismatches", stats.reconcileFails),
		zap.Int("mirror_mismatches", stats.mismatches))
}
