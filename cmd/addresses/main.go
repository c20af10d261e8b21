package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/jfibra/alien-shippo-sub001/internal/common"
	"github.com/jfibra/alien-shippo-sub001/internal/config"
	"github.com/jfibra/alien-shippo-sub001/internal/models"
	"github.com/jfibra/alien-shippo-sub001/internal/store"

	"go.uber.org/zap"
)

type reportStats struct {
	totalUsers         int
	totalAddresses     int
	usersWithAddresses int
}

func printUserHeader(user common.UserInfo, addressCount int) {
	fmt.Printf("\n┌─ User: %s (%s)\n", user.Name, user.Email)
	fmt.Printf("│  ID: %s\n", user.Id)
	fmt.Printf("│  Addresses: %d\n", addressCount)
	common.PrintBoxSeparator(98)
}

func printAddress(addr models.Address, isLast bool) {
	symbol := common.BoxPrefix(isLast)
	marker := " "
	if addr.IsDefault {
		marker = "*"
	}
	fmt.Printf("%s%s %-8s %-20s %s, %s %s %s\n", symbol, marker, addr.AddressType, addr.Name,
		addr.Street1, addr.City, addr.PostalCode, addr.Country)
	fmt.Printf("%s   id: %s\n", common.BoxDetailPrefix(isLast), addr.Id)
}

func printAddresses(addresses []models.Address) {
	for i, addr := range addresses {
		printAddress(addr, i == len(addresses)-1)
	}
}

func listAddresses(ctx context.Context, users []common.UserInfo, addressStore store.AddressStore, addressType string, logger *zap.Logger) reportStats {
	stats := reportStats{}
	for _, user := range users {
		stats.totalUsers++

		addresses, err := addressStore.ListAddresses(ctx, user.Id, addressType)
		if err != nil {
			logger.Error("Failed to get addresses",
				zap.String("user_id", user.Id),
				zap.Error(err))
			continue
		}
		if len(addresses) == 0 {
			continue
		}

		printUserHeader(user, len(addresses))
		printAddresses(addresses)
		stats.usersWithAddresses++
		stats.totalAddresses += len(addresses)
	}
	return stats
}

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	actionFlag := flag.String("action", "list", "list, add, set-default or delete")
	emailFlag := flag.String("email", "", "User email (filter for list, selects the user otherwise)")
	userIdFlag := flag.String("user-id", "", "User id (alternative to --email)")
	idFlag := flag.String("id", "", "Address id for set-default and delete")
	typeFlag := flag.String("type", "", "Address type: shipping, billing, return or both")
	nameFlag := flag.String("name", "", "Contact name")
	companyFlag := flag.String("company", "", "Company")
	street1Flag := flag.String("street1", "", "Street line 1")
	street2Flag := flag.String("street2", "", "Street line 2")
	cityFlag := flag.String("city", "", "City")
	stateFlag := flag.String("state", "", "State or region")
	zipFlag := flag.String("zip", "", "Postal code")
	countryFlag := flag.String("country", "US", "ISO country code")
	phoneFlag := flag.String("phone", "", "Phone")
	defaultFlag := flag.Bool("default", false, "Make the new address the default for its type")
	flag.Parse()

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

	if *actionFlag == "list" {
		users, err := common.InitializeUsers(ctx, dbService, *emailFlag, logger)
		if err != nil {
			logger.Fatal("Failed to initialize users", zap.Error(err))
		}
		common.PrintHeader("ADDRESS BOOK REPORT", common.WideWidth)
		stats := listAddresses(ctx, users, dbService, *typeFlag, logger)
		summary := fmt.Sprintf("SUMMARY: %d users with addresses (%d total addresses across %d users queried)",
			stats.usersWithAddresses, stats.totalAddresses, stats.totalUsers)
		common.PrintFooter(summary, common.WideWidth)
		return
	}

	user, err := common.ResolveUser(ctx, dbService, *userIdFlag, *emailFlag)
	if err != nil {
		logger.Fatal("Failed to find user", zap.Error(err))
	}

	switch *actionFlag {
	case "add":
		addr, err := dbService.AddAddress(ctx, user.Id, store.AddressParams{
			Name:        *nameFlag,
			Company:     *companyFlag,
			Street1:     *street1Flag,
			Street2:     *street2Flag,
			City:        *cityFlag,
			State:       *stateFlag,
			PostalCode:  *zipFlag,
			Country:     *countryFlag,
			Phone:       *phoneFlag,
			AddressType: *typeFlag,
			IsDefault:   *defaultFlag,
		})
		if err != nil {
			logger.Fatal("Failed to add address", zap.Error(err))
		}
		fmt.Println("✓ Address added")
		printAddresses([]models.Address{*addr})
	case "set-default":
		addr, err := dbService.SetDefaultAddress(ctx, user.Id, requireId(*idFlag))
		if err != nil {
			logger.Fatal("Failed to set default address", zap.Error(err))
		}
		fmt.Printf("✓ Default %s address is now %s\n", addr.AddressType, addr.Id)
	case "delete":
		if err := dbService.DeleteAddress(ctx, user.Id, requireId(*idFlag)); err != nil {
			logger.Fatal("Failed to delete address", zap.Error(err))
		}
		fmt.Println("✓ Address deleted")
	default:
		logger.Fatal("Unknown action", zap.String("action", *actionFlag))
	}
}

func requireId(id string) string {
	if id == "" {
		zap.L().Fatal("--id is required for this action")
	}
	return id
}
