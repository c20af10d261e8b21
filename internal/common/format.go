package common

import (
	"fmt"
	"strings"

	"github.com/jfibra/alien-shippo-sub001/internal/models"
)

const (
	// Default separator widths
	DefaultWidth = 80
	WideWidth    = 100
)

// PrintSeparator prints a separator line with the specified character and width
func PrintSeparator(char string, width int) {
	fmt.Println(strings.Repeat(char, width))
}

// PrintSeparatorNewline prints a separator with a newline before it
func PrintSeparatorNewline(char string, width int) {
	fmt.Println("\n" + strings.Repeat(char, width))
}

// PrintHeader prints a formatted header with title and separators
func PrintHeader(title string, width int) {
	PrintSeparatorNewline("=", width)
	fmt.Println(title)
	PrintSeparator("=", width)
}

// PrintFooter prints a formatted footer with message and separators
func PrintFooter(message string, width int) {
	PrintSeparatorNewline("=", width)
	fmt.Println(message)
	fmt.Println(strings.Repeat("=", width) + "\n")
}

// PrintBoxSeparator prints a box-drawing separator line (for sub-sections)
func PrintBoxSeparator(width int) {
	fmt.Println("├" + strings.Repeat("─", width))
}

// BoxPrefix returns the appropriate box-drawing prefix for list items
func BoxPrefix(isLast bool) string {
	if isLast {
		return "└  "
	}
	return "│  "
}

// BoxDetailPrefix returns the prefix for detail lines under list items
func BoxDetailPrefix(isLast bool) string {
	if isLast {
		return "   "
	}
	return "│  "
}

// PrintQuotes prints rate quotes as a box-drawn list, cheapest first.
func PrintQuotes(quotes []models.RateQuote) {
	for i, q := range quotes {
		isLast := i == len(quotes)-1
		fmt.Printf("%s%-10s %-8s %-24s %10s %s\n", BoxPrefix(isLast),
			q.Provider, q.Carrier, q.ServiceLevelName,
			models.FormatAmount(q.Amount, q.Currency), q.Currency)
		detail := fmt.Sprintf("quote %s, expires %s", q.QuoteId, q.ExpiresAt.Format("15:04:05"))
		if q.EstimatedDays > 0 {
			detail = fmt.Sprintf("%s, %d day(s)", detail, q.EstimatedDays)
		}
		fmt.Printf("%s   %s\n", BoxDetailPrefix(isLast), detail)
	}
}

// PrintTransactions prints ledger history, newest first.
func PrintTransactions(transactions []models.Transaction) {
	for i, tx := range transactions {
		isLast := i == len(transactions)-1
		fmt.Printf("%s%s %-8s %10s %s  %-9s %s\n", BoxPrefix(isLast),
			tx.CreatedAt.Format("2006-01-02 15:04"), tx.TransactionType,
			models.FormatAmount(tx.Amount, tx.Currency), tx.Currency, tx.Status, tx.Reference)
	}
}
