package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jfibra/alien-shippo-sub001/internal/models"
	"github.com/jfibra/alien-shippo-sub001/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// movement is one validated balance change in minor units.
type movement struct {
	userId      string
	currency    string
	reference   string
	txType      string
	provider    string
	description string
	shipmentId  string
	minor       int64
}

func (m movement) signed() int64 {
	if m.txType == models.TransactionTypeDebit {
		return -m.minor
	}
	return m.minor
}

func validateMovement(userId, reference string, amount decimal.Decimal, currency string) (int64, error) {
	if userId == "" {
		return 0, store.NewValidationError("user_id", "is required")
	}
	if reference == "" {
		return 0, store.NewValidationError("reference", "is required")
	}
	if !amount.IsPositive() {
		return 0, fmt.Errorf("%w: %s must be greater than zero", store.ErrInvalidAmount, amount.String())
	}
	if amount.GreaterThan(models.MaxMovementAmount) {
		return 0, fmt.Errorf("%w: %s exceeds the %s limit per transaction",
			store.ErrInvalidAmount, amount.String(), models.MaxMovementAmount.String())
	}
	minor, err := models.ToMinor(amount, currency)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", store.ErrInvalidAmount, err)
	}
	if minor <= 0 {
		return 0, fmt.Errorf("%w: %s is below the smallest %s unit", store.ErrInvalidAmount, amount.String(), currency)
	}
	return minor, nil
}

// Credit increases a user's balance. A reference that was already applied
// returns the original transaction with Replayed set and changes nothing.
func (s *SubledgerService) Credit(ctx context.Context, params store.CreditParams) (*models.LedgerResult, error) {
	currency := models.NormalizeCurrency(params.Currency)
	txType := params.TransactionType
	if txType == "" {
		txType = models.TransactionTypeDeposit
	}
	if txType != models.TransactionTypeDeposit && txType != models.TransactionTypeRefund {
		return nil, store.NewValidationError("transaction_type", "must be deposit or refund")
	}
	minor, err := validateMovement(params.UserId, params.Reference, params.Amount, currency)
	if err != nil {
		return nil, err
	}

	return s.apply(ctx, movement{
		userId:      params.UserId,
		currency:    currency,
		reference:   params.Reference,
		txType:      txType,
		provider:    params.Provider,
		description: params.Description,
		shipmentId:  params.ShipmentId,
		minor:       minor,
	})
}

// Debit decreases a user's balance with a single conditional update and
// records a pending debit transaction.
func (s *SubledgerService) Debit(ctx context.Context, params store.DebitParams) (*models.LedgerResult, error) {
	currency := models.NormalizeCurrency(params.Currency)
	minor, err := validateMovement(params.UserId, params.Reference, params.Amount, currency)
	if err != nil {
		return nil, err
	}

	return s.apply(ctx, movement{
		userId:      params.UserId,
		currency:    currency,
		reference:   params.Reference,
		txType:      models.TransactionTypeDebit,
		provider:    params.Provider,
		description: params.Description,
		minor:       minor,
	})
}

func (s *SubledgerService) apply(ctx context.Context, m movement) (*models.LedgerResult, error) {
	zap.L().Info("Processing transaction",
		zap.String("user_id", m.userId),
		zap.String("type", m.txType),
		zap.Int64("amount_minor", m.minor),
		zap.String("currency", m.currency),
		zap.String("reference", m.reference))

	result, err := s.applyInTx(ctx, m)
	if err != nil && isUniqueViolation(err) {
		// A concurrent call with the same reference committed first.
		zap.L().Warn("Reference committed concurrently, returning prior result",
			zap.String("reference", m.reference))
		existing, lookupErr := s.transactionByReference(ctx, s.db, m.reference)
		if lookupErr != nil {
			return nil, fmt.Errorf("%w: %v", store.ErrDuplicateTransaction, lookupErr)
		}
		return replayExisting(m, existing)
	}
	return result, err
}

func (s *SubledgerService) applyInTx(ctx context.Context, m movement) (*models.LedgerResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, wrapDBError("failed to begin transaction", err)
	}
	defer rollback(tx)

	existing, err := s.transactionByReference(ctx, tx, m.reference)
	if err == nil {
		return replayExisting(m, existing)
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	transactionId := uuid.New().String()

	var balanceAfter int64
	switch m.txType {
	case models.TransactionTypeDebit:
		err = tx.QueryRowContext(ctx, s.rebind(queryDebitBalance),
			m.minor, transactionId, now, m.userId, m.currency, m.minor).Scan(&balanceAfter)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, s.debitRejection(ctx, tx, m)
		}
	default:
		if _, err := tx.ExecContext(ctx, s.rebind(queryEnsureAccountBalance),
			uuid.New().String(), m.userId, m.currency, now); err != nil {
			return nil, wrapDBError("failed to create account balance", err)
		}
		if m.txType == models.TransactionTypeDeposit {
			err = tx.QueryRowContext(ctx, s.rebind(queryCreditBalanceDeposit),
				m.minor, transactionId, now, now, m.userId, m.currency).Scan(&balanceAfter)
		} else {
			err = tx.QueryRowContext(ctx, s.rebind(queryCreditBalance),
				m.minor, transactionId, now, m.userId, m.currency).Scan(&balanceAfter)
		}
		if errors.Is(err, sql.ErrNoRows) {
			return nil, s.currencyMismatch(ctx, tx, m)
		}
	}
	if err != nil {
		return nil, wrapDBError("failed to update balance", err)
	}

	balanceBefore := balanceAfter - m.signed()
	status := models.TransactionStatusCompleted
	processedAt := sql.NullTime{Time: now, Valid: true}
	if m.txType == models.TransactionTypeDebit {
		// Completed once linked to its shipment.
		status = models.TransactionStatusPending
		processedAt = sql.NullTime{}
	}

	row := tx.QueryRowContext(ctx, s.rebind(queryInsertTransaction),
		transactionId, m.userId, nullString(m.shipmentId), m.txType, m.signed(), m.currency,
		balanceBefore, balanceAfter, status, m.provider, m.reference, m.description, now, processedAt)
	transaction, err := scanTransaction(row)
	if err != nil {
		return nil, wrapDBError("failed to insert transaction", err)
	}

	if err := s.addJournalEntries(ctx, tx, transaction, m.minor, now); err != nil {
		return nil, wrapDBError("failed to add journal entries", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, wrapDBError("failed to commit transaction", err)
	}

	zap.L().Info("Transaction processed successfully",
		zap.String("transaction_id", transactionId),
		zap.String("user_id", m.userId),
		zap.String("type", m.txType),
		zap.Int64("old_balance_minor", balanceBefore),
		zap.Int64("new_balance_minor", balanceAfter))

	return &models.LedgerResult{
		Transaction: *transaction,
		Balance:     models.FromMinor(balanceAfter, m.currency),
	}, nil
}

// replayExisting returns the result the original movement produced, including
// the balance right after it.
func replayExisting(m movement, existing *models.Transaction) (*models.LedgerResult, error) {
	if existing.UserId != m.userId {
		return nil, store.NewValidationError("reference", "is already used by another account")
	}
	if existing.TransactionType != m.txType {
		return nil, store.NewValidationError("reference", "is already used by a "+existing.TransactionType)
	}
	if !existing.Amount.Abs().Equal(models.FromMinor(m.minor, m.currency)) {
		zap.L().Warn("Replayed reference carries a different amount, returning original",
			zap.String("reference", m.reference),
			zap.String("original_amount", existing.Amount.String()),
			zap.Int64("requested_minor", m.minor))
	}

	zap.L().Warn("Duplicate reference detected, returning prior result",
		zap.String("reference", m.reference),
		zap.String("existing_transaction_id", existing.Id))

	return &models.LedgerResult{Transaction: *existing, Balance: existing.BalanceAfter, Replayed: true}, nil
}

func (s *SubledgerService) debitRejection(ctx context.Context, q queryer, m movement) error {
	account, err := s.accountBalance(ctx, q, m.userId)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: no balance for user %s", store.ErrInsufficientFunds, m.userId)
	}
	if err != nil {
		return err
	}
	if account.Currency != m.currency {
		return store.NewValidationError("currency", "account is held in "+account.Currency)
	}
	return fmt.Errorf("%w: balance %s is below %s",
		store.ErrInsufficientFunds,
		models.FormatAmount(account.Balance, account.Currency),
		models.FormatAmount(models.FromMinor(m.minor, m.currency), m.currency))
}

func (s *SubledgerService) currencyMismatch(ctx context.Context, q queryer, m movement) error {
	account, err := s.accountBalance(ctx, q, m.userId)
	if err != nil {
		return err
	}
	return store.NewValidationError("currency", "account is held in "+account.Currency)
}

type journalLine struct {
	accountType string
	accountId   string
	debitMinor  int64
	creditMinor int64
}

// journalLines returns the double-entry lines for a transaction. The user's
// balance is a liability: deposits and refunds credit it, debits debit it.
func journalLines(t *models.Transaction, minor int64) []journalLine {
	userAccount := fmt.Sprintf("%s_%s", t.UserId, t.Currency)
	expense := fmt.Sprintf("labels_%s", t.Currency)

	switch t.TransactionType {
	case models.TransactionTypeDeposit:
		clearing := fmt.Sprintf("%s_%s", t.Provider, t.Currency)
		return []journalLine{
			{"payment_clearing", clearing, minor, 0},
			{"user_balance", userAccount, 0, minor},
		}
	case models.TransactionTypeRefund:
		return []journalLine{
			{"label_expense", expense, minor, 0},
			{"user_balance", userAccount, 0, minor},
		}
	case models.TransactionTypeDebit:
		return []journalLine{
			{"user_balance", userAccount, minor, 0},
			{"label_expense", expense, 0, minor},
		}
	}
	return nil
}

func (s *SubledgerService) addJournalEntries(ctx context.Context, tx *sql.Tx, t *models.Transaction, minor int64, now time.Time) error {
	for _, line := range journalLines(t, minor) {
		_, err := tx.ExecContext(ctx, s.rebind(queryInsertJournalEntry),
			uuid.New().String(), t.Id, line.accountType, line.accountId, line.debitMinor, line.creditMinor, now)
		if err != nil {
			return err
		}
	}
	return nil
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var t models.Transaction
	var shipmentId sql.NullString
	var amount, before, after int64
	var processedAt sql.NullTime

	err := row.Scan(&t.Id, &t.UserId, &shipmentId, &t.TransactionType, &amount, &t.Currency,
		&before, &after, &t.Status, &t.Provider, &t.Reference, &t.Description,
		&t.CreatedAt, &processedAt)
	if err != nil {
		return nil, err
	}

	t.ShipmentId = shipmentId.String
	t.Amount = models.FromMinor(amount, t.Currency)
	t.BalanceBefore = models.FromMinor(before, t.Currency)
	t.BalanceAfter = models.FromMinor(after, t.Currency)
	t.ProcessedAt = nullTimePtr(processedAt)
	return &t, nil
}

func (s *SubledgerService) transactionByReference(ctx context.Context, q queryer, reference string) (*models.Transaction, error) {
	t, err := scanTransaction(q.QueryRowContext(ctx, s.rebind(queryGetTransactionByReference), reference))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transaction %s: %w", reference, store.ErrNotFound)
	}
	if err != nil {
		return nil, wrapDBError("failed to look up transaction reference", err)
	}
	return t, nil
}

// GetTransactionByReference returns the user's transaction with the given reference.
func (s *SubledgerService) GetTransactionByReference(ctx context.Context, userId, reference string) (*models.Transaction, error) {
	t, err := s.transactionByReference(ctx, s.db, reference)
	if err != nil {
		return nil, err
	}
	if t.UserId != userId {
		return nil, fmt.Errorf("transaction %s: %w", reference, store.ErrNotFound)
	}
	return t, nil
}

// LinkTransaction attaches a pending debit to its shipment and completes it.
// Linking an already completed transaction to the same shipment is a no-op.
func (s *SubledgerService) LinkTransaction(ctx context.Context, userId, reference, shipmentId string) error {
	result, err := s.db.ExecContext(ctx, s.rebind(queryLinkTransaction), shipmentId, time.Now().UTC(), userId, reference)
	if err != nil {
		return wrapDBError("failed to link transaction", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 1 {
		zap.L().Info("Transaction linked to shipment",
			zap.String("reference", reference),
			zap.String("shipment_id", shipmentId))
		return nil
	}

	existing, err := s.GetTransactionByReference(ctx, userId, reference)
	if err != nil {
		return err
	}
	if existing.Status == models.TransactionStatusCompleted && existing.ShipmentId == shipmentId {
		return nil
	}
	return fmt.Errorf("%w: transaction %s is %s", store.ErrConcurrentModification, reference, existing.Status)
}

// MarkTransactionFailed moves a pending transaction to failed.
func (s *SubledgerService) MarkTransactionFailed(ctx context.Context, userId, reference string) error {
	result, err := s.db.ExecContext(ctx, s.rebind(queryMarkTransactionFailed), time.Now().UTC(), userId, reference)
	if err != nil {
		return wrapDBError("failed to mark transaction failed", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 1 {
		return nil
	}

	existing, err := s.GetTransactionByReference(ctx, userId, reference)
	if err != nil {
		return err
	}
	if existing.Status == models.TransactionStatusFailed {
		return nil
	}
	return fmt.Errorf("%w: transaction %s is %s", store.ErrConcurrentModification, reference, existing.Status)
}

// GetTransactionHistory returns paginated transaction history for a user
func (s *SubledgerService) GetTransactionHistory(ctx context.Context, userId string, limit, offset int) ([]models.Transaction, error) {
	zap.L().Debug("Getting transaction history",
		zap.String("user_id", userId),
		zap.Int("limit", limit),
		zap.Int("offset", offset))

	rows, err := s.db.QueryContext(ctx, s.rebind(queryGetTransactionHistory), userId, limit, offset)
	if err != nil {
		return nil, wrapDBError("failed to get transaction history", err)
	}
	defer closeRows(rows)

	return collectTransactions(rows)
}

// ListPendingDebits returns debits still pending that were created before olderThan.
func (s *SubledgerService) ListPendingDebits(ctx context.Context, olderThan time.Time, limit int) ([]models.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(queryListPendingDebits), olderThan.UTC(), limit)
	if err != nil {
		return nil, wrapDBError("failed to list pending debits", err)
	}
	defer closeRows(rows)

	return collectTransactions(rows)
}

func collectTransactions(rows *sql.Rows) ([]models.Transaction, error) {
	var transactions []models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, *t)
	}

	// Check for errors during iteration
	if err := rows.Err(); err != nil {
		zap.L().Error("Error during transaction row iteration", zap.Error(err))
		return nil, fmt.Errorf("error iterating transaction rows: %w", err)
	}

	return transactions, nil
}
