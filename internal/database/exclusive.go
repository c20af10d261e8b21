package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jfibra/alien-shippo-sub001/internal/store"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

// exclusiveFlag describes a boolean column of which at most one live row may
// be set per scope. selectTarget returns the target id followed by its scope
// columns; clearOthers takes (updated_at, user_id, scope..., target id);
// setTarget takes (updated_at, target id, user_id).
type exclusiveFlag struct {
	name         string
	scopeColumns int
	selectTarget string
	clearOthers  string
	setTarget    string
}

var (
	addressDefaultFlag = exclusiveFlag{
		name:         "address",
		scopeColumns: 1,
		selectTarget: querySelectAddressScope,
		clearOthers:  queryClearAddressDefaults,
		setTarget:    querySetAddressDefault,
	}
	paymentMethodDefaultFlag = exclusiveFlag{
		name:         "payment method",
		scopeColumns: 0,
		selectTarget: querySelectPaymentMethodScope,
		clearOthers:  queryClearPaymentMethodDefaults,
		setTarget:    querySetPaymentMethodDefault,
	}
)

const exclusiveFlagAttempts = 4

// setExclusiveFlag clears the flag on every other row in the target's scope
// and sets it on the target, inside tx. Readers never see two flagged rows,
// and the unique partial index rejects a racing writer.
func (s *Service) setExclusiveFlag(ctx context.Context, tx *sql.Tx, f exclusiveFlag, userId, targetId string, now time.Time) error {
	var id string
	scope := make([]string, f.scopeColumns)
	dest := []any{&id}
	for i := range scope {
		dest = append(dest, &scope[i])
	}

	err := tx.QueryRowContext(ctx, s.rebind(f.selectTarget), targetId, userId).Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", f.name, targetId, store.ErrNotFound)
	}
	if err != nil {
		return wrapDBError("failed to load "+f.name, err)
	}

	args := []any{now, userId}
	for _, v := range scope {
		args = append(args, v)
	}
	args = append(args, targetId)
	if _, err := tx.ExecContext(ctx, s.rebind(f.clearOthers), args...); err != nil {
		return wrapDBError("failed to clear "+f.name+" defaults", err)
	}

	result, err := tx.ExecContext(ctx, s.rebind(f.setTarget), now, targetId, userId)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: another %s default was set concurrently", store.ErrConcurrentModification, f.name)
		}
		return wrapDBError("failed to set "+f.name+" default", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected != 1 {
		return fmt.Errorf("%w: %s %s changed during default update", store.ErrConcurrentModification, f.name, targetId)
	}
	return nil
}

// withFlagTx runs fn in a transaction and retries it when a concurrent
// default change or a busy store made it fail.
func (s *Service) withFlagTx(ctx context.Context, op string, fn func(tx *sql.Tx, now time.Time) error) error {
	attempt := func() (struct{}, error) {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return struct{}{}, wrapDBError("failed to begin transaction", err)
		}
		defer rollback(tx)

		if err := fn(tx, time.Now().UTC()); err != nil {
			if isUniqueViolation(err) {
				err = fmt.Errorf("%w: %v", store.ErrConcurrentModification, err)
			}
			if errors.Is(err, store.ErrConcurrentModification) || errors.Is(err, store.ErrTransientStore) {
				return struct{}{}, err
			}
			return struct{}{}, backoff.Permanent(err)
		}
		if err := tx.Commit(); err != nil {
			if isUniqueViolation(err) {
				return struct{}{}, fmt.Errorf("%w: %v", store.ErrConcurrentModification, err)
			}
			return struct{}{}, wrapDBError("failed to commit transaction", err)
		}
		return struct{}{}, nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 10 * time.Millisecond
	b.MaxInterval = 200 * time.Millisecond

	_, err := backoff.Retry(ctx, attempt,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(exclusiveFlagAttempts),
		backoff.WithNotify(func(err error, next time.Duration) {
			zap.L().Warn("Retrying default flag update",
				zap.String("op", op),
				zap.Duration("next_attempt_in", next),
				zap.Error(err))
		}))
	return err
}
