package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kodbank/backend/internal/lock"
	"github.com/kodbank/backend/internal/models"
	"github.com/kodbank/backend/internal/store"
)

// LedgerEngine moves money between accounts. Every mutation holds the
// locks of all accounts it touches, re-reads them, and commits through a
// version-guarded store write.
type LedgerEngine struct {
	users      store.UserStore
	locker     *lock.AccountLocker
	maxRetries int
	log        *zap.Logger
}

func NewLedgerEngine(users store.UserStore, locker *lock.AccountLocker, maxRetries int, log *zap.Logger) *LedgerEngine {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &LedgerEngine{users: users, locker: locker, maxRetries: maxRetries, log: log.Named("ledger")}
}

// plan inspects the freshly read accounts and returns the changes to apply
// and the acting account's resulting balance.
type plan func(accounts map[string]*models.Account) ([]models.BalanceChange, int64, error)

// Transfer moves amount minor units from the acting account to the account
// registered under recipientEmail and returns the sender's new balance.
func (e *LedgerEngine) Transfer(ctx context.Context, actingID, recipientEmail string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	recipient, err := e.users.GetByEmail(ctx, recipientEmail)
	if errors.Is(err, store.ErrNotFound) {
		return 0, ErrRecipientNotFound
	}
	if err != nil {
		return 0, unavailable("load recipient", err)
	}
	if recipient.ID == actingID {
		return 0, ErrSelfTransfer
	}

	balance, err := e.mutate(ctx, []string{actingID, recipient.ID}, func(accounts map[string]*models.Account) ([]models.BalanceChange, int64, error) {
		from, to := accounts[actingID], accounts[recipient.ID]
		if from.Balance < amount {
			return nil, 0, ErrInsufficientFunds
		}
		return []models.BalanceChange{
			{AccountID: from.ID, Delta: -amount, ExpectedVersion: from.Version},
			{AccountID: to.ID, Delta: amount, ExpectedVersion: to.Version},
		}, from.Balance - amount, nil
	})
	if err != nil {
		return 0, err
	}

	e.log.Info("transfer committed",
		zap.String("from", actingID),
		zap.String("to", recipient.ID),
		zap.Int64("amount", amount))
	return balance, nil
}

// Withdraw removes amount minor units from the acting account.
func (e *LedgerEngine) Withdraw(ctx context.Context, actingID string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	balance, err := e.mutate(ctx, []string{actingID}, func(accounts map[string]*models.Account) ([]models.BalanceChange, int64, error) {
		acct := accounts[actingID]
		if acct.Balance < amount {
			return nil, 0, ErrInsufficientFunds
		}
		return []models.BalanceChange{
			{AccountID: acct.ID, Delta: -amount, ExpectedVersion: acct.Version},
		}, acct.Balance - amount, nil
	})
	if err != nil {
		return 0, err
	}

	e.log.Info("withdrawal committed", zap.String("account_id", actingID), zap.Int64("amount", amount))
	return balance, nil
}

// Balance is an unlocked read and may trail an in-flight mutation.
func (e *LedgerEngine) Balance(ctx context.Context, accountID string) (int64, error) {
	account, err := e.users.GetByID(ctx, accountID)
	if errors.Is(err, store.ErrNotFound) {
		return 0, ErrAccountNotFound
	}
	if err != nil {
		return 0, unavailable("load account", err)
	}
	return account.Balance, nil
}

func (e *LedgerEngine) mutate(ctx context.Context, ids []string, fn plan) (int64, error) {
	release, err := e.locker.Acquire(ctx, ids...)
	if errors.Is(err, lock.ErrTimeout) {
		e.log.Warn("lock wait exceeded", zap.Strings("accounts", ids))
		return 0, ErrBusy
	}
	if err != nil {
		return 0, err
	}
	defer release()

	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		accounts := make(map[string]*models.Account, len(ids))
		for _, id := range ids {
			account, err := e.users.GetByID(ctx, id)
			if errors.Is(err, store.ErrNotFound) {
				return 0, ErrAccountNotFound
			}
			if err != nil {
				return 0, unavailable("load account", err)
			}
			accounts[id] = account
		}

		changes, balance, err := fn(accounts)
		if err != nil {
			return 0, err
		}

		// Past this point the request can no longer abort the write.
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		err = e.users.ApplyBalanceChanges(context.WithoutCancel(ctx), changes)
		switch {
		case err == nil:
			return balance, nil
		case errors.Is(err, store.ErrVersionConflict):
			e.log.Debug("version conflict, retrying", zap.Int("attempt", attempt+1), zap.Strings("accounts", ids))
			continue
		case errors.Is(err, store.ErrNegativeBalance):
			return 0, ErrInsufficientFunds
		default:
			return 0, unavailable("commit balances", err)
		}
	}

	return 0, fmt.Errorf("%w: %d version conflicts", ErrBusy, e.maxRetries+1)
}
