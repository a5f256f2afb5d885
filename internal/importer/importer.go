// Package importer loads accounts from the legacy JSON user file.
package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/kodbank/backend/internal/models"
	"github.com/kodbank/backend/internal/money"
	"github.com/kodbank/backend/internal/store"
)

// legacyUser is one entry of users.json. Ids were millisecond timestamps
// and balances plain JSON numbers.
type legacyUser struct {
	ID       json.Number `json:"id"`
	Name     string      `json:"name"`
	Email    string      `json:"email"`
	Password string      `json:"password"`
	Balance  json.Number `json:"balance"`
}

type Report struct {
	Imported int
	Skipped  int
	Failed   int
}

// Import creates an account for every legacy user whose email is not yet
// taken. Password hashes are kept as-is; the hasher verifies bcrypt.
func Import(ctx context.Context, r io.Reader, users store.UserStore, minorUnits int32, log *zap.Logger) (Report, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var legacy []legacyUser
	if err := dec.Decode(&legacy); err != nil {
		return Report{}, fmt.Errorf("decode users file: %w", err)
	}

	var rep Report
	for i, u := range legacy {
		account, err := convert(u, minorUnits)
		if err != nil {
			rep.Failed++
			log.Warn("skipping invalid record", zap.Int("index", i), zap.String("email", u.Email), zap.Error(err))
			continue
		}

		err = users.Create(ctx, account)
		switch {
		case err == nil:
			rep.Imported++
		case errors.Is(err, store.ErrAlreadyExists):
			rep.Skipped++
			log.Info("email already present", zap.String("email", u.Email))
		default:
			return rep, fmt.Errorf("create %s: %w", u.Email, err)
		}
	}
	return rep, nil
}

func convert(u legacyUser, minorUnits int32) (*models.Account, error) {
	if u.ID == "" || u.Email == "" {
		return nil, errors.New("id and email are required")
	}
	if !strings.HasPrefix(u.Password, "$2") {
		return nil, errors.New("password is not a bcrypt hash")
	}

	balance := decimal.Zero
	if u.Balance != "" {
		d, err := decimal.NewFromString(u.Balance.String())
		if err != nil {
			return nil, fmt.Errorf("balance: %w", err)
		}
		balance = d
	}
	if balance.IsNegative() {
		return nil, errors.New("negative balance")
	}
	minor, err := money.NewConverter(minorUnits).Scale(balance)
	if err != nil {
		return nil, fmt.Errorf("balance %s: %w", u.Balance, err)
	}

	return &models.Account{
		ID:           u.ID.String(),
		Name:         u.Name,
		Email:        u.Email,
		PasswordHash: u.Password,
		Balance:      minor,
	}, nil
}
