package models

import "time"

// BalanceChange is one side of a ledger mutation. ExpectedVersion must match
// the stored account version for the change to apply.
type BalanceChange struct {
	AccountID       string
	Delta           int64
	ExpectedVersion int64
}

// Session is an issued bearer token as recorded server-side.
type Session struct {
	Token     string    `json:"token"`
	AccountID string    `json:"account_id"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
