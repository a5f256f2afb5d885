package models

import "time"

// Account is a registered user together with the balance they hold.
type Account struct {
	ID           string    `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Balance      int64     `json:"balance" db:"balance"` // minor units
	CurrentToken string    `json:"-" db:"current_token"` // informational only
	Version      int64     `json:"-" db:"version"`       // for optimistic locking
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// AccountView is the public projection of an account, without credentials
// or balance.
type AccountView struct {
	ID    string `json:"id,omitempty" example:"6f1c2d4e-8a8b-4b0e-9d3c-0f2f4c1d9e77"`
	Name  string `json:"name" example:"Alice"`
	Email string `json:"email" example:"alice@x.com"`
}

func (a *Account) View() AccountView {
	return AccountView{ID: a.ID, Name: a.Name, Email: a.Email}
}
