package services

import (
	"context"
	"errors"
)

var (
	ErrDuplicateAccount   = errors.New("account already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")

	ErrNoToken        = errors.New("no session token presented")
	ErrInvalidToken   = errors.New("invalid or expired token")
	ErrRevokedSession = errors.New("session revoked")

	ErrInvalidAmount     = errors.New("invalid amount")
	ErrRecipientNotFound = errors.New("recipient not found")
	ErrSelfTransfer      = errors.New("cannot transfer to yourself")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrAccountNotFound   = errors.New("account not found")

	ErrBusy        = errors.New("account busy")
	ErrUnavailable = errors.New("dependency unavailable")
)

// Kind groups errors by how a caller should react to them.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindAuthentication
	KindAuthorization
	KindNotFound
	KindConflict
	KindInsufficientFunds
	KindUnavailable
	KindCanceled
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthentication:
		return "authentication"
	case KindAuthorization:
		return "authorization"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindInsufficientFunds:
		return "insufficient_funds"
	case KindUnavailable:
		return "unavailable"
	case KindCanceled:
		return "canceled"
	default:
		return "internal"
	}
}

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrInvalidAmount, KindValidation},
	{ErrNoToken, KindAuthentication},
	{ErrInvalidToken, KindAuthentication},
	{ErrRevokedSession, KindAuthentication},
	{ErrInvalidCredentials, KindAuthentication},
	{ErrSelfTransfer, KindAuthorization},
	{ErrRecipientNotFound, KindNotFound},
	{ErrAccountNotFound, KindNotFound},
	{ErrDuplicateAccount, KindConflict},
	{ErrInsufficientFunds, KindInsufficientFunds},
	{ErrBusy, KindUnavailable},
	{ErrUnavailable, KindUnavailable},
	{context.DeadlineExceeded, KindUnavailable},
	{context.Canceled, KindCanceled},
}

// KindOf classifies err. Anything not produced by this package is internal.
func KindOf(err error) Kind {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}
