package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/kodbank/backend/internal/models"
	"github.com/kodbank/backend/internal/money"
	"github.com/kodbank/backend/internal/services"
)

// TransferRequest moves money to another account
// @Description Transfer request structure
type TransferRequest struct {
	RecipientEmail string       `json:"recipientEmail" validate:"required" example:"bob@x.com"`
	Amount         money.Amount `json:"amount" swaggertype:"number" example:"300"` // Major units, number or numeric string
}

// WithdrawRequest removes money from the caller's account
// @Description Withdraw request structure
type WithdrawRequest struct {
	Amount money.Amount `json:"amount" swaggertype:"number" example:"700"`
}

// MeResponse wraps the caller's public profile.
type MeResponse struct {
	User models.AccountView `json:"user"`
}

// BalanceResponse carries a balance in major units.
type BalanceResponse struct {
	Balance json.Number `json:"balance" swaggertype:"number" example:"1000.00"`
}

// LedgerResponse is returned after a successful transfer or withdrawal.
type LedgerResponse struct {
	Message    string      `json:"message" example:"Transfer successful"`
	NewBalance json.Number `json:"newBalance" swaggertype:"number" example:"700.00"`
}

type AccountHandler struct {
	creds     *services.CredentialService
	ledger    *services.LedgerEngine
	money     money.Converter
	validator *validator.Validate
	log       *zap.Logger
}

func NewAccountHandler(creds *services.CredentialService, ledger *services.LedgerEngine, conv money.Converter, log *zap.Logger) *AccountHandler {
	return &AccountHandler{
		creds:     creds,
		ledger:    ledger,
		money:     conv,
		validator: validator.New(),
		log:       log.Named("http.account"),
	}
}

// Me returns the authenticated user's profile
// @Summary Current user
// @Tags account
// @Produce json
// @Security BearerAuth
// @Success 200 {object} MeResponse
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse "Account no longer exists"
// @Router /me [get]
func (h *AccountHandler) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := services.IdentityFrom(r.Context())
	if !ok {
		SendServiceError(w, h.log, services.ErrNoToken)
		return
	}

	view, err := h.creds.Profile(r.Context(), id.AccountID)
	if err != nil {
		SendServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, MeResponse{User: view})
}

// Balance returns the authenticated user's balance
// @Summary Account balance
// @Tags account
// @Produce json
// @Security BearerAuth
// @Success 200 {object} BalanceResponse
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /balance [get]
func (h *AccountHandler) Balance(w http.ResponseWriter, r *http.Request) {
	id, ok := services.IdentityFrom(r.Context())
	if !ok {
		SendServiceError(w, h.log, services.ErrNoToken)
		return
	}

	balance, err := h.ledger.Balance(r.Context(), id.AccountID)
	if err != nil {
		SendServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceResponse{Balance: h.money.ToMajor(balance)})
}

// Transfer sends money to another account
// @Summary Transfer funds
// @Description Move an amount from the caller to the account registered under recipientEmail
// @Tags account
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body TransferRequest true "Transfer request"
// @Success 200 {object} LedgerResponse
// @Failure 400 {object} ErrorResponse "Invalid amount, insufficient balance or self transfer"
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse "Recipient not found"
// @Failure 503 {object} ErrorResponse "Account busy"
// @Router /transfer [post]
func (h *AccountHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	id, ok := services.IdentityFrom(r.Context())
	if !ok {
		SendServiceError(w, h.log, services.ErrNoToken)
		return
	}

	var req TransferRequest
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}
	amount, ok := h.minorUnits(w, req.Amount)
	if !ok {
		return
	}

	balance, err := h.ledger.Transfer(r.Context(), id.AccountID, req.RecipientEmail, amount)
	if err != nil {
		SendServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, LedgerResponse{Message: "Transfer successful", NewBalance: h.money.ToMajor(balance)})
}

// Withdraw takes money out of the caller's account
// @Summary Withdraw funds
// @Tags account
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body WithdrawRequest true "Withdraw request"
// @Success 200 {object} LedgerResponse
// @Failure 400 {object} ErrorResponse "Invalid amount or insufficient balance"
// @Failure 401 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse "Account busy"
// @Router /withdraw [post]
func (h *AccountHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	id, ok := services.IdentityFrom(r.Context())
	if !ok {
		SendServiceError(w, h.log, services.ErrNoToken)
		return
	}

	var req WithdrawRequest
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}
	amount, ok := h.minorUnits(w, req.Amount)
	if !ok {
		return
	}

	balance, err := h.ledger.Withdraw(r.Context(), id.AccountID, amount)
	if err != nil {
		SendServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, LedgerResponse{Message: "Withdrawal successful", NewBalance: h.money.ToMajor(balance)})
}

// minorUnits converts a request amount; any conversion failure is answered
// as an invalid amount.
func (h *AccountHandler) minorUnits(w http.ResponseWriter, a money.Amount) (int64, bool) {
	minor, err := h.money.ToMinor(a)
	if err != nil {
		if !errors.Is(err, money.ErrMissingAmount) {
			h.log.Debug("amount rejected", zap.Error(err))
		}
		SendServiceError(w, h.log, services.ErrInvalidAmount)
		return 0, false
	}
	return minor, true
}
