package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/kodbank/backend/internal/money"
	"github.com/kodbank/backend/internal/services"
)

const maxBodyBytes = 1_048_576 // 1 MB

// statusClientClosedRequest is sent when the caller went away mid-request.
const statusClientClosedRequest = 499

// SessionCookie is the cookie carrying the bearer token.
const SessionCookie = "token"

// ErrorResponse represents error response structure
// @Description Error response structure
type ErrorResponse struct {
	Message string            `json:"message" example:"Insufficient balance"` // Error message
	Details map[string]string `json:"details,omitempty"`                      // Validation details
}

// MessageResponse is a bare acknowledgement.
type MessageResponse struct {
	Message string `json:"message" example:"Logged out successfully"`
}

// public messages shown for service errors
var messages = map[error]string{
	services.ErrDuplicateAccount:   "User already exists",
	services.ErrInvalidCredentials: "Invalid credentials",
	services.ErrNoToken:            "Access Denied: No Token Provided",
	services.ErrInvalidToken:       "Invalid Token",
	services.ErrRevokedSession:     "Invalid or Expired Session",
	services.ErrInvalidAmount:      "Invalid amount",
	services.ErrRecipientNotFound:  "Recipient not found",
	services.ErrSelfTransfer:       "Cannot transfer to yourself",
	services.ErrInsufficientFunds:  "Insufficient balance",
	services.ErrAccountNotFound:    "User not found",
	services.ErrBusy:               "Account is busy, please retry",
	context.Canceled:               "Request canceled",
}

var statuses = map[services.Kind]int{
	services.KindValidation:        http.StatusBadRequest,
	services.KindAuthentication:    http.StatusUnauthorized,
	services.KindAuthorization:     http.StatusBadRequest,
	services.KindNotFound:          http.StatusNotFound,
	services.KindConflict:          http.StatusBadRequest,
	services.KindInsufficientFunds: http.StatusBadRequest,
	services.KindUnavailable:       http.StatusServiceUnavailable,
	services.KindCanceled:          statusClientClosedRequest,
}

// SendErrorResponse sends a JSON error response
func SendErrorResponse(w http.ResponseWriter, message string, statusCode int, validationErr error) {
	resp := ErrorResponse{Message: message}

	var verrs validator.ValidationErrors
	if errors.As(validationErr, &verrs) {
		resp.Details = make(map[string]string, len(verrs))
		for _, err := range verrs {
			resp.Details[err.Field()] = fmt.Sprintf("Field Validation Failed on '%s' tag", err.Tag())
		}
	}

	writeJSON(w, statusCode, resp)
}

// SendServiceError maps err to a status and public message. Unclassified
// errors are logged and answered with a generic 500.
func SendServiceError(w http.ResponseWriter, log *zap.Logger, err error) {
	kind := services.KindOf(err)
	status, ok := statuses[kind]
	if !ok {
		log.Error("request failed", zap.Error(err))
		SendErrorResponse(w, "An Internal Error Occurred", http.StatusInternalServerError, nil)
		return
	}

	switch kind {
	case services.KindUnavailable:
		log.Warn("dependency unavailable", zap.Error(err))
		w.Header().Set("Retry-After", "1")
	case services.KindCanceled:
		log.Debug("request canceled by client", zap.Error(err))
	}
	SendErrorResponse(w, publicMessage(err), status, nil)
}

func publicMessage(err error) string {
	for sentinel, msg := range messages {
		if errors.Is(err, sentinel) {
			return msg
		}
	}
	return "Service temporarily unavailable"
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// decodeJSON reads exactly one JSON object into dst and validates it. On
// failure the error response has already been written.
func decodeJSON(w http.ResponseWriter, r *http.Request, v *validator.Validate, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, money.ErrNotANumber) {
			SendErrorResponse(w, messages[services.ErrInvalidAmount], http.StatusBadRequest, nil)
			return false
		}
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return false
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return false
	}

	if err := v.Struct(dst); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return false
	}
	return true
}

// BearerFromRequest returns the session token, preferring the cookie over
// the Authorization header.
func BearerFromRequest(r *http.Request) string {
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
