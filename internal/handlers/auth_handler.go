package handlers

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/kodbank/backend/internal/logger"
	"github.com/kodbank/backend/internal/models"
	"github.com/kodbank/backend/internal/services"
)

// RegisterRequest represents the registration request payload
// @Description Registration request structure
type RegisterRequest struct {
	Name     string `json:"name" validate:"required,max=100" example:"Alice"`               // Display name
	Email    string `json:"email" validate:"required,email,max=254" example:"alice@x.com"`  // Email address, matched exactly
	Password string `json:"password" validate:"required,min=6,max=128" example:"secret123"` // Password
}

// LoginRequest represents the login request payload
// @Description Login request structure
type LoginRequest struct {
	Email    string `json:"email" validate:"required" example:"alice@x.com"`
	Password string `json:"password" validate:"required" example:"secret123"`
}

// AuthResponse represents the authentication response
// @Description Authentication response structure
type AuthResponse struct {
	Message string             `json:"message" example:"Login successful"`
	User    models.AccountView `json:"user"`
	Token   string             `json:"token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."` // JWT token
}

// CookieConfig controls the session cookie.
type CookieConfig struct {
	Secure bool
	TTL    time.Duration
}

type AuthHandler struct {
	creds     *services.CredentialService
	cookie    CookieConfig
	validator *validator.Validate
	log       *zap.Logger
}

func NewAuthHandler(creds *services.CredentialService, cookie CookieConfig, log *zap.Logger) *AuthHandler {
	return &AuthHandler{
		creds:     creds,
		cookie:    cookie,
		validator: validator.New(),
		log:       log.Named("http.auth"),
	}
}

// Register handles user registration
// @Summary Register a new user
// @Description Create an account with the starting balance and open a session
// @Tags auth
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Registration request"
// @Success 201 {object} AuthResponse "Registration successful"
// @Failure 400 {object} ErrorResponse "Invalid request or user already exists"
// @Failure 503 {object} ErrorResponse "Store unavailable"
// @Router /register [post]
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}

	res, err := h.creds.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		SendServiceError(w, h.log, err)
		return
	}

	h.setSessionCookie(w, res.Token)
	writeJSON(w, http.StatusCreated, AuthResponse{
		Message: "User registered successfully",
		User:    res.Account,
		Token:   res.Token,
	})
}

// Login handles user authentication
// @Summary Login user
// @Description Authenticate with email and password. Earlier sessions stay valid.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login request"
// @Success 200 {object} AuthResponse "Login successful"
// @Failure 400 {object} ErrorResponse "Invalid request"
// @Failure 401 {object} ErrorResponse "Invalid credentials"
// @Router /login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}

	res, err := h.creds.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		SendServiceError(w, h.log, err)
		return
	}

	h.setSessionCookie(w, res.Token)
	writeJSON(w, http.StatusOK, AuthResponse{
		Message: "Login successful",
		User:    res.Account,
		Token:   res.Token,
	})
}

// Logout revokes the presented session
// @Summary Logout user
// @Description Revoke the session token from the cookie or bearer header and clear the cookie. Idempotent.
// @Tags auth
// @Produce json
// @Success 200 {object} MessageResponse
// @Failure 503 {object} ErrorResponse "Store unavailable"
// @Router /logout [post]
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	bearer := BearerFromRequest(r)
	if err := h.creds.Logout(r.Context(), bearer); err != nil {
		SendServiceError(w, h.log, err)
		return
	}
	if bearer != "" {
		h.log.Debug("session revoked", zap.String("token", logger.Redact(bearer)))
	}

	h.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Logged out successfully"})
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.cookie.TTL / time.Second),
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
