package handlers

import (
	"github.com/BradenHooton/carebase/internal/models"
	"github.com/BradenHooton/carebase/internal/services"
)

// Auth DTOs

// LoginRequest accepts either identifier; the service requires at least one
type LoginRequest struct {
	Login    string `json:"login" validate:"omitempty,max=100"`
	Email    string `json:"email" validate:"omitempty,email,max=255"`
	Password string `json:"password" validate:"required,max=256"`
}

type LoginResponse struct {
	Success   bool                   `json:"success"`
	Message   string                 `json:"message"`
	User      *services.UserResponse `json:"user"`
	Token     string                 `json:"token"`
	ExpiresIn int64                  `json:"expires_in"`
}

type VerifyResponse struct {
	Success             bool                   `json:"success"`
	User                *services.UserResponse `json:"user"`
	TokenExpiresIn      int64                  `json:"token_expires_in"`
	InactivityExpiresIn int64                  `json:"inactivity_expires_in"`
}

type RefreshActivityResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token"`
}

// MessageResponse is the body of endpoints that only confirm an action
type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// 2FA DTOs

type EnableTwoFactorRequest struct {
	Pin string `json:"pin" validate:"required,len=6,numeric"`
}

type EnableTwoFactorResponse struct {
	Success bool   `json:"success"`
	Secret  string `json:"secret"`
	QRCode  string `json:"qr_code"` // PNG data URL, or the otpauth:// URI when rendering failed
	URI     string `json:"otpauth_uri"`
}

// DisableTwoFactorRequest leaves the PIN format to the service so a
// malformed PIN is reported as a wrong PIN
type DisableTwoFactorRequest struct {
	Pin string `json:"pin" validate:"max=32"`
}

type VerifyTwoFactorRequest struct {
	Code string `json:"code" validate:"max=32"`
}

type VerifyTwoFactorResponse struct {
	Success bool `json:"success"`
	Valid   bool `json:"valid"`
}

type TwoFactorStatusResponse struct {
	Success          bool `json:"success"`
	TwoFactorEnabled bool `json:"two_factor_enabled"`
}

// Admin DTOs

type AuditTrailResponse struct {
	Success bool               `json:"success"`
	Events  []*models.AuditLog `json:"events"`
}
