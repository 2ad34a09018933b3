package auth

import (
	"errors"
	"strings"

	"github.com/BradenHooton/carebase/internal/models"
)

// Authenticator gates requests on the Authorization header. It enforces
// both the absolute and the inactivity expiry; account state is checked
// against the live user record by the caller.
type Authenticator struct {
	codec *TokenCodec
}

// NewAuthenticator creates an Authenticator over codec
func NewAuthenticator(codec *TokenCodec) *Authenticator {
	return &Authenticator{codec: codec}
}

// Codec exposes the underlying token codec
func (a *Authenticator) Codec() *TokenCodec {
	return a.codec
}

// Authenticate validates "Bearer <token>" and returns the decoded claims.
// claims.UserID is the authenticated user id.
func (a *Authenticator) Authenticate(rawHeader string) (*models.SessionClaims, error) {
	token, err := BearerToken(rawHeader)
	if err != nil {
		return nil, err
	}

	claims, err := a.codec.Decode(token)
	if err != nil {
		return nil, err
	}

	if err := a.codec.CheckInactivity(claims); err != nil {
		return nil, err
	}

	return claims, nil
}

// BearerToken extracts the token from an Authorization header value
func BearerToken(rawHeader string) (string, error) {
	parts := strings.SplitN(strings.TrimSpace(rawHeader), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", models.ErrMissingToken
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", models.ErrMissingToken
	}
	return token, nil
}

// TokenErrorResponse maps a token error to a machine code and client message
func TokenErrorResponse(err error) (code, message string) {
	switch {
	case errors.Is(err, models.ErrMissingToken):
		return "missing_token", "Missing or invalid authorization header"
	case errors.Is(err, models.ErrInvalidSignature):
		return "invalid_signature", "Invalid token signature"
	case errors.Is(err, models.ErrTokenExpired):
		return "token_expired", "Token has expired"
	case errors.Is(err, models.ErrInactivityExpired):
		return "inactivity_expired", "Session expired due to inactivity"
	default:
		return "malformed_token", "Malformed token"
	}
}
