package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/BradenHooton/carebase/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenCodec issues and parses HS256 session tokens carrying an absolute
// expiry (exp) and a sliding last_activity stamp.
type TokenCodec struct {
	secret        []byte
	absoluteTTL   time.Duration
	inactivityTTL time.Duration
	now           func() time.Time
	parser        *jwt.Parser
}

// TokenOption configures a TokenCodec
type TokenOption func(*TokenCodec)

// WithClock overrides the time source, mainly for tests
func WithClock(now func() time.Time) TokenOption {
	return func(c *TokenCodec) {
		if now != nil {
			c.now = now
		}
	}
}

// NewTokenCodec creates a codec bound to the process-wide signing secret.
// inactivityTTL is expected to be shorter than absoluteTTL; config.Load enforces it.
func NewTokenCodec(secret string, absoluteTTL, inactivityTTL time.Duration, opts ...TokenOption) *TokenCodec {
	c := &TokenCodec{
		secret:        []byte(secret),
		absoluteTTL:   absoluteTTL,
		inactivityTTL: inactivityTTL,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	// time claims are checked in Decode: a token is still valid at exactly exp
	c.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	return c
}

// AbsoluteTTL returns the fixed token lifetime
func (c *TokenCodec) AbsoluteTTL() time.Duration { return c.absoluteTTL }

// InactivityTTL returns the sliding inactivity window
func (c *TokenCodec) InactivityTTL() time.Duration { return c.inactivityTTL }

// Issue creates a fresh token for subject with iat = last_activity = now
func (c *TokenCodec) Issue(subject models.SessionSubject) (string, error) {
	now := c.now()

	claims := &models.SessionClaims{
		UserID:       subject.UserID,
		Email:        subject.Email,
		Login:        subject.Login,
		RoleID:       subject.RoleID,
		RoleName:     subject.RoleName,
		ProfileID:    subject.ProfileID,
		ProfileName:  subject.ProfileName,
		LastActivity: jwt.NewNumericDate(now),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   strconv.FormatInt(subject.UserID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.absoluteTTL)),
		},
	}

	return c.sign(claims)
}

// Decode verifies the signature and absolute expiry. Inactivity is not checked here.
func (c *TokenCodec) Decode(tokenString string) (*models.SessionClaims, error) {
	if tokenString == "" {
		return nil, models.ErrMalformedToken
	}

	claims := &models.SessionClaims{}
	_, err := c.parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return c.secret, nil
	})
	if err != nil {
		return nil, mapJWTError(err)
	}

	if claims.UserID <= 0 {
		return nil, fmt.Errorf("%w: missing user_id", models.ErrMalformedToken)
	}

	if err := c.checkTimes(claims); err != nil {
		return nil, err
	}

	return claims, nil
}

// checkTimes requires exp and rejects the token only once now > exp
func (c *TokenCodec) checkTimes(claims *models.SessionClaims) error {
	if claims.ExpiresAt == nil {
		return fmt.Errorf("%w: missing exp", models.ErrMalformedToken)
	}

	now := c.now()
	if claims.IssuedAt != nil && claims.IssuedAt.After(now) {
		return fmt.Errorf("%w: issued in the future", models.ErrMalformedToken)
	}
	if claims.NotBefore != nil && claims.NotBefore.After(now) {
		return fmt.Errorf("%w: not valid yet", models.ErrMalformedToken)
	}
	if now.After(claims.ExpiresAt.Time) {
		return models.ErrTokenExpired
	}
	return nil
}

// CheckInactivity fails once now - last_activity exceeds the inactivity window
func (c *TokenCodec) CheckInactivity(claims *models.SessionClaims) error {
	now := c.now()
	lastActivity := claims.LastActivityTime()

	if lastActivity.IsZero() || lastActivity.After(now) {
		return fmt.Errorf("%w: last_activity out of range", models.ErrMalformedToken)
	}
	if now.Sub(lastActivity) > c.inactivityTTL {
		return models.ErrInactivityExpired
	}
	return nil
}

// Refresh re-signs the token with last_activity = now. jti, iat, exp and
// the subject are preserved, so refreshing never extends the absolute lifetime.
// A session whose inactivity window already lapsed cannot be refreshed.
func (c *TokenCodec) Refresh(tokenString string) (string, error) {
	claims, err := c.Decode(tokenString)
	if err != nil {
		return "", err
	}
	if err := c.CheckInactivity(claims); err != nil {
		return "", err
	}

	claims.LastActivity = jwt.NewNumericDate(c.now())
	return c.sign(claims)
}

// TimeToExpiration returns whole seconds until exp, or 0 for any invalid token
func (c *TokenCodec) TimeToExpiration(tokenString string) int64 {
	claims, err := c.Decode(tokenString)
	if err != nil {
		return 0
	}
	expiresIn, _ := c.Remaining(claims)
	return expiresIn
}

// TimeToInactivityExpiration returns whole seconds until the inactivity
// window closes, or 0 for any invalid token
func (c *TokenCodec) TimeToInactivityExpiration(tokenString string) int64 {
	claims, err := c.Decode(tokenString)
	if err != nil {
		return 0
	}
	_, inactiveIn := c.Remaining(claims)
	return inactiveIn
}

// Remaining projects both windows from already-decoded claims.
// The inactivity window never reaches past exp.
func (c *TokenCodec) Remaining(claims *models.SessionClaims) (expiresIn, inactivityExpiresIn int64) {
	now := c.now()

	if claims.ExpiresAt != nil {
		expiresIn = secondsUntil(now, claims.ExpiresAt.Time)
	}

	inactivityExpiresIn = secondsUntil(now, claims.LastActivityTime().Add(c.inactivityTTL))
	if inactivityExpiresIn > expiresIn {
		inactivityExpiresIn = expiresIn
	}
	return expiresIn, inactivityExpiresIn
}

func (c *TokenCodec) sign(claims *models.SessionClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return tokenString, nil
}

func secondsUntil(now, deadline time.Time) int64 {
	d := deadline.Sub(now)
	if d <= 0 {
		return 0
	}
	return int64(d / time.Second)
}

// mapJWTError folds jwt parser errors into the session token taxonomy
func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: %v", models.ErrInvalidSignature, err)
	default:
		// malformed or unverifiable
		return fmt.Errorf("%w: %v", models.ErrMalformedToken, err)
	}
}
