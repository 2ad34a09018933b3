package auth

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	qrcode "github.com/skip2/go-qrcode"
)

const (
	// TOTPSecretBytes yields a 32-character unpadded base32 secret
	TOTPSecretBytes = 20
	TOTPPeriod      = 30
	TOTPSkew        = 1
	TOTPCodeLength  = 6
)

// QRRenderer turns a provisioning URI into a scannable payload.
// Rendering is optional: callers fall back to the raw URI on error.
type QRRenderer interface {
	Render(content string) (string, error)
}

// PNGQRRenderer renders QR codes as PNG data URLs
type PNGQRRenderer struct {
	Size  int
	Level qrcode.RecoveryLevel
}

// Render encodes content as "data:image/png;base64,..."
func (r PNGQRRenderer) Render(content string) (string, error) {
	size := r.Size
	if size <= 0 {
		size = 200
	}

	png, err := qrcode.Encode(content, r.Level, size)
	if err != nil {
		return "", fmt.Errorf("failed to encode QR code: %w", err)
	}

	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}

// TOTPKey is a freshly generated shared secret and its otpauth:// URI
type TOTPKey struct {
	Secret string
	URI    string
}

// TOTPManager generates and validates RFC 6238 codes (SHA1, 6 digits, 30s)
type TOTPManager struct {
	issuer   string
	renderer QRRenderer
	now      func() time.Time
}

// TOTPOption configures a TOTPManager
type TOTPOption func(*TOTPManager)

// WithTOTPClock overrides the validation time source
func WithTOTPClock(now func() time.Time) TOTPOption {
	return func(m *TOTPManager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithQRRenderer replaces the default PNG renderer. A nil renderer
// disables QR rendering and enrollment returns the raw URI.
func WithQRRenderer(renderer QRRenderer) TOTPOption {
	return func(m *TOTPManager) {
		m.renderer = renderer
	}
}

// NewTOTPManager creates a new TOTP manager
func NewTOTPManager(issuer string, opts ...TOTPOption) *TOTPManager {
	m := &TOTPManager{
		issuer:   issuer,
		renderer: PNGQRRenderer{Size: 200, Level: qrcode.Medium},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// GenerateKey creates a random base32 secret labelled with accountName
func (m *TOTPManager) GenerateKey(accountName string) (*TOTPKey, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      m.issuer,
		AccountName: accountName,
		SecretSize:  TOTPSecretBytes,
		Period:      TOTPPeriod,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate TOTP key: %w", err)
	}

	return &TOTPKey{Secret: key.Secret(), URI: key.URL()}, nil
}

// ProvisioningPayload renders uri as a QR code. On failure it returns the
// raw URI together with the rendering error so the caller can log it.
func (m *TOTPManager) ProvisioningPayload(uri string) (string, error) {
	if m.renderer == nil {
		return uri, nil
	}

	payload, err := m.renderer.Render(uri)
	if err != nil {
		return uri, err
	}
	return payload, nil
}

// Validate checks code against secret, accepting the adjacent time step
// on either side to absorb clock drift.
func (m *TOTPManager) Validate(secret, code string) (bool, error) {
	valid, err := totp.ValidateCustom(code, secret, m.now().UTC(), m.validateOpts())
	if err != nil {
		return false, fmt.Errorf("failed to validate TOTP: %w", err)
	}
	return valid, nil
}

// GenerateCode returns the code for secret at t
func (m *TOTPManager) GenerateCode(secret string, t time.Time) (string, error) {
	return totp.GenerateCodeCustom(secret, t.UTC(), m.validateOpts())
}

func (m *TOTPManager) validateOpts() totp.ValidateOpts {
	return totp.ValidateOpts{
		Period:    TOTPPeriod,
		Skew:      TOTPSkew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	}
}
