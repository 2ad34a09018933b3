package auth

import (
	"encoding/base64"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base32Secret = regexp.MustCompile(`^[A-Z2-7]{32}$`)

type failingRenderer struct{}

func (failingRenderer) Render(string) (string, error) {
	return "", errors.New("renderer unavailable")
}

// ============================================================================
// Key Generation Tests (3 tests)
// ============================================================================

func TestTOTPManager_GenerateKey_SecretFormat(t *testing.T) {
	m := NewTOTPManager("Carebase")

	key, err := m.GenerateKey("jdupont")
	require.NoError(t, err)

	assert.Regexp(t, base32Secret, key.Secret)
	assert.True(t, strings.HasPrefix(key.URI, "otpauth://totp/"))
	assert.Contains(t, key.URI, "secret="+key.Secret)
	assert.Contains(t, key.URI, "issuer=Carebase")
}

func TestTOTPManager_GenerateKey_Random(t *testing.T) {
	m := NewTOTPManager("Carebase")

	a, err := m.GenerateKey("jdupont")
	require.NoError(t, err)
	b, err := m.GenerateKey("jdupont")
	require.NoError(t, err)

	assert.NotEqual(t, a.Secret, b.Secret)
}

func TestTOTPManager_ProvisioningPayload_PNG(t *testing.T) {
	m := NewTOTPManager("Carebase")
	key, err := m.GenerateKey("jdupont")
	require.NoError(t, err)

	payload, err := m.ProvisioningPayload(key.URI)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(payload, "data:image/png;base64,"))

	pngData, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(payload, "data:image/png;base64,"))
	require.NoError(t, err)
	// PNG signature
	assert.Equal(t, []byte{137, 80, 78, 71}, pngData[:4])
}

// ============================================================================
// QR Fallback Tests (2 tests)
// ============================================================================

func TestTOTPManager_ProvisioningPayload_FallsBackToURI(t *testing.T) {
	m := NewTOTPManager("Carebase", WithQRRenderer(failingRenderer{}))

	payload, err := m.ProvisioningPayload("otpauth://totp/Carebase:jdupont?secret=ABC")
	assert.Error(t, err)
	assert.Equal(t, "otpauth://totp/Carebase:jdupont?secret=ABC", payload)
}

func TestTOTPManager_ProvisioningPayload_NoRenderer(t *testing.T) {
	m := NewTOTPManager("Carebase", WithQRRenderer(nil))

	payload, err := m.ProvisioningPayload("otpauth://totp/x")
	assert.NoError(t, err)
	assert.Equal(t, "otpauth://totp/x", payload)
}

// ============================================================================
// Validation Tests (4 tests)
// ============================================================================

func TestTOTPManager_Validate_SkewWindow(t *testing.T) {
	now := time.Date(2026, 3, 10, 8, 0, 15, 0, time.UTC)
	m := NewTOTPManager("Carebase", WithTOTPClock(func() time.Time { return now }))

	key, err := m.GenerateKey("jdupont")
	require.NoError(t, err)

	tests := []struct {
		name   string
		offset time.Duration
		valid  bool
	}{
		{"current step", 0, true},
		{"previous step", -30 * time.Second, true},
		{"next step", 30 * time.Second, true},
		{"two steps back", -60 * time.Second, false},
		{"two steps ahead", 60 * time.Second, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, err := m.GenerateCode(key.Secret, now.Add(tt.offset))
			require.NoError(t, err)

			valid, err := m.Validate(key.Secret, code)
			require.NoError(t, err)
			assert.Equal(t, tt.valid, valid)
		})
	}
}

func TestTOTPManager_Validate_WrongCode(t *testing.T) {
	now := time.Date(2026, 3, 10, 8, 0, 15, 0, time.UTC)
	m := NewTOTPManager("Carebase", WithTOTPClock(func() time.Time { return now }))
	key, err := m.GenerateKey("jdupont")
	require.NoError(t, err)

	code, err := m.GenerateCode(key.Secret, now)
	require.NoError(t, err)

	// Flip the last digit
	wrong := code[:5] + string('0'+(code[5]-'0'+1)%10)
	valid, err := m.Validate(key.Secret, wrong)
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestTOTPManager_Validate_WrongLength(t *testing.T) {
	m := NewTOTPManager("Carebase")
	key, err := m.GenerateKey("jdupont")
	require.NoError(t, err)

	valid, err := m.Validate(key.Secret, "12345")
	assert.Error(t, err)
	assert.False(t, valid)
}

func TestTOTPManager_GenerateCode_SixDigits(t *testing.T) {
	m := NewTOTPManager("Carebase")
	key, err := m.GenerateKey("jdupont")
	require.NoError(t, err)

	code, err := m.GenerateCode(key.Secret, time.Now())
	require.NoError(t, err)
	assert.Regexp(t, `^\d{6}$`, code)
}
