package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hospital-urgencias/clinops/internal/shared/config"
)

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{"valid", "Urgencias2024", false},
		{"too short", "Ab1", true},
		{"no digit", "UrgenciasClave", true},
		{"single case lower", "urgencias2024", true},
		{"single case upper", "URGENCIAS2024", true},
		{"exactly eight", "Clave12a", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("Urgencias2024")
	require.NoError(t, err)
	assert.Contains(t, hash, "$argon2id$")

	ok, err := VerifyPassword("Urgencias2024", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPassword("WrongPass99", hash)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = VerifyPassword("whatever", "not-a-hash")
	assert.Error(t, err)
}

func TestHashPasswordSaltsEveryCall(t *testing.T) {
	h1, err := HashPassword("Urgencias2024")
	require.NoError(t, err)
	h2, err := HashPassword("Urgencias2024")
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		SecretKey:                 "unit-test-secret-key-0123456789abcdef",
		AccessTokenExpireMinutes:  30,
		RefreshTokenExpireMinutes: 7 * 24 * 60,
		LoginMaxAttempts:          3,
		LoginWindowMinutes:        10,
		LoginBlockMinutes:         10,
	}
}

func TestTokenIssuerRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer(testAuthConfig())
	now := time.Now()

	refresh, jti, expiresAt, err := issuer.RefreshToken("dr.garcia", now)
	require.NoError(t, err)
	assert.NotEmpty(t, jti)
	assert.WithinDuration(t, now.Add(7*24*time.Hour), expiresAt, time.Minute)

	claims, err := issuer.ParseRefresh(refresh)
	require.NoError(t, err)
	assert.Equal(t, "dr.garcia", claims.Subject)
	assert.Equal(t, jti, claims.ID)
	assert.Equal(t, "refresh", claims.TokenType)

	// Access tokens must not pass as refresh tokens.
	access, err := issuer.AccessToken("dr.garcia", now)
	require.NoError(t, err)
	_, err = issuer.ParseRefresh(access)
	assert.Error(t, err)
}

func TestNextFailedAttemptSlidingWindow(t *testing.T) {
	now := time.Now().UTC()
	window := 10 * time.Minute
	block := 10 * time.Minute

	// No prior row: counter starts at 1.
	first := nextFailedAttempt(nil, "dr.garcia", "10.0.0.1", now, window, 3, block)
	assert.Equal(t, 1, first.FailedCount)
	assert.Equal(t, now, first.FirstFailedAt)
	assert.Nil(t, first.BlockedUntil)

	// Second failure inside the window increments.
	second := nextFailedAttempt(first, "dr.garcia", "10.0.0.1", now.Add(time.Minute), window, 3, block)
	assert.Equal(t, 2, second.FailedCount)
	assert.Equal(t, first.FirstFailedAt, second.FirstFailedAt)
	assert.Nil(t, second.BlockedUntil)

	// Third failure reaches max_attempts and sets the block.
	third := nextFailedAttempt(second, "dr.garcia", "10.0.0.1", now.Add(2*time.Minute), window, 3, block)
	assert.Equal(t, 3, third.FailedCount)
	require.NotNil(t, third.BlockedUntil)
	assert.Equal(t, now.Add(2*time.Minute).Add(block), *third.BlockedUntil)

	// A failure after the window elapsed resets the counter.
	late := nextFailedAttempt(second, "dr.garcia", "10.0.0.1", now.Add(window+time.Minute), window, 3, block)
	assert.Equal(t, 1, late.FailedCount)
	assert.Equal(t, now.Add(window+time.Minute), late.FirstFailedAt)
}
