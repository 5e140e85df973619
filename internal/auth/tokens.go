package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	sharedauth "github.com/hospital-urgencias/clinops/internal/shared/auth"
	"github.com/hospital-urgencias/clinops/internal/shared/config"
)

// TokenIssuer signs access and refresh tokens with the shared HMAC secret.
type TokenIssuer struct {
	cfg config.AuthConfig
}

// NewTokenIssuer creates a token issuer.
func NewTokenIssuer(cfg config.AuthConfig) *TokenIssuer {
	return &TokenIssuer{cfg: cfg}
}

// AccessToken signs a short-lived bearer token with the username as subject.
func (t *TokenIssuer) AccessToken(username string, now time.Time) (string, error) {
	claims := sharedauth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(t.cfg.AccessTokenExpireMinutes) * time.Minute)),
		},
		TokenType: "access",
	}
	return t.sign(claims)
}

// RefreshToken signs a refresh token carrying a fresh random jti and
// returns both the token and the jti for session persistence.
func (t *TokenIssuer) RefreshToken(username string, now time.Time) (token, jti string, expiresAt time.Time, err error) {
	jti = uuid.NewString()
	expiresAt = now.Add(time.Duration(t.cfg.RefreshTokenExpireMinutes) * time.Minute)

	claims := sharedauth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		TokenType: "refresh",
	}
	token, err = t.sign(claims)
	return token, jti, expiresAt, err
}

// AccessExpirySeconds is the access token lifetime for the expires_in field.
func (t *TokenIssuer) AccessExpirySeconds() int {
	return t.cfg.AccessTokenExpireMinutes * 60
}

// ParseRefresh validates a refresh token and returns its claims.
func (t *TokenIssuer) ParseRefresh(token string) (*sharedauth.Claims, error) {
	claims, err := sharedauth.ParseToken(token, t.cfg.SecretKey)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != "refresh" {
		return nil, fmt.Errorf("auth: token is not a refresh token")
	}
	return claims, nil
}

func (t *TokenIssuer) sign(claims sharedauth.Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(t.cfg.SecretKey))
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}
