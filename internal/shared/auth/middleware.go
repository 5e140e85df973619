package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	apperrors "github.com/hospital-urgencias/clinops/internal/shared/errors"
	"github.com/hospital-urgencias/clinops/internal/shared/httpx"
)

type contextKey string

const UserContextKey contextKey = "user"

// CurrentUser is the authenticated clinician attached to the request context.
type CurrentUser struct {
	ID          uuid.UUID `json:"id"`
	Username    string    `json:"username"`
	Specialty   string    `json:"specialty"`
	IsActive    bool      `json:"is_active"`
	IsSuperuser bool      `json:"is_superuser"`
}

// Claims is the JWT payload for both access and refresh tokens.
// TokenType distinguishes the two; refresh tokens additionally carry a
// persisted jti in RegisteredClaims.ID.
type Claims struct {
	jwt.RegisteredClaims
	TokenType string `json:"type"`
}

// UserLookup resolves a token subject to the current user record.
// Returning nil means the account is unknown or inactive.
type UserLookup func(ctx context.Context, username string) (*CurrentUser, error)

// ParseToken validates signature and expiry and returns the claims.
func ParseToken(tokenString, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// Middleware authenticates requests with a bearer access token and loads
// the user into the request context.
func Middleware(secret string, lookup UserLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				httpx.WriteError(w, apperrors.Unauthorized("missing authorization header"))
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				httpx.WriteError(w, apperrors.Unauthorized("invalid authorization header format"))
				return
			}

			claims, err := ParseToken(parts[1], secret)
			if err != nil {
				httpx.WriteError(w, apperrors.Unauthorized("invalid token"))
				return
			}
			if claims.TokenType != "access" {
				httpx.WriteError(w, apperrors.Unauthorized("token is not an access token"))
				return
			}

			user, err := lookup(r.Context(), claims.Subject)
			if err != nil {
				httpx.WriteError(w, apperrors.Internal(err))
				return
			}
			if user == nil || !user.IsActive {
				httpx.WriteError(w, apperrors.Unauthorized("account unknown or inactive"))
				return
			}

			ctx := context.WithValue(r.Context(), UserContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUser extracts the user from request context
func GetUser(ctx context.Context) *CurrentUser {
	user, ok := ctx.Value(UserContextKey).(*CurrentUser)
	if !ok {
		return nil
	}
	return user
}

// RequireSuperuser guards admin endpoints.
func RequireSuperuser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := GetUser(r.Context())
		if user == nil {
			httpx.WriteError(w, apperrors.Unauthorized("authentication required"))
			return
		}
		if !user.IsSuperuser {
			httpx.WriteError(w, apperrors.Forbidden("superuser required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
