package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	sharedauth "github.com/hospital-urgencias/clinops/internal/shared/auth"
	"github.com/hospital-urgencias/clinops/internal/shared/config"
	apperrors "github.com/hospital-urgencias/clinops/internal/shared/errors"
)

// Service implements registration, login with per-(username, ip) throttle,
// and refresh-token rotation.
type Service struct {
	repo   *Repository
	issuer *TokenIssuer
	cfg    config.AuthConfig
	logger *slog.Logger
}

// NewService creates the auth service.
func NewService(repo *Repository, cfg config.AuthConfig, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		issuer: NewTokenIssuer(cfg),
		cfg:    cfg,
		logger: logger,
	}
}

// Register creates a regular account. Weak passwords and duplicate
// usernames both map to 400.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	username := strings.TrimSpace(strings.ToLower(req.Username))
	if username == "" {
		return nil, apperrors.BadRequest("username is required")
	}
	if err := ValidatePassword(req.Password); err != nil {
		return nil, apperrors.BadRequest(err.Error())
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	specialty := strings.TrimSpace(strings.ToLower(req.Specialty))
	if specialty == "" {
		specialty = "general"
	}

	now := time.Now().UTC()
	user := &User{
		ID:           uuid.New(),
		Username:     username,
		PasswordHash: hash,
		Specialty:    specialty,
		IsActive:     true,
		IsSuperuser:  false,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicateUsername) {
			return nil, apperrors.BadRequest("username already taken")
		}
		return nil, apperrors.Internal(err)
	}
	return user, nil
}

// Login authenticates and issues a token pair, enforcing the sliding-window
// throttle before checking credentials.
func (s *Service) Login(ctx context.Context, username, password, ip string) (*TokenPair, error) {
	username = strings.TrimSpace(strings.ToLower(username))
	now := time.Now().UTC()

	attempt, err := s.repo.GetLoginAttempt(ctx, username, ip)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if attempt != nil && attempt.BlockedUntil != nil {
		if attempt.BlockedUntil.After(now) {
			retry := int(time.Until(*attempt.BlockedUntil).Seconds()) + 1
			return nil, apperrors.RateLimited("too many failed login attempts", retry)
		}
		// Block expired: clear the counter and let this attempt proceed.
		if err := s.repo.ClearLoginAttempt(ctx, username, ip); err != nil {
			return nil, apperrors.Internal(err)
		}
		attempt = nil
	}

	user, err := s.authenticate(ctx, username, password)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if user == nil {
		next := nextFailedAttempt(attempt, username, ip, now,
			time.Duration(s.cfg.LoginWindowMinutes)*time.Minute,
			s.cfg.LoginMaxAttempts,
			time.Duration(s.cfg.LoginBlockMinutes)*time.Minute,
		)
		if err := s.repo.UpsertLoginAttempt(ctx, next); err != nil {
			s.logger.Warn("failed to record login attempt", "username", username, "error", err)
		}
		return nil, apperrors.Unauthorized("invalid credentials")
	}

	if err := s.repo.ClearLoginAttempt(ctx, username, ip); err != nil {
		s.logger.Warn("failed to clear login attempts", "username", username, "error", err)
	}

	return s.issuePair(ctx, user, now)
}

// authenticate resolves credentials to a user, or nil on any mismatch.
func (s *Service) authenticate(ctx context.Context, username, password string) (*User, error) {
	user, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.IsActive {
		return nil, nil
	}
	ok, err := VerifyPassword(password, user.PasswordHash)
	if err != nil || !ok {
		return nil, nil
	}
	return user, nil
}

// Refresh validates a refresh token, revokes its session and issues a new
// pair. A token may be exchanged at most once.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.issuer.ParseRefresh(refreshToken)
	if err != nil {
		return nil, apperrors.Unauthorized("invalid refresh token")
	}

	user, err := s.repo.GetUserByUsername(ctx, claims.Subject)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if user == nil || !user.IsActive {
		return nil, apperrors.Unauthorized("account unknown or inactive")
	}

	now := time.Now().UTC()
	newRefresh, jti, expiresAt, err := s.issuer.RefreshToken(user.Username, now)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	if err := s.repo.RotateSession(ctx, claims.ID, NewSession(user.ID, jti, expiresAt)); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.Unauthorized("refresh token already used or revoked")
		}
		return nil, apperrors.Internal(err)
	}

	access, err := s.issuer.AccessToken(user.Username, now)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: newRefresh,
		TokenType:    "bearer",
		ExpiresIn:    s.issuer.AccessExpirySeconds(),
	}, nil
}

// Revoke invalidates the session behind a refresh token. Idempotent.
func (s *Service) Revoke(ctx context.Context, refreshToken string) error {
	claims, err := s.issuer.ParseRefresh(refreshToken)
	if err != nil {
		return apperrors.Unauthorized("invalid refresh token")
	}
	if err := s.repo.RevokeSessionByJTI(ctx, claims.ID); err != nil {
		return apperrors.Internal(err)
	}
	return nil
}

// LookupUser adapts the repository to the middleware's UserLookup contract.
func (s *Service) LookupUser(ctx context.Context, username string) (*sharedauth.CurrentUser, error) {
	user, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, nil
	}
	return &sharedauth.CurrentUser{
		ID:          user.ID,
		Username:    user.Username,
		Specialty:   user.Specialty,
		IsActive:    user.IsActive,
		IsSuperuser: user.IsSuperuser,
	}, nil
}

// ListUsers returns all accounts for the admin endpoint.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if users == nil {
		users = []User{}
	}
	return users, nil
}

func (s *Service) issuePair(ctx context.Context, user *User, now time.Time) (*TokenPair, error) {
	access, err := s.issuer.AccessToken(user.Username, now)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	refresh, jti, expiresAt, err := s.issuer.RefreshToken(user.Username, now)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if err := s.repo.CreateSession(ctx, NewSession(user.ID, jti, expiresAt)); err != nil {
		return nil, apperrors.Internal(err)
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresIn:    s.issuer.AccessExpirySeconds(),
	}, nil
}

// nextFailedAttempt applies the sliding-window rule: reset the counter when
// the row is absent or the window elapsed, otherwise increment; reaching
// maxAttempts sets blocked_until.
func nextFailedAttempt(prev *LoginAttempt, username, ip string, now time.Time, window time.Duration, maxAttempts int, block time.Duration) *LoginAttempt {
	next := &LoginAttempt{
		ID:            uuid.New(),
		Username:      username,
		IP:            ip,
		FailedCount:   1,
		FirstFailedAt: now,
	}
	if prev != nil && now.Sub(prev.FirstFailedAt) <= window {
		next.ID = prev.ID
		next.FailedCount = prev.FailedCount + 1
		next.FirstFailedAt = prev.FirstFailedAt
	}
	if next.FailedCount >= maxAttempts {
		until := now.Add(block)
		next.BlockedUntil = &until
	}
	return next
}
