package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrDuplicateUsername is returned when the unique username index rejects
// an insert.
var ErrDuplicateUsername = errors.New("auth: username already taken")

// Repository persists users, refresh sessions and throttle rows.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an auth repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `id, username, password_hash, specialty, is_active, is_superuser, created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Specialty, &u.IsActive, &u.IsSuperuser, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser inserts a new account. A duplicate username maps to
// ErrDuplicateUsername.
func (r *Repository) CreateUser(ctx context.Context, u *User) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO users (id, username, password_hash, specialty, is_active, is_superuser, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		u.ID, u.Username, u.PasswordHash, u.Specialty, u.IsActive, u.IsSuperuser, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateUsername
		}
		return fmt.Errorf("auth: create user: %w", err)
	}
	return nil
}

// GetUserByUsername returns the user or nil when absent.
func (r *Repository) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1`, username))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("auth: get user: %w", err)
	}
	return u, nil
}

// ListUsers returns every account, newest first.
func (r *Repository) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("auth: list users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("auth: scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// CountUsers returns the total number of accounts.
func (r *Repository) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("auth: count users: %w", err)
	}
	return n, nil
}

// CreateSession persists a refresh-token binding.
func (r *Repository) CreateSession(ctx context.Context, s *Session) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO auth_sessions (id, user_id, jti, expires_at, is_revoked, created_at)
		 VALUES ($1, $2, $3, $4, FALSE, $5)`,
		s.ID, s.UserID, s.JTI, s.ExpiresAt, s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("auth: create session: %w", err)
	}
	return nil
}

// RevokeSessionByJTI marks a session revoked. Idempotent: revoking an
// already revoked or unknown jti is not an error.
func (r *Repository) RevokeSessionByJTI(ctx context.Context, jti string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE auth_sessions SET is_revoked = TRUE, revoked_at = NOW()
		 WHERE jti = $1 AND is_revoked = FALSE`, jti)
	if err != nil {
		return fmt.Errorf("auth: revoke session: %w", err)
	}
	return nil
}

// RotateSession atomically revokes the presented session and inserts the
// replacement. It fails when the old session is missing, revoked or
// expired; the unique jti index makes double rotation impossible.
func (r *Repository) RotateSession(ctx context.Context, oldJTI string, next *Session) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("auth: begin rotation: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE auth_sessions SET is_revoked = TRUE, revoked_at = NOW()
		 WHERE jti = $1 AND is_revoked = FALSE AND expires_at > NOW()`, oldJTI)
	if err != nil {
		return fmt.Errorf("auth: revoke old session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO auth_sessions (id, user_id, jti, expires_at, is_revoked, created_at)
		 VALUES ($1, $2, $3, $4, FALSE, $5)`,
		next.ID, next.UserID, next.JTI, next.ExpiresAt, next.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("auth: insert rotated session: %w", err)
	}

	return tx.Commit(ctx)
}

// GetLoginAttempt returns the throttle row for (username, ip), or nil.
func (r *Repository) GetLoginAttempt(ctx context.Context, username, ip string) (*LoginAttempt, error) {
	var a LoginAttempt
	err := r.pool.QueryRow(ctx,
		`SELECT id, username, ip, failed_count, first_failed_at, blocked_until
		 FROM login_attempts WHERE username = $1 AND ip = $2`, username, ip,
	).Scan(&a.ID, &a.Username, &a.IP, &a.FailedCount, &a.FirstFailedAt, &a.BlockedUntil)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("auth: get login attempt: %w", err)
	}
	return &a, nil
}

// UpsertLoginAttempt writes the throttle row for (username, ip).
func (r *Repository) UpsertLoginAttempt(ctx context.Context, a *LoginAttempt) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO login_attempts (id, username, ip, failed_count, first_failed_at, blocked_until)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (username, ip) DO UPDATE
		 SET failed_count = EXCLUDED.failed_count,
		     first_failed_at = EXCLUDED.first_failed_at,
		     blocked_until = EXCLUDED.blocked_until`,
		a.ID, a.Username, a.IP, a.FailedCount, a.FirstFailedAt, a.BlockedUntil,
	)
	if err != nil {
		return fmt.Errorf("auth: upsert login attempt: %w", err)
	}
	return nil
}

// ClearLoginAttempt deletes the throttle row for (username, ip).
func (r *Repository) ClearLoginAttempt(ctx context.Context, username, ip string) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM login_attempts WHERE username = $1 AND ip = $2`, username, ip)
	if err != nil {
		return fmt.Errorf("auth: clear login attempt: %w", err)
	}
	return nil
}

// NewSession builds a session row for a freshly issued refresh token.
func NewSession(userID uuid.UUID, jti string, expiresAt time.Time) *Session {
	return &Session{
		ID:        uuid.New(),
		UserID:    userID,
		JTI:       jti,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now().UTC(),
	}
}
