package pgstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tyemirov/helpdesk/internal/mockapi"
)

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

// RefreshTokenStore persists rotating refresh tokens in PostgreSQL.
type RefreshTokenStore struct {
	pool  *pgxpool.Pool
	clock Clock
}

// NewRefreshTokenStore wraps pool. A nil clock selects the system clock.
func NewRefreshTokenStore(pool *pgxpool.Pool, clock Clock) *RefreshTokenStore {
	if clock == nil {
		clock = systemClock{}
	}
	return &RefreshTokenStore{pool: pool, clock: clock}
}

// Issue inserts a new token row and returns token id and opaque token.
func (store *RefreshTokenStore) Issue(ctx context.Context, userID int64, expiresUnix int64, previousTokenID string) (string, string, error) {
	opaque, hashValue, err := mockapi.GenerateRefreshOpaque()
	if err != nil {
		return "", "", fmt.Errorf("refresh_store.issue.pgx: %w", err)
	}
	tokenID := mockapi.NewRefreshTokenID()
	_, execErr := store.pool.Exec(ctx, `
INSERT INTO refresh_tokens (token_id, user_id, token_hash, expires_unix, revoked_at_unix, previous_token_id, issued_at_unix)
VALUES ($1, $2, $3, $4, 0, $5, $6)
`, tokenID, userID, hashValue, expiresUnix, previousTokenID, store.clock.Now().Unix())
	if execErr != nil {
		return "", "", fmt.Errorf("refresh_store.issue.pgx: %w", execErr)
	}
	return tokenID, opaque, nil
}

// Validate checks the opaque token and returns user, token id, and expiry.
func (store *RefreshTokenStore) Validate(ctx context.Context, tokenOpaque string) (int64, string, int64, error) {
	if strings.TrimSpace(tokenOpaque) == "" {
		return 0, "", 0, fmt.Errorf("refresh_store.validate.pgx: %w", mockapi.ErrRefreshTokenEmptyOpaque)
	}
	var (
		userID      int64
		tokenID     string
		expiresUnix int64
		revokedAt   int64
	)
	row := store.pool.QueryRow(ctx, `
SELECT user_id, token_id, expires_unix, revoked_at_unix
FROM refresh_tokens
WHERE token_hash = $1
`, mockapi.HashRefreshOpaque(tokenOpaque))
	if scanErr := row.Scan(&userID, &tokenID, &expiresUnix, &revokedAt); scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return 0, "", 0, fmt.Errorf("refresh_store.validate.pgx: %w", mockapi.ErrRefreshTokenNotFound)
		}
		return 0, "", 0, fmt.Errorf("refresh_store.validate.pgx: %w", scanErr)
	}
	if revokedAt != 0 {
		return 0, "", 0, fmt.Errorf("refresh_store.validate.pgx: %w", mockapi.ErrRefreshTokenRevoked)
	}
	if expiresUnix <= store.clock.Now().Unix() {
		return 0, "", 0, fmt.Errorf("refresh_store.validate.pgx: %w", mockapi.ErrRefreshTokenExpired)
	}
	return userID, tokenID, expiresUnix, nil
}

// Revoke marks a token as revoked.
func (store *RefreshTokenStore) Revoke(ctx context.Context, tokenID string) error {
	tag, err := store.pool.Exec(ctx, `
UPDATE refresh_tokens
SET revoked_at_unix = $1
WHERE token_id = $2 AND revoked_at_unix = 0
`, store.clock.Now().Unix(), tokenID)
	if err != nil {
		return fmt.Errorf("refresh_store.revoke.pgx: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	var exists bool
	if err := store.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM refresh_tokens WHERE token_id = $1)`, tokenID).Scan(&exists); err != nil {
		return fmt.Errorf("refresh_store.revoke.pgx: %w", err)
	}
	if !exists {
		return fmt.Errorf("refresh_store.revoke.pgx: %w", mockapi.ErrRefreshTokenNotFound)
	}
	return fmt.Errorf("refresh_store.revoke.pgx: %w", mockapi.ErrRefreshTokenAlreadyRevoked)
}

var _ mockapi.RefreshTokenStore = (*RefreshTokenStore)(nil)
