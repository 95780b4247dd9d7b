package mockapi

import "context"

// RefreshTokenStore manages long-lived rotating refresh tokens.
type RefreshTokenStore interface {
	Issue(ctx context.Context, userID int64, expiresUnix int64, previousTokenID string) (tokenID string, tokenOpaque string, err error)
	Validate(ctx context.Context, tokenOpaque string) (userID int64, tokenID string, expiresUnix int64, err error)
	Revoke(ctx context.Context, tokenID string) error
}
