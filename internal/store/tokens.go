package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/erazemk/krma/internal/model"
)

// RevokedToken is an entry on the revocation list. It only matters until
// the token would have expired on its own.
type RevokedToken struct {
	JTI       string
	FarmID    int64
	Username  string
	ExpiresAt time.Time
}

// RevokeToken puts a token on the revocation list. Revoking the same token
// twice keeps the first entry.
func RevokeToken(ctx context.Context, db *sql.DB, t RevokedToken) error {
	if t.JTI == "" {
		return model.Invalidf("token id required")
	}
	if t.ExpiresAt.IsZero() {
		return model.Invalidf("token expiry required")
	}

	_, err := db.ExecContext(ctx,
		`INSERT INTO revoked_tokens (jti, farm_id, username, expires_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (jti) DO NOTHING`,
		t.JTI, t.FarmID, t.Username, t.ExpiresAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("revoking token: %w", err)
	}
	return nil
}

// IsTokenRevoked reports whether a token is on the revocation list at now.
// Entries past their expiry no longer count.
func IsTokenRevoked(ctx context.Context, db *sql.DB, jti string, now time.Time) (bool, error) {
	var revoked bool
	err := db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM revoked_tokens WHERE jti = ? AND expires_at >= ?)`,
		jti, now.Unix(),
	).Scan(&revoked)
	if err != nil {
		return false, fmt.Errorf("checking token revocation: %w", err)
	}
	return revoked, nil
}

// PurgeExpiredTokens drops revocation entries that expired before now and
// returns how many went.
func PurgeExpiredTokens(ctx context.Context, db *sql.DB, now time.Time) (int64, error) {
	res, err := db.ExecContext(ctx,
		`DELETE FROM revoked_tokens WHERE expires_at < ?`, now.Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("purging expired tokens: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
