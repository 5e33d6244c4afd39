package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/neomorfeo/onboardiq/internal/domain"
)

// Compile-time check: ClaimStore implements domain.ClaimStore.
var _ domain.ClaimStore = (*ClaimStore)(nil)

// ClaimStore implements domain.ClaimStore using SQLite. Claims are the
// permanent counterpart of reservations: once a session finalizes, its
// subdomain and email become claimed for good.
type ClaimStore struct {
	db *sql.DB
}

// NewClaimStore wraps a database connection that has already been migrated.
func NewClaimStore(db *sql.DB) *ClaimStore {
	return &ClaimStore{db: db}
}

// Claim records (kind, value) as permanently taken by the tenant. Claiming a
// pair the same tenant already holds is a no-op, so finalize retries are safe.
func (s *ClaimStore) Claim(ctx context.Context, kind domain.ReservationKind, value, tenantID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO claims (kind, value, tenant_id, claimed_at) VALUES (?, ?, ?, ?)`,
		string(kind), value, tenantID, time.Now().UTC().Format(timeFormat),
	)
	if err != nil {
		if isUniqueViolation(err) {
			var holder string
			row := s.db.QueryRowContext(ctx,
				`SELECT tenant_id FROM claims WHERE kind = ? AND value = ?`,
				string(kind), value,
			)
			if scanErr := row.Scan(&holder); scanErr == nil && holder == tenantID {
				return nil
			}
			return &domain.ConflictError{Kind: kind, Value: value}
		}
		return fmt.Errorf("inserting claim: %w", err)
	}
	return nil
}

// Claimed reports whether (kind, value) is permanently taken.
func (s *ClaimStore) Claimed(ctx context.Context, kind domain.ReservationKind, value string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM claims WHERE kind = ? AND value = ?`,
		string(kind), value,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking claim: %w", err)
	}
	return n > 0, nil
}

// isUniqueViolation checks if a SQLite error is a UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
