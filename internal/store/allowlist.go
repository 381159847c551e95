package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/hackdash/apiserver/types"
)

// AllowlistRepository handles persistence for allow-list entries.
// One logical entry per email, last write wins on status changes.
type AllowlistRepository struct {
	db *sql.DB
}

func NewAllowlistRepository(db *sql.DB) *AllowlistRepository {
	return &AllowlistRepository{db: db}
}

func (r *AllowlistRepository) GetByEmail(ctx context.Context, email string) (types.AllowlistEntry, error) {
	const query = `
		SELECT email, status, added_by, added_at, updated_at
		FROM allowlist
		WHERE email = $1`
	var entry types.AllowlistEntry
	err := r.db.QueryRowContext(ctx, query, email).Scan(
		&entry.Email,
		&entry.Status,
		&entry.AddedBy,
		&entry.AddedAt,
		&entry.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.AllowlistEntry{}, ErrNotFound
		}
		return types.AllowlistEntry{}, err
	}
	return entry, nil
}

func (r *AllowlistRepository) List(ctx context.Context) ([]types.AllowlistEntry, error) {
	const query = `
		SELECT email, status, added_by, added_at, updated_at
		FROM allowlist
		ORDER BY email`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []types.AllowlistEntry
	for rows.Next() {
		var entry types.AllowlistEntry
		if err := rows.Scan(
			&entry.Email,
			&entry.Status,
			&entry.AddedBy,
			&entry.AddedAt,
			&entry.UpdatedAt,
		); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// SetStatus upserts the entry for the email. Setting a status the entry
// already has is a no-op success; the original added_by and added_at are
// preserved on update.
func (r *AllowlistRepository) SetStatus(ctx context.Context, email string, status types.AllowlistStatus, addedBy string) (types.AllowlistEntry, error) {
	now := time.Now()

	const query = `
		INSERT INTO allowlist (email, status, added_by, added_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (email) DO UPDATE
		SET status = EXCLUDED.status, updated_at = EXCLUDED.updated_at
		RETURNING email, status, added_by, added_at, updated_at`
	var entry types.AllowlistEntry
	err := r.db.QueryRowContext(ctx, query, email, status, addedBy, now).Scan(
		&entry.Email,
		&entry.Status,
		&entry.AddedBy,
		&entry.AddedAt,
		&entry.UpdatedAt,
	)
	if err != nil {
		return types.AllowlistEntry{}, err
	}
	return entry, nil
}
