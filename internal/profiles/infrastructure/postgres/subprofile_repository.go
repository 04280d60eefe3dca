package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	profiles "axis-studio/internal/profiles/domain"
)

const defaultSubProfilesTable = "sub_profiles"

// SubProfileRepository is a Postgres implementation for sub-profiles.
type SubProfileRepository struct {
	db    *sql.DB
	table string
}

// NewSubProfileRepository constructs a repository.
func NewSubProfileRepository(db *sql.DB, opts ...SubProfileOption) *SubProfileRepository {
	repo := &SubProfileRepository{db: db, table: defaultSubProfilesTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// SubProfileOption configures the repository.
type SubProfileOption func(*SubProfileRepository)

// WithSubProfilesTable overrides the default table name.
func WithSubProfilesTable(table string) SubProfileOption {
	return func(repo *SubProfileRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// Get loads a sub-profile by id.
func (r *SubProfileRepository) Get(ctx context.Context, id string) (*profiles.SubProfile, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("sub-profile repo: nil db")
	}
	if id == "" {
		return nil, errors.New("sub-profile repo: empty id")
	}

	query := fmt.Sprintf(`
SELECT id, profile_id, name, position, created_at, updated_at
FROM %s
WHERE id = $1
LIMIT 1`, r.table)

	var sub profiles.SubProfile
	if err := r.db.QueryRowContext(ctx, query, id).Scan(
		&sub.ID,
		&sub.ProfileID,
		&sub.Name,
		&sub.Position,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	sub.CreatedAt = sub.CreatedAt.UTC()
	sub.UpdatedAt = sub.UpdatedAt.UTC()
	return &sub, nil
}

// ListByProfile loads a profile's sub-profiles in position order.
func (r *SubProfileRepository) ListByProfile(ctx context.Context, profileID string) ([]profiles.SubProfile, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("sub-profile repo: nil db")
	}
	if profileID == "" {
		return nil, errors.New("sub-profile repo: empty profile id")
	}

	query := fmt.Sprintf(`
SELECT id, profile_id, name, position, created_at, updated_at
FROM %s
WHERE profile_id = $1
ORDER BY position ASC, name ASC`, r.table)

	rows, err := r.db.QueryContext(ctx, query, profileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []profiles.SubProfile
	for rows.Next() {
		var sub profiles.SubProfile
		if err := rows.Scan(
			&sub.ID,
			&sub.ProfileID,
			&sub.Name,
			&sub.Position,
			&sub.CreatedAt,
			&sub.UpdatedAt,
		); err != nil {
			return nil, err
		}
		sub.CreatedAt = sub.CreatedAt.UTC()
		sub.UpdatedAt = sub.UpdatedAt.UTC()
		out = append(out, sub)
	}
	return out, rows.Err()
}

// Save upserts a sub-profile.
func (r *SubProfileRepository) Save(ctx context.Context, sub *profiles.SubProfile) error {
	if r == nil || r.db == nil {
		return errors.New("sub-profile repo: nil db")
	}
	if sub == nil {
		return errors.New("sub-profile repo: nil sub-profile")
	}
	if err := sub.Validate(); err != nil {
		return err
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	profile_id,
	name,
	position
) VALUES (
	$1, $2, $3, $4
)
ON CONFLICT (id)
DO UPDATE SET
	name = EXCLUDED.name,
	position = EXCLUDED.position,
	updated_at = NOW()`, r.table)

	_, err := r.db.ExecContext(ctx, query, sub.ID, sub.ProfileID, sub.Name, sub.Position)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = now
	}
	sub.UpdatedAt = now
	return nil
}

// Delete removes a sub-profile.
func (r *SubProfileRepository) Delete(ctx context.Context, id string) error {
	if r == nil || r.db == nil {
		return errors.New("sub-profile repo: nil db")
	}
	if id == "" {
		return errors.New("sub-profile repo: empty id")
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.table)
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

// DeleteByProfile removes every sub-profile of a profile.
func (r *SubProfileRepository) DeleteByProfile(ctx context.Context, profileID string) error {
	if r == nil || r.db == nil {
		return errors.New("sub-profile repo: nil db")
	}
	if profileID == "" {
		return errors.New("sub-profile repo: empty profile id")
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE profile_id = $1`, r.table)
	_, err := r.db.ExecContext(ctx, query, profileID)
	return err
}
