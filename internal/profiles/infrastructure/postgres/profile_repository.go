package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	profiles "axis-studio/internal/profiles/domain"
)

const defaultProfilesTable = "profiles"

// ProfileRepository is a Postgres implementation for profiles.
type ProfileRepository struct {
	db    *sql.DB
	table string
}

// NewProfileRepository constructs a repository.
func NewProfileRepository(db *sql.DB, opts ...ProfileOption) *ProfileRepository {
	repo := &ProfileRepository{db: db, table: defaultProfilesTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// ProfileOption configures the repository.
type ProfileOption func(*ProfileRepository)

// WithProfilesTable overrides the default table name.
func WithProfilesTable(table string) ProfileOption {
	return func(repo *ProfileRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// Get loads a profile by id.
func (r *ProfileRepository) Get(ctx context.Context, id string) (*profiles.Profile, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("profile repo: nil db")
	}
	if id == "" {
		return nil, errors.New("profile repo: empty id")
	}

	query := fmt.Sprintf(`
SELECT id, name, device_name, created_at, updated_at
FROM %s
WHERE id = $1
LIMIT 1`, r.table)

	var profile profiles.Profile
	if err := r.db.QueryRowContext(ctx, query, id).Scan(
		&profile.ID,
		&profile.Name,
		&profile.DeviceName,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	profile.CreatedAt = profile.CreatedAt.UTC()
	profile.UpdatedAt = profile.UpdatedAt.UTC()
	return &profile, nil
}

// List loads all profiles ordered by name.
func (r *ProfileRepository) List(ctx context.Context) ([]profiles.Profile, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("profile repo: nil db")
	}

	query := fmt.Sprintf(`
SELECT id, name, device_name, created_at, updated_at
FROM %s
ORDER BY name ASC`, r.table)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []profiles.Profile
	for rows.Next() {
		var profile profiles.Profile
		if err := rows.Scan(
			&profile.ID,
			&profile.Name,
			&profile.DeviceName,
			&profile.CreatedAt,
			&profile.UpdatedAt,
		); err != nil {
			return nil, err
		}
		profile.CreatedAt = profile.CreatedAt.UTC()
		profile.UpdatedAt = profile.UpdatedAt.UTC()
		out = append(out, profile)
	}
	return out, rows.Err()
}

// Save upserts a profile.
func (r *ProfileRepository) Save(ctx context.Context, profile *profiles.Profile) error {
	if r == nil || r.db == nil {
		return errors.New("profile repo: nil db")
	}
	if profile == nil {
		return errors.New("profile repo: nil profile")
	}
	if err := profile.Validate(); err != nil {
		return err
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	name,
	device_name
) VALUES (
	$1, $2, $3
)
ON CONFLICT (id)
DO UPDATE SET
	name = EXCLUDED.name,
	device_name = EXCLUDED.device_name,
	updated_at = NOW()`, r.table)

	_, err := r.db.ExecContext(ctx, query, profile.ID, profile.Name, profile.DeviceName)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = now
	}
	profile.UpdatedAt = now
	return nil
}

// Delete removes a profile.
func (r *ProfileRepository) Delete(ctx context.Context, id string) error {
	if r == nil || r.db == nil {
		return errors.New("profile repo: nil db")
	}
	if id == "" {
		return errors.New("profile repo: empty id")
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.table)
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}
