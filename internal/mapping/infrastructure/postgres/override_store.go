package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	curve "axis-studio/internal/curve/domain"
	mapping "axis-studio/internal/mapping/domain"
)

const defaultOverridesTable = "pending_overrides"

// OverrideStore is a Postgres implementation of the pending override
// buffer, so buffered edits survive editor restarts.
type OverrideStore struct {
	db    *sql.DB
	table string
}

// NewOverrideStore constructs a store.
func NewOverrideStore(db *sql.DB, opts ...OverrideOption) *OverrideStore {
	store := &OverrideStore{db: db, table: defaultOverridesTable}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// OverrideOption configures the store.
type OverrideOption func(*OverrideStore)

// WithOverridesTable overrides the table name.
func WithOverridesTable(table string) OverrideOption {
	return func(store *OverrideStore) {
		if table != "" {
			store.table = table
		}
	}
}

// Get loads an override by key.
func (s *OverrideStore) Get(ctx context.Context, key int64) (*mapping.Override, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("override store: nil db")
	}
	query := fmt.Sprintf(`
SELECT profile_id, sub_profile_id, key, source_key, output_control, curve_type,
	points, smooth, dead_zone_inner, dead_zone_outer, original_backend_key, updated_at
FROM %s
WHERE key = $1`, s.table)

	row := s.db.QueryRowContext(ctx, query, key)
	override, err := scanOverride(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, mapping.ErrOverrideNotFound
	}
	return override, err
}

// Put upserts an override.
func (s *OverrideStore) Put(ctx context.Context, override *mapping.Override) error {
	if s == nil || s.db == nil {
		return errors.New("override store: nil db")
	}
	if override == nil {
		return errors.New("override store: nil override")
	}
	points, err := json.Marshal(override.Points)
	if err != nil {
		return err
	}
	updatedAt := override.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	profile_id, sub_profile_id, key, source_key, output_control, curve_type,
	points, smooth, dead_zone_inner, dead_zone_outer, original_backend_key, updated_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
)
ON CONFLICT (key)
DO UPDATE SET
	profile_id = EXCLUDED.profile_id,
	sub_profile_id = EXCLUDED.sub_profile_id,
	source_key = EXCLUDED.source_key,
	output_control = EXCLUDED.output_control,
	curve_type = EXCLUDED.curve_type,
	points = EXCLUDED.points,
	smooth = EXCLUDED.smooth,
	dead_zone_inner = EXCLUDED.dead_zone_inner,
	dead_zone_outer = EXCLUDED.dead_zone_outer,
	original_backend_key = EXCLUDED.original_backend_key,
	updated_at = EXCLUDED.updated_at`, s.table)

	_, err = s.db.ExecContext(ctx, query,
		override.ProfileID,
		override.SubProfileID,
		override.Key,
		override.SourceKey,
		override.OutputControl,
		string(override.CurveType),
		points,
		override.Smooth,
		override.DeadZoneInner,
		override.DeadZoneOuter,
		override.OriginalKeyInBackend,
		updatedAt,
	)
	return err
}

// Delete removes an override by key.
func (s *OverrideStore) Delete(ctx context.Context, key int64) error {
	if s == nil || s.db == nil {
		return errors.New("override store: nil db")
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE key = $1`, s.table)
	_, err := s.db.ExecContext(ctx, query, key)
	return err
}

// Move rekeys an override so it follows its record across a remap.
func (s *OverrideStore) Move(ctx context.Context, oldKey, newKey int64) error {
	if s == nil || s.db == nil {
		return errors.New("override store: nil db")
	}
	query := fmt.Sprintf(`UPDATE %s SET key = $2 WHERE key = $1`, s.table)
	result, err := s.db.ExecContext(ctx, query, oldKey, newKey)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return mapping.ErrOverrideNotFound
	}
	return nil
}

// ListScope returns overrides for a profile/sub-profile, ordered by key.
func (s *OverrideStore) ListScope(ctx context.Context, profileID, subProfileID string) ([]*mapping.Override, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("override store: nil db")
	}
	query := fmt.Sprintf(`
SELECT profile_id, sub_profile_id, key, source_key, output_control, curve_type,
	points, smooth, dead_zone_inner, dead_zone_outer, original_backend_key, updated_at
FROM %s
WHERE profile_id = $1 AND sub_profile_id = $2
ORDER BY key ASC`, s.table)

	rows, err := s.db.QueryContext(ctx, query, profileID, subProfileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*mapping.Override
	for rows.Next() {
		override, err := scanOverride(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, override)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// PurgeScope removes all overrides in a profile or sub-profile scope.
func (s *OverrideStore) PurgeScope(ctx context.Context, profileID, subProfileID string) error {
	if s == nil || s.db == nil {
		return errors.New("override store: nil db")
	}
	if subProfileID == "" {
		query := fmt.Sprintf(`DELETE FROM %s WHERE profile_id = $1`, s.table)
		_, err := s.db.ExecContext(ctx, query, profileID)
		return err
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE profile_id = $1 AND sub_profile_id = $2`, s.table)
	_, err := s.db.ExecContext(ctx, query, profileID, subProfileID)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOverride(row rowScanner) (*mapping.Override, error) {
	var override mapping.Override
	var curveType string
	var points []byte
	if err := row.Scan(
		&override.ProfileID,
		&override.SubProfileID,
		&override.Key,
		&override.SourceKey,
		&override.OutputControl,
		&curveType,
		&points,
		&override.Smooth,
		&override.DeadZoneInner,
		&override.DeadZoneOuter,
		&override.OriginalKeyInBackend,
		&override.UpdatedAt,
	); err != nil {
		return nil, err
	}
	override.CurveType = mapping.CurveType(curveType)
	if len(points) > 0 {
		var decoded []curve.Point
		if err := json.Unmarshal(points, &decoded); err != nil {
			return nil, err
		}
		override.Points = decoded
	}
	override.UpdatedAt = override.UpdatedAt.UTC()
	return &override, nil
}
