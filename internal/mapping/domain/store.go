package mapping

import (
	"context"

	curve "axis-studio/internal/curve/domain"
)

// BackendRecord is one mapping as reported by the backend store, with its
// position in the backend listing. The listing order breaks ties between
// colliding creation timestamps during reconciliation.
type BackendRecord struct {
	Record       Snapshot
	BackendIndex int
}

// Snapshot is the logical record shape exchanged with the backend store.
type Snapshot struct {
	SourceKey     string        `json:"source_key"`
	OutputControl string        `json:"output_control"`
	CurveType     CurveType     `json:"curve_type"`
	Points        []curve.Point `json:"points,omitempty"`
	Smooth        bool          `json:"smooth"`
	DeadZoneInner float64       `json:"dead_zone_inner"`
	DeadZoneOuter float64       `json:"dead_zone_outer"`
	CreatedAtNano int64         `json:"created_at"`
}

// SnapshotOf captures a record's persisted shape.
func SnapshotOf(r *Record) Snapshot {
	return Snapshot{
		SourceKey:     r.SourceKey,
		OutputControl: r.OutputControl,
		CurveType:     r.CurveType,
		Points:        append([]curve.Point(nil), r.Points...),
		Smooth:        r.Smooth,
		DeadZoneInner: r.DeadZoneInner,
		DeadZoneOuter: r.DeadZoneOuter,
		CreatedAtNano: r.Identity(),
	}
}

// Store is the authoritative backend mapping store. All calls are
// fallible; failures are surfaced as transient errors and the local model
// stays the source of truth.
type Store interface {
	ListMappings(ctx context.Context, profileID, subProfileID string) ([]BackendRecord, error)
	UpsertMapping(ctx context.Context, profileID, subProfileID string, snapshot Snapshot) error
	RemoveMapping(ctx context.Context, profileID, subProfileID, sourceKey string) error
}
