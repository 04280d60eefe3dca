package mapping

import (
	"context"
	"time"

	curve "axis-studio/internal/curve/domain"
)

// Override buffers an edit that cannot be committed to the backend yet,
// either because the record is conflicted or because the edit must
// survive a record reload. Keyed by the owning record's creation
// identity; purged when flushed or when the owning profile scope is
// deleted, never dropped silently while its conflict persists.
type Override struct {
	ProfileID    string
	SubProfileID string
	Key          int64 // record identity (CreatedAt UnixNano)

	SourceKey     string
	OutputControl string
	CurveType     CurveType
	Points        []curve.Point
	Smooth        bool
	DeadZoneInner float64
	DeadZoneOuter float64

	// OriginalKeyInBackend is the source key the backend knew before
	// the conflicting edit, so a later flush knows what to remove.
	OriginalKeyInBackend string

	UpdatedAt time.Time
}

// FromRecord captures a record's current field state as an override.
func (o *Override) FromRecord(r *Record) {
	o.Key = r.Identity()
	o.SourceKey = r.SourceKey
	o.OutputControl = r.OutputControl
	o.CurveType = r.CurveType
	o.Points = append([]curve.Point(nil), r.Points...)
	o.Smooth = r.Smooth
	o.DeadZoneInner = r.DeadZoneInner
	o.DeadZoneOuter = r.DeadZoneOuter
}

// ApplyTo overwrites a freshly loaded record's fields with the buffered
// edit; pending edits win over stale backend state.
func (o *Override) ApplyTo(r *Record) {
	r.SourceKey = o.SourceKey
	r.OutputControl = o.OutputControl
	r.CurveType = o.CurveType
	r.Points = append([]curve.Point(nil), o.Points...)
	r.Smooth = o.Smooth
	r.DeadZoneInner = o.DeadZoneInner
	r.DeadZoneOuter = o.DeadZoneOuter
	r.Modified = true
}

// MaterializeRecord builds an orphan record from an override whose target
// the backend has not echoed back yet.
func (o *Override) MaterializeRecord() *Record {
	r := NewRecord(time.Unix(0, o.Key).UTC())
	o.ApplyTo(r)
	r.OriginalSourceKey = o.OriginalKeyInBackend
	return r
}

// OverrideStore is the keyed buffer of pending overrides. Implementations
// must be safe for use by the reconciler and the sync coordinator, whose
// claim/flush sequences are serialized by their own locks.
type OverrideStore interface {
	Get(ctx context.Context, key int64) (*Override, error)
	Put(ctx context.Context, override *Override) error
	Delete(ctx context.Context, key int64) error
	// Move rekeys an override so it follows its record across an
	// identity remap.
	Move(ctx context.Context, oldKey, newKey int64) error
	ListScope(ctx context.Context, profileID, subProfileID string) ([]*Override, error)
	// PurgeScope cascades profile or sub-profile deletion. Empty
	// subProfileID purges the whole profile.
	PurgeScope(ctx context.Context, profileID, subProfileID string) error
}
