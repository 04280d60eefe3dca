package application

import (
	"context"
	"errors"
	"log"
	"sort"
	"time"

	"axis-studio/internal/eventing"
	"axis-studio/internal/mapping/application/events"
	mapping "axis-studio/internal/mapping/domain"
	"axis-studio/internal/observability/metrics"
)

// Reconciler merges backend-reported mapping records with locally
// buffered pending overrides on load. Creation timestamps act as record
// identity but the backend may assign coarse-grained times, so collisions
// are resolved into a per-session unique identity space and overrides
// follow their records across the remap.
type Reconciler struct {
	backend   mapping.Store
	overrides mapping.OverrideStore
	logger    *log.Logger
	bus       eventing.EventBus
}

// NewReconciler constructs a reconciler.
func NewReconciler(backend mapping.Store, overrides mapping.OverrideStore, logger *log.Logger, opts ...ReconcilerOption) (*Reconciler, error) {
	if backend == nil {
		return nil, errors.New("reconciler: nil backend store")
	}
	if overrides == nil {
		return nil, errors.New("reconciler: nil override store")
	}
	r := &Reconciler{backend: backend, overrides: overrides, logger: logger}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// ReconcilerOption configures the reconciler.
type ReconcilerOption func(*Reconciler)

// WithReconcilerBus publishes remap events on the given bus.
func WithReconcilerBus(bus eventing.EventBus) ReconcilerOption {
	return func(r *Reconciler) { r.bus = bus }
}

// Reconcile loads the scope from the backend and produces the local
// record collection: identities deduplicated, pending edits applied over
// stale backend state, unclaimed in-scope overrides materialized as
// orphan records. Conflict flags are freshly computed on the result.
func (r *Reconciler) Reconcile(ctx context.Context, profileID, subProfileID string) ([]*mapping.Record, error) {
	reported, err := r.backend.ListMappings(ctx, profileID, subProfileID)
	if err != nil {
		return nil, err
	}

	// Unset identities sort last; ties between equal timestamps break on
	// the backend listing position so reruns stay deterministic.
	sort.SliceStable(reported, func(i, j int) bool {
		a, b := reported[i], reported[j]
		aUnset := a.Record.CreatedAtNano == 0
		bUnset := b.Record.CreatedAtNano == 0
		if aUnset != bUnset {
			return !aUnset
		}
		if a.Record.CreatedAtNano != b.Record.CreatedAtNano {
			return a.Record.CreatedAtNano < b.Record.CreatedAtNano
		}
		return a.BackendIndex < b.BackendIndex
	})

	// Key 0 is reserved for "unset"; records without a timestamp are
	// assigned the first free slots above it.
	used := map[int64]bool{0: true}
	claimed := map[int64]bool{}
	// Store keys already consumed this pass, so a remapped record's
	// pre-remap fallback cannot steal the override of the record that
	// kept the original key.
	overrideTaken := map[int64]bool{}
	records := make([]*mapping.Record, 0, len(reported))

	for _, item := range reported {
		origKey := item.Record.CreatedAtNano
		key := origKey
		for used[key] {
			key++
		}
		used[key] = true
		if key != origKey {
			r.logf("reconcile: identity %d already used, remapped to %d (profile=%s sub=%s)", origKey, key, profileID, subProfileID)
			metrics.IncReconcileRemap()
			r.publish(ctx, events.IdentityRemapped{
				ProfileID:    profileID,
				SubProfileID: subProfileID,
				OldKey:       origKey,
				NewKey:       key,
			})
		}

		record := recordFromSnapshot(item.Record, key)

		override, err := r.claimOverride(ctx, origKey, key, overrideTaken)
		if err != nil {
			r.logf("reconcile: override lookup for key %d failed: %v", key, err)
		}
		if override != nil && override.ProfileID == profileID && override.SubProfileID == subProfileID {
			// Pending edits win over stale backend state.
			override.ApplyTo(record)
			claimed[key] = true
		}
		records = append(records, record)
	}

	// An unclaimed in-scope override represents an edit whose target the
	// backend has not echoed back yet; it surfaces as an orphan record
	// rather than being dropped.
	scoped, err := r.overrides.ListScope(ctx, profileID, subProfileID)
	if err != nil {
		r.logf("reconcile: listing pending overrides failed: %v", err)
	}
	for _, override := range scoped {
		if claimed[override.Key] {
			continue
		}
		orphan := override.MaterializeRecord()
		used[override.Key] = true
		records = append(records, orphan)
		metrics.IncReconcileOrphan()
		r.logf("reconcile: materialized orphan record for pending override key=%d source=%q", override.Key, override.SourceKey)
	}

	mapping.MarkConflicts(records)
	metrics.SetPendingOverrides(len(scoped))
	metrics.SetConflictsActive(countWarnings(records))
	return records, nil
}

// claimOverride looks an override up by the post-remap key, falling back
// to the pre-remap key; an override found under the old key is rekeyed so
// it follows its record.
func (r *Reconciler) claimOverride(ctx context.Context, origKey, key int64, taken map[int64]bool) (*mapping.Override, error) {
	override, err := r.overrides.Get(ctx, key)
	if err == nil {
		taken[key] = true
		return override, nil
	}
	if !errors.Is(err, mapping.ErrOverrideNotFound) {
		return nil, err
	}
	if key == origKey || taken[origKey] {
		return nil, nil
	}
	override, err = r.overrides.Get(ctx, origKey)
	if errors.Is(err, mapping.ErrOverrideNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := r.overrides.Move(ctx, origKey, key); err != nil {
		return nil, err
	}
	override.Key = key
	taken[key] = true
	r.logf("reconcile: pending override followed record remap %d -> %d", origKey, key)
	return override, nil
}

func (r *Reconciler) logf(format string, args ...any) {
	if r.logger != nil {
		r.logger.Printf(format, args...)
	}
}

func (r *Reconciler) publish(ctx context.Context, event any) {
	if r.bus == nil {
		return
	}
	if err := r.bus.Publish(ctx, event); err != nil {
		r.logf("reconcile: publish event: %v", err)
	}
}

func recordFromSnapshot(snapshot mapping.Snapshot, key int64) *mapping.Record {
	record := mapping.NewRecord(time.Unix(0, key).UTC())
	record.SourceKey = snapshot.SourceKey
	record.OutputControl = snapshot.OutputControl
	record.CurveType = snapshot.CurveType
	if snapshot.CurveType == mapping.CurveCustom {
		record.Points = mapping.NormalizePoints(snapshot.Points, snapshot.Smooth)
	}
	record.Smooth = snapshot.Smooth
	record.DeadZoneInner = snapshot.DeadZoneInner
	record.DeadZoneOuter = snapshot.DeadZoneOuter
	record.OriginalSourceKey = snapshot.SourceKey
	return record
}

func countWarnings(records []*mapping.Record) int {
	count := 0
	for _, record := range records {
		if record.HasWarning {
			count++
		}
	}
	return count
}
