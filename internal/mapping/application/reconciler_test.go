package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	mapping "axis-studio/internal/mapping/domain"
	"axis-studio/internal/mapping/infrastructure/memory"
)

// stubBackend is an in-memory mapping.Store with switchable failures,
// shared by the application-layer tests.
type stubBackend struct {
	mu      sync.Mutex
	listing []mapping.BackendRecord

	upserts []mapping.Snapshot
	removed []string

	listErr   error
	upsertErr error
	removeErr error
}

func (s *stubBackend) ListMappings(_ context.Context, _, _ string) ([]mapping.BackendRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]mapping.BackendRecord, len(s.listing))
	copy(out, s.listing)
	return out, nil
}

func (s *stubBackend) UpsertMapping(_ context.Context, _, _ string, snapshot mapping.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upsertErr != nil {
		return s.upsertErr
	}
	s.upserts = append(s.upserts, snapshot)
	return nil
}

func (s *stubBackend) RemoveMapping(_ context.Context, _, _, sourceKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.removeErr != nil {
		return s.removeErr
	}
	s.removed = append(s.removed, sourceKey)
	return nil
}

func (s *stubBackend) upsertCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.upserts)
}

func (s *stubBackend) removedKeys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.removed...)
}

func backendRecord(createdAt int64, source, output string, index int) mapping.BackendRecord {
	return mapping.BackendRecord{
		Record: mapping.Snapshot{
			SourceKey:     source,
			OutputControl: output,
			CurveType:     mapping.CurveLinear,
			DeadZoneOuter: 1,
			CreatedAtNano: createdAt,
		},
		BackendIndex: index,
	}
}

func TestReconcileAssignsUniqueIdentities(t *testing.T) {
	backend := &stubBackend{listing: []mapping.BackendRecord{
		backendRecord(1000, "axis_x", "steer", 0),
		backendRecord(1000, "axis_y", "throttle", 1),
		backendRecord(1000, "axis_z", "brake", 2),
	}}
	r, err := NewReconciler(backend, memory.NewOverrideStore(), nil)
	if err != nil {
		t.Fatalf("NewReconciler: %v", err)
	}

	records, err := r.Reconcile(context.Background(), "p1", "s1")
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	want := []int64{1000, 1001, 1002}
	for i, record := range records {
		if record.Identity() != want[i] {
			t.Fatalf("record %d: identity = %d, want %d", i, record.Identity(), want[i])
		}
	}
	if records[1].SourceKey != "axis_y" {
		t.Fatalf("listing order not preserved across remap: got %q", records[1].SourceKey)
	}
}

func TestReconcileUnsetIdentitiesSortLast(t *testing.T) {
	backend := &stubBackend{listing: []mapping.BackendRecord{
		backendRecord(0, "axis_a", "out_a", 0),
		backendRecord(500, "axis_b", "out_b", 1),
	}}
	r, _ := NewReconciler(backend, memory.NewOverrideStore(), nil)

	records, err := r.Reconcile(context.Background(), "p1", "s1")
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if records[0].SourceKey != "axis_b" || records[0].Identity() != 500 {
		t.Fatalf("timestamped record should come first, got %q key %d", records[0].SourceKey, records[0].Identity())
	}
	// Key 0 is reserved, so the unset record gets the first free slot.
	if records[1].Identity() != 1 {
		t.Fatalf("unset record identity = %d, want 1", records[1].Identity())
	}
}

func TestReconcileAppliesScopedOverride(t *testing.T) {
	backend := &stubBackend{listing: []mapping.BackendRecord{
		backendRecord(1000, "axis_x", "steer", 0),
	}}
	overrides := memory.NewOverrideStore()
	override := &mapping.Override{
		ProfileID:            "p1",
		SubProfileID:         "s1",
		Key:                  1000,
		SourceKey:            "axis_x_renamed",
		OutputControl:        "steer",
		CurveType:            mapping.CurveLinear,
		DeadZoneOuter:        1,
		OriginalKeyInBackend: "axis_x",
	}
	if err := overrides.Put(context.Background(), override); err != nil {
		t.Fatalf("Put: %v", err)
	}
	r, _ := NewReconciler(backend, overrides, nil)

	records, err := r.Reconcile(context.Background(), "p1", "s1")
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if records[0].SourceKey != "axis_x_renamed" {
		t.Fatalf("pending edit should win over backend state, got %q", records[0].SourceKey)
	}
	if !records[0].Modified {
		t.Fatal("override application should mark the record modified")
	}
}

func TestReconcileIgnoresForeignScopeOverride(t *testing.T) {
	backend := &stubBackend{listing: []mapping.BackendRecord{
		backendRecord(1000, "axis_x", "steer", 0),
	}}
	overrides := memory.NewOverrideStore()
	_ = overrides.Put(context.Background(), &mapping.Override{
		ProfileID:     "other",
		SubProfileID:  "s9",
		Key:           1000,
		SourceKey:     "hijacked",
		OutputControl: "steer",
		CurveType:     mapping.CurveLinear,
		DeadZoneOuter: 1,
	})
	r, _ := NewReconciler(backend, overrides, nil)

	records, err := r.Reconcile(context.Background(), "p1", "s1")
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if records[0].SourceKey != "axis_x" {
		t.Fatalf("foreign-scope override must not apply, got %q", records[0].SourceKey)
	}
}

func TestReconcileOverrideFollowsRemap(t *testing.T) {
	// Two records collide on timestamp 1000. The first keeps its key and
	// its own override; the second is remapped to 1001 and its override,
	// stored under the shared pre-remap key in a prior session, must be
	// rekeyed to follow it without stealing the first record's override.
	backend := &stubBackend{listing: []mapping.BackendRecord{
		backendRecord(1000, "axis_x", "steer", 0),
		backendRecord(1000, "axis_y", "throttle", 1),
	}}
	overrides := memory.NewOverrideStore()
	_ = overrides.Put(context.Background(), &mapping.Override{
		ProfileID: "p1", SubProfileID: "s1", Key: 1000,
		SourceKey: "axis_x_edit", OutputControl: "steer",
		CurveType: mapping.CurveLinear, DeadZoneOuter: 1,
	})
	r, _ := NewReconciler(backend, overrides, nil)

	records, err := r.Reconcile(context.Background(), "p1", "s1")
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if records[0].SourceKey != "axis_x_edit" {
		t.Fatalf("first record should carry its override, got %q", records[0].SourceKey)
	}
	if records[1].SourceKey != "axis_y" {
		t.Fatalf("remapped record must not steal the override, got %q", records[1].SourceKey)
	}
	if _, err := overrides.Get(context.Background(), 1000); err != nil {
		t.Fatalf("override should stay under its own key: %v", err)
	}
}

func TestReconcileClaimsOverrideByPostRemapKey(t *testing.T) {
	// The override belongs to the record that gets remapped. Remapping
	// is deterministic across sessions, so the override saved under the
	// remapped key is found by the post-remap lookup directly.
	backend := &stubBackend{listing: []mapping.BackendRecord{
		backendRecord(1000, "axis_x", "steer", 0),
		backendRecord(1000, "axis_y", "throttle", 1),
	}}
	overrides := memory.NewOverrideStore()
	_ = overrides.Put(context.Background(), &mapping.Override{
		ProfileID: "p1", SubProfileID: "s1", Key: 1001,
		SourceKey: "axis_y_edit", OutputControl: "throttle",
		CurveType: mapping.CurveLinear, DeadZoneOuter: 1,
	})
	r, _ := NewReconciler(backend, overrides, nil)

	records, err := r.Reconcile(context.Background(), "p1", "s1")
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if records[1].Identity() != 1001 {
		t.Fatalf("second record identity = %d, want 1001", records[1].Identity())
	}
	if records[1].SourceKey != "axis_y_edit" {
		t.Fatalf("override stored under the post-remap key should apply, got %q", records[1].SourceKey)
	}
}

func TestReconcileMaterializesOrphanOverride(t *testing.T) {
	backend := &stubBackend{listing: []mapping.BackendRecord{
		backendRecord(1000, "axis_x", "steer", 0),
	}}
	overrides := memory.NewOverrideStore()
	_ = overrides.Put(context.Background(), &mapping.Override{
		ProfileID: "p1", SubProfileID: "s1", Key: 2000,
		SourceKey: "axis_ghost", OutputControl: "clutch",
		CurveType: mapping.CurveLinear, DeadZoneOuter: 1,
		OriginalKeyInBackend: "axis_old",
	})
	r, _ := NewReconciler(backend, overrides, nil)

	records, err := r.Reconcile(context.Background(), "p1", "s1")
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected orphan record, got %d records", len(records))
	}
	orphan := records[1]
	if orphan.Identity() != 2000 || orphan.SourceKey != "axis_ghost" {
		t.Fatalf("orphan = key %d source %q", orphan.Identity(), orphan.SourceKey)
	}
	if orphan.OriginalSourceKey != "axis_old" {
		t.Fatalf("orphan should keep the backend-known key, got %q", orphan.OriginalSourceKey)
	}
}

func TestReconcileFlagsDuplicateSources(t *testing.T) {
	backend := &stubBackend{listing: []mapping.BackendRecord{
		backendRecord(1000, "axis_x", "steer", 0),
		backendRecord(2000, "axis_x", "throttle", 1),
		backendRecord(3000, "axis_y", "brake", 2),
	}}
	r, _ := NewReconciler(backend, memory.NewOverrideStore(), nil)

	records, err := r.Reconcile(context.Background(), "p1", "s1")
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if !records[0].HasWarning || !records[1].HasWarning {
		t.Fatal("duplicate source keys should be flagged")
	}
	if records[2].HasWarning {
		t.Fatal("unique source key should not be flagged")
	}
}

func TestReconcileIsIdempotent(t *testing.T) {
	backend := &stubBackend{listing: []mapping.BackendRecord{
		backendRecord(1000, "axis_x", "steer", 0),
		backendRecord(1000, "axis_y", "throttle", 1),
		backendRecord(0, "axis_z", "brake", 2),
	}}
	overrides := memory.NewOverrideStore()
	_ = overrides.Put(context.Background(), &mapping.Override{
		ProfileID: "p1", SubProfileID: "s1", Key: 1001,
		SourceKey: "axis_y_edit", OutputControl: "throttle",
		CurveType: mapping.CurveLinear, DeadZoneOuter: 1,
	})
	r, _ := NewReconciler(backend, overrides, nil)

	first, err := r.Reconcile(context.Background(), "p1", "s1")
	if err != nil {
		t.Fatalf("first Reconcile: %v", err)
	}
	second, err := r.Reconcile(context.Background(), "p1", "s1")
	if err != nil {
		t.Fatalf("second Reconcile: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("record counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Identity() != second[i].Identity() {
			t.Fatalf("record %d: identity drifted %d -> %d", i, first[i].Identity(), second[i].Identity())
		}
		if first[i].SourceKey != second[i].SourceKey {
			t.Fatalf("record %d: source drifted %q -> %q", i, first[i].SourceKey, second[i].SourceKey)
		}
	}
}

func TestReconcileBackendError(t *testing.T) {
	backend := &stubBackend{listErr: errors.New("connection refused")}
	r, _ := NewReconciler(backend, memory.NewOverrideStore(), nil)

	if _, err := r.Reconcile(context.Background(), "p1", "s1"); err == nil {
		t.Fatal("expected backend error to surface")
	}
}

func TestReconcileNormalizesCustomPoints(t *testing.T) {
	item := backendRecord(1000, "axis_x", "steer", 0)
	item.Record.CurveType = mapping.CurveCustom
	item.Record.Points = mapping.NewRecord(time.Unix(0, 1000)).Points
	backend := &stubBackend{listing: []mapping.BackendRecord{item}}
	r, _ := NewReconciler(backend, memory.NewOverrideStore(), nil)

	records, err := r.Reconcile(context.Background(), "p1", "s1")
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	points := records[0].Points
	if len(points) < 2 || points[0].X != 0 || points[len(points)-1].X != 1 {
		t.Fatalf("custom curve should be rehydrated with anchors, got %+v", points)
	}
}
