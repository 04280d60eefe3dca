package application

import (
	"context"
	"errors"
	"testing"
	"time"

	mapping "axis-studio/internal/mapping/domain"
	"axis-studio/internal/mapping/infrastructure/memory"
)

func testRecord(key int64, source, output string) *mapping.Record {
	record := mapping.NewRecord(time.Unix(0, key).UTC())
	record.SourceKey = source
	record.OutputControl = output
	record.OriginalSourceKey = source
	record.Modified = true
	return record
}

func newTestCoordinator(t *testing.T, backend *stubBackend) (*SyncCoordinator, *memory.OverrideStore) {
	t.Helper()
	overrides := memory.NewOverrideStore()
	c, err := NewSyncCoordinator(backend, overrides, nil, WithDebounceWindow(time.Hour))
	if err != nil {
		t.Fatalf("NewSyncCoordinator: %v", err)
	}
	c.SetScope("p1", "s1")
	t.Cleanup(c.Stop)
	return c, overrides
}

func TestFlushPushesValidRecords(t *testing.T) {
	backend := &stubBackend{}
	c, _ := newTestCoordinator(t, backend)

	record := testRecord(1000, "axis_x", "steer")
	c.RequestSync(record)

	stats, err := c.Flush(context.Background())
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if stats.Pushed != 1 {
		t.Fatalf("stats.Pushed = %d, want 1", stats.Pushed)
	}
	if backend.upsertCount() != 1 {
		t.Fatalf("backend upserts = %d, want 1", backend.upsertCount())
	}
	if record.Modified {
		t.Fatal("pushed record should be marked clean")
	}
	if c.Pending() != 0 {
		t.Fatalf("pending = %d after flush, want 0", c.Pending())
	}
}

func TestFlushSkipsIncompleteRecords(t *testing.T) {
	backend := &stubBackend{}
	c, _ := newTestCoordinator(t, backend)

	record := testRecord(1000, "axis_x", "")
	c.RequestSync(record)

	stats, err := c.Flush(context.Background())
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if stats.Skipped != 1 || backend.upsertCount() != 0 {
		t.Fatalf("incomplete record must stay local: stats=%+v upserts=%d", stats, backend.upsertCount())
	}
}

func TestFlushBuffersConflictedRecords(t *testing.T) {
	backend := &stubBackend{}
	c, overrides := newTestCoordinator(t, backend)

	a := testRecord(1000, "axis_x", "steer")
	b := testRecord(2000, "axis_x", "throttle")
	mapping.MarkConflicts([]*mapping.Record{a, b})
	c.RequestSync(a)
	c.RequestSync(b)

	stats, err := c.Flush(context.Background())
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if stats.Buffered != 2 || stats.Pushed != 0 {
		t.Fatalf("conflicted records must never reach the backend: %+v", stats)
	}
	if backend.upsertCount() != 0 {
		t.Fatalf("backend upserts = %d, want 0", backend.upsertCount())
	}
	for _, key := range []int64{1000, 2000} {
		override, err := overrides.Get(context.Background(), key)
		if err != nil {
			t.Fatalf("override for key %d missing: %v", key, err)
		}
		if override.SourceKey != "axis_x" {
			t.Fatalf("override source = %q", override.SourceKey)
		}
	}
}

func TestFlushRemovesRenamedBackendKey(t *testing.T) {
	backend := &stubBackend{}
	c, _ := newTestCoordinator(t, backend)

	record := testRecord(1000, "axis_x", "steer")
	record.SourceKey = "axis_y"
	c.RequestSync(record)

	if _, err := c.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	removed := backend.removedKeys()
	if len(removed) != 1 || removed[0] != "axis_x" {
		t.Fatalf("expected removal of old key axis_x, got %v", removed)
	}
	if record.OriginalSourceKey != "axis_y" {
		t.Fatalf("backend-known key not advanced, got %q", record.OriginalSourceKey)
	}
}

func TestFlushKeepsOldKeyWhenClaimed(t *testing.T) {
	backend := &stubBackend{}
	c, _ := newTestCoordinator(t, backend)
	c.BindKeyClaimed(func(sourceKey string, except int64) bool {
		return sourceKey == "axis_x"
	})

	record := testRecord(1000, "axis_x", "steer")
	record.SourceKey = "axis_y"
	c.RequestSync(record)

	if _, err := c.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if len(backend.removedKeys()) != 0 {
		t.Fatalf("claimed key must not be removed, got %v", backend.removedKeys())
	}
	if backend.upsertCount() != 1 {
		t.Fatalf("rename should still upsert, got %d", backend.upsertCount())
	}
}

func TestFlushClearsOverrideOnSuccess(t *testing.T) {
	backend := &stubBackend{}
	c, overrides := newTestCoordinator(t, backend)

	record := testRecord(1000, "axis_x", "steer")
	override := &mapping.Override{ProfileID: "p1", SubProfileID: "s1"}
	override.FromRecord(record)
	if err := overrides.Put(context.Background(), override); err != nil {
		t.Fatalf("Put: %v", err)
	}

	c.RequestSync(record)
	if _, err := c.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if _, err := overrides.Get(context.Background(), 1000); !errors.Is(err, mapping.ErrOverrideNotFound) {
		t.Fatalf("override should be cleared after a successful push, got %v", err)
	}
}

func TestFlushRetriesFailedPushes(t *testing.T) {
	backend := &stubBackend{upsertErr: errors.New("backend down")}
	c, _ := newTestCoordinator(t, backend)

	record := testRecord(1000, "axis_x", "steer")
	c.RequestSync(record)

	stats, err := c.Flush(context.Background())
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if stats.Failed != 1 {
		t.Fatalf("stats.Failed = %d, want 1", stats.Failed)
	}
	if c.Pending() != 1 {
		t.Fatalf("failed record should stay dirty, pending = %d", c.Pending())
	}

	backend.mu.Lock()
	backend.upsertErr = nil
	backend.mu.Unlock()

	stats, err = c.Flush(context.Background())
	if err != nil {
		t.Fatalf("second Flush: %v", err)
	}
	if stats.Pushed != 1 || c.Pending() != 0 {
		t.Fatalf("retry should push: %+v pending=%d", stats, c.Pending())
	}
}

func TestDebounceCollapsesRepeatedEdits(t *testing.T) {
	backend := &stubBackend{}
	overrides := memory.NewOverrideStore()
	c, err := NewSyncCoordinator(backend, overrides, nil, WithDebounceWindow(20*time.Millisecond))
	if err != nil {
		t.Fatalf("NewSyncCoordinator: %v", err)
	}
	c.SetScope("p1", "s1")
	defer c.Stop()

	record := testRecord(1000, "axis_x", "steer")
	for i := 0; i < 5; i++ {
		record.DeadZoneInner = float64(i) * 0.01
		c.RequestSync(record)
		time.Sleep(2 * time.Millisecond)
	}

	deadline := time.Now().Add(2 * time.Second)
	for backend.upsertCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	// Linger past another window to catch a spurious second push.
	time.Sleep(50 * time.Millisecond)

	if got := backend.upsertCount(); got != 1 {
		t.Fatalf("5 edits inside the window should produce 1 push, got %d", got)
	}
	backend.mu.Lock()
	pushed := backend.upserts[0]
	backend.mu.Unlock()
	if pushed.DeadZoneInner != 0.04 {
		t.Fatalf("push should carry the final edit, got inner %v", pushed.DeadZoneInner)
	}
}

func TestSetScopeDropsDirtyState(t *testing.T) {
	backend := &stubBackend{}
	c, _ := newTestCoordinator(t, backend)

	c.RequestSync(testRecord(1000, "axis_x", "steer"))
	c.SetScope("p2", "s1")
	if c.Pending() != 0 {
		t.Fatalf("scope switch should drop dirty records, pending = %d", c.Pending())
	}
}

func TestDiscardRemovesBackendEntry(t *testing.T) {
	backend := &stubBackend{}
	c, overrides := newTestCoordinator(t, backend)

	record := testRecord(1000, "axis_x", "steer")
	override := &mapping.Override{ProfileID: "p1", SubProfileID: "s1"}
	override.FromRecord(record)
	_ = overrides.Put(context.Background(), override)
	c.RequestSync(record)

	if err := c.Discard(context.Background(), record); err != nil {
		t.Fatalf("Discard: %v", err)
	}
	if got := backend.removedKeys(); len(got) != 1 || got[0] != "axis_x" {
		t.Fatalf("expected backend removal of axis_x, got %v", got)
	}
	if _, err := overrides.Get(context.Background(), 1000); !errors.Is(err, mapping.ErrOverrideNotFound) {
		t.Fatalf("override should be purged on discard, got %v", err)
	}
	if c.Pending() != 0 {
		t.Fatalf("discarded record should leave the dirty set, pending = %d", c.Pending())
	}
}

func TestDiscardKeepsClaimedKey(t *testing.T) {
	backend := &stubBackend{}
	c, _ := newTestCoordinator(t, backend)
	c.BindKeyClaimed(func(sourceKey string, except int64) bool { return true })

	record := testRecord(1000, "axis_x", "steer")
	if err := c.Discard(context.Background(), record); err != nil {
		t.Fatalf("Discard: %v", err)
	}
	if len(backend.removedKeys()) != 0 {
		t.Fatalf("claimed key must survive discard, got %v", backend.removedKeys())
	}
}
