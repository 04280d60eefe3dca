package mapping

import (
	"testing"
	"time"
)

func rec(t *testing.T, source, output string, at int64) *Record {
	t.Helper()
	r := NewRecord(time.Unix(0, at))
	r.SourceKey = source
	r.OutputControl = output
	return r
}

func TestMarkConflictsDuplicateSourceKey(t *testing.T) {
	records := []*Record{
		rec(t, "axis.x", "throttle", 1),
		rec(t, "axis.x", "brake", 2),
		rec(t, "axis.y", "steer", 3),
	}
	changed := MarkConflicts(records)
	if len(changed) != 2 {
		t.Fatalf("expected 2 changed records, got %d", len(changed))
	}
	if !records[0].HasWarning || !records[1].HasWarning {
		t.Fatalf("expected duplicate-key records flagged")
	}
	if records[2].HasWarning {
		t.Fatalf("unique key must not be flagged")
	}
}

func TestMarkConflictsSharedOutputIsLegal(t *testing.T) {
	records := []*Record{
		rec(t, "axis.x", "throttle", 1),
		rec(t, "axis.y", "throttle", 2),
	}
	if changed := MarkConflicts(records); len(changed) != 0 {
		t.Fatalf("shared output control flagged as conflict: %v", changed)
	}
}

func TestMarkConflictsIgnoresInvalidRecords(t *testing.T) {
	incomplete := rec(t, "axis.x", "", 1)
	complete := rec(t, "axis.x", "throttle", 2)
	if changed := MarkConflicts([]*Record{incomplete, complete}); len(changed) != 0 {
		t.Fatalf("invalid record counted toward conflicts: %v", changed)
	}
}

func TestMarkConflictsClearsResolvedWarning(t *testing.T) {
	a := rec(t, "axis.x", "throttle", 1)
	b := rec(t, "axis.x", "brake", 2)
	records := []*Record{a, b}
	MarkConflicts(records)
	b.SourceKey = "axis.z"
	changed := MarkConflicts(records)
	if len(changed) != 2 {
		t.Fatalf("expected both warnings cleared, got %v", changed)
	}
	if a.HasWarning || b.HasWarning {
		t.Fatalf("warnings should clear once keys diverge")
	}
}
