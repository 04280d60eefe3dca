package curve

import (
	"math"
	"math/rand"
	"testing"
)

func TestSetInnerPushesOuter(t *testing.T) {
	d := NewDeadZone(5, 95)
	d.SetInner(92)
	if d.Inner != 92 {
		t.Fatalf("expected inner 92, got %.2f", d.Inner)
	}
	if d.Outer != 97 {
		t.Fatalf("expected outer pushed to 97, got %.2f", d.Outer)
	}
}

func TestSetOuterPullsInner(t *testing.T) {
	d := NewDeadZone(40, 95)
	d.SetOuter(42)
	if d.Outer != 42 {
		t.Fatalf("expected outer 42, got %.2f", d.Outer)
	}
	if d.Inner != 37 {
		t.Fatalf("expected inner pulled to 37, got %.2f", d.Inner)
	}
}

func TestSetInnerAtUpperEdge(t *testing.T) {
	d := NewDeadZone(5, 95)
	d.SetInner(99)
	if d.Outer != 100 {
		t.Fatalf("expected outer capped at 100, got %.2f", d.Outer)
	}
	if d.Inner != 95 {
		t.Fatalf("expected inner yielding to 95, got %.2f", d.Inner)
	}
}

func TestSetOuterAtLowerEdge(t *testing.T) {
	d := NewDeadZone(5, 95)
	d.SetOuter(2)
	if d.Inner != 0 {
		t.Fatalf("expected inner floored at 0, got %.2f", d.Inner)
	}
	if d.Outer != 5 {
		t.Fatalf("expected outer yielding to 5, got %.2f", d.Outer)
	}
}

func TestGapInvariantUnderRandomMutation(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	d := NewDeadZone(0, 100)
	for i := 0; i < 10000; i++ {
		v := rng.Float64()*140 - 20
		if rng.Intn(2) == 0 {
			d.SetInner(v)
		} else {
			d.SetOuter(v)
		}
		if d.Inner < 0 || d.Outer > 100 {
			t.Fatalf("step %d out of range: inner=%.4f outer=%.4f", i, d.Inner, d.Outer)
		}
		if d.Inner > d.Outer-DeadZoneMinGap+1e-9 {
			t.Fatalf("step %d gap violated: inner=%.4f outer=%.4f", i, d.Inner, d.Outer)
		}
	}
}

func TestFractionRoundTrip(t *testing.T) {
	d := DeadZoneFromFractions(0.05, 0.95)
	if math.Abs(d.Inner-5) > 1e-9 || math.Abs(d.Outer-95) > 1e-9 {
		t.Fatalf("unexpected bounds: %+v", d)
	}
	if math.Abs(d.InnerFraction()-0.05) > 1e-9 || math.Abs(d.OuterFraction()-0.95) > 1e-9 {
		t.Fatalf("fraction round trip broken: %+v", d)
	}
}
