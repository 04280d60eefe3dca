package curve

// DeadZoneMinGap is the smallest allowed distance, in percent, between the
// inner and the outer dead zone bound.
const DeadZoneMinGap = 5.0

// DeadZone holds the inner and outer dead zone bounds in percent of the
// input range. Invariant: Inner <= Outer - DeadZoneMinGap, both in [0,100].
type DeadZone struct {
	Inner float64
	Outer float64
}

// NewDeadZone builds a dead zone from raw bounds, normalizing them so the
// gap invariant holds.
func NewDeadZone(inner, outer float64) DeadZone {
	d := DeadZone{Inner: 0, Outer: 100}
	d.SetOuter(outer)
	d.SetInner(inner)
	return d
}

// SetInner moves the inner bound. Raising it above Outer-gap pushes the
// outer bound up by the same deficit; if the outer bound hits 100 the
// inner bound gives way instead so the gap invariant always holds.
func (d *DeadZone) SetInner(v float64) {
	d.Inner = clampPercent(v)
	if d.Inner > d.Outer-DeadZoneMinGap {
		d.Outer = d.Inner + DeadZoneMinGap
	}
	if d.Outer > 100 {
		d.Outer = 100
		d.Inner = d.Outer - DeadZoneMinGap
	}
}

// SetOuter moves the outer bound. Lowering it below Inner+gap pushes the
// inner bound down by the same deficit; if the inner bound hits 0 the
// outer bound gives way instead.
func (d *DeadZone) SetOuter(v float64) {
	d.Outer = clampPercent(v)
	if d.Inner > d.Outer-DeadZoneMinGap {
		d.Inner = d.Outer - DeadZoneMinGap
	}
	if d.Inner < 0 {
		d.Inner = 0
		d.Outer = d.Inner + DeadZoneMinGap
	}
}

// InnerFraction returns the inner bound as a 0..1 fraction, the shape
// mapping records persist.
func (d DeadZone) InnerFraction() float64 { return d.Inner / 100 }

// OuterFraction returns the outer bound as a 0..1 fraction.
func (d DeadZone) OuterFraction() float64 { return d.Outer / 100 }

// DeadZoneFromFractions converts persisted 0..1 fractions back to percent
// bounds, normalizing so the gap invariant holds.
func DeadZoneFromFractions(inner, outer float64) DeadZone {
	return NewDeadZone(inner*100, outer*100)
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
