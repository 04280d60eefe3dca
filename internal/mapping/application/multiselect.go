package application

import (
	curve "axis-studio/internal/curve/domain"
	mapping "axis-studio/internal/mapping/domain"
)

// Field names an editable record field for multi-select aggregation and
// field commits.
type Field string

const (
	FieldSourceKey     Field = "source_key"
	FieldOutputControl Field = "output_control"
	FieldDeadZoneInner Field = "dead_zone_inner"
	FieldDeadZoneOuter Field = "dead_zone_outer"
	FieldSmooth        Field = "smooth"
	FieldCurve         Field = "curve"
)

// Selection aggregates N selected records into per-field mixed state. A
// mixed field has no concrete value to present; editing it fans the new
// value out to every selected record and clears the flag, while untouched
// mixed fields are never overwritten with a placeholder.
type Selection struct {
	records []*mapping.Record
	mixed   map[Field]bool
}

// NewSelection builds the aggregate over the given records.
func NewSelection(records []*mapping.Record) *Selection {
	s := &Selection{records: records}
	s.recompute()
	return s
}

// Records returns the selected records.
func (s *Selection) Records() []*mapping.Record { return s.records }

// IsMixed reports whether the field differs across the selection.
func (s *Selection) IsMixed(field Field) bool { return s.mixed[field] }

// DeadZoneInner returns the shared inner bound; ok is false when mixed
// or the selection is empty.
func (s *Selection) DeadZoneInner() (float64, bool) {
	if len(s.records) == 0 || s.mixed[FieldDeadZoneInner] {
		return 0, false
	}
	return s.records[0].DeadZoneInner, true
}

// DeadZoneOuter returns the shared outer bound.
func (s *Selection) DeadZoneOuter() (float64, bool) {
	if len(s.records) == 0 || s.mixed[FieldDeadZoneOuter] {
		return 0, false
	}
	return s.records[0].DeadZoneOuter, true
}

// Smooth returns the shared smooth-curve flag.
func (s *Selection) Smooth() (bool, bool) {
	if len(s.records) == 0 || s.mixed[FieldSmooth] {
		return false, false
	}
	return s.records[0].Smooth, true
}

// SetDeadZoneInner writes the inner bound to every selected record. Each
// record's outer bound follows its own gap constraint, so the outer
// mixed flag is recomputed rather than assumed cleared.
func (s *Selection) SetDeadZoneInner(fraction float64) {
	for _, record := range s.records {
		zone := curve.DeadZoneFromFractions(record.DeadZoneInner, record.DeadZoneOuter)
		zone.SetInner(fraction * 100)
		record.DeadZoneInner = zone.InnerFraction()
		record.DeadZoneOuter = zone.OuterFraction()
		record.Modified = true
	}
	s.recompute()
}

// SetDeadZoneOuter writes the outer bound to every selected record.
func (s *Selection) SetDeadZoneOuter(fraction float64) {
	for _, record := range s.records {
		zone := curve.DeadZoneFromFractions(record.DeadZoneInner, record.DeadZoneOuter)
		zone.SetOuter(fraction * 100)
		record.DeadZoneInner = zone.InnerFraction()
		record.DeadZoneOuter = zone.OuterFraction()
		record.Modified = true
	}
	s.recompute()
}

// SetSmooth writes the smooth-curve flag to every selected record.
func (s *Selection) SetSmooth(smooth bool) {
	for _, record := range s.records {
		record.Smooth = smooth
		record.Modified = true
	}
	s.recompute()
}

// SetCurve writes the curve shape to every selected record.
func (s *Selection) SetCurve(curveType mapping.CurveType, points []curve.Point, smooth bool) {
	normalized := mapping.NormalizePoints(points, smooth)
	for _, record := range s.records {
		record.CurveType = curveType
		record.Points = append([]curve.Point(nil), normalized...)
		record.Smooth = smooth
		record.Modified = true
	}
	s.recompute()
}

func (s *Selection) recompute() {
	s.mixed = map[Field]bool{}
	if len(s.records) < 2 {
		return
	}
	first := s.records[0]
	for _, record := range s.records[1:] {
		if !mapping.NearlyEqual(first.DeadZoneInner, record.DeadZoneInner) {
			s.mixed[FieldDeadZoneInner] = true
		}
		if !mapping.NearlyEqual(first.DeadZoneOuter, record.DeadZoneOuter) {
			s.mixed[FieldDeadZoneOuter] = true
		}
		if first.Smooth != record.Smooth {
			s.mixed[FieldSmooth] = true
		}
		if !first.SameCurveShape(record) {
			s.mixed[FieldCurve] = true
		}
	}
}
