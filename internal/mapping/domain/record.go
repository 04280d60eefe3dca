package mapping

import (
	"math"
	"time"

	curve "axis-studio/internal/curve/domain"
)

// CurveType selects the response curve shape of a binding.
type CurveType string

const (
	CurveLinear CurveType = "linear"
	CurveCustom CurveType = "custom"
)

// MaxStoredPoints bounds the persisted point list, anchors included.
const MaxStoredPoints = 16

// fieldEpsilon is the tolerance used when comparing persisted float
// fields (dead zone fractions, point coordinates) across records.
const fieldEpsilon = 0.001

// Record is one binding from a source input key to an output control,
// together with its response curve and dead zone settings. CreatedAt acts
// as the stable identity across reloads; the backend may assign
// coarse-grained timestamps, so identities are deduplicated during
// reconciliation rather than trusted blindly.
type Record struct {
	SourceKey     string
	OutputControl string
	CurveType     CurveType
	Points        []curve.Point
	Smooth        bool
	DeadZoneInner float64 // fraction 0..1
	DeadZoneOuter float64 // fraction 0..1
	CreatedAt     time.Time

	// OriginalSourceKey is the key the backend currently knows this
	// record under, kept for removal-by-old-key on sync.
	OriginalSourceKey string

	HasWarning bool
	Modified   bool
}

// NewRecord returns a client-created record not yet known to the backend.
func NewRecord(createdAt time.Time) *Record {
	return &Record{
		CurveType:     CurveLinear,
		Points:        curve.NewModel().Points(),
		DeadZoneOuter: 1,
		CreatedAt:     createdAt.UTC(),
	}
}

// IsValid reports whether both sides of the binding are set.
func (r *Record) IsValid() bool {
	return r != nil && r.SourceKey != "" && r.OutputControl != ""
}

// Identity returns the record's stable identity key, or 0 when CreatedAt
// is unset.
func (r *Record) Identity() int64 {
	if r == nil || r.CreatedAt.IsZero() {
		return 0
	}
	return r.CreatedAt.UnixNano()
}

// CurveModel builds the evaluator for this record's curve settings.
func (r *Record) CurveModel() *curve.Model {
	if r.CurveType != CurveCustom {
		model := curve.NewModel()
		model.SetSmooth(r.Smooth)
		return model
	}
	return curve.NewModelFromPoints(r.Points, r.Smooth)
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	out.Points = append([]curve.Point(nil), r.Points...)
	return &out
}

// SameCurveShape compares curve type and point lists with a coordinate
// tolerance, the comparison multi-select mixed detection relies on.
func (r *Record) SameCurveShape(other *Record) bool {
	if r == nil || other == nil {
		return r == other
	}
	if r.CurveType != other.CurveType {
		return false
	}
	if r.CurveType != CurveCustom {
		return true
	}
	if len(r.Points) != len(other.Points) {
		return false
	}
	for i := range r.Points {
		if math.Abs(r.Points[i].X-other.Points[i].X) > fieldEpsilon {
			return false
		}
		if math.Abs(r.Points[i].Y-other.Points[i].Y) > fieldEpsilon {
			return false
		}
	}
	return true
}

// NormalizePoints runs stored points through curve hydration so a
// malformed stored shape degrades to a valid point set instead of
// failing the load.
func NormalizePoints(points []curve.Point, smooth bool) []curve.Point {
	return curve.NewModelFromPoints(points, smooth).Points()
}

// NearlyEqual compares persisted float fields with the field tolerance.
func NearlyEqual(a, b float64) bool {
	return math.Abs(a-b) <= fieldEpsilon
}
