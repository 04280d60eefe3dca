package curve

import (
	"math"
	"sort"
)

// Model is an ordered set of control points plus the evaluation mode.
// Two fixed anchors at (0,0) and (1,1) always exist. Any two points differ
// in X by at least MinSeparation.
type Model struct {
	points []Point // sorted by X
	smooth bool
}

// NewModel returns a model holding only the two anchors.
func NewModel() *Model {
	return &Model{points: []Point{
		{X: 0, Y: 0, Fixed: true},
		{X: 1, Y: 1, Fixed: true},
	}}
}

// NewModelFromPoints hydrates a model from stored points, typically echoed
// back by the backend store. Out-of-range coordinates are clamped, missing
// anchors are restored, and points violating the separation invariant or
// the capacity limit are dropped left to right. Hydration never fails: a
// malformed point set degrades to a valid subset.
func NewModelFromPoints(points []Point, smooth bool) *Model {
	model := NewModel()
	model.smooth = smooth

	sorted := make([]Point, 0, len(points))
	for _, p := range points {
		sorted = append(sorted, Point{X: clamp01(p.X), Y: clamp01(p.Y)})
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].X < sorted[j].X })

	for _, p := range sorted {
		if p.Fixed || p.X == 0 || p.X == 1 {
			// Anchors are already present; stored copies carry the Y
			// of the nearest anchor anyway.
			continue
		}
		if _, err := model.AddPoint(p.X, p.Y); err != nil {
			continue
		}
	}
	return model
}

// Points returns a copy of the point set, sorted by X.
func (m *Model) Points() []Point {
	out := make([]Point, len(m.points))
	copy(out, m.points)
	return out
}

// Len returns the total number of points including anchors.
func (m *Model) Len() int { return len(m.points) }

// MovableCount returns the number of non-anchor points.
func (m *Model) MovableCount() int {
	count := 0
	for _, p := range m.points {
		if !p.Fixed {
			count++
		}
	}
	return count
}

// Smooth reports whether cubic evaluation is selected.
func (m *Model) Smooth() bool { return m.smooth }

// SetSmooth selects between linear and cubic evaluation.
func (m *Model) SetSmooth(smooth bool) { m.smooth = smooth }

// AddPoint inserts a movable point at (x, y). The X coordinate must keep
// AddSeparation distance from every existing point, anchors included.
func (m *Model) AddPoint(x, y float64) (int, error) {
	if m.MovableCount() >= MaxMovablePoints {
		return 0, ErrCurveFull
	}
	x = clamp01(x)
	y = clamp01(y)
	for _, p := range m.points {
		if math.Abs(x-p.X) < AddSeparation {
			return 0, ErrPointTooClose
		}
	}
	m.points = append(m.points, Point{X: x, Y: y})
	m.sortPoints()
	for i, p := range m.points {
		if !p.Fixed && p.X == x {
			return i, nil
		}
	}
	return 0, ErrPointIndex
}

// RemovePoint deletes the movable point at index. Anchors are never
// removable. Removal cannot violate the separation invariant, so no
// re-validation is needed beyond the fixed-point check.
func (m *Model) RemovePoint(index int) error {
	if index < 0 || index >= len(m.points) {
		return ErrPointIndex
	}
	if m.points[index].Fixed {
		return ErrFixedPoint
	}
	m.points = append(m.points[:index], m.points[index+1:]...)
	return nil
}

// MovePoint drags the point at index toward (x, y) and returns the
// corrected position satisfying the separation invariant. Y is only
// clamped to [0,1]; points may cross in Y but never collide in X.
func (m *Model) MovePoint(index int, x, y float64) (Point, error) {
	if index < 0 || index >= len(m.points) {
		return Point{}, ErrPointIndex
	}
	if m.points[index].Fixed {
		return Point{}, ErrFixedPoint
	}
	corrected := m.solveMove(index, x, y)
	m.points[index] = corrected
	m.sortPoints()
	return corrected, nil
}

func (m *Model) sortPoints() {
	sort.Slice(m.points, func(i, j int) bool { return m.points[i].X < m.points[j].X })
}

// separationSlack absorbs float error so an X clamped exactly onto the
// neighbor-plus-separation bound still validates.
const separationSlack = 1e-9

// separationHolds re-validates every pairwise X distance. Checking only a
// moved point's neighbors is insufficient once a move re-sorts the set.
func separationHolds(points []Point) bool {
	for i := 0; i < len(points); i++ {
		for j := i + 1; j < len(points); j++ {
			if math.Abs(points[i].X-points[j].X) < MinSeparation-separationSlack {
				return false
			}
		}
	}
	return true
}
