package curve

import (
	"math"
	"sort"
)

const (
	solverMaxIterations = 20
	solverTolerance     = 1e-6
)

// solveMove computes the corrected position for dragging the point at
// index toward (desiredX, desiredY). Two phases: clamp against the
// immediate neighbors, then re-validate every pairwise separation after a
// re-sort. Neighbor clamping alone is not enough because a fast drag can
// change which points are neighbors mid-move; when the global check fails
// the solver bisects between the last known valid X and the rejected
// target, keeping the original position if nothing feasible is found.
func (m *Model) solveMove(index int, desiredX, desiredY float64) Point {
	current := m.points[index]
	desiredY = clamp01(desiredY)

	minX := MinSeparation
	maxX := 1 - MinSeparation
	if index > 0 {
		minX = m.points[index-1].X + MinSeparation
	}
	if index < len(m.points)-1 {
		maxX = m.points[index+1].X - MinSeparation
	}

	if minX > maxX {
		// Neighbors crossed into an infeasible window during a fast
		// drag; take whichever bound sits closer to the target.
		if math.Abs(desiredX-minX) <= math.Abs(desiredX-maxX) {
			desiredX = minX
		} else {
			desiredX = maxX
		}
	} else {
		desiredX = math.Min(math.Max(desiredX, minX), maxX)
	}

	if m.feasibleX(index, desiredX) {
		return Point{X: desiredX, Y: desiredY}
	}

	lastValid := current.X
	target := desiredX
	found := false
	best := lastValid
	for i := 0; i < solverMaxIterations; i++ {
		mid := (lastValid + target) / 2
		if m.feasibleX(index, mid) {
			lastValid = mid
			best = mid
			found = true
		} else {
			target = mid
		}
		if math.Abs(target-lastValid) <= solverTolerance {
			break
		}
	}
	if !found {
		return current
	}
	return Point{X: best, Y: desiredY}
}

// feasibleX checks the global separation invariant with the point at
// index moved to x.
func (m *Model) feasibleX(index int, x float64) bool {
	trial := make([]Point, len(m.points))
	copy(trial, m.points)
	trial[index].X = x
	sort.Slice(trial, func(i, j int) bool { return trial[i].X < trial[j].X })
	return separationHolds(trial)
}
