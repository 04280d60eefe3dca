package curve

const (
	// MinSeparation is the smallest allowed X distance between any two
	// points while a point is being dragged.
	MinSeparation = 0.01

	// AddSeparation is the stricter X distance required when inserting a
	// new point, so a fresh segment is never born near-degenerate.
	AddSeparation = 0.02

	// MaxMovablePoints bounds the number of user points between the anchors.
	MaxMovablePoints = 12
)

// Point is a single control point on the response curve. Coordinates are
// normalized to [0,1]. Fixed points are the two anchors and never move.
type Point struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Fixed bool    `json:"fixed,omitempty"`
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
