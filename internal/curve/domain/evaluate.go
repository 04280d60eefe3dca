package curve

// Evaluate maps an input position t in [0,1] to the curve output in [0,1].
// Deterministic and pure with respect to the current point set.
func (m *Model) Evaluate(t float64) float64 {
	if len(m.points) == 0 {
		return clamp01(t)
	}
	if m.smooth {
		return m.evaluateSmooth(t)
	}
	return m.evaluateLinear(t)
}

func (m *Model) evaluateLinear(t float64) float64 {
	first := m.points[0]
	last := m.points[len(m.points)-1]
	if t <= first.X {
		return first.Y
	}
	if t >= last.X {
		return last.Y
	}
	for i := 0; i < len(m.points)-1; i++ {
		p1 := m.points[i]
		p2 := m.points[i+1]
		if t > p2.X {
			continue
		}
		width := p2.X - p1.X
		if width == 0 {
			return (p1.Y + p2.Y) / 2
		}
		return p1.Y + (t-p1.X)/width*(p2.Y-p1.Y)
	}
	return last.Y
}

// evaluateSmooth is a cubic Hermite spline with Catmull-Rom style
// tangents: each interior tangent averages the two adjacent secant
// slopes, boundaries use the one-sided secant. The polynomial can
// overshoot near steep segments, so the result is always clamped.
func (m *Model) evaluateSmooth(t float64) float64 {
	points := m.points
	n := len(points)
	if n < 2 {
		return clamp01(points[0].Y)
	}
	if t <= points[0].X {
		return clamp01(points[0].Y)
	}
	if t >= points[n-1].X {
		return clamp01(points[n-1].Y)
	}

	tangents := make([]float64, n)
	for i := 0; i < n; i++ {
		switch i {
		case 0:
			tangents[i] = secant(points[0], points[1])
		case n - 1:
			tangents[i] = secant(points[n-2], points[n-1])
		default:
			tangents[i] = (secant(points[i], points[i+1]) + secant(points[i-1], points[i])) / 2
		}
	}

	for i := 0; i < n-1; i++ {
		p1 := points[i]
		p2 := points[i+1]
		if t > p2.X {
			continue
		}
		width := p2.X - p1.X
		if width == 0 {
			return clamp01((p1.Y + p2.Y) / 2)
		}
		s := (t - p1.X) / width
		s2 := s * s
		s3 := s2 * s
		h00 := 2*s3 - 3*s2 + 1
		h10 := s3 - 2*s2 + s
		h01 := -2*s3 + 3*s2
		h11 := s3 - s2
		y := h00*p1.Y + h10*width*tangents[i] + h01*p2.Y + h11*width*tangents[i+1]
		return clamp01(y)
	}
	return clamp01(points[n-1].Y)
}

func secant(p1, p2 Point) float64 {
	width := p2.X - p1.X
	if width == 0 {
		return 0
	}
	return (p2.Y - p1.Y) / width
}
