package curve

import "errors"

// ErrPointTooClose is returned when a new point would land within
// AddSeparation of an existing point.
var ErrPointTooClose = errors.New("curve: point too close to an existing point")

// ErrCurveFull is returned once MaxMovablePoints movable points exist.
var ErrCurveFull = errors.New("curve: movable point capacity reached")

// ErrFixedPoint is returned when an anchor is targeted for move or removal.
var ErrFixedPoint = errors.New("curve: anchor points cannot be moved or removed")

// ErrPointIndex is returned for an out-of-range point index.
var ErrPointIndex = errors.New("curve: point index out of range")
