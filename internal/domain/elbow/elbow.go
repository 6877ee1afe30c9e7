// Package elbow locates the point of diminishing returns on a convex,
// decreasing error curve.
package elbow

import (
	"errors"
	"fmt"
	"math"
)

// minDistance is the normalised distance below the chord a point must
// reach to count as an elbow.
const minDistance = 1e-9

// Sentinel error kinds for this package.
var (
	ErrTooFewPoints = errors.New("too few points to locate an elbow")
	ErrInvalidCurve = errors.New("invalid curve")
	ErrNoElbow      = errors.New("no elbow detected")
)

// Locate returns the x at the elbow of a convex, decreasing curve.
//
// Both axes are min-max normalised. The elbow is the interior point with the
// largest perpendicular distance below the straight line joining the first
// and last points; ties go to the smaller x. A flat, non-decreasing or
// non-convex curve has no elbow and yields ErrNoElbow.
func Locate(xs []int, ys []float64) (int, error) {
	if len(xs) != len(ys) {
		return 0, fmt.Errorf("%w: %d x values, %d y values", ErrInvalidCurve, len(xs), len(ys))
	}
	n := len(xs)
	if n < 3 {
		return 0, fmt.Errorf("%w: got %d", ErrTooFewPoints, n)
	}

	ymin, ymax := math.Inf(1), math.Inf(-1)
	for i, y := range ys {
		if math.IsNaN(y) || math.IsInf(y, 0) {
			return 0, fmt.Errorf("%w: non-finite value at x=%d", ErrInvalidCurve, xs[i])
		}
		if i > 0 && xs[i] <= xs[i-1] {
			return 0, fmt.Errorf("%w: x values must be strictly increasing", ErrInvalidCurve)
		}
		ymin = math.Min(ymin, y)
		ymax = math.Max(ymax, y)
	}
	if ymax == ymin {
		return 0, fmt.Errorf("%w: flat curve", ErrNoElbow)
	}
	if ys[n-1] >= ys[0] {
		return 0, fmt.Errorf("%w: curve is not decreasing", ErrNoElbow)
	}

	xspan := float64(xs[n-1] - xs[0])
	yspan := ymax - ymin
	normX := func(i int) float64 { return float64(xs[i]-xs[0]) / xspan }
	normY := func(i int) float64 { return (ys[i] - ymin) / yspan }

	// chord from (0, y0) to (1, yn)
	y0 := normY(0)
	dy := normY(n-1) - y0
	length := math.Hypot(1, dy)

	best, bestDist := -1, minDistance
	for i := 1; i < n-1; i++ {
		cross := (normY(i) - y0) - dy*normX(i)
		dist := -cross / length
		if dist > bestDist {
			best, bestDist = i, dist
		}
	}
	if best < 0 {
		return 0, fmt.Errorf("%w: no point lies below the chord", ErrNoElbow)
	}
	return xs[best], nil
}
