package facematch

import (
	"fmt"
	"math"
)

// Distance computes the euclidean distance between two face descriptors.
func Distance(a, b Vector) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}

	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum), nil
}

// IsMatch reports whether a and b are closer than tolerance.
// A distance exactly equal to tolerance is not a match.
func IsMatch(a, b Vector, tolerance float64) (bool, error) {
	d, err := Distance(a, b)
	if err != nil {
		return false, err
	}
	return withinTolerance(d, tolerance), nil
}

// withinTolerance reports whether d is strictly below tolerance.
// NaN never matches.
func withinTolerance(d, tolerance float64) bool {
	return d < tolerance
}
