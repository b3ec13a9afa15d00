package facematch

import (
	"errors"
	"fmt"
)

// Matcher runs identification scans with a fixed codec, tolerance and policy.
type Matcher struct {
	Codec     Codec
	Tolerance float64
	Policy    Policy

	// OnCorrupt is called for every candidate skipped because its encoding
	// does not decode. It may be nil.
	OnCorrupt func(key string, err error)
}

// NewMatcher creates a matcher. A non-positive tolerance falls back to DefaultTolerance.
func NewMatcher(dim int, tolerance float64, policy Policy) *Matcher {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	if policy == "" {
		policy = PolicyFirst
	}
	return &Matcher{
		Codec:     NewCodec(dim),
		Tolerance: tolerance,
		Policy:    policy,
	}
}

// Identify scans candidates in slice order and returns the selected match.
// Candidates that fail to decode are skipped. A probe of the wrong dimension
// fails before any candidate is examined.
func (m *Matcher) Identify(probe Vector, candidates []Candidate) (Match, error) {
	if len(probe) != m.Codec.Dim {
		return NoMatch(), fmt.Errorf("%w: probe has %d values, want %d", ErrDimensionMismatch, len(probe), m.Codec.Dim)
	}

	best := NoMatch()
	for i, c := range candidates {
		stored, err := m.Codec.Deserialize(c.Encoding)
		if err != nil {
			if errors.Is(err, ErrCorruptEncoding) && m.OnCorrupt != nil {
				m.OnCorrupt(c.Key, err)
			}
			continue
		}

		d, err := Distance(probe, stored)
		if err != nil {
			return NoMatch(), fmt.Errorf("candidate %s: %w", c.Key, err)
		}
		if !withinTolerance(d, m.Tolerance) {
			continue
		}

		if m.Policy == PolicyFirst {
			return Match{Found: true, Index: i, Key: c.Key, Distance: d}, nil
		}
		if !best.Found || d < best.Distance {
			best = Match{Found: true, Index: i, Key: c.Key, Distance: d}
		}
	}
	return best, nil
}
