// Package facematch provides the face matching primitives shared between the
// CLI and the web handlers: the feature vector type, its text codec, the
// distance function and the identification scan over stored encodings.
package facematch

import "errors"

// DefaultDim is the length of the face descriptors produced by the embedding server.
const DefaultDim = 128

// DefaultTolerance is the maximum euclidean distance for two descriptors to be
// considered the same person. The comparison is strict.
const DefaultTolerance = 0.6

// Vector is a face descriptor. Vectors are never modified after extraction.
type Vector []float64

var (
	// ErrCorruptEncoding is returned when a stored encoding cannot be decoded
	// into a vector of the configured dimension.
	ErrCorruptEncoding = errors.New("corrupt face encoding")

	// ErrDimensionMismatch is returned when two vectors of different length are compared.
	ErrDimensionMismatch = errors.New("face vector dimension mismatch")
)

// Policy selects which qualifying candidate Identify returns.
type Policy string

const (
	// PolicyFirst returns the first candidate under tolerance in iteration order
	// and stops scanning.
	PolicyFirst Policy = "first"
	// PolicyBest scans every candidate and returns the closest one under tolerance.
	// Equal distances resolve to the earlier candidate.
	PolicyBest Policy = "best"
)

// ParsePolicy converts a config string into a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case PolicyFirst, PolicyBest:
		return Policy(s), nil
	case "":
		return PolicyFirst, nil
	}
	return "", errors.New("unknown match policy: " + s)
}

// Candidate is a stored encoding offered to Identify.
type Candidate struct {
	Key      string // caller-defined reference, usually the encoding ID
	Encoding string
}

// Match is the outcome of an identification scan.
type Match struct {
	Found    bool
	Index    int // position in the candidate slice, -1 when not found
	Key      string
	Distance float64
}

// NoMatch is the empty identification result.
func NoMatch() Match {
	return Match{Index: -1}
}
