package facematch

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// Codec converts vectors to and from their stored text form, a JSON array of
// numbers. encoding/json formats float64 with the shortest representation
// that parses back to the same value, so the round trip is exact.
type Codec struct {
	Dim int
}

// NewCodec creates a codec for vectors of the given dimension.
func NewCodec(dim int) Codec {
	if dim <= 0 {
		dim = DefaultDim
	}
	return Codec{Dim: dim}
}

// Serialize returns the canonical text form of v.
func (c Codec) Serialize(v Vector) (string, error) {
	if len(v) != c.Dim {
		return "", fmt.Errorf("%w: got %d values, want %d", ErrDimensionMismatch, len(v), c.Dim)
	}
	for i, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return "", fmt.Errorf("serialize face vector: non-finite value at index %d", i)
		}
	}

	data, err := json.Marshal([]float64(v))
	if err != nil {
		return "", fmt.Errorf("serialize face vector: %w", err)
	}
	return string(data), nil
}

// Deserialize parses a stored encoding. Any failure wraps ErrCorruptEncoding.
func (c Codec) Deserialize(text string) (Vector, error) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "[") {
		return nil, fmt.Errorf("%w: not a JSON array", ErrCorruptEncoding)
	}

	// Pointers let a JSON null be told apart from a zero.
	var values []*float64
	if err := json.Unmarshal([]byte(trimmed), &values); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptEncoding, err)
	}
	if len(values) != c.Dim {
		return nil, fmt.Errorf("%w: got %d values, want %d", ErrCorruptEncoding, len(values), c.Dim)
	}

	v := make(Vector, len(values))
	for i, x := range values {
		if x == nil {
			return nil, fmt.Errorf("%w: null at index %d", ErrCorruptEncoding, i)
		}
		v[i] = *x
	}
	return v, nil
}
