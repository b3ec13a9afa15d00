// Package encoder turns uploaded face images into descriptors.
//
// Descriptor extraction is delegated to an external embedding server; this
// package owns payload decoding, image preparation and the HTTP contract.
package encoder

import (
	"context"
	"errors"

	"github.com/kozaktomas/uniportal/internal/facematch"
)

var (
	// ErrImageDecode is returned when an upload is not valid base64 or not an image.
	ErrImageDecode = errors.New("failed to decode image")

	// ErrNoSubject is returned when the image contains no detectable face.
	ErrNoSubject = errors.New("no face detected in image")

	// ErrExtractorUnavailable is returned when face extraction is not configured
	// or the embedding server was unreachable at startup.
	ErrExtractorUnavailable = errors.New("face recognition is not available")
)

// Extractor computes a single face descriptor from raw image bytes.
type Extractor interface {
	Extract(ctx context.Context, image []byte) (facematch.Vector, error)
}

// Unavailable is the extractor used when the embedding server is not configured.
type Unavailable struct{}

// Extract always fails with ErrExtractorUnavailable.
func (Unavailable) Extract(context.Context, []byte) (facematch.Vector, error) {
	return nil, ErrExtractorUnavailable
}
