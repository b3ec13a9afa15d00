package faceauth

import (
	"errors"
	"fmt"

	"github.com/kozaktomas/uniportal/internal/encoder"
	"github.com/kozaktomas/uniportal/internal/facematch"
)

var (
	// ErrImageDecode is returned when the payload is not a base64 encoded image.
	ErrImageDecode = encoder.ErrImageDecode

	// ErrNoFaceDetected is returned when the submitted image contains no face.
	ErrNoFaceDetected = encoder.ErrNoSubject

	// ErrExtractorUnavailable is returned when face recognition is not configured.
	ErrExtractorUnavailable = encoder.ErrExtractorUnavailable

	// ErrFaceNotRecognized is returned when no enrolled face is within tolerance.
	ErrFaceNotRecognized = errors.New("face not recognized")

	// ErrAccountDisabled is returned when the recognized account is inactive.
	ErrAccountDisabled = errors.New("account is disabled")

	// ErrForbidden is returned when the actor may not act on another user's faces.
	ErrForbidden = errors.New("not allowed to manage face encodings of another user")

	// ErrEncodingNotFound is returned when a face encoding id does not exist.
	ErrEncodingNotFound = errors.New("face encoding not found")

	// ErrUserNotFound is returned when the enrollment target does not exist.
	ErrUserNotFound = errors.New("user not found")
)

// OperationError wraps an unexpected failure inside a face operation.
type OperationError struct {
	Op  string
	Err error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("face operation failed: %s: %v", e.Op, e.Err)
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

var knownErrors = []error{
	ErrImageDecode,
	ErrNoFaceDetected,
	ErrExtractorUnavailable,
	ErrFaceNotRecognized,
	ErrAccountDisabled,
	ErrForbidden,
	ErrEncodingNotFound,
	ErrUserNotFound,
	facematch.ErrDimensionMismatch,
}

// wrapOp returns known errors unchanged and wraps everything else in an OperationError.
func wrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, known := range knownErrors {
		if errors.Is(err, known) {
			return err
		}
	}
	var opErr *OperationError
	if errors.As(err, &opErr) {
		return err
	}
	return &OperationError{Op: op, Err: err}
}
