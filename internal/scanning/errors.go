package scanning

import (
	"errors"
	"fmt"
)

var (
	// ErrPermissionDenied is returned when camera access was refused
	ErrPermissionDenied = errors.New("camera permission denied")

	// ErrUserCancelled is returned when the user backed out of the camera.
	// Callers should treat it as a normal exit, not a failure.
	ErrUserCancelled = errors.New("capture cancelled by user")

	// ErrUnreadableImage is returned when a captured image cannot be decoded
	ErrUnreadableImage = errors.New("unreadable image")
)

// ExtractionServiceError wraps any failure of the OCR stage
type ExtractionServiceError struct {
	Err error
}

func (e *ExtractionServiceError) Error() string {
	return fmt.Sprintf("text extraction: %v", e.Err)
}

func (e *ExtractionServiceError) Unwrap() error {
	return e.Err
}

// InterpretationServiceError wraps any failure of the language model stage
type InterpretationServiceError struct {
	Err error
}

func (e *InterpretationServiceError) Error() string {
	return fmt.Sprintf("interpretation: %v", e.Err)
}

func (e *InterpretationServiceError) Unwrap() error {
	return e.Err
}

const (
	scanFailedMessage       = "Failed to process image text."
	permissionDeniedMessage = "Camera access is required."
)

// UserMessage returns the text to show a user for a pipeline error.
// A cancelled capture has no message.
func UserMessage(err error) string {
	switch {
	case err == nil, errors.Is(err, ErrUserCancelled):
		return ""
	case errors.Is(err, ErrPermissionDenied):
		return permissionDeniedMessage
	default:
		return scanFailedMessage
	}
}
