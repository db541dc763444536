package scanning

import (
	"context"
	"time"
)

// NoTextFound is returned as the extracted text when the OCR service finds nothing.
// It is a valid result, not an error.
const NoTextFound = "No text found."

// ScanRequest is a single captured label photo
type ScanRequest struct {
	ImageBytes  []byte
	ContentType string
	ImageRef    string // local reference to the original photo, for display
	CapturedAt  time.Time
}

// ExtractedText is the raw OCR output for a label
type ExtractedText struct {
	RawText string
}

// InterpretedText is the model's "Label: value" listing of the OCR output
type InterpretedText struct {
	RawText string
}

// MedicationDraft contains the fields pre-filled from a label scan.
// Fields the label did not yield are empty strings.
type MedicationDraft struct {
	Name         string `json:"name"`
	DosageAmount string `json:"dosageAmount"`
	DosageForm   string `json:"dosageForm"`
	Instructions string `json:"instructions"`
}

// TextExtractor turns an image into free-form text
type TextExtractor interface {
	ExtractText(ctx context.Context, imageBytes []byte) (ExtractedText, error)
}

// Interpreter asks a language model to restate OCR text as labelled lines
type Interpreter interface {
	Interpret(ctx context.Context, rawText string) (InterpretedText, error)
}
