package scanning

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	"image/png"
	"net/http"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
)

const pngMimeType = "image/png"

// renderPDFPage renders the first page of a PDF label printout as PNG
func renderPDFPage(pdfData []byte) ([]byte, error) {
	doc, err := fitz.NewFromMemory(pdfData)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	// Pharmacy printouts carry the label on page one
	img, err := doc.Image(0)
	if err != nil {
		return nil, fmt.Errorf("rendering PDF page: %w", err)
	}

	return encodePNG(img)
}

// decodePhoto decodes a camera photo in any supported format
func decodePhoto(data []byte, mimeType string) (image.Image, error) {
	// iPhones shoot HEIC, which the standard library cannot decode
	if isHEIC(data) || isHEICMimeType(mimeType) {
		img, err := heic.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decoding HEIC/HEIF photo: %w", err)
		}
		return img, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding photo: %w", err)
	}
	return img, nil
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// isHEIC checks for an ftyp box with a HEIC-family brand at offset 4
func isHEIC(data []byte) bool {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heix", "heif", "mif1", "msf1":
		return true
	}
	return false
}

func isHEICMimeType(mimeType string) bool {
	return strings.Contains(mimeType, "heic") || strings.Contains(mimeType, "heif")
}

// normalizeMimeType lowercases the declared type, sniffing the bytes when none was given
func normalizeMimeType(data []byte, contentType string) string {
	mimeType := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	if mimeType == "" || mimeType == "application/octet-stream" {
		if isHEIC(data) {
			return "image/heic"
		}
		mimeType = http.DetectContentType(data)
	}
	return mimeType
}

// normalizeImage converts a captured photo to PNG so every OCR request carries the same format.
// PNG input is passed through untouched.
func normalizeImage(data []byte, contentType string) ([]byte, error) {
	mimeType := normalizeMimeType(data, contentType)

	switch {
	case mimeType == "application/pdf":
		out, err := renderPDFPage(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnreadableImage, err)
		}
		return out, nil
	case mimeType == pngMimeType && !isHEIC(data):
		return data, nil
	}

	img, err := decodePhoto(data, mimeType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableImage, err)
	}
	out, err := encodePNG(img)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableImage, err)
	}
	return out, nil
}
