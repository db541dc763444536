package scanning

import (
	"context"
	"fmt"
	"time"
)

// Photo is what a camera hands back after the shutter (or the cancel button)
type Photo struct {
	Data        []byte
	ContentType string
	Ref         string
	Cancelled   bool
}

// Camera is the host platform's camera
type Camera interface {
	// RequestPermission asks the platform for camera access
	RequestPermission(ctx context.Context) (bool, error)
	// Open shows the camera UI and waits for a photo or a cancel
	Open(ctx context.Context) (Photo, error)
}

// Capture acquires one label photo from the camera.
// It fails with ErrPermissionDenied or ErrUserCancelled before any image is produced.
func Capture(ctx context.Context, cam Camera, now func() time.Time) (*ScanRequest, error) {
	granted, err := cam.RequestPermission(ctx)
	if err != nil {
		return nil, fmt.Errorf("requesting camera permission: %w", err)
	}
	if !granted {
		return nil, ErrPermissionDenied
	}

	photo, err := cam.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("opening camera: %w", err)
	}
	if photo.Cancelled {
		return nil, ErrUserCancelled
	}

	data, err := normalizeImage(photo.Data, photo.ContentType)
	if err != nil {
		return nil, err
	}

	return &ScanRequest{
		ImageBytes:  data,
		ContentType: pngMimeType,
		ImageRef:    photo.Ref,
		CapturedAt:  now(),
	}, nil
}

// UploadCamera is a camera whose photo was already taken on the client and uploaded.
// Access is always granted; an empty upload counts as a cancel.
type UploadCamera struct {
	Filename    string
	Data        []byte
	ContentType string
}

// RequestPermission always grants access
func (u *UploadCamera) RequestPermission(ctx context.Context) (bool, error) {
	return true, nil
}

// Open returns the uploaded photo
func (u *UploadCamera) Open(ctx context.Context) (Photo, error) {
	if len(u.Data) == 0 {
		return Photo{Cancelled: true}, nil
	}
	return Photo{
		Data:        u.Data,
		ContentType: u.ContentType,
		Ref:         u.Filename,
	}, nil
}
