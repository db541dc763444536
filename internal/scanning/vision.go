package scanning

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/api/option"
	vision "google.golang.org/api/vision/v1"
)

const (
	defaultVisionEndpoint = "https://vision.googleapis.com/"
	defaultVisionTimeout  = 20 * time.Second
)

// VisionConfig configures the Google Cloud Vision text extractor
type VisionConfig struct {
	APIKey   string
	Endpoint string        // default https://vision.googleapis.com/
	Timeout  time.Duration // default 20s
}

// Vision implements TextExtractor with Google Cloud Vision TEXT_DETECTION
type Vision struct {
	svc     *vision.Service
	timeout time.Duration
	log     *slog.Logger
}

// NewVision creates a new Vision text extractor
func NewVision(cfg VisionConfig, logger *slog.Logger) (*Vision, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("vision api key is required")
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultVisionEndpoint
	}
	if !strings.HasSuffix(cfg.Endpoint, "/") {
		cfg.Endpoint += "/"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultVisionTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	svc, err := vision.NewService(context.Background(),
		option.WithAPIKey(cfg.APIKey),
		option.WithEndpoint(cfg.Endpoint),
	)
	if err != nil {
		return nil, fmt.Errorf("creating vision client: %w", err)
	}

	return &Vision{svc: svc, timeout: cfg.Timeout, log: logger}, nil
}

// ExtractText sends the image for full-text detection.
// An image without text yields NoTextFound; every failure is an *ExtractionServiceError.
func (v *Vision) ExtractText(ctx context.Context, imageBytes []byte) (ExtractedText, error) {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	req := &vision.BatchAnnotateImagesRequest{
		Requests: []*vision.AnnotateImageRequest{
			{
				Image:    &vision.Image{Content: base64.StdEncoding.EncodeToString(imageBytes)},
				Features: []*vision.Feature{{Type: "TEXT_DETECTION"}},
			},
		},
	}

	resp, err := v.svc.Images.Annotate(req).Context(ctx).Do()
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("vision request timed out after %s: %w", v.timeout, err)
		}
		return ExtractedText{}, &ExtractionServiceError{Err: fmt.Errorf("calling vision API: %w", err)}
	}

	if len(resp.Responses) == 0 {
		return ExtractedText{RawText: NoTextFound}, nil
	}

	first := resp.Responses[0]
	if first.Error != nil && first.Error.Code != 0 {
		return ExtractedText{}, &ExtractionServiceError{
			Err: fmt.Errorf("vision API error (code %d): %s", first.Error.Code, first.Error.Message),
		}
	}

	if first.FullTextAnnotation == nil || strings.TrimSpace(first.FullTextAnnotation.Text) == "" {
		v.log.Debug("vision returned no text")
		return ExtractedText{RawText: NoTextFound}, nil
	}

	return ExtractedText{RawText: first.FullTextAnnotation.Text}, nil
}
