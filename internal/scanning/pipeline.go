package scanning

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Pipeline runs capture, text extraction, interpretation and field parsing in order.
// Each run owns its intermediate values; a Pipeline is safe for concurrent use
// when its extractor and interpreter are.
type Pipeline struct {
	extractor   TextExtractor
	interpreter Interpreter
	log         *slog.Logger
	now         func() time.Time
}

// Option customizes a Pipeline
type Option func(*Pipeline)

// WithLogger sets the logger used for stage events
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.log = logger
		}
	}
}

// WithClock sets the time source used to stamp captures
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

// NewPipeline creates a new Pipeline
func NewPipeline(extractor TextExtractor, interpreter Interpreter, opts ...Option) *Pipeline {
	p := &Pipeline{
		extractor:   extractor,
		interpreter: interpreter,
		log:         slog.Default(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ScanLabel captures a photo from cam and turns it into a draft.
// The returned ScanRequest carries the normalized image for display or storage.
// Cancelling ctx aborts any in-flight service call.
func (p *Pipeline) ScanLabel(ctx context.Context, cam Camera) (MedicationDraft, *ScanRequest, error) {
	scanID := uuid.NewString()
	start := time.Now()

	req, err := Capture(ctx, cam, p.now)
	if err != nil {
		p.fail(scanID, "capture", start, err)
		return MedicationDraft{}, nil, err
	}
	p.log.Info("scan.capture.ok",
		"scan_id", scanID,
		"image_ref", req.ImageRef,
		"image_bytes", len(req.ImageBytes),
	)

	draft, err := p.process(ctx, scanID, start, req)
	if err != nil {
		return MedicationDraft{}, nil, err
	}
	return draft, req, nil
}

// Process runs every stage after capture
func (p *Pipeline) Process(ctx context.Context, req *ScanRequest) (MedicationDraft, error) {
	return p.process(ctx, uuid.NewString(), time.Now(), req)
}

func (p *Pipeline) process(ctx context.Context, scanID string, start time.Time, req *ScanRequest) (MedicationDraft, error) {
	extracted, err := p.extractor.ExtractText(ctx, req.ImageBytes)
	if err != nil {
		p.fail(scanID, "extract", start, err)
		return MedicationDraft{}, err
	}
	p.log.Info("scan.extract.ok",
		"scan_id", scanID,
		"text_len", len(extracted.RawText),
		"no_text", extracted.RawText == NoTextFound,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	interpreted, err := p.interpreter.Interpret(ctx, extracted.RawText)
	if err != nil {
		p.fail(scanID, "interpret", start, err)
		return MedicationDraft{}, err
	}
	p.log.Info("scan.interpret.ok",
		"scan_id", scanID,
		"text_len", len(interpreted.RawText),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	draft := ParseDraft(interpreted.RawText)
	p.log.Info("scan.parse.ok",
		"scan_id", scanID,
		"has_name", draft.Name != "",
		"has_dosage", draft.DosageAmount != "",
		"has_form", draft.DosageForm != "",
		"has_instructions", draft.Instructions != "",
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return draft, nil
}

func (p *Pipeline) fail(scanID, stage string, start time.Time, err error) {
	level := slog.LevelError
	if errors.Is(err, ErrUserCancelled) || errors.Is(err, ErrPermissionDenied) {
		level = slog.LevelInfo
	}
	p.log.Log(context.Background(), level, "scan.failed",
		"scan_id", scanID,
		"stage", stage,
		"error", err,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
}
