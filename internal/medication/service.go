package medication

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/med-tracker/internal/scanning"
)

// IDGenerator generates unique IDs for medications and label images
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// LabelScanner turns a camera capture into a medication draft
type LabelScanner interface {
	ScanLabel(ctx context.Context, cam scanning.Camera) (scanning.MedicationDraft, *scanning.ScanRequest, error)
}

type uuidGenerator struct{}

func (g *uuidGenerator) Generate() string {
	return uuid.NewString()
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Service handles medication operations
type Service struct {
	db          DB
	scanner     LabelScanner
	storage     Storage
	idGenerator IDGenerator
	timeSource  TimeSource
	location    *time.Location
}

// NewService creates a new Service with a uuid generator and the wall clock
func NewService(db DB, scanner LabelScanner, storage Storage) *Service {
	return NewServiceWithDeps(db, scanner, storage, &uuidGenerator{}, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, scanner LabelScanner, storage Storage, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		scanner:     scanner,
		storage:     storage,
		idGenerator: idGen,
		timeSource:  timeSrc,
		location:    time.Local,
	}
}

// SetLocation sets the zone refill reminders are scheduled in
func (s *Service) SetLocation(loc *time.Location) {
	if loc != nil {
		s.location = loc
	}
}

// ScanLabel runs an uploaded label photo through the scan pipeline and keeps
// the normalized image for display next to the saved medication
func (s *Service) ScanLabel(ctx context.Context, userID, filename string, data []byte, contentType string) (*ScanResult, error) {
	cam := &scanning.UploadCamera{
		Filename:    filename,
		Data:        data,
		ContentType: contentType,
	}

	draft, req, err := s.scanner.ScanLabel(ctx, cam)
	if err != nil {
		return nil, fmt.Errorf("scanning label: %w", err)
	}

	result := &ScanResult{Draft: draft}
	name, err := s.storage.Save(s.idGenerator.Generate()+".png", req.ImageBytes)
	if err != nil {
		slog.Warn("Failed to save label image", "user_id", userID, "filename", filename, "error", err)
		return result, nil
	}
	result.LabelImage = name
	return result, nil
}

// CreateMedication validates and saves a user-confirmed medication
func (s *Service) CreateMedication(userID string, in NewMedication) (*Medication, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.DosageAmount = strings.TrimSpace(in.DosageAmount)
	in.DosageForm = strings.TrimSpace(in.DosageForm)
	in.Instructions = strings.TrimSpace(in.Instructions)

	if err := validate(in); err != nil {
		return nil, err
	}
	if err := s.checkLabelImageFree(userID, in.LabelImage); err != nil {
		return nil, err
	}

	m := &Medication{
		ID:             s.idGenerator.Generate(),
		UserID:         userID,
		Name:           in.Name,
		DosageAmount:   in.DosageAmount,
		DosageForm:     in.DosageForm,
		Instructions:   in.Instructions,
		Frequency:      in.Frequency,
		DailyReminder:  in.DailyReminder,
		RefillReminder: in.RefillReminder,
		LabelImage:     in.LabelImage,
		CreatedAt:      s.timeSource.Now(),
	}
	if in.DailyReminder {
		m.ReminderTime = in.ReminderTime
	}
	if in.RefillReminder {
		m.RefillDate = in.RefillDate
	}

	if err := s.db.SaveMedication(m); err != nil {
		return nil, fmt.Errorf("saving medication: %w", err)
	}

	m.Color = ColorFor(m.Name)
	return m, nil
}

// checkLabelImageFree rejects a label photo already attached to another of the user's medications
func (s *Service) checkLabelImageFree(userID, name string) error {
	if name == "" {
		return nil
	}
	meds, err := s.db.ListMedications(userID)
	if err != nil {
		return fmt.Errorf("listing medications: %w", err)
	}
	for _, m := range meds {
		if m.LabelImage == name {
			return fmt.Errorf("%w: label image %s is already attached to %s", ErrValidation, name, m.Name)
		}
	}
	return nil
}

// validate checks the fields the add-medication form requires
func validate(in NewMedication) error {
	var missing []string
	if in.Name == "" {
		missing = append(missing, "name")
	}
	if in.DosageAmount == "" {
		missing = append(missing, "dosageAmount")
	}
	if in.DosageForm == "" {
		missing = append(missing, "dosageForm")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: please complete all required fields (missing %s)", ErrValidation, strings.Join(missing, ", "))
	}

	if in.Frequency != "" && !slices.Contains(Frequencies, in.Frequency) {
		return fmt.Errorf("%w: unknown frequency %q", ErrValidation, in.Frequency)
	}
	if in.DailyReminder && in.ReminderTime == nil {
		return fmt.Errorf("%w: reminderTime is required for a daily reminder", ErrValidation)
	}
	if in.RefillReminder && in.RefillDate == nil {
		return fmt.Errorf("%w: refillDate is required for a refill reminder", ErrValidation)
	}
	return nil
}

// GetMedication retrieves one of a user's medications
func (s *Service) GetMedication(userID, id string) (*Medication, error) {
	m, err := s.db.GetMedication(userID, id)
	if err != nil {
		return nil, fmt.Errorf("getting medication: %w", err)
	}
	m.Color = ColorFor(m.Name)
	return m, nil
}

// ListMedications returns a user's medications, newest first
func (s *Service) ListMedications(userID string) ([]*Medication, error) {
	meds, err := s.db.ListMedications(userID)
	if err != nil {
		return nil, fmt.Errorf("listing medications: %w", err)
	}

	slices.SortStableFunc(meds, func(a, b *Medication) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	for _, m := range meds {
		m.Color = ColorFor(m.Name)
	}
	return meds, nil
}

// DeleteMedication removes a medication and its label image
func (s *Service) DeleteMedication(userID, id string) error {
	m, err := s.db.GetMedication(userID, id)
	if err != nil {
		return fmt.Errorf("getting medication for deletion: %w", err)
	}

	if m.LabelImage != "" {
		if err := s.storage.Delete(m.LabelImage); err != nil {
			slog.Warn("Failed to delete label image", "label_image", m.LabelImage, "error", err)
		}
	}

	if err := s.db.DeleteMedication(userID, id); err != nil {
		return fmt.Errorf("deleting medication from database: %w", err)
	}
	return nil
}

// GetLabelImage returns the stored label photo of a medication
func (s *Service) GetLabelImage(userID, id string) ([]byte, error) {
	m, err := s.db.GetMedication(userID, id)
	if err != nil {
		return nil, fmt.Errorf("getting medication: %w", err)
	}
	if m.LabelImage == "" {
		return nil, fmt.Errorf("medication %s has no label image: %w", id, ErrNotFound)
	}

	data, err := s.storage.Get(m.LabelImage)
	if err != nil {
		return nil, fmt.Errorf("getting label image: %w", err)
	}
	return data, nil
}

// GetProfile returns the user's profile, or an empty one if none is saved
func (s *Service) GetProfile(userID string) (*Profile, error) {
	p, err := s.db.GetProfile(userID)
	if errors.Is(err, ErrNotFound) {
		return &Profile{UserID: userID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting profile: %w", err)
	}
	return p, nil
}

// UpdateProfile saves the user's first name
func (s *Service) UpdateProfile(userID, firstName string) (*Profile, error) {
	p := &Profile{
		UserID:    userID,
		FirstName: strings.TrimSpace(firstName),
		UpdatedAt: s.timeSource.Now(),
	}
	if err := s.db.SaveProfile(p); err != nil {
		return nil, fmt.Errorf("saving profile: %w", err)
	}
	return p, nil
}
