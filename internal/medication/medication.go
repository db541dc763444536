package medication

import (
	"errors"
	"time"

	"github.com/zombor/med-tracker/internal/scanning"
)

var (
	// ErrNotFound is returned when a medication, profile or label image does not exist
	ErrNotFound = errors.New("not found")

	// ErrValidation is returned when a medication fails validation
	ErrValidation = errors.New("validation failed")
)

// DosageForms are the dosage forms offered in the add-medication form
var DosageForms = []string{
	"Tablet",
	"Capsule",
	"Liquid",
	"Injection",
	"Drops",
	"Cream",
	"Other",
}

// Frequencies are the dosing frequencies offered in the add-medication form
var Frequencies = []string{
	"Daily",
	"Every 4 hours",
	"Every 8 hours",
	"Every 12 hours",
	"Every second day",
	"Weekly",
	"As Needed",
}

// Medication is a medication record owned by one user
type Medication struct {
	ID             string     `json:"id"`
	UserID         string     `json:"userId"`
	Name           string     `json:"name"`
	DosageAmount   string     `json:"dosageAmount"`
	DosageForm     string     `json:"dosageForm"`
	Instructions   string     `json:"instructions"`
	Frequency      string     `json:"frequency"`
	DailyReminder  bool       `json:"dailyReminder"`
	ReminderTime   *time.Time `json:"reminderTime"`
	RefillReminder bool       `json:"refillReminder"`
	RefillDate     *time.Time `json:"refillDate"`
	LabelImage     string     `json:"labelImage,omitempty"` // stored label photo from a scan
	Color          string     `json:"color,omitempty"`      // derived from Name, not persisted
	CreatedAt      time.Time  `json:"createdAt"`
}

// NewMedication is the user-confirmed form submitted to create a medication
type NewMedication struct {
	Name           string     `json:"name"`
	DosageAmount   string     `json:"dosageAmount"`
	DosageForm     string     `json:"dosageForm"`
	Instructions   string     `json:"instructions"`
	Frequency      string     `json:"frequency"`
	DailyReminder  bool       `json:"dailyReminder"`
	ReminderTime   *time.Time `json:"reminderTime"`
	RefillReminder bool       `json:"refillReminder"`
	RefillDate     *time.Time `json:"refillDate"`
	LabelImage     string     `json:"labelImage"`
}

// Profile holds account details shown on the home screen
type Profile struct {
	UserID    string    `json:"userId"`
	FirstName string    `json:"firstName"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// ScanResult is a label scan ready to pre-fill the add-medication form
type ScanResult struct {
	Draft      scanning.MedicationDraft `json:"draft"`
	LabelImage string                   `json:"labelImage,omitempty"`
}

// Reminder is a pending notification for a medication
type Reminder struct {
	MedicationID string    `json:"medicationId"`
	Kind         string    `json:"kind"` // "daily" or "refill"
	Title        string    `json:"title"`
	Message      string    `json:"message"`
	At           time.Time `json:"at"`
}
