package medication

import (
	"fmt"
	"slices"
	"time"
)

const (
	// ReminderDaily fires every day at the medication's reminder time
	ReminderDaily = "daily"
	// ReminderRefill fires once on the refill date
	ReminderRefill = "refill"

	refillHour = 10
)

// UpcomingReminders returns the next pending reminder of each kind for every
// medication of the user, ordered by when they fire
func (s *Service) UpcomingReminders(userID string) ([]Reminder, error) {
	meds, err := s.db.ListMedications(userID)
	if err != nil {
		return nil, fmt.Errorf("listing medications: %w", err)
	}

	now := s.timeSource.Now()
	reminders := make([]Reminder, 0)
	for _, m := range meds {
		if m.DailyReminder && m.ReminderTime != nil {
			reminders = append(reminders, Reminder{
				MedicationID: m.ID,
				Kind:         ReminderDaily,
				Title:        "Medication Reminder",
				Message:      fmt.Sprintf("Time to take %s!", m.Name),
				At:           nextDaily(*m.ReminderTime, now),
			})
		}
		if m.RefillReminder && m.RefillDate != nil {
			at := refillAt(*m.RefillDate, s.location)
			if at.After(now) {
				reminders = append(reminders, Reminder{
					MedicationID: m.ID,
					Kind:         ReminderRefill,
					Title:        "Refill Reminder",
					Message:      fmt.Sprintf("Time to get more %s!", m.Name),
					At:           at,
				})
			}
		}
	}

	slices.SortStableFunc(reminders, func(a, b Reminder) int {
		return a.At.Compare(b.At)
	})
	return reminders, nil
}

// nextDaily returns the first occurrence of the clock time of t that is after now
func nextDaily(t, now time.Time) time.Time {
	if t.After(now) {
		return t
	}
	n := now.In(t.Location())
	next := time.Date(n.Year(), n.Month(), n.Day(), t.Hour(), t.Minute(), t.Second(), 0, t.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// refillAt returns 10:00 on the refill date's calendar day in loc
func refillAt(date time.Time, loc *time.Location) time.Time {
	d := date.In(loc)
	return time.Date(d.Year(), d.Month(), d.Day(), refillHour, 0, 0, 0, loc)
}
