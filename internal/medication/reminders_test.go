package medication

import (
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("UpcomingReminders", func() {
	var (
		db        *mockDB
		timeSrc   *mockTimeSource
		service   *Service
		reminders []Reminder
		err       error
	)

	BeforeEach(func() {
		db = newMockDB()
		timeSrc = &mockTimeSource{now: time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)}
		service = NewServiceWithDeps(db, newMockScanner(), newMockStorage(), &mockIDGenerator{id: "id"}, timeSrc)
		service.SetLocation(time.UTC)
	})

	JustBeforeEach(func() {
		reminders, err = service.UpcomingReminders("alice")
	})

	When("a daily reminder is later today", func() {
		BeforeEach(func() {
			db.put(&Medication{
				ID: "m1", UserID: "alice", Name: "Aspirin",
				DailyReminder: true, ReminderTime: timePtr(time.Date(2024, 1, 15, 18, 30, 0, 0, time.UTC)),
			})
		})

		It("should fire at the reminder time", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(reminders).To(ConsistOf(Reminder{
				MedicationID: "m1",
				Kind:         ReminderDaily,
				Title:        "Medication Reminder",
				Message:      "Time to take Aspirin!",
				At:           time.Date(2024, 1, 15, 18, 30, 0, 0, time.UTC),
			}))
		})
	})

	When("today's daily reminder has passed", func() {
		BeforeEach(func() {
			db.put(&Medication{
				ID: "m1", UserID: "alice", Name: "Aspirin",
				DailyReminder: true, ReminderTime: timePtr(time.Date(2024, 1, 3, 8, 0, 0, 0, time.UTC)),
			})
		})

		It("should fire at the same time tomorrow", func() {
			Expect(reminders).To(HaveLen(1))
			Expect(reminders[0].At).To(Equal(time.Date(2024, 1, 16, 8, 0, 0, 0, time.UTC)))
		})
	})

	When("a refill date is in the future", func() {
		BeforeEach(func() {
			db.put(&Medication{
				ID: "m1", UserID: "alice", Name: "Lisinopril",
				RefillReminder: true, RefillDate: timePtr(time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC)),
			})
		})

		It("should fire at ten in the morning of that day", func() {
			Expect(reminders).To(ConsistOf(Reminder{
				MedicationID: "m1",
				Kind:         ReminderRefill,
				Title:        "Refill Reminder",
				Message:      "Time to get more Lisinopril!",
				At:           time.Date(2024, 1, 20, 10, 0, 0, 0, time.UTC),
			}))
		})
	})

	When("the refill date has passed", func() {
		BeforeEach(func() {
			db.put(&Medication{
				ID: "m1", UserID: "alice", Name: "Lisinopril",
				RefillReminder: true, RefillDate: timePtr(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)),
			})
		})

		It("should not schedule it", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(reminders).To(BeEmpty())
		})
	})

	When("reminders are turned off", func() {
		BeforeEach(func() {
			db.put(&Medication{
				ID: "m1", UserID: "alice", Name: "Aspirin",
				ReminderTime: timePtr(time.Date(2024, 1, 15, 18, 0, 0, 0, time.UTC)),
				RefillDate:   timePtr(time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC)),
			})
		})

		It("should not schedule anything", func() {
			Expect(reminders).To(BeEmpty())
		})
	})

	When("there are several reminders", func() {
		BeforeEach(func() {
			db.put(&Medication{
				ID: "refill", UserID: "alice", Name: "Lisinopril",
				RefillReminder: true, RefillDate: timePtr(time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC)),
			})
			db.put(&Medication{
				ID: "daily", UserID: "alice", Name: "Aspirin",
				DailyReminder: true, ReminderTime: timePtr(time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)),
			})
		})

		It("should order them by time", func() {
			Expect(reminders).To(HaveLen(2))
			Expect(reminders[0].MedicationID).To(Equal("daily"))
			Expect(reminders[1].MedicationID).To(Equal("refill"))
		})
	})

	When("the database fails", func() {
		BeforeEach(func() {
			db.listErr = errors.New("database error")
		})

		It("returns the error", func() {
			Expect(err).To(MatchError(db.listErr))
		})
	})
})
