package medication

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"
)

const exportSheet = "Medications"

// ExportXLSX returns a workbook listing the user's medications, newest first
func (s *Service) ExportXLSX(userID string) ([]byte, error) {
	start := time.Now()

	meds, err := s.ListMedications(userID)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return nil, fmt.Errorf("naming sheet: %w", err)
	}

	headers := []string{
		"Name",
		"Dosage",
		"Dosage Form",
		"Instructions",
		"Frequency",
		"Daily Reminder",
		"Refill Date",
		"Added",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(exportSheet, cell, h)
	}

	for i, m := range meds {
		row := i + 2
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(exportSheet, cell, v)
		}

		write(1, m.Name)
		write(2, m.DosageAmount)
		write(3, m.DosageForm)
		write(4, m.Instructions)
		write(5, m.Frequency)
		if m.DailyReminder && m.ReminderTime != nil {
			write(6, m.ReminderTime.Format("15:04"))
		}
		if m.RefillReminder && m.RefillDate != nil {
			write(7, m.RefillDate.Format("2006-01-02"))
		}
		write(8, m.CreatedAt.Format("2006-01-02"))
	}

	_ = f.SetColWidth(exportSheet, "A", "A", 28)
	_ = f.SetColWidth(exportSheet, "B", "C", 14)
	_ = f.SetColWidth(exportSheet, "D", "D", 48)
	_ = f.SetColWidth(exportSheet, "E", "H", 16)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	slog.Info("export.xlsx.ok",
		"user_id", userID,
		"rows", len(meds),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}
