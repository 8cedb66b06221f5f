package workbook

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/swappy/picora/internal/booking"
	"github.com/xuri/excelize/v2"
)

const (
	SheetAppointments = "Appointments"
	exportDateLayout  = "Jan 02, 2006"
	exportTimeLayout  = "03:04 PM"
	errorRowPrefix    = "Error in row: "
)

// ExportHeader is the first row of the appointments sheet.
var ExportHeader = []string{"Appointment Number", "Cabin Number", "Guest", "Photographer", "Occasion", "Date", "Time", "Status"}

// ErrMissingAppointmentsSheet indicates that an export workbook has no appointments sheet.
var ErrMissingAppointmentsSheet = errors.New("workbook: appointments sheet not found")

// ExportedRow is one data row of an appointments export, as displayed text.
type ExportedRow struct {
	AppointmentNumber string
	CabinNumber       string
	Guest             string
	Photographer      string
	Occasion          string
	Date              string
	Time              string
	Status            string
	Error             string
}

// WriteAppointments writes one row per appointment, deleted ones included, to destination.
// A row that cannot be written is replaced by a single error cell.
func WriteAppointments(destination io.Writer, appointments []booking.Appointment, location *time.Location) error {
	if location == nil {
		location = time.Local
	}
	file := excelize.NewFile()
	defer file.Close()

	if err := file.SetSheetName("Sheet1", SheetAppointments); err != nil {
		return fmt.Errorf("workbook: name sheet: %w", err)
	}
	if err := file.SetSheetRow(SheetAppointments, "A1", &ExportHeader); err != nil {
		return fmt.Errorf("workbook: write header: %w", err)
	}

	for index, appointment := range appointments {
		cell, err := excelize.CoordinatesToCellName(1, index+2)
		if err != nil {
			return fmt.Errorf("workbook: row %d: %w", index+2, err)
		}
		if err := file.SetSheetRow(SheetAppointments, cell, appointmentRow(appointment, location)); err != nil {
			if fallbackErr := file.SetCellStr(SheetAppointments, cell, errorRowPrefix+err.Error()); fallbackErr != nil {
				return fmt.Errorf("workbook: row %d: %w", index+2, fallbackErr)
			}
		}
	}

	if _, err := file.WriteTo(destination); err != nil {
		return fmt.Errorf("workbook: write: %w", err)
	}
	return nil
}

func appointmentRow(appointment booking.Appointment, location *time.Location) *[]any {
	scheduled := appointment.ScheduledAt().In(location)
	row := []any{
		appointment.AppointmentNumber,
		appointment.CabinNumber,
		appointment.GuestName,
		appointment.Photographer,
		appointment.Occasion,
		scheduled.Format(exportDateLayout),
		scheduled.Format(exportTimeLayout),
		string(appointment.Status()),
	}
	return &row
}

// ReadAppointmentsExport reads back a workbook produced by WriteAppointments.
func ReadAppointmentsExport(source io.Reader) ([]ExportedRow, error) {
	file, err := excelize.OpenReader(source)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableWorkbook, err)
	}
	defer file.Close()

	sheet, found, err := newSheetReader(file, SheetAppointments)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrMissingAppointmentsSheet
	}

	rows := make([]ExportedRow, 0, sheet.rowCount())
	for row := 1; row < sheet.rowCount(); row++ {
		first := sheet.text(row, 0)
		if strings.HasPrefix(first, errorRowPrefix) {
			rows = append(rows, ExportedRow{Error: strings.TrimPrefix(first, errorRowPrefix)})
			continue
		}
		rows = append(rows, ExportedRow{
			AppointmentNumber: first,
			CabinNumber:       sheet.text(row, 1),
			Guest:             sheet.text(row, 2),
			Photographer:      sheet.text(row, 3),
			Occasion:          sheet.text(row, 4),
			Date:              sheet.text(row, 5),
			Time:              sheet.text(row, 6),
			Status:            sheet.text(row, 7),
		})
	}
	return rows, nil
}
