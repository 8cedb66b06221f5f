package workbook

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/swappy/picora/internal/booking"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const (
	SheetGuests    = "Guests"
	SheetSettings  = "Settings"
	SheetTimeSlots = "Time Slots"
)

// ErrUnreadableWorkbook wraps failures to open the workbook stream.
var ErrUnreadableWorkbook = errors.New("workbook: unreadable input")

// ImporterConfig describes the dependencies of an Importer.
type ImporterConfig struct {
	Logger *zap.Logger
}

// Importer maps the reference-data workbook onto booking records.
type Importer struct {
	logger *zap.Logger
}

// Skipped counts rows that contributed nothing.
type Skipped struct {
	Guests    int
	TimeSlots int
}

// Result is the normalized content of one workbook.
type Result struct {
	Batch   booking.ImportBatch
	Skipped Skipped
}

func NewImporter(cfg ImporterConfig) *Importer {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{logger: logger}
}

// Read parses the workbook in source. Only an unreadable source fails the call;
// absent sheets yield empty sections and bad rows are skipped.
func (i *Importer) Read(ctx context.Context, source io.Reader) (Result, error) {
	file, err := excelize.OpenReader(source)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrUnreadableWorkbook, err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			i.logger.Warn("workbook close failed", zap.Error(closeErr))
		}
	}()

	var result Result
	result.Batch.Guests, result.Skipped.Guests = i.readGuests(file)
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	result.Batch.Photographers, result.Batch.Occasions = i.readSettings(file)
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	result.Batch.TimeSlots, result.Skipped.TimeSlots = i.readTimeSlots(file)

	i.logger.Info("workbook read",
		zap.Int("guests", len(result.Batch.Guests)),
		zap.Int("guests_skipped", result.Skipped.Guests),
		zap.Int("photographers", len(result.Batch.Photographers)),
		zap.Int("occasions", len(result.Batch.Occasions)),
		zap.Int("time_slots", len(result.Batch.TimeSlots)),
		zap.Int("time_slots_skipped", result.Skipped.TimeSlots))
	return result, nil
}

func (i *Importer) openSheet(file *excelize.File, name string) *sheetReader {
	reader, found, err := newSheetReader(file, name)
	if err != nil {
		i.logger.Warn("workbook sheet unreadable", zap.String("sheet", name), zap.Error(err))
		return nil
	}
	if !found {
		i.logger.Info("workbook sheet absent", zap.String("sheet", name))
		return nil
	}
	return reader
}

func (i *Importer) readGuests(file *excelize.File) ([]booking.Guest, int) {
	sheet := i.openSheet(file, SheetGuests)
	if sheet == nil {
		return nil, 0
	}
	guests := make([]booking.Guest, 0, sheet.rowCount())
	skipped := 0
	for row := 1; row < sheet.rowCount(); row++ {
		cabin, err := i.cabinText(sheet, row)
		if err != nil {
			i.logRowError(SheetGuests, row, err)
			skipped++
			continue
		}
		name := strings.TrimSpace(sheet.text(row, 1))
		if cabin == "" || name == "" {
			skipped++
			continue
		}
		guests = append(guests, booking.Guest{Cabin: cabin, Name: name})
	}
	return guests, skipped
}

func (i *Importer) cabinText(sheet *sheetReader, row int) (string, error) {
	value, isNumber, err := sheet.number(row, 0)
	if err != nil {
		return "", err
	}
	if isNumber {
		return strconv.FormatInt(int64(value), 10), nil
	}
	return strings.TrimSpace(sheet.text(row, 0)), nil
}

func (i *Importer) readSettings(file *excelize.File) ([]string, []string) {
	sheet := i.openSheet(file, SheetSettings)
	if sheet == nil {
		return nil, nil
	}
	return settingsColumn(sheet, 0), settingsColumn(sheet, 1)
}

func settingsColumn(sheet *sheetReader, column int) []string {
	values := make([]string, 0, sheet.rowCount())
	for row := 1; row < sheet.rowCount(); row++ {
		value := sheet.text(row, column)
		if strings.TrimSpace(value) == "" {
			continue
		}
		values = append(values, value)
	}
	return values
}

func (i *Importer) readTimeSlots(file *excelize.File) ([]booking.TimeSlot, int) {
	sheet := i.openSheet(file, SheetTimeSlots)
	if sheet == nil {
		return nil, 0
	}
	slots := make([]booking.TimeSlot, 0, sheet.rowCount())
	skipped := 0
	for row := 1; row < sheet.rowCount(); row++ {
		slot, err := slotFromRow(sheet, row)
		if err != nil {
			i.logRowError(SheetTimeSlots, row, err)
			skipped++
			continue
		}
		if strings.TrimSpace(slot.Date) == "" || strings.TrimSpace(slot.Time) == "" {
			skipped++
			continue
		}
		slots = append(slots, slot)
	}
	return slots, skipped
}

func slotFromRow(sheet *sheetReader, row int) (booking.TimeSlot, error) {
	date := sheet.text(row, 0)
	isDate, err := sheet.dateFormatted(row, 0)
	if err != nil {
		return booking.TimeSlot{}, err
	}
	if isDate {
		serial, isNumber, err := sheet.number(row, 0)
		if err != nil {
			return booking.TimeSlot{}, err
		}
		if isNumber {
			instant, err := excelize.ExcelDateToTime(serial, false)
			if err != nil {
				return booking.TimeSlot{}, fmt.Errorf("date serial %v: %w", serial, err)
			}
			date = instant.Format(booking.SlotDateLayout)
		}
	}
	return booking.TimeSlot{Date: date, Time: sheet.text(row, 1)}, nil
}

func (i *Importer) logRowError(sheet string, row int, err error) {
	i.logger.Warn("workbook row skipped",
		zap.String("sheet", sheet),
		zap.Int("row", row+1),
		zap.Error(err))
}
