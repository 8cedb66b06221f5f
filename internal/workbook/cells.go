package workbook

import (
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// sheetReader reads cells of one sheet by zero-based row and column.
type sheetReader struct {
	file  *excelize.File
	sheet string
	rows  [][]string
}

func newSheetReader(file *excelize.File, sheet string) (*sheetReader, bool, error) {
	index, err := file.GetSheetIndex(sheet)
	if err != nil {
		return nil, false, err
	}
	if index < 0 {
		return nil, false, nil
	}
	rows, err := file.GetRows(sheet)
	if err != nil {
		return nil, false, err
	}
	return &sheetReader{file: file, sheet: sheet, rows: rows}, true, nil
}

func (r *sheetReader) rowCount() int {
	return len(r.rows)
}

// text returns the displayed value of the cell, or "" when it is absent.
func (r *sheetReader) text(row, column int) string {
	if row >= len(r.rows) || column >= len(r.rows[row]) {
		return ""
	}
	return r.rows[row][column]
}

func (r *sheetReader) cellName(row, column int) (string, error) {
	return excelize.CoordinatesToCellName(column+1, row+1)
}

// number returns the raw numeric value of the cell when it holds a number.
func (r *sheetReader) number(row, column int) (float64, bool, error) {
	name, err := r.cellName(row, column)
	if err != nil {
		return 0, false, err
	}
	cellType, err := r.file.GetCellType(r.sheet, name)
	if err != nil {
		return 0, false, err
	}
	switch cellType {
	case excelize.CellTypeUnset, excelize.CellTypeNumber:
	default:
		return 0, false, nil
	}
	raw, err := r.file.GetCellValue(r.sheet, name, excelize.Options{RawCellValue: true})
	if err != nil {
		return 0, false, err
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false, nil
	}
	return value, true, nil
}

// dateFormatted reports whether the cell's number format renders a date.
func (r *sheetReader) dateFormatted(row, column int) (bool, error) {
	name, err := r.cellName(row, column)
	if err != nil {
		return false, err
	}
	styleID, err := r.file.GetCellStyle(r.sheet, name)
	if err != nil {
		return false, err
	}
	if styleID == 0 {
		return false, nil
	}
	style, err := r.file.GetStyle(styleID)
	if err != nil {
		return false, err
	}
	if style.CustomNumFmt != nil {
		return isDateFormatCode(*style.CustomNumFmt), nil
	}
	return isBuiltInDateFormat(style.NumFmt), nil
}

func isBuiltInDateFormat(id int) bool {
	switch {
	case id >= 14 && id <= 22:
		return true
	case id >= 27 && id <= 36:
		return true
	case id >= 45 && id <= 47:
		return true
	case id >= 50 && id <= 58:
		return true
	default:
		return false
	}
}

// isDateFormatCode ignores quoted literals and bracketed sections such as colors or locales.
func isDateFormatCode(code string) bool {
	var inQuote, inBracket bool
	for _, char := range strings.ToLower(code) {
		switch {
		case char == '"':
			inQuote = !inQuote
		case inQuote:
		case char == '[':
			inBracket = true
		case char == ']':
			inBracket = false
		case inBracket:
		case char == 'd' || char == 'm' || char == 'y':
			return true
		}
	}
	return false
}
