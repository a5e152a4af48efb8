package backup

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/mx-space/console/internal/pkg/record"
	"github.com/xuri/excelize/v2"
)

const maxSheetNameLen = 31

// ErrCellTooLong is returned when a value does not fit in one worksheet cell.
var ErrCellTooLong = errors.New("value exceeds the worksheet cell limit")

// EncodeExcel writes a single-sheet workbook. The header row comes from the
// sorted keys of the first row; later rows are written against that header.
func EncodeExcel(collection string, rows []record.Record) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := sheetName(collection)
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return nil, fmt.Errorf("name sheet: %w", err)
	}

	if len(rows) > 0 {
		header := rows[0].Keys()
		headerCells := make([]any, 0, len(header))
		for _, key := range header {
			headerCells = append(headerCells, key)
		}
		if err := f.SetSheetRow(sheet, "A1", &headerCells); err != nil {
			return nil, fmt.Errorf("write header: %w", err)
		}
		for i, row := range rows {
			cells := make([]any, 0, len(header))
			for _, key := range header {
				value, err := excelCell(row[key])
				if err != nil {
					return nil, fmt.Errorf("row %d column %q: %w", i+1, key, err)
				}
				cells = append(cells, value)
			}
			cell, err := excelize.CoordinatesToCellName(1, i+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
				return nil, fmt.Errorf("write row %d: %w", i+1, err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("encode workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func excelCell(v record.Value) (any, error) {
	switch v.Kind() {
	case record.KindNull:
		return nil, nil
	case record.KindBool:
		b, _ := v.Bool()
		return b, nil
	case record.KindNumber:
		n, _ := v.Number()
		return n, nil
	default:
		text := v.Text()
		if n := utf8.RuneCountInString(text); n > excelize.TotalCellChars {
			return nil, fmt.Errorf("%w: %d > %d characters", ErrCellTooLong, n, excelize.TotalCellChars)
		}
		return text, nil
	}
}

// DecodeExcel reads the first sheet of a workbook. Boolean and numeric cells
// keep their type, everything else comes back as a string; empty cells are
// omitted.
func DecodeExcel(data []byte) ([]record.Record, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return []record.Record{}, nil
	}
	sheet := sheets[0]
	grid, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	rows := make([]record.Record, 0, len(grid))
	if len(grid) == 0 {
		return rows, nil
	}

	header := grid[0]
	for r, line := range grid[1:] {
		row := make(record.Record, len(header))
		for i, cell := range line {
			if i >= len(header) || header[i] == "" || cell == "" {
				continue
			}
			name, err := excelize.CoordinatesToCellName(i+1, r+2)
			if err != nil {
				return nil, err
			}
			cellType, err := f.GetCellType(sheet, name)
			if err != nil {
				return nil, fmt.Errorf("read cell %s: %w", name, err)
			}
			row[header[i]] = excelValue(cellType, cell)
		}
		if len(row) > 0 {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// excelValue maps a raw cell value to a row value using the stored cell type.
// Cells without an explicit type are numeric in the workbook format.
func excelValue(cellType excelize.CellType, raw string) record.Value {
	switch cellType {
	case excelize.CellTypeBool:
		if b, err := strconv.ParseBool(raw); err == nil {
			return record.Bool(b)
		}
	case excelize.CellTypeNumber, excelize.CellTypeUnset:
		if n, err := strconv.ParseFloat(raw, 64); err == nil {
			return record.Number(n)
		}
	}
	return record.String(raw)
}

func sheetName(collection string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '_'
		}
		return r
	}, strings.TrimSpace(collection))
	if name == "" {
		name = "data"
	}
	if len(name) > maxSheetNameLen {
		name = name[:maxSheetNameLen]
	}
	return name
}
