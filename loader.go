package main

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	xlsb "github.com/TsubasaBE/go-xlsb/workbook"
	"github.com/shakinm/xlsReader/xls"
	"github.com/shakinm/xlsReader/xls/structure"
	"github.com/xuri/excelize/v2"
)

var (
	ErrInvalidFileType = errors.New("invalid file type")
	ErrFileTooLarge    = errors.New("file too large")
	ErrFileTooSmall    = errors.New("file too small")
	ErrNoSheetsFound   = errors.New("no sheets found")
	ErrParseFailure    = errors.New("parse failure")
	ErrExportFailure   = errors.New("export failure")
)

const (
	maxFileSize = 50 * 1024 * 1024
	minFileSize = 1024
)

var validExtensions = map[string]bool{
	".xlsx": true,
	".xls":  true,
	".xlsm": true,
	".xlsb": true,
	".csv":  true,
	".ods":  true,
}

// rawSheet is one worksheet before selection and normalization. Cells are
// nil, string, float64, bool or time.Time. declaredCells is the size of
// the sheet's bounding range, used to pick the most data-dense sheet.
type rawSheet struct {
	name          string
	rows          [][]any
	declaredCells int
}

// LoadWorkbook parses uploaded file bytes into a normalized Grid and
// returns the name of the selected sheet. It is a pure transform: the
// caller owns persistence and broadcast.
func LoadWorkbook(data []byte, fileName string) (Grid, string, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	if !validExtensions[ext] {
		return nil, "", fmt.Errorf("%w: %q", ErrInvalidFileType, ext)
	}
	if len(data) > maxFileSize {
		return nil, "", fmt.Errorf("%w: %.1fMB exceeds the 50MB limit", ErrFileTooLarge, float64(len(data))/1024/1024)
	}
	if len(data) < minFileSize {
		return nil, "", fmt.Errorf("%w: file looks empty or corrupted", ErrFileTooSmall)
	}

	var (
		sheets []rawSheet
		err    error
	)
	switch ext {
	case ".xlsx", ".xlsm":
		sheets, err = decodeXLSX(data)
	case ".xls":
		sheets, err = decodeXLS(data)
	case ".xlsb":
		sheets, err = decodeXLSB(data)
	case ".csv":
		sheets, err = decodeCSV(data)
	case ".ods":
		sheets, err = decodeODS(data)
	}
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrParseFailure, err)
	}
	if len(sheets) == 0 {
		return nil, "", ErrNoSheetsFound
	}

	best := sheets[0]
	for _, s := range sheets[1:] {
		if s.declaredCells > best.declaredCells {
			best = s
		}
	}
	return buildGrid(best.rows), best.name, nil
}

// buildGrid trims trailing all-empty rows, then drops columns that are
// empty at the tail of every remaining row, then normalizes each cell.
// Interior empty rows and columns are preserved.
func buildGrid(rows [][]any) Grid {
	lastRow := -1
	for i, row := range rows {
		for _, c := range row {
			if rawCellNonEmpty(c) {
				lastRow = i
				break
			}
		}
	}
	if lastRow < 0 {
		return Grid{}
	}
	rows = rows[:lastRow+1]

	lastCol := -1
	for _, row := range rows {
		for j := len(row) - 1; j >= 0; j-- {
			if rawCellNonEmpty(row[j]) {
				if j > lastCol {
					lastCol = j
				}
				break
			}
		}
	}

	grid := make(Grid, len(rows))
	for i, row := range rows {
		if len(row) > lastCol+1 {
			row = row[:lastCol+1]
		}
		cells := make([]Value, len(row))
		for j, c := range row {
			cells[j] = Normalize(c)
		}
		grid[i] = cells
	}
	return grid
}

// rawCellNonEmpty is the pre-normalization emptiness rule used for
// trimming: nil, blank/sentinel text and non-finite numbers are empty.
func rawCellNonEmpty(c any) bool {
	switch v := c.(type) {
	case nil:
		return false
	case string:
		trimmed := strings.TrimSpace(v)
		return trimmed != "" && !sentinelValues[trimmed]
	case float64:
		return !math.IsNaN(v) && !math.IsInf(v, 0)
	}
	return true
}

// rawFromString converts a raw cell string from a typed workbook format:
// parseable numbers become float64 so the serial-date heuristic can see
// them, everything else stays text.
func rawFromString(s string) any {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return ""
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return f
	}
	return s
}

func decodeXLSX(data []byte) ([]rawSheet, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var sheets []rawSheet
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("sheet %q: %w", name, err)
		}
		raw := make([][]any, len(rows))
		for i, row := range rows {
			cells := make([]any, len(row))
			for j, c := range row {
				cells[j] = xlsxRawCell(f, name, i, j, c)
			}
			raw[i] = cells
		}
		sheets = append(sheets, rawSheet{
			name:          name,
			rows:          raw,
			declaredCells: xlsxDeclaredCells(f, name, rows),
		})
	}
	return sheets, nil
}

// xlsxRawCell types one raw cell. Raw extraction renders booleans as
// "1"/"0", identical to genuine numbers, so exactly those two values get
// their stored cell type checked before the numeric fallback.
func xlsxRawCell(f *excelize.File, sheet string, row, col int, raw string) any {
	if raw == "1" || raw == "0" {
		if name, err := excelize.CoordinatesToCellName(col+1, row+1); err == nil {
			if ct, err := f.GetCellType(sheet, name); err == nil && ct == excelize.CellTypeBool {
				return raw == "1"
			}
		}
	}
	return rawFromString(raw)
}

// xlsxDeclaredCells sizes the sheet's declared "!ref"-style dimension,
// falling back to the extracted rows when the dimension is absent.
func xlsxDeclaredCells(f *excelize.File, name string, rows [][]string) int {
	dim, err := f.GetSheetDimension(name)
	if err == nil {
		if parts := strings.Split(dim, ":"); len(parts) == 2 {
			c1, r1, err1 := excelize.CellNameToCoordinates(parts[0])
			c2, r2, err2 := excelize.CellNameToCoordinates(parts[1])
			if err1 == nil && err2 == nil {
				return (r2 - r1 + 1) * (c2 - c1 + 1)
			}
		}
	}
	return extractedCells(len(rows), maxWidthStrings(rows))
}

func decodeXLS(data []byte) ([]rawSheet, error) {
	wb, err := xls.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	var sheets []rawSheet
	for i := 0; i < wb.GetNumberSheets(); i++ {
		sheet, err := wb.GetSheet(i)
		if err != nil || sheet == nil {
			continue
		}
		rows := sheet.GetRows()
		raw := make([][]any, len(rows))
		width := 0
		for r := range rows {
			cols := rows[r].GetCols()
			cells := make([]any, len(cols))
			for j, col := range cols {
				cells[j] = xlsCellValue(col)
			}
			raw[r] = cells
			if len(cols) > width {
				width = len(cols)
			}
		}
		sheets = append(sheets, rawSheet{
			name:          sheet.GetName(),
			rows:          raw,
			declaredCells: extractedCells(len(raw), width),
		})
	}
	return sheets, nil
}

// xlsCellValue maps a BIFF8 cell to a raw value. The reader exposes no
// kind discriminator, so a zero reading from GetFloat64/GetInt64 cannot
// be told apart from an absent value and collapses to empty.
func xlsCellValue(col structure.CellData) any {
	if s := col.GetString(); s != "" {
		return rawFromString(s)
	}
	if f := col.GetFloat64(); f != 0 {
		return f
	}
	if n := col.GetInt64(); n != 0 {
		return float64(n)
	}
	return ""
}

func decodeXLSB(data []byte) ([]rawSheet, error) {
	wb, err := xlsb.OpenReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	defer wb.Close()

	var sheets []rawSheet
	for i := range wb.Sheets() {
		ws, err := wb.Sheet(i + 1)
		if err != nil {
			return nil, err
		}
		var raw [][]any
		width := 0
		for row := range ws.Rows(false) {
			cells := make([]any, 0, len(row))
			for _, cell := range row {
				cells = append(cells, cell.V)
			}
			raw = append(raw, cells)
			if len(cells) > width {
				width = len(cells)
			}
		}
		if ws.Err != nil {
			return nil, fmt.Errorf("sheet %q: %w", ws.Name, ws.Err)
		}
		declared := extractedCells(len(raw), width)
		if ws.Dimension != nil {
			declared = ws.Dimension.H * ws.Dimension.W
		}
		sheets = append(sheets, rawSheet{name: ws.Name, rows: raw, declaredCells: declared})
	}
	return sheets, nil
}

func decodeCSV(data []byte) ([]rawSheet, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	raw := make([][]any, len(records))
	width := 0
	for i, rec := range records {
		cells := make([]any, len(rec))
		for j, c := range rec {
			cells[j] = rawFromString(c)
		}
		raw[i] = cells
		if len(rec) > width {
			width = len(rec)
		}
	}
	return []rawSheet{{name: "Sheet1", rows: raw, declaredCells: extractedCells(len(raw), width)}}, nil
}

func extractedCells(rows, cols int) int {
	if rows == 0 || cols == 0 {
		return 0
	}
	return rows * cols
}

func maxWidthStrings(rows [][]string) int {
	width := 0
	for _, r := range rows {
		if len(r) > width {
			width = len(r)
		}
	}
	return width
}
