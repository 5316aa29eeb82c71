package main

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// csvFixture builds a CSV payload padded past the minimum size check.
func csvFixture(t *testing.T, rows [][]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	for _, row := range rows {
		for i, cell := range row {
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.WriteString(cell)
		}
		buf.WriteByte('\n')
	}
	for buf.Len() < minFileSize {
		buf.WriteString("pad,pad\n")
	}
	return buf.Bytes()
}

func xlsxFixture(t *testing.T, build func(f *excelize.File)) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	build(f)
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestLoadWorkbookRejectsInvalidExtension(t *testing.T) {
	_, _, err := LoadWorkbook(make([]byte, 2048), "notes.txt")
	assert.ErrorIs(t, err, ErrInvalidFileType)

	_, _, err = LoadWorkbook(make([]byte, 2048), "no-extension")
	assert.ErrorIs(t, err, ErrInvalidFileType)
}

func TestLoadWorkbookRejectsBadSizes(t *testing.T) {
	_, _, err := LoadWorkbook(make([]byte, 10), "tiny.xlsx")
	assert.ErrorIs(t, err, ErrFileTooSmall)

	_, _, err = LoadWorkbook(make([]byte, maxFileSize+1), "huge.csv")
	assert.ErrorIs(t, err, ErrFileTooLarge)
}

func TestLoadWorkbookRejectsCorruptedArchive(t *testing.T) {
	junk := bytes.Repeat([]byte("not a zip archive "), 100)
	_, _, err := LoadWorkbook(junk, "broken.xlsx")
	assert.ErrorIs(t, err, ErrParseFailure)
}

func TestLoadWorkbookCSV(t *testing.T) {
	data := csvFixture(t, [][]string{
		{"Name", "Amount"},
		{"Alice", "100"},
		{"Bob", "250.5"},
	})
	grid, sheet, err := LoadWorkbook(data, "report.csv")
	require.NoError(t, err)
	assert.Equal(t, "Sheet1", sheet)
	require.GreaterOrEqual(t, len(grid), 3)
	assert.Equal(t, []string{"Name", "Amount"}, grid.Headers())
	assert.Equal(t, TextValue("Alice"), grid.CellAt(1, 0))
	assert.Equal(t, NumberValue(250.5), grid.CellAt(2, 1))
}

func TestLoadWorkbookCSVTypesCells(t *testing.T) {
	data := csvFixture(t, [][]string{
		{"When", "Amount"},
		{"45000", "0.5"},
	})
	grid, _, err := LoadWorkbook(data, "dates.csv")
	require.NoError(t, err)

	// numeric CSV text is typed like any other source, including the
	// serial-date interpretation
	v := grid.CellAt(1, 0)
	require.Equal(t, CellTime, v.Kind)
	assert.Equal(t, "2023-03-15", v.Time.UTC().Format("2006-01-02"))
	assert.Equal(t, NumberValue(0.5), grid.CellAt(1, 1))
}

func TestLoadWorkbookXLSX(t *testing.T) {
	data := xlsxFixture(t, func(f *excelize.File) {
		f.SetCellValue("Sheet1", "A1", "Item")
		f.SetCellValue("Sheet1", "B1", "Qty")
		f.SetCellValue("Sheet1", "A2", "widget")
		f.SetCellValue("Sheet1", "B2", 7)
	})
	grid, sheet, err := LoadWorkbook(data, "stock.xlsx")
	require.NoError(t, err)
	assert.Equal(t, "Sheet1", sheet)
	assert.Equal(t, []string{"Item", "Qty"}, grid.Headers())
	assert.Equal(t, TextValue("widget"), grid.CellAt(1, 0))
	assert.Equal(t, NumberValue(7), grid.CellAt(1, 1))
}

func TestLoadWorkbookXLSXSerialDates(t *testing.T) {
	data := xlsxFixture(t, func(f *excelize.File) {
		f.SetCellValue("Sheet1", "A1", "When")
		f.SetCellValue("Sheet1", "A2", 45000)
	})
	grid, _, err := LoadWorkbook(data, "dates.xlsx")
	require.NoError(t, err)
	v := grid.CellAt(1, 0)
	require.Equal(t, CellTime, v.Kind)
	assert.Equal(t, "2023-03-15", v.Time.UTC().Format("2006-01-02"))
}

func TestLoadWorkbookXLSXBooleans(t *testing.T) {
	data := xlsxFixture(t, func(f *excelize.File) {
		f.SetCellValue("Sheet1", "A1", "Flag")
		f.SetCellValue("Sheet1", "B1", "Qty")
		f.SetCellValue("Sheet1", "A2", true)
		f.SetCellValue("Sheet1", "B2", 1)
		f.SetCellValue("Sheet1", "A3", false)
		f.SetCellValue("Sheet1", "B3", 0)
	})
	grid, _, err := LoadWorkbook(data, "flags.xlsx")
	require.NoError(t, err)

	assert.Equal(t, BoolValue(true), grid.CellAt(1, 0))
	assert.Equal(t, BoolValue(false), grid.CellAt(2, 0))
	// numeric 1 and 0 in the same shape stay numbers
	assert.Equal(t, NumberValue(1), grid.CellAt(1, 1))
	assert.Equal(t, NumberValue(0), grid.CellAt(2, 1))
}

func TestLoadWorkbookPicksDensestSheet(t *testing.T) {
	data := xlsxFixture(t, func(f *excelize.File) {
		f.SetCellValue("Sheet1", "A1", "lonely")
		f.NewSheet("Big")
		f.SetCellValue("Big", "A1", "Name")
		f.SetCellValue("Big", "B1", "Score")
		for i := 2; i <= 20; i++ {
			f.SetCellValue("Big", fmt.Sprintf("A%d", i), fmt.Sprintf("row%d", i))
			f.SetCellValue("Big", fmt.Sprintf("B%d", i), i)
		}
	})
	grid, sheet, err := LoadWorkbook(data, "multi.xlsx")
	require.NoError(t, err)
	assert.Equal(t, "Big", sheet)
	assert.Equal(t, 20, len(grid))
}

func TestBuildGridTrimsTrailingEmptiness(t *testing.T) {
	grid := buildGrid([][]any{
		{"Name", "Amount", "", nil},
		{"", "N/A", nil, nil},
		{"Alice", 10.0, nil, ""},
		{nil, nil, nil, nil},
	})
	// the all-empty tail row and the two empty tail columns are gone
	require.Equal(t, 3, len(grid))
	assert.Equal(t, 2, len(grid[0]))
	assert.Equal(t, 2, len(grid[2]))
	// the interior sentinel-only row survives, as empty cells
	assert.True(t, grid.CellAt(1, 1).IsEmpty())
	assert.Equal(t, NumberValue(10), grid.CellAt(2, 1))
}

func TestBuildGridAllEmpty(t *testing.T) {
	grid := buildGrid([][]any{
		{nil, ""},
		{"null", "  "},
	})
	assert.Equal(t, 0, len(grid))
}

func TestRawFromString(t *testing.T) {
	assert.Equal(t, 42.5, rawFromString("42.5"))
	assert.Equal(t, "hello", rawFromString("hello"))
	assert.Equal(t, "", rawFromString("   "))
	assert.Equal(t, "12 men", rawFromString("12 men"))
}
