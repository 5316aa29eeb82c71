package main

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

const exportSheetName = "Sheet1"

// ExportGrid serializes the header row plus the currently visible data
// rows, so export always reflects active filters and search. It returns
// the download filename and the file bytes.
func ExportGrid(grid Grid, visible Grid, sourceName, format string) (string, []byte, error) {
	rows := Grid{}
	if len(grid) > 0 && len(grid[0]) > 0 {
		rows = append(rows, grid[0])
	}
	rows = append(rows, visible...)

	name := exportFileName(sourceName, format)
	switch format {
	case "csv":
		data, err := writeCSV(rows)
		if err != nil {
			return "", nil, fmt.Errorf("%w: %v", ErrExportFailure, err)
		}
		return name, data, nil
	case "xlsx":
		data, err := writeXLSX(rows)
		if err != nil {
			return "", nil, fmt.Errorf("%w: %v", ErrExportFailure, err)
		}
		return name, data, nil
	}
	return "", nil, fmt.Errorf("%w: unknown format %q", ErrExportFailure, format)
}

// exportFileName derives the download name from the original upload:
// extension replaced, "_export" suffix inserted before it.
func exportFileName(sourceName, format string) string {
	base := strings.TrimSuffix(sourceName, filepath.Ext(sourceName))
	if base == "" {
		base = "table"
	}
	return base + "_export." + format
}

func writeCSV(rows Grid) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	for _, row := range rows {
		record := make([]string, len(row))
		for i, cell := range row {
			record[i] = cell.String()
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeXLSX(rows Grid) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	for i, row := range rows {
		cells := make([]any, len(row))
		for j, cell := range row {
			switch cell.Kind {
			case CellNumber:
				cells[j] = cell.Num
			case CellBool:
				cells[j] = cell.Bool
			case CellTime:
				cells[j] = cell.Time
			default:
				cells[j] = cell.String()
			}
		}
		start, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(exportSheetName, start, &cells); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
