package main

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// OpenDocument spreadsheets are ZIP containers with the sheet data in
// content.xml. The reader below extracts typed cell values from it; no
// styles, formulas or merged ranges.

type odsContent struct {
	Tables []odsTable `xml:"body>spreadsheet>table"`
}

type odsTable struct {
	Name string   `xml:"name,attr"`
	Rows []odsRow `xml:"table-row"`
}

type odsRow struct {
	Repeated int       `xml:"number-rows-repeated,attr"`
	Cells    []odsCell `xml:"table-cell"`
}

type odsCell struct {
	Repeated  int      `xml:"number-columns-repeated,attr"`
	ValueType string   `xml:"value-type,attr"`
	Value     string   `xml:"value,attr"`
	BoolValue string   `xml:"boolean-value,attr"`
	DateValue string   `xml:"date-value,attr"`
	Text      []string `xml:"p"`
}

// Repeat runs bounded to keep hostile number-*-repeated attributes from
// exploding the grid; trailing filler past the bound is dropped anyway by
// the loader's trimming pass.
const odsMaxRepeat = 1000

func decodeODS(data []byte) ([]rawSheet, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	content, err := readZipEntry(zr, "content.xml")
	if err != nil {
		return nil, err
	}

	var doc odsContent
	if err := xml.Unmarshal(content, &doc); err != nil {
		return nil, fmt.Errorf("content.xml: %w", err)
	}

	var sheets []rawSheet
	for _, table := range doc.Tables {
		var rows [][]any
		width := 0
		for _, row := range rows2(table.Rows) {
			cells := expandRow(row)
			rows = append(rows, cells)
			if len(cells) > width {
				width = len(cells)
			}
		}
		sheets = append(sheets, rawSheet{
			name:          table.Name,
			rows:          rows,
			declaredCells: extractedCells(len(rows), width),
		})
	}
	return sheets, nil
}

// rows2 expands number-rows-repeated, skipping repeated fully-empty rows.
func rows2(rows []odsRow) []odsRow {
	var out []odsRow
	for _, r := range rows {
		n := r.Repeated
		if n < 1 {
			n = 1
		}
		if n > odsMaxRepeat {
			n = odsMaxRepeat
		}
		if n > 1 && rowIsBlank(r) {
			n = 1
		}
		for i := 0; i < n; i++ {
			out = append(out, r)
		}
	}
	return out
}

func rowIsBlank(r odsRow) bool {
	for _, c := range r.Cells {
		if odsCellValue(c) != "" {
			return false
		}
	}
	return true
}

func expandRow(r odsRow) []any {
	var cells []any
	for _, c := range r.Cells {
		n := c.Repeated
		if n < 1 {
			n = 1
		}
		if n > odsMaxRepeat {
			n = odsMaxRepeat
		}
		v := odsCellValue(c)
		if v == "" && n > 1 {
			n = 1
		}
		for i := 0; i < n; i++ {
			cells = append(cells, v)
		}
	}
	return cells
}

// odsCellValue maps an ODF cell to a raw typed value using the
// office:value-type attribute, falling back to the paragraph text.
func odsCellValue(c odsCell) any {
	switch c.ValueType {
	case "float", "currency", "percentage":
		if f, err := strconv.ParseFloat(c.Value, 64); err == nil {
			return f
		}
	case "boolean":
		return c.BoolValue == "true"
	case "date":
		for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, c.DateValue); err == nil {
				return t
			}
		}
	}
	text := strings.Join(c.Text, "\n")
	if strings.TrimSpace(text) == "" {
		return ""
	}
	return text
}

func readZipEntry(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		data, readErr := io.ReadAll(rc)
		closeErr := rc.Close()
		if readErr != nil {
			return nil, readErr
		}
		if closeErr != nil {
			return nil, closeErr
		}
		return data, nil
	}
	return nil, fmt.Errorf("%q not found in archive", name)
}
