// Package sheet reads spreadsheet uploads into header-keyed rows.
package sheet

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/cases"
)

// ErrEmpty is returned when the workbook has no sheet or no header row.
var ErrEmpty = errors.New("sheet: workbook has no header row")

var fold = cases.Fold()

// Row maps folded header names to cell values.
type Row map[string]string

// Get looks up a column by header name, ignoring case.
func (r Row) Get(header string) string {
	return r[Header(header)]
}

// Header folds a header for comparison.
func Header(s string) string {
	return fold.String(strings.TrimSpace(s))
}

// Read parses the first sheet of an xlsx workbook. The first row is the header;
// fully blank rows are skipped.
func Read(r io.Reader) ([]Row, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("sheet: open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	names := f.GetSheetList()
	if len(names) == 0 {
		return nil, ErrEmpty
	}
	grid, err := f.GetRows(names[0])
	if err != nil {
		return nil, fmt.Errorf("sheet: read %s: %w", names[0], err)
	}
	if len(grid) == 0 {
		return nil, ErrEmpty
	}

	headers := make([]string, len(grid[0]))
	for i, h := range grid[0] {
		headers[i] = Header(h)
	}

	rows := make([]Row, 0, len(grid)-1)
	for _, cells := range grid[1:] {
		row := make(Row, len(headers))
		blank := true
		for i, h := range headers {
			if h == "" {
				continue
			}
			var v string
			if i < len(cells) {
				v = strings.TrimSpace(cells[i])
			}
			if v != "" {
				blank = false
			}
			row[h] = v
		}
		if !blank {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// Write renders header plus rows as an xlsx workbook. Used by exports and fixtures.
func Write(w io.Writer, header []string, rows [][]string) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheetName := f.GetSheetName(0)
	all := append([][]string{header}, rows...)
	for i, values := range all {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		row := make([]any, len(values))
		for j, v := range values {
			row[j] = v
		}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return fmt.Errorf("sheet: write row %d: %w", i+1, err)
		}
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("sheet: write workbook: %w", err)
	}
	return nil
}
