package fetcher

import (
	"io"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// XLSXOptions configures the XLSX reader.
type XLSXOptions struct {
	SheetIndex int    // default 0
	SheetName  string // if set, overrides SheetIndex
	SkipRows   int    // rows above the header to skip (titles, notes)
}

// SliceRows serves an in-memory table through the Rows interface. The first
// row is the header.
type SliceRows struct {
	header []string
	rows   [][]string
	pos    int
}

// NewSliceRows wraps a table whose first row is the header.
func NewSliceRows(table [][]string) (*SliceRows, error) {
	if len(table) == 0 {
		return nil, eris.New("table has no header row")
	}
	return &SliceRows{header: table[0], rows: table[1:]}, nil
}

// Header returns the header row.
func (s *SliceRows) Header() []string {
	return s.header
}

// Next returns the next row or io.EOF.
func (s *SliceRows) Next() ([]string, error) {
	if s.pos >= len(s.rows) {
		return nil, io.EOF
	}
	row := s.rows[s.pos]
	s.pos++
	return row, nil
}

// ReadXLSX reads one sheet of an XLSX workbook and returns all rows below
// SkipRows as string slices.
func ReadXLSX(path string, opts XLSXOptions) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open file")
	}

	sheet, err := getSheet(f, opts)
	if err != nil {
		return nil, err
	}

	var rows [][]string
	for i, row := range sheet.Rows {
		if i < opts.SkipRows || row == nil {
			continue
		}
		rows = append(rows, rowToStrings(row))
	}
	return rows, nil
}

// NewXLSXRows opens a workbook sheet as a Rows source.
func NewXLSXRows(path string, opts XLSXOptions) (*SliceRows, error) {
	table, err := ReadXLSX(path, opts)
	if err != nil {
		return nil, err
	}
	rows, err := NewSliceRows(table)
	if err != nil {
		return nil, eris.Wrapf(err, "xlsx: %s", path)
	}
	return rows, nil
}

func getSheet(f *xlsx.File, opts XLSXOptions) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		sheet, ok := f.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("xlsx: sheet %q not found", opts.SheetName)
		}
		return sheet, nil
	}

	if opts.SheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("xlsx: sheet index %d out of range (file has %d sheets)", opts.SheetIndex, len(f.Sheets))
	}

	return f.Sheets[opts.SheetIndex], nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}
