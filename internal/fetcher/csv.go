package fetcher

import (
	"bufio"
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

// Rows is a header-first tabular row source shared by the CSV and XLSX readers.
type Rows interface {
	// Header returns the first row of the source.
	Header() []string
	// Next returns the next data row, or io.EOF when the source is exhausted.
	Next() ([]string, error)
}

// CSVOptions configures the CSV reader.
type CSVOptions struct {
	Delimiter  rune // default ','
	Comment    rune // comment character (0 = none)
	LazyQuotes bool
	TrimSpace  bool
}

// CSVRows reads a delimited file whose first record is the header.
type CSVRows struct {
	reader *csv.Reader
	header []string
	trim   bool
}

// NewCSVRows reads the header record from r and returns a row reader.
func NewCSVRows(r io.Reader, opts CSVOptions) (*CSVRows, error) {
	reader := csv.NewReader(r)
	if opts.Delimiter != 0 {
		reader.Comma = opts.Delimiter
	}
	if opts.Comment != 0 {
		reader.Comment = opts.Comment
	}
	reader.LazyQuotes = opts.LazyQuotes
	reader.FieldsPerRecord = -1 // allow variable fields
	reader.ReuseRecord = false

	header, err := reader.Read()
	if err == io.EOF {
		return nil, eris.New("csv: empty input, no header row")
	}
	if err != nil {
		return nil, eris.Wrap(err, "csv: read header")
	}
	c := &CSVRows{reader: reader, header: header, trim: opts.TrimSpace}
	c.trimRecord(c.header)
	return c, nil
}

// Header returns the header record.
func (c *CSVRows) Header() []string {
	return c.header
}

// Next returns the next record or io.EOF.
func (c *CSVRows) Next() ([]string, error) {
	record, err := c.reader.Read()
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		return nil, eris.Wrap(err, "csv: read row")
	}
	c.trimRecord(record)
	return record, nil
}

func (c *CSVRows) trimRecord(record []string) {
	if !c.trim {
		return
	}
	for i, field := range record {
		record[i] = strings.TrimSpace(field)
	}
}

// SniffDelimiter peeks at the first line of br and returns '|' when the line
// is pipe-delimited (Census reference files), '\t' for tab-separated files,
// and ',' otherwise.
func SniffDelimiter(br *bufio.Reader) rune {
	line, _ := br.Peek(4096)
	if i := strings.IndexByte(string(line), '\n'); i >= 0 {
		line = line[:i]
	}
	first := string(line)
	switch {
	case strings.Count(first, "|") > strings.Count(first, ","):
		return '|'
	case strings.Count(first, "\t") > strings.Count(first, ","):
		return '\t'
	default:
		return ','
	}
}

// Columns maps normalized header names to their positions.
type Columns map[string]int

// IndexColumns builds a Columns index. Names are lower-cased and trimmed and a
// leading UTF-8 byte order mark is dropped.
func IndexColumns(header []string) Columns {
	cols := make(Columns, len(header))
	for i, name := range header {
		key := normalizeColumn(name)
		if _, dup := cols[key]; !dup {
			cols[key] = i
		}
	}
	return cols
}

func normalizeColumn(name string) string {
	return strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
}

// Lookup returns the position of a column.
func (c Columns) Lookup(name string) (int, bool) {
	i, ok := c[normalizeColumn(name)]
	return i, ok
}

// Require returns the positions of all named columns, or an error naming the
// first one that is missing.
func (c Columns) Require(names ...string) ([]int, error) {
	idx := make([]int, len(names))
	for i, name := range names {
		pos, ok := c.Lookup(name)
		if !ok {
			return nil, eris.Errorf("missing required column %q", name)
		}
		idx[i] = pos
	}
	return idx, nil
}

// Field returns row[idx] trimmed, or "" when idx is out of range.
func Field(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
