// Package report renders ZIP -> county results as CSV.
package report

import (
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/zipcounty/internal/zipcode"
)

// Header is the report's column header.
var Header = []string{"zip", "county_and_state"}

// NotAvailable is written for ZIPs no source resolved.
const NotAvailable = "N/A"

// Separator joins multiple county labels in one cell.
const Separator = "; "

// Row is one report line.
type Row struct {
	ZIP      string
	Counties string
}

// BuildRows returns one row per input ZIP, in input order and including
// duplicates. Labels are sorted and joined; unresolved ZIPs get "N/A".
func BuildRows(zips []string, m zipcode.Mapping) []Row {
	rows := make([]Row, len(zips))
	for i, zip := range zips {
		cell := NotAvailable
		if labels := m.Labels(zip); len(labels) > 0 {
			cell = strings.Join(labels, Separator)
		}
		rows[i] = Row{ZIP: zip, Counties: cell}
	}
	return rows
}

// Write encodes the header and rows as CSV.
func Write(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return eris.Wrap(err, "report: write header")
	}
	for _, r := range rows {
		if err := cw.Write([]string{r.ZIP, r.Counties}); err != nil {
			return eris.Wrapf(err, "report: write row %s", r.ZIP)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return eris.Wrap(err, "report: flush")
	}
	return nil
}

// WriteFile writes rows to path, or to stdout when path is empty. A file is
// closed on every return path; stdout never is.
func WriteFile(path string, rows []Row) (err error) {
	if path == "" {
		return Write(os.Stdout, rows)
	}

	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "report: create %s", path)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = eris.Wrapf(cerr, "report: close %s", path)
		}
	}()

	return Write(f, rows)
}

// Entry is a parsed report line: a ZIP and its set of county labels.
type Entry struct {
	ZIP      string
	Counties []string
}

// Parse reads a report written by Write. "N/A" parses to an empty label set.
func Parse(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	records, err := cr.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "report: parse")
	}
	if len(records) == 0 {
		return nil, eris.New("report: parse: missing header")
	}
	if len(records[0]) != len(Header) || records[0][0] != Header[0] || records[0][1] != Header[1] {
		return nil, eris.Errorf("report: parse: unexpected header %v", records[0])
	}

	entries := make([]Entry, 0, len(records)-1)
	for _, rec := range records[1:] {
		e := Entry{ZIP: rec[0]}
		if rec[1] != NotAvailable && rec[1] != "" {
			e.Counties = strings.Split(rec[1], Separator)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
