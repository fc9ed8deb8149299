package crosswalk

import (
	"bufio"
	"context"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/zipcounty/internal/fetcher"
	"github.com/sells-group/zipcounty/internal/fips"
	"github.com/sells-group/zipcounty/internal/zipcode"
)

// Source opens crosswalk files that may be local paths or remote URLs.
type Source interface {
	Open(ctx context.Context, src string) (io.ReadCloser, error)
	Materialize(ctx context.Context, src, dir string) (string, error)
}

// LoadOptions configures a single crosswalk load.
type LoadOptions struct {
	// Source is a path or URL of a .csv, .txt, .xlsx or single-file .zip.
	Source string
	// ValidEnd applies to rows without a VALID_END_DATE column.
	ValidEnd time.Time
	// Sheet selects a workbook sheet by name; empty means the first sheet.
	Sheet string
	// TempDir receives downloads and extracted archives.
	TempDir string
}

// Loader reads crosswalk files and replaces their vintages in a Store,
// recording each attempt in the load log.
type Loader struct {
	store Store
	src   Source
	clock clockwork.Clock
}

// NewLoader creates a Loader. A nil clock uses the real clock.
func NewLoader(store Store, src Source, clock clockwork.Clock) *Loader {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Loader{store: store, src: src, clock: clock}
}

// Load reads opts.Source and replaces the vintages it contains. The returned
// entry describes the attempt even when err is non-nil.
func (l *Loader) Load(ctx context.Context, opts LoadOptions) (*LoadEntry, error) {
	entry := &LoadEntry{
		ID:        uuid.New().String(),
		Source:    opts.Source,
		Status:    StatusRunning,
		StartedAt: l.clock.Now().UTC(),
	}
	if err := l.store.StartLoad(ctx, *entry); err != nil {
		return entry, err
	}

	recs, err := l.read(ctx, opts)
	if err == nil {
		entry.Rows, err = l.store.Replace(ctx, recs)
	}

	done := l.clock.Now().UTC()
	entry.CompletedAt = &done
	entry.Status = StatusComplete
	if err != nil {
		entry.Status = StatusFailed
		entry.Error = err.Error()
		entry.Rows = 0
	}
	if ferr := l.store.FinishLoad(ctx, *entry); ferr != nil {
		zap.L().Warn("crosswalk: failed to record load outcome",
			zap.String("id", entry.ID),
			zap.Error(ferr),
		)
	}
	if err != nil {
		return entry, err
	}

	zap.L().Info("crosswalk: load complete",
		zap.String("id", entry.ID),
		zap.String("source", entry.Source),
		zap.Int64("rows", entry.Rows),
		zap.Int("vintages", len(vintages(recs))),
		zap.Duration("elapsed", done.Sub(entry.StartedAt)),
	)
	return entry, nil
}

func (l *Loader) read(ctx context.Context, opts LoadOptions) ([]Record, error) {
	tmp, err := os.MkdirTemp(opts.TempDir, "crosswalk-")
	if err != nil {
		return nil, eris.Wrap(err, "crosswalk: create temp dir")
	}
	defer os.RemoveAll(tmp) //nolint:errcheck

	rows, closeFn, err := l.open(ctx, opts.Source, tmp, opts)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	return ParseRecords(rows, opts.ValidEnd)
}

func (l *Loader) open(ctx context.Context, path, tmp string, opts LoadOptions) (fetcher.Rows, func(), error) {
	noop := func() {}
	switch ext := fetcher.Ext(path); ext {
	case ".zip":
		local, err := l.src.Materialize(ctx, path, tmp)
		if err != nil {
			return nil, noop, eris.Wrap(err, "crosswalk: fetch archive")
		}
		files, err := fetcher.ExtractZIP(local, filepath.Join(tmp, "x"))
		if err != nil {
			return nil, noop, eris.Wrap(err, "crosswalk: extract archive")
		}
		inner, err := fetcher.FindByExt(files, ".csv", ".txt", ".xlsx")
		if err != nil {
			return nil, noop, eris.Wrapf(err, "crosswalk: %s", path)
		}
		return l.open(ctx, inner, tmp, opts)

	case ".xlsx":
		local, err := l.src.Materialize(ctx, path, tmp)
		if err != nil {
			return nil, noop, eris.Wrap(err, "crosswalk: fetch workbook")
		}
		rows, err := fetcher.NewXLSXRows(local, fetcher.XLSXOptions{SheetName: opts.Sheet})
		if err != nil {
			return nil, noop, eris.Wrapf(err, "crosswalk: read %s", path)
		}
		return rows, noop, nil

	case ".csv", ".txt", "":
		rc, err := l.src.Open(ctx, path)
		if err != nil {
			return nil, noop, eris.Wrap(err, "crosswalk: open source")
		}
		br := bufio.NewReader(rc)
		rows, err := fetcher.NewCSVRows(br, fetcher.CSVOptions{
			Delimiter:  fetcher.SniffDelimiter(br),
			LazyQuotes: true,
			TrimSpace:  true,
		})
		if err != nil {
			rc.Close() //nolint:errcheck
			return nil, noop, eris.Wrapf(err, "crosswalk: read %s", path)
		}
		return rows, func() { _ = rc.Close() }, nil

	default:
		return nil, noop, eris.Errorf("crosswalk: unsupported source format %q for %s", ext, path)
	}
}

// validEndLayouts are the date formats seen in crosswalk exports: ISO dates,
// US-style spreadsheet dates and timestamps.
var validEndLayouts = []string{
	DateLayout,
	"1/2/2006",
	"01-02-06",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// ParseValidEnd parses a validity end date in any of the accepted layouts.
func ParseValidEnd(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range validEndLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, eris.Errorf("crosswalk: unrecognized date %q", s)
}

// ParseRecords reads crosswalk rows with columns ZIP, COUNTY, RES_RATIO and
// an optional VALID_END_DATE. Rows without a ZIP or county are skipped; when
// the date column is absent every row gets defaultValidEnd, which must then
// be set.
func ParseRecords(rows fetcher.Rows, defaultValidEnd time.Time) ([]Record, error) {
	cols := fetcher.IndexColumns(rows.Header())
	idx, err := cols.Require("zip", "county", "res_ratio")
	if err != nil {
		return nil, eris.Wrap(err, "crosswalk: header")
	}
	zipIdx, countyIdx, ratioIdx := idx[0], idx[1], idx[2]

	dateIdx, hasDate := cols.Lookup("valid_end_date")
	if !hasDate && defaultValidEnd.IsZero() {
		return nil, eris.New("crosswalk: source has no VALID_END_DATE column and no default validity end date was given")
	}

	var recs []Record
	var skipped int
	for line := 2; ; line++ {
		row, err := rows.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "crosswalk: line %d", line)
		}

		zip := fetcher.Field(row, zipIdx)
		county := fetcher.Field(row, countyIdx)
		if zip == "" || county == "" {
			skipped++
			continue
		}

		ratio, err := strconv.ParseFloat(fetcher.Field(row, ratioIdx), 64)
		if err != nil {
			return nil, eris.Wrapf(err, "crosswalk: line %d: RES_RATIO", line)
		}

		validEnd := defaultValidEnd
		if hasDate {
			if raw := fetcher.Field(row, dateIdx); raw != "" {
				if validEnd, err = ParseValidEnd(raw); err != nil {
					return nil, eris.Wrapf(err, "crosswalk: line %d", line)
				}
			}
			if validEnd.IsZero() {
				return nil, eris.Errorf("crosswalk: line %d: empty VALID_END_DATE", line)
			}
		}

		recs = append(recs, Record{
			ZIP:        zipcode.Normalize(zip),
			CountyFIPS: fips.Normalize(county),
			ResRatio:   ratio,
			ValidEnd:   validEnd,
		})
	}
	if skipped > 0 {
		zap.L().Debug("crosswalk: skipped rows without zip or county", zap.Int("skipped", skipped))
	}
	return recs, nil
}
