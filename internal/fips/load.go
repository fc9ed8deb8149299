package fips

import (
	"bufio"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"

	"github.com/sells-group/zipcounty/internal/fetcher"
)

// Source opens table files that may be local paths or remote URLs.
type Source interface {
	Open(ctx context.Context, src string) (io.ReadCloser, error)
	Materialize(ctx context.Context, src, dir string) (string, error)
}

// LoadOptions configures Load.
type LoadOptions struct {
	// Encoding of Census text files: "utf8" (default) or "latin1".
	Encoding string
	// TempDir receives downloads and extracted archives.
	TempDir string
}

// Load reads a reference table from src and merges it over the embedded
// default, so state abbreviations are always available. An empty src returns
// the default table. The format is chosen by extension: .yaml/.yml, .txt/.csv
// (Census national county file), .shp (TIGER county shapefile), or a .zip
// holding exactly one of those.
func Load(ctx context.Context, src Source, path string, opts LoadOptions) (*Table, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}

	tmp, err := os.MkdirTemp(opts.TempDir, "fips-")
	if err != nil {
		return nil, eris.Wrap(err, "fips: create temp dir")
	}
	defer os.RemoveAll(tmp) //nolint:errcheck

	loaded, err := load(ctx, src, path, tmp, opts)
	if err != nil {
		return nil, err
	}

	t := Default()
	t.Merge(loaded)
	zap.L().Debug("fips: loaded table",
		zap.String("source", path),
		zap.Int("states", len(t.States)),
		zap.Int("counties", t.CountyCount()),
	)
	return t, nil
}

func load(ctx context.Context, src Source, path, tmp string, opts LoadOptions) (*Table, error) {
	switch ext := fetcher.Ext(path); ext {
	case ".zip":
		local, err := src.Materialize(ctx, path, tmp)
		if err != nil {
			return nil, eris.Wrap(err, "fips: fetch archive")
		}
		files, err := fetcher.ExtractZIP(local, filepath.Join(tmp, "x"))
		if err != nil {
			return nil, eris.Wrap(err, "fips: extract archive")
		}
		inner, err := fetcher.FindByExt(files, ".shp", ".yaml", ".yml", ".txt", ".csv")
		if err != nil {
			return nil, eris.Wrapf(err, "fips: %s", path)
		}
		return load(ctx, src, inner, tmp, opts)

	case ".shp":
		if fetcher.IsRemote(path) {
			return nil, eris.Errorf("fips: remote shapefile %s must be zipped with its .dbf", path)
		}
		return ParseShapefile(path)

	case ".yaml", ".yml":
		rc, err := src.Open(ctx, path)
		if err != nil {
			return nil, eris.Wrap(err, "fips: open table")
		}
		defer rc.Close() //nolint:errcheck
		return ParseYAML(rc)

	case ".txt", ".csv":
		rc, err := src.Open(ctx, path)
		if err != nil {
			return nil, eris.Wrap(err, "fips: open table")
		}
		defer rc.Close() //nolint:errcheck
		r, err := decoder(rc, opts.Encoding)
		if err != nil {
			return nil, err
		}
		return ParseCensus(r)

	default:
		return nil, eris.Errorf("fips: unsupported table format %q for %s", ext, path)
	}
}

func decoder(r io.Reader, encoding string) (io.Reader, error) {
	switch strings.ToLower(encoding) {
	case "", "utf8", "utf-8":
		return r, nil
	case "latin1", "iso-8859-1":
		return charmap.ISO8859_1.NewDecoder().Reader(r), nil
	default:
		return nil, eris.Errorf("fips: unknown encoding %q", encoding)
	}
}

// ParseCensus reads a Census national county reference file. Both layouts are
// accepted: the pipe-delimited file with a header
// (STATE|STATEFP|COUNTYFP|COUNTYNS|COUNTYNAME|...) and the older headerless
// comma-delimited file (STATE,STATEFP,COUNTYFP,COUNTYNAME,CLASSFP).
func ParseCensus(r io.Reader) (*Table, error) {
	br := bufio.NewReader(r)
	rows, err := fetcher.NewCSVRows(br, fetcher.CSVOptions{
		Delimiter:  fetcher.SniffDelimiter(br),
		LazyQuotes: true,
		TrimSpace:  true,
	})
	if err != nil {
		return nil, eris.Wrap(err, "fips: census table")
	}

	// Positions for the headerless layout.
	abbrIdx, stateIdx, countyIdx, nameIdx := 0, 1, 2, 3
	cols := fetcher.IndexColumns(rows.Header())
	_, hasHeader := cols.Lookup("statefp")

	t := NewTable()
	add := func(row []string) {
		state := fetcher.Field(row, stateIdx)
		county := fetcher.Field(row, countyIdx)
		name := fetcher.Field(row, nameIdx)
		if state == "" || county == "" || name == "" {
			return
		}
		if abbr := fetcher.Field(row, abbrIdx); abbr != "" {
			t.SetState(state, abbr)
		}
		t.SetCounty(state, county, name)
	}

	if hasHeader {
		idx, err := cols.Require("statefp", "countyfp", "countyname")
		if err != nil {
			return nil, eris.Wrap(err, "fips: census table")
		}
		stateIdx, countyIdx, nameIdx = idx[0], idx[1], idx[2]
		abbrIdx = -1
		if i, ok := cols.Lookup("state"); ok {
			abbrIdx = i
		}
	} else {
		add(rows.Header())
	}

	for {
		row, err := rows.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "fips: census table")
		}
		add(row)
	}
	return t, nil
}

// ParseShapefile reads county codes and names from a TIGER/Line county
// shapefile's attribute table (STATEFP, COUNTYFP, NAME). The .dbf must sit
// next to the .shp.
func ParseShapefile(path string) (*Table, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "fips: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	fieldIdx := make(map[string]int)
	for i, f := range reader.Fields() {
		name := strings.TrimRight(f.String(), "\x00")
		fieldIdx[strings.ToLower(name)] = i
	}
	for _, required := range []string{"statefp", "countyfp", "name"} {
		if _, ok := fieldIdx[required]; !ok {
			return nil, eris.Errorf("fips: shapefile %s missing attribute %s", path, strings.ToUpper(required))
		}
	}

	attr := func(name string) string {
		return strings.TrimSpace(strings.TrimRight(reader.Attribute(fieldIdx[name]), "\x00"))
	}

	t := NewTable()
	var skipped int
	for reader.Next() {
		state, county, name := attr("statefp"), attr("countyfp"), attr("name")
		if state == "" || county == "" || name == "" {
			skipped++
			continue
		}
		t.SetCounty(state, county, name)
	}
	if skipped > 0 {
		zap.L().Debug("fips: skipped shapefile records", zap.Int("skipped", skipped))
	}
	return t, nil
}
