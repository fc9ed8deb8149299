// Package source builds ZIP -> county mappings from the primary public CSV
// and the optional crosswalk warehouse.
package source

import (
	"bytes"
	"context"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/zipcounty/internal/fetcher"
	"github.com/sells-group/zipcounty/internal/fips"
	"github.com/sells-group/zipcounty/internal/zipcode"
)

// Primary fetches the public ZIP/county/state CSV.
type Primary struct {
	dl  fetcher.Downloader
	url string
}

// NewPrimary returns a Primary reading url through dl. dl should be created
// with a single attempt and the configured timeout.
func NewPrimary(dl fetcher.Downloader, url string) *Primary {
	return &Primary{dl: dl, url: url}
}

// URL returns the source URL.
func (p *Primary) URL() string {
	return p.url
}

// Fetch downloads and parses the CSV. Any failure is fatal to a run.
func (p *Primary) Fetch(ctx context.Context) (zipcode.Mapping, error) {
	body, err := p.dl.Download(ctx, p.url)
	if err != nil {
		return nil, eris.Wrap(err, "source: primary fetch")
	}
	defer body.Close() //nolint:errcheck

	m, err := ParsePrimary(body)
	if err != nil {
		return nil, err
	}
	zap.L().Debug("source: primary mapping built", zap.Int("zips", len(m)))
	return m, nil
}

// ParsePrimary reads CSV with named columns zipcode, county and state_abbr.
// ZIPs are zero-padded, rows missing a county or state are skipped, and
// invalid UTF-8 is dropped.
func ParsePrimary(r io.Reader) (zipcode.Mapping, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrap(err, "source: read primary")
	}
	if !utf8.Valid(data) {
		data = bytes.ToValidUTF8(data, nil)
	}

	rows, err := fetcher.NewCSVRows(bytes.NewReader(data), fetcher.CSVOptions{LazyQuotes: true})
	if err != nil {
		return nil, eris.Wrap(err, "source: parse primary")
	}
	idx, err := fetcher.IndexColumns(rows.Header()).Require("zipcode", "county", "state_abbr")
	if err != nil {
		return nil, eris.Wrap(err, "source: parse primary")
	}
	zipIdx, countyIdx, stateIdx := idx[0], idx[1], idx[2]

	m := make(zipcode.Mapping)
	for {
		row, err := rows.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "source: parse primary")
		}

		county := strings.TrimSpace(fetcher.Field(row, countyIdx))
		state := strings.TrimSpace(fetcher.Field(row, stateIdx))
		zip := fetcher.Field(row, zipIdx)
		if county == "" || state == "" || zip == "" {
			continue
		}
		m.Add(zipcode.Normalize(zip), fips.Label(county, state))
	}
	return m, nil
}
