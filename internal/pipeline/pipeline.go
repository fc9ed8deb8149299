// Package pipeline runs a ZIP -> county report: read the list, fetch the
// primary mapping, fill gaps from the secondary source, write the CSV.
package pipeline

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/zipcounty/internal/report"
	"github.com/sells-group/zipcounty/internal/source"
	"github.com/sells-group/zipcounty/internal/zipcode"
)

// MissingPreview caps how many unresolved ZIPs are named in the summary.
const MissingPreview = 10

// Primary produces the base mapping. A failure aborts the run.
type Primary interface {
	URL() string
	Fetch(ctx context.Context) (zipcode.Mapping, error)
}

// Options configures a single run.
type Options struct {
	// ZIPFile lists the ZIP codes to report on.
	ZIPFile string
	// Output is the report path. Empty writes to Stdout.
	Output string
	// Stdout receives the report when Output is empty; nil means os.Stdout.
	Stdout io.Writer
}

// Result summarizes a run.
type Result struct {
	Total           int
	FromPrimary     int
	FromSecondary   int
	SecondaryQueued bool
	SecondaryErr    error
	Missing         []string
	Rows            []report.Row
	Elapsed         time.Duration
}

// Pipeline wires the sources of a report run.
type Pipeline struct {
	primary   Primary
	secondary source.Secondary
}

// New creates a Pipeline. A nil secondary is treated as unavailable.
func New(primary Primary, secondary source.Secondary) *Pipeline {
	if secondary == nil {
		secondary = source.Unavailable{}
	}
	return &Pipeline{primary: primary, secondary: secondary}
}

// Run executes one report run. Only list, primary and output failures are
// returned; a failing secondary source is logged and the run continues.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Result, error) {
	start := time.Now()

	zips, err := zipcode.LoadList(opts.ZIPFile)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load zip list")
	}

	merged, result, err := p.Resolve(ctx, zips)
	if err != nil {
		return nil, err
	}

	result.Rows = report.BuildRows(zips, merged)
	if err := p.write(opts, result.Rows); err != nil {
		return nil, err
	}

	result.Elapsed = time.Since(start)
	zap.L().Debug("pipeline: run complete",
		zap.Int("total", result.Total),
		zap.Int("primary", result.FromPrimary),
		zap.Int("secondary", result.FromSecondary),
		zap.Int("missing", len(result.Missing)),
		zap.Duration("elapsed", result.Elapsed),
	)
	return result, nil
}

// Resolve fetches the primary mapping and fills the ZIPs of zips it lacks
// from the secondary source. The returned mapping holds every primary entry.
func (p *Pipeline) Resolve(ctx context.Context, zips []string) (zipcode.Mapping, *Result, error) {
	log := zap.L()
	result := &Result{Total: len(zips)}

	log.Info("fetching ZIP data", zap.String("url", p.primary.URL()))
	primary, err := p.primary.Fetch(ctx)
	if err != nil {
		return nil, nil, eris.Wrap(err, "pipeline: primary source")
	}

	missing := primary.Missing(zips)
	result.FromPrimary = len(zips) - len(missing)

	secondary := zipcode.Mapping{}
	switch {
	case len(missing) == 0:
	case !p.secondary.Available():
		log.Info("found missing ZIPs (secondary source not available)", zap.Int("missing", len(missing)))
	default:
		result.SecondaryQueued = true
		log.Info("found missing ZIPs, querying secondary source",
			zap.Int("missing", len(missing)),
			zap.String("source", p.secondary.Name()),
		)
		secondary, err = p.secondary.Resolve(ctx, unique(missing))
		if err != nil {
			result.SecondaryErr = err
			log.Warn("secondary source failed, continuing without it", zap.Error(err))
			secondary = zipcode.Mapping{}
		}
	}

	merged := zipcode.Merge(primary, secondary)
	result.Missing = merged.Missing(zips)
	result.FromSecondary = len(missing) - len(result.Missing)

	if result.SecondaryQueued && result.FromSecondary > 0 {
		log.Info("secondary source filled missing ZIPs", zap.Int("filled", result.FromSecondary))
	}
	if result.SecondaryQueued && len(result.Missing) > 0 {
		log.Info("still missing ZIPs",
			zap.Int("missing", len(result.Missing)),
			zap.String("zips", Preview(result.Missing, MissingPreview)),
		)
	}
	return merged, result, nil
}

func (p *Pipeline) write(opts Options, rows []report.Row) error {
	if opts.Output != "" {
		return report.WriteFile(opts.Output, rows)
	}
	w := opts.Stdout
	if w == nil {
		w = os.Stdout
	}
	return report.Write(w, rows)
}

// Preview joins the first n ZIPs with ", " and appends "..." when more were
// left out.
func Preview(zips []string, n int) string {
	if len(zips) <= n {
		return strings.Join(zips, ", ")
	}
	return strings.Join(zips[:n], ", ") + "..."
}

func unique(zips []string) []string {
	seen := make(map[string]bool, len(zips))
	out := make([]string, 0, len(zips))
	for _, z := range zips {
		if !seen[z] {
			seen[z] = true
			out = append(out, z)
		}
	}
	return out
}
