package source

import (
	"context"
	"slices"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/zipcounty/internal/crosswalk"
	"github.com/sells-group/zipcounty/internal/fips"
	"github.com/sells-group/zipcounty/internal/zipcode"
)

// DefaultMinResRatio is the residence share a county needs to be reported
// for a ZIP.
const DefaultMinResRatio = 0.5

// Secondary fills ZIPs the primary source could not resolve.
type Secondary interface {
	// Name identifies the source in logs.
	Name() string
	// Available reports whether the source can be queried at all.
	Available() bool
	// Resolve returns labels for whichever of zips the source knows.
	Resolve(ctx context.Context, zips []string) (zipcode.Mapping, error)
}

// Unavailable is the Secondary used when no warehouse is configured.
type Unavailable struct{}

// Name implements Secondary.
func (Unavailable) Name() string { return "unavailable" }

// Available implements Secondary.
func (Unavailable) Available() bool { return false }

// Resolve implements Secondary and always returns an empty mapping.
func (Unavailable) Resolve(context.Context, []string) (zipcode.Mapping, error) {
	return zipcode.Mapping{}, nil
}

// Warehouse resolves ZIPs from crosswalk records.
type Warehouse struct {
	q        crosswalk.Querier
	resolver *fips.Resolver
	timeout  time.Duration
	minRatio float64
}

// WarehouseOptions configures a Warehouse.
type WarehouseOptions struct {
	Timeout     time.Duration
	MinResRatio float64
}

// NewWarehouse creates a Warehouse over q. A zero MinResRatio uses
// DefaultMinResRatio.
func NewWarehouse(q crosswalk.Querier, resolver *fips.Resolver, opts WarehouseOptions) *Warehouse {
	if opts.MinResRatio == 0 {
		opts.MinResRatio = DefaultMinResRatio
	}
	if resolver == nil {
		resolver = fips.NewResolver(nil)
	}
	return &Warehouse{q: q, resolver: resolver, timeout: opts.Timeout, minRatio: opts.MinResRatio}
}

// Name implements Secondary.
func (w *Warehouse) Name() string { return "crosswalk" }

// Available implements Secondary.
func (w *Warehouse) Available() bool { return w.q != nil }

// Resolve queries the warehouse under its own timeout and keeps the majority
// counties of each ZIP's latest vintage. Warehouse ZIPs are zero-padded, so
// tokens are matched by their padded form ("501" finds "00501") and results
// are keyed by the caller's own spelling.
func (w *Warehouse) Resolve(ctx context.Context, zips []string) (zipcode.Mapping, error) {
	if len(zips) == 0 {
		return zipcode.Mapping{}, nil
	}
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	tokens := make(map[string][]string)
	var query []string
	for _, z := range zips {
		norm := zipcode.Normalize(z)
		if _, ok := tokens[norm]; !ok {
			query = append(query, norm)
		}
		if !slices.Contains(tokens[norm], z) {
			tokens[norm] = append(tokens[norm], z)
		}
	}

	recs, err := w.q.Records(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "source: secondary query")
	}
	zap.L().Debug("source: crosswalk records", zap.Int("zips", len(query)), zap.Int("records", len(recs)))

	selected := SelectMajority(recs, w.resolver, w.minRatio)
	m := make(zipcode.Mapping, len(selected))
	for norm := range selected {
		for _, tok := range tokens[norm] {
			for _, label := range selected.Labels(norm) {
				m.Add(tok, label)
			}
		}
	}
	return m, nil
}

// SelectMajority keeps, for each ZIP, only the records at its latest validity
// end date whose residence ratio is at least minRatio, and resolves their
// county codes. ZIPs left with no county are omitted.
func SelectMajority(recs []crosswalk.Record, resolver *fips.Resolver, minRatio float64) zipcode.Mapping {
	latest := make(map[string]time.Time)
	for _, r := range recs {
		zip := zipcode.Normalize(r.ZIP)
		if cur, ok := latest[zip]; !ok || r.ValidEnd.After(cur) {
			latest[zip] = r.ValidEnd
		}
	}

	m := make(zipcode.Mapping)
	for _, r := range recs {
		zip := zipcode.Normalize(r.ZIP)
		if !r.ValidEnd.Equal(latest[zip]) || r.ResRatio < minRatio {
			continue
		}
		m.Add(zip, resolver.Resolve(r.CountyFIPS))
	}
	return m
}
