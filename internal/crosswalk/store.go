// Package crosswalk keeps a HUD-style ZIP/county crosswalk in a warehouse
// (PostgreSQL or SQLite) and loads new vintages into it.
package crosswalk

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// DefaultTable is the crosswalk table name used when none is configured.
const DefaultTable = "zip_county_crosswalk"

// DateLayout is the storage and flag format of validity end dates.
const DateLayout = "2006-01-02"

// Load statuses.
const (
	StatusRunning  = "running"
	StatusComplete = "complete"
	StatusFailed   = "failed"
)

// Record is one crosswalk row.
type Record struct {
	ZIP        string    `json:"zip"`
	CountyFIPS string    `json:"county_fips"`
	ResRatio   float64   `json:"res_ratio"`
	ValidEnd   time.Time `json:"valid_end_date"`
}

// LoadEntry is a row of the load log.
type LoadEntry struct {
	ID          string     `json:"id"`
	Source      string     `json:"source"`
	Status      string     `json:"status"`
	Rows        int64      `json:"rows"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Querier returns crosswalk records for a set of ZIPs.
type Querier interface {
	Records(ctx context.Context, zips []string) ([]Record, error)
}

// Store is a crosswalk warehouse.
type Store interface {
	Querier

	Migrate(ctx context.Context) error
	// Replace deletes every stored record sharing a validity end date with
	// recs, then inserts recs. It returns the number of rows inserted.
	Replace(ctx context.Context, recs []Record) (int64, error)

	StartLoad(ctx context.Context, entry LoadEntry) error
	FinishLoad(ctx context.Context, entry LoadEntry) error
	ListLoads(ctx context.Context) ([]LoadEntry, error)

	Close() error
}

// Open connects to the warehouse for driver ("postgres" or "sqlite").
func Open(ctx context.Context, driver, dsn, table string) (Store, error) {
	if table == "" {
		table = DefaultTable
	}
	if err := ValidateTable(table); err != nil {
		return nil, err
	}
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "postgres":
		return NewPostgres(ctx, dsn, table)
	case "sqlite":
		return NewSQLite(dsn, table)
	default:
		return nil, eris.Errorf("crosswalk: unsupported driver %q", driver)
	}
}

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// ValidateTable rejects table names that are not plain (optionally
// schema-qualified) identifiers. Table names are formatted into SQL.
func ValidateTable(table string) error {
	if !tableName.MatchString(table) {
		return eris.Errorf("crosswalk: invalid table name %q", table)
	}
	return nil
}

// loadTable names the load log kept next to a crosswalk table.
func loadTable(table string) string {
	return table + "_loads"
}

// vintages returns the distinct validity end dates of recs in input order.
func vintages(recs []Record) []time.Time {
	seen := make(map[time.Time]bool)
	var out []time.Time
	for _, r := range recs {
		d := r.ValidEnd.UTC().Truncate(24 * time.Hour)
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	return out
}
