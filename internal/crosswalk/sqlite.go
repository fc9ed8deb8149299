package crosswalk

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// sqliteMaxVars bounds the number of bound parameters per IN clause.
const sqliteMaxVars = 500

// timestampLayout keeps stored timestamps fixed-width so they sort as text.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteStore implements Store using modernc.org/sqlite. Dates are stored as
// YYYY-MM-DD text and timestamps as UTC text.
type SQLiteStore struct {
	db    *sql.DB
	table string
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn, table string) (*SQLiteStore, error) {
	if table == "" {
		table = DefaultTable
	}
	if strings.Contains(table, ".") {
		return nil, eris.Errorf("sqlite: table %q must not be schema-qualified", table)
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, table: table}, nil
}

// Migrate creates the crosswalk and load log tables.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %[1]s (
	zip            TEXT NOT NULL,
	county_fips    TEXT NOT NULL,
	res_ratio      REAL NOT NULL,
	valid_end_date TEXT NOT NULL,
	PRIMARY KEY (zip, county_fips, valid_end_date)
);

CREATE INDEX IF NOT EXISTS idx_%[3]s_zip ON %[1]s(zip);

CREATE TABLE IF NOT EXISTS %[2]s (
	id           TEXT PRIMARY KEY,
	source       TEXT NOT NULL,
	status       TEXT NOT NULL,
	rows_loaded  INTEGER NOT NULL DEFAULT 0,
	error        TEXT,
	started_at   TEXT NOT NULL,
	completed_at TEXT
);
`, s.table, loadTable(s.table), indexPrefix(s.table))

	_, err := s.db.ExecContext(ctx, ddl)
	return eris.Wrap(err, "sqlite: migrate")
}

// Records returns every stored record for zips, querying in chunks of bound
// parameters.
func (s *SQLiteStore) Records(ctx context.Context, zips []string) ([]Record, error) {
	var recs []Record
	for start := 0; start < len(zips); start += sqliteMaxVars {
		end := min(start+sqliteMaxVars, len(zips))
		chunk, err := s.records(ctx, zips[start:end])
		if err != nil {
			return nil, err
		}
		recs = append(recs, chunk...)
	}
	return recs, nil
}

func (s *SQLiteStore) records(ctx context.Context, zips []string) ([]Record, error) {
	args := make([]any, len(zips))
	for i, z := range zips {
		args[i] = z
	}
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT zip, county_fips, res_ratio, valid_end_date FROM %s WHERE zip IN (%s)`,
			s.table, placeholders(len(zips))),
		args...,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query crosswalk")
	}
	defer rows.Close() //nolint:errcheck

	var recs []Record
	for rows.Next() {
		var r Record
		var validEnd string
		if err := rows.Scan(&r.ZIP, &r.CountyFIPS, &r.ResRatio, &validEnd); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan crosswalk")
		}
		r.ValidEnd, err = time.Parse(DateLayout, validEnd)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: parse valid_end_date %q", validEnd)
		}
		recs = append(recs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate crosswalk")
	}
	return recs, nil
}

// Replace swaps the stored vintages of recs for recs in one transaction.
func (s *SQLiteStore) Replace(ctx context.Context, recs []Record) (int64, error) {
	if len(recs) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin replace")
	}
	defer tx.Rollback() //nolint:errcheck

	dates := vintages(recs)
	args := make([]any, len(dates))
	for i, d := range dates {
		args[i] = d.Format(DateLayout)
	}
	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE valid_end_date IN (%s)`, s.table, placeholders(len(dates))),
		args...,
	); err != nil {
		return 0, eris.Wrap(err, "sqlite: delete vintages")
	}

	stmt, err := tx.PrepareContext(ctx,
		fmt.Sprintf(`INSERT OR REPLACE INTO %s (zip, county_fips, res_ratio, valid_end_date) VALUES (?, ?, ?, ?)`, s.table),
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare insert")
	}
	defer stmt.Close() //nolint:errcheck

	var n int64
	for _, r := range recs {
		if _, err := stmt.ExecContext(ctx, r.ZIP, r.CountyFIPS, r.ResRatio, r.ValidEnd.Format(DateLayout)); err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert %s/%s", r.ZIP, r.CountyFIPS)
		}
		n++
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit replace")
	}
	return n, nil
}

// StartLoad records the beginning of a load.
func (s *SQLiteStore) StartLoad(ctx context.Context, e LoadEntry) error {
	_, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (id, source, status, started_at) VALUES (?, ?, ?, ?)`, loadTable(s.table)),
		e.ID, e.Source, e.Status, e.StartedAt.UTC().Format(timestampLayout),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: start load %s", e.ID)
	}
	return nil
}

// FinishLoad stores the outcome of a load.
func (s *SQLiteStore) FinishLoad(ctx context.Context, e LoadEntry) error {
	var completed sql.NullString
	if e.CompletedAt != nil {
		completed = sql.NullString{String: e.CompletedAt.UTC().Format(timestampLayout), Valid: true}
	}
	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %s SET status = ?, rows_loaded = ?, error = ?, completed_at = ? WHERE id = ?`, loadTable(s.table)),
		e.Status, e.Rows, sql.NullString{String: e.Error, Valid: e.Error != ""}, completed, e.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish load %s", e.ID)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return eris.Errorf("sqlite: load %s not found", e.ID)
	}
	return nil
}

// ListLoads returns the load log, most recent first.
func (s *SQLiteStore) ListLoads(ctx context.Context) ([]LoadEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT id, source, status, rows_loaded, error, started_at, completed_at
		 FROM %s ORDER BY started_at DESC`, loadTable(s.table)),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list loads")
	}
	defer rows.Close() //nolint:errcheck

	var entries []LoadEntry
	for rows.Next() {
		var e LoadEntry
		var errStr, started, completed sql.NullString
		if err := rows.Scan(&e.ID, &e.Source, &e.Status, &e.Rows, &errStr, &started, &completed); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan load")
		}
		e.Error = errStr.String
		if e.StartedAt, err = time.Parse(timestampLayout, started.String); err != nil {
			return nil, eris.Wrapf(err, "sqlite: parse started_at for %s", e.ID)
		}
		if completed.Valid {
			t, err := time.Parse(timestampLayout, completed.String)
			if err != nil {
				return nil, eris.Wrapf(err, "sqlite: parse completed_at for %s", e.ID)
			}
			e.CompletedAt = &t
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
