package crosswalk

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/zipcounty/internal/db"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool  db.Pool
	table string
}

// NewPostgres creates a PostgresStore with a small connection pool.
func NewPostgres(ctx context.Context, connString, table string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 4
	pgxCfg.MinConns = 0
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, table: table}, nil
}

// Migrate creates the crosswalk and load log tables.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %[1]s (
	zip            TEXT NOT NULL,
	county_fips    TEXT NOT NULL,
	res_ratio      DOUBLE PRECISION NOT NULL,
	valid_end_date DATE NOT NULL,
	PRIMARY KEY (zip, county_fips, valid_end_date)
);

CREATE INDEX IF NOT EXISTS %[3]s_zip_idx ON %[1]s(zip);

CREATE TABLE IF NOT EXISTS %[2]s (
	id           TEXT PRIMARY KEY,
	source       TEXT NOT NULL,
	status       TEXT NOT NULL,
	rows_loaded  BIGINT NOT NULL DEFAULT 0,
	error        TEXT,
	started_at   TIMESTAMPTZ NOT NULL,
	completed_at TIMESTAMPTZ
);
`, s.table, loadTable(s.table), indexPrefix(s.table))

	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return eris.Wrap(err, "postgres: migrate")
	}
	return nil
}

// Records returns every stored record for zips. ZIPs travel as a bound array.
func (s *PostgresStore) Records(ctx context.Context, zips []string) ([]Record, error) {
	if len(zips) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx,
		fmt.Sprintf(`SELECT zip::text, county_fips::text, res_ratio::float8, valid_end_date
		 FROM %s WHERE zip = ANY($1)`, s.table),
		zips,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query crosswalk")
	}
	defer rows.Close()

	var recs []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ZIP, &r.CountyFIPS, &r.ResRatio, &r.ValidEnd); err != nil {
			return nil, eris.Wrap(err, "postgres: scan crosswalk")
		}
		recs = append(recs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate crosswalk")
	}
	return recs, nil
}

// Replace swaps the stored vintages of recs for recs in one transaction,
// inserting with COPY.
func (s *PostgresStore) Replace(ctx context.Context, recs []Record) (int64, error) {
	if len(recs) == 0 {
		return 0, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: begin replace")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE valid_end_date = ANY($1)`, s.table),
		vintages(recs),
	); err != nil {
		return 0, eris.Wrap(err, "postgres: delete vintages")
	}

	rows := make([][]any, len(recs))
	for i, r := range recs {
		rows[i] = []any{r.ZIP, r.CountyFIPS, r.ResRatio, r.ValidEnd}
	}
	n, err := db.CopyFrom(ctx, tx, s.table, []string{"zip", "county_fips", "res_ratio", "valid_end_date"}, rows)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "postgres: commit replace")
	}
	return n, nil
}

// StartLoad records the beginning of a load.
func (s *PostgresStore) StartLoad(ctx context.Context, e LoadEntry) error {
	_, err := s.pool.Exec(ctx,
		fmt.Sprintf(`INSERT INTO %s (id, source, status, started_at) VALUES ($1, $2, $3, $4)`, loadTable(s.table)),
		e.ID, e.Source, e.Status, e.StartedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: start load %s", e.ID)
	}
	return nil
}

// FinishLoad stores the outcome of a load.
func (s *PostgresStore) FinishLoad(ctx context.Context, e LoadEntry) error {
	_, err := s.pool.Exec(ctx,
		fmt.Sprintf(`UPDATE %s SET status = $1, rows_loaded = $2, error = $3, completed_at = $4 WHERE id = $5`, loadTable(s.table)),
		e.Status, e.Rows, nullString(e.Error), e.CompletedAt, e.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finish load %s", e.ID)
	}
	return nil
}

// ListLoads returns the load log, most recent first.
func (s *PostgresStore) ListLoads(ctx context.Context) ([]LoadEntry, error) {
	rows, err := s.pool.Query(ctx,
		fmt.Sprintf(`SELECT id, source, status, rows_loaded, error, started_at, completed_at
		 FROM %s ORDER BY started_at DESC`, loadTable(s.table)),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list loads")
	}
	defer rows.Close()

	var entries []LoadEntry
	for rows.Next() {
		var e LoadEntry
		var errStr *string
		if err := rows.Scan(&e.ID, &e.Source, &e.Status, &e.Rows, &errStr, &e.StartedAt, &e.CompletedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan load")
		}
		if errStr != nil {
			e.Error = *errStr
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// indexPrefix turns "schema.table" into "table" for index names.
func indexPrefix(table string) string {
	for i := len(table) - 1; i >= 0; i-- {
		if table[i] == '.' {
			return table[i+1:]
		}
	}
	return table
}
