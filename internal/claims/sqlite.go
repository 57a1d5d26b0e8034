package claims

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/aegis-analytics/claimscreen/internal/model"
)

// SQLiteSource streams claim aggregates from a local SQLite database,
// useful for snapshots too large for CSV but not worth a Postgres server.
type SQLiteSource struct {
	db    *sql.DB
	table string
}

// NewSQLiteSource opens the database at path read-only.
func NewSQLiteSource(path, table string) (*SQLiteSource, error) {
	if path == "" {
		return nil, eris.New("claims: sqlite driver requires claims.path")
	}
	if table == "" {
		return nil, eris.New("claims: sqlite driver requires claims.table")
	}
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=ro", path))
	if err != nil {
		return nil, eris.Wrapf(err, "claims: open sqlite %s", path)
	}
	return &SQLiteSource{db: db, table: table}, nil
}

// Scan iterates the claim table row by row.
func (s *SQLiteSource) Scan(ctx context.Context, fn RowFunc) error {
	query := fmt.Sprintf(
		`SELECT npi, hcpcs_code, claim_month, claim_count, paid_amount, bene_count FROM %q`,
		s.table,
	)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return eris.Wrapf(err, "claims: query sqlite table %s", s.table)
	}
	defer rows.Close()

	for rows.Next() {
		var row model.ClaimAggregate
		if err := rows.Scan(&row.NPI, &row.Code, &row.Month,
			&row.ClaimCount, &row.PaidAmount, &row.BeneCount); err != nil {
			return eris.Wrapf(err, "claims: scan sqlite row from %s", s.table)
		}
		if err := fn(row); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return eris.Wrapf(err, "claims: iterate sqlite table %s", s.table)
	}
	return nil
}

// Close releases the database handle.
func (s *SQLiteSource) Close() error {
	return s.db.Close()
}
