package claims

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/aegis-analytics/claimscreen/internal/model"
)

// Querier is the subset of pgxpool.Pool the source needs; pgxmock
// satisfies it in tests.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresSource streams claim aggregates from a Postgres table using
// server-side row iteration, so the table never fully materializes on the
// client.
type PostgresSource struct {
	pool  Querier
	table string
}

// NewPostgresSource connects a pool and wraps it as a Source.
func NewPostgresSource(ctx context.Context, databaseURL, table string) (*PostgresSource, error) {
	if databaseURL == "" {
		return nil, eris.New("claims: postgres driver requires claims.database_url")
	}
	if table == "" {
		return nil, eris.New("claims: postgres driver requires claims.table")
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "claims: connect postgres")
	}
	return &PostgresSource{pool: pool, table: table}, nil
}

// NewPostgresSourceFromQuerier wraps an existing pool (or mock).
func NewPostgresSourceFromQuerier(q Querier, table string) *PostgresSource {
	return &PostgresSource{pool: q, table: table}
}

// Scan iterates the claim table row by row.
func (s *PostgresSource) Scan(ctx context.Context, fn RowFunc) error {
	query := fmt.Sprintf(
		`SELECT npi, hcpcs_code, claim_month, claim_count, paid_amount, bene_count FROM %s`,
		pgx.Identifier{s.table}.Sanitize(),
	)

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return eris.Wrapf(err, "claims: query %s", s.table)
	}
	defer rows.Close()

	for rows.Next() {
		var row model.ClaimAggregate
		if err := rows.Scan(&row.NPI, &row.Code, &row.Month,
			&row.ClaimCount, &row.PaidAmount, &row.BeneCount); err != nil {
			return eris.Wrapf(err, "claims: scan row from %s", s.table)
		}
		if err := fn(row); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return eris.Wrapf(err, "claims: iterate %s", s.table)
	}
	return nil
}
