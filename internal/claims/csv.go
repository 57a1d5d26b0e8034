package claims

import (
	"context"
	"io"

	"github.com/aegis-analytics/claimscreen/internal/model"
	"github.com/aegis-analytics/claimscreen/internal/tabular"
)

// claimColumns is the schema contract of the claim aggregate CSV.
var claimColumns = []string{
	"npi", "hcpcs_code", "claim_month", "claim_count", "paid_amount", "bene_count",
}

// CSVSource streams claim aggregates from a CSV file.
type CSVSource struct {
	path string
}

// NewCSVSource creates a Source over the CSV file at path.
func NewCSVSource(path string) *CSVSource {
	return &CSVSource{path: path}
}

// Scan reads the file row by row; the full table is never held in memory.
func (s *CSVSource) Scan(ctx context.Context, fn RowFunc) error {
	r, err := tabular.Open(s.path, claimColumns)
	if err != nil {
		return err
	}
	defer r.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		record, err := r.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		row, err := parseClaimRecord(r, record)
		if err != nil {
			return err
		}
		if err := fn(row); err != nil {
			return err
		}
	}
}

func parseClaimRecord(r *tabular.Reader, record []string) (model.ClaimAggregate, error) {
	count, err := r.Int(record, "claim_count")
	if err != nil {
		return model.ClaimAggregate{}, err
	}
	paid, err := r.Float(record, "paid_amount")
	if err != nil {
		return model.ClaimAggregate{}, err
	}
	benes, err := r.Int(record, "bene_count")
	if err != nil {
		return model.ClaimAggregate{}, err
	}

	return model.ClaimAggregate{
		NPI:        r.Col(record, "npi"),
		Code:       r.Col(record, "hcpcs_code"),
		Month:      r.Col(record, "claim_month"),
		ClaimCount: count,
		PaidAmount: paid,
		BeneCount:  benes,
	}, nil
}
