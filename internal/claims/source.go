// Package claims streams claim aggregate rows from the configured input
// backend. The pipeline's large aggregations are single-pass and
// streaming-reducible, so a Source never materializes the row-level table;
// it hands rows to the caller one at a time.
package claims

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/aegis-analytics/claimscreen/internal/model"
)

// RowFunc consumes one claim aggregate row. Returning an error aborts the
// scan.
type RowFunc func(model.ClaimAggregate) error

// Source streams the claim aggregate snapshot.
type Source interface {
	// Scan invokes fn for every row. The scan honors ctx cancellation.
	Scan(ctx context.Context, fn RowFunc) error
}

// SourceConfig selects and configures a claim input backend.
type SourceConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // csv, postgres, sqlite
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Table       string `yaml:"table" mapstructure:"table"`
}

// NewSource constructs the Source named by cfg.Driver.
func NewSource(ctx context.Context, cfg SourceConfig) (Source, error) {
	switch cfg.Driver {
	case "csv":
		if cfg.Path == "" {
			return nil, eris.New("claims: csv driver requires claims.path")
		}
		return NewCSVSource(cfg.Path), nil
	case "postgres":
		return NewPostgresSource(ctx, cfg.DatabaseURL, cfg.Table)
	case "sqlite":
		return NewSQLiteSource(cfg.Path, cfg.Table)
	default:
		return nil, eris.Errorf("claims: unknown driver %q (want csv, postgres, or sqlite)", cfg.Driver)
	}
}
