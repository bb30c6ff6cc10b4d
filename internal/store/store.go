// Package store persists assembled contractor records and serves the read
// API's insight queries. Two backends are provided: SQLite for local runs
// and Postgres for shared deployments.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-cli/internal/model"
)

// InsightFilter specifies criteria for querying insights.
type InsightFilter struct {
	// MinRating keeps only records with rating >= MinRating. Unrated records
	// never satisfy a rating filter.
	MinRating *float64
	// Limit caps the number of rows returned. Zero or negative means the
	// default of 10.
	Limit int
}

// DefaultInsightLimit is applied when a filter carries no limit.
const DefaultInsightLimit = 10

// Store defines the persistence interface for contractor records.
type Store interface {
	// InsertContractors upserts records keyed by profile URL and returns the
	// number written.
	InsertContractors(ctx context.Context, records []model.Contractor) (int, error)

	// QueryInsights returns name/rating/insight rows matching the filter.
	QueryInsights(ctx context.Context, filter InsightFilter) ([]model.Insight, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open creates a Store for the configured driver.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case "sqlite":
		return NewSQLite(dsn)
	case "postgres":
		return NewPostgres(ctx, dsn)
	default:
		return nil, eris.Errorf("store: unknown driver %q (valid: sqlite, postgres)", driver)
	}
}

func (f InsightFilter) limit() int {
	if f.Limit <= 0 {
		return DefaultInsightLimit
	}
	return f.Limit
}
