package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses; pgxmock satisfies it in
// tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}

	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS contractors (
	id             TEXT PRIMARY KEY,
	name           TEXT,
	phone          TEXT,
	address        TEXT,
	rating         DOUBLE PRECISION,
	certifications TEXT[] NOT NULL DEFAULT '{}',
	services       TEXT[] NOT NULL DEFAULT '{}',
	about          TEXT,
	insight        TEXT NOT NULL,
	profile_url    TEXT NOT NULL UNIQUE,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_contractors_rating ON contractors(rating);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) InsertContractors(ctx context.Context, records []model.Contractor) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	const q = `
		INSERT INTO contractors (id, name, phone, address, rating, certifications, services, about, insight, profile_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (profile_url) DO UPDATE SET
			name = EXCLUDED.name,
			phone = EXCLUDED.phone,
			address = EXCLUDED.address,
			rating = EXCLUDED.rating,
			certifications = EXCLUDED.certifications,
			services = EXCLUDED.services,
			about = EXCLUDED.about,
			insight = EXCLUDED.insight`

	now := time.Now().UTC()
	written := 0
	for _, r := range records {
		_, err := s.pool.Exec(ctx, q,
			uuid.New().String(),
			nullable(r.Name),
			nullable(r.Phone),
			nullable(r.Address),
			nullableFloat(r.Rating),
			emptyIfNil(r.Certifications),
			emptyIfNil(r.Services),
			nullable(r.About),
			r.Insight,
			r.ProfileURL,
			now,
		)
		if err != nil {
			return written, eris.Wrapf(err, "postgres: insert contractor %s", r.ProfileURL)
		}
		written++
	}
	return written, nil
}

func (s *PostgresStore) QueryInsights(ctx context.Context, filter InsightFilter) ([]model.Insight, error) {
	query := `SELECT name, rating, insight FROM contractors`
	var args []any

	if filter.MinRating != nil {
		query += ` WHERE rating >= $1`
		args = append(args, *filter.MinRating)
	}
	query += fmt.Sprintf(` ORDER BY rating DESC NULLS LAST, name LIMIT $%d`, len(args)+1)
	args = append(args, filter.limit())

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query insights")
	}
	defer rows.Close()

	var out []model.Insight
	for rows.Next() {
		var (
			ins    model.Insight
			name   *string
			rating *float64
		)
		if err := rows.Scan(&name, &rating, &ins.Insight); err != nil {
			return nil, eris.Wrap(err, "postgres: scan insight")
		}
		if name != nil {
			ins.Name = *name
		}
		ins.Rating = rating
		out = append(out, ins)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate insights")
}
