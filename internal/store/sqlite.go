package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/leadgen-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
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
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS contractors (
	id             TEXT PRIMARY KEY,
	name           TEXT,
	phone          TEXT,
	address        TEXT,
	rating         REAL,
	certifications TEXT NOT NULL DEFAULT '[]',
	services       TEXT NOT NULL DEFAULT '[]',
	about          TEXT,
	insight        TEXT NOT NULL,
	profile_url    TEXT NOT NULL UNIQUE,
	created_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_contractors_rating ON contractors(rating);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) InsertContractors(ctx context.Context, records []model.Contractor) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin insert")
	}
	defer tx.Rollback()

	const q = `
		INSERT INTO contractors (id, name, phone, address, rating, certifications, services, about, insight, profile_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(profile_url) DO UPDATE SET
			name = excluded.name,
			phone = excluded.phone,
			address = excluded.address,
			rating = excluded.rating,
			certifications = excluded.certifications,
			services = excluded.services,
			about = excluded.about,
			insight = excluded.insight`

	now := time.Now().UTC()
	written := 0
	for _, r := range records {
		certs, err := json.Marshal(emptyIfNil(r.Certifications))
		if err != nil {
			return written, eris.Wrap(err, "sqlite: marshal certifications")
		}
		svcs, err := json.Marshal(emptyIfNil(r.Services))
		if err != nil {
			return written, eris.Wrap(err, "sqlite: marshal services")
		}

		_, err = tx.ExecContext(ctx, q,
			uuid.New().String(),
			nullable(r.Name),
			nullable(r.Phone),
			nullable(r.Address),
			nullableFloat(r.Rating),
			string(certs),
			string(svcs),
			nullable(r.About),
			r.Insight,
			r.ProfileURL,
			now,
		)
		if err != nil {
			return written, eris.Wrapf(err, "sqlite: insert contractor %s", r.ProfileURL)
		}
		written++
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit insert")
	}
	return written, nil
}

func (s *SQLiteStore) QueryInsights(ctx context.Context, filter InsightFilter) ([]model.Insight, error) {
	query := `SELECT name, rating, insight FROM contractors`
	var args []any

	if filter.MinRating != nil {
		query += ` WHERE rating >= ?`
		args = append(args, *filter.MinRating)
	}
	query += ` ORDER BY rating IS NULL, rating DESC, name LIMIT ?`
	args = append(args, filter.limit())

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query insights")
	}
	defer rows.Close()

	var out []model.Insight
	for rows.Next() {
		var (
			ins    model.Insight
			name   sql.NullString
			rating sql.NullFloat64
		)
		if err := rows.Scan(&name, &rating, &ins.Insight); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan insight")
		}
		ins.Name = name.String
		if rating.Valid {
			ins.Rating = &rating.Float64
		}
		out = append(out, ins)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate insights")
}

// helpers

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func emptyIfNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
