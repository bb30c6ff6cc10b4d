package store

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadgen-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS contractors`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertContractors_Upsert(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	rating := 4.8
	records := []model.Contractor{
		{
			Name:           "Apex Roofing",
			Rating:         &rating,
			Certifications: []string{"Master Elite"},
			Services:       []string{"Replacement"},
			Insight:        "Solid operator.",
			ProfileURL:     "https://x/contractor/apex",
		},
		{
			Name:       "Bravo Roofing",
			Insight:    "Unrated shop.",
			ProfileURL: "https://x/contractor/bravo",
		},
	}

	for range records {
		mock.ExpectExec(`ON CONFLICT \(profile_url\) DO UPDATE`).
			WithArgs(
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}

	n, err := s.InsertContractors(context.Background(), records)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertContractors_PartialFailure(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	records := []model.Contractor{
		{Name: "a", Insight: "i", ProfileURL: "https://x/a"},
		{Name: "b", Insight: "i", ProfileURL: "https://x/b"},
	}

	mock.ExpectExec(`ON CONFLICT`).
		WithArgs(
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`ON CONFLICT`).
		WithArgs(
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
		).
		WillReturnError(errors.New("constraint violation"))

	n, err := s.InsertContractors(context.Background(), records)
	require.Error(t, err)
	assert.Equal(t, 1, n, "count reflects rows written before the failure")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_QueryInsights_WithFilter(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	name := "Apex Roofing"
	rating := 4.8
	rows := pgxmock.NewRows([]string{"name", "rating", "insight"}).
		AddRow(&name, &rating, "Solid operator.")

	mock.ExpectQuery(`SELECT name, rating, insight FROM contractors WHERE rating >= \$1`).
		WithArgs(4.5, 5).
		WillReturnRows(rows)

	minRating := 4.5
	insights, err := s.QueryInsights(context.Background(), InsightFilter{MinRating: &minRating, Limit: 5})
	require.NoError(t, err)
	require.Len(t, insights, 1)
	assert.Equal(t, "Apex Roofing", insights[0].Name)
	require.NotNil(t, insights[0].Rating)
	assert.InDelta(t, 4.8, *insights[0].Rating, 0.001)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_QueryInsights_DefaultLimit(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT name, rating, insight FROM contractors ORDER BY`).
		WithArgs(DefaultInsightLimit).
		WillReturnRows(pgxmock.NewRows([]string{"name", "rating", "insight"}))

	insights, err := s.QueryInsights(context.Background(), InsightFilter{})
	require.NoError(t, err)
	assert.Empty(t, insights)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_QueryInsights_NullFields(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	rows := pgxmock.NewRows([]string{"name", "rating", "insight"}).
		AddRow((*string)(nil), (*float64)(nil), "Unrated shop.")

	mock.ExpectQuery(`SELECT name, rating, insight FROM contractors`).
		WithArgs(DefaultInsightLimit).
		WillReturnRows(rows)

	insights, err := s.QueryInsights(context.Background(), InsightFilter{})
	require.NoError(t, err)
	require.Len(t, insights, 1)
	assert.Empty(t, insights[0].Name)
	assert.Nil(t, insights[0].Rating)
	assert.Equal(t, "Unrated shop.", insights[0].Insight)
	assert.NoError(t, mock.ExpectationsWereMet())
}
