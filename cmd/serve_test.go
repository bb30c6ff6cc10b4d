package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/store"
)

type mockStore struct {
	insights   []model.Insight
	queryErr   error
	lastFilter store.InsightFilter
}

func (m *mockStore) InsertContractors(context.Context, []model.Contractor) (int, error) {
	return 0, nil
}

func (m *mockStore) QueryInsights(_ context.Context, filter store.InsightFilter) ([]model.Insight, error) {
	m.lastFilter = filter
	return m.insights, m.queryErr
}

func (m *mockStore) Migrate(context.Context) error { return nil }
func (m *mockStore) Close() error                  { return nil }

func doRequest(t *testing.T, st store.Store, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	newRouter(st).ServeHTTP(rec, req)
	return rec
}

func TestWelcomeEndpoint(t *testing.T) {
	rec := doRequest(t, &mockStore{}, "/")

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body["message"], "Insights API")
}

func TestInsightsEndpoint(t *testing.T) {
	rating := 4.8
	st := &mockStore{insights: []model.Insight{
		{Name: "Apex Roofing", Rating: &rating, Insight: "Solid operator."},
	}}

	rec := doRequest(t, st, "/contractors/insights?min_rating=4.5&limit=5")

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Message  string          `json:"message"`
		Insights []model.Insight `json:"insights"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Found 1 contractors", body.Message)
	require.Len(t, body.Insights, 1)
	assert.Equal(t, "Apex Roofing", body.Insights[0].Name)

	require.NotNil(t, st.lastFilter.MinRating)
	assert.InDelta(t, 4.5, *st.lastFilter.MinRating, 0.001)
	assert.Equal(t, 5, st.lastFilter.Limit)
}

func TestInsightsEndpointNoParams(t *testing.T) {
	st := &mockStore{}

	rec := doRequest(t, st, "/contractors/insights")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, st.lastFilter.MinRating)
	assert.Zero(t, st.lastFilter.Limit, "default limit is the store's concern")
}

func TestInsightsEndpointInvalidMinRating(t *testing.T) {
	rec := doRequest(t, &mockStore{}, "/contractors/insights?min_rating=high")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "min_rating")
}

func TestInsightsEndpointInvalidLimit(t *testing.T) {
	for _, limit := range []string{"abc", "0", "-3"} {
		rec := doRequest(t, &mockStore{}, "/contractors/insights?limit="+limit)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "limit %q", limit)
	}
}

func TestInsightsEndpointStoreFailure(t *testing.T) {
	st := &mockStore{queryErr: errors.New("db gone")}

	rec := doRequest(t, st, "/contractors/insights")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "query failed")
}
