package extract

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadgen-cli/internal/browser/browsertest"
	"github.com/sells-group/leadgen-cli/internal/flow"
	"github.com/sells-group/leadgen-cli/internal/model"
)

const profileURL = "https://directory.test/contractor/apex"

func fullProfile() *browsertest.Page {
	return &browsertest.Page{
		Texts: map[string][]string{
			".contractor-name":    {"  Apex Roofing  "},
			".rating-value":       {"4.8"},
			".phone-number":       {"(555) 123-4567"},
			".contractor-address": {"12 Main St, Springfield"},
			".about-section":      {"Family owned since 1985."},
			".certification-item": {"Master Elite", "Certified Installer"},
			".service-item":       {"Roof replacement", "Repairs"},
			".review-item":        {"Great crew.", "On time and on budget."},
		},
	}
}

func newTestExtractor(pages map[string]*browsertest.Page) *Extractor {
	d := browsertest.New(pages)
	eng := flow.New(d,
		flow.WithStepTimeout(300*time.Millisecond),
		flow.WithSettleTimeout(50*time.Millisecond),
		flow.WithSettleFallback(10*time.Millisecond),
	)
	return New(eng)
}

func TestExtractFullProfile(t *testing.T) {
	ex := newTestExtractor(map[string]*browsertest.Page{profileURL: fullProfile()})

	rec, err := ex.Extract(context.Background(), model.EntryReference{URL: profileURL})
	require.NoError(t, err)

	require.NotNil(t, rec.Name)
	assert.Equal(t, "Apex Roofing", *rec.Name)
	require.NotNil(t, rec.Rating)
	assert.InDelta(t, 4.8, *rec.Rating, 0.001)
	require.NotNil(t, rec.Phone)
	assert.Equal(t, "(555) 123-4567", *rec.Phone)
	require.NotNil(t, rec.Address)
	require.NotNil(t, rec.About)
	assert.Equal(t, []string{"Master Elite", "Certified Installer"}, rec.Certifications)
	assert.Equal(t, []string{"Roof replacement", "Repairs"}, rec.Services)
	assert.Len(t, rec.Reviews, 2)
	assert.Equal(t, profileURL, rec.SourceURL)
}

func TestExtractFieldsAreIndependent(t *testing.T) {
	// About section and phone are missing; everything else present.
	page := fullProfile()
	delete(page.Texts, ".about-section")
	delete(page.Texts, ".phone-number")

	ex := newTestExtractor(map[string]*browsertest.Page{profileURL: page})

	rec, err := ex.Extract(context.Background(), model.EntryReference{URL: profileURL})
	require.NoError(t, err)

	assert.Nil(t, rec.About)
	assert.Nil(t, rec.Phone)
	// Fields after the missing ones are still read.
	assert.Len(t, rec.Certifications, 2)
	assert.Len(t, rec.Services, 2)
	require.NotNil(t, rec.Name)
}

func TestExtractEmptyPageYieldsBareRecord(t *testing.T) {
	ex := newTestExtractor(map[string]*browsertest.Page{profileURL: {}})

	rec, err := ex.Extract(context.Background(), model.EntryReference{URL: profileURL})
	require.NoError(t, err)

	assert.Nil(t, rec.Name)
	assert.Nil(t, rec.Rating)
	assert.Empty(t, rec.Certifications)
	assert.Empty(t, rec.Services)
	assert.Empty(t, rec.Reviews)
	assert.Equal(t, profileURL, rec.SourceURL)
}

func TestExtractNavigationFailureDegradesRecord(t *testing.T) {
	d := browsertest.New(nil)
	d.NavErrs = map[string]error{profileURL: errors.New("net::ERR_NAME_NOT_RESOLVED")}
	eng := flow.New(d, flow.WithStepTimeout(100*time.Millisecond))
	ex := New(eng)

	rec, err := ex.Extract(context.Background(), model.EntryReference{URL: profileURL})
	require.Error(t, err)
	assert.Equal(t, profileURL, rec.SourceURL, "degraded record still carries its source")
}

func TestParseRating(t *testing.T) {
	cases := []struct {
		in   string
		want *float64
	}{
		{"4.8", ptr(4.8)},
		{"4.8 out of 5", ptr(4.8)},
		{"(4.8)", ptr(4.8)},
		{"Rated 5 stars", ptr(5.0)},
		{"no rating yet", nil},
		{"", nil},
	}

	for _, tc := range cases {
		got := parseRating(tc.in)
		if tc.want == nil {
			assert.Nil(t, got, "input %q", tc.in)
			continue
		}
		require.NotNil(t, got, "input %q", tc.in)
		assert.InDelta(t, *tc.want, *got, 0.001, "input %q", tc.in)
	}
}

func ptr(f float64) *float64 { return &f }
