// Package extract reads a fixed set of structured fields from an entry's
// profile page. Every field read is an independent optional step: a missing
// section degrades the record, never the run.
package extract

import (
	"context"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/flow"
	"github.com/sells-group/leadgen-cli/internal/locator"
	"github.com/sells-group/leadgen-cli/internal/model"
)

// Chains holds one locator chain per profile field.
type Chains struct {
	Name           locator.Chain
	Rating         locator.Chain
	Phone          locator.Chain
	Address        locator.Chain
	About          locator.Chain
	Certifications locator.Chain
	Services       locator.Chain
	Reviews        locator.Chain
}

// DefaultChains returns the ranked selectors for the contractor profile
// markup: the directory's current class names first, generic structural
// fallbacks last.
func DefaultChains() Chains {
	return Chains{
		Name: locator.NewChain("name",
			locator.CSS(".contractor-name"),
			locator.CSS("h1"),
		),
		Rating: locator.NewChain("rating",
			locator.CSS(".rating-value"),
			locator.CSS("[itemprop='ratingValue']"),
			locator.CSS("[class*='rating']"),
		),
		Phone: locator.NewChain("phone",
			locator.CSS(".phone-number"),
			locator.CSS("a[href^='tel:']"),
		),
		Address: locator.NewChain("address",
			locator.CSS(".contractor-address"),
			locator.CSS("[itemprop='address']"),
			locator.CSS("address"),
		),
		About: locator.NewChain("about",
			locator.CSS(".about-section"),
			locator.CSS("[class*='about'] p"),
		),
		Certifications: locator.NewChain("certifications",
			locator.CSS(".certification-item"),
			locator.CSS("[class*='certification'] li"),
		),
		Services: locator.NewChain("services",
			locator.CSS(".service-item"),
			locator.CSS(".services-list li"),
		),
		Reviews: locator.NewChain("reviews",
			locator.CSS(".review-item"),
			locator.CSS("[class*='review'] p"),
		),
	}
}

// Extractor drives a flow that loads a profile page and reads its fields.
type Extractor struct {
	eng    *flow.Engine
	chains Chains
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithChains overrides the default field chains.
func WithChains(c Chains) Option {
	return func(e *Extractor) { e.chains = c }
}

// New creates an Extractor bound to a flow engine.
func New(eng *flow.Engine, opts ...Option) *Extractor {
	e := &Extractor{eng: eng, chains: DefaultChains()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract loads ref's profile page and reads each field independently.
// The returned record always carries SourceURL; any other field may be
// absent. A non-nil error reports why the record is degraded (navigation
// failure or cancellation); the record is still usable.
func (e *Extractor) Extract(ctx context.Context, ref model.EntryReference) (model.ProfileRecord, error) {
	rec := model.ProfileRecord{
		SourceURL:      ref.URL,
		Certifications: []string{},
		Services:       []string{},
		Reviews:        []string{},
	}

	steps := []flow.Step{
		{
			Name:       "navigate profile",
			Policy:     flow.Required,
			Transition: true,
			Action:     flow.Navigate(ref.URL),
		},
		{
			Name:   "read name",
			Policy: flow.Optional,
			Action: flow.ReadText(e.chains.Name, func(s string) { rec.Name = &s }),
		},
		{
			Name:   "read rating",
			Policy: flow.Optional,
			Action: flow.ReadText(e.chains.Rating, func(s string) { rec.Rating = parseRating(s) }),
		},
		{
			Name:   "read phone",
			Policy: flow.Optional,
			Action: flow.ReadText(e.chains.Phone, func(s string) { rec.Phone = &s }),
		},
		{
			Name:   "read address",
			Policy: flow.Optional,
			Action: flow.ReadText(e.chains.Address, func(s string) { rec.Address = &s }),
		},
		{
			Name:   "read about",
			Policy: flow.Optional,
			Action: flow.ReadText(e.chains.About, func(s string) { rec.About = &s }),
		},
		{
			Name:   "read certifications",
			Policy: flow.Optional,
			Action: flow.ReadAll(e.chains.Certifications, func(v []string) { rec.Certifications = v }),
		},
		{
			Name:   "read services",
			Policy: flow.Optional,
			Action: flow.ReadAll(e.chains.Services, func(v []string) { rec.Services = v }),
		},
		{
			Name:   "read reviews",
			Policy: flow.Optional,
			Action: flow.ReadAll(e.chains.Reviews, func(v []string) { rec.Reviews = v }),
		},
	}

	res := e.eng.Run(ctx, steps)
	if res.Err != nil {
		return rec, res.Err
	}

	if soft := res.SoftFails(); len(soft) > 0 {
		zap.L().Debug("extract: fields missing on profile",
			zap.String("url", ref.URL),
			zap.Strings("fields", soft),
		)
	}

	return rec, nil
}

// parseRating pulls the first numeric token out of a rating blurb such as
// "4.8", "4.8 out of 5" or "(4.8)". Unparsable text means the field stays
// absent.
func parseRating(s string) *float64 {
	for _, tok := range strings.Fields(s) {
		tok = strings.Trim(tok, "()/")
		if f, err := strconv.ParseFloat(tok, 64); err == nil {
			return &f
		}
	}
	return nil
}
