// Package assemble merges extracted profiles with generated insights into
// final output records. Assembly is total: summarization failure substitutes
// a fixed placeholder, it never discards a record.
package assemble

import (
	"context"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/model"
)

// Placeholder is the insight used when summarization fails or returns
// unusable output.
const Placeholder = "Analysis not available at this time."

// MaxInsightRunes bounds the accepted summary length; anything longer is
// treated as malformed output.
const MaxInsightRunes = 2000

// Summarizer generates a short narrative insight for one profile. Fallible,
// no side effects.
type Summarizer interface {
	Summarize(ctx context.Context, p model.ProfileRecord) (string, error)
}

// Assembler produces one OutputRecord per ProfileRecord.
type Assembler struct {
	s Summarizer
}

// New creates an Assembler using the given summarizer.
func New(s Summarizer) *Assembler {
	return &Assembler{s: s}
}

// Assemble freezes a profile into an output record with a non-empty insight.
func (a *Assembler) Assemble(ctx context.Context, p model.ProfileRecord) model.OutputRecord {
	insight, err := a.s.Summarize(ctx, p)
	insight = strings.TrimSpace(insight)

	switch {
	case err != nil:
		zap.L().Warn("assemble: summarization failed, using placeholder",
			zap.String("url", p.SourceURL),
			zap.Error(err),
		)
		insight = Placeholder
	case insight == "":
		zap.L().Warn("assemble: empty summary, using placeholder",
			zap.String("url", p.SourceURL),
		)
		insight = Placeholder
	case utf8.RuneCountInString(insight) > MaxInsightRunes:
		zap.L().Warn("assemble: oversized summary, using placeholder",
			zap.String("url", p.SourceURL),
			zap.Int("runes", utf8.RuneCountInString(insight)),
		)
		insight = Placeholder
	}

	return model.OutputRecord{ProfileRecord: p, Insight: insight}
}

// AssembleAll maps profiles to output records one-to-one, preserving order.
func (a *Assembler) AssembleAll(ctx context.Context, profiles []model.ProfileRecord) []model.OutputRecord {
	out := make([]model.OutputRecord, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, a.Assemble(ctx, p))
	}
	return out
}
