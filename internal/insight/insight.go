// Package insight generates a short business-analyst narrative for one
// extracted profile. It implements assemble.Summarizer over the Anthropic
// client; failures surface to the assembler, which substitutes its
// placeholder.
package insight

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/resilience"
	"github.com/sells-group/leadgen-cli/pkg/anthropic"
)

const systemPrompt = "You are a professional business analyst specializing in the construction and roofing industry."

// Generator produces insights via the Anthropic API.
type Generator struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	retry     resilience.RetryConfig
}

// Option configures a Generator.
type Option func(*Generator)

// WithMaxTokens bounds the generated summary length.
func WithMaxTokens(n int64) Option {
	return func(g *Generator) { g.maxTokens = n }
}

// WithRetryConfig overrides the default API retry policy.
func WithRetryConfig(cfg resilience.RetryConfig) Option {
	return func(g *Generator) { g.retry = cfg }
}

// New creates a Generator using the given client and model.
func New(client anthropic.Client, modelID string, opts ...Option) *Generator {
	g := &Generator{
		client:    client,
		model:     modelID,
		maxTokens: 300,
		retry:     resilience.DefaultRetryConfig(),
	}
	g.retry.OnRetry = resilience.RetryLogger("anthropic", "summarize")
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Summarize generates a 2-3 sentence analysis of the profile.
func (g *Generator) Summarize(ctx context.Context, p model.ProfileRecord) (string, error) {
	resp, err := resilience.DoVal(ctx, g.retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return g.client.CreateMessage(ctx, anthropic.MessageRequest{
			Model:     g.model,
			MaxTokens: g.maxTokens,
			System:    systemPrompt,
			Messages: []anthropic.Message{
				{Role: "user", Content: buildPrompt(p)},
			},
		})
	})
	if err != nil {
		return "", eris.Wrap(err, "insight: summarize")
	}

	return strings.TrimSpace(resp.Text()), nil
}

// buildPrompt lays out the profile's known fields; absent fields render as
// "unknown" so the model does not invent specifics.
func buildPrompt(p model.ProfileRecord) string {
	var b strings.Builder
	b.WriteString("Generate a brief, insightful analysis (2-3 sentences) for this roofing contractor:\n\n")
	fmt.Fprintf(&b, "Company: %s\n", orUnknown(p.Name))
	fmt.Fprintf(&b, "Location: %s\n", orUnknown(p.Address))
	if p.Rating != nil {
		fmt.Fprintf(&b, "Rating: %.1f\n", *p.Rating)
	} else {
		b.WriteString("Rating: unknown\n")
	}
	fmt.Fprintf(&b, "Certifications: %s\n", orNone(p.Certifications))
	fmt.Fprintf(&b, "Services: %s\n", orNone(p.Services))
	b.WriteString("\nFocus on their unique strengths, certifications, and service offerings. ")
	b.WriteString("Make it sound professional and analytical.")
	return b.String()
}

func orUnknown(s *string) string {
	if s == nil || *s == "" {
		return "unknown"
	}
	return *s
}

func orNone(items []string) string {
	if len(items) == 0 {
		return "none listed"
	}
	return strings.Join(items, ", ")
}

// Static is a Summarizer that always returns the same text. Used when no API
// key is configured so assembly still produces a populated insight.
type Static struct {
	Text string
}

// Summarize returns the fixed text.
func (s Static) Summarize(context.Context, model.ProfileRecord) (string, error) {
	return s.Text, nil
}
