// Package flow executes ordered sequences of browser interaction steps with
// per-step failure policies. A required step failing aborts the flow; an
// optional step failing leaves its output slot empty and the flow proceeds.
package flow

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/browser"
)

// Policy declares how a step's failure affects the rest of the flow.
type Policy int

const (
	// Required steps abort the flow when they fail.
	Required Policy = iota
	// Optional steps record a soft failure and let the flow proceed.
	Optional
)

// Outcome classifies one executed step.
type Outcome int

const (
	Success Outcome = iota
	SoftFail
	HardFail
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case SoftFail:
		return "soft_fail"
	case HardFail:
		return "hard_fail"
	default:
		return "unknown"
	}
}

// ErrTargetNotFound marks a step whose locator chain was exhausted without a
// match. Distinct from interaction errors so callers can tell "the element is
// gone" from "the page broke".
var ErrTargetNotFound = errors.New("flow: target not found")

// Action performs one interaction against the driver. timeout is the step's
// element-resolution budget.
type Action func(ctx context.Context, d browser.Driver, timeout time.Duration) error

// Step is one unit of UI interaction.
type Step struct {
	Name   string
	Policy Policy
	// Transition marks steps that trigger a page transition; the engine
	// settles the page after they succeed.
	Transition bool
	Action     Action
}

// StepOutcome records how one step ended.
type StepOutcome struct {
	Step    string
	Outcome Outcome
	Err     error
}

// Result summarizes a flow run. Err is non-nil only for a hard failure or a
// missed deadline; soft failures are listed but do not fail the flow.
type Result struct {
	Steps      []StepOutcome
	FailedStep string
	Err        error
}

// SoftFails returns the names of steps that soft-failed.
func (r Result) SoftFails() []string {
	var out []string
	for _, s := range r.Steps {
		if s.Outcome == SoftFail {
			out = append(out, s.Step)
		}
	}
	return out
}

// Engine runs flows against one driver. It owns the per-step resolution
// budget and the post-transition settle discipline; whole-flow retry is the
// caller's decision.
type Engine struct {
	d              browser.Driver
	stepTimeout    time.Duration
	settleTimeout  time.Duration
	settleFallback time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithStepTimeout sets the element-resolution budget per step.
func WithStepTimeout(d time.Duration) Option {
	return func(e *Engine) { e.stepTimeout = d }
}

// WithSettleTimeout bounds the post-transition readiness wait.
func WithSettleTimeout(d time.Duration) Option {
	return func(e *Engine) { e.settleTimeout = d }
}

// WithSettleFallback caps the fixed delay used only when the readiness
// signal itself fails.
func WithSettleFallback(d time.Duration) Option {
	return func(e *Engine) { e.settleFallback = d }
}

// New creates an Engine with defaults of a 15s step budget, 10s settle
// wait, and 2s fallback delay.
func New(d browser.Driver, opts ...Option) *Engine {
	e := &Engine{
		d:              d,
		stepTimeout:    15 * time.Second,
		settleTimeout:  10 * time.Second,
		settleFallback: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Driver exposes the engine's driver for direct reads outside a flow.
func (e *Engine) Driver() browser.Driver { return e.d }

// Run executes steps strictly in order. No new step starts once ctx is done;
// a step already in flight runs to its own bounded timeout.
func (e *Engine) Run(ctx context.Context, steps []Step) Result {
	var res Result

	for _, st := range steps {
		if err := ctx.Err(); err != nil {
			res.Steps = append(res.Steps, StepOutcome{Step: st.Name, Outcome: HardFail, Err: err})
			res.FailedStep = st.Name
			res.Err = eris.Wrapf(err, "flow: canceled before step %q", st.Name)
			return res
		}

		err := st.Action(ctx, e.d, e.stepTimeout)
		switch {
		case err == nil:
			res.Steps = append(res.Steps, StepOutcome{Step: st.Name, Outcome: Success})
			if st.Transition {
				e.settle(ctx)
			}

		case st.Policy == Optional:
			res.Steps = append(res.Steps, StepOutcome{Step: st.Name, Outcome: SoftFail, Err: err})
			zap.L().Debug("flow: optional step skipped",
				zap.String("step", st.Name),
				zap.Error(err),
			)

		default:
			res.Steps = append(res.Steps, StepOutcome{Step: st.Name, Outcome: HardFail, Err: err})
			res.FailedStep = st.Name
			res.Err = eris.Wrapf(err, "flow: step %q", st.Name)
			return res
		}
	}

	return res
}

// settle waits for the document to stabilize after a page transition. The
// capped fixed delay runs only when the readiness signal fails, never as the
// default mechanism.
func (e *Engine) settle(ctx context.Context) {
	sctx, cancel := context.WithTimeout(ctx, e.settleTimeout)
	err := e.d.WaitReady(sctx)
	cancel()

	if err == nil || ctx.Err() != nil {
		return
	}

	zap.L().Debug("flow: readiness signal failed, falling back to fixed delay",
		zap.Duration("delay", e.settleFallback),
		zap.Error(err),
	)
	timer := time.NewTimer(e.settleFallback)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
