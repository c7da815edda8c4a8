package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/mediabridge-go/internal/domain"
	"github.com/yourusername/mediabridge-go/internal/infrastructure"
)

// Phase is the position of a chain walk
type Phase string

const (
	PhaseNotStarted Phase = "not_started"
	PhaseTrying     Phase = "trying"
	PhaseSucceeded  Phase = "succeeded"
	// PhaseFailed ends the walk on a failure that may not advance
	PhaseFailed    Phase = "failed"
	PhaseExhausted Phase = "exhausted"
)

// State is a snapshot of one chain walk
type State struct {
	Phase Phase
	// Index is the provider being tried, or the last one tried once terminal
	Index  int
	Result domain.ProviderResult
}

// Terminal reports whether the walk is over
func (s State) Terminal() bool {
	return s.Phase == PhaseSucceeded || s.Phase == PhaseFailed || s.Phase == PhaseExhausted
}

// TransitionPolicy holds the knobs the transition function consults
type TransitionPolicy struct {
	FallbackEnabled bool
	// AlwaysAdvance lists providers whose retryable failures advance the chain
	// even when fallback is disabled
	AlwaysAdvance []domain.ProviderID
}

func (p TransitionPolicy) mayAdvance(from domain.ProviderID) bool {
	if p.FallbackEnabled {
		return true
	}
	for _, id := range p.AlwaysAdvance {
		if id == from {
			return true
		}
	}
	return false
}

// Start returns the initial state for chain
func Start(chain domain.ProviderChain) State {
	if len(chain) == 0 {
		return State{
			Phase:  PhaseExhausted,
			Index:  -1,
			Result: domain.NewFailure(domain.KindUnknown, "no providers configured"),
		}
	}
	return State{Phase: PhaseTrying, Index: 0}
}

// Transition applies the result of the current attempt to s. It performs no
// I/O; the same inputs always give the same state.
func Transition(s State, chain domain.ProviderChain, policy TransitionPolicy, result domain.ProviderResult) State {
	if s.Phase != PhaseTrying {
		return s
	}
	if result == nil {
		result = domain.NewFailure(domain.KindUnknown, "provider %s returned no result", chain[s.Index])
	}

	if domain.IsSuccess(result) {
		return State{Phase: PhaseSucceeded, Index: s.Index, Result: result}
	}

	failure, ok := result.(*domain.Failure)
	if !ok || failure == nil {
		// A success variant without content, e.g. an empty MultiURL
		failure = domain.NewFailure(domain.KindEmptyContent, "provider %s returned an empty %s", chain[s.Index], domain.ResultType(result))
	}

	switch {
	case !failure.Retryable:
		return State{Phase: PhaseFailed, Index: s.Index, Result: failure}
	case s.Index+1 >= len(chain):
		return State{Phase: PhaseExhausted, Index: s.Index, Result: failure}
	case !policy.mayAdvance(chain[s.Index]):
		return State{Phase: PhaseFailed, Index: s.Index, Result: failure}
	default:
		return State{Phase: PhaseTrying, Index: s.Index + 1, Result: failure}
	}
}

// Attempt describes one finished provider attempt
type Attempt struct {
	Sequence int
	Provider domain.ProviderID
	Platform domain.Platform
	Result   domain.ProviderResult
	Duration time.Duration
}

// Failure returns the attempt's failure, or nil on success
func (a Attempt) Failure() *domain.Failure {
	f, _ := a.Result.(*domain.Failure)
	return f
}

// AttemptObserver is told about every attempt as soon as it finishes
type AttemptObserver func(Attempt)

// Outcome is the result of one chain walk
type Outcome struct {
	Result   domain.ProviderResult
	Provider domain.ProviderID
	Phase    Phase
	Attempts []Attempt
	// Canonical and Auxiliary split a URL-shaped success into its primary
	// link and the rest
	Canonical string
	Auxiliary []string
}

// Failure returns the terminal failure, or nil on success
func (o *Outcome) Failure() *domain.Failure {
	f, _ := o.Result.(*domain.Failure)
	return f
}

// Controller walks a provider chain for one request at a time. It keeps no
// state between calls.
type Controller struct {
	providers map[domain.ProviderID]domain.Provider
	workspace *infrastructure.Workspace
	policy    TransitionPolicy
	logger    *zap.Logger
}

// NewController creates a controller over the given providers
func NewController(providers []domain.Provider, workspace *infrastructure.Workspace, policy TransitionPolicy, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	byID := make(map[domain.ProviderID]domain.Provider, len(providers))
	for _, p := range providers {
		byID[p.ID()] = p
	}
	return &Controller{
		providers: byID,
		workspace: workspace,
		policy:    policy,
		logger:    logger,
	}
}

// Provider returns the registered provider with id
func (c *Controller) Provider(id domain.ProviderID) (domain.Provider, bool) {
	p, ok := c.providers[id]
	return p, ok
}

// Run walks chain for req. Providers are tried one at a time; each gets its
// own workspace directory which is removed before the next one starts.
func (c *Controller) Run(ctx context.Context, req domain.MediaRequest, chain domain.ProviderChain, observe AttemptObserver) *Outcome {
	platform := req.Platform()
	outcome := &Outcome{}

	state := Start(chain)
	for state.Phase == PhaseTrying {
		id := chain[state.Index]
		if err := ctx.Err(); err != nil {
			state = State{Phase: PhaseFailed, Index: state.Index, Result: domain.NewFailure(domain.KindTimeout, "request cancelled before %s: %v", id, err)}
			break
		}

		attempt := c.attempt(ctx, req, id, platform, state.Index+1)
		outcome.Attempts = append(outcome.Attempts, attempt)
		if observe != nil {
			observe(attempt)
		}

		state = Transition(state, chain, c.policy, attempt.Result)
		if state.Phase == PhaseTrying {
			f := attempt.Failure()
			c.logger.Info("Advancing to next provider",
				zap.String("from", string(id)),
				zap.String("to", string(chain[state.Index])),
				zap.String("kind", string(f.Kind)))
		}
	}

	outcome.Phase = state.Phase
	outcome.Result = state.Result
	if state.Index >= 0 && state.Index < len(chain) {
		outcome.Provider = chain[state.Index]
	}

	switch r := state.Result.(type) {
	case *domain.DirectURL:
		outcome.Canonical = r.URL
	case *domain.MultiURL:
		outcome.Canonical = r.Canonical()
		outcome.Auxiliary = r.Auxiliary()
	}
	return outcome
}

// attempt runs one provider inside a fresh workspace directory
func (c *Controller) attempt(ctx context.Context, req domain.MediaRequest, id domain.ProviderID, platform domain.Platform, seq int) Attempt {
	start := time.Now()
	result := c.fetch(ctx, req, id, platform)
	a := Attempt{
		Sequence: seq,
		Provider: id,
		Platform: platform,
		Result:   result,
		Duration: time.Since(start),
	}

	fields := []zap.Field{
		zap.String("provider", string(id)),
		zap.String("platform", string(platform)),
		zap.Int("attempt", seq),
		zap.Duration("duration", a.Duration),
		zap.String("outcome", domain.ResultType(result)),
	}
	if f := a.Failure(); f != nil {
		c.logger.Warn("Provider attempt failed", append(fields,
			zap.String("kind", string(f.Kind)),
			zap.Bool("retryable", f.Retryable),
			zap.String("message", f.Message))...)
	} else {
		c.logger.Info("Provider attempt succeeded", fields...)
	}
	return a
}

func (c *Controller) fetch(ctx context.Context, req domain.MediaRequest, id domain.ProviderID, platform domain.Platform) (result domain.ProviderResult) {
	provider, ok := c.providers[id]
	if !ok {
		return domain.NewFailure(domain.KindUnknown, "provider %s is not registered", id)
	}

	hint := domain.FetchHint{Platform: platform}
	if c.workspace != nil {
		dir, cleanup, err := c.workspace.AttemptDir(string(id))
		if err != nil {
			return domain.NewFailure(domain.KindUnknown, "workspace: %v", err)
		}
		defer cleanup()
		hint.WorkDir = dir
	}

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Provider panicked", zap.String("provider", string(id)), zap.Any("panic", r))
			result = domain.NewFailure(domain.KindUnknown, "provider %s panicked: %v", id, r)
		}
	}()
	result = provider.Fetch(ctx, req, hint)
	if result == nil {
		return domain.NewFailure(domain.KindUnknown, "provider %s returned no result", id)
	}
	return result
}

// String renders the outcome for logs
func (o *Outcome) String() string {
	if f := o.Failure(); f != nil {
		return fmt.Sprintf("%s after %d attempt(s): %s", o.Phase, len(o.Attempts), f.Error())
	}
	return fmt.Sprintf("%s via %s (%s)", o.Phase, o.Provider, domain.ResultType(o.Result))
}
