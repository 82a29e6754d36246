package pipeline

import (
	"context"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/dcshock/sdkswitch/xr"
)

// SettleKind says what the host must do before the next step may run.
type SettleKind int

const (
	SettleNone SettleKind = iota
	SettleTicks
	SettleRestart
)

// Settle is a step's settle requirement. The zero value is None.
type Settle struct {
	Kind  SettleKind
	Ticks int // only for SettleTicks; always >= 1
}

// None is the settle requirement of a step whose effects are visible
// immediately.
var None = Settle{}

// Ticks returns a settle requirement of n host ticks.
func Ticks(n int) Settle { return Settle{Kind: SettleTicks, Ticks: n} }

// Restart returns a settle requirement of a full process restart.
func Restart() Settle { return Settle{Kind: SettleRestart} }

// String renders the settle in the form accepted by ParseSettle.
func (s Settle) String() string {
	switch s.Kind {
	case SettleTicks:
		return "ticks:" + strconv.Itoa(s.Ticks)
	case SettleRestart:
		return "restart"
	default:
		return "none"
	}
}

// ParseSettle parses "none" (or ""), "ticks:<n>" and "restart".
func ParseSettle(s string) (Settle, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	switch {
	case v == "" || v == "none":
		return None, nil
	case v == "restart":
		return Restart(), nil
	case strings.HasPrefix(v, "ticks:"):
		n, err := strconv.Atoi(strings.TrimPrefix(v, "ticks:"))
		if err != nil || n < 1 {
			return None, errors.Errorf("settle %q: tick count must be a positive integer", s)
		}
		return Ticks(n), nil
	default:
		return None, errors.Errorf("settle %q not supported (use none, ticks:<n> or restart)", s)
	}
}

// Outcome reports whether an action changed the environment.
type Outcome int

const (
	// Applied: the environment changed.
	Applied Outcome = iota
	// Unchanged: the environment was already in the desired state. A Restart
	// settle is skipped for an unchanged step since nothing needs to reload.
	Unchanged
)

func (o Outcome) String() string {
	if o == Unchanged {
		return "unchanged"
	}
	return "applied"
}

// Action is a single configuration mutation. It runs to completion once
// started; ctx is only used for logging and collaborator calls.
type Action func(ctx context.Context, env *Env) (Outcome, error)

// Step is one atomic mutation plus its settle requirement.
type Step struct {
	ID     string
	Action Action
	Settle Settle
}

// Env holds the collaborator handles shared by every step of a run. The
// pipeline hands each run its own copy bound to the run's profile.
type Env struct {
	Registry   xr.FeatureRegistry
	Packages   xr.PackageResolver
	Remediator xr.ValidationRemediator
	Boundary   xr.RestartBoundary

	profile *Profile
	run     *Run
}

// Profile returns the profile the current run is applying, or nil outside a
// run.
func (e *Env) Profile() *Profile { return e.profile }

// Group returns the current profile's platform group.
func (e *Env) Group() xr.PlatformGroup {
	if e.profile == nil {
		return xr.Unknown
	}
	return e.profile.Group
}

// TrackPending records that identifier was installed and is waiting for a
// reload. The marker is persisted as "pkg.<identifier>.pending" (value: the
// owning profile) and released when the run resumes after the restart.
func (e *Env) TrackPending(identifier string) error {
	if e.Boundary == nil || e.profile == nil {
		return errors.Errorf("track pending %q: no active run", identifier)
	}
	if err := e.Boundary.Persist(PendingKey(identifier), e.profile.Name); err != nil {
		return errors.Wrapf(err, "persist pending package %q", identifier)
	}
	if e.run != nil {
		e.run.addPending(identifier)
	}
	return nil
}

func (e *Env) bind(p *Profile, r *Run) *Env {
	out := *e
	out.profile = p
	out.run = r
	return &out
}

// Noop returns an action that changes nothing. Useful as a placeholder step
// or as a pure settle boundary.
func Noop() Action {
	return func(ctx context.Context, env *Env) (Outcome, error) {
		return Unchanged, nil
	}
}

// Tap returns an action that calls fn and reports Unchanged. Use for logging
// or test probes between mutations.
func Tap(fn func(ctx context.Context, env *Env)) Action {
	return func(ctx context.Context, env *Env) (Outcome, error) {
		fn(ctx, env)
		return Unchanged, nil
	}
}
