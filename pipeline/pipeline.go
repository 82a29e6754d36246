package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/dcshock/sdkswitch/internal/ctxlog"
	"github.com/dcshock/sdkswitch/xr"
)

// Pipeline applies profiles one at a time. Start, Tick, Resume and Abort are
// serialized on an internal mutex, which stands in for the host's single
// logical thread: step actions never run concurrently.
type Pipeline struct {
	catalog Catalog
	env     Env
	guard   *Guard
	obs     Observer
	now     func() time.Time
	newID   func() string

	mu   sync.Mutex
	tick uint64
	run  *Run

	// active and abortTarget are read without mu so Abort can flag a run
	// whose step is still executing; the step loop checks abortTarget
	// between steps.
	active      atomic.Pointer[Run]
	abortTarget atomic.Pointer[Run]
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithObserver adds an observer. Several observers are called in the order
// they were added.
func WithObserver(o Observer) Option {
	return func(p *Pipeline) {
		if o == nil {
			return
		}
		if p.obs == nil {
			p.obs = o
			return
		}
		p.obs = MultiObserver(p.obs, o)
	}
}

// WithGuard shares g with other pipelines so at most one of them has an
// active run.
func WithGuard(g *Guard) Option {
	return func(p *Pipeline) { p.guard = g }
}

// WithRunIDs replaces the uuid run id generator.
func WithRunIDs(newID func() string) Option {
	return func(p *Pipeline) { p.newID = newID }
}

// New returns a pipeline over catalog. env must carry all four collaborators.
func New(catalog Catalog, env Env, opts ...Option) (*Pipeline, error) {
	if catalog == nil {
		return nil, errors.New("pipeline: catalog required")
	}
	switch {
	case env.Registry == nil:
		return nil, errors.New("pipeline: feature registry required")
	case env.Packages == nil:
		return nil, errors.New("pipeline: package resolver required")
	case env.Remediator == nil:
		return nil, errors.New("pipeline: validation remediator required")
	case env.Boundary == nil:
		return nil, errors.New("pipeline: restart boundary required")
	}
	p := &Pipeline{
		catalog: catalog,
		env:     env,
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.guard == nil {
		p.guard = NewGuard()
	}
	if p.obs == nil {
		p.obs = MultiObserver()
	}
	return p, nil
}

// Start begins a run of the named profile and executes it up to its first
// settle boundary (or to the end). It returns ErrConcurrentRunRejected without
// creating a run while another run holds the guard or a persisted run waits on
// the restart boundary. A run that fails during this call is returned
// together with its error.
func (p *Pipeline) Start(ctx context.Context, name string) (*Run, error) {
	logger := ctxlog.FromContext(ctx)
	prof, ok := p.catalog.Lookup(name)
	if !ok {
		return nil, errors.Wrapf(ErrUnknownProfile, "%q", name)
	}
	if err := prof.Validate(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.guard.TryAcquire() {
		logger.Warn("Start rejected, another run is active.", "profile", prof.Name)
		return nil, ErrConcurrentRunRejected
	}
	// A run suspended by a previous process still owns the slot until it is
	// resumed or aborted.
	states, err := p.persisted()
	if err != nil {
		p.guard.Release()
		return nil, err
	}
	if len(states) > 0 {
		p.guard.Release()
		logger.Warn("Start rejected, a persisted run waits to be resumed.", "profile", prof.Name, "pending", states[0].ProfileName, "step", states[0].NextStepIndex)
		return nil, ErrConcurrentRunRejected
	}
	r := newRun(p.newID(), prof, 0)
	p.run = r
	p.active.Store(r)
	logger.Info("Pipeline run started.", "profile", prof.Name, "run_id", r.id, "steps", len(prof.Steps))
	if err := p.obs.BeforeRun(ctx, r.id, prof.Name, 0); err != nil {
		p.fail(ctx, r, errors.Wrap(err, "before run"))
		return r, r.Err()
	}
	p.advance(ctx, r)
	return r, r.Err()
}

// Tick advances the host clock by one frame. A run waiting on a tick settle
// continues once its tick count has elapsed.
func (p *Pipeline) Tick(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tick++
	r := p.run
	if r == nil || !r.due(p.tick) {
		return
	}
	r.setStatus(Running)
	ctxlog.FromContext(ctx).Debug("Settle elapsed, continuing.", "profile", r.profile.Name, "run_id", r.id, "tick", p.tick, "step", r.Cursor())
	p.advance(ctx, r)
}

// Resume continues a run that stopped at a restart boundary. Call it once at
// process start. It picks up the in-memory run if it is waiting on a restart;
// otherwise it looks for a persisted cursor and rebuilds the run from it. With
// nothing to resume it returns (nil, nil).
func (p *Pipeline) Resume(ctx context.Context) (*Run, error) {
	logger := ctxlog.FromContext(ctx)
	p.mu.Lock()
	defer p.mu.Unlock()

	if r := p.run; r != nil && r.Status().Active() {
		if r.Status() != AwaitingRestart {
			return r, nil
		}
		logger.Info("Resuming after restart.", "profile", r.profile.Name, "run_id", r.id, "step", r.Cursor())
		p.releasePending(ctx, r.profile.Name, r.pendingPackages())
		r.setStatus(Running)
		if err := p.obs.BeforeRun(ctx, r.id, r.profile.Name, r.Cursor()); err != nil {
			p.fail(ctx, r, errors.Wrap(err, "before run"))
			return r, r.Err()
		}
		p.advance(ctx, r)
		return r, r.Err()
	}

	states, err := p.persisted()
	if err != nil {
		return nil, err
	}
	if len(states) == 0 {
		logger.Debug("Nothing to resume.")
		return nil, nil
	}
	state := states[0]
	for _, other := range states[1:] {
		logger.Warn("Ignoring additional persisted run.", "profile", other.ProfileName, "run_id", other.RunID)
	}
	prof, ok := p.catalog.Lookup(state.ProfileName)
	if !ok {
		return nil, errors.Wrapf(ErrUnknownProfile, "resume %q", state.ProfileName)
	}
	if state.NextStepIndex > len(prof.Steps) {
		return nil, errors.Errorf("resume %s: step %d out of range (profile has %d steps)", prof.Name, state.NextStepIndex, len(prof.Steps))
	}
	if !p.guard.TryAcquire() {
		logger.Warn("Resume rejected, another run is active.", "profile", prof.Name)
		return nil, ErrConcurrentRunRejected
	}

	r := newRun(state.RunID, prof, state.NextStepIndex)
	p.run = r
	p.active.Store(r)
	logger.Info("Resuming persisted run.", "profile", prof.Name, "run_id", r.id, "step", state.NextStepIndex, "saved_at", state.SavedAt)
	p.releasePending(ctx, prof.Name, state.PendingPackages)
	if err := p.obs.BeforeRun(ctx, r.id, prof.Name, state.NextStepIndex); err != nil {
		p.fail(ctx, r, errors.Wrap(err, "before run"))
		return r, r.Err()
	}
	p.advance(ctx, r)
	return r, r.Err()
}

// Abort stops the active run after its current step, releases the guard and
// drops the persisted cursor. Mutations already applied stay applied. With no
// run in memory it discards any persisted cursors instead, and returns
// ErrNoActiveRun when there are none.
func (p *Pipeline) Abort(ctx context.Context) error {
	target := p.active.Load()
	if target != nil {
		p.abortTarget.Store(target)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if target != nil {
		// The step loop may already have stopped it.
		if target.Status().Active() {
			p.finishAborted(ctx, target)
		}
		p.abortTarget.CompareAndSwap(target, nil)
		return nil
	}

	states, err := p.persisted()
	if err != nil {
		return err
	}
	if len(states) == 0 {
		return ErrNoActiveRun
	}
	logger := ctxlog.FromContext(ctx)
	for _, s := range states {
		p.clearState(ctx, s.ProfileName, s.PendingPackages)
		logger.Info("Discarded persisted run.", "profile", s.ProfileName, "run_id", s.RunID, "step", s.NextStepIndex)
	}
	return nil
}

// Current returns the most recent run, which may have finished, or nil.
func (p *Pipeline) Current() *Run {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.run
}

// Persisted returns the run states found on the restart boundary, in catalog
// order.
func (p *Pipeline) Persisted() ([]RunState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.persisted()
}

func (p *Pipeline) persisted() ([]RunState, error) {
	var out []RunState
	for _, name := range p.catalog.Names() {
		value, ok, err := p.env.Boundary.Read(CursorKey(name))
		if err != nil {
			return nil, errors.Wrapf(err, "read cursor for %s", name)
		}
		if !ok {
			continue
		}
		state, err := decodeState(value)
		if err != nil {
			return nil, errors.Wrap(err, name)
		}
		if state.ProfileName == "" {
			state.ProfileName = name
		}
		out = append(out, state)
	}
	return out, nil
}

// advance runs steps from the run's cursor until a settle boundary, a failure
// or the end of the profile. Callers hold p.mu.
func (p *Pipeline) advance(ctx context.Context, r *Run) {
	logger := ctxlog.FromContext(ctx).With("profile", r.profile.Name, "run_id", r.id)
	env := p.env.bind(r.profile, r)
	steps := r.profile.Steps

	for {
		if p.abortTarget.Load() == r {
			p.finishAborted(ctx, r)
			return
		}
		i := r.Cursor()
		if i >= len(steps) {
			p.complete(ctx, r)
			return
		}
		step := steps[i]
		if err := p.obs.BeforeStep(ctx, r.id, i, step.ID); err != nil {
			p.fail(ctx, r, errors.Wrapf(err, "before step %d (%s)", i, step.ID))
			return
		}
		start := p.now()
		outcome, err := runAction(ctx, env, step)
		dur := p.now().Sub(start)
		if postErr := p.obs.AfterStep(ctx, r.id, i, step.ID, outcome, err, dur); postErr != nil && err == nil {
			err = errors.Wrap(postErr, "after step")
		}
		if err != nil {
			p.fail(ctx, r, errors.Wrapf(err, "step %d (%s)", i, step.ID))
			return
		}
		logger.Debug("Step done.", "step", step.ID, "index", i, "outcome", outcome, "duration", dur)

		next := i + 1
		settle := step.Settle
		if settle.Kind == SettleRestart && outcome == Unchanged {
			logger.Info("Nothing changed, skipping restart.", "step", step.ID)
			settle = None
		}
		switch settle.Kind {
		case SettleTicks:
			if err := p.persist(r, next); err != nil {
				p.fail(ctx, r, err)
				return
			}
			r.suspend(next, AwaitingSettle, p.tick+uint64(settle.Ticks))
			logger.Debug("Waiting for settle.", "after_step", step.ID, "ticks", settle.Ticks)
			p.suspended(ctx, r, next, settle)
			return
		case SettleRestart:
			if err := p.persist(r, next); err != nil {
				p.fail(ctx, r, err)
				return
			}
			r.suspend(next, AwaitingRestart, 0)
			logger.Info("Restart required before the next step.", "after_step", step.ID, "next", next)
			p.suspended(ctx, r, next, settle)
			return
		default:
			r.setCursor(next)
		}
	}
}

func runAction(ctx context.Context, env *Env, step Step) (outcome Outcome, err error) {
	defer func() {
		if v := recover(); v != nil {
			err = errors.Errorf("panic: %v", v)
		}
	}()
	return step.Action(ctx, env)
}

func (p *Pipeline) persist(r *Run, next int) error {
	value, err := encodeState(RunState{
		RunID:           r.id,
		ProfileName:     r.profile.Name,
		NextStepIndex:   next,
		PendingPackages: r.pendingPackages(),
		SavedAt:         p.now().UTC(),
	})
	if err != nil {
		return errors.Wrap(err, "encode run state")
	}
	if err := p.env.Boundary.Persist(CursorKey(r.profile.Name), value); err != nil {
		return errors.Wrap(err, "persist run state")
	}
	return nil
}

func (p *Pipeline) suspended(ctx context.Context, r *Run, next int, s Settle) {
	if err := p.obs.Suspended(ctx, r.id, next, s); err != nil {
		ctxlog.FromContext(ctx).Warn("Observer failed on suspend.", "run_id", r.id, "error", err)
	}
}

func (p *Pipeline) complete(ctx context.Context, r *Run) {
	logger := ctxlog.FromContext(ctx).With("profile", r.profile.Name, "run_id", r.id)
	fixed, err := p.env.Remediator.FixAll(ctx, r.profile.Group, r.profile.IgnoreIssues)
	switch {
	case errors.Is(err, xr.ErrValidationUnfixable):
		logger.Warn("Validation issues remain.", "fixed", fixed, "error", err)
	case err != nil:
		logger.Error("Validation remediation failed.", "error", err)
	default:
		logger.Info("Validation remediation done.", "fixed", fixed)
	}
	p.finish(ctx, r, Completed, nil)
	logger.Info("Pipeline run completed.")
}

func (p *Pipeline) fail(ctx context.Context, r *Run, err error) {
	ctxlog.FromContext(ctx).Error("Pipeline run failed.", "profile", r.profile.Name, "run_id", r.id, "step", r.Cursor(), "kind", KindOf(err), "error", err)
	p.finish(ctx, r, Failed, err)
}

func (p *Pipeline) finishAborted(ctx context.Context, r *Run) {
	ctxlog.FromContext(ctx).Warn("Pipeline run aborted, applied steps are kept.", "profile", r.profile.Name, "run_id", r.id, "step", r.Cursor())
	p.finish(ctx, r, Idle, ErrAborted)
}

func (p *Pipeline) finish(ctx context.Context, r *Run, status Status, err error) {
	if !r.finish(status, err) {
		return
	}
	p.clearState(ctx, r.profile.Name, r.pendingPackages())
	p.active.CompareAndSwap(r, nil)
	p.guard.Release()
	if obsErr := p.obs.AfterRun(ctx, r.id, status, err); obsErr != nil {
		ctxlog.FromContext(ctx).Warn("Observer failed after run.", "run_id", r.id, "error", obsErr)
	}
}

func (p *Pipeline) clearState(ctx context.Context, profile string, pending []string) {
	logger := ctxlog.FromContext(ctx)
	if err := p.env.Boundary.Clear(CursorKey(profile)); err != nil {
		logger.Error("Could not clear run state.", "profile", profile, "error", err)
	}
	for _, id := range pending {
		if err := p.env.Boundary.Clear(PendingKey(id)); err != nil {
			logger.Error("Could not clear pending package marker.", "package", id, "error", err)
		}
	}
}

// releasePending drops the pending markers of packages whose reload has
// happened. A marker owned by another profile is released too, with a warning.
func (p *Pipeline) releasePending(ctx context.Context, profile string, pending []string) {
	logger := ctxlog.FromContext(ctx)
	for _, id := range pending {
		key := PendingKey(id)
		owner, ok, err := p.env.Boundary.Read(key)
		if err != nil {
			logger.Error("Could not read pending package marker.", "package", id, "error", err)
			continue
		}
		if !ok {
			continue
		}
		if owner != profile {
			logger.Warn("Pending package marker belongs to another profile.", "package", id, "owner", owner, "profile", profile)
		}
		if err := p.env.Boundary.Clear(key); err != nil {
			logger.Error("Could not clear pending package marker.", "package", id, "error", err)
		}
		logger.Info("Package reload observed.", "package", id)
	}
}
