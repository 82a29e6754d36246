package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dcshock/sdkswitch/xr"
)

// --- Start, Tick, settle ordering ---

func TestPipeline_Start_NoSettle_Completes(t *testing.T) {
	ctx := context.Background()
	tr := &trace{}
	f := newFixture(&Profile{Name: "A", Group: xr.Android, Steps: []Step{
		tr.step("s0", None), tr.step("s1", None),
	}})
	p := f.pipeline()

	r, err := p.Start(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, Completed, r.Status())
	assert.Equal(t, []string{"s0", "s1"}, tr.steps())
	assert.Equal(t, 2, r.Cursor())
	assert.Len(t, f.remediator.calls, 1)
	assert.Empty(t, f.boundary.keys())
	select {
	case <-r.Done():
	default:
		t.Fatal("Done not closed after completion")
	}
}

func TestPipeline_SettleTicks_NextStepWaits(t *testing.T) {
	ctx := context.Background()
	tr := &trace{}
	f := newFixture(&Profile{Name: "A", Group: xr.Android, Steps: []Step{
		tr.step("s1", Ticks(2)), tr.step("s2", None),
	}})
	p := f.pipeline()

	r, err := p.Start(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, AwaitingSettle, r.Status())
	assert.Equal(t, []string{"s1"}, tr.steps())
	assert.Equal(t, []string{CursorKey("A")}, f.boundary.keys())

	p.Tick(ctx)
	assert.Equal(t, []string{"s1"}, tr.steps(), "s2 ran after one tick")
	assert.Equal(t, AwaitingSettle, r.Status())

	p.Tick(ctx)
	assert.Equal(t, []string{"s1", "s2"}, tr.steps())
	assert.Equal(t, Completed, r.Status())
	assert.Empty(t, f.boundary.keys())
}

func TestPipeline_SettleTicks_CountsFromSuspension(t *testing.T) {
	ctx := context.Background()
	var ranAt []uint64
	var p *Pipeline
	record := func(id string, s Settle) Step {
		return Step{ID: id, Settle: s, Action: func(ctx context.Context, env *Env) (Outcome, error) {
			ranAt = append(ranAt, p.tick)
			return Applied, nil
		}}
	}
	f := newFixture(&Profile{Name: "A", Group: xr.Standalone, Steps: []Step{
		record("s1", Ticks(2)), record("s2", Ticks(3)), record("s3", None),
	}})
	p = f.pipeline()

	p.Tick(ctx)
	p.Tick(ctx)
	_, err := p.Start(ctx, "A")
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		p.Tick(ctx)
	}

	require.Len(t, ranAt, 3)
	assert.Equal(t, []uint64{2, 4, 7}, ranAt)
}

func TestPipeline_Start_UnknownProfile(t *testing.T) {
	p := newFixture().pipeline()
	r, err := p.Start(context.Background(), "NOPE")
	assert.Nil(t, r)
	assert.ErrorIs(t, err, ErrUnknownProfile)
}

func TestPipeline_Start_InvalidProfileLeavesGuardFree(t *testing.T) {
	tr := &trace{}
	f := newFixture(
		&Profile{Name: "BAD", Group: xr.Android, Steps: []Step{tr.step("x", None), tr.step("x", None)}},
		&Profile{Name: "OK", Group: xr.Android, Steps: []Step{tr.step("y", None)}},
	)
	p := f.pipeline()

	_, err := p.Start(context.Background(), "BAD")
	require.Error(t, err)
	assert.Empty(t, tr.steps())

	r, err := p.Start(context.Background(), "OK")
	require.NoError(t, err)
	assert.Equal(t, Completed, r.Status())
}

func TestNew_RequiresCollaborators(t *testing.T) {
	f := newFixture()
	env := f.env
	env.Boundary = nil
	_, err := New(f.catalog, env)
	assert.Error(t, err)

	_, err = New(nil, f.env)
	assert.Error(t, err)
}

// --- Guard ---

func TestPipeline_SecondStartRejectedWhileSettling(t *testing.T) {
	ctx := context.Background()
	tr := &trace{}
	f := newFixture(
		&Profile{Name: "A", Group: xr.Android, Steps: []Step{tr.step("a0", Ticks(1)), tr.step("a1", None)}},
		&Profile{Name: "B", Group: xr.Android, Steps: []Step{tr.step("b0", None)}},
	)
	p := f.pipeline()

	a, err := p.Start(ctx, "A")
	require.NoError(t, err)
	require.Equal(t, AwaitingSettle, a.Status())
	cursor := a.Cursor()

	b, err := p.Start(ctx, "B")
	assert.Nil(t, b)
	assert.ErrorIs(t, err, ErrConcurrentRunRejected)
	assert.True(t, IsRejected(err))
	assert.Equal(t, KindConcurrentRunRejected, KindOf(err))
	assert.Equal(t, cursor, a.Cursor())
	assert.Same(t, a, p.Current())

	p.Tick(ctx)
	require.Equal(t, Completed, a.Status())

	b, err = p.Start(ctx, "B")
	require.NoError(t, err)
	assert.Equal(t, Completed, b.Status())
	assert.Equal(t, []string{"a0", "a1", "b0"}, tr.steps())
}

func TestPipeline_SharedGuardAcrossPipelines(t *testing.T) {
	ctx := context.Background()
	tr := &trace{}
	g := NewGuard()
	f1 := newFixture(&Profile{Name: "A", Group: xr.Android, Steps: []Step{tr.step("a0", Restart())}})
	f2 := newFixture(&Profile{Name: "B", Group: xr.Android, Steps: []Step{tr.step("b0", None)}})
	p1 := f1.pipeline(WithGuard(g))
	p2 := f2.pipeline(WithGuard(g))

	_, err := p1.Start(ctx, "A")
	require.NoError(t, err)
	_, err = p2.Start(ctx, "B")
	assert.ErrorIs(t, err, ErrConcurrentRunRejected)

	require.NoError(t, p1.Abort(ctx))
	r, err := p2.Start(ctx, "B")
	require.NoError(t, err)
	assert.Equal(t, Completed, r.Status())
}

func TestPipeline_Start_RejectedWhileRestartPending(t *testing.T) {
	ctx := context.Background()
	tr := &trace{}
	f := newFixture(
		&Profile{Name: "A", Group: xr.Android, Steps: []Step{tr.step("a0", Restart()), tr.step("a1", None)}},
		&Profile{Name: "B", Group: xr.Android, Steps: []Step{tr.step("b0", None)}},
	)
	a, err := f.pipeline().Start(ctx, "A")
	require.NoError(t, err)
	require.Equal(t, AwaitingRestart, a.Status())

	// The restarted process has an empty guard but the cursor of A on disk.
	after := f.pipeline()
	b, err := after.Start(ctx, "B")
	assert.Nil(t, b)
	assert.True(t, IsRejected(err))
	assert.Nil(t, after.Current())
	assert.Equal(t, []string{CursorKey("A")}, f.boundary.keys())
	assert.Equal(t, []string{"a0"}, tr.steps())

	resumed, err := after.Resume(ctx)
	require.NoError(t, err)
	require.Equal(t, Completed, resumed.Status())

	b, err = after.Start(ctx, "B")
	require.NoError(t, err)
	assert.Equal(t, Completed, b.Status())
	assert.Equal(t, []string{"a0", "a1", "b0"}, tr.steps())
}

func TestPipeline_Start_AllowedAfterPersistedRunAborted(t *testing.T) {
	ctx := context.Background()
	tr := &trace{}
	f := newFixture(
		&Profile{Name: "A", Group: xr.Android, Steps: []Step{tr.step("a0", Restart()), tr.step("a1", None)}},
		&Profile{Name: "B", Group: xr.Android, Steps: []Step{tr.step("b0", None)}},
	)
	_, err := f.pipeline().Start(ctx, "A")
	require.NoError(t, err)

	after := f.pipeline()
	require.NoError(t, after.Abort(ctx))
	b, err := after.Start(ctx, "B")
	require.NoError(t, err)
	assert.Equal(t, Completed, b.Status())
	assert.Equal(t, []string{"a0", "b0"}, tr.steps())
}

// --- Restart and Resume ---

func TestPipeline_Resume_ContinuesAfterRestartStep(t *testing.T) {
	ctx := context.Background()
	tr := &trace{}
	f := newFixture(&Profile{Name: "R", Group: xr.Android, Steps: []Step{
		tr.step("s0", None), tr.step("s1", None), tr.step("s2", Restart()), tr.step("s3", None),
	}})

	before := f.pipeline()
	r1, err := before.Start(ctx, "R")
	require.NoError(t, err)
	assert.Equal(t, AwaitingRestart, r1.Status())
	assert.Equal(t, 3, r1.Cursor())
	assert.Equal(t, []string{"s0", "s1", "s2"}, tr.steps())

	// A fresh pipeline over the same boundary stands in for the restarted process.
	after := f.pipeline()
	r2, err := after.Resume(ctx)
	require.NoError(t, err)
	require.NotNil(t, r2)
	assert.Equal(t, r1.ID(), r2.ID())
	assert.Equal(t, Completed, r2.Status())
	assert.Equal(t, []string{"s0", "s1", "s2", "s3"}, tr.steps())
	assert.Empty(t, f.boundary.keys())
	assert.Len(t, f.remediator.calls, 1)
}

func TestPipeline_Resume_InMemoryRun(t *testing.T) {
	ctx := context.Background()
	tr := &trace{}
	f := newFixture(&Profile{Name: "R", Group: xr.Android, Steps: []Step{
		tr.step("s0", Restart()), tr.step("s1", Ticks(1)), tr.step("s2", None),
	}})
	p := f.pipeline()

	r, err := p.Start(ctx, "R")
	require.NoError(t, err)

	p.Tick(ctx)
	assert.Equal(t, AwaitingRestart, r.Status(), "ticks must not satisfy a restart")

	same, err := p.Resume(ctx)
	require.NoError(t, err)
	assert.Same(t, r, same)
	assert.Equal(t, AwaitingSettle, r.Status())

	again, err := p.Resume(ctx)
	require.NoError(t, err)
	assert.Same(t, r, again)

	p.Tick(ctx)
	assert.Equal(t, Completed, r.Status())
	assert.Equal(t, []string{"s0", "s1", "s2"}, tr.steps())
}

func TestPipeline_Resume_NothingPersisted(t *testing.T) {
	r, err := newFixture().pipeline().Resume(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, r)
}

func TestPipeline_Resume_AfterTickSettleInterrupted(t *testing.T) {
	ctx := context.Background()
	tr := &trace{}
	f := newFixture(&Profile{Name: "T", Group: xr.Standalone, Steps: []Step{
		tr.step("s0", Ticks(5)), tr.step("s1", None),
	}})

	_, err := f.pipeline().Start(ctx, "T")
	require.NoError(t, err)

	r, err := f.pipeline().Resume(ctx)
	require.NoError(t, err)
	assert.Equal(t, Completed, r.Status())
	assert.Equal(t, []string{"s0", "s1"}, tr.steps())
}

func TestPipeline_Resume_RejectedWhileGuardHeld(t *testing.T) {
	ctx := context.Background()
	tr := &trace{}
	g := NewGuard()
	f := newFixture(&Profile{Name: "R", Group: xr.Android, Steps: []Step{tr.step("s0", Restart()), tr.step("s1", None)}})

	_, err := f.pipeline(WithGuard(g)).Start(ctx, "R")
	require.NoError(t, err)

	r, err := f.pipeline(WithGuard(g)).Resume(ctx)
	assert.Nil(t, r)
	assert.ErrorIs(t, err, ErrConcurrentRunRejected)
	assert.Contains(t, f.boundary.keys(), CursorKey("R"))
}

func TestPipeline_Resume_StepOutOfRange(t *testing.T) {
	ctx := context.Background()
	tr := &trace{}
	f := newFixture(&Profile{Name: "R", Group: xr.Android, Steps: []Step{tr.step("s0", None)}})
	value, err := encodeState(RunState{RunID: "x", ProfileName: "R", NextStepIndex: 4})
	require.NoError(t, err)
	require.NoError(t, f.boundary.Persist(CursorKey("R"), value))

	_, err = f.pipeline().Resume(ctx)
	assert.Error(t, err)
	assert.Empty(t, tr.steps())
}

func TestPipeline_TrackPending_ReleasedOnResume(t *testing.T) {
	ctx := context.Background()
	const pkg = "com.example.sdk@1.0.0"
	tr := &trace{}
	install := Step{ID: "install", Settle: Restart(), Action: func(ctx context.Context, env *Env) (Outcome, error) {
		return Applied, env.TrackPending(pkg)
	}}
	f := newFixture(&Profile{Name: "P", Group: xr.Android, Steps: []Step{install, tr.step("after", None)}})

	_, err := f.pipeline().Start(ctx, "P")
	require.NoError(t, err)
	owner, ok, _ := f.boundary.Read(PendingKey(pkg))
	require.True(t, ok)
	assert.Equal(t, "P", owner)

	p := f.pipeline()
	states, err := p.Persisted()
	require.NoError(t, err)
	require.Len(t, states, 1)
	assert.Equal(t, []string{pkg}, states[0].PendingPackages)
	assert.Equal(t, 1, states[0].NextStepIndex)

	r, err := p.Resume(ctx)
	require.NoError(t, err)
	assert.Equal(t, Completed, r.Status())
	_, ok, _ = f.boundary.Read(PendingKey(pkg))
	assert.False(t, ok)
}

func TestPipeline_UnchangedOutcomeSkipsRestart(t *testing.T) {
	ctx := context.Background()
	tr := &trace{}
	already := Step{ID: "install", Settle: Restart(), Action: Noop()}
	f := newFixture(&Profile{Name: "P", Group: xr.Android, Steps: []Step{already, tr.step("after", None)}})

	r, err := f.pipeline().Start(ctx, "P")
	require.NoError(t, err)
	assert.Equal(t, Completed, r.Status())
	assert.Equal(t, []string{"after"}, tr.steps())
}

// --- Failure ---

func TestPipeline_StepError_FailsAtCursor(t *testing.T) {
	ctx := context.Background()
	tr := &trace{}
	boom := Step{ID: "boom", Action: func(ctx context.Context, env *Env) (Outcome, error) {
		return Applied, fmt.Errorf("lookup: %w", xr.ErrFeatureNotFound)
	}}
	f := newFixture(&Profile{Name: "F", Group: xr.Android, Steps: []Step{tr.step("s0", None), boom, tr.step("s2", None)}})
	p := f.pipeline()

	r, err := p.Start(ctx, "F")
	require.Error(t, err)
	assert.ErrorIs(t, err, xr.ErrFeatureNotFound)
	assert.Equal(t, Failed, r.Status())
	assert.Equal(t, KindFeatureNotFound, r.LastError())
	assert.Equal(t, 1, r.Cursor())
	assert.Equal(t, []string{"s0"}, tr.steps())
	assert.Empty(t, f.remediator.calls, "remediation must not run for a failed run")

	// The guard is free again.
	_, err = p.Start(ctx, "F")
	assert.ErrorIs(t, err, xr.ErrFeatureNotFound)

	assert.Equal(t, "step 1 (boom): lookup: feature not found", err.Error())
	assert.Contains(t, fmt.Sprintf("%+v", err), "pipeline.go", "failures carry a stack trace")
}

func TestPipeline_StepErrorAfterSettle_ClearsCursor(t *testing.T) {
	ctx := context.Background()
	tr := &trace{}
	boom := Step{ID: "boom", Action: func(ctx context.Context, env *Env) (Outcome, error) {
		return Applied, xr.ErrFeatureSetNotInstalled
	}}
	f := newFixture(&Profile{Name: "F", Group: xr.Android, Steps: []Step{tr.step("s0", Ticks(1)), boom}})
	p := f.pipeline()

	r, err := p.Start(ctx, "F")
	require.NoError(t, err)
	require.NotEmpty(t, f.boundary.keys())

	p.Tick(ctx)
	assert.Equal(t, Failed, r.Status())
	assert.Equal(t, KindFeatureSetNotInstalled, r.LastError())
	assert.Empty(t, f.boundary.keys())
}

func TestPipeline_StepPanic_Fails(t *testing.T) {
	f := newFixture(&Profile{Name: "F", Group: xr.Android, Steps: []Step{{ID: "p", Action: func(ctx context.Context, env *Env) (Outcome, error) {
		panic("nil host object")
	}}}})
	r, err := f.pipeline().Start(context.Background(), "F")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nil host object")
	assert.Equal(t, Failed, r.Status())
	assert.Equal(t, KindOther, r.LastError())
}

// --- Remediation ---

func TestPipeline_RemediationRunsOnceWithIgnoreList(t *testing.T) {
	ctx := context.Background()
	tr := &trace{}
	f := newFixture(&Profile{Name: "V", Group: xr.Android, IgnoreIssues: []string{"duplicate settings"}, Steps: []Step{
		tr.step("s0", Ticks(1)), tr.step("s1", None),
	}})
	f.remediator.err = &xr.UnfixableError{Group: xr.Android, Issues: []string{"needs a human"}}
	p := f.pipeline()

	r, err := p.Start(ctx, "V")
	require.NoError(t, err)
	p.Tick(ctx)

	assert.Equal(t, Completed, r.Status(), "unfixable issues are not fatal")
	assert.NoError(t, r.Err())
	require.Len(t, f.remediator.calls, 1)
	assert.Equal(t, xr.Android, f.remediator.calls[0].group)
	assert.Equal(t, []string{"duplicate settings"}, f.remediator.calls[0].ignore)
}

// --- Abort ---

func TestPipeline_Abort_WhileSettling(t *testing.T) {
	ctx := context.Background()
	tr := &trace{}
	f := newFixture(
		&Profile{Name: "A", Group: xr.Android, Steps: []Step{tr.step("a0", Ticks(1)), tr.step("a1", None)}},
		&Profile{Name: "B", Group: xr.Android, Steps: []Step{tr.step("b0", None)}},
	)
	p := f.pipeline()

	a, err := p.Start(ctx, "A")
	require.NoError(t, err)
	require.NoError(t, p.Abort(ctx))

	assert.Equal(t, Idle, a.Status())
	assert.ErrorIs(t, a.Err(), ErrAborted)
	assert.Equal(t, KindAborted, a.LastError())
	assert.Empty(t, f.boundary.keys())

	p.Tick(ctx)
	p.Tick(ctx)
	assert.Equal(t, []string{"a0"}, tr.steps(), "aborted run must not continue")

	b, err := p.Start(ctx, "B")
	require.NoError(t, err)
	assert.Equal(t, Completed, b.Status())

	assert.ErrorIs(t, p.Abort(ctx), ErrNoActiveRun)
}

func TestPipeline_Abort_DuringStepStopsBeforeNext(t *testing.T) {
	ctx := context.Background()
	tr := &trace{}
	var p *Pipeline
	aborted := make(chan error, 1)
	slow := Step{ID: "slow", Action: func(ctx context.Context, env *Env) (Outcome, error) {
		go func() { aborted <- p.Abort(ctx) }()
		require.Eventually(t, func() bool { return p.abortTarget.Load() != nil }, time.Second, time.Millisecond)
		return Applied, nil
	}}
	f := newFixture(&Profile{Name: "A", Group: xr.Android, Steps: []Step{slow, tr.step("next", None)}})
	p = f.pipeline()

	r, err := p.Start(ctx, "A")
	assert.ErrorIs(t, err, ErrAborted)
	require.NoError(t, <-aborted)
	assert.Equal(t, Idle, r.Status())
	assert.Empty(t, tr.steps())
	assert.Equal(t, 1, r.Cursor())
}

func TestPipeline_Abort_PersistedOnly(t *testing.T) {
	ctx := context.Background()
	tr := &trace{}
	f := newFixture(&Profile{Name: "R", Group: xr.Android, Steps: []Step{tr.step("s0", Restart()), tr.step("s1", None)}})
	_, err := f.pipeline().Start(ctx, "R")
	require.NoError(t, err)

	p := f.pipeline()
	require.NoError(t, p.Abort(ctx))
	assert.Empty(t, f.boundary.keys())

	r, err := p.Resume(ctx)
	assert.NoError(t, err)
	assert.Nil(t, r)
}

// --- Observer ---

func TestPipeline_ObserverOrder(t *testing.T) {
	ctx := context.Background()
	tr := &trace{}
	var order []string
	var runIDs []string
	obs := &hookObserver{
		beforeRun: func(ctx context.Context, runID, profile string, cursor int) error {
			runIDs = append(runIDs, runID)
			order = append(order, fmt.Sprintf("BeforeRun:%s:%d", profile, cursor))
			return nil
		},
		afterRun: func(ctx context.Context, runID string, status Status, err error) error {
			order = append(order, "AfterRun:"+status.String())
			return nil
		},
		beforeStep: func(ctx context.Context, runID string, i int, id string) error {
			order = append(order, fmt.Sprintf("BeforeStep:%d:%s", i, id))
			return nil
		},
		afterStep: func(ctx context.Context, runID string, i int, id string, o Outcome, err error, d time.Duration) error {
			order = append(order, fmt.Sprintf("AfterStep:%d", i))
			return nil
		},
		suspended: func(ctx context.Context, runID string, next int, s Settle) error {
			order = append(order, fmt.Sprintf("Suspended:%d:%s", next, s))
			return nil
		},
	}
	f := newFixture(&Profile{Name: "O", Group: xr.Android, Steps: []Step{
		tr.step("s0", None), tr.step("s1", Ticks(1)), tr.step("s2", None),
	}})
	p := f.pipeline(WithObserver(obs), WithRunIDs(func() string { return "run-1" }))

	_, err := p.Start(ctx, "O")
	require.NoError(t, err)
	p.Tick(ctx)

	want := []string{
		"BeforeRun:O:0",
		"BeforeStep:0:s0", "AfterStep:0",
		"BeforeStep:1:s1", "AfterStep:1",
		"Suspended:2:ticks:1",
		"BeforeStep:2:s2", "AfterStep:2",
		"AfterRun:completed",
	}
	assert.Equal(t, want, order)
	assert.Equal(t, []string{"run-1"}, runIDs)
}

func TestPipeline_ObserverBeforeStepError_FailsRun(t *testing.T) {
	tr := &trace{}
	obs := &hookObserver{beforeStep: func(ctx context.Context, runID string, i int, id string) error {
		return errors.New("journal full")
	}}
	f := newFixture(&Profile{Name: "O", Group: xr.Android, Steps: []Step{tr.step("s0", None)}})

	r, err := f.pipeline(WithObserver(obs)).Start(context.Background(), "O")
	require.Error(t, err)
	assert.Equal(t, Failed, r.Status())
	assert.Empty(t, tr.steps())
}

func TestPipeline_MultipleObservers(t *testing.T) {
	var a, b int
	count := func(n *int) Observer {
		return &hookObserver{afterStep: func(ctx context.Context, runID string, i int, id string, o Outcome, err error, d time.Duration) error {
			*n++
			return nil
		}}
	}
	tr := &trace{}
	f := newFixture(&Profile{Name: "O", Group: xr.Android, Steps: []Step{tr.step("s0", None), tr.step("s1", None)}})

	_, err := f.pipeline(WithObserver(count(&a)), WithObserver(count(&b))).Start(context.Background(), "O")
	require.NoError(t, err)
	assert.Equal(t, 2, a)
	assert.Equal(t, 2, b)
}

func TestRun_Wait(t *testing.T) {
	ctx := context.Background()
	tr := &trace{}
	f := newFixture(&Profile{Name: "W", Group: xr.Android, Steps: []Step{tr.step("s0", Ticks(1)), tr.step("s1", None)}})
	p := f.pipeline()

	r, err := p.Start(ctx, "W")
	require.NoError(t, err)

	short, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	status, err := r.Wait(short)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, AwaitingSettle, status)

	go p.Tick(ctx)
	status, err = r.Wait(ctx)
	assert.NoError(t, err)
	assert.Equal(t, Completed, status)
}
