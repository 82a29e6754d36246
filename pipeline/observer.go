package pipeline

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// Observer provides hooks around runs, steps and suspensions so callers can
// log transitions or keep a journal. BeforeRun is called when a run starts or
// resumes (cursor is the first step it will execute). AfterRun is called once
// per terminal state. Suspended is called after the run state has been
// persisted for a settle boundary.
//
// An error from BeforeRun or BeforeStep fails the run; errors from the other
// hooks fail it only if nothing else went wrong.
type Observer interface {
	BeforeRun(ctx context.Context, runID, profile string, cursor int) error
	AfterRun(ctx context.Context, runID string, status Status, err error) error
	BeforeStep(ctx context.Context, runID string, stepIndex int, stepID string) error
	AfterStep(ctx context.Context, runID string, stepIndex int, stepID string, outcome Outcome, stepErr error, duration time.Duration) error
	Suspended(ctx context.Context, runID string, nextStep int, settle Settle) error
}

// MultiObserver fans every hook out to each observer in order. All observers
// are called; the first error is returned, annotated with how many failed.
func MultiObserver(observers ...Observer) Observer {
	list := make([]Observer, 0, len(observers))
	for _, o := range observers {
		if o != nil {
			list = append(list, o)
		}
	}
	return multiObserver(list)
}

type multiObserver []Observer

func (m multiObserver) each(fn func(Observer) error) error {
	var errs []error
	for _, o := range m {
		if err := fn(o); err != nil {
			errs = append(errs, err)
		}
	}
	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	default:
		return errors.Wrapf(errs[0], "%d observers failed", len(errs))
	}
}

func (m multiObserver) BeforeRun(ctx context.Context, runID, profile string, cursor int) error {
	return m.each(func(o Observer) error { return o.BeforeRun(ctx, runID, profile, cursor) })
}

func (m multiObserver) AfterRun(ctx context.Context, runID string, status Status, err error) error {
	return m.each(func(o Observer) error { return o.AfterRun(ctx, runID, status, err) })
}

func (m multiObserver) BeforeStep(ctx context.Context, runID string, stepIndex int, stepID string) error {
	return m.each(func(o Observer) error { return o.BeforeStep(ctx, runID, stepIndex, stepID) })
}

func (m multiObserver) AfterStep(ctx context.Context, runID string, stepIndex int, stepID string, outcome Outcome, stepErr error, d time.Duration) error {
	return m.each(func(o Observer) error { return o.AfterStep(ctx, runID, stepIndex, stepID, outcome, stepErr, d) })
}

func (m multiObserver) Suspended(ctx context.Context, runID string, nextStep int, settle Settle) error {
	return m.each(func(o Observer) error { return o.Suspended(ctx, runID, nextStep, settle) })
}
