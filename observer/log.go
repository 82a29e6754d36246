package observer

import (
	"context"
	"log/slog"
	"time"

	"github.com/dcshock/sdkswitch/internal/ctxlog"
	"github.com/dcshock/sdkswitch/pipeline"
)

// LogObserver logs pipeline transitions. Step starts and unchanged steps log
// at debug level.
type LogObserver struct {
	logger *slog.Logger
}

// NewLogObserver returns an Observer that writes to logger. A nil logger
// means the logger carried in each call's context.
func NewLogObserver(logger *slog.Logger) *LogObserver {
	return &LogObserver{logger: logger}
}

func (o *LogObserver) log(ctx context.Context) *slog.Logger {
	if o.logger != nil {
		return o.logger
	}
	return ctxlog.FromContext(ctx)
}

// BeforeRun implements pipeline.Observer.
func (o *LogObserver) BeforeRun(ctx context.Context, runID, profile string, cursor int) error {
	msg := "Run started."
	if cursor > 0 {
		msg = "Run resumed."
	}
	o.log(ctx).Info(msg, "run_id", runID, "profile", profile, "cursor", cursor)
	return nil
}

// AfterRun implements pipeline.Observer.
func (o *LogObserver) AfterRun(ctx context.Context, runID string, status pipeline.Status, err error) error {
	if err != nil {
		o.log(ctx).Error("Run finished.", "run_id", runID, "status", status, "kind", pipeline.KindOf(err), "error", err)
		return nil
	}
	o.log(ctx).Info("Run finished.", "run_id", runID, "status", status)
	return nil
}

// BeforeStep implements pipeline.Observer.
func (o *LogObserver) BeforeStep(ctx context.Context, runID string, stepIndex int, stepID string) error {
	o.log(ctx).Debug("Step started.", "run_id", runID, "step", stepIndex, "step_id", stepID)
	return nil
}

// AfterStep implements pipeline.Observer.
func (o *LogObserver) AfterStep(ctx context.Context, runID string, stepIndex int, stepID string, outcome pipeline.Outcome, stepErr error, duration time.Duration) error {
	logger := o.log(ctx).With("run_id", runID, "step", stepIndex, "step_id", stepID, "duration", duration)
	switch {
	case stepErr != nil:
		logger.Error("Step failed.", "kind", pipeline.KindOf(stepErr), "error", stepErr)
	case outcome == pipeline.Unchanged:
		logger.Debug("Step already satisfied.")
	default:
		logger.Info("Step applied.")
	}
	return nil
}

// Suspended implements pipeline.Observer.
func (o *LogObserver) Suspended(ctx context.Context, runID string, nextStep int, settle pipeline.Settle) error {
	o.log(ctx).Info("Run waiting for settle.", "run_id", runID, "next_step", nextStep, "settle", settle)
	return nil
}
