// Package scheduler drives host frames. The pipeline never waits on its own:
// something has to call Tick, once per frame, on the host and the pipeline
// in that order.
package scheduler

import (
	"context"
	"time"

	"github.com/dcshock/sdkswitch/internal/ctxlog"
)

// Ticker is anything advanced once per host frame.
type Ticker interface {
	Tick(ctx context.Context)
}

// TickFunc adapts a function to Ticker.
type TickFunc func(ctx context.Context)

func (f TickFunc) Tick(ctx context.Context) { f(ctx) }

// Manual ticks its tickers only when told to. Use it in tests as the fake
// tick source.
type Manual struct {
	tickers []Ticker
	count   uint64
}

// NewManual ticks tickers in the given order on every Tick.
func NewManual(tickers ...Ticker) *Manual {
	return &Manual{tickers: tickers}
}

// Tick runs one frame.
func (m *Manual) Tick(ctx context.Context) {
	m.count++
	for _, t := range m.tickers {
		t.Tick(ctx)
	}
}

// Advance runs n frames.
func (m *Manual) Advance(ctx context.Context, n int) {
	for i := 0; i < n; i++ {
		m.Tick(ctx)
	}
}

// Until ticks until done reports true or limit frames have run. It returns the
// number of frames run and whether done was satisfied.
func (m *Manual) Until(ctx context.Context, limit int, done func() bool) (int, bool) {
	for i := 0; i < limit; i++ {
		if done() {
			return i, true
		}
		m.Tick(ctx)
	}
	return limit, done()
}

// Count returns how many frames have run.
func (m *Manual) Count() uint64 { return m.count }

// Loop ticks every interval until done reports true or ctx ends. done is
// checked before each frame, so a run that is already finished costs no
// tick.
func Loop(ctx context.Context, interval time.Duration, done func() bool, tickers ...Ticker) (uint64, error) {
	logger := ctxlog.FromContext(ctx)
	m := NewManual(tickers...)
	if done() {
		return 0, nil
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Debug("Tick loop cancelled.", "frames", m.Count())
			return m.Count(), ctx.Err()
		case <-t.C:
			m.Tick(ctx)
			if done() {
				logger.Debug("Tick loop done.", "frames", m.Count())
				return m.Count(), nil
			}
		}
	}
}
