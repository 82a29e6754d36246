package observer

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/dcshock/sdkswitch/pipeline"
)

// Event kinds written to a journal.
const (
	EventRunStarted   = "run_started"
	EventRunFinished  = "run_finished"
	EventStepStarted  = "step_started"
	EventStepFinished = "step_finished"
	EventSuspended    = "suspended"
)

// Event is one journal line.
type Event struct {
	Time       time.Time `json:"time"`
	RunID      string    `json:"run_id"`
	Event      string    `json:"event"`
	Profile    string    `json:"profile,omitempty"`
	StepIndex  int       `json:"step_index"`
	StepID     string    `json:"step_id,omitempty"`
	Outcome    string    `json:"outcome,omitempty"`
	Settle     string    `json:"settle,omitempty"`
	Status     string    `json:"status,omitempty"`
	Kind       string    `json:"kind,omitempty"`
	Error      string    `json:"error,omitempty"`
	DurationMs int64     `json:"duration_ms,omitempty"`
}

// Journal appends pipeline transitions as JSON lines. Safe for concurrent use.
type Journal struct {
	mu  sync.Mutex
	w   io.Writer
	c   io.Closer
	now func() time.Time
}

// NewJournal returns a journal writing to w.
func NewJournal(w io.Writer) *Journal {
	return &Journal{w: w, now: time.Now}
}

// OpenJournal opens (or creates) the journal file at path for appending.
func OpenJournal(path string) (*Journal, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	j := NewJournal(f)
	j.c = f
	return j, nil
}

// Close closes the underlying file, if the journal owns one.
func (j *Journal) Close() error {
	if j.c == nil {
		return nil
	}
	return j.c.Close()
}

func (j *Journal) write(e Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	e.Time = j.now().UTC()
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal journal event: %w", err)
	}
	if _, err := j.w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write journal: %w", err)
	}
	return nil
}

// BeforeRun implements pipeline.Observer.
func (j *Journal) BeforeRun(ctx context.Context, runID, profile string, cursor int) error {
	return j.write(Event{RunID: runID, Event: EventRunStarted, Profile: profile, StepIndex: cursor})
}

// AfterRun implements pipeline.Observer.
func (j *Journal) AfterRun(ctx context.Context, runID string, status pipeline.Status, err error) error {
	e := Event{RunID: runID, Event: EventRunFinished, Status: status.String()}
	if err != nil {
		e.Kind = pipeline.KindOf(err).String()
		e.Error = err.Error()
	}
	return j.write(e)
}

// BeforeStep implements pipeline.Observer.
func (j *Journal) BeforeStep(ctx context.Context, runID string, stepIndex int, stepID string) error {
	return j.write(Event{RunID: runID, Event: EventStepStarted, StepIndex: stepIndex, StepID: stepID})
}

// AfterStep implements pipeline.Observer.
func (j *Journal) AfterStep(ctx context.Context, runID string, stepIndex int, stepID string, outcome pipeline.Outcome, stepErr error, duration time.Duration) error {
	e := Event{
		RunID:      runID,
		Event:      EventStepFinished,
		StepIndex:  stepIndex,
		StepID:     stepID,
		Outcome:    outcome.String(),
		DurationMs: duration.Milliseconds(),
	}
	if stepErr != nil {
		e.Outcome = ""
		e.Kind = pipeline.KindOf(stepErr).String()
		e.Error = stepErr.Error()
	}
	return j.write(e)
}

// Suspended implements pipeline.Observer.
func (j *Journal) Suspended(ctx context.Context, runID string, nextStep int, settle pipeline.Settle) error {
	return j.write(Event{RunID: runID, Event: EventSuspended, StepIndex: nextStep, Settle: settle.String()})
}

// ReadJournal decodes every line of r. Blank lines are skipped.
func ReadJournal(r io.Reader) ([]Event, error) {
	var out []Event
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		var e Event
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return nil, fmt.Errorf("journal line %d: %w", line, err)
		}
		out = append(out, e)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}
	return out, nil
}

// RunSummary is the folded history of one run.
type RunSummary struct {
	RunID   string
	Profile string
	// Status is the terminal status, "awaiting-settle" or
	// "awaiting-restart" after a suspension, or "running".
	Status     string
	LastStep   string
	NextStep   int
	Error      string
	Started    time.Time
	Updated    time.Time
	Suspends   int
	StepsTaken int
}

// Summarize folds events into one summary per run, in order of first
// appearance.
func Summarize(events []Event) []RunSummary {
	var order []string
	byID := map[string]*RunSummary{}
	for _, e := range events {
		s, ok := byID[e.RunID]
		if !ok {
			s = &RunSummary{RunID: e.RunID, Started: e.Time}
			byID[e.RunID] = s
			order = append(order, e.RunID)
		}
		s.Updated = e.Time
		switch e.Event {
		case EventRunStarted:
			s.Profile = e.Profile
			s.Status = pipeline.Running.String()
			s.NextStep = e.StepIndex
		case EventStepFinished:
			s.StepsTaken++
			s.LastStep = e.StepID
			s.NextStep = e.StepIndex + 1
		case EventSuspended:
			s.Suspends++
			s.NextStep = e.StepIndex
			s.Status = pipeline.AwaitingSettle.String()
			if e.Settle == pipeline.Restart().String() {
				s.Status = pipeline.AwaitingRestart.String()
			}
		case EventRunFinished:
			s.Status = e.Status
			s.Error = e.Error
		}
	}
	out := make([]RunSummary, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	return out
}
