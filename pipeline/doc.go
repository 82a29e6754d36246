// Package pipeline is the configuration sequencer that switches a project
// between hardware SDK profiles. A Profile is an ordered list of Steps; each
// Step runs one Action against a shared Env and declares how long the host
// must settle before the next Step may observe its effects:
//
//	Step{ID: "clear", Action: clear, Settle: Ticks(2)}  // wait two host ticks
//	Step{ID: "install", Action: install, Settle: Restart()} // wait for a process restart
//
// A Pipeline runs at most one profile at a time. Start takes the single-flight
// Guard before any step executes and returns ErrConcurrentRunRejected if it is
// held. Steps run back to back on the caller's goroutine until a settle
// boundary is reached:
//
//   - Ticks(n): the run is AwaitingSettle and resumes on the n-th call to Tick.
//   - Restart(): the run state is persisted through the RestartBoundary before
//     control returns, and the run is AwaitingRestart. After the process comes
//     back, the host's start hook calls Resume, which continues at the step
//     after the boundary. Resume is a no-op when nothing was persisted.
//
// After the last step the profile's platform group is remediated (FixAll with
// the profile's ignore list), the run is Completed and the guard is released.
// A step error stops the run at its cursor with status Failed. Nothing is
// retried and nothing already applied is rolled back; Abort likewise only
// stops further steps and releases the guard.
//
// # Persisted state
//
// While a run is suspended the boundary holds one key per profile,
// "pipeline.<profile>.cursor", whose value is the JSON encoded RunState (run
// id, profile name, next step index and packages waiting on a reload). Package
// installs waiting on a restart are tracked as "pkg.<identifier>.pending".
// Both are cleared when the run terminates.
//
// Observers receive hooks around runs, steps and suspensions (see Observer and
// MultiObserver), e.g. for structured logging or a run journal.
package pipeline
