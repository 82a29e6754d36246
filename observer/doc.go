// Package observer provides pipeline.Observer implementations.
//
//   - LogObserver: writes every run, step and suspension transition to a
//     slog.Logger.
//   - Journal: appends one JSON line per transition to a file so runs can be
//     inspected after the process exits, including across restarts (a resumed
//     run keeps its run id).
//   - ReadJournal and Summarize: read a journal back and fold it into one
//     summary per run, for status reporting.
package observer
