package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dcshock/sdkswitch/boundary"
	"github.com/dcshock/sdkswitch/config"
	"github.com/dcshock/sdkswitch/diag"
	"github.com/dcshock/sdkswitch/hostenv"
	"github.com/dcshock/sdkswitch/internal/cli"
	"github.com/dcshock/sdkswitch/internal/ctxlog"
	"github.com/dcshock/sdkswitch/observer"
	"github.com/dcshock/sdkswitch/pipeline"
	"github.com/dcshock/sdkswitch/profiles"
	"github.com/dcshock/sdkswitch/scheduler"
	"github.com/dcshock/sdkswitch/xr"
)

// statusHistory is how many journal runs status prints.
const statusHistory = 10

// pendingPrefix selects the pending package markers on the boundary.
const pendingPrefix = "pkg."

type app struct {
	out      io.Writer
	settings config.Settings
	boundary *boundary.FileStore
	host     *hostenv.Project
	catalog  *profiles.Catalog
	journal  *observer.Journal
	pipe     *pipeline.Pipeline
}

func newApp(ctx context.Context, out io.Writer, s config.Settings) (*app, error) {
	logger := ctxlog.FromContext(ctx)
	if err := os.MkdirAll(s.StateDir, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	b, err := boundary.OpenFile(s.BoundaryPath())
	if err != nil {
		return nil, err
	}
	first, err := boundary.IsFirstRunForVersion(b, "sdkswitch", version)
	if err != nil {
		return nil, err
	}
	if first {
		logger.Warn("First run of this version. Restart the editor once so package changes are picked up.", "version", version)
	}

	host, err := hostenv.Open(ctx, s.ProjectPath())
	if err != nil {
		return nil, err
	}
	logger.Debug("State opened.", "boundary", b.Path(), "project", host.Path())

	catalog := profiles.Builtin()
	if s.ProfilesFile != "" {
		if err := config.LoadProfiles(config.DefaultRegistry(), catalog, s.ProfilesFile); err != nil {
			return nil, &cli.ExitError{Code: 2, Message: err.Error()}
		}
	}

	journal, err := observer.OpenJournal(s.JournalPath())
	if err != nil {
		return nil, err
	}
	pipe, err := pipeline.New(catalog, pipeline.Env{
		Registry:   host,
		Packages:   host,
		Remediator: host,
		Boundary:   b,
	},
		pipeline.WithObserver(observer.NewLogObserver(nil)),
		pipeline.WithObserver(journal),
	)
	if err != nil {
		_ = journal.Close()
		return nil, err
	}
	return &app{
		out:      out,
		settings: s,
		boundary: b,
		host:     host,
		catalog:  catalog,
		journal:  journal,
		pipe:     pipe,
	}, nil
}

func (a *app) Close() error {
	return a.journal.Close()
}

// Exec runs one command.
func (a *app) Exec(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "list":
		return a.list()
	case "start":
		return a.start(ctx, args[0])
	case "remove-all":
		return a.start(ctx, profiles.RemoveAll)
	case "resume":
		return a.resume(ctx)
	case "abort":
		return a.abort(ctx)
	case "status":
		return a.status(ctx)
	case "debug":
		return a.debug(args[0])
	case "draw":
		return a.draw(args[0])
	default:
		return &cli.ExitError{Code: 2, Message: fmt.Sprintf("unknown command %q", cmd)}
	}
}

func (a *app) list() error {
	saved := map[string]bool{}
	states, err := a.pipe.Persisted()
	if err != nil {
		return err
	}
	for _, s := range states {
		saved[s.ProfileName] = true
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PROFILE\tGROUP\tSTEPS\t")
	for _, name := range a.catalog.Names() {
		p, _ := a.catalog.Lookup(name)
		mark := ""
		if saved[name] {
			mark = "(interrupted)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", p.Name, p.Group, len(p.Steps), mark)
	}
	return tw.Flush()
}

// start resumes an interrupted run first, so a run waiting on a restart
// keeps the guard, then applies name.
func (a *app) start(ctx context.Context, name string) error {
	if _, ok := a.catalog.Lookup(name); !ok {
		return &cli.ExitError{Code: 2, Message: fmt.Sprintf("unknown profile %q", name)}
	}
	resumed, err := a.pipe.Resume(ctx)
	if err != nil {
		return runError(err)
	}
	if resumed != nil {
		fmt.Fprintf(a.out, "Resuming interrupted %s run.\n", resumed.Profile().Name)
		if err := a.drive(ctx, resumed); err != nil {
			return err
		}
		if resumed.Status() == pipeline.AwaitingRestart {
			return &cli.ExitError{Code: 3, Message: fmt.Sprintf("cannot start %s: %s is waiting for a restart", name, resumed.Profile().Name)}
		}
	}
	r, err := a.pipe.Start(ctx, name)
	if r == nil {
		return runError(err)
	}
	return a.drive(ctx, r)
}

func (a *app) resume(ctx context.Context) error {
	r, err := a.pipe.Resume(ctx)
	if err != nil {
		return runError(err)
	}
	if r == nil {
		fmt.Fprintln(a.out, "Nothing to resume.")
		return nil
	}
	return a.drive(ctx, r)
}

// drive ticks the host and the pipeline until r stops or needs a restart.
func (a *app) drive(ctx context.Context, r *pipeline.Run) error {
	done := func() bool {
		s := r.Status()
		return s != pipeline.Running && s != pipeline.AwaitingSettle
	}
	_, err := scheduler.Loop(ctx, a.settings.TickInterval.Duration(), done, a.host, a.pipe)
	if err != nil {
		return &cli.ExitError{Code: 130, Message: fmt.Sprintf("interrupted at step %d of %s; run \"sdkswitch resume\" to continue", r.Cursor(), r.Profile().Name)}
	}
	p := r.Profile()
	switch r.Status() {
	case pipeline.Completed:
		fmt.Fprintf(a.out, "Profile %s applied.\n", p.Name)
	case pipeline.AwaitingRestart:
		fmt.Fprintf(a.out, "Profile %s needs a restart after step %d. Reload the project, then run \"sdkswitch resume\".\n", p.Name, r.Cursor())
	case pipeline.Failed:
		return &cli.ExitError{Code: 1, Message: fmt.Sprintf("profile %s failed at step %d (%s): %v", p.Name, r.Cursor(), r.LastError(), r.Err())}
	default:
		fmt.Fprintf(a.out, "Profile %s stopped: %v\n", p.Name, r.Err())
	}
	return nil
}

func (a *app) abort(ctx context.Context) error {
	err := a.pipe.Abort(ctx)
	if errors.Is(err, pipeline.ErrNoActiveRun) {
		fmt.Fprintln(a.out, "No run to abort.")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Run aborted. Settings already applied are kept.")
	return nil
}

func (a *app) status(ctx context.Context) error {
	states, err := a.pipe.Persisted()
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	if len(states) == 0 {
		fmt.Fprintln(tw, "No interrupted runs.")
	} else {
		fmt.Fprintln(tw, "INTERRUPTED\tNEXT STEP\tPENDING\tSAVED AT\tRUN ID")
		for _, s := range states {
			fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\n", s.ProfileName, s.NextStepIndex, len(s.PendingPackages), s.SavedAt.Format(time.RFC3339), s.RunID)
		}
	}

	if keys := a.boundary.Keys(pendingPrefix); len(keys) > 0 {
		fmt.Fprintln(tw, "\nPENDING PACKAGE\tOWNER\tSINCE\t")
		for _, key := range keys {
			owner, _, err := a.boundary.Read(key)
			if err != nil {
				return err
			}
			since, _ := a.boundary.UpdatedAt(key)
			pkg := strings.TrimSuffix(strings.TrimPrefix(key, pendingPrefix), ".pending")
			fmt.Fprintf(tw, "%s\t%s\t%s\t\n", pkg, owner, since.Format(time.RFC3339))
		}
	}

	issues, err := a.host.Survey(ctx, a.host.Groups())
	if err != nil {
		return err
	}
	fmt.Fprintln(tw, "\nMODULE\tOPEN ISSUES\tFIXABLE\t")
	for _, g := range a.host.Groups() {
		fixable := 0
		for _, issue := range issues[g] {
			if issue.Fixable {
				fixable++
			}
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t\n", g, len(issues[g]), fixable)
	}

	sums, err := a.history()
	if err != nil {
		return err
	}
	if len(sums) > 0 {
		fmt.Fprintln(tw, "\nPROFILE\tSTATUS\tSTEPS\tUPDATED\tRUN ID")
		for _, s := range sums {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", s.Profile, s.Status, s.StepsTaken, s.Updated.Format(time.RFC3339), s.RunID)
		}
	}
	return tw.Flush()
}

// history returns the most recent journal runs, oldest first.
func (a *app) history() ([]observer.RunSummary, error) {
	f, err := os.Open(a.settings.JournalPath())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()
	events, err := observer.ReadJournal(f)
	if err != nil {
		return nil, err
	}
	sums := observer.Summarize(events)
	if len(sums) > statusHistory {
		sums = sums[len(sums)-statusHistory:]
	}
	return sums, nil
}

func (a *app) debug(group string) error {
	groups := a.host.Modules()
	if group != "all" {
		g, err := xr.ParsePlatformGroup(group)
		if err != nil {
			return &cli.ExitError{Code: 2, Message: err.Error()}
		}
		groups = []xr.PlatformGroup{g}
	}
	for i, g := range groups {
		if i > 0 {
			fmt.Fprintln(a.out)
		}
		if err := diag.DebugAllAvailableInfo(a.out, a.host, g); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) draw(name string) error {
	p, ok := a.catalog.Lookup(name)
	if !ok {
		return &cli.ExitError{Code: 2, Message: fmt.Sprintf("unknown profile %q", name)}
	}
	return diag.DrawProfile(a.out, p)
}

func runError(err error) error {
	switch {
	case pipeline.IsRejected(err):
		return &cli.ExitError{Code: 3, Message: "another run is active or waits for a restart; run \"sdkswitch resume\" or \"sdkswitch abort\""}
	case errors.Is(err, pipeline.ErrUnknownProfile):
		return &cli.ExitError{Code: 2, Message: err.Error()}
	default:
		return err
	}
}
