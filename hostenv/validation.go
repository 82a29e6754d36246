package hostenv

import (
	"context"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/dcshock/sdkswitch/internal/ctxlog"
	"github.com/dcshock/sdkswitch/xr"
)

// AddIssue records a validation issue. Adding an issue that is already
// present is a no-op.
func (p *Project) AddIssue(issue xr.Issue) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.addIssueLocked(issue) {
		return nil
	}
	return p.saveLocked()
}

func (p *Project) addIssueLocked(issue xr.Issue) bool {
	for _, existing := range p.state.Issues {
		if existing.Group == issue.Group && existing.Message == issue.Message {
			return false
		}
	}
	p.state.Issues = append(p.state.Issues, issue)
	return true
}

// Issues returns the outstanding issues of g.
func (p *Project) Issues(g xr.PlatformGroup) []xr.Issue {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []xr.Issue
	for _, issue := range p.state.Issues {
		if issue.Group == g {
			out = append(out, issue)
		}
	}
	return out
}

// FixAll fixes every fixable issue of g not matched by an ignore substring.
// Issues that are neither fixable nor ignored are returned as an
// *xr.UnfixableError alongside the count of fixed ones.
func (p *Project) FixAll(ctx context.Context, g xr.PlatformGroup, ignore []string) (int, error) {
	logger := ctxlog.FromContext(ctx)
	p.mu.Lock()
	defer p.mu.Unlock()

	var (
		kept      []xr.Issue
		unfixable []string
		fixed     int
	)
	for _, issue := range p.state.Issues {
		switch {
		case issue.Group != g:
			kept = append(kept, issue)
		case ignored(issue.Message, ignore):
			logger.Info("Ignoring validation issue.", "group", g, "issue", issue.Message)
			kept = append(kept, issue)
		case issue.Fixable:
			logger.Debug("Fixed validation issue.", "group", g, "issue", issue.Message)
			fixed++
		default:
			unfixable = append(unfixable, issue.Message)
			kept = append(kept, issue)
		}
	}
	if fixed > 0 {
		p.state.Issues = kept
		if err := p.saveLocked(); err != nil {
			return fixed, err
		}
	}
	if len(unfixable) > 0 {
		return fixed, &xr.UnfixableError{Group: g, Issues: unfixable}
	}
	return fixed, nil
}

// Groups returns the platform groups whose build module is installed.
func (p *Project) Groups() []xr.PlatformGroup {
	return p.Modules()
}

var _ xr.IssueSurveyor = (*Project)(nil)

// Survey collects the outstanding issues of several groups concurrently.
func (p *Project) Survey(ctx context.Context, groups []xr.PlatformGroup) (map[xr.PlatformGroup][]xr.Issue, error) {
	results := make([][]xr.Issue, len(groups))
	eg, ctx := errgroup.WithContext(ctx)
	for i, g := range groups {
		i, g := i, g
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = p.Issues(g)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	out := make(map[xr.PlatformGroup][]xr.Issue, len(groups))
	for i, g := range groups {
		out[g] = slices.Clone(results[i])
	}
	return out, nil
}

func ignored(message string, ignore []string) bool {
	for _, s := range ignore {
		if s != "" && strings.Contains(message, s) {
			return true
		}
	}
	return false
}
