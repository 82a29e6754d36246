package hostenv

import (
	"context"
	"slices"

	"github.com/pkg/errors"

	"github.com/dcshock/sdkswitch/internal/ctxlog"
	"github.com/dcshock/sdkswitch/xr"
)

// Install adds the package identifier resolves to. A package added by an
// earlier Install that has not been reloaded yet reports Installed again,
// since its contents are still invisible.
func (p *Project) Install(ctx context.Context, identifier string) (xr.InstallResult, error) {
	logger := ctxlog.FromContext(ctx)
	name, ok := p.index.Resolve(identifier)
	if !ok {
		return 0, errors.Wrapf(xr.ErrPackageInstall, "unknown package %q", identifier)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if slices.Contains(p.state.Packages, name) {
		logger.Debug("Package already installed.", "package", name)
		return xr.AlreadyInstalled, nil
	}
	if !slices.Contains(p.state.Pending, name) {
		p.state.Pending = append(p.state.Pending, name)
		if err := p.saveLocked(); err != nil {
			p.state.Pending = p.state.Pending[:len(p.state.Pending)-1]
			return 0, errors.Wrapf(xr.ErrPackageInstall, "%s: %v", name, err)
		}
	}
	logger.Info("Package added, reload required.", "package", name, "identifier", identifier)
	return xr.Installed, nil
}

// Remove drops a loaded or pending package. name may be any identifier the
// index resolves. It reports whether anything was removed.
func (p *Project) Remove(ctx context.Context, name string) bool {
	logger := ctxlog.FromContext(ctx)
	resolved, ok := p.index.Resolve(name)
	if !ok {
		resolved = name
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	before := len(p.state.Packages) + len(p.state.Pending)
	drop := func(s string) bool { return s == resolved }
	p.state.Packages = slices.DeleteFunc(p.state.Packages, drop)
	p.state.Pending = slices.DeleteFunc(p.state.Pending, drop)
	if len(p.state.Packages)+len(p.state.Pending) == before {
		logger.Debug("Package not installed.", "package", resolved)
		return false
	}
	p.pruneLocked()
	if err := p.saveLocked(); err != nil {
		logger.Error("Could not save project after removing package.", "package", resolved, "error", err)
	}
	logger.Info("Package removed.", "package", resolved)
	return true
}
