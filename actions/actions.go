// Package actions is the step vocabulary profiles are built from. Each
// function returns a pipeline.Action that mutates the host through the
// collaborators in pipeline.Env, scoped to the running profile's platform
// group. All of them are idempotent: reapplying a profile reports Unchanged
// where nothing had to change.
package actions

import (
	"context"
	"slices"

	"github.com/pkg/errors"

	"github.com/dcshock/sdkswitch/internal/ctxlog"
	"github.com/dcshock/sdkswitch/pipeline"
	"github.com/dcshock/sdkswitch/xr"
)

// InstallPackage installs identifier. A fresh install is tracked as pending
// and reports Applied, so a Restart settle on the step takes effect; an
// already installed package reports Unchanged and the restart is skipped.
func InstallPackage(identifier string) pipeline.Action {
	return func(ctx context.Context, env *pipeline.Env) (pipeline.Outcome, error) {
		res, err := env.Packages.Install(ctx, identifier)
		if err != nil {
			if errors.Is(err, xr.ErrPackageInstall) {
				return pipeline.Unchanged, err
			}
			return pipeline.Unchanged, errors.Wrapf(xr.ErrPackageInstall, "%s: %v", identifier, err)
		}
		if res == xr.AlreadyInstalled {
			ctxlog.FromContext(ctx).Info("Package already installed.", "package", identifier)
			return pipeline.Unchanged, nil
		}
		if err := env.TrackPending(identifier); err != nil {
			return pipeline.Applied, err
		}
		return pipeline.Applied, nil
	}
}

// RemovePackages removes every named package that is installed. Missing
// packages are skipped.
func RemovePackages(names ...string) pipeline.Action {
	return func(ctx context.Context, env *pipeline.Env) (pipeline.Outcome, error) {
		out := pipeline.Unchanged
		for _, name := range names {
			if env.Packages.Remove(ctx, name) {
				out = pipeline.Applied
			}
		}
		return out, nil
	}
}

// SetLoader makes id the only enabled loader of the profile's group.
func SetLoader(id string) pipeline.Action {
	return func(ctx context.Context, env *pipeline.Env) (pipeline.Outcome, error) {
		g := env.Group()
		loaders, err := env.Registry.ListLoaders(g)
		if err != nil {
			return pipeline.Unchanged, errors.Wrapf(err, "list loaders of %s", g)
		}
		if !slices.ContainsFunc(loaders, func(l xr.Loader) bool { return l.ID == id }) {
			return pipeline.Unchanged, errors.Wrapf(xr.ErrFeatureNotFound, "loader %q in %s", id, g)
		}
		out := pipeline.Unchanged
		for _, l := range loaders {
			want := l.ID == id
			if l.Enabled == want {
				continue
			}
			if err := env.Registry.SetLoaderEnabled(g, l.ID, want); err != nil {
				return out, errors.Wrapf(err, "set loader %q", l.ID)
			}
			out = pipeline.Applied
		}
		return out, nil
	}
}

// ClearExclusive disables every feature-set and every feature in each group
// sharing the profile's exclusivity group. Loaders are not touched. Follow it
// with a tick settle before enabling the target feature-set.
func ClearExclusive() pipeline.Action {
	return func(ctx context.Context, env *pipeline.Env) (pipeline.Outcome, error) {
		out := pipeline.Unchanged
		for _, g := range xr.ExclusivityGroup(env.Group()) {
			sets, err := env.Registry.ListFeatureSets(g)
			if err != nil {
				return out, errors.Wrapf(err, "list feature sets of %s", g)
			}
			for _, s := range sets {
				if !s.Enabled {
					continue
				}
				if err := env.Registry.SetFeatureSetEnabled(g, s.ID, false); err != nil {
					return out, errors.Wrapf(err, "disable feature set %q", s.ID)
				}
				out = pipeline.Applied
			}
			features, err := env.Registry.ListFeatures(g)
			if err != nil {
				return out, errors.Wrapf(err, "list features of %s", g)
			}
			for _, f := range features {
				if !f.Enabled {
					continue
				}
				if err := env.Registry.SetEnabled(g, f.ID, false); err != nil {
					return out, errors.Wrapf(err, "disable feature %q", f.ID)
				}
				out = pipeline.Applied
			}
		}
		return out, nil
	}
}

// EnableFeatureSet makes id the only enabled feature-set of the profile's
// group.
func EnableFeatureSet(id string) pipeline.Action {
	return func(ctx context.Context, env *pipeline.Env) (pipeline.Outcome, error) {
		g := env.Group()
		sets, err := env.Registry.ListFeatureSets(g)
		if err != nil {
			return pipeline.Unchanged, errors.Wrapf(err, "list feature sets of %s", g)
		}
		i := slices.IndexFunc(sets, func(s xr.FeatureSet) bool { return s.ID == id })
		switch {
		case i < 0:
			return pipeline.Unchanged, errors.Wrapf(xr.ErrFeatureNotFound, "feature set %q in %s", id, g)
		case !sets[i].Installed:
			return pipeline.Unchanged, errors.Wrapf(xr.ErrFeatureSetNotInstalled, "feature set %q in %s", id, g)
		}
		out := pipeline.Unchanged
		for _, s := range sets {
			if s.ID == id || !s.Enabled {
				continue
			}
			if err := env.Registry.SetFeatureSetEnabled(g, s.ID, false); err != nil {
				return out, errors.Wrapf(err, "disable feature set %q", s.ID)
			}
			out = pipeline.Applied
		}
		if !sets[i].Enabled {
			if err := env.Registry.SetFeatureSetEnabled(g, id, true); err != nil {
				return out, errors.Wrapf(err, "enable feature set %q", id)
			}
			out = pipeline.Applied
		}
		return out, nil
	}
}

// SetFeatures enables exactly ids among the group's regular features;
// interaction profiles are left alone. Every id is checked before anything
// changes.
func SetFeatures(ids ...xr.FeatureID) pipeline.Action {
	return setFeatures(false, ids)
}

// SetInteractionProfiles enables exactly ids among the group's interaction
// profiles.
func SetInteractionProfiles(ids ...xr.FeatureID) pipeline.Action {
	return setFeatures(true, ids)
}

func setFeatures(interaction bool, ids []xr.FeatureID) pipeline.Action {
	kind := "feature"
	if interaction {
		kind = "interaction profile"
	}
	return func(ctx context.Context, env *pipeline.Env) (pipeline.Outcome, error) {
		g := env.Group()
		features, err := env.Registry.ListFeatures(g)
		if err != nil {
			return pipeline.Unchanged, errors.Wrapf(err, "list features of %s", g)
		}
		for _, id := range ids {
			if !slices.ContainsFunc(features, func(f xr.Feature) bool { return f.ID == id && f.Interaction == interaction }) {
				return pipeline.Unchanged, errors.Wrapf(xr.ErrFeatureNotFound, "%s %q in %s", kind, id, g)
			}
		}
		out := pipeline.Unchanged
		for _, f := range features {
			if f.Interaction != interaction {
				continue
			}
			want := slices.Contains(ids, f.ID)
			if f.Enabled == want {
				continue
			}
			if err := env.Registry.SetEnabled(g, f.ID, want); err != nil {
				return out, errors.Wrapf(err, "set %s %q", kind, f.ID)
			}
			out = pipeline.Applied
		}
		return out, nil
	}
}

// FixAll runs validation remediation for the profile's group with its
// ignore list. Unfixable issues are logged, not returned.
func FixAll() pipeline.Action {
	return func(ctx context.Context, env *pipeline.Env) (pipeline.Outcome, error) {
		fixed, err := fixGroup(ctx, env, env.Group())
		if err != nil && !errors.Is(err, xr.ErrValidationUnfixable) {
			return outcomeOf(fixed), err
		}
		return outcomeOf(fixed), nil
	}
}

// FixAllPlatforms runs remediation for every group whose build module is
// installed. When the remediator is an xr.IssueSurveyor, groups without
// outstanding issues are skipped.
func FixAllPlatforms() pipeline.Action {
	return func(ctx context.Context, env *pipeline.Env) (pipeline.Outcome, error) {
		groups, err := groupsWithIssues(ctx, env.Remediator)
		if err != nil {
			return pipeline.Unchanged, err
		}
		total := 0
		for _, g := range groups {
			fixed, err := fixGroup(ctx, env, g)
			total += fixed
			if err != nil && !errors.Is(err, xr.ErrValidationUnfixable) {
				return outcomeOf(total), err
			}
		}
		return outcomeOf(total), nil
	}
}

// RequireValid is FixAll for profiles that must not finish with unfixable
// issues: it fails the run with the *xr.UnfixableError.
func RequireValid() pipeline.Action {
	return func(ctx context.Context, env *pipeline.Env) (pipeline.Outcome, error) {
		fixed, err := fixGroup(ctx, env, env.Group())
		return outcomeOf(fixed), err
	}
}

func groupsWithIssues(ctx context.Context, r xr.ValidationRemediator) ([]xr.PlatformGroup, error) {
	groups := r.Groups()
	s, ok := r.(xr.IssueSurveyor)
	if !ok {
		return groups, nil
	}
	issues, err := s.Survey(ctx, groups)
	if err != nil {
		return nil, errors.Wrap(err, "survey validation issues")
	}
	var out []xr.PlatformGroup
	for _, g := range groups {
		if len(issues[g]) > 0 {
			out = append(out, g)
			continue
		}
		ctxlog.FromContext(ctx).Debug("No validation issues.", "group", g)
	}
	return out, nil
}

func fixGroup(ctx context.Context, env *pipeline.Env, g xr.PlatformGroup) (int, error) {
	var ignore []string
	if p := env.Profile(); p != nil {
		ignore = p.IgnoreIssues
	}
	fixed, err := env.Remediator.FixAll(ctx, g, ignore)
	if errors.Is(err, xr.ErrValidationUnfixable) {
		ctxlog.FromContext(ctx).Warn("Validation issues remain.", "group", g, "error", err)
	}
	return fixed, err
}

func outcomeOf(fixed int) pipeline.Outcome {
	if fixed > 0 {
		return pipeline.Applied
	}
	return pipeline.Unchanged
}
