package profiles

import (
	"github.com/dcshock/sdkswitch/actions"
	"github.com/dcshock/sdkswitch/pipeline"
	"github.com/dcshock/sdkswitch/xr"
)

// Step ids produced by Recipe.Build.
const (
	StepInstallPackage         = "install-package"
	StepSetLoader              = "set-loader"
	StepClearExclusive         = "clear-exclusive"
	StepEnableFeatureSet       = "enable-feature-set"
	StepSetFeatures            = "set-features"
	StepSetInteractionProfiles = "set-interaction-profiles"
)

// Default settle tick counts of the standard sequence.
const (
	DefaultClearSettleTicks      = 2
	DefaultFeatureSetSettleTicks = 1
)

// Recipe is the standard shape of a hardware profile: install the SDK
// package, pick the loader, clear every competing feature-set, wait, enable
// the target feature-set, then set the feature and interaction profile
// lists.
type Recipe struct {
	Name  string
	Group xr.PlatformGroup
	// Package is an install identifier; empty skips installation.
	Package string
	// Loader is the loader id; empty leaves loaders alone.
	Loader string
	// LoaderSettleTicks waits after switching the loader; 0 means no wait.
	LoaderSettleTicks int
	// FeatureSet is the feature-set id; empty still clears competing sets.
	FeatureSet string
	// ClearSettleTicks and FeatureSetSettleTicks default to
	// DefaultClearSettleTicks and DefaultFeatureSetSettleTicks when 0.
	ClearSettleTicks      int
	FeatureSetSettleTicks int
	Features              []xr.FeatureID
	InteractionProfiles   []xr.FeatureID
	IgnoreIssues          []string
}

// Build expands the recipe into a profile.
func (r Recipe) Build() *pipeline.Profile {
	clearTicks := r.ClearSettleTicks
	if clearTicks <= 0 {
		clearTicks = DefaultClearSettleTicks
	}
	setTicks := r.FeatureSetSettleTicks
	if setTicks <= 0 {
		setTicks = DefaultFeatureSetSettleTicks
	}

	var steps []pipeline.Step
	if r.Package != "" {
		steps = append(steps, pipeline.Step{ID: StepInstallPackage, Action: actions.InstallPackage(r.Package), Settle: pipeline.Restart()})
	}
	if r.Loader != "" {
		settle := pipeline.None
		if r.LoaderSettleTicks > 0 {
			settle = pipeline.Ticks(r.LoaderSettleTicks)
		}
		steps = append(steps, pipeline.Step{ID: StepSetLoader, Action: actions.SetLoader(r.Loader), Settle: settle})
	}
	steps = append(steps, pipeline.Step{ID: StepClearExclusive, Action: actions.ClearExclusive(), Settle: pipeline.Ticks(clearTicks)})
	if r.FeatureSet != "" {
		steps = append(steps, pipeline.Step{ID: StepEnableFeatureSet, Action: actions.EnableFeatureSet(r.FeatureSet), Settle: pipeline.Ticks(setTicks)})
	}
	steps = append(steps,
		pipeline.Step{ID: StepSetFeatures, Action: actions.SetFeatures(r.Features...)},
		pipeline.Step{ID: StepSetInteractionProfiles, Action: actions.SetInteractionProfiles(r.InteractionProfiles...)},
	)
	return &pipeline.Profile{
		Name:         r.Name,
		Group:        r.Group,
		IgnoreIssues: append([]string(nil), r.IgnoreIssues...),
		Steps:        steps,
	}
}
