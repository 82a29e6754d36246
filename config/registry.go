package config

import (
	"fmt"
	"sort"
	"sync"

	"github.com/dcshock/sdkswitch/actions"
	"github.com/dcshock/sdkswitch/pipeline"
)

// ActionFactory builds an action from a step declaration's arguments.
type ActionFactory func(step StepConfig) (pipeline.Action, error)

// Registry maps action names to action factories. Safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	actions map[string]ActionFactory
}

// NewRegistry returns an empty action registry.
func NewRegistry() *Registry {
	return &Registry{actions: make(map[string]ActionFactory)}
}

// Register adds a factory under the given name. Overwrites any existing registration.
func (r *Registry) Register(name string, f ActionFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.actions == nil {
		r.actions = make(map[string]ActionFactory)
	}
	r.actions[name] = f
}

// Get returns the factory for name, or nil and false if not found.
func (r *Registry) Get(name string) (ActionFactory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.actions[name]
	return f, ok
}

// Names returns all registered action names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.actions))
	for n := range r.actions {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry returns a registry with every action of the actions
// package.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("install_package", func(s StepConfig) (pipeline.Action, error) {
		if s.Package == "" {
			return nil, fmt.Errorf("package required")
		}
		return actions.InstallPackage(s.Package), nil
	})
	r.Register("remove_packages", func(s StepConfig) (pipeline.Action, error) {
		if len(s.Packages) == 0 {
			return nil, fmt.Errorf("packages required")
		}
		return actions.RemovePackages(s.Packages...), nil
	})
	r.Register("set_loader", func(s StepConfig) (pipeline.Action, error) {
		if s.Loader == "" {
			return nil, fmt.Errorf("loader required")
		}
		return actions.SetLoader(s.Loader), nil
	})
	r.Register("clear_exclusive", noArgs(actions.ClearExclusive))
	r.Register("enable_feature_set", func(s StepConfig) (pipeline.Action, error) {
		if s.FeatureSet == "" {
			return nil, fmt.Errorf("feature_set required")
		}
		return actions.EnableFeatureSet(s.FeatureSet), nil
	})
	r.Register("set_features", func(s StepConfig) (pipeline.Action, error) {
		return actions.SetFeatures(s.Features...), nil
	})
	r.Register("set_interaction_profiles", func(s StepConfig) (pipeline.Action, error) {
		return actions.SetInteractionProfiles(s.InteractionProfiles...), nil
	})
	r.Register("fix_all", noArgs(actions.FixAll))
	r.Register("fix_all_platforms", noArgs(actions.FixAllPlatforms))
	r.Register("require_valid", noArgs(actions.RequireValid))
	r.Register("noop", noArgs(pipeline.Noop))
	return r
}

func noArgs(build func() pipeline.Action) ActionFactory {
	return func(StepConfig) (pipeline.Action, error) { return build(), nil }
}
