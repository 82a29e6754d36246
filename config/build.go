package config

import (
	"fmt"
	"os"
	"sort"

	"github.com/dcshock/sdkswitch/pipeline"
	"github.com/dcshock/sdkswitch/profiles"
)

// BuildProfile builds a pipeline.Profile from a declaration. Recipe form is
// expanded by profiles.Recipe; in step form each action name must be in reg.
func BuildProfile(reg *Registry, name string, cfg *ProfileConfig) (*pipeline.Profile, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	if len(cfg.Steps) == 0 {
		p := profiles.Recipe{
			Name:                  name,
			Group:                 cfg.Group,
			Package:               cfg.Package,
			Loader:                cfg.Loader,
			LoaderSettleTicks:     cfg.LoaderSettleTicks,
			FeatureSet:            cfg.FeatureSet,
			ClearSettleTicks:      cfg.ClearSettleTicks,
			FeatureSetSettleTicks: cfg.FeatureSetSettleTicks,
			Features:              cfg.Features,
			InteractionProfiles:   cfg.InteractionProfiles,
			IgnoreIssues:          cfg.IgnoreIssues,
		}.Build()
		return validated(p)
	}
	if cfg.hasRecipe() {
		return nil, fmt.Errorf("steps cannot be combined with recipe fields")
	}
	steps := make([]pipeline.Step, 0, len(cfg.Steps))
	used := make(map[string]bool, len(cfg.Steps))
	for i, ref := range cfg.Steps {
		step, err := buildStep(reg, ref)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		if ref.ID == "" && used[step.ID] {
			step.ID = fmt.Sprintf("%s-%d", step.ID, i)
		}
		used[step.ID] = true
		steps = append(steps, step)
	}
	p := &pipeline.Profile{
		Name:         name,
		Group:        cfg.Group,
		IgnoreIssues: cfg.IgnoreIssues,
		Steps:        steps,
	}
	return validated(p)
}

func validated(p *pipeline.Profile) (*pipeline.Profile, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func buildStep(reg *Registry, ref StepConfig) (pipeline.Step, error) {
	if ref.Action == "" {
		return pipeline.Step{}, fmt.Errorf("action required")
	}
	factory, ok := reg.Get(ref.Action)
	if !ok {
		return pipeline.Step{}, fmt.Errorf("action %q not in registry", ref.Action)
	}
	action, err := factory(ref)
	if err != nil {
		return pipeline.Step{}, fmt.Errorf("action %q: %w", ref.Action, err)
	}
	settle, err := pipeline.ParseSettle(ref.Settle)
	if err != nil {
		return pipeline.Step{}, err
	}
	id := ref.ID
	if id == "" {
		id = ref.Action
	}
	return pipeline.Step{ID: id, Action: action, Settle: settle}, nil
}

// BuildAllProfiles builds every declared profile, sorted by name.
func BuildAllProfiles(reg *Registry, multi *ProfilesConfig) ([]*pipeline.Profile, error) {
	if multi == nil {
		return nil, fmt.Errorf("ProfilesConfig is nil")
	}
	names := make([]string, 0, len(multi.Profiles))
	for name := range multi.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]*pipeline.Profile, 0, len(names))
	for _, name := range names {
		cfg := multi.Profiles[name]
		p, err := BuildProfile(reg, name, &cfg)
		if err != nil {
			return nil, fmt.Errorf("profile %q: %w", name, err)
		}
		out = append(out, p)
	}
	return out, nil
}

// LoadProfiles reads a profile declaration file and registers every profile
// in catalog after the ones already there.
func LoadProfiles(reg *Registry, catalog *profiles.Catalog, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read profiles: %w", err)
	}
	cfg, err := ParseProfilesConfig(data)
	if err != nil {
		return fmt.Errorf("profiles %s: %w", path, err)
	}
	built, err := BuildAllProfiles(reg, cfg)
	if err != nil {
		return fmt.Errorf("profiles %s: %w", path, err)
	}
	for _, p := range built {
		if err := catalog.Register(p); err != nil {
			return fmt.Errorf("profiles %s: %w", path, err)
		}
	}
	return nil
}
