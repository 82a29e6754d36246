package pipeline

import (
	"github.com/pkg/errors"

	"github.com/dcshock/sdkswitch/xr"
)

// Profile is a named, ordered list of steps for one hardware target. Treat it
// as immutable once registered.
type Profile struct {
	Name  string
	Group xr.PlatformGroup
	// IgnoreIssues are substrings of validation messages the final
	// remediation leaves alone.
	IgnoreIssues []string
	Steps        []Step
}

// Validate checks the profile is runnable: a name, a known group, unique
// non-empty step ids, an action per step and positive tick counts.
func (p *Profile) Validate() error {
	if p == nil {
		return errors.Errorf("profile is nil")
	}
	if p.Name == "" {
		return errors.Errorf("profile name required")
	}
	if p.Group == xr.Unknown {
		return errors.Errorf("profile %q: platform group required", p.Name)
	}
	seen := make(map[string]int, len(p.Steps))
	for i, s := range p.Steps {
		if s.ID == "" {
			return errors.Errorf("profile %q step %d: id required", p.Name, i)
		}
		if j, dup := seen[s.ID]; dup {
			return errors.Errorf("profile %q step %d: id %q already used by step %d", p.Name, i, s.ID, j)
		}
		seen[s.ID] = i
		if s.Action == nil {
			return errors.Errorf("profile %q step %q: action required", p.Name, s.ID)
		}
		if s.Settle.Kind == SettleTicks && s.Settle.Ticks < 1 {
			return errors.Errorf("profile %q step %q: tick settle must be >= 1", p.Name, s.ID)
		}
	}
	return nil
}

// StepIndex returns the index of the step with the given id, or -1.
func (p *Profile) StepIndex(id string) int {
	for i, s := range p.Steps {
		if s.ID == id {
			return i
		}
	}
	return -1
}

// Catalog looks profiles up by name. Names must return every profile in a
// stable order; Resume scans it for persisted runs.
type Catalog interface {
	Lookup(name string) (*Profile, bool)
	Names() []string
}
