package hostenv

import (
	"slices"
	"sort"

	"github.com/pkg/errors"

	"github.com/dcshock/sdkswitch/xr"
)

func (p *Project) ListLoaders(g xr.PlatformGroup) ([]xr.Loader, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	av := p.availableLocked(g)
	enabled := p.enabledLocked(g)
	out := make([]xr.Loader, 0, len(av.loaderOrder))
	for _, id := range av.loaderOrder {
		out = append(out, xr.Loader{ID: id, Enabled: slices.Contains(enabled.Loaders, id)})
	}
	return out, nil
}

func (p *Project) SetLoaderEnabled(g xr.PlatformGroup, id string, enabled bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.availableLocked(g).loaders[id] {
		return errors.Wrapf(xr.ErrFeatureNotFound, "loader %q in %s", id, g)
	}
	gs := p.group(g)
	var changed bool
	gs.Loaders, changed = setMember(gs.Loaders, id, enabled)
	if !changed {
		return nil
	}
	if !enabled {
		p.disabledAt[g] = p.frame
	}
	return p.saveLocked()
}

func (p *Project) ListFeatures(g xr.PlatformGroup) ([]xr.Feature, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	av := p.availableLocked(g)
	enabled := p.enabledLocked(g)
	out := make([]xr.Feature, 0, len(av.features))
	for id, interaction := range av.features {
		out = append(out, xr.Feature{
			ID:          id,
			Name:        featureName(id),
			Interaction: interaction,
			Enabled:     slices.Contains(enabled.Features, id),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (p *Project) SetEnabled(g xr.PlatformGroup, id xr.FeatureID, enabled bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.availableLocked(g).features[id]; !ok {
		return errors.Wrapf(xr.ErrFeatureNotFound, "feature %q in %s", id, g)
	}
	gs := p.group(g)
	var changed bool
	gs.Features, changed = setMember(gs.Features, id, enabled)
	if !changed {
		return nil
	}
	return p.saveLocked()
}

// ListFeatureSets lists every feature-set known for g, including those whose
// package is not loaded (Installed false).
func (p *Project) ListFeatureSets(g xr.PlatformGroup) ([]xr.FeatureSet, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	av := p.availableLocked(g)
	enabled := p.enabledLocked(g)
	known := p.index.knownFeatureSets(g)
	out := make([]xr.FeatureSet, 0, len(known))
	for id := range known {
		_, installed := av.featureSets[id]
		out = append(out, xr.FeatureSet{ID: id, Installed: installed, Enabled: slices.Contains(enabled.FeatureSets, id)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// SetFeatureSetEnabled toggles a feature-set. Enabling fails with
// xr.ErrUnsettledTransition when a competing setting of the exclusivity group
// was switched off in the current frame.
func (p *Project) SetFeatureSetEnabled(g xr.PlatformGroup, id string, enabled bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, known := p.index.knownFeatureSets(g)[id]; !known {
		return errors.Wrapf(xr.ErrFeatureNotFound, "feature set %q in %s", id, g)
	}
	if _, installed := p.availableLocked(g).featureSets[id]; !installed {
		if !enabled {
			return nil
		}
		return errors.Wrapf(xr.ErrFeatureSetNotInstalled, "feature set %q in %s", id, g)
	}
	gs := p.group(g)
	if enabled && !slices.Contains(gs.FeatureSets, id) {
		for _, other := range xr.ExclusivityGroup(g) {
			if at, ok := p.disabledAt[other]; ok && at == p.frame {
				return errors.Wrapf(xr.ErrUnsettledTransition, "enable %q in %s at frame %d", id, g, p.frame)
			}
		}
	}
	var changed bool
	gs.FeatureSets, changed = setMember(gs.FeatureSets, id, enabled)
	if !changed {
		return nil
	}
	if !enabled {
		p.disabledAt[g] = p.frame
	}
	return p.saveLocked()
}

func (p *Project) enabledLocked(g xr.PlatformGroup) groupState {
	if gs, ok := p.state.Enabled[g]; ok {
		return *gs
	}
	return groupState{}
}

// featureName is the last dotted segment of id.
func featureName(id xr.FeatureID) string {
	s := string(id)
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '.' {
			return s[i+1:]
		}
	}
	return s
}
