package hostenv

import (
	"context"
	"encoding/json"
	"os"
	"slices"
	"sync"

	"github.com/pkg/errors"

	"github.com/dcshock/sdkswitch/internal/ctxlog"
	"github.com/dcshock/sdkswitch/internal/fsutil"
	"github.com/dcshock/sdkswitch/xr"
)

const stateVersion = 1

// groupState is what is enabled in one platform group.
type groupState struct {
	Loaders     []string       `json:"loaders,omitempty"`
	FeatureSets []string       `json:"feature_sets,omitempty"`
	Features    []xr.FeatureID `json:"features,omitempty"`
}

// projectState is the project file. Packages are loaded; Pending were added
// and wait for a reload.
type projectState struct {
	Version  int                              `json:"version"`
	Modules  []xr.PlatformGroup               `json:"modules"`
	Packages []string                         `json:"packages,omitempty"`
	Pending  []string                         `json:"pending,omitempty"`
	Enabled  map[xr.PlatformGroup]*groupState `json:"enabled,omitempty"`
	Issues   []xr.Issue                       `json:"issues,omitempty"`
}

// Project is the host environment. All methods are safe for concurrent use.
type Project struct {
	index *Index
	path  string

	mu    sync.RWMutex
	state projectState
	frame uint64
	// disabledAt records the frame an exclusive setting was last switched
	// off in each group. It does not survive a reload.
	disabledAt map[xr.PlatformGroup]uint64
}

// Option configures a Project.
type Option func(*Project)

// WithIndex replaces DefaultIndex.
func WithIndex(idx *Index) Option {
	return func(p *Project) { p.index = idx }
}

// WithModules sets the installed build modules of a new project.
func WithModules(groups ...xr.PlatformGroup) Option {
	return func(p *Project) { p.state.Modules = append([]xr.PlatformGroup(nil), groups...) }
}

// NewMemory returns a project that is never written to disk.
func NewMemory(opts ...Option) *Project {
	p := newProject("", opts...)
	p.reloadLocked()
	return p
}

// Open loads the project file at path, or starts a new project there if the
// file does not exist. Opening is a reload: packages installed before the
// last exit become visible.
func Open(ctx context.Context, path string, opts ...Option) (*Project, error) {
	if path == "" {
		return nil, errors.New("hostenv: project path is required")
	}
	p := newProject(path, opts...)
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		ctxlog.FromContext(ctx).Info("Creating project file.", "path", path)
	case err != nil:
		return nil, errors.Wrapf(err, "hostenv: read %s", path)
	default:
		var st projectState
		if err := json.Unmarshal(data, &st); err != nil {
			return nil, errors.Wrapf(err, "hostenv: decode %s", path)
		}
		if st.Version != stateVersion {
			return nil, errors.Errorf("hostenv: %s has version %d, want %d", path, st.Version, stateVersion)
		}
		if st.Enabled == nil {
			st.Enabled = map[xr.PlatformGroup]*groupState{}
		}
		p.state = st
	}
	if err := p.Reload(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

func newProject(path string, opts ...Option) *Project {
	p := &Project{
		index: DefaultIndex(),
		path:  path,
		state: projectState{
			Version: stateVersion,
			Modules: []xr.PlatformGroup{xr.Standalone, xr.Android},
			Enabled: map[xr.PlatformGroup]*groupState{},
		},
		disabledAt: map[xr.PlatformGroup]uint64{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Path returns the project file, or "" for an in-memory project.
func (p *Project) Path() string { return p.path }

// Tick advances the host frame counter. It satisfies scheduler.Ticker.
func (p *Project) Tick(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.frame++
}

// Reload makes pending packages visible, the way the host does after a
// package change. Settings of items no package provides any more are
// dropped.
func (p *Project) Reload(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	loaded := p.reloadLocked()
	for _, name := range loaded {
		ctxlog.FromContext(ctx).Info("Package loaded.", "package", name)
	}
	return p.saveLocked()
}

func (p *Project) reloadLocked() []string {
	loaded := p.state.Pending
	p.state.Pending = nil
	for _, name := range loaded {
		if !slices.Contains(p.state.Packages, name) {
			p.state.Packages = append(p.state.Packages, name)
		}
		spec, _ := p.index.Package(name)
		for _, issue := range spec.Issues {
			p.addIssueLocked(issue)
		}
	}
	slices.Sort(p.state.Packages)
	p.pruneLocked()
	p.disabledAt = map[xr.PlatformGroup]uint64{}
	return loaded
}

// Packages returns the loaded packages and those waiting for a reload.
func (p *Project) Packages() (loaded, pending []string) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.state.Packages), slices.Clone(p.state.Pending)
}

// Modules returns the installed build modules.
func (p *Project) Modules() []xr.PlatformGroup {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.state.Modules)
}

func (p *Project) group(g xr.PlatformGroup) *groupState {
	gs, ok := p.state.Enabled[g]
	if !ok {
		gs = &groupState{}
		p.state.Enabled[g] = gs
	}
	return gs
}

// pruneLocked drops enabled entries that nothing loaded provides.
func (p *Project) pruneLocked() {
	for g, gs := range p.state.Enabled {
		av := p.availableLocked(g)
		gs.Loaders = slices.DeleteFunc(gs.Loaders, func(id string) bool { return !av.loaders[id] })
		gs.FeatureSets = slices.DeleteFunc(gs.FeatureSets, func(id string) bool {
			_, ok := av.featureSets[id]
			return !ok
		})
		gs.Features = slices.DeleteFunc(gs.Features, func(id xr.FeatureID) bool {
			_, ok := av.features[id]
			return !ok
		})
	}
}

// available is what the loaded packages expose in one group.
type available struct {
	loaders     map[string]bool
	loaderOrder []string
	featureSets map[string]FeatureSetSpec
	features    map[xr.FeatureID]bool // value: interaction profile
}

func (p *Project) availableLocked(g xr.PlatformGroup) available {
	av := available{
		loaders:     map[string]bool{},
		featureSets: map[string]FeatureSetSpec{},
		features:    map[xr.FeatureID]bool{},
	}
	for _, prov := range p.index.provisions(g, p.state.Packages) {
		for _, l := range prov.Loaders {
			if !av.loaders[l] {
				av.loaders[l] = true
				av.loaderOrder = append(av.loaderOrder, l)
			}
		}
		for _, fs := range prov.FeatureSets {
			av.featureSets[fs.ID] = fs
			for _, f := range fs.Features {
				av.features[f] = false
			}
		}
		for _, f := range prov.Features {
			av.features[f] = false
		}
		for _, f := range prov.InteractionProfiles {
			av.features[f] = true
		}
	}
	return av
}

func (p *Project) saveLocked() error {
	if p.path == "" {
		return nil
	}
	data, err := json.MarshalIndent(p.state, "", "  ")
	if err != nil {
		return errors.Wrap(err, "hostenv: encode project")
	}
	if err := fsutil.WriteFileAtomic(p.path, append(data, '\n'), 0o644); err != nil {
		return errors.Wrapf(err, "hostenv: write %s", p.path)
	}
	return nil
}

func setMember[T comparable](list []T, v T, on bool) ([]T, bool) {
	has := slices.Contains(list, v)
	switch {
	case on && !has:
		return append(list, v), true
	case !on && has:
		return slices.DeleteFunc(list, func(x T) bool { return x == v }), true
	default:
		return list, false
	}
}
