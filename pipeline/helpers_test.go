package pipeline

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dcshock/sdkswitch/xr"
)

// --- Collaborator fakes ---

type memBoundary struct {
	mu     sync.Mutex
	values map[string]string
}

func newMemBoundary() *memBoundary { return &memBoundary{values: map[string]string{}} }

func (b *memBoundary) Persist(key, value string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.values[key] = value
	return nil
}

func (b *memBoundary) Read(key string) (string, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.values[key]
	return v, ok, nil
}

func (b *memBoundary) Clear(key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.values, key)
	return nil
}

func (b *memBoundary) keys() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.values))
	for k := range b.values {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

type nopRegistry struct{}

func (nopRegistry) ListLoaders(xr.PlatformGroup) ([]xr.Loader, error) { return nil, nil }
func (nopRegistry) SetLoaderEnabled(xr.PlatformGroup, string, bool) error { return nil }
func (nopRegistry) ListFeatures(xr.PlatformGroup) ([]xr.Feature, error) { return nil, nil }
func (nopRegistry) SetEnabled(xr.PlatformGroup, xr.FeatureID, bool) error { return nil }
func (nopRegistry) ListFeatureSets(xr.PlatformGroup) ([]xr.FeatureSet, error) { return nil, nil }
func (nopRegistry) SetFeatureSetEnabled(xr.PlatformGroup, string, bool) error { return nil }

type nopPackages struct{}

func (nopPackages) Install(context.Context, string) (xr.InstallResult, error) {
	return xr.AlreadyInstalled, nil
}
func (nopPackages) Remove(context.Context, string) bool { return false }

type fixCall struct {
	group  xr.PlatformGroup
	ignore []string
}

type recordingRemediator struct {
	calls []fixCall
	err   error
}

func (r *recordingRemediator) FixAll(ctx context.Context, g xr.PlatformGroup, ignore []string) (int, error) {
	r.calls = append(r.calls, fixCall{group: g, ignore: ignore})
	return 0, r.err
}

func (r *recordingRemediator) Groups() []xr.PlatformGroup { return xr.AllGroups() }

type mapCatalog map[string]*Profile

func (c mapCatalog) Lookup(name string) (*Profile, bool) {
	p, ok := c[name]
	return p, ok
}

func (c mapCatalog) Names() []string {
	out := make([]string, 0, len(c))
	for k := range c {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// fixture bundles a pipeline with the fakes it was built from.
type fixture struct {
	boundary   *memBoundary
	remediator *recordingRemediator
	catalog    mapCatalog
	env        Env
}

func newFixture(profiles ...*Profile) *fixture {
	f := &fixture{
		boundary:   newMemBoundary(),
		remediator: &recordingRemediator{},
		catalog:    mapCatalog{},
	}
	for _, p := range profiles {
		f.catalog[p.Name] = p
	}
	f.env = Env{Registry: nopRegistry{}, Packages: nopPackages{}, Remediator: f.remediator, Boundary: f.boundary}
	return f
}

func (f *fixture) pipeline(opts ...Option) *Pipeline {
	p, err := New(f.catalog, f.env, opts...)
	if err != nil {
		panic(err)
	}
	return p
}

// trace records which steps ran, in order.
type trace struct {
	mu  sync.Mutex
	ran []string
}

func (t *trace) step(id string, settle Settle) Step {
	return Step{ID: id, Settle: settle, Action: func(ctx context.Context, env *Env) (Outcome, error) {
		t.mu.Lock()
		t.ran = append(t.ran, id)
		t.mu.Unlock()
		return Applied, nil
	}}
}

func (t *trace) steps() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.ran...)
}

// --- Observer helpers ---

type hookObserver struct {
	beforeRun  func(context.Context, string, string, int) error
	afterRun   func(context.Context, string, Status, error) error
	beforeStep func(context.Context, string, int, string) error
	afterStep  func(context.Context, string, int, string, Outcome, error, time.Duration) error
	suspended  func(context.Context, string, int, Settle) error
}

func (h *hookObserver) BeforeRun(ctx context.Context, runID, profile string, cursor int) error {
	if h.beforeRun != nil {
		return h.beforeRun(ctx, runID, profile, cursor)
	}
	return nil
}

func (h *hookObserver) AfterRun(ctx context.Context, runID string, status Status, err error) error {
	if h.afterRun != nil {
		return h.afterRun(ctx, runID, status, err)
	}
	return nil
}

func (h *hookObserver) BeforeStep(ctx context.Context, runID string, stepIndex int, stepID string) error {
	if h.beforeStep != nil {
		return h.beforeStep(ctx, runID, stepIndex, stepID)
	}
	return nil
}

func (h *hookObserver) AfterStep(ctx context.Context, runID string, stepIndex int, stepID string, outcome Outcome, stepErr error, d time.Duration) error {
	if h.afterStep != nil {
		return h.afterStep(ctx, runID, stepIndex, stepID, outcome, stepErr, d)
	}
	return nil
}

func (h *hookObserver) Suspended(ctx context.Context, runID string, nextStep int, settle Settle) error {
	if h.suspended != nil {
		return h.suspended(ctx, runID, nextStep, settle)
	}
	return nil
}
