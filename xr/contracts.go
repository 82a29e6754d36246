package xr

import "context"

// FeatureID is the stable identifier of a feature or interaction profile
// (e.g. "com.unity.openxr.feature.input.handtracking").
type FeatureID string

// Feature is one toggleable feature in a platform group. Interaction profiles
// are features with Interaction set.
type Feature struct {
	ID          FeatureID
	Name        string
	Interaction bool
	Enabled     bool
}

// FeatureSet is a named bundle of features provided by an SDK package.
type FeatureSet struct {
	ID        string
	Installed bool
	Enabled   bool
}

// Loader is a runtime loader available to a platform group.
type Loader struct {
	ID      string
	Enabled bool
}

// Issue is an outstanding project-validation finding.
type Issue struct {
	Group   PlatformGroup `json:"group"`
	Message string        `json:"message"`
	Fixable bool          `json:"fixable"`
}

// InstallResult reports what PackageResolver.Install did.
type InstallResult int

const (
	// AlreadyInstalled: the package was present; nothing needs to reload.
	AlreadyInstalled InstallResult = iota + 1
	// Installed: the package was added and the environment must reload before
	// its loaders and features become visible.
	Installed
)

func (r InstallResult) String() string {
	switch r {
	case AlreadyInstalled:
		return "already-installed"
	case Installed:
		return "installed"
	default:
		return "unknown"
	}
}

// FeatureRegistry enumerates and toggles loaders, feature-sets and features
// per platform group. Every setter is idempotent: setting a value it already
// has is a successful no-op.
type FeatureRegistry interface {
	ListLoaders(group PlatformGroup) ([]Loader, error)
	SetLoaderEnabled(group PlatformGroup, id string, enabled bool) error
	ListFeatures(group PlatformGroup) ([]Feature, error)
	SetEnabled(group PlatformGroup, id FeatureID, enabled bool) error
	ListFeatureSets(group PlatformGroup) ([]FeatureSet, error)
	SetFeatureSetEnabled(group PlatformGroup, id string, enabled bool) error
}

// PackageResolver installs and removes SDK packages by identifier
// ("name@version", a git URL, or a tarball URL).
type PackageResolver interface {
	Install(ctx context.Context, identifier string) (InstallResult, error)
	Remove(ctx context.Context, name string) bool
}

// ValidationRemediator fixes outstanding validation issues. FixAll returns
// the number of issues fixed; "nothing to fix" is (0, nil). Issues it cannot
// fix and that match no ignore substring are reported as *UnfixableError.
type ValidationRemediator interface {
	FixAll(ctx context.Context, group PlatformGroup, ignore []string) (int, error)
	// Groups returns the platform groups whose build modules are installed.
	Groups() []PlatformGroup
}

// IssueSurveyor is implemented by remediators that can list outstanding
// issues without fixing them. The result has an entry for every requested
// group.
type IssueSurveyor interface {
	Survey(ctx context.Context, groups []PlatformGroup) (map[PlatformGroup][]Issue, error)
}

// RestartBoundary is a durable key/value store that survives a process
// restart.
type RestartBoundary interface {
	Persist(key, value string) error
	Read(key string) (string, bool, error)
	Clear(key string) error
}
