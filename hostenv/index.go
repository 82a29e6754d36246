package hostenv

import (
	"sort"
	"strings"

	"github.com/dcshock/sdkswitch/xr"
)

// Well-known ids shared by several packages.
const (
	LoaderOpenXR   = "openxr"
	LoaderVisionOS = "visionos"
	LoaderXREAL    = "xreal"

	HandTracking      xr.FeatureID = "com.unity.openxr.feature.input.handtracking"
	CompositionLayers xr.FeatureID = "com.unity.openxr.feature.compositionlayers"
	HandInteraction   xr.FeatureID = "com.unity.openxr.feature.input.handinteraction"
	KHRSimpleProfile  xr.FeatureID = "com.unity.openxr.feature.input.khrsimpleprofile"
)

// FeatureSetSpec is a feature-set and the features it bundles.
type FeatureSetSpec struct {
	ID       string
	Features []xr.FeatureID
}

// Provision is what a package (or the base install) contributes to one
// platform group.
type Provision struct {
	Group               xr.PlatformGroup
	Loaders             []string
	FeatureSets         []FeatureSetSpec
	Features            []xr.FeatureID
	InteractionProfiles []xr.FeatureID
}

// PackageSpec describes one installable SDK package.
type PackageSpec struct {
	// Name is the package name, used by Remove and in the project file.
	Name string
	// Aliases are other identifiers that resolve to Name, such as a git or
	// tarball URL.
	Aliases  []string
	Provides []Provision
	// Issues appear in the project once the package is loaded.
	Issues []xr.Issue
}

// Index maps package identifiers to what they provide.
type Index struct {
	base     []Provision
	packages map[string]PackageSpec
	aliases  map[string]string
}

// NewIndex builds an index from the base provisions and package specs.
func NewIndex(base []Provision, packages ...PackageSpec) *Index {
	idx := &Index{base: base, packages: map[string]PackageSpec{}, aliases: map[string]string{}}
	for _, p := range packages {
		idx.packages[p.Name] = p
		for _, a := range p.Aliases {
			idx.aliases[a] = p.Name
		}
	}
	return idx
}

// Resolve maps an install identifier ("name", "name@version", or an alias) to
// a package name.
func (idx *Index) Resolve(identifier string) (string, bool) {
	id := strings.TrimSpace(identifier)
	if name, ok := idx.aliases[id]; ok {
		return name, true
	}
	if !strings.Contains(id, "://") {
		if at := strings.LastIndex(id, "@"); at > 0 {
			id = id[:at]
		}
	}
	if _, ok := idx.packages[id]; ok {
		return id, true
	}
	return "", false
}

// Package returns the spec of a package by name.
func (idx *Index) Package(name string) (PackageSpec, bool) {
	p, ok := idx.packages[name]
	return p, ok
}

// Names returns every package name, sorted.
func (idx *Index) Names() []string {
	out := make([]string, 0, len(idx.packages))
	for n := range idx.packages {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// provisions returns the base provisions of g followed by those of each
// loaded package, in package order.
func (idx *Index) provisions(g xr.PlatformGroup, loaded []string) []Provision {
	var out []Provision
	for _, p := range idx.base {
		if p.Group == g {
			out = append(out, p)
		}
	}
	for _, name := range loaded {
		for _, p := range idx.packages[name].Provides {
			if p.Group == g {
				out = append(out, p)
			}
		}
	}
	return out
}

// knownFeatureSets lists every feature-set any package offers for g, mapped
// to the package providing it.
func (idx *Index) knownFeatureSets(g xr.PlatformGroup) map[string]string {
	out := map[string]string{}
	for _, name := range idx.Names() {
		for _, p := range idx.packages[name].Provides {
			if p.Group != g {
				continue
			}
			for _, fs := range p.FeatureSets {
				out[fs.ID] = name
			}
		}
	}
	return out
}

// Package names of the SDKs in DefaultIndex.
const (
	PackagePICO      = "com.unity.xr.openxr.picoxr"
	PackageVIVE      = "com.htc.upm.vive.openxr"
	PackageMeta      = "com.unity.xr.meta-openxr"
	PackageAndroidXR = "com.unity.xr.androidxr-openxr"
	PackageVisionOS  = "com.unity.xr.visionos"
	PackageXREAL     = "com.xreal.xr"
)

// DuplicateSettingsIssue is raised by the VIVE package. Fixing it deletes
// the OpenXR package settings, so profiles ignore it.
const DuplicateSettingsIssue = "The OpenXR Package Settings asset has duplicate settings and must be regenerated."

// DefaultIndex describes the SDK packages the built-in profiles install.
func DefaultIndex() *Index {
	core := func(g xr.PlatformGroup) Provision {
		return Provision{
			Group:               g,
			Loaders:             []string{LoaderOpenXR},
			Features:            []xr.FeatureID{HandTracking, CompositionLayers},
			InteractionProfiles: []xr.FeatureID{HandInteraction, KHRSimpleProfile},
		}
	}
	return NewIndex(
		[]Provision{core(xr.Standalone), core(xr.Android)},
		PackageSpec{
			Name:    PackagePICO,
			Aliases: []string{"https://github.com/Pico-Developer/PICO-Unity-OpenXR-SDK.git#release_1.4.0"},
			Provides: []Provision{{
				Group: xr.Android,
				FeatureSets: []FeatureSetSpec{{
					ID:       "com.picoxr.openxr.features",
					Features: []xr.FeatureID{"com.pico.openxr.feature.passthrough"},
				}},
				InteractionProfiles: []xr.FeatureID{"com.unity.openxr.feature.input.PICO4touch"},
			}},
			Issues: []xr.Issue{{Group: xr.Android, Message: "PICO: Render mode should be Multi-pass.", Fixable: true}},
		},
		PackageSpec{
			Name: PackageVIVE,
			Provides: []Provision{{
				Group: xr.Android,
				FeatureSets: []FeatureSetSpec{{
					ID: "com.htc.vive.openxr.featureset.vivexr",
					Features: []xr.FeatureID{
						"vive.openxr.feature.compositionlayer",
						"vive.openxr.feature.hand.tracking",
						"vive.openxr.feature.passthrough",
						"com.unity.openxr.feature.vivefocus3",
					},
				}},
				InteractionProfiles: []xr.FeatureID{"vive.openxr.feature.focus3controller"},
			}},
			Issues: []xr.Issue{{Group: xr.Android, Message: DuplicateSettingsIssue, Fixable: true}},
		},
		PackageSpec{
			Name: PackageMeta,
			Provides: []Provision{{
				Group: xr.Android,
				FeatureSets: []FeatureSetSpec{{
					ID: "com.unity.openxr.featureset.meta",
					Features: []xr.FeatureID{
						"com.unity.openxr.feature.metaquest",
						"com.unity.openxr.feature.arfoundation-meta-anchor",
						"com.unity.openxr.feature.meta-boundary-visibility",
						"com.unity.openxr.feature.arfoundation-meta-bounding-boxes",
						"com.unity.openxr.feature.arfoundation-meta-session",
						"com.unity.openxr.feature.meta-colocation-discovery",
						"com.unity.openxr.feature.arfoundation-meta-camera",
					},
				}},
				InteractionProfiles: []xr.FeatureID{"com.unity.openxr.feature.input.metaquestplus"},
			}},
			Issues: []xr.Issue{{Group: xr.Android, Message: "Meta Quest: Minimum Android API level must be 32 or higher.", Fixable: true}},
		},
		PackageSpec{
			Name: PackageAndroidXR,
			Provides: []Provision{{
				Group: xr.Android,
				FeatureSets: []FeatureSetSpec{{
					ID: "com.unity.openxr.featureset.android",
					Features: []xr.FeatureID{
						"com.unity.openxr.feature.androidxr-support",
						"com.unity.openxr.feature.arfoundation-androidxr-anchor",
						"com.unity.openxr.feature.arfoundation-androidxr-camera",
						"com.unity.openxr.feature.arfoundation-androidxr-face",
						"com.unity.openxr.feature.arfoundation-androidxr-occlusion",
						"com.unity.openxr.feature.arfoundation-androidxr-plane",
						"com.unity.openxr.feature.arfoundation-androidxr-raycast",
						"com.unity.openxr.feature.arfoundation-androidxr-session",
						"com.unity.openxr.feature.androidxr-display-utilities",
						"com.unity.openxr.feature.androidxr-hand-mesh-data",
					},
				}},
			}},
		},
		PackageSpec{
			Name:     PackageVisionOS,
			Provides: []Provision{{Group: xr.VisionOS, Loaders: []string{LoaderVisionOS}}},
		},
		PackageSpec{
			Name:     PackageXREAL,
			Aliases:  []string{"https://public-resource.xreal.com/download/XREALSDK_Release_3.0.0.20250314/com.xreal.xr.tar.gz"},
			Provides: []Provision{{Group: xr.Android, Loaders: []string{LoaderXREAL}}},
		},
	)
}
