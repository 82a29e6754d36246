package profiles

import (
	"github.com/dcshock/sdkswitch/actions"
	"github.com/dcshock/sdkswitch/hostenv"
	"github.com/dcshock/sdkswitch/pipeline"
	"github.com/dcshock/sdkswitch/xr"
)

// Names of the built-in profiles.
const (
	PICO      = "PICO"
	VIVE      = "VIVE"
	META      = "META"
	AndroidXR = "ANDROIDXR"
	PCVR      = "PCVR"
	VisionOS  = "VISIONOS"
	XREAL     = "XREAL"
	RemoveAll = "REMOVE_ALL"
)

// Recipes returns the hardware profiles in menu order.
func Recipes() []Recipe {
	return []Recipe{
		{
			Name:       PICO,
			Group:      xr.Android,
			Package:    "https://github.com/Pico-Developer/PICO-Unity-OpenXR-SDK.git#release_1.4.0",
			Loader:     hostenv.LoaderOpenXR,
			FeatureSet: "com.picoxr.openxr.features",
			Features: []xr.FeatureID{
				hostenv.HandTracking,
				"com.pico.openxr.feature.passthrough",
			},
			InteractionProfiles: []xr.FeatureID{
				hostenv.HandInteraction,
				"com.unity.openxr.feature.input.PICO4touch",
			},
		},
		{
			Name:       VIVE,
			Group:      xr.Android,
			Package:    "com.htc.upm.vive.openxr@2.5.1",
			Loader:     hostenv.LoaderOpenXR,
			FeatureSet: "com.htc.vive.openxr.featureset.vivexr",
			Features: []xr.FeatureID{
				"vive.openxr.feature.compositionlayer",
				"vive.openxr.feature.hand.tracking",
				"vive.openxr.feature.passthrough",
				"com.unity.openxr.feature.vivefocus3",
			},
			InteractionProfiles: []xr.FeatureID{
				hostenv.HandInteraction,
				"vive.openxr.feature.focus3controller",
			},
			// Fixing it deletes the OpenXR package settings.
			IgnoreIssues: []string{hostenv.DuplicateSettingsIssue},
		},
		{
			Name:       META,
			Group:      xr.Android,
			Package:    "com.unity.xr.meta-openxr@2.2.0",
			Loader:     hostenv.LoaderOpenXR,
			FeatureSet: "com.unity.openxr.featureset.meta",
			Features: []xr.FeatureID{
				hostenv.HandTracking,
				"com.unity.openxr.feature.metaquest",
				"com.unity.openxr.feature.arfoundation-meta-anchor",
				"com.unity.openxr.feature.meta-boundary-visibility",
				"com.unity.openxr.feature.arfoundation-meta-bounding-boxes",
				"com.unity.openxr.feature.arfoundation-meta-session",
				"com.unity.openxr.feature.meta-colocation-discovery",
				"com.unity.openxr.feature.arfoundation-meta-camera",
			},
			InteractionProfiles: []xr.FeatureID{
				hostenv.HandInteraction,
				"com.unity.openxr.feature.input.metaquestplus",
			},
		},
		{
			Name:       AndroidXR,
			Group:      xr.Android,
			Package:    "com.unity.xr.androidxr-openxr@1.0.1",
			Loader:     hostenv.LoaderOpenXR,
			FeatureSet: "com.unity.openxr.featureset.android",
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
			InteractionProfiles: []xr.FeatureID{
				hostenv.HandInteraction,
				hostenv.KHRSimpleProfile,
			},
		},
		{
			Name:                PCVR,
			Group:               xr.Standalone,
			Loader:              hostenv.LoaderOpenXR,
			Features:            []xr.FeatureID{hostenv.HandTracking, hostenv.CompositionLayers},
			InteractionProfiles: []xr.FeatureID{hostenv.HandInteraction, hostenv.KHRSimpleProfile},
		},
		{
			Name:    VisionOS,
			Group:   xr.VisionOS,
			Package: "com.unity.xr.visionos",
			Loader:  hostenv.LoaderVisionOS,
		},
		{
			Name:              XREAL,
			Group:             xr.Android,
			Package:           "https://public-resource.xreal.com/download/XREALSDK_Release_3.0.0.20250314/com.xreal.xr.tar.gz",
			Loader:            hostenv.LoaderXREAL,
			LoaderSettleTicks: 2,
		},
	}
}

// RemoveAllProfile removes the SDK packages that conflict with each other.
// It leaves loaders and features alone.
func RemoveAllProfile() *pipeline.Profile {
	return &pipeline.Profile{
		Name:  RemoveAll,
		Group: xr.Android,
		Steps: []pipeline.Step{{
			ID:     "remove-packages",
			Action: actions.RemovePackages(hostenv.PackagePICO, hostenv.PackageVIVE),
		}},
	}
}

// Builtin returns a catalog with every hardware profile followed by
// REMOVE_ALL.
func Builtin() *Catalog {
	c := NewCatalog()
	for _, r := range Recipes() {
		c.MustRegister(r.Build())
	}
	return c.MustRegister(RemoveAllProfile())
}
