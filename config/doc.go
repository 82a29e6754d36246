// Package config provides the application settings, an action registry and
// human-readable profile declarations.
//
// Profiles are declared in YAML, either in recipe form (the standard install,
// loader, clear, feature-set, features sequence) or as explicit steps that
// reference registered action names and an optional settle:
//
//	profiles:
//	  MYDEVICE:
//	    group: android
//	    package: com.example.sdk@1.0.0
//	    loader: openxr
//	    feature_set: com.example.features
//	    features: [com.example.feature.a]
//	  CUSTOM:
//	    group: standalone
//	    steps:
//	      - id: loader
//	        action: set_loader
//	        loader: openxr
//	      - action: clear_exclusive
//	        settle: ticks:2
//	      - fix_all
//
// Build profiles with BuildProfile(registry, name, config), or register a
// whole file into a catalog with LoadProfiles.
package config
