// Package xr defines the vocabulary shared by the switcher and the host
// environment it drives: platform groups, loaders, feature-sets, features and
// interaction profiles, plus the four collaborator contracts the configuration
// pipeline consumes (FeatureRegistry, PackageResolver, ValidationRemediator and
// RestartBoundary).
//
// Loaders and feature-sets are mutually exclusive inside an exclusivity group:
// platform groups that share one (Android and Standalone) must never have two
// competing feature-sets active at the same time, even transiently. See
// ExclusivityGroup.
package xr
