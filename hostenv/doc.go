// Package hostenv is an in-process host environment: a project whose XR
// configuration (loaders, feature-sets, features, validation issues and
// installed SDK packages) lives in memory and, optionally, in a JSON file.
//
// Project implements xr.FeatureRegistry, xr.PackageResolver and
// xr.ValidationRemediator. What each SDK package contributes comes from an
// Index; packages added by Install only become visible after Reload, which
// models the host's script reload after a package change.
//
// Project also models the host's transition hazard: enabling a feature-set
// in the same frame as a competing loader or feature-set of the same
// exclusivity group was disabled fails with xr.ErrUnsettledTransition. Call
// Tick once per host frame.
package hostenv
