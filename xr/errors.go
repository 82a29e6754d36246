package xr

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrPackageInstall is returned by PackageResolver.Install when the package
	// could not be added.
	ErrPackageInstall = errors.New("package install failed")

	// ErrFeatureNotFound is a registry lookup miss for a feature, interaction
	// profile, loader or feature-set id.
	ErrFeatureNotFound = errors.New("feature not found")

	// ErrFeatureSetNotInstalled means the feature-set is known to the host but
	// the package providing it is not loaded.
	ErrFeatureSetNotInstalled = errors.New("feature set not installed")

	// ErrValidationUnfixable means remediation left issues that are neither
	// fixable nor on the caller's ignore list.
	ErrValidationUnfixable = errors.New("validation issues could not be fixed")

	// ErrUnsettledTransition is reported by hosts that detect an exclusive
	// setting being enabled before a competing one finished unloading.
	ErrUnsettledTransition = errors.New("exclusive setting enabled before previous one settled")
)

// UnfixableError lists the issues FixAll could not resolve. It matches
// ErrValidationUnfixable with errors.Is.
type UnfixableError struct {
	Group  PlatformGroup
	Issues []string
}

func (e *UnfixableError) Error() string {
	return fmt.Sprintf("%s: %d unfixable issue(s) for %s: %s",
		ErrValidationUnfixable, len(e.Issues), e.Group, strings.Join(e.Issues, "; "))
}

func (e *UnfixableError) Unwrap() error { return ErrValidationUnfixable }
