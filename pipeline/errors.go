package pipeline

import (
	"github.com/pkg/errors"

	"github.com/dcshock/sdkswitch/xr"
)

var (
	// ErrConcurrentRunRejected is returned by Start and Resume while another
	// run holds the guard. Treat it as "try later", not as a failed run: no run
	// was created.
	ErrConcurrentRunRejected = errors.New("another pipeline run is active")

	// ErrUnknownProfile is returned by Start for a name the catalog does not
	// know.
	ErrUnknownProfile = errors.New("unknown profile")

	// ErrAborted is the Err of a run stopped by Abort.
	ErrAborted = errors.New("pipeline run aborted")

	// ErrNoActiveRun is returned by Abort when there is nothing to stop.
	ErrNoActiveRun = errors.New("no active pipeline run")
)

func IsRejected(err error) bool { return errors.Is(err, ErrConcurrentRunRejected) }

// ErrorKind classifies the error that ended a run.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindConcurrentRunRejected
	KindPackageInstall
	KindFeatureNotFound
	KindFeatureSetNotInstalled
	KindValidationUnfixable
	KindAborted
	KindOther
)

var kindNames = [...]string{
	"none", "concurrent-run-rejected", "package-install", "feature-not-found",
	"feature-set-not-installed", "validation-unfixable", "aborted", "other",
}

func (k ErrorKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "other"
}

// KindOf maps err onto the error taxonomy. nil is KindNone.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrConcurrentRunRejected):
		return KindConcurrentRunRejected
	case errors.Is(err, xr.ErrPackageInstall):
		return KindPackageInstall
	case errors.Is(err, xr.ErrFeatureSetNotInstalled):
		return KindFeatureSetNotInstalled
	case errors.Is(err, xr.ErrFeatureNotFound):
		return KindFeatureNotFound
	case errors.Is(err, xr.ErrValidationUnfixable):
		return KindValidationUnfixable
	case errors.Is(err, ErrAborted):
		return KindAborted
	default:
		return KindOther
	}
}
