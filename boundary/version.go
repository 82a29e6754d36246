package boundary

import (
	"github.com/pkg/errors"

	"github.com/dcshock/sdkswitch/xr"
)

// VersionKey is the key IsFirstRunForVersion stores the last seen version of
// component under.
func VersionKey(component string) string { return "version." + component }

// IsFirstRunForVersion reports whether this is the first time component runs
// at version, and records version as seen. The first ever run counts too.
func IsFirstRunForVersion(b xr.RestartBoundary, component, version string) (bool, error) {
	key := VersionKey(component)
	last, ok, err := b.Read(key)
	if err != nil {
		return false, errors.Wrapf(err, "read %s", key)
	}
	if ok && last == version {
		return false, nil
	}
	if err := b.Persist(key, version); err != nil {
		return false, errors.Wrapf(err, "persist %s", key)
	}
	return true, nil
}
