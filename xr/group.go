package xr

import (
	"strings"

	"github.com/pkg/errors"
)

// PlatformGroup is a target environment category with its own independent
// configuration state.
type PlatformGroup int

const (
	Unknown PlatformGroup = iota
	Standalone
	Android
	IOS
	VisionOS
)

var groupNames = map[PlatformGroup]string{
	Unknown:    "unknown",
	Standalone: "standalone",
	Android:    "android",
	IOS:        "ios",
	VisionOS:   "visionos",
}

// AllGroups returns every known platform group in declaration order.
func AllGroups() []PlatformGroup {
	return []PlatformGroup{Standalone, Android, IOS, VisionOS}
}

func (g PlatformGroup) String() string {
	if s, ok := groupNames[g]; ok {
		return s
	}
	return "unknown"
}

// ParsePlatformGroup accepts the lower-case group name ("android") in any case.
func ParsePlatformGroup(s string) (PlatformGroup, error) {
	want := strings.ToLower(strings.TrimSpace(s))
	for g, name := range groupNames {
		if g != Unknown && name == want {
			return g, nil
		}
	}
	return Unknown, errors.Errorf("unknown platform group %q", s)
}

// MarshalText implements encoding.TextMarshaler (used by JSON and YAML).
func (g PlatformGroup) MarshalText() ([]byte, error) {
	return []byte(g.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (g *PlatformGroup) UnmarshalText(text []byte) error {
	parsed, err := ParsePlatformGroup(string(text))
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}

// exclusivity lists the groups whose feature-sets compete with each other.
// Android and Standalone share the OpenXR runtime loader list in the host.
var exclusivity = [][]PlatformGroup{
	{Android, Standalone},
}

// ExclusivityGroup returns every platform group whose feature-sets are
// mutually exclusive with those of g, g first. A group that shares nothing
// returns just itself.
//
// A profile touches only its own group for loaders: it leaves exactly one
// loader enabled there. Sibling groups are cleared of feature-sets and
// features, and their loaders are left as they were.
func ExclusivityGroup(g PlatformGroup) []PlatformGroup {
	for _, set := range exclusivity {
		for _, member := range set {
			if member != g {
				continue
			}
			out := []PlatformGroup{g}
			for _, other := range set {
				if other != g {
					out = append(out, other)
				}
			}
			return out
		}
	}
	return []PlatformGroup{g}
}
