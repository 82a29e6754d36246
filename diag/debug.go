package diag

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/pkg/errors"

	"github.com/dcshock/sdkswitch/xr"
)

// DebugAllAvailableInfo writes every loader, feature-set, feature and
// interaction profile reg offers for g, with its enabled state.
func DebugAllAvailableInfo(w io.Writer, reg xr.FeatureRegistry, g xr.PlatformGroup) error {
	loaders, err := reg.ListLoaders(g)
	if err != nil {
		return errors.Wrapf(err, "list loaders of %s", g)
	}
	sets, err := reg.ListFeatureSets(g)
	if err != nil {
		return errors.Wrapf(err, "list feature sets of %s", g)
	}
	features, err := reg.ListFeatures(g)
	if err != nil {
		return errors.Wrapf(err, "list features of %s", g)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "=== XR settings for %s ===\n", g)

	fmt.Fprintln(tw, "\n== Loaders ==")
	for _, l := range loaders {
		fmt.Fprintf(tw, "%s\t%s\n", check(l.Enabled), l.ID)
	}

	fmt.Fprintln(tw, "\n== Feature sets ==")
	for _, s := range sets {
		installed := "not installed"
		if s.Installed {
			installed = "installed"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", check(s.Enabled), s.ID, installed)
	}

	fmt.Fprintln(tw, "\n== Features ==")
	for _, f := range features {
		if !f.Interaction {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", check(f.Enabled), f.Name, f.ID)
		}
	}

	fmt.Fprintln(tw, "\n== Interaction profiles ==")
	for _, f := range features {
		if f.Interaction {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", check(f.Enabled), f.Name, f.ID)
		}
	}
	return errors.Wrap(tw.Flush(), "write debug info")
}

func check(enabled bool) string {
	if enabled {
		return "[x]"
	}
	return "[ ]"
}
