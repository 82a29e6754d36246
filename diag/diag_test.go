package diag

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/go-playground/colors.v1"

	"github.com/dcshock/sdkswitch/hostenv"
	"github.com/dcshock/sdkswitch/pipeline"
	"github.com/dcshock/sdkswitch/profiles"
	"github.com/dcshock/sdkswitch/xr"
)

func TestDebugAllAvailableInfo(t *testing.T) {
	ctx := context.Background()
	host := hostenv.NewMemory()
	_, err := host.Install(ctx, "com.htc.upm.vive.openxr@2.5.1")
	require.NoError(t, err)
	require.NoError(t, host.Reload(ctx))
	require.NoError(t, host.SetLoaderEnabled(xr.Android, hostenv.LoaderOpenXR, true))
	require.NoError(t, host.SetEnabled(xr.Android, hostenv.HandInteraction, true))

	var buf bytes.Buffer
	require.NoError(t, DebugAllAvailableInfo(&buf, host, xr.Android))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "=== XR settings for android ==="))
	sections := []string{"== Loaders ==", "== Feature sets ==", "== Features ==", "== Interaction profiles =="}
	last := -1
	for _, s := range sections {
		i := strings.Index(out, s)
		require.Greater(t, i, last, s)
		last = i
	}
	assert.Regexp(t, `\[x\]\s+openxr`, out)
	assert.Regexp(t, `\[ \]\s+com\.htc\.vive\.openxr\.featureset\.vivexr\s+installed`, out)
	assert.Regexp(t, `\[ \]\s+com\.picoxr\.openxr\.features\s+not installed`, out)
	assert.Regexp(t, `\[x\]\s+handinteraction\s+`+strings.ReplaceAll(string(hostenv.HandInteraction), ".", `\.`), out)

	interactions := out[strings.Index(out, "== Interaction profiles =="):]
	assert.Contains(t, interactions, "focus3controller")
	assert.NotContains(t, interactions, "passthrough")
}

type failingRegistry struct{ xr.FeatureRegistry }

func (failingRegistry) ListLoaders(xr.PlatformGroup) ([]xr.Loader, error) {
	return nil, xr.ErrFeatureNotFound
}

func TestDebugAllAvailableInfo_Error(t *testing.T) {
	err := DebugAllAvailableInfo(&bytes.Buffer{}, failingRegistry{}, xr.IOS)
	assert.ErrorIs(t, err, xr.ErrFeatureNotFound)
}

func TestProfileGraph(t *testing.T) {
	prof, ok := profiles.Builtin().Lookup(profiles.PICO)
	require.True(t, ok)
	g, err := ProfileGraph(prof)
	require.NoError(t, err)

	adj, err := g.AdjacencyMap()
	require.NoError(t, err)
	assert.Len(t, adj, len(prof.Steps)+1)
	for i, s := range prof.Steps {
		next := EndVertex
		if i+1 < len(prof.Steps) {
			next = prof.Steps[i+1].ID
		}
		edge, ok := adj[s.ID][next]
		require.True(t, ok, "%s -> %s", s.ID, next)
		assert.Equal(t, s.Settle.String(), edge.Properties.Attributes["label"])
	}
	assert.Empty(t, adj[EndVertex])

	_, props, err := g.VertexWithProperties(profiles.StepInstallPackage)
	require.NoError(t, err)
	restart, err := SettleColor(pipeline.Restart(), 0)
	require.NoError(t, err)
	assert.Equal(t, restart, props.Attributes["fillcolor"])
}

func TestSettleColor(t *testing.T) {
	hex := func(r, g, b uint8) string {
		c, err := colors.RGB(r, g, b)
		require.NoError(t, err)
		return c.ToHEX().String()
	}
	tests := []struct {
		settle   pipeline.Settle
		maxTicks int
		want     string
	}{
		{settle: pipeline.None, want: hex(211, 211, 211)},
		{settle: pipeline.Restart(), want: hex(255, 0, 0)},
		{settle: pipeline.Ticks(1), maxTicks: 1, want: hex(240, 0, 0)},
		{settle: pipeline.Ticks(1), maxTicks: 3, want: hex(0, 0, 240)},
		{settle: pipeline.Ticks(3), maxTicks: 3, want: hex(240, 0, 0)},
	}
	for _, tt := range tests {
		got, err := SettleColor(tt.settle, tt.maxTicks)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.settle.String())
	}
}

func TestDrawProfile(t *testing.T) {
	prof, _ := profiles.Builtin().Lookup(profiles.XREAL)
	var buf bytes.Buffer
	require.NoError(t, DrawProfile(&buf, prof))
	out := buf.String()
	assert.Contains(t, out, "digraph")
	assert.Contains(t, out, `"set-loader"`)
	assert.Contains(t, out, "ticks:2")
	assert.Contains(t, out, "XREAL (android)")

	assert.Error(t, DrawProfile(&buf, &pipeline.Profile{Name: "X"}))
}
