package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dcshock/sdkswitch/pipeline"
	"github.com/dcshock/sdkswitch/profiles"
	"github.com/dcshock/sdkswitch/xr"
)

func TestRegistry_RegisterGet(t *testing.T) {
	reg := NewRegistry()
	reg.Register("id", noArgs(pipeline.Noop))
	f, ok := reg.Get("id")
	require.True(t, ok)
	assert.NotNil(t, f)
	_, ok = reg.Get("missing")
	assert.False(t, ok)
}

func TestDefaultRegistry_Names(t *testing.T) {
	want := []string{
		"clear_exclusive",
		"enable_feature_set",
		"fix_all",
		"fix_all_platforms",
		"install_package",
		"noop",
		"remove_packages",
		"require_valid",
		"set_features",
		"set_interaction_profiles",
		"set_loader",
	}
	assert.Equal(t, want, DefaultRegistry().Names())
}

func TestParseSettings_Defaults(t *testing.T) {
	s, err := ParseSettings([]byte("log_level: debug\ntick_interval: 50ms\n"))
	require.NoError(t, err)
	assert.Equal(t, "debug", s.LogLevel)
	assert.Equal(t, 50*time.Millisecond, s.TickInterval.Duration())
	assert.Equal(t, ".sdkswitch", s.StateDir)
	assert.Equal(t, filepath.Join(".sdkswitch", "project.json"), s.ProjectPath())
	assert.Equal(t, filepath.Join(".sdkswitch", "boundary.json"), s.BoundaryPath())
}

func TestParseSettings_Invalid(t *testing.T) {
	for name, doc := range map[string]string{
		"bad duration":   "tick_interval: soon\n",
		"zero duration":  "tick_interval: 0s\n",
		"bad log format": "log_format: xml\n",
		"empty dir":      "state_dir: \"\"\n",
	} {
		_, err := ParseSettings([]byte(doc))
		assert.Error(t, err, name)
	}
}

func TestLoadSettings(t *testing.T) {
	dir := t.TempDir()
	s, err := LoadSettings(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(), s)

	path := filepath.Join(dir, DefaultSettingsFile)
	require.NoError(t, os.WriteFile(path, []byte("project_file: /abs/project.json\n"), 0o644))
	s, err = LoadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, "/abs/project.json", s.ProjectPath())
}

func TestParseProfilesConfig_StepForms(t *testing.T) {
	doc := `
profiles:
  custom:
    group: standalone
    steps:
      - id: loader
        action: set_loader
        loader: openxr
      - action: clear_exclusive
        settle: ticks:2
      - fix_all
`
	cfg, err := ParseProfilesConfig([]byte(doc))
	require.NoError(t, err)
	pc := cfg.Profiles["custom"]
	assert.Equal(t, xr.Standalone, pc.Group)
	require.Len(t, pc.Steps, 3)
	assert.Equal(t, StepConfig{ID: "loader", Action: "set_loader", Loader: "openxr"}, pc.Steps[0])
	assert.Equal(t, StepConfig{Action: "clear_exclusive", Settle: "ticks:2"}, pc.Steps[1])
	assert.Equal(t, StepConfig{Action: "fix_all"}, pc.Steps[2])
}

func TestParseProfilesConfig_UnknownGroup(t *testing.T) {
	_, err := ParseProfilesConfig([]byte("profiles:\n  x:\n    group: desktop\n"))
	assert.Error(t, err)
}

func TestBuildProfile_Steps(t *testing.T) {
	cfg := &ProfileConfig{
		Group: xr.Standalone,
		Steps: []StepConfig{
			{ID: "loader", Action: "set_loader", Loader: "openxr"},
			{Action: "clear_exclusive", Settle: "ticks:2"},
			{Action: "noop"},
			{Action: "noop", Settle: "restart"},
		},
	}
	p, err := BuildProfile(DefaultRegistry(), "CUSTOM", cfg)
	require.NoError(t, err)
	var ids, settles []string
	for _, s := range p.Steps {
		ids = append(ids, s.ID)
		settles = append(settles, s.Settle.String())
	}
	assert.Equal(t, []string{"loader", "clear_exclusive", "noop", "noop-3"}, ids)
	assert.Equal(t, []string{"none", "ticks:2", "none", "restart"}, settles)
}

func TestBuildProfile_Recipe(t *testing.T) {
	cfg := &ProfileConfig{
		Group:                 xr.Android,
		Package:               "com.example.sdk@1.0.0",
		Loader:                "openxr",
		FeatureSet:            "com.example.features",
		FeatureSetSettleTicks: 3,
		IgnoreIssues:          []string{"duplicate settings"},
	}
	p, err := BuildProfile(DefaultRegistry(), "MYDEVICE", cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"duplicate settings"}, p.IgnoreIssues)
	i := p.StepIndex(profiles.StepEnableFeatureSet)
	require.GreaterOrEqual(t, i, 0)
	assert.Equal(t, pipeline.Ticks(3), p.Steps[i].Settle)
	assert.Equal(t, pipeline.Restart(), p.Steps[p.StepIndex(profiles.StepInstallPackage)].Settle)
}

func TestBuildProfile_Errors(t *testing.T) {
	reg := DefaultRegistry()
	tests := []struct {
		name string
		cfg  ProfileConfig
	}{
		{name: "no group", cfg: ProfileConfig{Loader: "openxr"}},
		{name: "unknown action", cfg: ProfileConfig{Group: xr.Android, Steps: []StepConfig{{Action: "launch"}}}},
		{name: "missing argument", cfg: ProfileConfig{Group: xr.Android, Steps: []StepConfig{{Action: "set_loader"}}}},
		{name: "bad settle", cfg: ProfileConfig{Group: xr.Android, Steps: []StepConfig{{Action: "noop", Settle: "ticks:0"}}}},
		{name: "mixed forms", cfg: ProfileConfig{Group: xr.Android, Loader: "openxr", Steps: []StepConfig{{Action: "noop"}}}},
		{name: "duplicate ids", cfg: ProfileConfig{Group: xr.Android, Steps: []StepConfig{{ID: "a", Action: "noop"}, {ID: "a", Action: "fix_all"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := BuildProfile(reg, "P", &tt.cfg)
			assert.Error(t, err)
			assert.Nil(t, p)
		})
	}
}

func TestLoadProfiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	doc := `
profiles:
  zeta:
    group: standalone
    steps: [noop]
  alpha:
    group: android
    loader: openxr
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	catalog := profiles.Builtin()
	require.NoError(t, LoadProfiles(DefaultRegistry(), catalog, path))

	names := catalog.Names()
	assert.Equal(t, []string{"ALPHA", "ZETA"}, names[len(names)-2:])
	p, ok := catalog.Lookup("alpha")
	require.True(t, ok)
	assert.Equal(t, xr.Android, p.Group)

	assert.Error(t, LoadProfiles(DefaultRegistry(), catalog, path), "names are already taken")
}

func TestLoadProfiles_ClashWithBuiltin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	require.NoError(t, os.WriteFile(path, []byte("profiles:\n  pico:\n    group: android\n    steps: [noop]\n"), 0o644))
	assert.Error(t, LoadProfiles(DefaultRegistry(), profiles.Builtin(), path))
}
