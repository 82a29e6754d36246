package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dcshock/sdkswitch/xr"
)

// DefaultSettingsFile is the settings file looked up in the working directory.
const DefaultSettingsFile = "sdkswitch.yaml"

// Settings is the application configuration (sdkswitch.yaml).
type Settings struct {
	// StateDir holds the restart boundary file.
	StateDir string `yaml:"state_dir"`
	// ProjectFile is the host project state, relative to StateDir unless
	// absolute.
	ProjectFile string `yaml:"project_file"`
	// ProfilesFile optionally declares extra profiles.
	ProfilesFile string `yaml:"profiles_file"`
	// TickInterval is the period of the host tick loop.
	TickInterval Duration `yaml:"tick_interval"`
	LogLevel     string   `yaml:"log_level"`
	LogFormat    string   `yaml:"log_format"`
}

// DefaultSettings returns the settings used when no file is present.
func DefaultSettings() Settings {
	return Settings{
		StateDir:     ".sdkswitch",
		ProjectFile:  "project.json",
		TickInterval: Duration(16 * time.Millisecond),
		LogLevel:     "info",
		LogFormat:    "text",
	}
}

// BoundaryPath is the restart boundary file inside StateDir.
func (s Settings) BoundaryPath() string {
	return filepath.Join(s.StateDir, "boundary.json")
}

// JournalPath is the run journal file inside StateDir.
func (s Settings) JournalPath() string {
	return filepath.Join(s.StateDir, "journal.jsonl")
}

// ProjectPath resolves ProjectFile against StateDir.
func (s Settings) ProjectPath() string {
	if filepath.IsAbs(s.ProjectFile) {
		return s.ProjectFile
	}
	return filepath.Join(s.StateDir, s.ProjectFile)
}

// Validate checks the values that have no usable fallback.
func (s Settings) Validate() error {
	if s.StateDir == "" {
		return fmt.Errorf("state_dir required")
	}
	if s.ProjectFile == "" {
		return fmt.Errorf("project_file required")
	}
	if s.TickInterval <= 0 {
		return fmt.Errorf("tick_interval must be positive")
	}
	switch s.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("log_format %q not supported (use \"text\" or \"json\")", s.LogFormat)
	}
	return nil
}

// ParseSettings parses YAML over DefaultSettings, so omitted keys keep their
// defaults.
func ParseSettings(data []byte) (Settings, error) {
	s := DefaultSettings()
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Settings{}, err
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// LoadSettings reads path. A missing file yields DefaultSettings.
func LoadSettings(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultSettings(), nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("read settings: %w", err)
	}
	s, err := ParseSettings(data)
	if err != nil {
		return Settings{}, fmt.Errorf("settings %s: %w", path, err)
	}
	return s, nil
}

// Duration is a time.Duration that unmarshals from YAML strings (e.g. "16ms", "1s").
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the standard time.Duration.
func (d Duration) Duration() time.Duration { return time.Duration(d) }

// ProfilesConfig is the root of a profile declaration file. Top-level key is
// "profiles"; each value is one profile in recipe or step form.
type ProfilesConfig struct {
	Profiles map[string]ProfileConfig `yaml:"profiles"`
}

// ProfileConfig declares one profile. When Steps is set the recipe fields
// other than Group and IgnoreIssues must be empty.
type ProfileConfig struct {
	Group        xr.PlatformGroup `yaml:"group"`
	IgnoreIssues []string         `yaml:"ignore_issues"`

	// Recipe form.
	Package               string         `yaml:"package"`
	Loader                string         `yaml:"loader"`
	LoaderSettleTicks     int            `yaml:"loader_settle_ticks"`
	FeatureSet            string         `yaml:"feature_set"`
	ClearSettleTicks      int            `yaml:"clear_settle_ticks"`
	FeatureSetSettleTicks int            `yaml:"feature_set_settle_ticks"`
	Features              []xr.FeatureID `yaml:"features"`
	InteractionProfiles   []xr.FeatureID `yaml:"interaction_profiles"`

	// Step form.
	Steps []StepConfig `yaml:"steps"`
}

func (p ProfileConfig) hasRecipe() bool {
	return p.Package != "" || p.Loader != "" || p.FeatureSet != "" ||
		p.LoaderSettleTicks != 0 || p.ClearSettleTicks != 0 || p.FeatureSetSettleTicks != 0 ||
		len(p.Features) > 0 || len(p.InteractionProfiles) > 0
}

// StepConfig is a single step entry: either a plain action name or an action
// with arguments. In YAML, a step can be written as:
//   - clear_exclusive
//   - id: loader
//     action: set_loader
//     loader: openxr
//     settle: ticks:2
type StepConfig struct {
	ID     string `yaml:"id"`
	Action string `yaml:"action"`
	// Settle is "none", "ticks:<n>" or "restart".
	Settle string `yaml:"settle"`

	Package             string         `yaml:"package"`
	Packages            []string       `yaml:"packages"`
	Loader              string         `yaml:"loader"`
	FeatureSet          string         `yaml:"feature_set"`
	Features            []xr.FeatureID `yaml:"features"`
	InteractionProfiles []xr.FeatureID `yaml:"interaction_profiles"`
}

// UnmarshalYAML allows a step to be a string (action name only) or a struct.
func (s *StepConfig) UnmarshalYAML(value *yaml.Node) error {
	var nameOnly string
	if err := value.Decode(&nameOnly); err == nil {
		s.Action = nameOnly
		return nil
	}
	type raw StepConfig
	return value.Decode((*raw)(s))
}

// ParseProfilesConfig parses YAML bytes that contain a "profiles" map from name
// to profile declaration.
func ParseProfilesConfig(data []byte) (*ProfilesConfig, error) {
	var cfg ProfilesConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
