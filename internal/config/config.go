package config

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileConfig is the on-disk YAML shape. Pointer fields distinguish "unset"
// from the zero value so that files and flags can be layered.
type FileConfig struct {
	Project    *string           `yaml:"project"`
	Scenario   map[string]string `yaml:"scenario"`
	Target     *string           `yaml:"target"`
	Runtime    *string           `yaml:"runtime"`
	ConfigFile *string           `yaml:"config_file"`
	AdaOnly    *bool             `yaml:"ada_only"`

	Charset *string `yaml:"charset"`
	Trivia  *bool   `yaml:"trivia"`
	TabStop *int    `yaml:"tab_stop"`

	// Sources are doublestar globs, relative to the config file's directory
	// for local configs.
	Sources []string `yaml:"sources"`
	Exclude []string `yaml:"exclude"`

	Format  *string `yaml:"format"`
	NoColor *bool   `yaml:"no_color"`
}

// LoadFile reads a YAML config file from the provided path.
func LoadFile(path string) (FileConfig, error) {
	var cfg FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LocalNames lists the file names LoadLocal looks for, in order.
var LocalNames = []string{".lal-diagnose.yml", ".lal-diagnose.yaml", "lal-diagnose.yml", "lal-diagnose.yaml"}

// ErrNoConfig is returned when no config file exists where one was looked
// for.
var ErrNoConfig = errors.New("no config file")

// LoadLocal searches dir for a project-local config file.
func LoadLocal(dir string) (FileConfig, error) {
	for _, name := range LocalNames {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return LoadFile(p)
		}
	}
	return FileConfig{}, ErrNoConfig
}

// LoadGlobal loads $XDG_CONFIG_HOME/lal/config.yml, falling back to
// ~/.config.
func LoadGlobal() (FileConfig, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, _ := os.UserHomeDir()
		if home != "" {
			base = filepath.Join(home, ".config")
		}
	}
	if base == "" {
		return FileConfig{}, ErrNoConfig
	}
	p := filepath.Join(base, "lal", "config.yml")
	if _, err := os.Stat(p); err == nil {
		return LoadFile(p)
	}
	return FileConfig{}, ErrNoConfig
}

// Merge returns base with every field set in over replacing it. Scenario
// maps are merged key by key.
func Merge(base, over FileConfig) FileConfig {
	out := base
	setString(&out.Project, over.Project)
	setString(&out.Target, over.Target)
	setString(&out.Runtime, over.Runtime)
	setString(&out.ConfigFile, over.ConfigFile)
	setString(&out.Charset, over.Charset)
	setString(&out.Format, over.Format)
	setBool(&out.AdaOnly, over.AdaOnly)
	setBool(&out.Trivia, over.Trivia)
	setBool(&out.NoColor, over.NoColor)
	if over.TabStop != nil {
		out.TabStop = over.TabStop
	}
	if len(over.Sources) > 0 {
		out.Sources = over.Sources
	}
	if len(over.Exclude) > 0 {
		out.Exclude = over.Exclude
	}
	if len(over.Scenario) > 0 {
		merged := make(map[string]string, len(base.Scenario)+len(over.Scenario))
		for k, v := range base.Scenario {
			merged[k] = v
		}
		for k, v := range over.Scenario {
			merged[k] = v
		}
		out.Scenario = merged
	}
	return out
}

func setString(dst **string, v *string) {
	if v != nil {
		*dst = v
	}
}

func setBool(dst **bool, v *bool) {
	if v != nil {
		*dst = v
	}
}

// String returns *p, or "" when unset.
func String(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// Bool returns *p, or def when unset.
func Bool(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}
