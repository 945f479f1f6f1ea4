// Package config loads the YAML configuration file naming each engine worker, the
// database URL and the static asset directory.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const defaultShowPV = 2

// SSHConfig spawns the engine over a remote shell channel instead of a local process.
type SSHConfig struct {
	Host     string `yaml:"host"`
	Username string `yaml:"username"`
}

// AnalyzerConfig describes one engine worker.
type AnalyzerConfig struct {
	Command []string          `yaml:"command"`
	MaxMultiPV int            `yaml:"max_multipv"`
	ShowPV     int            `yaml:"show_pv"`
	SSH        *SSHConfig     `yaml:"ssh"`
	UCIOptions map[string]string `yaml:"uci_options"`

	// DynamicOptions names a built-in PerPosition option function to layer on top of
	// UCIOptions, since YAML cannot itself encode the callable the source configures
	// uci_options with. "" means no extra per-position source; "movetime_elo" names the
	// one variant pkg/analyzer implements. This is independent of the ratings-contempt
	// block, which pkg/analyzer always applies on top when both ratings are known.
	DynamicOptions string `yaml:"dynamic_options"`
}

// Config is the top-level configuration document.
type Config struct {
	DBURL     string           `yaml:"db_url"`
	AssetsDir string           `yaml:"assets_dir"`
	Analyzers []AnalyzerConfig `yaml:"analyzers"`
}

// Load reads and parses the YAML configuration file at path, applying field defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %v: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %v: %w", path, err)
	}

	if len(cfg.Analyzers) == 0 {
		return nil, fmt.Errorf("config %v: no analyzers configured", path)
	}
	for i := range cfg.Analyzers {
		if len(cfg.Analyzers[i].Command) == 0 {
			return nil, fmt.Errorf("config %v: analyzer %v has no command", path, i)
		}
		if cfg.Analyzers[i].ShowPV == 0 {
			cfg.Analyzers[i].ShowPV = defaultShowPV
		}
		if cfg.Analyzers[i].MaxMultiPV == 0 {
			cfg.Analyzers[i].MaxMultiPV = cfg.Analyzers[i].ShowPV
		}
	}
	return &cfg, nil
}
