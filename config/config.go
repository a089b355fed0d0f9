// Package config is for app wide settings that are unmarshalled
// from Viper (see: /cmd)
package config

import (
	"fmt"
	"runtime"

	"github.com/spf13/viper"
)

const (
	// SettingsFile is the name, without extension, of the optional settings file
	// looked for in the working directory and $HOME
	SettingsFile = "vadr-seed"

	// EnvPrefix prefixes the environment variables read as settings,
	// e.g. VADRSEED_SEED_OVERHANG
	EnvPrefix = "VADRSEED"
)

// SeedConfig is settings about seed pruning and flank planning
type SeedConfig struct {
	// how far a flank realignment reaches into the seed
	Overhang int `mapstructure:"overhang"`

	// the shortest block kept next to the longest block
	MinBlockLen int `mapstructure:"min-block-len"`

	// the shortest first or last block kept when it doesn't reach a terminus
	MinTermLen int `mapstructure:"min-term-len"`

	// the lowest blastn bit score an HSP needs to be a seed
	MinScore float64 `mapstructure:"min-score"`

	// whether a seed with a gap in a start or stop codon collapses to one block
	CodonCheck bool `mapstructure:"codon-check"`
}

// Config is the root-level settings struct and is a mix
// of settings available in vadr-seed.yaml, the environment and
// those available from the command line
type Config struct {
	// Seed level settings
	Seed SeedConfig `mapstructure:"seed"`

	// number of sequences handled at once
	Workers int `mapstructure:"workers"`

	// whether to log per-sequence details
	Verbose bool `mapstructure:"verbose"`

	// whether to show a progress bar on stderr
	Progress bool `mapstructure:"progress"`
}

// SetDefaults registers the default of every setting with v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("seed.overhang", 100)
	v.SetDefault("seed.min-block-len", 10)
	v.SetDefault("seed.min-term-len", 10)
	v.SetDefault("seed.min-score", 50.0)
	v.SetDefault("seed.codon-check", true)
	v.SetDefault("workers", runtime.NumCPU())
	v.SetDefault("verbose", false)
	v.SetDefault("progress", false)
}

// New returns a new Config populated by the global Viper's settings
// (defaults, the settings file, the environment and flags)
func New() (*Config, error) {
	return FromViper(viper.GetViper())
}

// FromViper unmarshals and checks the settings in v.
func FromViper(v *viper.Viper) (*Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unable to decode settings: %v", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks that every setting is in range.
func (c *Config) Validate() error {
	switch {
	case c.Seed.Overhang < 0:
		return fmt.Errorf("seed.overhang must be >= 0, got %d", c.Seed.Overhang)
	case c.Seed.MinBlockLen < 0:
		return fmt.Errorf("seed.min-block-len must be >= 0, got %d", c.Seed.MinBlockLen)
	case c.Seed.MinTermLen < 0:
		return fmt.Errorf("seed.min-term-len must be >= 0, got %d", c.Seed.MinTermLen)
	case c.Seed.MinScore < 0:
		return fmt.Errorf("seed.min-score must be >= 0, got %g", c.Seed.MinScore)
	case c.Workers < 1:
		return fmt.Errorf("workers must be >= 1, got %d", c.Workers)
	}
	return nil
}
