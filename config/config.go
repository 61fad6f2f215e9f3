// Package config provides configuration loading for v8lens.
package config

import (
	"fmt"

	multierror "github.com/hashicorp/go-multierror"
	"github.com/spf13/viper"
)

// Config holds every tunable of a single analysis run.
type Config struct {
	InputPath    string `mapstructure:"input_path"`
	OutputPath   string `mapstructure:"output_path"`
	OutputFormat string `mapstructure:"output_format"` // "text" | "structured"

	// IncludeHiddenClasses lets duplicate groups of V8's own hidden-class
	// and object-shape nodes through the duplicate analyzer's filter. The
	// hidden-class analyzer itself always runs regardless.
	IncludeHiddenClasses bool `mapstructure:"include_hidden_classes"`

	TopK                     int `mapstructure:"top_k"`
	MaxColorRefinementRounds int `mapstructure:"max_color_refinement_rounds"`
	MaxRetentionPaths        int `mapstructure:"max_retention_paths"`
	ShapeFanoutThreshold     int `mapstructure:"shape_fanout_threshold"`
}

// Default returns the default value of every tunable.
func Default() Config {
	return Config{
		OutputFormat:             "text",
		IncludeHiddenClasses:     false,
		TopK:                     10,
		MaxColorRefinementRounds: 6,
		MaxRetentionPaths:        1,
		ShapeFanoutThreshold:     10,
	}
}

// Load binds a Config from, in ascending precedence, an optional YAML
// config file, the V8LENS_* environment namespace, and the flags already
// bound onto v. Flags take priority since v.BindPFlag was called before
// Load runs.
func Load(v *viper.Viper, configPath string) (Config, error) {
	def := Default()
	v.SetDefault("output_format", def.OutputFormat)
	v.SetDefault("include_hidden_classes", def.IncludeHiddenClasses)
	v.SetDefault("top_k", def.TopK)
	v.SetDefault("max_color_refinement_rounds", def.MaxColorRefinementRounds)
	v.SetDefault("max_retention_paths", def.MaxRetentionPaths)
	v.SetDefault("shape_fanout_threshold", def.ShapeFanoutThreshold)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName(".v8lens")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// A missing implicit config file is fine; an explicit path that cannot
	// be read, or any file that fails to parse, is not.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("config: reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("V8LENS")
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshaling: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate rejects configurations the orchestrator could not run. All
// problems are collected and returned together rather than one at a time.
func (c Config) Validate() error {
	var errs *multierror.Error
	if c.InputPath == "" {
		errs = multierror.Append(errs, fmt.Errorf("config: input_path is required"))
	}
	if c.OutputFormat != "text" && c.OutputFormat != "structured" {
		errs = multierror.Append(errs, fmt.Errorf("config: unsupported output_format %q", c.OutputFormat))
	}
	if c.TopK < 1 {
		errs = multierror.Append(errs, fmt.Errorf("config: top_k must be at least 1"))
	}
	if c.MaxColorRefinementRounds < 1 {
		errs = multierror.Append(errs, fmt.Errorf("config: max_color_refinement_rounds must be at least 1"))
	}
	if c.MaxRetentionPaths < 1 {
		errs = multierror.Append(errs, fmt.Errorf("config: max_retention_paths must be at least 1"))
	}
	return errs.ErrorOrNil()
}
