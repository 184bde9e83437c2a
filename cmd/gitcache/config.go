package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// errConfigMalformed marks a --config file that fails to parse or
// contains unknown keys.
var errConfigMalformed = errors.New("--config yaml file is malformed")

// fileConfig mirrors the root command's persistent flags; any field left
// unset in the file simply leaves the corresponding flag's existing
// value (default, or already set on the command line) untouched.
type fileConfig struct {
	CacheDir string `yaml:"cache-dir"`
	Verbose  int    `yaml:"verbose"`
	Quiet    bool   `yaml:"quiet"`
	JSON     bool   `yaml:"json"`
}

// mergeConfigFile loads path and applies its values to any of the given
// flags the user did not already set explicitly on the command line.
// Explicit CLI flags always win, matching the teacher's own
// config-merge convention.
func mergeConfigFile(cmd *cobra.Command, path string, cacheDir *string, verbosity *int, quiet, jsonLogs *bool) error {
	data, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		return fmt.Errorf("%w: %w", errConfigMalformed, err)
	}

	var cfg fileConfig

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil {
		return fmt.Errorf("%w: %w", errConfigMalformed, err)
	}

	flags := cmd.Flags()

	if !flags.Changed("cache-dir") && cfg.CacheDir != "" {
		*cacheDir = cfg.CacheDir
	}

	if !flags.Changed("verbose") && cfg.Verbose > 0 {
		*verbosity = cfg.Verbose
	}

	if !flags.Changed("quiet") && cfg.Quiet {
		*quiet = cfg.Quiet
	}

	if !flags.Changed("json") && cfg.JSON {
		*jsonLogs = cfg.JSON
	}

	return nil
}
