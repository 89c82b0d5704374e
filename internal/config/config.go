// Package config provides configuration parsing and validation for the
// alert-api and alert-evaluator binaries.
//
// Values come from three layers: flag defaults, an optional YAML file named by
// -config (with ${VAR} expansion), and flags given on the command line. Later
// layers win.
package config

import (
	"flag"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Flagged is a configuration struct that binds its fields to flags.
type Flagged interface {
	RegisterFlags(fs *flag.FlagSet)
	Validate() error
}

// Load registers cfg's flags on fs, parses args, applies the -config file if
// one is given and validates the result.
func Load(fs *flag.FlagSet, args []string, cfg Flagged) error {
	cfg.RegisterFlags(fs)
	path := fs.String("config", "", "Optional YAML config file; flags given explicitly override it")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *path != "" {
		explicit := make(map[string]string)
		fs.Visit(func(f *flag.Flag) {
			explicit[f.Name] = f.Value.String()
		})

		if err := loadFile(*path, cfg); err != nil {
			return err
		}

		for name, value := range explicit {
			if err := fs.Set(name, value); err != nil {
				return fmt.Errorf("failed to reapply flag -%s: %w", name, err)
			}
		}
	}

	return cfg.Validate()
}

func loadFile(path string, cfg Flagged) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}
