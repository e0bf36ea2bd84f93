// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FieldGate Contributors

// Package config loads the gateway properties file and turns its module
// entries into descriptors. File values can be overridden by command-line
// flags.
package config

import (
	"encoding/json"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/fieldgate/fieldgate/internal/module"
)

// Defaults applied before the file and flags are merged.
const (
	DefaultLogFormat   = "json"
	DefaultLogLevel    = "info"
	DefaultMetricsAddr = "127.0.0.1:9100"
)

// Log configures the structured logger.
type Log struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// Metrics configures the observability HTTP endpoint. An empty address
// disables it.
type Metrics struct {
	Addr string `koanf:"addr"`
}

// Module is one properties entry describing a module to load.
type Module struct {
	Name       string         `koanf:"name"`
	Runtime    string         `koanf:"runtime"`
	Path       string         `koanf:"path"`
	Filter     string         `koanf:"filter"`
	FaultLimit int            `koanf:"fault_limit"`
	Config     map[string]any `koanf:"config"`
}

// Config is the full gateway properties document.
type Config struct {
	Log     Log      `koanf:"log"`
	Metrics Metrics  `koanf:"metrics"`
	Modules []Module `koanf:"modules"`
}

// Load reads the properties file at path, merges flag overrides, and
// validates the result. An empty path loads defaults and flags only.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]any{
		"log.format":   DefaultLogFormat,
		"log.level":    DefaultLogLevel,
		"metrics.addr": DefaultMetricsAddr,
	}
	for key, val := range defaults {
		if err := k.Set(key, val); err != nil {
			return nil, oops.In("config").With("key", key).Wrap(err)
		}
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.In("config").With("path", path).Wrapf(err, "loading properties file")
		}
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return nil, oops.In("config").Wrapf(err, "merging flags")
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.In("config").Wrapf(err, "unmarshaling properties")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the document shape. Per-descriptor validation happens again
// in the gateway, but failing here gives file-oriented errors before anything
// loads.
func (c *Config) Validate() error {
	switch c.Log.Format {
	case "json", "text":
	default:
		return oops.In("config").With("format", c.Log.Format).Errorf("log format must be json or text")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return oops.In("config").With("level", c.Log.Level).Errorf("unknown log level")
	}

	seen := make(map[string]struct{}, len(c.Modules))
	for i, m := range c.Modules {
		if m.Name == "" {
			return oops.In("config").With("entry", i).Errorf("module name is required")
		}
		if _, dup := seen[m.Name]; dup {
			return oops.In("config").With("module", m.Name).Errorf("duplicate module name")
		}
		seen[m.Name] = struct{}{}
	}
	return nil
}

// Descriptors converts the module entries into loader descriptors in file
// order. Each entry's config map is re-encoded as JSON for the module.
func (c *Config) Descriptors() ([]module.Descriptor, error) {
	descs := make([]module.Descriptor, 0, len(c.Modules))
	for _, m := range c.Modules {
		var raw []byte
		if m.Config != nil {
			var err error
			raw, err = json.Marshal(m.Config)
			if err != nil {
				return nil, oops.In("config").With("module", m.Name).Wrapf(err, "encoding module config")
			}
		}
		desc := module.Descriptor{
			Name:       m.Name,
			Path:       m.Path,
			Runtime:    module.Kind(m.Runtime),
			Filter:     m.Filter,
			FaultLimit: m.FaultLimit,
			Config:     raw,
		}
		if err := desc.Validate(); err != nil {
			return nil, err
		}
		descs = append(descs, desc)
	}
	return descs, nil
}
