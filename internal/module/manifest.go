// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FieldGate Contributors

package module

import (
	"fmt"
	"regexp"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"
)

// Manifest represents a module.yaml file placed next to a module artifact.
// It names the module, pins its runtime, and may constrain the host API
// version it is compatible with.
type Manifest struct {
	Name    string        `yaml:"name" json:"name"`
	Version string        `yaml:"version" json:"version"`
	Runtime Kind          `yaml:"runtime" json:"runtime"`
	API     string        `yaml:"api,omitempty" json:"api,omitempty"`
	Filter  string        `yaml:"filter,omitempty" json:"filter,omitempty"`
	Binary  *BinaryConfig `yaml:"binary,omitempty" json:"binary,omitempty"`
	Lua     *LuaConfig    `yaml:"lua,omitempty" json:"lua,omitempty"`
}

// BinaryConfig holds binary module configuration.
type BinaryConfig struct {
	Executable string `yaml:"executable" json:"executable"`
}

// LuaConfig holds Lua module configuration.
type LuaConfig struct {
	Entry string `yaml:"entry" json:"entry"`
}

// maxNameLength is the maximum allowed length for module names.
const maxNameLength = 64

// namePattern validates module names: lowercase letter first, then lowercase
// letters, digits, or hyphens, not ending with a hyphen.
var namePattern = regexp.MustCompile(`^[a-z]([a-z0-9-]*[a-z0-9])?$`)

// ParseManifest parses and validates a module.yaml file.
func ParseManifest(data []byte) (*Manifest, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("manifest data is empty")
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}

	return &m, nil
}

// Validate checks manifest constraints.
func (m *Manifest) Validate() error {
	if m.Name == "" || !namePattern.MatchString(m.Name) {
		return fmt.Errorf("name %q must start with a-z, contain only a-z, 0-9, hyphens, and not end with a hyphen", m.Name)
	}
	if len(m.Name) > maxNameLength {
		return fmt.Errorf("name must be %d characters or less, got %d", maxNameLength, len(m.Name))
	}

	if m.Version == "" {
		return fmt.Errorf("version is required")
	}
	if _, err := semver.NewVersion(m.Version); err != nil {
		return fmt.Errorf("version %q is not valid semver: %w", m.Version, err)
	}

	switch m.Runtime {
	case KindBinary:
		if m.Binary == nil {
			return fmt.Errorf("binary is required when runtime is binary")
		}
		if m.Binary.Executable == "" {
			return fmt.Errorf("binary.executable is required")
		}
	case KindLua:
		if m.Lua == nil {
			return fmt.Errorf("lua is required when runtime is lua")
		}
		if m.Lua.Entry == "" {
			return fmt.Errorf("lua.entry is required")
		}
	case KindInProcess:
	default:
		return fmt.Errorf("runtime must be 'binary', 'lua' or 'inproc', got %q", m.Runtime)
	}

	if m.API != "" {
		if _, err := semver.NewConstraint(m.API); err != nil {
			return fmt.Errorf("api constraint %q is not valid: %w", m.API, err)
		}
	}

	return nil
}

// CheckHostCompat verifies the manifest's API constraint against the host's
// module API version. A manifest without a constraint accepts any host.
func (m *Manifest) CheckHostCompat() error {
	if m.API == "" {
		return nil
	}
	c, err := semver.NewConstraint(m.API)
	if err != nil {
		return fmt.Errorf("api constraint %q is not valid: %w", m.API, err)
	}
	host := semver.MustParse(HostAPIVersion)
	if !c.Check(host) {
		return fmt.Errorf("module %s requires host API %q, host provides %s", m.Name, m.API, HostAPIVersion)
	}
	return nil
}
