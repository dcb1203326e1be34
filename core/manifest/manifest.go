// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package manifest models the static declaration surface of a unit: the
// packages it installs, the relations it requires before it can be
// configured, the configuration files it renders and the services
// restarted when each of those files changes.
package manifest

import (
	"os"

	"github.com/juju/collections/set"
	"github.com/juju/errors"
	"gopkg.in/yaml.v2"
)

// RestartEntry associates one configuration file with the services that
// must be restarted when it changes.
type RestartEntry struct {
	Path     string   `yaml:"path"`
	Services []string `yaml:"services"`
}

// RestartMap is an ordered mapping from configuration file path to the
// services restarted when that file changes. Declaration order is
// significant: it determines the order of Services.
type RestartMap []RestartEntry

// Services returns the names of all managed services, in order of first
// appearance, de-duplicated.
func (m RestartMap) Services() []string {
	seen := set.NewStrings()
	var services []string
	for _, entry := range m {
		for _, name := range entry.Services {
			if seen.Contains(name) {
				continue
			}
			seen.Add(name)
			services = append(services, name)
		}
	}
	return services
}

// PackageSource identifies an additional package archive, with an
// optional signing key, to configure before installing packages.
type PackageSource struct {
	Source string `yaml:"source"`
	Key    string `yaml:"key,omitempty"`
}

// Manifest declares what a unit installs and manages.
type Manifest struct {
	// Packages are installed, in order, by the install transition.
	Packages []string `yaml:"packages"`

	// RequiredRelations names the relations that must have at least one
	// remote unit before the payload is considered configurable. The
	// declared order is the order missing relations are reported in.
	RequiredRelations []string `yaml:"required-relations,omitempty"`

	// Restarts maps configuration files to the services they restart.
	Restarts RestartMap `yaml:"restart-map,omitempty"`

	// Source optionally names the archive packages are fetched from.
	// Key is only meaningful alongside Source.
	Source string `yaml:"source,omitempty"`
	Key    string `yaml:"key,omitempty"`
}

// Services returns the full, ordered, de-duplicated service list
// derived from the restart map.
func (m *Manifest) Services() []string {
	return m.Restarts.Services()
}

// PackageSource returns the declared package source, or nil when no
// source is declared. A key declared without a source is invalid: the
// three outcomes (absent, present and valid, present and invalid) are
// distinct so callers never have to infer one from another.
func (m *Manifest) PackageSource() (*PackageSource, error) {
	if m.Source == "" {
		if m.Key != "" {
			return nil, errors.NotValidf("package signing key without source")
		}
		return nil, nil
	}
	return &PackageSource{Source: m.Source, Key: m.Key}, nil
}

// Validate returns an error if the manifest violates expectations.
func (m *Manifest) Validate() error {
	relations := set.NewStrings()
	for _, name := range m.RequiredRelations {
		if name == "" {
			return errors.NotValidf("empty required relation name")
		}
		if relations.Contains(name) {
			return errors.NotValidf("duplicate required relation %q", name)
		}
		relations.Add(name)
	}
	paths := set.NewStrings()
	for _, entry := range m.Restarts {
		if entry.Path == "" {
			return errors.NotValidf("restart map entry with empty path")
		}
		if paths.Contains(entry.Path) {
			return errors.NotValidf("duplicate restart map path %q", entry.Path)
		}
		paths.Add(entry.Path)
	}
	if _, err := m.PackageSource(); err != nil {
		return errors.Trace(err)
	}
	return nil
}

// Parse parses a manifest from its YAML representation.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, errors.Annotate(err, "cannot parse manifest")
	}
	if err := m.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &m, nil
}

// ReadManifest parses the manifest stored at path.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Annotate(err, "cannot read manifest")
	}
	m, err := Parse(data)
	if err != nil {
		return nil, errors.Annotatef(err, "manifest %q", path)
	}
	return m, nil
}
