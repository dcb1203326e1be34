// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package packaging installs a unit's declared packages through apt.
// Installation failure is fatal to the install event: the caller leaves
// the unit un-started and the next status evaluation reflects that.
package packaging

import (
	"fmt"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/loggo"
	"github.com/juju/packaging/v2/manager"
	"github.com/juju/utils/v4"

	"github.com/juju/charmbase/core/manifest"
)

var logger = loggo.GetLogger("charmbase.packaging")

const trustedKeyDir = "/etc/apt/trusted.gpg.d"

// PackageManager is the subset of the apt manager used here. The
// production implementation is manager.PackageManager.
type PackageManager interface {
	AddRepository(repo string) error
	Update() error
	Install(packs ...string) error
}

var _ PackageManager = manager.PackageManager(nil)

// Installer installs a unit's declared packages.
type Installer struct {
	pm       PackageManager
	writeKey func(name string, data []byte) error
}

// NewAptInstaller returns an Installer backed by apt.
func NewAptInstaller() *Installer {
	return NewInstaller(manager.NewAptPackageManager())
}

// NewInstaller returns an Installer backed by the supplied manager.
func NewInstaller(pm PackageManager) *Installer {
	return &Installer{
		pm: pm,
		writeKey: func(name string, data []byte) error {
			return utils.AtomicWriteFile(name, data, 0644)
		},
	}
}

// Install configures the declared package source, if any, refreshes the
// package indexes and installs the declared packages.
func (i *Installer) Install(m *manifest.Manifest) error {
	src, err := m.PackageSource()
	if err != nil {
		return errors.Annotate(err, "invalid package source")
	}
	if src != nil {
		if err := i.addSource(src); err != nil {
			return errors.Trace(err)
		}
	}
	if err := i.pm.Update(); err != nil {
		return errors.Annotate(err, "updating package indexes")
	}
	if len(m.Packages) == 0 {
		logger.Debugf("no packages declared, nothing to install")
		return nil
	}
	logger.Infof("installing packages: %s", strings.Join(m.Packages, " "))
	if err := i.pm.Install(m.Packages...); err != nil {
		return errors.Annotatef(err, "installing packages %v", m.Packages)
	}
	return nil
}

func (i *Installer) addSource(src *manifest.PackageSource) error {
	if src.Key != "" {
		path := fmt.Sprintf("%s/%s.asc", trustedKeyDir, keyFileName(src.Source))
		if err := i.writeKey(path, []byte(src.Key)); err != nil {
			return errors.Annotatef(err, "importing signing key for %q", src.Source)
		}
	}
	logger.Infof("adding package source %q", src.Source)
	if err := i.pm.AddRepository(src.Source); err != nil {
		return errors.Annotatef(err, "adding package source %q", src.Source)
	}
	return nil
}

// keyFileName derives a stable file name for a source's signing key.
func keyFileName(source string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '-'
		}
	}, source)
	return "charmbase-" + name
}
