// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package systemd controls payload services through the systemd D-Bus
// API. Units are addressed by service name; the ".service" suffix is
// appended when talking to systemd.
package systemd

import (
	"github.com/coreos/go-systemd/v22/dbus"
	"github.com/coreos/go-systemd/v22/util"
	"github.com/juju/errors"
	"github.com/juju/loggo"

	"github.com/juju/charmbase/service"
)

var logger = loggo.GetLogger("charmbase.service.systemd")

// IsRunning returns whether or not systemd is the local init system.
func IsRunning() bool {
	return util.IsRunningSystemd()
}

// DBusAPI exposes the parts of the systemd D-Bus client used here.
type DBusAPI interface {
	Close()
	ListUnits() ([]dbus.UnitStatus, error)
	StartUnit(string, string, chan<- string) (int, error)
	StopUnit(string, string, chan<- string) (int, error)
}

// DBusAPIFactory is a factory method for DBusAPI connections.
type DBusAPIFactory = func() (DBusAPI, error)

var NewDBusAPI = func() (DBusAPI, error) {
	return dbus.New()
}

var newChan = func() chan string {
	return make(chan string)
}

// Service provides visibility into and control over a systemd service.
type Service struct {
	name     string
	unitName string
	newDBus  DBusAPIFactory
}

// NewService returns a Service for the named systemd unit.
func NewService(name string) *Service {
	return &Service{
		name:     name,
		unitName: name + ".service",
		newDBus:  NewDBusAPI,
	}
}

// Factory resolves service names to systemd services. It satisfies
// service.Factory.
func Factory(name string) (service.Service, error) {
	return NewService(name), nil
}

// Name implements service.Service.
func (s *Service) Name() string {
	return s.name
}

func (s *Service) newConn() (DBusAPI, error) {
	conn, err := s.newDBus()
	if err != nil {
		logger.Errorf("failed to connect to dbus for service %q: %v", s.name, err)
	}
	return conn, err
}

// Running implements service.Service.
func (s *Service) Running() (bool, error) {
	conn, err := s.newConn()
	if err != nil {
		return false, errors.Trace(err)
	}
	defer conn.Close()

	units, err := conn.ListUnits()
	if err != nil {
		return false, errors.Annotatef(err, "failed to query services from dbus for %q", s.name)
	}

	for _, unit := range units {
		if unit.Name == s.unitName {
			running := unit.LoadState == "loaded" && unit.ActiveState == "active"
			return running, nil
		}
	}
	return false, nil
}

// Start implements service.Service.
func (s *Service) Start() error {
	err := s.start()
	if errors.IsAlreadyExists(err) {
		logger.Debugf("service %q already running", s.name)
		return nil
	} else if err != nil {
		logger.Errorf("service %q failed to start: %v", s.name, err)
		return errors.Trace(err)
	}
	logger.Debugf("service %q successfully started", s.name)
	return nil
}

func (s *Service) start() error {
	running, err := s.Running()
	if err != nil {
		return errors.Trace(err)
	}
	if running {
		return errors.AlreadyExistsf("running service %s", s.name)
	}

	conn, err := s.newConn()
	if err != nil {
		return errors.Trace(err)
	}
	defer conn.Close()

	statusCh := newChan()
	if _, err := conn.StartUnit(s.unitName, "fail", statusCh); err != nil {
		return errors.Annotatef(err, "dbus start request failed for %q", s.name)
	}
	return errors.Trace(s.wait("start", statusCh))
}

// Stop implements service.Service.
func (s *Service) Stop() error {
	err := s.stop()
	if errors.IsNotFound(err) {
		logger.Debugf("service %q not running", s.name)
		return nil
	} else if err != nil {
		logger.Errorf("service %q failed to stop: %v", s.name, err)
		return errors.Trace(err)
	}
	logger.Debugf("service %q successfully stopped", s.name)
	return nil
}

func (s *Service) stop() error {
	running, err := s.Running()
	if err != nil {
		return errors.Trace(err)
	}
	if !running {
		return errors.NotFoundf("running service %s", s.name)
	}

	conn, err := s.newConn()
	if err != nil {
		return errors.Trace(err)
	}
	defer conn.Close()

	statusCh := newChan()
	if _, err := conn.StopUnit(s.unitName, "fail", statusCh); err != nil {
		return errors.Annotatef(err, "dbus stop request failed for %q", s.name)
	}
	return errors.Trace(s.wait("stop", statusCh))
}

func (s *Service) wait(op string, statusCh chan string) error {
	status := <-statusCh
	if status != "done" {
		return errors.Errorf("failed to %s service %q (API status %q)", op, s.name, status)
	}
	return nil
}
