// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package service controls the OS-level services that make up a unit's
// payload. The Controller applies a pause or resume action to a batch of
// services, accumulating per-service failures instead of aborting: a
// service that cannot be transitioned is reported, not fatal, and does
// not roll back services that already transitioned.
package service

import (
	"time"

	"github.com/juju/clock"
	"github.com/juju/collections/set"
	"github.com/juju/errors"
	"github.com/juju/loggo"
	"github.com/juju/retry"
)

var logger = loggo.GetLogger("charmbase.service")

// Action identifies a payload service transition.
type Action string

const (
	// Pause stops the payload services.
	Pause Action = "pause"

	// Resume starts the payload services.
	Resume Action = "resume"
)

// Service provides visibility into and control over an OS-level service.
type Service interface {
	Name() string
	Start() error
	Stop() error
	Running() (bool, error)
}

// Factory returns the Service for the named OS-level service.
type Factory func(name string) (Service, error)

const (
	retryAttempts = 3
	retryDelay    = 100 * time.Millisecond
)

// Controller pauses and resumes the payload services of a unit.
type Controller struct {
	factory Factory
	clock   clock.Clock
}

// NewController returns a Controller that resolves service names through
// the supplied factory.
func NewController(factory Factory, clk clock.Clock) *Controller {
	return &Controller{factory: factory, clock: clk}
}

// Apply issues the action against each of the named services in order.
// It returns the names of the services that transitioned and of those
// that could not be transitioned. It never returns an error for an
// individual service failure.
func (c *Controller) Apply(action Action, services []string) (succeeded, failed set.Strings) {
	succeeded = set.NewStrings()
	failed = set.NewStrings()
	for _, name := range services {
		if err := c.apply(action, name); err != nil {
			logger.Errorf("cannot %s service %q: %v", action, name, err)
			failed.Add(name)
			continue
		}
		succeeded.Add(name)
	}
	return succeeded, failed
}

func (c *Controller) apply(action Action, name string) error {
	svc, err := c.factory(name)
	if err != nil {
		return errors.Annotatef(err, "resolving service %q", name)
	}
	return retry.Call(retry.CallArgs{
		Func: func() error {
			switch action {
			case Pause:
				return svc.Stop()
			case Resume:
				return svc.Start()
			default:
				return errors.NotValidf("service action %q", action)
			}
		},
		IsFatalError: func(err error) bool {
			return errors.IsNotValid(err)
		},
		NotifyFunc: func(err error, attempt int) {
			logger.Debugf("failed to %s %q (attempt %d): %v", action, name, attempt, err)
		},
		Attempts: retryAttempts,
		Delay:    retryDelay,
		Clock:    c.clock,
	})
}
