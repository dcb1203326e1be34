// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package reconciler drives a unit's lifecycle transitions and, after
// every event, reduces the lifecycle flags and the injected check chain
// to the single status the unit publishes. Events are processed one at
// a time; see Worker for the serialising event loop.
package reconciler

import (
	"github.com/juju/clock"
	"github.com/juju/collections/set"
	"github.com/juju/errors"
	"github.com/juju/loggo"

	"github.com/juju/charmbase/core/manifest"
	"github.com/juju/charmbase/core/status"
	"github.com/juju/charmbase/core/unitstate"
	"github.com/juju/charmbase/internal/checks"
	"github.com/juju/charmbase/service"
)

var logger = loggo.GetLogger("charmbase.reconciler")

// Kind names an inbound lifecycle event.
type Kind string

const (
	// Install requests package installation and marks the unit started.
	Install Kind = "install"

	// UpdateStatus re-evaluates and publishes the unit status.
	UpdateStatus Kind = "update-status"

	// PreSeriesUpgrade opens the OS release upgrade window, pausing
	// the payload first.
	PreSeriesUpgrade Kind = "pre-series-upgrade"

	// PostSeriesUpgrade closes the upgrade window. Services are not
	// resumed automatically; the operator runs the resume action once
	// any post-upgrade steps owned by the concrete unit are done.
	PostSeriesUpgrade Kind = "post-series-upgrade"

	// PauseAction administratively pauses the payload.
	PauseAction Kind = "pause"

	// ResumeAction resumes a paused payload.
	ResumeAction Kind = "resume"
)

// KnownKinds lists every event kind the reconciler dispatches.
var KnownKinds = []Kind{
	Install,
	UpdateStatus,
	PreSeriesUpgrade,
	PostSeriesUpgrade,
	PauseAction,
	ResumeAction,
}

// Valid reports whether k names a dispatchable event.
func (k Kind) Valid() bool {
	for _, known := range KnownKinds {
		if k == known {
			return true
		}
	}
	return false
}

// ServiceController applies a pause or resume action to the payload
// services, reporting which services transitioned and which failed.
type ServiceController interface {
	Apply(action service.Action, services []string) (succeeded, failed set.Strings)
}

// PackageInstaller installs the packages a manifest declares.
type PackageInstaller interface {
	Install(*manifest.Manifest) error
}

// Config holds the dependencies of a Reconciler.
type Config struct {
	Manifest  *manifest.Manifest
	State     unitstate.StateReadWriter
	Services  ServiceController
	Installer PackageInstaller
	Relations checks.RelationScope
	Status    status.StatusSetter
	Clock     clock.Clock
}

// Validate validates the config structure and returns an error on failure.
func (c Config) Validate() error {
	if c.Manifest == nil {
		return errors.New("manifest not provided")
	}
	if c.State == nil {
		return errors.New("state read/writer not provided")
	}
	if c.Services == nil {
		return errors.New("service controller not provided")
	}
	if c.Installer == nil {
		return errors.New("package installer not provided")
	}
	if c.Relations == nil {
		return errors.New("relation scope not provided")
	}
	if c.Status == nil {
		return errors.New("status setter not provided")
	}
	if c.Clock == nil {
		return errors.New("clock not provided")
	}
	return nil
}

// Result reports the outcome of handling a single lifecycle event.
type Result struct {
	// Failed holds the services a pause or resume event could not
	// transition. It is surfaced on the action's own result channel,
	// never through the unit status.
	Failed set.Strings

	// Status holds the published status, when the event published one.
	Status *status.StatusInfo
}

// Reconciler owns a unit's lifecycle state and the check chain that
// computes its status. It is not safe for concurrent use: the hosting
// runtime (or Worker) must deliver events one at a time.
type Reconciler struct {
	config Config
	chain  *checks.Chain
	st     unitstate.State
}

// NewReconciler returns a Reconciler with state loaded from the
// configured store. A missing state file means a fresh unit.
func NewReconciler(config Config) (*Reconciler, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	st, err := config.State.Read()
	if err != nil && errors.Cause(err) != unitstate.ErrNoStateFile {
		return nil, errors.Annotate(err, "loading unit state")
	}
	return &Reconciler{
		config: config,
		chain:  checks.NewChain(config.Manifest.RequiredRelations, config.Relations),
		st:     st,
	}, nil
}

// RegisterCheck appends custom checks to the status chain. Checks must
// all be registered before events are dispatched; the registration
// order (framework, then each specialisation layer) is the evaluation
// order.
func (r *Reconciler) RegisterCheck(cs ...checks.Check) {
	r.chain.Register(cs...)
}

// State returns the current lifecycle flags.
func (r *Reconciler) State() unitstate.State {
	return r.st
}

// HandleEvent applies the transition mapped to kind, if any, then
// publishes the status verdict for events that publish one. Pause and
// resume actions do not publish; their verdict surfaces through the
// next natural update-status.
func (r *Reconciler) HandleEvent(kind Kind) (Result, error) {
	logger.Debugf("handling %q event", kind)
	switch kind {
	case Install:
		if err := r.install(); err != nil {
			return Result{}, errors.Trace(err)
		}
	case UpdateStatus:
	case PreSeriesUpgrade:
		if err := r.beginUpgrade(); err != nil {
			return Result{}, errors.Trace(err)
		}
	case PostSeriesUpgrade:
		if err := r.endUpgrade(); err != nil {
			return Result{}, errors.Trace(err)
		}
	case PauseAction:
		failed, err := r.pause()
		if err != nil {
			return Result{}, errors.Trace(err)
		}
		return Result{Failed: failed}, nil
	case ResumeAction:
		failed, err := r.resume()
		if err != nil {
			return Result{}, errors.Trace(err)
		}
		return Result{Failed: failed}, nil
	default:
		return Result{}, errors.NotValidf("event kind %q", kind)
	}

	info, err := r.publish()
	if err != nil {
		return Result{}, errors.Trace(err)
	}
	return Result{Status: info}, nil
}

// install runs install-time setup exactly once. Repeated install events
// within the unit's life do not re-run the external installer.
func (r *Reconciler) install() error {
	if r.st.Started {
		logger.Debugf("unit already started, skipping package installation")
		return nil
	}
	if err := r.config.Installer.Install(r.config.Manifest); err != nil {
		// Started stays false; the next update-status reports
		// Waiting/Blocked until install is retried.
		return errors.Annotate(err, "installing packages")
	}
	r.st.Started = true
	return errors.Trace(r.save())
}

// pause stops the payload services. The flag is set even on partial
// failure: pause is a best effort administrative request, not a
// transaction, and the failed services are reported to the caller.
func (r *Reconciler) pause() (set.Strings, error) {
	_, failed := r.config.Services.Apply(service.Pause, r.config.Manifest.Services())
	if !failed.IsEmpty() {
		logger.Warningf("failed to pause services: %v", failed.SortedValues())
	}
	r.st.Paused = true
	return failed, errors.Trace(r.save())
}

// resume starts the payload services, clearing the paused flag even on
// partial failure.
func (r *Reconciler) resume() (set.Strings, error) {
	_, failed := r.config.Services.Apply(service.Resume, r.config.Manifest.Services())
	if !failed.IsEmpty() {
		logger.Warningf("failed to resume services: %v", failed.SortedValues())
	}
	r.st.Paused = false
	return failed, errors.Trace(r.save())
}

// beginUpgrade reuses the pause machinery, then opens the upgrade
// window. It is callable while already paused.
func (r *Reconciler) beginUpgrade() error {
	if _, err := r.pause(); err != nil {
		return errors.Trace(err)
	}
	r.st.SeriesUpgrade = true
	return errors.Trace(r.save())
}

// endUpgrade closes the upgrade window and clears the paused flag
// without starting services: resuming after an upgrade may need extra
// steps owned by the concrete unit, so the operator resumes explicitly.
func (r *Reconciler) endUpgrade() error {
	r.st.SeriesUpgrade = false
	r.st.Paused = false
	return errors.Trace(r.save())
}

func (r *Reconciler) save() error {
	return errors.Annotate(r.config.State.Write(r.st), "persisting unit state")
}

// publish evaluates the check chain and pushes the verdict to the
// runtime. This is the single point where internal state becomes
// externally observable.
func (r *Reconciler) publish() (*status.StatusInfo, error) {
	info, err := r.chain.Evaluate(r.st)
	if err != nil {
		return nil, errors.Annotate(err, "evaluating status checks")
	}
	now := r.config.Clock.Now()
	info.Since = &now
	if err := r.config.Status.SetStatus(info); err != nil {
		return nil, errors.Annotate(err, "publishing status")
	}
	logger.Infof("unit status set to %q: %s", info.Status, info.Message)
	return &info, nil
}
