// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// unitd dispatches a single lifecycle event against the local unit. The
// hosting runtime invokes it once per event (typically via hook
// symlinks), so a machine-wide lock serialises overlapping invocations.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/juju/clock"
	"github.com/juju/cmd/v3"
	"github.com/juju/errors"
	"github.com/juju/gnuflag"
	"github.com/juju/loggo"
	"github.com/juju/mutex/v2"

	"github.com/juju/charmbase/core/manifest"
	"github.com/juju/charmbase/core/unitstate"
	"github.com/juju/charmbase/internal/hooktool"
	"github.com/juju/charmbase/internal/packaging"
	"github.com/juju/charmbase/internal/reconciler"
	"github.com/juju/charmbase/service"
	"github.com/juju/charmbase/service/systemd"
)

var logger = loggo.GetLogger("charmbase.cmd.unitd")

const (
	defaultDataDir = "/var/lib/unitd"

	// hookLockName serialises event processing across unitd
	// processes on the same machine.
	hookLockName = "unitd-hook"
)

func main() {
	ctx, err := cmd.DefaultContext()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}
	if config := os.Getenv("UNITD_LOGGING_CONFIG"); config != "" {
		if err := loggo.ConfigureLoggers(config); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(2)
		}
	}
	os.Exit(cmd.Main(&dispatchCommand{}, ctx, os.Args[1:]))
}

type dispatchCommand struct {
	cmd.CommandBase

	dataDir      string
	manifestPath string
	event        reconciler.Kind
}

// Info implements cmd.Command.
func (c *dispatchCommand) Info() *cmd.Info {
	doc := `
unitd applies one lifecycle event to the unit on this machine: it runs
the transition the event maps to (if any), re-evaluates the status check
chain and publishes the verdict through the status-set hook tool.

Examples:
    unitd install
    unitd update-status
    unitd --data-dir /srv/unit pause
`
	return &cmd.Info{
		Name:    "unitd",
		Args:    "<event>",
		Purpose: "dispatch a unit lifecycle event",
		Doc:     strings.TrimSpace(doc),
	}
}

// SetFlags implements cmd.Command.
func (c *dispatchCommand) SetFlags(f *gnuflag.FlagSet) {
	f.StringVar(&c.dataDir, "data-dir", defaultDataDir,
		"directory holding the unit state file")
	f.StringVar(&c.manifestPath, "manifest", "",
		"path to the unit manifest (default <data-dir>/manifest.yaml)")
}

// Init implements cmd.Command.
func (c *dispatchCommand) Init(args []string) error {
	if len(args) == 0 {
		return errors.New("missing event name")
	}
	c.event = reconciler.Kind(args[0])
	if !c.event.Valid() {
		return errors.NotValidf("event %q", args[0])
	}
	if c.manifestPath == "" {
		c.manifestPath = filepath.Join(c.dataDir, "manifest.yaml")
	}
	return cmd.CheckEmpty(args[1:])
}

// Run implements cmd.Command.
func (c *dispatchCommand) Run(ctx *cmd.Context) error {
	m, err := manifest.ReadManifest(c.manifestPath)
	if err != nil {
		return errors.Trace(err)
	}

	releaser, err := mutex.Acquire(mutex.Spec{
		Name:  hookLockName,
		Clock: clock.WallClock,
		Delay: 250 * time.Millisecond,
	})
	if err != nil {
		return errors.Annotate(err, "acquiring hook execution lock")
	}
	defer releaser.Release()

	r, err := reconciler.NewReconciler(reconciler.Config{
		Manifest:  m,
		State:     unitstate.NewStateFile(filepath.Join(c.dataDir, "state.yaml")),
		Services:  service.NewController(systemd.Factory, clock.WallClock),
		Installer: packaging.NewAptInstaller(),
		Relations: hooktool.NewRelationScope(nil),
		Status:    hooktool.NewStatusSetter(nil),
		Clock:     clock.WallClock,
	})
	if err != nil {
		return errors.Trace(err)
	}

	result, err := r.HandleEvent(c.event)
	if err != nil {
		return errors.Trace(err)
	}
	if result.Failed != nil && !result.Failed.IsEmpty() {
		// Surfaced on the action result channel, not the unit status.
		fmt.Fprintf(ctx.Stderr, "failed to %s services: %s\n",
			c.event, strings.Join(result.Failed.SortedValues(), ", "))
		return cmd.ErrSilent
	}
	if result.Status != nil {
		logger.Infof("published %q status", result.Status.Status)
	}
	return nil
}
