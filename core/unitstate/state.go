// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package unitstate records the durable lifecycle flags of a unit. The
// flags survive process restarts; they are created once at unit genesis
// with all values false and are mutated only by lifecycle transitions.
package unitstate

// State defines the local persistent lifecycle state of a unit.
type State struct {
	// Started indicates whether install-time setup has completed
	// successfully. It is never reset except by a fresh unit.
	Started bool `yaml:"started"`

	// Paused indicates whether the payload is administratively paused.
	Paused bool `yaml:"paused"`

	// SeriesUpgrade indicates whether an OS release upgrade window is
	// open. While it is set the payload is expected to be paused too.
	SeriesUpgrade bool `yaml:"series-upgrade"`
}

// StateReadWriter reads and persists unit lifecycle state. The disk
// backed implementation is StateFile; tests substitute their own.
type StateReadWriter interface {
	Read() (State, error)
	Write(State) error
}
