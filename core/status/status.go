// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package status

import (
	"time"
)

// Status represents the externally visible condition of a unit's workload.
//
// Only the workload statuses are modelled here; the hosting runtime owns
// agent-level statuses and they never pass through this package.
type Status string

// String returns a string representation of the Status.
func (s Status) String() string {
	return string(s)
}

const (
	// Maintenance is set when:
	// The unit is not yet providing services, but is actively doing stuff
	// in preparation for providing those services.
	// This is a "spinning" state, not an error state.
	Maintenance Status = "maintenance"

	// Waiting is set when:
	// The unit is unable to progress to an active state because its
	// configuration has not yet completed.
	Waiting Status = "waiting"

	// Blocked is set when:
	// The unit needs manual intervention to get back to the Running state.
	Blocked Status = "blocked"

	// Active is set when:
	// The unit believes it is correctly offering all the services it has
	// been asked to offer.
	Active Status = "active"
)

// Fixed status messages published by the lifecycle check chain.
const (
	MessageSeriesUpgrade = "Ready for do-release-upgrade and reboot. " +
		"Set complete when finished."

	MessagePaused          = "Paused. Use 'resume' action to resume normal service."
	MessageConfigInFlight  = "Charm configuration in progress"
	MessageUnitReady       = "Unit is ready"
	MessageMissingRelation = "Missing relations: %s"
)

// StatusInfo holds a Status and associated information.
type StatusInfo struct {
	Status  Status
	Message string
	Since   *time.Time
}

// StatusSetter represents a type whose status can be set.
type StatusSetter interface {
	SetStatus(StatusInfo) error
}

// StatusGetter represents a type whose status can be read.
type StatusGetter interface {
	Status() (StatusInfo, error)
}

// severity encodes the relative ordering of workload statuses. Only the
// ordering matters; the numbers themselves are never exposed.
var severity = map[Status]int{
	Active:      0,
	Waiting:     1,
	Maintenance: 2,
	Blocked:     3,
}

// KnownWorkloadStatus returns true if status has a known value for units.
func (s Status) KnownWorkloadStatus() bool {
	_, ok := severity[s]
	return ok
}

// WorseThan reports whether s is more severe than other.
func (s Status) WorseThan(other Status) bool {
	return severity[s] > severity[other]
}
