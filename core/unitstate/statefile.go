// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package unitstate

import (
	"os"

	"github.com/juju/errors"
	"github.com/juju/utils/v4"
	"gopkg.in/yaml.v2"
)

// ErrNoStateFile is returned by StateFile.Read when no state has been
// persisted yet. Callers treat it as a fresh unit with zero state.
var ErrNoStateFile = errors.New("unit state file does not exist")

// StateFile holds the disk state for a unit.
type StateFile struct {
	path string
}

// NewStateFile returns a new StateFile using path.
func NewStateFile(path string) *StateFile {
	return &StateFile{path: path}
}

// Read reads a State from the file. If the file does not exist it
// returns ErrNoStateFile.
func (f *StateFile) Read() (State, error) {
	var st State
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return st, ErrNoStateFile
		}
		return st, errors.Trace(err)
	}
	if err := yaml.Unmarshal(data, &st); err != nil {
		return st, errors.Annotatef(err, "cannot read unit state at %q", f.path)
	}
	return st, nil
}

// Write stores the supplied state to the file.
func (f *StateFile) Write(st State) error {
	data, err := yaml.Marshal(st)
	if err != nil {
		return errors.Trace(err)
	}
	if err := utils.AtomicWriteFile(f.path, data, 0644); err != nil {
		return errors.Annotatef(err, "cannot write unit state to %q", f.path)
	}
	return nil
}
