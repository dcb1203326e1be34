// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package hooktool adapts the hook tools the hosting runtime places on
// a unit's PATH (status-set, relation-ids, relation-list) to the
// interfaces the reconciler consumes. Everything here shells out; the
// runtime owns the wire format behind the tools.
package hooktool

import (
	"encoding/json"
	"fmt"

	"github.com/juju/errors"
	"github.com/juju/loggo"
	"github.com/juju/utils/v4"
	"github.com/juju/utils/v4/exec"

	"github.com/juju/charmbase/core/status"
)

var logger = loggo.GetLogger("charmbase.hooktool")

// Runner executes a shell command line and returns its response. The
// production implementation runs it through the local shell.
type Runner func(commands string) (*exec.ExecResponse, error)

// DefaultRunner runs hook tools through the local shell.
func DefaultRunner(commands string) (*exec.ExecResponse, error) {
	return exec.RunCommands(exec.RunParams{Commands: commands})
}

func run(runner Runner, commands string) ([]byte, error) {
	resp, err := runner(commands)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if resp.Code != 0 {
		return nil, errors.Errorf("%q failed (code %d): %s",
			commands, resp.Code, string(resp.Stderr))
	}
	return resp.Stdout, nil
}

// StatusSetter publishes unit status through the status-set hook tool.
type StatusSetter struct {
	runner Runner
}

// NewStatusSetter returns a StatusSetter backed by runner. A nil runner
// means the local shell.
func NewStatusSetter(runner Runner) *StatusSetter {
	if runner == nil {
		runner = DefaultRunner
	}
	return &StatusSetter{runner: runner}
}

// SetStatus implements status.StatusSetter.
func (s *StatusSetter) SetStatus(info status.StatusInfo) error {
	if !info.Status.KnownWorkloadStatus() {
		return errors.NotValidf("workload status %q", info.Status)
	}
	commands := fmt.Sprintf("status-set %s %s", info.Status, utils.ShQuote(info.Message))
	if _, err := run(s.runner, commands); err != nil {
		return errors.Annotate(err, "setting unit status")
	}
	logger.Debugf("status-set %s", info.Status)
	return nil
}

// RelationScope resolves relation membership through the relation-ids
// and relation-list hook tools. It satisfies checks.RelationScope.
type RelationScope struct {
	runner Runner
}

// NewRelationScope returns a RelationScope backed by runner. A nil
// runner means the local shell.
func NewRelationScope(runner Runner) *RelationScope {
	if runner == nil {
		runner = DefaultRunner
	}
	return &RelationScope{runner: runner}
}

// Joined reports whether the named relation has at least one remote
// unit on any of its relation ids.
func (s *RelationScope) Joined(relation string) (bool, error) {
	out, err := run(s.runner, fmt.Sprintf(
		"relation-ids --format json %s", utils.ShQuote(relation)))
	if err != nil {
		return false, errors.Annotatef(err, "listing ids of relation %q", relation)
	}
	var ids []string
	if err := json.Unmarshal(out, &ids); err != nil {
		return false, errors.Annotatef(err, "parsing ids of relation %q", relation)
	}
	for _, id := range ids {
		out, err := run(s.runner, fmt.Sprintf(
			"relation-list --format json -r %s", utils.ShQuote(id)))
		if err != nil {
			return false, errors.Annotatef(err, "listing members of relation %q", id)
		}
		var units []string
		if err := json.Unmarshal(out, &units); err != nil {
			return false, errors.Annotatef(err, "parsing members of relation %q", id)
		}
		if len(units) > 0 {
			return true, nil
		}
	}
	return false, nil
}
