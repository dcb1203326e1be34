// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package checks composes the fixed-priority status chain that decides a
// unit's externally visible status. Built-in lifecycle checks always run
// first, in a fixed order; custom checks registered by specialisations
// run after them, in registration order. The first check with an opinion
// wins and the rest are not consulted.
package checks

import (
	"fmt"
	"strings"

	"github.com/juju/errors"

	"github.com/juju/charmbase/core/status"
	"github.com/juju/charmbase/core/unitstate"
)

// Check reports an opinion on unit health. Returning Active means "no
// opinion" and evaluation moves on to the next check. A check must
// convert its own domain failures into a verdict (typically Blocked with
// a descriptive message) and must not mutate lifecycle state.
type Check func() status.StatusInfo

// RelationScope reports on the membership of a unit's relations.
type RelationScope interface {
	// Joined reports whether the named relation has at least one
	// remote unit.
	Joined(relation string) (bool, error)
}

// Chain evaluates the built-in lifecycle checks followed by registered
// custom checks. A Chain is not safe for concurrent use; the event
// driver guarantees serial evaluation.
type Chain struct {
	required []string
	scope    RelationScope
	checks   []Check
}

// NewChain returns a Chain requiring the named relations, resolved
// through scope. The declared relation order is preserved in the
// missing-relations message.
func NewChain(required []string, scope RelationScope) *Chain {
	return &Chain{required: required, scope: scope}
}

// Register appends custom checks to the chain. Framework layers register
// before subclass layers, which register before plugin layers, so the
// registration order is the evaluation order.
func (c *Chain) Register(checks ...Check) {
	c.checks = append(c.checks, checks...)
}

// Evaluate resolves the chain against st and returns a single verdict.
// Given identical state and an identical check list the verdict is
// always identical.
func (c *Chain) Evaluate(st unitstate.State) (status.StatusInfo, error) {
	if st.SeriesUpgrade {
		return status.StatusInfo{
			Status:  status.Blocked,
			Message: status.MessageSeriesUpgrade,
		}, nil
	}
	if st.Paused {
		return status.StatusInfo{
			Status:  status.Maintenance,
			Message: status.MessagePaused,
		}, nil
	}
	missing, err := c.missingRelations()
	if err != nil {
		return status.StatusInfo{}, errors.Trace(err)
	}
	if len(missing) > 0 {
		return status.StatusInfo{
			Status:  status.Blocked,
			Message: fmt.Sprintf(status.MessageMissingRelation, strings.Join(missing, ", ")),
		}, nil
	}
	if !st.Started {
		return status.StatusInfo{
			Status:  status.Waiting,
			Message: status.MessageConfigInFlight,
		}, nil
	}
	for _, check := range c.checks {
		if info := check(); info.Status != status.Active {
			return info, nil
		}
	}
	return status.StatusInfo{
		Status:  status.Active,
		Message: status.MessageUnitReady,
	}, nil
}

func (c *Chain) missingRelations() ([]string, error) {
	var missing []string
	for _, relation := range c.required {
		joined, err := c.scope.Joined(relation)
		if err != nil {
			return nil, errors.Annotatef(err, "inspecting relation %q", relation)
		}
		if !joined {
			missing = append(missing, relation)
		}
	}
	return missing, nil
}
