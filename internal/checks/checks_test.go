// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package checks_test

import (
	"github.com/juju/errors"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/juju/charmbase/core/status"
	"github.com/juju/charmbase/core/unitstate"
	"github.com/juju/charmbase/internal/checks"
)

type ChainSuite struct {
	testing.IsolationSuite

	scope *stubScope
}

var _ = gc.Suite(&ChainSuite{})

func (s *ChainSuite) SetUpTest(c *gc.C) {
	s.IsolationSuite.SetUpTest(c)
	s.scope = &stubScope{joined: map[string]bool{}}
}

func (s *ChainSuite) newChain(required ...string) *checks.Chain {
	return checks.NewChain(required, s.scope)
}

// started is the steady state everything is measured against: relations
// joined, install complete, no administrative flags.
var started = unitstate.State{Started: true}

func (s *ChainSuite) TestSeriesUpgradeTrumpsEverything(c *gc.C) {
	chain := s.newChain("shared-db")
	chain.Register(func() status.StatusInfo {
		return status.StatusInfo{Status: status.Blocked, Message: "never seen"}
	})

	for _, st := range []unitstate.State{
		{SeriesUpgrade: true},
		{SeriesUpgrade: true, Paused: true},
		{SeriesUpgrade: true, Paused: true, Started: true},
	} {
		info, err := chain.Evaluate(st)
		c.Assert(err, jc.ErrorIsNil)
		c.Check(info.Status, gc.Equals, status.Blocked)
		c.Check(info.Message, gc.Equals,
			"Ready for do-release-upgrade and reboot. Set complete when finished.")
	}
}

func (s *ChainSuite) TestPaused(c *gc.C) {
	chain := s.newChain("shared-db")
	info, err := chain.Evaluate(unitstate.State{Paused: true, Started: true})
	c.Assert(err, jc.ErrorIsNil)
	c.Check(info.Status, gc.Equals, status.Maintenance)
	c.Check(info.Message, gc.Equals,
		"Paused. Use 'resume' action to resume normal service.")
}

func (s *ChainSuite) TestMissingRelations(c *gc.C) {
	s.scope.joined["amqp"] = true
	chain := s.newChain("shared-db", "amqp", "identity-service")

	info, err := chain.Evaluate(started)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(info.Status, gc.Equals, status.Blocked)
	// Missing relations are listed in declared order.
	c.Check(info.Message, gc.Equals, "Missing relations: shared-db, identity-service")
}

func (s *ChainSuite) TestSingleMissingRelation(c *gc.C) {
	chain := s.newChain("shared-db")
	info, err := chain.Evaluate(started)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(info.Status, gc.Equals, status.Blocked)
	c.Check(info.Message, gc.Equals, "Missing relations: shared-db")
}

func (s *ChainSuite) TestRelationScopeError(c *gc.C) {
	s.scope.err = errors.New("hook tool exploded")
	chain := s.newChain("shared-db")
	_, err := chain.Evaluate(started)
	c.Assert(err, gc.ErrorMatches, `inspecting relation "shared-db": hook tool exploded`)
}

func (s *ChainSuite) TestNotStarted(c *gc.C) {
	s.scope.joined["shared-db"] = true
	chain := s.newChain("shared-db")
	info, err := chain.Evaluate(unitstate.State{})
	c.Assert(err, jc.ErrorIsNil)
	c.Check(info.Status, gc.Equals, status.Waiting)
	c.Check(info.Message, gc.Equals, "Charm configuration in progress")
}

func (s *ChainSuite) TestDefaultReady(c *gc.C) {
	s.scope.joined["shared-db"] = true
	chain := s.newChain("shared-db")
	info, err := chain.Evaluate(started)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(info.Status, gc.Equals, status.Active)
	c.Check(info.Message, gc.Equals, "Unit is ready")
}

func (s *ChainSuite) TestCustomCheckPrecedence(c *gc.C) {
	s.scope.joined["shared-db"] = true
	chain := s.newChain("shared-db")
	chain.Register(func() status.StatusInfo {
		return status.StatusInfo{Status: status.Blocked, Message: "Custom check failed"}
	})

	info, err := chain.Evaluate(started)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(info.Status, gc.Equals, status.Blocked)
	c.Check(info.Message, gc.Equals, "Custom check failed")
}

func (s *ChainSuite) TestCustomChecksInRegistrationOrder(c *gc.C) {
	chain := s.newChain()

	var order []string
	noOpinion := func(name string) checks.Check {
		return func() status.StatusInfo {
			order = append(order, name)
			return status.StatusInfo{Status: status.Active}
		}
	}
	chain.Register(noOpinion("first"), noOpinion("second"))
	chain.Register(func() status.StatusInfo {
		order = append(order, "third")
		return status.StatusInfo{Status: status.Maintenance, Message: "busy"}
	})
	chain.Register(noOpinion("never"))

	info, err := chain.Evaluate(started)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(info.Status, gc.Equals, status.Maintenance)
	c.Check(info.Message, gc.Equals, "busy")
	c.Check(order, gc.DeepEquals, []string{"first", "second", "third"})
}

func (s *ChainSuite) TestBuiltInChecksBeforeCustom(c *gc.C) {
	chain := s.newChain()
	called := false
	chain.Register(func() status.StatusInfo {
		called = true
		return status.StatusInfo{Status: status.Active}
	})

	info, err := chain.Evaluate(unitstate.State{Paused: true})
	c.Assert(err, jc.ErrorIsNil)
	c.Check(info.Status, gc.Equals, status.Maintenance)
	c.Check(called, jc.IsFalse)
}

func (s *ChainSuite) TestDeterministic(c *gc.C) {
	s.scope.joined["shared-db"] = true
	chain := s.newChain("shared-db")
	first, err := chain.Evaluate(started)
	c.Assert(err, jc.ErrorIsNil)
	for i := 0; i < 5; i++ {
		again, err := chain.Evaluate(started)
		c.Assert(err, jc.ErrorIsNil)
		c.Check(again, gc.DeepEquals, first)
	}
}

type stubScope struct {
	joined map[string]bool
	err    error
}

func (s *stubScope) Joined(relation string) (bool, error) {
	return s.joined[relation], s.err
}
