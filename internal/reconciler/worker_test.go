// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package reconciler_test

import (
	"time"

	"github.com/juju/collections/set"
	"github.com/juju/errors"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	"github.com/juju/worker/v4/workertest"
	gc "gopkg.in/check.v1"

	"github.com/juju/charmbase/internal/reconciler"
)

type WorkerSuite struct {
	testing.IsolationSuite

	events  chan reconciler.Kind
	handler *recordingHandler
}

var _ = gc.Suite(&WorkerSuite{})

func (s *WorkerSuite) SetUpTest(c *gc.C) {
	s.IsolationSuite.SetUpTest(c)
	s.events = make(chan reconciler.Kind)
	s.handler = &recordingHandler{
		handled: make(chan reconciler.Kind, 10),
	}
}

func (s *WorkerSuite) TestConfigValidation(c *gc.C) {
	_, err := reconciler.NewWorker(reconciler.WorkerConfig{Events: s.events})
	c.Check(err, gc.ErrorMatches, "event handler not provided")

	_, err = reconciler.NewWorker(reconciler.WorkerConfig{Handler: s.handler})
	c.Check(err, gc.ErrorMatches, "event channel not provided")
}

func (s *WorkerSuite) TestCleanKill(c *gc.C) {
	w, err := reconciler.NewWorker(reconciler.WorkerConfig{
		Handler: s.handler,
		Events:  s.events,
	})
	c.Assert(err, jc.ErrorIsNil)
	workertest.CleanKill(c, w)
}

func (s *WorkerSuite) TestEventsDeliveredInOrder(c *gc.C) {
	w, err := reconciler.NewWorker(reconciler.WorkerConfig{
		Handler: s.handler,
		Events:  s.events,
	})
	c.Assert(err, jc.ErrorIsNil)
	defer workertest.CleanKill(c, w)

	for _, kind := range []reconciler.Kind{
		reconciler.Install,
		reconciler.UpdateStatus,
		reconciler.PauseAction,
	} {
		select {
		case s.events <- kind:
		case <-time.After(testing.LongWait):
			c.Fatalf("timed out sending %q event", kind)
		}
	}

	for _, expect := range []reconciler.Kind{
		reconciler.Install,
		reconciler.UpdateStatus,
		reconciler.PauseAction,
	} {
		select {
		case got := <-s.handler.handled:
			c.Check(got, gc.Equals, expect)
		case <-time.After(testing.LongWait):
			c.Fatalf("timed out waiting for %q event", expect)
		}
	}
}

func (s *WorkerSuite) TestHandlerErrorFatal(c *gc.C) {
	s.handler.err = errors.New("dpkg interrupted")
	w, err := reconciler.NewWorker(reconciler.WorkerConfig{
		Handler: s.handler,
		Events:  s.events,
	})
	c.Assert(err, jc.ErrorIsNil)
	defer workertest.DirtyKill(c, w)

	select {
	case s.events <- reconciler.Install:
	case <-time.After(testing.LongWait):
		c.Fatalf("timed out sending event")
	}

	err = workertest.CheckKilled(c, w)
	c.Assert(err, gc.ErrorMatches, `processing "install" event: dpkg interrupted`)
}

func (s *WorkerSuite) TestClosedChannelFatal(c *gc.C) {
	w, err := reconciler.NewWorker(reconciler.WorkerConfig{
		Handler: s.handler,
		Events:  s.events,
	})
	c.Assert(err, jc.ErrorIsNil)
	defer workertest.DirtyKill(c, w)

	close(s.events)
	err = workertest.CheckKilled(c, w)
	c.Assert(err, gc.ErrorMatches, "event channel closed unexpectedly")
}

type recordingHandler struct {
	err     error
	handled chan reconciler.Kind
}

func (h *recordingHandler) HandleEvent(kind reconciler.Kind) (reconciler.Result, error) {
	if h.err != nil {
		return reconciler.Result{}, h.err
	}
	h.handled <- kind
	return reconciler.Result{Failed: set.NewStrings()}, nil
}
