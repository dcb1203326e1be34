// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package reconciler

import (
	"github.com/juju/errors"
	"github.com/juju/worker/v4/catacomb"
)

// EventHandler processes one lifecycle event to completion.
type EventHandler interface {
	HandleEvent(Kind) (Result, error)
}

// WorkerConfig holds the dependencies of the event worker.
type WorkerConfig struct {
	Handler EventHandler
	Events  <-chan Kind
}

// Validate validates the config structure and returns an error on failure.
func (c WorkerConfig) Validate() error {
	if c.Handler == nil {
		return errors.New("event handler not provided")
	}
	if c.Events == nil {
		return errors.New("event channel not provided")
	}
	return nil
}

// Worker consumes lifecycle events from a channel and feeds them to the
// handler strictly one at a time, preserving the single verdict per
// event guarantee even when the producer is concurrent.
type Worker struct {
	catacomb catacomb.Catacomb
	config   WorkerConfig
}

// NewWorker returns a started event worker.
func NewWorker(config WorkerConfig) (*Worker, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	w := &Worker{config: config}
	if err := catacomb.Invoke(catacomb.Plan{
		Name: "lifecycle-reconciler",
		Site: &w.catacomb,
		Work: w.loop,
	}); err != nil {
		return nil, errors.Trace(err)
	}
	return w, nil
}

// Kill implements worker.Worker.
func (w *Worker) Kill() {
	w.catacomb.Kill(nil)
}

// Wait implements worker.Worker.
func (w *Worker) Wait() error {
	return w.catacomb.Wait()
}

func (w *Worker) loop() error {
	for {
		select {
		case <-w.catacomb.Dying():
			return w.catacomb.ErrDying()
		case kind, ok := <-w.config.Events:
			if !ok {
				return errors.New("event channel closed unexpectedly")
			}
			result, err := w.config.Handler.HandleEvent(kind)
			if err != nil {
				return errors.Annotatef(err, "processing %q event", kind)
			}
			if result.Failed != nil && !result.Failed.IsEmpty() {
				logger.Warningf("%q event left services untransitioned: %v",
					kind, result.Failed.SortedValues())
			}
		}
	}
}
