// SPDX-License-Identifier: AGPL-3.0-or-later

/*

Stagecraft - Stagecraft is a Go-based CLI that orchestrates local-first development and scalable single-host to multi-host deployments for multi-service applications powered by Docker Compose.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

// Package events implements the optional Event Sink (§6, §9): a bounded
// channel carrying DomainEvents to handlers running outside the engine's
// transaction. Delivery is best-effort and at-least-once without ordering
// guarantees across executions; a full channel drops the event rather than
// blocking the engine operation that produced it.
package events

import (
	"workflowforge/pkg/logging"
	"workflowforge/pkg/value"
)

// Type classifies a DomainEvent.
type Type string

const (
	ExecutionStarted   Type = "ExecutionStarted"
	StepCompleted      Type = "StepCompleted"
	ExecutionCompleted Type = "ExecutionCompleted"
	DecisionMade       Type = "DecisionMade"
)

// DomainEvent is one event pushed to the sink.
type DomainEvent struct {
	ID        string
	Type      Type
	Timestamp int64 // unix seconds, stamped by the caller
	Payload   value.Map
}

// Handler processes a DomainEvent. Handlers must be idempotent since
// delivery is at-least-once.
type Handler func(DomainEvent)

// Sink is a bounded, best-effort dispatcher. The event bus is constructed
// once at process startup and passed explicitly to the engine; it holds no
// package-level state (§9 "avoid hidden module-scoped state").
type Sink struct {
	queue    chan DomainEvent
	handlers []Handler
	log      logging.Logger
	done     chan struct{}
}

// NewSink builds a Sink with the given channel capacity and starts its
// single dispatch goroutine. Callers must call Close to stop it.
func NewSink(capacity int, log logging.Logger, handlers ...Handler) *Sink {
	if log == nil {
		log = logging.NewLogger(false)
	}
	s := &Sink{
		queue:    make(chan DomainEvent, capacity),
		handlers: handlers,
		log:      log,
		done:     make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *Sink) run() {
	for ev := range s.queue {
		for _, h := range s.handlers {
			func(h Handler, ev DomainEvent) {
				defer func() {
					if r := recover(); r != nil {
						s.log.Error("event handler panicked", logging.NewField("type", string(ev.Type)), logging.NewField("recover", r))
					}
				}()
				h(ev)
			}(h, ev)
		}
	}
	close(s.done)
}

// Publish enqueues ev for delivery. If the queue is full, the event is
// dropped and logged rather than blocking the caller's transaction.
func (s *Sink) Publish(ev DomainEvent) {
	select {
	case s.queue <- ev:
	default:
		s.log.Warn("event sink queue full, dropping event", logging.NewField("type", string(ev.Type)), logging.NewField("id", ev.ID))
	}
}

// Close stops accepting new events and waits for the dispatch goroutine to
// drain the queue.
func (s *Sink) Close() {
	close(s.queue)
	<-s.done
}
