// Package engine is the core boundary the host talks to. One Invoke call is
// one run: compile fresh, surface filtered diagnostics, stream the sandboxed
// execution, and normalize every failure class into a single Failure event.
package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"codecell/compiler"
	"codecell/sandbox"
)

// EventKind tags a host-facing event.
type EventKind int

const (
	// EventDiagnostics delivers the filtered compile diagnostics, once,
	// before execution output.
	EventDiagnostics EventKind = iota
	// EventOutput delivers one captured emission.
	EventOutput
	// EventFailure is terminal: compiler unavailable, runtime fault,
	// timeout, or transport fault, already normalized to a message.
	EventFailure
	// EventSuccess is terminal: the run completed cleanly.
	EventSuccess
)

func (k EventKind) String() string {
	switch k {
	case EventDiagnostics:
		return "diagnostics"
	case EventOutput:
		return "output"
	case EventFailure:
		return "failure"
	case EventSuccess:
		return "success"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event is one element of the stream a run produces.
type Event struct {
	Kind        EventKind
	Diagnostics []compiler.Diagnostic // EventDiagnostics
	Data        any                   // EventOutput
	Message     string                // EventFailure
}

// Engine wires the compiler, the diagnostic filter and the isolation broker
// together. Safe for concurrent Invoke calls; nothing is shared between
// runs beyond the process-wide compiler and locator memos.
type Engine struct {
	broker *sandbox.Broker
	log    *zap.Logger
}

// Option configures an Engine.
type Option func(*settings)

type settings struct {
	deadline time.Duration
	log      *zap.Logger
}

// WithDeadline sets the per-run execution deadline.
func WithDeadline(d time.Duration) Option {
	return func(s *settings) { s.deadline = d }
}

// WithLogger sets the engine's logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *settings) {
		if log != nil {
			s.log = log
		}
	}
}

// New creates an Engine.
func New(opts ...Option) *Engine {
	s := settings{log: zap.NewNop()}
	for _, opt := range opts {
		opt(&s)
	}
	return &Engine{
		broker: sandbox.New(sandbox.WithDeadline(s.deadline), sandbox.WithLogger(s.log)),
		log:    s.log,
	}
}

// Invoke runs one cell. The returned channel delivers a Diagnostics event
// first, then Output events in emission order, then exactly one terminal
// event (Failure or Success), and closes. Compilation happens fresh per
// call; no retries. A cancelled ctx stops event delivery but not the
// deadline-bound teardown of the execution context.
func (e *Engine) Invoke(ctx context.Context, source string) <-chan Event {
	events := make(chan Event, 16)
	go e.run(ctx, source, events)
	return events
}

func (e *Engine) run(ctx context.Context, source string, events chan<- Event) {
	defer close(events)

	comp, err := compiler.Default()
	if err != nil {
		e.log.Error("compiler unavailable", zap.Error(err))
		e.deliver(ctx, events, Event{Kind: EventFailure, Message: err.Error()})
		return
	}

	res := comp.Compile(source)
	diags := compiler.Filter(res.Diagnostics, sandbox.InjectedGlobals())
	e.deliver(ctx, events, Event{Kind: EventDiagnostics, Diagnostics: diags})

	run, err := e.broker.Start(res.Code)
	if err != nil {
		e.log.Error("context start failed", zap.Error(err))
		e.deliver(ctx, events, Event{Kind: EventFailure, Message: err.Error()})
		return
	}

	// Drain the stream to completion even when the host context is gone, so
	// the supervisor can always finish and tear the isolate down.
	for m := range run.Messages {
		switch m.Kind {
		case sandbox.KindOutput:
			e.deliver(ctx, events, Event{Kind: EventOutput, Data: m.Data})
		case sandbox.KindDone:
			e.deliver(ctx, events, Event{Kind: EventSuccess})
		case sandbox.KindError:
			e.deliver(ctx, events, Event{Kind: EventFailure, Message: m.Text})
		}
	}

	e.log.Debug("run finished",
		zap.String("session", run.Session.ID().String()),
		zap.Stringer("state", run.Session.State()))
}

func (e *Engine) deliver(ctx context.Context, events chan<- Event, ev Event) {
	select {
	case events <- ev:
	case <-ctx.Done():
	}
}
