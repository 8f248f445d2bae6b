package lal

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/lal-go/lal/abi"
)

// UnitRequestedEvent reports that analysis of From needed the unit Name.
type UnitRequestedEvent struct {
	Name            string
	From            *Unit
	Found           bool
	IsNotFoundError bool
}

// UnitParsedEvent reports that Unit was parsed or reparsed.
type UnitParsedEvent struct {
	Unit     *Unit
	Reparsed bool
}

// EventListener receives analysis events. The context is a reference owned
// by the caller of the listener and released when the method returns; Clone
// it to keep it. It is nil if the engine did not provide one.
type EventListener interface {
	UnitRequested(ctx *Context, ev UnitRequestedEvent)
	UnitParsed(ctx *Context, ev UnitParsedEvent)
}

// EventFuncs adapts functions to EventListener. Nil fields ignore the event.
type EventFuncs struct {
	OnUnitRequested func(ctx *Context, ev UnitRequestedEvent)
	OnUnitParsed    func(ctx *Context, ev UnitParsedEvent)
}

func (f EventFuncs) UnitRequested(ctx *Context, ev UnitRequestedEvent) {
	if f.OnUnitRequested != nil {
		f.OnUnitRequested(ctx, ev)
	}
}

func (f EventFuncs) UnitParsed(ctx *Context, ev UnitParsedEvent) {
	if f.OnUnitParsed != nil {
		f.OnUnitParsed(ctx, ev)
	}
}

// EventHandler is the engine's reference to a registered EventListener.
type EventHandler struct {
	lib      *Library
	h        abi.Handle
	id       uuid.UUID
	released atomic.Bool
}

// NewEventHandler registers listener with the engine.
func (l *Library) NewEventHandler(listener EventListener) (*EventHandler, error) {
	r := &registration{id: uuid.New(), kind: kindEventHandler, lib: l, listener: listener}
	data := register(r)
	h, err := wrap(l, l.engine.CreateEventHandler(data, destroyTrampoline, unitRequestedTrampoline, unitParsedTrampoline))
	h, err = l.settle("CreateEventHandler", "DecRefEventHandler", data, h, err, l.engine.DecRefEventHandler)
	if err != nil {
		return nil, err
	}
	l.logger.Debug("registration created", "registration", r.id, "kind", r.kind.String())
	return &EventHandler{lib: l, h: h, id: r.id}, nil
}

// Handle returns the raw engine handle.
func (e *EventHandler) Handle() abi.Handle { return e.h }

// Release drops this wrapper's reference. Further calls do nothing.
func (e *EventHandler) Release() {
	if e == nil || !e.released.CompareAndSwap(false, true) {
		return
	}
	e.lib.engine.DecRefEventHandler(e.h)
	e.lib.logAndIgnore("DecRefEventHandler")
}

func (e *EventHandler) handle(op string) (abi.Handle, error) {
	if e.released.Load() {
		return 0, localError(op, fmt.Errorf("event handler: %w", ErrReleased))
	}
	return e.h, nil
}

// eventContext takes a reference on a context handle passed to a callback.
func (r *registration) eventContext(h abi.Handle) *Context {
	if h == 0 {
		return nil
	}
	c, err := r.lib.adoptContext("ContextIncRef", r.lib.engine.ContextIncRef(h))
	if err != nil {
		r.lib.logger.Error("cannot reference event context", "registration", r.id, "err", err)
		return nil
	}
	return c
}

func (l *Library) optionalUnit(h abi.Handle) *Unit {
	if h == 0 {
		return nil
	}
	return &Unit{lib: l, h: h}
}

func unitRequestedTrampoline(data uintptr, context abi.Handle, name *abi.Text, from abi.Handle, found, isNotFoundError abi.Bool) {
	r := lookup(data, kindEventHandler)
	if r == nil {
		return
	}
	ev := UnitRequestedEvent{
		Name:            ViewText(name).String(),
		From:            r.lib.optionalUnit(from),
		Found:           found.True(),
		IsNotFoundError: isNotFoundError.True(),
	}
	ctx := r.eventContext(context)
	defer ctx.Release()
	defer r.recoverCallback("unit requested")
	r.listener.UnitRequested(ctx, ev)
}

func unitParsedTrampoline(data uintptr, context abi.Handle, unit abi.Handle, reparsed abi.Bool) {
	r := lookup(data, kindEventHandler)
	if r == nil {
		return
	}
	ev := UnitParsedEvent{Unit: r.lib.optionalUnit(unit), Reparsed: reparsed.True()}
	ctx := r.eventContext(context)
	defer ctx.Release()
	defer r.recoverCallback("unit parsed")
	r.listener.UnitParsed(ctx, ev)
}
