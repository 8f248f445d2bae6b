package lal

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/lal-go/lal/abi"
)

// callbackKind enumerates the registrations the engine accepts.
type callbackKind int

const (
	kindFileReader callbackKind = iota + 1
	kindEventHandler
)

func (k callbackKind) String() string {
	switch k {
	case kindFileReader:
		return "file reader"
	case kindEventHandler:
		return "event handler"
	default:
		return fmt.Sprintf("callbackKind(%d)", int(k))
	}
}

// registration is the host state behind one engine callback object. The
// engine only ever sees its numeric key in the registry.
type registration struct {
	id       uuid.UUID
	kind     callbackKind
	lib      *Library
	source   FileSource
	listener EventListener
}

// Destroyer is implemented by file sources and event listeners that need to
// know when the engine drops its last reference to them.
type Destroyer interface {
	Destroy()
}

// The registry maps opaque data values to registrations. Keys start at 1 so
// that a null data pointer never resolves.
var (
	registry    sync.Map
	registrySeq atomic.Uintptr
)

func register(r *registration) uintptr {
	key := registrySeq.Add(1)
	registry.Store(key, r)
	return key
}

// unregister drops a registration the engine never took ownership of.
func unregister(key uintptr) {
	registry.Delete(key)
}

// settle finishes a create call for the registration under key. A null
// handle means the engine never took the registration, so it is dropped
// here. A handle returned together with an exception is released instead,
// and the engine's destroy call removes the registration.
func (l *Library) settle(op, decOp string, key uintptr, h abi.Handle, err error, decRef func(abi.Handle)) (abi.Handle, error) {
	if err == nil && h != 0 {
		return h, nil
	}
	if h == 0 {
		unregister(key)
		if err == nil {
			err = localError(op, ErrNullHandle)
		}
		return 0, err
	}
	decRef(h)
	l.logAndIgnore(decOp)
	return 0, err
}

// lookup resolves data for a trampoline. An unknown key means the engine
// called back after destroy, so the process is aborted.
func lookup(data uintptr, kind callbackKind) *registration {
	v, ok := registry.Load(data)
	if ok {
		if r := v.(*registration); r.kind == kind {
			return r
		}
	}
	slog.Default().Error("callback for unknown registration", "data", data, "kind", kind.String())
	processAbort()
	return nil
}

func (r *registration) host() any {
	if r.kind == kindFileReader {
		return r.source
	}
	return r.listener
}

// recoverCallback logs a panic raised by host code. It must be deferred
// directly by the trampoline helper.
func (r *registration) recoverCallback(callback string) {
	if p := recover(); p != nil {
		r.lib.logger.Error("panic in engine callback",
			"registration", r.id, "kind", r.kind.String(), "callback", callback, "panic", p)
	}
}

// destroyTrampoline is the engine's single release path for a registration.
func destroyTrampoline(data uintptr) {
	v, ok := registry.LoadAndDelete(data)
	if !ok {
		slog.Default().Error("destroy called for unknown registration", "data", data)
		processAbort()
		return
	}
	r := v.(*registration)
	r.lib.logger.Debug("registration destroyed", "registration", r.id, "kind", r.kind.String())
	if d, ok := r.host().(Destroyer); ok {
		func() {
			defer r.recoverCallback("destroy")
			d.Destroy()
		}()
	}
}
