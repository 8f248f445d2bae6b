package lal

import (
	"log/slog"
	"os"

	"github.com/lal-go/lal/abi"
)

// processAbort terminates the process when continuing would leave the
// engine's memory in an inconsistent state. 134 is the status of a process
// killed by SIGABRT.
var processAbort = func() { os.Exit(134) }

// Library is the entry point to an analysis engine. All wrappers created
// from a Library route their foreign calls through its engine.
//
// A Library does not serialize calls: the engine's last-exception slot is
// shared, so concurrent use requires external synchronization.
type Library struct {
	engine abi.Engine
	logger *slog.Logger
	abort  func()
}

// Option configures a Library.
type Option func(*Library)

// WithLogger sets the logger used for teardown errors and callback
// failures. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(l *Library) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithAbortFunc replaces the function called after logging an
// unrecoverable engine error. The default exits the process.
func WithAbortFunc(fn func()) Option {
	return func(l *Library) {
		if fn != nil {
			l.abort = fn
		}
	}
}

// New returns a Library bound to engine.
func New(engine abi.Engine, opts ...Option) *Library {
	l := &Library{
		engine: engine,
		logger: slog.Default(),
		abort:  func() { processAbort() },
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Engine returns the underlying engine.
func (l *Library) Engine() abi.Engine {
	return l.engine
}
