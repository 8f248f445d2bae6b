package lal

import (
	"errors"
	"strings"
)

// Local errors: the wrapper rejected the request before it reached the
// engine, or the engine answered in a way the wrapper cannot use.
var (
	ErrReleased        = errors.New("handle already released")
	ErrImplicitProject = errors.New("option requires an explicit project file")
	ErrNullHandle      = errors.New("engine returned a null handle")
	ErrInvalidProject  = errors.New("project load failed without diagnostics")
	ErrEmbeddedNUL     = errors.New("string contains a NUL byte")
	ErrInvalidOption   = errors.New("invalid option")
	ErrIndexOutOfRange = errors.New("index out of range")
	ErrReparseFailed   = errors.New("engine did not reparse the unit")
)

// LocalError is returned when the wrapper itself rejects an operation.
type LocalError struct {
	Op  string
	Err error
}

func (e *LocalError) Error() string {
	return "lal: " + e.Op + ": " + e.Err.Error()
}

func (e *LocalError) Unwrap() error { return e.Err }

func localError(op string, err error) error {
	return &LocalError{Op: op, Err: err}
}

// ProjectError carries the messages the engine reported while loading a
// project file.
type ProjectError struct {
	File     string
	Messages []string
}

func (e *ProjectError) Error() string {
	file := e.File
	if file == "" {
		file = "implicit project"
	}
	return "lal: loading " + file + ": " + strings.Join(e.Messages, "\n")
}

// IsForeign reports whether err originates from the engine: either an
// exception from the last-error slot or project load diagnostics.
func IsForeign(err error) bool {
	var exc *Exception
	var prj *ProjectError
	return errors.As(err, &exc) || errors.As(err, &prj)
}

// IsLocal reports whether err was raised by the wrapper before the engine
// was involved.
func IsLocal(err error) bool {
	var le *LocalError
	return errors.As(err, &le)
}
