package lal

import "github.com/lal-go/lal/abi"

// Exception is an error reported through the engine's last-exception slot.
type Exception struct {
	Kind    abi.ExceptionKind
	Name    string
	Message string
}

func (e *Exception) Error() string {
	return e.Name + ": " + e.Message
}

// LastError returns the exception raised by the most recent foreign call,
// or nil if that call succeeded. It must be called before any other foreign
// call, which would overwrite the slot.
func (l *Library) LastError() *Exception {
	raw := l.engine.LastException()
	if raw == nil {
		return nil
	}
	return &Exception{
		Kind:    raw.Kind,
		Name:    l.engine.ExceptionName(raw.Kind),
		Message: raw.Information,
	}
}

// check converts the pending exception, if any, into an error.
func (l *Library) check() error {
	if exc := l.LastError(); exc != nil {
		return exc
	}
	return nil
}

// wrap is applied to the result of a foreign call immediately after it
// returns. A pending exception discards v.
func wrap[T any](l *Library, v T) (T, error) {
	if exc := l.LastError(); exc != nil {
		var zero T
		return zero, exc
	}
	return v, nil
}

// logAndIgnore reports a pending exception on a teardown path where it
// cannot be returned.
func (l *Library) logAndIgnore(op string) {
	if exc := l.LastError(); exc != nil {
		l.logger.Error("ignoring engine exception", "op", op, "kind", exc.Name, "message", exc.Message)
	}
}

// logAndAbort reports a pending exception and aborts. It is used where
// continuing would leave memory ownership undefined.
func (l *Library) logAndAbort(op string) {
	if exc := l.LastError(); exc != nil {
		l.logger.Error("fatal engine exception", "op", op, "kind", exc.Name, "message", exc.Message)
		l.abort()
	}
}
