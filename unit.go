package lal

import (
	"unsafe"

	"github.com/lal-go/lal/abi"
)

// Unit is a non-owning view of an analysis unit. It is valid only while the
// context that produced it holds at least one reference; nothing checks
// this.
type Unit struct {
	lib *Library
	h   abi.Handle
}

func (l *Library) adoptUnit(op string, h abi.Handle) (*Unit, error) {
	h, err := wrap(l, h)
	if err != nil {
		return nil, err
	}
	if h == 0 {
		return nil, localError(op, ErrNullHandle)
	}
	return &Unit{lib: l, h: h}, nil
}

// Handle returns the raw engine handle.
func (u *Unit) Handle() abi.Handle { return u.h }

// Context returns a new reference to the unit's context. The caller must
// release it.
func (u *Unit) Context() (*Context, error) {
	h, err := wrap(u.lib, u.lib.engine.UnitContext(u.h))
	if err != nil {
		return nil, err
	}
	if h == 0 {
		return nil, localError("Unit.Context", ErrNullHandle)
	}
	return u.lib.adoptContext("ContextIncRef", u.lib.engine.ContextIncRef(h))
}

// Filename returns the unit's file name.
func (u *Unit) Filename() (string, error) {
	p, err := wrap(u.lib, u.lib.engine.UnitFilename(u.h))
	if err != nil {
		return "", err
	}
	name := abi.GoString(p)
	u.lib.engine.Free(unsafe.Pointer(p))
	return name, nil
}

// TokenCount returns the number of tokens, including the termination token.
func (u *Unit) TokenCount() (int, error) {
	n, err := wrap(u.lib, u.lib.engine.UnitTokenCount(u.h))
	return int(n), err
}

// TriviaCount returns the number of trivia (comments and, depending on the
// context, whitespace).
func (u *Unit) TriviaCount() (int, error) {
	n, err := wrap(u.lib, u.lib.engine.UnitTriviaCount(u.h))
	return int(n), err
}

func (u *Unit) DiagnosticCount() (int, error) {
	n, err := wrap(u.lib, u.lib.engine.UnitDiagnosticCount(u.h))
	return int(n), err
}

// Diagnostic returns the i-th diagnostic. The message is copied out of the
// engine's buffer.
func (u *Unit) Diagnostic(i int) (Diagnostic, error) {
	if i < 0 {
		return Diagnostic{}, localError("Unit.Diagnostic", ErrIndexOutOfRange)
	}
	var raw abi.Diagnostic
	ok, err := wrap(u.lib, u.lib.engine.UnitDiagnostic(u.h, uint32(i), &raw))
	if err != nil {
		return Diagnostic{}, err
	}
	if !ok.True() {
		return Diagnostic{}, localError("Unit.Diagnostic", ErrIndexOutOfRange)
	}
	return diagnosticFromRaw(&raw), nil
}

// Diagnostics returns every diagnostic of the unit.
func (u *Unit) Diagnostics() ([]Diagnostic, error) {
	n, err := u.DiagnosticCount()
	if err != nil {
		return nil, err
	}
	out := make([]Diagnostic, 0, n)
	for i := range n {
		d, err := u.Diagnostic(i)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// ReparseFromFile parses the unit's file again. An empty charset keeps the
// unit's charset.
func (u *Unit) ReparseFromFile(charset string) error {
	const op = "Unit.ReparseFromFile"
	strs := newCStrings(u.lib)
	defer strs.free()
	cs, err := strs.optional(op, charset)
	if err != nil {
		return err
	}
	return u.reparsed(op, u.lib.engine.UnitReparseFromFile(u.h, cs))
}

// ReparseFromBuffer replaces the unit's source with buffer.
func (u *Unit) ReparseFromBuffer(charset string, buffer []byte) error {
	const op = "Unit.ReparseFromBuffer"
	strs := newCStrings(u.lib)
	defer strs.free()
	cs, err := strs.optional(op, charset)
	if err != nil {
		return err
	}
	buf, size := bufferData(buffer)
	return u.reparsed(op, u.lib.engine.UnitReparseFromBuffer(u.h, cs, buf, size))
}

func (u *Unit) reparsed(op string, ok abi.Bool) error {
	ok, err := wrap(u.lib, ok)
	if err != nil {
		return err
	}
	if !ok.True() {
		return localError(op, ErrReparseFailed)
	}
	return nil
}
