package lal

import "strings"

// cstrings owns NUL-terminated copies of Go strings handed to the engine.
// Every string added is freed exactly once by free.
type cstrings struct {
	lib  *Library
	ptrs []*byte
}

func newCStrings(l *Library) *cstrings {
	return &cstrings{lib: l}
}

func (a *cstrings) add(op, s string) (*byte, error) {
	if strings.IndexByte(s, 0) >= 0 {
		return nil, localError(op, ErrEmbeddedNUL)
	}
	p := a.lib.engine.CString(s)
	a.ptrs = append(a.ptrs, p)
	return p, nil
}

// optional maps "" to a null pointer, which the engine reads as "unset".
func (a *cstrings) optional(op, s string) (*byte, error) {
	if s == "" {
		return nil, nil
	}
	return a.add(op, s)
}

func (a *cstrings) free() {
	if a == nil {
		return
	}
	for _, p := range a.ptrs {
		a.lib.engine.FreeCString(p)
	}
	a.ptrs = nil
}
