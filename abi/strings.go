package abi

import "unsafe"

// GoString copies a NUL-terminated string. A nil pointer yields "".
func GoString(p *byte) string {
	if p == nil {
		return ""
	}
	n := 0
	for *(*byte)(unsafe.Add(unsafe.Pointer(p), n)) != 0 {
		n++
	}
	return string(unsafe.Slice(p, n))
}

// GoStringN copies n bytes starting at p.
func GoStringN(p *byte, n int) string {
	if p == nil || n <= 0 {
		return ""
	}
	return string(unsafe.Slice(p, n))
}

// Runes returns the code points of t without copying. The slice aliases the
// text buffer and must not outlive it.
func Runes(t *Text) []uint32 {
	if t == nil || t.Chars == nil || t.Length == 0 {
		return nil
	}
	return unsafe.Slice(t.Chars, int(t.Length))
}

// StringData returns a pointer to the bytes of s for calls that take an
// explicit length. The engine must not retain it.
func StringData(s string) *byte {
	if s == "" {
		return nil
	}
	return unsafe.StringData(s)
}
