package abitest

import (
	"io/fs"
	"strings"
	"unicode/utf8"

	"github.com/lal-go/lal/abi"
)

type fileReader struct {
	refs    int
	data    uintptr
	destroy abi.DestroyFunc
	read    abi.ReadFileFunc
}

type eventHandler struct {
	refs      int
	data      uintptr
	destroy   abi.DestroyFunc
	requested abi.UnitRequestedFunc
	parsed    abi.UnitParsedFunc
}

// CreateFileReader implements abi.Engine.
func (e *Engine) CreateFileReader(data uintptr, destroy abi.DestroyFunc, read abi.ReadFileFunc) abi.Handle {
	if !e.enter("CreateFileReader") {
		e.mu.Unlock()
		return 0
	}
	defer e.mu.Unlock()
	if destroy == nil || read == nil {
		e.raise(abi.ExceptionPreconditionFailure, "file reader callbacks must not be null")
		return 0
	}
	if e.takeNullLocked("CreateFileReader") {
		return 0
	}
	h := e.newHandle()
	e.readers[h] = &fileReader{refs: 1, data: data, destroy: destroy, read: read}
	e.raiseAfterLocked("CreateFileReader")
	return h
}

// DecRefFileReader implements abi.Engine. The destroy callback runs after the
// engine lock is released.
func (e *Engine) DecRefFileReader(h abi.Handle) {
	if !e.enter("DecRefFileReader") {
		e.mu.Unlock()
		return
	}
	if _, ok := e.readers[h]; !ok {
		e.violate("decref of dead file reader %#x", h)
		e.raise(abi.ExceptionPreconditionFailure, "invalid file reader")
		e.mu.Unlock()
		return
	}
	pending := e.releaseReaderLocked(h)
	e.mu.Unlock()
	runAll(pending)
}

func (e *Engine) releaseReaderLocked(h abi.Handle) []func() {
	r := e.readers[h]
	r.refs--
	if r.refs > 0 {
		return nil
	}
	delete(e.readers, h)
	e.stats.FileReaderDestroys++
	destroy, data := r.destroy, r.data
	return []func(){func() { destroy(data) }}
}

// CreateEventHandler implements abi.Engine.
func (e *Engine) CreateEventHandler(data uintptr, destroy abi.DestroyFunc, requested abi.UnitRequestedFunc, parsed abi.UnitParsedFunc) abi.Handle {
	if !e.enter("CreateEventHandler") {
		e.mu.Unlock()
		return 0
	}
	defer e.mu.Unlock()
	if destroy == nil || requested == nil || parsed == nil {
		e.raise(abi.ExceptionPreconditionFailure, "event handler callbacks must not be null")
		return 0
	}
	if e.takeNullLocked("CreateEventHandler") {
		return 0
	}
	h := e.newHandle()
	e.handlers[h] = &eventHandler{refs: 1, data: data, destroy: destroy, requested: requested, parsed: parsed}
	e.raiseAfterLocked("CreateEventHandler")
	return h
}

// DecRefEventHandler implements abi.Engine.
func (e *Engine) DecRefEventHandler(h abi.Handle) {
	if !e.enter("DecRefEventHandler") {
		e.mu.Unlock()
		return
	}
	if _, ok := e.handlers[h]; !ok {
		e.violate("decref of dead event handler %#x", h)
		e.raise(abi.ExceptionPreconditionFailure, "invalid event handler")
		e.mu.Unlock()
		return
	}
	pending := e.releaseHandlerLocked(h)
	e.mu.Unlock()
	runAll(pending)
}

func (e *Engine) releaseHandlerLocked(h abi.Handle) []func() {
	hd := e.handlers[h]
	hd.refs--
	if hd.refs > 0 {
		return nil
	}
	delete(e.handlers, h)
	e.stats.EventHandlerDestroys++
	destroy, data := hd.destroy, hd.data
	return []func(){func() { destroy(data) }}
}

// source fetches file contents for a context, either through its file
// reader or from the engine's file system.
type source struct {
	data   uintptr
	reader abi.ReadFileFunc
}

func (e *Engine) sourceLocked(c *analysisContext) source {
	var s source
	if r, ok := e.readers[c.reader]; ok && c.reader != 0 {
		s.data, s.reader = r.data, r.read
	}
	return s
}

// read must be called without the engine lock held.
func (s source) read(e *Engine, name, charset string) (string, []diagnostic) {
	if s.reader == nil {
		raw, err := fs.ReadFile(e.fsys, strings.TrimPrefix(name, "/"))
		if err != nil {
			return "", []diagnostic{{
				rng: abi.SourceLocationRange{Start: abi.SourceLocation{Line: 1, Column: 1}, End: abi.SourceLocation{Line: 1, Column: 1}},
				msg: codePoints("Cannot open " + name),
			}}
		}
		return decodeCharset(raw, charset)
	}

	cname, ccs := cbytes(name), cbytes(charset)
	var buf abi.Text
	var diag abi.Diagnostic
	s.reader(s.data, cname, ccs, 1, &buf, &diag)
	if diag.Message.Length > 0 {
		msg := e.adoptText(&diag.Message, "diagnostic message")
		if buf.Chars != nil {
			e.adoptText(&buf, "file contents")
		}
		return "", []diagnostic{{rng: diag.SlocRange, msg: codePoints(msg)}}
	}
	return e.adoptText(&buf, "file contents"), nil
}

// decodeCharset supports the two charsets the tests need. Unknown charsets
// yield a diagnostic and an empty source.
func decodeCharset(raw []byte, charset string) (string, []diagnostic) {
	at := abi.SourceLocationRange{Start: abi.SourceLocation{Line: 1, Column: 1}, End: abi.SourceLocation{Line: 1, Column: 1}}
	switch strings.ToLower(charset) {
	case "", "iso-8859-1", "latin-1", "latin1":
		runes := make([]rune, len(raw))
		for i, b := range raw {
			runes[i] = rune(b)
		}
		return string(runes), nil
	case "utf-8", "utf8":
		s := strings.TrimPrefix(string(raw), "\ufeff")
		if !utf8.ValidString(s) {
			return strings.ToValidUTF8(s, "\ufffd"), []diagnostic{{rng: at, msg: codePoints("Could not decode source as \"utf-8\"")}}
		}
		return s, nil
	default:
		return "", []diagnostic{{rng: at, msg: codePoints("Unknown charset \"" + charset + "\"")}}
	}
}
