package abitest

import (
	"io/fs"
	"strings"

	"github.com/lal-go/lal/abi"
)

type analysisContext struct {
	refs        int
	initialized bool
	charset     string
	reader      abi.Handle
	handler     abi.Handle
	withTrivia  bool
	tabStop     int
	units       map[string]abi.Handle
}

type unit struct {
	ctx      abi.Handle
	filename string
	charset  string
	tokens   int
	trivia   int
	diags    []diagnostic
}

// AllocateAnalysisContext implements abi.Engine.
func (e *Engine) AllocateAnalysisContext() abi.Handle {
	if !e.enter("AllocateAnalysisContext") {
		e.mu.Unlock()
		return 0
	}
	defer e.mu.Unlock()
	h := e.newHandle()
	e.contexts[h] = &analysisContext{refs: 1, units: make(map[string]abi.Handle)}
	return h
}

func (e *Engine) initLocked(op string, ctx abi.Handle, eventHandler abi.Handle, withTrivia abi.Bool, tabStop int32) *analysisContext {
	c, ok := e.contexts[ctx]
	if !ok {
		e.raise(abi.ExceptionPreconditionFailure, "%s: invalid analysis context", op)
		return nil
	}
	if c.initialized {
		e.raise(abi.ExceptionPreconditionFailure, "%s: context already initialized", op)
		return nil
	}
	if tabStop < 1 {
		e.raise(abi.ExceptionPreconditionFailure, "%s: tab stop must be positive", op)
		return nil
	}
	if eventHandler != 0 {
		h, ok := e.handlers[eventHandler]
		if !ok {
			e.raise(abi.ExceptionPreconditionFailure, "%s: invalid event handler", op)
			return nil
		}
		h.refs++
		c.handler = eventHandler
	}
	c.initialized = true
	c.withTrivia = withTrivia.True()
	c.tabStop = int(tabStop)
	return c
}

// InitializeAnalysisContext implements abi.Engine.
func (e *Engine) InitializeAnalysisContext(ctx abi.Handle, charset *byte, fileReader, unitProvider, eventHandler abi.Handle, withTrivia abi.Bool, tabStop int32) {
	if !e.enter("InitializeAnalysisContext") {
		e.mu.Unlock()
		return
	}
	defer e.mu.Unlock()
	if unitProvider != 0 {
		e.raise(abi.ExceptionPreconditionFailure, "unit providers are not supported")
		return
	}
	if fileReader != 0 {
		if _, ok := e.readers[fileReader]; !ok {
			e.raise(abi.ExceptionPreconditionFailure, "invalid file reader")
			return
		}
	}
	c := e.initLocked("InitializeAnalysisContext", ctx, eventHandler, withTrivia, tabStop)
	if c == nil {
		return
	}
	if fileReader != 0 {
		e.readers[fileReader].refs++
		c.reader = fileReader
	}
	c.charset = abi.GoString(charset)
	if c.charset == "" {
		c.charset = DefaultCharset
	}
}

// ContextIncRef implements abi.Engine.
func (e *Engine) ContextIncRef(ctx abi.Handle) abi.Handle {
	if !e.enter("ContextIncRef") {
		e.mu.Unlock()
		return 0
	}
	defer e.mu.Unlock()
	c, ok := e.contexts[ctx]
	if !ok {
		e.violate("incref of dead context %#x", ctx)
		e.raise(abi.ExceptionPreconditionFailure, "invalid analysis context")
		return 0
	}
	c.refs++
	e.stats.ContextIncRefs++
	return ctx
}

// ContextDecRef implements abi.Engine. Dropping the last reference frees the
// context and its units and releases its registrations.
func (e *Engine) ContextDecRef(ctx abi.Handle) {
	if !e.enter("ContextDecRef") {
		e.mu.Unlock()
		return
	}
	c, ok := e.contexts[ctx]
	if !ok {
		e.violate("decref of dead context %#x", ctx)
		e.raise(abi.ExceptionPreconditionFailure, "invalid analysis context")
		e.mu.Unlock()
		return
	}
	e.stats.ContextDecRefs++
	c.refs--
	var pending []func()
	if c.refs == 0 {
		for _, u := range c.units {
			delete(e.units, u)
		}
		delete(e.contexts, ctx)
		if c.reader != 0 {
			pending = append(pending, e.releaseReaderLocked(c.reader)...)
		}
		if c.handler != 0 {
			pending = append(pending, e.releaseHandlerLocked(c.handler)...)
		}
	}
	e.mu.Unlock()
	runAll(pending)
}

// UnitFromFile implements abi.Engine. Missing files produce a unit with a
// diagnostic rather than an exception.
func (e *Engine) UnitFromFile(ctx abi.Handle, filename, charset *byte, reparse abi.Bool, rule abi.GrammarRule) abi.Handle {
	if !e.enter("UnitFromFile") {
		e.mu.Unlock()
		return 0
	}
	c := e.liveContextLocked(ctx)
	if c == nil {
		e.mu.Unlock()
		return 0
	}
	name := abi.GoString(filename)
	cs := abi.GoString(charset)
	if cs == "" {
		cs = c.charset
	}
	if u, ok := c.units[name]; ok && !reparse.True() {
		e.mu.Unlock()
		return u
	}
	src := e.sourceLocked(c)
	e.mu.Unlock()

	text, diags := src.read(e, name, cs)
	return e.parse(ctx, name, cs, text, diags)
}

// UnitFromBuffer implements abi.Engine.
func (e *Engine) UnitFromBuffer(ctx abi.Handle, filename, charset, buffer *byte, size uintptr, rule abi.GrammarRule) abi.Handle {
	if !e.enter("UnitFromBuffer") {
		e.mu.Unlock()
		return 0
	}
	c := e.liveContextLocked(ctx)
	if c == nil {
		e.mu.Unlock()
		return 0
	}
	name := abi.GoString(filename)
	cs := abi.GoString(charset)
	if cs == "" {
		cs = c.charset
	}
	e.mu.Unlock()

	text, diags := decodeCharset([]byte(abi.GoStringN(buffer, int(size))), cs)
	return e.parse(ctx, name, cs, text, diags)
}

func (e *Engine) liveContextLocked(ctx abi.Handle) *analysisContext {
	c, ok := e.contexts[ctx]
	if !ok {
		e.raise(abi.ExceptionPreconditionFailure, "invalid analysis context")
		return nil
	}
	if !c.initialized {
		e.raise(abi.ExceptionPreconditionFailure, "analysis context is not initialized")
		return nil
	}
	return c
}

// parse lexes text into the named unit of ctx, creating the unit on first
// use, then notifies the context's event handler outside the lock.
func (e *Engine) parse(ctx abi.Handle, name, charset, text string, diags []diagnostic) abi.Handle {
	e.mu.Lock()
	c, ok := e.contexts[ctx]
	if !ok {
		e.raise(abi.ExceptionStaleReferenceError, "analysis context was released while reading %s", name)
		e.mu.Unlock()
		return 0
	}
	res := lex(text, c.tabStop)
	h, reparsed := c.units[name]
	if !reparsed {
		h = e.newHandle()
		c.units[name] = h
	}
	u := &unit{
		ctx:      ctx,
		filename: name,
		charset:  charset,
		tokens:   res.tokenCount(),
		diags:    append(diags, res.diags...),
	}
	if c.withTrivia {
		u.trivia = res.trivia
	}
	e.units[h] = u

	var pending []func()
	if hd, ok := e.handlers[c.handler]; ok && c.handler != 0 {
		data, parsed, requested := hd.data, hd.parsed, hd.requested
		pending = append(pending, func() { parsed(data, ctx, h, abi.BoolOf(reparsed)) })
		for _, w := range withClauses(res.tokens) {
			found := e.exists(specFileName(w))
			cps := codePoints(w)
			pending = append(pending, func() {
				nameText := borrowedText(cps)
				requested(data, ctx, &nameText, h, abi.BoolOf(found), 1)
			})
		}
	}
	e.mu.Unlock()
	runAll(pending)
	return h
}

// specFileName applies the default GNAT naming scheme: dots become dashes.
func specFileName(unitName string) string {
	return strings.ReplaceAll(unitName, ".", "-") + ".ads"
}

func (e *Engine) exists(name string) bool {
	_, err := fs.Stat(e.fsys, name)
	return err == nil
}

func (e *Engine) unitLocked(h abi.Handle) *unit {
	u, ok := e.units[h]
	if !ok {
		e.raise(abi.ExceptionStaleReferenceError, "invalid analysis unit")
		return nil
	}
	return u
}

// UnitContext implements abi.Engine. The returned handle is borrowed.
func (e *Engine) UnitContext(h abi.Handle) abi.Handle {
	if !e.enter("UnitContext") {
		e.mu.Unlock()
		return 0
	}
	defer e.mu.Unlock()
	if u := e.unitLocked(h); u != nil {
		return u.ctx
	}
	return 0
}

// UnitFilename implements abi.Engine. The result must be released with Free.
func (e *Engine) UnitFilename(h abi.Handle) *byte {
	if !e.enter("UnitFilename") {
		e.mu.Unlock()
		return nil
	}
	defer e.mu.Unlock()
	u := e.unitLocked(h)
	if u == nil {
		return nil
	}
	return e.allocStringLocked(u.filename)
}

// UnitTokenCount implements abi.Engine.
func (e *Engine) UnitTokenCount(h abi.Handle) int32 {
	if !e.enter("UnitTokenCount") {
		e.mu.Unlock()
		return -1
	}
	defer e.mu.Unlock()
	if u := e.unitLocked(h); u != nil {
		return int32(u.tokens)
	}
	return -1
}

// UnitTriviaCount implements abi.Engine.
func (e *Engine) UnitTriviaCount(h abi.Handle) int32 {
	if !e.enter("UnitTriviaCount") {
		e.mu.Unlock()
		return -1
	}
	defer e.mu.Unlock()
	if u := e.unitLocked(h); u != nil {
		return int32(u.trivia)
	}
	return -1
}

// UnitDiagnosticCount implements abi.Engine.
func (e *Engine) UnitDiagnosticCount(h abi.Handle) uint32 {
	if !e.enter("UnitDiagnosticCount") {
		e.mu.Unlock()
		return 0
	}
	defer e.mu.Unlock()
	if u := e.unitLocked(h); u != nil {
		return uint32(len(u.diags))
	}
	return 0
}

// UnitDiagnostic implements abi.Engine. The message is borrowed from the unit.
func (e *Engine) UnitDiagnostic(h abi.Handle, n uint32, out *abi.Diagnostic) abi.Bool {
	if !e.enter("UnitDiagnostic") {
		e.mu.Unlock()
		return 0
	}
	defer e.mu.Unlock()
	u := e.unitLocked(h)
	if u == nil || int(n) >= len(u.diags) {
		return 0
	}
	d := u.diags[n]
	*out = abi.Diagnostic{SlocRange: d.rng, Message: borrowedText(d.msg)}
	return 1
}

// UnitReparseFromFile implements abi.Engine.
func (e *Engine) UnitReparseFromFile(h abi.Handle, charset *byte) abi.Bool {
	if !e.enter("UnitReparseFromFile") {
		e.mu.Unlock()
		return 0
	}
	u := e.unitLocked(h)
	if u == nil {
		e.mu.Unlock()
		return 0
	}
	if e.takeNullLocked("UnitReparseFromFile") {
		e.mu.Unlock()
		return 0
	}
	c := e.contexts[u.ctx]
	cs := abi.GoString(charset)
	if cs == "" {
		cs = u.charset
	}
	ctx, name := u.ctx, u.filename
	src := e.sourceLocked(c)
	e.mu.Unlock()

	text, diags := src.read(e, name, cs)
	return abi.BoolOf(e.parse(ctx, name, cs, text, diags) != 0)
}

// UnitReparseFromBuffer implements abi.Engine.
func (e *Engine) UnitReparseFromBuffer(h abi.Handle, charset, buffer *byte, size uintptr) abi.Bool {
	if !e.enter("UnitReparseFromBuffer") {
		e.mu.Unlock()
		return 0
	}
	u := e.unitLocked(h)
	if u == nil {
		e.mu.Unlock()
		return 0
	}
	if e.takeNullLocked("UnitReparseFromBuffer") {
		e.mu.Unlock()
		return 0
	}
	cs := abi.GoString(charset)
	if cs == "" {
		cs = u.charset
	}
	ctx, name := u.ctx, u.filename
	e.mu.Unlock()

	text, diags := decodeCharset([]byte(abi.GoStringN(buffer, int(size))), cs)
	return abi.BoolOf(e.parse(ctx, name, cs, text, diags) != 0)
}

func runAll(fns []func()) {
	for _, fn := range fns {
		fn()
	}
}
