package lal

import (
	"fmt"
	"sync/atomic"

	"github.com/lal-go/lal/abi"
)

// DefaultTabStop is the tab stop used when none is configured.
const DefaultTabStop = 3

// Context is one reference to an engine analysis context. Every Context
// value, including each Clone, must be released exactly once.
type Context struct {
	lib      *Library
	h        abi.Handle
	released atomic.Bool
}

// adoptContext wraps the result of a call that returned a new reference.
func (l *Library) adoptContext(op string, h abi.Handle) (*Context, error) {
	h, err := wrap(l, h)
	if err != nil {
		return nil, err
	}
	if h == 0 {
		return nil, localError(op, ErrNullHandle)
	}
	return &Context{lib: l, h: h}, nil
}

// Handle returns the raw engine handle.
func (c *Context) Handle() abi.Handle { return c.h }

func (c *Context) handle(op string) (abi.Handle, error) {
	if c.released.Load() {
		return 0, localError(op, fmt.Errorf("context: %w", ErrReleased))
	}
	return c.h, nil
}

// Clone takes a new reference to the same analysis context.
func (c *Context) Clone() (*Context, error) {
	h, err := c.handle("Context.Clone")
	if err != nil {
		return nil, err
	}
	return c.lib.adoptContext("ContextIncRef", c.lib.engine.ContextIncRef(h))
}

// Release drops this reference. The engine frees the context with its
// last reference. Release is safe to call more than once and on nil.
func (c *Context) Release() {
	if c == nil || !c.released.CompareAndSwap(false, true) {
		return
	}
	c.lib.engine.ContextDecRef(c.h)
	c.lib.logAndIgnore("ContextDecRef")
}

type unitOptions struct {
	charset string
	reparse bool
	rule    abi.GrammarRule
}

// UnitOption configures a unit lookup.
type UnitOption func(*unitOptions)

// UnitCharset overrides the context charset.
func UnitCharset(charset string) UnitOption {
	return func(o *unitOptions) { o.charset = charset }
}

// Reparse forces the unit to be parsed again if it already exists.
func Reparse() UnitOption {
	return func(o *unitOptions) { o.reparse = true }
}

// Rule selects the grammar rule used to parse the unit.
func Rule(rule abi.GrammarRule) UnitOption {
	return func(o *unitOptions) { o.rule = rule }
}

func collectUnitOptions(opts []UnitOption) unitOptions {
	o := unitOptions{rule: abi.RuleCompilation}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// UnitFromFile returns the unit for filename, parsing it if needed. Missing
// or unreadable files produce a unit with diagnostics, not an error.
func (c *Context) UnitFromFile(filename string, opts ...UnitOption) (*Unit, error) {
	const op = "Context.UnitFromFile"
	h, err := c.handle(op)
	if err != nil {
		return nil, err
	}
	o := collectUnitOptions(opts)
	strs := newCStrings(c.lib)
	defer strs.free()
	name, err := strs.add(op, filename)
	if err != nil {
		return nil, err
	}
	cs, err := strs.optional(op, o.charset)
	if err != nil {
		return nil, err
	}
	return c.lib.adoptUnit(op, c.lib.engine.UnitFromFile(h, name, cs, abi.BoolOf(o.reparse), o.rule))
}

// UnitFromBuffer parses buffer as the contents of filename. The Reparse
// option has no effect: buffers always replace the unit.
func (c *Context) UnitFromBuffer(filename string, buffer []byte, opts ...UnitOption) (*Unit, error) {
	const op = "Context.UnitFromBuffer"
	h, err := c.handle(op)
	if err != nil {
		return nil, err
	}
	o := collectUnitOptions(opts)
	strs := newCStrings(c.lib)
	defer strs.free()
	name, err := strs.add(op, filename)
	if err != nil {
		return nil, err
	}
	cs, err := strs.optional(op, o.charset)
	if err != nil {
		return nil, err
	}
	buf, size := bufferData(buffer)
	return c.lib.adoptUnit(op, c.lib.engine.UnitFromBuffer(h, name, cs, buf, size, o.rule))
}

func bufferData(b []byte) (*byte, uintptr) {
	if len(b) == 0 {
		return nil, 0
	}
	return &b[0], uintptr(len(b))
}

// ContextBuilder configures a new analysis context. Contexts are either
// driven by a loaded project or configured directly with a charset and an
// optional file reader.
type ContextBuilder struct {
	lib        *Library
	project    *Project
	subproject string
	charset    string
	reader     *FileReader
	handler    *EventHandler
	withTrivia bool
	tabStop    int
}

// NewContextBuilder returns a builder without trivia and with the default
// tab stop.
func (l *Library) NewContextBuilder() *ContextBuilder {
	return &ContextBuilder{lib: l, tabStop: DefaultTabStop}
}

// Project makes the context resolve units through p.
func (b *ContextBuilder) Project(p *Project) *ContextBuilder {
	b.project = p
	return b
}

// Subproject restricts a project-driven context to the named project.
func (b *ContextBuilder) Subproject(name string) *ContextBuilder {
	b.subproject = name
	return b
}

// Charset sets the default charset for source files.
func (b *ContextBuilder) Charset(charset string) *ContextBuilder {
	b.charset = charset
	return b
}

// FileReader makes the engine read sources through r. The context takes its
// own reference; the caller still releases r.
func (b *ContextBuilder) FileReader(r *FileReader) *ContextBuilder {
	b.reader = r
	return b
}

// EventHandler attaches h to the context. The context takes its own
// reference; the caller still releases h.
func (b *ContextBuilder) EventHandler(h *EventHandler) *ContextBuilder {
	b.handler = h
	return b
}

// WithTrivia controls whether comments and whitespace are kept as trivia.
func (b *ContextBuilder) WithTrivia(on bool) *ContextBuilder {
	b.withTrivia = on
	return b
}

// TabStop sets the column width of a tab, between 1 and 255.
func (b *ContextBuilder) TabStop(n int) *ContextBuilder {
	b.tabStop = n
	return b
}

func (b *ContextBuilder) validate(op string) error {
	if b.tabStop < 1 || b.tabStop > 255 {
		return localError(op, fmt.Errorf("%w: tab stop %d not in 1..255", ErrInvalidOption, b.tabStop))
	}
	if b.project != nil && b.reader != nil {
		return localError(op, fmt.Errorf("%w: a project context reads files through the project", ErrInvalidOption))
	}
	if b.project != nil && b.charset != "" {
		return localError(op, fmt.Errorf("%w: the project decides the charset", ErrInvalidOption))
	}
	if b.project == nil && b.subproject != "" {
		return localError(op, fmt.Errorf("%w: subproject without project", ErrInvalidOption))
	}
	return nil
}

// Finish allocates and initializes the context. If initialization fails the
// allocated context is released before the error is returned.
func (b *ContextBuilder) Finish() (*Context, error) {
	const op = "ContextBuilder.Finish"
	if err := b.validate(op); err != nil {
		return nil, err
	}

	var project, reader, handler abi.Handle
	var err error
	if b.project != nil {
		if project, err = b.project.handle(op); err != nil {
			return nil, err
		}
	}
	if b.reader != nil {
		if reader, err = b.reader.handle(op); err != nil {
			return nil, err
		}
	}
	if b.handler != nil {
		if handler, err = b.handler.handle(op); err != nil {
			return nil, err
		}
	}

	strs := newCStrings(b.lib)
	defer strs.free()
	charset, err := strs.optional(op, b.charset)
	if err != nil {
		return nil, err
	}
	subproject, err := strs.optional(op, b.subproject)
	if err != nil {
		return nil, err
	}

	ctx, err := b.lib.adoptContext("AllocateAnalysisContext", b.lib.engine.AllocateAnalysisContext())
	if err != nil {
		return nil, err
	}
	trivia, tab := abi.BoolOf(b.withTrivia), int32(b.tabStop)
	if project != 0 {
		b.lib.engine.GPRProjectInitializeContext(project, ctx.h, subproject, handler, trivia, tab)
	} else {
		b.lib.engine.InitializeAnalysisContext(ctx.h, charset, reader, 0, handler, trivia, tab)
	}
	if err := b.lib.check(); err != nil {
		ctx.Release()
		return nil, err
	}
	return ctx, nil
}
