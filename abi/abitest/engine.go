// Package abitest provides an in-memory implementation of [abi.Engine] for
// tests.
//
// The engine follows the foreign library's observable contract: handles are
// reference counted, every entry point clears and may set the last-exception
// slot, registrations receive exactly one destroy call, buffers written by a
// file reader are adopted and destroyed by the engine, and string arrays and
// engine strings must be released by the caller. Source files come from an
// [fs.FS] and are run through a small Ada lexer so units report real token,
// trivia and diagnostic counts.
//
// Misuse that the real library would turn into memory corruption (double
// destroy, freeing unknown memory, decrementing a dead handle) is recorded
// in [Stats.Violations] instead.
package abitest

import (
	"fmt"
	"io/fs"
	"sync"
	"unsafe"

	"github.com/lal-go/lal/abi"
)

// DefaultCharset is used when neither the context nor the request names one.
const DefaultCharset = "iso-8859-1"

// Stats counts engine activity. Live* fields are current balances.
type Stats struct {
	Calls int

	ContextIncRefs int
	ContextDecRefs int
	LiveContexts   int

	TextsAllocated int
	TextsDestroyed int
	LiveTexts      int

	CStringsAllocated int
	CStringsFreed     int
	LiveCStrings      int

	LiveAllocations  int
	LiveStringArrays int
	LiveProjects     int

	LiveFileReaders      int
	LiveEventHandlers    int
	FileReaderDestroys   int
	EventHandlerDestroys int

	Violations []string
}

// LoadRecord describes one project load request as the engine decoded it.
type LoadRecord struct {
	ProjectFile string
	Implicit    bool
	Scenario    [][2]string
	Target      string
	Runtime     string
	ConfigFile  string
	AdaOnly     bool
}

// Engine is an in-memory abi.Engine. The zero value is not usable; call New.
type Engine struct {
	mu   sync.Mutex
	fsys fs.FS

	exc       *abi.Exception
	faults    map[string]abi.Exception
	after     map[string]abi.Exception
	nulls     map[string]bool
	loadFault *loadFault
	next      abi.Handle

	contexts map[abi.Handle]*analysisContext
	units    map[abi.Handle]*unit
	readers  map[abi.Handle]*fileReader
	handlers map[abi.Handle]*eventHandler
	projects map[abi.Handle]*project

	texts    map[*uint32]struct{}
	cstrings map[*byte]struct{}
	allocs   map[*byte]struct{}
	arrays   map[*abi.StringArray][]*byte

	stats Stats
	loads []LoadRecord
}

var _ abi.Engine = (*Engine)(nil)

// New returns an engine reading sources and project files from fsys.
func New(fsys fs.FS) *Engine {
	return &Engine{
		fsys:     fsys,
		faults:   make(map[string]abi.Exception),
		after:    make(map[string]abi.Exception),
		nulls:    make(map[string]bool),
		contexts: make(map[abi.Handle]*analysisContext),
		units:    make(map[abi.Handle]*unit),
		readers:  make(map[abi.Handle]*fileReader),
		handlers: make(map[abi.Handle]*eventHandler),
		projects: make(map[abi.Handle]*project),
		texts:    make(map[*uint32]struct{}),
		cstrings: make(map[*byte]struct{}),
		allocs:   make(map[*byte]struct{}),
		arrays:   make(map[*abi.StringArray][]*byte),
	}
}

// FailNext makes the next call to the named entry point (the Engine method
// name, e.g. "ContextDecRef") do nothing but raise the given exception.
func (e *Engine) FailNext(op string, kind abi.ExceptionKind, msg string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.faults[op] = abi.Exception{Kind: kind, Information: msg}
}

// RaiseAfterNext lets the next call to op complete normally, then raise the
// given exception. CreateFileReader and CreateEventHandler honour it.
func (e *Engine) RaiseAfterNext(op string, kind abi.ExceptionKind, msg string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.after[op] = abi.Exception{Kind: kind, Information: msg}
}

// NullNext makes the next call to op return a null handle (or false)
// without raising. CreateFileReader, CreateEventHandler, UnitReparseFromFile
// and UnitReparseFromBuffer honour it.
func (e *Engine) NullNext(op string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nulls[op] = true
}

// FailLoadWith makes the next project load, explicit or implicit, report
// messages. With withProject set a project handle is returned as well.
func (e *Engine) FailLoadWith(withProject bool, messages []string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loadFault = &loadFault{withProject: withProject, messages: messages}
}

type loadFault struct {
	withProject bool
	messages    []string
}

// Stats returns a snapshot of the counters.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.stats
	s.LiveContexts = len(e.contexts)
	s.LiveTexts = len(e.texts)
	s.LiveCStrings = len(e.cstrings)
	s.LiveAllocations = len(e.allocs)
	s.LiveStringArrays = len(e.arrays)
	s.LiveProjects = len(e.projects)
	s.LiveFileReaders = len(e.readers)
	s.LiveEventHandlers = len(e.handlers)
	s.Violations = append([]string(nil), e.stats.Violations...)
	return s
}

// Loads returns every project load request seen so far.
func (e *Engine) Loads() []LoadRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]LoadRecord(nil), e.loads...)
}

// ContextRefs returns the reference count of a live context, or 0.
func (e *Engine) ContextRefs(ctx abi.Handle) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if c, ok := e.contexts[ctx]; ok {
		return c.refs
	}
	return 0
}

// enter locks the engine and starts a foreign call: the exception slot is
// cleared and the call counted. It reports false when a fault was injected
// for op, in which case the exception is already set.
func (e *Engine) enter(op string) bool {
	e.mu.Lock()
	e.exc = nil
	e.stats.Calls++
	if f, ok := e.faults[op]; ok {
		delete(e.faults, op)
		e.exc = &f
		return false
	}
	return true
}

func (e *Engine) takeNullLocked(op string) bool {
	if !e.nulls[op] {
		return false
	}
	delete(e.nulls, op)
	return true
}

func (e *Engine) raiseAfterLocked(op string) {
	if f, ok := e.after[op]; ok {
		delete(e.after, op)
		e.exc = &f
	}
}

func (e *Engine) raise(kind abi.ExceptionKind, format string, args ...any) {
	e.exc = &abi.Exception{Kind: kind, Information: fmt.Sprintf(format, args...)}
}

func (e *Engine) violate(format string, args ...any) {
	e.stats.Violations = append(e.stats.Violations, fmt.Sprintf(format, args...))
}

func (e *Engine) newHandle() abi.Handle {
	e.next++
	return e.next
}

// LastException implements abi.Engine. Reading the slot is not a call and
// does not clear it.
func (e *Engine) LastException() *abi.Exception {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.exc == nil {
		return nil
	}
	exc := *e.exc
	return &exc
}

var exceptionNames = map[abi.ExceptionKind]string{
	abi.ExceptionFileReadError:              "File_Read_Error",
	abi.ExceptionBadTypeError:               "Bad_Type_Error",
	abi.ExceptionOutOfBoundsError:           "Out_Of_Bounds_Error",
	abi.ExceptionInvalidInput:               "Invalid_Input",
	abi.ExceptionInvalidSymbolError:         "Invalid_Symbol_Error",
	abi.ExceptionInvalidUnitNameError:       "Invalid_Unit_Name_Error",
	abi.ExceptionNativeException:            "Native_Exception",
	abi.ExceptionPreconditionFailure:        "Precondition_Failure",
	abi.ExceptionPropertyError:              "Property_Error",
	abi.ExceptionTemplateArgsError:          "Template_Args_Error",
	abi.ExceptionTemplateFormatError:        "Template_Format_Error",
	abi.ExceptionTemplateInstantiationError: "Template_Instantiation_Error",
	abi.ExceptionStaleReferenceError:        "Stale_Reference_Error",
	abi.ExceptionSyntaxError:                "Syntax_Error",
	abi.ExceptionUnknownCharset:             "Unknown_Charset",
	abi.ExceptionMalformedTreeError:         "Malformed_Tree_Error",
}

// ExceptionName implements abi.Engine.
func (e *Engine) ExceptionName(kind abi.ExceptionKind) string {
	if name, ok := exceptionNames[kind]; ok {
		return name
	}
	return fmt.Sprintf("Exception_%d", kind)
}

// CString implements abi.Engine. Host allocations are not engine calls.
func (e *Engine) CString(s string) *byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	p := cbytes(s)
	e.cstrings[p] = struct{}{}
	e.stats.CStringsAllocated++
	return p
}

// FreeCString implements abi.Engine.
func (e *Engine) FreeCString(p *byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if p == nil {
		return
	}
	if _, ok := e.cstrings[p]; !ok {
		e.violate("free of unknown or already freed host string %q", abi.GoString(p))
		return
	}
	delete(e.cstrings, p)
	e.stats.CStringsFreed++
}

// Free implements abi.Engine.
func (e *Engine) Free(p unsafe.Pointer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if p == nil {
		return
	}
	bp := (*byte)(p)
	if _, ok := e.allocs[bp]; !ok {
		e.violate("free of unknown or already freed engine memory")
		return
	}
	delete(e.allocs, bp)
}

// allocStringLocked returns an engine-owned NUL-terminated copy of s.
func (e *Engine) allocStringLocked(s string) *byte {
	p := cbytes(s)
	e.allocs[p] = struct{}{}
	return p
}

func cbytes(s string) *byte {
	b := make([]byte, len(s)+1)
	copy(b, s)
	return &b[0]
}
