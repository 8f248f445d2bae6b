// Package abi mirrors the libadalang C application binary interface in Go.
//
// The structs in this package have exactly the memory layout of their C
// counterparts in libadalang.h, so the cgo binding can pass pointers to them
// straight through. Nothing here owns memory: ownership rules live in the
// package that wraps the ABI.
//
// An [Engine] is one implementation of the entry points. Package cabi binds
// the real shared library; package abitest provides an in-memory engine for
// tests.
package abi

import "unsafe"

// Handle is an opaque engine pointer (analysis context, unit, project, file
// reader, event handler). Zero is the null handle.
type Handle uintptr

// Bool is the integer boolean used across the boundary: 0 is false, anything
// else is true.
type Bool int32

// BoolOf converts a Go bool.
func BoolOf(b bool) Bool {
	if b {
		return 1
	}
	return 0
}

// True reports whether b is non-zero.
func (b Bool) True() bool { return b != 0 }

// Text mirrors ada_text: a buffer of Unicode code points.
//
// When IsAllocated is non-zero the holder must call DestroyText exactly once.
// Otherwise the buffer is borrowed from the engine and only valid until the
// next call that may invalidate it.
type Text struct {
	Chars       *uint32
	Length      uintptr
	IsAllocated int32
}

// SourceLocation mirrors ada_source_location.
type SourceLocation struct {
	Line   uint32
	Column uint16
}

// SourceLocationRange mirrors ada_source_location_range.
type SourceLocationRange struct {
	Start SourceLocation
	End   SourceLocation
}

// Diagnostic mirrors ada_diagnostic.
type Diagnostic struct {
	SlocRange SourceLocationRange
	Message   Text
}

// ScenarioVariable mirrors ada_gpr_project_scenario_variable. Arrays of
// scenario variables are terminated by an entry whose Name is nil.
type ScenarioVariable struct {
	Name  *byte
	Value *byte
}

// StringArray mirrors the struct behind ada_string_array_ptr. Items points to
// Length NUL-terminated strings.
type StringArray struct {
	Length int32
	Items  **byte
}

// Strings copies the array contents into Go strings.
func (a *StringArray) Strings() []string {
	if a == nil || a.Length <= 0 || a.Items == nil {
		return nil
	}
	ptrs := unsafe.Slice(a.Items, int(a.Length))
	out := make([]string, len(ptrs))
	for i, p := range ptrs {
		out[i] = GoString(p)
	}
	return out
}

// Exception is a snapshot of the engine's last-exception slot.
type Exception struct {
	Kind        ExceptionKind
	Information string
}

// ExceptionKind mirrors ada_exception_kind. Values follow the engine's
// enumeration order.
type ExceptionKind int32

const (
	ExceptionFileReadError ExceptionKind = iota
	ExceptionBadTypeError
	ExceptionOutOfBoundsError
	ExceptionInvalidInput
	ExceptionInvalidSymbolError
	ExceptionInvalidUnitNameError
	ExceptionNativeException
	ExceptionPreconditionFailure
	ExceptionPropertyError
	ExceptionTemplateArgsError
	ExceptionTemplateFormatError
	ExceptionTemplateInstantiationError
	ExceptionStaleReferenceError
	ExceptionSyntaxError
	ExceptionUnknownCharset
	ExceptionMalformedTreeError
)

// GrammarRule selects the grammar rule used to parse a unit.
type GrammarRule int32

const (
	RuleCompilation GrammarRule = iota
	RuleName
	RuleExpr
	RuleStmts
	RuleBasicDecl
)

// SourceFilesMode selects which source files a project reports.
type SourceFilesMode int32

const (
	SourceFilesDefault SourceFilesMode = iota
	SourceFilesRootProject
	SourceFilesWholeProject
	SourceFilesWholeProjectWithRuntime
)
