package abi

import "unsafe"

// Trampoline signatures. The data argument is the opaque value given at
// registration time; pointer arguments are only valid during the call.
type (
	DestroyFunc       func(data uintptr)
	ReadFileFunc      func(data uintptr, filename, charset *byte, readBOM Bool, buffer *Text, diagnostic *Diagnostic)
	UnitRequestedFunc func(data uintptr, context Handle, name *Text, from Handle, found, isNotFoundError Bool)
	UnitParsedFunc    func(data uintptr, context Handle, unit Handle, reparsed Bool)
)

// Engine is the fixed set of foreign entry points.
//
// Every fallible entry point may set the last-exception slot, which must be
// read with LastException before the next call. Implementations are not
// required to be safe for concurrent use.
type Engine interface {
	// Host-side NUL-terminated strings handed to the engine.
	CString(s string) *byte
	FreeCString(p *byte)
	// Free releases memory allocated by the engine (e.g. unit filenames).
	Free(p unsafe.Pointer)

	LastException() *Exception
	ExceptionName(kind ExceptionKind) string

	TextFromUTF8(s string, out *Text)
	DestroyText(t *Text)

	AllocateAnalysisContext() Handle
	InitializeAnalysisContext(ctx Handle, charset *byte, fileReader, unitProvider, eventHandler Handle, withTrivia Bool, tabStop int32)
	ContextIncRef(ctx Handle) Handle
	ContextDecRef(ctx Handle)
	UnitFromFile(ctx Handle, filename, charset *byte, reparse Bool, rule GrammarRule) Handle
	UnitFromBuffer(ctx Handle, filename, charset, buffer *byte, size uintptr, rule GrammarRule) Handle

	UnitContext(unit Handle) Handle
	UnitFilename(unit Handle) *byte
	UnitTokenCount(unit Handle) int32
	UnitTriviaCount(unit Handle) int32
	UnitDiagnosticCount(unit Handle) uint32
	UnitDiagnostic(unit Handle, n uint32, out *Diagnostic) Bool
	UnitReparseFromFile(unit Handle, charset *byte) Bool
	UnitReparseFromBuffer(unit Handle, charset, buffer *byte, size uintptr) Bool

	CreateFileReader(data uintptr, destroy DestroyFunc, read ReadFileFunc) Handle
	DecRefFileReader(reader Handle)
	CreateEventHandler(data uintptr, destroy DestroyFunc, requested UnitRequestedFunc, parsed UnitParsedFunc) Handle
	DecRefEventHandler(handler Handle)

	// GPRProjectLoad takes a pointer to the first element of a scenario
	// variable array terminated by a zero entry, or nil.
	GPRProjectLoad(projectFile *byte, scenarioVars *ScenarioVariable, target, runtime, configFile *byte, adaOnly Bool, project *Handle, errors **StringArray)
	GPRProjectLoadImplicit(target, runtime, configFile *byte, project *Handle, errors **StringArray)
	GPRProjectFree(project Handle)
	GPRProjectSourceFiles(project Handle, mode SourceFilesMode, projects **byte, projectsLength int32) *StringArray
	GPRProjectInitializeContext(project, ctx Handle, subproject *byte, eventHandler Handle, withTrivia Bool, tabStop int32)
	FreeStringArray(arr *StringArray)
}
