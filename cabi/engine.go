//go:build cgo && libadalang

package cabi

/*
#cgo LDFLAGS: -ladalang
#include <stdlib.h>
#include "libadalang.h"
#include "shims.h"
*/
import "C"

import (
	"fmt"
	"unsafe"

	"github.com/lal-go/lal/abi"
)

// Engine forwards abi calls to libadalang. It has no state of its own; all
// values share the library's process-wide exception slot.
type Engine struct{}

var _ abi.Engine = (*Engine)(nil)

// New returns the libadalang engine.
func New() *Engine { return &Engine{} }

func init() {
	layout("ada_text", unsafe.Sizeof(abi.Text{}), C.sizeof_ada_text)
	layout("ada_source_location", unsafe.Sizeof(abi.SourceLocation{}), C.sizeof_ada_source_location)
	layout("ada_source_location_range", unsafe.Sizeof(abi.SourceLocationRange{}), C.sizeof_ada_source_location_range)
	layout("ada_diagnostic", unsafe.Sizeof(abi.Diagnostic{}), C.sizeof_ada_diagnostic)
	layout("ada_gpr_project_scenario_variable", unsafe.Sizeof(abi.ScenarioVariable{}), C.sizeof_ada_gpr_project_scenario_variable)
	layout("ada_analysis_context", unsafe.Sizeof(abi.Handle(0)), C.sizeof_ada_analysis_context)
}

// layout refuses to run against a header whose structs differ from the
// mirrors in package abi.
func layout(name string, goSize uintptr, cSize C.size_t) {
	if goSize != uintptr(cSize) {
		panic(fmt.Sprintf("cabi: %s is %d bytes in libadalang.h but %d in package abi", name, cSize, goSize))
	}
}

// ptr turns an engine handle back into the C pointer it came from. Handles
// always point into engine memory, never into the Go heap.
func ptr(h abi.Handle) unsafe.Pointer { return unsafe.Pointer(uintptr(h)) }

func handle(p unsafe.Pointer) abi.Handle { return abi.Handle(uintptr(p)) }

func cstr(p *byte) *C.char { return (*C.char)(unsafe.Pointer(p)) }

func cbool(b abi.Bool) C.int { return C.int(b) }

func (*Engine) CString(s string) *byte { return (*byte)(unsafe.Pointer(C.CString(s))) }

func (*Engine) FreeCString(p *byte) { C.free(unsafe.Pointer(p)) }

func (*Engine) Free(p unsafe.Pointer) { C.ada_free(p) }

func (*Engine) LastException() *abi.Exception {
	var kind C.int
	var info *C.char
	if C.lalgo_last_exception(&kind, &info) == 0 {
		return nil
	}
	return &abi.Exception{Kind: abi.ExceptionKind(kind), Information: C.GoString(info)}
}

func (*Engine) ExceptionName(kind abi.ExceptionKind) string {
	return C.GoString(C.ada_exception_name(C.ada_exception_kind(kind)))
}

func (*Engine) TextFromUTF8(s string, out *abi.Text) {
	C.ada_text_from_utf8((*C.char)(unsafe.Pointer(abi.StringData(s))), C.size_t(len(s)), (*C.ada_text)(unsafe.Pointer(out)))
}

func (*Engine) DestroyText(t *abi.Text) { C.ada_destroy_text((*C.ada_text)(unsafe.Pointer(t))) }

func (*Engine) AllocateAnalysisContext() abi.Handle {
	return handle(unsafe.Pointer(C.ada_allocate_analysis_context()))
}

func (*Engine) InitializeAnalysisContext(ctx abi.Handle, charset *byte, fileReader, unitProvider, eventHandler abi.Handle, withTrivia abi.Bool, tabStop int32) {
	C.ada_initialize_analysis_context(
		C.ada_analysis_context(ptr(ctx)),
		cstr(charset),
		C.ada_file_reader(ptr(fileReader)),
		C.ada_unit_provider(ptr(unitProvider)),
		C.ada_event_handler(ptr(eventHandler)),
		cbool(withTrivia),
		C.int(tabStop),
	)
}

func (*Engine) ContextIncRef(ctx abi.Handle) abi.Handle {
	return handle(unsafe.Pointer(C.ada_context_incref(C.ada_analysis_context(ptr(ctx)))))
}

func (*Engine) ContextDecRef(ctx abi.Handle) {
	C.ada_context_decref(C.ada_analysis_context(ptr(ctx)))
}

func (*Engine) UnitFromFile(ctx abi.Handle, filename, charset *byte, reparse abi.Bool, rule abi.GrammarRule) abi.Handle {
	return handle(unsafe.Pointer(C.ada_get_analysis_unit_from_file(
		C.ada_analysis_context(ptr(ctx)), cstr(filename), cstr(charset), cbool(reparse), grammarRule(rule))))
}

func (*Engine) UnitFromBuffer(ctx abi.Handle, filename, charset, buffer *byte, size uintptr, rule abi.GrammarRule) abi.Handle {
	return handle(unsafe.Pointer(C.ada_get_analysis_unit_from_buffer(
		C.ada_analysis_context(ptr(ctx)), cstr(filename), cstr(charset), cstr(buffer), C.size_t(size), grammarRule(rule))))
}

func grammarRule(r abi.GrammarRule) C.ada_grammar_rule {
	switch r {
	case abi.RuleName:
		return C.ADA_GRAMMAR_RULE_NAME_RULE
	case abi.RuleExpr:
		return C.ADA_GRAMMAR_RULE_EXPR_RULE
	case abi.RuleStmts:
		return C.ADA_GRAMMAR_RULE_STMTS_RULE
	case abi.RuleBasicDecl:
		return C.ADA_GRAMMAR_RULE_BASIC_DECL_RULE
	default:
		return C.ADA_GRAMMAR_RULE_COMPILATION_RULE
	}
}

func (*Engine) UnitContext(unit abi.Handle) abi.Handle {
	return handle(unsafe.Pointer(C.ada_unit_context(C.ada_analysis_unit(ptr(unit)))))
}

func (*Engine) UnitFilename(unit abi.Handle) *byte {
	return (*byte)(unsafe.Pointer(C.ada_unit_filename(C.ada_analysis_unit(ptr(unit)))))
}

func (*Engine) UnitTokenCount(unit abi.Handle) int32 {
	return int32(C.ada_unit_token_count(C.ada_analysis_unit(ptr(unit))))
}

func (*Engine) UnitTriviaCount(unit abi.Handle) int32 {
	return int32(C.ada_unit_trivia_count(C.ada_analysis_unit(ptr(unit))))
}

func (*Engine) UnitDiagnosticCount(unit abi.Handle) uint32 {
	return uint32(C.ada_unit_diagnostic_count(C.ada_analysis_unit(ptr(unit))))
}

func (*Engine) UnitDiagnostic(unit abi.Handle, n uint32, out *abi.Diagnostic) abi.Bool {
	return abi.Bool(C.ada_unit_diagnostic(C.ada_analysis_unit(ptr(unit)), C.unsigned(n), (*C.ada_diagnostic)(unsafe.Pointer(out))))
}

func (*Engine) UnitReparseFromFile(unit abi.Handle, charset *byte) abi.Bool {
	return abi.Bool(C.ada_unit_reparse_from_file(C.ada_analysis_unit(ptr(unit)), cstr(charset)))
}

func (*Engine) UnitReparseFromBuffer(unit abi.Handle, charset, buffer *byte, size uintptr) abi.Bool {
	return abi.Bool(C.ada_unit_reparse_from_buffer(C.ada_analysis_unit(ptr(unit)), cstr(charset), cstr(buffer), C.size_t(size)))
}

func (*Engine) CreateFileReader(data uintptr, destroy abi.DestroyFunc, read abi.ReadFileFunc) abi.Handle {
	key := addRecord(&record{data: data, destroy: destroy, read: read})
	h := abi.Handle(C.lalgo_create_file_reader(C.uintptr_t(key)))
	if h == 0 {
		records.Delete(key)
	}
	return h
}

func (*Engine) DecRefFileReader(reader abi.Handle) {
	C.ada_dec_ref_file_reader(C.ada_file_reader(ptr(reader)))
}

func (*Engine) CreateEventHandler(data uintptr, destroy abi.DestroyFunc, requested abi.UnitRequestedFunc, parsed abi.UnitParsedFunc) abi.Handle {
	key := addRecord(&record{data: data, destroy: destroy, requested: requested, parsed: parsed})
	h := abi.Handle(C.lalgo_create_event_handler(C.uintptr_t(key)))
	if h == 0 {
		records.Delete(key)
	}
	return h
}

func (*Engine) DecRefEventHandler(handler abi.Handle) {
	C.ada_dec_ref_event_handler(C.ada_event_handler(ptr(handler)))
}

func (*Engine) GPRProjectLoad(projectFile *byte, scenarioVars *abi.ScenarioVariable, target, runtime, configFile *byte, adaOnly abi.Bool, project *abi.Handle, errors **abi.StringArray) {
	C.ada_gpr_project_load(
		cstr(projectFile),
		(*C.ada_gpr_project_scenario_variable)(unsafe.Pointer(scenarioVars)),
		cstr(target), cstr(runtime), cstr(configFile),
		cbool(adaOnly),
		(*C.ada_gpr_project)(unsafe.Pointer(project)),
		(*C.ada_string_array_ptr)(unsafe.Pointer(errors)),
	)
}

func (*Engine) GPRProjectLoadImplicit(target, runtime, configFile *byte, project *abi.Handle, errors **abi.StringArray) {
	C.ada_gpr_project_load_implicit(
		cstr(target), cstr(runtime), cstr(configFile),
		(*C.ada_gpr_project)(unsafe.Pointer(project)),
		(*C.ada_string_array_ptr)(unsafe.Pointer(errors)),
	)
}

func (*Engine) GPRProjectFree(project abi.Handle) {
	C.ada_gpr_project_free(C.ada_gpr_project(ptr(project)))
}

func (*Engine) GPRProjectSourceFiles(project abi.Handle, mode abi.SourceFilesMode, projects **byte, projectsLength int32) *abi.StringArray {
	arr := C.ada_gpr_project_source_files(
		C.ada_gpr_project(ptr(project)), C.int(mode), (**C.char)(unsafe.Pointer(projects)), C.int(projectsLength))
	return (*abi.StringArray)(unsafe.Pointer(arr))
}

func (*Engine) GPRProjectInitializeContext(project, ctx abi.Handle, subproject *byte, eventHandler abi.Handle, withTrivia abi.Bool, tabStop int32) {
	C.ada_gpr_project_initialize_context(
		C.ada_gpr_project(ptr(project)),
		C.ada_analysis_context(ptr(ctx)),
		cstr(subproject),
		C.ada_event_handler(ptr(eventHandler)),
		cbool(withTrivia),
		C.int(tabStop),
	)
}

func (*Engine) FreeStringArray(arr *abi.StringArray) {
	C.ada_free_string_array((C.ada_string_array_ptr)(unsafe.Pointer(arr)))
}
