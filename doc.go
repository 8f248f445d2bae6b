// Package lal wraps the libadalang C interface for Go programs.
//
// # Overview
//
// libadalang is a pre-compiled Ada analysis engine reached only through a C
// ABI. The engine manages memory by reference counting, reports errors
// through a process-wide last-exception slot and calls back into the host
// through function pointers plus an opaque data value. lal turns these
// conventions into Go values:
//
//   - [Context] holds one reference to an analysis context; Clone and
//     Release keep the engine's count balanced
//   - [Unit] is a non-owning view of an analysis unit
//   - [Text] and [TextView] separate owned from borrowed text buffers
//   - [Exception] carries the engine's last error; [LocalError] marks input
//     the wrapper rejected before calling the engine
//   - [FileReader] and [EventHandler] register Go callbacks with the engine
//   - [ProjectBuilder] and [Project] load GPR project files
//
// # Quick Start
//
//	import (
//	    "github.com/lal-go/lal"
//	    "github.com/lal-go/lal/cabi"
//	)
//
//	func main() {
//	    lib := lal.New(cabi.New())
//
//	    prj, err := lib.NewProjectBuilder("app.gpr").Load()
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    defer prj.Release()
//
//	    ctx, err := prj.NewContext()
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    defer ctx.Release()
//
//	    unit, _ := ctx.UnitFromFile("src/main.adb")
//	    diags, _ := unit.Diagnostics()
//	    for _, d := range diags {
//	        fmt.Println(d)
//	    }
//	}
//
// # Engines
//
// Every foreign entry point goes through an [abi.Engine]. Package cabi binds
// the real shared library and is only built with the libadalang build tag.
// Package abitest implements the same contract in memory and is what the
// tests of this module run against.
//
// # Ownership
//
// Values returned by lal that hold an engine reference have a Release
// method. Release is idempotent, but every value must be released: the
// garbage collector never does it. Units are views: they stay valid while
// their context is alive.
//
// Text buffers returned by the engine are either owned by the caller or
// borrowed. [TakeText] adopts an owned buffer; [ViewText] reads a borrowed
// one, which must be copied before the next engine call.
//
// # Callbacks
//
// A [FileSource] replaces the engine's file reading:
//
//	overlay := lal.NewOverlaySource(lal.OSFileSource{})
//	overlay.Set("main.adb", "procedure Main is begin null; end;")
//
//	reader, _ := lib.NewFileReader(overlay)
//	defer reader.Release()
//	ctx, _ := lib.NewContextBuilder().FileReader(reader).Finish()
//
// An [EventListener] is told when units are parsed and when analysis needs
// another unit. The engine holds each registration until its last reference
// is gone, then calls its destroy callback exactly once; sources and
// listeners implementing [Destroyer] see that call.
//
// Panics in callbacks are recovered before they reach the engine. A file
// source that panics produces a diagnostic on the unit.
//
// # Errors
//
// Fallible calls return either an [*Exception] from the engine, a
// [*ProjectError] listing project load messages, or a [*LocalError]. Use
// [IsForeign] and [IsLocal] to tell them apart, and errors.Is with the Err
// sentinels for local causes.
//
// Teardown cannot fail: Release logs engine errors instead. Engine errors
// that would leave memory ownership undefined are logged and abort the
// process; see [WithAbortFunc].
//
// # Concurrency
//
// The last-exception slot is shared by all callers, so a Library must not be
// used from several goroutines at once without external locking.
package lal
