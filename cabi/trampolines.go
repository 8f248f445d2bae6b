//go:build cgo && libadalang

package cabi

/*
#include <stdint.h>
*/
import "C"

import (
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/lal-go/lal/abi"
)

// record holds the Go side of one callback object created through the
// engine. libadalang only sees its key.
type record struct {
	data      uintptr
	destroy   abi.DestroyFunc
	read      abi.ReadFileFunc
	requested abi.UnitRequestedFunc
	parsed    abi.UnitParsedFunc
}

var (
	records   sync.Map
	recordSeq atomic.Uintptr
)

func addRecord(r *record) uintptr {
	key := recordSeq.Add(1)
	records.Store(key, r)
	return key
}

// loadRecord panics on unknown keys: libadalang calling back into a destroyed
// object leaves nothing sane to return to.
func loadRecord(key C.uintptr_t) *record {
	v, ok := records.Load(uintptr(key))
	if !ok {
		panic(fmt.Sprintf("cabi: callback for unknown record %d", uintptr(key)))
	}
	return v.(*record)
}

//export lalgoDestroy
func lalgoDestroy(key C.uintptr_t) {
	v, ok := records.LoadAndDelete(uintptr(key))
	if !ok {
		panic(fmt.Sprintf("cabi: destroy for unknown record %d", uintptr(key)))
	}
	r := v.(*record)
	r.destroy(r.data)
}

//export lalgoReadFile
func lalgoReadFile(key C.uintptr_t, filename, charset *C.char, readBOM C.int, buffer, diagnostic unsafe.Pointer) {
	r := loadRecord(key)
	r.read(r.data,
		(*byte)(unsafe.Pointer(filename)),
		(*byte)(unsafe.Pointer(charset)),
		abi.Bool(readBOM),
		(*abi.Text)(buffer),
		(*abi.Diagnostic)(diagnostic),
	)
}

//export lalgoUnitRequested
func lalgoUnitRequested(key, context C.uintptr_t, name unsafe.Pointer, from C.uintptr_t, found, isNotFoundError C.int) {
	r := loadRecord(key)
	r.requested(r.data, abi.Handle(context), (*abi.Text)(name), abi.Handle(from), abi.Bool(found), abi.Bool(isNotFoundError))
}

//export lalgoUnitParsed
func lalgoUnitParsed(key, context, unit C.uintptr_t, reparsed C.int) {
	r := loadRecord(key)
	r.parsed(r.data, abi.Handle(context), abi.Handle(unit), abi.Bool(reparsed))
}
