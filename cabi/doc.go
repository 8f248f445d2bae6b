// Package cabi binds the libadalang shared library through cgo.
//
// The binding is only compiled with the libadalang build tag, since it needs
// libadalang.h on the include path and libadalang on the linker path:
//
//	CGO_CFLAGS=-I$LAL/include CGO_LDFLAGS=-L$LAL/lib go build -tags libadalang
//
// [New] returns an [abi.Engine] that forwards every call to the library.
// Callbacks registered through CreateFileReader and CreateEventHandler are
// dispatched by exported Go functions behind fixed C trampolines in shims.c.
package cabi
