package lal

import (
	"errors"
	"fmt"
	"sync/atomic"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/lal-go/lal/abi"
)

// FileRequest describes a file the engine wants to read.
type FileRequest struct {
	Filename string
	Charset  string
	// ReadBOM asks the reader to honour a byte order mark.
	ReadBOM bool
}

// FileSource supplies file contents to the engine in place of its own file
// reading. A returned Diagnostic keeps its range; any other error is
// reported at the start of the file.
type FileSource interface {
	ReadFile(req FileRequest) (string, error)
}

// FileReaderFunc adapts a function to FileSource.
type FileReaderFunc func(req FileRequest) (string, error)

func (f FileReaderFunc) ReadFile(req FileRequest) (string, error) { return f(req) }

// FileReader is the engine's reference to a registered FileSource. The
// source stays registered until the last holder (this wrapper or a context
// using it) is released.
type FileReader struct {
	lib      *Library
	h        abi.Handle
	id       uuid.UUID
	released atomic.Bool
}

// NewFileReader registers src with the engine.
func (l *Library) NewFileReader(src FileSource) (*FileReader, error) {
	r := &registration{id: uuid.New(), kind: kindFileReader, lib: l, source: src}
	data := register(r)
	h, err := wrap(l, l.engine.CreateFileReader(data, destroyTrampoline, readFileTrampoline))
	h, err = l.settle("CreateFileReader", "DecRefFileReader", data, h, err, l.engine.DecRefFileReader)
	if err != nil {
		return nil, err
	}
	l.logger.Debug("registration created", "registration", r.id, "kind", r.kind.String())
	return &FileReader{lib: l, h: h, id: r.id}, nil
}

// Handle returns the raw engine handle.
func (f *FileReader) Handle() abi.Handle { return f.h }

// Release drops this wrapper's reference. Further calls do nothing.
func (f *FileReader) Release() {
	if f == nil || !f.released.CompareAndSwap(false, true) {
		return
	}
	f.lib.engine.DecRefFileReader(f.h)
	f.lib.logAndIgnore("DecRefFileReader")
}

func (f *FileReader) handle(op string) (abi.Handle, error) {
	if f.released.Load() {
		return 0, localError(op, fmt.Errorf("file reader: %w", ErrReleased))
	}
	return f.h, nil
}

func readFileTrampoline(data uintptr, filename, charset *byte, readBOM abi.Bool, buffer *abi.Text, diagnostic *abi.Diagnostic) {
	r := lookup(data, kindFileReader)
	if r == nil {
		return
	}
	name, cs := abi.GoString(filename), abi.GoString(charset)
	if !utf8.ValidString(name) || !utf8.ValidString(cs) {
		r.writeDiagnostic(diagnostic, Diagnostic{Range: StartOfFile, Message: "file name or charset is not valid UTF-8"})
		return
	}

	contents, err := r.readFile(FileRequest{Filename: name, Charset: cs, ReadBOM: readBOM.True()})
	if err != nil {
		var d Diagnostic
		var dp *Diagnostic
		switch {
		case errors.As(err, &d):
		case errors.As(err, &dp) && dp != nil:
			d = *dp
		default:
			d = Diagnostic{Range: StartOfFile, Message: err.Error()}
		}
		// An empty message reads as success to the engine.
		if d.Message == "" {
			d.Message = "cannot read " + name
		}
		r.writeDiagnostic(diagnostic, d)
		return
	}

	txt, err := r.lib.NewText(contents)
	if err != nil {
		r.writeDiagnostic(diagnostic, Diagnostic{Range: StartOfFile, Message: "cannot pass contents of " + name + ": " + err.Error()})
		return
	}
	*buffer = txt.IntoRaw()
}

func (r *registration) readFile(req FileRequest) (contents string, err error) {
	defer func() {
		if p := recover(); p != nil {
			r.lib.logger.Error("panic in engine callback",
				"registration", r.id, "kind", r.kind.String(), "callback", "read", "panic", p)
			err = fmt.Errorf("reading %s: file source panicked: %v", req.Filename, p)
		}
	}()
	return r.source.ReadFile(req)
}

func (r *registration) writeDiagnostic(out *abi.Diagnostic, d Diagnostic) {
	raw, err := r.lib.rawDiagnostic(d)
	if err != nil {
		r.lib.logger.Error("cannot report file reader diagnostic",
			"registration", r.id, "message", d.Message, "err", err)
		return
	}
	*out = raw
}
