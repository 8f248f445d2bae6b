package lal

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// DefaultCharset is assumed when the engine does not name one.
const DefaultCharset = "utf-8"

// OSFileSource reads sources from disk and decodes them with the requested
// charset. Relative names are resolved against Root.
type OSFileSource struct {
	Root string
}

func (s OSFileSource) ReadFile(req FileRequest) (string, error) {
	name := req.Filename
	if s.Root != "" && !filepath.IsAbs(name) {
		name = filepath.Join(s.Root, name)
	}
	raw, err := os.ReadFile(name)
	if err != nil {
		return "", Diagnostic{Range: StartOfFile, Message: "Cannot open " + req.Filename}
	}
	return Decode(raw, req.Charset, req.ReadBOM)
}

// Decode converts raw bytes in charset to a Go string. With readBOM set, a
// byte order mark selects the encoding and is dropped.
func Decode(raw []byte, charset string, readBOM bool) (string, error) {
	if charset == "" {
		charset = DefaultCharset
	}
	enc, err := ianaindex.IANA.Encoding(charset)
	if err != nil || enc == nil {
		return "", Diagnostic{Range: StartOfFile, Message: fmt.Sprintf("Unknown charset %q", charset)}
	}
	var t transform.Transformer = enc.NewDecoder()
	if readBOM {
		t = unicode.BOMOverride(t)
	}
	out, _, err := transform.Bytes(t, raw)
	if err != nil {
		return "", Diagnostic{Range: StartOfFile, Message: fmt.Sprintf("Could not decode source as %q", charset)}
	}
	return string(out), nil
}

// OverlaySource serves in-memory buffers in front of a fallback source, for
// editors that analyze unsaved files.
type OverlaySource struct {
	fallback FileSource

	mu    sync.RWMutex
	files map[string]overlayFile
}

type overlayFile struct {
	contents string
	sum      uint64
}

// NewOverlaySource returns an overlay over fallback, which may be nil.
func NewOverlaySource(fallback FileSource) *OverlaySource {
	return &OverlaySource{fallback: fallback, files: make(map[string]overlayFile)}
}

// Set stores contents for name and reports whether they differ from what
// was stored before, so callers know when a reparse is needed.
func (o *OverlaySource) Set(name, contents string) bool {
	sum := xxhash.Sum64String(contents)
	o.mu.Lock()
	defer o.mu.Unlock()
	prev, ok := o.files[name]
	o.files[name] = overlayFile{contents: contents, sum: sum}
	return !ok || prev.sum != sum
}

// Remove drops the buffer for name. It reports whether one existed.
func (o *OverlaySource) Remove(name string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.files[name]
	delete(o.files, name)
	return ok
}

// Fingerprint returns the hash of the buffer stored for name.
func (o *OverlaySource) Fingerprint(name string) (uint64, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	f, ok := o.files[name]
	return f.sum, ok
}

func (o *OverlaySource) ReadFile(req FileRequest) (string, error) {
	o.mu.RLock()
	f, ok := o.files[req.Filename]
	o.mu.RUnlock()
	if ok {
		return f.contents, nil
	}
	if o.fallback == nil {
		return "", fmt.Errorf("%s: %w", req.Filename, fs.ErrNotExist)
	}
	return o.fallback.ReadFile(req)
}

// Destroy forwards to the fallback when it wants to know.
func (o *OverlaySource) Destroy() {
	if d, ok := o.fallback.(Destroyer); ok {
		d.Destroy()
	}
}
