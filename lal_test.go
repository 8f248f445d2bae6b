package lal_test

import (
	"bytes"
	"io"
	"log/slog"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"

	"github.com/lal-go/lal"
	"github.com/lal-go/lal/abi/abitest"
)

// newLib returns a library over an in-memory engine. On cleanup it checks
// that every buffer, string and array crossing the boundary was released.
func newLib(t *testing.T, files fstest.MapFS, opts ...lal.Option) (*lal.Library, *abitest.Engine) {
	t.Helper()
	eng := abitest.New(files)
	base := []lal.Option{
		lal.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		lal.WithAbortFunc(func() { t.Errorf("unexpected abort") }),
	}
	lib := lal.New(eng, append(base, opts...)...)
	t.Cleanup(func() {
		s := eng.Stats()
		assert.Empty(t, s.Violations)
		assert.Zero(t, s.LiveTexts, "texts leaked")
		assert.Zero(t, s.LiveCStrings, "host strings leaked")
		assert.Zero(t, s.LiveAllocations, "engine strings leaked")
		assert.Zero(t, s.LiveStringArrays, "string arrays leaked")
	})
	return lib, eng
}

// captureLog returns an option logging into the returned buffer.
func captureLog() (lal.Option, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return lal.WithLogger(logger), &buf
}
