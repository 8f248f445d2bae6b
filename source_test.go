package lal_test

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lal-go/lal"
)

func TestDecode(t *testing.T) {
	s, err := lal.Decode([]byte{'c', 'a', 'f', 0xe9}, "iso-8859-1", false)
	require.NoError(t, err)
	assert.Equal(t, "café", s)

	s, err = lal.Decode([]byte("\xef\xbb\xbfX := 1;"), "utf-8", true)
	require.NoError(t, err)
	assert.Equal(t, "X := 1;", s)

	s, err = lal.Decode([]byte{0xff, 0xfe, 'A', 0, 'd', 0, 'a', 0}, "", true)
	require.NoError(t, err)
	assert.Equal(t, "Ada", s, "BOM overrides the requested charset")

	_, err = lal.Decode([]byte("x"), "no-such-charset", false)
	var d lal.Diagnostic
	require.ErrorAs(t, err, &d)
	assert.Contains(t, d.Message, "Unknown charset")
}

func TestOSFileSource(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.adb"), []byte("null;"), 0o644))

	src := lal.OSFileSource{Root: dir}
	s, err := src.ReadFile(lal.FileRequest{Filename: "main.adb", Charset: "utf-8"})
	require.NoError(t, err)
	assert.Equal(t, "null;", s)

	_, err = src.ReadFile(lal.FileRequest{Filename: "gone.adb"})
	var d lal.Diagnostic
	require.ErrorAs(t, err, &d)
	assert.Equal(t, "Cannot open gone.adb", d.Message)
}

func TestOverlaySource(t *testing.T) {
	fallback := lal.FileReaderFunc(func(req lal.FileRequest) (string, error) {
		return "-- disk " + req.Filename, nil
	})
	o := lal.NewOverlaySource(fallback)

	assert.True(t, o.Set("a.adb", "A : Integer;"))
	assert.False(t, o.Set("a.adb", "A : Integer;"), "same contents")
	assert.True(t, o.Set("a.adb", "A : Float;"))

	sum, ok := o.Fingerprint("a.adb")
	assert.True(t, ok)
	assert.NotZero(t, sum)

	s, err := o.ReadFile(lal.FileRequest{Filename: "a.adb"})
	require.NoError(t, err)
	assert.Equal(t, "A : Float;", s)
	s, err = o.ReadFile(lal.FileRequest{Filename: "b.adb"})
	require.NoError(t, err)
	assert.Equal(t, "-- disk b.adb", s)

	assert.True(t, o.Remove("a.adb"))
	assert.False(t, o.Remove("a.adb"))
	_, ok = o.Fingerprint("a.adb")
	assert.False(t, ok)

	_, err = lal.NewOverlaySource(nil).ReadFile(lal.FileRequest{Filename: "x.adb"})
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestOverlaySourceDrivesReparse(t *testing.T) {
	lib, _ := newLib(t, fstest.MapFS{})
	overlay := lal.NewOverlaySource(nil)
	overlay.Set("m.adb", "X : Integer;")

	ctx := newReaderContext(t, lib, overlay)
	defer ctx.Release()

	unit, err := ctx.UnitFromFile("m.adb")
	require.NoError(t, err)
	before, _ := unit.TokenCount()

	if overlay.Set("m.adb", "X : Integer := 42;") {
		require.NoError(t, unit.ReparseFromFile(""))
	}
	after, _ := unit.TokenCount()
	assert.Equal(t, 5, before)
	assert.Equal(t, 7, after)
}
