package lal

import (
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubAbort(t *testing.T) *int {
	t.Helper()
	aborts := 0
	saved := processAbort
	processAbort = func() { aborts++ }
	t.Cleanup(func() { processAbort = saved })
	return &aborts
}

type destroyCounter struct{ n int }

func (d *destroyCounter) ReadFile(FileRequest) (string, error) { return "", nil }
func (d *destroyCounter) Destroy()                             { d.n++ }

func TestDestroyTrampolineRunsOnce(t *testing.T) {
	aborts := stubAbort(t)
	lib := New(nil, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	src := &destroyCounter{}
	key := register(&registration{id: uuid.New(), kind: kindFileReader, lib: lib, source: src})
	destroyTrampoline(key)
	assert.Equal(t, 1, src.n)
	assert.Zero(t, *aborts)

	destroyTrampoline(key)
	assert.Equal(t, 1, src.n, "host state is never destroyed twice")
	assert.Equal(t, 1, *aborts, "a second destroy is fatal")
}

func TestLookupRejectsWrongKind(t *testing.T) {
	aborts := stubAbort(t)
	lib := New(nil)

	key := register(&registration{id: uuid.New(), kind: kindEventHandler, lib: lib, listener: EventFuncs{}})
	defer unregister(key)

	assert.Nil(t, lookup(key, kindFileReader))
	assert.Equal(t, 1, *aborts)
	require.NotNil(t, lookup(key, kindEventHandler))
	assert.Equal(t, 1, *aborts)
}

func TestCallbackKindString(t *testing.T) {
	assert.Equal(t, "file reader", kindFileReader.String())
	assert.Equal(t, "event handler", kindEventHandler.String())
	assert.Equal(t, "callbackKind(9)", callbackKind(9).String())
}
