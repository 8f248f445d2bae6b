package lal_test

import (
	"errors"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lal-go/lal"
	"github.com/lal-go/lal/abi"
)

func TestLastErrorFollowsEachCall(t *testing.T) {
	lib, eng := newLib(t, fstest.MapFS{})

	eng.FailNext("AllocateAnalysisContext", abi.ExceptionNativeException, "boom")
	_, err := lib.NewContextBuilder().Finish()
	require.Error(t, err)

	exc := lib.LastError()
	require.NotNil(t, exc, "failed call leaves the slot set")
	assert.Equal(t, "Native_Exception: boom", exc.Error())
	assert.Equal(t, exc, err)

	ctx, err := lib.NewContextBuilder().Finish()
	require.NoError(t, err)
	assert.Nil(t, lib.LastError(), "successful call clears the slot")
	ctx.Release()
}

func TestErrorClasses(t *testing.T) {
	local := &lal.LocalError{Op: "x", Err: lal.ErrReleased}
	assert.True(t, lal.IsLocal(local))
	assert.False(t, lal.IsForeign(local))
	assert.True(t, errors.Is(local, lal.ErrReleased))
	assert.Equal(t, "lal: x: handle already released", local.Error())

	prj := &lal.ProjectError{File: "a.gpr", Messages: []string{"one", "two"}}
	assert.True(t, lal.IsForeign(prj))
	assert.Equal(t, "lal: loading a.gpr: one\ntwo", prj.Error())

	exc := &lal.Exception{Kind: abi.ExceptionPropertyError, Name: "Property_Error", Message: "m"}
	assert.True(t, lal.IsForeign(exc))
	assert.False(t, lal.IsLocal(exc))
}

func TestReleaseLogsAndIgnores(t *testing.T) {
	logOpt, logs := captureLog()
	lib, eng := newLib(t, fstest.MapFS{}, logOpt)

	ctx, err := lib.NewContextBuilder().Finish()
	require.NoError(t, err)
	h := ctx.Handle()

	eng.FailNext("ContextDecRef", abi.ExceptionPreconditionFailure, "refused")
	ctx.Release()
	assert.Contains(t, logs.String(), "ignoring engine exception")
	assert.Contains(t, logs.String(), "op=ContextDecRef")
	assert.Equal(t, 1, eng.ContextRefs(h), "failed decrement left the reference")

	// The wrapper gave up its reference; drop it through the engine.
	eng.ContextDecRef(h)
}
