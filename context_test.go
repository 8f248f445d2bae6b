package lal_test

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lal-go/lal"
	"github.com/lal-go/lal/abi"
)

func TestContextRefCountBalanced(t *testing.T) {
	lib, eng := newLib(t, fstest.MapFS{})

	ctx, err := lib.NewContextBuilder().Finish()
	require.NoError(t, err)
	h := ctx.Handle()
	assert.Equal(t, 1, eng.ContextRefs(h))

	var clones []*lal.Context
	for range 3 {
		c, err := ctx.Clone()
		require.NoError(t, err)
		assert.Equal(t, h, c.Handle())
		clones = append(clones, c)
	}
	assert.Equal(t, 4, eng.ContextRefs(h))

	ctx.Release()
	ctx.Release()
	assert.Equal(t, 3, eng.ContextRefs(h))
	for _, c := range clones {
		c.Release()
	}

	s := eng.Stats()
	assert.Zero(t, s.LiveContexts)
	assert.Equal(t, 3, s.ContextIncRefs)
	assert.Equal(t, 4, s.ContextDecRefs)
}

func TestContextUseAfterRelease(t *testing.T) {
	lib, _ := newLib(t, fstest.MapFS{})

	ctx, err := lib.NewContextBuilder().Finish()
	require.NoError(t, err)
	ctx.Release()

	_, err = ctx.Clone()
	assert.ErrorIs(t, err, lal.ErrReleased)
	assert.True(t, lal.IsLocal(err))

	_, err = ctx.UnitFromFile("main.adb")
	assert.ErrorIs(t, err, lal.ErrReleased)

	var nilCtx *lal.Context
	nilCtx.Release()
}

func TestContextBuilderRejectsOptionsBeforeCalling(t *testing.T) {
	lib, eng := newLib(t, fstest.MapFS{})

	for _, n := range []int{0, -1, 256} {
		_, err := lib.NewContextBuilder().TabStop(n).Finish()
		assert.ErrorIs(t, err, lal.ErrInvalidOption)
	}
	_, err := lib.NewContextBuilder().Subproject("lib").Finish()
	assert.ErrorIs(t, err, lal.ErrInvalidOption)
	assert.Zero(t, eng.Stats().Calls)
}

func TestContextBuilderFailures(t *testing.T) {
	t.Run("allocation", func(t *testing.T) {
		lib, eng := newLib(t, fstest.MapFS{})
		eng.FailNext("AllocateAnalysisContext", abi.ExceptionNativeException, "no memory")
		_, err := lib.NewContextBuilder().Finish()
		assert.True(t, lal.IsForeign(err))
		assert.Zero(t, eng.Stats().ContextDecRefs, "nothing allocated, nothing owed")
	})

	t.Run("initialization", func(t *testing.T) {
		lib, eng := newLib(t, fstest.MapFS{})
		eng.FailNext("InitializeAnalysisContext", abi.ExceptionUnknownCharset, "klingon")
		_, err := lib.NewContextBuilder().Charset("klingon").Finish()
		var exc *lal.Exception
		require.ErrorAs(t, err, &exc)
		assert.Equal(t, "Unknown_Charset", exc.Name)
		s := eng.Stats()
		assert.Zero(t, s.LiveContexts, "partially initialized context released")
		assert.Equal(t, 1, s.ContextDecRefs)
	})
}

func TestUnitFromMissingFile(t *testing.T) {
	lib, _ := newLib(t, fstest.MapFS{})

	ctx, err := lib.NewContextBuilder().Finish()
	require.NoError(t, err)
	defer ctx.Release()

	unit, err := ctx.UnitFromFile("does_not_exist.adb")
	require.NoError(t, err)
	n, err := unit.DiagnosticCount()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 1)

	d, err := unit.Diagnostic(0)
	require.NoError(t, err)
	assert.NotEmpty(t, d.Message)
	assert.Equal(t, lal.StartOfFile, d.Range)

	_, err = unit.Diagnostic(n)
	assert.ErrorIs(t, err, lal.ErrIndexOutOfRange)
	_, err = unit.Diagnostic(-1)
	assert.ErrorIs(t, err, lal.ErrIndexOutOfRange)
}

func TestUnitFromFile(t *testing.T) {
	lib, _ := newLib(t, fstest.MapFS{
		"main.adb": {Data: []byte("procedure Main is -- entry\nbegin\n   null;\nend Main;\n")},
	})

	ctx, err := lib.NewContextBuilder().WithTrivia(true).Finish()
	require.NoError(t, err)
	defer ctx.Release()

	unit, err := ctx.UnitFromFile("main.adb")
	require.NoError(t, err)
	tokens, err := unit.TokenCount()
	require.NoError(t, err)
	assert.Equal(t, 10, tokens)
	trivia, err := unit.TriviaCount()
	require.NoError(t, err)
	assert.Equal(t, 1, trivia)
	name, err := unit.Filename()
	require.NoError(t, err)
	assert.Equal(t, "main.adb", name)

	again, err := ctx.UnitFromFile("main.adb")
	require.NoError(t, err)
	assert.Equal(t, unit.Handle(), again.Handle())
}

func TestUnitFromBufferAndReparse(t *testing.T) {
	lib, _ := newLib(t, fstest.MapFS{})

	ctx, err := lib.NewContextBuilder().WithTrivia(false).Finish()
	require.NoError(t, err)
	defer ctx.Release()

	unit, err := ctx.UnitFromBuffer("buf.adb", []byte("X : Integer := 1; -- c"), lal.Rule(abi.RuleBasicDecl))
	require.NoError(t, err)
	tokens, err := unit.TokenCount()
	require.NoError(t, err)
	assert.Equal(t, 7, tokens)
	trivia, err := unit.TriviaCount()
	require.NoError(t, err)
	assert.Zero(t, trivia)

	require.NoError(t, unit.ReparseFromBuffer("", []byte("S : String := \"open")))
	diags, err := unit.Diagnostics()
	require.NoError(t, err)
	require.Len(t, diags, 1)
	assert.Equal(t, "unterminated string literal", diags[0].Message)
	assert.Equal(t, lal.SourceLocation{Line: 1, Column: 15}, diags[0].Range.Start)
	assert.Equal(t, "1:15: unterminated string literal", diags[0].Error())

	owner, err := unit.Context()
	require.NoError(t, err)
	assert.Equal(t, ctx.Handle(), owner.Handle())
	owner.Release()
}

func TestUnitReparseFromFile(t *testing.T) {
	files := fstest.MapFS{"a.adb": {Data: []byte("A : Integer;")}}
	lib, _ := newLib(t, files)

	ctx, err := lib.NewContextBuilder().Finish()
	require.NoError(t, err)
	defer ctx.Release()

	unit, err := ctx.UnitFromFile("a.adb")
	require.NoError(t, err)
	files["a.adb"] = &fstest.MapFile{Data: []byte("A : Integer := 2;")}

	before, _ := unit.TokenCount()
	require.NoError(t, unit.ReparseFromFile(""))
	after, _ := unit.TokenCount()
	assert.Equal(t, 5, before)
	assert.Equal(t, 7, after)

	fresh, err := ctx.UnitFromFile("a.adb", lal.Reparse(), lal.UnitCharset("utf-8"))
	require.NoError(t, err)
	assert.Equal(t, unit.Handle(), fresh.Handle())
}

func TestUnitReparseRefused(t *testing.T) {
	lib, eng := newLib(t, fstest.MapFS{"a.adb": {Data: []byte("A : Integer;")}})

	ctx, err := lib.NewContextBuilder().Finish()
	require.NoError(t, err)
	defer ctx.Release()
	unit, err := ctx.UnitFromFile("a.adb")
	require.NoError(t, err)

	eng.NullNext("UnitReparseFromFile")
	err = unit.ReparseFromFile("")
	assert.ErrorIs(t, err, lal.ErrReparseFailed)
	assert.NotErrorIs(t, err, lal.ErrNullHandle)

	eng.NullNext("UnitReparseFromBuffer")
	assert.ErrorIs(t, unit.ReparseFromBuffer("", []byte("A : Integer := 3;")), lal.ErrReparseFailed)
}

func TestEmbeddedNULRejected(t *testing.T) {
	lib, eng := newLib(t, fstest.MapFS{})

	ctx, err := lib.NewContextBuilder().Finish()
	require.NoError(t, err)
	defer ctx.Release()

	calls := eng.Stats().Calls
	_, err = ctx.UnitFromFile("bad\x00name.adb")
	assert.ErrorIs(t, err, lal.ErrEmbeddedNUL)
	assert.Equal(t, calls, eng.Stats().Calls)
}
