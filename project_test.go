package lal_test

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lal-go/lal"
	"github.com/lal-go/lal/abi"
	"github.com/lal-go/lal/abi/abitest"
)

func projectFiles() fstest.MapFS {
	return fstest.MapFS{
		"app.gpr": {Data: []byte(`project App is
   type Mode_Type is ("debug", "release");
   Mode : Mode_Type := external ("MODE");
   Opt : Mode_Type := external ("OPT", "release");
   for Source_Dirs use ("src");
   for Languages use ("Ada", "C");
end App;
`)},
		"src/main.adb": {Data: []byte("with Util;\nprocedure Main is begin null; end Main;\n")},
		"src/util.ads": {Data: []byte("package Util is end Util;\n")},
		"src/glue.c":   {Data: []byte("int x;\n")},
		"broken.gpr":   {Data: []byte("-- nothing here\n")},
	}
}

func TestProjectLoadWithScenario(t *testing.T) {
	lib, eng := newLib(t, projectFiles())

	b := lib.NewProjectBuilder("app.gpr").Target("x86_64-linux").Runtime("light")
	require.NoError(t, b.ScenarioVariable("MODE", "debug"))
	require.NoError(t, b.AdaOnly(true))
	prj, err := b.Load()
	require.NoError(t, err)
	require.NotNil(t, prj)

	loads := eng.Loads()
	require.Len(t, loads, 1)
	assert.Equal(t, abitest.LoadRecord{
		ProjectFile: "app.gpr",
		Scenario:    [][2]string{{"MODE", "debug"}},
		Target:      "x86_64-linux",
		Runtime:     "light",
		AdaOnly:     true,
	}, loads[0])
	assert.Positive(t, eng.Stats().LiveCStrings, "the project keeps its strings")

	files, err := prj.SourceFiles(abi.SourceFilesDefault)
	require.NoError(t, err)
	assert.Equal(t, []string{"src/main.adb", "src/util.ads"}, files)

	prj.Release()
	prj.Release()
	s := eng.Stats()
	assert.Zero(t, s.LiveProjects)
	assert.Zero(t, s.LiveCStrings)

	_, err = prj.SourceFiles(abi.SourceFilesDefault)
	assert.ErrorIs(t, err, lal.ErrReleased)
}

func TestProjectLoadInvalidPath(t *testing.T) {
	lib, eng := newLib(t, projectFiles())

	b := lib.NewProjectBuilder("missing.gpr")
	require.NoError(t, b.ScenarioVariable("MODE", "debug"))
	prj, err := b.Load()
	assert.Nil(t, prj)
	var perr *lal.ProjectError
	require.ErrorAs(t, err, &perr)
	require.NotEmpty(t, perr.Messages)
	assert.Contains(t, err.Error(), "missing.gpr: project file not found")
	assert.True(t, lal.IsForeign(err))

	s := eng.Stats()
	assert.Zero(t, s.LiveProjects)
	assert.Zero(t, s.LiveStringArrays)
}

func TestProjectLoadErrors(t *testing.T) {
	lib, _ := newLib(t, projectFiles())

	_, err := lib.NewProjectBuilder("app.gpr").Load()
	var perr *lal.ProjectError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, []string{`app.gpr:3:24: undefined external reference "MODE"`}, perr.Messages)

	_, err = lib.NewProjectBuilder("broken.gpr").Load()
	require.ErrorAs(t, err, &perr)
	assert.Contains(t, perr.Messages[0], "project declaration expected")
}

func TestProjectLoadFailsWithoutMessages(t *testing.T) {
	lib, eng := newLib(t, projectFiles())

	eng.FailLoadWith(false, nil)
	b := lib.NewProjectBuilder("app.gpr")
	require.NoError(t, b.ScenarioVariable("MODE", "debug"))
	prj, err := b.Load()
	assert.Nil(t, prj)
	assert.ErrorIs(t, err, lal.ErrInvalidProject)
	assert.True(t, lal.IsLocal(err))

	s := eng.Stats()
	assert.Zero(t, s.LiveProjects)
	assert.Zero(t, s.LiveStringArrays)
	assert.Zero(t, s.LiveCStrings)
}

func TestProjectReturnedWithMessagesIsFreed(t *testing.T) {
	lib, eng := newLib(t, projectFiles())

	for _, b := range []*lal.ProjectBuilder{
		lib.NewProjectBuilder("app.gpr").Target("x86_64-linux"),
		lib.NewImplicitProjectBuilder(),
	} {
		eng.FailLoadWith(true, []string{"app.gpr:1:1: warning", "app.gpr:2:1: error"})
		prj, err := b.Load()
		assert.Nil(t, prj)
		var perr *lal.ProjectError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, []string{"app.gpr:1:1: warning", "app.gpr:2:1: error"}, perr.Messages)

		s := eng.Stats()
		assert.Zero(t, s.LiveProjects)
		assert.Zero(t, s.LiveStringArrays)
		assert.Zero(t, s.LiveCStrings)
	}
}

func TestProjectLoadException(t *testing.T) {
	lib, eng := newLib(t, projectFiles())

	eng.FailNext("GPRProjectLoad", abi.ExceptionInvalidInput, "bad target")
	_, err := lib.NewProjectBuilder("app.gpr").Target("x").Load()
	var exc *lal.Exception
	require.ErrorAs(t, err, &exc)
	assert.Equal(t, "bad target", exc.Message)
}

func TestImplicitProject(t *testing.T) {
	lib, eng := newLib(t, fstest.MapFS{
		"a.adb": {Data: []byte("procedure A is begin null; end A;")},
	})

	b := lib.NewImplicitProjectBuilder()
	assert.ErrorIs(t, b.ScenarioVariable("MODE", "debug"), lal.ErrImplicitProject)
	assert.ErrorIs(t, b.AdaOnly(false), lal.ErrImplicitProject)
	assert.Zero(t, eng.Stats().Calls, "rejected before reaching the engine")

	prj, err := b.Load()
	require.NoError(t, err)
	defer prj.Release()
	assert.True(t, eng.Loads()[0].Implicit)

	files, err := prj.SourceFiles(abi.SourceFilesWholeProjectWithRuntime)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.adb", "adainclude/system.ads"}, files)
}

func TestProjectLanguagesAndSubprojects(t *testing.T) {
	lib, _ := newLib(t, projectFiles())

	b := lib.NewProjectBuilder("app.gpr")
	require.NoError(t, b.ScenarioVariable("MODE", "release"))
	prj, err := b.Load()
	require.NoError(t, err)
	defer prj.Release()

	files, err := prj.SourceFiles(abi.SourceFilesRootProject, "App")
	require.NoError(t, err)
	assert.Contains(t, files, "src/glue.c")

	_, err = prj.SourceFiles(abi.SourceFilesDefault, "other")
	assert.True(t, lal.IsForeign(err))
}

func TestProjectContext(t *testing.T) {
	lib, _ := newLib(t, projectFiles())

	b := lib.NewProjectBuilder("app.gpr")
	require.NoError(t, b.ScenarioVariable("MODE", "debug"))
	prj, err := b.Load()
	require.NoError(t, err)
	defer prj.Release()

	ctx, err := prj.NewContext()
	require.NoError(t, err)
	defer ctx.Release()
	unit, err := ctx.UnitFromFile("src/main.adb")
	require.NoError(t, err)
	n, err := unit.DiagnosticCount()
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = lib.NewContextBuilder().Project(prj).Subproject("nope").Finish()
	assert.True(t, lal.IsForeign(err))

	reader, err := lib.NewFileReader(lal.NewOverlaySource(nil))
	require.NoError(t, err)
	defer reader.Release()
	_, err = lib.NewContextBuilder().Project(prj).FileReader(reader).Finish()
	assert.ErrorIs(t, err, lal.ErrInvalidOption)
	_, err = lib.NewContextBuilder().Project(prj).Charset("utf-8").Finish()
	assert.ErrorIs(t, err, lal.ErrInvalidOption)
}

func TestProjectEmbeddedNUL(t *testing.T) {
	lib, eng := newLib(t, projectFiles())

	b := lib.NewProjectBuilder("app.gpr")
	require.NoError(t, b.ScenarioVariable("MO\x00DE", "debug"))
	_, err := b.Load()
	assert.ErrorIs(t, err, lal.ErrEmbeddedNUL)
	assert.Zero(t, eng.Stats().Calls)
}
