package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lal-go/lal"
	"github.com/lal-go/lal/abi"
	"github.com/lal-go/lal/abi/abitest"
)

type harness struct {
	env    env
	eng    *abitest.Engine
	stdout *bytes.Buffer
	stderr *bytes.Buffer
}

func newHarness(t *testing.T, files fstest.MapFS) *harness {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	h := &harness{eng: abitest.New(files), stdout: new(bytes.Buffer), stderr: new(bytes.Buffer)}
	h.env = env{
		fsys:      files,
		dir:       t.TempDir(),
		newEngine: func() (abi.Engine, error) { return h.eng, nil },
		stdout:    h.stdout,
		stderr:    h.stderr,
	}
	t.Cleanup(func() {
		s := h.eng.Stats()
		assert.Empty(t, s.Violations)
		assert.Zero(t, s.LiveContexts, "contexts leaked")
		assert.Zero(t, s.LiveProjects, "projects leaked")
		assert.Zero(t, s.LiveTexts, "texts leaked")
		assert.Zero(t, s.LiveCStrings, "host strings leaked")
	})
	return h
}

func (h *harness) run(args ...string) error {
	cmd := newRootCmd(h.env)
	cmd.SetArgs(append([]string{}, args...))
	return cmd.Execute()
}

func projectFiles() fstest.MapFS {
	return fstest.MapFS{
		"app.gpr": {Data: []byte(`project App is
   Mode : Mode_Type := external ("MODE");
   for Source_Dirs use ("src");
end App;
`)},
		"src/main.adb": {Data: []byte("with Util;\nprocedure Main is begin null; end Main;\n")},
		"src/util.ads": {Data: []byte("package Util is end Util;\n")},
	}
}

func TestGlobbedFilesReportDiagnostics(t *testing.T) {
	h := newHarness(t, fstest.MapFS{
		"src/good.adb":  {Data: []byte("procedure Good is begin null; end Good;\n")},
		"src/bad.adb":   {Data: []byte("S : String := \"open\n")},
		"src/notes.txt": {Data: []byte("not Ada")},
	})

	err := h.run("--no-color", "src/*.adb")
	require.ErrorIs(t, err, errDiagnostics)

	out := h.stdout.String()
	assert.Contains(t, out, "src/bad.adb:1:15: error: unterminated string literal\n")
	assert.NotContains(t, out, "good.adb:")
	assert.Contains(t, out, "1 diagnostics in 1 of 2 files")
}

func TestProjectSourcesAsJSON(t *testing.T) {
	h := newHarness(t, projectFiles())

	err := h.run("-P", "app.gpr", "-X", "MODE=debug", "--format", "json")
	require.NoError(t, err)

	var got []jsonReport
	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "src/main.adb", got[0].File)
	assert.Equal(t, "src/util.ads", got[1].File)
	assert.Empty(t, got[0].Diagnostics)

	loads := h.eng.Loads()
	require.Len(t, loads, 1)
	assert.Equal(t, [][2]string{{"MODE", "debug"}}, loads[0].Scenario)
}

func TestProjectLoadFailure(t *testing.T) {
	h := newHarness(t, projectFiles())

	err := h.run("-P", "app.gpr")
	var perr *lal.ProjectError
	require.ErrorAs(t, err, &perr)
	assert.Contains(t, err.Error(), `undefined external reference "MODE"`)
	assert.Empty(t, h.stdout.String())
}

func TestBadScenarioFlag(t *testing.T) {
	h := newHarness(t, projectFiles())

	err := h.run("-P", "app.gpr", "-X", "MODE")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "want NAME=VALUE")
	assert.Zero(t, h.eng.Stats().Calls)
}

func TestUnknownFormat(t *testing.T) {
	h := newHarness(t, fstest.MapFS{})
	err := h.run("--format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown format "xml"`)
}

func TestMissingFile(t *testing.T) {
	h := newHarness(t, fstest.MapFS{})
	err := h.run("nope.adb")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope.adb")
}

func TestEngineUnavailable(t *testing.T) {
	h := newHarness(t, fstest.MapFS{})
	boom := errors.New("no engine")
	h.env.newEngine = func() (abi.Engine, error) { return nil, boom }
	assert.ErrorIs(t, h.run("a.adb"), boom)
}

func TestConfigFileSourcesAndExcludes(t *testing.T) {
	h := newHarness(t, fstest.MapFS{
		"a.adb":    {Data: []byte("procedure A is begin null; end A;\n")},
		"skip.adb": {Data: []byte("S : String := \"open\n")},
	})
	cfgPath := filepath.Join(t.TempDir(), "diag.yml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("sources: [\"*.adb\"]\nexclude: [\"skip.adb\"]\nno_color: true\n"), 0o644))

	require.NoError(t, h.run("--config", cfgPath))
	assert.Contains(t, h.stdout.String(), "1 files, no diagnostics")
}

func TestLocalConfigIsPickedUp(t *testing.T) {
	h := newHarness(t, projectFiles())
	require.NoError(t, os.WriteFile(filepath.Join(h.env.dir, ".lal-diagnose.yml"),
		[]byte("project: app.gpr\nscenario:\n  MODE: release\n"), 0o644))

	require.NoError(t, h.run("--format", "json"))
	loads := h.eng.Loads()
	require.Len(t, loads, 1)
	assert.Equal(t, "app.gpr", loads[0].ProjectFile)
	assert.Equal(t, [][2]string{{"MODE", "release"}}, loads[0].Scenario)
}

func TestImplicitProjectAndVerboseEvents(t *testing.T) {
	h := newHarness(t, fstest.MapFS{
		"a.adb":     {Data: []byte("with Missing;\nprocedure A is begin null; end A;\n")},
		"lib.c":     {Data: []byte("int x;\n")},
		"sub/b.adb": {Data: []byte("procedure B is begin null; end B;\n")},
	})

	require.NoError(t, h.run("--verbose", "--no-color"))
	assert.True(t, h.eng.Loads()[0].Implicit)
	assert.Contains(t, h.stdout.String(), "1 files, no diagnostics")

	logs := h.stderr.String()
	assert.Contains(t, logs, `msg="unit parsed" file=a.adb`)
	assert.Contains(t, logs, `msg="unit not found" unit=missing`)
	assert.Equal(t, 1, h.eng.Stats().EventHandlerDestroys)
}

func TestExcluded(t *testing.T) {
	assert.True(t, excluded("src/gen/x.adb", []string{"src/gen/**"}))
	assert.True(t, excluded("src/x_test.adb", []string{"*_test.adb"}))
	assert.False(t, excluded("src/x.adb", []string{"*_test.adb"}))
	assert.False(t, excluded("src/x.adb", nil))
}

func TestRelPath(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, "src/a.adb", relPath(dir, "src/a.adb"))
	assert.Equal(t, "src/a.adb", relPath(dir, filepath.Join(dir, "src", "a.adb")))
	outside := filepath.Join(filepath.Dir(dir), "elsewhere.adb")
	assert.Equal(t, outside, relPath(dir, outside))
}
