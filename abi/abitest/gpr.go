package abitest

import (
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"slices"
	"strings"
	"unsafe"

	"github.com/lal-go/lal/abi"
)

type project struct {
	file    string
	dir     string
	name    string
	sources []string
}

var (
	projectDecl   = regexp.MustCompile(`(?i)\bproject\s+([A-Za-z_][\w.]*)\s+is\b`)
	externalRef   = regexp.MustCompile(`(?i)\bexternal\s*\(\s*"([^"]+)"\s*(?:,\s*"([^"]*)"\s*)?\)`)
	sourceDirsDef = regexp.MustCompile(`(?i)\bfor\s+source_dirs\s+use\s*\(([^)]*)\)`)
	languagesDef  = regexp.MustCompile(`(?i)\bfor\s+languages\s+use\s*\(([^)]*)\)`)
	quoted        = regexp.MustCompile(`"([^"]*)"`)
)

// scenarioVars walks a sentinel-terminated scenario variable array.
func scenarioVars(p *abi.ScenarioVariable) [][2]string {
	var out [][2]string
	for p != nil && p.Name != nil {
		out = append(out, [2]string{abi.GoString(p.Name), abi.GoString(p.Value)})
		p = (*abi.ScenarioVariable)(unsafe.Add(unsafe.Pointer(p), unsafe.Sizeof(*p)))
	}
	return out
}

// GPRProjectLoad implements abi.Engine. Load problems are reported through
// the errors array; only malformed arguments raise.
func (e *Engine) GPRProjectLoad(projectFile *byte, vars *abi.ScenarioVariable, target, runtime, configFile *byte, adaOnly abi.Bool, out *abi.Handle, errors **abi.StringArray) {
	if !e.enter("GPRProjectLoad") {
		e.mu.Unlock()
		return
	}
	defer e.mu.Unlock()
	if projectFile == nil || out == nil || errors == nil {
		e.raise(abi.ExceptionPreconditionFailure, "GPRProjectLoad: null argument")
		return
	}
	rec := LoadRecord{
		ProjectFile: abi.GoString(projectFile),
		Scenario:    scenarioVars(vars),
		Target:      abi.GoString(target),
		Runtime:     abi.GoString(runtime),
		ConfigFile:  abi.GoString(configFile),
		AdaOnly:     adaOnly.True(),
	}
	e.loads = append(e.loads, rec)
	if e.failLoadLocked(out, errors) {
		return
	}

	p, errs := e.loadProject(rec)
	*out = 0
	if p != nil {
		h := e.newHandle()
		e.projects[h] = p
		*out = h
	}
	*errors = e.allocStringArrayLocked(errs)
}

// GPRProjectLoadImplicit implements abi.Engine. The implicit project covers
// the Ada sources in the file system root.
func (e *Engine) GPRProjectLoadImplicit(target, runtime, configFile *byte, out *abi.Handle, errors **abi.StringArray) {
	if !e.enter("GPRProjectLoadImplicit") {
		e.mu.Unlock()
		return
	}
	defer e.mu.Unlock()
	if out == nil || errors == nil {
		e.raise(abi.ExceptionPreconditionFailure, "GPRProjectLoadImplicit: null argument")
		return
	}
	e.loads = append(e.loads, LoadRecord{
		Implicit:   true,
		Target:     abi.GoString(target),
		Runtime:    abi.GoString(runtime),
		ConfigFile: abi.GoString(configFile),
		AdaOnly:    true,
	})
	if e.failLoadLocked(out, errors) {
		return
	}
	h := e.newHandle()
	e.projects[h] = &project{dir: ".", name: "default", sources: e.collectSources([]string{"."}, false)}
	*out = h
	*errors = e.allocStringArrayLocked(nil)
}

// failLoadLocked answers a load from the fault set by FailLoadWith.
func (e *Engine) failLoadLocked(out *abi.Handle, errors **abi.StringArray) bool {
	f := e.loadFault
	if f == nil {
		return false
	}
	e.loadFault = nil
	*out = 0
	if f.withProject {
		h := e.newHandle()
		e.projects[h] = &project{dir: ".", name: "faulty"}
		*out = h
	}
	*errors = e.allocStringArrayLocked(f.messages)
	return true
}

func (e *Engine) loadProject(rec LoadRecord) (*project, []string) {
	raw, err := fs.ReadFile(e.fsys, rec.ProjectFile)
	if err != nil {
		return nil, []string{rec.ProjectFile + ": project file not found"}
	}
	src := string(raw)
	m := projectDecl.FindStringSubmatch(src)
	if m == nil {
		return nil, []string{rec.ProjectFile + ":1:1: project declaration expected"}
	}

	vars := make(map[string]string, len(rec.Scenario))
	for _, kv := range rec.Scenario {
		vars[kv[0]] = kv[1]
	}
	var errs []string
	for _, ref := range externalRef.FindAllStringSubmatchIndex(src, -1) {
		name := src[ref[2]:ref[3]]
		if _, ok := vars[name]; ok || ref[4] >= 0 {
			continue
		}
		line := strings.Count(src[:ref[0]], "\n") + 1
		col := ref[0] - strings.LastIndexByte(src[:ref[0]], '\n')
		errs = append(errs, formatLoc(rec.ProjectFile, line, col)+": undefined external reference \""+name+"\"")
	}
	if len(errs) > 0 {
		return nil, errs
	}

	dirs := []string{"."}
	if sd := sourceDirsDef.FindStringSubmatch(src); sd != nil {
		dirs = dirs[:0]
		for _, q := range quoted.FindAllStringSubmatch(sd[1], -1) {
			dirs = append(dirs, q[1])
		}
	}
	withC := false
	if ld := languagesDef.FindStringSubmatch(src); ld != nil && !rec.AdaOnly {
		for _, q := range quoted.FindAllStringSubmatch(ld[1], -1) {
			withC = withC || strings.EqualFold(q[1], "c")
		}
	}

	dir := path.Dir(rec.ProjectFile)
	for i, d := range dirs {
		dirs[i] = path.Join(dir, d)
	}
	return &project{
		file:    rec.ProjectFile,
		dir:     dir,
		name:    strings.ToLower(m[1]),
		sources: e.collectSources(dirs, withC),
	}, nil
}

func formatLoc(file string, line, col int) string {
	return fmt.Sprintf("%s:%d:%d", file, line, col)
}

func (e *Engine) collectSources(dirs []string, withC bool) []string {
	var out []string
	for _, d := range dirs {
		entries, err := fs.ReadDir(e.fsys, d)
		if err != nil {
			continue
		}
		for _, ent := range entries {
			if ent.IsDir() {
				continue
			}
			switch path.Ext(ent.Name()) {
			case ".ads", ".adb":
			case ".c", ".h":
				if !withC {
					continue
				}
			default:
				continue
			}
			out = append(out, path.Join(d, ent.Name()))
		}
	}
	slices.Sort(out)
	return out
}

// GPRProjectFree implements abi.Engine.
func (e *Engine) GPRProjectFree(h abi.Handle) {
	if !e.enter("GPRProjectFree") {
		e.mu.Unlock()
		return
	}
	defer e.mu.Unlock()
	if _, ok := e.projects[h]; !ok {
		e.violate("free of dead project %#x", h)
		e.raise(abi.ExceptionPreconditionFailure, "invalid project")
		return
	}
	delete(e.projects, h)
}

// GPRProjectSourceFiles implements abi.Engine. Subproject names must match
// the root project since the engine does not model project trees.
func (e *Engine) GPRProjectSourceFiles(h abi.Handle, mode abi.SourceFilesMode, projects **byte, n int32) *abi.StringArray {
	if !e.enter("GPRProjectSourceFiles") {
		e.mu.Unlock()
		return nil
	}
	defer e.mu.Unlock()
	p, ok := e.projects[h]
	if !ok {
		e.raise(abi.ExceptionPreconditionFailure, "invalid project")
		return nil
	}
	if n > 0 {
		for _, name := range unsafe.Slice(projects, int(n)) {
			if !strings.EqualFold(abi.GoString(name), p.name) {
				e.raise(abi.ExceptionPreconditionFailure, "no such project: %s", abi.GoString(name))
				return nil
			}
		}
	}
	files := slices.Clone(p.sources)
	if mode == abi.SourceFilesWholeProjectWithRuntime {
		files = append(files, "adainclude/system.ads")
	}
	return e.allocStringArrayLocked(files)
}

// GPRProjectInitializeContext implements abi.Engine.
func (e *Engine) GPRProjectInitializeContext(h, ctx abi.Handle, subproject *byte, eventHandler abi.Handle, withTrivia abi.Bool, tabStop int32) {
	if !e.enter("GPRProjectInitializeContext") {
		e.mu.Unlock()
		return
	}
	defer e.mu.Unlock()
	p, ok := e.projects[h]
	if !ok {
		e.raise(abi.ExceptionPreconditionFailure, "invalid project")
		return
	}
	if sub := abi.GoString(subproject); sub != "" && !strings.EqualFold(sub, p.name) {
		e.raise(abi.ExceptionPreconditionFailure, "no such project: %s", sub)
		return
	}
	c := e.initLocked("GPRProjectInitializeContext", ctx, eventHandler, withTrivia, tabStop)
	if c == nil {
		return
	}
	c.charset = DefaultCharset
}

// FreeStringArray implements abi.Engine.
func (e *Engine) FreeStringArray(arr *abi.StringArray) {
	if !e.enter("FreeStringArray") {
		e.mu.Unlock()
		return
	}
	defer e.mu.Unlock()
	if arr == nil {
		return
	}
	if _, ok := e.arrays[arr]; !ok {
		e.violate("free of unknown or already freed string array")
		return
	}
	delete(e.arrays, arr)
}

func (e *Engine) allocStringArrayLocked(items []string) *abi.StringArray {
	ptrs := make([]*byte, len(items))
	for i, s := range items {
		ptrs[i] = cbytes(s)
	}
	arr := &abi.StringArray{Length: int32(len(items))}
	if len(ptrs) > 0 {
		arr.Items = &ptrs[0]
	}
	e.arrays[arr] = ptrs
	return arr
}
