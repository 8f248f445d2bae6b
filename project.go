package lal

import (
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/lal-go/lal/abi"
)

// ProjectBuilder collects the options of a GPR project load. Nothing is
// converted for the engine before Load.
type ProjectBuilder struct {
	lib        *Library
	file       string
	implicit   bool
	vars       [][2]string
	target     string
	runtime    string
	configFile string
	adaOnly    bool
}

// NewProjectBuilder loads the project file at path.
func (l *Library) NewProjectBuilder(path string) *ProjectBuilder {
	return &ProjectBuilder{lib: l, file: path}
}

// NewImplicitProjectBuilder loads the implicit project covering the
// sources of the current directory.
func (l *Library) NewImplicitProjectBuilder() *ProjectBuilder {
	return &ProjectBuilder{lib: l, implicit: true}
}

// ScenarioVariable sets an external variable referenced by the project.
// It fails for the implicit project, which has no externals.
func (b *ProjectBuilder) ScenarioVariable(name, value string) error {
	if b.implicit {
		return localError("ProjectBuilder.ScenarioVariable", ErrImplicitProject)
	}
	b.vars = append(b.vars, [2]string{name, value})
	return nil
}

// AdaOnly restricts the project to Ada sources. It fails for the implicit
// project, which is always Ada only.
func (b *ProjectBuilder) AdaOnly(on bool) error {
	if b.implicit {
		return localError("ProjectBuilder.AdaOnly", ErrImplicitProject)
	}
	b.adaOnly = on
	return nil
}

func (b *ProjectBuilder) Target(target string) *ProjectBuilder {
	b.target = target
	return b
}

func (b *ProjectBuilder) Runtime(rt string) *ProjectBuilder {
	b.runtime = rt
	return b
}

func (b *ProjectBuilder) ConfigFile(path string) *ProjectBuilder {
	b.configFile = path
	return b
}

// Load issues a single load call. Engine diagnostics come back as a
// *ProjectError. The strings handed to the engine stay alive until the
// project is released since the engine may keep pointers into them.
func (b *ProjectBuilder) Load() (*Project, error) {
	const op = "ProjectBuilder.Load"
	strs := newCStrings(b.lib)
	defer func() { strs.free() }()

	target, err := strs.optional(op, b.target)
	if err != nil {
		return nil, err
	}
	rt, err := strs.optional(op, b.runtime)
	if err != nil {
		return nil, err
	}
	config, err := strs.optional(op, b.configFile)
	if err != nil {
		return nil, err
	}

	var (
		h    abi.Handle
		errs *abi.StringArray
		vars []abi.ScenarioVariable
		pin  = new(runtime.Pinner)
	)
	if b.implicit {
		b.lib.engine.GPRProjectLoadImplicit(target, rt, config, &h, &errs)
	} else {
		file, err := strs.add(op, b.file)
		if err != nil {
			return nil, err
		}
		for _, kv := range b.vars {
			name, err := strs.add(op, kv[0])
			if err != nil {
				return nil, err
			}
			value, err := strs.add(op, kv[1])
			if err != nil {
				return nil, err
			}
			vars = append(vars, abi.ScenarioVariable{Name: name, Value: value})
		}
		var first *abi.ScenarioVariable
		if len(vars) > 0 {
			vars = append(vars, abi.ScenarioVariable{})
			first = &vars[0]
			pin.Pin(first)
		}
		b.lib.engine.GPRProjectLoad(file, first, target, rt, config, abi.BoolOf(b.adaOnly), &h, &errs)
	}

	if err := b.lib.check(); err != nil {
		pin.Unpin()
		b.discard(h, errs)
		return nil, err
	}
	messages := errs.Strings()
	b.discard(0, errs)
	if h == 0 || len(messages) > 0 {
		pin.Unpin()
		b.discard(h, nil)
		if len(messages) == 0 {
			return nil, localError(op, ErrInvalidProject)
		}
		return nil, &ProjectError{File: b.file, Messages: messages}
	}

	p := &Project{lib: b.lib, h: h, strs: strs, pin: pin, vars: vars}
	strs = nil
	return p, nil
}

// discard frees the error array and project of a load. Either may be null.
func (b *ProjectBuilder) discard(h abi.Handle, errs *abi.StringArray) {
	if errs != nil {
		b.lib.engine.FreeStringArray(errs)
		b.lib.logAndIgnore("FreeStringArray")
	}
	if h != 0 {
		b.lib.engine.GPRProjectFree(h)
		b.lib.logAndIgnore("GPRProjectFree")
	}
}

// Project is a loaded GPR project tree.
type Project struct {
	lib      *Library
	h        abi.Handle
	strs     *cstrings
	pin      *runtime.Pinner
	vars     []abi.ScenarioVariable
	released atomic.Bool
}

// Handle returns the raw engine handle.
func (p *Project) Handle() abi.Handle { return p.h }

func (p *Project) handle(op string) (abi.Handle, error) {
	if p.released.Load() {
		return 0, localError(op, fmt.Errorf("project: %w", ErrReleased))
	}
	return p.h, nil
}

// Release frees the project, then the strings it was loaded with.
// Contexts created from the project keep working.
func (p *Project) Release() {
	if p == nil || !p.released.CompareAndSwap(false, true) {
		return
	}
	p.lib.engine.GPRProjectFree(p.h)
	p.lib.logAndIgnore("GPRProjectFree")
	p.pin.Unpin()
	p.vars = nil
	p.strs.free()
}

// SourceFiles lists the project's source files. With no subprojects the
// mode decides the scope; otherwise only the named projects are listed.
func (p *Project) SourceFiles(mode abi.SourceFilesMode, subprojects ...string) ([]string, error) {
	const op = "Project.SourceFiles"
	h, err := p.handle(op)
	if err != nil {
		return nil, err
	}
	strs := newCStrings(p.lib)
	defer strs.free()
	names := make([]*byte, 0, len(subprojects))
	for _, s := range subprojects {
		c, err := strs.add(op, s)
		if err != nil {
			return nil, err
		}
		names = append(names, c)
	}
	arr, err := wrap(p.lib, p.lib.engine.GPRProjectSourceFiles(h, mode, namesData(names), int32(len(names))))
	if err != nil {
		return nil, err
	}
	files := arr.Strings()
	if arr != nil {
		p.lib.engine.FreeStringArray(arr)
		p.lib.logAndIgnore("FreeStringArray")
	}
	return files, nil
}

func namesData(names []*byte) **byte {
	if len(names) == 0 {
		return nil
	}
	return &names[0]
}

// NewContext creates a context over the project with default settings.
func (p *Project) NewContext() (*Context, error) {
	return p.lib.NewContextBuilder().Project(p).Finish()
}
