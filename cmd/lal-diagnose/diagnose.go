package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/lal-go/lal"
	"github.com/lal-go/lal/abi"
	"github.com/lal-go/lal/internal/config"
)

// errDiagnostics signals that the run succeeded but found problems.
var errDiagnostics = errors.New("diagnostics reported")

// fileReport is one parsed file and what the engine said about it.
type fileReport struct {
	File        string
	Diagnostics []lal.Diagnostic
}

func run(e env, cfg config.FileConfig, args []string, verbose bool) error {
	logger := newLogger(e.stderr, verbose)
	engine, err := e.newEngine()
	if err != nil {
		return err
	}
	lib := lal.New(engine, lal.WithLogger(logger))

	prj, err := loadProject(lib, cfg)
	if err != nil {
		return err
	}
	defer prj.Release()

	files, err := selectFiles(e, prj, cfg, args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		logger.Warn("no Ada sources to analyze")
		return nil
	}

	handler, err := lib.NewEventHandler(eventLogger(logger))
	if err != nil {
		return err
	}
	defer handler.Release()

	b := lib.NewContextBuilder().
		EventHandler(handler).
		WithTrivia(config.Bool(cfg.Trivia, false))
	if cfg.TabStop != nil {
		b.TabStop(*cfg.TabStop)
	}
	if cfg.Project != nil {
		b.Project(prj)
	} else {
		b.Charset(config.String(cfg.Charset))
	}
	ctx, err := b.Finish()
	if err != nil {
		return err
	}
	defer ctx.Release()

	reports := make([]fileReport, 0, len(files))
	total := 0
	for _, name := range files {
		unit, err := ctx.UnitFromFile(name)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		diags, err := unit.Diagnostics()
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		total += len(diags)
		reports = append(reports, fileReport{File: relPath(e.dir, name), Diagnostics: diags})
	}

	if config.String(cfg.Format) == "json" {
		err = writeJSON(e.stdout, reports)
	} else {
		color := e.tty && !config.Bool(cfg.NoColor, false)
		err = writeText(e.stdout, reports, color)
	}
	if err != nil {
		return err
	}
	if total > 0 {
		return errDiagnostics
	}
	return nil
}

// loadProject loads the configured project, or the implicit project of the
// working directory when none is configured.
func loadProject(lib *lal.Library, cfg config.FileConfig) (*lal.Project, error) {
	var b *lal.ProjectBuilder
	if cfg.Project != nil {
		b = lib.NewProjectBuilder(*cfg.Project)
		names := make([]string, 0, len(cfg.Scenario))
		for name := range cfg.Scenario {
			names = append(names, name)
		}
		slices.Sort(names)
		for _, name := range names {
			if err := b.ScenarioVariable(name, cfg.Scenario[name]); err != nil {
				return nil, err
			}
		}
		if err := b.AdaOnly(config.Bool(cfg.AdaOnly, false)); err != nil {
			return nil, err
		}
	} else {
		b = lib.NewImplicitProjectBuilder()
	}
	return b.Target(config.String(cfg.Target)).
		Runtime(config.String(cfg.Runtime)).
		ConfigFile(config.String(cfg.ConfigFile)).
		Load()
}

// selectFiles expands args (or the configured sources) as globs. With no
// patterns at all, the project's Ada sources are used.
func selectFiles(e env, prj *lal.Project, cfg config.FileConfig, args []string) ([]string, error) {
	patterns := args
	if len(patterns) == 0 {
		patterns = cfg.Sources
	}

	var files []string
	if len(patterns) == 0 {
		all, err := prj.SourceFiles(abi.SourceFilesDefault)
		if err != nil {
			return nil, err
		}
		for _, f := range all {
			if isAda(f) {
				files = append(files, f)
			}
		}
	} else {
		for _, p := range patterns {
			if !doublestar.ValidatePattern(p) {
				return nil, fmt.Errorf("invalid pattern %q", p)
			}
			matches, err := doublestar.Glob(e.fsys, p, doublestar.WithFilesOnly())
			if err != nil {
				return nil, fmt.Errorf("%s: %w", p, err)
			}
			if len(matches) == 0 && !hasMeta(p) {
				return nil, fmt.Errorf("%s: %w", p, fs.ErrNotExist)
			}
			files = append(files, matches...)
		}
	}

	out := files[:0]
	for _, f := range files {
		if !excluded(relPath(e.dir, f), cfg.Exclude) {
			out = append(out, f)
		}
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}

func isAda(name string) bool {
	switch path.Ext(name) {
	case ".ads", ".adb", ".ada":
		return true
	}
	return false
}

func hasMeta(p string) bool {
	return strings.ContainsAny(p, "*?[{\\")
}

func excluded(name string, globs []string) bool {
	for _, g := range globs {
		if ok, _ := doublestar.Match(g, name); ok {
			return true
		}
		if ok, _ := doublestar.Match(g, path.Base(name)); ok {
			return true
		}
	}
	return false
}

func eventLogger(logger *slog.Logger) lal.EventFuncs {
	return lal.EventFuncs{
		OnUnitRequested: func(_ *lal.Context, ev lal.UnitRequestedEvent) {
			if !ev.Found && ev.IsNotFoundError {
				logger.Warn("unit not found", "unit", ev.Name)
				return
			}
			logger.Debug("unit requested", "unit", ev.Name, "found", ev.Found)
		},
		OnUnitParsed: func(_ *lal.Context, ev lal.UnitParsedEvent) {
			if ev.Unit == nil {
				return
			}
			name, err := ev.Unit.Filename()
			if err != nil {
				logger.Debug("unit parsed", "error", err)
				return
			}
			logger.Debug("unit parsed", "file", name, "reparsed", ev.Reparsed)
		},
	}
}
