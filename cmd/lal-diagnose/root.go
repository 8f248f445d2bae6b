package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lal-go/lal"
	"github.com/lal-go/lal/abi"
	"github.com/lal-go/lal/internal/config"
)

// env is everything the command touches outside its flags.
type env struct {
	fsys      fs.FS
	dir       string
	newEngine func() (abi.Engine, error)
	stdout    io.Writer
	stderr    io.Writer
	tty       bool
}

type flags struct {
	config   string
	project  string
	scenario []string
	target   string
	runtime  string
	charset  string
	adaOnly  bool
	trivia   bool
	tabStop  int
	format   string
	noColor  bool
	verbose  bool
}

func newRootCmd(e env) *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:           "lal-diagnose [flags] [files or globs...]",
		Short:         "Print libadalang diagnostics for Ada sources",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, e, f)
			if err != nil {
				return err
			}
			return run(e, cfg, args, f.verbose)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.config, "config", "", "YAML config file (default: .lal-diagnose.yml in the working directory)")
	fl.StringVarP(&f.project, "project", "P", "", "GPR project file")
	fl.StringArrayVarP(&f.scenario, "scenario", "X", nil, "scenario variable NAME=VALUE (repeatable)")
	fl.StringVar(&f.target, "target", "", "project target")
	fl.StringVar(&f.runtime, "runtime", "", "project runtime")
	fl.StringVar(&f.charset, "charset", "", "source charset when no project is given")
	fl.BoolVar(&f.adaOnly, "ada-only", false, "ignore non-Ada languages in the project")
	fl.BoolVar(&f.trivia, "trivia", false, "keep comments and whitespace as trivia")
	fl.IntVar(&f.tabStop, "tab-stop", lal.DefaultTabStop, "tab width used for columns")
	fl.StringVar(&f.format, "format", "text", "output format: text | json")
	fl.BoolVar(&f.noColor, "no-color", false, "disable colorized output")
	fl.BoolVarP(&f.verbose, "verbose", "v", false, "log analysis events to stderr")
	return cmd
}

// resolveConfig layers the global config, the local (or --config) file and
// the flags that were set explicitly, in that order.
func resolveConfig(cmd *cobra.Command, e env, f flags) (config.FileConfig, error) {
	cfg, err := config.LoadGlobal()
	if err != nil && !errors.Is(err, config.ErrNoConfig) {
		return cfg, fmt.Errorf("global config: %w", err)
	}
	var local config.FileConfig
	if f.config != "" {
		local, err = config.LoadFile(f.config)
		if err != nil {
			return cfg, fmt.Errorf("config %s: %w", f.config, err)
		}
	} else {
		local, err = config.LoadLocal(e.dir)
		if err != nil && !errors.Is(err, config.ErrNoConfig) {
			return cfg, fmt.Errorf("local config: %w", err)
		}
	}
	cfg = config.Merge(cfg, local)

	var over config.FileConfig
	changed := cmd.Flags().Changed
	if changed("project") {
		over.Project = &f.project
	}
	if changed("scenario") {
		over.Scenario = make(map[string]string, len(f.scenario))
		for _, kv := range f.scenario {
			name, value, ok := strings.Cut(kv, "=")
			if !ok || name == "" {
				return cfg, fmt.Errorf("-X %q: want NAME=VALUE", kv)
			}
			over.Scenario[name] = value
		}
	}
	if changed("target") {
		over.Target = &f.target
	}
	if changed("runtime") {
		over.Runtime = &f.runtime
	}
	if changed("charset") {
		over.Charset = &f.charset
	}
	if changed("ada-only") {
		over.AdaOnly = &f.adaOnly
	}
	if changed("trivia") {
		over.Trivia = &f.trivia
	}
	if changed("tab-stop") {
		over.TabStop = &f.tabStop
	}
	if changed("format") {
		over.Format = &f.format
	}
	if changed("no-color") {
		over.NoColor = &f.noColor
	}
	cfg = config.Merge(cfg, over)

	switch config.String(cfg.Format) {
	case "", "text", "json":
	default:
		return cfg, fmt.Errorf("unknown format %q", config.String(cfg.Format))
	}
	return cfg, nil
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// relPath makes a source path reported by the engine relative to the
// working directory so that it can be globbed against and printed.
func relPath(dir, name string) string {
	if !filepath.IsAbs(name) {
		return filepath.ToSlash(name)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return name
	}
	if rel, err := filepath.Rel(abs, name); err == nil && !strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(rel)
	}
	return name
}
