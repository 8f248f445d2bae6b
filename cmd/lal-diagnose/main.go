// Command lal-diagnose parses Ada sources through libadalang and prints the
// diagnostics it reports.
//
// Usage:
//
//	lal-diagnose [flags] [files or globs...]
//
// Without files, every Ada source of the project (or of the current
// directory when no project is given) is parsed. The exit status is 1 when
// any diagnostic was printed and 2 on other errors.
package main

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/term"
)

func main() {
	e := env{
		fsys:      os.DirFS("."),
		dir:       ".",
		newEngine: defaultEngine,
		stdout:    os.Stdout,
		stderr:    os.Stderr,
		tty:       term.IsTerminal(int(os.Stdout.Fd())),
	}
	if err := newRootCmd(e).Execute(); err != nil {
		if errors.Is(err, errDiagnostics) {
			os.Exit(1)
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(2)
	}
}
