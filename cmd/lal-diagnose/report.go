package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

var (
	fileStyle = lipgloss.NewStyle().Bold(true)
	locStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	errStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
)

// writeText prints one line per diagnostic in the file:line:col: form most
// editors understand, followed by a summary line.
func writeText(w io.Writer, reports []fileReport, color bool) error {
	paint := func(s lipgloss.Style, v string) string {
		if !color {
			return v
		}
		return s.Render(v)
	}
	total, dirty := 0, 0
	for _, r := range reports {
		if len(r.Diagnostics) > 0 {
			dirty++
		}
		for _, d := range r.Diagnostics {
			total++
			_, err := fmt.Fprintf(w, "%s:%s: %s %s\n",
				paint(fileStyle, r.File),
				paint(locStyle, d.Range.Start.String()),
				paint(errStyle, "error:"),
				d.Message)
			if err != nil {
				return err
			}
		}
	}
	var summary string
	if total == 0 {
		summary = paint(okStyle, fmt.Sprintf("%d files, no diagnostics", len(reports)))
	} else {
		summary = paint(errStyle, fmt.Sprintf("%d diagnostics in %d of %d files", total, dirty, len(reports)))
	}
	_, err := fmt.Fprintln(w, summary)
	return err
}

type jsonLocation struct {
	Line   uint32 `json:"line"`
	Column uint16 `json:"column"`
}

type jsonDiagnostic struct {
	Start   jsonLocation `json:"start"`
	End     jsonLocation `json:"end"`
	Message string       `json:"message"`
}

type jsonReport struct {
	File        string           `json:"file"`
	Diagnostics []jsonDiagnostic `json:"diagnostics"`
}

func writeJSON(w io.Writer, reports []fileReport) error {
	out := make([]jsonReport, len(reports))
	for i, r := range reports {
		out[i] = jsonReport{File: r.File, Diagnostics: make([]jsonDiagnostic, len(r.Diagnostics))}
		for j, d := range r.Diagnostics {
			out[i].Diagnostics[j] = jsonDiagnostic{
				Start:   jsonLocation{Line: d.Range.Start.Line, Column: d.Range.Start.Column},
				End:     jsonLocation{Line: d.Range.End.Line, Column: d.Range.End.Column},
				Message: d.Message,
			}
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
