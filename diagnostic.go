package lal

import (
	"fmt"
	"strings"

	"github.com/lal-go/lal/abi"
)

// SourceLocation is a 1-based line and column.
type SourceLocation struct {
	Line   uint32
	Column uint16
}

func (l SourceLocation) String() string {
	return fmt.Sprintf("%d:%d", l.Line, l.Column)
}

// SourceRange spans Start to End.
type SourceRange struct {
	Start SourceLocation
	End   SourceLocation
}

func (r SourceRange) String() string {
	return r.Start.String() + "-" + r.End.String()
}

// StartOfFile is the range used for diagnostics with no better location.
var StartOfFile = SourceRange{Start: SourceLocation{1, 1}, End: SourceLocation{1, 1}}

// Diagnostic is a message attached to a source range. It implements error
// so file sources can return one to control the reported location.
type Diagnostic struct {
	Range   SourceRange
	Message string
}

func (d Diagnostic) Error() string {
	return d.Range.Start.String() + ": " + d.Message
}

func diagnosticFromRaw(raw *abi.Diagnostic) Diagnostic {
	return Diagnostic{
		Range: SourceRange{
			Start: SourceLocation(raw.SlocRange.Start),
			End:   SourceLocation(raw.SlocRange.End),
		},
		Message: ViewText(&raw.Message).String(),
	}
}

// rawDiagnostic allocates the message as an owned text. The engine takes ownership
// of the result.
func (l *Library) rawDiagnostic(d Diagnostic) (abi.Diagnostic, error) {
	msg, err := l.NewText(strings.ToValidUTF8(d.Message, "\ufffd"))
	if err != nil {
		return abi.Diagnostic{}, err
	}
	return abi.Diagnostic{
		SlocRange: abi.SourceLocationRange{
			Start: abi.SourceLocation(d.Range.Start),
			End:   abi.SourceLocation(d.Range.End),
		},
		Message: msg.IntoRaw(),
	}, nil
}
