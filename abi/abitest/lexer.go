package abitest

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/lal-go/lal/abi"
)

type tokenKind int

const (
	tokIdent tokenKind = iota
	tokNumber
	tokString
	tokChar
	tokDelim
)

type token struct {
	kind tokenKind
	text string
}

type diagnostic struct {
	rng abi.SourceLocationRange
	msg []uint32
}

type lexResult struct {
	tokens []token
	trivia int
	diags  []diagnostic
}

// tokenCount includes the termination token, as the engine does.
func (r lexResult) tokenCount() int { return len(r.tokens) + 1 }

var twoCharDelims = []string{"=>", "..", "**", ":=", "/=", ">=", "<=", "<<", ">>", "<>"}

const oneCharDelims = "&()*+,-./:;<=>|'"

// lex tokenizes Ada source. Comments count as trivia; whitespace does not
// produce tokens. Columns advance to the next tab stop on '\t'.
func lex(src string, tabStop int) lexResult {
	if tabStop < 1 {
		tabStop = 1
	}
	var res lexResult
	line, col := uint32(1), 1
	loc := func(l uint32, c int) abi.SourceLocation {
		return abi.SourceLocation{Line: l, Column: uint16(c)}
	}
	addDiag := func(l uint32, c, width int, msg string) {
		res.diags = append(res.diags, diagnostic{
			rng: abi.SourceLocationRange{Start: loc(l, c), End: loc(l, c+width)},
			msg: codePoints(msg),
		})
	}

	i := 0
	for i < len(src) {
		r, size := utf8.DecodeRuneInString(src[i:])
		switch {
		case r == '\n':
			line++
			col = 1
			i += size
			continue
		case r == '\t':
			col += tabStop - ((col - 1) % tabStop)
			i += size
			continue
		case r == ' ' || r == '\r' || r == '\f' || r == '\v':
			col++
			i += size
			continue
		case strings.HasPrefix(src[i:], "--"):
			end := strings.IndexByte(src[i:], '\n')
			if end < 0 {
				end = len(src) - i
			}
			col += utf8.RuneCountInString(src[i : i+end])
			i += end
			res.trivia++
			continue
		case r == utf8.RuneError && size == 1:
			addDiag(line, col, 1, "invalid UTF-8 sequence")
			col++
			i++
			continue
		case unicode.IsLetter(r):
			j := i
			for j < len(src) {
				rr, sz := utf8.DecodeRuneInString(src[j:])
				if !unicode.IsLetter(rr) && !unicode.IsDigit(rr) && rr != '_' {
					break
				}
				j += sz
			}
			res.tokens = append(res.tokens, token{tokIdent, src[i:j]})
			col += utf8.RuneCountInString(src[i:j])
			i = j
			continue
		case r >= '0' && r <= '9':
			j := i
			for j < len(src) && (isDigitish(src[j]) || (src[j] == '.' && j+1 < len(src) && src[j+1] != '.')) {
				j++
			}
			res.tokens = append(res.tokens, token{tokNumber, src[i:j]})
			col += j - i
			i = j
			continue
		case r == '"':
			j := i + 1
			closed := false
			for j < len(src) && src[j] != '\n' {
				if src[j] == '"' {
					if j+1 < len(src) && src[j+1] == '"' {
						j += 2
						continue
					}
					closed = true
					j++
					break
				}
				j++
			}
			width := utf8.RuneCountInString(src[i:j])
			if !closed {
				addDiag(line, col, width, "unterminated string literal")
			}
			res.tokens = append(res.tokens, token{tokString, src[i:j]})
			col += width
			i = j
			continue
		case r == '\'' && isCharLiteral(src[i:], res.tokens):
			res.tokens = append(res.tokens, token{tokChar, src[i : i+3]})
			col += 3
			i += 3
			continue
		}

		if d := matchDelim(src[i:]); d != "" {
			res.tokens = append(res.tokens, token{tokDelim, d})
			col += len(d)
			i += len(d)
			continue
		}
		addDiag(line, col, 1, "invalid character '"+string(r)+"'")
		col++
		i += size
	}
	return res
}

func isDigitish(b byte) bool {
	return (b >= '0' && b <= '9') || b == '_' || b == '#' ||
		(b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
}

// isCharLiteral distinguishes 'x' from an attribute tick: a tick following an
// identifier or closing parenthesis introduces an attribute.
func isCharLiteral(rest string, prev []token) bool {
	if len(rest) < 3 || rest[2] != '\'' {
		return false
	}
	if len(prev) == 0 {
		return true
	}
	last := prev[len(prev)-1]
	return last.kind != tokIdent && last.text != ")"
}

func matchDelim(rest string) string {
	for _, d := range twoCharDelims {
		if strings.HasPrefix(rest, d) {
			return d
		}
	}
	if strings.IndexByte(oneCharDelims, rest[0]) >= 0 {
		return rest[:1]
	}
	return ""
}

// withClauses returns the lower-cased unit names named in with clauses.
func withClauses(toks []token) []string {
	var names []string
	for i := 0; i < len(toks); i++ {
		if toks[i].kind != tokIdent || !strings.EqualFold(toks[i].text, "with") {
			continue
		}
		if i > 0 {
			prev := toks[i-1]
			if prev.text != ";" && !strings.EqualFold(prev.text, "limited") && !strings.EqualFold(prev.text, "private") {
				continue
			}
		}
		var cur strings.Builder
		for i++; i < len(toks) && toks[i].text != ";"; i++ {
			switch {
			case toks[i].text == ",":
				if cur.Len() > 0 {
					names = append(names, strings.ToLower(cur.String()))
					cur.Reset()
				}
			case toks[i].kind == tokIdent || toks[i].text == ".":
				cur.WriteString(toks[i].text)
			}
		}
		if cur.Len() > 0 {
			names = append(names, strings.ToLower(cur.String()))
		}
	}
	return names
}
