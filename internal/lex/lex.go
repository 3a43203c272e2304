// Package lex implements the FHIRPath lexical layer (spec component C3,
// lexical half): turning UTF-8 source text into a flat token stream.
//
// Grounded on the teacher's ANTLR grammar (fhirpath/internal/parser, a
// generated lexer this exercise cannot regenerate) for the token inventory
// itself — identifiers, numbers, strings, date/time literals, keywords,
// operator punctuation, $/% variables — but hand-written, since no example
// repo ships a lexer that isn't ANTLR-generated from a .g4 file.
package lex

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/fhirpath-go/corefhirpath/diag"
)

// Kind identifies the lexical class of a Token.
type Kind int

const (
	EOF Kind = iota
	Identifier
	DelimitedIdentifier // `some ident`
	Number              // integer or decimal literal
	String              // 'single quoted'
	DateTimeLiteral     // @2020-01-01, @T12:00, @2020-01-01T12:00:00Z
	Keyword             // and or xor implies div mod in contains is as not true false
	Variable            // $this $index $total or a bare $name
	EnvVariable         // %name, %`quoted name`, %'string'
	Punct               // . , ( ) [ ] { }
	Operator            // + - * / | = != ~ !~ < <= > >=
)

// Token is one lexical unit with its source span.
type Token struct {
	Kind  Kind
	Text  string // normalized text (escapes resolved for strings, '@' stripped for datetimes)
	Start int
	End   int
}

var keywords = map[string]bool{
	"and": true, "or": true, "xor": true, "implies": true,
	"div": true, "mod": true, "in": true, "contains": true,
	"is": true, "as": true, "not": true, "true": true, "false": true,
}

// Lex scans src fully, returning every token (EOF-terminated) plus any
// diagnostics raised along the way (e.g. unterminated string, empty date/time
// literal); number literals are validated later, by the parser. Lex never
// panics; a malformed token still produces
// something for the parser to synchronize around.
func Lex(src string) ([]Token, []diag.Diagnostic) {
	l := &lexer{src: src}
	var toks []Token
	for {
		t := l.next()
		toks = append(toks, t)
		if t.Kind == EOF {
			break
		}
	}
	return toks, l.diags
}

type lexer struct {
	src   string
	pos   int
	diags []diag.Diagnostic
}

func (l *lexer) errf(code diag.Code, start, end int, detail string) {
	d := diag.New(code, diag.Span{Start: start, End: end})
	d.Detail = detail
	l.diags = append(l.diags, d)
}

func (l *lexer) peekByte() byte {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

func (l *lexer) peekAt(offset int) byte {
	if l.pos+offset >= len(l.src) {
		return 0
	}
	return l.src[l.pos+offset]
}

func (l *lexer) skipTrivia() {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			l.pos++
		case c == '/' && l.peekAt(1) == '/':
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.pos++
			}
		case c == '/' && l.peekAt(1) == '*':
			l.pos += 2
			for l.pos < len(l.src) && !(l.src[l.pos] == '*' && l.peekAt(1) == '/') {
				l.pos++
			}
			if l.pos < len(l.src) {
				l.pos += 2
			}
		default:
			return
		}
	}
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentCont(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func (l *lexer) next() Token {
	l.skipTrivia()
	start := l.pos
	if l.pos >= len(l.src) {
		return Token{Kind: EOF, Start: start, End: start}
	}

	c := l.src[l.pos]

	switch {
	case c == '\'':
		return l.lexString(start)
	case c == '`':
		return l.lexDelimitedIdentifier(start)
	case c == '@':
		return l.lexDateTime(start)
	case c == '$':
		return l.lexDollarVariable(start)
	case c == '%':
		return l.lexPercentVariable(start)
	case c >= '0' && c <= '9':
		return l.lexNumber(start)
	case isIdentStart(rune(c)):
		return l.lexIdentOrKeyword(start)
	default:
		return l.lexOperator(start)
	}
}

func (l *lexer) lexString(start int) Token {
	l.pos++ // opening '
	var sb strings.Builder
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if c == '\'' {
			l.pos++
			return Token{Kind: String, Text: sb.String(), Start: start, End: l.pos}
		}
		if c == '\\' {
			l.pos++
			if l.pos >= len(l.src) {
				break
			}
			esc := l.src[l.pos]
			switch esc {
			case '\\':
				sb.WriteByte('\\')
				l.pos++
			case '\'':
				sb.WriteByte('\'')
				l.pos++
			case '"':
				sb.WriteByte('"')
				l.pos++
			case '`':
				sb.WriteByte('`')
				l.pos++
			case 'n':
				sb.WriteByte('\n')
				l.pos++
			case 't':
				sb.WriteByte('\t')
				l.pos++
			case 'r':
				sb.WriteByte('\r')
				l.pos++
			case 'f':
				sb.WriteByte('\f')
				l.pos++
			case 'v':
				sb.WriteByte('\v')
				l.pos++
			case '/':
				sb.WriteByte('/')
				l.pos++
			case 'u':
				l.pos++
				if l.peekByte() == '{' {
					l.pos++
					hexStart := l.pos
					for l.pos < len(l.src) && l.src[l.pos] != '}' {
						l.pos++
					}
					hex := l.src[hexStart:l.pos]
					if l.pos < len(l.src) {
						l.pos++ // '}'
					}
					var r rune
					if _, err := fmt.Sscanf(hex, "%x", &r); err == nil {
						sb.WriteRune(r)
					} else {
						l.errf(diag.EInvalidEscape, start, l.pos, "invalid unicode escape \\u{"+hex+"}")
					}
				} else {
					hexStart := l.pos
					end := hexStart + 4
					if end > len(l.src) {
						end = len(l.src)
					}
					hex := l.src[hexStart:end]
					var r rune
					if len(hex) == 4 {
						if _, err := fmt.Sscanf(hex, "%x", &r); err == nil {
							sb.WriteRune(r)
							l.pos = end
						} else {
							l.errf(diag.EInvalidEscape, start, l.pos, "invalid unicode escape \\u"+hex)
							l.pos++
						}
					} else {
						l.errf(diag.EInvalidEscape, start, l.pos, "invalid unicode escape \\u"+hex)
						l.pos++
					}
				}
			default:
				l.errf(diag.EInvalidEscape, start, l.pos+1, fmt.Sprintf("unsupported escape \\%c", esc))
				sb.WriteByte(esc)
				l.pos++
			}
			continue
		}
		r, size := utf8.DecodeRuneInString(l.src[l.pos:])
		sb.WriteRune(r)
		l.pos += size
	}
	l.errf(diag.EUnclosedString, start, l.pos, "string literal was never closed")
	return Token{Kind: String, Text: sb.String(), Start: start, End: l.pos}
}

func (l *lexer) lexDelimitedIdentifier(start int) Token {
	l.pos++ // opening `
	var sb strings.Builder
	for l.pos < len(l.src) && l.src[l.pos] != '`' {
		if l.src[l.pos] == '\\' && l.pos+1 < len(l.src) {
			l.pos++
		}
		sb.WriteByte(l.src[l.pos])
		l.pos++
	}
	if l.pos < len(l.src) {
		l.pos++ // closing `
	} else {
		l.errf(diag.EUnclosedString, start, l.pos, "delimited identifier was never closed")
	}
	return Token{Kind: DelimitedIdentifier, Text: sb.String(), Start: start, End: l.pos}
}

// lexDateTime scans an @-prefixed date/time/datetime literal through its
// grammar-legal character set; it does not validate calendar correctness
// (that is the parser/value layer's job per E005).
func (l *lexer) lexDateTime(start int) Token {
	l.pos++ // '@'
	bodyStart := l.pos
	if l.peekByte() == 'T' {
		l.pos++
		l.scanTimeBody()
		return Token{Kind: DateTimeLiteral, Text: l.src[bodyStart:l.pos], Start: start, End: l.pos}
	}
	l.scanDateTimeBody()
	text := l.src[bodyStart:l.pos]
	if text == "" {
		l.errf(diag.EInvalidDateTime, start, l.pos, "empty date/time literal")
	}
	return Token{Kind: DateTimeLiteral, Text: text, Start: start, End: l.pos}
}

func (l *lexer) scanDateTimeBody() {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if (c >= '0' && c <= '9') || c == '-' {
			l.pos++
			continue
		}
		if c == 'T' {
			l.pos++
			l.scanTimeBody()
			return
		}
		break
	}
}

func (l *lexer) scanTimeBody() {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if (c >= '0' && c <= '9') || c == ':' || c == '.' {
			l.pos++
			continue
		}
		if c == 'Z' {
			l.pos++
			return
		}
		if c == '+' || c == '-' {
			l.pos++
			for l.pos < len(l.src) && (l.src[l.pos] >= '0' && l.src[l.pos] <= '9' || l.src[l.pos] == ':') {
				l.pos++
			}
			return
		}
		break
	}
}

func (l *lexer) lexNumber(start int) Token {
	for l.pos < len(l.src) && l.src[l.pos] >= '0' && l.src[l.pos] <= '9' {
		l.pos++
	}
	if l.peekByte() == '.' && l.peekAt(1) >= '0' && l.peekAt(1) <= '9' {
		l.pos++
		for l.pos < len(l.src) && l.src[l.pos] >= '0' && l.src[l.pos] <= '9' {
			l.pos++
		}
	}
	text := l.src[start:l.pos]
	return Token{Kind: Number, Text: text, Start: start, End: l.pos}
}

func (l *lexer) lexDollarVariable(start int) Token {
	l.pos++ // '$'
	nameStart := l.pos
	for l.pos < len(l.src) && isIdentCont(rune(l.src[l.pos])) {
		l.pos++
	}
	return Token{Kind: Variable, Text: l.src[nameStart:l.pos], Start: start, End: l.pos}
}

func (l *lexer) lexPercentVariable(start int) Token {
	l.pos++ // '%'
	if l.peekByte() == '\'' {
		tok := l.lexString(l.pos)
		return Token{Kind: EnvVariable, Text: tok.Text, Start: start, End: tok.End}
	}
	if l.peekByte() == '`' {
		tok := l.lexDelimitedIdentifier(l.pos)
		return Token{Kind: EnvVariable, Text: tok.Text, Start: start, End: tok.End}
	}
	nameStart := l.pos
	for l.pos < len(l.src) && (isIdentCont(rune(l.src[l.pos])) || l.src[l.pos] == '-') {
		l.pos++
	}
	return Token{Kind: EnvVariable, Text: l.src[nameStart:l.pos], Start: start, End: l.pos}
}

func (l *lexer) lexIdentOrKeyword(start int) Token {
	for l.pos < len(l.src) {
		r, size := utf8.DecodeRuneInString(l.src[l.pos:])
		if !isIdentCont(r) {
			break
		}
		l.pos += size
	}
	text := l.src[start:l.pos]
	if keywords[text] {
		return Token{Kind: Keyword, Text: text, Start: start, End: l.pos}
	}
	return Token{Kind: Identifier, Text: text, Start: start, End: l.pos}
}

// multiCharOperators lists operator spellings longer than one byte, longest
// first so the scanner can greedily match.
var multiCharOperators = []string{"<=", ">=", "!=", "!~"}

func (l *lexer) lexOperator(start int) Token {
	for _, op := range multiCharOperators {
		if strings.HasPrefix(l.src[l.pos:], op) {
			l.pos += len(op)
			return Token{Kind: Operator, Text: op, Start: start, End: l.pos}
		}
	}
	c := l.src[l.pos]
	switch c {
	case '.', ',', '(', ')', '[', ']', '{', '}':
		l.pos++
		return Token{Kind: Punct, Text: string(c), Start: start, End: l.pos}
	case '+', '-', '*', '/', '|', '=', '~', '<', '>':
		l.pos++
		return Token{Kind: Operator, Text: string(c), Start: start, End: l.pos}
	default:
		r, size := utf8.DecodeRuneInString(l.src[l.pos:])
		l.pos += size
		l.errf(diag.EUnknownOperator, start, l.pos, fmt.Sprintf("unexpected character %q", r))
		return Token{Kind: Operator, Text: string(r), Start: start, End: l.pos}
	}
}
