package idl

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokString
	tokNumber
	tokPunct
	tokAnnotation
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of file"
	case tokIdent:
		return "identifier"
	case tokString:
		return "string"
	case tokNumber:
		return "number"
	case tokPunct:
		return "symbol"
	case tokAnnotation:
		return "annotation"
	default:
		return "token"
	}
}

type token struct {
	kind tokenKind
	text string // decoded value for strings, name for annotations
	line int
	col  int
	doc  string // doc comment immediately preceding the token
}

func (t token) String() string {
	switch t.kind {
	case tokEOF:
		return "end of file"
	case tokString:
		return strconv.Quote(t.text)
	case tokAnnotation:
		return "@" + t.text
	default:
		return fmt.Sprintf("%q", t.text)
	}
}

type lexer struct {
	src    string
	pos    int
	line   int
	col    int
	doc    string
	source string
}

// tokenize splits src into tokens, dropping comments. Doc comments
// (/** ... */) are attached to the token that follows them.
func tokenize(src, source string) ([]token, error) {
	lx := &lexer{src: src, line: 1, col: 1, source: source}
	var toks []token
	for {
		tok, err := lx.next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
		if tok.kind == tokEOF {
			return toks, nil
		}
	}
}

func (lx *lexer) errorf(line, col int, format string, args ...any) error {
	return &ParseError{Source: lx.source, Line: line, Col: col, Msg: fmt.Sprintf(format, args...)}
}

func (lx *lexer) peekRune() rune {
	if lx.pos >= len(lx.src) {
		return -1
	}
	r, _ := utf8.DecodeRuneInString(lx.src[lx.pos:])
	return r
}

func (lx *lexer) advance() rune {
	r, size := utf8.DecodeRuneInString(lx.src[lx.pos:])
	lx.pos += size
	if r == '\n' {
		lx.line++
		lx.col = 1
	} else {
		lx.col++
	}
	return r
}

func (lx *lexer) skipSpaceAndComments() error {
	for lx.pos < len(lx.src) {
		r := lx.peekRune()
		switch {
		case unicode.IsSpace(r):
			lx.advance()
		case strings.HasPrefix(lx.src[lx.pos:], "//"):
			for lx.pos < len(lx.src) && lx.peekRune() != '\n' {
				lx.advance()
			}
		case strings.HasPrefix(lx.src[lx.pos:], "/*"):
			line, col := lx.line, lx.col
			isDoc := strings.HasPrefix(lx.src[lx.pos:], "/**") && !strings.HasPrefix(lx.src[lx.pos:], "/**/")
			end := strings.Index(lx.src[lx.pos+2:], "*/")
			if end < 0 {
				return lx.errorf(line, col, "unterminated comment")
			}
			body := lx.src[lx.pos+2 : lx.pos+2+end]
			target := lx.pos + end + 4
			for lx.pos < target {
				lx.advance()
			}
			if isDoc {
				lx.doc = cleanDoc(strings.TrimPrefix(body, "*"))
			}
		default:
			return nil
		}
	}
	return nil
}

func (lx *lexer) next() (token, error) {
	if err := lx.skipSpaceAndComments(); err != nil {
		return token{}, err
	}
	tok := token{line: lx.line, col: lx.col, doc: lx.doc}
	lx.doc = ""
	if lx.pos >= len(lx.src) {
		tok.kind = tokEOF
		return tok, nil
	}

	r := lx.peekRune()
	switch {
	case r == '"':
		s, err := lx.readString()
		if err != nil {
			return token{}, err
		}
		tok.kind, tok.text = tokString, s
	case r == '`':
		lx.advance()
		start := lx.pos
		for lx.pos < len(lx.src) && lx.peekRune() != '`' {
			lx.advance()
		}
		if lx.pos >= len(lx.src) {
			return token{}, lx.errorf(tok.line, tok.col, "unterminated quoted identifier")
		}
		tok.kind, tok.text = tokIdent, lx.src[start:lx.pos]
		lx.advance()
	case r == '@':
		lx.advance()
		start := lx.pos
		for lx.pos < len(lx.src) && isAnnotationRune(lx.peekRune()) {
			lx.advance()
		}
		if lx.pos == start {
			return token{}, lx.errorf(tok.line, tok.col, "annotation without a name")
		}
		tok.kind, tok.text = tokAnnotation, lx.src[start:lx.pos]
	case isIdentStart(r):
		start := lx.pos
		for lx.pos < len(lx.src) && isIdentRune(lx.peekRune()) {
			lx.advance()
		}
		tok.kind, tok.text = tokIdent, lx.src[start:lx.pos]
	case r == '-' || unicode.IsDigit(r):
		start := lx.pos
		lx.advance()
		for lx.pos < len(lx.src) && isNumberRune(lx.peekRune()) {
			lx.advance()
		}
		tok.kind, tok.text = tokNumber, lx.src[start:lx.pos]
	case strings.ContainsRune("{}()<>[],;=?:", r):
		lx.advance()
		tok.kind, tok.text = tokPunct, string(r)
	default:
		return token{}, lx.errorf(tok.line, tok.col, "unexpected character %q", r)
	}
	return tok, nil
}

func (lx *lexer) readString() (string, error) {
	line, col := lx.line, lx.col
	lx.advance()
	var b strings.Builder
	for {
		if lx.pos >= len(lx.src) {
			return "", lx.errorf(line, col, "unterminated string")
		}
		r := lx.advance()
		switch r {
		case '"':
			return b.String(), nil
		case '\n':
			return "", lx.errorf(line, col, "newline in string")
		case '\\':
			if lx.pos >= len(lx.src) {
				return "", lx.errorf(line, col, "unterminated string")
			}
			esc := lx.advance()
			switch esc {
			case '"', '\\', '/', '\'':
				b.WriteRune(esc)
			case 'b':
				b.WriteByte('\b')
			case 'f':
				b.WriteByte('\f')
			case 'n':
				b.WriteByte('\n')
			case 'r':
				b.WriteByte('\r')
			case 't':
				b.WriteByte('\t')
			case 'u':
				if lx.pos+4 > len(lx.src) {
					return "", lx.errorf(lx.line, lx.col, "short unicode escape")
				}
				n, err := strconv.ParseUint(lx.src[lx.pos:lx.pos+4], 16, 32)
				if err != nil {
					return "", lx.errorf(lx.line, lx.col, "bad unicode escape")
				}
				for i := 0; i < 4; i++ {
					lx.advance()
				}
				b.WriteRune(rune(n))
			default:
				return "", lx.errorf(lx.line, lx.col, "unknown escape \\%c", esc)
			}
		default:
			b.WriteRune(r)
		}
	}
}

func isIdentStart(r rune) bool { return r == '_' || unicode.IsLetter(r) }

func isIdentRune(r rune) bool {
	return r == '_' || r == '.' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isAnnotationRune(r rune) bool { return isIdentRune(r) || r == '-' }

func isNumberRune(r rune) bool {
	return unicode.IsDigit(r) || strings.ContainsRune(".eE+-", r)
}

// cleanDoc strips the leading "*" decoration of each doc comment line.
func cleanDoc(body string) string {
	lines := strings.Split(body, "\n")
	for i, l := range lines {
		l = strings.TrimSpace(l)
		l = strings.TrimPrefix(l, "*")
		lines[i] = strings.TrimSpace(l)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
