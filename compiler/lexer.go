package compiler

import (
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/chazu/quill/vm"
)

// ---------------------------------------------------------------------------
// Lexer
// ---------------------------------------------------------------------------

// Lexer tokenizes quill source text.
type Lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      rune // current character, 0 at EOF
	line    int  // current line (1-based)
	col     int  // current column (1-based, in runes)

	// KeepComments makes NextToken emit TokenComment instead of
	// skipping comments. The formatter uses this; the compiler does
	// not.
	KeepComments bool
}

// NewLexer creates a lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{
		input: input,
		line:  1,
		col:   0,
	}
	l.readChar()
	return l
}

// Tokenize converts source text into tokens, ending with an EOF token.
// The first malformed token aborts with a LexError.
func Tokenize(source string) ([]Token, error) {
	l := NewLexer(source)
	var tokens []Token
	for {
		tok := l.NextToken()
		if tok.Type == TokenError {
			return nil, &LexError{Span: tok.Span, Reason: tok.Literal}
		}
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF {
			return tokens, nil
		}
	}
}

// readChar advances to the next character.
func (l *Lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0
		l.pos = l.readPos
		l.col++
		return
	}
	r, size := utf8.DecodeRuneInString(l.input[l.readPos:])
	if l.ch == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	l.ch = r
	l.pos = l.readPos
	l.readPos += size
}

// peekChar returns the next character without consuming it.
func (l *Lexer) peekChar() rune {
	if l.readPos >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPos:])
	return r
}

// position returns the current position.
func (l *Lexer) position() Position {
	return Position{Offset: l.pos, Line: l.line, Column: l.col}
}

func (l *Lexer) spanFrom(start Position) Span {
	return Span{Start: start, End: l.position()}
}

// asciiGlyphs maps ascii spellings onto the glyph primitives.
var asciiGlyphs = map[rune]rune{
	'*': '×',
	'%': '÷',
}

// NextToken scans and returns the next token.
func (l *Lexer) NextToken() Token {
	for {
		l.skipSpaces()
		if l.ch != '#' {
			break
		}
		start := l.position()
		var sb strings.Builder
		for l.ch != '\n' && l.ch != 0 {
			sb.WriteRune(l.ch)
			l.readChar()
		}
		if l.KeepComments {
			return Token{Type: TokenComment, Literal: sb.String(), Span: l.spanFrom(start)}
		}
	}

	start := l.position()

	switch {
	case l.ch == 0:
		return Token{Type: TokenEOF, Span: l.spanFrom(start)}

	case l.ch == '\n':
		l.readChar()
		return Token{Type: TokenNewline, Literal: "\n", Span: l.spanFrom(start)}

	case l.ch == '[':
		l.readChar()
		return Token{Type: TokenLBracket, Literal: "[", Span: l.spanFrom(start)}

	case l.ch == ']':
		l.readChar()
		return Token{Type: TokenRBracket, Literal: "]", Span: l.spanFrom(start)}

	case l.ch == '(':
		l.readChar()
		return Token{Type: TokenLParen, Literal: "(", Span: l.spanFrom(start)}

	case l.ch == ')':
		l.readChar()
		return Token{Type: TokenRParen, Literal: ")", Span: l.spanFrom(start)}

	case l.ch == '_':
		l.readChar()
		return Token{Type: TokenStrand, Literal: "_", Span: l.spanFrom(start)}

	case l.ch == '←':
		l.readChar()
		return Token{Type: TokenArrow, Literal: "←", Span: l.spanFrom(start)}

	case l.ch == '<' && l.peekChar() == '-':
		l.readChar()
		l.readChar()
		return Token{Type: TokenArrow, Literal: "<-", Span: l.spanFrom(start)}

	case l.ch == '<' && l.peekChar() == '=':
		return l.digraph(start, vm.PrimLe)

	case l.ch == '>' && l.peekChar() == '=':
		return l.digraph(start, vm.PrimGe)

	case l.ch == '!' && l.peekChar() == '=':
		return l.digraph(start, vm.PrimNe)

	case l.ch == '"':
		return l.readString(start)

	case l.ch == '@':
		return l.readCharLiteral(start)

	case l.ch == '¯' || isDigit(l.ch) || isNumConstant(l.ch):
		return l.readNumber(start)

	case l.ch == '&' || isIdentLetter(l.ch):
		return l.readIdent(start)
	}

	r := l.ch
	if g, ok := asciiGlyphs[r]; ok {
		r = g
	}
	if p, ok := vm.GlyphPrimitive(r); ok {
		lit := string(l.ch)
		l.readChar()
		typ := TokenPrimitive
		if p.IsModifier() {
			typ = TokenModifier
		}
		return Token{Type: typ, Literal: lit, Prim: p, Span: l.spanFrom(start)}
	}

	lit := string(l.ch)
	l.readChar()
	return Token{Type: TokenError, Literal: "unrecognized character " + strconv.Quote(lit), Span: l.spanFrom(start)}
}

func (l *Lexer) digraph(start Position, p vm.Primitive) Token {
	lit := string(l.ch) + string(l.peekChar())
	l.readChar()
	l.readChar()
	return Token{Type: TokenPrimitive, Literal: lit, Prim: p, Span: l.spanFrom(start)}
}

// skipSpaces skips horizontal whitespace. Newlines are tokens.
func (l *Lexer) skipSpaces() {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\r' {
		l.readChar()
	}
}

func isDigit(r rune) bool       { return r >= '0' && r <= '9' }
func isIdentLetter(r rune) bool { return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') }
func isNumConstant(r rune) bool { return r == 'π' || r == 'τ' || r == 'η' || r == '∞' }

var numConstants = map[rune]float64{
	'π': math.Pi,
	'τ': 2 * math.Pi,
	'η': math.Pi / 2,
	'∞': math.Inf(1),
}

// readNumber scans a number literal: an optional high minus, then a
// named constant or a decimal with optional fraction and exponent.
// Malformed numbers are lexer errors, never deferred to later stages.
func (l *Lexer) readNumber(start Position) Token {
	var lit strings.Builder
	neg := false
	if l.ch == '¯' {
		neg = true
		lit.WriteRune('¯')
		l.readChar()
	}

	if x, ok := numConstants[l.ch]; ok {
		lit.WriteRune(l.ch)
		l.readChar()
		if neg {
			x = -x
		}
		return Token{Type: TokenNumber, Literal: lit.String(), Num: x, Span: l.spanFrom(start)}
	}

	if !isDigit(l.ch) {
		return Token{Type: TokenError, Literal: "expected a number after ¯", Span: l.spanFrom(start)}
	}

	var digits strings.Builder
	scan := func() {
		for isDigit(l.ch) {
			lit.WriteRune(l.ch)
			digits.WriteRune(l.ch)
			l.readChar()
		}
	}
	scan()
	if l.ch == '.' {
		lit.WriteRune('.')
		digits.WriteRune('.')
		l.readChar()
		if !isDigit(l.ch) {
			return Token{Type: TokenError, Literal: "malformed number literal " + strconv.Quote(lit.String()), Span: l.spanFrom(start)}
		}
		scan()
	}
	if l.ch == 'e' || l.ch == 'E' {
		lit.WriteRune(l.ch)
		digits.WriteRune('e')
		l.readChar()
		if l.ch == '+' || l.ch == '-' {
			lit.WriteRune(l.ch)
			digits.WriteRune(l.ch)
			l.readChar()
		} else if l.ch == '¯' {
			lit.WriteRune('¯')
			digits.WriteRune('-')
			l.readChar()
		}
		if !isDigit(l.ch) {
			return Token{Type: TokenError, Literal: "malformed number literal " + strconv.Quote(lit.String()), Span: l.spanFrom(start)}
		}
		scan()
	}

	x, err := strconv.ParseFloat(digits.String(), 64)
	if err != nil {
		return Token{Type: TokenError, Literal: "malformed number literal " + strconv.Quote(lit.String()), Span: l.spanFrom(start)}
	}
	if neg {
		x = -x
	}
	return Token{Type: TokenNumber, Literal: lit.String(), Num: x, Span: l.spanFrom(start)}
}

// readCharLiteral scans @x or an escape like @\n.
func (l *Lexer) readCharLiteral(start Position) Token {
	l.readChar() // consume @
	if l.ch == 0 || l.ch == '\n' {
		return Token{Type: TokenError, Literal: "unterminated character literal", Span: l.spanFrom(start)}
	}
	if l.ch == '\\' {
		l.readChar()
		r, ok := charEscape(l.ch)
		if !ok {
			return Token{Type: TokenError, Literal: "invalid escape @\\" + string(l.ch), Span: l.spanFrom(start)}
		}
		l.readChar()
		return Token{Type: TokenChar, Literal: l.input[start.Offset:l.pos], Ch: r, Span: l.spanFrom(start)}
	}
	r := l.ch
	l.readChar()
	return Token{Type: TokenChar, Literal: l.input[start.Offset:l.pos], Ch: r, Span: l.spanFrom(start)}
}

// charEscape decodes the escapes shared by character and string
// literals. @\s is a space; strings escape the quote instead.
func charEscape(r rune) (rune, bool) {
	switch r {
	case 'n':
		return '\n', true
	case 't':
		return '\t', true
	case 'r':
		return '\r', true
	case '0':
		return 0, true
	case '\\':
		return '\\', true
	case 's':
		return ' ', true
	}
	return 0, false
}

// readString scans a double-quoted string literal.
func (l *Lexer) readString(start Position) Token {
	l.readChar() // consume opening quote
	var sb strings.Builder
	for {
		switch l.ch {
		case 0, '\n':
			return Token{Type: TokenError, Literal: "unterminated string literal", Span: l.spanFrom(start)}
		case '"':
			l.readChar()
			return Token{Type: TokenString, Literal: l.input[start.Offset:l.pos], Str: sb.String(), Span: l.spanFrom(start)}
		case '\\':
			l.readChar()
			if l.ch == '"' {
				sb.WriteRune('"')
				l.readChar()
				continue
			}
			r, ok := charEscape(l.ch)
			if !ok || r == ' ' {
				return Token{Type: TokenError, Literal: "invalid escape \\" + string(l.ch), Span: l.spanFrom(start)}
			}
			sb.WriteRune(r)
			l.readChar()
		default:
			sb.WriteRune(l.ch)
			l.readChar()
		}
	}
}

// readIdent scans an identifier: letters, or & followed by letters for
// the system names.
func (l *Lexer) readIdent(start Position) Token {
	var sb strings.Builder
	if l.ch == '&' {
		sb.WriteRune('&')
		l.readChar()
		if !isIdentLetter(l.ch) {
			return Token{Type: TokenError, Literal: "expected a system name after &", Span: l.spanFrom(start)}
		}
	}
	for isIdentLetter(l.ch) {
		sb.WriteRune(l.ch)
		l.readChar()
	}
	lit := sb.String()
	// Primitive names are reserved words; bindings cannot shadow them.
	if p, ok := vm.PrimitiveByName(lit); ok {
		typ := TokenPrimitive
		if p.IsModifier() {
			typ = TokenModifier
		}
		return Token{Type: typ, Literal: lit, Prim: p, Span: l.spanFrom(start)}
	}
	return Token{Type: TokenIdent, Literal: lit, Span: l.spanFrom(start)}
}
