// Package format rewrites quill source into its canonical form: ascii
// primitive spellings become glyphs, spacing is normalized, and
// comments and line structure are preserved. Source that does not
// parse is returned to the caller untouched along with the parse
// error, so editors can keep the buffer as the user wrote it.
package format

import (
	"strings"

	"github.com/chazu/quill/compiler"
)

// Options control the rewrite.
type Options struct {
	// Glyphs rewrites ascii primitive names and digraphs to their
	// glyph spellings. Spacing is normalized either way.
	Glyphs bool
}

// DefaultOptions enables glyph rewriting.
func DefaultOptions() Options {
	return Options{Glyphs: true}
}

// Source formats src with the default options.
func Source(src string) (string, error) {
	return SourceWith(src, DefaultOptions())
}

// SourceWith formats src. The source must parse; a lex or parse error
// is returned unchanged.
func SourceWith(src string, opts Options) (string, error) {
	if _, err := compiler.Parse(src); err != nil {
		return "", err
	}

	l := compiler.NewLexer(src)
	l.KeepComments = true

	var sb strings.Builder
	lineLen := 0 // runes written since the last newline
	space := false

	word := func(text string) {
		if space {
			sb.WriteByte(' ')
		}
		sb.WriteString(text)
		lineLen += len([]rune(text))
	}

	for {
		tok := l.NextToken()
		switch tok.Type {
		case compiler.TokenEOF:
			out := sb.String()
			if out != "" && !strings.HasSuffix(out, "\n") {
				out += "\n"
			}
			return out, nil

		case compiler.TokenNewline:
			sb.WriteByte('\n')
			lineLen = 0
			space = false

		case compiler.TokenComment:
			if lineLen > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(tok.Literal)
			lineLen += len([]rune(tok.Literal))
			space = false

		case compiler.TokenLBracket, compiler.TokenLParen:
			word(tok.Literal)
			space = false

		case compiler.TokenRBracket, compiler.TokenRParen:
			space = false
			word(tok.Literal)
			space = true

		case compiler.TokenStrand:
			// Strands bind tighter than spacing: 1_2_3, never 1 _ 2.
			space = false
			word("_")
			space = false

		case compiler.TokenArrow:
			if opts.Glyphs {
				word("←")
			} else {
				word(tok.Literal)
			}
			space = true

		case compiler.TokenPrimitive, compiler.TokenModifier:
			word(primText(tok, opts))
			space = true

		default:
			word(tok.Literal)
			space = true
		}
	}
}

// primText picks the spelling for a primitive token.
func primText(tok compiler.Token, opts Options) string {
	if !opts.Glyphs {
		return tok.Literal
	}
	if g := tok.Prim.Glyph(); g != 0 {
		return string(g)
	}
	// Name-only primitives such as neg and the &-names.
	return tok.Prim.Name()
}
