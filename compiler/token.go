package compiler

import (
	"fmt"

	"github.com/chazu/quill/vm"
)

// ---------------------------------------------------------------------------
// Tokens
// ---------------------------------------------------------------------------

// TokenType identifies a token's kind.
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota
	TokenError
	TokenNewline
	TokenComment // emitted only when the lexer keeps comments

	// Literals
	TokenNumber // 3, 1.5e¯3, ¯2, π
	TokenChar   // @a, @\n
	TokenString // "hello"

	// Names
	TokenIdent // foo, add, &fr

	// Primitives
	TokenPrimitive // +, ⊂, ⇡
	TokenModifier  // /, ⬚, ?

	// Delimiters
	TokenLBracket // [
	TokenRBracket // ]
	TokenLParen   // (
	TokenRParen   // )
	TokenStrand   // _
	TokenArrow    // ← or <-
)

var tokenNames = map[TokenType]string{
	TokenEOF:       "EOF",
	TokenError:     "ERROR",
	TokenNewline:   "NEWLINE",
	TokenComment:   "COMMENT",
	TokenNumber:    "NUMBER",
	TokenChar:      "CHARACTER",
	TokenString:    "STRING",
	TokenIdent:     "IDENTIFIER",
	TokenPrimitive: "PRIMITIVE",
	TokenModifier:  "MODIFIER",
	TokenLBracket:  "[",
	TokenRBracket:  "]",
	TokenLParen:    "(",
	TokenRParen:    ")",
	TokenStrand:    "_",
	TokenArrow:     "←",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", int(t))
}

// Token is one lexical token. Literal is the raw source text; the
// payload fields carry the decoded value for the matching type.
type Token struct {
	Type    TokenType
	Literal string
	Num     float64      // TokenNumber
	Ch      rune         // TokenChar
	Str     string       // TokenString, unescaped
	Prim    vm.Primitive // TokenPrimitive and TokenModifier
	Span    Span
}

func (t Token) String() string {
	switch t.Type {
	case TokenEOF:
		return "EOF"
	case TokenError:
		return fmt.Sprintf("ERROR(%s)", t.Literal)
	case TokenNewline:
		return "NEWLINE"
	}
	return fmt.Sprintf("%s(%q)", t.Type, t.Literal)
}
