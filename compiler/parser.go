package compiler

import "strings"

// ---------------------------------------------------------------------------
// Parser
// ---------------------------------------------------------------------------

// Parser builds an AST from a token stream.
type Parser struct {
	tokens []Token
	pos    int
	cur    Token
	peek   Token
}

// NewParser creates a parser over the given tokens. The slice must end
// with an EOF token, as produced by Tokenize.
func NewParser(tokens []Token) *Parser {
	p := &Parser{tokens: tokens}
	p.cur = tokens[0]
	if len(tokens) > 1 {
		p.peek = tokens[1]
	} else {
		p.peek = p.cur
	}
	return p
}

// Parse tokenizes and parses source text.
func Parse(source string) (*File, error) {
	tokens, err := Tokenize(source)
	if err != nil {
		return nil, err
	}
	return NewParser(tokens).ParseFile()
}

func (p *Parser) next() {
	if p.pos+1 < len(p.tokens) {
		p.pos++
		p.cur = p.tokens[p.pos]
	} else {
		p.cur = p.tokens[len(p.tokens)-1]
	}
	if p.pos+1 < len(p.tokens) {
		p.peek = p.tokens[p.pos+1]
	} else {
		p.peek = p.cur
	}
}

func (p *Parser) errorf(expected string) *ParseError {
	return &ParseError{Span: p.cur.Span, Expected: expected, Found: p.cur.String()}
}

// ParseFile parses a whole file: lines separated by newlines, each a
// binding or a bare expression.
func (p *Parser) ParseFile() (*File, error) {
	file := &File{}
	for {
		for p.cur.Type == TokenNewline || p.cur.Type == TokenComment {
			p.next()
		}
		if p.cur.Type == TokenEOF {
			return file, nil
		}
		line, err := p.parseLine()
		if err != nil {
			return nil, err
		}
		file.Lines = append(file.Lines, line)
	}
}

// parseLine parses one statement, leaving cur on the newline or EOF
// that ends it.
func (p *Parser) parseLine() (Line, error) {
	if p.cur.Type == TokenIdent && p.peek.Type == TokenArrow {
		return p.parseBinding()
	}
	words, err := p.parseWords()
	if err != nil {
		return nil, err
	}
	span := words[0].Span()
	for _, w := range words[1:] {
		span = span.Cover(w.Span())
	}
	return &ExprLine{SpanVal: span, Words: words}, nil
}

func (p *Parser) parseBinding() (Line, error) {
	name := p.cur
	if strings.HasPrefix(name.Literal, "&") {
		return nil, p.errorf("a bindable name")
	}
	p.next() // name
	p.next() // arrow
	if p.cur.Type == TokenNewline || p.cur.Type == TokenEOF {
		return nil, p.errorf("an expression")
	}
	words, err := p.parseWords()
	if err != nil {
		return nil, err
	}
	span := name.Span
	for _, w := range words {
		span = span.Cover(w.Span())
	}
	return &Binding{SpanVal: span, Name: name.Literal, NameSpan: name.Span, Words: words}, nil
}

// parseWords parses words up to the end of the line.
func (p *Parser) parseWords() ([]Word, error) {
	var words []Word
	for p.cur.Type != TokenNewline && p.cur.Type != TokenEOF {
		if p.cur.Type == TokenComment {
			p.next()
			continue
		}
		w, err := p.parseWord()
		if err != nil {
			return nil, err
		}
		words = append(words, w)
	}
	return words, nil
}

// parseWord parses one word: a modifier application, or a strandable
// primary.
func (p *Parser) parseWord() (Word, error) {
	if p.cur.Type == TokenModifier {
		return p.parseModApp()
	}
	return p.parseStrandable()
}

// parseModApp parses a modifier and the function operands that follow
// it in the source.
func (p *Parser) parseModApp() (Word, error) {
	prim := p.cur.Prim
	span := p.cur.Span
	p.next()
	n := prim.Operands()
	operands := make([]Word, 0, n)
	for i := 0; i < n; i++ {
		if p.cur.Type == TokenNewline || p.cur.Type == TokenEOF ||
			p.cur.Type == TokenRBracket || p.cur.Type == TokenRParen {
			return nil, p.errorf("an operand for " + prim.Name())
		}
		op, err := p.parseWord()
		if err != nil {
			return nil, err
		}
		operands = append(operands, op)
		span = span.Cover(op.Span())
	}
	return &ModApp{SpanVal: span, Prim: prim, Operands: operands}, nil
}

// parseStrandable parses a primary and any underscore-joined
// continuation.
func (p *Parser) parseStrandable() (Word, error) {
	first, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	if p.cur.Type != TokenStrand {
		return first, nil
	}
	if _, ok := first.(*PrimWord); ok {
		return nil, p.errorf("a strand item")
	}
	span := first.Span()
	items := []Word{first}
	for p.cur.Type == TokenStrand {
		p.next()
		item, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		if _, ok := item.(*PrimWord); ok {
			return nil, p.errorf("a strand item")
		}
		items = append(items, item)
		span = span.Cover(item.Span())
	}
	return &StrandLit{SpanVal: span, Items: items}, nil
}

func (p *Parser) parsePrimary() (Word, error) {
	switch p.cur.Type {
	case TokenNumber:
		w := &NumberLit{SpanVal: p.cur.Span, Value: p.cur.Num}
		p.next()
		return w, nil
	case TokenChar:
		w := &CharLit{SpanVal: p.cur.Span, Value: p.cur.Ch}
		p.next()
		return w, nil
	case TokenString:
		w := &StringLit{SpanVal: p.cur.Span, Value: p.cur.Str}
		p.next()
		return w, nil
	case TokenIdent:
		w := &Ident{SpanVal: p.cur.Span, Name: p.cur.Literal}
		p.next()
		return w, nil
	case TokenPrimitive:
		w := &PrimWord{SpanVal: p.cur.Span, Prim: p.cur.Prim}
		p.next()
		return w, nil
	case TokenLBracket:
		words, span, err := p.parseDelimited(TokenRBracket)
		if err != nil {
			return nil, err
		}
		return &ArrayLit{SpanVal: span, Words: words}, nil
	case TokenLParen:
		words, span, err := p.parseDelimited(TokenRParen)
		if err != nil {
			return nil, err
		}
		return &FuncLit{SpanVal: span, Words: words}, nil
	}
	return nil, p.errorf("a word")
}

// parseDelimited parses words between a delimiter pair. Newlines are
// allowed inside.
func (p *Parser) parseDelimited(close TokenType) ([]Word, Span, error) {
	span := p.cur.Span
	p.next() // opening delimiter
	var words []Word
	for {
		for p.cur.Type == TokenNewline || p.cur.Type == TokenComment {
			p.next()
		}
		if p.cur.Type == close {
			span = span.Cover(p.cur.Span)
			p.next()
			return words, span, nil
		}
		if p.cur.Type == TokenEOF {
			return nil, Span{}, p.errorf(close.String())
		}
		w, err := p.parseWord()
		if err != nil {
			return nil, Span{}, err
		}
		words = append(words, w)
	}
}
