// Package server implements the quill language server: compile
// diagnostics, primitive hover and completion, and whole-document
// formatting over LSP on stdio.
package server

import (
	"fmt"
	"strings"
	"sync"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/chazu/quill/compiler"
	"github.com/chazu/quill/format"
	"github.com/chazu/quill/vm"

	_ "github.com/tliron/commonlog/simple"
)

const lspName = "quill-lsp"

// LspServer serves editor features for quill source buffers. Buffers
// are compiled in-process; compilation is pure, so no interpreter
// state is shared with the editor session.
type LspServer struct {
	mu   sync.Mutex
	docs map[string]string // URI → full document content

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// NewLSP creates a new language server.
func NewLSP() *LspServer {
	s := &LspServer{
		docs:    make(map[string]string),
		version: "0.1.0",
	}

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentCompletion: s.textDocumentCompletion,
		TextDocumentHover:      s.textDocumentHover,
		TextDocumentFormatting: s.textDocumentFormatting,
	}

	s.server = glspserver.NewServer(&s.handler, lspName, false)

	return s
}

// Run starts the server on stdio. Blocks until the client disconnects.
func (s *LspServer) Run() error {
	return s.server.RunStdio()
}

// --- LSP lifecycle handlers ---

func (s *LspServer) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	commonlog.NewInfoMessage(0, "quill LSP initializing")

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}

	capabilities.CompletionProvider = &protocol.CompletionOptions{}
	capabilities.HoverProvider = true
	capabilities.DocumentFormattingProvider = true

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lspName,
			Version: &s.version,
		},
	}, nil
}

func (s *LspServer) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *LspServer) shutdown(ctx *glsp.Context) error {
	return nil
}

func (s *LspServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

// --- Document synchronization ---

func (s *LspServer) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := params.TextDocument.URI
	text := params.TextDocument.Text

	s.mu.Lock()
	s.docs[string(uri)] = text
	s.mu.Unlock()

	s.publishDiagnostics(ctx, uri, text)
	return nil
}

func (s *LspServer) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI

	// With Full sync, the last change event contains the full text
	if len(params.ContentChanges) > 0 {
		last := params.ContentChanges[len(params.ContentChanges)-1]
		if whole, ok := last.(protocol.TextDocumentContentChangeEventWhole); ok {
			s.mu.Lock()
			s.docs[string(uri)] = whole.Text
			s.mu.Unlock()

			s.publishDiagnostics(ctx, uri, whole.Text)
		}
	}
	return nil
}

func (s *LspServer) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI

	s.mu.Lock()
	delete(s.docs, string(uri))
	s.mu.Unlock()

	// Clear diagnostics for the closed document
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

// --- Language features ---

func (s *LspServer) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	s.mu.Lock()
	text, ok := s.docs[string(params.TextDocument.URI)]
	s.mu.Unlock()
	if !ok {
		return nil, nil
	}

	prefix := extractPrefix(text, params.Position)
	if prefix == "" {
		return nil, nil
	}
	return completionItems(prefix), nil
}

func (s *LspServer) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	s.mu.Lock()
	text, ok := s.docs[string(params.TextDocument.URI)]
	s.mu.Unlock()
	if !ok {
		return nil, nil
	}

	p, ok := primitiveAt(text, params.Position)
	if !ok {
		return nil, nil
	}
	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: primitiveMarkup(p),
		},
	}, nil
}

func (s *LspServer) textDocumentFormatting(ctx *glsp.Context, params *protocol.DocumentFormattingParams) ([]protocol.TextEdit, error) {
	s.mu.Lock()
	text, ok := s.docs[string(params.TextDocument.URI)]
	s.mu.Unlock()
	if !ok {
		return nil, nil
	}

	formatted, err := format.Source(text)
	if err != nil || formatted == text {
		// Unparseable buffers keep the user's text; diagnostics
		// already point at the problem.
		return nil, nil
	}
	return []protocol.TextEdit{{
		Range:   fullRange(text),
		NewText: formatted,
	}}, nil
}

// --- Diagnostics ---

func (s *LspServer) publishDiagnostics(ctx *glsp.Context, uri protocol.DocumentUri, text string) {
	diagnostics := diagnosticsFor(text)
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
}

// diagnosticsFor compiles text and maps the first static error, if
// any, onto its source range. The compiler stops at the first error,
// so a buffer carries at most one diagnostic.
func diagnosticsFor(text string) []protocol.Diagnostic {
	_, err := compiler.Compile(text)
	if err == nil {
		return []protocol.Diagnostic{}
	}

	rng := protocol.Range{}
	if span, ok := compiler.ErrorSpan(err); ok {
		rng = spanToRange(text, span)
	}
	severity := protocol.DiagnosticSeverityError
	source := lspName
	return []protocol.Diagnostic{{
		Range:    rng,
		Severity: &severity,
		Source:   &source,
		Message:  err.Error(),
	}}
}

// --- Position mapping ---

// utf16Len counts UTF-16 code units, the unit LSP positions use.
func utf16Len(runes []rune) int {
	n := 0
	for _, r := range runes {
		if r > 0xFFFF {
			n += 2
		} else {
			n++
		}
	}
	return n
}

// positionFor converts a 1-based rune column to an LSP position.
func positionFor(lines []string, line, column int) protocol.Position {
	if line < 1 {
		line = 1
	}
	if line > len(lines) {
		line = len(lines)
	}
	runes := []rune(lines[line-1])
	col := column - 1
	if col < 0 {
		col = 0
	}
	if col > len(runes) {
		col = len(runes)
	}
	return protocol.Position{
		Line:      protocol.UInteger(line - 1),
		Character: protocol.UInteger(utf16Len(runes[:col])),
	}
}

// spanToRange maps a compiler span to a UTF-16 LSP range.
func spanToRange(text string, span compiler.Span) protocol.Range {
	lines := strings.Split(text, "\n")
	return protocol.Range{
		Start: positionFor(lines, span.Start.Line, span.Start.Column),
		End:   positionFor(lines, span.End.Line, span.End.Column),
	}
}

// fullRange covers the entire document.
func fullRange(text string) protocol.Range {
	lines := strings.Split(text, "\n")
	last := lines[len(lines)-1]
	return protocol.Range{
		Start: protocol.Position{Line: 0, Character: 0},
		End: protocol.Position{
			Line:      protocol.UInteger(len(lines) - 1),
			Character: protocol.UInteger(utf16Len([]rune(last))),
		},
	}
}

// runeColumn converts an LSP UTF-16 character offset to a rune index.
func runeColumn(runes []rune, u16 int) int {
	n := 0
	for i, r := range runes {
		if n >= u16 {
			return i
		}
		if r > 0xFFFF {
			n += 2
		} else {
			n++
		}
	}
	return len(runes)
}

// --- Word extraction ---

func isWordRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

// primitiveAt resolves the primitive under the cursor: either an ascii
// name (possibly &-prefixed) or a single glyph.
func primitiveAt(text string, pos protocol.Position) (vm.Primitive, bool) {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return 0, false
	}
	runes := []rune(lines[pos.Line])
	col := runeColumn(runes, int(pos.Character))

	start, end := col, col
	for start > 0 && isWordRune(runes[start-1]) {
		start--
	}
	for end < len(runes) && isWordRune(runes[end]) {
		end++
	}
	if start < end {
		name := string(runes[start:end])
		if start > 0 && runes[start-1] == '&' {
			name = "&" + name
		}
		if p, ok := vm.PrimitiveByName(name); ok {
			return p, true
		}
		return 0, false
	}

	// Not on a word: try the glyph under (or just before) the cursor.
	for _, i := range []int{col, col - 1} {
		if i >= 0 && i < len(runes) {
			if p, ok := vm.GlyphPrimitive(runes[i]); ok {
				return p, true
			}
		}
	}
	return 0, false
}

// extractPrefix returns the name fragment before the cursor.
func extractPrefix(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	runes := []rune(lines[pos.Line])
	col := runeColumn(runes, int(pos.Character))

	start := col
	for start > 0 && isWordRune(runes[start-1]) {
		start--
	}
	if start == col {
		return ""
	}
	if start > 0 && runes[start-1] == '&' {
		return "&" + string(runes[start:col])
	}
	return string(runes[start:col])
}

// --- Primitive presentation ---

// primitiveMarkup renders the hover card for a primitive.
func primitiveMarkup(p vm.Primitive) string {
	var b strings.Builder
	if g := p.Glyph(); g != 0 {
		fmt.Fprintf(&b, "**%s** %s", string(g), p.Name())
	} else {
		fmt.Fprintf(&b, "**%s**", p.Name())
	}
	fmt.Fprintf(&b, " `%s`\n\n%s", p.Sig(), p.Doc())
	switch p.Operands() {
	case 1:
		b.WriteString("\n\nModifier taking one function operand.")
	case 2:
		b.WriteString("\n\nModifier taking two function operands.")
	}
	return b.String()
}

// completionItems lists the primitives whose name starts with prefix.
func completionItems(prefix string) []protocol.CompletionItem {
	var items []protocol.CompletionItem
	for _, p := range vm.AllPrimitives() {
		name := p.Name()
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		kind := protocol.CompletionItemKindFunction
		if p.IsModifier() {
			kind = protocol.CompletionItemKindKeyword
		}
		detail := p.Doc()
		if g := p.Glyph(); g != 0 {
			detail = string(g) + "  " + detail
		}
		nameCopy := name
		items = append(items, protocol.CompletionItem{
			Label:      name,
			Kind:       &kind,
			Detail:     &detail,
			InsertText: &nameCopy,
		})
	}
	return items
}

func boolPtr(b bool) *bool {
	return &b
}
