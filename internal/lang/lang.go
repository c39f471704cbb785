// Package lang provides a language registry mapping file extensions to
// tree-sitter languages and the hooks that find and rewrite step declarations.
package lang

import (
	"regexp"
	"strings"
	"sync"
	"unicode"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/stepguide/internal/model"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// Literal is one string argument of a step annotation.
type Literal struct {
	Value string
	Node  *sitter.Node
}

// StepDecl is a step-annotated method declaration found in a parse tree.
// Nodes stay valid for as long as the tree they came from.
type StepDecl struct {
	// ClassName is the enclosing type, qualified by namespace or package
	// where the grammar exposes one. Empty for module-level functions.
	ClassName string
	// Name is the simple method name.
	Name   string
	Node   *sitter.Node
	Params *sitter.Node
	// Fixed holds leading parameters that are not step arguments (Python's
	// self). They are kept verbatim when the parameter list is rewritten.
	Fixed      []string
	Parameters []model.Parameter
	Literals   []Literal
}

// Language holds tree-sitter configuration for a supported language.
type Language struct {
	Name       string
	Extensions []string
	lang       *sitter.Language

	// FindSteps returns every step-annotated method declared under root.
	FindSteps func(root *sitter.Node, source []byte) []StepDecl

	// FormatParameter renders a single parameter declaration.
	FormatParameter func(p model.Parameter) string

	// QuoteString renders s as a string literal of the language.
	QuoteString func(s string) string

	// Reserved holds identifiers that cannot name a parameter as-is.
	Reserved map[string]struct{}

	// EscapeReserved turns a reserved word into a legal identifier.
	EscapeReserved func(name string) string

	// DefaultType is the declared type given to a new parameter.
	DefaultType string
}

// GetLanguage returns the tree-sitter Language pointer.
func (l *Language) GetLanguage() *sitter.Language {
	return l.lang
}

// NewParser creates a fresh tree-sitter parser for this language.
// Each goroutine must use its own parser (not thread-safe).
func (l *Language) NewParser() *sitter.Parser {
	p := sitter.NewParser()
	p.SetLanguage(l.lang)
	return p
}

// Identifier turns a step parameter name into a legal parameter identifier:
// characters outside [letter, digit, _] become '_', a leading digit gets a
// '_' prefix and reserved words are escaped.
func (l *Language) Identifier(name string) string {
	var b strings.Builder
	for i, r := range name {
		switch {
		case r == '_' || unicode.IsLetter(r):
			b.WriteRune(r)
		case unicode.IsDigit(r):
			if i == 0 {
				b.WriteRune('_')
			}
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	id := b.String()
	if _, ok := l.Reserved[id]; ok && l.EscapeReserved != nil {
		return l.EscapeReserved(id)
	}
	return id
}

// FormatParameterList renders a parenthesized parameter list.
func (l *Language) FormatParameterList(fixed []string, params []model.Parameter) string {
	parts := make([]string, 0, len(fixed)+len(params))
	parts = append(parts, fixed...)
	for _, p := range params {
		parts = append(parts, l.FormatParameter(p))
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// Languages maps language names to their configuration.
// Populated by init() functions in per-language files.
var Languages = map[string]*Language{}

// extensionMap is built lazily after all init() functions have run.
var extensionMap map[string]string
var extensionOnce sync.Once

func getExtensionMap() map[string]string {
	extensionOnce.Do(func() {
		extensionMap = make(map[string]string)
		for _, l := range Languages {
			for _, ext := range l.Extensions {
				extensionMap[ext] = l.Name
			}
		}
	})
	return extensionMap
}

// ForExtension returns the language name for a file extension, or "" if unsupported.
func ForExtension(ext string) string {
	return getExtensionMap()[ext]
}

// ForPath returns the language for a file path, or nil if unsupported.
func ForPath(path string) *Language {
	i := strings.LastIndexByte(path, '.')
	if i < 0 {
		return nil
	}
	return Languages[ForExtension(path[i:])]
}

// NodeText returns the source text of a tree-sitter node.
func NodeText(node *sitter.Node, source []byte) string {
	return string(source[node.StartByte():node.EndByte()])
}

// CollapseWhitespace replaces runs of whitespace with a single space and trims.
func CollapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// SpanOf returns the span covered by node.
func SpanOf(node *sitter.Node) model.Span {
	start, end := node.StartPoint(), node.EndPoint()
	return model.Span{
		Start:     int(start.Row) + 1,
		StartChar: int(start.Column),
		End:       int(end.Row) + 1,
		EndChar:   int(end.Column),
	}
}

// Walk visits n and its named descendants depth-first. Returning false from
// fn skips the children of the visited node.
func Walk(n *sitter.Node, fn func(*sitter.Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		Walk(n.NamedChild(i), fn)
	}
}

// SimpleName strips any dotted qualifier: "Foo.Bar" becomes "Bar".
func SimpleName(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i+1:]
	}
	return name
}

// collectLiterals gathers the string literal nodes of the given types under n.
func collectLiterals(n *sitter.Node, source []byte, unquote func(string) string, types ...string) []Literal {
	var lits []Literal
	Walk(n, func(c *sitter.Node) bool {
		for _, t := range types {
			if c.Type() == t {
				lits = append(lits, Literal{Value: unquote(NodeText(c, source)), Node: c})
				return false
			}
		}
		return true
	})
	return lits
}

// nameNode returns the "name" field of a declaration, falling back to the
// last identifier child that precedes stop (or the last one at all).
func nameNode(n, stop *sitter.Node) *sitter.Node {
	if id := n.ChildByFieldName("name"); id != nil {
		return id
	}
	var last *sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if stop != nil && c.StartByte() >= stop.StartByte() {
			break
		}
		if c.Type() == "identifier" {
			last = c
		}
	}
	return last
}

// typedParameter splits a "<modifiers> <type> <name> [= <default>]"
// parameter node. The type is everything before the name,
// whitespace-collapsed.
func typedParameter(p *sitter.Node, source []byte) (model.Parameter, bool) {
	name := nameNode(p, nil)
	if name == nil {
		Walk(p, func(c *sitter.Node) bool {
			if c.Type() == "identifier" {
				name = c
			}
			return true
		})
	}
	if name == nil {
		return model.Parameter{}, false
	}
	param := model.Parameter{
		Type: CollapseWhitespace(string(source[p.StartByte():name.StartByte()])),
		Name: NodeText(name, source),
	}
	param.Default = parameterDefault(p, name, source)
	return param, true
}

// parameterDefault returns the expression after "=" that follows name in a
// parameter node, or "" when the parameter has no default.
func parameterDefault(p, name *sitter.Node, source []byte) string {
	for i := 0; i < int(p.ChildCount()); i++ {
		c := p.Child(i)
		if c.StartByte() < name.EndByte() {
			continue
		}
		switch c.Type() {
		case "=":
			return strings.TrimSpace(string(source[c.EndByte():p.EndByte()]))
		case "equals_value_clause":
			return strings.TrimSpace(strings.TrimPrefix(NodeText(c, source), "="))
		}
	}
	return ""
}

var escapes = strings.NewReplacer(
	`\\`, `\`,
	`\"`, `"`,
	`\'`, `'`,
	`\n`, "\n",
	`\r`, "\r",
	`\t`, "\t",
	`\0`, "\x00",
)

var quotes = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	"\n", `\n`,
	"\r", `\r`,
	"\t", `\t`,
)

// quoteEscaped renders a double-quoted, backslash-escaped literal. C#, Java
// and Python share this form.
func quoteEscaped(s string) string {
	return `"` + quotes.Replace(s) + `"`
}

func unescape(s string) string {
	return escapes.Replace(s)
}

func reservedSet(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
