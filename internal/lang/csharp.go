package lang

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/csharp"

	"github.com/phobologic/stepguide/internal/model"
)

func init() {
	Languages["csharp"] = &Language{
		Name:            "csharp",
		Extensions:      []string{".cs"},
		lang:            csharp.GetLanguage(),
		FindSteps:       csharpFindSteps,
		FormatParameter: typedFormat,
		QuoteString:     quoteEscaped,
		Reserved:        csharpReserved,
		EscapeReserved:  func(name string) string { return "@" + name },
		DefaultType:     "string",
	}
}

var csharpReserved = reservedSet(
	"abstract", "as", "base", "bool", "break", "byte", "case", "catch", "char",
	"checked", "class", "const", "continue", "decimal", "default", "delegate",
	"do", "double", "else", "enum", "event", "explicit", "extern", "false",
	"finally", "fixed", "float", "for", "foreach", "goto", "if", "implicit",
	"in", "int", "interface", "internal", "is", "lock", "long", "namespace",
	"new", "null", "object", "operator", "out", "override", "params",
	"private", "protected", "public", "readonly", "ref", "return", "sbyte",
	"sealed", "short", "sizeof", "stackalloc", "static", "string", "struct",
	"switch", "this", "throw", "true", "try", "typeof", "uint", "ulong",
	"unchecked", "unsafe", "ushort", "using", "virtual", "void", "volatile",
	"while",
)

func typedFormat(p model.Parameter) string {
	if p.Default != "" {
		return p.Type + " " + p.Name + " = " + p.Default
	}
	return p.Type + " " + p.Name
}

func csharpFindSteps(root *sitter.Node, source []byte) []StepDecl {
	var decls []StepDecl
	Walk(root, func(n *sitter.Node) bool {
		if n.Type() != "method_declaration" {
			return true
		}
		if d, ok := csharpStepDecl(n, source); ok {
			decls = append(decls, d)
		}
		return false
	})
	return decls
}

func csharpStepDecl(method *sitter.Node, source []byte) (StepDecl, bool) {
	var literals []Literal
	for i := 0; i < int(method.NamedChildCount()); i++ {
		list := method.NamedChild(i)
		if list.Type() != "attribute_list" {
			continue
		}
		for j := 0; j < int(list.NamedChildCount()); j++ {
			attr := list.NamedChild(j)
			if attr.Type() != "attribute" || !csharpIsStepAttribute(attr, source) {
				continue
			}
			literals = append(literals, collectLiterals(attr, source, csharpUnquote,
				"string_literal", "verbatim_string_literal", "raw_string_literal")...)
		}
	}
	if len(literals) == 0 {
		return StepDecl{}, false
	}

	params := method.ChildByFieldName("parameters")
	if params == nil {
		for i := 0; i < int(method.NamedChildCount()); i++ {
			if c := method.NamedChild(i); c.Type() == "parameter_list" {
				params = c
				break
			}
		}
	}
	name := nameNode(method, params)
	if name == nil || params == nil {
		return StepDecl{}, false
	}

	d := StepDecl{
		ClassName: csharpClassName(method, source),
		Name:      NodeText(name, source),
		Node:      method,
		Params:    params,
		Literals:  literals,
	}
	for i := 0; i < int(params.NamedChildCount()); i++ {
		p := params.NamedChild(i)
		if p.Type() != "parameter" && p.Type() != "parameter_array" {
			continue
		}
		if param, ok := typedParameter(p, source); ok {
			d.Parameters = append(d.Parameters, param)
		}
	}
	return d, true
}

func csharpIsStepAttribute(attr *sitter.Node, source []byte) bool {
	id := attr.ChildByFieldName("name")
	if id == nil {
		if attr.NamedChildCount() == 0 {
			return false
		}
		id = attr.NamedChild(0)
	}
	name := SimpleName(NodeText(id, source))
	return name == "Step" || name == "StepAttribute"
}

// csharpClassName qualifies the enclosing type with its enclosing types and
// namespace, including a file-scoped namespace.
func csharpClassName(method *sitter.Node, source []byte) string {
	var parts []string
	prepend := func(n *sitter.Node) {
		if id := n.ChildByFieldName("name"); id != nil {
			parts = append([]string{NodeText(id, source)}, parts...)
		}
	}

	namespaced := false
	for p := method.Parent(); p != nil; p = p.Parent() {
		switch p.Type() {
		case "class_declaration", "struct_declaration", "record_declaration", "record_struct_declaration":
			prepend(p)
		case "namespace_declaration", "file_scoped_namespace_declaration":
			prepend(p)
			namespaced = true
		case "compilation_unit":
			if namespaced {
				continue
			}
			for i := 0; i < int(p.NamedChildCount()); i++ {
				if c := p.NamedChild(i); c.Type() == "file_scoped_namespace_declaration" {
					prepend(c)
					break
				}
			}
		}
	}
	return strings.Join(parts, ".")
}

func csharpUnquote(lit string) string {
	switch {
	case strings.HasPrefix(lit, `"""`):
		return strings.TrimSpace(strings.Trim(lit, `"`))
	case strings.HasPrefix(lit, `@"`):
		return strings.ReplaceAll(strings.TrimSuffix(lit[2:], `"`), `""`, `"`)
	case strings.HasPrefix(lit, `"`) && len(lit) >= 2:
		return unescape(lit[1 : len(lit)-1])
	}
	return lit
}
