package lang

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/java"
)

func init() {
	Languages["java"] = &Language{
		Name:            "java",
		Extensions:      []string{".java"},
		lang:            java.GetLanguage(),
		FindSteps:       javaFindSteps,
		FormatParameter: typedFormat,
		QuoteString:     quoteEscaped,
		Reserved:        javaReserved,
		EscapeReserved:  func(name string) string { return "_" + name },
		DefaultType:     "String",
	}
}

var javaReserved = reservedSet(
	"abstract", "assert", "boolean", "break", "byte", "case", "catch", "char",
	"class", "const", "continue", "default", "do", "double", "else", "enum",
	"extends", "final", "finally", "float", "for", "goto", "if", "implements",
	"import", "instanceof", "int", "interface", "long", "native", "new",
	"package", "private", "protected", "public", "return", "short", "static",
	"strictfp", "super", "switch", "synchronized", "this", "throw", "throws",
	"transient", "try", "void", "volatile", "while", "true", "false", "null",
)

func javaFindSteps(root *sitter.Node, source []byte) []StepDecl {
	var decls []StepDecl
	Walk(root, func(n *sitter.Node) bool {
		if n.Type() != "method_declaration" {
			return true
		}
		if d, ok := javaStepDecl(n, source); ok {
			decls = append(decls, d)
		}
		return false
	})
	return decls
}

func javaStepDecl(method *sitter.Node, source []byte) (StepDecl, bool) {
	var literals []Literal
	for i := 0; i < int(method.NamedChildCount()); i++ {
		mods := method.NamedChild(i)
		if mods.Type() != "modifiers" {
			continue
		}
		for j := 0; j < int(mods.NamedChildCount()); j++ {
			ann := mods.NamedChild(j)
			if ann.Type() != "annotation" {
				continue
			}
			id := ann.ChildByFieldName("name")
			if id == nil || SimpleName(NodeText(id, source)) != "Step" {
				continue
			}
			literals = append(literals, collectLiterals(ann.ChildByFieldName("arguments"), source, javaUnquote, "string_literal")...)
		}
	}
	if len(literals) == 0 {
		return StepDecl{}, false
	}

	params := method.ChildByFieldName("parameters")
	name := nameNode(method, params)
	if name == nil || params == nil {
		return StepDecl{}, false
	}

	d := StepDecl{
		ClassName: javaClassName(method, source),
		Name:      NodeText(name, source),
		Node:      method,
		Params:    params,
		Literals:  literals,
	}
	for i := 0; i < int(params.NamedChildCount()); i++ {
		p := params.NamedChild(i)
		if p.Type() != "formal_parameter" && p.Type() != "spread_parameter" {
			continue
		}
		if param, ok := typedParameter(p, source); ok {
			d.Parameters = append(d.Parameters, param)
		}
	}
	return d, true
}

func javaClassName(method *sitter.Node, source []byte) string {
	var parts []string
	for p := method.Parent(); p != nil; p = p.Parent() {
		switch p.Type() {
		case "class_declaration", "interface_declaration", "enum_declaration", "record_declaration":
			if id := p.ChildByFieldName("name"); id != nil {
				parts = append([]string{NodeText(id, source)}, parts...)
			}
		case "program":
			for i := 0; i < int(p.NamedChildCount()); i++ {
				pkg := p.NamedChild(i)
				if pkg.Type() != "package_declaration" || pkg.NamedChildCount() == 0 {
					continue
				}
				for k := 0; k < int(pkg.NamedChildCount()); k++ {
					if c := pkg.NamedChild(k); c.Type() == "scoped_identifier" || c.Type() == "identifier" {
						parts = append([]string{NodeText(c, source)}, parts...)
						break
					}
				}
				break
			}
		}
	}
	return strings.Join(parts, ".")
}

func javaUnquote(lit string) string {
	if strings.HasPrefix(lit, `"""`) {
		return strings.TrimSpace(strings.Trim(lit, `"`))
	}
	if len(lit) >= 2 && strings.HasPrefix(lit, `"`) {
		return unescape(lit[1 : len(lit)-1])
	}
	return lit
}
