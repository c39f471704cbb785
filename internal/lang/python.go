package lang

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/phobologic/stepguide/internal/model"
)

func init() {
	Languages["python"] = &Language{
		Name:            "python",
		Extensions:      []string{".py"},
		lang:            python.GetLanguage(),
		FindSteps:       pythonFindSteps,
		FormatParameter: pythonFormatParameter,
		QuoteString:     quoteEscaped,
		Reserved:        pythonReserved,
		// PEP 8: a trailing underscore avoids keyword clashes.
		EscapeReserved: func(name string) string { return name + "_" },
	}
}

var pythonReserved = reservedSet(
	"False", "None", "True", "and", "as", "assert", "async", "await", "break",
	"class", "continue", "def", "del", "elif", "else", "except", "finally",
	"for", "from", "global", "if", "import", "in", "is", "lambda", "nonlocal",
	"not", "or", "pass", "raise", "return", "try", "while", "with", "yield",
)

func pythonFormatParameter(p model.Parameter) string {
	switch {
	case p.Type == "" && p.Default == "":
		return p.Name
	case p.Type == "":
		return p.Name + "=" + p.Default
	case p.Default == "":
		return p.Name + ": " + p.Type
	}
	return p.Name + ": " + p.Type + " = " + p.Default
}

func pythonFindSteps(root *sitter.Node, source []byte) []StepDecl {
	var decls []StepDecl
	Walk(root, func(n *sitter.Node) bool {
		if n.Type() != "decorated_definition" {
			return true
		}
		if d, ok := pythonStepDecl(n, source); ok {
			decls = append(decls, d)
		}
		// Step functions may be nested in decorated classes.
		return true
	})
	return decls
}

func pythonStepDecl(decorated *sitter.Node, source []byte) (StepDecl, bool) {
	fn := decorated.ChildByFieldName("definition")
	if fn == nil || fn.Type() != "function_definition" {
		return StepDecl{}, false
	}

	var literals []Literal
	for i := 0; i < int(decorated.NamedChildCount()); i++ {
		dec := decorated.NamedChild(i)
		if dec.Type() != "decorator" || dec.NamedChildCount() == 0 {
			continue
		}
		call := dec.NamedChild(0)
		if call.Type() != "call" {
			continue
		}
		callee := call.ChildByFieldName("function")
		if callee == nil || SimpleName(NodeText(callee, source)) != "step" {
			continue
		}
		literals = append(literals, collectLiterals(call.ChildByFieldName("arguments"), source, pythonUnquote, "string")...)
	}
	if len(literals) == 0 {
		return StepDecl{}, false
	}

	name := fn.ChildByFieldName("name")
	params := fn.ChildByFieldName("parameters")
	if name == nil || params == nil {
		return StepDecl{}, false
	}

	d := StepDecl{
		ClassName: pythonFindMethodClass(fn, source),
		Name:      NodeText(name, source),
		Node:      decorated,
		Params:    params,
		Literals:  literals,
	}
	for i := 0; i < int(params.NamedChildCount()); i++ {
		p := params.NamedChild(i)
		if i == 0 && d.ClassName != "" && p.Type() == "identifier" {
			if self := NodeText(p, source); self == "self" || self == "cls" {
				d.Fixed = append(d.Fixed, self)
				continue
			}
		}
		d.Parameters = append(d.Parameters, pythonParameter(p, source))
	}
	return d, true
}

func pythonParameter(p *sitter.Node, source []byte) model.Parameter {
	switch p.Type() {
	case "identifier":
		return model.Parameter{Name: NodeText(p, source)}
	case "typed_parameter":
		param := model.Parameter{}
		if typ := p.ChildByFieldName("type"); typ != nil {
			param.Type = NodeText(typ, source)
		}
		for i := 0; i < int(p.NamedChildCount()); i++ {
			if c := p.NamedChild(i); c.Type() == "identifier" {
				param.Name = NodeText(c, source)
				break
			}
		}
		if param.Name != "" {
			return param
		}
	case "default_parameter", "typed_default_parameter":
		name := p.ChildByFieldName("name")
		if name == nil || name.Type() != "identifier" {
			break
		}
		param := model.Parameter{Name: NodeText(name, source)}
		if typ := p.ChildByFieldName("type"); typ != nil {
			param.Type = NodeText(typ, source)
		}
		if value := p.ChildByFieldName("value"); value != nil {
			param.Default = NodeText(value, source)
		}
		return param
	}
	// Splats are carried verbatim.
	return model.Parameter{Name: NodeText(p, source)}
}

func pythonFindMethodClass(funcNode *sitter.Node, source []byte) string {
	classNode := pythonFindEnclosingClass(funcNode)
	if classNode == nil {
		return ""
	}
	if id := classNode.ChildByFieldName("name"); id != nil {
		return NodeText(id, source)
	}
	return ""
}

func pythonFindEnclosingClass(funcNode *sitter.Node) *sitter.Node {
	parent := funcNode.Parent()
	if parent == nil {
		return nil
	}

	// Decorated: func -> decorated_definition -> block -> class_definition
	if parent.Type() == "decorated_definition" {
		parent = parent.Parent()
	}
	if parent != nil && parent.Type() == "block" && parent.Parent() != nil && parent.Parent().Type() == "class_definition" {
		return parent.Parent()
	}

	return nil
}

func pythonUnquote(lit string) string {
	raw := false
	for len(lit) > 0 && strings.ContainsRune("rRbBuUfF", rune(lit[0])) {
		if lit[0] == 'r' || lit[0] == 'R' {
			raw = true
		}
		lit = lit[1:]
	}
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if strings.HasPrefix(lit, q) && strings.HasSuffix(lit, q) && len(lit) >= 2*len(q) {
			lit = lit[len(q) : len(lit)-len(q)]
			break
		}
	}
	if raw {
		return lit
	}
	return unescape(lit)
}
