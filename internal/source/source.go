// Package source parses step source files and applies structural edits to
// them. The grammar-specific work is delegated to the hooks of
// lang.Language, so one implementation serves every supported language.
package source

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/pkg/errors"
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/stepguide/internal/lang"
	"github.com/phobologic/stepguide/internal/model"
)

// Parser is the capability the refactoring engine edits source through.
type Parser interface {
	// Parse reads and parses path.
	Parse(path string) (*File, error)
	// FindDeclaration locates the step method named methodName, preferring
	// the overload whose step literal equals stepText.
	FindDeclaration(f *File, className, methodName, stepText string) (*Declaration, error)
	// ReplaceParameterList schedules a rewrite of the declaration's
	// parameter list. It returns nil when the list would not change.
	ReplaceParameterList(f *File, d *Declaration, params []model.Parameter) (*model.Diff, error)
	// ReplaceLiteralArgument schedules a rewrite of the step literal holding
	// oldText (or the first literal). It returns nil when the text is unchanged.
	ReplaceLiteralArgument(f *File, d *Declaration, oldText, newText string) (*model.Diff, error)
	// Render returns the file content with all scheduled edits applied.
	Render(f *File) (string, error)
}

// File is a parsed source file and the edits scheduled against it.
type File struct {
	Path     string
	Source   []byte
	Language *lang.Language

	tree  *sitter.Tree
	steps []lang.StepDecl
	edits []edit
}

// Close releases the parse tree.
func (f *File) Close() {
	if f.tree != nil {
		f.tree.Close()
		f.tree = nil
	}
}

// Steps returns the step declarations found in the file.
func (f *File) Steps() []lang.StepDecl {
	return f.steps
}

// Declaration is a step method located in a File.
type Declaration struct {
	lang.StepDecl
}

type edit struct {
	start, end uint32
	text       string
}

// TreeSitter implements Parser with the tree-sitter grammars registered in
// package lang.
type TreeSitter struct{}

// NewTreeSitter returns a tree-sitter backed Parser.
func NewTreeSitter() *TreeSitter {
	return &TreeSitter{}
}

var _ Parser = (*TreeSitter)(nil)

// Parse reads path and parses it with the grammar selected by its extension.
// A tree containing syntax errors is rejected with a ParseError.
func (ts *TreeSitter) Parse(path string) (*File, error) {
	l := lang.ForPath(path)
	if l == nil {
		return nil, &ParseError{Path: path, Reason: "unsupported file type"}
	}

	src, err := os.ReadFile(path)
	if err != nil {
		return nil, &SourceNotFoundError{Path: path, Err: err}
	}

	parser := l.NewParser()
	defer parser.Close()
	tree, err := parser.ParseCtx(context.Background(), nil, src)
	if err != nil {
		return nil, &ParseError{Path: path, Reason: err.Error()}
	}
	root := tree.RootNode()
	if root.HasError() {
		bad := firstError(root)
		tree.Close()
		return nil, &ParseError{
			Path:   path,
			Reason: fmt.Sprintf("syntax error at line %d", bad.StartPoint().Row+1),
		}
	}

	return &File{
		Path:     path,
		Source:   src,
		Language: l,
		tree:     tree,
		steps:    l.FindSteps(root, src),
	}, nil
}

// FindDeclaration matches methodName against simple method names and
// className, when set, against the simple name of the enclosing type.
func (ts *TreeSitter) FindDeclaration(f *File, className, methodName, stepText string) (*Declaration, error) {
	wantClass := lang.SimpleName(className)

	var found *lang.StepDecl
	for i := range f.steps {
		d := &f.steps[i]
		if d.Name != methodName {
			continue
		}
		if className != "" && d.ClassName != className && lang.SimpleName(d.ClassName) != wantClass {
			continue
		}
		if found == nil {
			found = d
		}
		if hasLiteral(d, stepText) {
			found = d
			break
		}
	}
	if found == nil {
		return nil, &TargetNotFoundError{Path: f.Path, ClassName: className, Name: methodName}
	}
	return &Declaration{StepDecl: *found}, nil
}

// ReplaceParameterList renders params with the file's language and replaces
// the whole parenthesized list.
func (ts *TreeSitter) ReplaceParameterList(f *File, d *Declaration, params []model.Parameter) (*model.Diff, error) {
	if equalParameters(d.Parameters, params) {
		return nil, nil
	}
	return f.replace(d.Params, f.Language.FormatParameterList(d.Fixed, params))
}

// ReplaceLiteralArgument replaces the literal holding oldText, falling back
// to the first literal of the step annotation.
func (ts *TreeSitter) ReplaceLiteralArgument(f *File, d *Declaration, oldText, newText string) (*model.Diff, error) {
	if len(d.Literals) == 0 {
		return nil, errors.Errorf("%s: step %s has no literal argument", f.Path, d.Name)
	}
	lit := d.Literals[0]
	for _, l := range d.Literals {
		if l.Value == oldText {
			lit = l
			break
		}
	}
	if lit.Value == newText {
		return nil, nil
	}
	return f.replace(lit.Node, f.Language.QuoteString(newText))
}

// Render splices the scheduled edits into the original source.
func (ts *TreeSitter) Render(f *File) (string, error) {
	edits := make([]edit, len(f.edits))
	copy(edits, f.edits)
	sort.Slice(edits, func(i, j int) bool { return edits[i].start > edits[j].start })

	out := make([]byte, len(f.Source))
	copy(out, f.Source)
	for _, e := range edits {
		if int(e.end) > len(out) {
			return "", errors.Errorf("%s: edit [%d,%d) beyond end of source", f.Path, e.start, e.end)
		}
		out = append(out[:e.start], append([]byte(e.text), out[e.end:]...)...)
	}
	return string(out), nil
}

func (f *File) replace(node *sitter.Node, text string) (*model.Diff, error) {
	start, end := node.StartByte(), node.EndByte()
	for _, e := range f.edits {
		if start < e.end && e.start < end {
			return nil, errors.Errorf("%s: overlapping edits at byte %d", f.Path, start)
		}
	}
	f.edits = append(f.edits, edit{start: start, end: end, text: text})
	return &model.Diff{Content: text, Span: lang.SpanOf(node)}, nil
}

func hasLiteral(d *lang.StepDecl, text string) bool {
	for _, l := range d.Literals {
		if l.Value == text {
			return true
		}
	}
	return false
}

func equalParameters(a, b []model.Parameter) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func firstError(n *sitter.Node) *sitter.Node {
	if n.Type() == "ERROR" || n.IsMissing() {
		return n
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c.HasError() || c.IsMissing() {
			return firstError(c)
		}
	}
	return n
}
