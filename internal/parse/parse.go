// Package parse extracts step descriptors from source files using tree-sitter.
package parse

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/stepguide/internal/lang"
	"github.com/phobologic/stepguide/internal/model"
)

// ExtractSteps parses a source file and returns one Method per step text.
// The parser must be created for the correct language.
// filePath is stored as Method.FileName and should be absolute; root is the
// project root used to name module-level functions.
func ExtractSteps(l *lang.Language, parser *sitter.Parser, source []byte, root, filePath string) ([]model.Method, error) {
	if len(source) == 0 {
		return nil, nil
	}

	tree, err := parser.ParseCtx(context.Background(), nil, source)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing %s", filePath)
	}
	defer tree.Close()

	return Methods(l.FindSteps(tree.RootNode(), source), root, filePath), nil
}

// Methods converts step declarations of one file into descriptors.
// Aliased declarations yield one descriptor per step text, all sharing Name.
func Methods(decls []lang.StepDecl, root, filePath string) []model.Method {
	var methods []model.Method
	seen := make(map[string]int)

	for i := range decls {
		d := &decls[i]
		name := QualifiedName(d, root, filePath)
		seen[name]++
		if n := seen[name]; n > 1 {
			name = fmt.Sprintf("%s-%d", name, n)
		}

		span := lang.SpanOf(d.Node)
		for _, lit := range d.Literals {
			methods = append(methods, model.Method{
				Name:      name,
				ClassName: d.ClassName,
				FileName:  filePath,
				StepValue: model.StepValueOf(lit.Value),
				StepText:  lit.Value,
				HasAlias:  len(d.Literals) > 1,
				Span:      span,
			})
		}
	}

	return methods
}

// QualifiedName is the routine identity of a declaration: the class name,
// or the module path of the file for module-level functions, followed by
// the method name.
func QualifiedName(d *lang.StepDecl, root, filePath string) string {
	qualifier := d.ClassName
	if qualifier == "" {
		qualifier = ModuleName(root, filePath)
	}
	return qualifier + "." + d.Name
}

// ModuleName is the dotted path of filePath relative to root without its
// extension: "/p/a/steps.py" under "/p" becomes "a.steps". Files outside
// root, or an empty root, yield the base name only.
func ModuleName(root, filePath string) string {
	rel := filepath.Base(filePath)
	if root != "" {
		if r, err := filepath.Rel(root, filePath); err == nil && r != ".." && !strings.HasPrefix(r, ".."+string(filepath.Separator)) {
			rel = r
		}
	}
	rel = strings.TrimSuffix(rel, filepath.Ext(rel))
	return strings.ReplaceAll(filepath.ToSlash(rel), "/", ".")
}

// BaseName strips the qualifier and the overload suffix from a Method name:
// "Sample.Steps.Bar-2" becomes "Bar".
func BaseName(name string) string {
	name = lang.SimpleName(name)
	if i := strings.IndexByte(name, '-'); i >= 0 {
		name = name[:i]
	}
	return name
}
