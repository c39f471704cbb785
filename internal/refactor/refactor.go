// Package refactor rewrites a step's declaration to match a new step text.
package refactor

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/phobologic/stepguide/internal/lang"
	"github.com/phobologic/stepguide/internal/model"
	"github.com/phobologic/stepguide/internal/parse"
	"github.com/phobologic/stepguide/internal/source"
)

// InvalidMappingError reports a parameter mapping that cannot be applied to
// the declaration.
type InvalidMappingError struct {
	Reason string
}

func (e *InvalidMappingError) Error() string {
	return "invalid parameter mapping: " + e.Reason
}

// Engine computes refactoring changes. It never writes to disk.
type Engine struct {
	parser source.Parser
	logger *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for debug output.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New returns an Engine editing source through parser.
func New(parser source.Parser, opts ...Option) *Engine {
	e := &Engine{parser: parser, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Refactor rewrites the declaration behind m so that its step literal reads
// newStepText and its parameters follow positions. names holds the new
// parameter names indexed by new position.
func (e *Engine) Refactor(m model.Method, positions []model.ParamPosition, names []string, newStepText string) (*model.RefactoringChange, error) {
	path, err := filepath.Abs(m.FileName)
	if err != nil {
		return nil, &source.SourceNotFoundError{Path: m.FileName, Err: err}
	}

	f, err := e.parser.Parse(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	d, err := e.parser.FindDeclaration(f, m.ClassName, parse.BaseName(m.Name), m.StepText)
	if err != nil {
		return nil, err
	}

	params, err := Parameters(f.Language, d.Parameters, positions, names)
	if err != nil {
		return nil, err
	}

	var diffs []model.Diff
	lit, err := e.parser.ReplaceLiteralArgument(f, d, m.StepText, newStepText)
	if err != nil {
		return nil, errors.Wrap(err, "replacing step text")
	}
	if lit != nil {
		diffs = append(diffs, *lit)
	}
	list, err := e.parser.ReplaceParameterList(f, d, params)
	if err != nil {
		return nil, errors.Wrap(err, "replacing parameters")
	}
	if list != nil {
		diffs = append(diffs, *list)
	}

	content, err := e.parser.Render(f)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("refactored step",
		"file", path,
		"method", m.Name,
		"from", m.StepText,
		"to", newStepText,
		"diffs", len(diffs),
	)

	return &model.RefactoringChange{
		FileName:    path,
		FileContent: content,
		Diffs:       diffs,
	}, nil
}

// Parameters builds the new parameter list from the declared parameters and
// the mapping. Reused parameters keep their type; new ones get the
// language's default type and a name from names or argN.
func Parameters(l *lang.Language, old []model.Parameter, positions []model.ParamPosition, names []string) ([]model.Parameter, error) {
	if err := validate(positions, len(old)); err != nil {
		return nil, err
	}

	params := make([]model.Parameter, len(positions))
	for _, p := range positions {
		name := ""
		if p.New < len(names) && names[p.New] != "" {
			name = l.Identifier(names[p.New])
		}

		if p.Old >= 0 {
			param := old[p.Old]
			if name != "" {
				param.Name = name
			}
			params[p.New] = param
			continue
		}

		if name == "" {
			name = fmt.Sprintf("arg%d", p.New)
		}
		params[p.New] = model.Parameter{Type: l.DefaultType, Name: name}
	}
	return params, nil
}

func validate(positions []model.ParamPosition, arity int) error {
	usedOld := make(map[int]bool, len(positions))
	usedNew := make(map[int]bool, len(positions))

	for _, p := range positions {
		switch {
		case p.Old < -1:
			return &InvalidMappingError{Reason: fmt.Sprintf("old index %d out of range", p.Old)}
		case p.Old >= arity:
			return &InvalidMappingError{Reason: fmt.Sprintf("old index %d beyond %d declared parameters", p.Old, arity)}
		case p.Old >= 0 && usedOld[p.Old]:
			return &InvalidMappingError{Reason: fmt.Sprintf("old index %d mapped twice", p.Old)}
		case p.New < 0 || p.New >= len(positions):
			return &InvalidMappingError{Reason: fmt.Sprintf("new index %d out of range", p.New)}
		case usedNew[p.New]:
			return &InvalidMappingError{Reason: fmt.Sprintf("new index %d mapped twice", p.New)}
		}
		if p.Old >= 0 {
			usedOld[p.Old] = true
		}
		usedNew[p.New] = true
	}
	return nil
}
