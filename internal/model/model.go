// Package model defines core data structures for stepguide.
package model

// Span locates a region of a source file. Lines are 1-based, chars are
// 0-based byte columns.
type Span struct {
	Start     int `yaml:"start"`
	StartChar int `yaml:"start_char"`
	End       int `yaml:"end"`
	EndChar   int `yaml:"end_char"`
}

// Method describes one discovered step implementation.
type Method struct {
	// Name identifies the implementing routine, qualified by its declaring
	// type. Overloads carry a "-N" suffix from the second occurrence on.
	Name      string `yaml:"name"`
	ClassName string `yaml:"class,omitempty"`
	// FileName is the absolute path of the declaring source file.
	FileName string `yaml:"file"`
	// StepValue is the placeholder form, e.g. "say {} to {}".
	StepValue string `yaml:"step_value"`
	// StepText is the wording shown to authors, e.g. "say <what> to <who>".
	StepText   string `yaml:"step_text"`
	HasAlias   bool   `yaml:"has_alias"`
	IsExternal bool   `yaml:"external,omitempty"`
	// Span covers the whole method declaration.
	Span Span `yaml:"span"`
}

// ParameterCount returns the number of parameters implied by StepValue.
func (m Method) ParameterCount() int {
	return CountPlaceholders(m.StepValue)
}

// StepPosition is a step's declaration position inside a file.
type StepPosition struct {
	StepValue string `yaml:"step_value"`
	Span      Span   `yaml:"span"`
}

// ParamPosition maps a parameter's old index to its new index.
// Old is -1 for a parameter that did not exist before.
type ParamPosition struct {
	Old int
	New int
}

// Parameter is one declared parameter of a step method. Default is the
// default value expression, kept verbatim.
type Parameter struct {
	Type    string
	Name    string
	Default string
}

// Diff is a replaced region of a source file.
type Diff struct {
	Content string `yaml:"content"`
	Span    Span   `yaml:"span"`
}

// RefactoringChange is the outcome of a refactor: the full new content of
// FileName and the edits that produced it, in edit order.
type RefactoringChange struct {
	FileName    string `yaml:"file"`
	FileContent string `yaml:"-"`
	Diffs       []Diff `yaml:"diffs"`
}
