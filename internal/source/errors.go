package source

import "fmt"

// SourceNotFoundError reports a source file that is missing or unreadable.
type SourceNotFoundError struct {
	Path string
	Err  error
}

func (e *SourceNotFoundError) Error() string {
	return fmt.Sprintf("source %s not found: %v", e.Path, e.Err)
}

func (e *SourceNotFoundError) Unwrap() error { return e.Err }

// ParseError reports a source file that cannot be parsed into a well-formed
// tree.
type ParseError struct {
	Path   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %s", e.Path, e.Reason)
}

// TargetNotFoundError reports that no step declaration in Path matches the
// requested method.
type TargetNotFoundError struct {
	Path      string
	ClassName string
	Name      string
}

func (e *TargetNotFoundError) Error() string {
	if e.ClassName == "" {
		return fmt.Sprintf("step method %s not found in %s", e.Name, e.Path)
	}
	return fmt.Sprintf("step method %s.%s not found in %s", e.ClassName, e.Name, e.Path)
}
