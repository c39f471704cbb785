// Package registry indexes step descriptors by step value.
//
// A Registry is safe for concurrent use: queries share a read lock, and
// AddStep, RemoveSteps and ReplaceFile hold the write lock for their whole
// duration.
package registry

import (
	"fmt"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/phobologic/stepguide/internal/model"
)

// NotFoundError is returned by MethodFor for an unregistered step value.
type NotFoundError struct {
	Key string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("step %q not found", e.Key)
}

// Registry maps step values to the methods implementing them.
type Registry struct {
	mu    sync.RWMutex
	steps map[string]model.Method
	// files maps a normalized file name to the keys declared in it.
	files map[string]map[string]struct{}
	// texts counts, per method name, the entries carrying each step text.
	texts map[string]map[string]int
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		steps: make(map[string]model.Method),
		files: make(map[string]map[string]struct{}),
		texts: make(map[string]map[string]int),
	}
}

// AddStep registers m under key, replacing any previous entry for key.
func (r *Registry) AddStep(key string, m model.Method) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.add(key, m)
}

// RemoveSteps drops every entry declared in fileName.
func (r *Registry) RemoveSteps(fileName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeFile(NormalizePath(fileName))
}

// ReplaceFile swaps the entries of fileName for methods, keyed by their step
// values. Readers never observe a mix of old and new entries.
func (r *Registry) ReplaceFile(fileName string, methods []model.Method) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeFile(NormalizePath(fileName))
	for _, m := range methods {
		r.add(m.StepValue, m)
	}
}

// ContainsStep reports whether key is registered.
func (r *Registry) ContainsStep(key string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.steps[key]
	return ok
}

// MethodFor returns the method registered under key.
func (r *Registry) MethodFor(key string) (model.Method, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.steps[key]
	if !ok {
		return model.Method{}, &NotFoundError{Key: key}
	}
	return m, nil
}

// AllSteps returns every registered step value in no particular order.
func (r *Registry) AllSteps() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.steps))
	for k := range r.steps {
		keys = append(keys, k)
	}
	return keys
}

// Methods returns a snapshot of all entries, sorted by step value.
func (r *Registry) Methods() []model.Method {
	r.mu.RLock()
	defer r.mu.RUnlock()
	methods := make([]model.Method, 0, len(r.steps))
	for _, m := range r.steps {
		methods = append(methods, m)
	}
	sort.Slice(methods, func(i, j int) bool {
		return methods[i].StepValue < methods[j].StepValue
	})
	return methods
}

// Len returns the number of registered step values.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.steps)
}

// GetStepText returns the step text registered under key, or "".
func (r *Registry) GetStepText(key string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.steps[key].StepText
}

// HasAlias reports whether the method behind key is registered with more
// than one distinct step text.
func (r *Registry) HasAlias(key string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.steps[key]
	if !ok {
		return false
	}
	return len(r.texts[m.Name]) > 1
}

// IsFileCached reports whether any entry is declared in fileName.
func (r *Registry) IsFileCached(fileName string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.files[NormalizePath(fileName)]) > 0
}

// GetStepPositions returns the declaration positions of the steps in
// fileName, ordered by position. External steps are never included.
func (r *Registry) GetStepPositions(fileName string) []model.StepPosition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var positions []model.StepPosition
	for key := range r.files[NormalizePath(fileName)] {
		m := r.steps[key]
		if m.IsExternal {
			continue
		}
		positions = append(positions, model.StepPosition{StepValue: key, Span: m.Span})
	}
	sort.Slice(positions, func(i, j int) bool {
		a, b := positions[i], positions[j]
		if a.Span.Start != b.Span.Start {
			return a.Span.Start < b.Span.Start
		}
		return a.StepValue < b.StepValue
	})
	return positions
}

func (r *Registry) add(key string, m model.Method) {
	if old, ok := r.steps[key]; ok {
		r.unindex(key, old)
	}
	r.steps[key] = m

	if file := NormalizePath(m.FileName); file != "" {
		keys := r.files[file]
		if keys == nil {
			keys = make(map[string]struct{})
			r.files[file] = keys
		}
		keys[key] = struct{}{}
	}

	texts := r.texts[m.Name]
	if texts == nil {
		texts = make(map[string]int)
		r.texts[m.Name] = texts
	}
	texts[m.StepText]++
}

func (r *Registry) removeFile(file string) {
	for key := range r.files[file] {
		r.unindex(key, r.steps[key])
		delete(r.steps, key)
	}
	delete(r.files, file)
}

func (r *Registry) unindex(key string, m model.Method) {
	if file := NormalizePath(m.FileName); file != "" {
		if keys := r.files[file]; keys != nil {
			delete(keys, key)
			if len(keys) == 0 {
				delete(r.files, file)
			}
		}
	}

	if texts := r.texts[m.Name]; texts != nil {
		if texts[m.StepText]--; texts[m.StepText] <= 0 {
			delete(texts, m.StepText)
		}
		if len(texts) == 0 {
			delete(r.texts, m.Name)
		}
	}
}

// NormalizePath is the file-name form used for every file comparison: an
// absolute, cleaned path, case-folded on case-insensitive platforms. Empty
// names stay empty.
func NormalizePath(fileName string) string {
	if fileName == "" {
		return ""
	}
	path := filepath.Clean(filepath.FromSlash(fileName))
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	if runtime.GOOS == "windows" || runtime.GOOS == "darwin" {
		path = strings.ToLower(path)
	}
	return path
}
