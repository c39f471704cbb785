// Package toon implements TOON (Token-Oriented Object Notation) encoding.
package toon

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/phobologic/stepguide/internal/model"
	"github.com/phobologic/stepguide/internal/search"
)

var (
	needsQuoting = regexp.MustCompile(`[,:"\\{}\[\]]`)
	looksNumeric = regexp.MustCompile(`^-?(?:0|[1-9]\d*)(?:\.\d+)?$`)
	keywords     = map[string]struct{}{
		"true":  {},
		"false": {},
		"null":  {},
	}
)

// EncodeSteps lists step descriptors. File names are shown relative to root.
func EncodeSteps(root string, methods []model.Method) string {
	var parts []string

	parts = append(parts, fmt.Sprintf("project: %s", encodeValue(filepath.Base(root))))

	var rows [][]string
	for i := range methods {
		m := &methods[i]
		rows = append(rows, []string{
			m.StepValue,
			m.StepText,
			m.Name,
			relPath(root, m.FileName),
			strconv.Itoa(m.Span.Start),
			strconv.FormatBool(m.HasAlias),
		})
	}
	parts = append(parts, formatTabular("steps", []string{"step_value", "step_text", "method", "file", "line", "alias"}, rows))

	return strings.Join(parts, "\n")
}

// EncodePositions lists the step positions of one file.
func EncodePositions(file string, positions []model.StepPosition) string {
	var rows [][]string
	for i := range positions {
		p := &positions[i]
		rows = append(rows, append([]string{p.StepValue}, spanCells(p.Span)...))
	}
	return strings.Join([]string{
		fmt.Sprintf("file: %s", encodeValue(file)),
		formatTabular("positions", []string{"step_value", "start", "start_char", "end", "end_char"}, rows),
	}, "\n")
}

// EncodeChange describes a refactoring change by its diffs.
func EncodeChange(change *model.RefactoringChange) string {
	var rows [][]string
	for i := range change.Diffs {
		d := &change.Diffs[i]
		rows = append(rows, append(spanCells(d.Span), d.Content))
	}
	return strings.Join([]string{
		fmt.Sprintf("file: %s", encodeValue(change.FileName)),
		formatTabular("diffs", []string{"start", "start_char", "end", "end_char", "content"}, rows),
	}, "\n")
}

// EncodeHits lists search results.
func EncodeHits(query string, hits []search.Hit) string {
	var rows [][]string
	for i := range hits {
		h := &hits[i]
		rows = append(rows, []string{
			h.StepText,
			h.Name,
			h.File,
			strconv.FormatFloat(h.Score, 'f', 4, 64),
		})
	}
	return strings.Join([]string{
		fmt.Sprintf("query: %s", encodeValue(query)),
		formatTabular("hits", []string{"step_text", "method", "file", "score"}, rows),
	}, "\n")
}

func spanCells(s model.Span) []string {
	return []string{
		strconv.Itoa(s.Start),
		strconv.Itoa(s.StartChar),
		strconv.Itoa(s.End),
		strconv.Itoa(s.EndChar),
	}
}

func relPath(root, path string) string {
	if path == "" {
		return ""
	}
	if rel, err := filepath.Rel(root, path); err == nil && !strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(rel)
	}
	return path
}

func formatTabular(name string, columns []string, rows [][]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s[%d]{%s}:", name, len(rows), strings.Join(columns, ","))
	for _, row := range rows {
		encoded := make([]string, len(row))
		for i, cell := range row {
			encoded[i] = encodeValue(cell)
		}
		fmt.Fprintf(&b, "\n  %s", strings.Join(encoded, ","))
	}
	return b.String()
}

func encodeValue(value string) string {
	if value == "" {
		return `""`
	}

	if value != strings.TrimSpace(value) {
		return quote(value)
	}

	if strings.ContainsAny(value, "\n\r\t") {
		return quote(value)
	}

	if _, ok := keywords[strings.ToLower(value)]; ok {
		return quote(value)
	}

	if looksNumeric.MatchString(value) {
		return value
	}

	if needsQuoting.MatchString(value) {
		return quote(value)
	}

	if strings.HasPrefix(value, "-") {
		return quote(value)
	}

	return value
}

func quote(value string) string {
	escaped := strings.ReplaceAll(value, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	escaped = strings.ReplaceAll(escaped, "\n", `\n`)
	escaped = strings.ReplaceAll(escaped, "\r", `\r`)
	escaped = strings.ReplaceAll(escaped, "\t", `\t`)
	return `"` + escaped + `"`
}
