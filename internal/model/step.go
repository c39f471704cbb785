package model

import (
	"regexp"
	"strings"
)

const placeholder = "{}"

var paramRe = regexp.MustCompile(`<([^<>]*)>`)

// StepValueOf converts step text into its placeholder form:
// "say <what> to <who>" becomes "say {} to {}".
func StepValueOf(text string) string {
	return paramRe.ReplaceAllString(text, placeholder)
}

// ParameterNames returns the placeholder names of a step text in order.
func ParameterNames(text string) []string {
	matches := paramRe.FindAllStringSubmatch(text, -1)
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, m[1])
	}
	return names
}

// CountPlaceholders counts "{}" occurrences in a step value.
func CountPlaceholders(stepValue string) int {
	return strings.Count(stepValue, placeholder)
}

// ParameterPositions computes the mapping from the parameters of oldText to
// those of newText. A new parameter reuses the first not yet claimed old
// parameter with the same name; otherwise its Old index is -1.
func ParameterPositions(oldText, newText string) []ParamPosition {
	oldNames := ParameterNames(oldText)
	claimed := make([]bool, len(oldNames))

	newNames := ParameterNames(newText)
	positions := make([]ParamPosition, 0, len(newNames))
	for j, name := range newNames {
		pos := ParamPosition{Old: -1, New: j}
		for i, old := range oldNames {
			if !claimed[i] && old == name {
				claimed[i] = true
				pos.Old = i
				break
			}
		}
		positions = append(positions, pos)
	}
	return positions
}
