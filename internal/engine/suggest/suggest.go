// Package suggest defines the human-readable findings produced by passes.
package suggest

import (
	"fmt"
	"strings"
)

// Category groups suggestions by the pass that produced them.
type Category string

const (
	CategoryRename              Category = "rename"
	CategorySimplifyConditional Category = "simplify_conditional"
	CategoryDuplicate           Category = "duplicate"
	CategoryDeadCode            Category = "dead_code"
	CategoryExtractMethod       Category = "extract_method"
)

// Categories lists every category in pass order.
var Categories = []Category{
	CategoryRename,
	CategorySimplifyConditional,
	CategoryDuplicate,
	CategoryDeadCode,
	CategoryExtractMethod,
}

// Severity ranks how much a finding hurts readability.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Severity of the findings in c. Long methods, repeated blocks and
// compound conditions are medium; naming and dead code are low.
func (c Category) Severity() Severity {
	switch c {
	case CategoryExtractMethod, CategoryDuplicate, CategorySimplifyConditional:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// Suggestion is a single finding. Line refers to the input source.
type Suggestion struct {
	Category Category `json:"category"`
	Message  string   `json:"message"`
	Line     int      `json:"line"`
}

// New builds a suggestion with a formatted message.
func New(category Category, line int, format string, args ...any) Suggestion {
	return Suggestion{Category: category, Message: fmt.Sprintf(format, args...), Line: line}
}

// Severity is the severity of the suggestion's category.
func (s Suggestion) Severity() Severity { return s.Category.Severity() }

func (s Suggestion) String() string {
	return fmt.Sprintf("[%s] line %d: %s", s.Category, s.Line, s.Message)
}

// Range formats an inclusive line range.
func Range(start, end int) string {
	if end <= start {
		return fmt.Sprintf("line %d", start)
	}
	return fmt.Sprintf("lines %d-%d", start, end)
}

// Ranges formats several ranges as a comma separated list.
func Ranges(spans [][2]int) string {
	parts := make([]string, 0, len(spans))
	for _, s := range spans {
		if s[1] <= s[0] {
			parts = append(parts, fmt.Sprintf("%d", s[0]))
		} else {
			parts = append(parts, fmt.Sprintf("%d-%d", s[0], s[1]))
		}
	}
	return strings.Join(parts, ", ")
}

// CountByCategory tallies suggestions per category.
func CountByCategory(list []Suggestion) map[Category]int {
	out := make(map[Category]int)
	for _, s := range list {
		out[s.Category]++
	}
	return out
}

// Filter returns the suggestions in category, preserving order.
func Filter(list []Suggestion, category Category) []Suggestion {
	var out []Suggestion
	for _, s := range list {
		if s.Category == category {
			out = append(out, s)
		}
	}
	return out
}
