// Package naming derives descriptive identifiers from how a value is used.
// Every function here is pure; collision handling belongs to the callers,
// which know the scope chain.
package naming

import (
	"fmt"
	"sort"
	"strings"
)

// Hints summarizes the usage of one variable.
type Hints struct {
	LoopVariable bool
	// RangeLoop is set when the variable is the target of `for _ in range(...)`.
	RangeLoop bool
	// RangeDepth counts enclosing range loops in the same function.
	RangeDepth int
	// NestedRange is set when the loop is part of a nest of range loops.
	NestedRange bool
	// Iterable is the collection name of a `for _ in <name>` loop.
	Iterable string
	// Accumulator is set for repeated self-referential updates such as
	// `t += x`; AccumulatorOp holds the operator.
	Accumulator   bool
	AccumulatorOp string
	// CallResult is the callee when every binding is `v = callee(...)`.
	CallResult string
}

var callResultNames = map[string]string{
	"len":       "length",
	"sum":       "total",
	"max":       "maximum",
	"min":       "minimum",
	"input":     "user_input",
	"open":      "handle",
	"str":       "text",
	"int":       "number",
	"float":     "amount",
	"count":     "count",
	"sorted":    "ordered",
	"enumerate": "pairs",
	"abs":       "magnitude",
	"round":     "rounded",
}

// Candidates returns names to try in order of preference. The list may be
// empty, in which case callers fall back to a numbered name.
func Candidates(h Hints) []string {
	var out []string
	add := func(names ...string) {
		for _, n := range names {
			if n != "" && !contains(out, n) {
				out = append(out, n)
			}
		}
	}

	switch {
	case h.RangeLoop && h.NestedRange:
		switch h.RangeDepth {
		case 0:
			add("row_index")
		case 1:
			add("col_index")
		default:
			add(fmt.Sprintf("index_%d", h.RangeDepth+1))
		}
		add("index")
	case h.RangeLoop:
		add("index")
	case h.Accumulator:
		switch h.AccumulatorOp {
		case "+=", "-=", "+", "-":
			add("total", "accumulator")
		case "*=", "*":
			add("product", "accumulator")
		default:
			add("accumulator")
		}
	case h.LoopVariable:
		if single := Singular(h.Iterable); single != "" {
			add(single)
		}
		add("item")
	}
	if name, ok := callResultNames[h.CallResult]; ok {
		add(name)
	}
	return out
}

// Fallback returns the numbered fallback name for a scope counter.
func Fallback(n int) string {
	return fmt.Sprintf("value_%d", n)
}

var irregular = map[string]string{
	"people":   "person",
	"children": "child",
	"men":      "man",
	"women":    "woman",
	"indices":  "index",
	"matrices": "matrix",
	"data":     "",
	"news":     "",
}

// Singular returns the singular form of a plural identifier, or "" when
// the word does not look plural. Only the last underscore-separated word
// is inflected.
func Singular(word string) string {
	if word == "" {
		return ""
	}
	prefix := ""
	last := word
	if i := strings.LastIndex(word, "_"); i >= 0 {
		prefix, last = word[:i+1], word[i+1:]
	}
	lower := strings.ToLower(last)
	if s, ok := irregular[lower]; ok {
		if s == "" {
			return ""
		}
		return prefix + s
	}
	var single string
	switch {
	case len(lower) < 3:
		return ""
	case strings.HasSuffix(lower, "ies"):
		single = last[:len(last)-3] + "y"
	case strings.HasSuffix(lower, "sses"), strings.HasSuffix(lower, "xes"),
		strings.HasSuffix(lower, "ches"), strings.HasSuffix(lower, "shes"):
		single = last[:len(last)-2]
	case strings.HasSuffix(lower, "ss"), strings.HasSuffix(lower, "us"), strings.HasSuffix(lower, "is"):
		return ""
	case strings.HasSuffix(lower, "s"):
		single = last[:len(last)-1]
	default:
		return ""
	}
	if single == "" {
		return ""
	}
	return prefix + single
}

// Condition describes a boolean expression for naming purposes.
type Condition struct {
	// Subjects holds the left-hand identifier of every comparison.
	Subjects []string
	// Op is the top-level boolean operator, "and", "or" or "".
	Op string
	// NoneChecks is set when every comparison is `<subject> is not None`.
	NoneChecks bool
}

// ConditionCandidates proposes names for an extracted condition.
func ConditionCandidates(c Condition) []string {
	subjects := unique(c.Subjects)
	switch {
	case len(subjects) == 1 && c.NoneChecks:
		return []string{"has_" + subjects[0]}
	case len(subjects) == 1 && c.Op == "or":
		return []string{subjects[0] + "_matches"}
	case len(subjects) == 1:
		return []string{"is_valid_" + subjects[0]}
	case len(subjects) > 1 && c.Op == "or":
		return []string{"any_criteria_met"}
	case len(subjects) > 1:
		return []string{"meets_criteria"}
	}
	return nil
}

// ConditionFallback returns the numbered fallback for conditions.
func ConditionFallback(n int) string {
	return fmt.Sprintf("condition_%d", n)
}

var verbStopList = map[string]bool{
	"print": true, "len": true, "str": true, "int": true, "float": true,
	"range": true, "isinstance": true, "list": true, "dict": true, "set": true,
	"tuple": true, "bool": true, "enumerate": true, "zip": true, "sorted": true,
	"min": true, "max": true, "sum": true, "abs": true, "type": true,
}

// Verb picks the dominant action among callee names: the most frequent
// first word of a snake_case callee, ties going to the earliest. Builtins
// that say nothing about intent are ignored.
func Verb(callees []string) string {
	counts := make(map[string]int)
	first := make(map[string]int)
	for i, callee := range callees {
		word := strings.ToLower(strings.Split(strings.Trim(callee, "_"), "_")[0])
		if word == "" || verbStopList[word] || verbStopList[callee] {
			continue
		}
		if _, seen := first[word]; !seen {
			first[word] = i
		}
		counts[word]++
	}
	words := make([]string, 0, len(counts))
	for w := range counts {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool {
		if counts[words[i]] != counts[words[j]] {
			return counts[words[i]] > counts[words[j]]
		}
		return first[words[i]] < first[words[j]]
	})
	if len(words) == 0 {
		return ""
	}
	return words[0]
}

// SharedHelper names a function hoisted from duplicated code.
func SharedHelper(verb string, n int) string {
	if verb != "" {
		return "shared_" + verb
	}
	return fmt.Sprintf("shared_block_%d", n)
}

// ExtractedHelper names a function split out of a long function.
func ExtractedHelper(verb string, n int) string {
	if verb != "" {
		return verb + "_step"
	}
	return fmt.Sprintf("extracted_helper_%d", n)
}

// Suffixed returns base, or base_2, base_3, ... for the first name that
// taken rejects.
func Suffixed(base string, taken func(string) bool) string {
	if !taken(base) {
		return base
	}
	for i := 2; ; i++ {
		name := fmt.Sprintf("%s_%d", base, i)
		if !taken(name) {
			return name
		}
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func unique(list []string) []string {
	var out []string
	for _, v := range list {
		if v != "" && !contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}
