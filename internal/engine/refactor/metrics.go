package refactor

import (
	"strings"

	"pyrefactor/internal/engine/syntax"
)

// Metrics summarizes the submitted source.
type Metrics struct {
	Lines      int `json:"lines"`
	Functions  int `json:"functions"`
	Classes    int `json:"classes"`
	Statements int `json:"statements"`
	MaxDepth   int `json:"max_depth"`

	// AverageFunctionLength is the mean number of source lines spanned by
	// a function definition, zero when there are none.
	AverageFunctionLength float64 `json:"average_function_length"`
}

// Measure computes metrics for a parsed tree. Depth counts nested blocks,
// with module-level statements at depth 1.
func Measure(t *syntax.Tree, source string) Metrics {
	var m Metrics
	if trimmed := strings.TrimRight(source, "\r\n"); trimmed != "" {
		m.Lines = strings.Count(trimmed, "\n") + 1
	}
	spanned := 0
	var walk func(id syntax.NodeID, depth int)
	walk = func(id syntax.NodeID, depth int) {
		n := t.Node(id)
		if n == nil {
			return
		}
		if n.Kind == syntax.KindBlock {
			depth++
		}
		if n.Kind.IsStatement() && n.Kind != syntax.KindComment {
			m.Statements++
			if depth > m.MaxDepth {
				m.MaxDepth = depth
			}
		}
		switch n.Kind {
		case syntax.KindFunctionDef:
			m.Functions++
			spanned += t.LastLine(id) - t.Line(id) + 1
		case syntax.KindClassDef:
			m.Classes++
		}
		for _, c := range n.Children {
			walk(c, depth)
		}
	}
	walk(t.Root, 0)
	if m.Functions > 0 {
		m.AverageFunctionLength = float64(spanned) / float64(m.Functions)
	}
	return m
}
