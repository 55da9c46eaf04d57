// Package extract flags long or deeply nested functions and splits a
// cohesive run of their statements into a helper.
package extract

import (
	"fmt"
	"log/slog"

	"pyrefactor/internal/engine/hoist"
	"pyrefactor/internal/engine/naming"
	"pyrefactor/internal/engine/scope"
	"pyrefactor/internal/engine/suggest"
	"pyrefactor/internal/engine/syntax"
)

const (
	DefaultMaxStatements = 15
	DefaultMaxDepth      = 3
	DefaultMinRun        = 2
	DefaultMaxInputs     = 4
	DefaultMaxOutputs    = 2
)

// Options configures thresholds and rewriting.
type Options struct {
	MaxStatements int
	MaxDepth      int
	MinRun        int
	MaxInputs     int
	MaxOutputs    int
	// Rewrite performs the extraction instead of only reporting it.
	Rewrite bool
	Logger  *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.MaxStatements <= 0 {
		o.MaxStatements = DefaultMaxStatements
	}
	if o.MaxDepth <= 0 {
		o.MaxDepth = DefaultMaxDepth
	}
	if o.MinRun < 2 {
		o.MinRun = DefaultMinRun
	}
	if o.MaxInputs <= 0 {
		o.MaxInputs = DefaultMaxInputs
	}
	if o.MaxOutputs <= 0 {
		o.MaxOutputs = DefaultMaxOutputs
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Size counts the statements under block and their deepest nesting level.
// Nested definitions count as one statement.
func Size(t *syntax.Tree, block syntax.NodeID) (statements, depth int) {
	return measure(t, t.Statements(block))
}

func measure(t *syntax.Tree, stmts []syntax.NodeID) (statements, depth int) {
	var walk func(stmts []syntax.NodeID, level int)
	walk = func(stmts []syntax.NodeID, level int) {
		for _, s := range stmts {
			if t.Kind(s) == syntax.KindComment {
				continue
			}
			statements++
			if level > depth {
				depth = level
			}
			switch t.Kind(s) {
			case syntax.KindIf, syntax.KindWhile:
				walk(t.Statements(t.Child(s, syntax.SlotBody)), level+1)
				walk(t.Statements(t.Child(s, syntax.SlotOrElse)), level+1)
			case syntax.KindFor:
				walk(t.Statements(t.Child(s, syntax.SlotForBody)), level+1)
				walk(t.Statements(t.Child(s, syntax.SlotForOrElse)), level+1)
			case syntax.KindCompound:
				for _, clause := range t.Children(s) {
					walk(t.Statements(t.Child(clause, 0)), level+1)
				}
			}
		}
	}
	walk(stmts, 1)
	return statements, depth
}

type proposal struct {
	span    hoist.Span
	frag    hoist.Fragment
	classes hoist.Classified
}

// Run reports every function over the thresholds and, when opts.Rewrite
// is set, extracts the proposed run.
func Run(t *syntax.Tree, opts Options) []suggest.Suggestion {
	opts = opts.withDefaults()

	var funcs []syntax.NodeID
	t.Inspect(t.Root, func(id syntax.NodeID) bool {
		if t.Kind(id) == syntax.KindFunctionDef {
			funcs = append(funcs, id)
		}
		return true
	})

	created := make(map[string]bool)
	counter := 0
	var out []suggest.Suggestion
	for _, fn := range funcs {
		name := t.Name(fn)
		if created[name] || !t.Attached(fn) {
			continue
		}
		body := t.Child(fn, syntax.SlotFuncBody)
		count, depth := Size(t, body)
		if count <= opts.MaxStatements && depth <= opts.MaxDepth {
			continue
		}
		line := t.Line(fn)
		summary := fmt.Sprintf("Function '%s' is too complex (%d statements, depth %d)", name, count, depth)

		a := scope.Analyze(t)
		p, ok := propose(t, a, body, count, opts)
		if !ok {
			out = append(out, suggest.New(suggest.CategoryExtractMethod, line, "%s; no extractable run found", summary))
			continue
		}
		counter++
		helper := naming.Suffixed(naming.ExtractedHelper(naming.Verb(p.frag.Callees), counter), func(s string) bool {
			return a.Taken(a.Module, s) || created[s]
		})
		first, last := p.span.Lines(t)
		if !opts.Rewrite {
			out = append(out, suggest.New(suggest.CategoryExtractMethod, line,
				"%s; %s can become '%s'", summary, suggest.Range(first, last), helper))
			continue
		}
		created[helper] = true
		rewrite(t, p, helper, t.Node(fn).Pos)
		out = append(out, suggest.New(suggest.CategoryExtractMethod, line,
			"%s; extracted %s into '%s'", summary, suggest.Range(first, last), helper))
	}
	return out
}

// propose finds the longest run of top-level statements, short of the
// whole body, that fits the input and output limits. The helper it would
// become must itself stay within the size thresholds, so extraction
// converges. Ties go to the earliest run.
func propose(t *syntax.Tree, a *scope.Analysis, body syntax.NodeID, total int, opts Options) (proposal, bool) {
	kids := t.Children(body)
	var positions []int
	for i, c := range kids {
		if t.Kind(c) != syntax.KindComment {
			positions = append(positions, i)
		}
	}
	for size := len(positions) - 1; size >= opts.MinRun; size-- {
		for i := 0; i+size <= len(positions); i++ {
			span := hoist.Span{Block: body, Start: positions[i], End: positions[i+size-1] + 1}
			frag, err := hoist.Analyze(t, span)
			if err != nil {
				continue
			}
			c, err := hoist.Classify(a, frag)
			if err != nil {
				opts.Logger.Debug("run not extractable", "line", t.Line(kids[positions[i]]), "error", err)
				continue
			}
			if len(c.Params) > opts.MaxInputs || len(c.Outputs) > opts.MaxOutputs {
				continue
			}
			run, depth := measure(t, span.Statements(t))
			helper := run
			if !frag.TailReturn && len(c.Outputs) > 0 {
				helper++
			}
			if helper > opts.MaxStatements || depth > opts.MaxDepth || total-run+1 >= total {
				continue
			}
			return proposal{span: span, frag: frag, classes: c}, true
		}
	}
	return proposal{}, false
}

func rewrite(t *syntax.Tree, p proposal, name string, pos syntax.Pos) {
	h := hoist.Helper{
		Name:       name,
		Params:     p.classes.Params,
		Outputs:    p.classes.Outputs,
		TailReturn: p.frag.TailReturn,
	}
	stmts := p.span.Statements(t)
	def := hoist.Build(t, h, stmts, pos)
	call := hoist.CallStatement(t, name, h.Params, h.Outputs, h.TailReturn, t.Node(stmts[0]).Pos)
	hoist.Replace(t, p.span, call)
	hoist.InsertBefore(t, def, p.span.Block)
}
