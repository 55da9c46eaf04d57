// Package conditional lifts complex if/while conditions into named
// boolean variables.
package conditional

import (
	"log/slog"

	"pyrefactor/internal/engine/naming"
	"pyrefactor/internal/engine/scope"
	"pyrefactor/internal/engine/suggest"
	"pyrefactor/internal/engine/syntax"
)

// DefaultThreshold is the operator count at which a condition is lifted.
const DefaultThreshold = 2

// Options configures the pass.
type Options struct {
	// Threshold is the minimum number of and/or/comparison operators.
	Threshold int
	Logger    *slog.Logger
}

type candidate struct {
	node syntax.NodeID
	test syntax.NodeID
	key  string
	ops  int
}

// Run rewrites eligible conditions in t and reports one suggestion each.
func Run(t *syntax.Tree, opts Options) []suggest.Suggestion {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	threshold := opts.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	var found []candidate
	seen := make(map[string]int)
	t.Inspect(t.Root, func(id syntax.NodeID) bool {
		switch t.Kind(id) {
		case syntax.KindIf, syntax.KindWhile:
			test := t.Child(id, syntax.SlotTest)
			c := candidate{node: id, test: test, key: syntax.PrintExpr(t, test), ops: operators(t, test)}
			if compound(t, test) {
				seen[c.key]++
			}
			found = append(found, c)
		}
		return true
	})

	a := scope.Analyze(t)
	counters := make(map[*scope.Scope]int)
	var out []suggest.Suggestion
	for _, c := range found {
		if c.ops < threshold && !(compound(t, c.test) && seen[c.key] > 1) {
			continue
		}
		line := t.Line(c.node)
		if !sideEffectFree(t, c.test) {
			logger.Debug("condition skipped", "line", line, "reason", "side effects")
			continue
		}
		sc := a.ScopeOf(c.node)
		if sc.Kind == scope.ScopeClass {
			logger.Debug("condition skipped", "line", line, "reason", "class body")
			continue
		}
		if t.Kind(c.node) == syntax.KindWhile && continues(t, t.Child(c.node, syntax.SlotBody)) {
			logger.Debug("condition skipped", "line", line, "reason", "loop uses continue")
			continue
		}
		name := choose(a, sc, describe(t, c.test), counters)
		rewrite(t, c, name)
		a.Reserve(sc, name)
		out = append(out, suggest.New(suggest.CategorySimplifyConditional, line,
			"Extracted complex conditional at line %d to variable '%s'", line, name))
	}
	return out
}

// operators counts and/or connectives and comparison operators.
func operators(t *syntax.Tree, id syntax.NodeID) int {
	n := 0
	t.Inspect(id, func(c syntax.NodeID) bool {
		switch t.Kind(c) {
		case syntax.KindBoolOp:
			n += len(t.Children(c)) - 1
		case syntax.KindCompare:
			n += len(t.Node(c).Ops)
		case syntax.KindLambda:
			return false
		}
		return true
	})
	return n
}

func compound(t *syntax.Tree, id syntax.NodeID) bool {
	found := false
	t.Inspect(id, func(c syntax.NodeID) bool {
		if t.Kind(c) == syntax.KindBoolOp {
			found = true
		}
		return !found
	})
	return found
}

func sideEffectFree(t *syntax.Tree, id syntax.NodeID) bool {
	ok := true
	t.Inspect(id, func(c syntax.NodeID) bool {
		switch t.Kind(c) {
		case syntax.KindCall, syntax.KindLambda, syntax.KindRawExpr, syntax.KindStarred:
			ok = false
		case syntax.KindConstant:
			if syntax.IsFString(t.Name(c)) {
				ok = false
			}
		}
		return ok
	})
	return ok
}

// continues reports whether a continue statement in body targets the
// loop owning body.
func continues(t *syntax.Tree, body syntax.NodeID) bool {
	found := false
	t.Inspect(body, func(c syntax.NodeID) bool {
		switch t.Kind(c) {
		case syntax.KindContinue:
			found = true
		case syntax.KindFor, syntax.KindWhile, syntax.KindFunctionDef, syntax.KindClassDef, syntax.KindLambda:
			return false
		}
		return !found
	})
	return found
}

func describe(t *syntax.Tree, test syntax.NodeID) naming.Condition {
	var c naming.Condition
	operands := []syntax.NodeID{test}
	if t.Kind(test) == syntax.KindBoolOp {
		c.Op = t.Node(test).Ops[0]
		operands = t.Children(test)
	}
	c.NoneChecks = true
	for _, op := range operands {
		if s := subject(t, op); s != "" {
			c.Subjects = append(c.Subjects, s)
		}
		if !noneCheck(t, op) {
			c.NoneChecks = false
		}
	}
	return c
}

func subject(t *syntax.Tree, id syntax.NodeID) string {
	switch t.Kind(id) {
	case syntax.KindName, syntax.KindAttribute:
		return t.Name(id)
	case syntax.KindUnaryOp:
		return subject(t, t.Child(id, 0))
	case syntax.KindCompare:
		for _, c := range t.Children(id) {
			if s := subject(t, c); s != "" {
				return s
			}
		}
	case syntax.KindBoolOp:
		return subject(t, t.Child(id, 0))
	}
	return ""
}

func noneCheck(t *syntax.Tree, id syntax.NodeID) bool {
	n := t.Node(id)
	if n.Kind != syntax.KindCompare || len(n.Ops) != 1 || n.Ops[0] != "is not" {
		return false
	}
	right := t.Node(n.Children[1])
	return right.Kind == syntax.KindConstant && right.Const == syntax.ConstNull
}

func choose(a *scope.Analysis, sc *scope.Scope, c naming.Condition, counters map[*scope.Scope]int) string {
	taken := func(name string) bool { return a.Taken(sc, name) }
	if candidates := naming.ConditionCandidates(c); len(candidates) > 0 {
		return naming.Suffixed(candidates[0], taken)
	}
	for {
		counters[sc]++
		if name := naming.ConditionFallback(counters[sc]); !taken(name) {
			return name
		}
	}
}

func rewrite(t *syntax.Tree, c candidate, name string) {
	n := t.Node(c.node)
	pos := t.Node(c.test).Pos
	if n.Flags&syntax.FlagElif != 0 {
		// elif becomes else: <assignment> if <name>:
		n.Flags &^= syntax.FlagElif
	}
	var recompute syntax.NodeID = syntax.Nil
	if n.Kind == syntax.KindWhile {
		body := t.Child(c.node, syntax.SlotBody)
		kids := t.Children(body)
		if len(kids) == 0 || !t.Kind(kids[len(kids)-1]).IsExit() {
			recompute = t.New(syntax.KindAssign, pos, t.NewName(name, pos), t.Clone(c.test))
		}
	}

	t.SetChild(c.node, syntax.SlotTest, t.NewName(name, pos))
	assign := t.New(syntax.KindAssign, t.Node(c.node).Pos, t.NewName(name, pos), c.test)
	block := t.Parent(c.node)
	t.Insert(block, t.IndexOf(c.node), assign)

	if recompute != syntax.Nil {
		t.Append(t.Child(c.node, syntax.SlotBody), recompute)
	}
}
