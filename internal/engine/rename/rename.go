// Package rename replaces single-letter variable names with descriptive
// ones derived from how each variable is used.
package rename

import (
	"log/slog"

	"pyrefactor/internal/core/errors"
	"pyrefactor/internal/engine/naming"
	"pyrefactor/internal/engine/scope"
	"pyrefactor/internal/engine/suggest"
	"pyrefactor/internal/engine/syntax"
)

// Options configures the pass.
type Options struct {
	Policy scope.Policy
	Logger *slog.Logger
}

// Run renames every flagged, safe symbol in t. A rename touches all of a
// symbol's sites or none of them.
func Run(t *syntax.Tree, opts Options) []suggest.Suggestion {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	a := scope.Analyze(t)
	counters := make(map[*scope.Scope]int)
	var out []suggest.Suggestion
	for _, flag := range a.Flagged(opts.Policy) {
		sym := flag.Symbol
		if flag.Unsafe != "" {
			logger.Debug("rename skipped", "symbol", sym.Name, "scope", sym.Scope.Name, "reason", flag.Unsafe)
			continue
		}
		old := sym.Name
		name, collision := choose(a, sym, hintsFor(t, sym), counters)
		if collision != nil {
			logger.Debug("rename disambiguated", "symbol", old, "error", collision)
		}
		if err := apply(t, sym, name); err != nil {
			logger.Debug("rename skipped", "symbol", old, "error", err)
			continue
		}
		a.Reserve(sym.Scope, name)
		line := sym.FirstUseLine()
		out = append(out, suggest.New(suggest.CategoryRename, line, "%s → %s at line %d", old, name, line))
	}
	return out
}

// choose picks the new name for sym. When every candidate is taken the
// first one is suffixed and a NAME_COLLISION error describes the clash.
func choose(a *scope.Analysis, sym *scope.Symbol, h naming.Hints, counters map[*scope.Scope]int) (string, error) {
	taken := func(name string) bool { return a.Taken(sym.Scope, name) }
	candidates := naming.Candidates(h)
	for _, c := range candidates {
		if !taken(c) {
			return c, nil
		}
	}
	if len(candidates) > 0 {
		name := naming.Suffixed(candidates[0], taken)
		err := errors.Newf(errors.CodeNameCollision, "%q is already bound in %s scope; using %q", candidates[0], sym.Scope.Kind, name)
		return name, errors.AddContext(err, errors.CtxSymbol, sym.Name)
	}
	for {
		counters[sym.Scope]++
		if name := naming.Fallback(counters[sym.Scope]); !taken(name) {
			return name, nil
		}
	}
}

// apply verifies every site before rewriting any of them.
func apply(t *syntax.Tree, sym *scope.Symbol, name string) error {
	for _, site := range sym.Sites {
		n := t.Node(site.Node)
		if n == nil || n.Name != sym.Name {
			return errors.Newf(errors.CodeUnsupportedConstruct, "site %d of %q no longer matches", site.Node, sym.Name)
		}
		switch n.Kind {
		case syntax.KindName, syntax.KindParam:
		default:
			return errors.Newf(errors.CodeUnsupportedConstruct, "cannot rename %s site of %q", n.Kind, sym.Name)
		}
		if !t.Attached(site.Node) {
			return errors.Newf(errors.CodeUnsupportedConstruct, "site %d of %q is detached", site.Node, sym.Name)
		}
	}
	for _, site := range sym.Sites {
		t.Node(site.Node).Name = name
	}
	return nil
}

func hintsFor(t *syntax.Tree, sym *scope.Symbol) naming.Hints {
	h := naming.Hints{LoopVariable: sym.Kind == scope.SymbolLoopVariable}
	writes := sym.Writes()

	if h.LoopVariable && len(writes) == 1 {
		target := writes[0].Node
		loop := t.Parent(target)
		if t.Kind(loop) == syntax.KindFor && t.Child(loop, syntax.SlotForTarget) == target {
			iter := t.Child(loop, syntax.SlotForIter)
			if isRangeCall(t, iter) {
				h.RangeLoop = true
				h.RangeDepth = enclosingRangeLoops(t, loop)
				h.NestedRange = h.RangeDepth > 0 || hasNestedRange(t, loop)
			} else {
				h.Iterable = collectionName(t, iter)
			}
		}
	}

	updates, inLoop := 0, false
	callee, calls := "", 0
	for _, w := range writes {
		parent := t.Parent(w.Node)
		if t.Child(parent, syntax.SlotTarget) != w.Node {
			continue
		}
		value := t.Child(parent, syntax.SlotValue)
		switch t.Kind(parent) {
		case syntax.KindAugAssign:
			updates++
			h.AccumulatorOp = t.Node(parent).Ops[0]
			inLoop = inLoop || insideLoop(t, parent)
		case syntax.KindAssign:
			if t.Kind(value) == syntax.KindBinOp && t.Mentions(value, sym.Name) {
				updates++
				h.AccumulatorOp = t.Node(value).Ops[0]
				inLoop = inLoop || insideLoop(t, parent)
			}
			if t.Kind(value) == syntax.KindCall && t.Kind(t.Child(value, 0)) == syntax.KindName {
				name := t.Name(t.Child(value, 0))
				if callee == "" || callee == name {
					callee = name
					calls++
				}
			}
		}
	}
	h.Accumulator = updates >= 2 || (updates >= 1 && inLoop)
	if calls > 0 && calls == len(writes) {
		h.CallResult = callee
	}
	return h
}

func isRangeCall(t *syntax.Tree, id syntax.NodeID) bool {
	return t.Kind(id) == syntax.KindCall && t.Kind(t.Child(id, 0)) == syntax.KindName && t.Name(t.Child(id, 0)) == "range"
}

func isScopeBoundary(k syntax.Kind) bool {
	return k == syntax.KindFunctionDef || k == syntax.KindClassDef || k == syntax.KindLambda
}

func enclosingRangeLoops(t *syntax.Tree, loop syntax.NodeID) int {
	depth := 0
	for cur := t.Parent(loop); cur != syntax.Nil && !isScopeBoundary(t.Kind(cur)); cur = t.Parent(cur) {
		if t.Kind(cur) == syntax.KindFor && isRangeCall(t, t.Child(cur, syntax.SlotForIter)) {
			depth++
		}
	}
	return depth
}

func hasNestedRange(t *syntax.Tree, loop syntax.NodeID) bool {
	found := false
	t.Inspect(t.Child(loop, syntax.SlotForBody), func(id syntax.NodeID) bool {
		if found || isScopeBoundary(t.Kind(id)) {
			return false
		}
		if t.Kind(id) == syntax.KindFor && isRangeCall(t, t.Child(id, syntax.SlotForIter)) {
			found = true
		}
		return !found
	})
	return found
}

func insideLoop(t *syntax.Tree, id syntax.NodeID) bool {
	for cur := t.Parent(id); cur != syntax.Nil && !isScopeBoundary(t.Kind(cur)); cur = t.Parent(cur) {
		switch t.Kind(cur) {
		case syntax.KindFor, syntax.KindWhile:
			return true
		}
	}
	return false
}

func collectionName(t *syntax.Tree, id syntax.NodeID) string {
	switch t.Kind(id) {
	case syntax.KindName, syntax.KindAttribute:
		return t.Name(id)
	case syntax.KindCall:
		fn := t.Child(id, 0)
		// items.values(), sorted(orders)
		if t.Kind(fn) == syntax.KindAttribute {
			return t.Name(t.Child(fn, 0))
		}
		if args := t.Children(id); len(args) == 2 {
			return collectionName(t, args[1])
		}
	}
	return ""
}
