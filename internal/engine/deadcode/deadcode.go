// Package deadcode removes unreachable statements, constant branches and
// stores whose value is never observed.
package deadcode

import (
	"log/slog"
	"slices"
	"strings"

	"pyrefactor/internal/engine/scope"
	"pyrefactor/internal/engine/suggest"
	"pyrefactor/internal/engine/syntax"
)

// DefaultMaxRounds bounds the fixed-point iteration.
const DefaultMaxRounds = 8

// Options configures the pass.
type Options struct {
	MaxRounds int
	Logger    *slog.Logger
}

type eliminator struct {
	t   *syntax.Tree
	log *slog.Logger
	out []suggest.Suggestion
}

// Run removes dead code from t until nothing changes.
func Run(t *syntax.Tree, opts Options) []suggest.Suggestion {
	rounds := opts.MaxRounds
	if rounds <= 0 {
		rounds = DefaultMaxRounds
	}
	e := &eliminator{t: t, log: opts.Logger}
	if e.log == nil {
		e.log = slog.Default()
	}
	for i := 0; i < rounds; i++ {
		changed := e.unreachable()
		changed = e.constants() || changed
		changed = e.stores() || changed
		if !changed {
			break
		}
	}
	return e.out
}

func (e *eliminator) blocks() []syntax.NodeID {
	var out []syntax.NodeID
	e.t.Inspect(e.t.Root, func(id syntax.NodeID) bool {
		if e.t.Kind(id) == syntax.KindBlock {
			out = append(out, id)
		}
		return true
	})
	return out
}

func (e *eliminator) report(line int, format string, args ...any) {
	e.out = append(e.out, suggest.New(suggest.CategoryDeadCode, line, format, args...))
}

// unreachable drops statements that follow an exit in the same block.
// Comments stay in place.
func (e *eliminator) unreachable() bool {
	t := e.t
	changed := false
	for _, block := range e.blocks() {
		kids := t.Children(block)
		exit := -1
		for i, c := range kids {
			if t.Kind(c).IsExit() {
				exit = i
				break
			}
		}
		if exit < 0 {
			continue
		}
		var keep []syntax.NodeID
		first, last := 0, 0
		for _, c := range kids[exit+1:] {
			if t.Kind(c) == syntax.KindComment {
				keep = append(keep, c)
				continue
			}
			if first == 0 {
				first = t.Line(c)
			}
			last = t.LastLine(c)
		}
		if first == 0 {
			continue
		}
		t.ReplaceRange(block, exit+1, len(kids), keep...)
		e.report(first, "Removed unreachable code at %s", suggest.Range(first, last))
		changed = true
	}
	return changed
}

// truth evaluates a literal condition.
func truth(t *syntax.Tree, id syntax.NodeID) (value, known bool) {
	n := t.Node(id)
	if n == nil || n.Kind != syntax.KindConstant {
		return false, false
	}
	switch n.Const {
	case syntax.ConstBool:
		return n.Name == "True", true
	case syntax.ConstNull:
		return false, true
	case syntax.ConstInt:
		digits := strings.ToLower(strings.ReplaceAll(n.Name, "_", ""))
		for _, p := range []string{"0x", "0o", "0b"} {
			digits = strings.TrimPrefix(digits, p)
		}
		return strings.Trim(digits, "0") != "", true
	}
	return false, false
}

func rangeOf(t *syntax.Tree, block syntax.NodeID) (int, int) {
	kids := t.Children(block)
	if len(kids) == 0 {
		return 0, 0
	}
	return t.Line(kids[0]), t.LastLine(kids[len(kids)-1])
}

// release empties block and returns its former statements.
func release(t *syntax.Tree, block syntax.NodeID) []syntax.NodeID {
	if block == syntax.Nil {
		return nil
	}
	kids := append([]syntax.NodeID(nil), t.Children(block)...)
	t.ReplaceRange(block, 0, len(kids))
	return kids
}

// constants folds if/while statements with literal conditions.
func (e *eliminator) constants() bool {
	t := e.t
	var targets []syntax.NodeID
	t.Inspect(t.Root, func(id syntax.NodeID) bool {
		switch t.Kind(id) {
		case syntax.KindIf, syntax.KindWhile:
			if _, known := truth(t, t.Child(id, syntax.SlotTest)); known {
				targets = append(targets, id)
			}
		}
		return true
	})

	changed := false
	for _, id := range targets {
		if !t.Attached(id) {
			continue
		}
		value, _ := truth(t, t.Child(id, syntax.SlotTest))
		line := t.Line(id)
		literal := t.Name(t.Child(id, syntax.SlotTest))
		body := t.Child(id, syntax.SlotBody)
		orelse := t.Child(id, syntax.SlotOrElse)
		block := t.Parent(id)
		i := t.IndexOf(id)

		switch {
		case t.Kind(id) == syntax.KindWhile && value:
			// while True is a deliberate loop
			continue
		case t.Kind(id) == syntax.KindWhile:
			first, last := t.Line(id), t.LastLine(body)
			t.ReplaceRange(block, i, i+1, release(t, orelse)...)
			e.report(line, "Removed loop that never runs at %s", suggest.Range(first, last))
		case value:
			kept := release(t, body)
			if orelse != syntax.Nil {
				first, last := rangeOf(t, orelse)
				e.report(line, "Folded constant condition '%s' at line %d; removed else branch at %s", literal, line, suggest.Range(first, last))
			} else {
				e.report(line, "Folded constant condition '%s' at line %d", literal, line)
			}
			t.ReplaceRange(block, i, i+1, kept...)
		default:
			first, last := rangeOf(t, body)
			kept := release(t, orelse)
			if len(kept) == 1 && t.Kind(kept[0]) == syntax.KindIf {
				t.Node(kept[0]).Flags &^= syntax.FlagElif
			}
			e.report(line, "Removed branch that never runs at %s", suggest.Range(first, last))
			t.ReplaceRange(block, i, i+1, kept...)
		}
		fill(t, block)
		changed = true
	}
	return changed
}

// fill keeps blocks valid after removals: an empty else block is dropped,
// any other empty block gets a pass statement.
func fill(t *syntax.Tree, block syntax.NodeID) {
	if len(t.Children(block)) > 0 {
		return
	}
	parent := t.Parent(block)
	slot := t.IndexOf(block)
	switch t.Kind(parent) {
	case syntax.KindIf, syntax.KindWhile:
		if slot == syntax.SlotOrElse {
			t.SetChild(parent, slot, syntax.Nil)
			return
		}
	case syntax.KindFor:
		if slot == syntax.SlotForOrElse {
			t.SetChild(parent, slot, syntax.Nil)
			return
		}
	}
	t.Append(block, t.New(syntax.KindPass, t.Node(parent).Pos))
}

// stores removes pure assignments to function locals whose value is never
// read.
func (e *eliminator) stores() bool {
	t := e.t
	a := scope.Analyze(t)
	dynamic := map[*scope.Scope]bool{}
	var dead []syntax.NodeID
	t.Inspect(t.Root, func(id syntax.NodeID) bool {
		if t.Kind(id) != syntax.KindAssign {
			return true
		}
		target := t.Child(id, syntax.SlotTarget)
		if t.Kind(target) != syntax.KindName || !t.Pure(t.Child(id, syntax.SlotValue)) {
			return false
		}
		sym := a.SymbolAt(target)
		if sym == nil || sym.Scope.Kind != scope.ScopeFunction || sym.Opaque || sym.Captured {
			return false
		}
		introspected, seen := dynamic[sym.Scope]
		if !seen {
			introspected = introspects(t, sym.Scope.Node)
			dynamic[sym.Scope] = introspected
		}
		if introspected {
			return false
		}
		if overwritten(t, id, sym.Name) || neverReadAfter(t, id, sym) {
			dead = append(dead, id)
		}
		return false
	})

	for _, id := range dead {
		block := t.Parent(id)
		name := t.Name(t.Child(id, syntax.SlotTarget))
		line := t.Line(id)
		i := t.IndexOf(id)
		t.ReplaceRange(block, i, i+1)
		fill(t, block)
		e.report(line, "Removed unused assignment to '%s' at line %d", name, line)
	}
	return len(dead) > 0
}

func jumps(t *syntax.Tree, id syntax.NodeID) bool {
	found := false
	t.Inspect(id, func(c syntax.NodeID) bool {
		switch t.Kind(c) {
		case syntax.KindReturn, syntax.KindRaise, syntax.KindBreak, syntax.KindContinue:
			found = true
		case syntax.KindFunctionDef, syntax.KindClassDef, syntax.KindLambda:
			return false
		}
		return !found
	})
	return found
}

// frameReaders can observe every local of the calling frame.
var frameReaders = []string{"locals", "vars", "eval", "exec"}

// introspects reports whether the function at fn reads its own frame
// through locals(), vars(), eval() or exec().
func introspects(t *syntax.Tree, fn syntax.NodeID) bool {
	found := false
	t.Inspect(fn, func(n syntax.NodeID) bool {
		if found {
			return false
		}
		node := t.Node(n)
		switch node.Kind {
		case syntax.KindFunctionDef, syntax.KindClassDef, syntax.KindLambda:
			return n == fn
		case syntax.KindCall:
			callee := t.Node(node.Children[0])
			found = callee.Kind == syntax.KindName && slices.Contains(frameReaders, callee.Name)
		case syntax.KindRaw, syntax.KindRawExpr:
			for _, name := range frameReaders {
				found = found || syntax.HasToken(node.Name, name)
			}
		}
		return !found
	})
	return found
}

// guarded reports whether id sits in a try or with clause of its own
// function, where a raised exception can resume at a handler.
func guarded(t *syntax.Tree, id syntax.NodeID) bool {
	for cur := t.Parent(id); cur != syntax.Nil; cur = t.Parent(cur) {
		switch t.Kind(cur) {
		case syntax.KindCompound:
			return true
		case syntax.KindFunctionDef, syntax.KindLambda, syntax.KindClassDef:
			return false
		}
	}
	return false
}

// overwritten reports whether a later sibling rebinds name before any
// statement in between could observe it. Inside a try or with clause any
// statement that may raise counts as an observer.
func overwritten(t *syntax.Tree, store syntax.NodeID, name string) bool {
	kids := t.Children(t.Parent(store))
	mayRaise := guarded(t, store)
	for _, s := range kids[t.IndexOf(store)+1:] {
		switch t.Kind(s) {
		case syntax.KindComment, syntax.KindPass:
			continue
		case syntax.KindAssign:
			target := t.Child(s, syntax.SlotTarget)
			if t.Kind(target) == syntax.KindName && t.Name(target) == name {
				value := t.Child(s, syntax.SlotValue)
				return !t.Mentions(value, name) && (!mayRaise || t.Pure(value))
			}
		}
		if t.Mentions(s, name) || jumps(t, s) || t.Kind(s).IsExit() {
			return false
		}
		if mayRaise && !t.Pure(s) {
			return false
		}
	}
	return false
}

func inLoop(t *syntax.Tree, id syntax.NodeID) bool {
	for cur := t.Parent(id); cur != syntax.Nil; cur = t.Parent(cur) {
		switch t.Kind(cur) {
		case syntax.KindFor, syntax.KindWhile:
			return true
		case syntax.KindFunctionDef, syntax.KindLambda, syntax.KindClassDef:
			return false
		}
	}
	return false
}

// neverReadAfter reports whether every read of sym precedes the store in
// straight-line code.
func neverReadAfter(t *syntax.Tree, store syntax.NodeID, sym *scope.Symbol) bool {
	if inLoop(t, store) {
		return len(sym.Reads()) == 0
	}
	line := t.Line(store)
	for _, r := range sym.Reads() {
		if r.Line >= line {
			return false
		}
	}
	return true
}
