// Package hoist moves a run of statements out of a function body into a
// module-level helper. It computes the run's inputs and outputs and builds
// the helper definition and the call that replaces the run.
package hoist

import (
	"pyrefactor/internal/core/errors"
	"pyrefactor/internal/engine/scope"
	"pyrefactor/internal/engine/syntax"
)

// Span is a contiguous run of statements inside one block. End is exclusive.
type Span struct {
	Block syntax.NodeID
	Start int
	End   int
}

// Statements returns the statements covered by the span.
func (s Span) Statements(t *syntax.Tree) []syntax.NodeID {
	kids := t.Children(s.Block)
	return append([]syntax.NodeID(nil), kids[s.Start:s.End]...)
}

// Lines returns the first and last source line of the span.
func (s Span) Lines(t *syntax.Tree) (int, int) {
	stmts := s.Statements(t)
	if len(stmts) == 0 {
		return 0, 0
	}
	return t.Line(stmts[0]), t.LastLine(stmts[len(stmts)-1])
}

// Overlaps reports whether two spans share a statement or one lies inside
// a statement of the other.
func (s Span) Overlaps(t *syntax.Tree, o Span) bool {
	if s.Block == o.Block {
		return s.Start < o.End && o.Start < s.End
	}
	for _, stmt := range s.Statements(t) {
		if t.Contains(stmt, o.Block) {
			return true
		}
	}
	for _, stmt := range o.Statements(t) {
		if t.Contains(stmt, s.Block) {
			return true
		}
	}
	return false
}

// Fragment is the data flow summary of a span.
type Fragment struct {
	Span Span
	// Inputs are names read before being definitely assigned in the span,
	// in order of first appearance. Builtins and globals are included;
	// Classify separates them from function locals.
	Inputs []string
	// Writes are names bound anywhere in the span.
	Writes []string
	// Definite are names assigned on every path through the span.
	Definite map[string]bool
	// Callees are called names in order, for naming the helper.
	Callees []string
	// TailReturn is set when the span ends with a return statement.
	TailReturn bool
}

// Analyze checks that span can be hoisted and summarizes its data flow.
func Analyze(t *syntax.Tree, span Span) (Fragment, error) {
	stmts := span.Statements(t)
	if len(stmts) == 0 {
		return Fragment{}, errors.New(errors.CodeValidationError, "empty span")
	}
	f := &flow{t: t, inSet: map[string]bool{}, wSet: map[string]bool{}}
	for i, stmt := range stmts {
		if err := f.check(stmt, i == len(stmts)-1, 0); err != nil {
			return Fragment{}, err
		}
	}
	definite := map[string]bool{}
	f.block(stmts, definite)
	return Fragment{
		Span:       span,
		Inputs:     f.inputs,
		Writes:     f.writes,
		Definite:   definite,
		Callees:    f.callees,
		TailReturn: t.Kind(stmts[len(stmts)-1]) == syntax.KindReturn,
	}, nil
}

type flow struct {
	t       *syntax.Tree
	inputs  []string
	inSet   map[string]bool
	writes  []string
	wSet    map[string]bool
	callees []string
}

func unsupported(t *syntax.Tree, id syntax.NodeID, what string) error {
	err := errors.Newf(errors.CodeUnsupportedConstruct, "cannot hoist %s", what)
	return errors.AddContext(err, errors.CtxLine, t.Line(id))
}

// check rejects constructs whose meaning would change inside a helper.
func (f *flow) check(stmt syntax.NodeID, last bool, loops int) error {
	t := f.t
	var err error
	var visit func(id syntax.NodeID, loops int, top bool)
	visit = func(id syntax.NodeID, loops int, top bool) {
		if err != nil || id == syntax.Nil {
			return
		}
		n := t.Node(id)
		switch n.Kind {
		case syntax.KindRaw, syntax.KindRawExpr:
			err = unsupported(t, id, "opaque code")
		case syntax.KindFunctionDef, syntax.KindClassDef, syntax.KindLambda:
			err = unsupported(t, id, "nested definitions")
		case syntax.KindCompound:
			err = unsupported(t, id, "try or with blocks")
		case syntax.KindReturn:
			if !(top && last) {
				err = unsupported(t, id, "a return before the end of the run")
			}
		case syntax.KindBreak, syntax.KindContinue:
			if loops == 0 {
				err = unsupported(t, id, "a loop jump that leaves the run")
			}
		case syntax.KindConstant:
			if syntax.IsFString(n.Name) {
				err = unsupported(t, id, "f-strings")
			}
		}
		if err != nil {
			return
		}
		inner := loops
		if n.Kind == syntax.KindFor || n.Kind == syntax.KindWhile {
			inner++
		}
		for i, c := range n.Children {
			// else blocks of loops run outside the loop
			if (n.Kind == syntax.KindFor && i == syntax.SlotForOrElse) || (n.Kind == syntax.KindWhile && i == syntax.SlotOrElse) {
				visit(c, loops, false)
				continue
			}
			visit(c, inner, false)
		}
	}
	visit(stmt, loops, true)
	return err
}

func (f *flow) read(id syntax.NodeID, definite map[string]bool) {
	f.t.Inspect(id, func(n syntax.NodeID) bool {
		node := f.t.Node(n)
		switch node.Kind {
		case syntax.KindName:
			if !definite[node.Name] && !f.inSet[node.Name] {
				f.inSet[node.Name] = true
				f.inputs = append(f.inputs, node.Name)
			}
		case syntax.KindCall:
			switch fn := f.t.Node(node.Children[0]); fn.Kind {
			case syntax.KindName, syntax.KindAttribute:
				f.callees = append(f.callees, fn.Name)
			}
		}
		return true
	})
}

func (f *flow) write(id syntax.NodeID, definite map[string]bool, bind bool) {
	n := f.t.Node(id)
	if n == nil {
		return
	}
	switch n.Kind {
	case syntax.KindName:
		if !f.wSet[n.Name] {
			f.wSet[n.Name] = true
			f.writes = append(f.writes, n.Name)
		}
		if bind {
			definite[n.Name] = true
		}
	case syntax.KindTuple, syntax.KindList:
		for _, c := range n.Children {
			f.write(c, definite, bind)
		}
	case syntax.KindStarred:
		f.write(n.Children[0], definite, bind)
	default:
		f.read(id, definite)
	}
}

func copyOf(m map[string]bool) map[string]bool {
	out := make(map[string]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (f *flow) block(stmts []syntax.NodeID, definite map[string]bool) {
	for _, s := range stmts {
		f.stmt(s, definite)
	}
}

func (f *flow) body(block syntax.NodeID, definite map[string]bool) {
	if block == syntax.Nil {
		return
	}
	f.block(f.t.Children(block), copyOf(definite))
}

func (f *flow) stmt(id syntax.NodeID, definite map[string]bool) {
	t := f.t
	n := t.Node(id)
	switch n.Kind {
	case syntax.KindAssign:
		f.read(n.Children[syntax.SlotValue], definite)
		f.write(n.Children[syntax.SlotTarget], definite, true)
	case syntax.KindAugAssign:
		f.read(n.Children[syntax.SlotTarget], definite)
		f.read(n.Children[syntax.SlotValue], definite)
		f.write(n.Children[syntax.SlotTarget], definite, true)
	case syntax.KindIf, syntax.KindWhile:
		f.read(n.Children[syntax.SlotTest], definite)
		f.body(n.Children[syntax.SlotBody], definite)
		f.body(n.Children[syntax.SlotOrElse], definite)
	case syntax.KindFor:
		f.read(n.Children[syntax.SlotForIter], definite)
		inner := copyOf(definite)
		f.write(n.Children[syntax.SlotForTarget], inner, true)
		f.block(t.Children(n.Children[syntax.SlotForBody]), inner)
		f.body(n.Children[syntax.SlotForOrElse], definite)
	case syntax.KindComment, syntax.KindPass, syntax.KindBreak, syntax.KindContinue:
	default:
		for _, c := range n.Children {
			f.read(c, definite)
		}
	}
}

// Classified splits a fragment's inputs and outputs using the enclosing
// function's scope.
type Classified struct {
	// Params are inputs bound in a function scope.
	Params []string
	// Outputs are names written in the span and read elsewhere in the
	// function.
	Outputs []string
}

// Classify resolves the fragment against a fresh scope analysis.
func Classify(a *scope.Analysis, frag Fragment) (Classified, error) {
	t := a.Tree
	stmts := frag.Span.Statements(t)
	sc := a.ScopeOf(stmts[0])
	if sc.Function() == nil {
		return Classified{}, errors.New(errors.CodeUnsupportedConstruct, "run is not inside a function")
	}
	var c Classified
	for _, name := range frag.Inputs {
		sym := sc.Lookup(name)
		if sym == nil || sym.Scope.Kind == scope.ScopeModule {
			if sc.IsOpaque(name) {
				return Classified{}, errors.Newf(errors.CodeUnsupportedConstruct, "%q is referenced from opaque code", name)
			}
			continue
		}
		if sym.Opaque {
			return Classified{}, errors.Newf(errors.CodeUnsupportedConstruct, "%q is referenced from opaque code", name)
		}
		c.Params = append(c.Params, name)
	}
	inSpan := func(id syntax.NodeID) bool {
		for _, s := range stmts {
			if t.Contains(s, id) {
				return true
			}
		}
		return false
	}
	for _, name := range frag.Writes {
		sym := sc.Symbol(name)
		if sym == nil {
			return Classified{}, errors.Newf(errors.CodeUnsupportedConstruct, "%q is not local to the function", name)
		}
		if sym.Opaque {
			return Classified{}, errors.Newf(errors.CodeUnsupportedConstruct, "%q is referenced from opaque code", name)
		}
		if frag.TailReturn {
			continue
		}
		for _, site := range sym.Sites {
			if site.Read && !inSpan(site.Node) {
				if !frag.Definite[name] && !contains(c.Params, name) {
					return Classified{}, errors.Newf(errors.CodeUnsupportedConstruct, "%q is only conditionally assigned", name)
				}
				c.Outputs = append(c.Outputs, name)
				break
			}
		}
	}
	return c, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Helper describes the function to create.
type Helper struct {
	Name       string
	Params     []string
	Outputs    []string
	TailReturn bool
}

func names(t *syntax.Tree, list []string, pos syntax.Pos) []syntax.NodeID {
	out := make([]syntax.NodeID, 0, len(list))
	for _, n := range list {
		out = append(out, t.NewName(n, pos))
	}
	return out
}

// Build creates a detached FunctionDef whose body is a clone of stmts.
func Build(t *syntax.Tree, h Helper, stmts []syntax.NodeID, pos syntax.Pos) syntax.NodeID {
	var params []syntax.NodeID
	for _, p := range h.Params {
		params = append(params, t.Add(syntax.Node{
			Kind:     syntax.KindParam,
			Name:     p,
			Ops:      []string{""},
			Pos:      pos,
			Children: []syntax.NodeID{syntax.Nil, syntax.Nil},
		}))
	}
	body := make([]syntax.NodeID, 0, len(stmts)+1)
	for _, s := range stmts {
		body = append(body, t.Clone(s))
	}
	if !h.TailReturn && len(h.Outputs) > 0 {
		body = append(body, t.New(syntax.KindReturn, pos, pack(t, h.Outputs, pos)))
	}
	return t.Add(syntax.Node{
		Kind: syntax.KindFunctionDef,
		Name: h.Name,
		Pos:  pos,
		Children: []syntax.NodeID{
			t.New(syntax.KindParams, pos, params...),
			t.New(syntax.KindBlock, pos, body...),
			syntax.Nil,
			t.New(syntax.KindDecorators, pos),
		},
	})
}

func pack(t *syntax.Tree, list []string, pos syntax.Pos) syntax.NodeID {
	if len(list) == 1 {
		return t.NewName(list[0], pos)
	}
	return t.Add(syntax.Node{Kind: syntax.KindTuple, Flags: syntax.FlagBare, Pos: pos, Children: names(t, list, pos)})
}

// CallStatement builds the statement replacing a hoisted run.
func CallStatement(t *syntax.Tree, name string, args, outputs []string, tail bool, pos syntax.Pos) syntax.NodeID {
	children := append([]syntax.NodeID{t.NewName(name, pos)}, names(t, args, pos)...)
	call := t.Add(syntax.Node{Kind: syntax.KindCall, Pos: pos, Children: children})
	switch {
	case tail:
		return t.New(syntax.KindReturn, pos, call)
	case len(outputs) == 0:
		return t.New(syntax.KindExprStmt, pos, call)
	default:
		return t.New(syntax.KindAssign, pos, pack(t, outputs, pos), call)
	}
}

// Replace swaps the span for stmt.
func Replace(t *syntax.Tree, span Span, stmt syntax.NodeID) {
	t.ReplaceRange(span.Block, span.Start, span.End, stmt)
}

// TopLevel returns the module-level statement containing id.
func TopLevel(t *syntax.Tree, id syntax.NodeID) syntax.NodeID {
	body := t.Body()
	for cur := id; cur != syntax.Nil; cur = t.Parent(cur) {
		if t.Parent(cur) == body {
			return cur
		}
	}
	return syntax.Nil
}

// InsertBefore places a helper into the module body ahead of the
// top-level statement containing anchor.
func InsertBefore(t *syntax.Tree, helper, anchor syntax.NodeID) {
	top := TopLevel(t, anchor)
	i := t.IndexOf(top)
	if i < 0 {
		i = 0
	}
	t.Insert(t.Body(), i, helper)
}
