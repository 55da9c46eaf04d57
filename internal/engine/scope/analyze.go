package scope

import (
	"github.com/gobwas/glob"

	"pyrefactor/internal/engine/syntax"
)

// Analysis is the resolved scope tree of one syntax.Tree. It is a snapshot:
// passes that mutate the tree re-run Analyze before relying on it again.
type Analysis struct {
	Tree   *syntax.Tree
	Module *Scope

	byNode   map[syntax.NodeID]*Scope
	bySite   map[syntax.NodeID]*Symbol
	keywords map[string]bool
}

type pendingUse struct {
	name  string
	scope *Scope
	site  Site
	kind  SymbolKind
}

type builder struct {
	t        *syntax.Tree
	a        *Analysis
	bindings []pendingUse
	uses     []pendingUse
}

// Analyze builds and resolves scopes for t.
func Analyze(t *syntax.Tree) *Analysis {
	a := &Analysis{
		Tree:     t,
		byNode:   make(map[syntax.NodeID]*Scope),
		bySite:   make(map[syntax.NodeID]*Symbol),
		keywords: make(map[string]bool),
	}
	a.Module = newScope(ScopeModule, t.Root, "<module>", nil)
	a.byNode[t.Root] = a.Module

	b := &builder{t: t, a: a}
	b.visit(t.Body(), a.Module)

	var redirected []pendingUse
	for _, u := range b.bindings {
		if u.scope.Declared(u.name) {
			redirected = append(redirected, u)
			continue
		}
		sym := u.scope.bind(u.name, u.kind)
		sym.Sites = append(sym.Sites, u.site)
		a.bySite[u.site.Node] = sym
	}
	// Bindings under global or nonlocal belong to the declared scope. A
	// global with no module-level binding creates one; an unresolved
	// nonlocal stays local.
	for _, u := range redirected {
		sym := u.scope.Lookup(u.name)
		if sym == nil {
			owner := u.scope
			if u.scope.declared[u.name] == declGlobal {
				owner = a.Module
			}
			sym = owner.bind(u.name, u.kind)
		}
		if sym.Scope != u.scope {
			sym.Captured = true
		}
		sym.Sites = append(sym.Sites, u.site)
		a.bySite[u.site.Node] = sym
	}
	for _, u := range b.uses {
		u.scope.used[u.name] = true
		sym := u.scope.Lookup(u.name)
		if sym == nil {
			continue
		}
		if sym.Scope != u.scope {
			sym.Captured = true
		}
		sym.Sites = append(sym.Sites, u.site)
		a.bySite[u.site.Node] = sym
	}
	a.Module.walk(func(s *Scope) {
		for name := range s.opaque {
			if sym := s.Lookup(name); sym != nil {
				sym.Opaque = true
			}
		}
	})
	return a
}

func (b *builder) bind(s *Scope, name string, kind SymbolKind, node syntax.NodeID, read bool) {
	if name == "" {
		return
	}
	b.bindings = append(b.bindings, pendingUse{
		name:  name,
		scope: s,
		kind:  kind,
		site:  Site{Node: node, Read: read, Write: true, Line: b.t.Line(node)},
	})
}

func (b *builder) use(s *Scope, name string, node syntax.NodeID) {
	b.uses = append(b.uses, pendingUse{
		name:  name,
		scope: s,
		site:  Site{Node: node, Read: true, Line: b.t.Line(node)},
	})
}

func (b *builder) opaque(s *Scope, text string) {
	for _, tok := range syntax.Identifiers(text) {
		s.opaque[tok] = true
	}
}

// declare records the names of a global or nonlocal statement.
func (b *builder) declare(s *Scope, text string) {
	if s.Kind == ScopeModule {
		return
	}
	words := syntax.Identifiers(text)
	if len(words) < 2 {
		return
	}
	var decl declaration
	switch words[0] {
	case "global":
		decl = declGlobal
	case "nonlocal":
		decl = declNonlocal
	default:
		return
	}
	for _, name := range words[1:] {
		s.declared[name] = decl
	}
}

func (b *builder) visitAll(ids []syntax.NodeID, s *Scope) {
	for _, id := range ids {
		b.visit(id, s)
	}
}

func (b *builder) visit(id syntax.NodeID, s *Scope) {
	if id == syntax.Nil {
		return
	}
	t := b.t
	n := t.Node(id)
	switch n.Kind {
	case syntax.KindFunctionDef:
		b.visitAll(t.Children(n.Children[syntax.SlotFuncDecorators]), s)
		b.paramValues(n.Children[syntax.SlotFuncParams], s)
		b.visit(n.Children[syntax.SlotFuncReturns], s)
		b.bind(s, n.Name, SymbolDefinition, id, false)

		fn := newScope(ScopeFunction, id, n.Name, s)
		b.a.byNode[id] = fn
		b.params(n.Children[syntax.SlotFuncParams], fn)
		b.visit(n.Children[syntax.SlotFuncBody], fn)
	case syntax.KindClassDef:
		b.visitAll(t.Children(n.Children[syntax.SlotClassDecorators]), s)
		b.visitAll(n.Children[syntax.SlotClassBases:], s)
		b.bind(s, n.Name, SymbolDefinition, id, false)

		cls := newScope(ScopeClass, id, n.Name, s)
		b.a.byNode[id] = cls
		b.visit(n.Children[syntax.SlotClassBody], cls)
	case syntax.KindLambda:
		b.paramValues(n.Children[syntax.SlotLambdaParams], s)
		lam := newScope(ScopeLambda, id, "<lambda>", s)
		b.a.byNode[id] = lam
		b.params(n.Children[syntax.SlotLambdaParams], lam)
		b.visit(n.Children[syntax.SlotLambdaBody], lam)
	case syntax.KindAssign:
		b.visit(n.Children[syntax.SlotValue], s)
		b.target(n.Children[syntax.SlotTarget], s, SymbolLocal, false)
	case syntax.KindAugAssign:
		b.visit(n.Children[syntax.SlotValue], s)
		b.target(n.Children[syntax.SlotTarget], s, SymbolLocal, true)
	case syntax.KindFor:
		b.visit(n.Children[syntax.SlotForIter], s)
		b.target(n.Children[syntax.SlotForTarget], s, SymbolLoopVariable, false)
		b.visit(n.Children[syntax.SlotForBody], s)
		b.visit(n.Children[syntax.SlotForOrElse], s)
	case syntax.KindName:
		b.use(s, n.Name, id)
	case syntax.KindKeyword:
		b.a.keywords[n.Name] = true
		b.visitAll(n.Children, s)
	case syntax.KindRaw:
		b.declare(s, n.Name)
		b.opaque(s, n.Name)
	case syntax.KindRawExpr:
		b.opaque(s, n.Name)
	case syntax.KindClause:
		b.opaque(s, n.Name)
		b.visitAll(n.Children, s)
	case syntax.KindConstant:
		if n.Const == syntax.ConstString && syntax.IsFString(n.Name) {
			b.opaque(s, n.Name)
		}
	case syntax.KindComment:
	default:
		b.visitAll(n.Children, s)
	}
}

// target records the bindings made by an assignment or loop target.
func (b *builder) target(id syntax.NodeID, s *Scope, kind SymbolKind, read bool) {
	n := b.t.Node(id)
	if n == nil {
		return
	}
	switch n.Kind {
	case syntax.KindName:
		b.bind(s, n.Name, kind, id, read)
	case syntax.KindTuple, syntax.KindList:
		for _, c := range n.Children {
			b.target(c, s, kind, read)
		}
	case syntax.KindStarred:
		b.target(n.Children[0], s, kind, read)
	default:
		b.visit(id, s)
	}
}

func (b *builder) params(id syntax.NodeID, s *Scope) {
	for _, p := range b.t.Children(id) {
		b.bind(s, b.t.Name(p), SymbolParameter, p, false)
	}
}

// paramValues visits defaults and annotations, which evaluate in the
// enclosing scope.
func (b *builder) paramValues(id syntax.NodeID, s *Scope) {
	for _, p := range b.t.Children(id) {
		b.visit(b.t.Child(p, syntax.SlotParamAnnotation), s)
		b.visit(b.t.Child(p, syntax.SlotParamDefault), s)
	}
}

// Scopes returns all scopes in pre-order.
func (a *Analysis) Scopes() []*Scope {
	var out []*Scope
	a.Module.walk(func(s *Scope) { out = append(out, s) })
	return out
}

// ScopeFor returns the scope owned by a FunctionDef, ClassDef or Lambda.
func (a *Analysis) ScopeFor(owner syntax.NodeID) *Scope {
	return a.byNode[owner]
}

// ScopeOf returns the innermost scope in which node is evaluated.
func (a *Analysis) ScopeOf(node syntax.NodeID) *Scope {
	t := a.Tree
	viaParamValue := false
	prev := node
	for cur := t.Parent(node); cur != syntax.Nil; prev, cur = cur, t.Parent(cur) {
		switch t.Kind(cur) {
		case syntax.KindParam:
			viaParamValue = true
		case syntax.KindFunctionDef:
			if prev == t.Child(cur, syntax.SlotFuncBody) || (prev == t.Child(cur, syntax.SlotFuncParams) && !viaParamValue) {
				return a.byNode[cur]
			}
			viaParamValue = false
		case syntax.KindLambda:
			if prev == t.Child(cur, syntax.SlotLambdaBody) || (prev == t.Child(cur, syntax.SlotLambdaParams) && !viaParamValue) {
				return a.byNode[cur]
			}
			viaParamValue = false
		case syntax.KindClassDef:
			if prev == t.Child(cur, syntax.SlotClassBody) {
				return a.byNode[cur]
			}
		}
	}
	return a.Module
}

// SymbolAt returns the symbol a site node resolves to, or nil.
func (a *Analysis) SymbolAt(node syntax.NodeID) *Symbol {
	return a.bySite[node]
}

// UsedAsKeyword reports whether name appears as a keyword argument anywhere.
func (a *Analysis) UsedAsKeyword(name string) bool {
	return a.keywords[name]
}

// Reserve marks name as taken in s for later Taken checks.
func (a *Analysis) Reserve(s *Scope, name string) {
	s.reserved[name] = true
}

// Taken reports whether binding name in s could clash with an existing
// name: a keyword or builtin, or any mention in s, its ancestors or its
// descendants.
func (a *Analysis) Taken(s *Scope, name string) bool {
	if syntax.IsReserved(name) {
		return true
	}
	for cur := s; cur != nil; cur = cur.Parent {
		if cur.mentions(name) {
			return true
		}
	}
	taken := false
	s.walk(func(d *Scope) {
		if !taken && d.mentions(name) {
			taken = true
		}
	})
	return taken
}

// Policy decides which single-letter names are exempt from renaming.
type Policy struct {
	ExemptNames        []glob.Glob
	ExemptLambdaParams bool
}

// NewPolicy compiles exempt name patterns.
func NewPolicy(patterns []string, exemptLambdaParams bool) (Policy, error) {
	p := Policy{ExemptLambdaParams: exemptLambdaParams}
	for _, pat := range patterns {
		g, err := glob.Compile(pat)
		if err != nil {
			return Policy{}, err
		}
		p.ExemptNames = append(p.ExemptNames, g)
	}
	return p, nil
}

// Exempt reports whether the policy excludes sym.
func (p Policy) Exempt(sym *Symbol) bool {
	if p.ExemptLambdaParams && sym.Scope.Kind == ScopeLambda && sym.Kind == SymbolParameter {
		return true
	}
	for _, g := range p.ExemptNames {
		if g.Match(sym.Name) {
			return true
		}
	}
	return false
}

// Flag is a poorly named symbol. A non-empty Unsafe explains why the
// symbol must not be renamed.
type Flag struct {
	Symbol *Symbol
	Unsafe string
}

// Flagged returns single-letter parameters, locals and loop variables in
// scope pre-order, ordered by first use within each scope.
func (a *Analysis) Flagged(p Policy) []Flag {
	var out []Flag
	for _, s := range a.Scopes() {
		var syms []*Symbol
		for _, sym := range s.Symbols() {
			if sym.Kind == SymbolDefinition || !sym.IsSingleLetter() || p.Exempt(sym) {
				continue
			}
			syms = append(syms, sym)
		}
		sortSymbols(syms)
		for _, sym := range syms {
			out = append(out, Flag{Symbol: sym, Unsafe: a.unsafeReason(sym)})
		}
	}
	return out
}

func (a *Analysis) unsafeReason(sym *Symbol) string {
	switch {
	case sym.Opaque:
		return "referenced from code the engine does not model"
	case sym.Scope.Kind == ScopeClass:
		return "class attribute"
	case sym.Kind == SymbolParameter && a.keywords[sym.Name]:
		return "parameter name is passed by keyword"
	}
	return ""
}
