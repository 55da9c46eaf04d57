// Package scope resolves Python name bindings over a syntax.Tree.
//
// A Scope is created for the module and for every function, class and
// lambda. Each Symbol records all sites that resolve to it, following
// Python's rules: assignment anywhere in a function binds the name locally,
// and class bodies are invisible to the functions nested inside them.
package scope

import (
	"sort"
	"unicode"
	"unicode/utf8"

	"pyrefactor/internal/engine/syntax"
)

// ScopeKind enumerates scope categories.
type ScopeKind uint8

const (
	ScopeInvalid ScopeKind = iota
	ScopeModule
	ScopeFunction
	ScopeClass
	ScopeLambda
)

func (k ScopeKind) String() string {
	switch k {
	case ScopeModule:
		return "module"
	case ScopeFunction:
		return "function"
	case ScopeClass:
		return "class"
	case ScopeLambda:
		return "lambda"
	default:
		return "invalid"
	}
}

// SymbolKind describes how a name was first bound in its scope.
type SymbolKind uint8

const (
	SymbolInvalid SymbolKind = iota
	SymbolParameter
	SymbolLocal
	SymbolLoopVariable
	SymbolDefinition
)

func (k SymbolKind) String() string {
	switch k {
	case SymbolParameter:
		return "parameter"
	case SymbolLocal:
		return "local"
	case SymbolLoopVariable:
		return "loop variable"
	case SymbolDefinition:
		return "definition"
	default:
		return "invalid"
	}
}

// Site is one occurrence of a symbol. Node is a Name, Param, FunctionDef
// or ClassDef node.
type Site struct {
	Node  syntax.NodeID
	Read  bool
	Write bool
	Line  int
}

// Symbol is a named binding owned by a Scope.
type Symbol struct {
	Name  string
	Kind  SymbolKind
	Scope *Scope
	Sites []Site

	// Captured is set when a nested scope references the symbol.
	Captured bool
	// Opaque is set when the name appears in text the engine does not model.
	Opaque bool
}

// FirstUseLine returns the earliest line among the symbol's sites.
func (s *Symbol) FirstUseLine() int {
	line := 0
	for _, site := range s.Sites {
		if line == 0 || (site.Line > 0 && site.Line < line) {
			line = site.Line
		}
	}
	return line
}

// UsageCount returns the number of sites.
func (s *Symbol) UsageCount() int { return len(s.Sites) }

// IsSingleLetter reports whether the name is exactly one letter.
func (s *Symbol) IsSingleLetter() bool {
	r, size := utf8.DecodeRuneInString(s.Name)
	return size == len(s.Name) && size > 0 && unicode.IsLetter(r)
}

// Reads returns the sites that load the symbol.
func (s *Symbol) Reads() []Site {
	var out []Site
	for _, site := range s.Sites {
		if site.Read {
			out = append(out, site)
		}
	}
	return out
}

// Writes returns the sites that bind the symbol.
func (s *Symbol) Writes() []Site {
	var out []Site
	for _, site := range s.Sites {
		if site.Write {
			out = append(out, site)
		}
	}
	return out
}

// Scope is a lexical scope.
type Scope struct {
	Kind     ScopeKind
	Node     syntax.NodeID
	Name     string
	Parent   *Scope
	Children []*Scope

	symbols  map[string]*Symbol
	declared map[string]declaration
	order    []string
	used     map[string]bool
	opaque   map[string]bool
	reserved map[string]bool
}

func newScope(kind ScopeKind, node syntax.NodeID, name string, parent *Scope) *Scope {
	s := &Scope{
		Kind:     kind,
		Node:     node,
		Name:     name,
		Parent:   parent,
		symbols:  make(map[string]*Symbol),
		declared: make(map[string]declaration),
		used:     make(map[string]bool),
		opaque:   make(map[string]bool),
		reserved: make(map[string]bool),
	}
	if parent != nil {
		parent.Children = append(parent.Children, s)
	}
	return s
}

// Symbol returns the symbol bound in this scope, or nil.
func (s *Scope) Symbol(name string) *Symbol {
	return s.symbols[name]
}

// Symbols returns the scope's symbols in order of first binding.
func (s *Scope) Symbols() []*Symbol {
	out := make([]*Symbol, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.symbols[name])
	}
	return out
}

// declaration is a global or nonlocal statement for one name.
type declaration uint8

const (
	declGlobal declaration = iota + 1
	declNonlocal
)

// Lookup resolves name from this scope outward. Class scopes are only
// consulted when the lookup starts in them. A global or nonlocal
// declaration redirects the lookup to the declared binding.
func (s *Scope) Lookup(name string) *Symbol {
	for cur := s; cur != nil; cur = cur.Parent {
		if cur != s && cur.Kind == ScopeClass {
			continue
		}
		if decl, ok := cur.declared[name]; ok {
			return cur.resolveDeclared(name, decl)
		}
		if sym := cur.symbols[name]; sym != nil {
			return sym
		}
	}
	return nil
}

// Declared reports whether name is named by a global or nonlocal
// statement in s.
func (s *Scope) Declared(name string) bool {
	_, ok := s.declared[name]
	return ok
}

func (s *Scope) resolveDeclared(name string, decl declaration) *Symbol {
	if decl == declGlobal {
		return s.root().symbols[name]
	}
	for p := s.Parent; p != nil; p = p.Parent {
		if p.Kind == ScopeClass || p.Kind == ScopeModule {
			continue
		}
		if d, ok := p.declared[name]; ok {
			return p.resolveDeclared(name, d)
		}
		if sym := p.symbols[name]; sym != nil {
			return sym
		}
	}
	return nil
}

func (s *Scope) root() *Scope {
	for s.Parent != nil {
		s = s.Parent
	}
	return s
}

// IsOpaque reports whether name appears in opaque text of this scope.
func (s *Scope) IsOpaque(name string) bool { return s.opaque[name] }

// Function returns the nearest enclosing function scope, or nil.
func (s *Scope) Function() *Scope {
	for cur := s; cur != nil; cur = cur.Parent {
		if cur.Kind == ScopeFunction {
			return cur
		}
	}
	return nil
}

func (s *Scope) mentions(name string) bool {
	return s.symbols[name] != nil || s.used[name] || s.opaque[name] || s.reserved[name]
}

func (s *Scope) bind(name string, kind SymbolKind) *Symbol {
	if sym := s.symbols[name]; sym != nil {
		return sym
	}
	sym := &Symbol{Name: name, Kind: kind, Scope: s}
	s.symbols[name] = sym
	s.order = append(s.order, name)
	return sym
}

func (s *Scope) walk(fn func(*Scope)) {
	fn(s)
	for _, c := range s.Children {
		c.walk(fn)
	}
}

// sortSymbols orders by first use line, then name.
func sortSymbols(syms []*Symbol) {
	sort.SliceStable(syms, func(i, j int) bool {
		li, lj := syms[i].FirstUseLine(), syms[j].FirstUseLine()
		if li != lj {
			return li < lj
		}
		return syms[i].Name < syms[j].Name
	})
}
