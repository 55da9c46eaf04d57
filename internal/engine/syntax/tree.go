// Package syntax holds the arena-backed syntax tree for a single Python
// source file, the tree-sitter based parser that builds it, and the printer
// that renders it back to text.
//
// Nodes live in a flat arena owned by Tree and are addressed by NodeID.
// Parent links are plain IDs, so a tree can be cloned by copying the arena
// and node identities survive the copy.
package syntax

import "fmt"

// NodeID addresses a node inside a Tree arena.
type NodeID int32

// Nil marks an empty child slot or a missing parent.
const Nil NodeID = -1

// Kind is the closed set of node kinds understood by the engine.
type Kind uint8

const (
	KindInvalid Kind = iota

	// statements
	KindModule
	KindBlock
	KindFunctionDef
	KindClassDef
	KindIf
	KindFor
	KindWhile
	KindAssign
	KindAugAssign
	KindExprStmt
	KindReturn
	KindRaise
	KindPass
	KindBreak
	KindContinue
	KindComment
	KindCompound
	KindClause
	KindRaw

	// expressions
	KindName
	KindConstant
	KindBinOp
	KindBoolOp
	KindUnaryOp
	KindCompare
	KindCall
	KindKeyword
	KindStarred
	KindAttribute
	KindSubscript
	KindList
	KindTuple
	KindSet
	KindDict
	KindPair
	KindIfExp
	KindLambda
	KindRawExpr

	// auxiliary
	KindParams
	KindParam
	KindDecorators
)

var kindNames = [...]string{
	KindInvalid:     "Invalid",
	KindModule:      "Module",
	KindBlock:       "Block",
	KindFunctionDef: "FunctionDef",
	KindClassDef:    "ClassDef",
	KindIf:          "If",
	KindFor:         "For",
	KindWhile:       "While",
	KindAssign:      "Assign",
	KindAugAssign:   "AugAssign",
	KindExprStmt:    "ExprStmt",
	KindReturn:      "Return",
	KindRaise:       "Raise",
	KindPass:        "Pass",
	KindBreak:       "Break",
	KindContinue:    "Continue",
	KindComment:     "Comment",
	KindCompound:    "Compound",
	KindClause:      "Clause",
	KindRaw:         "Raw",
	KindName:        "Name",
	KindConstant:    "Constant",
	KindBinOp:       "BinOp",
	KindBoolOp:      "BoolOp",
	KindUnaryOp:     "UnaryOp",
	KindCompare:     "Compare",
	KindCall:        "Call",
	KindKeyword:     "Keyword",
	KindStarred:     "Starred",
	KindAttribute:   "Attribute",
	KindSubscript:   "Subscript",
	KindList:        "List",
	KindTuple:       "Tuple",
	KindSet:         "Set",
	KindDict:        "Dict",
	KindPair:        "Pair",
	KindIfExp:       "IfExp",
	KindLambda:      "Lambda",
	KindRawExpr:     "RawExpr",
	KindParams:      "Params",
	KindParam:       "Param",
	KindDecorators:  "Decorators",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// IsStatement reports whether nodes of this kind appear directly in a Block.
func (k Kind) IsStatement() bool {
	return k >= KindFunctionDef && k <= KindRaw && k != KindClause
}

// IsCompound reports whether the statement owns nested blocks.
func (k Kind) IsCompound() bool {
	switch k {
	case KindFunctionDef, KindClassDef, KindIf, KindFor, KindWhile, KindCompound:
		return true
	}
	return false
}

// IsExit reports whether the statement unconditionally leaves its block.
func (k Kind) IsExit() bool {
	switch k {
	case KindReturn, KindRaise, KindBreak, KindContinue:
		return true
	}
	return false
}

// ConstKind classifies literal constants.
type ConstKind uint8

const (
	ConstNone ConstKind = iota
	ConstInt
	ConstFloat
	ConstString
	ConstBool
	ConstNull
	ConstEllipsis
)

// Flags carry printing hints that do not change meaning.
type Flags uint8

const (
	// FlagElif marks an If that was written as an elif clause.
	FlagElif Flags = 1 << iota
	// FlagBare marks a tuple written without parentheses.
	FlagBare
)

// Pos is a 1-based source position.
type Pos struct {
	Line   int
	Column int
}

// Child slot layout per kind.
const (
	// Module
	SlotModuleBody = 0

	// FunctionDef
	SlotFuncParams     = 0
	SlotFuncBody       = 1
	SlotFuncReturns    = 2
	SlotFuncDecorators = 3

	// ClassDef: bases follow the fixed slots.
	SlotClassBody       = 0
	SlotClassDecorators = 1
	SlotClassBases      = 2

	// If, While
	SlotTest   = 0
	SlotBody   = 1
	SlotOrElse = 2

	// For
	SlotForTarget = 0
	SlotForIter   = 1
	SlotForBody   = 2
	SlotForOrElse = 3

	// Assign, AugAssign
	SlotTarget = 0
	SlotValue  = 1

	// Param
	SlotParamAnnotation = 0
	SlotParamDefault    = 1

	// Lambda
	SlotLambdaParams = 0
	SlotLambdaBody   = 1

	// IfExp
	SlotIfExpBody   = 0
	SlotIfExpTest   = 1
	SlotIfExpOrElse = 2
)

// Node is a single arena entry.
//
// Name holds the identifier for Name, Param, FunctionDef, ClassDef,
// Attribute and Keyword nodes, the literal text for Constant and Comment,
// the operator-free header for Clause, and verbatim source for Raw and
// RawExpr. Ops holds operators: one for BinOp, UnaryOp, BoolOp, AugAssign,
// Starred and Param (prefix "*", "**", "/" or ""), one per comparison for
// Compare.
type Node struct {
	Kind     Kind
	Name     string
	Ops      []string
	Const    ConstKind
	Flags    Flags
	Children []NodeID
	Parent   NodeID
	Pos      Pos
	EndLine  int
}

// Tree is a mutable arena of nodes rooted at a Module.
type Tree struct {
	nodes []*Node
	Root  NodeID
}

// NewTree returns an empty tree.
func NewTree() *Tree {
	return &Tree{Root: Nil}
}

// Len returns the number of arena entries, including detached ones.
func (t *Tree) Len() int { return len(t.nodes) }

// Node returns the node for id, or nil for Nil and out-of-range ids.
func (t *Tree) Node(id NodeID) *Node {
	if id < 0 || int(id) >= len(t.nodes) {
		return nil
	}
	return t.nodes[id]
}

// Kind returns the node kind, or KindInvalid for Nil.
func (t *Tree) Kind(id NodeID) Kind {
	if n := t.Node(id); n != nil {
		return n.Kind
	}
	return KindInvalid
}

// Name returns the node's Name field, or "" for Nil.
func (t *Tree) Name(id NodeID) string {
	if n := t.Node(id); n != nil {
		return n.Name
	}
	return ""
}

// Parent returns the parent id or Nil.
func (t *Tree) Parent(id NodeID) NodeID {
	if n := t.Node(id); n != nil {
		return n.Parent
	}
	return Nil
}

// Child returns the i-th child or Nil when the slot is out of range.
func (t *Tree) Child(id NodeID, i int) NodeID {
	n := t.Node(id)
	if n == nil || i < 0 || i >= len(n.Children) {
		return Nil
	}
	return n.Children[i]
}

// Children returns the child slice of id. Callers must not retain it
// across mutations.
func (t *Tree) Children(id NodeID) []NodeID {
	if n := t.Node(id); n != nil {
		return n.Children
	}
	return nil
}

// Add appends n to the arena and adopts its non-Nil children.
func (t *Tree) Add(n Node) NodeID {
	id := NodeID(len(t.nodes))
	node := n
	node.Parent = Nil
	if len(n.Children) > 0 {
		node.Children = append([]NodeID(nil), n.Children...)
	}
	t.nodes = append(t.nodes, &node)
	for _, c := range node.Children {
		t.adopt(id, c)
	}
	return id
}

// New is a shorthand for Add with only kind, position and children.
func (t *Tree) New(kind Kind, pos Pos, children ...NodeID) NodeID {
	return t.Add(Node{Kind: kind, Pos: pos, EndLine: pos.Line, Children: children})
}

// NewName creates a Name node.
func (t *Tree) NewName(name string, pos Pos) NodeID {
	return t.Add(Node{Kind: KindName, Name: name, Pos: pos, EndLine: pos.Line})
}

func (t *Tree) adopt(parent, child NodeID) {
	if child == Nil {
		return
	}
	c := t.Node(child)
	if c.Parent != Nil && c.Parent != parent {
		panic(fmt.Sprintf("syntax: node %d (%s) already attached to %d", child, c.Kind, c.Parent))
	}
	c.Parent = parent
}

func (t *Tree) release(child NodeID) {
	if c := t.Node(child); c != nil {
		c.Parent = Nil
	}
}

// SetChild replaces slot i of parent, detaching the previous occupant.
func (t *Tree) SetChild(parent NodeID, i int, child NodeID) {
	p := t.Node(parent)
	old := p.Children[i]
	if old == child {
		return
	}
	t.release(old)
	p.Children[i] = Nil
	t.adopt(parent, child)
	p.Children[i] = child
}

// Detach clears the child slot holding id and returns id.
func (t *Tree) Detach(id NodeID) NodeID {
	parent := t.Parent(id)
	if parent == Nil {
		return id
	}
	if i := t.IndexOf(id); i >= 0 {
		t.SetChild(parent, i, Nil)
	}
	return id
}

// IndexOf returns the slot index of id inside its parent, or -1.
func (t *Tree) IndexOf(id NodeID) int {
	parent := t.Parent(id)
	for i, c := range t.Children(parent) {
		if c == id {
			return i
		}
	}
	return -1
}

// Append adds children to the end of parent's child list.
func (t *Tree) Append(parent NodeID, children ...NodeID) {
	t.ReplaceRange(parent, len(t.Children(parent)), len(t.Children(parent)), children...)
}

// Insert places children before slot i of parent.
func (t *Tree) Insert(parent NodeID, i int, children ...NodeID) {
	t.ReplaceRange(parent, i, i, children...)
}

// ReplaceRange swaps children[start:end] for repl. Removed nodes are
// detached; replacements must be detached or already owned by parent.
func (t *Tree) ReplaceRange(parent NodeID, start, end int, repl ...NodeID) {
	p := t.Node(parent)
	removed := append([]NodeID(nil), p.Children[start:end]...)
	for _, c := range removed {
		t.release(c)
	}
	out := make([]NodeID, 0, len(p.Children)-len(removed)+len(repl))
	out = append(out, p.Children[:start]...)
	out = append(out, repl...)
	out = append(out, p.Children[end:]...)
	for _, c := range repl {
		if c != Nil && t.Node(c).Parent == parent {
			t.release(c)
		}
		t.adopt(parent, c)
	}
	p.Children = out
}

// Clone deep-copies the subtree at id. The copy is detached.
func (t *Tree) Clone(id NodeID) NodeID {
	if id == Nil {
		return Nil
	}
	src := t.Node(id)
	children := make([]NodeID, len(src.Children))
	for i, c := range src.Children {
		children[i] = t.Clone(c)
	}
	n := *src
	n.Ops = append([]string(nil), src.Ops...)
	n.Children = children
	return t.Add(n)
}

// Copy duplicates the whole arena. NodeIDs are stable across the copy.
func (t *Tree) Copy() *Tree {
	out := &Tree{Root: t.Root, nodes: make([]*Node, len(t.nodes))}
	for i, n := range t.nodes {
		cp := *n
		cp.Ops = append([]string(nil), n.Ops...)
		cp.Children = append([]NodeID(nil), n.Children...)
		out.nodes[i] = &cp
	}
	return out
}

// Inspect walks the subtree at id in pre-order. Returning false from fn
// skips the node's children.
func (t *Tree) Inspect(id NodeID, fn func(NodeID) bool) {
	if id == Nil {
		return
	}
	if !fn(id) {
		return
	}
	for _, c := range t.Node(id).Children {
		t.Inspect(c, fn)
	}
}

// Contains reports whether id lies within the subtree rooted at ancestor.
func (t *Tree) Contains(ancestor, id NodeID) bool {
	for cur := id; cur != Nil; cur = t.Parent(cur) {
		if cur == ancestor {
			return true
		}
	}
	return false
}

// Attached reports whether id is reachable from the root.
func (t *Tree) Attached(id NodeID) bool {
	return t.Contains(t.Root, id)
}

// EnclosingStatement returns the nearest ancestor (or id itself) whose
// parent is a Block.
func (t *Tree) EnclosingStatement(id NodeID) NodeID {
	for cur := id; cur != Nil; cur = t.Parent(cur) {
		if t.Kind(t.Parent(cur)) == KindBlock {
			return cur
		}
	}
	return Nil
}

// EnclosingFunction returns the nearest FunctionDef containing id, or Nil.
func (t *Tree) EnclosingFunction(id NodeID) NodeID {
	for cur := t.Parent(id); cur != Nil; cur = t.Parent(cur) {
		if t.Kind(cur) == KindFunctionDef {
			return cur
		}
	}
	return Nil
}

// Body returns the module body block.
func (t *Tree) Body() NodeID {
	return t.Child(t.Root, SlotModuleBody)
}

// Statements returns the non-comment statements of a block.
func (t *Tree) Statements(block NodeID) []NodeID {
	var out []NodeID
	for _, c := range t.Children(block) {
		if t.Kind(c) != KindComment {
			out = append(out, c)
		}
	}
	return out
}

// Names collects the Name nodes under id in pre-order, without descending
// into nested function, class or lambda scopes when skipScopes is set.
func (t *Tree) Names(id NodeID, skipScopes bool) []NodeID {
	var out []NodeID
	t.Inspect(id, func(n NodeID) bool {
		switch t.Kind(n) {
		case KindName:
			out = append(out, n)
		case KindFunctionDef, KindClassDef, KindLambda:
			return !skipScopes || n == id
		}
		return true
	})
	return out
}

// Mentions reports whether name occurs under id as a Name, Param or
// identifier token inside opaque text.
func (t *Tree) Mentions(id NodeID, name string) bool {
	found := false
	t.Inspect(id, func(n NodeID) bool {
		if found {
			return false
		}
		node := t.Node(n)
		switch node.Kind {
		case KindName, KindParam:
			found = node.Name == name
		case KindRaw, KindRawExpr, KindClause:
			found = HasToken(node.Name, name)
		case KindConstant:
			found = node.Const == ConstString && IsFString(node.Name) && HasToken(node.Name, name)
		}
		return !found
	})
	return found
}

// Pure reports whether evaluating the expression at id has no side effects
// visible to the engine: no calls, opaque text, attribute or subscript
// access, lambdas or starred expansion.
func (t *Tree) Pure(id NodeID) bool {
	pure := true
	t.Inspect(id, func(n NodeID) bool {
		switch t.Kind(n) {
		case KindCall, KindRawExpr, KindRaw, KindAttribute, KindSubscript, KindLambda, KindStarred:
			pure = false
		case KindConstant:
			if IsFString(t.Name(n)) {
				pure = false
			}
		}
		return pure
	})
	return pure
}

// Line returns the 1-based start line of id.
func (t *Tree) Line(id NodeID) int {
	if n := t.Node(id); n != nil {
		return n.Pos.Line
	}
	return 0
}

// LastLine returns the 1-based end line of id.
func (t *Tree) LastLine(id NodeID) int {
	n := t.Node(id)
	if n == nil {
		return 0
	}
	if n.EndLine > n.Pos.Line {
		return n.EndLine
	}
	return n.Pos.Line
}
