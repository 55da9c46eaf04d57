package syntax

import (
	"strings"
)

// PrintConfig controls rendering.
type PrintConfig struct {
	IndentWidth int
}

// Operator precedence levels, lowest binding first.
const (
	precNone = iota
	precLambda
	precIfExp
	precOr
	precAnd
	precNot
	precCompare
	precBitOr
	precBitXor
	precBitAnd
	precShift
	precArith
	precTerm
	precUnary
	precPower
	precAwait
	precPrimary
	precAtom
)

var binaryPrec = map[string]int{
	"|": precBitOr, "^": precBitXor, "&": precBitAnd,
	"<<": precShift, ">>": precShift,
	"+": precArith, "-": precArith,
	"*": precTerm, "/": precTerm, "//": precTerm, "%": precTerm, "@": precTerm,
	"**": precPower,
}

// Print renders the tree with four-space indentation.
func Print(t *Tree) string {
	return PrintWith(t, PrintConfig{IndentWidth: 4})
}

// PrintWith renders the tree as Python source ending in a newline.
func PrintWith(t *Tree, cfg PrintConfig) string {
	if cfg.IndentWidth <= 0 {
		cfg.IndentWidth = 4
	}
	if len(t.Children(t.Body())) == 0 {
		return ""
	}
	p := &printer{t: t, indent: strings.Repeat(" ", cfg.IndentWidth)}
	p.block(t.Body(), 0, true)
	return p.sb.String()
}

// PrintExpr renders a single expression without surrounding context.
func PrintExpr(t *Tree, id NodeID) string {
	p := &printer{t: t, indent: "    "}
	return p.expr(id, precNone)
}

// PrintStatement renders one statement and its nested blocks at depth 0.
func PrintStatement(t *Tree, id NodeID) string {
	p := &printer{t: t, indent: "    "}
	p.stmt(id, 0)
	return p.sb.String()
}

type printer struct {
	t      *Tree
	indent string
	sb     strings.Builder
}

func (p *printer) line(depth int, s string) {
	p.sb.WriteString(strings.Repeat(p.indent, depth))
	p.sb.WriteString(s)
	p.sb.WriteByte('\n')
}

func (p *printer) blank() {
	p.sb.WriteByte('\n')
}

func (p *printer) block(id NodeID, depth int, top bool) {
	stmts := p.t.Children(id)
	if len(stmts) == 0 {
		p.line(depth, "pass")
		return
	}
	prevDef := false
	prevKind := KindInvalid
	for i, s := range stmts {
		kind := p.t.Kind(s)
		isDef := kind == KindFunctionDef || kind == KindClassDef
		if i > 0 && ((isDef && prevKind != KindComment) || prevDef) {
			p.blank()
			if top {
				p.blank()
			}
		}
		p.stmt(s, depth)
		prevDef = isDef
		prevKind = kind
	}
}

func (p *printer) body(id NodeID, depth int) {
	if id == Nil {
		p.line(depth, "pass")
		return
	}
	p.block(id, depth, false)
}

func (p *printer) stmt(id NodeID, depth int) {
	n := p.t.Node(id)
	switch n.Kind {
	case KindFunctionDef:
		p.decorators(n.Children[SlotFuncDecorators], depth)
		head := "def " + n.Name + "(" + p.params(n.Children[SlotFuncParams], true) + ")"
		if r := n.Children[SlotFuncReturns]; r != Nil {
			head += " -> " + p.expr(r, precNone)
		}
		p.line(depth, head+":")
		p.body(n.Children[SlotFuncBody], depth+1)
	case KindClassDef:
		p.decorators(n.Children[SlotClassDecorators], depth)
		head := "class " + n.Name
		if len(n.Children) > SlotClassBases {
			head += "(" + p.args(n.Children[SlotClassBases:]) + ")"
		}
		p.line(depth, head+":")
		p.body(n.Children[SlotClassBody], depth+1)
	case KindIf:
		p.ifChain(id, depth, "if ")
	case KindFor:
		p.line(depth, "for "+p.target(n.Children[SlotForTarget])+" in "+p.expr(n.Children[SlotForIter], precNone)+":")
		p.body(n.Children[SlotForBody], depth+1)
		if e := n.Children[SlotForOrElse]; e != Nil {
			p.line(depth, "else:")
			p.body(e, depth+1)
		}
	case KindWhile:
		p.line(depth, "while "+p.expr(n.Children[SlotTest], precNone)+":")
		p.body(n.Children[SlotBody], depth+1)
		if e := n.Children[SlotOrElse]; e != Nil {
			p.line(depth, "else:")
			p.body(e, depth+1)
		}
	case KindAssign:
		p.line(depth, p.target(n.Children[SlotTarget])+" = "+p.expr(n.Children[SlotValue], precNone))
	case KindAugAssign:
		p.line(depth, p.target(n.Children[SlotTarget])+" "+n.Ops[0]+" "+p.expr(n.Children[SlotValue], precNone))
	case KindExprStmt:
		p.line(depth, p.expr(n.Children[0], precNone))
	case KindReturn:
		if v := n.Children[0]; v != Nil {
			p.line(depth, "return "+p.expr(v, precNone))
		} else {
			p.line(depth, "return")
		}
	case KindRaise:
		if v := n.Children[0]; v != Nil {
			p.line(depth, "raise "+p.expr(v, precNone))
		} else {
			p.line(depth, "raise")
		}
	case KindPass:
		p.line(depth, "pass")
	case KindBreak:
		p.line(depth, "break")
	case KindContinue:
		p.line(depth, "continue")
	case KindComment:
		p.line(depth, n.Name)
	case KindCompound:
		for _, cl := range n.Children {
			c := p.t.Node(cl)
			p.line(depth, c.Name+":")
			p.body(c.Children[0], depth+1)
		}
	case KindRaw:
		p.raw(n, depth)
	default:
		p.line(depth, p.expr(id, precNone))
	}
}

func (p *printer) ifChain(id NodeID, depth int, keyword string) {
	n := p.t.Node(id)
	p.line(depth, keyword+p.expr(n.Children[SlotTest], precNone)+":")
	p.body(n.Children[SlotBody], depth+1)
	orelse := n.Children[SlotOrElse]
	if orelse == Nil {
		return
	}
	kids := p.t.Children(orelse)
	if len(kids) == 1 && p.t.Kind(kids[0]) == KindIf && p.t.Node(kids[0]).Flags&FlagElif != 0 {
		p.ifChain(kids[0], depth, "elif ")
		return
	}
	p.line(depth, "else:")
	p.body(orelse, depth+1)
}

func (p *printer) decorators(id NodeID, depth int) {
	for _, d := range p.t.Children(id) {
		p.line(depth, "@"+p.expr(d, precNone))
	}
}

// raw re-indents verbatim text by the difference between its original
// column and the target depth.
func (p *printer) raw(n *Node, depth int) {
	lines := strings.Split(n.Name, "\n")
	strip := n.Pos.Column - 1
	prefix := strings.Repeat(p.indent, depth)
	for i, l := range lines {
		if i == 0 {
			p.line(depth, strings.TrimRight(l, " \t\r"))
			continue
		}
		l = strings.TrimRight(l, "\r")
		lead := len(l) - len(strings.TrimLeft(l, " "))
		cut := strip
		if lead < cut {
			cut = lead
		}
		rest := l[cut:]
		if strings.TrimSpace(rest) == "" {
			p.sb.WriteByte('\n')
			continue
		}
		p.sb.WriteString(prefix)
		p.sb.WriteString(rest)
		p.sb.WriteByte('\n')
	}
}

func (p *printer) target(id NodeID) string {
	if n := p.t.Node(id); n != nil && n.Kind == KindTuple && n.Flags&FlagBare != 0 {
		return p.elems(n.Children, len(n.Children) == 1)
	}
	return p.expr(id, precNone)
}

func (p *printer) params(id NodeID, annotated bool) string {
	var parts []string
	for _, c := range p.t.Children(id) {
		n := p.t.Node(c)
		s := n.Ops[0] + n.Name
		ann := n.Children[SlotParamAnnotation]
		if annotated && ann != Nil {
			s += ": " + p.expr(ann, precNone)
		}
		if def := n.Children[SlotParamDefault]; def != Nil {
			if annotated && ann != Nil {
				s += " = " + p.expr(def, precLambda)
			} else {
				s += "=" + p.expr(def, precLambda)
			}
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, ", ")
}

func (p *printer) args(ids []NodeID) string {
	parts := make([]string, 0, len(ids))
	for _, a := range ids {
		parts = append(parts, p.expr(a, precLambda))
	}
	return strings.Join(parts, ", ")
}

func (p *printer) elems(ids []NodeID, trailing bool) string {
	s := p.args(ids)
	if trailing {
		s += ","
	}
	return s
}

func wrap(s string, prec, min int) string {
	if prec < min {
		return "(" + s + ")"
	}
	return s
}

func (p *printer) expr(id NodeID, min int) string {
	n := p.t.Node(id)
	if n == nil {
		return ""
	}
	switch n.Kind {
	case KindName, KindConstant:
		return n.Name
	case KindRawExpr:
		if bracketed(n.Name) {
			return n.Name
		}
		return wrap(n.Name, precNone, min)
	case KindBinOp:
		op := n.Ops[0]
		prec := binaryPrec[op]
		left, right := prec, prec+1
		if op == "**" {
			left, right = precAwait, precUnary
		}
		s := p.expr(n.Children[0], left) + " " + op + " " + p.expr(n.Children[1], right)
		return wrap(s, prec, min)
	case KindBoolOp:
		prec := precOr
		if n.Ops[0] == "and" {
			prec = precAnd
		}
		parts := make([]string, 0, len(n.Children))
		for _, c := range n.Children {
			parts = append(parts, p.expr(c, prec+1))
		}
		return wrap(strings.Join(parts, " "+n.Ops[0]+" "), prec, min)
	case KindUnaryOp:
		if n.Ops[0] == "not" {
			return wrap("not "+p.expr(n.Children[0], precNot), precNot, min)
		}
		return wrap(n.Ops[0]+p.expr(n.Children[0], precUnary), precUnary, min)
	case KindCompare:
		var sb strings.Builder
		sb.WriteString(p.expr(n.Children[0], precCompare+1))
		for i, op := range n.Ops {
			sb.WriteString(" " + op + " ")
			sb.WriteString(p.expr(n.Children[i+1], precCompare+1))
		}
		return wrap(sb.String(), precCompare, min)
	case KindCall:
		return p.expr(n.Children[0], precPrimary) + "(" + p.args(n.Children[1:]) + ")"
	case KindKeyword:
		return n.Name + "=" + p.expr(n.Children[0], precLambda)
	case KindStarred:
		return n.Ops[0] + p.expr(n.Children[0], precBitOr)
	case KindAttribute:
		obj := p.expr(n.Children[0], precPrimary)
		if p.t.Kind(n.Children[0]) == KindConstant && p.t.Node(n.Children[0]).Const == ConstInt {
			obj = "(" + obj + ")"
		}
		return obj + "." + n.Name
	case KindSubscript:
		idx := n.Children[1]
		inner := p.expr(idx, precNone)
		if in := p.t.Node(idx); in.Kind == KindTuple && in.Flags&FlagBare != 0 {
			inner = p.elems(in.Children, len(in.Children) == 1)
		}
		return p.expr(n.Children[0], precPrimary) + "[" + inner + "]"
	case KindList:
		return "[" + p.args(n.Children) + "]"
	case KindSet:
		return "{" + p.args(n.Children) + "}"
	case KindTuple:
		s := p.elems(n.Children, len(n.Children) == 1)
		if n.Flags&FlagBare != 0 && min == precNone && len(n.Children) > 0 {
			return s
		}
		return "(" + s + ")"
	case KindDict:
		parts := make([]string, 0, len(n.Children))
		for _, c := range n.Children {
			pair := p.t.Node(c)
			parts = append(parts, p.expr(pair.Children[0], precLambda)+": "+p.expr(pair.Children[1], precLambda))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case KindIfExp:
		s := p.expr(n.Children[SlotIfExpBody], precOr) + " if " + p.expr(n.Children[SlotIfExpTest], precOr) +
			" else " + p.expr(n.Children[SlotIfExpOrElse], precIfExp)
		return wrap(s, precIfExp, min)
	case KindLambda:
		params := p.params(n.Children[SlotLambdaParams], false)
		head := "lambda"
		if params != "" {
			head += " " + params
		}
		return wrap(head+": "+p.expr(n.Children[SlotLambdaBody], precLambda), precLambda, min)
	}
	return n.Name
}

// bracketed reports whether text is a single bracketed or quoted atom.
func bracketed(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	open := s[0]
	var close byte
	switch open {
	case '(':
		close = ')'
	case '[':
		close = ']'
	case '{':
		close = '}'
	default:
		return false
	}
	if s[len(s)-1] != close {
		return false
	}
	depth := 0
	var quote byte
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if quote != 0 {
			if ch == '\\' {
				i++
			} else if ch == quote {
				quote = 0
			}
			continue
		}
		switch ch {
		case '\'', '"':
			quote = ch
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
			if depth == 0 && i != len(s)-1 {
				return false
			}
		}
	}
	return depth == 0
}
