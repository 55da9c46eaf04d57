package syntax

import (
	"fmt"
	"strings"
)

// Equal reports whether two subtrees are structurally identical, ignoring
// positions. Opaque text is compared with whitespace collapsed.
func Equal(a *Tree, ai NodeID, b *Tree, bi NodeID) bool {
	if ai == Nil || bi == Nil {
		return ai == bi
	}
	x, y := a.Node(ai), b.Node(bi)
	if x.Kind != y.Kind || x.Const != y.Const || x.Flags != y.Flags || len(x.Children) != len(y.Children) {
		return false
	}
	switch x.Kind {
	case KindRaw, KindRawExpr, KindClause:
		if collapse(x.Name) != collapse(y.Name) {
			return false
		}
	default:
		if x.Name != y.Name {
			return false
		}
	}
	if strings.Join(x.Ops, " ") != strings.Join(y.Ops, " ") {
		return false
	}
	for i := range x.Children {
		if !Equal(a, x.Children[i], b, y.Children[i]) {
			return false
		}
	}
	return true
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Dump renders the subtree as an S-expression, mainly for test diagnostics.
func Dump(t *Tree, id NodeID) string {
	var sb strings.Builder
	dump(t, id, &sb)
	return sb.String()
}

func dump(t *Tree, id NodeID, sb *strings.Builder) {
	if id == Nil {
		sb.WriteString("nil")
		return
	}
	n := t.Node(id)
	sb.WriteString("(")
	sb.WriteString(n.Kind.String())
	if n.Name != "" {
		fmt.Fprintf(sb, " %q", n.Name)
	}
	for _, op := range n.Ops {
		if op != "" {
			fmt.Fprintf(sb, " %s", op)
		}
	}
	for _, c := range n.Children {
		sb.WriteString(" ")
		dump(t, c, sb)
	}
	sb.WriteString(")")
}
