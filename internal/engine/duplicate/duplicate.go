// Package duplicate finds structurally repeated statement runs inside
// function bodies and optionally hoists them into a shared helper.
package duplicate

import (
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"pyrefactor/internal/engine/hoist"
	"pyrefactor/internal/engine/naming"
	"pyrefactor/internal/engine/scope"
	"pyrefactor/internal/engine/suggest"
	"pyrefactor/internal/engine/syntax"
)

const (
	DefaultMinStatements = 3
	DefaultMaxStatements = 25
)

// Options configures detection and rewriting.
type Options struct {
	MinStatements int
	MaxStatements int
	// Rewrite hoists hoistable groups into helpers.
	Rewrite bool
	Logger  *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.MinStatements <= 0 {
		o.MinStatements = DefaultMinStatements
	}
	if o.MaxStatements < o.MinStatements {
		o.MaxStatements = DefaultMaxStatements
		if o.MaxStatements < o.MinStatements {
			o.MaxStatements = o.MinStatements
		}
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Occurrence is one window of a group. Names maps placeholder positions to
// the identifiers used by this window.
type Occurrence struct {
	Span  hoist.Span
	Names []string
	First int
	Last  int
	seq   int
}

// Group is a set of windows sharing one canonical form.
type Group struct {
	Canonical   string
	Hash        uint64
	Size        int
	Occurrences []Occurrence
}

// Ranges returns the line range of every occurrence.
func (g Group) Ranges() [][2]int {
	out := make([][2]int, 0, len(g.Occurrences))
	for _, o := range g.Occurrences {
		out = append(out, [2]int{o.First, o.Last})
	}
	return out
}

// Detect returns duplicate groups, longest first, with overlapping windows
// resolved in favour of the longer match.
func Detect(t *syntax.Tree, opts Options) []Group {
	opts = opts.withDefaults()
	buckets := make(map[uint64][]*Group)
	var all []*Group
	seq := 0

	for _, block := range functionBlocks(t) {
		kids := t.Children(block)
		var positions []int
		for i, c := range kids {
			if t.Kind(c) != syntax.KindComment {
				positions = append(positions, i)
			}
		}
		for size := opts.MinStatements; size <= opts.MaxStatements && size <= len(positions); size++ {
			for i := 0; i+size <= len(positions); i++ {
				span := hoist.Span{Block: block, Start: positions[i], End: positions[i+size-1] + 1}
				stmts := statementsOf(t, span)
				if trivial(t, stmts) {
					continue
				}
				canon, names := encode(t, stmts)
				h := xxhash.Sum64String(canon)
				first, last := span.Lines(t)
				occ := Occurrence{Span: span, Names: names, First: first, Last: last, seq: seq}
				seq++

				var g *Group
				for _, cand := range buckets[h] {
					if cand.Canonical == canon {
						g = cand
						break
					}
				}
				if g == nil {
					g = &Group{Canonical: canon, Hash: h, Size: size}
					buckets[h] = append(buckets[h], g)
					all = append(all, g)
				}
				g.Occurrences = append(g.Occurrences, occ)
			}
		}
	}

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Size != all[j].Size {
			return all[i].Size > all[j].Size
		}
		return all[i].Occurrences[0].seq < all[j].Occurrences[0].seq
	})

	var claimed []hoist.Span
	var out []Group
	for _, g := range all {
		if len(g.Occurrences) < 2 {
			continue
		}
		var kept []Occurrence
		for _, occ := range g.Occurrences {
			if overlapsAny(t, occ.Span, claimed) || overlapsOcc(t, occ.Span, kept) {
				continue
			}
			kept = append(kept, occ)
		}
		if len(kept) < 2 {
			continue
		}
		for _, occ := range kept {
			claimed = append(claimed, occ.Span)
		}
		grp := *g
		grp.Occurrences = kept
		out = append(out, grp)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Occurrences[0].seq < out[j].Occurrences[0].seq
	})
	return out
}

func overlapsAny(t *syntax.Tree, s hoist.Span, list []hoist.Span) bool {
	for _, o := range list {
		if s.Overlaps(t, o) {
			return true
		}
	}
	return false
}

func overlapsOcc(t *syntax.Tree, s hoist.Span, list []Occurrence) bool {
	for _, o := range list {
		if s.Overlaps(t, o.Span) {
			return true
		}
	}
	return false
}

func functionBlocks(t *syntax.Tree) []syntax.NodeID {
	var out []syntax.NodeID
	t.Inspect(t.Root, func(id syntax.NodeID) bool {
		if t.Kind(id) == syntax.KindBlock && t.EnclosingFunction(id) != syntax.Nil {
			out = append(out, id)
		}
		return true
	})
	return out
}

func statementsOf(t *syntax.Tree, span hoist.Span) []syntax.NodeID {
	var out []syntax.NodeID
	for _, s := range span.Statements(t) {
		if t.Kind(s) != syntax.KindComment {
			out = append(out, s)
		}
	}
	return out
}

// trivial windows carry no logic worth sharing.
func trivial(t *syntax.Tree, stmts []syntax.NodeID) bool {
	for _, s := range stmts {
		switch t.Kind(s) {
		case syntax.KindPass, syntax.KindBreak, syntax.KindContinue:
		case syntax.KindReturn:
			if t.Child(s, 0) != syntax.Nil {
				return false
			}
		default:
			return false
		}
	}
	return true
}

type encoder struct {
	t     *syntax.Tree
	sb    strings.Builder
	slots map[string]int
	names []string
}

// encode folds statements into a canonical string. Identifiers become
// positional placeholders; literals, operators and attribute names stay.
func encode(t *syntax.Tree, stmts []syntax.NodeID) (string, []string) {
	e := &encoder{t: t, slots: make(map[string]int)}
	for _, s := range stmts {
		e.node(s)
		e.sb.WriteByte(';')
	}
	return e.sb.String(), e.names
}

func (e *encoder) placeholder(name string) {
	slot, ok := e.slots[name]
	if !ok {
		slot = len(e.names)
		e.slots[name] = slot
		e.names = append(e.names, name)
	}
	e.sb.WriteString("$")
	e.sb.WriteString(strconv.Itoa(slot))
}

func (e *encoder) node(id syntax.NodeID) {
	if id == syntax.Nil {
		e.sb.WriteByte('_')
		return
	}
	n := e.t.Node(id)
	e.sb.WriteString(n.Kind.String())
	switch n.Kind {
	case syntax.KindName, syntax.KindParam, syntax.KindFunctionDef, syntax.KindClassDef:
		e.sb.WriteByte(':')
		e.placeholder(n.Name)
	case syntax.KindConstant, syntax.KindAttribute, syntax.KindKeyword:
		e.sb.WriteByte(':')
		e.sb.WriteString(strconv.Quote(n.Name))
	case syntax.KindRaw, syntax.KindRawExpr, syntax.KindClause, syntax.KindComment:
		e.sb.WriteByte(':')
		e.sb.WriteString(strconv.Quote(strings.Join(strings.Fields(n.Name), " ")))
	}
	if len(n.Ops) > 0 {
		e.sb.WriteByte('[')
		e.sb.WriteString(strings.Join(n.Ops, ","))
		e.sb.WriteByte(']')
	}
	if len(n.Children) > 0 {
		e.sb.WriteByte('(')
		for i, c := range n.Children {
			if i > 0 {
				e.sb.WriteByte(',')
			}
			e.node(c)
		}
		e.sb.WriteByte(')')
	}
}

// Run detects duplicate groups, reports each one and, when opts.Rewrite
// is set, hoists hoistable groups into module-level helpers.
func Run(t *syntax.Tree, opts Options) []suggest.Suggestion {
	opts = opts.withDefaults()
	groups := Detect(t, opts)
	if len(groups) == 0 {
		return nil
	}

	a := scope.Analyze(t)
	var plans []*plan
	var out []suggest.Suggestion
	for i, g := range groups {
		first := g.Occurrences[0]
		msg := suggest.New(suggest.CategoryDuplicate, first.First,
			"Found duplicate block of %d statements at lines %s", g.Size, suggest.Ranges(g.Ranges()))
		if opts.Rewrite {
			p, err := newPlan(t, a, g, i+1)
			if err != nil {
				opts.Logger.Debug("duplicate not extracted", "line", first.First, "error", err)
			} else {
				plans = append(plans, p)
				msg.Message += "; extracted into '" + p.helper.Name + "'"
			}
		}
		out = append(out, msg)
	}
	apply(t, plans)
	return out
}

type replacement struct {
	span hoist.Span
	call syntax.NodeID
}

type plan struct {
	group  Group
	helper hoist.Helper
	def    syntax.NodeID
	calls  []replacement
}

func newPlan(t *syntax.Tree, a *scope.Analysis, g Group, n int) (*plan, error) {
	frags := make([]hoist.Fragment, len(g.Occurrences))
	classes := make([]hoist.Classified, len(g.Occurrences))
	for i, occ := range g.Occurrences {
		frag, err := hoist.Analyze(t, occ.Span)
		if err != nil {
			return nil, err
		}
		c, err := hoist.Classify(a, frag)
		if err != nil {
			return nil, err
		}
		frags[i], classes[i] = frag, c
	}

	first := g.Occurrences[0]
	slot := func(occ Occurrence, name string) int {
		for i, v := range occ.Names {
			if v == name {
				return i
			}
		}
		return -1
	}
	differs := func(ph int) bool {
		for _, occ := range g.Occurrences[1:] {
			if occ.Names[ph] != first.Names[ph] {
				return true
			}
		}
		return false
	}

	var params []int
	for _, name := range frags[0].Inputs {
		ph := slot(first, name)
		if ph < 0 {
			continue
		}
		param := differs(ph)
		for i, occ := range g.Occurrences {
			if contains(classes[i].Params, occ.Names[ph]) {
				param = true
			}
		}
		if param {
			params = append(params, ph)
		}
	}

	isOutput := make(map[int]bool)
	for i, occ := range g.Occurrences {
		for _, name := range classes[i].Outputs {
			isOutput[slot(occ, name)] = true
		}
	}
	var outputs []int
	for _, name := range frags[0].Writes {
		if ph := slot(first, name); isOutput[ph] {
			outputs = append(outputs, ph)
		}
	}

	sc := a.Module
	verb := naming.Verb(frags[0].Callees)
	name := naming.Suffixed(naming.SharedHelper(verb, n), func(s string) bool { return a.Taken(sc, s) })
	a.Reserve(sc, name)

	pick := func(occ Occurrence, phs []int) []string {
		out := make([]string, 0, len(phs))
		for _, ph := range phs {
			out = append(out, occ.Names[ph])
		}
		return out
	}

	p := &plan{group: g}
	p.helper = hoist.Helper{
		Name:       name,
		Params:     pick(first, params),
		Outputs:    pick(first, outputs),
		TailReturn: frags[0].TailReturn,
	}
	stmts := first.Span.Statements(t)
	p.def = hoist.Build(t, p.helper, stmts, t.Node(hoist.TopLevel(t, first.Span.Block)).Pos)
	for _, occ := range g.Occurrences {
		pos := t.Node(occ.Span.Statements(t)[0]).Pos
		call := hoist.CallStatement(t, name, pick(occ, params), pick(occ, outputs), p.helper.TailReturn, pos)
		p.calls = append(p.calls, replacement{span: occ.Span, call: call})
	}
	return p, nil
}

// apply replaces every planned occurrence, later spans first within a
// block so earlier indices stay valid, then inserts the helpers.
func apply(t *syntax.Tree, plans []*plan) {
	var all []replacement
	for _, p := range plans {
		all = append(all, p.calls...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].span.Block != all[j].span.Block {
			return all[i].span.Block < all[j].span.Block
		}
		return all[i].span.Start > all[j].span.Start
	})
	for _, r := range all {
		hoist.Replace(t, r.span, r.call)
	}
	for _, p := range plans {
		hoist.InsertBefore(t, p.def, p.group.Occurrences[0].Span.Block)
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
