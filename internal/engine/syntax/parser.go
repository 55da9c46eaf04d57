package syntax

import (
	"fmt"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// ParseConfig bounds and tunes parsing.
type ParseConfig struct {
	// MaxSourceBytes rejects larger inputs; zero disables the check.
	MaxSourceBytes int
	// Strict turns constructs the engine cannot model into parse errors
	// instead of opaque Raw nodes.
	Strict bool
}

// ParseError reports the first syntax problem in the source.
type ParseError struct {
	Line    int    `json:"line"`
	Column  int    `json:"column"`
	Message string `json:"message"`
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d, column %d: %s", e.Line, e.Column, e.Message)
}

var defaultPool = NewParserPool(PythonLanguage())

// Parse builds a Tree from Python source text.
func Parse(source []byte, cfg ParseConfig) (*Tree, error) {
	return ParseWithPool(defaultPool, source, cfg)
}

// ParseWithPool is Parse with an explicit parser pool.
func ParseWithPool(pool *ParserPool, source []byte, cfg ParseConfig) (*Tree, error) {
	if cfg.MaxSourceBytes > 0 && len(source) > cfg.MaxSourceBytes {
		return nil, &ParseError{Line: 1, Column: 1, Message: fmt.Sprintf("source exceeds %d bytes", cfg.MaxSourceBytes)}
	}

	sp := pool.Get()
	defer pool.Put(sp)

	ts := sp.Parse(source, nil)
	if ts == nil {
		return nil, &ParseError{Line: 1, Column: 1, Message: "parser produced no tree"}
	}
	defer ts.Close()

	root := ts.RootNode()
	if root.HasError() {
		return nil, firstError(root, source)
	}

	c := newConverter(source, cfg.Strict)
	body := c.block(root)
	if c.err != nil {
		return nil, c.err
	}
	c.tree.Root = c.tree.New(KindModule, Pos{Line: 1, Column: 1}, body)
	c.tree.Node(c.tree.Root).EndLine = int(root.EndPosition().Row) + 1
	return c.tree, nil
}

func firstError(n *sitter.Node, source []byte) *ParseError {
	var found *ParseError
	var visit func(*sitter.Node)
	visit = func(cur *sitter.Node) {
		if found != nil || cur == nil {
			return
		}
		if cur.IsMissing() {
			found = &ParseError{
				Line:    int(cur.StartPosition().Row) + 1,
				Column:  int(cur.StartPosition().Column) + 1,
				Message: fmt.Sprintf("missing %q", cur.Kind()),
			}
			return
		}
		if cur.IsError() {
			found = &ParseError{
				Line:    int(cur.StartPosition().Row) + 1,
				Column:  int(cur.StartPosition().Column) + 1,
				Message: "invalid syntax near " + quoteSnippet(source[cur.StartByte():cur.EndByte()]),
			}
			return
		}
		for i := uint(0); i < cur.ChildCount(); i++ {
			visit(cur.Child(i))
		}
	}
	visit(n)
	if found == nil {
		found = &ParseError{Line: 1, Column: 1, Message: "invalid syntax"}
	}
	return found
}

func quoteSnippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 40 {
		s = s[:40] + "..."
	}
	return fmt.Sprintf("%q", s)
}

type stmtHandler func(c *converter, n *sitter.Node) NodeID
type exprHandler func(c *converter, n *sitter.Node) NodeID

// converter lowers a tree-sitter concrete tree into the arena. Node kinds
// without a handler become Raw (statements) or RawExpr (expressions).
type converter struct {
	src    []byte
	tree   *Tree
	strict bool
	err    *ParseError

	stmts map[string]stmtHandler
	exprs map[string]exprHandler
}

func newConverter(src []byte, strict bool) *converter {
	c := &converter{src: src, tree: NewTree(), strict: strict}
	c.stmts = map[string]stmtHandler{
		"expression_statement": (*converter).exprStatement,
		"return_statement":     (*converter).returnStatement,
		"raise_statement":      (*converter).raiseStatement,
		"pass_statement":       simpleStatement(KindPass),
		"break_statement":      simpleStatement(KindBreak),
		"continue_statement":   simpleStatement(KindContinue),
		"if_statement":         (*converter).ifStatement,
		"for_statement":        (*converter).forStatement,
		"while_statement":      (*converter).whileStatement,
		"function_definition":  (*converter).functionDef,
		"class_definition":     (*converter).classDef,
		"decorated_definition": (*converter).decorated,
		"try_statement":        (*converter).compound,
		"with_statement":       (*converter).compound,
		"comment":              (*converter).comment,
	}
	c.exprs = map[string]exprHandler{
		"identifier":               (*converter).name,
		"integer":                  constant(ConstInt),
		"float":                    constant(ConstFloat),
		"string":                   constant(ConstString),
		"concatenated_string":      (*converter).concatenated,
		"true":                     constant(ConstBool),
		"false":                    constant(ConstBool),
		"none":                     constant(ConstNull),
		"ellipsis":                 constant(ConstEllipsis),
		"parenthesized_expression": (*converter).parenthesized,
		"binary_operator":          (*converter).binaryOp,
		"boolean_operator":         (*converter).boolOp,
		"not_operator":             (*converter).notOp,
		"unary_operator":           (*converter).unaryOp,
		"comparison_operator":      (*converter).compare,
		"call":                     (*converter).call,
		"attribute":                (*converter).attribute,
		"subscript":                (*converter).subscript,
		"list":                     sequence(KindList, 0),
		"tuple":                    sequence(KindTuple, 0),
		"set":                      sequence(KindSet, 0),
		"expression_list":          sequence(KindTuple, FlagBare),
		"pattern_list":             sequence(KindTuple, FlagBare),
		"tuple_pattern":            sequence(KindTuple, 0),
		"list_pattern":             sequence(KindList, 0),
		"dictionary":               (*converter).dictionary,
		"conditional_expression":   (*converter).ifExp,
		"lambda":                   (*converter).lambda,
		"list_splat":               starred("*"),
		"list_splat_pattern":       starred("*"),
	}
	return c
}

func (c *converter) text(n *sitter.Node) string {
	return string(c.src[n.StartByte():n.EndByte()])
}

func pos(n *sitter.Node) Pos {
	return Pos{Line: int(n.StartPosition().Row) + 1, Column: int(n.StartPosition().Column) + 1}
}

func endLine(n *sitter.Node) int {
	end := n.EndPosition()
	line := int(end.Row) + 1
	// A node ending at column 0 finished on the previous line's newline.
	if end.Column == 0 && end.Row > n.StartPosition().Row {
		line--
	}
	return line
}

// named returns the named children of n, skipping comments and line
// continuations.
func named(n *sitter.Node) []*sitter.Node {
	var out []*sitter.Node
	for i := uint(0); i < n.NamedChildCount(); i++ {
		ch := n.NamedChild(i)
		if ch == nil {
			continue
		}
		switch ch.Kind() {
		case "comment", "line_continuation":
			continue
		}
		out = append(out, ch)
	}
	return out
}

func (c *converter) fail(n *sitter.Node, msg string) {
	if c.err == nil {
		p := pos(n)
		c.err = &ParseError{Line: p.Line, Column: p.Column, Message: msg}
	}
}

func (c *converter) finish(id NodeID, n *sitter.Node) NodeID {
	c.tree.Node(id).EndLine = endLine(n)
	return id
}

// block converts a module or block node into a Block.
func (c *converter) block(n *sitter.Node) NodeID {
	var stmts []NodeID
	for i := uint(0); i < n.NamedChildCount(); i++ {
		ch := n.NamedChild(i)
		if ch == nil || ch.Kind() == "line_continuation" {
			continue
		}
		stmts = append(stmts, c.statement(ch))
	}
	id := c.tree.New(KindBlock, pos(n), stmts...)
	return c.finish(id, n)
}

func (c *converter) statement(n *sitter.Node) NodeID {
	if h, ok := c.stmts[n.Kind()]; ok {
		return h(c, n)
	}
	return c.rawStatement(n)
}

func (c *converter) rawStatement(n *sitter.Node) NodeID {
	if c.strict {
		c.fail(n, fmt.Sprintf("unsupported construct %q", n.Kind()))
	}
	id := c.tree.Add(Node{Kind: KindRaw, Name: c.text(n), Pos: pos(n)})
	return c.finish(id, n)
}

func simpleStatement(kind Kind) stmtHandler {
	return func(c *converter, n *sitter.Node) NodeID {
		return c.finish(c.tree.New(kind, pos(n)), n)
	}
}

func (c *converter) comment(n *sitter.Node) NodeID {
	return c.tree.Add(Node{Kind: KindComment, Name: strings.TrimRight(c.text(n), " \t\r"), Pos: pos(n), EndLine: pos(n).Line})
}

func (c *converter) exprStatement(n *sitter.Node) NodeID {
	kids := named(n)
	if len(kids) != 1 {
		return c.rawStatement(n)
	}
	inner := kids[0]
	switch inner.Kind() {
	case "assignment":
		left := inner.ChildByFieldName("left")
		right := inner.ChildByFieldName("right")
		if left == nil || right == nil || inner.ChildByFieldName("type") != nil || right.Kind() == "assignment" || right.Kind() == "yield" {
			return c.rawStatement(n)
		}
		id := c.tree.New(KindAssign, pos(n), c.expr(left), c.expr(right))
		return c.finish(id, n)
	case "augmented_assignment":
		left := inner.ChildByFieldName("left")
		right := inner.ChildByFieldName("right")
		op := inner.ChildByFieldName("operator")
		if left == nil || right == nil || op == nil || right.Kind() == "yield" {
			return c.rawStatement(n)
		}
		id := c.tree.Add(Node{Kind: KindAugAssign, Ops: []string{op.Kind()}, Pos: pos(n), Children: []NodeID{c.expr(left), c.expr(right)}})
		return c.finish(id, n)
	}
	id := c.tree.New(KindExprStmt, pos(n), c.expr(inner))
	return c.finish(id, n)
}

func (c *converter) returnStatement(n *sitter.Node) NodeID {
	value := Nil
	if kids := named(n); len(kids) == 1 {
		value = c.expr(kids[0])
	} else if len(kids) > 1 {
		return c.rawStatement(n)
	}
	return c.finish(c.tree.New(KindReturn, pos(n), value), n)
}

func (c *converter) raiseStatement(n *sitter.Node) NodeID {
	if n.ChildByFieldName("cause") != nil {
		return c.rawStatement(n)
	}
	value := Nil
	if kids := named(n); len(kids) == 1 {
		value = c.expr(kids[0])
	} else if len(kids) > 1 {
		return c.rawStatement(n)
	}
	return c.finish(c.tree.New(KindRaise, pos(n), value), n)
}

func (c *converter) ifStatement(n *sitter.Node) NodeID {
	cond := n.ChildByFieldName("condition")
	body := n.ChildByFieldName("consequence")
	if cond == nil || body == nil {
		return c.rawStatement(n)
	}
	var alts []*sitter.Node
	for i := uint(0); i < n.NamedChildCount(); i++ {
		ch := n.NamedChild(i)
		if ch != nil && (ch.Kind() == "elif_clause" || ch.Kind() == "else_clause") {
			alts = append(alts, ch)
		}
	}
	test := c.expr(cond)
	consequence := c.block(body)

	orelse := Nil
	for i := len(alts) - 1; i >= 0; i-- {
		alt := alts[i]
		switch alt.Kind() {
		case "else_clause":
			if b := alt.ChildByFieldName("body"); b != nil {
				orelse = c.block(b)
			}
		case "elif_clause":
			ec := alt.ChildByFieldName("condition")
			eb := alt.ChildByFieldName("consequence")
			if ec == nil || eb == nil {
				return c.rawStatement(n)
			}
			elif := c.tree.Add(Node{Kind: KindIf, Flags: FlagElif, Pos: pos(alt), Children: []NodeID{c.expr(ec), c.block(eb), orelse}})
			c.tree.Node(elif).EndLine = c.tree.LastLine(orelse)
			if c.tree.Node(elif).EndLine == 0 {
				c.finish(elif, alt)
			}
			orelse = c.tree.New(KindBlock, pos(alt), elif)
			c.tree.Node(orelse).EndLine = c.tree.LastLine(elif)
		}
	}
	id := c.tree.New(KindIf, pos(n), test, consequence, orelse)
	return c.finish(id, n)
}

func (c *converter) forStatement(n *sitter.Node) NodeID {
	if isAsync(n) {
		return c.rawStatement(n)
	}
	left := n.ChildByFieldName("left")
	right := n.ChildByFieldName("right")
	body := n.ChildByFieldName("body")
	if left == nil || right == nil || body == nil {
		return c.rawStatement(n)
	}
	orelse := Nil
	if alt := n.ChildByFieldName("alternative"); alt != nil {
		if b := alt.ChildByFieldName("body"); b != nil {
			orelse = c.block(b)
		}
	}
	id := c.tree.New(KindFor, pos(n), c.expr(left), c.expr(right), c.block(body), orelse)
	return c.finish(id, n)
}

func (c *converter) whileStatement(n *sitter.Node) NodeID {
	cond := n.ChildByFieldName("condition")
	body := n.ChildByFieldName("body")
	if cond == nil || body == nil {
		return c.rawStatement(n)
	}
	orelse := Nil
	if alt := n.ChildByFieldName("alternative"); alt != nil {
		if b := alt.ChildByFieldName("body"); b != nil {
			orelse = c.block(b)
		}
	}
	id := c.tree.New(KindWhile, pos(n), c.expr(cond), c.block(body), orelse)
	return c.finish(id, n)
}

func isAsync(n *sitter.Node) bool {
	first := n.Child(0)
	return first != nil && first.Kind() == "async"
}

func (c *converter) functionDef(n *sitter.Node) NodeID {
	name := n.ChildByFieldName("name")
	params := n.ChildByFieldName("parameters")
	body := n.ChildByFieldName("body")
	if isAsync(n) || name == nil || params == nil || body == nil || n.ChildByFieldName("type_parameters") != nil {
		return c.rawStatement(n)
	}
	plist, ok := c.params(params)
	if !ok {
		return c.rawStatement(n)
	}
	returns := Nil
	if rt := n.ChildByFieldName("return_type"); rt != nil {
		returns = c.typeExpr(rt)
	}
	decorators := c.tree.New(KindDecorators, pos(n))
	id := c.tree.Add(Node{
		Kind:     KindFunctionDef,
		Name:     c.text(name),
		Pos:      pos(n),
		Children: []NodeID{plist, c.block(body), returns, decorators},
	})
	return c.finish(id, n)
}

func (c *converter) classDef(n *sitter.Node) NodeID {
	name := n.ChildByFieldName("name")
	body := n.ChildByFieldName("body")
	if name == nil || body == nil || n.ChildByFieldName("type_parameters") != nil {
		return c.rawStatement(n)
	}
	children := []NodeID{c.block(body), c.tree.New(KindDecorators, pos(n))}
	if sup := n.ChildByFieldName("superclasses"); sup != nil {
		args, ok := c.arguments(sup)
		if !ok {
			return c.rawStatement(n)
		}
		children = append(children, args...)
	}
	id := c.tree.Add(Node{Kind: KindClassDef, Name: c.text(name), Pos: pos(n), Children: children})
	return c.finish(id, n)
}

func (c *converter) decorated(n *sitter.Node) NodeID {
	def := n.ChildByFieldName("definition")
	if def == nil {
		return c.rawStatement(n)
	}
	var decos []NodeID
	for _, ch := range named(n) {
		if ch.Kind() != "decorator" {
			continue
		}
		inner := named(ch)
		if len(inner) != 1 {
			return c.rawStatement(n)
		}
		decos = append(decos, c.expr(inner[0]))
	}
	var id NodeID
	slot := SlotFuncDecorators
	switch def.Kind() {
	case "function_definition":
		id = c.functionDef(def)
	case "class_definition":
		id = c.classDef(def)
		slot = SlotClassDecorators
	default:
		return c.rawStatement(n)
	}
	if c.tree.Kind(id) == KindRaw {
		return c.rawStatement(n)
	}
	node := c.tree.Node(id)
	node.Pos = pos(n)
	c.tree.Append(node.Children[slot], decos...)
	return id
}

// compound keeps try and with statements as a header per clause plus a
// converted body, so nested statements stay visible to the passes.
func (c *converter) compound(n *sitter.Node) NodeID {
	if c.strict && n.Kind() == "with_statement" && isAsync(n) {
		c.fail(n, "unsupported construct \"async with\"")
	}
	var clauses []NodeID
	switch n.Kind() {
	case "try_statement":
		body := n.ChildByFieldName("body")
		if body == nil {
			return c.rawStatement(n)
		}
		clauses = append(clauses, c.clause("try", n, c.block(body)))
		for _, ch := range named(n) {
			switch ch.Kind() {
			case "except_clause", "except_group_clause", "else_clause", "finally_clause":
				b := lastBlock(ch)
				if b == nil {
					return c.rawStatement(n)
				}
				clauses = append(clauses, c.clause(c.header(ch, b), ch, c.block(b)))
			}
		}
	case "with_statement":
		body := n.ChildByFieldName("body")
		if body == nil {
			return c.rawStatement(n)
		}
		clauses = append(clauses, c.clause(c.header(n, body), n, c.block(body)))
	}
	id := c.tree.New(KindCompound, pos(n), clauses...)
	return c.finish(id, n)
}

func (c *converter) clause(header string, n *sitter.Node, body NodeID) NodeID {
	id := c.tree.Add(Node{Kind: KindClause, Name: header, Pos: pos(n), Children: []NodeID{body}})
	c.tree.Node(id).EndLine = c.tree.LastLine(body)
	return id
}

// header returns the clause text preceding its block, minus the colon.
func (c *converter) header(n, body *sitter.Node) string {
	raw := string(c.src[n.StartByte():body.StartByte()])
	raw = strings.TrimSpace(raw)
	raw = strings.TrimSuffix(raw, ":")
	return strings.Join(strings.Fields(raw), " ")
}

func lastBlock(n *sitter.Node) *sitter.Node {
	var out *sitter.Node
	for i := uint(0); i < n.NamedChildCount(); i++ {
		if ch := n.NamedChild(i); ch != nil && ch.Kind() == "block" {
			out = ch
		}
	}
	return out
}

func (c *converter) params(n *sitter.Node) (NodeID, bool) {
	var out []NodeID
	for _, ch := range named(n) {
		p, ok := c.param(ch)
		if !ok {
			return Nil, false
		}
		out = append(out, p)
	}
	return c.tree.New(KindParams, pos(n), out...), true
}

func (c *converter) param(n *sitter.Node) (NodeID, bool) {
	mk := func(prefix, name string, annotation, def NodeID) NodeID {
		return c.tree.Add(Node{Kind: KindParam, Name: name, Ops: []string{prefix}, Pos: pos(n), Children: []NodeID{annotation, def}})
	}
	switch n.Kind() {
	case "identifier":
		return mk("", c.text(n), Nil, Nil), true
	case "list_splat_pattern", "dictionary_splat_pattern":
		inner := named(n)
		if len(inner) != 1 || inner[0].Kind() != "identifier" {
			return Nil, false
		}
		prefix := "*"
		if n.Kind() == "dictionary_splat_pattern" {
			prefix = "**"
		}
		return mk(prefix, c.text(inner[0]), Nil, Nil), true
	case "keyword_separator":
		return mk("*", "", Nil, Nil), true
	case "positional_separator":
		return mk("/", "", Nil, Nil), true
	case "default_parameter":
		name := n.ChildByFieldName("name")
		value := n.ChildByFieldName("value")
		if name == nil || value == nil || name.Kind() != "identifier" {
			return Nil, false
		}
		return mk("", c.text(name), Nil, c.expr(value)), true
	case "typed_parameter":
		typ := n.ChildByFieldName("type")
		inner := named(n)
		if typ == nil || len(inner) == 0 {
			return Nil, false
		}
		p, ok := c.param(inner[0])
		if !ok {
			return Nil, false
		}
		c.tree.SetChild(p, SlotParamAnnotation, c.typeExpr(typ))
		return p, true
	case "typed_default_parameter":
		name := n.ChildByFieldName("name")
		typ := n.ChildByFieldName("type")
		value := n.ChildByFieldName("value")
		if name == nil || typ == nil || value == nil {
			return Nil, false
		}
		return mk("", c.text(name), c.typeExpr(typ), c.expr(value)), true
	}
	return Nil, false
}

func (c *converter) typeExpr(n *sitter.Node) NodeID {
	if n.Kind() == "type" {
		if inner := named(n); len(inner) == 1 {
			return c.expr(inner[0])
		}
	}
	return c.expr(n)
}

func (c *converter) expr(n *sitter.Node) NodeID {
	if h, ok := c.exprs[n.Kind()]; ok {
		return h(c, n)
	}
	return c.rawExpr(n)
}

func (c *converter) rawExpr(n *sitter.Node) NodeID {
	return c.tree.Add(Node{Kind: KindRawExpr, Name: c.text(n), Pos: pos(n), EndLine: endLine(n)})
}

func (c *converter) name(n *sitter.Node) NodeID {
	return c.tree.NewName(c.text(n), pos(n))
}

func constant(kind ConstKind) exprHandler {
	return func(c *converter, n *sitter.Node) NodeID {
		return c.tree.Add(Node{Kind: KindConstant, Const: kind, Name: c.text(n), Pos: pos(n), EndLine: endLine(n)})
	}
}

func (c *converter) concatenated(n *sitter.Node) NodeID {
	var parts []string
	for _, ch := range named(n) {
		parts = append(parts, c.text(ch))
	}
	return c.tree.Add(Node{Kind: KindConstant, Const: ConstString, Name: strings.Join(parts, " "), Pos: pos(n), EndLine: endLine(n)})
}

func (c *converter) parenthesized(n *sitter.Node) NodeID {
	inner := named(n)
	if len(inner) != 1 || inner[0].Kind() == "yield" || inner[0].Kind() == "named_expression" {
		return c.rawExpr(n)
	}
	return c.expr(inner[0])
}

func (c *converter) binaryOp(n *sitter.Node) NodeID {
	left := n.ChildByFieldName("left")
	right := n.ChildByFieldName("right")
	op := n.ChildByFieldName("operator")
	if left == nil || right == nil || op == nil {
		return c.rawExpr(n)
	}
	return c.tree.Add(Node{Kind: KindBinOp, Ops: []string{op.Kind()}, Pos: pos(n), Children: []NodeID{c.expr(left), c.expr(right)}})
}

func (c *converter) boolOp(n *sitter.Node) NodeID {
	left := n.ChildByFieldName("left")
	right := n.ChildByFieldName("right")
	op := n.ChildByFieldName("operator")
	if left == nil || right == nil || op == nil {
		return c.rawExpr(n)
	}
	operator := op.Kind()
	var values []NodeID
	for _, side := range []*sitter.Node{left, right} {
		v := c.expr(side)
		if vn := c.tree.Node(v); vn.Kind == KindBoolOp && vn.Ops[0] == operator && side.Kind() != "parenthesized_expression" {
			kids := append([]NodeID(nil), vn.Children...)
			c.tree.ReplaceRange(v, 0, len(kids))
			values = append(values, kids...)
			continue
		}
		values = append(values, v)
	}
	return c.tree.Add(Node{Kind: KindBoolOp, Ops: []string{operator}, Pos: pos(n), Children: values})
}

func (c *converter) notOp(n *sitter.Node) NodeID {
	arg := n.ChildByFieldName("argument")
	if arg == nil {
		return c.rawExpr(n)
	}
	return c.tree.Add(Node{Kind: KindUnaryOp, Ops: []string{"not"}, Pos: pos(n), Children: []NodeID{c.expr(arg)}})
}

func (c *converter) unaryOp(n *sitter.Node) NodeID {
	arg := n.ChildByFieldName("argument")
	op := n.ChildByFieldName("operator")
	if arg == nil || op == nil {
		return c.rawExpr(n)
	}
	return c.tree.Add(Node{Kind: KindUnaryOp, Ops: []string{op.Kind()}, Pos: pos(n), Children: []NodeID{c.expr(arg)}})
}

func (c *converter) compare(n *sitter.Node) NodeID {
	var operands []NodeID
	var ops []string
	for i := uint(0); i < n.ChildCount(); i++ {
		ch := n.Child(i)
		if ch == nil {
			continue
		}
		if ch.IsNamed() {
			if ch.Kind() == "comment" || ch.Kind() == "line_continuation" {
				continue
			}
			operands = append(operands, c.expr(ch))
			continue
		}
		op := strings.Join(strings.Fields(ch.Kind()), " ")
		switch {
		case op == "in" && len(ops) == len(operands) && len(ops) > 0 && ops[len(ops)-1] == "not":
			ops[len(ops)-1] = "not in"
		case op == "not" && len(ops) == len(operands) && len(ops) > 0 && ops[len(ops)-1] == "is":
			ops[len(ops)-1] = "is not"
		default:
			ops = append(ops, op)
		}
	}
	if len(operands) < 2 || len(ops) != len(operands)-1 {
		return c.rawExpr(n)
	}
	return c.tree.Add(Node{Kind: KindCompare, Ops: ops, Pos: pos(n), Children: operands})
}

func (c *converter) call(n *sitter.Node) NodeID {
	fn := n.ChildByFieldName("function")
	args := n.ChildByFieldName("arguments")
	if fn == nil || args == nil || args.Kind() != "argument_list" {
		return c.rawExpr(n)
	}
	list, ok := c.arguments(args)
	if !ok {
		return c.rawExpr(n)
	}
	children := append([]NodeID{c.expr(fn)}, list...)
	return c.tree.Add(Node{Kind: KindCall, Pos: pos(n), EndLine: endLine(n), Children: children})
}

func (c *converter) arguments(n *sitter.Node) ([]NodeID, bool) {
	var out []NodeID
	for _, ch := range named(n) {
		switch ch.Kind() {
		case "keyword_argument":
			name := ch.ChildByFieldName("name")
			value := ch.ChildByFieldName("value")
			if name == nil || value == nil {
				return nil, false
			}
			out = append(out, c.tree.Add(Node{Kind: KindKeyword, Name: c.text(name), Pos: pos(ch), Children: []NodeID{c.expr(value)}}))
		case "list_splat":
			out = append(out, starred("*")(c, ch))
		case "dictionary_splat":
			out = append(out, starred("**")(c, ch))
		default:
			out = append(out, c.expr(ch))
		}
	}
	return out, true
}

func starred(prefix string) exprHandler {
	return func(c *converter, n *sitter.Node) NodeID {
		inner := named(n)
		if len(inner) != 1 {
			return c.rawExpr(n)
		}
		return c.tree.Add(Node{Kind: KindStarred, Ops: []string{prefix}, Pos: pos(n), Children: []NodeID{c.expr(inner[0])}})
	}
}

func (c *converter) attribute(n *sitter.Node) NodeID {
	obj := n.ChildByFieldName("object")
	attr := n.ChildByFieldName("attribute")
	if obj == nil || attr == nil {
		return c.rawExpr(n)
	}
	return c.tree.Add(Node{Kind: KindAttribute, Name: c.text(attr), Pos: pos(n), Children: []NodeID{c.expr(obj)}})
}

func (c *converter) subscript(n *sitter.Node) NodeID {
	value := n.ChildByFieldName("value")
	kids := named(n)
	if value == nil || len(kids) != 2 || kids[1].Kind() == "slice" {
		return c.rawExpr(n)
	}
	return c.tree.Add(Node{Kind: KindSubscript, Pos: pos(n), Children: []NodeID{c.expr(value), c.expr(kids[1])}})
}

func sequence(kind Kind, flags Flags) exprHandler {
	return func(c *converter, n *sitter.Node) NodeID {
		var elems []NodeID
		for _, ch := range named(n) {
			switch ch.Kind() {
			case "list_splat", "list_splat_pattern":
				elems = append(elems, starred("*")(c, ch))
			case "dictionary_splat":
				return c.rawExpr(n)
			default:
				elems = append(elems, c.expr(ch))
			}
		}
		return c.tree.Add(Node{Kind: kind, Flags: flags, Pos: pos(n), EndLine: endLine(n), Children: elems})
	}
}

func (c *converter) dictionary(n *sitter.Node) NodeID {
	var pairs []NodeID
	for _, ch := range named(n) {
		if ch.Kind() != "pair" {
			return c.rawExpr(n)
		}
		key := ch.ChildByFieldName("key")
		value := ch.ChildByFieldName("value")
		if key == nil || value == nil {
			return c.rawExpr(n)
		}
		pairs = append(pairs, c.tree.New(KindPair, pos(ch), c.expr(key), c.expr(value)))
	}
	return c.tree.Add(Node{Kind: KindDict, Pos: pos(n), EndLine: endLine(n), Children: pairs})
}

func (c *converter) ifExp(n *sitter.Node) NodeID {
	kids := named(n)
	if len(kids) != 3 {
		return c.rawExpr(n)
	}
	return c.tree.New(KindIfExp, pos(n), c.expr(kids[0]), c.expr(kids[1]), c.expr(kids[2]))
}

func (c *converter) lambda(n *sitter.Node) NodeID {
	body := n.ChildByFieldName("body")
	if body == nil {
		return c.rawExpr(n)
	}
	params := c.tree.New(KindParams, pos(n))
	if p := n.ChildByFieldName("parameters"); p != nil {
		list, ok := c.params(p)
		if !ok {
			return c.rawExpr(n)
		}
		params = list
	}
	return c.tree.New(KindLambda, pos(n), params, c.expr(body))
}
