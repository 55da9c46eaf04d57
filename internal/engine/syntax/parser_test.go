package syntax

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, src string) *Tree {
	t.Helper()
	tree, err := Parse([]byte(src), ParseConfig{})
	require.NoError(t, err)
	return tree
}

func TestParse_FunctionDefinition(t *testing.T) {
	tree := mustParse(t, "def add(a, b=2):\n    return a + b\n")

	stmts := tree.Children(tree.Body())
	require.Len(t, stmts, 1)
	fn := tree.Node(stmts[0])
	assert.Equal(t, KindFunctionDef, fn.Kind)
	assert.Equal(t, "add", fn.Name)
	assert.Equal(t, 1, fn.Pos.Line)
	assert.Equal(t, 2, tree.LastLine(stmts[0]))

	params := tree.Children(fn.Children[SlotFuncParams])
	require.Len(t, params, 2)
	assert.Equal(t, "a", tree.Name(params[0]))
	assert.Equal(t, "b", tree.Name(params[1]))
	assert.NotEqual(t, Nil, tree.Child(params[1], SlotParamDefault))

	ret := tree.Children(fn.Children[SlotFuncBody])[0]
	assert.Equal(t, KindReturn, tree.Kind(ret))
	assert.Equal(t, KindBinOp, tree.Kind(tree.Child(ret, 0)))
}

func TestParse_ElifChain(t *testing.T) {
	tree := mustParse(t, "if a:\n    x = 1\nelif b:\n    x = 2\nelse:\n    x = 3\n")

	top := tree.Children(tree.Body())[0]
	orelse := tree.Child(top, SlotOrElse)
	require.Equal(t, KindBlock, tree.Kind(orelse))
	elif := tree.Children(orelse)[0]
	assert.Equal(t, KindIf, tree.Kind(elif))
	assert.NotZero(t, tree.Node(elif).Flags&FlagElif)
	assert.Equal(t, 3, tree.Line(elif))
	assert.NotEqual(t, Nil, tree.Child(elif, SlotOrElse))
}

func TestParse_BoolOpIsFlattened(t *testing.T) {
	tree := mustParse(t, "ok = a and b and c\n")
	assign := tree.Children(tree.Body())[0]
	value := tree.Child(assign, SlotValue)
	require.Equal(t, KindBoolOp, tree.Kind(value))
	assert.Len(t, tree.Children(value), 3)
}

func TestParse_CompareOperators(t *testing.T) {
	tree := mustParse(t, "r = a < b <= c\ns = x not in y\nu = x is not None\n")
	stmts := tree.Children(tree.Body())
	require.Len(t, stmts, 3)
	assert.Equal(t, []string{"<", "<="}, tree.Node(tree.Child(stmts[0], SlotValue)).Ops)
	assert.Equal(t, []string{"not in"}, tree.Node(tree.Child(stmts[1], SlotValue)).Ops)
	assert.Equal(t, []string{"is not"}, tree.Node(tree.Child(stmts[2], SlotValue)).Ops)
}

func TestParse_UnsupportedConstructsBecomeRaw(t *testing.T) {
	tree := mustParse(t, "import os\nsquares = [n * n for n in nums]\n")
	stmts := tree.Children(tree.Body())
	require.Len(t, stmts, 2)
	assert.Equal(t, KindRaw, tree.Kind(stmts[0]))
	assert.Equal(t, "import os", tree.Name(stmts[0]))
	assert.Equal(t, KindRawExpr, tree.Kind(tree.Child(stmts[1], SlotValue)))
}

func TestParse_StrictRejectsUnsupported(t *testing.T) {
	_, err := Parse([]byte("import os\n"), ParseConfig{Strict: true})
	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, 1, perr.Line)
	assert.Contains(t, perr.Message, "import_statement")
}

func TestParse_CompoundKeepsClauses(t *testing.T) {
	tree := mustParse(t, "try:\n    run()\nexcept ValueError as e:\n    log(e)\n")
	stmt := tree.Children(tree.Body())[0]
	require.Equal(t, KindCompound, tree.Kind(stmt))
	clauses := tree.Children(stmt)
	require.Len(t, clauses, 2)
	assert.Equal(t, "try", tree.Name(clauses[0]))
	assert.Equal(t, "except ValueError as e", tree.Name(clauses[1]))
}

func TestParse_SyntaxErrorHasPosition(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"unclosed paren", "print((1, 2)\n"},
		{"bad def", "def f(:\n    pass\n"},
		{"stray operator", "x = = 1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree, err := Parse([]byte(tt.src), ParseConfig{})
			assert.Nil(t, tree)
			var perr *ParseError
			require.True(t, errors.As(err, &perr), "expected *ParseError, got %v", err)
			assert.GreaterOrEqual(t, perr.Line, 1)
			assert.GreaterOrEqual(t, perr.Column, 1)
			assert.NotEmpty(t, perr.Message)
		})
	}
}

func TestParse_MaxSourceBytes(t *testing.T) {
	_, err := Parse([]byte("x = 1\n"), ParseConfig{MaxSourceBytes: 3})
	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	assert.Contains(t, perr.Message, "exceeds")
}

func TestParse_EmptySource(t *testing.T) {
	tree := mustParse(t, "")
	assert.Empty(t, tree.Children(tree.Body()))
	assert.Equal(t, "", Print(tree))
}
