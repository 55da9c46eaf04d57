package scope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pyrefactor/internal/engine/syntax"
)

func analyze(t *testing.T, src string) *Analysis {
	t.Helper()
	tree, err := syntax.Parse([]byte(src), syntax.ParseConfig{})
	require.NoError(t, err)
	return Analyze(tree)
}

func flaggedNames(flags []Flag) []string {
	var out []string
	for _, f := range flags {
		out = append(out, f.Symbol.Name)
	}
	return out
}

func TestAnalyze_FunctionSymbols(t *testing.T) {
	a := analyze(t, "def f(a, b):\n    x = a\n    return x + b\n")

	require.Len(t, a.Module.Children, 1)
	fn := a.Module.Children[0]
	assert.Equal(t, ScopeFunction, fn.Kind)
	assert.Equal(t, "f", fn.Name)
	assert.NotNil(t, a.Module.Symbol("f"))

	x := fn.Symbol("x")
	require.NotNil(t, x)
	assert.Equal(t, SymbolLocal, x.Kind)
	assert.Equal(t, 2, x.UsageCount())
	assert.Equal(t, 2, x.FirstUseLine())
	assert.Len(t, x.Writes(), 1)
	assert.Len(t, x.Reads(), 1)

	param := fn.Symbol("a")
	require.NotNil(t, param)
	assert.Equal(t, SymbolParameter, param.Kind)
	assert.Equal(t, 2, param.UsageCount())
	assert.True(t, param.IsSingleLetter())
}

func TestAnalyze_ClassScopeHiddenFromMethods(t *testing.T) {
	a := analyze(t, "class C:\n    y = 1\n    def m(self):\n        return y\n")

	cls := a.Module.Children[0]
	require.Equal(t, ScopeClass, cls.Kind)
	y := cls.Symbol("y")
	require.NotNil(t, y)
	assert.Equal(t, 1, y.UsageCount())

	method := cls.Children[0]
	assert.Nil(t, method.Lookup("y"))
}

func TestAnalyze_CapturedByNestedFunction(t *testing.T) {
	a := analyze(t, "def outer():\n    n = 1\n    def inner():\n        return n\n    return inner\n")
	outer := a.Module.Children[0]
	n := outer.Symbol("n")
	require.NotNil(t, n)
	assert.True(t, n.Captured)
	assert.Equal(t, 2, n.UsageCount())
	assert.Nil(t, outer.Children[0].Symbol("n"))
}

func TestAnalyze_ShadowingCreatesDistinctSymbols(t *testing.T) {
	a := analyze(t, "x = 1\ndef f():\n    x = 2\n    return x\nprint(x)\n")
	outer := a.Module.Symbol("x")
	inner := a.Module.Children[0].Symbol("x")
	require.NotNil(t, outer)
	require.NotNil(t, inner)
	assert.NotSame(t, outer, inner)
	assert.Equal(t, 2, outer.UsageCount())
	assert.Equal(t, 2, inner.UsageCount())
	assert.False(t, outer.Captured)
}

func TestAnalyze_FlaggedOrderAndLambdaPolicy(t *testing.T) {
	src := "for i in range(3):\n    print(i)\nf = lambda x: x\n"
	a := analyze(t, src)

	exempt, err := NewPolicy(nil, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"i", "f"}, flaggedNames(a.Flagged(exempt)))

	all, err := NewPolicy(nil, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"i", "f", "x"}, flaggedNames(a.Flagged(all)))

	globbed, err := NewPolicy([]string{"[fx]"}, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"i"}, flaggedNames(a.Flagged(globbed)))
}

func TestAnalyze_UnsafeReasons(t *testing.T) {
	a := analyze(t, "def g():\n    global k\n    k = 1\ndef h(p):\n    return p\nh(p=1)\ndef ok(q):\n    return q\n")
	policy, err := NewPolicy(nil, true)
	require.NoError(t, err)

	reasons := map[string]string{}
	for _, f := range a.Flagged(policy) {
		reasons[f.Symbol.Name] = f.Unsafe
	}
	assert.NotEmpty(t, reasons["k"])
	assert.NotEmpty(t, reasons["p"])
	assert.Empty(t, reasons["q"])
}

func TestAnalyze_Taken(t *testing.T) {
	a := analyze(t, "def f(a):\n    index = a\n    return index\n")
	fn := a.Module.Children[0]

	assert.True(t, a.Taken(fn, "index"))
	assert.False(t, a.Taken(fn, "total"))
	assert.True(t, a.Taken(a.Module, "index"))
	assert.True(t, a.Taken(fn, "len"))

	a.Reserve(fn, "total")
	assert.True(t, a.Taken(a.Module, "total"))
}

func TestAnalyze_ScopeOf(t *testing.T) {
	a := analyze(t, "def f(a=b):\n    c = a\n")
	tree := a.Tree
	var b, c syntax.NodeID = syntax.Nil, syntax.Nil
	tree.Inspect(tree.Root, func(id syntax.NodeID) bool {
		switch tree.Name(id) {
		case "b":
			b = id
		case "c":
			c = id
		}
		return true
	})
	require.NotEqual(t, syntax.Nil, b)
	require.NotEqual(t, syntax.Nil, c)
	assert.Same(t, a.Module, a.ScopeOf(b))
	assert.Equal(t, ScopeFunction, a.ScopeOf(c).Kind)
	assert.Same(t, a.Module.Children[0].Symbol("c"), a.SymbolAt(c))
}

func TestAnalyze_GlobalAndNonlocalResolveOutward(t *testing.T) {
	a := analyze(t, "x = 0\ndef f():\n    y = 0\n    def g():\n        nonlocal y\n        y = y + 1\n    def h():\n        global x\n        x = 2\n        z = 3\n    return y\n")
	mod := a.Module
	require.NotNil(t, mod.Symbol("x"))
	assert.True(t, mod.Symbol("x").Opaque)
	assert.Len(t, mod.Symbol("x").Writes(), 2)

	f := mod.Children[0]
	require.Len(t, f.Children, 2)
	g, h := f.Children[0], f.Children[1]
	assert.Nil(t, g.Symbol("y"))
	assert.Nil(t, h.Symbol("x"))
	assert.NotNil(t, h.Symbol("z"))
	assert.True(t, g.Declared("y"))

	y := f.Symbol("y")
	require.NotNil(t, y)
	assert.True(t, y.Opaque)
	assert.True(t, y.Captured)
	assert.Same(t, y, g.Lookup("y"))
	assert.Len(t, y.Writes(), 2)
}
