package syntax

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrint_RoundTripCanonical(t *testing.T) {
	sources := map[string]string{
		"assign":       "x = 1\n",
		"params":       "def f(a, b=2, *args, **kwargs):\n    return a + b\n",
		"elif":         "if x > 0 and y < 10:\n    print(x)\nelif x == 0:\n    pass\nelse:\n    y = -x\n",
		"for":          "for i, item in enumerate(items):\n    total += item * 2\n",
		"while":        "while not done:\n    done = check()\n",
		"class":        "class A(Base):\n    def m(self):\n        return self.value[0]\n",
		"try":          "try:\n    run()\nexcept ValueError as e:\n    print(e)\nfinally:\n    cleanup()\n",
		"raw":          "import os\nresult = [x for x in range(3)]\n",
		"ifexp":        "value = a if b else c\n",
		"lambda":       "f = lambda x, y=1: x * y\n",
		"dict":         "d = {'a': 1, 'b': [1, 2]}\n",
		"parens":       "x = (a + b) * c\n",
		"power":        "y = 2 ** -1\n",
		"defs":         "def g():\n    pass\n\n\ndef h():\n    pass\n",
		"bare tuple":   "t = 1, 2\n",
		"decorator":    "@decorator\ndef f():\n    pass\n",
		"splat":        "print(*args, **kwargs)\n",
		"membership":   "a = x not in y\nb = x is not None\n",
		"keywords":     "call(1, key=value)\n",
		"nested bools": "ok = (a or b) and c\n",
		"annotations":  "def f(a: int, b: str = 'x') -> bool:\n    return True\n",
	}
	for name, src := range sources {
		t.Run(name, func(t *testing.T) {
			tree := mustParse(t, src)
			assert.Equal(t, src, Print(tree))
		})
	}
}

func TestPrint_NormalizesAndIsIdempotent(t *testing.T) {
	src := "x=1\nif x:\n  y=[1,2 ,3]\n  z = ( y )\n"
	first := Print(mustParse(t, src))
	assert.Equal(t, "x = 1\nif x:\n    y = [1, 2, 3]\n    z = y\n", first)

	second := Print(mustParse(t, first))
	assert.Equal(t, first, second)
}

func TestPrint_ReparsesToEqualTree(t *testing.T) {
	cases := map[string]string{
		"mixed":           "def f(data):\n  cleaned = data.strip()\n  if cleaned and (len(cleaned) > 3 or force):\n    return -cleaned.count(',') ** 2\n  return None\n",
		"walrus assigned": "x = (a := 1)\n",
		"walrus returned": "def f():\n    return (a := 1)\n",
		"walrus keyword":  "x = (await_ := 1)\n",
		"walrus compared": "def f(xs):\n    if (n := len(xs)) > 3:\n        return n\n",
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			tree := mustParse(t, src)
			out := Print(tree)
			again := mustParse(t, out)
			assert.True(t, Equal(tree, tree.Root, again, again.Root), "trees differ:\n%s\n%s", Dump(tree, tree.Root), Dump(again, again.Root))
		})
	}
}

func TestPrint_WalrusKeepsParens(t *testing.T) {
	assert.Equal(t, "x = (a := 1)\n", Print(mustParse(t, "x = (a := 1)\n")))
	assert.Contains(t, Print(mustParse(t, "def f():\n    return (a := 1)\n")), "return (a := 1)\n")
}

func TestPrint_RawIsReindented(t *testing.T) {
	src := "def f():\n        from os import (\n            path,\n            sep,\n        )\n"
	out := Print(mustParse(t, src))
	assert.Equal(t, "def f():\n    from os import (\n        path,\n        sep,\n    )\n", out)
	_, err := Parse([]byte(out), ParseConfig{})
	require.NoError(t, err)
}

func TestPrint_PrecedenceInsertsParens(t *testing.T) {
	tree := NewTree()
	p := Pos{Line: 1, Column: 1}
	sum := tree.Add(Node{Kind: KindBinOp, Ops: []string{"+"}, Children: []NodeID{tree.NewName("a", p), tree.NewName("b", p)}})
	prod := tree.Add(Node{Kind: KindBinOp, Ops: []string{"*"}, Children: []NodeID{sum, tree.NewName("c", p)}})
	assert.Equal(t, "(a + b) * c", PrintExpr(tree, prod))

	neg := tree.Add(Node{Kind: KindUnaryOp, Ops: []string{"-"}, Children: []NodeID{tree.NewName("x", p)}})
	pow := tree.Add(Node{Kind: KindBinOp, Ops: []string{"**"}, Children: []NodeID{neg, tree.NewName("y", p)}})
	assert.Equal(t, "(-x) ** y", PrintExpr(tree, pow))

	or := tree.Add(Node{Kind: KindBoolOp, Ops: []string{"or"}, Children: []NodeID{tree.NewName("p", p), tree.NewName("q", p)}})
	not := tree.Add(Node{Kind: KindUnaryOp, Ops: []string{"not"}, Children: []NodeID{or}})
	assert.Equal(t, "not (p or q)", PrintExpr(tree, not))
}

func TestBracketed(t *testing.T) {
	assert.True(t, bracketed("[x for x in y]"))
	assert.True(t, bracketed("(yield)"))
	assert.True(t, bracketed("{k: v for k, v in items}"))
	assert.False(t, bracketed("(a) + (b)"))
	assert.False(t, bracketed("await f()"))
	assert.True(t, bracketed(`[")" for _ in y]`))
}
