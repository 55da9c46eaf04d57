package deadcode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pyrefactor/internal/engine/suggest"
	"pyrefactor/internal/engine/syntax"
)

func run(t *testing.T, src string) (string, []suggest.Suggestion) {
	t.Helper()
	tree, err := syntax.Parse([]byte(src), syntax.ParseConfig{})
	require.NoError(t, err)
	out := Run(tree, Options{})
	return syntax.Print(tree), out
}

func TestRun_UnreachableAfterReturn(t *testing.T) {
	text, out := run(t, "def f(x):\n    return x\n    print(\"unreachable\")\n")
	assert.Equal(t, "def f(x):\n    return x\n", text)
	require.Len(t, out, 1)
	assert.Equal(t, suggest.CategoryDeadCode, out[0].Category)
	assert.Equal(t, 3, out[0].Line)
	assert.Equal(t, "Removed unreachable code at line 3", out[0].Message)
}

func TestRun_UnreachableKeepsComments(t *testing.T) {
	text, out := run(t, "def f():\n    return 1\n    # note\n    a = 2\n    b = 3\n")
	assert.Equal(t, "def f():\n    return 1\n    # note\n", text)
	require.Len(t, out, 1)
	assert.Equal(t, "Removed unreachable code at lines 4-5", out[0].Message)
}

func TestRun_UnreachableInLoop(t *testing.T) {
	text, out := run(t, "def f(xs):\n    for x in xs:\n        break\n        print(x)\n    return xs\n")
	assert.Equal(t, "def f(xs):\n    for x in xs:\n        break\n    return xs\n", text)
	assert.Len(t, out, 1)
}

func TestRun_ConstantConditions(t *testing.T) {
	cases := []struct {
		name    string
		src     string
		want    string
		message string
	}{
		{
			name:    "if true with else",
			src:     "def f():\n    if True:\n        return 1\n    else:\n        return 2\n",
			want:    "def f():\n    return 1\n",
			message: "Folded constant condition 'True' at line 2; removed else branch at line 5",
		},
		{
			name:    "if false without else",
			src:     "def f():\n    if False:\n        print(1)\n    return 2\n",
			want:    "def f():\n    return 2\n",
			message: "Removed branch that never runs at line 3",
		},
		{
			name:    "zero with elif",
			src:     "def f(x):\n    if 0:\n        return 1\n    elif x:\n        return 2\n    return 3\n",
			want:    "def f(x):\n    if x:\n        return 2\n    return 3\n",
			message: "Removed branch that never runs at line 3",
		},
		{
			name:    "while false",
			src:     "def f():\n    while False:\n        print(1)\n    return 2\n",
			want:    "def f():\n    return 2\n",
			message: "Removed loop that never runs at lines 2-3",
		},
		{
			name:    "module level",
			src:     "if None:\n    print(1)\nprint(2)\n",
			want:    "print(2)\n",
			message: "Removed branch that never runs at line 2",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			text, out := run(t, tc.src)
			assert.Equal(t, tc.want, text)
			require.Len(t, out, 1)
			assert.Equal(t, tc.message, out[0].Message)
		})
	}
}

func TestRun_WhileTrueIsKept(t *testing.T) {
	src := "def f():\n    while True:\n        break\n"
	text, out := run(t, src)
	assert.Equal(t, src, text)
	assert.Empty(t, out)
}

func TestRun_OverwrittenStore(t *testing.T) {
	text, out := run(t, "def f(a):\n    x = 1\n    x = a\n    return x\n")
	assert.Equal(t, "def f(a):\n    x = a\n    return x\n", text)
	require.Len(t, out, 1)
	assert.Equal(t, "Removed unused assignment to 'x' at line 2", out[0].Message)
	assert.Equal(t, 2, out[0].Line)
}

func TestRun_ChainedStoresReachFixedPoint(t *testing.T) {
	text, out := run(t, "def f(a):\n    x = a\n    y = x\n    return a\n")
	assert.Equal(t, "def f(a):\n    return a\n", text)
	require.Len(t, out, 2)
	assert.Equal(t, 3, out[0].Line)
	assert.Equal(t, 2, out[1].Line)
}

func TestRun_EmptyBodyGetsPass(t *testing.T) {
	text, out := run(t, "def f(a):\n    x = a\n")
	assert.Equal(t, "def f(a):\n    pass\n", text)
	assert.Len(t, out, 1)
}

func TestRun_KeepsObservableStores(t *testing.T) {
	cases := map[string]string{
		"conditional overwrite": "def f(c):\n    x = 1\n    if c:\n        x = 2\n    return x\n",
		"impure value":          "def f():\n    x = compute()\n    return 1\n",
		"captured":              "def f():\n    x = 1\n\n    def g():\n        return x\n\n    return g\n",
		"read in later loop":    "def f(xs):\n    total = 0\n    for x in xs:\n        print(total)\n        total = x\n    return 1\n",
		"module level":          "x = 1\n",
		"opaque":                "def f():\n    x = 1\n    return [x for _ in range(3)]\n",
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			text, out := run(t, src)
			assert.Empty(t, out)
			assert.Equal(t, src, text)
		})
	}
}

func TestRun_KeepsStoreVisibleToExceptionHandler(t *testing.T) {
	src := "def f(d):\n    x = 0\n    try:\n        x = 1\n        d['k']\n        x = 2\n    except KeyError:\n        return x\n    return x\n"
	text, out := run(t, src)
	assert.Empty(t, out)
	assert.Contains(t, text, "        x = 1\n")
	assert.Contains(t, text, "        x = 2\n")
}

func TestRun_GuardedStoreWithPureGapIsOverwritten(t *testing.T) {
	src := "def f(d):\n    try:\n        x = 1\n        y = 2\n        x = y\n    except KeyError:\n        return 0\n    return x\n"
	text, out := run(t, src)
	require.Len(t, out, 1)
	assert.Equal(t, "Removed unused assignment to 'x' at line 3", out[0].Message)
	assert.NotContains(t, text, "x = 1")
}

func TestRun_FrameIntrospectionKeepsStores(t *testing.T) {
	cases := map[string]string{
		"locals": "def f():\n    x = 1\n    return locals()\n",
		"vars":   "def f():\n    x = 1\n    return vars()\n",
		"eval":   "def f(src):\n    x = 1\n    return eval(src)\n",
		"exec":   "def f(src):\n    x = 1\n    exec(src)\n    return 0\n",
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			text, out := run(t, src)
			assert.Empty(t, out)
			assert.Equal(t, src, text)
		})
	}
}
